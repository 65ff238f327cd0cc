package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/logging"
	"github.com/kyleking/energy-expert/internal/storage"
)

const maxHistoryLimit = 200

type queryRequest struct {
	Question string `json:"question"`
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type errorResponse struct {
	Error       string   `json:"error"`
	Type        string   `json:"type"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Energy expert is running. POST a question to /query.",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, errors.New(errors.ErrTypeValidation, "question is required"))
		return
	}

	outcome, err := s.answerer.Run(r.Context(), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	desc, err := s.catalog.FetchSchema(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []storage.Entry{})
		return
	}

	limit := storage.DefaultListLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, errors.Newf(errors.ErrTypeValidation, "invalid limit: %q", raw))
			return
		}

		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.ListEntries(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, errors.New(errors.ErrTypeNotFound, "query history is disabled"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Wrap(err, errors.ErrTypeValidation, "invalid history id"))
		return
	}

	var req feedbackRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.history.SaveFeedback(r.Context(), id, req.Rating, req.Comment); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, errors.ErrTypeValidation, "invalid request body")
	}

	return nil
}

// statusForError maps an error type to the HTTP status returned to callers
func statusForError(errType errors.ErrorType) int {
	switch errType {
	case errors.ErrTypeValidation:
		return http.StatusBadRequest
	case errors.ErrTypeNotFound:
		return http.StatusNotFound
	case errors.ErrTypeUnsafeSQL, errors.ErrTypeSchemaViolation:
		return http.StatusUnprocessableEntity
	case errors.ErrTypeCompletion, errors.ErrTypeCatalog, errors.ErrTypeExecution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	errType := errors.GetType(err)

	resp := errorResponse{
		Error: err.Error(),
		Type:  string(errType),
	}

	var structErr *errors.Error
	if stderrors.As(err, &structErr) {
		resp.Suggestions = structErr.Suggestions
	}

	writeJSON(w, statusForError(errType), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.GetLogger().WithError(err).Warn("Failed to encode response")
	}
}
