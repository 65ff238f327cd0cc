package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kyleking/energy-expert/internal/errors"
)

// maxErrorBody bounds how much of an upstream error body is kept in messages
const maxErrorBody = 512

// Client implements Completer against one of the supported providers
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new LLM client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := normalize(&config); err != nil {
		return nil, err
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// normalize validates provider requirements and fills defaults
func normalize(config *Config) error {
	if config.Provider == "" {
		return errors.NewConfigError("provider is required", "llm.provider")
	}

	if config.Model == "" {
		return errors.NewConfigError("model is required", "llm.model")
	}

	switch config.Provider {
	case ProviderOpenAI:
		if config.APIKey == "" {
			return errors.NewConfigError("API key is required for OpenAI provider", "llm.api_key")
		}

		if config.BaseURL == "" {
			config.BaseURL = DefaultOpenAIURL
		}
	case ProviderAnthropic:
		if config.APIKey == "" {
			return errors.NewConfigError("API key is required for Anthropic provider", "llm.api_key")
		}

		if config.BaseURL == "" {
			config.BaseURL = DefaultAnthropicURL
		}
	case ProviderOllama:
		if config.BaseURL == "" {
			config.BaseURL = DefaultOllamaURL
		}
	default:
		return errors.NewConfigError("unsupported provider: "+config.Provider, "llm.provider")
	}

	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}

	return nil
}

// Name identifies the provider and model, e.g. "ollama/phi3:mini"
func (c *Client) Name() string {
	return c.config.Provider + "/" + c.config.Model
}

// Complete sends prompt as a single user message and returns the reply text
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var (
		text string
		err  error
	)

	switch c.config.Provider {
	case ProviderOpenAI:
		text, err = c.completeOpenAI(ctx, prompt)
	case ProviderAnthropic:
		text, err = c.completeAnthropic(ctx, prompt)
	case ProviderOllama:
		text, err = c.completeOllama(ctx, prompt)
	default:
		return "", errors.Newf(errors.ErrTypeCompletion, "unsupported provider: %s", c.config.Provider)
	}

	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", errors.Newf(errors.ErrTypeCompletion, "%s returned empty content", c.Name())
	}

	return text, nil
}

// OpenAI API structures
type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *apiError      `json:"error,omitempty"`
}

type openAIChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *Client) completeOpenAI(ctx context.Context, prompt string) (string, error) {
	reqBody := openAIRequest{
		Model:       c.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   c.config.MaxTokens,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
	}

	respBody, err := c.post(ctx, "/chat/completions", reqBody, headers)
	if err != nil {
		return "", err
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", errors.Wrap(err, errors.ErrTypeCompletion, "failed to parse OpenAI response")
	}

	if response.Error != nil {
		return "", errors.Newf(errors.ErrTypeCompletion, "OpenAI API error: %s", response.Error.Message)
	}

	if len(response.Choices) == 0 {
		return "", errors.New(errors.ErrTypeCompletion, "no response from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}

// Anthropic API structures
type anthropicRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *apiError          `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *Client) completeAnthropic(ctx context.Context, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.config.Model,
		MaxTokens: c.config.MaxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}

	headers := map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": anthropicVersion,
	}

	respBody, err := c.post(ctx, "/messages", reqBody, headers)
	if err != nil {
		return "", err
	}

	var response anthropicResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", errors.Wrap(err, errors.ErrTypeCompletion, "failed to parse Anthropic response")
	}

	if response.Error != nil {
		return "", errors.Newf(errors.ErrTypeCompletion, "Anthropic API error: %s", response.Error.Message)
	}

	for _, block := range response.Content {
		if block.Type == "text" || block.Type == "" {
			return block.Text, nil
		}
	}

	return "", errors.New(errors.ErrTypeCompletion, "no text content from Anthropic")
}

// Ollama chat API structures
type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

func (c *Client) completeOllama(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaRequest{
		Model:    c.config.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	}

	respBody, err := c.post(ctx, "/api/chat", reqBody, nil)
	if err != nil {
		return "", err
	}

	var response ollamaResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", errors.Wrap(err, errors.ErrTypeCompletion, "failed to parse Ollama response")
	}

	if response.Error != "" {
		return "", errors.Newf(errors.ErrTypeCompletion, "Ollama API error: %s", response.Error)
	}

	return response.Message.Content, nil
}

// post sends a JSON request and returns the body of a 200 response
func (c *Client) post(ctx context.Context, endpoint string, reqBody any, headers map[string]string) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeCompletion, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeCompletion, "%s request failed", c.Name())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeCompletion, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}

		return nil, errors.Newf(errors.ErrTypeCompletion,
			"%s request failed with status %d: %s", c.Name(), resp.StatusCode, snippet)
	}

	return body, nil
}

// String implements fmt.Stringer without leaking the API key
func (c *Client) String() string {
	return fmt.Sprintf("llm.Client{%s %s}", c.Name(), c.config.BaseURL)
}
