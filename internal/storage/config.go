package storage

import (
	"github.com/kyleking/energy-expert/internal/config"
	"github.com/kyleking/energy-expert/internal/errors"
)

// NewDuckDBRepositoryFromConfig opens the history store described by cfg
func NewDuckDBRepositoryFromConfig(cfg config.HistoryConfig) (*DuckDBRepository, error) {
	if !cfg.Enabled {
		return nil, errors.New(errors.ErrTypeConfig, "query history is disabled").
			WithSuggestion("Set ENERGY_EXPERT_HISTORY_ENABLED=true to record questions")
	}

	return NewDuckDBRepository(config.ExpandPath(cfg.Path))
}
