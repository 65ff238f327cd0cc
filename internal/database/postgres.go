package database

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (pgx)

	"github.com/kyleking/energy-expert/internal/config"
	"github.com/kyleking/energy-expert/internal/errors"
)

// DriverName is the database/sql driver registered by pgx
const DriverName = "pgx"

const pingTimeout = 10 * time.Second

// ValidateURL checks that databaseURL is a usable PostgreSQL connection URL
func ValidateURL(databaseURL string) error {
	if strings.TrimSpace(databaseURL) == "" {
		return errors.NewConfigError("database URL is empty", "database.url")
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "invalid database URL")
	}

	switch u.Scheme {
	case "postgres", "postgresql":
	default:
		return errors.Newf(errors.ErrTypeConfig, "unsupported database scheme %q (expected postgres)", u.Scheme)
	}

	if u.Host == "" {
		return errors.New(errors.ErrTypeConfig, "database URL has no host")
	}

	return nil
}

// Open connects to PostgreSQL, applies the pool limits and pings the server
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if err := ValidateURL(cfg.URL); err != nil {
		return nil, err
	}

	db, err := sql.Open(DriverName, cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to open database")
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()

		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to connect to database").
			WithSuggestion("Check ENERGY_EXPERT_POSTGRES_URL or pass --db-url").
			WithSuggestion("Make sure the PostgreSQL server is running and reachable")
	}

	return db, nil
}
