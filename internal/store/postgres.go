// Package store persists finished batch runs to Postgres.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	apierrors "meterfill/internal/errors"
	"meterfill/pkg/contracts/domain"
)

// PostgresRunStore writes batch runs and their resolutions into a
// dedicated schema. Implements services.RunStore.
type PostgresRunStore struct {
	db     *sql.DB
	schema string
	runTag string
	logger *slog.Logger
}

// Options configures the run store connection.
type Options struct {
	URL    string
	Schema string
	RunTag string
	Logger *slog.Logger
}

// Open connects to Postgres, verifies the connection and creates the
// run tables if they do not exist yet.
func Open(ctx context.Context, opts Options) (*PostgresRunStore, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("run store: database URL is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	schema, err := sanitizeSchema(opts.Schema)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", opts.URL)
	if err != nil {
		return nil, apierrors.NewStorageError("open run store database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apierrors.NewStorageError("ping run store database", err).
			WithContext("url", Redacted(opts.URL))
	}

	s := &PostgresRunStore{
		db:     db,
		schema: schema,
		runTag: opts.RunTag,
		logger: opts.Logger,
	}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// sanitizeSchema rejects schema names that cannot be safely
// interpolated into DDL.
func sanitizeSchema(schema string) (string, error) {
	if schema == "" {
		schema = "meterfill"
	}
	for _, r := range schema {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return "", fmt.Errorf("run store: invalid schema name %q", schema)
		}
	}
	if schema[0] >= '0' && schema[0] <= '9' {
		return "", fmt.Errorf("run store: invalid schema name %q", schema)
	}
	return schema, nil
}

func (s *PostgresRunStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, s.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.gapfill_runs (
			run_id      uuid PRIMARY KEY,
			run_tag     text NOT NULL DEFAULT '',
			started_at  timestamptz NOT NULL,
			duration_ms bigint NOT NULL,
			total       integer NOT NULL,
			resolved    integer NOT NULL,
			gaps        integer NOT NULL,
			site_count  integer NOT NULL
		)`, s.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.gapfill_resolutions (
			run_id       uuid NOT NULL REFERENCES %s.gapfill_runs(run_id) ON DELETE CASCADE,
			site_id      text NOT NULL,
			target_month text NOT NULL,
			outcome      text NOT NULL,
			value        double precision,
			rule         text NOT NULL DEFAULT '',
			explanation  text NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, site_id, target_month)
		)`, s.schema, s.schema),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("run store: ensure schema: %w", err)
		}
	}
	return nil
}

// SaveRun stores a batch run and all its resolutions in one
// transaction.
func (s *PostgresRunStore) SaveRun(ctx context.Context, result domain.BatchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("run store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.gapfill_runs
			(run_id, run_tag, started_at, duration_ms, total, resolved, gaps, site_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.schema),
		result.RunID,
		s.runTag,
		result.StartedAt,
		result.Duration.Milliseconds(),
		result.Summary.Total,
		result.Summary.Resolved,
		result.Summary.Gaps,
		result.Summary.SiteCount,
	)
	if err != nil {
		return fmt.Errorf("run store: insert run: %w", err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s.gapfill_resolutions
		(run_id, site_id, target_month, outcome, value, rule, explanation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.schema)

	for _, res := range result.Resolutions {
		var value sql.NullFloat64
		if res.IsResolved() {
			value = sql.NullFloat64{Float64: res.Value, Valid: true}
		}
		_, err = tx.ExecContext(ctx, insert,
			result.RunID,
			res.SiteID,
			res.TargetMonth.String(),
			string(res.Outcome),
			value,
			string(res.Rule),
			res.Explanation,
		)
		if err != nil {
			return fmt.Errorf("run store: insert resolution for %s %s: %w", res.SiteID, res.TargetMonth, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("run store: commit: %w", err)
	}

	s.logger.InfoContext(ctx, "batch run persisted",
		"run_id", result.RunID,
		"resolutions", len(result.Resolutions),
		"schema", s.schema,
	)
	return nil
}

// Close releases the database connection pool.
func (s *PostgresRunStore) Close() error {
	return s.db.Close()
}

// Redacted returns the URL with any password hidden, for logging.
func Redacted(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return url
	}
	return url[:scheme+3] + "***" + url[at:]
}
