package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/exercise-submitter/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository connects to PostgreSQL and applies pending migrations
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 10
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Record inserts a submission record
func (r *PostgresRepository) Record(ctx context.Context, rec *models.SubmissionRecord) error {
	prepareRecord(rec)

	query := `
		INSERT INTO submissions (id, user_id, exercise, target_url, target_path, state, failure, revision, source_files, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Exercise,
		rec.TargetURL,
		rec.TargetPath,
		nullString(string(rec.State)),
		nullString(rec.Failure),
		rec.Revision,
		rec.SourceFiles,
		rec.Message,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}

	return nil
}

// Get retrieves a submission record by ID
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.SubmissionRecord, error) {
	query := `
		SELECT id, user_id, exercise, target_url, target_path, state, failure, revision, source_files, message, created_at
		FROM submissions
		WHERE id = $1
	`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return rec, nil
}

// List retrieves submission records newest first
func (r *PostgresRepository) List(ctx context.Context, filters models.ListFilters) ([]*models.SubmissionRecord, error) {
	query := `
		SELECT id, user_id, exercise, target_url, target_path, state, failure, revision, source_files, message, created_at
		FROM submissions
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filters.UserID)
		argNum++
	}

	if filters.Exercise != "" {
		query += fmt.Sprintf(" AND exercise = $%d", argNum)
		args = append(args, filters.Exercise)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var records []*models.SubmissionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return records, nil
}

func scanRecord(row pgx.Row) (*models.SubmissionRecord, error) {
	var rec models.SubmissionRecord
	var state, failure sql.NullString

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Exercise,
		&rec.TargetURL,
		&rec.TargetPath,
		&state,
		&failure,
		&rec.Revision,
		&rec.SourceFiles,
		&rec.Message,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.State = models.OutcomeState(state.String)
	rec.Failure = failure.String
	return &rec, nil
}

// prepareRecord assigns the generated fields of a new record
func prepareRecord(rec *models.SubmissionRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
