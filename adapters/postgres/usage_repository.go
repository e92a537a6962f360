package postgres

import (
	"context"
	"time"

	"datalens/models"
	"datalens/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// UsageRepositoryImpl implements UsageRepository for PostgreSQL.
type UsageRepositoryImpl struct {
	db *sqlx.DB
}

// NewUsageRepository creates a new PostgreSQL usage repository.
func NewUsageRepository(db *sqlx.DB) *UsageRepositoryImpl {
	return &UsageRepositoryImpl{db: db}
}

var _ ports.UsageRepository = (*UsageRepositoryImpl)(nil)

// EnsureSchema creates the usage table when it does not exist yet.
func (r *UsageRepositoryImpl) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS question_usage (
			id UUID PRIMARY KEY,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			question_chars INTEGER NOT NULL,
			answer_chars INTEGER NOT NULL,
			latency_ms BIGINT NOT NULL,
			succeeded BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// RecordUsage inserts one question-answering call record.
func (r *UsageRepositoryImpl) RecordUsage(ctx context.Context, usage *models.QuestionUsage) error {
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO question_usage (
			id, provider, model, question_chars, answer_chars,
			latency_ms, succeeded, created_at
		) VALUES (
			:id, :provider, :model, :question_chars, :answer_chars,
			:latency_ms, :succeeded, :created_at
		)
	`, usage)
	return err
}

// RecentUsage retrieves the most recent usage records, newest first.
func (r *UsageRepositoryImpl) RecentUsage(ctx context.Context, limit int) ([]*models.QuestionUsage, error) {
	if limit <= 0 {
		limit = 20
	}
	var usages []*models.QuestionUsage
	err := r.db.SelectContext(ctx, &usages, `
		SELECT id, provider, model, question_chars, answer_chars,
		       latency_ms, succeeded, created_at
		FROM question_usage
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	return usages, err
}
