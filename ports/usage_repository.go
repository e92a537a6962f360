package ports

import (
	"context"

	"datalens/models"
)

// UsageRepository defines persistence for question-answering usage records.
type UsageRepository interface {
	RecordUsage(ctx context.Context, usage *models.QuestionUsage) error
	RecentUsage(ctx context.Context, limit int) ([]*models.QuestionUsage, error)
}
