package usage

import (
	"context"
	"time"

	"datalens/internal"
	"datalens/models"
	"datalens/ports"
)

// Ledger records question-answering usage. It is safe to construct with a
// nil repository, in which case every call is a no-op; the application runs
// without a database by default.
type Ledger struct {
	repo ports.UsageRepository
	log  *internal.Logger
}

// NewLedger creates a usage ledger over an optional repository.
func NewLedger(repo ports.UsageRepository) *Ledger {
	return &Ledger{repo: repo, log: internal.DefaultLogger}
}

// Enabled reports whether a backing repository is configured.
func (l *Ledger) Enabled() bool {
	return l != nil && l.repo != nil
}

// Record persists one usage entry. Failures are logged, never surfaced;
// bookkeeping must not fail the request that produced it.
func (l *Ledger) Record(ctx context.Context, model string, questionChars, answerChars int, latency time.Duration, succeeded bool) {
	if !l.Enabled() {
		return
	}
	entry := &models.QuestionUsage{
		Provider:      "openrouter",
		Model:         model,
		QuestionChars: questionChars,
		AnswerChars:   answerChars,
		LatencyMs:     latency.Milliseconds(),
		Succeeded:     succeeded,
	}
	if err := l.repo.RecordUsage(ctx, entry); err != nil {
		l.log.Warn("failed to record usage: %v", err)
	}
}

// Recent returns the latest usage entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*models.QuestionUsage, error) {
	if !l.Enabled() {
		return []*models.QuestionUsage{}, nil
	}
	return l.repo.RecentUsage(ctx, limit)
}
