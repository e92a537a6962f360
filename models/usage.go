package models

import (
	"time"

	"github.com/google/uuid"
)

// QuestionUsage represents a single AI question-answering call.
type QuestionUsage struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Provider      string    `json:"provider" db:"provider"`
	Model         string    `json:"model" db:"model"`
	QuestionChars int       `json:"question_chars" db:"question_chars"`
	AnswerChars   int       `json:"answer_chars" db:"answer_chars"`
	LatencyMs     int64     `json:"latency_ms" db:"latency_ms"`
	Succeeded     bool      `json:"succeeded" db:"succeeded"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
