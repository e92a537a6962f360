package insight

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"datalens/domain/dataset"
	"datalens/internal"
	"datalens/internal/analyzer"
	"datalens/internal/config"
	"datalens/internal/usage"
	"datalens/ports"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// allowedModels is the set of models a client may request.
var allowedModels = []string{
	"microsoft/phi-4-reasoning-plus:free",
	"meta-llama/llama-3.3-8b-instruct:free",
	"qwen/qwen3-0.6b-04-28:free",
}

const fallbackAnswer = "I'm sorry, I couldn't process your question right now. " +
	"The analysis service may be busy. Please try again in a moment."

const (
	maxSampleRows       = 3
	maxPromptCorrs      = 5
	maxCategoricalShown = 10
)

// Answer is the response to one dataset question.
type Answer struct {
	Answer         string  `json:"answer"`
	AnswerHTML     string  `json:"answer_html"`
	ModelUsed      string  `json:"model_used"`
	ProcessingTime float64 `json:"processing_time"`
}

// ModelCatalog lists the requestable models and the default.
type ModelCatalog struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}

// Service answers natural-language questions about the loaded dataset.
type Service struct {
	client ports.LLMClient
	ledger *usage.Ledger
	cfg    config.AIConfig
	log    *internal.Logger
}

// NewService creates the question-answering service.
func NewService(client ports.LLMClient, ledger *usage.Ledger, cfg config.AIConfig) *Service {
	return &Service{
		client: client,
		ledger: ledger,
		cfg:    cfg,
		log:    internal.DefaultLogger,
	}
}

// Models returns the requestable model catalog.
func (s *Service) Models() ModelCatalog {
	models := append([]string(nil), allowedModels...)
	return ModelCatalog{Models: models, Default: s.resolveModel("")}
}

// Ask builds a dataset-grounded prompt and queries the model. Upstream
// failures degrade to a friendly canned answer rather than an error; the
// user asked a question and gets a sentence back either way.
func (s *Service) Ask(ctx context.Context, ds *dataset.Dataset, stats *analyzer.Stats, question, requestedModel string) *Answer {
	model := s.resolveModel(requestedModel)
	prompt := buildPrompt(ds, stats, question)

	start := time.Now()
	text, err := s.client.ChatCompletion(ctx, model, prompt, s.cfg.MaxTokens)
	elapsed := time.Since(start)

	succeeded := err == nil
	if err != nil {
		s.log.Warn("question answering failed: %v", err)
		text = fallbackAnswer
	}
	if s.ledger != nil {
		s.ledger.Record(ctx, model, len(question), len(text), elapsed, succeeded)
	}

	return &Answer{
		Answer:         text,
		AnswerHTML:     renderHTML(text),
		ModelUsed:      model,
		ProcessingTime: math.Round(elapsed.Seconds()*100) / 100,
	}
}

// resolveModel maps a requested model onto the allowlist, falling back to
// the configured default for unknown or empty requests.
func (s *Service) resolveModel(requested string) string {
	requested = strings.TrimSpace(requested)
	for _, m := range allowedModels {
		if m == requested {
			return m
		}
	}
	for _, m := range allowedModels {
		if m == s.cfg.Model {
			return m
		}
	}
	return "meta-llama/llama-3.3-8b-instruct:free"
}

// buildPrompt renders the dataset context the model answers from: shape,
// per-column profiles, the strongest correlations and a few sample rows.
func buildPrompt(ds *dataset.Dataset, stats *analyzer.Stats, question string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dataset: %d rows, %d columns.\n\n", stats.RowCount, stats.ColumnCount)

	b.WriteString("Columns:\n")
	for _, col := range stats.Columns {
		fmt.Fprintf(&b, "- %s (%s): %d missing (%.1f%%)", col.Name, col.Type, col.MissingValues, col.MissingPercentage)
		switch dataset.ColumnType(col.Type) {
		case dataset.TypeNumeric:
			if summary, err := analyzer.NumericSummary(ds.NumericColumn(col.Name)); err == nil {
				fmt.Fprintf(&b, "; range %s to %s, mean %s, median %s",
					trimFloat(summary.Min), trimFloat(summary.Max),
					trimFloat(summary.Mean), trimFloat(summary.Median))
			}
		case dataset.TypeCategorical:
			values := distinctStrings(ds, col.Name)
			fmt.Fprintf(&b, "; %d distinct values", len(values))
			if len(values) > 0 && len(values) <= maxCategoricalShown {
				fmt.Fprintf(&b, " (%s)", strings.Join(values, ", "))
			}
		}
		b.WriteString("\n")
	}

	if len(stats.Correlations) > 0 {
		b.WriteString("\nStrongest correlations:\n")
		for i, corr := range stats.Correlations {
			if i >= maxPromptCorrs {
				break
			}
			fmt.Fprintf(&b, "- %s: r=%.2f\n", corr.Columns, corr.Value)
		}
	}

	if ds.RowCount() > 0 {
		b.WriteString("\nSample rows:\n")
		for i, row := range ds.Rows {
			if i >= maxSampleRows {
				break
			}
			parts := make([]string, len(ds.Columns))
			for j, col := range ds.Columns {
				parts[j] = fmt.Sprintf("%s=%s", col, dataset.Stringify(row[col]))
			}
			fmt.Fprintf(&b, "- %s\n", strings.Join(parts, ", "))
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n", question)
	return b.String()
}

func distinctStrings(ds *dataset.Dataset, col string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range ds.Rows {
		s, ok := row[col].(string)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func trimFloat(v float64) string {
	return dataset.Stringify(math.Round(v*100) / 100)
}

// renderHTML converts a markdown answer to HTML for direct display.
// Parser instances are single-use.
func renderHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return string(markdown.ToHTML([]byte(md), p, renderer))
}
