package insight

import (
	"context"
	"errors"
	"testing"

	"datalens/adapters/llm"
	"datalens/domain/dataset"
	"datalens/internal/analyzer"
	"datalens/internal/config"
	"datalens/internal/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aiConfig() config.AIConfig {
	return config.AIConfig{
		Model:     "meta-llama/llama-3.3-8b-instruct:free",
		MaxTokens: 1024,
	}
}

func questionDataset(t *testing.T) (*dataset.Dataset, *analyzer.Stats) {
	t.Helper()
	ds := &dataset.Dataset{
		Columns: []string{"price", "qty", "region"},
		Rows: []dataset.Record{
			{"price": 10.0, "qty": 1.0, "region": "north"},
			{"price": 20.0, "qty": 2.0, "region": "south"},
			{"price": 30.0, "qty": 3.0, "region": "north"},
			{"price": 40.0, "qty": 4.0, "region": nil},
		},
		ColumnTypes: map[string]dataset.ColumnType{
			"price":  dataset.TypeNumeric,
			"qty":    dataset.TypeNumeric,
			"region": dataset.TypeCategorical,
		},
	}
	stats, err := analyzer.New().Compute(context.Background(), ds)
	require.NoError(t, err)
	return ds, stats
}

func TestAskReturnsAnswerWithTimingAndModel(t *testing.T) {
	client := &llm.MockLLMClient{Response: "Prices range from **10 to 40**."}
	svc := NewService(client, usage.NewLedger(nil), aiConfig())

	ds, stats := questionDataset(t)
	answer := svc.Ask(context.Background(), ds, stats, "What is the price range?", "")

	assert.Equal(t, "Prices range from **10 to 40**.", answer.Answer)
	assert.Contains(t, answer.AnswerHTML, "<strong>10 to 40</strong>")
	assert.Equal(t, "meta-llama/llama-3.3-8b-instruct:free", answer.ModelUsed)
	assert.GreaterOrEqual(t, answer.ProcessingTime, 0.0)
}

func TestAskDegradesToFriendlyAnswerOnUpstreamFailure(t *testing.T) {
	client := &llm.MockLLMClient{Error: errors.New("http 503")}
	svc := NewService(client, usage.NewLedger(nil), aiConfig())

	ds, stats := questionDataset(t)
	answer := svc.Ask(context.Background(), ds, stats, "anything", "")

	assert.Equal(t, fallbackAnswer, answer.Answer)
	assert.NotEmpty(t, answer.AnswerHTML)
	assert.NotEmpty(t, answer.ModelUsed)
}

func TestAskRejectsUnknownModel(t *testing.T) {
	client := &llm.MockLLMClient{Response: "ok"}
	svc := NewService(client, usage.NewLedger(nil), aiConfig())

	ds, stats := questionDataset(t)
	answer := svc.Ask(context.Background(), ds, stats, "q", "evil/unlisted-model")

	assert.Equal(t, "meta-llama/llama-3.3-8b-instruct:free", answer.ModelUsed)
	assert.Equal(t, "meta-llama/llama-3.3-8b-instruct:free", client.LastModel)
}

func TestAskHonorsAllowlistedModel(t *testing.T) {
	client := &llm.MockLLMClient{Response: "ok"}
	svc := NewService(client, usage.NewLedger(nil), aiConfig())

	ds, stats := questionDataset(t)
	answer := svc.Ask(context.Background(), ds, stats, "q", "qwen/qwen3-0.6b-04-28:free")

	assert.Equal(t, "qwen/qwen3-0.6b-04-28:free", answer.ModelUsed)
}

func TestPromptCarriesDatasetContext(t *testing.T) {
	client := &llm.MockLLMClient{Response: "ok"}
	svc := NewService(client, usage.NewLedger(nil), aiConfig())

	ds, stats := questionDataset(t)
	svc.Ask(context.Background(), ds, stats, "Which region sells most?", "")

	prompt := client.LastPrompt
	assert.Contains(t, prompt, "4 rows, 3 columns")
	assert.Contains(t, prompt, "price (numeric)")
	assert.Contains(t, prompt, "range 10 to 40")
	assert.Contains(t, prompt, "region (categorical)")
	assert.Contains(t, prompt, "price - qty: r=1.00")
	assert.Contains(t, prompt, "Sample rows:")
	assert.Contains(t, prompt, "Question: Which region sells most?")
	// Only the first rows are sampled.
	assert.NotContains(t, prompt, "price=40")
}

func TestModelsCatalog(t *testing.T) {
	svc := NewService(&llm.MockLLMClient{}, usage.NewLedger(nil), aiConfig())

	catalog := svc.Models()
	assert.Len(t, catalog.Models, 3)
	assert.Contains(t, catalog.Models, "microsoft/phi-4-reasoning-plus:free")
	assert.Equal(t, "meta-llama/llama-3.3-8b-instruct:free", catalog.Default)
}

func TestRenderHTML(t *testing.T) {
	out := renderHTML("## Summary\n\n- one\n- two")
	assert.Contains(t, out, "<h2")
	assert.Contains(t, out, "<li>one</li>")
}
