package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sashabaranov/go-openai"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
)

const ReportHeader = "📦 *SUPPLY CHAIN CONSOLIDATED REPORT*"

// Composer turns a set of decisions into one human readable report body.
type Composer interface {
	Compose(ctx context.Context, decisions []contracts.AlertDecision) (string, error)
}

// TemplateComposer renders a fixed layout. It never fails, which makes it
// the fallback when the language model is unavailable.
type TemplateComposer struct{}

func (TemplateComposer) Compose(_ context.Context, decisions []contracts.AlertDecision) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%d new supply chain conflict(s):\n", len(decisions))
	for _, d := range decisions {
		fmt.Fprintf(&b, "- %s → %s: stockout %s, disruption until %s (gap %dd, %s). %s\n",
			markdown(d.VesselID),
			markdown(d.Category.Display()),
			d.DepletionDate.Format("2006-01-02"),
			d.DisruptionEnd.Format("2006-01-02"),
			d.LeadTimeGapDays(),
			d.Severity,
			markdown(d.RecommendedAction),
		)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// markdown escapes a field for the legacy Markdown parse mode the report is
// sent with.
func markdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type OpenAIComposer struct {
	client chatCompleter
	model  string
}

// NewOpenAIComposer builds a composer against the chat completions API.
// baseURL may be empty to use the public endpoint.
func NewOpenAIComposer(apiKey, model, baseURL string) *OpenAIComposer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIComposer{client: openai.NewClientWithConfig(cfg), model: model}
}

type conflict struct {
	Ship          string `json:"ship"`
	Category      string `json:"category"`
	DepletionDate string `json:"depletion_date"`
	DisruptionEnd string `json:"disruption_end"`
	GapDays       int    `json:"lead_time_gap_days"`
	Severity      string `json:"severity"`
}

func (c *OpenAIComposer) Compose(ctx context.Context, decisions []contracts.AlertDecision) (string, error) {
	prompt, err := buildPrompt(decisions)
	if err != nil {
		return "", err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("chat completion returned empty content")
	}
	return text, nil
}

func buildPrompt(decisions []contracts.AlertDecision) (string, error) {
	conflicts := make([]conflict, 0, len(decisions))
	for _, d := range decisions {
		conflicts = append(conflicts, conflict{
			Ship:          d.VesselID,
			Category:      d.Category.Display(),
			DepletionDate: d.DepletionDate.Format("2006-01-02"),
			DisruptionEnd: d.DisruptionEnd.Format("2006-01-02"),
			GapDays:       d.LeadTimeGapDays(),
			Severity:      string(d.Severity),
		})
	}
	payload, err := json.Marshal(conflicts)
	if err != nil {
		return "", fmt.Errorf("marshal conflicts: %w", err)
	}

	return fmt.Sprintf(`Analyze these supply chain conflicts: %s

Context:
- Critical maritime delays are scaled to a 7-14 day downstream disruption.
- Processing (customs + distribution) adds 5 more days.
- Each listed category runs out of stock before its replacement arrives.

Task:
1. Write a 5-line executive report.
2. Detect the language used in the surroundings (default to English).
3. Explain why the stockout is inevitable due to the combined delay.
4. Suggest a mitigation strategy.`, payload), nil
}
