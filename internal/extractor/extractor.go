// Package extractor turns raw user text plus gathered context into
// structured extraction output via a language-understanding call, and picks
// the capability tier for that call.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sabr2007/Neural-Inbox1/internal/models"
)

const maxTitleRunes = 100

// ErrInvalidExtraction marks a model response that failed schema validation.
// Callers treat it the same as any other extraction failure.
var ErrInvalidExtraction = errors.New("invalid extraction response")

// ExtractedItem is one record the model pulled out of the input.
type ExtractedItem struct {
	Type       models.ItemType        `json:"type"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	Tags       []string               `json:"tags"`
	ProjectID  string                 `json:"project_id"`
	DueAtISO   string                 `json:"due_at_iso"`
	DueAtRaw   string                 `json:"due_at_raw"`
	Priority   models.Priority        `json:"priority"`
	Recurrence *models.RecurrenceRule `json:"recurrence"`

	// DueAt is populated during validation from DueAtISO.
	DueAt *time.Time `json:"-"`
}

// SuggestedLink ties a freshly extracted item (by index) to an existing one.
type SuggestedLink struct {
	NewItemIndex   int    `json:"new_item_index"`
	ExistingItemID string `json:"existing_item_id"`
	Reason         string `json:"reason"`
}

// Output is the validated result of one extraction call.
type Output struct {
	Items          []ExtractedItem `json:"items"`
	ChatResponse   string          `json:"chat_response"`
	SuggestedLinks []SuggestedLink `json:"suggested_links"`
}

// Extractor invokes the language-understanding capability.
type Extractor interface {
	Extract(ctx context.Context, text string, ec Context, tier Tier) (*Output, error)
}

// OpenAIExtractor implements Extractor over the OpenAI chat completions API
// with strict JSON response parsing.
type OpenAIExtractor struct {
	client       *openai.Client
	fastModel    string
	capableModel string
	maxTokens    int
	temperature  float32
	logger       *zap.Logger
}

func NewOpenAIExtractor(apiKey, fastModel, capableModel string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIExtractor {
	return &OpenAIExtractor{
		client:       openai.NewClient(apiKey),
		fastModel:    fastModel,
		capableModel: capableModel,
		maxTokens:    maxTokens,
		temperature:  float32(temperature),
		logger:       logger,
	}
}

func (e *OpenAIExtractor) model(tier Tier) string {
	if tier == TierCapable {
		return e.capableModel
	}
	return e.fastModel
}

func (e *OpenAIExtractor) Extract(ctx context.Context, text string, ec Context, tier Tier) (*Output, error) {
	prompt := buildPrompt(time.Now(), ec)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model(tier),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrInvalidExtraction)
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	out, err := ParseOutput(raw, ec)
	if err != nil {
		e.logger.Error("Extraction response failed validation",
			zap.Error(err),
			zap.String("model", e.model(tier)))
		return nil, err
	}
	return out, nil
}

// ParseOutput parses the raw model response and enforces the schema: unknown
// item kinds or empty titles fail the whole call; hallucinated project ids
// are nulled; links to ids outside the supplied context are dropped
// silently; recurrence rules on non-tasks are stripped.
func ParseOutput(raw string, ec Context) (*Output, error) {
	out := &Output{}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}

	knownProjects := make(map[string]bool, len(ec.Projects))
	for _, p := range ec.Projects {
		knownProjects[p.ID] = true
	}
	knownItems := make(map[string]bool, len(ec.RecentItems)+len(ec.SimilarItems))
	for _, item := range ec.RecentItems {
		knownItems[item.ID] = true
	}
	for _, item := range ec.SimilarItems {
		knownItems[item.ID] = true
	}

	for i := range out.Items {
		item := &out.Items[i]

		if !models.ValidType(item.Type) {
			return nil, fmt.Errorf("%w: unknown item type %q", ErrInvalidExtraction, item.Type)
		}

		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			return nil, fmt.Errorf("%w: item %d has an empty title", ErrInvalidExtraction, i)
		}
		if runes := []rune(item.Title); len(runes) > maxTitleRunes {
			item.Title = string(runes[:maxTitleRunes])
		}

		if !models.ValidPriority(item.Priority) {
			item.Priority = ""
		}

		// Never trust a project id the context did not supply.
		if item.ProjectID != "" && !knownProjects[item.ProjectID] {
			item.ProjectID = ""
		}

		if item.DueAtISO != "" {
			if due, err := time.Parse(time.RFC3339, item.DueAtISO); err == nil {
				item.DueAt = &due
			}
		}

		// Only tasks may recur.
		if item.Recurrence != nil && (item.Type != models.TypeTask || !item.Recurrence.Valid()) {
			item.Recurrence = nil
		}

		if item.Tags == nil {
			item.Tags = []string{}
		}
	}

	kept := out.SuggestedLinks[:0]
	for _, link := range out.SuggestedLinks {
		if link.NewItemIndex < 0 || link.NewItemIndex >= len(out.Items) {
			continue
		}
		if link.ExistingItemID == "" || !knownItems[link.ExistingItemID] {
			continue
		}
		kept = append(kept, link)
	}
	out.SuggestedLinks = kept

	return out, nil
}
