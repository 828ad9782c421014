package extractor

import (
	"errors"
	"strings"
	"testing"

	"github.com/sabr2007/Neural-Inbox1/internal/models"
)

func testContext() Context {
	return Context{
		Projects: []*models.Project{
			{ID: "p1", Name: "Renovation"},
		},
		RecentItems: []*models.Item{
			{ID: "i1", Title: "Paint the hallway", Type: models.TypeTask},
		},
		SimilarItems: []ContextItem{
			{ID: "i2", Title: "Hardware store list", Type: "note", Score: 0.81},
		},
	}
}

func TestParseOutput_ValidResponse(t *testing.T) {
	raw := `{
		"items": [
			{"type": "task", "title": "Buy paint", "content": "Buy white paint", "tags": ["home"],
			 "project_id": "p1", "due_at_iso": "2025-03-10T09:00:00Z", "due_at_raw": "by Monday"}
		],
		"chat_response": null,
		"suggested_links": [
			{"new_item_index": 0, "existing_item_id": "i2", "reason": "same shopping trip"}
		]
	}`

	out, err := ParseOutput(raw, testContext())
	if err != nil {
		t.Fatalf("ParseOutput: %v", err)
	}
	if len(out.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(out.Items))
	}
	item := out.Items[0]
	if item.ProjectID != "p1" {
		t.Errorf("project_id = %q, want p1", item.ProjectID)
	}
	if item.DueAt == nil || item.DueAt.Day() != 10 {
		t.Errorf("due_at not parsed: %v", item.DueAt)
	}
	if len(out.SuggestedLinks) != 1 {
		t.Fatalf("links = %d, want 1", len(out.SuggestedLinks))
	}
}

func TestParseOutput_UnknownTypeFails(t *testing.T) {
	raw := `{"items": [{"type": "event", "title": "Standup"}]}`
	if _, err := ParseOutput(raw, testContext()); !errors.Is(err, ErrInvalidExtraction) {
		t.Fatalf("err = %v, want ErrInvalidExtraction", err)
	}
}

func TestParseOutput_EmptyTitleFails(t *testing.T) {
	raw := `{"items": [{"type": "note", "title": "   "}]}`
	if _, err := ParseOutput(raw, testContext()); !errors.Is(err, ErrInvalidExtraction) {
		t.Fatalf("err = %v, want ErrInvalidExtraction", err)
	}
}

func TestParseOutput_MalformedJSONFails(t *testing.T) {
	if _, err := ParseOutput("not json at all", testContext()); !errors.Is(err, ErrInvalidExtraction) {
		t.Fatalf("err = %v, want ErrInvalidExtraction", err)
	}
}

func TestParseOutput_LongTitleTruncated(t *testing.T) {
	raw := `{"items": [{"type": "note", "title": "` + strings.Repeat("x", 150) + `"}]}`
	out, err := ParseOutput(raw, testContext())
	if err != nil {
		t.Fatalf("ParseOutput: %v", err)
	}
	if got := len([]rune(out.Items[0].Title)); got != 100 {
		t.Fatalf("title length = %d, want 100", got)
	}
}

func TestParseOutput_HallucinatedProjectNulled(t *testing.T) {
	raw := `{"items": [{"type": "task", "title": "Buy paint", "project_id": "p999"}]}`
	out, err := ParseOutput(raw, testContext())
	if err != nil {
		t.Fatalf("ParseOutput: %v", err)
	}
	if out.Items[0].ProjectID != "" {
		t.Fatalf("project_id = %q, want empty", out.Items[0].ProjectID)
	}
}

func TestParseOutput_UnknownLinkTargetDropped(t *testing.T) {
	raw := `{
		"items": [{"type": "task", "title": "Buy paint"}],
		"suggested_links": [
			{"new_item_index": 0, "existing_item_id": "i999", "reason": "made up"},
			{"new_item_index": 5, "existing_item_id": "i1", "reason": "bad index"},
			{"new_item_index": 0, "existing_item_id": "i1", "reason": "valid"}
		]
	}`
	out, err := ParseOutput(raw, testContext())
	if err != nil {
		t.Fatalf("ParseOutput: %v", err)
	}
	if len(out.SuggestedLinks) != 1 || out.SuggestedLinks[0].Reason != "valid" {
		t.Fatalf("links = %+v, want only the valid one", out.SuggestedLinks)
	}
}

func TestParseOutput_RecurrenceStrippedFromNonTask(t *testing.T) {
	raw := `{
		"items": [
			{"type": "note", "title": "Gym schedule",
			 "recurrence": {"type": "weekly", "interval": 1, "days": [0, 2, 4]}},
			{"type": "task", "title": "Go to the gym",
			 "recurrence": {"type": "weekly", "interval": 1, "days": [0, 2, 4]}}
		]
	}`
	out, err := ParseOutput(raw, testContext())
	if err != nil {
		t.Fatalf("ParseOutput: %v", err)
	}
	if out.Items[0].Recurrence != nil {
		t.Error("note kept a recurrence rule")
	}
	if out.Items[1].Recurrence == nil {
		t.Error("task lost its recurrence rule")
	}
}

func TestParseOutput_ChatOnly(t *testing.T) {
	raw := `{"items": [], "chat_response": "Hi! Send me anything to capture."}`
	out, err := ParseOutput(raw, testContext())
	if err != nil {
		t.Fatalf("ParseOutput: %v", err)
	}
	if len(out.Items) != 0 || out.ChatResponse == "" {
		t.Fatalf("out = %+v, want chat-only", out)
	}
}
