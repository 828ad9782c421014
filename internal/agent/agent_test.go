package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sabr2007/Neural-Inbox1/internal/extractor"
	"github.com/sabr2007/Neural-Inbox1/internal/models"
	"github.com/sabr2007/Neural-Inbox1/internal/storage"
)

// fakeExtractor feeds a canned raw response through the real schema
// validation, so tests exercise the same path as the OpenAI adapter.
type fakeExtractor struct {
	raw   string
	err   error
	block bool
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, ec extractor.Context, tier extractor.Tier) (*extractor.Output, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return extractor.ParseOutput(f.raw, ec)
}

// fakeEmbedder returns a deterministic vector per text.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	v := float32(len(text)%7 + 1)
	return []float32{v, 1, 0.5}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func newTestAgent(t *testing.T, store storage.Storage, ext extractor.Extractor) *Agent {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	return New(store, ext, &fakeEmbedder{}, extractor.DefaultSelectorConfig(), cfg, zap.NewNop())
}

func seedItem(t *testing.T, store storage.Storage, userID int64, item *models.Item) *models.Item {
	t.Helper()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.UserID = userID
	if item.Status == "" {
		item.Status = models.StatusInbox
	}
	if err := store.CreateItems(context.Background(), []*models.Item{item}); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func TestProcess_CreatesItemsAndLinks(t *testing.T) {
	store := storage.NewMemoryStorage()
	existing := seedItem(t, store, 7, &models.Item{
		Type: models.TypeNote, Title: "Hardware store list",
		Embedding: []float32{1, 1, 0.5},
	})

	ext := &fakeExtractor{raw: `{
		"items": [
			{"type": "task", "title": "Buy paint", "content": "Buy white paint", "tags": ["home"]},
			{"type": "task", "title": "Call mom", "tags": []}
		],
		"suggested_links": [
			{"new_item_index": 0, "existing_item_id": "` + existing.ID + `", "reason": "same errand"}
		]
	}`}

	a := newTestAgent(t, store, ext)
	result, err := a.Process(context.Background(), 7, "buy paint and call mom", models.SourceText)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	a.Wait()

	if result.Fallback {
		t.Error("unexpected fallback")
	}
	if len(result.ItemsCreated) != 2 {
		t.Fatalf("items = %d, want 2", len(result.ItemsCreated))
	}
	if len(result.LinksCreated) != 1 {
		t.Fatalf("links = %d, want 1", len(result.LinksCreated))
	}
	link := result.LinksCreated[0]
	if link.Confirmed {
		t.Error("agent link must start unconfirmed")
	}
	if link.Reason != "same errand" {
		t.Errorf("reason = %q", link.Reason)
	}

	// Embedding work must have flipped the items out of processing.
	for _, created := range result.ItemsCreated {
		got, err := store.GetItem(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("GetItem: %v", err)
		}
		if got.Status != models.StatusInbox {
			t.Errorf("item %q status = %s, want inbox", got.Title, got.Status)
		}
		if got.OriginalInput != "buy paint and call mom" {
			t.Errorf("original input not preserved: %q", got.OriginalInput)
		}
	}
}

func TestProcess_ChatOnlyInput(t *testing.T) {
	store := storage.NewMemoryStorage()
	ext := &fakeExtractor{raw: `{"items": [], "chat_response": "Happy to help!"}`}

	a := newTestAgent(t, store, ext)
	result, err := a.Process(context.Background(), 7, "Привет", models.SourceText)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.ItemsCreated) != 0 {
		t.Fatalf("items = %d, want 0", len(result.ItemsCreated))
	}
	if result.ChatResponse == "" {
		t.Fatal("expected a chat response")
	}
	if result.IsEmpty() {
		t.Fatal("a reply was produced, result must not be empty")
	}
}

func TestProcess_ExtractionFailureFallsBack(t *testing.T) {
	store := storage.NewMemoryStorage()
	ext := &fakeExtractor{err: errors.New("rate limited")}

	a := newTestAgent(t, store, ext)
	const input = "dentist tomorrow at noon"
	result, err := a.Process(context.Background(), 7, input, models.SourceText)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if !result.Fallback {
		t.Fatal("expected fallback result")
	}
	if len(result.ItemsCreated) != 1 {
		t.Fatalf("items = %d, want exactly 1", len(result.ItemsCreated))
	}
	note := result.ItemsCreated[0]
	if note.Type != models.TypeNote {
		t.Errorf("type = %s, want note", note.Type)
	}
	if note.Status != models.StatusInbox {
		t.Errorf("status = %s, want inbox", note.Status)
	}
	if note.Content != input || note.OriginalInput != input {
		t.Errorf("input not preserved verbatim: %q / %q", note.Content, note.OriginalInput)
	}
}

func TestProcess_DeadlineFallsBack(t *testing.T) {
	store := storage.NewMemoryStorage()
	ext := &fakeExtractor{block: true}

	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	a := New(store, ext, &fakeEmbedder{}, extractor.DefaultSelectorConfig(), cfg, zap.NewNop())

	const input = "a very slow thought"
	result, err := a.Process(context.Background(), 7, input, models.SourceText)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if !result.Fallback {
		t.Fatal("expected fallback result")
	}
	if len(result.ItemsCreated) != 1 || result.ItemsCreated[0].Content != input {
		t.Fatalf("fallback note missing or altered: %+v", result.ItemsCreated)
	}
}

func TestProcess_InvalidResponseFallsBack(t *testing.T) {
	store := storage.NewMemoryStorage()
	ext := &fakeExtractor{raw: `{"items": [{"type": "meeting", "title": "x"}]}`}

	a := newTestAgent(t, store, ext)
	result, err := a.Process(context.Background(), 7, "schedule the sync", models.SourceText)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Fallback {
		t.Fatal("invalid extraction must fall back, not partially create")
	}
}

func TestProcess_HallucinatedProjectNulled(t *testing.T) {
	store := storage.NewMemoryStorage()
	ext := &fakeExtractor{raw: `{
		"items": [{"type": "task", "title": "Buy tiles", "project_id": "ghost-project"}]
	}`}

	a := newTestAgent(t, store, ext)
	result, err := a.Process(context.Background(), 7, "buy tiles", models.SourceText)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.ItemsCreated[0].ProjectID != "" {
		t.Fatalf("project_id = %q, want empty", result.ItemsCreated[0].ProjectID)
	}
}

// failingStorage breaks the two direct context queries; combined with a
// failing embedder every context slice is down.
type failingStorage struct {
	*storage.MemoryStorage
}

func (f *failingStorage) ListProjects(ctx context.Context, userID int64) ([]*models.Project, error) {
	return nil, errors.New("projects down")
}

func (f *failingStorage) ListRecent(ctx context.Context, userID int64, limit int) ([]*models.Item, error) {
	return nil, errors.New("items down")
}

func TestProcess_AllContextSlicesFailFallsBack(t *testing.T) {
	store := &failingStorage{storage.NewMemoryStorage()}
	ext := &fakeExtractor{raw: `{"items": []}`}

	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	a := New(store, ext, &fakeEmbedder{err: errors.New("embeddings down")},
		extractor.DefaultSelectorConfig(), cfg, zap.NewNop())

	result, err := a.Process(context.Background(), 7, "remember this", models.SourceText)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Fallback {
		t.Fatal("expected fallback when all context fetches fail")
	}
}

func TestProcess_SingleContextSliceFailureDegrades(t *testing.T) {
	store := storage.NewMemoryStorage()
	ext := &fakeExtractor{raw: `{"items": [{"type": "idea", "title": "An app"}]}`}

	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	// The embedder is down, so the similar slice fails; the other two work.
	a := New(store, ext, &fakeEmbedder{err: errors.New("embeddings down")},
		extractor.DefaultSelectorConfig(), cfg, zap.NewNop())

	result, err := a.Process(context.Background(), 7, "an app idea", models.SourceText)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Fallback {
		t.Fatal("partial context must not trigger fallback")
	}
	if len(result.ItemsCreated) != 1 {
		t.Fatalf("items = %d, want 1", len(result.ItemsCreated))
	}
}

func TestCompleteItem_RecurringTaskAdvances(t *testing.T) {
	store := storage.NewMemoryStorage()
	a := newTestAgent(t, store, &fakeExtractor{})

	due := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	task := seedItem(t, store, 7, &models.Item{
		Type:   models.TypeTask,
		Status: models.StatusActive,
		Title:  "Water the plants",
		DueAt:  &due,
		Tags:   []string{"home"},
		Recurrence: &models.RecurrenceRule{
			Type: models.RecurrenceDaily, Interval: 1,
		},
	})

	result, err := a.CompleteItem(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("CompleteItem: %v", err)
	}
	a.Wait()

	if result.CompletedItem.Status != models.StatusDone || result.CompletedItem.CompletedAt == nil {
		t.Fatalf("completed item = %+v", result.CompletedItem)
	}
	next := result.NextOccurrence
	if next == nil {
		t.Fatal("expected a next occurrence")
	}
	want := time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC)
	if next.DueAt == nil || !next.DueAt.Equal(want) {
		t.Fatalf("next due = %v, want %v (anchored on due, not completion time)", next.DueAt, want)
	}
	if next.ID == task.ID {
		t.Error("successor must have a fresh id")
	}
	if next.Status != models.StatusActive || next.CompletedAt != nil {
		t.Errorf("successor = %+v, want active and uncompleted", next)
	}
	if next.Title != task.Title || next.Recurrence == nil {
		t.Errorf("successor must inherit title and rule: %+v", next)
	}
}

func TestCompleteItem_EndDateProducesNoSuccessor(t *testing.T) {
	store := storage.NewMemoryStorage()
	a := newTestAgent(t, store, &fakeExtractor{})

	due := time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	task := seedItem(t, store, 7, &models.Item{
		Type:   models.TypeTask,
		Status: models.StatusActive,
		Title:  "Monthly report",
		DueAt:  &due,
		Recurrence: &models.RecurrenceRule{
			Type: models.RecurrenceMonthly, Interval: 1, EndDate: &end,
		},
	})

	result, err := a.CompleteItem(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("CompleteItem: %v", err)
	}
	if result.NextOccurrence != nil {
		t.Fatalf("next = %+v, want nil past end date", result.NextOccurrence)
	}
}

func TestCompleteItem_AlreadyDoneIsNoOp(t *testing.T) {
	store := storage.NewMemoryStorage()
	a := newTestAgent(t, store, &fakeExtractor{})

	due := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	task := seedItem(t, store, 7, &models.Item{
		Type:   models.TypeTask,
		Status: models.StatusActive,
		Title:  "Water the plants",
		DueAt:  &due,
		Recurrence: &models.RecurrenceRule{
			Type: models.RecurrenceDaily, Interval: 1,
		},
	})

	if _, err := a.CompleteItem(context.Background(), task.ID); err != nil {
		t.Fatalf("first CompleteItem: %v", err)
	}

	result, err := a.CompleteItem(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("second CompleteItem: %v", err)
	}
	if result.NextOccurrence != nil {
		t.Fatal("re-completion must not advance the rule again")
	}
	if result.CompletedItem.Status != models.StatusDone {
		t.Fatalf("item = %+v, want done", result.CompletedItem)
	}
}

func TestCompleteItem_NonRecurringTask(t *testing.T) {
	store := storage.NewMemoryStorage()
	a := newTestAgent(t, store, &fakeExtractor{})

	task := seedItem(t, store, 7, &models.Item{
		Type: models.TypeTask, Status: models.StatusActive, Title: "One-off",
	})

	result, err := a.CompleteItem(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("CompleteItem: %v", err)
	}
	if result.NextOccurrence != nil {
		t.Fatal("non-recurring task must not produce a successor")
	}
}

func TestRelatedItems_FloorAndExplicit(t *testing.T) {
	store := storage.NewMemoryStorage()
	a := newTestAgent(t, store, &fakeExtractor{})
	ctx := context.Background()

	anchor := seedItem(t, store, 7, &models.Item{
		Type: models.TypeNote, Title: "anchor", Embedding: []float32{1, 0, 0},
	})
	near := seedItem(t, store, 7, &models.Item{
		Type: models.TypeNote, Title: "near", Embedding: []float32{0.95, 0.05, 0},
	})
	seedItem(t, store, 7, &models.Item{
		Type: models.TypeNote, Title: "noise", Embedding: []float32{0, 0, 1},
	})
	far := seedItem(t, store, 7, &models.Item{
		Type: models.TypeNote, Title: "far but linked", Embedding: []float32{0, 1, 0},
	})

	if _, err := store.CreateLink(ctx, &models.ItemLink{
		ID: uuid.New().String(), ItemID: anchor.ID, RelatedItemID: far.ID,
		LinkType: "related", Reason: "agent said so",
	}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	related, err := a.RelatedItems(ctx, anchor.ID)
	if err != nil {
		t.Fatalf("RelatedItems: %v", err)
	}

	if len(related.Inferred) != 1 || related.Inferred[0].Item.ID != near.ID {
		t.Fatalf("inferred = %+v, want only the near item", related.Inferred)
	}
	for _, n := range related.Inferred {
		if n.Score < 0.7 {
			t.Errorf("inferred neighbor below floor: %.2f", n.Score)
		}
	}
	if len(related.Explicit) != 1 || related.Explicit[0].Reason != "agent said so" {
		t.Fatalf("explicit = %+v, want the agent link with reason", related.Explicit)
	}
}
