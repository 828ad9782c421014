package agent

import (
	"time"

	"github.com/sabr2007/Neural-Inbox1/internal/models"
	"github.com/sabr2007/Neural-Inbox1/internal/storage"
)

// AgentResult is the transient outcome of one processed input. It is never
// persisted.
type AgentResult struct {
	ItemsCreated   []*models.Item
	LinksCreated   []*models.ItemLink
	ChatResponse   string
	Fallback       bool
	ProcessingTime time.Duration
}

// IsEmpty reports whether the input produced neither items nor a reply.
func (r *AgentResult) IsEmpty() bool {
	return len(r.ItemsCreated) == 0 && r.ChatResponse == ""
}

// Completion is the outcome of completing an item: the completed record and,
// for recurring tasks, the freshly created next occurrence.
type Completion struct {
	CompletedItem  *models.Item
	NextOccurrence *models.Item
}

// Related merges the two relationship views of an item. The sets are not
// deduplicated against each other; the presentation layer decides how to
// merge.
type Related struct {
	Inferred []storage.ScoredItem
	Explicit []*models.ItemLink
}
