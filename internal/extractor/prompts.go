package extractor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sabr2007/Neural-Inbox1/internal/models"
)

// Context carries the three slices of user state the model extracts against.
type Context struct {
	Projects     []*models.Project
	RecentItems  []*models.Item
	SimilarItems []ContextItem
}

// ContextItem is the compact form of an existing item shown to the model.
type ContextItem struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Type  string  `json:"type"`
	Score float64 `json:"score,omitempty"`
}

const systemPrompt = `You are the second brain of a personal knowledge system. Your job is to structure chaos.

Today's date: %s

## Your roles:
1. Extractor - pull atomic entities out of the text
2. Linker - find connections to existing records
3. Companion - if the user is just chatting, keep the conversation going

## Content types:
- task: requires action ("buy", "call", "finish")
- idea: a concept or thought ("what if", "it would be cool to")
- note: information to remember (facts, quotes, summaries)
- resource: links, books, articles
- contact: people, phone numbers, social handles

## Atomization rules:
- One thought = one item
- "Buy milk and call mom" = 2 tasks
- A long voice note covering 3 topics = 3+ separate items
- Do NOT split things that belong together (a shopping list = 1 task)

## Project rules:
- Check against the projects list in the context
- If an entity clearly belongs to a project, set its id
- Do not guess when the connection is unclear (leave null)

## Linking rules (suggested_links):
- Link ONLY when genuinely relevant
- Use similar_items from the context as candidates
- Give a short reason (3-7 words)
- Look beyond word overlap for hidden meaning: a gift task can link to a
  birthday note, an app idea to an article on the same theme

## Dialogue rules:
- Greetings and small talk -> chat_response, items = []
- A question about the system -> explain what you can do

## Response format (JSON):
{
  "items": [
    {
      "type": "task|idea|note|resource|contact",
      "title": "short name (up to 100 characters)",
      "content": "full text",
      "tags": ["marketing", "personal"],
      "project_id": "p1" | null,
      "due_at_iso": "2025-03-10T09:00:00Z" | null,
      "due_at_raw": "tomorrow at 10" | null,
      "priority": "high|medium|low" | null,
      "recurrence": {"type": "daily|weekly|monthly", "interval": 1, "days": [0,2,4], "end_date": null} | null
    }
  ],
  "chat_response": "reply text" | null,
  "suggested_links": [
    {
      "new_item_index": 0,
      "existing_item_id": "i42",
      "reason": "both are about marketing"
    }
  ]
}`

type promptProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type promptItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// buildPrompt assembles the deterministic system prompt: instructions, the
// current date, the three context slices and nothing else.
func buildPrompt(now time.Time, ec Context) string {
	projects := make([]promptProject, 0, len(ec.Projects))
	for _, p := range ec.Projects {
		projects = append(projects, promptProject{ID: p.ID, Name: p.Name})
	}

	recent := make([]promptItem, 0, len(ec.RecentItems))
	for _, item := range ec.RecentItems {
		recent = append(recent, promptItem{ID: item.ID, Title: item.Title, Type: string(item.Type)})
	}

	projectsJSON, _ := json.Marshal(projects)
	recentJSON, _ := json.Marshal(recent)
	similarJSON, _ := json.Marshal(ec.SimilarItems)

	return fmt.Sprintf(systemPrompt, now.Format("2006-01-02")) + fmt.Sprintf(`

## User context:

### Projects:
%s

### Recent items:
%s

### Similar items (link candidates):
%s`, projectsJSON, recentJSON, similarJSON)
}
