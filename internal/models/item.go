package models

import (
	"time"
)

type ItemType string

const (
	TypeTask     ItemType = "task"
	TypeIdea     ItemType = "idea"
	TypeNote     ItemType = "note"
	TypeResource ItemType = "resource"
	TypeContact  ItemType = "contact"
)

// ValidType reports whether t is one of the five known item kinds.
func ValidType(t ItemType) bool {
	switch t {
	case TypeTask, TypeIdea, TypeNote, TypeResource, TypeContact:
		return true
	}
	return false
}

type ItemStatus string

const (
	StatusProcessing ItemStatus = "processing"
	StatusInbox      ItemStatus = "inbox"
	StatusActive     ItemStatus = "active"
	StatusDone       ItemStatus = "done"
	StatusArchived   ItemStatus = "archived"
)

type Source string

const (
	SourceText     Source = "text"
	SourceVoice    Source = "voice"
	SourceForward  Source = "forward"
	SourceDocument Source = "document"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ValidPriority reports whether p is a known priority ("" counts as unset).
func ValidPriority(p Priority) bool {
	switch p {
	case "", PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Item is a single structured knowledge record. status == done implies
// CompletedAt is set; only tasks ever carry a recurrence rule.
type Item struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"user_id"`
	Type          ItemType        `json:"type"`
	Status        ItemStatus      `json:"status"`
	Title         string          `json:"title"`
	Content       string          `json:"content,omitempty"`
	OriginalInput string          `json:"original_input,omitempty"`
	Source        Source          `json:"source,omitempty"`
	DueAt         *time.Time      `json:"due_at,omitempty"`
	DueAtRaw      string          `json:"due_at_raw,omitempty"`
	Priority      Priority        `json:"priority,omitempty"`
	ProjectID     string          `json:"project_id,omitempty"`
	Tags          []string        `json:"tags"`
	Recurrence    *RecurrenceRule `json:"recurrence,omitempty"`
	AttachmentID  string          `json:"attachment_file_id,omitempty"`
	Embedding     []float32       `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}
