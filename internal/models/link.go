package models

import "time"

// ItemLink is a directed relation between two items. The unordered pair
// (ItemID, RelatedItemID) is unique; Confidence is nil for agent-authored
// links and set for inferred ones.
type ItemLink struct {
	ID            string    `json:"id"`
	ItemID        string    `json:"item_id"`
	RelatedItemID string    `json:"related_item_id"`
	LinkType      string    `json:"link_type,omitempty"`
	Confidence    *float64  `json:"confidence,omitempty"`
	Confirmed     bool      `json:"confirmed"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
