package agent

import (
	"context"
	"fmt"
)

// RelatedItems returns the two relationship views for an item: inferred =
// nearest neighbors above the similarity floor, explicit = all agent-written
// links where the item is either endpoint.
func (a *Agent) RelatedItems(ctx context.Context, itemID string) (*Related, error) {
	inferred, err := a.storage.FindSimilar(ctx, itemID, a.cfg.RelatedLimit, a.cfg.RelatedFloor)
	if err != nil {
		return nil, fmt.Errorf("finding similar items: %w", err)
	}

	explicit, err := a.storage.ListLinks(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}

	return &Related{Inferred: inferred, Explicit: explicit}, nil
}
