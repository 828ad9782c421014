package agent

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sabr2007/Neural-Inbox1/internal/extractor"
	"github.com/sabr2007/Neural-Inbox1/internal/models"
)

const linkReasonLimit = 200

// persist batch-inserts the extracted items (all-or-nothing), dispatches
// embedding computation for them, and materializes the suggested links.
// Embedding and link failures are logged, not propagated: item creation is
// the primary user-visible effect and has already succeeded.
func (a *Agent) persist(ctx context.Context, userID int64, originalText string, source models.Source, out *extractor.Output) ([]*models.Item, []*models.ItemLink, error) {
	items := make([]*models.Item, 0, len(out.Items))
	for _, ex := range out.Items {
		content := ex.Content
		if content == "" {
			content = originalText
		}
		items = append(items, &models.Item{
			ID:            uuid.New().String(),
			UserID:        userID,
			Type:          ex.Type,
			Status:        models.StatusProcessing,
			Title:         ex.Title,
			Content:       content,
			OriginalInput: originalText,
			Source:        source,
			DueAt:         ex.DueAt,
			DueAtRaw:      ex.DueAtRaw,
			Priority:      ex.Priority,
			ProjectID:     ex.ProjectID,
			Tags:          ex.Tags,
			Recurrence:    ex.Recurrence,
		})
	}

	if err := a.storage.CreateItems(ctx, items); err != nil {
		return nil, nil, err
	}

	a.scheduleEmbeddings(ctx, items)
	links := a.createLinks(ctx, items, out.SuggestedLinks)
	return items, links, nil
}

// scheduleEmbeddings dispatches embedding computation without the caller
// waiting. Items become inbox (and eligible for similarity search) once
// their vector is stored; failures leave them in processing for a later
// repair pass.
func (a *Agent) scheduleEmbeddings(ctx context.Context, items []*models.Item) {
	a.background.Add(1)
	go func() {
		defer a.background.Done()

		texts := make([]string, len(items))
		for i, item := range items {
			texts[i] = item.Title + " " + item.Content
		}

		vectors, err := a.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			a.logger.Error("Embedding batch failed",
				zap.Error(err),
				zap.Int("items", len(items)))
			return
		}

		for i, item := range items {
			if len(vectors[i]) == 0 {
				continue
			}
			if err := a.storage.UpdateItemEmbedding(ctx, item.ID, vectors[i]); err != nil {
				a.logger.Error("Failed to store embedding",
					zap.Error(err),
					zap.String("item_id", item.ID))
			}
		}
	}()
}

// createLinks materializes suggested links, resolving each new_item_index to
// its freshly assigned id. The upsert is idempotent: an existing edge for
// the unordered pair is skipped, never duplicated.
func (a *Agent) createLinks(ctx context.Context, items []*models.Item, suggestions []extractor.SuggestedLink) []*models.ItemLink {
	var links []*models.ItemLink
	for _, s := range suggestions {
		if s.NewItemIndex < 0 || s.NewItemIndex >= len(items) {
			a.logger.Warn("Link suggestion index out of range",
				zap.Int("index", s.NewItemIndex))
			continue
		}

		link := &models.ItemLink{
			ID:            uuid.New().String(),
			ItemID:        items[s.NewItemIndex].ID,
			RelatedItemID: s.ExistingItemID,
			LinkType:      "related",
			Confirmed:     false,
			Reason:        truncateRunes(s.Reason, linkReasonLimit),
		}

		created, err := a.storage.CreateLink(ctx, link)
		if err != nil {
			a.logger.Error("Failed to create link",
				zap.Error(err),
				zap.String("item_id", link.ItemID),
				zap.String("related_item_id", link.RelatedItemID))
			continue
		}
		if created {
			links = append(links, link)
		}
	}
	return links
}
