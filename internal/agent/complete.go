package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sabr2007/Neural-Inbox1/internal/models"
	"github.com/sabr2007/Neural-Inbox1/internal/recurrence"
	"github.com/sabr2007/Neural-Inbox1/internal/storage"
)

// CompleteItem marks an item done and, for recurring tasks, creates the next
// occurrence anchored on the current due timestamp. Re-completing an
// already-done item is a no-op, not an error.
func (a *Agent) CompleteItem(ctx context.Context, itemID string) (*Completion, error) {
	item, err := a.storage.CompleteItem(ctx, itemID)
	if errors.Is(err, storage.ErrAlreadyDone) {
		existing, getErr := a.storage.GetItem(ctx, itemID)
		if getErr != nil {
			return nil, fmt.Errorf("loading completed item: %w", getErr)
		}
		return &Completion{CompletedItem: existing}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &Completion{CompletedItem: item}
	if item.Type != models.TypeTask || item.Recurrence == nil || item.DueAt == nil {
		return result, nil
	}

	next := recurrence.Next(item.Recurrence, *item.DueAt)
	if next == nil {
		// The rule has reached its end date; terminal, not an error.
		return result, nil
	}

	successor := &models.Item{
		ID:         uuid.New().String(),
		UserID:     item.UserID,
		Type:       item.Type,
		Status:     models.StatusActive,
		Title:      item.Title,
		Content:    item.Content,
		Source:     item.Source,
		DueAt:      next,
		DueAtRaw:   item.DueAtRaw,
		Priority:   item.Priority,
		ProjectID:  item.ProjectID,
		Tags:       item.Tags,
		Recurrence: item.Recurrence,
	}
	if err := a.storage.CreateItems(ctx, []*models.Item{successor}); err != nil {
		a.logger.Error("Failed to create next occurrence",
			zap.Error(err),
			zap.String("item_id", item.ID))
		return result, nil
	}
	a.scheduleEmbeddings(context.WithoutCancel(ctx), []*models.Item{successor})

	result.NextOccurrence = successor
	return result, nil
}
