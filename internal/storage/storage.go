package storage

import (
	"context"
	"errors"

	"github.com/sabr2007/Neural-Inbox1/internal/models"
)

var (
	// ErrNotFound is returned when an item does not exist.
	ErrNotFound = errors.New("item not found")
	// ErrAlreadyDone is returned when completing an item that is already done.
	ErrAlreadyDone = errors.New("item already completed")
)

// ScoredItem is an item paired with its cosine similarity to a query.
type ScoredItem struct {
	Item  *models.Item
	Score float64
}

// Storage is the durable collaborator behind the pipeline. CreateItems is
// all-or-nothing; CreateLink is idempotent over the unordered item pair;
// CompleteItem guards the done transition optimistically so concurrent
// completions of the same item cannot both succeed.
type Storage interface {
	CreateItems(ctx context.Context, items []*models.Item) error
	GetItem(ctx context.Context, itemID string) (*models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	CompleteItem(ctx context.Context, itemID string) (*models.Item, error)
	ListRecent(ctx context.Context, userID int64, limit int) ([]*models.Item, error)
	ListByStatus(ctx context.Context, userID int64, status models.ItemStatus, limit int) ([]*models.Item, error)

	ListProjects(ctx context.Context, userID int64) ([]*models.Project, error)
	CreateProject(ctx context.Context, project *models.Project) error

	UpdateItemEmbedding(ctx context.Context, itemID string, embedding []float32) error
	SearchSimilar(ctx context.Context, userID int64, embedding []float32, limit int) ([]ScoredItem, error)
	FindSimilar(ctx context.Context, itemID string, limit int, minScore float64) ([]ScoredItem, error)

	CreateLink(ctx context.Context, link *models.ItemLink) (bool, error)
	ListLinks(ctx context.Context, itemID string) ([]*models.ItemLink, error)

	Close() error
}
