package storage

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sabr2007/Neural-Inbox1/internal/models"
)

// MemoryStorage is an in-memory Storage used for tests and local runs.
type MemoryStorage struct {
	mu       sync.RWMutex
	items    map[string]*models.Item
	projects map[string]*models.Project
	links    map[string]*models.ItemLink // keyed by unordered pair
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items:    make(map[string]*models.Item),
		projects: make(map[string]*models.Project),
		links:    make(map[string]*models.ItemLink),
	}
}

func (s *MemoryStorage) CreateItems(ctx context.Context, items []*models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, item := range items {
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		item.UpdatedAt = item.CreatedAt
		cp := *item
		s.items[item.ID] = &cp
	}
	return nil
}

func (s *MemoryStorage) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryStorage) UpdateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; !ok {
		return ErrNotFound
	}
	item.UpdatedAt = time.Now()
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *MemoryStorage) CompleteItem(ctx context.Context, itemID string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	if item.Status == models.StatusDone {
		return nil, ErrAlreadyDone
	}

	now := time.Now()
	item.Status = models.StatusDone
	item.CompletedAt = &now
	item.UpdatedAt = now
	cp := *item
	return &cp, nil
}

func (s *MemoryStorage) ListRecent(ctx context.Context, userID int64, limit int) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Item
	for _, item := range s.items {
		if item.UserID == userID {
			cp := *item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) ListByStatus(ctx context.Context, userID int64, status models.ItemStatus, limit int) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Item
	for _, item := range s.items {
		if item.UserID == userID && item.Status == status {
			cp := *item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) ListProjects(ctx context.Context, userID int64) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Project
	for _, p := range s.projects {
		if p.UserID != userID {
			continue
		}
		cp := *p
		cp.ItemCount = 0
		for _, item := range s.items {
			if item.ProjectID == p.ID {
				cp.ItemCount++
			}
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStorage) CreateProject(ctx context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now()
	}
	cp := *project
	s.projects[project.ID] = &cp
	return nil
}

func (s *MemoryStorage) UpdateItemEmbedding(ctx context.Context, itemID string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return ErrNotFound
	}
	item.Embedding = append([]float32(nil), embedding...)
	if item.Status == models.StatusProcessing {
		item.Status = models.StatusInbox
	}
	item.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) SearchSimilar(ctx context.Context, userID int64, embedding []float32, limit int) ([]ScoredItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ScoredItem
	for _, item := range s.items {
		if item.UserID != userID || len(item.Embedding) == 0 {
			continue
		}
		cp := *item
		out = append(out, ScoredItem{Item: &cp, Score: cosine(embedding, item.Embedding)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) FindSimilar(ctx context.Context, itemID string, limit int, minScore float64) ([]ScoredItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anchor, ok := s.items[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	if len(anchor.Embedding) == 0 {
		return nil, nil
	}

	var out []ScoredItem
	for _, item := range s.items {
		if item.ID == itemID || item.UserID != anchor.UserID || len(item.Embedding) == 0 {
			continue
		}
		score := cosine(anchor.Embedding, item.Embedding)
		if score < minScore {
			continue
		}
		cp := *item
		out = append(out, ScoredItem{Item: &cp, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) CreateLink(ctx context.Context, link *models.ItemLink) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(link.ItemID, link.RelatedItemID)
	if _, exists := s.links[key]; exists {
		return false, nil
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	cp := *link
	s.links[key] = &cp
	return true, nil
}

func (s *MemoryStorage) ListLinks(ctx context.Context, itemID string) ([]*models.ItemLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ItemLink
	for _, link := range s.links {
		if link.ItemID == itemID || link.RelatedItemID == itemID {
			cp := *link
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

// pairKey canonicalizes the unordered pair so A→B and B→A collide.
func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
