// Package agent orchestrates the ingestion pipeline: gather context, extract
// structured items with a language-understanding call, persist and link the
// results, and fall back to a verbatim note when anything fatal goes wrong.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sabr2007/Neural-Inbox1/internal/embedding"
	"github.com/sabr2007/Neural-Inbox1/internal/extractor"
	"github.com/sabr2007/Neural-Inbox1/internal/models"
	"github.com/sabr2007/Neural-Inbox1/internal/storage"
)

// Config bounds one unit of work and the context/related queries.
type Config struct {
	Timeout             time.Duration
	RecentLimit         int
	SimilarLimit        int
	SimilarContextFloor float64
	RelatedFloor        float64
	RelatedLimit        int
}

func DefaultConfig() Config {
	return Config{
		Timeout:             10 * time.Second,
		RecentLimit:         20,
		SimilarLimit:        5,
		SimilarContextFloor: 0.5,
		RelatedFloor:        0.7,
		RelatedLimit:        10,
	}
}

type Agent struct {
	storage   storage.Storage
	extractor extractor.Extractor
	embedder  embedding.Embedder
	selector  extractor.SelectorConfig
	cfg       Config
	logger    *zap.Logger

	// background tracks detached embedding work so it can be awaited on
	// shutdown and in tests.
	background sync.WaitGroup
}

func New(store storage.Storage, ext extractor.Extractor, emb embedding.Embedder,
	selector extractor.SelectorConfig, cfg Config, logger *zap.Logger) *Agent {
	return &Agent{
		storage:   store,
		extractor: ext,
		embedder:  emb,
		selector:  selector,
		cfg:       cfg,
		logger:    logger,
	}
}

// Wait blocks until all dispatched background work has finished.
func (a *Agent) Wait() {
	a.background.Wait()
}

// Process runs one user input through the full pipeline under the overall
// deadline. Any fatal failure degrades to the fallback path so input is
// never lost; the returned result carries Fallback = true in that case.
func (a *Agent) Process(ctx context.Context, userID int64, text string, source models.Source) (*AgentResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	ec, err := a.gatherContext(ctx, userID, text)
	if err != nil {
		a.logger.Error("Context gathering failed",
			zap.Error(err),
			zap.Int64("user_id", userID))
		return a.fallback(ctx, userID, text, source, start)
	}

	tier := extractor.Select(a.selector, text, source)
	out, err := a.extractor.Extract(ctx, text, ec, tier)
	if err != nil {
		a.logger.Error("Extraction failed",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.String("tier", string(tier)))
		return a.fallback(ctx, userID, text, source, start)
	}

	// Chat-only input creates nothing.
	if len(out.Items) == 0 {
		return &AgentResult{
			ChatResponse:   out.ChatResponse,
			ProcessingTime: time.Since(start),
		}, nil
	}

	// The deadline elapsing before persistence begins aborts the unit.
	if ctx.Err() != nil {
		return a.fallback(ctx, userID, text, source, start)
	}

	// Once persistence starts it runs to completion even if the unit's
	// deadline elapses, so no batch is ever left half-written.
	persistCtx := context.WithoutCancel(ctx)
	items, links, err := a.persist(persistCtx, userID, text, source, out)
	if err != nil {
		a.logger.Error("Persistence failed",
			zap.Error(err),
			zap.Int64("user_id", userID))
		return a.fallback(ctx, userID, text, source, start)
	}

	result := &AgentResult{
		ItemsCreated:   items,
		LinksCreated:   links,
		ChatResponse:   out.ChatResponse,
		ProcessingTime: time.Since(start),
	}
	if ctx.Err() != nil {
		return result, fmt.Errorf("processing deadline exceeded: %w", ctx.Err())
	}
	return result, nil
}

// gatherContext fetches the three context slices concurrently. A single
// failing slice degrades to empty; the call errors only when all three fail.
func (a *Agent) gatherContext(ctx context.Context, userID int64, text string) (extractor.Context, error) {
	var (
		wg       sync.WaitGroup
		projects []*models.Project
		recent   []*models.Item
		similar  []extractor.ContextItem

		projErr, recentErr, similarErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		projects, projErr = a.storage.ListProjects(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		recent, recentErr = a.storage.ListRecent(ctx, userID, a.cfg.RecentLimit)
	}()
	go func() {
		defer wg.Done()
		similar, similarErr = a.similarContext(ctx, userID, text)
	}()
	wg.Wait()

	if projErr != nil && recentErr != nil && similarErr != nil {
		return extractor.Context{}, fmt.Errorf("all context fetches failed: %w", errors.Join(projErr, recentErr, similarErr))
	}
	for _, e := range []error{projErr, recentErr, similarErr} {
		if e != nil {
			a.logger.Warn("Context slice unavailable",
				zap.Error(e),
				zap.Int64("user_id", userID))
		}
	}

	return extractor.Context{
		Projects:     projects,
		RecentItems:  recent,
		SimilarItems: similar,
	}, nil
}

func (a *Agent) similarContext(ctx context.Context, userID int64, text string) ([]extractor.ContextItem, error) {
	vec, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query text: %w", err)
	}
	if len(vec) == 0 {
		return nil, nil
	}

	scored, err := a.storage.SearchSimilar(ctx, userID, vec, a.cfg.SimilarLimit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	out := make([]extractor.ContextItem, 0, len(scored))
	for _, s := range scored {
		if s.Score <= a.cfg.SimilarContextFloor {
			continue
		}
		out = append(out, extractor.ContextItem{
			ID:    s.Item.ID,
			Title: s.Item.Title,
			Type:  string(s.Item.Type),
			Score: s.Score,
		})
	}
	return out, nil
}

// fallback preserves the raw input verbatim as a single inbox note. It runs
// on a detached context so an elapsed deadline cannot drop the save.
func (a *Agent) fallback(ctx context.Context, userID int64, text string, source models.Source, start time.Time) (*AgentResult, error) {
	note := &models.Item{
		ID:            uuid.New().String(),
		UserID:        userID,
		Type:          models.TypeNote,
		Status:        models.StatusInbox,
		Title:         truncateRunes(text, 100),
		Content:       text,
		OriginalInput: text,
		Source:        source,
		Tags:          []string{},
	}

	saveCtx := context.WithoutCancel(ctx)
	if err := a.storage.CreateItems(saveCtx, []*models.Item{note}); err != nil {
		return nil, fmt.Errorf("fallback save failed: %w", err)
	}
	a.scheduleEmbeddings(saveCtx, []*models.Item{note})

	return &AgentResult{
		ItemsCreated:   []*models.Item{note},
		Fallback:       true,
		ProcessingTime: time.Since(start),
	}, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
