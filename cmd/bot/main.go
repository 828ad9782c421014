package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/sabr2007/Neural-Inbox1/internal/agent"
	"github.com/sabr2007/Neural-Inbox1/internal/bot"
	"github.com/sabr2007/Neural-Inbox1/internal/embedding"
	"github.com/sabr2007/Neural-Inbox1/internal/extractor"
	"github.com/sabr2007/Neural-Inbox1/internal/storage"
	"github.com/sabr2007/Neural-Inbox1/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize the extraction and embedding adapters
	ext := extractor.NewOpenAIExtractor(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.FastModel,
		cfg.OpenAI.CapableModel,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)
	emb := embedding.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel, logger)

	// Initialize the agent
	agentCfg := agent.Config{
		Timeout:             time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
		RecentLimit:         cfg.Agent.RecentLimit,
		SimilarLimit:        cfg.Agent.SimilarLimit,
		SimilarContextFloor: cfg.Agent.SimilarContextFloor,
		RelatedFloor:        cfg.Agent.RelatedFloor,
		RelatedLimit:        cfg.Agent.RelatedLimit,
	}
	agnt := agent.New(store, ext, emb, extractor.DefaultSelectorConfig(), agentCfg, logger)
	defer agnt.Wait()

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, agnt, store, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
