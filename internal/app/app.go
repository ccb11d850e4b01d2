// Package app builds the shared components from configuration for the
// server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/suPer8Hu/hotel-concierge/internal/ai"
	"github.com/suPer8Hu/hotel-concierge/internal/booking"
	"github.com/suPer8Hu/hotel-concierge/internal/config"
	"github.com/suPer8Hu/hotel-concierge/internal/db"
	"github.com/suPer8Hu/hotel-concierge/internal/knowledge"
	"github.com/suPer8Hu/hotel-concierge/internal/memory"
	"github.com/suPer8Hu/hotel-concierge/internal/store/redisstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const openRouterAppName = "hotel-concierge"

// OpenDB connects and migrates every table the application owns.
func OpenDB(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gdb,
		&booking.Customer{},
		&booking.Booking{},
		&knowledge.ChunkRecord{},
		&memory.Record{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return gdb, nil
}

// Providers registers every supported model backend.
func Providers(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(ai.OpenAIOptions{BaseURL: cfg.OpenAIBaseURL, APIKey: cfg.OpenAIAPIKey, Model: model})
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model, "", openRouterAppName)
	})
	return reg
}

// Provider resolves the configured model backend.
func Provider(ctx context.Context, cfg config.Config) (ai.Provider, error) {
	return Providers(cfg).Get(ctx, cfg.AIProvider, "")
}

func Embedder(cfg config.Config) (ai.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "", "ollama":
		return ai.NewOllamaEmbedder(cfg.OllamaBaseURL, cfg.EmbeddingModel), nil
	case "openai":
		return ai.NewOpenAIEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel), nil
	case "hash":
		return ai.NewHashEmbedder(0), nil
	default:
		return nil, fmt.Errorf("unsupported EMBEDDING_PROVIDER=%q", cfg.EmbeddingProvider)
	}
}

func Index(cfg config.Config, gdb *gorm.DB, log *zap.Logger) (*knowledge.Index, error) {
	emb, err := Embedder(cfg)
	if err != nil {
		return nil, err
	}
	return knowledge.NewIndex(emb, knowledge.NewSplitter(cfg.KnowledgeChunkSize), knowledge.NewRepo(gdb), log), nil
}

// Memory opens the configured conversation memory. The returned close func
// is never nil.
func Memory(ctx context.Context, cfg config.Config, gdb *gorm.DB, log *zap.Logger) (memory.Store, func(), error) {
	noop := func() {}
	switch cfg.MemoryBackend {
	case "", "inmem":
		return memory.NewInMemory(cfg.MemoryMaxMessages), noop, nil
	case "sql":
		return memory.NewSQL(gdb, cfg.MemoryMaxMessages), noop, nil
	case "redis":
		rs, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		log.Info("redis memory connected", zap.String("addr", cfg.RedisAddr))
		return memory.NewRedis(rs.Client, cfg.MemoryMaxMessages, cfg.MemoryTTL), func() { _ = rs.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unsupported MEMORY_BACKEND=%q", cfg.MemoryBackend)
	}
}
