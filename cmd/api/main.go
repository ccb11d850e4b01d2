package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/hotel-concierge/internal/app"
	"github.com/suPer8Hu/hotel-concierge/internal/booking"
	"github.com/suPer8Hu/hotel-concierge/internal/chat"
	"github.com/suPer8Hu/hotel-concierge/internal/config"
	"github.com/suPer8Hu/hotel-concierge/internal/httpapi"
	"github.com/suPer8Hu/hotel-concierge/internal/httpapi/handlers"
	"github.com/suPer8Hu/hotel-concierge/internal/knowledge"
	"github.com/suPer8Hu/hotel-concierge/internal/logging"
	"github.com/suPer8Hu/hotel-concierge/internal/store/rabbitmq"
	"github.com/suPer8Hu/hotel-concierge/internal/tools"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := app.OpenDB(cfg, logger)
	if err != nil {
		return err
	}

	var events booking.EventSink
	if cfg.EventsEnabled {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return err
		}
		defer pub.Close()
		events = pub
		logger.Info("booking events enabled", zap.String("queue", cfg.RabbitQueue))
	}
	bookings := booking.NewService(booking.NewRepo(gdb), events, logger)
	if n, err := bookings.Seed(ctx); err != nil {
		return err
	} else if n > 0 {
		logger.Info("demo bookings seeded", zap.Int("count", n))
	}

	index, err := app.Index(cfg, gdb, logger)
	if err != nil {
		return err
	}
	if err := loadKnowledge(ctx, index, cfg, logger); err != nil {
		return err
	}

	mem, closeMem, err := app.Memory(ctx, cfg, gdb, logger)
	if err != nil {
		return err
	}
	defer closeMem()

	provider, err := app.Provider(ctx, cfg)
	if err != nil {
		return err
	}
	dispatcher, err := tools.NewDispatcher(bookings, logger)
	if err != nil {
		return err
	}
	mgr := chat.NewManager(provider, dispatcher, index, mem, logger, chat.Options{
		ContextWindow: cfg.ChatContextWindowSize,
		TopK:          cfg.ChatTopK,
		MaxToolRounds: cfg.ChatMaxToolRounds,
	})

	h := handlers.NewHandler(cfg, mgr, bookings, index, logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("ai_provider", cfg.AIProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.KnowledgeDir != "" {
		w := knowledge.NewWatcher(index, cfg.KnowledgeDir, logger)
		g.Go(func() error { return w.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loadKnowledge restores persisted chunks, then ingests the bundled terms and
// the knowledge directory before chat traffic is served.
func loadKnowledge(ctx context.Context, index *knowledge.Index, cfg config.Config, logger *zap.Logger) error {
	n, err := index.Load(ctx)
	if err != nil {
		return err
	}
	logger.Info("knowledge chunks restored", zap.Int("chunks", n))

	if _, err := index.Ingest(ctx, knowledge.TermsDocument()); err != nil {
		return err
	}
	if cfg.KnowledgeDir != "" {
		if err := knowledge.NewWatcher(index, cfg.KnowledgeDir, logger).IngestDir(ctx); err != nil {
			return err
		}
	}
	index.SetReady(true)
	logger.Info("knowledge base ready", zap.Int("chunks", index.Len()))
	return nil
}
