package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/hotel-concierge/internal/booking"
	"github.com/suPer8Hu/hotel-concierge/internal/config"
	"github.com/suPer8Hu/hotel-concierge/internal/logging"
	"github.com/suPer8Hu/hotel-concierge/internal/store/rabbitmq"
	"go.uber.org/zap"
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

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		logger.Fatal("queue declare", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := rabbitmq.NewConsumer(ch, cfg.RabbitQueue, rabbitmq.ConsumerOptions{
		Concurrency: cfg.WorkerConcurrency,
		MaxRetries:  3,
	}, notifyGuest(logger), logger)

	if err := consumer.Run(ctx); err != nil {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
	logger.Info("worker stopped")
}

// notifyGuest logs the notification a guest would receive for the event.
func notifyGuest(logger *zap.Logger) rabbitmq.Handler {
	return func(ctx context.Context, ev booking.Event) error {
		notice, err := ev.Notice()
		if err != nil {
			return err
		}
		logger.Info("guest notified",
			zap.String("booking_number", ev.BookingNumber),
			zap.String("type", ev.Type),
			zap.Time("occurred_at", ev.OccurredAt),
			zap.String("notice", notice))
		return nil
	}
}
