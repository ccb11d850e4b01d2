package rabbitmq

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"github.com/suPer8Hu/hotel-concierge/internal/booking"
	"go.uber.org/zap"
)

const retriesHeader = "x-retries"

// Handler processes one booking event. Business errors mark the message as
// poison; anything else is retried.
type Handler func(ctx context.Context, ev booking.Event) error

type ConsumerOptions struct {
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
}

type Consumer struct {
	ch    *amqp.Channel
	queue string
	opts  ConsumerOptions
	h     Handler
	log   *zap.Logger

	pubMu sync.Mutex
}

func NewConsumer(ch *amqp.Channel, queue string, opts ConsumerOptions, h Handler, log *zap.Logger) *Consumer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.Concurrency > 50 {
		opts.Concurrency = 50
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	return &Consumer{ch: ch, queue: queue, opts: opts, h: h, log: log}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
	outcomeDead
)

// decide runs the handler and picks what happens to the delivery.
func (c *Consumer) decide(ctx context.Context, body []byte, retries int) (outcome, error) {
	var ev booking.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return outcomeDead, err
	}
	if err := c.h(ctx, ev); err != nil {
		if apperr.IsBusiness(err) || retries >= c.opts.MaxRetries {
			return outcomeDead, err
		}
		return outcomeRetry, err
	}
	return outcomeAck, nil
}

func retriesOf(h amqp.Table) int {
	switch v := h[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Run consumes until ctx is done, with a bounded worker pool.
func (c *Consumer) Run(ctx context.Context) error {
	concurrency := c.opts.Concurrency
	if err := c.ch.Qos(concurrency, 0, false); err != nil {
		return err
	}
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.log.Info("consumer started", zap.String("queue", c.queue), zap.Int("concurrency", concurrency))

	jobs := make(chan amqp.Delivery, concurrency*2)
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.handle(ctx, workerID, d)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()
	return c.dispatch(ctx, msgs, jobs)
}

// dispatch hands deliveries to the workers until ctx is done or the delivery
// channel closes. Unacked deliveries left behind are redelivered by the broker.
func (c *Consumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery, jobs chan<- amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			c.log.Info("consumer shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return amqp.ErrClosed
			}
			select {
			case jobs <- d:
			case <-ctx.Done():
				c.log.Info("consumer shutting down")
				return nil
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, workerID int, d amqp.Delivery) {
	start := time.Now()
	retries := retriesOf(d.Headers)
	out, err := c.decide(ctx, d.Body, retries)
	log := c.log.With(
		zap.Int("worker", workerID),
		zap.String("type", d.Type),
		zap.Int("retries", retries),
		zap.Duration("took", time.Since(start)))

	switch out {
	case outcomeAck:
		if err := d.Ack(false); err != nil {
			log.Warn("ack failed", zap.Error(err))
		}
	case outcomeRetry:
		log.Warn("event failed, scheduling retry", zap.Error(err))
		if pubErr := c.retry(ctx, d, retries+1); pubErr != nil {
			log.Error("retry publish failed", zap.Error(pubErr))
			_ = d.Nack(false, false)
			return
		}
		_ = d.Ack(false)
	case outcomeDead:
		log.Error("event rejected to dead letter queue", zap.Error(err))
		_ = d.Nack(false, false)
	}
}

// retry parks the message in the retry queue; its TTL sends it back to the
// main queue.
func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, retries int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retriesHeader] = int32(retries)

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	return c.ch.PublishWithContext(cctx, "", RetryQueue(c.queue), false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Type:         d.Type,
		Headers:      headers,
		Expiration:   strconv.FormatInt(c.opts.RetryDelay.Milliseconds(), 10),
		Body:         d.Body,
		Timestamp:    time.Now(),
	})
}
