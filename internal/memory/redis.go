package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "chat:memory:"

// Redis stores each session as a list of JSON encoded messages.
type Redis struct {
	rdb redis.Cmdable
	max int
	ttl time.Duration
}

// NewRedis builds a Redis Store. ttl 0 keeps sessions forever.
func NewRedis(rdb redis.Cmdable, maxMessages int, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, max: normalizeMax(maxMessages), ttl: ttl}
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *Redis) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	msgs = stamp(msgs, time.Now())
	vals := make([]any, len(msgs))
	for i, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		vals[i] = b
	}

	key := redisKey(sessionID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, vals...)
		p.LTrim(ctx, key, int64(-s.max), -1)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

func (s *Redis) History(ctx context.Context, sessionID string) ([]Message, error) {
	raw, err := s.rdb.LRange(ctx, redisKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
