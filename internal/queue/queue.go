// AngelaMos | 2026
// queue.go

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrEmpty = errors.New("queue empty")

const (
	failedSuffix = ":failed"
	failedTTL    = 7 * 24 * time.Hour
)

// Queue is a FIFO of JSON payloads on a Redis list. Producers LPUSH and
// consumers BRPOP. Payloads that fail processing are parked on a companion
// ":failed" list for inspection.
type Queue struct {
	client    *redis.Client
	key       string
	failedKey string
}

func New(client *redis.Client, key string) *Queue {
	return &Queue{
		client:    client,
		key:       key,
		failedKey: key + failedSuffix,
	}
}

func (q *Queue) Key() string {
	return q.key
}

func (q *Queue) Enqueue(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	return nil
}

// Dequeue blocks for up to timeout waiting for the next payload. It returns
// ErrEmpty when nothing arrived in time.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}

	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue job: unexpected reply length %d", len(res))
	}

	return []byte(res[1]), nil
}

type failedJob struct {
	Payload  json.RawMessage `json:"payload"`
	Error    string          `json:"error"`
	FailedAt time.Time       `json:"failed_at"`
}

// Fail records a payload that could not be processed.
func (q *Queue) Fail(ctx context.Context, payload []byte, cause error) error {
	raw := json.RawMessage(payload)
	if !json.Valid(payload) {
		quoted, err := json.Marshal(string(payload))
		if err != nil {
			return fmt.Errorf("encode failed job: %w", err)
		}
		raw = quoted
	}

	data, err := json.Marshal(failedJob{
		Payload:  raw,
		Error:    cause.Error(),
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode failed job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, q.failedKey, data)
	pipe.Expire(ctx, q.failedKey, failedTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record failed job: %w", err)
	}

	return nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

func (q *Queue) FailedDepth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.failedKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed queue depth: %w", err)
	}
	return n, nil
}
