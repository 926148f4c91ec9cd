// AngelaMos | 2026
// stream.go

package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const streamMaxLen = 100000

// PurgeKind says which index an id belongs to.
type PurgeKind string

const (
	PurgeSound PurgeKind = "sound"
	PurgePack  PurgeKind = "pack"
)

// PurgeStream announces content ids that search and similarity indexes
// must drop. Consumers read it with XREADGROUP.
type PurgeStream struct {
	client *redis.Client
	key    string
}

func NewPurgeStream(client *redis.Client, key string) *PurgeStream {
	return &PurgeStream{client: client, key: key}
}

// Publish appends one entry carrying every id of kind. Publishing nothing
// is a no-op.
func (s *PurgeStream) Publish(
	ctx context.Context,
	kind PurgeKind,
	accountID int64,
	ids []int64,
) error {
	if len(ids) == 0 {
		return nil
	}

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"kind":       string(kind),
			"account_id": strconv.FormatInt(accountID, 10),
			"ids":        joinIDs(ids),
			"at":         time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish purge ids: %w", err)
	}

	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// ParseIDs is the consumer-side inverse of the ids field.
func ParseIDs(field string) ([]int64, error) {
	if field == "" {
		return nil, nil
	}

	parts := strings.Split(field, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse purge id %q: %w", p, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
