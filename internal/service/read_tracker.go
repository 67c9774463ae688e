package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ReadTracker remembers which comments a viewer has already fetched. The state is
// ephemeral and may be lost on restart or expiry.
type ReadTracker interface {
	MarkRead(ctx context.Context, viewerID, actionLogID uint, commentIDs []uint) error
	ReadSet(ctx context.Context, viewerID, actionLogID uint) (map[uint]struct{}, error)
}

// NewReadTracker returns a Redis-backed tracker when a client is configured, otherwise an
// in-process one. Redis errors fall back to the in-process set.
func NewReadTracker(client *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) ReadTracker {
	memory := newMemoryReadTracker()
	if client == nil {
		return memory
	}
	if prefix == "" {
		prefix = "actionlog"
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &redisReadTracker{
		client:   client,
		prefix:   prefix,
		ttl:      ttl,
		fallback: memory,
		logger:   logger.With().Str("component", "comment_read_tracker").Logger(),
	}
}

type redisReadTracker struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	fallback *memoryReadTracker
	logger   zerolog.Logger
}

func (t *redisReadTracker) key(viewerID, actionLogID uint) string {
	return fmt.Sprintf("%s:comments:read:%d:%d", t.prefix, actionLogID, viewerID)
}

func (t *redisReadTracker) MarkRead(ctx context.Context, viewerID, actionLogID uint, commentIDs []uint) error {
	if len(commentIDs) == 0 {
		return nil
	}

	members := make([]interface{}, 0, len(commentIDs))
	for _, id := range commentIDs {
		members = append(members, strconv.FormatUint(uint64(id), 10))
	}

	key := t.key(viewerID, actionLogID)
	pipe := t.client.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn().Err(err).Str("key", key).Msg("falling back to in-process read tracking")
		return t.fallback.MarkRead(ctx, viewerID, actionLogID, commentIDs)
	}
	return nil
}

func (t *redisReadTracker) ReadSet(ctx context.Context, viewerID, actionLogID uint) (map[uint]struct{}, error) {
	key := t.key(viewerID, actionLogID)
	values, err := t.client.SMembers(ctx, key).Result()
	if err != nil {
		t.logger.Warn().Err(err).Str("key", key).Msg("falling back to in-process read tracking")
		return t.fallback.ReadSet(ctx, viewerID, actionLogID)
	}

	set := make(map[uint]struct{}, len(values))
	for _, value := range values {
		id, parseErr := strconv.ParseUint(value, 10, 64)
		if parseErr != nil {
			continue
		}
		set[uint(id)] = struct{}{}
	}
	return set, nil
}

type memoryReadTracker struct {
	mu   sync.RWMutex
	read map[[2]uint]map[uint]struct{}
}

func newMemoryReadTracker() *memoryReadTracker {
	return &memoryReadTracker{read: make(map[[2]uint]map[uint]struct{})}
}

func (t *memoryReadTracker) MarkRead(_ context.Context, viewerID, actionLogID uint, commentIDs []uint) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := [2]uint{viewerID, actionLogID}
	set, ok := t.read[key]
	if !ok {
		set = make(map[uint]struct{}, len(commentIDs))
		t.read[key] = set
	}
	for _, id := range commentIDs {
		set[id] = struct{}{}
	}
	return nil
}

func (t *memoryReadTracker) ReadSet(_ context.Context, viewerID, actionLogID uint) (map[uint]struct{}, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stored := t.read[[2]uint{viewerID, actionLogID}]
	out := make(map[uint]struct{}, len(stored))
	for id := range stored {
		out[id] = struct{}{}
	}
	return out, nil
}
