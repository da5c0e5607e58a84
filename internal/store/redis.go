package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-billing/internal/document"
)

// SnapshotCache keeps the latest published snapshot per document in Redis so
// read-side consumers can display totals without touching the database.
type SnapshotCache struct {
	R      *redis.Client
	Prefix string
	TTL    time.Duration
}

func (c SnapshotCache) key(id string) string {
	if c.Prefix == "" {
		return fmt.Sprintf("snapshot:%s", id)
	}
	return fmt.Sprintf("%s:snapshot:%s", c.Prefix, id)
}

func (c SnapshotCache) ttl() time.Duration {
	if c.TTL <= 0 {
		return 24 * time.Hour
	}
	return c.TTL
}

// PublishSnapshot stores the snapshot with the configured TTL.
func (c SnapshotCache) PublishSnapshot(ctx context.Context, snap document.Snapshot) error {
	if c.R == nil {
		return errors.New("store: redis client not configured")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.R.Set(ctx, c.key(snap.ID), raw, c.ttl()).Err()
}

// GetSnapshot fetches the cached snapshot, reporting a miss without error.
func (c SnapshotCache) GetSnapshot(ctx context.Context, id string) (document.Snapshot, bool, error) {
	if c.R == nil {
		return document.Snapshot{}, false, errors.New("store: redis client not configured")
	}
	raw, err := c.R.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return document.Snapshot{}, false, nil
		}
		return document.Snapshot{}, false, err
	}
	var snap document.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return document.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

// Ping probes cache connectivity within the provided timeout.
func (c SnapshotCache) Ping(ctx context.Context, timeout time.Duration) error {
	if c.R == nil {
		return errors.New("store: redis client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.R.Ping(ctx).Err()
}
