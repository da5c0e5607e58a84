package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-billing/internal/document"
)

// Postgres persists document snapshots as jsonb rows keyed by document id.
// Snapshots are a cache of the last recompute; the live in-memory inputs
// remain the source of truth while a document is open.
type Postgres struct {
	Pool *pgxpool.Pool
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS document_snapshots (
	id         text PRIMARY KEY,
	doc_type   text NOT NULL,
	payload    jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// EnsureSchema creates the snapshot table when it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return errors.New("store: pool not configured")
	}
	if _, err := p.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveSnapshot upserts the full snapshot payload for a document.
func (p *Postgres) SaveSnapshot(ctx context.Context, snap document.Snapshot) error {
	if p == nil || p.Pool == nil {
		return errors.New("store: pool not configured")
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	const query = `
		INSERT INTO document_snapshots (id, doc_type, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			doc_type = EXCLUDED.doc_type,
			payload = EXCLUDED.payload,
			updated_at = now()`
	if _, err := p.Pool.Exec(ctx, query, snap.ID, string(snap.Type), payload); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot fetches the persisted snapshot for a document.
func (p *Postgres) LoadSnapshot(ctx context.Context, id string) (document.Snapshot, error) {
	if p == nil || p.Pool == nil {
		return document.Snapshot{}, errors.New("store: pool not configured")
	}
	var payload []byte
	err := p.Pool.QueryRow(ctx, `SELECT payload FROM document_snapshots WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.Snapshot{}, document.ErrNotFound
		}
		return document.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap document.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return document.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Ping probes database connectivity within the provided timeout.
func (p *Postgres) Ping(ctx context.Context, timeout time.Duration) error {
	if p == nil || p.Pool == nil {
		return errors.New("store: pool not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Pool.Ping(ctx)
}
