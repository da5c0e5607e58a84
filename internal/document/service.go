package document

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-billing/internal/autosave"
	"github.com/noah-isme/backend-billing/internal/obs"
	"github.com/noah-isme/backend-billing/internal/terms"
)

// Store defines durable snapshot persistence.
type Store interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	LoadSnapshot(ctx context.Context, id string) (Snapshot, error)
}

// SnapshotCache publishes the latest snapshot for cheap read-side consumers.
type SnapshotCache interface {
	PublishSnapshot(ctx context.Context, snap Snapshot) error
	GetSnapshot(ctx context.Context, id string) (Snapshot, bool, error)
}

// Service manages open documents and their autosave schedulers. Each open
// document gets its own scheduler; closing the document performs a final save
// and stops the scheduler so no background work leaks.
type Service struct {
	Store            Store
	Cache            SnapshotCache
	AutosaveInterval time.Duration
	Logger           zerolog.Logger
	Now              func() time.Time

	mu   sync.Mutex
	open map[string]*openDoc
}

type openDoc struct {
	doc   *Document
	sched *autosave.Scheduler
}

// Create opens a new empty document and starts its autosave loop.
func (s *Service) Create(ctx context.Context, docType Type, issue time.Time, term terms.PaymentTerm) (*Document, error) {
	if s.Store == nil {
		return nil, errors.New("document service not configured")
	}
	doc, err := New(docType, issue, term)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, doc); err != nil {
		return nil, err
	}
	s.track(doc)
	return doc, nil
}

// Get returns the open document, reopening it from cache or store when the
// service no longer holds it in memory.
func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.Lock()
	if entry, ok := s.open[id]; ok {
		s.mu.Unlock()
		return entry.doc, nil
	}
	s.mu.Unlock()

	snap, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := Restore(snap)
	if err != nil {
		return nil, err
	}
	return s.track(doc), nil
}

// Save persists the current snapshot of an open document immediately.
func (s *Service) Save(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.persist(ctx, doc)
}

// Close performs a final save, stops the autosave scheduler, and evicts the
// document from memory. The persisted snapshot remains loadable.
func (s *Service) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	entry, ok := s.open[id]
	if ok {
		delete(s.open, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	entry.sched.Stop()
	return s.persist(ctx, entry.doc)
}

// CloseAll tears down every open document, for graceful shutdown.
func (s *Service) CloseAll(ctx context.Context) {
	s.mu.Lock()
	entries := make([]*openDoc, 0, len(s.open))
	for id, entry := range s.open {
		entries = append(entries, entry)
		delete(s.open, id)
	}
	s.mu.Unlock()
	for _, entry := range entries {
		entry.sched.Stop()
		if err := s.persist(ctx, entry.doc); err != nil {
			s.Logger.Error().Err(err).Str("document_id", entry.doc.ID()).Msg("final save failed")
		}
	}
}

// AutosaveStatus reports the scheduler state and last save time for a
// document. A persisted document that is not currently open reports idle, so
// a status poll never flips between 404 and 200 around a close.
func (s *Service) AutosaveStatus(ctx context.Context, id string) (autosave.State, time.Time, error) {
	s.mu.Lock()
	entry, ok := s.open[id]
	s.mu.Unlock()
	if ok {
		state, last := entry.sched.Status()
		return state, last, nil
	}
	if _, err := s.loadSnapshot(ctx, id); err != nil {
		return "", time.Time{}, err
	}
	return autosave.StateIdle, time.Time{}, nil
}

// RecordMutation bumps the recompute counter after a successful edit.
func (s *Service) RecordMutation(doc *Document) {
	if obs.RecomputeTotal != nil {
		obs.RecomputeTotal.WithLabelValues(string(doc.Type())).Inc()
	}
}

// track registers the document and starts its autosave loop. Lookup and
// insert happen under a single lock acquisition: when two reopens race, the
// loser discards its restored copy and no second scheduler is ever started.
func (s *Service) track(doc *Document) *Document {
	logger := s.Logger.With().Str("document_id", doc.ID()).Logger()
	sched := &autosave.Scheduler{
		Interval: s.AutosaveInterval,
		Logger:   &logger,
		Now:      s.Now,
		Save: func(ctx context.Context) error {
			return s.persist(ctx, doc)
		},
	}
	s.mu.Lock()
	if s.open == nil {
		s.open = make(map[string]*openDoc)
	}
	if existing, ok := s.open[doc.ID()]; ok {
		s.mu.Unlock()
		return existing.doc
	}
	s.open[doc.ID()] = &openDoc{doc: doc, sched: sched}
	s.mu.Unlock()
	if err := sched.Start(); err != nil {
		s.Logger.Error().Err(err).Str("document_id", doc.ID()).Msg("start autosave")
	}
	return doc
}

func (s *Service) loadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	if s.Cache != nil {
		if snap, ok, err := s.Cache.GetSnapshot(ctx, id); err == nil && ok {
			return snap, nil
		}
	}
	if s.Store == nil {
		return Snapshot{}, ErrNotFound
	}
	return s.Store.LoadSnapshot(ctx, id)
}

func (s *Service) persist(ctx context.Context, doc *Document) error {
	snap := doc.Snapshot()
	start := time.Now()
	err := s.Store.SaveSnapshot(ctx, snap)
	if obs.SnapshotPersistLatency != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		obs.SnapshotPersistLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		return err
	}
	if s.Cache != nil {
		if cacheErr := s.Cache.PublishSnapshot(ctx, snap); cacheErr != nil {
			s.Logger.Warn().Err(cacheErr).Str("document_id", snap.ID).Msg("publish snapshot cache")
		}
	}
	return nil
}
