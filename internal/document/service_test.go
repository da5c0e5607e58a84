package document

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-billing/internal/autosave"
	"github.com/noah-isme/backend-billing/internal/terms"
)

type stubStore struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
	saves int
}

func (s *stubStore) SaveSnapshot(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snaps == nil {
		s.snaps = make(map[string]Snapshot)
	}
	s.snaps[snap.ID] = snap
	s.saves++
	return nil
}

func (s *stubStore) LoadSnapshot(_ context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (s *stubStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newService(store *stubStore) *Service {
	return &Service{
		Store:            store,
		AutosaveInterval: time.Hour,
		Logger:           zerolog.Nop(),
	}
}

func TestCreatePersistsAndTracks(t *testing.T) {
	store := &stubStore{}
	svc := newService(store)
	ctx := context.Background()

	doc, err := svc.Create(ctx, TypeInvoice, time.Now(), terms.Net30)
	require.NoError(t, err)
	t.Cleanup(func() { svc.CloseAll(ctx) })
	require.Equal(t, 1, store.saveCount())

	got, err := svc.Get(ctx, doc.ID())
	require.NoError(t, err)
	require.Same(t, doc, got)

	state, _, err := svc.AutosaveStatus(ctx, doc.ID())
	require.NoError(t, err)
	require.NotEqual(t, "", string(state))
}

func TestGetReopensFromStore(t *testing.T) {
	store := &stubStore{}
	svc := newService(store)
	ctx := context.Background()

	doc, err := svc.Create(ctx, TypePurchaseOrder, time.Now(), terms.Net15)
	require.NoError(t, err)
	item := doc.AddItem()
	_, err = doc.UpdateItem(item.ID, FieldQuantity, "2")
	require.NoError(t, err)
	_, err = doc.UpdateItem(item.ID, FieldUnitRate, "50")
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx, doc.ID()))

	reopened, err := svc.Get(ctx, doc.ID())
	require.NoError(t, err)
	t.Cleanup(func() { svc.CloseAll(ctx) })
	require.NotSame(t, doc, reopened)
	require.True(t, reopened.Totals().Subtotal.Equal(dec("100")))
}

func TestCloseStopsAutosave(t *testing.T) {
	store := &stubStore{}
	svc := newService(store)
	svc.AutosaveInterval = 5 * time.Millisecond
	ctx := context.Background()

	doc, err := svc.Create(ctx, TypeInvoice, time.Now(), terms.Net30)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return store.saveCount() > 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Close(ctx, doc.ID()))

	settled := store.saveCount()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, settled, store.saveCount())

	state, _, err := svc.AutosaveStatus(ctx, doc.ID())
	require.NoError(t, err)
	require.Equal(t, autosave.StateIdle, state)
}

func TestCloseUnknownDocument(t *testing.T) {
	svc := newService(&stubStore{})
	require.ErrorIs(t, svc.Close(context.Background(), "missing"), ErrNotFound)
}

func TestAutosaveStatusUnknownDocument(t *testing.T) {
	svc := newService(&stubStore{})
	_, _, err := svc.AutosaveStatus(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentReopenSharesOneScheduler(t *testing.T) {
	store := &stubStore{}
	svc := newService(store)
	svc.AutosaveInterval = 5 * time.Millisecond
	ctx := context.Background()

	doc, err := svc.Create(ctx, TypeInvoice, time.Now(), terms.Net30)
	require.NoError(t, err)
	id := doc.ID()
	require.NoError(t, svc.Close(ctx, id))

	const reopeners = 8
	start := make(chan struct{})
	docs := make([]*Document, reopeners)
	errs := make([]error, reopeners)
	var wg sync.WaitGroup
	for i := 0; i < reopeners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			docs[i], errs[i] = svc.Get(ctx, id)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < reopeners; i++ {
		require.NoError(t, errs[i])
		require.Same(t, docs[0], docs[i])
	}

	// Close must reach the one live scheduler; saves stop for good.
	require.NoError(t, svc.Close(ctx, id))
	settled := store.saveCount()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, settled, store.saveCount())
}
