package autosave_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-billing/internal/autosave"
)

func TestTickSkippedWhileSaveInFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	sched := &autosave.Scheduler{
		Interval: 10 * time.Millisecond,
		Save: func(context.Context) error {
			calls.Add(1)
			<-release
			return nil
		},
	}
	require.NoError(t, sched.Start())
	t.Cleanup(sched.Stop)

	// Let several ticks fire while the first save is blocked.
	time.Sleep(60 * time.Millisecond)
	require.EqualValues(t, 1, calls.Load())

	state, _ := sched.Status()
	require.Equal(t, autosave.StateSaving, state)
	close(release)
}

func TestRecordsLastSavedAt(t *testing.T) {
	saved := make(chan struct{}, 8)
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	sched := &autosave.Scheduler{
		Interval: 5 * time.Millisecond,
		Now:      func() time.Time { return now },
		Save: func(context.Context) error {
			select {
			case saved <- struct{}{}:
			default:
			}
			return nil
		},
	}
	require.NoError(t, sched.Start())
	t.Cleanup(sched.Stop)

	select {
	case <-saved:
	case <-time.After(time.Second):
		t.Fatal("save never ran")
	}
	require.Eventually(t, func() bool {
		_, last := sched.Status()
		return last.Equal(now)
	}, time.Second, 5*time.Millisecond)
}

func TestFailedSaveDoesNotRecordTimestamp(t *testing.T) {
	ran := make(chan struct{}, 8)
	sched := &autosave.Scheduler{
		Interval: 5 * time.Millisecond,
		Save: func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return errors.New("boom")
		},
	}
	require.NoError(t, sched.Start())
	t.Cleanup(sched.Stop)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("save never ran")
	}
	_, last := sched.Status()
	require.True(t, last.IsZero())
}

func TestStopIsIdempotent(t *testing.T) {
	sched := &autosave.Scheduler{
		Interval: time.Hour,
		Save:     func(context.Context) error { return nil },
	}
	require.NoError(t, sched.Start())
	sched.Stop()
	sched.Stop()

	state, _ := sched.Status()
	require.Equal(t, autosave.StateStopped, state)
	require.ErrorIs(t, sched.Start(), autosave.ErrStopped)
}

func TestStatusBeforeStart(t *testing.T) {
	sched := &autosave.Scheduler{Save: func(context.Context) error { return nil }}
	state, last := sched.Status()
	require.Equal(t, autosave.StateIdle, state)
	require.True(t, last.IsZero())
}

func TestStartTwiceIsNoOp(t *testing.T) {
	sched := &autosave.Scheduler{
		Interval: time.Hour,
		Save:     func(context.Context) error { return nil },
	}
	require.NoError(t, sched.Start())
	require.NoError(t, sched.Start())
	sched.Stop()
}
