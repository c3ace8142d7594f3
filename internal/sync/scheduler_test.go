package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a hand-driven ConnectivityObserver. SetOnline only notifies
// subscribers on an actual transition, mirroring the prober's edge semantics.
type fakeConn struct {
	mu     stdsync.Mutex
	online bool
	subs   []func(online bool)
}

func (f *fakeConn) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeConn) Subscribe(fn func(online bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
}

func (f *fakeConn) SetOnline(online bool) {
	f.mu.Lock()
	if f.online == online {
		f.mu.Unlock()
		return
	}
	f.online = online
	subs := append([]func(bool){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(online)
	}
}

// countingDrainer records drain invocations; an optional gate keeps a drain
// in flight until released.
type countingDrainer struct {
	mu      stdsync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	err     error
}

func (d *countingDrainer) Drain(context.Context, string) (Result, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.started != nil {
		d.started <- struct{}{}
	}
	if d.release != nil {
		<-d.release
	}
	return Result{}, d.err
}

func (d *countingDrainer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func TestSchedulerDrainsOnceOnOnlineTransition(t *testing.T) {
	conn := &fakeConn{}
	drainer := &countingDrainer{started: make(chan struct{}, 4)}
	sched := NewScheduler(drainer, newStubOutbox(), conn)
	sched.Start(context.Background())

	conn.SetOnline(true)
	select {
	case <-drainer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("drain never started after online transition")
	}

	// Staying online and going offline are not edges that trigger a drain.
	conn.SetOnline(true)
	conn.SetOnline(false)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, drainer.callCount())

	// A second offline→online edge fires exactly one more drain.
	conn.SetOnline(true)
	select {
	case <-drainer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("drain never started after second transition")
	}
	assert.Equal(t, 2, drainer.callCount())
}

func TestTriggerSyncFailsFastWhenOffline(t *testing.T) {
	conn := &fakeConn{}
	drainer := &countingDrainer{}
	sched := NewScheduler(drainer, newStubOutbox(), conn)

	_, err := sched.TriggerSync(context.Background(), "")
	require.ErrorIs(t, err, ErrOffline)
	assert.Zero(t, drainer.callCount())
	assert.Equal(t, ErrOffline.Error(), sched.LastSyncError())
}

func TestConcurrentTriggersAreRejected(t *testing.T) {
	conn := &fakeConn{}
	conn.SetOnline(true)
	drainer := &countingDrainer{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	sched := NewScheduler(drainer, newStubOutbox(), conn)

	done := make(chan error, 1)
	go func() {
		_, err := sched.TriggerSync(context.Background(), "")
		done <- err
	}()
	<-drainer.started
	assert.True(t, sched.IsSyncing())

	_, err := sched.TriggerSync(context.Background(), "")
	require.ErrorIs(t, err, ErrSyncInFlight)

	close(drainer.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, drainer.callCount())
	assert.False(t, sched.IsSyncing())
}

func TestSchedulerPublishesStateAndCount(t *testing.T) {
	conn := &fakeConn{}
	conn.SetOnline(true)
	outbox := newStubOutbox()
	enqueueReceipt(t, outbox, "m1")

	cloud := newMockSubmitter()
	engine := newTestEngine(outbox, cloud, nil)
	sched := NewScheduler(engine, outbox, conn)

	var states []bool
	var counts []int64
	sched.OnSyncStateChanged(func(syncing bool) { states = append(states, syncing) })
	sched.OnPendingCountChanged(func(count int64) { counts = append(counts, count) })

	require.NoError(t, sched.RefreshPendingCount(context.Background()))
	assert.Equal(t, int64(1), sched.PendingCount())

	res, err := sched.TriggerSync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, []bool{true, false}, states)
	assert.Equal(t, []int64{1, 0}, counts)
	assert.Zero(t, sched.PendingCount())
	assert.Empty(t, sched.LastSyncError())
}

func TestSchedulerRecordsEngineError(t *testing.T) {
	conn := &fakeConn{}
	conn.SetOnline(true)
	drainer := &countingDrainer{err: errors.New("sync: list pending: disk I/O error")}
	sched := NewScheduler(drainer, newStubOutbox(), conn)

	_, err := sched.TriggerSync(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, "sync: list pending: disk I/O error", sched.LastSyncError())

	// A later clean pass clears the sticky error.
	drainer.err = nil
	_, err = sched.TriggerSync(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, sched.LastSyncError())
}
