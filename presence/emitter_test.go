package presence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	name string

	mu    sync.Mutex
	err   error
	calls []Signal
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Deliver(ctx context.Context, sig Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sig)
	return f.err
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) lastCall() Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeTransport) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger(filepath.Join(t.TempDir(), "pending-closure.json"))
}

func TestSignalClosureDedup(t *testing.T) {
	transport := &fakeTransport{name: "beacon"}
	emitter := NewEmitter(NewSession(), newTestLedger(t), transport)

	// Lifecycle events fire in sequence: hide, then unload.
	require.NoError(t, emitter.SignalClosure(context.Background(), TriggerHide))
	require.NoError(t, emitter.SignalClosure(context.Background(), TriggerUnload))

	assert.Equal(t, 1, transport.callCount(), "one closure signal per open session")
	assert.Equal(t, TriggerHide, transport.lastCall().Trigger)
}

func TestSignalClosureFallbackChain(t *testing.T) {
	beacon := &fakeTransport{name: "beacon", err: errors.New("boom")}
	keepalive := &fakeTransport{name: "keepalive"}
	ledger := newTestLedger(t)
	emitter := NewEmitter(NewSession(), ledger, beacon, keepalive)

	require.NoError(t, emitter.SignalClosure(context.Background(), TriggerHide))

	assert.Equal(t, 1, beacon.callCount())
	assert.Equal(t, 1, keepalive.callCount(), "second transport picks up after the first fails")

	pc, err := ledger.Load()
	require.NoError(t, err)
	assert.Nil(t, pc, "no pending closure when a transport succeeded")
}

func TestSignalClosureStoresPendingOnTotalFailure(t *testing.T) {
	beacon := &fakeTransport{name: "beacon", err: errors.New("offline")}
	keepalive := &fakeTransport{name: "keepalive", err: errors.New("offline")}
	ledger := newTestLedger(t)
	emitter := NewEmitter(NewSession(), ledger, beacon, keepalive)

	require.NoError(t, emitter.SignalClosure(context.Background(), TriggerHide))

	pc, err := ledger.Load()
	require.NoError(t, err)
	require.NotNil(t, pc)
	assert.Equal(t, TriggerHide, pc.Trigger)
	assert.False(t, pc.Synced)
	assert.WithinDuration(t, time.Now(), pc.Timestamp, 5*time.Second)
}

func TestSyncPendingReplaysAndClears(t *testing.T) {
	transport := &fakeTransport{name: "keepalive", err: errors.New("offline")}
	ledger := newTestLedger(t)
	emitter := NewEmitter(NewSession(), ledger, transport)

	require.NoError(t, emitter.SignalClosure(context.Background(), TriggerHide))
	original, err := ledger.Load()
	require.NoError(t, err)
	require.NotNil(t, original)

	// Network is back on the next load.
	transport.setErr(nil)

	synced, err := emitter.SyncPending(context.Background())
	require.NoError(t, err)
	assert.True(t, synced)

	replay := transport.lastCall()
	assert.Equal(t, TriggerReconcile, replay.Trigger)
	assert.Equal(t, TriggerHide, replay.OriginalTrigger, "original trigger preserved for audit")
	assert.True(t, replay.Timestamp.Equal(original.Timestamp), "original timestamp preserved")

	pc, err := ledger.Load()
	require.NoError(t, err)
	assert.Nil(t, pc, "ledger cleared after acknowledgment")

	// Running it again is safe and does nothing.
	synced, err = emitter.SyncPending(context.Background())
	require.NoError(t, err)
	assert.False(t, synced)
}

func TestSyncPendingKeepsLedgerOnFailure(t *testing.T) {
	transport := &fakeTransport{name: "keepalive", err: errors.New("offline")}
	ledger := newTestLedger(t)
	emitter := NewEmitter(NewSession(), ledger, transport)

	require.NoError(t, emitter.SignalClosure(context.Background(), TriggerHide))

	synced, err := emitter.SyncPending(context.Background())
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.False(t, synced)

	pc, loadErr := ledger.Load()
	require.NoError(t, loadErr)
	assert.NotNil(t, pc, "ledger intact for the next opportunity")
}

func TestBeginSessionResetsGuard(t *testing.T) {
	transport := &fakeTransport{name: "beacon"}
	emitter := NewEmitter(NewSession(), newTestLedger(t), transport)

	require.NoError(t, emitter.SignalClosure(context.Background(), TriggerHide))
	require.Equal(t, 1, transport.callCount())

	// Fresh punch-in, fresh session, fresh guard.
	emitter.BeginSession(NewSession())
	require.NoError(t, emitter.SignalClosure(context.Background(), TriggerManual))
	assert.Equal(t, 2, transport.callCount())
}

func TestLedgerRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)

	pc, err := ledger.Load()
	require.NoError(t, err)
	assert.Nil(t, pc)

	stored := PendingClosure{
		Timestamp: time.Date(2024, 3, 12, 17, 45, 0, 0, time.UTC),
		Trigger:   TriggerHide,
	}
	require.NoError(t, ledger.Store(stored))

	pc, err = ledger.Load()
	require.NoError(t, err)
	require.NotNil(t, pc)
	assert.True(t, pc.Timestamp.Equal(stored.Timestamp))
	assert.Equal(t, TriggerHide, pc.Trigger)

	require.NoError(t, ledger.Clear())
	pc, err = ledger.Load()
	require.NoError(t, err)
	assert.Nil(t, pc)

	// Clearing an already-empty ledger is fine.
	require.NoError(t, ledger.Clear())
}

func TestLedgerCorruptFileTreatedAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending-closure.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	ledger := NewLedger(path)
	pc, err := ledger.Load()
	require.NoError(t, err)
	assert.Nil(t, pc)
}

func TestRetryPendingDeliversWhenNetworkReturns(t *testing.T) {
	transport := &fakeTransport{name: "keepalive", err: errors.New("offline")}
	ledger := newTestLedger(t)
	emitter := NewEmitter(NewSession(), ledger, transport)

	require.NoError(t, emitter.SignalClosure(context.Background(), TriggerHide))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		emitter.RetryPending(ctx, 5*time.Millisecond)
		close(done)
	}()

	// Let a few failed attempts happen, then bring the network back.
	require.Eventually(t, func() bool {
		return transport.callCount() >= 2
	}, time.Second, time.Millisecond)
	transport.setErr(nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retry loop did not stop after a successful replay")
	}

	pc, err := ledger.Load()
	require.NoError(t, err)
	assert.Nil(t, pc, "ledger cleared once the replay got through")
	assert.Equal(t, TriggerReconcile, transport.lastCall().Trigger)
}

func TestHeartbeatRun(t *testing.T) {
	transport := &fakeTransport{name: "heartbeat"}
	hb := NewHeartbeat(transport, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hb.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return transport.callCount() >= 2
	}, time.Second, time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, "heartbeat", transport.lastCall().Trigger)
}
