package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/beamship/beam/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ------------------------------------------------ Fake collaborators -------------------------------------------------

type fakeEngine struct {
	mu       sync.Mutex
	ticket   string
	startErr error
	stops    int
}

func (e *fakeEngine) StartSharing(_ context.Context, _ string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return "", e.startErr
	}
	return e.ticket, nil
}

func (e *fakeEngine) StopSharing(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	return nil
}

func (e *fakeEngine) stopCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

func (e *fakeEngine) setStartErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startErr = err
}

type fakeFS struct {
	mu          sync.Mutex
	kind        session.PathKind
	classifyErr error
	size        int64
	sizeErr     error
	sizeGate    chan struct{} // when set, FileSize blocks until closed
}

func (f *fakeFS) Classify(_ string) (session.PathKind, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kind, f.classifyErr
}

func (f *fakeFS) FileSize(_ string) (int64, error) {
	f.mu.Lock()
	gate := f.sizeGate
	size, err := f.size, f.sizeErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return size, err
}

type alert struct {
	title       string
	description string
	severity    session.Severity
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []alert
}

func (a *fakeAlerter) ShowAlert(title, description string, severity session.Severity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert{title: title, description: description, severity: severity})
}

func (a *fakeAlerter) Dismiss() {}

func (a *fakeAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

// ---------------------------------------------------- Harness --------------------------------------------------------

type harness struct {
	session *session.Session
	signals chan session.Signal
	engine  *fakeEngine
	fs      *fakeFS
	alerter *fakeAlerter
}

func newHarness(t *testing.T, opts ...session.Option) *harness {
	t.Helper()
	h := &harness{
		engine:  &fakeEngine{ticket: "abc123"},
		fs:      &fakeFS{kind: session.KindFile, size: 2048},
		alerter: &fakeAlerter{},
		signals: make(chan session.Signal),
	}
	defaults := []session.Option{
		session.WithDebounce(10 * time.Millisecond),
		session.WithGraceDelay(250 * time.Millisecond),
	}
	h.session = session.New(h.engine, h.fs, h.alerter, zap.NewNop(), append(defaults, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.session.Run(ctx, h.signals) //nolint:errcheck
	return h
}

// waitFor reads snapshots until pred matches. Intermediate snapshots may be
// replaced by newer ones, which is fine: tests wait for a target condition,
// not for every hop.
func (h *harness) waitFor(t *testing.T, pred func(session.Snapshot) bool) session.Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-h.session.Updates():
			if pred(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
			return session.Snapshot{}
		}
	}
}

func (h *harness) waitForState(t *testing.T, state session.State) session.Snapshot {
	t.Helper()
	return h.waitFor(t, func(snap session.Snapshot) bool { return snap.State == state })
}

// waitForStateNever fails the test if forbidden shows up before target.
func (h *harness) waitForStateNever(t *testing.T, target, forbidden session.State) session.Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-h.session.Updates():
			require.NotEqual(t, forbidden, snap.State)
			if snap.State == target {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
			return session.Snapshot{}
		}
	}
}

// startTransfer walks a session to Transferring.
func (h *harness) startTransfer(t *testing.T) {
	t.Helper()
	h.session.SelectFile("/tmp/a.bin")
	h.waitForState(t, session.FileSelected)
	h.session.StartSharing()
	h.waitForState(t, session.WaitingForReceiver)
	h.signals <- session.Signal{Kind: session.SignalProgress, Payload: "1024:2048:500000"}
	h.waitForState(t, session.Transferring)
}

// ----------------------------------------------------- Tests ---------------------------------------------------------

func TestSelectAndStart(t *testing.T) {
	h := newHarness(t)

	h.session.SelectFile("/tmp/a.bin")
	snap := h.waitForState(t, session.FileSelected)
	require.NotNil(t, snap.Selected)
	assert.Equal(t, "/tmp/a.bin", snap.Selected.Path)
	assert.Equal(t, session.KindFile, snap.Selected.Kind)
	assert.Empty(t, snap.Ticket)

	h.session.StartSharing()
	snap = h.waitForState(t, session.WaitingForReceiver)
	assert.Equal(t, "abc123", snap.Ticket)
	assert.Nil(t, snap.Metadata)

	h.signals <- session.Signal{Kind: session.SignalProgress, Payload: "1024:2048:500000"}
	h.waitForState(t, session.Transferring)

	snap = h.waitFor(t, func(snap session.Snapshot) bool { return snap.Progress != nil })
	assert.Equal(t, int64(1024), snap.Progress.BytesTransferred)
	assert.Equal(t, int64(2048), snap.Progress.TotalBytes)
	assert.Equal(t, float64(500), snap.Progress.SpeedBps)
	assert.Equal(t, float64(50), snap.Progress.Percentage)
}

func TestStartRejected(t *testing.T) {
	h := newHarness(t)
	h.engine.setStartErr(assert.AnError)

	h.session.SelectFile("/tmp/a.bin")
	h.waitForState(t, session.FileSelected)
	h.session.StartSharing()

	assert.Eventually(t, func() bool { return h.alerter.count() == 1 }, time.Second, 10*time.Millisecond)

	// No partial transition: a retry still works once the engine accepts.
	h.engine.setStartErr(nil)
	h.session.StartSharing()
	snap := h.waitForState(t, session.WaitingForReceiver)
	assert.Equal(t, "abc123", snap.Ticket)
}

func TestSelectionIgnoredOutsideIdle(t *testing.T) {
	h := newHarness(t)

	h.session.SelectFile("/tmp/a.bin")
	h.waitForState(t, session.FileSelected)

	h.session.SelectFile("/tmp/b.bin")
	h.session.StartSharing()
	snap := h.waitForState(t, session.WaitingForReceiver)
	require.NotNil(t, snap.Selected)
	assert.Equal(t, "/tmp/a.bin", snap.Selected.Path)
}

func TestUnreadablePathDropped(t *testing.T) {
	h := newHarness(t)
	h.fs.mu.Lock()
	h.fs.classifyErr = assert.AnError
	h.fs.mu.Unlock()

	h.session.SelectFile("/tmp/nope")
	// Input errors never alert; the session just stays Idle.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, h.alerter.count())

	h.fs.mu.Lock()
	h.fs.classifyErr = nil
	h.fs.mu.Unlock()
	h.session.SelectFile("/tmp/a.bin")
	h.waitForState(t, session.FileSelected)
}

func TestHandshakeCompletionIgnored(t *testing.T) {
	h := newHarness(t)

	h.session.SelectFile("/tmp/a.bin")
	h.waitForState(t, session.FileSelected)
	h.session.StartSharing()
	h.waitForState(t, session.WaitingForReceiver)

	// Completion before any transfer bytes is the handshake layer settling.
	h.signals <- session.Signal{Kind: session.SignalCompleted}

	h.signals <- session.Signal{Kind: session.SignalProgress, Payload: "1024:2048:500000"}
	snap := h.waitForStateNever(t, session.Transferring, session.TransferComplete)
	assert.Nil(t, snap.Metadata)
}

func TestCompletion(t *testing.T) {
	h := newHarness(t)
	h.startTransfer(t)

	h.signals <- session.Signal{Kind: session.SignalCompleted}
	snap := h.waitForState(t, session.TransferComplete)
	require.NotNil(t, snap.Metadata)
	assert.Equal(t, "a.bin", snap.Metadata.FileName)
	assert.Equal(t, int64(2048), snap.Metadata.FileSize)
	assert.False(t, snap.Metadata.WasStopped)
	assert.False(t, snap.Metadata.StartedAt.IsZero())
	assert.False(t, snap.Metadata.EndedAt.IsZero())
	assert.Empty(t, snap.Ticket)
}

func TestCompletionSizeLookupFails(t *testing.T) {
	h := newHarness(t)
	h.fs.mu.Lock()
	h.fs.sizeErr = assert.AnError
	h.fs.mu.Unlock()
	h.startTransfer(t)

	h.signals <- session.Signal{Kind: session.SignalCompleted}
	snap := h.waitForState(t, session.TransferComplete)
	require.NotNil(t, snap.Metadata)
	assert.Equal(t, "Unknown", snap.Metadata.FileName)
	assert.Equal(t, int64(0), snap.Metadata.FileSize)
	// Degraded data is not an error to the user.
	assert.Equal(t, 0, h.alerter.count())
}

func TestProgressDuringCompletionDiesWithCommit(t *testing.T) {
	h := newHarness(t, session.WithDebounce(100*time.Millisecond))
	gate := make(chan struct{})
	h.fs.mu.Lock()
	h.fs.sizeGate = gate
	h.fs.mu.Unlock()
	h.startTransfer(t)

	h.signals <- session.Signal{Kind: session.SignalCompleted}
	// A sample landing while the size lookup is still in flight must not
	// outlive the terminal commit.
	h.signals <- session.Signal{Kind: session.SignalProgress, Payload: "2048:2048:0"}
	close(gate)

	snap := h.waitForState(t, session.TransferComplete)
	require.NotNil(t, snap.Metadata)

	select {
	case snap := <-h.session.Updates():
		assert.Nil(t, snap.Progress, "progress published into state %s after terminal commit", snap.State)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestStopWhileWaiting(t *testing.T) {
	h := newHarness(t)

	h.session.SelectFile("/tmp/a.bin")
	h.waitForState(t, session.FileSelected)
	h.session.StartSharing()
	h.waitForState(t, session.WaitingForReceiver)

	h.session.StopSharing()
	snap := h.waitForState(t, session.Idle)
	assert.Nil(t, snap.Selected)
	assert.Nil(t, snap.Progress)
	assert.Nil(t, snap.Metadata)
	assert.Empty(t, snap.Ticket)
	assert.Eventually(t, func() bool { return h.engine.stopCount() >= 1 }, time.Second, 10*time.Millisecond)
}

func TestStopWhileTransferring(t *testing.T) {
	h := newHarness(t)
	h.startTransfer(t)

	h.session.StopSharing()
	snap := h.waitForState(t, session.TransferStopped)
	require.NotNil(t, snap.Metadata)
	assert.True(t, snap.Metadata.WasStopped)
	assert.Equal(t, "a.bin", snap.Metadata.FileName)
	assert.Equal(t, int64(2048), snap.Metadata.FileSize)
	assert.Empty(t, snap.Ticket)

	// A completion racing the stop for the same attempt must be discarded,
	// then the grace period decays the session back to Idle.
	h.signals <- session.Signal{Kind: session.SignalCompleted}
	snap = h.waitForStateNever(t, session.Idle, session.TransferComplete)
	assert.Nil(t, snap.Metadata)
	assert.Nil(t, snap.Selected)
	assert.Empty(t, snap.Ticket)
}

func TestFailureWhileTransferring(t *testing.T) {
	h := newHarness(t)
	h.startTransfer(t)

	h.signals <- session.Signal{Kind: session.SignalFailed}
	snap := h.waitForState(t, session.TransferStopped)
	require.NotNil(t, snap.Metadata)
	assert.True(t, snap.Metadata.WasStopped)
	assert.Equal(t, int64(0), snap.Metadata.FileSize)

	h.waitForState(t, session.Idle)
}

func TestFailureAfterManualStopDiscarded(t *testing.T) {
	h := newHarness(t)
	h.startTransfer(t)

	h.session.StopSharing()
	h.waitForState(t, session.TransferStopped)

	h.signals <- session.Signal{Kind: session.SignalFailed}
	snap := h.waitForState(t, session.Idle)
	assert.Nil(t, snap.Metadata)
}

func TestCoalescing(t *testing.T) {
	h := newHarness(t, session.WithDebounce(50*time.Millisecond))

	h.session.SelectFile("/tmp/a.bin")
	h.waitForState(t, session.FileSelected)
	h.session.StartSharing()
	h.waitForState(t, session.WaitingForReceiver)

	// Two samples inside one window: the later processed one wins, even
	// though it reports fewer bytes.
	h.signals <- session.Signal{Kind: session.SignalProgress, Payload: "100:1000:0"}
	h.signals <- session.Signal{Kind: session.SignalProgress, Payload: "50:1000:0"}

	snap := h.waitFor(t, func(snap session.Snapshot) bool { return snap.Progress != nil })
	assert.Equal(t, int64(50), snap.Progress.BytesTransferred)
	assert.Equal(t, float64(5), snap.Progress.Percentage)
}

func TestResetAfterComplete(t *testing.T) {
	h := newHarness(t)
	h.startTransfer(t)

	h.signals <- session.Signal{Kind: session.SignalCompleted}
	h.waitForState(t, session.TransferComplete)

	h.session.Reset()
	snap := h.waitForState(t, session.Idle)
	assert.Nil(t, snap.Selected)
	assert.Nil(t, snap.Metadata)
	assert.Nil(t, snap.Progress)
	assert.Empty(t, snap.Ticket)
	assert.Eventually(t, func() bool { return h.engine.stopCount() >= 1 }, time.Second, 10*time.Millisecond)

	// A fresh attempt works after the reset.
	h.session.SelectFile("/tmp/b.bin")
	snap = h.waitForState(t, session.FileSelected)
	require.NotNil(t, snap.Selected)
	assert.Equal(t, "/tmp/b.bin", snap.Selected.Path)
}

func TestStopIsNoOpWhenIdle(t *testing.T) {
	h := newHarness(t)

	h.session.StopSharing()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, h.engine.stopCount())

	h.session.SelectFile("/tmp/a.bin")
	h.waitForState(t, session.FileSelected)
}

func TestMalformedProgressDropped(t *testing.T) {
	h := newHarness(t)

	h.session.SelectFile("/tmp/a.bin")
	h.waitForState(t, session.FileSelected)
	h.session.StartSharing()
	h.waitForState(t, session.WaitingForReceiver)

	h.signals <- session.Signal{Kind: session.SignalProgress, Payload: "not-a-triple"}
	h.signals <- session.Signal{Kind: session.SignalProgress, Payload: "1024:2048:500000"}
	h.waitForState(t, session.Transferring)
}

func TestRunRefusesDoubleInstall(t *testing.T) {
	engine := &fakeEngine{ticket: "abc123"}
	fs := &fakeFS{kind: session.KindFile}
	s := session.New(engine, fs, &fakeAlerter{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan session.Signal)
	go s.Run(ctx, signals) //nolint:errcheck

	// The initial snapshot proves the loop is installed.
	<-s.Updates()
	assert.Equal(t, session.ErrAlreadyRunning, s.Run(ctx, signals))
}
