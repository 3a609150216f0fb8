package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDebounce is the visible-progress coalescing window.
	DefaultDebounce = 100 * time.Millisecond
	// DefaultGraceDelay is how long stopped-transfer metadata stays
	// visible before the session decays back to Idle.
	DefaultGraceDelay = 2 * time.Second
)

// ErrAlreadyRunning is returned when Run is invoked on a session whose
// event loop is already active.
var ErrAlreadyRunning = errors.New("session event loop is already running")

// Snapshot is the externally visible session state. Current state plus the
// derived metadata are the sole outputs presentation consumes.
type Snapshot struct {
	State    State
	Selected *SelectedItem
	Ticket   string
	Progress *ProgressSample
	Metadata *Metadata
}

type Option func(*Session)

func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		s.debounceWindow = d
	}
}

func WithGraceDelay(d time.Duration) Option {
	return func(s *Session) {
		s.graceDelay = d
	}
}

// Session owns the authoritative transfer state for one outbound transfer
// at a time. All mutation happens on the Run goroutine, one trigger at a
// time (run-to-completion); collaborator calls that may take time run on
// their own goroutines and re-enter the loop as events that re-check state
// before committing anything.
type Session struct {
	engine  Engine
	fs      FileSystem
	alerter Alerter
	logger  *zap.Logger

	debounceWindow time.Duration
	graceDelay     time.Duration

	events  chan any
	updates chan Snapshot
	done    chan struct{}
	running atomic.Bool

	// Fields below are owned by the Run goroutine.
	state      State
	selected   *SelectedItem
	ticket     string
	manualStop bool
	completing bool
	startedAt  time.Time
	latest     *ProgressSample // newest processed sample, arbitration truth
	visible    *ProgressSample // debounced presentation truth
	pending    *ProgressSample
	metadata   *Metadata
	gen        uint64 // attempt generation, invalidates stale continuations

	debounce *time.Timer
	grace    *time.Timer
}

func New(engine Engine, fs FileSystem, alerter Alerter, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		engine:         engine,
		fs:             fs,
		alerter:        alerter,
		logger:         logger,
		debounceWindow: DefaultDebounce,
		graceDelay:     DefaultGraceDelay,
		events:         make(chan any, 32),
		updates:        make(chan Snapshot, 1),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Updates returns the snapshot channel consumed by presentation. An
// unconsumed snapshot is replaced by a newer one, never queued.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

// ----------------------------------------------- Command facade ------------------------------------------------

// SelectFile records the selection for a new transfer attempt. No-op
// outside Idle; reset first to select again.
func (s *Session) SelectFile(path string) {
	s.post(selectFileCmd{path: path})
}

// StartSharing asks the engine to share the current selection.
func (s *Session) StartSharing() {
	s.post(startCmd{})
}

// StopSharing stops, acknowledges or ignores depending on the current
// state. See handleStop.
func (s *Session) StopSharing() {
	s.post(stopCmd{})
}

// Reset acknowledges a finished transfer and returns to Idle.
func (s *Session) Reset() {
	s.post(stopCmd{})
}

func (s *Session) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// -------------------------------------------------- Event loop -------------------------------------------------

type selectFileCmd struct {
	path string
}

type classifiedEvent struct {
	gen  uint64
	path string
	kind PathKind
	err  error
}

type startCmd struct{}

type startedEvent struct {
	gen    uint64
	ticket string
	err    error
}

type stopCmd struct{}

type sizedEvent struct {
	gen  uint64
	name string
	size int64
	err  error
}

// Run drives the session event loop until ctx is cancelled. signals is the
// inbound engine notification stream. The loop may only be installed once
// at a time per session.
func (s *Session) Run(ctx context.Context, signals <-chan Signal) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)
	defer close(s.done)
	defer s.stopTimers()

	s.publish()
	for {
		// Timer channels are selectable only while armed.
		var debounceC, graceC <-chan time.Time
		if s.debounce != nil {
			debounceC = s.debounce.C
		}
		if s.grace != nil {
			graceC = s.grace.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			s.handleSignal(sig)
		case <-debounceC:
			s.debounce = nil
			s.flushVisible()
		case <-graceC:
			s.grace = nil
			s.decay()
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case selectFileCmd:
		s.handleSelect(ev.path)
	case classifiedEvent:
		s.handleClassified(ev)
	case startCmd:
		s.handleStart(ctx)
	case startedEvent:
		s.handleStarted(ev)
	case stopCmd:
		s.handleStop(ctx)
	case sizedEvent:
		s.handleSized(ev)
	default:
		s.logger.Warn("unknown session event", zap.Any("event", ev))
	}
}

func (s *Session) handleSignal(sig Signal) {
	switch sig.Kind {
	case SignalProgress:
		s.handleProgress(sig.Payload)
	case SignalCompleted:
		s.handleCompleted()
	case SignalFailed:
		s.handleFailed()
	default:
		s.logger.Warn("unknown engine signal", zap.String("kind", sig.Kind.String()))
	}
}

// ---------------------------------------------- Selection & start ----------------------------------------------

func (s *Session) handleSelect(path string) {
	if s.state != Idle {
		s.logger.Info("ignoring selection outside Idle", zap.String("state", s.state.String()))
		return
	}
	gen := s.gen
	go func() {
		kind, err := s.fs.Classify(path)
		s.post(classifiedEvent{gen: gen, path: path, kind: kind, err: err})
	}()
}

func (s *Session) handleClassified(ev classifiedEvent) {
	if ev.gen != s.gen || s.state != Idle {
		s.logger.Debug("dropping stale classification result", zap.String("path", ev.path))
		return
	}
	if ev.err != nil {
		s.logger.Warn("could not classify selected path", zap.String("path", ev.path), zap.Error(ev.err))
		return
	}
	s.selected = &SelectedItem{Path: ev.path, Kind: ev.kind}
	if s.transition(FileSelected) {
		s.publish()
	}
}

func (s *Session) handleStart(ctx context.Context) {
	if s.state != FileSelected || s.selected == nil {
		s.logger.Info("ignoring start request", zap.String("state", s.state.String()))
		return
	}
	gen := s.gen
	path := s.selected.Path
	go func() {
		ticket, err := s.engine.StartSharing(ctx, path)
		s.post(startedEvent{gen: gen, ticket: ticket, err: err})
	}()
}

func (s *Session) handleStarted(ev startedEvent) {
	if ev.gen != s.gen || s.state != FileSelected {
		s.logger.Debug("dropping stale start acknowledgement")
		return
	}
	if ev.err != nil {
		s.logger.Warn("engine rejected share request", zap.Error(ev.err))
		s.alerter.ShowAlert("Unable to start sharing", ev.err.Error(), SeverityError)
		return
	}
	// A new attempt begins; nothing from the previous one may leak into it.
	s.clearProgress()
	s.metadata = nil
	s.ticket = ev.ticket
	s.startedAt = time.Now()
	if s.transition(WaitingForReceiver) {
		s.publish()
	}
}

// -------------------------------------------- Progress & coalescing --------------------------------------------

func (s *Session) handleProgress(payload string) {
	sample, err := ParseProgress(payload)
	if err != nil {
		s.logger.Warn("dropping malformed progress payload", zap.String("payload", payload), zap.Error(err))
		return
	}
	switch s.state {
	case WaitingForReceiver:
		s.latest = &sample
		s.stageVisible(sample)
		// The first sample with a known total is the proof that bytes are
		// actually moving.
		if sample.TotalBytes > 0 && s.transition(Transferring) {
			s.publish()
		}
	case Transferring:
		s.latest = &sample
		s.stageVisible(sample)
	default:
		s.logger.Debug("dropping progress sample outside active transfer", zap.String("state", s.state.String()))
	}
}

// stageVisible coalesces visible updates: a newer sample supersedes the
// pending one and at most one update fires per debounce window. The latest
// sample reference is already current by the time this runs.
func (s *Session) stageVisible(sample ProgressSample) {
	s.pending = &sample
	if s.debounce == nil {
		s.debounce = time.NewTimer(s.debounceWindow)
	}
}

func (s *Session) flushVisible() {
	if s.pending == nil {
		return
	}
	s.visible = s.pending
	s.pending = nil
	s.publish()
}

// ------------------------------------------------- Stop & reset ------------------------------------------------

func (s *Session) handleStop(ctx context.Context) {
	switch s.state {
	case WaitingForReceiver:
		s.cancelShare(ctx)
		s.resetToIdle()
	case Transferring:
		// Flag first: any in-flight completion or failure racing this
		// stop must lose.
		s.manualStop = true
		s.clearPendingVisible()
		var size int64
		if s.latest != nil {
			size = s.latest.TotalBytes
		}
		s.commitTerminal(s.buildMetadata(s.selectedName(), size, true), TransferStopped)
		s.cancelShare(ctx)
	case TransferComplete, TransferStopped:
		// Acknowledge and reset, with a best-effort backend cleanup.
		s.cancelShare(ctx)
		s.resetToIdle()
	default:
		s.logger.Info("ignoring stop request", zap.String("state", s.state.String()))
	}
}

// cancelShare issues a best-effort stop to the engine. Failures are logged,
// never surfaced.
func (s *Session) cancelShare(ctx context.Context) {
	go func() {
		if err := s.engine.StopSharing(ctx); err != nil {
			s.logger.Warn("engine stop failed", zap.Error(err))
		}
	}()
}

// resetToIdle clears every attempt artifact in one step. Surviving timers
// and continuations from the old attempt are invalidated by the generation
// bump so they cannot fire into the next one.
func (s *Session) resetToIdle() {
	s.gen++
	s.stopTimers()
	s.state = Idle
	s.selected = nil
	s.ticket = ""
	s.manualStop = false
	s.completing = false
	s.startedAt = time.Time{}
	s.latest = nil
	s.visible = nil
	s.pending = nil
	s.metadata = nil
	s.publish()
}

// decay is the automatic TransferStopped -> Idle edge after the grace
// period has elapsed.
func (s *Session) decay() {
	if s.state != TransferStopped {
		return
	}
	s.resetToIdle()
}

func (s *Session) armGrace() {
	if s.grace != nil {
		s.grace.Stop()
	}
	s.grace = time.NewTimer(s.graceDelay)
}

func (s *Session) clearPendingVisible() {
	s.pending = nil
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
}

func (s *Session) clearProgress() {
	s.clearPendingVisible()
	s.latest = nil
	s.visible = nil
}

func (s *Session) stopTimers() {
	s.clearPendingVisible()
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
}

func (s *Session) selectedName() string {
	if s.selected == nil {
		return "Unknown"
	}
	return filepath.Base(s.selected.Path)
}

// -------------------------------------------------- Transitions ------------------------------------------------

// transition moves the machine to the target state if the transition table
// allows it.
func (s *Session) transition(to State) bool {
	if !canTransition(s.state, to) {
		s.logger.Warn("illegal state transition ignored",
			zap.String("from", s.state.String()),
			zap.String("to", to.String()),
		)
		return false
	}
	s.logger.Debug("state transition",
		zap.String("from", s.state.String()),
		zap.String("to", to.String()),
	)
	s.state = to
	return true
}

// publish pushes the current snapshot, replacing an unconsumed older one.
func (s *Session) publish() {
	snap := Snapshot{State: s.state, Ticket: s.ticket}
	if s.selected != nil {
		selected := *s.selected
		snap.Selected = &selected
	}
	if s.visible != nil {
		progress := *s.visible
		snap.Progress = &progress
	}
	if s.metadata != nil {
		metadata := *s.metadata
		snap.Metadata = &metadata
	}

	select {
	case s.updates <- snap:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}
