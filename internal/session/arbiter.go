package session

import (
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// The engine emits the same "completed" signal for handshake/metadata
// completion and for data-transfer completion. The only reliable
// discriminator is whether this session has seen transfer bytes, so a
// completion is terminal only when the state is Transferring.
func (s *Session) handleCompleted() {
	if s.manualStop {
		s.logger.Info("discarding completion after manual stop")
		return
	}
	if s.state != Transferring {
		s.logger.Info("discarding handshake-layer completion", zap.String("state", s.state.String()))
		return
	}
	if s.completing {
		s.logger.Debug("completion already in flight")
		return
	}
	s.completing = true
	s.clearPendingVisible()

	gen := s.gen
	path := s.selected.Path
	go func() {
		size, err := s.fs.FileSize(path)
		s.post(sizedEvent{gen: gen, name: filepath.Base(path), size: size, err: err})
	}()
}

// handleSized finishes the completion commit once file attributes resolve.
// The state read here may differ from the one at notification time, so the
// terminal conditions are re-checked before committing.
func (s *Session) handleSized(ev sizedEvent) {
	if ev.gen != s.gen || s.state != Transferring || s.manualStop {
		s.logger.Debug("dropping stale size lookup result")
		return
	}
	name, size := ev.name, ev.size
	if ev.err != nil {
		// Non-fatal: the transfer still completed, only the summary degrades.
		s.logger.Warn("file size lookup failed", zap.Error(ev.err))
		name, size = "Unknown", 0
	}
	s.commitTerminal(s.buildMetadata(name, size, false), TransferComplete)
}

func (s *Session) handleFailed() {
	if s.manualStop {
		s.logger.Info("discarding failure after manual stop")
		return
	}
	if s.state == TransferComplete || s.state == TransferStopped {
		// Terminal metadata is never rebuilt; a late failure is stale noise.
		s.logger.Info("discarding failure in terminal state", zap.String("state", s.state.String()))
		return
	}
	s.clearPendingVisible()
	s.commitTerminal(s.buildMetadata(s.selectedName(), 0, true), TransferStopped)
}

// buildMetadata assembles terminal metadata from the recorded start
// timestamp and the provided file attributes.
func (s *Session) buildMetadata(name string, size int64, stopped bool) Metadata {
	now := time.Now()
	md := Metadata{
		FileName:   name,
		FileSize:   size,
		StartedAt:  s.startedAt,
		EndedAt:    now,
		WasStopped: stopped,
	}
	if !s.startedAt.IsZero() {
		md.Duration = now.Sub(s.startedAt)
	}
	return md
}

// commitTerminal applies a terminal outcome as one atomic step: metadata
// and state are never observable out of sync, and the ticket's lifetime
// ends with the attempt. Samples staged between the notification and the
// commit die here too, so the debounce timer can never fire into a
// settled state.
func (s *Session) commitTerminal(md Metadata, to State) {
	if !canTransition(s.state, to) {
		s.logger.Warn("refusing illegal terminal transition",
			zap.String("from", s.state.String()),
			zap.String("to", to.String()),
		)
		return
	}
	s.clearPendingVisible()
	s.metadata = &md
	s.ticket = ""
	s.completing = false
	s.state = to
	s.logger.Info("transfer attempt finished",
		zap.String("state", to.String()),
		zap.Bool("was_stopped", md.WasStopped),
	)
	if to == TransferStopped {
		s.armGrace()
	}
	s.publish()
}
