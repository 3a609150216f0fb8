package session

import "context"

// PathKind classifies a selectable path.
type PathKind int

const (
	KindFile PathKind = iota
	KindDirectory
)

func (k PathKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// SelectedItem is the path picked for the current transfer attempt. The
// session owns it exclusively; collaborators only see copies in snapshots.
type SelectedItem struct {
	Path string
	Kind PathKind
}

// Severity grades user-facing alerts.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// Engine is the narrow boundary to the backend transfer engine.
type Engine interface {
	// StartSharing asks the engine to share path and returns the share
	// ticket a receiver uses to connect.
	StartSharing(ctx context.Context, path string) (string, error)
	// StopSharing cancels the active share. Best-effort; may be called
	// when no share is active.
	StopSharing(ctx context.Context) error
}

// FileSystem resolves paths for selection and for completion metadata.
type FileSystem interface {
	Classify(path string) (PathKind, error)
	FileSize(path string) (int64, error)
}

// Alerter is the user-facing alert surface. Purely observational, carries
// no transfer semantics.
type Alerter interface {
	ShowAlert(title, description string, severity Severity)
	Dismiss()
}

// SignalKind enumerates the inbound engine notifications.
type SignalKind int

const (
	SignalProgress SignalKind = iota
	SignalCompleted
	SignalFailed
)

func (k SignalKind) String() string {
	switch k {
	case SignalProgress:
		return "progress"
	case SignalCompleted:
		return "completed"
	case SignalFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Signal is one inbound engine notification. Payload is only set for
// progress signals.
type Signal struct {
	Kind    SignalKind
	Payload string
}
