package session

import "time"

// Metadata summarizes a finished transfer attempt. It is produced exactly
// once per terminal transition and never mutated afterwards.
type Metadata struct {
	FileName   string
	FileSize   int64
	Duration   time.Duration
	StartedAt  time.Time
	EndedAt    time.Time
	WasStopped bool
}
