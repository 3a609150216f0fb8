package session

import "golang.org/x/exp/slices"

// State is the single source of truth for the sender lifecycle. Exactly one
// state is active at any instant.
type State int

// The lifecycle flows from the top down. TransferStopped is a parallel
// branch reachable from the two active states and decays back to Idle.
const (
	Idle State = iota
	FileSelected
	WaitingForReceiver
	Transferring
	TransferComplete
	TransferStopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case FileSelected:
		return "FileSelected"
	case WaitingForReceiver:
		return "WaitingForReceiver"
	case Transferring:
		return "Transferring"
	case TransferComplete:
		return "TransferComplete"
	case TransferStopped:
		return "TransferStopped"
	default:
		return "Unknown"
	}
}

// validTransitions encodes transition legality. Any trigger that would move
// the machine anywhere else is a logged no-op, never an error. Failure
// notifications may land in any non-terminal state, hence the
// TransferStopped edges from Idle and FileSelected.
var validTransitions = map[State][]State{
	Idle:               {FileSelected, TransferStopped},
	FileSelected:       {WaitingForReceiver, TransferStopped},
	WaitingForReceiver: {Transferring, Idle, TransferStopped},
	Transferring:       {TransferComplete, TransferStopped},
	TransferComplete:   {Idle},
	TransferStopped:    {Idle},
}

func canTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}
