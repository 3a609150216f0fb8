package engine

import (
	"fmt"
	"strings"
)

type MsgType int

const (
	SenderToEngineStart     MsgType = iota // Sender requests a share for a path
	EngineToSenderTicket                   // Engine accepted the share, a ticket is bound
	EngineToSenderReject                   // Engine rejected the share request
	SenderToEngineStop                     // Sender cancels the active share
	EngineToSenderProgress                 // Engine reports transfer progress
	EngineToSenderCompleted                // Engine reports a completion event
	EngineToSenderFailed                   // Engine reports a transfer failure
)

type Msg struct {
	Type    MsgType `json:"type"`
	Payload Payload `json:"payload,omitempty"`
}

type Payload struct {
	Path     string `json:"path,omitempty"`
	Ticket   string `json:"ticket,omitempty"`
	Message  string `json:"message,omitempty"`
	Progress string `json:"progress,omitempty"`
}

type Error struct {
	Expected []MsgType
	Got      MsgType
}

func (e Error) Error() string {
	var expectedMessageTypes []string
	for _, expectedType := range e.Expected {
		expectedMessageTypes = append(expectedMessageTypes, expectedType.Name())
	}
	oneOfExpected := strings.Join(expectedMessageTypes, ", ")
	return fmt.Sprintf("wrong message type, expected one of: (%s), got: (%s)", oneOfExpected, e.Got.Name())
}

func (t MsgType) Name() string {
	switch t {
	case SenderToEngineStart:
		return "SenderToEngineStart"
	case EngineToSenderTicket:
		return "EngineToSenderTicket"
	case EngineToSenderReject:
		return "EngineToSenderReject"
	case SenderToEngineStop:
		return "SenderToEngineStop"
	case EngineToSenderProgress:
		return "EngineToSenderProgress"
	case EngineToSenderCompleted:
		return "EngineToSenderCompleted"
	case EngineToSenderFailed:
		return "EngineToSenderFailed"
	default:
		return ""
	}
}
