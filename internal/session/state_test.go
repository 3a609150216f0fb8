package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	t.Run("legal", func(t *testing.T) {
		legal := []struct {
			from State
			to   State
		}{
			{Idle, FileSelected},
			{FileSelected, WaitingForReceiver},
			{WaitingForReceiver, Transferring},
			{WaitingForReceiver, Idle},
			{Transferring, TransferComplete},
			{Transferring, TransferStopped},
			{TransferComplete, Idle},
			{TransferStopped, Idle},
			{Idle, TransferStopped},
			{FileSelected, TransferStopped},
			{WaitingForReceiver, TransferStopped},
		}
		for _, tc := range legal {
			assert.True(t, canTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
		}
	})
	t.Run("illegal", func(t *testing.T) {
		illegal := []struct {
			from State
			to   State
		}{
			{Idle, Transferring},
			{Idle, TransferComplete},
			{FileSelected, Transferring},
			{FileSelected, Idle},
			{WaitingForReceiver, TransferComplete},
			{Transferring, Idle},
			{Transferring, WaitingForReceiver},
			{TransferComplete, TransferStopped},
			{TransferStopped, TransferComplete},
			{TransferComplete, FileSelected},
		}
		for _, tc := range illegal {
			assert.False(t, canTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
		}
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "TransferStopped", TransferStopped.String())
	assert.Equal(t, "Unknown", State(42).String())
}
