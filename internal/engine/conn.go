package engine

import (
	"context"

	"nhooyr.io/websocket"
)

// Conn is an interface that wraps a message-level network connection.
type Conn interface {
	Write(ctx context.Context, payload []byte) error
	Read(ctx context.Context) ([]byte, error)
}

// WS is a wrapper around a websocket connection.
type WS struct {
	Conn *websocket.Conn
}

func (ws *WS) Write(ctx context.Context, payload []byte) error {
	return ws.Conn.Write(ctx, websocket.MessageText, payload)
}

func (ws *WS) Read(ctx context.Context) ([]byte, error) {
	_, payload, err := ws.Conn.Read(ctx)
	return payload, err
}
