package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/beamship/beam/internal/session"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Client talks to the transfer engine over a single websocket. Inbound
// transfer notifications are surfaced on Signals; commands are
// request/response with at most one command in flight.
type Client struct {
	conn   Conn
	ws     *websocket.Conn
	logger *zap.Logger

	signals chan session.Signal
	resp    chan Msg

	mu     sync.Mutex // serializes commands
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to the transfer engine at addr.
func Dial(ctx context.Context, addr string, logger *zap.Logger) (*Client, error) {
	ws, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/sender", addr), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing transfer engine: %w", err)
	}
	c := NewClient(&WS{Conn: ws}, logger)
	c.ws = ws
	return c, nil
}

// NewClient wraps an established connection and starts the read loop.
func NewClient(conn Conn, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:    conn,
		logger:  logger,
		signals: make(chan session.Signal, 16),
		resp:    make(chan Msg, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	go c.readLoop()
	return c
}

// Signals is the inbound notification stream. Closed when the connection
// goes away.
func (c *Client) Signals() <-chan session.Signal {
	return c.signals
}

// StartSharing requests a share for path and returns the bound ticket.
func (c *Client) StartSharing(ctx context.Context, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Discard a response left over from a command that timed out.
	select {
	case <-c.resp:
	default:
	}

	if err := c.writeMsg(ctx, Msg{Type: SenderToEngineStart, Payload: Payload{Path: path}}); err != nil {
		return "", fmt.Errorf("requesting share: %w", err)
	}
	select {
	case msg := <-c.resp:
		switch msg.Type {
		case EngineToSenderTicket:
			return msg.Payload.Ticket, nil
		case EngineToSenderReject:
			return "", errors.New(msg.Payload.Message)
		default:
			return "", Error{Expected: []MsgType{EngineToSenderTicket, EngineToSenderReject}, Got: msg.Type}
		}
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.ctx.Done():
		return "", errors.New("connection to transfer engine closed")
	}
}

// StopSharing cancels the active share. Fire-and-forget; the engine
// settles asynchronously.
func (c *Client) StopSharing(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeMsg(ctx, Msg{Type: SenderToEngineStop})
}

// Close tears down the connection and the read loop.
func (c *Client) Close() error {
	c.cancel()
	if c.ws != nil {
		return c.ws.Close(websocket.StatusNormalClosure, "")
	}
	return nil
}

func (c *Client) writeMsg(ctx context.Context, msg Msg) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, payload)
}

// readLoop routes inbound frames: notifications onto the signal stream,
// command responses to the waiting command.
func (c *Client) readLoop() {
	defer close(c.signals)
	for {
		payload, err := c.conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("engine connection closed", zap.Error(err))
			}
			return
		}
		var msg Msg
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.logger.Warn("skipping malformed engine frame", zap.Error(err))
			continue
		}
		switch msg.Type {
		case EngineToSenderProgress:
			c.forward(session.Signal{Kind: session.SignalProgress, Payload: msg.Payload.Progress})
		case EngineToSenderCompleted:
			c.forward(session.Signal{Kind: session.SignalCompleted})
		case EngineToSenderFailed:
			c.forward(session.Signal{Kind: session.SignalFailed})
		case EngineToSenderTicket, EngineToSenderReject:
			select {
			case c.resp <- msg:
			default:
				c.logger.Warn("dropping unsolicited engine response", zap.String("type", msg.Type.Name()))
			}
		default:
			c.logger.Warn("dropping unexpected engine message", zap.String("type", msg.Type.Name()))
		}
	}
}

func (c *Client) forward(sig session.Signal) {
	select {
	case c.signals <- sig:
	case <-c.ctx.Done():
	}
}
