package chatws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/forgeline/forgeline/internal/bus"
)

// sendQueueSize bounds the per-connection outbound frame channel; the bus
// subscription itself is already bounded (internal/bus), this is the
// second-stage buffer between "event ready to send" and "written to the
// socket" so a momentarily slow TCP write doesn't stall bus delivery.
const sendQueueSize = 64

// incomingRequest is the chat transport's one client->server frame shape:
// `{"message": "..."}`.
type incomingRequest struct {
	Message string `json:"message"`
}

// outgoingFrame is the wire shape of one server->client frame: the bus
// event's name and payload, scoped to the connection's session implicitly.
type outgoingFrame struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// client is one WebSocket connection bound to exactly one session.
type client struct {
	id        string
	conn      *websocket.Conn
	srv       *Server
	sessionID string
	sendCh    chan outgoingFrame
	limiter   *rate.Limiter
}

func newClient(conn *websocket.Conn, srv *Server, sessionID string) *client {
	return &client{
		id:        uuid.NewString(),
		conn:      conn,
		srv:       srv,
		sessionID: sessionID,
		sendCh:    make(chan outgoingFrame, sendQueueSize),
		limiter:   srv.newLimiter(),
	}
}

// run drives the connection until the client disconnects: it subscribes to
// the Streaming Bus for this session, starts the write pump, and processes
// incoming user messages one at a time, so one user message is fully
// processed before the next begins for this connection.
func (c *client) run(ctx context.Context) {
	sub := c.srv.bus.Subscribe(c.sessionID, c.id)
	defer sub.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.forwardBusEvents(connCtx, sub)
	go c.writePump(connCtx)

	defer c.conn.Close()
	for {
		var req incomingRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("chatws.read_error", "session", c.sessionID, "error", err)
			}
			return
		}
		if req.Message == "" {
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.enqueue(outgoingFrame{Name: "turn.error", Payload: map[string]string{"kind": "RateLimited", "error": "too many messages"}})
			continue
		}

		if _, err := c.srv.loop.Run(connCtx, c.sessionID, req.Message); err != nil {
			slog.Error("chatws.run_failed", "session", c.sessionID, "error", err)
			c.enqueue(outgoingFrame{Name: "turn.error", Payload: map[string]string{"kind": "LoopFailed", "error": err.Error()}})
		}
	}
}

// forwardBusEvents relays every event published for this session onto the
// connection's send queue until the subscription is closed.
func (c *client) forwardBusEvents(ctx context.Context, sub *bus.Subscription) {
	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			c.enqueue(outgoingFrame{Name: evt.Name, Payload: evt.Payload})
		case <-ctx.Done():
			return
		}
	}
}

// enqueue drops the frame (logged) rather than blocking if the connection's
// own send buffer is also full — the same backpressure discipline as the
// bus itself.
func (c *client) enqueue(f outgoingFrame) {
	select {
	case c.sendCh <- f:
	default:
		slog.Warn("chatws.send_queue_overflow", "session", c.sessionID, "event", f.Name)
	}
}

// writePump is the only goroutine permitted to call conn.WriteJSON, since
// gorilla/websocket connections support at most one concurrent writer.
func (c *client) writePump(ctx context.Context) {
	for {
		select {
		case f, ok := <-c.sendCh:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			raw, err := json.Marshal(f)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				slog.Warn("chatws.write_error", "session", c.sessionID, "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
