// Package ipc exposes a websocket control surface between the
// long-running core process and a UI client: the client subscribes to
// OverlayData pushes and can send
// back OverlayCommand-shaped control requests (toggle an overlay,
// request its position). One upgraded connection per client, a
// dedicated write goroutine so concurrent pushes never race the
// connection, and JSON-framed messages.
package ipc

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"combatlogd/internal/overlaydata"
)

// Message is the JSON envelope carried over the websocket connection in
// both directions: Kind-plus-payload, matching this codebase's sum-type
// convention elsewhere (signal.Signal, logging.Event).
type Message struct {
	Kind    string                      `json:"kind"`
	Data    *overlaydata.OverlayData    `json:"data,omitempty"`
	Command *overlaydata.OverlayCommand `json:"command,omitempty"`
}

const (
	sendQueueDepth  = 16
	readBufferSize  = 4096
	writeBufferSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  readBufferSize,
	WriteBufferSize: writeBufferSize,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Conn wraps one upgraded client connection with a bounded outbound
// queue and a single writer goroutine, so overlay pushes from multiple
// goroutines never interleave writes on the same socket.
type Conn struct {
	ws   *websocket.Conn
	out  chan Message
	done chan struct{}
	once sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{ws: ws, out: make(chan Message, sendQueueDepth), done: make(chan struct{})}
	go c.writeLoop()
	return c
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.out:
			if err := c.ws.WriteJSON(msg); err != nil {
				c.Close()
				return
			}
		}
	}
}

// Send enqueues msg for delivery, dropping it if the connection's
// outbound queue is saturated (a stalled UI client should not stall the
// core). OverlayCommand.ReplyTo is a channel and cannot cross the wire,
// so it is cleared before the message reaches the write loop's
// WriteJSON call.
func (c *Conn) Send(msg Message) {
	if msg.Command != nil {
		cleared := *msg.Command
		cleared.ReplyTo = nil
		msg.Command = &cleared
	}
	select {
	case c.out <- msg:
	default:
	}
}

// Close closes the underlying connection and stops the write loop. Safe
// to call multiple times.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// ReadCommands blocks reading JSON-framed Message values from the
// client until the connection closes or ctx is done, invoking handle
// for each decoded OverlayCommand.
func (c *Conn) ReadCommands(ctx context.Context, handle func(overlaydata.OverlayCommand)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			c.Close()
			return
		}
		if msg.Command != nil {
			handle(*msg.Command)
		}
	}
}

// Server accepts and tracks connected UI clients.
type Server struct {
	mu      sync.Mutex
	clients map[*Conn]struct{}
}

// NewServer constructs an empty Server.
func NewServer() *Server {
	return &Server{clients: make(map[*Conn]struct{})}
}

// Handle upgrades r to a websocket connection, registers it, and invokes
// onConnect with the new Conn for the caller to wire up ReadCommands and
// any initial-state push.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request, onConnect func(*Conn)) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := newConn(ws)

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	onConnect(conn)
}

// Forget removes conn from the tracked client set, e.g. once its read
// loop has exited.
func (s *Server) Forget(conn *Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Broadcast sends data to every connected client, tagged as an
// OverlayData push.
func (s *Server) Broadcast(data overlaydata.OverlayData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Send(Message{Kind: "overlay_data", Data: &data})
	}
}
