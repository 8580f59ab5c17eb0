package ipc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"combatlogd/internal/overlaydata"
)

func dialTestServer(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	httpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.Handle(w, r, func(conn *Conn) {
			go conn.ReadCommands(context.Background(), func(overlaydata.OverlayCommand) {})
		})
	}))
	t.Cleanup(httpSrv.Close)

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func TestServerBroadcastDeliversToConnectedClient(t *testing.T) {
	srv := NewServer()
	conn := dialTestServer(t, srv)

	// Give the server a moment to register the connection before broadcasting.
	deadline := time.Now().Add(time.Second)
	for len(serverClients(srv)) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	srv.Broadcast(overlaydata.OverlayData{Kind: overlaydata.KindDPS})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Kind != "overlay_data" {
		t.Fatalf("msg.Kind = %q, want overlay_data", msg.Kind)
	}
	if msg.Data == nil || msg.Data.Kind != overlaydata.KindDPS {
		t.Fatalf("msg.Data = %+v, want Kind=dps", msg.Data)
	}
}

func TestConnSendClearsReplyToBeforeWriteJSON(t *testing.T) {
	// A Conn with no write loop attached: a queued message stays in
	// conn.out for inspection instead of being drained to the socket.
	conn := &Conn{out: make(chan Message, sendQueueDepth), done: make(chan struct{})}
	reply := make(chan overlaydata.PositionEvent, 1)
	conn.Send(Message{Kind: "command", Command: &overlaydata.OverlayCommand{
		Kind: overlaydata.CommandGetPosition, ReplyTo: reply,
	}})

	select {
	case queued := <-conn.out:
		if queued.Command.ReplyTo != nil {
			t.Fatalf("expected ReplyTo to be cleared before queuing for the wire")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for queued message")
	}
}

func TestServerForgetRemovesAndClosesConnection(t *testing.T) {
	srv := NewServer()
	_ = dialTestServer(t, srv)

	for len(serverClients(srv)) == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	var conn *Conn
	for c := range srv.clients {
		conn = c
	}
	srv.Forget(conn)

	if len(serverClients(srv)) != 0 {
		t.Fatalf("expected client set to be empty after Forget")
	}
	select {
	case <-conn.done:
	default:
		t.Fatal("expected conn.done to be closed after Forget")
	}
}

func serverClients(s *Server) map[*Conn]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[*Conn]struct{}, len(s.clients))
	for c := range s.clients {
		out[c] = struct{}{}
	}
	return out
}
