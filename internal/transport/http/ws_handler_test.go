package http

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"raise-service/internal/domain"
)

func dialWalk(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/walk" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendAnswer(t *testing.T, conn *websocket.Conn, node string, value any) {
	t.Helper()
	msg := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"node": node, "value": value},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write answer: %v", err)
	}
}

func TestWebSocketWalkReachesResult(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWalk(t, env, "")

	_, payload := readNext(conn, t, "node")
	if payload["key"] != "start" {
		t.Fatalf("expected start node, got %v", payload["key"])
	}

	sendAnswer(t, conn, "start", "grant_writing")
	_, payload = readNext(conn, t, "node")
	if payload["key"] != "funder_policy" {
		t.Fatalf("expected funder_policy, got %v", payload["key"])
	}

	// Out of order and unmatched answers leave the walk where it was.
	sendAnswer(t, conn, "start", "grant_writing")
	readNext(conn, t, "error")
	sendAnswer(t, conn, "funder_policy", "perhaps")
	readNext(conn, t, "error")

	sendAnswer(t, conn, "funder_policy", "yes")
	_, payload = readNext(conn, t, "result")
	if payload["terminal_key"] != "terminal_grant" || payload["complete"] != true {
		t.Fatalf("unexpected result %v", payload)
	}

	sendAnswer(t, conn, "funder_policy", "yes")
	readNext(conn, t, "error")

	if err := conn.WriteJSON(map[string]any{"type": "restart"}); err != nil {
		t.Fatalf("write restart: %v", err)
	}
	_, payload = readNext(conn, t, "node")
	if payload["key"] != "start" {
		t.Fatalf("expected start after restart, got %v", payload["key"])
	}
}

func TestWebSocketWalkRecordsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.store.CreateSession(ctx, domain.TraversalSession{Code: "S1", Responses: []domain.Response{}}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	conn := dialWalk(t, env, "?session=S1")
	readNext(conn, t, "node")
	sendAnswer(t, conn, "start", "grant_writing")
	readNext(conn, t, "node")
	sendAnswer(t, conn, "funder_policy", "yes")
	readNext(conn, t, "result")

	sess, err := env.store.GetSession(ctx, "S1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !sess.IsComplete || sess.TerminalNode != "terminal_grant" {
		t.Fatalf("expected completed session, got %+v", sess)
	}
	if len(sess.Responses) != 2 || sess.Responses[1].NodeKey != "funder_policy" {
		t.Fatalf("unexpected responses %+v", sess.Responses)
	}

	// A finished session cannot be walked again.
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/walk?session=S1"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail for a completed session")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %v", resp)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/walk?session=missing"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", resp)
	}
}

func TestWebSocketRejectsUnknownMessage(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWalk(t, env, "")
	readNext(conn, t, "node")

	if err := conn.WriteJSON(map[string]any{"type": "skip"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, payload := readNext(conn, t, "error")
	if payload["message"] != "unsupported message type" {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}
