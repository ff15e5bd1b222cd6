package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wireboard-server/internal/config"
	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/proto"
)

func stroke(id string) map[string]any {
	return map[string]any{"id": id, "tool": "pen", "points": []float64{0, 0, 10, 10}, "stroke": "#000"}
}

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketJoinSubmitAndPresence(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := testContext(t)

	connA := env.dial(t, ctx)
	connB := env.dial(t, ctx)

	send(t, ctx, connA, proto.InboundTypeJoin, proto.JoinData{Board: "Board-1", User: &proto.UserInfo{ID: "u-a", Email: "a@example.com"}})
	var initial proto.EventStateData
	readEvent(t, ctx, connA, proto.EventState, &initial)
	if initial.Board != "board-1" || string(initial.Elements) != "[]" {
		t.Fatalf("unexpected initial state: %+v", initial)
	}
	readPresence(t, ctx, connA, 1)

	send(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{Board: "board-1", User: &proto.UserInfo{ID: "u-b", Email: "b@example.com"}})
	readPresence(t, ctx, connB, 2)
	presence := readPresence(t, ctx, connA, 2)
	if presence.Users[0].Email != "a@example.com" || presence.Users[1].UserID != "u-b" {
		t.Fatalf("unexpected presence: %+v", presence.Users)
	}

	send(t, ctx, connA, proto.InboundTypeState, map[string]any{
		"board":    "board-1",
		"elements": []any{stroke("s1"), stroke("s2")},
	})

	var update proto.EventStateData
	readEvent(t, ctx, connB, proto.EventState, &update)
	var elements []map[string]any
	if err := json.Unmarshal(update.Elements, &elements); err != nil {
		t.Fatalf("decode elements: %v", err)
	}
	if len(elements) != 2 || elements[1]["id"] != "s2" || elements[0]["stroke"] != "#000" {
		t.Fatalf("unexpected elements: %s", update.Elements)
	}
	if update.Version != 1 || update.From != presence.Users[0].ID {
		t.Fatalf("unexpected state metadata: %+v", update)
	}

	// The sender gets no echo: the next state it sees is the resync reply.
	send(t, ctx, connA, proto.InboundTypeResync, proto.ResyncData{Board: "board-1"})
	var resync proto.EventStateData
	readEvent(t, ctx, connA, proto.EventState, &resync)
	if resync.From != "" || resync.Version != 1 {
		t.Fatalf("expected resync reply, got %+v", resync)
	}

	connA.Close(websocket.StatusNormalClosure, "bye")
	left := readPresence(t, ctx, connB, 1)
	if left.Users[0].UserID != "u-b" {
		t.Fatalf("unexpected presence after disconnect: %+v", left.Users)
	}
}

func TestWebSocketLateJoinerSeesState(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := testContext(t)

	connA := env.dial(t, ctx)
	send(t, ctx, connA, proto.InboundTypeJoin, proto.JoinData{Board: "late"})
	readPresence(t, ctx, connA, 1)
	send(t, ctx, connA, proto.InboundTypeState, map[string]any{"board": "late", "elements": []any{stroke("x1")}})
	send(t, ctx, connA, proto.InboundTypeResync, proto.ResyncData{Board: "late"})
	readEvent(t, ctx, connA, proto.EventState, nil)
	connA.Close(websocket.StatusNormalClosure, "bye")

	connB := env.dial(t, ctx)
	send(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{Board: "late"})
	var state proto.EventStateData
	readEvent(t, ctx, connB, proto.EventState, &state)
	var elements []map[string]any
	if err := json.Unmarshal(state.Elements, &elements); err != nil {
		t.Fatalf("decode elements: %v", err)
	}
	if len(elements) != 1 || elements[0]["id"] != "x1" {
		t.Fatalf("late joiner got %s", state.Elements)
	}
}

func TestWebSocketCursorRelay(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := testContext(t)

	connA := env.dial(t, ctx)
	connB := env.dial(t, ctx)
	send(t, ctx, connA, proto.InboundTypeJoin, proto.JoinData{Board: "cur", User: &proto.UserInfo{ID: "u-a", Email: "a@example.com"}})
	readPresence(t, ctx, connA, 1)
	send(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{Board: "cur"})
	readPresence(t, ctx, connB, 2)

	send(t, ctx, connA, proto.InboundTypeCursor, proto.CursorData{Board: "cur", X: 12.5, Y: 40, TS: 1700000000000})

	var cur proto.EventCursorData
	readEvent(t, ctx, connB, proto.EventCursor, &cur)
	if cur.X != 12.5 || cur.Y != 40 || cur.UserID != "u-a" || cur.Label != "a@example.com" || cur.TS != 1700000000000 {
		t.Fatalf("unexpected cursor event: %+v", cur)
	}

	connA.Close(websocket.StatusNormalClosure, "bye")
	var gone proto.EventCursorGoneData
	readEvent(t, ctx, connB, proto.EventCursorGone, &gone)
	if len(gone.IDs) != 1 || gone.IDs[0] != cur.ID {
		t.Fatalf("unexpected cursor_gone: %+v", gone)
	}
}

func TestWebSocketCursorExpires(t *testing.T) {
	env := startTestServer(t, func(cfg *config.Config) {
		cfg.CursorTTL = 100 * time.Millisecond
		cfg.CursorSweepInterval = 20 * time.Millisecond
	})
	ctx := testContext(t)

	connA := env.dial(t, ctx)
	connB := env.dial(t, ctx)
	send(t, ctx, connA, proto.InboundTypeJoin, proto.JoinData{Board: "ttl"})
	readPresence(t, ctx, connA, 1)
	send(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{Board: "ttl"})
	readPresence(t, ctx, connB, 2)

	send(t, ctx, connA, proto.InboundTypeCursor, proto.CursorData{Board: "ttl", X: 1, Y: 1})
	var cur proto.EventCursorData
	readEvent(t, ctx, connB, proto.EventCursor, &cur)

	var gone proto.EventCursorGoneData
	readEvent(t, ctx, connB, proto.EventCursorGone, &gone)
	if len(gone.IDs) != 1 || gone.IDs[0] != cur.ID {
		t.Fatalf("unexpected cursor_gone: %+v", gone)
	}
}

func TestWebSocketJoinRequiresBoard(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := testContext(t)

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{})

	if perr := readError(t, ctx, conn); perr.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", perr)
	}
	if _, ok := env.hub.Room(""); ok {
		t.Fatal("room created for empty board")
	}
}

func TestWebSocketStateBeforeJoin(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := testContext(t)

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeState, map[string]any{"board": "b", "elements": []any{stroke("s1")}})

	if perr := readError(t, ctx, conn); perr.Code != core.ErrCodeNotInRoom {
		t.Fatalf("expected not_in_room, got %+v", perr)
	}
}

func TestWebSocketInvalidMessagesKeepConnection(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := testContext(t)

	conn := env.dial(t, ctx)
	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if perr := readError(t, ctx, conn); perr.Code != core.ErrCodeInvalidMessage {
		t.Fatalf("expected invalid_message, got %+v", perr)
	}

	send(t, ctx, conn, "teleport", map[string]any{})
	if perr := readError(t, ctx, conn); perr.Code != core.ErrCodeInvalidMessage {
		t.Fatalf("expected invalid_message, got %+v", perr)
	}

	send(t, ctx, conn, proto.InboundTypeState, map[string]any{"board": "b"})
	if perr := readError(t, ctx, conn); perr.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request for missing elements, got %+v", perr)
	}

	send(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{Board: "still-alive"})
	readPresence(t, ctx, conn, 1)
}

func TestWebSocketRateLimit(t *testing.T) {
	env := startTestServer(t, func(cfg *config.Config) {
		cfg.MessagesPerSecond = 1
		cfg.MessageBurst = 1
	})
	ctx := testContext(t)

	conn := env.dial(t, ctx)
	for range 3 {
		send(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "spammer"})
	}

	if perr := readError(t, ctx, conn); perr.Code != core.ErrCodeRateLimited {
		t.Fatalf("expected rate_limited, got %+v", perr)
	}
}

func TestWebSocketCursorFloodDoesNotStarveState(t *testing.T) {
	env := startTestServer(t, func(cfg *config.Config) {
		cfg.MessagesPerSecond = 1
		cfg.MessageBurst = 2
	})
	ctx := testContext(t)

	connA := env.dial(t, ctx)
	connB := env.dial(t, ctx)
	send(t, ctx, connA, proto.InboundTypeJoin, proto.JoinData{Board: "flood"})
	readPresence(t, ctx, connA, 1)
	send(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{Board: "flood"})
	readPresence(t, ctx, connB, 2)

	for i := range 150 {
		send(t, ctx, connA, proto.InboundTypeCursor, proto.CursorData{Board: "flood", X: float64(i), Y: float64(i)})
	}
	send(t, ctx, connA, proto.InboundTypeState, map[string]any{
		"board":    "flood",
		"elements": []any{stroke("e1")},
	})

	var update proto.EventStateData
	readEvent(t, ctx, connB, proto.EventState, &update)
	for string(update.Elements) == "[]" {
		readEvent(t, ctx, connB, proto.EventState, &update)
	}
	var elements []map[string]any
	if err := json.Unmarshal(update.Elements, &elements); err != nil {
		t.Fatalf("decode elements: %v", err)
	}
	if len(elements) != 1 || elements[0]["id"] != "e1" {
		t.Fatalf("unexpected state after cursor flood: %s", update.Elements)
	}
}

func TestWebSocketServedAlongsideREST(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := testContext(t)

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{Board: "routes"})
	var initial proto.EventStateData
	readEvent(t, ctx, conn, proto.EventState, &initial)
	if initial.Board != "routes" {
		t.Fatalf("unexpected state board: %q", initial.Board)
	}

	resp, err := env.ts.Client().Get(env.ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("unexpected stats status: %d", resp.StatusCode)
	}
}
