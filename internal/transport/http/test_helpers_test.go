package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/auth"
	"github.com/vovakirdan/wireboard-server/internal/config"
	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/proto"
	"github.com/vovakirdan/wireboard-server/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	ts   *httptest.Server
	hub  *core.Hub
	auth *auth.Service
	cfg  config.Config
}

// startTestServer wires a full server over an in-memory SQLite store.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = testSecret
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.Nop()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	persister := core.NewPersister(st, core.DefaultPersisterOptions(), &logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = persister.Close(ctx)
	})

	hub := core.NewHub(persister, core.Options{
		RoomGracePeriod: cfg.RoomGracePeriod,
		Room: core.RoomOptions{
			CursorTTL:           cfg.CursorTTL,
			CursorSweepInterval: cfg.CursorSweepInterval,
			CursorMinInterval:   cfg.CursorMinInterval,
		},
	}, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	})

	server := NewServer(hub, authService, st, persister, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, auth: authService, cfg: cfg}
}

// wireOutbound mirrors proto.Outbound with the payload left raw.
type wireOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// readEvent reads frames until an event with the given name arrives and
// decodes its payload into out.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, out any) {
	t.Helper()

	for {
		var msg wireOutbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("waiting for %s event: %v", event, err)
		}
		if msg.Type != proto.OutboundTypeEvent || msg.Event != event {
			continue
		}
		if out != nil {
			if err := json.Unmarshal(msg.Data, out); err != nil {
				t.Fatalf("decode %s event: %v", event, err)
			}
		}
		return
	}
}

// readPresence waits for a presence event listing n users.
func readPresence(t *testing.T, ctx context.Context, conn *websocket.Conn, n int) proto.EventPresenceData {
	t.Helper()

	for {
		var p proto.EventPresenceData
		readEvent(t, ctx, conn, proto.EventPresence, &p)
		if len(p.Users) == n {
			return p
		}
	}
}

// readError reads frames until an error envelope arrives.
func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) *proto.Error {
	t.Helper()

	for {
		var msg wireOutbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("waiting for error: %v", err)
		}
		if msg.Type == proto.OutboundTypeError {
			if msg.Error == nil {
				t.Fatalf("error envelope without error body")
			}
			return msg.Error
		}
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
