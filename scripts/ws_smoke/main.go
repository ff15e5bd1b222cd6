package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wireboard-server/internal/proto"
)

type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run joins a board, draws one stroke and checks the server kept it.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "smoke@example.com", "label to announce with hello")
	token := flag.String("token", "", "JWT to authenticate with")
	board := flag.String("board", "smoke", "board id")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeHello, proto.HelloData{User: *user, Token: *token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeJoin, proto.JoinData{Board: *board}); err != nil {
		return err
	}

	strokeID := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	submitted := false

	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if out.Type == proto.OutboundTypeError && out.Error != nil {
			return fmt.Errorf("server error %s: %s", out.Error.Code, out.Error.Msg)
		}

		fmt.Printf("Received outbound: type=%s event=%s\n", out.Type, out.Event)

		switch out.Event {
		case proto.EventPresence:
			var evt proto.EventPresenceData
			if err := json.Unmarshal(out.Data, &evt); err == nil {
				fmt.Printf("Presence: board=%s users=%d\n", evt.Board, len(evt.Users))
			}
		case proto.EventState:
			var evt proto.EventStateData
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal state: %w", err)
			}
			if !submitted {
				var elements []json.RawMessage
				if err := json.Unmarshal(evt.Elements, &elements); err != nil {
					return fmt.Errorf("unmarshal elements: %w", err)
				}
				elements = append(elements, mustJSON(map[string]any{
					"id":          strokeID,
					"tool":        "pen",
					"points":      []float64{0, 0, 100, 100},
					"stroke":      "#1e1e1e",
					"strokeWidth": 2,
				}))
				if err := send(proto.InboundTypeState, map[string]any{"board": *board, "elements": elements}); err != nil {
					return err
				}
				if err := send(proto.InboundTypeResync, proto.ResyncData{Board: *board}); err != nil {
					return err
				}
				submitted = true
				continue
			}
			fmt.Printf("State: board=%s version=%d elements=%s\n", evt.Board, evt.Version, evt.Elements)
			if !json.Valid(evt.Elements) || !containsID(evt.Elements, strokeID) {
				return fmt.Errorf("stroke %s missing from board state", strokeID)
			}
			return nil
		}
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func containsID(elements json.RawMessage, id string) bool {
	var list []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(elements, &list); err != nil {
		return false
	}
	for _, el := range list {
		if el.ID == id {
			return true
		}
	}
	return false
}
