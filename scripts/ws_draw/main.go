package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

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
		log.Printf("ws_draw: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli@example.com", "label shown to peers")
	token := flag.String("token", "", "JWT to authenticate with")
	board := flag.String("board", "scratch", "board to join")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	c := &drawClient{conn: conn, board: *board}
	if err := c.send(ctx, proto.InboundTypeHello, proto.HelloData{User: *user, Token: *token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := c.send(ctx, proto.InboundTypeJoin, proto.JoinData{Board: *board}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s on board %s\n", *addr, *user, *board)
	fmt.Println("Commands: line x1 y1 x2 y2 | text x y words... | cursor x y | clear | resync. Ctrl+C to exit.")

	go func() {
		defer cancel()
		c.readLoop(ctx)
	}()

	c.inputLoop(ctx)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

// drawClient keeps a local copy of the board so it can submit full lists.
type drawClient struct {
	conn  *websocket.Conn
	board string

	mu       sync.Mutex
	elements []json.RawMessage
}

func (c *drawClient) send(ctx context.Context, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, c.conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func (c *drawClient) readLoop(ctx context.Context) {
	for {
		var out outbound
		if err := wsjson.Read(ctx, c.conn, &out); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if out.Type == proto.OutboundTypeError && out.Error != nil {
			fmt.Printf("! %s: %s\n", out.Error.Code, out.Error.Msg)
			continue
		}

		switch out.Event {
		case proto.EventState:
			var evt proto.EventStateData
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				log.Printf("unmarshal state: %v", err)
				continue
			}
			var list []json.RawMessage
			_ = json.Unmarshal(evt.Elements, &list)
			c.store(list)
			who := evt.From
			if who == "" {
				who = "server"
			}
			fmt.Printf("[%s] v%d: %d elements (from %s)\n", evt.Board, evt.Version, len(list), who)
		case proto.EventPresence:
			var evt proto.EventPresenceData
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				log.Printf("unmarshal presence: %v", err)
				continue
			}
			names := make([]string, 0, len(evt.Users))
			for _, u := range evt.Users {
				name := u.Email
				if name == "" {
					name = u.UserID
				}
				names = append(names, name)
			}
			fmt.Printf("[%s] online: %s\n", evt.Board, strings.Join(names, ", "))
		case proto.EventCursor:
			var evt proto.EventCursorData
			if err := json.Unmarshal(out.Data, &evt); err == nil {
				fmt.Printf("[%s] %s at (%.0f, %.0f)\n", evt.Board, evt.Label, evt.X, evt.Y)
			}
		case proto.EventCursorGone:
			var evt proto.EventCursorGoneData
			if err := json.Unmarshal(out.Data, &evt); err == nil {
				fmt.Printf("[%s] cursors gone: %s\n", evt.Board, strings.Join(evt.IDs, ", "))
			}
		default:
			fmt.Printf("event=%s data=%s\n", out.Event, out.Data)
		}
	}
}

func (c *drawClient) store(list []json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elements = list
}

func (c *drawClient) current() []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]json.RawMessage(nil), c.elements...)
}

func (c *drawClient) inputLoop(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := c.handle(ctx, strings.Fields(line)); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
	}
}

func (c *drawClient) handle(ctx context.Context, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	nums, err := floats(fields[1:])
	switch fields[0] {
	case "line":
		if err != nil || len(nums) != 4 {
			return errors.New("usage: line x1 y1 x2 y2")
		}
		return c.submit(ctx, append(c.current(), element(map[string]any{
			"tool":   "pen",
			"points": nums,
			"stroke": "#1e1e1e",
		})))
	case "text":
		if len(fields) < 4 {
			return errors.New("usage: text x y words...")
		}
		pos, err := floats(fields[1:3])
		if err != nil {
			return errors.New("usage: text x y words...")
		}
		return c.submit(ctx, append(c.current(), element(map[string]any{
			"tool":     "text",
			"x":        pos[0],
			"y":        pos[1],
			"text":     strings.Join(fields[3:], " "),
			"fontSize": 16,
		})))
	case "cursor":
		if err != nil || len(nums) != 2 {
			return errors.New("usage: cursor x y")
		}
		return c.send(ctx, proto.InboundTypeCursor, proto.CursorData{Board: c.board, X: nums[0], Y: nums[1], TS: time.Now().UnixMilli()})
	case "clear":
		return c.submit(ctx, []json.RawMessage{})
	case "resync":
		return c.send(ctx, proto.InboundTypeResync, proto.ResyncData{Board: c.board})
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func (c *drawClient) submit(ctx context.Context, list []json.RawMessage) error {
	c.store(list)
	return c.send(ctx, proto.InboundTypeState, map[string]any{"board": c.board, "elements": list})
}

func element(fields map[string]any) json.RawMessage {
	fields["id"] = uuid.NewString()
	b, _ := json.Marshal(fields)
	return b
}

func floats(fields []string) ([]float64, error) {
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
