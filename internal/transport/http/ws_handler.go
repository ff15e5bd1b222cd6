package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/auth"
	"github.com/vovakirdan/wireboard-server/internal/config"
	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/proto"
	"github.com/vovakirdan/wireboard-server/internal/utils"
)

const writeTimeout = 10 * time.Second

// Authenticator resolves bearer tokens to identities.
type Authenticator interface {
	Authenticate(token string) (auth.Identity, error)
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  Hub
	auth Authenticator
	cfg  *config.Config
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. authenticator may be nil,
// in which case tokens are rejected.
func NewWSHandler(hub Hub, authenticator Authenticator, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authenticator, cfg: cfg, log: logger}
}

// session is the per-connection state owned by the read loop.
type session struct {
	client   *core.Client
	identity core.Identity
	authed   bool
	limiter  *messageLimiter
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	conn.SetReadLimit(h.cfg.MaxMessageBytes)

	client := core.NewClient(utils.NewID(), core.Identity{})
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)
	h.log.Debug().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("ws connected")

	sess := &session{
		client:   client,
		identity: client.Identity,
		limiter:  newMessageLimiter(h.cfg.MessagesPerSecond, h.cfg.MessageBurst),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) acceptOptions() *websocket.AcceptOptions {
	var patterns []string
	for _, origin := range h.cfg.AllowedOrigins {
		if origin == "*" {
			return &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			origin = u.Host
		}
		patterns = append(patterns, origin)
	}
	return &websocket.AcceptOptions{OriginPatterns: patterns}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *session) error {
	client := sess.client
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Inbound
		valid := typ == websocket.MessageText && json.Unmarshal(data, &inbound) == nil

		// Cursor reports are throttled and coalesced by the room, so they
		// never spend the frame budget that state and join frames rely on.
		if !(valid && inbound.Type == proto.InboundTypeCursor) && !sess.limiter.allow() {
			if err := h.writeError(ctx, conn, &proto.Error{Code: core.ErrCodeRateLimited, Msg: "slow down"}); err != nil {
				return err
			}
			continue
		}

		if !valid {
			if err := h.writeError(ctx, conn, invalidMessage("expected a JSON envelope")); err != nil {
				return err
			}
			continue
		}

		var (
			cmd      *core.Command
			protoErr *proto.Error
		)
		switch inbound.Type {
		case proto.InboundTypeHello:
			protoErr = h.hello(sess, inbound.Data)
		case proto.InboundTypeJoin:
			cmd, protoErr = h.join(sess, inbound.Data)
		default:
			cmd, protoErr = inboundToCommand(inbound)
		}

		if protoErr != nil {
			h.log.Debug().Str("client_id", client.ID).Str("type", inbound.Type).Str("code", protoErr.Code).Msg("rejected inbound")
			if err := h.writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}
		if cmd == nil {
			continue
		}
		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) hello(sess *session, data json.RawMessage) *proto.Error {
	var hello proto.HelloData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &hello); err != nil {
			return invalidMessage("malformed hello payload")
		}
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		return &proto.Error{Code: core.ErrCodeUnsupportedVersion, Msg: "unsupported protocol version"}
	}
	if hello.Token != "" {
		return h.authenticate(sess, hello.Token)
	}
	if hello.User != "" && !sess.authed {
		sess.identity.Email = hello.User
	}
	return nil
}

func (h *WSHandler) join(sess *session, data json.RawMessage) (*core.Command, *proto.Error) {
	var join proto.JoinData
	if err := json.Unmarshal(data, &join); err != nil {
		return nil, invalidMessage("malformed join payload")
	}
	if join.Board == "" {
		return nil, badRequest("board is required")
	}
	if join.Token != "" {
		if protoErr := h.authenticate(sess, join.Token); protoErr != nil {
			return nil, protoErr
		}
	}
	if h.cfg.AuthRequired && !sess.authed {
		return nil, &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "authentication required"}
	}
	if !sess.authed && join.User != nil {
		if join.User.ID != "" {
			sess.identity.UserID = join.User.ID
		}
		if join.User.Email != "" {
			sess.identity.Email = join.User.Email
		}
	}
	return &core.Command{Kind: core.CommandJoinBoard, Board: join.Board, Identity: sess.identity}, nil
}

func (h *WSHandler) authenticate(sess *session, token string) *proto.Error {
	if h.auth == nil {
		return &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "authentication is not available"}
	}
	id, err := h.auth.Authenticate(token)
	if err != nil {
		h.log.Debug().Err(err).Str("client_id", sess.client.ID).Msg("token rejected")
		return &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "invalid token"}
	}
	sess.identity = core.Identity{UserID: id.UserID, Email: id.Email}
	sess.authed = true
	return nil
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, protoErr *proto.Error) error {
	return h.write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr})
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, out proto.Outbound) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, out)
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := h.write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
