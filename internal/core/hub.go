package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Hub.
type Options struct {
	// RoomGracePeriod keeps an empty room alive to absorb quick reconnects.
	// Zero disposes empty rooms immediately.
	RoomGracePeriod time.Duration
	Room            RoomOptions
}

// DefaultOptions returns the hub defaults.
func DefaultOptions() Options {
	return Options{
		RoomGracePeriod: 30 * time.Second,
		Room:            DefaultRoomOptions(),
	}
}

// Stats summarizes hub load.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

type hubRequestKind int

const (
	hubAcquire hubRequestKind = iota
	hubRelease
	hubExpire
	hubLookup
	hubStats
)

type hubRequest struct {
	kind  hubRequestKind
	board string
	gen   uint64
	room  chan *Room
	stats chan Stats
}

type roomRef struct {
	room  *Room
	refs  int
	gen   uint64
	timer *time.Timer
}

// Hub owns the rooms of one process. Its goroutine is the only writer of the
// board -> room map, so two first joiners of a board always share one room.
// Room state itself is owned by each room's goroutine.
type Hub struct {
	registry  *Registry
	persister BoardPersister
	opts      Options
	log       *zerolog.Logger

	requests chan hubRequest
	done     chan struct{}

	rooms map[string]*roomRef
}

// NewHub creates a hub. persister and logger may be nil.
func NewHub(persister BoardPersister, opts Options, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		registry:  NewRegistry(),
		persister: persister,
		opts:      opts,
		log:       logger,
		requests:  make(chan hubRequest),
		done:      make(chan struct{}),
		rooms:     make(map[string]*roomRef),
	}
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run processes hub requests until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case req := <-h.requests:
			h.handle(ctx, req)
		case <-ctx.Done():
			for board, ref := range h.rooms {
				h.dispose(board, ref)
			}
			return
		}
	}
}

func (h *Hub) handle(ctx context.Context, req hubRequest) {
	switch req.kind {
	case hubAcquire:
		ref, ok := h.rooms[req.board]
		if !ok {
			room := newRoom(req.board, h.persister, h.opts.Room, h.log)
			go room.run(ctx)
			ref = &roomRef{room: room}
			h.rooms[req.board] = ref
			h.log.Info().Str("board", req.board).Int("rooms", len(h.rooms)).Msg("room created")
		}
		if ref.timer != nil {
			ref.timer.Stop()
			ref.timer = nil
		}
		ref.refs++
		ref.gen++
		req.room <- ref.room
	case hubRelease:
		ref, ok := h.rooms[req.board]
		if !ok {
			return
		}
		ref.refs--
		if ref.refs > 0 {
			return
		}
		ref.refs = 0
		if h.opts.RoomGracePeriod <= 0 {
			h.dispose(req.board, ref)
			return
		}
		ref.gen++
		gen, board := ref.gen, req.board
		ref.timer = time.AfterFunc(h.opts.RoomGracePeriod, func() {
			h.post(hubRequest{kind: hubExpire, board: board, gen: gen})
		})
	case hubExpire:
		ref, ok := h.rooms[req.board]
		if !ok || ref.refs > 0 || ref.gen != req.gen {
			return
		}
		h.dispose(req.board, ref)
	case hubLookup:
		if ref, ok := h.rooms[req.board]; ok {
			req.room <- ref.room
			return
		}
		req.room <- nil
	case hubStats:
		req.stats <- Stats{Rooms: len(h.rooms), Connections: h.registry.Len()}
	}
}

func (h *Hub) dispose(board string, ref *roomRef) {
	if ref.timer != nil {
		ref.timer.Stop()
	}
	delete(h.rooms, board)
	ref.room.stop()
	h.log.Info().Str("board", board).Int("rooms", len(h.rooms)).Msg("room disposed")
}

func (h *Hub) post(req hubRequest) bool {
	select {
	case h.requests <- req:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) acquire(board string) (*Room, error) {
	reply := make(chan *Room, 1)
	if !h.post(hubRequest{kind: hubAcquire, board: board, room: reply}) {
		return nil, ErrHubClosed
	}
	select {
	case room := <-reply:
		return room, nil
	case <-h.done:
		return nil, ErrHubClosed
	}
}

func (h *Hub) release(board string) {
	h.post(hubRequest{kind: hubRelease, board: board})
}

// Room returns the live room of a board, if any.
func (h *Hub) Room(board string) (*Room, bool) {
	reply := make(chan *Room, 1)
	if !h.post(hubRequest{kind: hubLookup, board: board, room: reply}) {
		return nil, false
	}
	select {
	case room := <-reply:
		return room, room != nil
	case <-h.done:
		return nil, false
	}
}

// Stats returns the number of live rooms and connections.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if !h.post(hubRequest{kind: hubStats, stats: reply}) {
		return Stats{}, ErrHubClosed
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return Stats{}, ErrHubClosed
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// RegisterClient adds a connection and starts pumping its commands.
func (h *Hub) RegisterClient(c *Client) {
	h.registry.Register(c)
	go h.pump(c)
}

// UnregisterClient stops the client's pump. Teardown (leaving the room and
// dropping the registry entry) always runs on the pump goroutine.
func (h *Hub) UnregisterClient(c *Client) {
	c.close()
}

func (h *Hub) pump(c *Client) {
	defer h.teardown(c)
	for {
		select {
		case cmd := <-c.Commands:
			if cmd != nil {
				h.dispatch(c, cmd)
			}
		case <-c.done:
			return
		case <-h.done:
			return
		}
	}
}

func (h *Hub) teardown(c *Client) {
	if c.room != nil {
		h.leaveRoom(c)
	}
	h.registry.Unregister(c.ID)
	h.log.Debug().Str("client_id", c.ID).Msg("client unregistered")
}

func (h *Hub) dispatch(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinBoard:
		h.join(c, cmd)
	case CommandLeaveBoard:
		if !h.inBoard(c, cmd.Board) {
			deliver(c, errorEvent(cmd.Board, coreError(ErrCodeNotInRoom, "not a member of this board")))
			return
		}
		h.leaveRoom(c)
	case CommandSubmitState, CommandResync:
		if !h.inBoard(c, cmd.Board) {
			deliver(c, errorEvent(cmd.Board, coreError(ErrCodeNotInRoom, "not a member of this board")))
			return
		}
		c.room.send(c, cmd)
	case CommandReportCursor:
		if h.inBoard(c, cmd.Board) {
			c.room.send(c, cmd)
		}
	}
}

// inBoard reports whether c is joined to board. An empty board means the
// client's current board.
func (h *Hub) inBoard(c *Client, board string) bool {
	if c.room == nil {
		return false
	}
	if board == "" {
		return true
	}
	id, err := NormalizeBoardID(board)
	return err == nil && id == c.room.Board
}

func (h *Hub) join(c *Client, cmd *Command) {
	board, err := NormalizeBoardID(cmd.Board)
	if err != nil {
		deliver(c, errorEvent(cmd.Board, coreError(ErrCodeBadRequest, err.Error())))
		return
	}

	identity := cmd.Identity
	if identity.UserID == "" {
		identity.UserID = c.Identity.UserID
	}
	if identity.Email == "" {
		identity.Email = c.Identity.Email
	}
	if identity.UserID == "" {
		identity.UserID = c.ID
	}
	c.Identity = identity

	if c.room != nil {
		if c.room.Board == board {
			c.room.send(c, &Command{Kind: CommandJoinBoard, Board: board, Identity: identity})
			return
		}
		h.leaveRoom(c)
	}

	room, err := h.acquire(board)
	if err != nil {
		return
	}
	c.room = room
	h.registry.SetBoard(c.ID, board)
	room.send(c, &Command{Kind: CommandJoinBoard, Board: board, Identity: identity})
}

func (h *Hub) leaveRoom(c *Client) {
	room := c.room
	c.room = nil
	room.send(c, &Command{Kind: CommandLeaveBoard, Board: room.Board})
	h.registry.SetBoard(c.ID, "")
	h.release(room.Board)
}
