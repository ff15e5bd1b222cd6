package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const roomInboxSize = 64

// BoardPersister is the durable side of a room's state.
// Save must not block the caller.
type BoardPersister interface {
	Load(ctx context.Context, boardID string) ([]Element, time.Time, error)
	Save(boardID, ownerID string, elements []Element)
}

// RoomOptions tunes cursor handling of a room.
type RoomOptions struct {
	CursorTTL           time.Duration
	CursorSweepInterval time.Duration
	CursorMinInterval   time.Duration
}

// DefaultRoomOptions returns the recommended cursor timings.
func DefaultRoomOptions() RoomOptions {
	return RoomOptions{
		CursorTTL:           2 * time.Second,
		CursorSweepInterval: time.Second,
		CursorMinInterval:   50 * time.Millisecond,
	}
}

// RoomSnapshot is a point-in-time copy of a room's state.
type RoomSnapshot struct {
	Board     string
	Members   []Member
	Elements  []Element
	Version   uint64
	UpdatedAt time.Time
	Cursors   []CursorSample
}

type roomMessage struct {
	client *Client
	cmd    *Command
}

// Room is the live state of one board. Every mutation runs on the room's own
// goroutine, which makes it the single serialization point for the board:
// concurrent submits are applied in arrival order and the last one wins.
type Room struct {
	Board string

	opts      RoomOptions
	persister BoardPersister
	log       zerolog.Logger
	now       func() time.Time

	inbox    chan roomMessage
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	clients   map[string]*Client
	presence  *presence
	cursors   *cursorCache
	flush     *time.Timer
	elements  []Element
	version   uint64
	updatedAt time.Time
}

func newRoom(board string, persister BoardPersister, opts RoomOptions, logger *zerolog.Logger) *Room {
	def := DefaultRoomOptions()
	if opts.CursorTTL <= 0 {
		opts.CursorTTL = def.CursorTTL
	}
	if opts.CursorSweepInterval <= 0 {
		opts.CursorSweepInterval = def.CursorSweepInterval
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Room{
		Board:     board,
		opts:      opts,
		persister: persister,
		log:       logger.With().Str("board", board).Logger(),
		now:       time.Now,
		inbox:     make(chan roomMessage, roomInboxSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		clients:   make(map[string]*Client),
		presence:  newPresence(),
		cursors:   newCursorCache(opts.CursorTTL, opts.CursorMinInterval),
		elements:  []Element{},
	}
}

// send queues a command for the room. It returns false once the room has stopped.
func (r *Room) send(c *Client, cmd *Command) bool {
	select {
	case r.inbox <- roomMessage{client: c, cmd: cmd}:
		return true
	case <-r.done:
		return false
	}
}

// Snapshot returns a copy of the room state as seen by its goroutine.
func (r *Room) Snapshot(ctx context.Context) (RoomSnapshot, error) {
	reply := make(chan RoomSnapshot, 1)
	if !r.send(nil, &Command{Kind: commandSnapshot, reply: reply}) {
		return RoomSnapshot{}, errors.New("room stopped")
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-r.done:
		return RoomSnapshot{}, errors.New("room stopped")
	case <-ctx.Done():
		return RoomSnapshot{}, ctx.Err()
	}
}

func (r *Room) stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

func (r *Room) run(ctx context.Context) {
	defer close(r.done)

	r.load(ctx)

	sweep := time.NewTicker(r.opts.CursorSweepInterval)
	defer sweep.Stop()
	defer func() {
		if r.flush != nil {
			r.flush.Stop()
		}
	}()

	for {
		select {
		case msg := <-r.inbox:
			r.handle(msg)
		case <-sweep.C:
			r.sweepCursors(r.now())
		case <-r.flushC():
			r.flush = nil
			r.flushCursors(r.now())
		case <-r.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Room) load(ctx context.Context) {
	if r.persister == nil {
		return
	}
	elements, updatedAt, err := r.persister.Load(ctx, r.Board)
	if err != nil {
		r.log.Warn().Err(err).Msg("load board state, starting empty")
		return
	}
	if elements != nil {
		r.elements = elements
	}
	r.updatedAt = updatedAt
	r.log.Debug().Int("elements", len(r.elements)).Msg("board state loaded")
}

func (r *Room) handle(msg roomMessage) {
	switch msg.cmd.Kind {
	case CommandJoinBoard:
		r.join(msg.client, msg.cmd.Identity)
	case CommandLeaveBoard:
		r.leave(msg.client)
	case CommandSubmitState:
		r.submit(msg.client, msg.cmd.Elements)
	case CommandReportCursor:
		r.reportCursor(msg.client, msg.cmd.Cursor)
	case CommandResync:
		r.resync(msg.client)
	case commandSnapshot:
		msg.cmd.reply <- r.snapshot()
	}
}

func (r *Room) join(c *Client, id Identity) {
	added, changed := r.presence.add(c.ID, id, r.now())
	r.clients[c.ID] = c
	if added {
		r.log.Info().Str("client_id", c.ID).Str("user_id", id.UserID).Int("members", r.presence.len()).Msg("member joined")
		r.sendState(c)
		for _, s := range r.cursors.live(r.now()) {
			sample := s
			deliver(c, &Event{Kind: EventCursor, Board: r.Board, From: s.ConnID, Cursor: &sample})
		}
	}
	if changed {
		r.publishPresence()
	}
}

func (r *Room) leave(c *Client) {
	if !r.presence.remove(c.ID) {
		return
	}
	delete(r.clients, c.ID)
	r.log.Info().Str("client_id", c.ID).Int("members", r.presence.len()).Msg("member left")
	if r.cursors.remove(c.ID) {
		r.broadcast(&Event{Kind: EventCursorGone, Board: r.Board, CursorIDs: []string{c.ID}}, "")
	}
	r.publishPresence()
}

func (r *Room) submit(c *Client, elements []Element) {
	m, ok := r.presence.get(c.ID)
	if !ok {
		deliver(c, errorEvent(r.Board, coreError(ErrCodeNotInRoom, "not a member of this board")))
		return
	}
	if err := ValidateElements(elements); err != nil {
		deliver(c, errorEvent(r.Board, coreError(ErrCodeBadRequest, err.Error())))
		return
	}

	r.elements = cloneElements(elements)
	r.version++
	r.updatedAt = r.now()

	r.broadcast(&Event{
		Kind:      EventState,
		Board:     r.Board,
		From:      c.ID,
		Elements:  r.elements,
		Version:   r.version,
		UpdatedAt: r.updatedAt,
	}, c.ID)

	if r.persister != nil {
		r.persister.Save(r.Board, m.UserID, r.elements)
	}
}

func (r *Room) resync(c *Client) {
	if _, ok := r.presence.get(c.ID); !ok {
		deliver(c, errorEvent(r.Board, coreError(ErrCodeNotInRoom, "not a member of this board")))
		return
	}
	r.sendState(c)
}

func (r *Room) reportCursor(c *Client, s CursorSample) {
	m, ok := r.presence.get(c.ID)
	if !ok {
		return
	}
	s.ConnID = c.ID
	s.UserID = m.UserID
	if s.Label == "" {
		s.Label = m.Email
	}
	s.ReceivedAt = r.now()

	if r.cursors.record(s) {
		r.broadcast(&Event{Kind: EventCursor, Board: r.Board, From: c.ID, Cursor: &s}, c.ID)
		return
	}
	r.armFlush()
}

func (r *Room) flushCursors(now time.Time) {
	for _, s := range r.cursors.due(now) {
		sample := s
		r.broadcast(&Event{Kind: EventCursor, Board: r.Board, From: s.ConnID, Cursor: &sample}, s.ConnID)
	}
	r.armFlush()
}

func (r *Room) sweepCursors(now time.Time) {
	gone := r.cursors.evictStale(now)
	if len(gone) == 0 {
		return
	}
	r.broadcast(&Event{Kind: EventCursorGone, Board: r.Board, CursorIDs: gone}, "")
}

func (r *Room) armFlush() {
	if r.flush != nil || !r.cursors.hasPending() {
		return
	}
	r.flush = time.NewTimer(r.opts.CursorMinInterval)
}

func (r *Room) flushC() <-chan time.Time {
	if r.flush == nil {
		return nil
	}
	return r.flush.C
}

func (r *Room) sendState(c *Client) {
	deliver(c, &Event{
		Kind:      EventState,
		Board:     r.Board,
		Elements:  r.elements,
		Version:   r.version,
		UpdatedAt: r.updatedAt,
	})
}

func (r *Room) publishPresence() {
	r.broadcast(&Event{Kind: EventPresence, Board: r.Board, Members: r.presence.list()}, "")
}

// broadcast delivers ev to every member except the one with id except.
func (r *Room) broadcast(ev *Event, except string) {
	for id, c := range r.clients {
		if id == except {
			continue
		}
		if !deliver(c, ev) {
			r.log.Debug().Str("client_id", id).Str("event", ev.Kind.String()).Msg("dropped event for slow client")
		}
	}
}

func (r *Room) snapshot() RoomSnapshot {
	return RoomSnapshot{
		Board:     r.Board,
		Members:   r.presence.list(),
		Elements:  cloneElements(r.elements),
		Version:   r.version,
		UpdatedAt: r.updatedAt,
		Cursors:   r.cursors.snapshot(),
	}
}
