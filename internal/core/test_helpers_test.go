package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustPresence waits for a presence event listing exactly n members.
func mustPresence(t *testing.T, ch <-chan *Event, n int) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev := mustEvent(t, ch, EventPresence)
		if len(ev.Members) == n {
			return ev
		}
	}
	t.Fatalf("expected presence with %d members not received", n)
	return nil
}

// drain returns every event buffered on c without waiting.
func drain(c *Client) []*Event {
	var out []*Event
	for {
		select {
		case ev := <-c.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func kinds(events []*Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// newTestRoom builds a room that is driven by direct calls instead of its goroutine.
func newTestRoom(board string, persister BoardPersister) (*Room, *fakeClock) {
	clock := newFakeClock()
	r := newRoom(board, persister, DefaultRoomOptions(), nil)
	r.now = clock.Now
	return r, clock
}

func el(id, kind string) Element {
	raw, _ := json.Marshal(map[string]any{"id": id, "tool": kind, "points": []float64{1, 2, 3, 4}})
	return NewElement(id, kind, raw)
}

type savedBoard struct {
	board    string
	owner    string
	elements []Element
}

// memoryPersister records saves and serves loads from a map.
type memoryPersister struct {
	mu     sync.Mutex
	boards map[string][]Element
	saves  []savedBoard
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{boards: make(map[string][]Element)}
}

func (p *memoryPersister) Load(_ context.Context, boardID string) ([]Element, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneElements(p.boards[boardID]), time.Time{}, nil
}

func (p *memoryPersister) Save(boardID, ownerID string, elements []Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boards[boardID] = cloneElements(elements)
	p.saves = append(p.saves, savedBoard{board: boardID, owner: ownerID, elements: cloneElements(elements)})
}

func (p *memoryPersister) saved() []savedBoard {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]savedBoard(nil), p.saves...)
}
