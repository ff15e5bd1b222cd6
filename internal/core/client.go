package core

import "sync"

const (
	clientCommandBuffer = 16
	clientEventBuffer   = 64
)

// Identity describes who is behind a connection.
type Identity struct {
	UserID string
	Email  string
}

// Client is a board participant as seen by the core layer.
type Client struct {
	ID       string
	Identity Identity
	Commands chan *Command
	Events   chan *Event

	done      chan struct{}
	closeOnce sync.Once

	// room is only touched by the hub goroutine pumping this client's commands.
	room *Room
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, identity Identity) *Client {
	if identity.UserID == "" {
		identity.UserID = id
	}
	return &Client{
		ID:       id,
		Identity: identity,
		Commands: make(chan *Command, clientCommandBuffer),
		Events:   make(chan *Event, clientEventBuffer),
		done:     make(chan struct{}),
	}
}

// Done is closed once the client has been unregistered.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// deliver hands an event to the client without blocking.
// Slow consumers miss the event; the next full-state or presence update heals them.
func deliver(c *Client, ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
