package core

import "sync"

// Registry tracks live connections and the board each one is joined to.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	boards  map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		boards:  make(map[string]string),
	}
}

// Register adds a connection and returns its id.
func (r *Registry) Register(c *Client) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
	return c.ID
}

// Lookup returns the connection with the given id.
func (r *Registry) Lookup(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// SetBoard records the board a connection is joined to. An empty board clears it.
func (r *Registry) SetBoard(id, board string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return
	}
	if board == "" {
		delete(r.boards, id)
		return
	}
	r.boards[id] = board
}

// Board returns the board a connection is joined to, if any.
func (r *Registry) Board(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.boards[id]
	return b, ok
}

// Unregister removes a connection. It returns the board the connection was
// still joined to, so the caller can run the member-removal path.
func (r *Registry) Unregister(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return "", false
	}
	board := r.boards[id]
	delete(r.clients, id)
	delete(r.boards, id)
	return board, true
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
