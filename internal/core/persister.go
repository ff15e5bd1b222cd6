package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/store"
)

const saveTimeout = 5 * time.Second

var errSuperseded = errors.New("snapshot superseded")

// PersisterOptions controls save retries.
type PersisterOptions struct {
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPersisterOptions returns the retry defaults.
func DefaultPersisterOptions() PersisterOptions {
	return PersisterOptions{
		MaxRetries:     5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

type boardSnapshot struct {
	board    string
	owner    string
	elements []Element
	data     []byte
	at       time.Time
}

// Persister writes board state to a store behind the broadcast path.
//
// Saves never block the caller. Only the newest unsaved snapshot of a board
// is kept, and one flusher goroutine per board writes snapshots in order, so
// the store converges on the last submitted list. Failed writes are retried
// with exponential backoff until a newer snapshot supersedes them. Load sees
// unsaved snapshots before the store, so a recreated room never reads state
// older than what its previous incarnation broadcast.
type Persister struct {
	store store.BoardStore
	opts  PersisterOptions
	log   *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pending  map[string]*boardSnapshot
	failed   map[string]*boardSnapshot
	flushing map[string]bool
	closed   bool
	wg       sync.WaitGroup
}

// NewPersister creates a persister over st.
func NewPersister(st store.BoardStore, opts PersisterOptions, logger *zerolog.Logger) *Persister {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Persister{
		store:    st,
		opts:     opts,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]*boardSnapshot),
		failed:   make(map[string]*boardSnapshot),
		flushing: make(map[string]bool),
	}
}

// Save queues the element list of a board for writing.
func (p *Persister) Save(boardID, ownerID string, elements []Element) {
	data, err := EncodeElements(elements)
	if err != nil {
		p.log.Error().Err(err).Str("board", boardID).Msg("encode board state")
		return
	}
	snap := &boardSnapshot{
		board:    boardID,
		owner:    ownerID,
		elements: cloneElements(elements),
		data:     data,
		at:       time.Now().UTC(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.log.Warn().Str("board", boardID).Msg("persister closed, dropping save")
		return
	}
	p.pending[boardID] = snap
	delete(p.failed, boardID)
	if !p.flushing[boardID] {
		p.flushing[boardID] = true
		p.wg.Add(1)
		go p.flush(boardID)
	}
}

// Load returns the newest known element list of a board. Boards that were
// never saved load as an empty list.
func (p *Persister) Load(ctx context.Context, boardID string) ([]Element, time.Time, error) {
	p.mu.Lock()
	snap := p.pending[boardID]
	if snap == nil {
		snap = p.failed[boardID]
	}
	p.mu.Unlock()
	if snap != nil {
		return cloneElements(snap.elements), snap.at, nil
	}

	b, err := p.store.LoadBoard(ctx, boardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []Element{}, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("load board: %w", err)
	}
	elements, err := DecodeElements(b.Elements)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("decode board %q: %w", boardID, err)
	}
	return elements, b.UpdatedAt, nil
}

// Close waits for queued saves to finish or ctx to expire, then aborts retries.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	flushed := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(flushed)
	}()

	var err error
	select {
	case <-flushed:
	case <-ctx.Done():
		err = fmt.Errorf("flush pending saves: %w", ctx.Err())
	}
	p.cancel()
	return err
}

func (p *Persister) flush(boardID string) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		snap := p.pending[boardID]
		if snap == nil {
			delete(p.flushing, boardID)
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		err := p.write(snap)

		p.mu.Lock()
		if p.pending[boardID] == snap {
			delete(p.pending, boardID)
			if err != nil {
				p.failed[boardID] = snap
			}
		}
		p.mu.Unlock()

		switch {
		case err == nil:
			p.log.Debug().Str("board", boardID).Int("bytes", len(snap.data)).Msg("board saved")
		case errors.Is(err, errSuperseded):
		default:
			p.log.Error().Err(err).Str("board", boardID).Msg("giving up on board save")
		}
	}
}

func (p *Persister) write(snap *boardSnapshot) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.opts.InitialBackoff
	policy.MaxInterval = p.opts.MaxBackoff
	policy.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		if p.superseded(snap) {
			return backoff.Permanent(errSuperseded)
		}
		attempt++
		ctx, cancel := context.WithTimeout(p.ctx, saveTimeout)
		defer cancel()
		if err := p.store.SaveBoard(ctx, snap.board, snap.owner, snap.data); err != nil {
			p.log.Warn().Err(err).Str("board", snap.board).Int("attempt", attempt).Msg("save board failed")
			return err
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, p.opts.MaxRetries), p.ctx))
}

func (p *Persister) superseded(snap *boardSnapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[snap.board] != snap
}

var _ BoardPersister = (*Persister)(nil)
