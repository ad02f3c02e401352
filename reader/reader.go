// Package reader owns the set of PC/SC reader proxies for the process
// lifetime: one Collection establishes a single resource-manager context,
// memoizes one Reader per name, and lets callers filter by card presence.
package reader

import (
	"fmt"
	"sync"
	"time"

	"github.com/gematik-go/cardlink/pcsc"
)

// Filter selects which readers List returns.
type Filter int

const (
	FilterAll Filter = iota
	FilterCardPresent
	FilterCardAbsent
)

// Reader is a named PC/SC reader proxy. It does not hold an open card
// connection; card.Card is acquired separately via Connect.
type Reader struct {
	name string
	ctx  *pcsc.Context
}

// Name returns the reader's PC/SC name.
func (r *Reader) Name() string { return r.name }

// Connect opens a shared-mode, any-protocol connection to whatever card
// is currently in the reader.
func (r *Reader) Connect() (*pcsc.Card, error) {
	return r.ctx.Connect(r.name, pcsc.ShareShared, pcsc.ProtocolAny)
}

// CardPresent does a zero-timeout status query to determine whether a
// card currently sits in the reader.
func (r *Reader) CardPresent() (bool, error) {
	states := []pcsc.ReaderState{{Reader: r.name, CurrentState: pcsc.StateUnaware}}
	if err := r.ctx.GetStatusChange(states, 0); err != nil {
		return false, fmt.Errorf("reader: status query for %q: %w", r.name, err)
	}
	return states[0].EventState&pcsc.StatePresent != 0, nil
}

// Collection owns one resource-manager context and every Reader proxy
// derived from it.
type Collection struct {
	mu      sync.RWMutex
	ctx     *pcsc.Context
	readers map[string]*Reader
	closed  bool
}

// Open establishes a resource-manager context and returns an empty
// Collection ready to be populated by List.
func Open() (*Collection, error) {
	ctx, err := pcsc.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("reader: open collection: %w", err)
	}
	return &Collection{ctx: ctx, readers: make(map[string]*Reader)}, nil
}

// List returns every reader matching filter, refreshing the proxy cache
// from the resource manager first. Only FilterAll, FilterCardPresent and
// FilterCardAbsent exist; there are no card-insertion or card-removal
// filters.
func (c *Collection) List(filter Filter) ([]*Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("reader: collection is closed")
	}

	names, err := c.ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("reader: list readers: %w", err)
	}

	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
		if _, ok := c.readers[name]; !ok {
			c.readers[name] = &Reader{name: name, ctx: c.ctx}
		}
	}
	for name := range c.readers {
		if !present[name] {
			delete(c.readers, name)
		}
	}

	var out []*Reader
	for _, name := range names {
		r := c.readers[name]
		if filter == FilterAll {
			out = append(out, r)
			continue
		}
		hasCard, err := r.CardPresent()
		if err != nil {
			return nil, err
		}
		if (filter == FilterCardPresent && hasCard) || (filter == FilterCardAbsent && !hasCard) {
			out = append(out, r)
		}
	}
	return out, nil
}

// WaitForChange blocks until any reader's state changes or timeout
// elapses.
func (c *Collection) WaitForChange(timeout time.Duration) error {
	c.mu.RLock()
	names := make([]string, 0, len(c.readers))
	for name := range c.readers {
		names = append(names, name)
	}
	c.mu.RUnlock()

	states := make([]pcsc.ReaderState, len(names))
	for i, name := range names {
		states[i] = pcsc.ReaderState{Reader: name, CurrentState: pcsc.StateUnaware}
	}
	// a query with every entry UNAWARE returns at once, so learn the
	// current states first and then wait for a change away from them.
	if err := c.ctx.GetStatusChange(states, 0); err != nil {
		return err
	}
	for i := range states {
		states[i].CurrentState = states[i].EventState &^ pcsc.StateChanged
	}
	return c.ctx.GetStatusChange(states, timeout)
}

// Close releases the resource-manager context. Idempotent.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ctx.Release()
}
