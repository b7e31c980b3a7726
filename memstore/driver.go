// Package memstore provides an in-process store driver.
//
// Records are held msgpack-encoded, so every read and write copies. Collections
// stripe their records over buckets keyed by id; writes to one collection are
// serialized so unique checks see a consistent view.
package memstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jacentio/origami/store"
)

// ErrNotConnected is returned by collection operations before Connect.
var ErrNotConnected = errors.New("origami: memstore not connected")

// Option configures a Driver.
type Option func(*Driver)

// WithShards sets the number of buckets per collection. Values below 1 are ignored.
func WithShards(n int) Option {
	return func(d *Driver) {
		if n >= 1 {
			d.shards = n
		}
	}
}

// WithIDFunc sets the generator for ids of records created without one.
func WithIDFunc(fn func() string) Option {
	return func(d *Driver) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// WithLogger sets the driver logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// Driver is an in-memory store.Driver.
type Driver struct {
	mu          sync.RWMutex
	connected   bool
	shards      int
	newID       func() string
	logger      *slog.Logger
	collections map[string]*Collection
}

// New creates a new in-memory driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		shards:      16,
		newID:       uuid.NewString,
		logger:      slog.Default(),
		collections: make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect implements store.Driver.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	return nil
}

// Disconnect implements store.Driver. Data is kept across reconnects.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	return nil
}

// Backend implements store.Driver. Registering a model again rebinds its
// existing collection, so records survive re-registration.
func (d *Driver) Backend(m *store.Model) (store.Backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.collections[m.Name()]
	if !ok {
		c = newCollection(d, d.shards)
		d.collections[m.Name()] = c
	}
	c.bind(m)

	d.logger.Debug("memstore collection bound", "model", m.Name(), "shards", d.shards)
	return c, nil
}

// Collection returns the collection of the named model.
func (d *Driver) Collection(name string) (*Collection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.collections[name]
	return c, ok
}

func (d *Driver) isConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}
