package store_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jacentio/origami/store"
)

// --- Test Backend ---

// fakeBackend records hook calls and returns canned results.
type fakeBackend struct {
	calls []string

	lastQuery store.Query
	lastSet   store.Record
	lastOpts  store.Options

	createResult    store.Record
	findResult      []store.Record
	findOneResult   store.Record
	updateResult    []store.Record
	updateOneResult store.Record

	err error
}

func (f *fakeBackend) Create(ctx context.Context, rec store.Record, opts store.Options) (store.Record, error) {
	f.calls = append(f.calls, "Create")
	f.lastSet = rec
	if f.err != nil {
		return nil, f.err
	}
	if f.createResult != nil {
		return f.createResult, nil
	}
	return rec, nil
}

func (f *fakeBackend) Find(ctx context.Context, q store.Query, opts store.Options) ([]store.Record, error) {
	f.calls = append(f.calls, "Find")
	f.lastQuery = q
	f.lastOpts = opts
	return f.findResult, f.err
}

func (f *fakeBackend) FindOne(ctx context.Context, q store.Query, opts store.Options) (store.Record, error) {
	f.calls = append(f.calls, "FindOne")
	f.lastQuery = q
	f.lastOpts = opts
	return f.findOneResult, f.err
}

func (f *fakeBackend) Update(ctx context.Context, q store.Query, set store.Record, opts store.Options) ([]store.Record, error) {
	f.calls = append(f.calls, "Update")
	f.lastQuery = q
	f.lastSet = set
	return f.updateResult, f.err
}

func (f *fakeBackend) UpdateOne(ctx context.Context, q store.Query, set store.Record, opts store.Options) (store.Record, error) {
	f.calls = append(f.calls, "UpdateOne")
	f.lastQuery = q
	f.lastSet = set
	return f.updateOneResult, f.err
}

// idBackend adds the IDFinder fast path.
type idBackend struct {
	fakeBackend
	byID map[string]store.Record
}

func (b *idBackend) FindByID(ctx context.Context, id string, opts store.Options) (store.Record, error) {
	b.calls = append(b.calls, "FindByID")
	return b.byID[id], nil
}

// fakeDriver hands out one backend per model, built by newBackend.
type fakeDriver struct {
	backends   map[string]store.Backend
	newBackend func(m *store.Model) store.Backend

	connects    int
	disconnects int
	connectErr  error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{backends: make(map[string]store.Backend)}
}

func (d *fakeDriver) Connect(ctx context.Context) error {
	d.connects++
	return d.connectErr
}

func (d *fakeDriver) Disconnect(ctx context.Context) error {
	d.disconnects++
	return nil
}

func (d *fakeDriver) Backend(m *store.Model) (store.Backend, error) {
	var b store.Backend = &fakeBackend{}
	if d.newBackend != nil {
		b = d.newBackend(m)
	}
	d.backends[m.Name()] = b
	return b, nil
}

func (d *fakeDriver) fake(t *testing.T, model string) *fakeBackend {
	t.Helper()
	switch b := d.backends[model].(type) {
	case *fakeBackend:
		return b
	case *idBackend:
		return &b.fakeBackend
	}
	t.Fatalf("no fake backend for model %q", model)
	return nil
}

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testConfig() store.Config {
	cfg := store.DefaultConfig()
	cfg.Type = "fake"
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.Now = func() time.Time { return fixedNow }
	return cfg
}

func newTestStore(t *testing.T, d store.Driver) *store.Store {
	t.Helper()
	s, err := store.New(d, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func mustRegister(t *testing.T, s *store.Store, name string, schema store.Schema) *store.Model {
	t.Helper()
	m, err := s.Register(name, schema)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return m
}

func props(names ...string) []store.Property {
	out := make([]store.Property, len(names))
	for i, n := range names {
		out[i] = store.Property{Name: n}
	}
	return out
}

// blogStore registers Post -> User (author) and Post -> Comment (comments),
// Comment -> User (author), User -> Post (posts).
func blogStore(t *testing.T) (*store.Store, *fakeDriver) {
	t.Helper()
	d := newFakeDriver()
	s := newTestStore(t, d)

	mustRegister(t, s, "User", store.Schema{Properties: []store.Property{
		{Name: "id"},
		{Name: "name"},
		{Name: "password", Hidden: true},
		{Name: "posts", IsMany: "Post"},
	}})
	mustRegister(t, s, "Comment", store.Schema{Properties: []store.Property{
		{Name: "id"},
		{Name: "body"},
		{Name: "author", IsA: "User"},
	}})
	mustRegister(t, s, "Post", store.Schema{Properties: []store.Property{
		{Name: "id"},
		{Name: "title"},
		{Name: "author", IsA: "User"},
		{Name: "comments", IsMany: "Comment"},
		{Name: "deletedAt"},
	}})
	return s, d
}

func asValidationError(t *testing.T, err error) *store.ValidationError {
	t.Helper()
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return verr
}
