package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wozniakbe/minimal-x/internal/metrics"
)

// Backend is the platform key/value store a Store persists to.
type Backend interface {
	Get(ctx context.Context, keys []string) (map[string]string, error)
	Set(ctx context.Context, kv map[string]string) error
	Remove(ctx context.Context, keys []string) error
	// Valid reports whether the backend can still be used.
	Valid() bool
}

// Store reads and writes preferences through a Backend.
type Store struct {
	backend Backend
	schema  Schema
	logger  *slog.Logger
	metrics *metrics.Metrics
	limiter *rate.Limiter

	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(Set)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for fallback warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records reads and writes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithSchema replaces DefaultSchema.
func WithSchema(schema Schema) Option {
	return func(s *Store) { s.schema = schema }
}

// WithWriteLimit spaces writes at least interval apart once burst writes have
// been spent. Platform stores cap write operations per minute.
func WithWriteLimit(interval time.Duration, burst int) Option {
	return func(s *Store) {
		if interval > 0 {
			s.limiter = rate.NewLimiter(rate.Every(interval), burst)
		}
	}
}

// NewStore returns a Store over backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:     backend,
		schema:      DefaultSchema(),
		logger:      slog.Default(),
		subscribers: make(map[int]func(Set)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the definitions the store resolves against.
func (s *Store) Schema() Schema {
	return s.schema
}

// Get resolves a single key. It never fails.
func (s *Store) Get(ctx context.Context, key Key) Value {
	return s.GetMany(ctx, []Key{key})[key]
}

// GetAll resolves every key of the schema.
func (s *Store) GetAll(ctx context.Context) Set {
	return s.GetMany(ctx, s.schema.Keys())
}

// GetMany resolves keys to stored values, substituting defaults for anything
// missing, unreadable or outside the key's allowed values.
func (s *Store) GetMany(ctx context.Context, keys []Key) Set {
	raw := make([]string, len(keys))
	for i, k := range keys {
		raw[i] = string(k)
	}

	if !s.backend.Valid() {
		s.logger.Warn("extension context invalidated, using default preferences", "keys", raw)
		s.metrics.PreferenceRead("fallback")
		return s.defaultsFor(keys)
	}

	stored, err := s.backend.Get(ctx, raw)
	if err != nil {
		s.logger.Warn("storage read failed, using default preferences", "keys", raw, "error", err)
		s.metrics.PreferenceRead("fallback")
		return s.defaultsFor(keys)
	}

	out := s.defaultsFor(keys)
	for _, k := range keys {
		v, ok := stored[string(k)]
		if !ok {
			continue
		}
		d, known := s.schema.Lookup(k)
		if !known || !d.Allows(Value(v)) {
			s.logger.Warn("ignoring stored preference outside schema", "key", k, "value", v)
			continue
		}
		out[k] = Value(v)
	}
	s.metrics.PreferenceRead("stored")
	return out
}

func (s *Store) defaultsFor(keys []Key) Set {
	out := make(Set, len(keys))
	for _, k := range keys {
		d, ok := s.schema.Lookup(k)
		if !ok {
			s.logger.Warn("no default for unknown preference", "key", k)
		}
		out[k] = d.Default
	}
	return out
}

// Set validates and persists partial, returning the written pairs.
func (s *Store) Set(ctx context.Context, partial Set) (Set, error) {
	if err := s.schema.Validate(partial); err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(partial))
	kv := make(map[string]string, len(partial))
	for k, v := range partial {
		keys = append(keys, k)
		kv[string(k)] = string(v)
	}
	if err := s.write(ctx, "set", keys, func() error { return s.backend.Set(ctx, kv) }); err != nil {
		return nil, err
	}
	written := partial.Clone()
	s.notify(written)
	return written, nil
}

// Reset removes stored values for keys so their defaults apply again. With no
// keys, every key of the schema is reset.
func (s *Store) Reset(ctx context.Context, keys ...Key) (Set, error) {
	if len(keys) == 0 {
		keys = s.schema.Keys()
	}
	raw := make([]string, len(keys))
	for i, k := range keys {
		if _, ok := s.schema.Lookup(k); !ok {
			return nil, &ValidationError{Key: k, Err: ErrUnknownKey}
		}
		raw[i] = string(k)
	}
	if err := s.write(ctx, "reset", keys, func() error { return s.backend.Remove(ctx, raw) }); err != nil {
		return nil, err
	}
	defaults := s.defaultsFor(keys)
	s.notify(defaults)
	return defaults, nil
}

func (s *Store) write(ctx context.Context, op string, keys []Key, fn func() error) error {
	if !s.backend.Valid() {
		s.logger.Warn("extension context invalidated, cannot save preferences", "keys", keys)
		s.metrics.PreferenceWrite("rejected")
		return &PersistenceError{Op: op, Keys: keys, Err: ErrContextInvalidated}
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.metrics.PreferenceWrite("rejected")
			return &PersistenceError{Op: op, Keys: keys, Err: fmt.Errorf("waiting for write slot: %w", err)}
		}
	}
	if err := fn(); err != nil {
		s.logger.Warn("storage write failed", "op", op, "keys", keys, "error", err)
		s.metrics.PreferenceWrite("rejected")
		return &PersistenceError{Op: op, Keys: keys, Err: err}
	}
	s.metrics.PreferenceWrite("ok")
	return nil
}

// Subscribe registers fn to receive every successfully written set. The
// returned func removes the subscription.
func (s *Store) Subscribe(fn func(Set)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Reload re-reads every key and notifies subscribers. It is used when the
// backend was written by someone else.
func (s *Store) Reload(ctx context.Context) Set {
	all := s.GetAll(ctx)
	s.notify(all)
	return all
}

func (s *Store) notify(changed Set) {
	s.mu.Lock()
	subs := make([]func(Set), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(changed.Clone())
	}
}
