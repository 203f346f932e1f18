// Package cache wraps a storage.Storage with a read-through cache.
//
// Lookups try the cache first and fill it from the backend on a miss.
// Saves and deletes evict the id after the backend write succeeds. A
// fill that raced with a write to the same id is evicted again, so the
// cache never keeps a record the backend has already dropped. The cache
// is an optimisation only: every cache error is logged and the call
// falls through to the backend.
package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aanand-mishra/students-registry/internal/storage"
	"github.com/aanand-mishra/students-registry/internal/types"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the key-value contract the decorator needs. Redis implements
// it in production; tests use an in-memory map.
type Cache interface {
	Get(ctx context.Context, id int64) (types.Student, error)
	Set(ctx context.Context, st types.Student, ttl time.Duration) error
	Delete(ctx context.Context, id int64) error
}

// generations is the number of write counters ids are spread over.
const generations = 64

// Store is a storage.Storage that caches FindByID results.
type Store struct {
	next  storage.Storage
	cache Cache
	ttl   time.Duration
	log   *slog.Logger

	// gens[slot(id)] is bumped after every successful Save or Delete of
	// id. Ids sharing a slot only cost each other a skipped fill.
	gens [generations]atomic.Uint64
}

// New returns next wrapped with cache. Entries expire after ttl.
func New(next storage.Storage, cache Cache, ttl time.Duration, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{next: next, cache: cache, ttl: ttl, log: log}
}

func (s *Store) Save(ctx context.Context, st types.Student) (types.Student, error) {
	saved, err := s.next.Save(ctx, st)
	if err != nil {
		return saved, err
	}
	s.bump(st.ID)
	s.evict(ctx, st.ID)
	return saved, nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (types.Student, error) {
	if err := ctx.Err(); err != nil {
		return types.Student{}, err
	}

	st, err := s.cache.Get(ctx, id)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.log.Warn("cache get failed",
			slog.Int64("id", id),
			slog.String("error", err.Error()))
	}

	gen := s.generation(id)
	st, err = s.next.FindByID(ctx, id)
	if err != nil {
		return st, err
	}
	s.fill(ctx, st, gen)
	return st, nil
}

// fill caches st unless a write to its id has finished since gen was
// read. A write that lands between the check and the Set bumps the
// generation before it evicts, so the second check catches it.
func (s *Store) fill(ctx context.Context, st types.Student, gen uint64) {
	if s.generation(st.ID) != gen {
		return
	}
	if err := s.cache.Set(ctx, st, s.ttl); err != nil {
		s.log.Warn("cache set failed",
			slog.Int64("id", st.ID),
			slog.String("error", err.Error()))
		return
	}
	if s.generation(st.ID) != gen {
		s.evict(ctx, st.ID)
	}
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}
	s.bump(id)
	s.evict(ctx, id)
	return nil
}

// List is not cached.
func (s *Store) List(ctx context.Context) ([]types.Student, error) {
	return s.next.List(ctx)
}

// Close closes the wrapped backend, then the cache if it holds a
// connection.
func (s *Store) Close() error {
	err := s.next.Close()
	if c, ok := s.cache.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func slot(id int64) int {
	return int(uint64(id) % generations)
}

func (s *Store) generation(id int64) uint64 {
	return s.gens[slot(id)].Load()
}

func (s *Store) bump(id int64) {
	s.gens[slot(id)].Add(1)
}

func (s *Store) evict(ctx context.Context, id int64) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warn("cache evict failed",
			slog.Int64("id", id),
			slog.String("error", err.Error()))
	}
}

var _ storage.Storage = (*Store)(nil)
