// Package cached wraps a permission registry with a read-through cache.
package cached

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/asakaida/kanmon/pkg/cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// fillTimeout bounds a shared registry lookup
const fillTimeout = 5 * time.Second

// Observer receives cache hit/miss events (e.g. the Prometheus exporter)
type Observer interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// cachedEntry is the stored form of a lookup. Absent pairs are cached too.
type cachedEntry struct {
	Found         bool      `json:"found"`
	ID            int64     `json:"id,omitempty"`
	Name          string    `json:"name,omitempty"`
	AuthorityName string    `json:"authority,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// FunctionalityRepository caches Find results of an inner registry.
// Local writes invalidate synchronously; remote writes are expected to call
// Invalidate (see infrastructure/cache.Invalidator). TTL bounds staleness
// if a notification is lost.
type FunctionalityRepository struct {
	inner  repositories.FunctionalityRepository
	cache  cache.Cache
	ttl    time.Duration
	logger logrus.FieldLogger

	group singleflight.Group

	// generation changes on every invalidation; fills started under an older
	// generation are not stored.
	generation atomic.Uint64

	observer Observer
}

// New creates a cached registry
func New(inner repositories.FunctionalityRepository, c cache.Cache, ttl time.Duration, logger logrus.FieldLogger) *FunctionalityRepository {
	return &FunctionalityRepository{
		inner:  inner,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// SetObserver sets the hit/miss observer
func (r *FunctionalityRepository) SetObserver(o Observer) {
	r.observer = o
}

func cacheKey(name, authorityName string) string {
	// Length prefix keeps keys unambiguous whatever the name contains
	return fmt.Sprintf("perm:%d:%s@%s", len(name), name, authorityName)
}

// Find returns the cached lookup or loads it from the inner registry
func (r *FunctionalityRepository) Find(ctx context.Context, name, authorityName string) (*entities.Functionality, error) {
	key := cacheKey(name, authorityName)

	if raw, ok := r.cache.Get(ctx, key); ok {
		var e cachedEntry
		if err := json.Unmarshal(raw, &e); err == nil {
			r.recordHit()
			return e.functionality(), nil
		}
		r.logger.WithField("key", key).Warn("discarding undecodable cache entry")
	}
	r.recordMiss()

	// The fill is shared by every caller waiting on key, so it must not
	// inherit the cancellation of whichever caller started it.
	ch := r.group.DoChan(key, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()

		gen := r.generation.Load()

		f, err := r.inner.Find(fillCtx, name, authorityName)
		if err != nil {
			return nil, err
		}

		r.store(fillCtx, key, f, gen)
		return f, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	f, _ := res.Val.(*entities.Functionality)
	if f == nil {
		return nil, nil
	}
	// Result is shared between singleflight callers
	copied := *f
	return &copied, nil
}

func (r *FunctionalityRepository) store(ctx context.Context, key string, f *entities.Functionality, gen uint64) {
	if r.generation.Load() != gen {
		return
	}

	raw, err := json.Marshal(newCachedEntry(f))
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("failed to populate registry cache")
		return
	}

	// An invalidation raced with the fill; drop what we just wrote
	if r.generation.Load() != gen {
		_ = r.cache.Delete(ctx, key)
	}
}

// Insert writes through and invalidates the pair
func (r *FunctionalityRepository) Insert(ctx context.Context, name, authorityName string) (*entities.Functionality, error) {
	f, err := r.inner.Insert(ctx, name, authorityName)
	r.invalidateKey(ctx, cacheKey(name, authorityName))
	return f, err
}

// Delete writes through and invalidates the pair
func (r *FunctionalityRepository) Delete(ctx context.Context, name, authorityName string) error {
	err := r.inner.Delete(ctx, name, authorityName)
	r.invalidateKey(ctx, cacheKey(name, authorityName))
	return err
}

// GetByID is not cached
func (r *FunctionalityRepository) GetByID(ctx context.Context, id int64) (*entities.Functionality, error) {
	return r.inner.GetByID(ctx, id)
}

// Update writes through and clears the cache, since the previous key is unknown here
func (r *FunctionalityRepository) Update(ctx context.Context, f *entities.Functionality) error {
	err := r.inner.Update(ctx, f)
	if invErr := r.Invalidate(ctx); invErr != nil {
		r.logger.WithError(invErr).Warn("failed to clear registry cache")
	}
	return err
}

// DeleteByID writes through and clears the cache
func (r *FunctionalityRepository) DeleteByID(ctx context.Context, id int64) error {
	err := r.inner.DeleteByID(ctx, id)
	if invErr := r.Invalidate(ctx); invErr != nil {
		r.logger.WithError(invErr).Warn("failed to clear registry cache")
	}
	return err
}

// List is not cached
func (r *FunctionalityRepository) List(ctx context.Context, filter *repositories.FunctionalityFilter) ([]*entities.Functionality, error) {
	return r.inner.List(ctx, filter)
}

// Invalidate drops every cached lookup
func (r *FunctionalityRepository) Invalidate(ctx context.Context) error {
	r.generation.Add(1)
	return r.cache.Clear(ctx)
}

func (r *FunctionalityRepository) invalidateKey(ctx context.Context, key string) {
	r.generation.Add(1)
	r.group.Forget(key)
	if err := r.cache.Delete(ctx, key); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("failed to invalidate registry cache entry")
	}
}

func (r *FunctionalityRepository) recordHit() {
	if r.observer != nil {
		r.observer.RecordCacheHit()
	}
}

func (r *FunctionalityRepository) recordMiss() {
	if r.observer != nil {
		r.observer.RecordCacheMiss()
	}
}

func newCachedEntry(f *entities.Functionality) cachedEntry {
	if f == nil {
		return cachedEntry{}
	}
	return cachedEntry{
		Found:         true,
		ID:            f.ID,
		Name:          f.Name,
		AuthorityName: f.AuthorityName,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

func (e cachedEntry) functionality() *entities.Functionality {
	if !e.Found {
		return nil
	}
	return &entities.Functionality{
		ID:            e.ID,
		Name:          e.Name,
		AuthorityName: e.AuthorityName,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
