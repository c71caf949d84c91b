package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"shortlink/internal/cache"
	"shortlink/internal/model"
	"shortlink/internal/repository"
)

var errBoom = errors.New("boom")

// fakeCache is an in-memory cache.Cache that can be told to fail.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	ttls    map[string]time.Duration
	fail    bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string]string),
		ttls:    make(map[string]time.Duration),
	}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return "", false, &cache.Error{Op: "get", Key: key, Err: errBoom}
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return &cache.Error{Op: "set", Key: key, Err: errBoom}
	}
	c.entries[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *fakeCache) ttl(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[key]
}

func (c *fakeCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)
	c.ttls = make(map[string]time.Duration)
}

func (c *fakeCache) setFailing(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
}

// hookStore wraps a real store and lets a test intercept individual calls.
type hookStore struct {
	repository.Store

	existsCalls atomic.Int32
	createCalls atomic.Int32
	getCalls    atomic.Int32

	existsErr    error
	createErr    error
	getErr       error
	listErr      error
	incrementErr error
	// incrementGate, when set, blocks IncrementClicks until closed.
	incrementGate chan struct{}
}

func (s *hookStore) Exists(ctx context.Context, code string) (bool, error) {
	s.existsCalls.Add(1)
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.Store.Exists(ctx, code)
}

func (s *hookStore) Create(ctx context.Context, m *model.URLMapping) error {
	s.createCalls.Add(1)
	if s.createErr != nil {
		return s.createErr
	}
	return s.Store.Create(ctx, m)
}

func (s *hookStore) GetByShortCode(ctx context.Context, code string) (*model.URLMapping, error) {
	s.getCalls.Add(1)
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.Store.GetByShortCode(ctx, code)
}

func (s *hookStore) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	if s.incrementGate != nil {
		select {
		case <-s.incrementGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.incrementErr != nil {
		return s.incrementErr
	}
	return s.Store.IncrementClicks(ctx, code, at)
}

func (s *hookStore) ListRecent(ctx context.Context, limit int) ([]model.URLMapping, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.ListRecent(ctx, limit)
}

// sequence returns the given codes in order, then repeats the last one.
func sequence(codes ...string) func(int) string {
	var mu sync.Mutex
	i := 0
	return func(int) string {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c
	}
}
