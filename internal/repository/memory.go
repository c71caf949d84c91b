package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"shortlink/internal/model"
)

// Memory is an in-process Store for local runs and tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]*model.URLMapping
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]*model.URLMapping)}
}

func (r *Memory) Exists(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.data[code]
	return ok, nil
}

func (r *Memory) Create(ctx context.Context, m *model.URLMapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[m.ShortCode]; ok {
		return ErrCodeExists
	}
	r.data[m.ShortCode] = clone(m)
	return nil
}

func (r *Memory) GetByShortCode(ctx context.Context, code string) (*model.URLMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.data[code]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(m), nil
}

func (r *Memory) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.data[code]
	if !ok {
		return ErrNotFound
	}
	m.Clicks++
	if m.LastAccessed == nil || at.After(*m.LastAccessed) {
		m.LastAccessed = &at
	}
	return nil
}

func (r *Memory) ListRecent(ctx context.Context, limit int) ([]model.URLMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	res := make([]model.URLMapping, 0, len(r.data))
	for _, m := range r.data {
		res = append(res, *clone(m))
	}
	r.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	if limit >= 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func clone(m *model.URLMapping) *model.URLMapping {
	c := *m
	if m.LastAccessed != nil {
		t := *m.LastAccessed
		c.LastAccessed = &t
	}
	return &c
}

var _ Store = (*Memory)(nil)
