package service

import (
	"context"
	"sync"
	"time"

	"shortlink/internal/cache"
	"shortlink/internal/metrics"
	"shortlink/internal/model"
	"shortlink/internal/repository"
	"shortlink/internal/util"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	CodeLength = util.DefaultCodeLength
	// MaxAllocationAttempts bounds the generate-and-check loop of one Shorten call.
	MaxAllocationAttempts = 10

	DefaultCacheTTL     = time.Hour
	DefaultClickTimeout = 5 * time.Second
	DefaultRecentLimit  = 10
	MaxRecentLimit      = 50
)

// Options tunes a Service. Zero values fall back to the defaults above.
type Options struct {
	BaseURL      string
	CacheTTL     time.Duration
	ClickTimeout time.Duration

	// Now and Generate are replaceable for tests.
	Now      func() time.Time
	Generate func(length int) string
}

// ShortenResult is what a caller needs to hand a short link back to a client.
type ShortenResult struct {
	ShortCode   string
	OriginalURL string
	ShortURL    string
	Cached      bool
}

type Service struct {
	Repo    repository.Store
	Cache   cache.Cache
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	opts   Options
	clicks sync.WaitGroup
}

// NewService wires a service. A nil cache is replaced by cache.Noop.
func NewService(r repository.Store, c cache.Cache, logger *zap.Logger, m *metrics.Metrics, opts Options) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = DefaultClickTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Generate == nil {
		opts.Generate = util.GenerateShortCode
	}
	return &Service{
		Repo:    r,
		Cache:   c,
		Logger:  logger,
		Metrics: m,
		opts:    opts,
	}
}

// Shorten allocates a new short code for original, or returns the code the
// cache remembers for it. Deduplication is best-effort only.
func (s *Service) Shorten(ctx context.Context, original string) (*ShortenResult, error) {
	if err := util.ValidateURL(original); err != nil {
		s.Metrics.Shorten("invalid")
		return nil, &ValidationError{Message: err.Error()}
	}

	if code, ok := s.cacheGet(ctx, cache.URLKey(original)); ok {
		s.Metrics.Shorten("cached")
		return s.result(code, original, true), nil
	}

	for attempt := 1; attempt <= MaxAllocationAttempts; attempt++ {
		code := s.opts.Generate(CodeLength)

		exists, err := s.Repo.Exists(ctx, code)
		if err != nil {
			s.Metrics.Shorten("error")
			return nil, persistenceError("check short code", err)
		}
		if exists {
			s.Logger.Debug("short code collision", zap.String("code", code), zap.Int("attempt", attempt))
			continue
		}

		m := &model.URLMapping{
			ShortCode:   code,
			OriginalURL: original,
			CreatedAt:   s.opts.Now().UTC(),
		}
		if err := s.Repo.Create(ctx, m); err != nil {
			// Taken between the existence check and the insert.
			if errors.Is(err, repository.ErrCodeExists) {
				s.Logger.Debug("short code taken on insert", zap.String("code", code), zap.Int("attempt", attempt))
				continue
			}
			s.Metrics.Shorten("error")
			return nil, persistenceError("save mapping", err)
		}

		s.populate(ctx, original, code)
		s.Metrics.Shorten("created")
		return s.result(code, original, false), nil
	}

	s.Logger.Warn("short code allocation exhausted",
		zap.Int("attempts", MaxAllocationAttempts),
		zap.String("original_url", original))
	s.Metrics.Shorten("exhausted")
	return nil, ErrAllocationExhausted
}

// Resolve returns the original URL for code and schedules click accounting
// without waiting for it.
func (s *Service) Resolve(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", &ValidationError{Message: "Short code is required"}
	}

	original, ok := s.cacheGet(ctx, cache.CodeKey(code))
	source := "cache"
	if !ok {
		m, err := s.load(ctx, code)
		if err != nil {
			return "", err
		}
		original = m.OriginalURL
		source = "store"
		if err := s.Cache.Set(ctx, cache.CodeKey(code), original, s.opts.CacheTTL); err != nil {
			s.cacheFailed("set", err)
		}
	}

	s.Metrics.Resolve(source)
	s.recordClick(code)
	return original, nil
}

// Stats always reads the store so counters are current.
func (s *Service) Stats(ctx context.Context, code string) (*model.URLMapping, error) {
	if code == "" {
		return nil, &ValidationError{Message: "Short code is required"}
	}
	return s.load(ctx, code)
}

// Recent lists the newest mappings. limit 0 means the default; anything else
// is clamped to [1, MaxRecentLimit].
func (s *Service) Recent(ctx context.Context, limit int) ([]model.URLMapping, error) {
	switch {
	case limit == 0:
		limit = DefaultRecentLimit
	case limit < 1:
		limit = 1
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}
	list, err := s.Repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, persistenceError("list recent", err)
	}
	return list, nil
}

// Wait blocks until pending click updates finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.clicks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) load(ctx context.Context, code string) (*model.URLMapping, error) {
	m, err := s.Repo.GetByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("load mapping", err)
	}
	return m, nil
}

// recordClick re-reads the mapping and bumps its counter on a detached
// context. Failures are logged and dropped.
func (s *Service) recordClick(code string) {
	s.clicks.Add(1)
	go func() {
		defer s.clicks.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.ClickTimeout)
		defer cancel()

		logger := s.Logger.With(zap.String("code", code))
		if _, err := s.Repo.GetByShortCode(ctx, code); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				logger.Warn("mapping does not exist for click update")
				s.Metrics.ClickUpdate("missing")
				return
			}
			logger.Error("read mapping for click update", zap.Error(err))
			s.Metrics.ClickUpdate("error")
			return
		}
		if err := s.Repo.IncrementClicks(ctx, code, s.opts.Now().UTC()); err != nil {
			logger.Error("update click count", zap.Error(err))
			s.Metrics.ClickUpdate("error")
			return
		}
		s.Metrics.ClickUpdate("ok")
	}()
}

// populate writes both lookup directions. Cache failures never fail the caller.
func (s *Service) populate(ctx context.Context, original, code string) {
	var g errgroup.Group
	g.Go(func() error {
		return s.Cache.Set(ctx, cache.URLKey(original), code, s.opts.CacheTTL)
	})
	g.Go(func() error {
		return s.Cache.Set(ctx, cache.CodeKey(code), original, s.opts.CacheTTL)
	})
	if err := g.Wait(); err != nil {
		s.cacheFailed("set", err)
	}
}

func (s *Service) cacheGet(ctx context.Context, key string) (string, bool) {
	val, ok, err := s.Cache.Get(ctx, key)
	if err != nil {
		s.cacheFailed("get", err)
		return "", false
	}
	return val, ok && val != ""
}

func (s *Service) cacheFailed(op string, err error) {
	s.Logger.Warn("cache unavailable, using store", zap.String("op", op), zap.Error(err))
	s.Metrics.CacheError(op)
}

func (s *Service) result(code, original string, cached bool) *ShortenResult {
	return &ShortenResult{
		ShortCode:   code,
		OriginalURL: original,
		ShortURL:    s.opts.BaseURL + "/" + code,
		Cached:      cached,
	}
}
