package repository

import (
	"context"
	"time"

	"shortlink/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no mapping exists for a short code.
	ErrNotFound = errors.New("not found")
	// ErrCodeExists is returned by Create when the short code is already taken.
	ErrCodeExists = errors.New("short code already exists")
)

// Store is the durable source of truth for URL mappings.
// Implementations must be safe for concurrent use.
type Store interface {
	Exists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, m *model.URLMapping) error
	GetByShortCode(ctx context.Context, code string) (*model.URLMapping, error)
	// IncrementClicks adds one click and moves last_accessed forward to at.
	IncrementClicks(ctx context.Context, code string, at time.Time) error
	ListRecent(ctx context.Context, limit int) ([]model.URLMapping, error)
}

const uniqueViolation = "23505"

// Repo is the PostgreSQL Store. Every call is a single attempt bounded by
// the configured timeout.
type Repo struct {
	DB      *pgxpool.Pool
	Timeout time.Duration
}

func NewRepo(db *pgxpool.Pool, timeout time.Duration) *Repo {
	return &Repo{DB: db, Timeout: timeout}
}

func (r *Repo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Timeout)
}

func (r *Repo) Exists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var exists bool
	q := `SELECT EXISTS(SELECT 1 FROM url_mappings WHERE short_code = $1)`
	if err := r.DB.QueryRow(ctx, q, code).Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "check short code %s", code)
	}
	return exists, nil
}

func (r *Repo) Create(ctx context.Context, m *model.URLMapping) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := `INSERT INTO url_mappings (short_code, original_url, clicks, created_at, last_accessed)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.DB.Exec(ctx, q, m.ShortCode, m.OriginalURL, m.Clicks, m.CreatedAt, m.LastAccessed)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrCodeExists
		}
		return errors.Wrapf(err, "insert short code %s", m.ShortCode)
	}
	return nil
}

func (r *Repo) GetByShortCode(ctx context.Context, code string) (*model.URLMapping, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := `SELECT short_code, original_url, clicks, created_at, last_accessed
		FROM url_mappings WHERE short_code = $1`
	rows, err := r.DB.Query(ctx, q, code)
	if err != nil {
		return nil, errors.Wrapf(err, "query short code %s", code)
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.URLMapping])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "scan short code %s", code)
	}
	return &m, nil
}

func (r *Repo) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := `
		UPDATE url_mappings
		SET clicks = clicks + 1,
		    last_accessed = GREATEST(COALESCE(last_accessed, $2), $2)
		WHERE short_code = $1
	`
	tag, err := r.DB.Exec(ctx, q, code, at)
	if err != nil {
		return errors.Wrapf(err, "increment clicks for %s", code)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]model.URLMapping, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := `SELECT short_code, original_url, clicks, created_at, last_accessed
		FROM url_mappings ORDER BY created_at DESC LIMIT $1`
	rows, err := r.DB.Query(ctx, q, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query recent mappings")
	}
	res, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.URLMapping])
	if err != nil {
		return nil, errors.Wrap(err, "scan recent mappings")
	}
	return res, nil
}

var _ Store = (*Repo)(nil)
