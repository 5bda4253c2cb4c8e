package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"kanaliiga-observer/internal/constants"
	"kanaliiga-observer/internal/domain"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type ResponseCacheRepository struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

func NewResponseCacheRepository(sqlDB *sql.DB, logger zerolog.Logger) *ResponseCacheRepository {
	return &ResponseCacheRepository{
		db:     sqlDB,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the cached response for url, or nil when there is none or it
// is older than maxAge. A zero maxAge never expires.
func (r *ResponseCacheRepository) Get(ctx context.Context, url string, maxAge time.Duration) (*domain.CachedResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var entry domain.CachedResponse
	err := r.db.QueryRowContext(ctx,
		`SELECT id, url, content_type, body, created_at FROM response_cache WHERE url = ?`, url,
	).Scan(&entry.ID, &entry.URL, &entry.ContentType, &entry.Body, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached response: %w", err)
	}

	if maxAge > 0 && r.now().Sub(entry.CreatedAt) > maxAge {
		r.logger.Debug().Str("url", url).Time("created_at", entry.CreatedAt).Msg("cached response expired")
		return nil, nil
	}

	return &entry, nil
}

func (r *ResponseCacheRepository) Put(ctx context.Context, resp *domain.CachedResponse) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	id := resp.ID
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
	}

	createdAt := resp.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO response_cache (id, url, content_type, body, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			content_type = excluded.content_type,
			body = excluded.body,
			created_at = excluded.created_at`,
		id, resp.URL, resp.ContentType, resp.Body, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cached response: %w", err)
	}
	return nil
}

// Purge removes entries older than maxAge.
func (r *ResponseCacheRepository) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM response_cache WHERE created_at < ?`, r.now().Add(-maxAge).UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}
