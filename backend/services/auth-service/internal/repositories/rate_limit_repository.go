package repositories

import (
	"context"
	"time"

	"github.com/learnly/mono-repo/backend/shared/go-repositories"
)

// rateLimitCleanupBatch is the most counters one DELETE statement removes.
const rateLimitCleanupBatch = 5000

// RateLimitHit is the state of one fixed-window counter after an increment.
type RateLimitHit struct {
	Count    int
	ResetsAt time.Time
}

// RateLimitRepository keeps fixed-window counters in Postgres.
type RateLimitRepository interface {
	// Increment adds one to the counter for key, starting a new window of
	// the given length when the current one has ended.
	Increment(ctx context.Context, key string, window time.Duration) (RateLimitHit, error)
	// CleanupExpired deletes counters whose window ended before now and
	// returns how many were removed.
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type rateLimitRepository struct {
	db repositories.DB
}

func NewRateLimitRepository(db repositories.DB) RateLimitRepository {
	return &rateLimitRepository{db: db}
}

func (r *rateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (RateLimitHit, error) {
	var hit RateLimitHit
	err := r.db.QueryRow(ctx, `
		INSERT INTO rate_limit_attempts (key, attempt_count, expires_at)
		VALUES ($1, 1, NOW() + make_interval(secs => $2))
		ON CONFLICT (key) DO UPDATE
		SET attempt_count = CASE
			WHEN rate_limit_attempts.expires_at < NOW() THEN 1
			ELSE rate_limit_attempts.attempt_count + 1
		END,
		expires_at = CASE
			WHEN rate_limit_attempts.expires_at < NOW() THEN EXCLUDED.expires_at
			ELSE rate_limit_attempts.expires_at
		END
		RETURNING attempt_count, expires_at`,
		key, window.Seconds(),
	).Scan(&hit.Count, &hit.ResetsAt)
	if err != nil {
		return RateLimitHit{}, err
	}
	return hit, nil
}

func (r *rateLimitRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for {
		tag, err := r.db.Exec(ctx, `
			DELETE FROM rate_limit_attempts
			WHERE key IN (
				SELECT key FROM rate_limit_attempts
				WHERE expires_at < $1
				LIMIT $2
			)`,
			now, rateLimitCleanupBatch,
		)
		if err != nil {
			return total, err
		}
		total += tag.RowsAffected()
		if tag.RowsAffected() < rateLimitCleanupBatch {
			return total, nil
		}
	}
}
