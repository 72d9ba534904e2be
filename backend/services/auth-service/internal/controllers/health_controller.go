package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/learnly/mono-repo/backend/services/auth-service/internal/dtos"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

const healthTimeout = 3 * time.Second

// DBPinger is satisfied by *pgxpool.Pool.
type DBPinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	db    DBPinger
	cache redis.UniversalClient // nil when no cache is configured
}

func NewHealthController(db DBPinger, cache redis.UniversalClient) *HealthController {
	return &HealthController{db: db, cache: cache}
}

func (c *HealthController) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		utils.RespondErrorWithCode(
			w, http.StatusServiceUnavailable, utils.ErrCodeInternal, "Database unreachable", nil, err,
		)
		return
	}

	resp := dtos.HealthCheckResponse{Status: "OK", Database: "up"}

	if c.cache != nil {
		if err := c.cache.Ping(ctx).Err(); err != nil {
			utils.RespondErrorWithCode(
				w, http.StatusServiceUnavailable, utils.ErrCodeInternal, "Cache unreachable", nil, err,
			)
			return
		}
		resp.Cache = "up"
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}
