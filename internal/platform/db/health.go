package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// pingTimeout bounds the health probe so a stuck database cannot hang the
// check itself.
const pingTimeout = 5 * time.Second

// PoolStats is the pool occupancy snapshot attached to the database health
// report.
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

type healthReport struct {
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
	Pool   PoolStats `json:"pool"`
}

func snapshotPool(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
	}
}

// HealthHandler reports whether the theatre datastore is reachable. Scheduling
// cannot proceed without it, so an unreachable database is a 503 with the last
// pool snapshot attached for operators.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
		defer cancel()

		report := healthReport{Status: "healthy", Pool: snapshotPool(pool)}
		if err := pool.Ping(ctx); err != nil {
			report.Status = "unhealthy"
			report.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
