package db

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// WarehouseRelations are the relations every explorer view reads. Health
// reports any that the session cannot resolve on its search_path.
var WarehouseRelations = []string{
	TableDimPerson,
	TableDimPersonHistorical,
	TableLTCSummary,
	TableObservation,
	TableMedicationOrder,
	TableMedicationStatement,
	TableAppointment,
	TablePractitioner,
}

type warehouse interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// HealthHandler reports warehouse reachability, missing relations and pool
// stats.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return healthHandler(pool, func() *PoolStats { return GetPoolStats(pool) })
}

func healthHandler(w warehouse, stats func() *PoolStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		s := stats()
		unhealthy := func(err error) error {
			s.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status":      "unhealthy",
				"data_source": "postgres",
				"error":       err.Error(),
				"pool":        s,
			})
		}
		if err := w.Ping(ctx); err != nil {
			return unhealthy(err)
		}

		var readOnly, searchPath string
		if err := w.QueryRow(ctx, "SELECT current_setting('default_transaction_read_only'), current_setting('search_path')").Scan(&readOnly, &searchPath); err != nil {
			return unhealthy(err)
		}

		missing, err := missingRelations(ctx, w)
		if err != nil {
			return unhealthy(err)
		}

		body := map[string]interface{}{
			"status":      "healthy",
			"data_source": "postgres",
			"read_only":   readOnly == "on",
			"search_path": searchPath,
			"pool":        s,
		}
		if len(missing) > 0 {
			body["status"] = "degraded"
			body["missing_relations"] = missing
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}

func missingRelations(ctx context.Context, w warehouse) ([]string, error) {
	var missing []string
	for _, rel := range WarehouseRelations {
		var found *string
		if err := w.QueryRow(ctx, "SELECT to_regclass($1)::text", rel).Scan(&found); err != nil {
			return nil, fmt.Errorf("check %s: %w", rel, err)
		}
		if found == nil {
			missing = append(missing, rel)
		}
	}
	return missing, nil
}
