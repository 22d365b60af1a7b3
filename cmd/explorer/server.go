package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/olids/explorer/internal/config"
	"github.com/olids/explorer/internal/domain/patient"
	"github.com/olids/explorer/internal/domain/records"
	"github.com/olids/explorer/internal/domain/summary"
	"github.com/olids/explorer/internal/domain/timeline"
	"github.com/olids/explorer/internal/platform/db"
	"github.com/olids/explorer/internal/platform/middleware"
	"github.com/olids/explorer/internal/platform/sandbox"
)

// backend bundles the repositories of one data source.
type backend struct {
	source   timeline.RecordSource
	patients patient.Repository
	records  records.Repository
	health   echo.HandlerFunc
	// store is set only for the fixture data source.
	store *sandbox.Store
	close func()
}

func (b *backend) Close() {
	if b.close != nil {
		b.close()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	if cfg.UsesFixture() {
		d, err := sandbox.Load(cfg.FixtureFile)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("file", cfg.FixtureFile).Int("patients", len(d.Patients)).Msg("loaded fixture dataset")
		return fixtureBackend(sandbox.NewStore(d, cfg.MaxAppointments)), nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:   cfg.DBMaxConns,
		MinConns:   cfg.DBMinConns,
		SearchPath: cfg.DBSearchPath,
		ReadOnly:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to warehouse: %w", err)
	}
	return &backend{
		source:   timeline.NewRecordSourcePG(pool, cfg.MaxAppointments),
		patients: patient.NewRepoPG(pool),
		records:  records.NewRepoPG(pool),
		health:   db.HealthHandler(pool),
		close:    pool.Close,
	}, nil
}

func fixtureBackend(store *sandbox.Store) *backend {
	return &backend{
		source:   store,
		patients: store,
		records:  store,
		store:    store,
		health: func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"status":      "healthy",
				"data_source": config.DataSourceFixture,
				"stats":       store.Dataset().Stats(),
			})
		},
	}
}

func newServer(cfg *config.Config, logger zerolog.Logger, b *backend) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	e.Use(middleware.RequestTimeout(cfg.QueryTimeout, "/health"))

	e.GET("/health", b.health)

	timelineSvc := timeline.NewService(b.source, logger)
	patientSvc := patient.NewService(b.patients, timelineSvc, logger)
	recordsSvc := records.NewService(b.records, timelineSvc, records.Limits{
		MaxObservations: cfg.MaxObservations,
		MaxMedications:  cfg.MaxMedications,
		MaxAppointments: cfg.MaxAppointments,
	}, logger)
	summarySvc := summary.NewService(timelineSvc, patientSvc, recordsSvc, logger)

	apiV1 := e.Group("/api/v1")
	timeline.NewHandler(timelineSvc).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	records.NewHandler(recordsSvc).RegisterRoutes(apiV1)
	summary.NewHandler(summarySvc).RegisterRoutes(apiV1)

	if b.store != nil && cfg.IsDev() {
		sandbox.NewSeedHandler(b.store).RegisterRoutes(e.Group("/sandbox"))
		logger.Info().Msg("sandbox routes enabled")
	}

	return e
}
