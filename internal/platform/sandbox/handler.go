package sandbox

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// SeedHandler exposes the fixture store for development: regenerate the
// synthetic dataset, inspect its size and download it as a fixture file.
type SeedHandler struct {
	store *Store
	now   func() time.Time
}

func NewSeedHandler(store *Store) *SeedHandler {
	return &SeedHandler{store: store, now: time.Now}
}

// RegisterRoutes registers sandbox routes on the given Echo group.
func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/seed", h.handleSeed)
	g.GET("/stats", h.handleStats)
	g.GET("/export", h.handleExport)
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	var cfg SeedConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if cfg.PatientCount > 1000 {
		return echo.NewHTTPError(http.StatusBadRequest, "patientCount must not exceed 1000")
	}

	d := Seed(cfg, h.now())
	h.store.Replace(d)
	return c.JSON(http.StatusOK, d.Stats())
}

func (h *SeedHandler) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Dataset().Stats())
}

func (h *SeedHandler) handleExport(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/yaml")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="fixture.yaml"`)
	c.Response().WriteHeader(http.StatusOK)
	return h.store.Dataset().Encode(c.Response().Writer)
}
