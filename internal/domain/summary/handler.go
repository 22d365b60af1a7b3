package summary

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/olids/explorer/internal/domain/timeline"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/summary", h.GetSummary)
}

func (h *Handler) GetSummary(c echo.Context) error {
	sum, err := h.svc.Summarize(c.Request().Context(), c.Param("id"))
	if err != nil {
		return timeline.HTTPError(err)
	}
	return c.JSON(http.StatusOK, sum)
}
