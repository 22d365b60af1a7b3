package patient

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/olids/explorer/internal/domain/timeline"
	"github.com/olids/explorer/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.Search)
	api.GET("/patients/:id", h.GetDemographics)
	api.GET("/patients/:id/registrations", h.GetRegistrations)
}

func (h *Handler) Search(c echo.Context) error {
	results, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return timeline.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.Paginate(c, results))
}

func (h *Handler) GetDemographics(c echo.Context) error {
	d, err := h.svc.GetDemographics(c.Request().Context(), c.Param("id"))
	if err != nil {
		return timeline.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetRegistrations(c echo.Context) error {
	rng, err := timeline.RangeParam(c, h.svc.timelines.Now(), timeline.RangeAll)
	if err != nil {
		return timeline.HTTPError(err)
	}
	hist, err := h.svc.RegistrationHistory(c.Request().Context(), c.Param("id"), rng)
	if err != nil {
		return timeline.HTTPError(err)
	}
	return c.JSON(http.StatusOK, hist)
}
