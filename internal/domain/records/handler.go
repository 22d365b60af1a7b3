package records

import (
	"net/http"
	"strconv"

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
	api.GET("/patients/:id/observations", h.ListObservations)
	api.GET("/patients/:id/observations/summary", h.GetObservationSummary)
	api.GET("/patients/:id/medications", h.ListMedications)
	api.GET("/patients/:id/medications/summary", h.GetMedicationSummary)
	api.GET("/patients/:id/appointments", h.GetAppointments)
}

func (h *Handler) filter(c echo.Context) (Filter, error) {
	rng, err := timeline.RangeParam(c, h.svc.timelines.Now(), timeline.RangeLast30Days)
	if err != nil {
		return Filter{}, err
	}
	f := Filter{Range: rng, Search: c.QueryParam("search")}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Filter{}, echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

func (h *Handler) ListObservations(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return timeline.HTTPError(err)
	}
	list, err := h.svc.Observations(c.Request().Context(), c.Param("id"), f)
	if err != nil {
		return timeline.HTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetObservationSummary(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := h.svc.timelines.ResolveIdentifier(ctx, c.Param("id"))
	if err != nil {
		return timeline.HTTPError(err)
	}
	sum, err := h.svc.ObservationStats(ctx, id)
	if err != nil {
		return timeline.HTTPError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) ListMedications(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return timeline.HTTPError(err)
	}
	list, err := h.svc.Medications(c.Request().Context(), c.Param("id"), f)
	if err != nil {
		return timeline.HTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetMedicationSummary(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := h.svc.timelines.ResolveIdentifier(ctx, c.Param("id"))
	if err != nil {
		return timeline.HTTPError(err)
	}
	sum, err := h.svc.MedicationStats(ctx, id)
	if err != nil {
		return timeline.HTTPError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) GetAppointments(c echo.Context) error {
	rng, err := timeline.RangeParam(c, h.svc.timelines.Now(), timeline.RangeLast30Days)
	if err != nil {
		return timeline.HTTPError(err)
	}
	view, err := h.svc.Appointments(c.Request().Context(), c.Param("id"), rng)
	if err != nil {
		return timeline.HTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}
