package timeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/resolve", h.Resolve)
	api.GET("/patients/:id/timeline/:type", h.GetTimeline)
	api.GET("/patients/:id/timeline/:type/current", h.GetCurrent)
	api.GET("/patients/:id/timeline/:type/monthly", h.GetMonthly)
	api.GET("/patients/:id/problems", h.GetProblems)
}

// TimelineResponse wraps a timeline with any data-quality warnings raised
// while building it.
type TimelineResponse struct {
	Timeline *Timeline `json:"timeline"`
	Warnings []string  `json:"warnings,omitempty"`
}

type SnapshotResponse struct {
	Patient  PatientIdentifier `json:"patient"`
	Snapshot CurrentSnapshot   `json:"snapshot"`
	Warnings []string          `json:"warnings,omitempty"`
}

type MonthlyResponse struct {
	Patient  PatientIdentifier `json:"patient"`
	Months   []MonthBucket     `json:"months"`
	Warnings []string          `json:"warnings,omitempty"`
}

type ProblemDomain struct {
	Domain   string   `json:"domain"`
	Problems []Record `json:"problems"`
}

type ProblemsResponse struct {
	Patient  PatientIdentifier `json:"patient"`
	Domains  []ProblemDomain   `json:"domains"`
	Warnings []string          `json:"warnings,omitempty"`
}

func (h *Handler) Resolve(c echo.Context) error {
	id, err := h.svc.ResolveIdentifier(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, id)
}

func (h *Handler) GetTimeline(c echo.Context) error {
	tl, warnings, err := h.build(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TimelineResponse{Timeline: tl, Warnings: warnings})
}

func (h *Handler) GetCurrent(c echo.Context) error {
	tl, warnings, err := h.build(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SnapshotResponse{Patient: tl.Patient, Snapshot: tl.CurrentSnapshot(), Warnings: warnings})
}

func (h *Handler) GetMonthly(c echo.Context) error {
	tl, warnings, err := h.build(c)
	if err != nil {
		return err
	}
	if tl.RecordType.IsSCD() {
		return echo.NewHTTPError(http.StatusBadRequest, "monthly buckets are only available for point-event record types")
	}
	past := tl.CurrentSnapshot().Past
	return c.JSON(http.StatusOK, MonthlyResponse{
		Patient:  tl.Patient,
		Months:   MergeByMonthWithin(past, tl.Range.From, tl.Range.To),
		Warnings: warnings,
	})
}

func (h *Handler) GetProblems(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := h.svc.ResolveIdentifier(ctx, c.Param("id"))
	if err != nil {
		return HTTPError(err)
	}
	problems, warnings, err := Warnings(h.svc.FetchProblems(ctx, id))
	if err != nil {
		return HTTPError(err)
	}

	var domains []ProblemDomain
	index := make(map[string]int)
	for _, p := range problems {
		d := CategoryLabel(p.Payload.String("clinical_domain"))
		i, ok := index[d]
		if !ok {
			i = len(domains)
			index[d] = i
			domains = append(domains, ProblemDomain{Domain: d})
		}
		domains[i].Problems = append(domains[i].Problems, p)
	}
	return c.JSON(http.StatusOK, ProblemsResponse{Patient: id, Domains: domains, Warnings: warnings})
}

func (h *Handler) build(c echo.Context) (*Timeline, []string, error) {
	ctx := c.Request().Context()
	rt, err := ParseRecordType(c.Param("type"))
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rng, err := RangeParam(c, h.svc.Now(), RangeAll)
	if err != nil {
		return nil, nil, HTTPError(err)
	}
	id, err := h.svc.ResolveIdentifier(ctx, c.Param("id"))
	if err != nil {
		return nil, nil, HTTPError(err)
	}
	tl, warnings, err := Warnings(h.svc.BuildTimeline(ctx, id, rt, rng))
	if err != nil {
		return nil, nil, HTTPError(err)
	}
	return tl, warnings, nil
}

// Warnings splits a *DataIntegrityError off a result so the caller can
// carry on with the best-effort value. Any other error is returned as is.
func Warnings[T any](v T, err error) (T, []string, error) {
	var integrity *DataIntegrityError
	if errors.As(err, &integrity) {
		return v, integrity.Warnings(), nil
	}
	return v, nil, err
}

// RangeParam reads the "range" query parameter, falling back to def.
func RangeParam(c echo.Context, now time.Time, def RangeOption) (DateRange, error) {
	opt := c.QueryParam("range")
	if opt == "" {
		opt = string(def)
	}
	return ParseRange(opt, now)
}

// HTTPError maps reconciler errors onto HTTP status codes.
func HTTPError(err error) error {
	var ambiguous *AmbiguousIdentifierError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.As(err, &ambiguous):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidIdentifier), errors.Is(err, ErrInvalidDateRange):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "warehouse query timed out")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
