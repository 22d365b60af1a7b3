package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/olids/explorer/internal/domain/timeline"
)

// Limits caps the number of rows a single listing may return.
type Limits struct {
	MaxObservations int
	MaxMedications  int
	MaxAppointments int
}

// effectiveLimit is the smaller positive value of the configured cap and
// the caller's limit; zero means unlimited.
func effectiveLimit(ceiling, requested int) int {
	if requested > 0 && (ceiling <= 0 || requested < ceiling) {
		return requested
	}
	return ceiling
}

type Service struct {
	repo      Repository
	timelines *timeline.Service
	limits    Limits
	logger    zerolog.Logger
}

func NewService(repo Repository, timelines *timeline.Service, limits Limits, logger zerolog.Logger) *Service {
	return &Service{repo: repo, timelines: timelines, limits: limits, logger: logger}
}

// Observations lists a patient's observations in range, optionally matching
// a code or description fragment.
func (s *Service) Observations(ctx context.Context, input string, f Filter) (*ObservationList, error) {
	id, err := s.timelines.ResolveIdentifier(ctx, input)
	if err != nil {
		return nil, err
	}

	f.Search = strings.TrimSpace(f.Search)
	limit := effectiveLimit(s.limits.MaxObservations, f.Limit)
	query := f
	if limit > 0 {
		query.Limit = limit + 1
	}

	rows, err := s.repo.ListObservations(ctx, id.PersonID, query)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}

	list := &ObservationList{Patient: id, Range: f.Range, Search: f.Search}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		list.Truncated = true
	}
	list.Observations = make([]Observation, 0, len(rows))
	for _, row := range rows {
		list.Observations = append(list.Observations, observationFromRow(row))
	}
	return list, nil
}

// ObservationStats summarises every observation of an already resolved
// patient.
func (s *Service) ObservationStats(ctx context.Context, id timeline.PatientIdentifier) (ObservationSummary, error) {
	row, err := s.repo.ObservationSummary(ctx, id.PersonID)
	if err != nil {
		return ObservationSummary{}, fmt.Errorf("observation summary: %w", err)
	}
	return observationSummaryFromRow(row), nil
}

// Medications lists medication orders matching the search, filtered and
// capped in the warehouse, then reconciled so each drug's latest order is
// available alongside the full list. Orders dated after the range are
// fetched too and kept as upcoming.
func (s *Service) Medications(ctx context.Context, input string, f Filter) (*MedicationList, error) {
	id, err := s.timelines.ResolveIdentifier(ctx, input)
	if err != nil {
		return nil, err
	}

	f.Search = strings.TrimSpace(f.Search)
	limit := effectiveLimit(s.limits.MaxMedications, f.Limit)
	query := Filter{Range: timeline.DateRange{From: f.Range.From}, Search: f.Search}
	if limit > 0 {
		query.Limit = limit + 1
	}
	rows, err := s.repo.ListMedications(ctx, id.PersonID, query)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}

	list := &MedicationList{Patient: id, Range: f.Range, Search: f.Search, Latest: []Medication{}}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		list.Truncated = true
		s.logger.Warn().Str("person_id", id.PersonID).Int("limit", limit).Msg("medication list truncated")
	}

	tl, warnings, err := timeline.Warnings(s.timelines.Reconcile(id, timeline.RecordTypeMedication, f.Range, rows))
	if err != nil {
		return nil, err
	}
	list.Warnings = warnings
	list.Medications = make([]Medication, 0, len(tl.Records))
	for _, r := range tl.Records {
		list.Medications = append(list.Medications, medicationFromRecord(r))
	}
	for _, r := range tl.CurrentSnapshot().Latest {
		list.Latest = append(list.Latest, medicationFromRecord(r))
	}
	return list, nil
}

// MedicationStats summarises every medication order of an already resolved
// patient.
func (s *Service) MedicationStats(ctx context.Context, id timeline.PatientIdentifier) (MedicationSummary, error) {
	row, err := s.repo.MedicationSummary(ctx, id.PersonID)
	if err != nil {
		return MedicationSummary{}, fmt.Errorf("medication summary: %w", err)
	}
	return medicationSummaryFromRow(row), nil
}

// Appointments builds the appointments view. Upcoming appointments are
// always included; past appointments follow rng. The month axis spans rng
// when it is bounded and the past appointments otherwise.
func (s *Service) Appointments(ctx context.Context, input string, rng timeline.DateRange) (*AppointmentsView, error) {
	id, err := s.timelines.ResolveIdentifier(ctx, input)
	if err != nil {
		return nil, err
	}
	tl, warnings, err := timeline.Warnings(s.timelines.BuildTimeline(ctx, id, timeline.RecordTypeAppointment, rng))
	if err != nil {
		return nil, err
	}
	snap := tl.CurrentSnapshot()

	view := &AppointmentsView{
		Patient:  id,
		Range:    rng,
		Warnings: warnings,
	}
	past := snap.Past
	if limit := s.limits.MaxAppointments; limit > 0 && len(past) > limit {
		past = past[:limit]
		view.Truncated = true
		s.logger.Warn().Str("person_id", id.PersonID).Int("limit", limit).Msg("appointment history truncated")
	}

	view.Upcoming = toAppointments(snap.Upcoming)
	view.Past = toAppointments(past)
	view.Months = timeline.MergeByMonthWithin(past, rng.From, rng.To)
	if view.Months == nil {
		view.Months = []timeline.MonthBucket{}
	}
	return view, nil
}

func toAppointments(records []timeline.Record) []Appointment {
	out := make([]Appointment, 0, len(records))
	for _, r := range records {
		out = append(out, appointmentFromRecord(r))
	}
	return out
}
