package summary

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/olids/explorer/internal/domain/patient"
	"github.com/olids/explorer/internal/domain/records"
	"github.com/olids/explorer/internal/domain/timeline"
)

// PatientSummary is the header card of the patient view.
type PatientSummary struct {
	Patient      timeline.PatientIdentifier `json:"patient"`
	Demographics *patient.Demographics      `json:"demographics"`
	Observations records.ObservationSummary `json:"observations"`
	Medications  records.MedicationSummary  `json:"medications"`
	Earliest     *time.Time                 `json:"earliest_record,omitempty"`
	MostRecent   *time.Time                 `json:"most_recent_record,omitempty"`
}

type Service struct {
	timelines *timeline.Service
	patients  *patient.Service
	records   *records.Service
	logger    zerolog.Logger
}

func NewService(timelines *timeline.Service, patients *patient.Service, recs *records.Service, logger zerolog.Logger) *Service {
	return &Service{timelines: timelines, patients: patients, records: recs, logger: logger}
}

// Summarize resolves the patient once and loads demographics and both
// record summaries concurrently. The first failure cancels the others.
func (s *Service) Summarize(ctx context.Context, input string) (*PatientSummary, error) {
	id, err := s.timelines.ResolveIdentifier(ctx, input)
	if err != nil {
		return nil, err
	}

	sum := &PatientSummary{Patient: id}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.patients.DemographicsFor(gctx, id)
		sum.Demographics = d
		return err
	})
	g.Go(func() error {
		o, err := s.records.ObservationStats(gctx, id)
		sum.Observations = o
		return err
	})
	g.Go(func() error {
		m, err := s.records.MedicationStats(gctx, id)
		sum.Medications = m
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("person_id", id.PersonID).Msg("patient summary failed")
		return nil, err
	}

	sum.Earliest = earliest(sum.Observations.Earliest, sum.Medications.Earliest)
	sum.MostRecent = latest(sum.Observations.MostRecent, sum.Medications.MostRecent)
	return sum, nil
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil || a.Before(*b):
		return a
	default:
		return b
	}
}

func latest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil || a.After(*b):
		return a
	default:
		return b
	}
}
