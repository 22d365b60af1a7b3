package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/olids/explorer/internal/domain/timeline"
)

type Service struct {
	repo      Repository
	timelines *timeline.Service
	logger    zerolog.Logger
}

func NewService(repo Repository, timelines *timeline.Service, logger zerolog.Logger) *Service {
	return &Service{repo: repo, timelines: timelines, logger: logger}
}

func (s *Service) Search(ctx context.Context, term string) ([]SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, timeline.ErrInvalidIdentifier
	}
	rows, err := s.repo.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, searchResultFromRow(row))
	}
	return results, nil
}

// GetDemographics resolves either identifier form and loads the current
// demographics row.
func (s *Service) GetDemographics(ctx context.Context, input string) (*Demographics, error) {
	id, err := s.timelines.ResolveIdentifier(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.DemographicsFor(ctx, id)
}

// DemographicsFor loads the demographics row of an already resolved patient.
func (s *Service) DemographicsFor(ctx context.Context, id timeline.PatientIdentifier) (*Demographics, error) {
	row, err := s.repo.GetDemographics(ctx, id.PersonID)
	if err != nil {
		return nil, fmt.Errorf("load demographics: %w", err)
	}
	if row == nil {
		return nil, &timeline.NotFoundError{Input: id.String()}
	}
	return &Demographics{Patient: id, Status: badgeFromRow(row), Attributes: row}, nil
}

// RegistrationHistory reconciles the practice registration periods of a
// patient, most recent first. Overlapping periods are reported as warnings.
func (s *Service) RegistrationHistory(ctx context.Context, input string, rng timeline.DateRange) (*RegistrationHistory, error) {
	id, err := s.timelines.ResolveIdentifier(ctx, input)
	if err != nil {
		return nil, err
	}
	tl, warnings, err := timeline.Warnings(s.timelines.BuildTimeline(ctx, id, timeline.RecordTypeRegistration, rng))
	if err != nil {
		return nil, err
	}

	hist := &RegistrationHistory{
		Patient:  id,
		Periods:  make([]RegistrationPeriod, 0, len(tl.Records)),
		Warnings: warnings,
	}
	for _, r := range tl.Records {
		hist.Periods = append(hist.Periods, registrationFromRecord(r))
	}
	if current := tl.CurrentSnapshot().Current; len(current) > 0 {
		p := registrationFromRecord(current[0])
		hist.Current = &p
	}
	return hist, nil
}
