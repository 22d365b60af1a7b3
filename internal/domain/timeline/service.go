package timeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Service reconciles warehouse record streams into per-patient timelines.
// It holds no state between calls; every timeline is built from scratch.
type Service struct {
	source RecordSource
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(source RecordSource, logger zerolog.Logger) *Service {
	return &Service{source: source, logger: logger, now: time.Now}
}

// SetClock replaces the time source used to split upcoming from past events.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

// ResolveIdentifier maps either identifier form onto exactly one patient.
func (s *Service) ResolveIdentifier(ctx context.Context, input string) (PatientIdentifier, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return PatientIdentifier{}, ErrInvalidIdentifier
	}

	matches, err := s.source.LookupPatients(ctx, input)
	if err != nil {
		return PatientIdentifier{}, fmt.Errorf("lookup patient: %w", err)
	}

	seen := make(map[PatientIdentifier]struct{}, len(matches))
	var distinct []PatientIdentifier
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		distinct = append(distinct, m)
	}

	switch len(distinct) {
	case 0:
		return PatientIdentifier{}, &NotFoundError{Input: input}
	case 1:
		return distinct[0], nil
	default:
		s.logger.Error().Str("input", input).Int("matches", len(distinct)).Msg("identifier matches multiple patients")
		return PatientIdentifier{}, &AmbiguousIdentifierError{Input: input, Matches: distinct}
	}
}

// BuildTimeline fetches, validates and orders one record stream. When the
// rows break the one-active-record-per-key invariant the best-effort
// timeline is returned together with a *DataIntegrityError.
func (s *Service) BuildTimeline(ctx context.Context, id PatientIdentifier, rt RecordType, rng DateRange) (*Timeline, error) {
	if _, ok := recordSpecs[rt]; !ok {
		return nil, fmt.Errorf("unknown record type %q", rt)
	}
	now := s.now()

	fetchRange := rng
	if !rt.IsSCD() {
		fetchRange = rng.openEnded()
	}
	rows, err := s.source.FetchRecords(ctx, id, rt, fetchRange)
	if err != nil {
		return nil, fmt.Errorf("fetch %s records: %w", rt, err)
	}
	return s.reconcileRows(id, rt, rng, rows, now)
}

// Reconcile builds a timeline from rows the caller already fetched, for
// listings that filter in the warehouse before reconciling. Row order is
// taken as arrival order; errors follow BuildTimeline.
func (s *Service) Reconcile(id PatientIdentifier, rt RecordType, rng DateRange, rows []Row) (*Timeline, error) {
	if _, ok := recordSpecs[rt]; !ok {
		return nil, fmt.Errorf("unknown record type %q", rt)
	}
	return s.reconcileRows(id, rt, rng, rows, s.now())
}

func (s *Service) reconcileRows(id PatientIdentifier, rt RecordType, rng DateRange, rows []Row, now time.Time) (*Timeline, error) {
	records, issues := recordsFromRows(rt, rows)
	records = filterRange(rt, records, rng, now)
	records, sweepIssues := reconcile(rt, records, now)
	issues = append(issues, sweepIssues...)

	tl := &Timeline{
		Patient:    id,
		RecordType: rt,
		Range:      rng,
		BuiltAt:    now,
		Records:    records,
		Issues:     issues,
	}
	if len(issues) > 0 {
		s.logger.Warn().
			Str("person_id", id.PersonID).
			Str("record_type", string(rt)).
			Int("issues", len(issues)).
			Msg("timeline has integrity issues")
		return tl, &DataIntegrityError{Patient: id, RecordType: rt, Issues: issues}
	}
	return tl, nil
}

// FetchProblems loads the long-term conditions on the patient's registers.
// It is a separate call so callers only pay for it when the section is
// opened.
func (s *Service) FetchProblems(ctx context.Context, id PatientIdentifier) ([]Record, error) {
	tl, err := s.BuildTimeline(ctx, id, RecordTypeProblem, DateRange{})
	if tl == nil {
		return nil, err
	}
	problems := tl.Records
	sort.SliceStable(problems, func(a, b int) bool {
		pa, pb := problems[a].Payload, problems[b].Payload
		if qa, qb := pa.Bool("is_qof"), pb.Bool("is_qof"); qa != qb {
			return qa
		}
		if da, db := pa.String("clinical_domain"), pb.String("clinical_domain"); da != db {
			return da < db
		}
		return pa.String("condition_name") < pb.String("condition_name")
	})
	return problems, err
}
