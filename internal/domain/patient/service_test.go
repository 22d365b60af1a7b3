package patient

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/olids/explorer/internal/domain/timeline"
)

// -- Mock Repository --

type mockRepo struct {
	people        []timeline.Row
	registrations []timeline.Row
	err           error
}

func (m *mockRepo) matches(row timeline.Row, term string) bool {
	if row.String("person_id") == term {
		return true
	}
	sk, ok := row.Int64("sk_patient_id")
	return ok && strconv.FormatInt(sk, 10) == term
}

func (m *mockRepo) Search(_ context.Context, term string) ([]timeline.Row, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []timeline.Row
	for _, p := range m.people {
		if m.matches(p, term) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) GetDemographics(_ context.Context, personID string) (timeline.Row, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.people {
		if p.String("person_id") == personID {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) LookupPatients(ctx context.Context, input string) ([]timeline.PatientIdentifier, error) {
	rows, err := m.Search(ctx, input)
	if err != nil {
		return nil, err
	}
	var ids []timeline.PatientIdentifier
	for _, r := range rows {
		sk, _ := r.Int64("sk_patient_id")
		ids = append(ids, timeline.PatientIdentifier{PersonID: r.String("person_id"), SKPatientID: sk})
	}
	return ids, nil
}

func (m *mockRepo) FetchRecords(_ context.Context, _ timeline.PatientIdentifier, rt timeline.RecordType, _ timeline.DateRange) ([]timeline.Row, error) {
	if rt == timeline.RecordTypeRegistration {
		return m.registrations, nil
	}
	return nil, nil
}

func newTestService(repo *mockRepo) *Service {
	tl := timeline.NewService(repo, zerolog.Nop())
	tl.SetClock(func() time.Time { return time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC) })
	return NewService(repo, tl, zerolog.Nop())
}

func samplePeople() []timeline.Row {
	return []timeline.Row{
		{
			"person_id": "P-1", "sk_patient_id": int64(1001), "age": int64(67), "gender": "Female",
			"is_active": true, "is_deceased": false, "practice_name": "Holloway Health Centre",
			"pcn_name": "Islington Central", "ethnicity_subcategory": "White: British",
		},
		{
			"person_id": "P-2", "sk_patient_id": int64(1002), "age": int64(81), "gender": "Male",
			"is_active": false, "is_deceased": true,
		},
		{
			"person_id": "P-3", "sk_patient_id": int64(1003), "is_active": false, "is_deceased": false,
			"inactive_reason": "Left practice",
		},
	}
}

func TestNewStatusBadge(t *testing.T) {
	tests := []struct {
		name               string
		active, deceased   bool
		reason, wantCode   string
		wantLabel          string
	}{
		{"active", true, false, "", BadgeActive, "ACTIVE"},
		{"deceased wins", true, true, "", BadgeDeceased, "DECEASED"},
		{"inactive with reason", false, false, "Left practice", BadgeInactive, "INACTIVE - Left practice"},
		{"inactive", false, false, "", BadgeInactive, "INACTIVE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewStatusBadge(tt.active, tt.deceased, tt.reason)
			if b.Code != tt.wantCode || b.Label != tt.wantLabel {
				t.Errorf("got %+v, want %s/%s", b, tt.wantCode, tt.wantLabel)
			}
		})
	}
}

func TestService_Search(t *testing.T) {
	svc := newTestService(&mockRepo{people: samplePeople()})

	results, err := svc.Search(context.Background(), " 1001 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.PersonID != "P-1" || r.SKPatientID != 1001 {
		t.Errorf("unexpected identifiers %s/%d", r.PersonID, r.SKPatientID)
	}
	if r.Age == nil || *r.Age != 67 {
		t.Errorf("expected age 67, got %v", r.Age)
	}
	if r.Status.Code != BadgeActive {
		t.Errorf("expected ACTIVE badge, got %s", r.Status.Code)
	}
}

func TestService_Search_NoMatches(t *testing.T) {
	svc := newTestService(&mockRepo{people: samplePeople()})
	results, err := svc.Search(context.Background(), "P-404")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil results, got %v", results)
	}
}

func TestService_Search_Blank(t *testing.T) {
	svc := newTestService(&mockRepo{})
	if _, err := svc.Search(context.Background(), ""); !errors.Is(err, timeline.ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestService_Search_RepoError(t *testing.T) {
	boom := errors.New("warehouse down")
	svc := newTestService(&mockRepo{err: boom})
	if _, err := svc.Search(context.Background(), "P-1"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped repo error, got %v", err)
	}
}

func TestService_GetDemographics(t *testing.T) {
	svc := newTestService(&mockRepo{people: samplePeople()})

	d, err := svc.GetDemographics(context.Background(), "1002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Patient.PersonID != "P-2" {
		t.Errorf("expected P-2, got %s", d.Patient.PersonID)
	}
	if d.Status.Code != BadgeDeceased {
		t.Errorf("expected DECEASED badge, got %s", d.Status.Code)
	}
	if d.Attributes.String("gender") != "Male" {
		t.Errorf("expected attributes to carry the full row")
	}
}

func TestService_GetDemographics_NotFound(t *testing.T) {
	svc := newTestService(&mockRepo{people: samplePeople()})
	_, err := svc.GetDemographics(context.Background(), "P-404")
	if !errors.Is(err, timeline.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_RegistrationHistory(t *testing.T) {
	svc := newTestService(&mockRepo{
		people: samplePeople(),
		registrations: []timeline.Row{
			{"effective_start_date": "2020-01-01", "effective_end_date": "2022-06-01", "practice_code": "F83001", "period_sequence": int64(1)},
			{"effective_start_date": "2022-06-01", "effective_end_date": nil, "practice_code": "F83002", "period_sequence": int64(2), "is_active": true},
		},
	})

	hist, err := svc.RegistrationHistory(context.Background(), "P-1", timeline.DateRange{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hist.Periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(hist.Periods))
	}
	if hist.Periods[0].PracticeCode != "F83002" || hist.Periods[0].Status != timeline.StatusCurrent {
		t.Errorf("expected current F83002 first, got %+v", hist.Periods[0])
	}
	if hist.Periods[1].Status != timeline.StatusHistorical {
		t.Errorf("expected historical second period, got %s", hist.Periods[1].Status)
	}
	if hist.Current == nil || hist.Current.PracticeCode != "F83002" {
		t.Errorf("expected current registration F83002, got %+v", hist.Current)
	}
	if len(hist.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", hist.Warnings)
	}
}

func TestService_RegistrationHistory_Overlap(t *testing.T) {
	svc := newTestService(&mockRepo{
		people: samplePeople(),
		registrations: []timeline.Row{
			{"effective_start_date": "2019-01-01", "effective_end_date": nil, "practice_code": "OLD"},
			{"effective_start_date": "2023-01-01", "effective_end_date": nil, "practice_code": "NEW"},
		},
	})

	hist, err := svc.RegistrationHistory(context.Background(), "P-1", timeline.DateRange{})
	if err != nil {
		t.Fatalf("integrity problems should not fail the request: %v", err)
	}
	if len(hist.Warnings) == 0 {
		t.Error("expected warnings for overlapping periods")
	}
	if hist.Current == nil || hist.Current.PracticeCode != "NEW" {
		t.Errorf("expected latest period to be current, got %+v", hist.Current)
	}
}
