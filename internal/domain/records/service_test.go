package records

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/olids/explorer/internal/domain/timeline"
)

var (
	testNow     = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	testPatient = timeline.PatientIdentifier{PersonID: "P-1", SKPatientID: 1001}
)

// -- Mock Repository and RecordSource --

type mockRepo struct {
	observations []timeline.Row
	medications  []timeline.Row
	obsSummary   timeline.Row
	medSummary   timeline.Row
	records      map[timeline.RecordType][]timeline.Row
	err          error
	lastFilter   Filter
}

func (m *mockRepo) ListObservations(_ context.Context, _ string, f Filter) ([]timeline.Row, error) {
	m.lastFilter = f
	if m.err != nil {
		return nil, m.err
	}
	rows := m.observations
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, nil
}

func (m *mockRepo) ListMedications(_ context.Context, _ string, f Filter) ([]timeline.Row, error) {
	m.lastFilter = f
	if m.err != nil {
		return nil, m.err
	}
	search := strings.ToLower(f.Search)
	var rows []timeline.Row
	for _, r := range m.medications {
		if search == "" ||
			strings.Contains(strings.ToLower(r.String("mapped_concept_code")), search) ||
			strings.Contains(strings.ToLower(r.String("mapped_concept_display")), search) {
			rows = append(rows, r)
		}
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, nil
}

func (m *mockRepo) ObservationSummary(context.Context, string) (timeline.Row, error) {
	return m.obsSummary, m.err
}

func (m *mockRepo) MedicationSummary(context.Context, string) (timeline.Row, error) {
	return m.medSummary, m.err
}

func (m *mockRepo) LookupPatients(_ context.Context, input string) ([]timeline.PatientIdentifier, error) {
	if input == testPatient.PersonID || input == "1001" {
		return []timeline.PatientIdentifier{testPatient}, nil
	}
	return nil, nil
}

func (m *mockRepo) FetchRecords(_ context.Context, _ timeline.PatientIdentifier, rt timeline.RecordType, _ timeline.DateRange) ([]timeline.Row, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records[rt], nil
}

func newTestService(repo *mockRepo, limits Limits) *Service {
	tl := timeline.NewService(repo, zerolog.Nop())
	tl.SetClock(func() time.Time { return testNow })
	return NewService(repo, tl, limits, zerolog.Nop())
}

func mustRange(t *testing.T, opt string) timeline.DateRange {
	t.Helper()
	rng, err := timeline.ParseRange(opt, testNow)
	if err != nil {
		t.Fatalf("ParseRange(%q): %v", opt, err)
	}
	return rng
}

func TestService_Observations(t *testing.T) {
	repo := &mockRepo{observations: []timeline.Row{
		{"id": "o1", "clinical_effective_date": "2024-05-01", "mapped_concept_code": "1000731000000107",
			"mapped_concept_display": "Serum cholesterol", "result_value": 5.2, "result_unit_display": "mmol/L"},
		{"id": "o2", "clinical_effective_date": "2024-04-20", "mapped_concept_code": "271649006",
			"mapped_concept_display": "Systolic blood pressure", "result_value": int64(128), "result_unit_display": "mm[Hg]"},
	}}
	svc := newTestService(repo, Limits{MaxObservations: 1000})

	list, err := svc.Observations(context.Background(), "P-1", Filter{Range: mustRange(t, "30d"), Search: "  chol "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastFilter.Search != "chol" {
		t.Errorf("expected trimmed search, got %q", repo.lastFilter.Search)
	}
	if repo.lastFilter.Limit != 1001 {
		t.Errorf("expected cap plus one probe row, got %d", repo.lastFilter.Limit)
	}
	if len(list.Observations) != 2 || list.Truncated {
		t.Fatalf("expected 2 untruncated observations, got %d (truncated=%v)", len(list.Observations), list.Truncated)
	}
	if list.Observations[0].Value != "5.2 mmol/L" {
		t.Errorf("unexpected value %q", list.Observations[0].Value)
	}
	if list.Observations[1].DateDisplay != "20 Apr 2024" {
		t.Errorf("unexpected date display %q", list.Observations[1].DateDisplay)
	}
}

func TestService_Observations_Truncated(t *testing.T) {
	repo := &mockRepo{observations: []timeline.Row{
		{"id": "o1", "clinical_effective_date": "2024-05-03"},
		{"id": "o2", "clinical_effective_date": "2024-05-02"},
		{"id": "o3", "clinical_effective_date": "2024-05-01"},
	}}
	svc := newTestService(repo, Limits{MaxObservations: 2})

	list, err := svc.Observations(context.Background(), "P-1", Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Observations) != 2 || !list.Truncated {
		t.Errorf("expected 2 truncated observations, got %d (truncated=%v)", len(list.Observations), list.Truncated)
	}
	if list.Observations[0].Value != "N/A" || list.Observations[0].ConceptDisplay != "N/A" {
		t.Errorf("expected N/A placeholders, got %+v", list.Observations[0])
	}
}

func TestService_Observations_CallerLimitBelowCap(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, Limits{MaxObservations: 1000})
	if _, err := svc.Observations(context.Background(), "P-1", Filter{Limit: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastFilter.Limit != 11 {
		t.Errorf("expected limit 11, got %d", repo.lastFilter.Limit)
	}
}

func TestService_Observations_NotFound(t *testing.T) {
	svc := newTestService(&mockRepo{}, Limits{})
	if _, err := svc.Observations(context.Background(), "P-404", Filter{}); !errors.Is(err, timeline.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Stats(t *testing.T) {
	repo := &mockRepo{
		obsSummary: timeline.Row{"total": int64(42), "earliest": "2010-02-01", "most_recent": "2024-05-01"},
		medSummary: timeline.Row{"active": int64(3), "total": int64(57), "earliest": "2015-06-10", "most_recent": nil},
	}
	svc := newTestService(repo, Limits{})

	obs, err := svc.ObservationStats(context.Background(), testPatient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Total != 42 || obs.Earliest == nil || obs.Earliest.Year() != 2010 {
		t.Errorf("unexpected observation summary %+v", obs)
	}

	med, err := svc.MedicationStats(context.Background(), testPatient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if med.Active != 3 || med.Total != 57 || med.MostRecent != nil {
		t.Errorf("unexpected medication summary %+v", med)
	}
}

func TestService_Stats_Error(t *testing.T) {
	boom := errors.New("warehouse down")
	svc := newTestService(&mockRepo{err: boom}, Limits{})
	if _, err := svc.MedicationStats(context.Background(), testPatient); !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func medicationRows() []timeline.Row {
	return []timeline.Row{
		{"id": "m2", "clinical_effective_date": "2024-03-01", "mapped_concept_code": "A",
			"mapped_concept_display": "Amlodipine 5mg tablets", "statement_issue_method": "Repeat"},
		{"id": "m1", "clinical_effective_date": "2024-05-01", "mapped_concept_code": "A",
			"mapped_concept_display": "Amlodipine 5mg tablets", "issue_method_description": "Acute",
			"quantity_value": 28.0, "quantity_unit": "tablet", "duration_days": int64(28), "is_active": true},
		{"id": "m3", "clinical_effective_date": "2024-04-01", "mapped_concept_code": "B",
			"mapped_concept_display": "Metformin 500mg tablets"},
	}
}

func TestService_Medications(t *testing.T) {
	repo := &mockRepo{medications: medicationRows()}
	svc := newTestService(repo, Limits{})

	list, err := svc.Medications(context.Background(), "1001", Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Medications) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(list.Medications))
	}
	ids := []string{list.Medications[0].ID, list.Medications[1].ID, list.Medications[2].ID}
	if ids[0] != "m1" || ids[1] != "m3" || ids[2] != "m2" {
		t.Errorf("expected most recent first, got %v", ids)
	}

	m1 := list.Medications[0]
	if m1.Type != "Acute" || m1.Quantity != "28 tablet" || m1.Duration != "28 days" || !m1.IsActive {
		t.Errorf("unexpected m1 %+v", m1)
	}
	if m1.Status != timeline.StatusCurrent {
		t.Errorf("expected m1 current, got %s", m1.Status)
	}
	m2 := list.Medications[2]
	if m2.Type != "Repeat" || m2.Dose != "N/A" || m2.Duration != "N/A" {
		t.Errorf("expected statement issue method fallback, got %+v", m2)
	}
	if len(list.Latest) != 2 {
		t.Errorf("expected latest order for 2 drugs, got %d", len(list.Latest))
	}
}

func TestService_Medications_Search(t *testing.T) {
	repo := &mockRepo{medications: medicationRows()}
	svc := newTestService(repo, Limits{})

	list, err := svc.Medications(context.Background(), "P-1", Filter{Search: "METF"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Medications) != 1 || list.Medications[0].ID != "m3" {
		t.Errorf("expected only metformin, got %+v", list.Medications)
	}
	if len(list.Latest) != 1 {
		t.Errorf("expected 1 latest entry, got %d", len(list.Latest))
	}
}

func TestService_Medications_SearchBeforeCap(t *testing.T) {
	repo := &mockRepo{medications: []timeline.Row{
		{"id": "m3", "clinical_effective_date": "2024-02-01", "mapped_concept_code": "ASP", "mapped_concept_display": "Aspirin 75mg"},
		{"id": "m2", "clinical_effective_date": "2023-02-01", "mapped_concept_code": "ASP", "mapped_concept_display": "Aspirin 75mg"},
		{"id": "m1", "clinical_effective_date": "2020-02-01", "mapped_concept_code": "WAR", "mapped_concept_display": "Warfarin 1mg"},
	}}
	svc := newTestService(repo, Limits{MaxMedications: 2})

	list, err := svc.Medications(context.Background(), "P-1", Filter{Search: " warfarin "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastFilter.Search != "warfarin" || repo.lastFilter.Limit != 3 {
		t.Errorf("expected search and cap pushed to the repository, got %+v", repo.lastFilter)
	}
	if len(list.Medications) != 1 || list.Medications[0].ID != "m1" || list.Truncated {
		t.Errorf("expected the older warfarin order, got %+v (truncated=%v)", list.Medications, list.Truncated)
	}
}

func TestService_Medications_Truncated(t *testing.T) {
	repo := &mockRepo{medications: medicationRows()}
	svc := newTestService(repo, Limits{MaxMedications: 2})

	list, err := svc.Medications(context.Background(), "P-1", Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !list.Truncated || len(list.Medications) != 2 {
		t.Errorf("expected 2 truncated orders, got %d (truncated=%v)", len(list.Medications), list.Truncated)
	}
}

func TestService_Medications_CallerLimitAndOpenUpperBound(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, Limits{MaxMedications: 1000})
	rng := mustRange(t, "30d")

	if _, err := svc.Medications(context.Background(), "P-1", Filter{Range: rng, Limit: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastFilter.Limit != 6 {
		t.Errorf("expected limit 6, got %d", repo.lastFilter.Limit)
	}
	if repo.lastFilter.Range.To != nil || repo.lastFilter.Range.From == nil || !repo.lastFilter.Range.From.Equal(*rng.From) {
		t.Errorf("expected lower bound only, got %+v", repo.lastFilter.Range)
	}
}

func appointmentRows() []timeline.Row {
	return []timeline.Row{
		{"id": "a1", "start_date": "2024-06-01T09:30:00Z", "appointment_status": "booked", "contact_mode": "face-to-face",
			"national_slot_category_name": "General Consultation Routine", "planned_duration": int64(10),
			"practitioner_title": "Dr", "practitioner_first_name": "Amara", "practitioner_last_name": "Okafor"},
		{"id": "a2", "start_date": "2024-04-10T14:00:00Z", "appointment_status": "finished", "contact_mode": "telephone"},
		{"id": "a3", "start_date": "2024-03-05T08:15:00Z", "appointment_status": "cancelled",
			"national_slot_category_name": "Planned Clinics"},
		{"id": "a4", "start_date": "2023-01-01T10:00:00Z", "appointment_status": "finished"},
	}
}

func TestService_Appointments(t *testing.T) {
	repo := &mockRepo{records: map[timeline.RecordType][]timeline.Row{
		timeline.RecordTypeAppointment: appointmentRows(),
	}}
	svc := newTestService(repo, Limits{MaxAppointments: 10000})

	view, err := svc.Appointments(context.Background(), "P-1", mustRange(t, "90d"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Upcoming) != 1 || view.Upcoming[0].ID != "a1" {
		t.Fatalf("expected a1 upcoming, got %+v", view.Upcoming)
	}
	up := view.Upcoming[0]
	if up.Status != "Booked" || up.ContactMode != "Face To Face" || up.Practitioner != "Dr Amara Okafor" || up.Duration != "10 min" {
		t.Errorf("unexpected upcoming appointment %+v", up)
	}
	if up.StartDisplay != "01 Jun 2024 09:30" {
		t.Errorf("unexpected start display %q", up.StartDisplay)
	}

	if len(view.Past) != 2 || view.Past[0].ID != "a2" || view.Past[1].ID != "a3" {
		t.Fatalf("expected a2, a3 in range, got %+v", view.Past)
	}
	if view.Past[0].SlotCategory != "Not Specified" || view.Past[0].Practitioner != "N/A" {
		t.Errorf("expected placeholders, got %+v", view.Past[0])
	}

	// 90 days back from 15 May 2024 starts on 15 Feb.
	labels := make([]string, 0, len(view.Months))
	for _, m := range view.Months {
		labels = append(labels, m.Label)
	}
	want := []string{"2024-Feb", "2024-Mar", "2024-Apr", "2024-May"}
	if len(labels) != len(want) {
		t.Fatalf("expected months %v, got %v", want, labels)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("month %d: expected %s, got %s", i, want[i], labels[i])
		}
	}
	if view.Months[0].Count != 0 || view.Months[0].ByStatus["Finished"] != 0 {
		t.Errorf("expected zero-filled February, got %+v", view.Months[0])
	}
	if view.Months[1].ByStatus["Cancelled"] != 1 || view.Months[2].ByCategory["Not Specified"] != 1 {
		t.Errorf("unexpected breakdowns %+v %+v", view.Months[1], view.Months[2])
	}
}

func TestService_Appointments_AllTimeTruncated(t *testing.T) {
	repo := &mockRepo{records: map[timeline.RecordType][]timeline.Row{
		timeline.RecordTypeAppointment: appointmentRows(),
	}}
	svc := newTestService(repo, Limits{MaxAppointments: 2})

	view, err := svc.Appointments(context.Background(), "P-1", timeline.DateRange{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !view.Truncated || len(view.Past) != 2 {
		t.Errorf("expected 2 truncated past appointments, got %d (truncated=%v)", len(view.Past), view.Truncated)
	}
	if len(view.Months) != 2 || view.Months[0].Label != "2024-Mar" {
		t.Errorf("expected month axis from the kept past appointments, got %+v", view.Months)
	}
}

func TestService_Appointments_Empty(t *testing.T) {
	svc := newTestService(&mockRepo{}, Limits{})
	view, err := svc.Appointments(context.Background(), "P-1", timeline.DateRange{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Upcoming == nil || view.Past == nil || view.Months == nil {
		t.Error("expected empty, non-nil slices for JSON")
	}
}
