// Package sandbox provides an in-memory warehouse for development and demos.
// A Dataset is loaded from a YAML fixture or generated synthetically and
// serves the same reads as the Postgres repositories.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/olids/explorer/internal/domain/records"
	"github.com/olids/explorer/internal/domain/timeline"
)

// Dataset holds fixture rows per warehouse relation. Column names match the
// Postgres mirror; medication rows carry the joined statement columns.
type Dataset struct {
	Patients      []timeline.Row `yaml:"patients"`
	Registrations []timeline.Row `yaml:"registrations"`
	Observations  []timeline.Row `yaml:"observations"`
	Medications   []timeline.Row `yaml:"medications"`
	Appointments  []timeline.Row `yaml:"appointments"`
	Problems      []timeline.Row `yaml:"problems"`
}

// Stats counts the rows of each relation.
type Stats struct {
	Patients      int `json:"patients"`
	Registrations int `json:"registrations"`
	Observations  int `json:"observations"`
	Medications   int `json:"medications"`
	Appointments  int `json:"appointments"`
	Problems      int `json:"problems"`
}

func (d *Dataset) Stats() Stats {
	return Stats{
		Patients:      len(d.Patients),
		Registrations: len(d.Registrations),
		Observations:  len(d.Observations),
		Medications:   len(d.Medications),
		Appointments:  len(d.Appointments),
		Problems:      len(d.Problems),
	}
}

// Load reads a YAML fixture file.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a YAML fixture and normalises its column names.
func Decode(r io.Reader) (*Dataset, error) {
	var d Dataset
	if err := yaml.NewDecoder(r).Decode(&d); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for _, rows := range d.tables() {
		for i := range *rows {
			(*rows)[i] = timeline.NormalizeRow((*rows)[i])
		}
	}
	for i, p := range d.Patients {
		if p.String("person_id") == "" {
			return nil, fmt.Errorf("fixture patient %d has no person_id", i)
		}
	}
	return &d, nil
}

// Encode writes the dataset as a YAML fixture.
func (d *Dataset) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return enc.Close()
}

func (d *Dataset) tables() []*[]timeline.Row {
	return []*[]timeline.Row{&d.Patients, &d.Registrations, &d.Observations, &d.Medications, &d.Appointments, &d.Problems}
}

// Store serves a Dataset through the timeline, patient and records
// repository interfaces. The dataset may be swapped at runtime.
type Store struct {
	mu      sync.RWMutex
	data    *Dataset
	maxRows int
}

// NewStore wraps d. maxRows caps point-event fetches like the Postgres
// source; zero means no cap.
func NewStore(d *Dataset, maxRows int) *Store {
	if d == nil {
		d = &Dataset{}
	}
	return &Store{data: d, maxRows: maxRows}
}

// Replace swaps the served dataset.
func (s *Store) Replace(d *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = d
}

// Dataset returns the served dataset.
func (s *Store) Dataset() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// matchPatient applies the identifier rule: numeric input matches either
// column, anything else matches person_id only.
func matchPatient(row timeline.Row, input string) bool {
	if row.String("person_id") == input {
		return true
	}
	want, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		return false
	}
	sk, ok := row.Int64("sk_patient_id")
	return ok && sk == want
}

func (s *Store) LookupPatients(ctx context.Context, input string) ([]timeline.PatientIdentifier, error) {
	rows, err := s.Search(ctx, input)
	if err != nil {
		return nil, err
	}
	out := make([]timeline.PatientIdentifier, 0, len(rows))
	for _, r := range rows {
		sk, _ := r.Int64("sk_patient_id")
		out = append(out, timeline.PatientIdentifier{PersonID: r.String("person_id"), SKPatientID: sk})
	}
	return out, nil
}

func (s *Store) Search(ctx context.Context, term string) ([]timeline.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := s.Dataset()
	var out []timeline.Row
	for _, p := range d.Patients {
		if matchPatient(p, term) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].String("person_id") < out[j].String("person_id")
	})
	return out, nil
}

func (s *Store) GetDemographics(ctx context.Context, personID string) (timeline.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range s.Dataset().Patients {
		if p.String("person_id") == personID {
			return p, nil
		}
	}
	return nil, nil
}

func (s *Store) FetchRecords(ctx context.Context, id timeline.PatientIdentifier, rt timeline.RecordType, rng timeline.DateRange) ([]timeline.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := s.Dataset()

	var rows []timeline.Row
	switch rt {
	case timeline.RecordTypeRegistration, timeline.RecordTypeDemographic:
		for _, r := range forPerson(d.Registrations, id.PersonID) {
			if intersects(r, rng) {
				rows = append(rows, r)
			}
		}
		sortBy(rows, "effective_start_date", false)
		return rows, nil
	case timeline.RecordTypeObservation:
		rows = inRange(forPerson(d.Observations, id.PersonID), "clinical_effective_date", rng)
		sortBy(rows, "clinical_effective_date", true)
	case timeline.RecordTypeMedication:
		rows = inRange(forPerson(d.Medications, id.PersonID), "clinical_effective_date", rng)
		sortBy(rows, "clinical_effective_date", true)
	case timeline.RecordTypeAppointment:
		rows = inRange(forPerson(d.Appointments, id.PersonID), "start_date", rng)
		sortBy(rows, "start_date", true)
	case timeline.RecordTypeProblem:
		for _, r := range forPerson(d.Problems, id.PersonID) {
			if r.Bool("is_on_register") {
				rows = append(rows, r)
			}
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("unsupported record type %q", rt)
	}
	if s.maxRows > 0 && len(rows) > s.maxRows {
		rows = rows[:s.maxRows]
	}
	return rows, nil
}

func (s *Store) ListObservations(ctx context.Context, personID string, f records.Filter) ([]timeline.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return searchRows(forPerson(s.Dataset().Observations, personID), f), nil
}

func (s *Store) ListMedications(ctx context.Context, personID string, f records.Filter) ([]timeline.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return searchRows(forPerson(s.Dataset().Medications, personID), f), nil
}

// searchRows mirrors the warehouse listing queries: range and concept search
// first, newest first, then the limit.
func searchRows(in []timeline.Row, f records.Filter) []timeline.Row {
	search := strings.ToLower(f.Search)
	var rows []timeline.Row
	for _, r := range inRange(in, "clinical_effective_date", f.Range) {
		if search != "" &&
			!strings.Contains(strings.ToLower(r.String("mapped_concept_code")), search) &&
			!strings.Contains(strings.ToLower(r.String("mapped_concept_display")), search) {
			continue
		}
		rows = append(rows, r)
	}
	sortBy(rows, "clinical_effective_date", true)
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows
}

func (s *Store) ObservationSummary(ctx context.Context, personID string) (timeline.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := forPerson(s.Dataset().Observations, personID)
	first, last := bounds(rows, "clinical_effective_date")
	return timeline.Row{"total": int64(len(rows)), "earliest": first, "most_recent": last}, nil
}

func (s *Store) MedicationSummary(ctx context.Context, personID string) (timeline.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := forPerson(s.Dataset().Medications, personID)
	active := make(map[string]struct{})
	for _, r := range rows {
		if sid := r.String("medication_statement_id"); sid != "" && r.Bool("is_active") {
			active[sid] = struct{}{}
		}
	}
	first, last := bounds(rows, "clinical_effective_date")
	return timeline.Row{
		"active":      int64(len(active)),
		"total":       int64(len(rows)),
		"earliest":    first,
		"most_recent": last,
	}, nil
}

func forPerson(rows []timeline.Row, personID string) []timeline.Row {
	var out []timeline.Row
	for _, r := range rows {
		if r.String("person_id") == personID {
			out = append(out, r)
		}
	}
	return out
}

// inRange keeps rows whose col falls inside rng. Rows with an unreadable
// date are kept so the reconciler can report them.
func inRange(rows []timeline.Row, col string, rng timeline.DateRange) []timeline.Row {
	var out []timeline.Row
	for _, r := range rows {
		t, ok, err := r.Time(col)
		if err != nil || !ok || rng.Contains(t) {
			out = append(out, r)
		}
	}
	return out
}

func intersects(r timeline.Row, rng timeline.DateRange) bool {
	from, ok, err := r.Time("effective_start_date")
	if err != nil || !ok {
		return true
	}
	return rng.Intersects(from, r.OptTime("effective_end_date"))
}

func sortBy(rows []timeline.Row, col string, desc bool) {
	key := func(r timeline.Row) time.Time {
		t, _, _ := r.Time(col)
		return t
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := key(rows[i]), key(rows[j])
		if desc {
			return a.After(b)
		}
		return a.Before(b)
	})
}

func bounds(rows []timeline.Row, col string) (first, last any) {
	var lo, hi *time.Time
	for _, r := range rows {
		t := r.OptTime(col)
		if t == nil {
			continue
		}
		if lo == nil || t.Before(*lo) {
			lo = t
		}
		if hi == nil || t.After(*hi) {
			hi = t
		}
	}
	if lo != nil {
		first = *lo
	}
	if hi != nil {
		last = *hi
	}
	return first, last
}
