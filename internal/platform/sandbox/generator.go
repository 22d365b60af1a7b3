package sandbox

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/olids/explorer/internal/domain/timeline"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and shape of generated synthetic data.
type SeedConfig struct {
	PatientCount            int   `json:"patientCount" yaml:"patient_count"`
	RegistrationsPerPatient int   `json:"registrationsPerPatient" yaml:"registrations_per_patient"`
	ObservationsPerPatient  int   `json:"observationsPerPatient" yaml:"observations_per_patient"`
	MedicationsPerPatient   int   `json:"medicationsPerPatient" yaml:"medications_per_patient"`
	AppointmentsPerPatient  int   `json:"appointmentsPerPatient" yaml:"appointments_per_patient"`
	ProblemsPerPatient      int   `json:"problemsPerPatient" yaml:"problems_per_patient"`
	HistoryYears            int   `json:"historyYears" yaml:"history_years"`
	Seed                    int64 `json:"seed" yaml:"seed"`
}

// DefaultSeedConfig returns a SeedConfig sized for a local demo.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount:            25,
		RegistrationsPerPatient: 3,
		ObservationsPerPatient:  40,
		MedicationsPerPatient:   15,
		AppointmentsPerPatient:  20,
		ProblemsPerPatient:      2,
		HistoryYears:            5,
	}
}

// withDefaults fills zero fields from DefaultSeedConfig.
func (c SeedConfig) withDefaults() SeedConfig {
	def := DefaultSeedConfig()
	if c.PatientCount <= 0 {
		c.PatientCount = def.PatientCount
	}
	if c.RegistrationsPerPatient <= 0 {
		c.RegistrationsPerPatient = def.RegistrationsPerPatient
	}
	if c.ObservationsPerPatient < 0 {
		c.ObservationsPerPatient = 0
	}
	if c.MedicationsPerPatient < 0 {
		c.MedicationsPerPatient = 0
	}
	if c.AppointmentsPerPatient < 0 {
		c.AppointmentsPerPatient = 0
	}
	if c.ProblemsPerPatient < 0 {
		c.ProblemsPerPatient = 0
	}
	if c.HistoryYears <= 0 {
		c.HistoryYears = def.HistoryYears
	}
	return c
}

// ---------------------------------------------------------------------------
// Code pools
// ---------------------------------------------------------------------------

type codeEntry struct {
	Code    string
	Display string
}

type observationDef struct {
	Code    string
	Display string
	Unit    string
	Low     float64
	High    float64
}

type medicationDef struct {
	Code    string
	Display string
	Dose    string
	Unit    string
	BNF     string
}

type problemDef struct {
	Code   string
	Name   string
	Domain string
	QOF    bool
}

type practice struct {
	Code    string
	Name    string
	PCN     string
	Borough string
}

var (
	practices = []practice{
		{"F83001", "Holloway Health Centre", "Islington Central PCN", "Islington"},
		{"F83004", "Archway Medical Practice", "Islington North PCN", "Islington"},
		{"F84003", "Mile End Surgery", "Tower Hamlets East PCN", "Tower Hamlets"},
		{"F85002", "Stamford Hill Group Practice", "Hackney North PCN", "Hackney"},
		{"F86010", "Camden Road Surgery", "Camden South PCN", "Camden"},
		{"F82012", "Kentish Town Health Centre", "Camden North PCN", "Camden"},
	}

	ethnicities = []codeEntry{
		{"White", "White: British"},
		{"White", "White: Irish"},
		{"Asian or Asian British", "Asian or Asian British: Bangladeshi"},
		{"Asian or Asian British", "Asian or Asian British: Indian"},
		{"Black or Black British", "Black or Black British: African"},
		{"Black or Black British", "Black or Black British: Caribbean"},
		{"Mixed", "Mixed: White and Black Caribbean"},
		{"Other", "Other: Any other ethnic group"},
	}

	languages = []string{"English", "English", "English", "Bengali", "Turkish", "Somali", "Polish"}

	inactiveReasons = []string{"Left practice", "Moved out of area", "Embarkation", "Registration ended"}

	observationDefs = []observationDef{
		{"271649006", "Systolic blood pressure", "mm[Hg]", 95, 175},
		{"271650006", "Diastolic blood pressure", "mm[Hg]", 55, 105},
		{"27113001", "Body weight", "kg", 45, 130},
		{"60621009", "Body mass index", "kg/m2", 17, 42},
		{"1000731000000107", "Serum cholesterol level", "mmol/L", 3, 8},
		{"1003671000000109", "Haemoglobin A1c level", "mmol/mol", 30, 95},
		{"1011481000000105", "eGFR using creatinine (CKD-EPI)", "mL/min/1.73m2", 25, 120},
		{"364075005", "Heart rate", "/min", 50, 110},
	}

	textObservations = []codeEntry{
		{"77176002", "Smoker"},
		{"8517006", "Ex-smoker"},
		{"266919005", "Never smoked tobacco"},
		{"228273003", "Finding relating to alcohol drinking behaviour"},
	}

	medicationDefs = []medicationDef{
		{"322236009", "Metformin 500mg tablets", "One tablet twice a day", "tablet", "0601022B0"},
		{"319283006", "Amlodipine 5mg tablets", "One tablet once a day", "tablet", "0206020A0"},
		{"320000009", "Atorvastatin 20mg tablets", "One tablet at night", "tablet", "0212000B0"},
		{"318420003", "Ramipril 5mg capsules", "One capsule once a day", "capsule", "0205051R0"},
		{"317972000", "Omeprazole 20mg gastro-resistant capsules", "One capsule once a day", "capsule", "0103050P0"},
		{"322280009", "Salbutamol 100micrograms/dose inhaler", "Two puffs when required", "dose", "0301011R0"},
		{"321196004", "Sertraline 50mg tablets", "One tablet once a day", "tablet", "0403030Q0"},
		{"322503008", "Levothyroxine sodium 50microgram tablets", "One tablet each morning", "tablet", "0602010V0"},
	}

	issueMethods = []string{"Repeat", "Acute", "Repeat dispensing"}

	appointmentStatuses = []string{"finished", "finished", "finished", "did-not-attend", "cancelled", "arrived"}

	contactModes = []string{"face-to-face", "telephone", "video", "home-visit", ""}

	slotCategories = []string{
		"General Consultation Routine",
		"General Consultation Acute",
		"Planned Clinics",
		"Clinical Triage",
		"Structured Medication Review",
		"",
	}

	practitioners = [][3]string{
		{"Dr", "Amara", "Okafor"},
		{"Dr", "Tomasz", "Nowak"},
		{"Nurse", "Priya", "Desai"},
		{"Dr", "Helen", "Murphy"},
		{"", "Kwame", "Mensah"},
	}

	problemDefs = []problemDef{
		{"DM", "Diabetes mellitus", "Cardiovascular and metabolic", true},
		{"HYP", "Hypertension", "Cardiovascular and metabolic", true},
		{"AST", "Asthma", "Respiratory", true},
		{"COPD", "Chronic obstructive pulmonary disease", "Respiratory", true},
		{"CKD", "Chronic kidney disease", "Renal", true},
		{"DEP", "Depression", "Mental health", true},
		{"OST", "Osteoporosis", "Musculoskeletal", false},
		{"HF", "Heart failure", "Cardiovascular and metabolic", true},
	}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic synthetic warehouse rows.
type DataGenerator struct {
	rng     *rand.Rand
	now     time.Time
	counter uint64
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen. Generated history ends around now, with a
// few appointments booked after it.
func NewDataGenerator(seed int64, now time.Time) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
		now: now.UTC(),
	}
}

func (g *DataGenerator) nextID(prefix string) string {
	g.counter++
	return fmt.Sprintf("%s-%08x-%04x", prefix, g.rng.Uint32(), g.counter)
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// timeBetween returns a time uniformly between from and to, truncated to the
// minute.
func (g *DataGenerator) timeBetween(from, to time.Time) time.Time {
	span := to.Sub(from)
	if span <= 0 {
		return from
	}
	return from.Add(time.Duration(g.rng.Int63n(int64(span)))).Truncate(time.Minute)
}

func (g *DataGenerator) day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Patient is the generated output for one person.
type Patient struct {
	Demographics  timeline.Row
	Registrations []timeline.Row
	Observations  []timeline.Row
	Medications   []timeline.Row
	Appointments  []timeline.Row
	Problems      []timeline.Row
}

// GeneratePatient produces one person with a consistent registration
// history: periods are contiguous and only the last one may be open.
func (g *DataGenerator) GeneratePatient(skPatientID int64, cfg SeedConfig) Patient {
	cfg = cfg.withDefaults()
	personID := g.nextID("P")
	historyStart := g.day(g.now.AddDate(-cfg.HistoryYears, 0, 0))

	age := int64(18 + g.rng.Intn(75))
	gender := "Female"
	if g.rng.Intn(2) == 0 {
		gender = "Male"
	}
	eth := ethnicities[g.rng.Intn(len(ethnicities))]
	lang := g.pick(languages)
	deceased := g.rng.Intn(25) == 0
	active := !deceased && g.rng.Intn(8) != 0

	// Registration periods split the history at random points.
	n := cfg.RegistrationsPerPatient
	cuts := make([]time.Time, 0, n+1)
	cuts = append(cuts, historyStart)
	for i := 1; i < n; i++ {
		lo := cuts[len(cuts)-1].AddDate(0, 1, 0)
		hi := historyStart.Add(g.now.Sub(historyStart) / time.Duration(n+1) * time.Duration(i+1))
		cuts = append(cuts, g.day(g.timeBetween(lo, hi)))
	}

	p := Patient{}
	var current practice
	for i, start := range cuts {
		pr := practices[g.rng.Intn(len(practices))]
		current = pr
		row := timeline.Row{
			"person_id":               personID,
			"sk_patient_id":           skPatientID,
			"effective_start_date":    start,
			"effective_end_date":      nil,
			"is_current":              false,
			"period_sequence":         int64(i + 1),
			"is_active":               false,
			"practice_code":           pr.Code,
			"practice_name":           pr.Name,
			"pcn_name":                pr.PCN,
			"registration_start_date": start,
			"registration_end_date":   nil,
			"ethnicity_category":      eth.Code,
			"ethnicity_subcategory":   eth.Display,
			"borough_registered":      pr.Borough,
			"borough_resident":        pr.Borough,
			"local_authority_name":    pr.Borough,
			"age":                     age - int64(g.now.Year()-start.Year()),
			"gender":                  gender,
			"main_language":           lang,
			"interpreter_needed":      lang != "English" && g.rng.Intn(3) == 0,
			"is_deceased":             false,
		}
		if i+1 < len(cuts) {
			row["effective_end_date"] = cuts[i+1]
			row["registration_end_date"] = cuts[i+1]
		} else if active {
			row["is_current"] = true
			row["is_active"] = true
		} else {
			end := g.day(g.timeBetween(start, g.now))
			row["effective_end_date"] = end
			row["registration_end_date"] = end
			row["is_deceased"] = deceased
		}
		p.Registrations = append(p.Registrations, row)
	}

	reason := ""
	if !active && !deceased {
		reason = g.pick(inactiveReasons)
	}
	p.Demographics = timeline.Row{
		"person_id":             personID,
		"sk_patient_id":         skPatientID,
		"age":                   age,
		"gender":                gender,
		"is_active":             active,
		"is_deceased":           deceased,
		"inactive_reason":       reason,
		"practice_code":         current.Code,
		"practice_name":         current.Name,
		"pcn_name":              current.PCN,
		"ethnicity_category":    eth.Code,
		"ethnicity_subcategory": eth.Display,
		"main_language":         lang,
		"interpreter_needed":    p.Registrations[len(p.Registrations)-1]["interpreter_needed"],
		"borough_resident":      current.Borough,
		"local_authority_name":  current.Borough,
	}

	for i := 0; i < cfg.ObservationsPerPatient; i++ {
		p.Observations = append(p.Observations, g.GenerateObservation(personID, historyStart))
	}
	statements := make(map[string]string)
	for i := 0; i < cfg.MedicationsPerPatient; i++ {
		p.Medications = append(p.Medications, g.GenerateMedicationOrder(personID, historyStart, statements))
	}
	for i := 0; i < cfg.AppointmentsPerPatient; i++ {
		p.Appointments = append(p.Appointments, g.GenerateAppointment(personID, historyStart))
	}
	seen := make(map[string]bool)
	for len(p.Problems) < cfg.ProblemsPerPatient && len(seen) < len(problemDefs) {
		row := g.GenerateProblem(personID, historyStart)
		code := row.String("condition_code")
		if seen[code] {
			continue
		}
		seen[code] = true
		p.Problems = append(p.Problems, row)
	}
	return p
}

// GenerateObservation produces a numeric or coded observation dated within
// the patient's history.
func (g *DataGenerator) GenerateObservation(personID string, since time.Time) timeline.Row {
	row := timeline.Row{
		"id":                      g.nextID("obs"),
		"person_id":               personID,
		"clinical_effective_date": g.timeBetween(since, g.now),
	}
	if g.rng.Intn(5) == 0 {
		def := textObservations[g.rng.Intn(len(textObservations))]
		row["mapped_concept_code"] = def.Code
		row["mapped_concept_display"] = def.Display
		row["result_value"] = nil
		row["result_text"] = def.Display
		row["result_unit_display"] = nil
		return row
	}
	def := observationDefs[g.rng.Intn(len(observationDefs))]
	value := def.Low + g.rng.Float64()*(def.High-def.Low)
	row["mapped_concept_code"] = def.Code
	row["mapped_concept_display"] = def.Display
	row["result_value"] = float64(int(value*10)) / 10
	row["result_text"] = nil
	row["result_unit_display"] = def.Unit
	return row
}

// GenerateMedicationOrder produces an order joined to its statement. Orders
// for the same drug share one statement, tracked in statements.
func (g *DataGenerator) GenerateMedicationOrder(personID string, since time.Time, statements map[string]string) timeline.Row {
	def := medicationDefs[g.rng.Intn(len(medicationDefs))]
	sid, ok := statements[def.Code]
	if !ok {
		sid = g.nextID("ms")
		statements[def.Code] = sid
	}
	method := g.pick(issueMethods)
	days := int64(28 * (1 + g.rng.Intn(3)))

	row := timeline.Row{
		"id":                       g.nextID("mo"),
		"person_id":                personID,
		"clinical_effective_date":  g.timeBetween(since, g.now),
		"mapped_concept_code":      def.Code,
		"mapped_concept_display":   def.Display,
		"dose":                     def.Dose,
		"quantity_value":           float64(days),
		"quantity_unit":            def.Unit,
		"duration_days":            days,
		"issue_method_description": method,
		"bnf_reference":            def.BNF,
		"medication_statement_id":  sid,
		"statement_issue_method":   method,
		"is_active":                method != "Acute",
	}
	if g.rng.Intn(6) == 0 {
		row["issue_method_description"] = nil
	}
	return row
}

// GenerateAppointment produces an appointment; roughly one in ten is
// booked in the coming weeks.
func (g *DataGenerator) GenerateAppointment(personID string, since time.Time) timeline.Row {
	start := g.timeBetween(since, g.now)
	status := g.pick(appointmentStatuses)
	if g.rng.Intn(10) == 0 {
		start = g.timeBetween(g.now.Add(time.Hour), g.now.AddDate(0, 0, 42))
		status = "booked"
	}
	pr := practitioners[g.rng.Intn(len(practitioners))]
	return timeline.Row{
		"id":                          g.nextID("appt"),
		"person_id":                   personID,
		"start_date":                  start,
		"planned_duration":            int64(10 * (1 + g.rng.Intn(3))),
		"appointment_status":          status,
		"contact_mode":                g.pick(contactModes),
		"national_slot_category_name": g.pick(slotCategories),
		"practitioner_title":          pr[0],
		"practitioner_first_name":     pr[1],
		"practitioner_last_name":      pr[2],
	}
}

// GenerateProblem produces a long-term condition on the register.
func (g *DataGenerator) GenerateProblem(personID string, since time.Time) timeline.Row {
	def := problemDefs[g.rng.Intn(len(problemDefs))]
	first := g.day(g.timeBetween(since.AddDate(-10, 0, 0), g.now))
	return timeline.Row{
		"person_id":               personID,
		"condition_code":          def.Code,
		"condition_name":          def.Name,
		"clinical_domain":         def.Domain,
		"is_on_register":          true,
		"is_qof":                  def.QOF,
		"earliest_diagnosis_date": first,
		"latest_diagnosis_date":   g.day(g.timeBetween(first, g.now)),
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Seed generates a complete dataset. sk_patient_id values start at 100001.
func Seed(cfg SeedConfig, now time.Time) *Dataset {
	cfg = cfg.withDefaults()
	g := NewDataGenerator(cfg.Seed, now)
	d := &Dataset{}
	for i := 0; i < cfg.PatientCount; i++ {
		p := g.GeneratePatient(int64(100001+i), cfg)
		d.Patients = append(d.Patients, p.Demographics)
		d.Registrations = append(d.Registrations, p.Registrations...)
		d.Observations = append(d.Observations, p.Observations...)
		d.Medications = append(d.Medications, p.Medications...)
		d.Appointments = append(d.Appointments, p.Appointments...)
		d.Problems = append(d.Problems, p.Problems...)
	}
	return d
}
