package timeline

import (
	"fmt"
	"strconv"
	"time"
)

// PatientIdentifier carries both interchangeable forms of a patient key.
type PatientIdentifier struct {
	PersonID    string `json:"person_id"`
	SKPatientID int64  `json:"sk_patient_id"`
}

func (p PatientIdentifier) String() string {
	if p.PersonID != "" {
		return p.PersonID
	}
	return strconv.FormatInt(p.SKPatientID, 10)
}

// RecordType tags the source stream a TemporalRecord came from.
type RecordType string

const (
	RecordTypeDemographic  RecordType = "demographic"
	RecordTypeRegistration RecordType = "registration"
	RecordTypeMedication   RecordType = "medication"
	RecordTypeAppointment  RecordType = "appointment"
	RecordTypeObservation  RecordType = "observation"
	RecordTypeProblem      RecordType = "problem"
)

// ParseRecordType validates a record type supplied by a caller.
func ParseRecordType(s string) (RecordType, error) {
	rt := RecordType(s)
	if _, ok := recordSpecs[rt]; !ok {
		return "", fmt.Errorf("unknown record type %q", s)
	}
	return rt, nil
}

// IsSCD reports whether records of this type carry validity intervals
// (slowly-changing dimension type 2) rather than a single event time.
func (rt RecordType) IsSCD() bool {
	return recordSpecs[rt].scd
}

// Status is the resolved position of a record within its grouping key.
type Status string

const (
	StatusCurrent    Status = "current"
	StatusHistorical Status = "historical"
	StatusUpcoming   Status = "upcoming"
)

// Record is one versioned fact about a patient. Records are immutable once
// fetched; only Status is assigned during reconciliation.
type Record struct {
	RecordType    RecordType `json:"record_type"`
	GroupKey      string     `json:"group_key"`
	// EffectiveFrom is zero for problems without a diagnosis date.
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	Status        Status     `json:"status"`
	Sequence      int        `json:"sequence"`
	Payload       Row        `json:"payload"`
}

// Timeline is the reconciled record stream for one patient and record type,
// sorted by EffectiveFrom descending.
type Timeline struct {
	Patient    PatientIdentifier `json:"patient"`
	RecordType RecordType        `json:"record_type"`
	Range      DateRange         `json:"range"`
	BuiltAt    time.Time         `json:"built_at"`
	Records    []Record          `json:"records"`
	Issues     []IntegrityIssue  `json:"issues,omitempty"`
}

// CurrentSnapshot is the "what is true now" view of a Timeline.
type CurrentSnapshot struct {
	RecordType RecordType `json:"record_type"`
	Current    []Record   `json:"current,omitempty"`
	Upcoming   []Record   `json:"upcoming,omitempty"`
	Past       []Record   `json:"past,omitempty"`
	Latest     []Record   `json:"latest,omitempty"`
}

// MonthBucket is one calendar month of point events, ready for a bar chart.
type MonthBucket struct {
	Month      time.Time      `json:"month"`
	Label      string         `json:"label"`
	Count      int            `json:"count"`
	ByStatus   map[string]int `json:"by_status,omitempty"`
	ByCategory map[string]int `json:"by_category,omitempty"`
}

// recordSpec describes how raw warehouse rows of one record type map onto
// TemporalRecord fields.
type recordSpec struct {
	scd            bool
	undated        bool // keep rows whose fromColumn is null
	fromColumn     string
	toColumn       string
	groupKey       string
	keyColumns     []string
	statusColumn   string
	categoryColumn string
}

var recordSpecs = map[RecordType]recordSpec{
	RecordTypeDemographic: {
		scd:        true,
		fromColumn: "effective_start_date",
		toColumn:   "effective_end_date",
		groupKey:   "demographics",
	},
	RecordTypeRegistration: {
		scd:        true,
		fromColumn: "effective_start_date",
		toColumn:   "effective_end_date",
		groupKey:   "practice_registration",
	},
	RecordTypeMedication: {
		fromColumn:   "clinical_effective_date",
		keyColumns:   []string{"mapped_concept_code"},
		statusColumn: "issue_method_description",
	},
	// Appointments form one stream per patient, so only the most recent
	// past appointment resolves as current.
	RecordTypeAppointment: {
		fromColumn:     "start_date",
		groupKey:       "appointments",
		statusColumn:   "appointment_status",
		categoryColumn: "national_slot_category_name",
	},
	RecordTypeObservation: {
		fromColumn: "clinical_effective_date",
		keyColumns: []string{"mapped_concept_code"},
	},
	RecordTypeProblem: {
		undated:        true,
		fromColumn:     "earliest_diagnosis_date",
		keyColumns:     []string{"condition_code"},
		categoryColumn: "clinical_domain",
	},
}

// RecordTypes lists every supported record type in display order.
func RecordTypes() []RecordType {
	return []RecordType{
		RecordTypeDemographic,
		RecordTypeRegistration,
		RecordTypeMedication,
		RecordTypeAppointment,
		RecordTypeObservation,
		RecordTypeProblem,
	}
}
