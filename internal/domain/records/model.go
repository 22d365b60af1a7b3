package records

import (
	"time"

	"github.com/olids/explorer/internal/domain/timeline"
)

// Filter narrows a record listing.
type Filter struct {
	Range  timeline.DateRange
	Search string
	Limit  int
}

type Observation struct {
	ID             string    `json:"id"`
	Date           time.Time `json:"date"`
	DateDisplay    string    `json:"date_display"`
	ConceptCode    string    `json:"concept_code"`
	ConceptDisplay string    `json:"concept_display"`
	Value          string    `json:"value"`
}

func observationFromRow(row timeline.Row) Observation {
	o := Observation{
		ID:             row.String("id"),
		ConceptCode:    row.String("mapped_concept_code"),
		ConceptDisplay: orNA(row.String("mapped_concept_display")),
		Value:          FormatValue(row, "result_value", "result_text", "result_unit_display"),
	}
	if t := row.OptTime("clinical_effective_date"); t != nil {
		o.Date = *t
	}
	o.DateDisplay = FormatDate(row.OptTime("clinical_effective_date"), false)
	return o
}

// ObservationList is one page of observations. Truncated is set when the
// row cap was reached.
type ObservationList struct {
	Patient      timeline.PatientIdentifier `json:"patient"`
	Range        timeline.DateRange         `json:"range"`
	Search       string                     `json:"search,omitempty"`
	Observations []Observation              `json:"observations"`
	Truncated    bool                       `json:"truncated"`
}

// ObservationSummary counts a patient's observations across all time.
type ObservationSummary struct {
	Total      int64      `json:"total"`
	Earliest   *time.Time `json:"earliest,omitempty"`
	MostRecent *time.Time `json:"most_recent,omitempty"`
}

func observationSummaryFromRow(row timeline.Row) ObservationSummary {
	total, _ := row.Int64("total")
	return ObservationSummary{
		Total:      total,
		Earliest:   row.OptTime("earliest"),
		MostRecent: row.OptTime("most_recent"),
	}
}

type Medication struct {
	ID           string          `json:"id"`
	Date         time.Time       `json:"date"`
	DateDisplay  string          `json:"date_display"`
	Code         string          `json:"code"`
	Drug         string          `json:"drug"`
	Type         string          `json:"type"`
	Dose         string          `json:"dose"`
	Quantity     string          `json:"quantity"`
	Duration     string          `json:"duration"`
	BNFReference string          `json:"bnf_reference"`
	IsActive     bool            `json:"is_active"`
	Status       timeline.Status `json:"status"`
}

func medicationFromRecord(r timeline.Record) Medication {
	p := r.Payload
	kind := p.String("issue_method_description")
	if kind == "" {
		kind = p.String("statement_issue_method")
	}
	duration := notAvailable
	if d, ok := p.Int64("duration_days"); ok {
		duration = formatDays(d)
	}
	return Medication{
		ID:           p.String("id"),
		Date:         r.EffectiveFrom,
		DateDisplay:  FormatDate(&r.EffectiveFrom, false),
		Code:         p.String("mapped_concept_code"),
		Drug:         orNA(p.String("mapped_concept_display")),
		Type:         orNA(kind),
		Dose:         orNA(p.String("dose")),
		Quantity:     FormatValue(p, "quantity_value", "", "quantity_unit"),
		Duration:     duration,
		BNFReference: orNA(p.String("bnf_reference")),
		IsActive:     p.Bool("is_active"),
		Status:       r.Status,
	}
}

// MedicationList holds the orders in range, most recent first, and the
// latest order of each drug.
type MedicationList struct {
	Patient     timeline.PatientIdentifier `json:"patient"`
	Range       timeline.DateRange         `json:"range"`
	Search      string                     `json:"search,omitempty"`
	Medications []Medication               `json:"medications"`
	Latest      []Medication               `json:"latest"`
	Truncated   bool                       `json:"truncated"`
	Warnings    []string                   `json:"warnings,omitempty"`
}

// MedicationSummary counts active statements and all orders.
type MedicationSummary struct {
	Active     int64      `json:"active"`
	Total      int64      `json:"total"`
	Earliest   *time.Time `json:"earliest,omitempty"`
	MostRecent *time.Time `json:"most_recent,omitempty"`
}

func medicationSummaryFromRow(row timeline.Row) MedicationSummary {
	active, _ := row.Int64("active")
	total, _ := row.Int64("total")
	return MedicationSummary{
		Active:     active,
		Total:      total,
		Earliest:   row.OptTime("earliest"),
		MostRecent: row.OptTime("most_recent"),
	}
}

type Appointment struct {
	ID           string          `json:"id"`
	Start        time.Time       `json:"start"`
	StartDisplay string          `json:"start_display"`
	Duration     string          `json:"duration"`
	Status       string          `json:"status"`
	ContactMode  string          `json:"contact_mode"`
	SlotCategory string          `json:"slot_category"`
	Practitioner string          `json:"practitioner"`
	Timing       timeline.Status `json:"timing"`
}

func appointmentFromRecord(r timeline.Record) Appointment {
	p := r.Payload
	return Appointment{
		ID:           p.String("id"),
		Start:        r.EffectiveFrom,
		StartDisplay: FormatDate(&r.EffectiveFrom, true),
		Duration:     DurationLabel(p.OptInt64("planned_duration")),
		Status:       timeline.StatusLabel(p.String("appointment_status")),
		ContactMode:  ContactModeLabel(p.String("contact_mode")),
		SlotCategory: timeline.CategoryLabel(p.String("national_slot_category_name")),
		Practitioner: PractitionerName(
			p.String("practitioner_title"),
			p.String("practitioner_first_name"),
			p.String("practitioner_last_name"),
		),
		Timing: r.Status,
	}
}

// AppointmentsView is the appointments tab: every upcoming appointment,
// past appointments in range and their monthly chart series.
type AppointmentsView struct {
	Patient   timeline.PatientIdentifier `json:"patient"`
	Range     timeline.DateRange         `json:"range"`
	Upcoming  []Appointment              `json:"upcoming"`
	Past      []Appointment              `json:"past"`
	Months    []timeline.MonthBucket     `json:"months"`
	Truncated bool                       `json:"truncated"`
	Warnings  []string                   `json:"warnings,omitempty"`
}
