package patient

import (
	"time"

	"github.com/olids/explorer/internal/domain/timeline"
)

// StatusBadge summarises a patient's registration state for display.
type StatusBadge struct {
	Code   string `json:"code"`
	Label  string `json:"label"`
	Reason string `json:"reason,omitempty"`
}

const (
	BadgeDeceased = "DECEASED"
	BadgeActive   = "ACTIVE"
	BadgeInactive = "INACTIVE"
)

// NewStatusBadge picks the badge for a patient. Deceased takes precedence
// over the registration state.
func NewStatusBadge(isActive, isDeceased bool, inactiveReason string) StatusBadge {
	switch {
	case isDeceased:
		return StatusBadge{Code: BadgeDeceased, Label: BadgeDeceased}
	case isActive:
		return StatusBadge{Code: BadgeActive, Label: BadgeActive}
	case inactiveReason != "":
		return StatusBadge{Code: BadgeInactive, Label: BadgeInactive + " - " + inactiveReason, Reason: inactiveReason}
	default:
		return StatusBadge{Code: BadgeInactive, Label: BadgeInactive}
	}
}

func badgeFromRow(row timeline.Row) StatusBadge {
	return NewStatusBadge(row.Bool("is_active"), row.Bool("is_deceased"), row.String("inactive_reason"))
}

// SearchResult is one patient card returned by a search.
type SearchResult struct {
	PersonID             string      `json:"person_id"`
	SKPatientID          int64       `json:"sk_patient_id"`
	Age                  *int64      `json:"age,omitempty"`
	Gender               string      `json:"gender,omitempty"`
	EthnicitySubcategory string      `json:"ethnicity_subcategory,omitempty"`
	PracticeName         string      `json:"practice_name,omitempty"`
	PCNName              string      `json:"pcn_name,omitempty"`
	Status               StatusBadge `json:"status"`
}

func searchResultFromRow(row timeline.Row) SearchResult {
	sk, _ := row.Int64("sk_patient_id")
	return SearchResult{
		PersonID:             row.String("person_id"),
		SKPatientID:          sk,
		Age:                  row.OptInt64("age"),
		Gender:               row.String("gender"),
		EthnicitySubcategory: row.String("ethnicity_subcategory"),
		PracticeName:         row.String("practice_name"),
		PCNName:              row.String("pcn_name"),
		Status:               badgeFromRow(row),
	}
}

// Demographics is the current demographics row of a patient. Attributes
// carries every column of the dimension as returned by the warehouse.
type Demographics struct {
	Patient    timeline.PatientIdentifier `json:"patient"`
	Status     StatusBadge                `json:"status"`
	Attributes timeline.Row               `json:"attributes"`
}

// RegistrationPeriod is one reconciled row of the practice registration
// history.
type RegistrationPeriod struct {
	EffectiveFrom         time.Time       `json:"effective_from"`
	EffectiveTo           *time.Time      `json:"effective_to,omitempty"`
	Status                timeline.Status `json:"status"`
	PeriodSequence        *int64          `json:"period_sequence,omitempty"`
	IsActive              bool            `json:"is_active"`
	PracticeName          string          `json:"practice_name,omitempty"`
	PracticeCode          string          `json:"practice_code,omitempty"`
	PCNName               string          `json:"pcn_name,omitempty"`
	RegistrationStartDate *time.Time      `json:"registration_start_date,omitempty"`
	RegistrationEndDate   *time.Time      `json:"registration_end_date,omitempty"`
	EthnicitySubcategory  string          `json:"ethnicity_subcategory,omitempty"`
	BoroughRegistered     string          `json:"borough_registered,omitempty"`
	BoroughResident       string          `json:"borough_resident,omitempty"`
	LocalAuthorityName    string          `json:"local_authority_name,omitempty"`
}

func registrationFromRecord(r timeline.Record) RegistrationPeriod {
	p := r.Payload
	return RegistrationPeriod{
		EffectiveFrom:         r.EffectiveFrom,
		EffectiveTo:           r.EffectiveTo,
		Status:                r.Status,
		PeriodSequence:        p.OptInt64("period_sequence"),
		IsActive:              p.Bool("is_active"),
		PracticeName:          p.String("practice_name"),
		PracticeCode:          p.String("practice_code"),
		PCNName:               p.String("pcn_name"),
		RegistrationStartDate: p.OptTime("registration_start_date"),
		RegistrationEndDate:   p.OptTime("registration_end_date"),
		EthnicitySubcategory:  p.String("ethnicity_subcategory"),
		BoroughRegistered:     p.String("borough_registered"),
		BoroughResident:       p.String("borough_resident"),
		LocalAuthorityName:    p.String("local_authority_name"),
	}
}

// RegistrationHistory is the registration timeline with any data quality
// warnings raised while reconciling it.
type RegistrationHistory struct {
	Patient  timeline.PatientIdentifier `json:"patient"`
	Periods  []RegistrationPeriod       `json:"periods"`
	Current  *RegistrationPeriod        `json:"current,omitempty"`
	Warnings []string                   `json:"warnings,omitempty"`
}
