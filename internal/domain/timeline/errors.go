package timeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("patient not found")
	ErrDataIntegrity     = errors.New("data integrity violation")
	ErrInvalidIdentifier = errors.New("patient identifier is required")
	ErrInvalidDateRange  = errors.New("invalid date range")
)

// NotFoundError reports that no patient matches the supplied identifier.
type NotFoundError struct {
	Input string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no patient found with identifier %q", e.Input)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousIdentifierError reports an identifier that maps to more than one
// canonical patient. Identifiers are unique in the warehouse, so this is
// also a data integrity violation.
type AmbiguousIdentifierError struct {
	Input   string
	Matches []PatientIdentifier
}

func (e *AmbiguousIdentifierError) Error() string {
	ids := make([]string, 0, len(e.Matches))
	for _, m := range e.Matches {
		ids = append(ids, fmt.Sprintf("%s/%d", m.PersonID, m.SKPatientID))
	}
	return fmt.Sprintf("identifier %q matches %d patients (%s)", e.Input, len(e.Matches), strings.Join(ids, ", "))
}

func (e *AmbiguousIdentifierError) Unwrap() error { return ErrDataIntegrity }

// IssueKind classifies an IntegrityIssue.
type IssueKind string

const (
	IssueOverlap          IssueKind = "overlapping_interval"
	IssueDuplicateCurrent IssueKind = "duplicate_current"
	IssueInvertedInterval IssueKind = "inverted_interval"
	IssueMissingDate      IssueKind = "missing_effective_from"
)

// IntegrityIssue is one data-quality finding. Sequences refer to
// Record.Sequence values of the records involved.
type IntegrityIssue struct {
	Kind      IssueKind `json:"kind"`
	GroupKey  string    `json:"group_key"`
	Sequences []int     `json:"sequences"`
	Detail    string    `json:"detail"`
}

// DataIntegrityError is returned alongside a best-effort Timeline when the
// source rows violate the one-active-record-per-key invariant. Callers
// should surface it as a warning and keep using the timeline.
type DataIntegrityError struct {
	Patient    PatientIdentifier
	RecordType RecordType
	Issues     []IntegrityIssue
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("%s records for patient %s: %d integrity issue(s)", e.RecordType, e.Patient, len(e.Issues))
}

func (e *DataIntegrityError) Unwrap() error { return ErrDataIntegrity }

// Warnings renders the issues as human readable messages.
func (e *DataIntegrityError) Warnings() []string {
	out := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		out = append(out, is.Detail)
	}
	return out
}
