package timeline

import "context"

// RecordSource fetches raw rows for the reconciler. Implementations decide
// how rows are obtained; the reconciler never retries a failed fetch.
type RecordSource interface {
	// LookupPatients returns every canonical patient matching input, which
	// may be either a person_id or an sk_patient_id.
	LookupPatients(ctx context.Context, input string) ([]PatientIdentifier, error)
	// FetchRecords returns rows of one record type for a patient. A nil
	// bound in rng means the side is unbounded.
	FetchRecords(ctx context.Context, id PatientIdentifier, rt RecordType, rng DateRange) ([]Row, error)
}
