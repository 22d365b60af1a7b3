package records

import (
	"context"

	"github.com/olids/explorer/internal/domain/timeline"
)

// Repository reads the record tables that are listed or aggregated
// directly rather than through a reconciled timeline.
type Repository interface {
	// ListObservations returns observations most recent first, at most
	// f.Limit rows when the limit is positive.
	ListObservations(ctx context.Context, personID string, f Filter) ([]timeline.Row, error)
	// ListMedications returns medication orders joined to their statement,
	// most recent first, at most f.Limit rows when the limit is positive.
	// Search matches the concept code or display case-insensitively.
	ListMedications(ctx context.Context, personID string, f Filter) ([]timeline.Row, error)
	// ObservationSummary returns a single row with total, earliest and
	// most_recent columns.
	ObservationSummary(ctx context.Context, personID string) (timeline.Row, error)
	// MedicationSummary returns a single row with active, total, earliest
	// and most_recent columns.
	MedicationSummary(ctx context.Context, personID string) (timeline.Row, error)
}
