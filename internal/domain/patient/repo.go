package patient

import (
	"context"

	"github.com/olids/explorer/internal/domain/timeline"
)

// Repository reads the current demographics dimension.
type Repository interface {
	// Search returns search card rows for a person_id, or for a numeric term
	// matching either identifier form.
	Search(ctx context.Context, term string) ([]timeline.Row, error)
	// GetDemographics returns the full current row for person_id, or nil
	// when the patient is not in the dimension.
	GetDemographics(ctx context.Context, personID string) (timeline.Row, error)
}
