package records

import (
	"context"

	"github.com/olids/explorer/internal/domain/timeline"
	"github.com/olids/explorer/internal/platform/db"
)

type repoPG struct {
	q db.Querier
}

func NewRepoPG(q db.Querier) Repository {
	return &repoPG{q: q}
}

func (r *repoPG) ListObservations(ctx context.Context, personID string, f Filter) ([]timeline.Row, error) {
	var w db.Where
	w.Add("o.person_id = ?", personID)
	w.AddRange("o.clinical_effective_date", f.Range.From, f.Range.To)
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		w.Add("(o.mapped_concept_code ILIKE ? OR o.mapped_concept_display ILIKE ?)", pattern, pattern)
	}

	query := `SELECT o.id, o.clinical_effective_date, o.mapped_concept_code, o.mapped_concept_display,
		o.result_value, o.result_text, o.result_unit_display
		FROM ` + db.TableObservation + ` o WHERE ` + w.SQL() + ` ORDER BY o.clinical_effective_date DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + w.Next(f.Limit)
	}
	return r.rows(ctx, query, w.Args()...)
}

func (r *repoPG) ListMedications(ctx context.Context, personID string, f Filter) ([]timeline.Row, error) {
	var w db.Where
	w.Add("mo.person_id = ?", personID)
	w.AddRange("mo.clinical_effective_date", f.Range.From, f.Range.To)
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		w.Add("(mo.mapped_concept_code ILIKE ? OR mo.mapped_concept_display ILIKE ?)", pattern, pattern)
	}

	query := `SELECT mo.id, mo.clinical_effective_date, mo.mapped_concept_code, mo.mapped_concept_display,
		mo.dose, mo.quantity_value, mo.quantity_unit, mo.duration_days, mo.issue_method_description,
		mo.bnf_reference, ms.issue_method AS statement_issue_method, ms.is_active
		FROM ` + db.TableMedicationOrder + ` mo
		LEFT JOIN ` + db.TableMedicationStatement + ` ms ON ms.id = mo.medication_statement_id
		WHERE ` + w.SQL() + ` ORDER BY mo.clinical_effective_date DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + w.Next(f.Limit)
	}
	return r.rows(ctx, query, w.Args()...)
}

func (r *repoPG) ObservationSummary(ctx context.Context, personID string) (timeline.Row, error) {
	return r.one(ctx, `SELECT COUNT(*) AS total,
		MIN(clinical_effective_date) AS earliest,
		MAX(clinical_effective_date) AS most_recent
		FROM `+db.TableObservation+` WHERE person_id = $1`, personID)
}

func (r *repoPG) MedicationSummary(ctx context.Context, personID string) (timeline.Row, error) {
	return r.one(ctx, `SELECT COUNT(DISTINCT ms.id) FILTER (WHERE ms.is_active) AS active,
		COUNT(*) AS total,
		MIN(mo.clinical_effective_date) AS earliest,
		MAX(mo.clinical_effective_date) AS most_recent
		FROM `+db.TableMedicationOrder+` mo
		LEFT JOIN `+db.TableMedicationStatement+` ms ON ms.id = mo.medication_statement_id
		WHERE mo.person_id = $1`, personID)
}

func (r *repoPG) rows(ctx context.Context, query string, args ...any) ([]timeline.Row, error) {
	maps, err := db.QueryMaps(ctx, r.q, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]timeline.Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, timeline.NormalizeRow(m))
	}
	return out, nil
}

func (r *repoPG) one(ctx context.Context, query string, args ...any) (timeline.Row, error) {
	rows, err := r.rows(ctx, query, args...)
	if err != nil || len(rows) == 0 {
		return timeline.Row{}, err
	}
	return rows[0], nil
}
