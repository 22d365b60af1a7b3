package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Warehouse relations read by the explorer. Staging tables live in the
// dbt_staging schema, person-level reporting marts in
// olids_person_demographics.
const (
	SchemaStaging      = "dbt_staging"
	SchemaDemographics = "olids_person_demographics"

	TableObservation         = SchemaStaging + ".stg_olids_observation"
	TableMedicationOrder     = SchemaStaging + ".stg_olids_medication_order"
	TableMedicationStatement = SchemaStaging + ".stg_olids_medication_statement"
	TableAppointment         = SchemaStaging + ".stg_olids_appointment"
	TablePractitioner        = SchemaStaging + ".stg_olids_practitioner"
	TableDimPerson           = SchemaDemographics + ".dim_person_demographics"
	TableDimPersonHistorical = SchemaDemographics + ".dim_person_demographics_historical"
	TableLTCSummary          = SchemaDemographics + ".fct_person_ltc_summary"
)

// Querier is the read subset shared by pgxpool.Pool, pgxpool.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QueryMaps runs a query and returns each row as a column-name keyed map.
func QueryMaps(ctx context.Context, q Querier, sql string, args ...any) ([]map[string]any, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToMap)
}

// Where accumulates positional SQL predicates.
type Where struct {
	clauses []string
	args    []any
}

// Add appends a predicate; every "?" in clause is replaced with the next
// positional placeholder.
func (w *Where) Add(clause string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

// AddRange appends inclusive bounds on col; nil bounds are skipped.
func (w *Where) AddRange(col string, from, to *time.Time) {
	if from != nil {
		w.Add(col+" >= ?", *from)
	}
	if to != nil {
		w.Add(col+" <= ?", *to)
	}
}

// SQL returns the combined predicate, "TRUE" when empty.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return "TRUE"
	}
	return strings.Join(w.clauses, " AND ")
}

// Args returns the positional arguments in order.
func (w *Where) Args() []any { return w.args }

// Next returns the placeholder for an argument appended after the
// predicate's own, e.g. a LIMIT.
func (w *Where) Next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}
