package timeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/olids/explorer/internal/platform/db"
)

type recordSourcePG struct {
	q       db.Querier
	maxRows int
}

// NewRecordSourcePG reads timelines from the warehouse mirror. Point-event
// queries return at most maxRows of the most recent rows; zero means no cap.
func NewRecordSourcePG(q db.Querier, maxRows int) RecordSource {
	return &recordSourcePG{q: q, maxRows: maxRows}
}

func (r *recordSourcePG) LookupPatients(ctx context.Context, input string) ([]PatientIdentifier, error) {
	var w db.Where
	if sk, err := strconv.ParseInt(input, 10, 64); err == nil {
		w.Add("(person_id = ? OR sk_patient_id = ?)", input, sk)
	} else {
		w.Add("person_id = ?", input)
	}

	rows, err := r.q.Query(ctx, `SELECT DISTINCT person_id, sk_patient_id FROM `+db.TableDimPerson+` WHERE `+w.SQL(), w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PatientIdentifier
	for rows.Next() {
		var id PatientIdentifier
		if err := rows.Scan(&id.PersonID, &id.SKPatientID); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const historicalCols = `person_id, sk_patient_id, effective_start_date, effective_end_date,
	is_current, period_sequence, is_active, practice_name, practice_code, pcn_name,
	registration_start_date, registration_end_date, ethnicity_subcategory,
	borough_registered, borough_resident, local_authority_name`

const demographicHistoryCols = `person_id, sk_patient_id, effective_start_date, effective_end_date,
	is_current, period_sequence, age, gender, ethnicity_category, ethnicity_subcategory,
	main_language, interpreter_needed, borough_resident, local_authority_name, is_deceased`

func (r *recordSourcePG) FetchRecords(ctx context.Context, id PatientIdentifier, rt RecordType, rng DateRange) ([]Row, error) {
	var w db.Where
	var query string

	switch rt {
	case RecordTypeRegistration, RecordTypeDemographic:
		cols := historicalCols
		if rt == RecordTypeDemographic {
			cols = demographicHistoryCols
		}
		w.Add("person_id = ?", id.PersonID)
		if rng.To != nil {
			w.Add("effective_start_date <= ?", *rng.To)
		}
		if rng.From != nil {
			w.Add("(effective_end_date IS NULL OR effective_end_date >= ?)", *rng.From)
		}
		query = `SELECT ` + cols + ` FROM ` + db.TableDimPersonHistorical + ` WHERE ` + w.SQL() +
			` ORDER BY effective_start_date`

	case RecordTypeObservation:
		w.Add("o.person_id = ?", id.PersonID)
		w.AddRange("o.clinical_effective_date", rng.From, rng.To)
		query = `SELECT o.id, o.clinical_effective_date, o.mapped_concept_code, o.mapped_concept_display,
			o.result_value, o.result_text, o.result_unit_display
			FROM ` + db.TableObservation + ` o WHERE ` + w.SQL() + ` ORDER BY o.clinical_effective_date DESC` + r.limit(&w)

	case RecordTypeMedication:
		w.Add("mo.person_id = ?", id.PersonID)
		w.AddRange("mo.clinical_effective_date", rng.From, rng.To)
		query = `SELECT mo.id, mo.clinical_effective_date, mo.mapped_concept_code, mo.mapped_concept_display,
			mo.dose, mo.quantity_value, mo.quantity_unit, mo.duration_days, mo.issue_method_description,
			mo.bnf_reference, ms.issue_method AS statement_issue_method, ms.is_active
			FROM ` + db.TableMedicationOrder + ` mo
			LEFT JOIN ` + db.TableMedicationStatement + ` ms ON ms.id = mo.medication_statement_id
			WHERE ` + w.SQL() + ` ORDER BY mo.clinical_effective_date DESC` + r.limit(&w)

	case RecordTypeAppointment:
		w.Add("a.person_id = ?", id.PersonID)
		w.AddRange("a.start_date", rng.From, rng.To)
		query = `SELECT a.id, a.start_date, a.planned_duration, a.appointment_status, a.contact_mode,
			a.national_slot_category_name, p.first_name AS practitioner_first_name,
			p.last_name AS practitioner_last_name, p.title AS practitioner_title
			FROM ` + db.TableAppointment + ` a
			LEFT JOIN ` + db.TablePractitioner + ` p ON p.id = a.practitioner_id
			WHERE ` + w.SQL() + ` ORDER BY a.start_date DESC` + r.limit(&w)

	case RecordTypeProblem:
		w.Add("person_id = ?", id.PersonID)
		w.Add("is_on_register = TRUE")
		query = `SELECT condition_code, condition_name, clinical_domain, is_on_register, is_qof,
			earliest_diagnosis_date, latest_diagnosis_date
			FROM ` + db.TableLTCSummary + ` WHERE ` + w.SQL()

	default:
		return nil, fmt.Errorf("unsupported record type %q", rt)
	}

	maps, err := db.QueryMaps(ctx, r.q, query, w.Args()...)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, NormalizeRow(m))
	}
	return out, nil
}

func (r *recordSourcePG) limit(w *db.Where) string {
	if r.maxRows <= 0 {
		return ""
	}
	return ` LIMIT ` + w.Next(r.maxRows)
}
