package patient

import (
	"context"
	"strconv"

	"github.com/olids/explorer/internal/domain/timeline"
	"github.com/olids/explorer/internal/platform/db"
)

type repoPG struct {
	q db.Querier
}

func NewRepoPG(q db.Querier) Repository {
	return &repoPG{q: q}
}

const searchCols = `person_id, sk_patient_id, age, gender, is_active, is_deceased, inactive_reason,
	practice_name, pcn_name, ethnicity_subcategory`

func (r *repoPG) Search(ctx context.Context, term string) ([]timeline.Row, error) {
	var w db.Where
	if sk, err := strconv.ParseInt(term, 10, 64); err == nil {
		w.Add("(person_id = ? OR sk_patient_id = ?)", term, sk)
	} else {
		w.Add("person_id = ?", term)
	}

	maps, err := db.QueryMaps(ctx, r.q,
		`SELECT `+searchCols+` FROM `+db.TableDimPerson+` WHERE `+w.SQL()+` ORDER BY person_id`, w.Args()...)
	if err != nil {
		return nil, err
	}
	rows := make([]timeline.Row, 0, len(maps))
	for _, m := range maps {
		rows = append(rows, timeline.NormalizeRow(m))
	}
	return rows, nil
}

func (r *repoPG) GetDemographics(ctx context.Context, personID string) (timeline.Row, error) {
	maps, err := db.QueryMaps(ctx, r.q,
		`SELECT * FROM `+db.TableDimPerson+` WHERE person_id = $1 LIMIT 1`, personID)
	if err != nil {
		return nil, err
	}
	if len(maps) == 0 {
		return nil, nil
	}
	return timeline.NormalizeRow(maps[0]), nil
}
