package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// recordsFromRows converts raw rows into records in arrival order. Rows
// without a usable effective_from are dropped and reported.
func recordsFromRows(rt RecordType, rows []Row) ([]Record, []IntegrityIssue) {
	spec := recordSpecs[rt]
	records := make([]Record, 0, len(rows))
	var issues []IntegrityIssue

	for i, row := range rows {
		key := groupKeyFor(spec, row)
		from, ok, err := row.Time(spec.fromColumn)
		if err == nil && !ok && spec.undated {
			records = append(records, Record{RecordType: rt, GroupKey: key, Sequence: i, Payload: row})
			continue
		}
		if err != nil || !ok {
			detail := fmt.Sprintf("row %d (%s) has no %s", i, key, spec.fromColumn)
			if err != nil {
				detail = fmt.Sprintf("row %d (%s): %v", i, key, err)
			}
			issues = append(issues, IntegrityIssue{Kind: IssueMissingDate, GroupKey: key, Sequences: []int{i}, Detail: detail})
			continue
		}

		rec := Record{
			RecordType:    rt,
			GroupKey:      key,
			EffectiveFrom: from,
			Sequence:      i,
			Payload:       row,
		}
		if spec.toColumn != "" {
			to, ok, err := row.Time(spec.toColumn)
			if err != nil {
				issues = append(issues, IntegrityIssue{Kind: IssueMissingDate, GroupKey: key, Sequences: []int{i},
					Detail: fmt.Sprintf("row %d (%s): %v", i, key, err)})
				continue
			}
			if ok {
				rec.EffectiveTo = &to
				if to.Before(from) {
					issues = append(issues, IntegrityIssue{Kind: IssueInvertedInterval, GroupKey: key, Sequences: []int{i},
						Detail: fmt.Sprintf("%s record %d ends (%s) before it starts (%s)", key, i, fmtDate(to), fmtDate(from))})
				}
			}
		}
		records = append(records, rec)
	}
	return records, issues
}

func groupKeyFor(spec recordSpec, row Row) string {
	if len(spec.keyColumns) == 0 {
		return spec.groupKey
	}
	parts := make([]string, 0, len(spec.keyColumns))
	for _, col := range spec.keyColumns {
		parts = append(parts, row.String(col))
	}
	return strings.Join(parts, "|")
}

// filterRange keeps records inside rng. SCD records are kept when their
// interval intersects the range; point events are kept when their event
// time is in range or still upcoming.
func filterRange(rt RecordType, records []Record, rng DateRange, now time.Time) []Record {
	if rng.IsZero() {
		return records
	}
	scd := rt.IsSCD()
	out := records[:0:0]
	for _, r := range records {
		switch {
		case scd && rng.Intersects(r.EffectiveFrom, r.EffectiveTo):
			out = append(out, r)
		case !scd && (!r.EffectiveFrom.Before(now) || rng.Contains(r.EffectiveFrom)):
			out = append(out, r)
		}
	}
	return out
}

// reconcile validates and classifies records, returning them sorted by
// EffectiveFrom descending. The input slice is not modified.
func reconcile(rt RecordType, in []Record, now time.Time) ([]Record, []IntegrityIssue) {
	records := make([]Record, len(in))
	copy(records, in)

	groups := make(map[string][]int)
	var keys []string
	for i := range records {
		k := records[i].GroupKey
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}
	sort.Strings(keys)

	var issues []IntegrityIssue
	for _, k := range keys {
		idx := groups[k]
		sort.SliceStable(idx, func(a, b int) bool {
			return ascending(records[idx[a]], records[idx[b]])
		})
		if rt.IsSCD() {
			issues = append(issues, classifySCD(records, k, idx)...)
		} else {
			classifyEvents(records, idx, now)
		}
	}

	sort.SliceStable(records, func(a, b int) bool {
		return ascending(records[b], records[a])
	})
	return records, issues
}

// classifySCD runs the sorted sweep over one grouping key. idx must be in
// ascending order.
func classifySCD(records []Record, key string, idx []int) []IntegrityIssue {
	var issues []IntegrityIssue
	for i := 1; i < len(idx); i++ {
		prev, cur := records[idx[i-1]], records[idx[i]]
		if prev.EffectiveTo == nil || prev.EffectiveTo.After(cur.EffectiveFrom) {
			end := "open"
			if prev.EffectiveTo != nil {
				end = fmtDate(*prev.EffectiveTo)
			}
			issues = append(issues, IntegrityIssue{
				Kind:      IssueOverlap,
				GroupKey:  key,
				Sequences: []int{prev.Sequence, cur.Sequence},
				Detail: fmt.Sprintf("%s: period %s to %s overlaps period starting %s",
					key, fmtDate(prev.EffectiveFrom), end, fmtDate(cur.EffectiveFrom)),
			})
		}
	}

	current := -1
	var active []int
	for _, i := range idx {
		records[i].Status = StatusHistorical
		if records[i].EffectiveTo == nil {
			active = append(active, records[i].Sequence)
			current = i
		}
	}
	if current >= 0 {
		records[current].Status = StatusCurrent
	}
	if len(active) > 1 {
		issues = append(issues, IntegrityIssue{
			Kind:      IssueDuplicateCurrent,
			GroupKey:  key,
			Sequences: active,
			Detail: fmt.Sprintf("%s: %d active records, keeping the one starting %s as current",
				key, len(active), fmtDate(records[current].EffectiveFrom)),
		})
	}
	return issues
}

// classifyEvents marks upcoming events and the latest past event of a
// natural key. idx must be in ascending order.
func classifyEvents(records []Record, idx []int, now time.Time) {
	latest := -1
	for _, i := range idx {
		if !records[i].EffectiveFrom.Before(now) {
			records[i].Status = StatusUpcoming
			continue
		}
		records[i].Status = StatusHistorical
		latest = i
	}
	if latest >= 0 {
		records[latest].Status = StatusCurrent
	}
}

// ascending orders by EffectiveFrom, then by arrival so that later arrivals
// win ties.
func ascending(a, b Record) bool {
	if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
		return a.EffectiveFrom.Before(b.EffectiveFrom)
	}
	return a.Sequence < b.Sequence
}

func fmtDate(t time.Time) string { return t.Format("2006-01-02") }
