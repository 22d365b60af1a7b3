package timeline

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	unknownStatus    = "Unknown"
	unknownCategory  = "Not Specified"
	monthLabelLayout = "2006-Jan"
)

// MergeByMonth buckets point events by calendar month (UTC) between the
// earliest and latest event, inserting zero-count months for any gap.
func MergeByMonth(records []Record) []MonthBucket {
	return MergeByMonthWithin(records, nil, nil)
}

// MergeByMonthWithin is MergeByMonth with an explicit month axis. A nil
// bound falls back to the earliest or latest event. Events outside the axis
// are ignored.
func MergeByMonthWithin(records []Record, from, to *time.Time) []MonthBucket {
	var first, last time.Time
	for i, r := range records {
		m := monthOf(r.EffectiveFrom)
		if i == 0 || m.Before(first) {
			first = m
		}
		if i == 0 || m.After(last) {
			last = m
		}
	}
	if from != nil {
		first = monthOf(*from)
	}
	if to != nil {
		last = monthOf(*to)
	}
	if (len(records) == 0 && (from == nil || to == nil)) || last.Before(first) {
		return nil
	}

	var buckets []MonthBucket
	index := make(map[time.Time]int)
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		index[m] = len(buckets)
		buckets = append(buckets, MonthBucket{Month: m, Label: m.Format(monthLabelLayout)})
	}

	statuses := make(map[string]struct{})
	categories := make(map[string]struct{})
	for _, r := range records {
		i, ok := index[monthOf(r.EffectiveFrom)]
		if !ok {
			continue
		}
		b := &buckets[i]
		b.Count++
		spec := recordSpecs[r.RecordType]
		if spec.statusColumn != "" {
			s := StatusLabel(r.Payload.String(spec.statusColumn))
			statuses[s] = struct{}{}
			if b.ByStatus == nil {
				b.ByStatus = make(map[string]int)
			}
			b.ByStatus[s]++
		}
		if spec.categoryColumn != "" {
			c := CategoryLabel(r.Payload.String(spec.categoryColumn))
			categories[c] = struct{}{}
			if b.ByCategory == nil {
				b.ByCategory = make(map[string]int)
			}
			b.ByCategory[c]++
		}
	}

	// Every bucket carries every series so a stacked chart has no holes.
	for i := range buckets {
		b := &buckets[i]
		if len(statuses) > 0 && b.ByStatus == nil {
			b.ByStatus = make(map[string]int, len(statuses))
		}
		for s := range statuses {
			if _, ok := b.ByStatus[s]; !ok {
				b.ByStatus[s] = 0
			}
		}
		if len(categories) > 0 && b.ByCategory == nil {
			b.ByCategory = make(map[string]int, len(categories))
		}
		for c := range categories {
			if _, ok := b.ByCategory[c]; !ok {
				b.ByCategory[c] = 0
			}
		}
	}
	return buckets
}

func monthOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// StatusLabel title-cases a raw status code, defaulting to "Unknown".
func StatusLabel(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "n/a") {
		return unknownStatus
	}
	return cases.Title(language.English).String(raw)
}

// CategoryLabel returns the category as-is, defaulting to "Not Specified".
func CategoryLabel(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "n/a") {
		return unknownCategory
	}
	return raw
}
