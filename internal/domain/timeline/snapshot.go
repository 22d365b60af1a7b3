package timeline

import "sort"

// CurrentSnapshot derives the current view of the timeline. SCD types yield
// the records resolved as current. Point events are split into upcoming
// (soonest first) and past (most recent first), with Latest holding the most
// recent past record of each natural key.
func (tl *Timeline) CurrentSnapshot() CurrentSnapshot {
	snap := CurrentSnapshot{RecordType: tl.RecordType}
	for _, r := range tl.Records {
		switch r.Status {
		case StatusCurrent:
			if tl.RecordType.IsSCD() {
				snap.Current = append(snap.Current, r)
				continue
			}
			snap.Latest = append(snap.Latest, r)
			snap.Past = append(snap.Past, r)
		case StatusUpcoming:
			snap.Upcoming = append(snap.Upcoming, r)
		case StatusHistorical:
			if !tl.RecordType.IsSCD() {
				snap.Past = append(snap.Past, r)
			}
		}
	}
	sort.SliceStable(snap.Upcoming, func(a, b int) bool {
		return ascending(snap.Upcoming[a], snap.Upcoming[b])
	})
	return snap
}
