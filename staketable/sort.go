package staketable

import "sort"

// KeyedEvent pairs an Event with its canonical ordering key.
type KeyedEvent struct {
	Key   EventKey
	Event Event
}

// SortAndDedup sorts events ascending by EventKey and removes adjacent
// duplicates (spec.md §4.1). It is idempotent:
// SortAndDedup(SortAndDedup(xs) ++ xs) == SortAndDedup(xs).
func SortAndDedup(events []KeyedEvent) []KeyedEvent {
	sorted := make([]KeyedEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key.Less(sorted[j].Key)
	})

	out := sorted[:0:0]
	for i, e := range sorted {
		if i > 0 && e.Key == sorted[i-1].Key {
			logger.Warn("duplicate event found and removed", "key", e.Key.String())
			continue
		}
		out = append(out, e)
	}
	return out
}
