package pipeline

import (
	"sort"

	"tickflow/models"
)

// DefaultRollingWindow bounds the number of recent ticks considered for
// derived statistics when no window is configured.
const DefaultRollingWindow = 500

// Merge combines an existing series with a historical fetch result and a
// live batch into a single deduplicated series for one symbol.
//
// Insertion order is existing, then historical, then live, so live data
// overwrites on an exact (timestamp, price) collision. Ticks for other
// symbols and malformed ticks are dropped silently. The result is sorted
// ascending by timestamp with arrival order breaking ties, and truncated
// to the most recent 2x rollingWindow entries. The inputs are never
// mutated and re-merging the same inputs yields the same result.
func Merge(existing, historical, live []models.Tick, symbol string, rollingWindow int) []models.Tick {
	if rollingWindow <= 0 {
		rollingWindow = DefaultRollingWindow
	}
	limit := 2 * rollingWindow

	merged := make([]models.Tick, 0, len(existing)+len(historical)+len(live))
	index := make(map[models.TickKey]int, len(existing)+len(historical)+len(live))

	insert := func(t models.Tick) {
		if !t.Valid() || t.Symbol != symbol {
			return
		}
		key := t.Key()
		if i, ok := index[key]; ok {
			merged[i] = t
			return
		}
		index[key] = len(merged)
		merged = append(merged, t)
	}

	for _, t := range existing {
		insert(t)
	}
	for _, t := range historical {
		insert(t)
	}
	for _, t := range live {
		insert(t)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})

	if len(merged) > limit {
		merged = append([]models.Tick(nil), merged[len(merged)-limit:]...)
	}
	return merged
}
