package dozen

import "sort"

// SortByTimestamp orders observations by their timestamp key. The feed emits
// ISO-8601 timestamps, which order correctly as strings.
func SortByTimestamp(history []Observation) {
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp < history[j].Timestamp
	})
}

// Dedup keeps the first observation for each timestamp, preserving order.
func Dedup(history []Observation) []Observation {
	seen := make(map[string]struct{}, len(history))
	out := make([]Observation, 0, len(history))
	for _, o := range history {
		if _, ok := seen[o.Timestamp]; ok {
			continue
		}
		seen[o.Timestamp] = struct{}{}
		out = append(out, o)
	}
	return out
}

// HasSeedRun reports whether history starts with the synthetic run 1..n that
// was used to bootstrap early deployments. Only histories longer than floor
// are considered.
func HasSeedRun(history []Observation, n, floor int) bool {
	if len(history) <= floor || len(history) < n || n <= 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if history[i].Number != i+1 {
			return false
		}
	}
	return true
}

// StripSeedRun removes the synthetic head detected by HasSeedRun and reports
// whether anything was removed.
func StripSeedRun(history []Observation, n, floor int) ([]Observation, bool) {
	if !HasSeedRun(history, n, floor) {
		return history, false
	}
	out := make([]Observation, len(history)-n)
	copy(out, history[n:])
	return out, true
}
