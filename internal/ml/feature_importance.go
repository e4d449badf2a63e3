package ml

import (
	"sort"

	"roulette-dozen/internal/features"
)

// FeatureStats is the share of split gain attributed to one feature.
type FeatureStats struct {
	Name            string  `json:"name"`
	Index           int     `json:"index"`
	ImportanceScore float64 `json:"importance_score"`
}

// FeatureImportance ranks the model's features by split gain, highest first.
// Equal scores keep schema order.
func FeatureImportance(m *Model) []FeatureStats {
	if m == nil || m.Booster == nil {
		return nil
	}
	imp := m.Booster.Importance()
	out := make([]FeatureStats, len(imp))
	for i, score := range imp {
		name := ""
		if i < len(features.Names) {
			name = features.Names[i]
		}
		out[i] = FeatureStats{Name: name, Index: i, ImportanceScore: score}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].ImportanceScore > out[b].ImportanceScore
	})
	return out
}

// TopFeatures returns at most n of the most important features.
func TopFeatures(m *Model, n int) []FeatureStats {
	all := FeatureImportance(m)
	if n >= 0 && n < len(all) {
		return all[:n]
	}
	return all
}
