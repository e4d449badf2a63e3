// Package features derives the fixed-length numeric descriptor of a trailing
// window of observed numbers. Everything here is pure: the same window always
// yields the same vector, and training and inference share this code path.
package features

import (
	"roulette-dozen/internal/dozen"

	"gonum.org/v1/gonum/stat"
)

// Build describes the last element of window in the context of the elements
// before it. The window is expected to hold W+1 values; shorter windows are
// accepted and every lookback is capped at the window length. An empty window
// yields nil.
func Build(window []int) []float64 {
	if len(window) == 0 {
		return nil
	}

	current := window[len(window)-1]
	previous := window[:len(window)-1]
	label := dozen.LabelOf(current)

	f := make([]float64, 0, Width)

	// value shape
	f = append(f,
		float64(current%2),
		float64(current%3),
		float64(current%10),
	)

	// step from the previous value
	var absDiff, repeat, direction float64
	if len(previous) > 0 {
		last := previous[len(previous)-1]
		absDiff = float64(abs(current - last))
		repeat = boolf(current == last)
		direction = float64(sign(current - last))
	}
	f = append(f, absDiff, repeat, direction)

	sameLabel := 0
	for _, v := range tail(previous, LagDepth) {
		if dozen.LabelOf(v) == label {
			sameLabel++
		}
	}
	f = append(f, float64(sameLabel))

	hot := tail(window, HotLookback)
	f = append(f,
		float64(count(hot, current)),
		boolf(inTopN(hot, current, HotTopN)),
	)

	aboveMean := 0.0
	if len(previous) > 0 {
		aboveMean = boolf(float64(current) > stat.Mean(toFloats(previous), nil))
	}
	f = append(f, aboveMean, boolf(current == 0))

	// dozen context
	long := tail(window, LongLookback)
	longCount := labelCount(long, label)
	f = append(f,
		LabelCode(label),
		float64(labelCount(tail(window, ShortLookback), label)),
		float64(longCount),
		float64(longCount)/float64(len(long)),
	)

	labelRepeat := 0.0
	if len(previous) > 0 {
		labelRepeat = boolf(dozen.LabelOf(previous[len(previous)-1]) == label)
	}
	f = append(f, labelRepeat, trendSign(tail(previous, LagDepth)))

	// lags, most recent first
	for k := 1; k <= LagDepth; k++ {
		if k <= len(previous) {
			f = append(f, LabelCode(dozen.LabelOf(previous[len(previous)-k])))
		} else {
			f = append(f, 0)
		}
	}
	for k := 1; k <= LagDepth; k++ {
		if k <= len(previous) {
			f = append(f, float64(previous[len(previous)-k]))
		} else {
			f = append(f, -1)
		}
	}

	f = append(f, float64(count(long, 0))/float64(len(long)))

	return f
}

// LabelCode is the numeric encoding of a label inside a feature vector. ZERO
// is kept apart from the three dozens as -1.
func LabelCode(l dozen.Label) float64 {
	if l == dozen.Zero {
		return -1
	}
	return float64(l)
}

// trendSign is the sign of the mean consecutive difference of vals.
func trendSign(vals []int) float64 {
	if len(vals) < 2 {
		return 0
	}
	diffs := make([]float64, 0, len(vals)-1)
	for i := 1; i < len(vals); i++ {
		diffs = append(diffs, float64(vals[i]-vals[i-1]))
	}
	m := stat.Mean(diffs, nil)
	switch {
	case m > 0:
		return 1
	case m < 0:
		return -1
	default:
		return 0
	}
}

// inTopN reports whether v is among the n most frequent values of vals.
// Ties are broken by first occurrence, earlier values ranking higher.
func inTopN(vals []int, v, n int) bool {
	counts := make(map[int]int, len(vals))
	order := make([]int, 0, len(vals))
	for _, x := range vals {
		if counts[x] == 0 {
			order = append(order, x)
		}
		counts[x]++
	}

	// stable selection over first-occurrence order
	ranked := make([]int, 0, n)
	used := make(map[int]bool, n)
	for len(ranked) < n && len(ranked) < len(order) {
		best, bestCount := 0, -1
		for _, x := range order {
			if used[x] {
				continue
			}
			if counts[x] > bestCount {
				best, bestCount = x, counts[x]
			}
		}
		used[best] = true
		ranked = append(ranked, best)
	}

	for _, x := range ranked {
		if x == v {
			return true
		}
	}
	return false
}

func labelCount(vals []int, l dozen.Label) int {
	n := 0
	for _, v := range vals {
		if dozen.LabelOf(v) == l {
			n++
		}
	}
	return n
}

func count(vals []int, v int) int {
	n := 0
	for _, x := range vals {
		if x == v {
			n++
		}
	}
	return n
}

func tail(vals []int, n int) []int {
	if len(vals) <= n {
		return vals
	}
	return vals[len(vals)-n:]
}

func toFloats(vals []int) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v)
	}
	return out
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
