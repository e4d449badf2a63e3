package dozen

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelOf_TotalOverRange(t *testing.T) {
	for v := MinNumber; v <= MaxNumber; v++ {
		l := LabelOf(v)
		require.True(t, l.Valid(), "value %d", v)

		var want Label
		switch {
		case v == 0:
			want = Zero
		case v <= 12:
			want = First
		case v <= 24:
			want = Second
		default:
			want = Third
		}
		assert.Equal(t, want, l, "value %d", v)
		assert.Equal(t, l, LabelOf(v), "LabelOf must be deterministic")
	}
}

func TestLabelOf_Boundaries(t *testing.T) {
	cases := map[int]Label{0: Zero, 1: First, 12: First, 13: Second, 24: Second, 25: Third, 36: Third}
	for v, want := range cases {
		assert.Equal(t, want, LabelOf(v), "value %d", v)
	}
}

func TestLabel_TextRoundTrip(t *testing.T) {
	for _, l := range Labels {
		b, err := l.MarshalText()
		require.NoError(t, err)

		var got Label
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, l, got)
	}

	_, err := Label(7).MarshalText()
	assert.Error(t, err)
	_, err = ParseLabel("FOURTH")
	assert.Error(t, err)
}

func TestObservation_Validate(t *testing.T) {
	tests := []struct {
		name  string
		obs   Observation
		valid bool
	}{
		{"zero", Observation{Number: 0, Timestamp: "2025-01-01T00:00:00Z"}, true},
		{"max", Observation{Number: 36, Timestamp: "2025-01-01T00:00:00Z"}, true},
		{"too high", Observation{Number: 37, Timestamp: "2025-01-01T00:00:00Z"}, false},
		{"negative", Observation{Number: -1, Timestamp: "2025-01-01T00:00:00Z"}, false},
		{"missing timestamp", Observation{Number: 5}, false},
		{"bad lucky number", Observation{Number: 5, Timestamp: "t", LuckyNumbers: []int{3, 40}}, false},
		{"lucky numbers ok", Observation{Number: 5, Timestamp: "t", LuckyNumbers: []int{3, 36}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.obs.Validate()
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidObservation))
		})
	}
}

func TestObservation_ValidateReason(t *testing.T) {
	err := Observation{Number: 37, Timestamp: "t"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "number=37")
}

func TestDedup_KeepsFirstSeen(t *testing.T) {
	in := []Observation{
		{Number: 1, Timestamp: "a"},
		{Number: 2, Timestamp: "b"},
		{Number: 9, Timestamp: "a"},
	}
	out := Dedup(in)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Number)
	assert.Equal(t, 2, out[1].Number)
}

func TestSortByTimestamp(t *testing.T) {
	h := []Observation{
		{Number: 3, Timestamp: "2025-01-01T00:03:00Z"},
		{Number: 1, Timestamp: "2025-01-01T00:01:00Z"},
		{Number: 2, Timestamp: "2025-01-01T00:02:00Z"},
	}
	SortByTimestamp(h)
	assert.Equal(t, []int{1, 2, 3}, Numbers(h))
}

func TestValidNumbers_FiltersOutOfRange(t *testing.T) {
	h := []Observation{{Number: 5}, {Number: 37}, {Number: -2}, {Number: 0}}
	assert.Equal(t, []int{5, 0}, ValidNumbers(h))
}

func seeded(n, extra int) []Observation {
	h := make([]Observation, 0, n+extra)
	for i := 1; i <= n; i++ {
		h = append(h, Observation{Number: i, Timestamp: fmt.Sprintf("s%03d", i)})
	}
	for i := 0; i < extra; i++ {
		h = append(h, Observation{Number: (i * 7) % 37, Timestamp: fmt.Sprintf("x%03d", i)})
	}
	return h
}

func TestStripSeedRun(t *testing.T) {
	h := seeded(45, 10)
	out, stripped := StripSeedRun(h, 45, 20)
	require.True(t, stripped)
	assert.Len(t, out, 10)
	assert.Equal(t, "x000", out[0].Timestamp)

	// Already repaired: nothing else is removed.
	again, stripped := StripSeedRun(out, 45, 20)
	assert.False(t, stripped)
	assert.Len(t, again, 10)
}

func TestHasSeedRun_RequiresFullRun(t *testing.T) {
	h := seeded(45, 5)
	h[30].Number = 0
	assert.False(t, HasSeedRun(h, 45, 20))

	short := seeded(15, 0)
	assert.False(t, HasSeedRun(short, 45, 20))
}
