// Package dozen holds the domain types shared by every layer: the raw
// Observation produced by the outcome feed and the Label (dozen) derived
// from its number.
package dozen

import "fmt"

// Label is one of the four mutually exclusive outcome groups.
type Label int

const (
	Zero   Label = 0 // the single value 0
	First  Label = 1 // 1..12
	Second Label = 2 // 13..24
	Third  Label = 3 // 25..36
)

// NumLabels is the number of distinct labels.
const NumLabels = 4

// Bounds of an admissible observed value.
const (
	MinNumber = 0
	MaxNumber = 36
)

// Labels lists every label in ascending order.
var Labels = [NumLabels]Label{Zero, First, Second, Third}

// LabelOf maps a number in [0,36] to its dozen. Values outside the range are
// rejected at ingestion and never reach this function.
func LabelOf(n int) Label {
	switch {
	case n <= 0:
		return Zero
	case n <= 12:
		return First
	case n <= 24:
		return Second
	default:
		return Third
	}
}

// Valid reports whether l is one of the four defined labels.
func (l Label) Valid() bool {
	return l >= Zero && l <= Third
}

func (l Label) String() string {
	switch l {
	case Zero:
		return "ZERO"
	case First:
		return "FIRST"
	case Second:
		return "SECOND"
	case Third:
		return "THIRD"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// ParseLabel is the inverse of String.
func ParseLabel(s string) (Label, error) {
	for _, l := range Labels {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown label %q", s)
}

// MarshalText encodes a label by name so JSON payloads stay readable.
func (l Label) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid label %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(b []byte) error {
	parsed, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
