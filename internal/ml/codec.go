package ml

import (
	"fmt"
	"sort"

	"roulette-dozen/internal/dozen"
)

// LabelCodec is a bijection between the labels seen during training and the
// dense class indices used by the booster. Classes are kept in ascending
// label order.
type LabelCodec struct {
	Classes []dozen.Label `json:"classes"`
}

// FitCodec builds a codec over the distinct labels in ys.
func FitCodec(ys []dozen.Label) LabelCodec {
	seen := make(map[dozen.Label]bool, dozen.NumLabels)
	var classes []dozen.Label
	for _, l := range ys {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return LabelCodec{Classes: classes}
}

// Len is the number of encoded classes.
func (c LabelCodec) Len() int { return len(c.Classes) }

// Encode maps a label to its class index.
func (c LabelCodec) Encode(l dozen.Label) (int, error) {
	for i, x := range c.Classes {
		if x == l {
			return i, nil
		}
	}
	return 0, fmt.Errorf("label %s not known to codec", l)
}

// EncodeAll maps every label, failing on the first unknown one.
func (c LabelCodec) EncodeAll(ls []dozen.Label) ([]int, error) {
	out := make([]int, len(ls))
	for i, l := range ls {
		idx, err := c.Encode(l)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Decode maps a class index back to its label.
func (c LabelCodec) Decode(i int) (dozen.Label, error) {
	if i < 0 || i >= len(c.Classes) {
		return 0, fmt.Errorf("class index %d outside [0,%d)", i, len(c.Classes))
	}
	return c.Classes[i], nil
}

func (c LabelCodec) validate() error {
	if len(c.Classes) == 0 || len(c.Classes) > dozen.NumLabels {
		return fmt.Errorf("codec must hold 1..%d classes, got %d", dozen.NumLabels, len(c.Classes))
	}
	for i, l := range c.Classes {
		if !l.Valid() {
			return fmt.Errorf("codec class %d is not a label: %d", i, int(l))
		}
		if i > 0 && c.Classes[i-1] >= l {
			return fmt.Errorf("codec classes must be strictly ascending")
		}
	}
	return nil
}
