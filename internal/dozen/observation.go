package dozen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidObservation is returned for observations that must never be stored.
var ErrInvalidObservation = errors.New("invalid observation")

// Observation is a single outcome as published by the feed. The timestamp is
// its identity: two observations with the same timestamp are the same event.
type Observation struct {
	Number       int    `json:"number" validate:"gte=0,lte=36"`
	Color        string `json:"color"`
	Timestamp    string `json:"timestamp" validate:"required"`
	LuckyNumbers []int  `json:"lucky_numbers,omitempty" validate:"dive,gte=0,lte=36"`
}

// Label returns the dozen of the observed number.
func (o Observation) Label() Label {
	return LabelOf(o.Number)
}

var validate = validator.New()

// Validate checks the number range and the presence of a timestamp. The
// returned error wraps ErrInvalidObservation and names the failing fields.
func (o Observation) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidObservation, err)
	}

	reasons := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			reasons = append(reasons, fmt.Sprintf("%s is required", strings.ToLower(e.Field())))
		default:
			reasons = append(reasons, fmt.Sprintf("%s=%v out of range [%d,%d]", strings.ToLower(e.Field()), e.Value(), MinNumber, MaxNumber))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidObservation, strings.Join(reasons, ", "))
}

// Numbers extracts the observed values in order.
func Numbers(history []Observation) []int {
	out := make([]int, len(history))
	for i, o := range history {
		out[i] = o.Number
	}
	return out
}

// ValidNumbers extracts the observed values that fall inside [0,36], in order.
func ValidNumbers(history []Observation) []int {
	out := make([]int, 0, len(history))
	for _, o := range history {
		if o.Number >= MinNumber && o.Number <= MaxNumber {
			out = append(out, o.Number)
		}
	}
	return out
}
