package liquidation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Scalar holds a general-info value that upstream may send either as text or as a number.
type Scalar struct {
	text   string
	number float64
	isNum  bool
}

// Text builds a textual scalar.
func Text(v string) Scalar { return Scalar{text: v} }

// Number builds a numeric scalar.
func Number(v float64) Scalar { return Scalar{number: v, isNum: true} }

// IsNumber reports whether the scalar was provided as a number.
func (s Scalar) IsNumber() bool { return s.isNum }

// Float coerces the scalar to a finite number, returning 0 when it cannot be parsed.
func (s Scalar) Float() float64 {
	v := s.number
	if !s.isNum {
		trimmed := strings.TrimSpace(s.text)
		if trimmed == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0
		}
		v = parsed
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// String renders the scalar for display.
func (s Scalar) String() string {
	if s.isNum {
		return strconv.FormatFloat(s.number, 'f', -1, 64)
	}
	return s.text
}

// MarshalJSON keeps the original kind of the value.
func (s Scalar) MarshalJSON() ([]byte, error) {
	if s.isNum {
		if math.IsNaN(s.number) || math.IsInf(s.number, 0) {
			return []byte("0"), nil
		}
		return json.Marshal(s.number)
	}
	return json.Marshal(s.text)
}

// UnmarshalJSON accepts a JSON string, number or null.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*s = Scalar{}
		return nil
	case trimmed[0] == '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*s = Text(text)
		return nil
	default:
		var number float64
		if err := json.Unmarshal(trimmed, &number); err != nil {
			return fmt.Errorf("liquidation: scalar must be string or number: %w", err)
		}
		*s = Number(number)
		return nil
	}
}
