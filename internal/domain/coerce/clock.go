package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/benchmarks/internal/domain/model"
)

// ClockSeconds converts a time observation to seconds. Numbers are taken as
// seconds already; strings may be "SS.ms", "MM:SS.ms" or "HH:MM:SS.ms".
func ClockSeconds(v model.Value) (float64, error) {
	if f, ok := v.Float(); ok {
		return f, nil
	}
	s, ok := v.Str()
	if !ok {
		return 0, fmt.Errorf("%w: null time", ErrClockFormat)
	}
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) > 3 || s == "" {
		return 0, fmt.Errorf("%w: %q", ErrClockFormat, s)
	}

	var total float64
	for i, part := range parts {
		last := i == len(parts)-1
		var n float64
		var err error
		if last {
			n, err = strconv.ParseFloat(part, 64)
		} else {
			var whole int
			whole, err = strconv.Atoi(part)
			n = float64(whole)
		}
		if err != nil || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: %q", ErrClockFormat, s)
		}
		// Minutes and seconds after the leading field stay below 60.
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("%w: %q", ErrClockFormat, s)
		}
		total = total*60 + n
	}
	return total, nil
}

// Numeric returns the number a quantifiable observation value stands for:
// numbers as-is and time strings through ClockSeconds.
func Numeric(t model.ParameterType, v model.Value) (float64, bool) {
	if f, ok := v.Float(); ok {
		return f, true
	}
	if t != model.TypeTime {
		return 0, false
	}
	f, err := ClockSeconds(v)
	if err != nil {
		return 0, false
	}
	return f, true
}
