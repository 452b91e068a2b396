package mathroutes

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Float is a float result that always encodes as a JSON float: whole values
// keep a ".0" suffix and magnitudes outside [1e-4, 1e16) use exponent form,
// so 2 encodes as 2.0 and 1e20 as 1e+20.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("mathroutes: unsupported float value %v", v)
	}
	return []byte(formatFloat(v)), nil
}

func formatFloat(v float64) string {
	if v != 0 {
		sci := strconv.FormatFloat(v, 'e', -1, 64)
		exp, err := strconv.Atoi(sci[strings.LastIndexByte(sci, 'e')+1:])
		if err == nil && (exp < -4 || exp >= 16) {
			return sci
		}
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
