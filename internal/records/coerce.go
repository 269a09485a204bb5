// JSON number normalization.

package records

import (
	"encoding/json"
	"math"
	"strconv"
)

// Numbers arrive in three shapes: json.Number when arguments are decoded with
// UseNumber, float64 from plain json.Unmarshal, and int64/float64 from
// DecodeField. They are normalized to a number before comparison:
//
//	json.Number "12"   → integral 12
//	json.Number "1.5"  → float 1.5
//	float64 3.0        → integral 3
//	int64 7            → integral 7

// number is a normalized JSON number.
type number struct {
	i       int64
	f       float64
	isWhole bool
}

// toNumber normalizes v, returning false if v is not a number.
func toNumber(v any) (number, bool) {
	if i, ok := asInt64(v); ok {
		return number{i: i, f: float64(i), isWhole: true}, true
	}
	if f, ok := asFloat64(v); ok {
		return number{f: f}, true
	}
	return number{}, false
}

func (n number) equal(o number) bool {
	if n.isWhole && o.isWhole {
		return n.i == o.i
	}
	return n.f == o.f
}

// String returns the canonical decimal form: integers without a fraction,
// other values in the shortest form that round trips.
func (n number) String() string {
	if n.isWhole {
		return strconv.FormatInt(n.i, 10)
	}
	return strconv.FormatFloat(n.f, 'f', -1, 64)
}

// wholeFloat converts f to int64 when it has no fractional part and fits.
func wholeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// isNumber reports whether v is any supported number shape.
func isNumber(v any) bool {
	switch v.(type) {
	case json.Number, float64, int, int32, int64:
		return true
	}
	return false
}
