// Field-level encoding between JSON values and record bytes.

package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/maruel/pxmcp/internal/paradox"
)

// Outcome reports what EncodeField did with a value.
type Outcome int

const (
	// Unchanged means the value did not fit the field type and the bytes were
	// left as they were.
	Unchanged Outcome = iota
	// Written means the field bytes now hold the value.
	Written
)

func (o Outcome) String() string {
	if o == Written {
		return "written"
	}
	return "unchanged"
}

// DecodeField converts the bytes of one field to a JSON compatible value:
// string, int64, float64, bool or nil.
//
// Null integers and numbers decode to 0 and null logicals to false; a null
// alpha decodes to nil. Unsupported types decode to a "<type N>" placeholder.
// Malformed data and non-finite numbers decode to nil.
func DecodeField(cs paradox.Charset, f paradox.Field, data []byte) any {
	switch f.Type {
	case paradox.TypeAlpha:
		s, err := cs.GetAlpha(data)
		if err != nil {
			return nil
		}
		return s
	case paradox.TypeShort:
		v, err := paradox.GetShort(data)
		if !decoded(err) {
			return nil
		}
		return int64(v)
	case paradox.TypeLong, paradox.TypeAutoInc:
		v, err := paradox.GetLong(data)
		if !decoded(err) {
			return nil
		}
		return int64(v)
	case paradox.TypeNumber, paradox.TypeCurrency:
		v, err := paradox.GetDouble(data)
		if !decoded(err) || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil
		}
		return v
	case paradox.TypeLogical:
		v, err := paradox.GetByte(data)
		if !decoded(err) {
			return nil
		}
		return v != 0
	default:
		return fmt.Sprintf("<type %d>", f.Type)
	}
}

// decoded reports whether a Get accessor produced a usable value. A null
// field counts as its zero value.
func decoded(err error) bool {
	return err == nil || errors.Is(err, paradox.ErrNull)
}

// EncodeField writes v into the bytes of one field.
//
// A value whose JSON type does not match the field type, or a field type
// that cannot be written, yields Unchanged and no error. Integers are
// truncated to the field width.
func EncodeField(cs paradox.Charset, f paradox.Field, data []byte, v any) (Outcome, error) {
	switch f.Type {
	case paradox.TypeAlpha:
		s, ok := v.(string)
		if !ok || strings.ContainsRune(s, 0) {
			return Unchanged, nil
		}
		return written(cs.PutAlpha(data, s))
	case paradox.TypeShort:
		i, ok := asInt64(v)
		if !ok {
			return Unchanged, nil
		}
		return written(paradox.PutShort(data, int16(i))) //nolint:gosec // G115: truncation to the field width
	case paradox.TypeLong, paradox.TypeAutoInc:
		i, ok := asInt64(v)
		if !ok {
			return Unchanged, nil
		}
		return written(paradox.PutLong(data, int32(i))) //nolint:gosec // G115: truncation to the field width
	case paradox.TypeNumber, paradox.TypeCurrency:
		x, ok := asFloat64(v)
		if !ok {
			return Unchanged, nil
		}
		return written(paradox.PutDouble(data, x))
	case paradox.TypeLogical:
		b, ok := v.(bool)
		if !ok {
			return Unchanged, nil
		}
		var i int8
		if b {
			i = 1
		}
		return written(paradox.PutByte(data, i))
	default:
		return Unchanged, nil
	}
}

func written(err error) (Outcome, error) {
	if err != nil {
		return Unchanged, err
	}
	return Written, nil
}

// asInt64 accepts integral JSON numbers, as decoded with UseNumber or plain
// json.Unmarshal, and Go integers.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return wholeFloat(f)
	case float64:
		return wholeFloat(n)
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// asFloat64 accepts any JSON number.
func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
