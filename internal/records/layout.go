// Record buffer layout.

package records

import (
	"errors"
	"fmt"

	"github.com/maruel/pxmcp/internal/paradox"
)

// ErrRecordSize is returned when a table's declared record size disagrees
// with the sum of its field lengths.
var ErrRecordSize = errors.New("record size does not match field layout")

// Record is a decoded record keyed by field name.
type Record map[string]any

// Slot is a field and its byte offset in the record buffer.
type Slot struct {
	Field  paradox.Field
	Offset int
}

// Bytes returns the slice of buf that holds the slot's field.
func (s *Slot) Bytes(buf []byte) []byte {
	return buf[s.Offset : s.Offset+s.Field.Len]
}

// Layout is the list of slots of a table, in declared order.
type Layout struct {
	slots []Slot
	size  int
}

// NewLayout computes field offsets and checks them against the declared
// record size.
func NewLayout(fields []paradox.Field, recordSize int) (*Layout, error) {
	l := &Layout{slots: make([]Slot, 0, len(fields))}
	for _, f := range fields {
		if f.Len < 0 {
			return nil, fmt.Errorf("field %q: negative length %d", f.Name, f.Len)
		}
		l.slots = append(l.slots, Slot{Field: f, Offset: l.size})
		l.size += f.Len
	}
	if l.size != recordSize {
		return nil, fmt.Errorf("%w: fields total %d bytes, record is %d", ErrRecordSize, l.size, recordSize)
	}
	return l, nil
}

// Size is the record buffer size.
func (l *Layout) Size() int {
	return l.size
}

// Decode converts a whole record buffer.
func (l *Layout) Decode(cs paradox.Charset, buf []byte) Record {
	rec := make(Record, len(l.slots))
	for i := range l.slots {
		s := &l.slots[i]
		rec[s.Field.Name] = DecodeField(cs, s.Field, s.Bytes(buf))
	}
	return rec
}

// Encode writes the fields present in rec into buf. Fields absent from rec
// keep their current bytes. It returns the names of the fields written.
func (l *Layout) Encode(cs paradox.Charset, buf []byte, rec Record) ([]string, error) {
	var written []string
	for i := range l.slots {
		s := &l.slots[i]
		v, ok := rec[s.Field.Name]
		if !ok {
			continue
		}
		out, err := EncodeField(cs, s.Field, s.Bytes(buf), v)
		if err != nil {
			return written, fmt.Errorf("field %q: %w", s.Field.Name, err)
		}
		if out == Written {
			written = append(written, s.Field.Name)
		}
	}
	return written, nil
}
