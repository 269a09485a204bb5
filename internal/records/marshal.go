// Record reads and writes against an open table.

package records

import (
	"errors"
	"fmt"

	"github.com/maruel/pxmcp/internal/paradox"
)

// ErrNotFound is returned for a record index outside the table.
var ErrNotFound = errors.New("record not found")

// Table is the subset of *paradox.Table used to marshal records.
type Table interface {
	Fields() []paradox.Field
	RecordSize() int
	NumRecords() int
	Charset() paradox.Charset
	GetRecord(i int, buf []byte) error
	PutRecordAt(i int, buf []byte) error
	AppendRecord(buf []byte) error
}

// Reader decodes records of one table, reusing its layout and buffer across
// calls.
type Reader struct {
	t      Table
	layout *Layout
	buf    []byte
}

// NewReader computes the table layout.
func NewReader(t Table) (*Reader, error) {
	l, err := NewLayout(t.Fields(), t.RecordSize())
	if err != nil {
		return nil, err
	}
	return &Reader{t: t, layout: l, buf: make([]byte, l.Size())}, nil
}

// Read decodes record i.
func (r *Reader) Read(i int) (Record, error) {
	if i < 0 || i >= r.t.NumRecords() {
		return nil, fmt.Errorf("%w: index %d", ErrNotFound, i)
	}
	if err := r.t.GetRecord(i, r.buf); err != nil {
		if errors.Is(err, paradox.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: index %d", ErrNotFound, i)
		}
		return nil, err
	}
	return r.layout.Decode(r.t.Charset(), r.buf), nil
}

// WriteRecord encodes rec and stores it.
//
// With a nil index the record is appended, starting from a zeroed buffer.
// Otherwise the record at *index is read first so that fields absent from
// rec keep their stored value; ErrNotFound is returned when it does not
// exist.
func WriteRecord(t Table, index *int, rec Record) error {
	l, err := NewLayout(t.Fields(), t.RecordSize())
	if err != nil {
		return err
	}
	buf := make([]byte, l.Size())
	if index != nil {
		i := *index
		if i < 0 || i >= t.NumRecords() {
			return fmt.Errorf("%w: index %d", ErrNotFound, i)
		}
		if err := t.GetRecord(i, buf); err != nil {
			if errors.Is(err, paradox.ErrRecordNotFound) {
				return fmt.Errorf("%w: index %d", ErrNotFound, i)
			}
			return err
		}
	}
	if _, err := l.Encode(t.Charset(), buf, rec); err != nil {
		return err
	}
	if index != nil {
		return t.PutRecordAt(*index, buf)
	}
	return t.AppendRecord(buf)
}
