// Field type tags and descriptors.

package paradox

import "strings"

// FieldType is the one byte type tag stored in the table header.
type FieldType uint8

// Field type tags as stored on disk.
const (
	TypeAlpha     FieldType = 0x01
	TypeDate      FieldType = 0x02
	TypeShort     FieldType = 0x03
	TypeLong      FieldType = 0x04
	TypeCurrency  FieldType = 0x05
	TypeNumber    FieldType = 0x06
	TypeLogical   FieldType = 0x09
	TypeMemoBLOb  FieldType = 0x0C
	TypeBLOb      FieldType = 0x0D
	TypeFmtMemo   FieldType = 0x0E
	TypeOLE       FieldType = 0x0F
	TypeGraphic   FieldType = 0x10
	TypeTime      FieldType = 0x14
	TypeTimestamp FieldType = 0x15
	TypeAutoInc   FieldType = 0x16
	TypeBCD       FieldType = 0x17
	TypeBytes     FieldType = 0x18
)

var typeNames = map[FieldType]string{
	TypeAlpha:     "ALPHA",
	TypeDate:      "DATE",
	TypeShort:     "SHORT",
	TypeLong:      "LONG",
	TypeCurrency:  "CURRENCY",
	TypeNumber:    "NUMBER",
	TypeLogical:   "LOGICAL",
	TypeMemoBLOb:  "MEMO",
	TypeBLOb:      "BLOB",
	TypeTime:      "TIME",
	TypeTimestamp: "TIMESTAMP",
	TypeAutoInc:   "AUTOINC",
	TypeBCD:       "BCD",
	TypeBytes:     "BYTES",
}

// String returns the schema name of the type, or "UNKNOWN".
func (t FieldType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseFieldType maps a schema name to its tag, case-insensitively.
//
// Unrecognized names map to TypeAlpha.
func ParseFieldType(s string) FieldType {
	u := strings.ToUpper(s)
	for t, name := range typeNames {
		if name == u {
			return t
		}
	}
	return TypeAlpha
}

// DefaultLen is the storage length used when a field is declared without one.
//
// It is 0 for variable length types, which must be given an explicit length.
func (t FieldType) DefaultLen() int {
	switch t {
	case TypeShort:
		return 2
	case TypeLong, TypeAutoInc, TypeDate, TypeTime:
		return 4
	case TypeCurrency, TypeNumber, TypeTimestamp:
		return 8
	case TypeLogical:
		return 1
	default:
		return 0
	}
}

// Field describes one column of a table.
type Field struct {
	Name string
	Type FieldType
	Len  int
}

// RecordSize is the sum of the field lengths.
func RecordSize(fields []Field) int {
	n := 0
	for _, f := range fields {
		n += f.Len
	}
	return n
}
