// Typed accessors for fixed width field data.

package paradox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNull is returned by the Get accessors when the field holds no value.
	ErrNull = errors.New("null value")
	// ErrFieldLength is returned when a slice does not have the width the type requires.
	ErrFieldLength = errors.New("invalid field length")
)

func checkLen(data []byte, want int) error {
	if len(data) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFieldLength, len(data), want)
	}
	return nil
}

func isNull(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// GetShort decodes a 2 byte integer field.
func GetShort(data []byte) (int16, error) {
	if err := checkLen(data, 2); err != nil {
		return 0, err
	}
	if isNull(data) {
		return 0, ErrNull
	}
	return int16(binary.BigEndian.Uint16(data) ^ 0x8000), nil //nolint:gosec // G115: sign flip is the on-disk encoding
}

// PutShort encodes a 2 byte integer field.
func PutShort(data []byte, v int16) error {
	if err := checkLen(data, 2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(data, uint16(v)^0x8000) //nolint:gosec // G115: sign flip is the on-disk encoding
	return nil
}

// GetLong decodes a 4 byte integer field. Also used for auto-increment.
func GetLong(data []byte) (int32, error) {
	if err := checkLen(data, 4); err != nil {
		return 0, err
	}
	if isNull(data) {
		return 0, ErrNull
	}
	return int32(binary.BigEndian.Uint32(data) ^ 0x80000000), nil //nolint:gosec // G115: sign flip is the on-disk encoding
}

// PutLong encodes a 4 byte integer field.
func PutLong(data []byte, v int32) error {
	if err := checkLen(data, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(data, uint32(v)^0x80000000) //nolint:gosec // G115: sign flip is the on-disk encoding
	return nil
}

// GetDouble decodes an 8 byte number or currency field.
func GetDouble(data []byte) (float64, error) {
	if err := checkLen(data, 8); err != nil {
		return 0, err
	}
	if isNull(data) {
		return 0, ErrNull
	}
	bits := binary.BigEndian.Uint64(data)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

// PutDouble encodes an 8 byte number or currency field.
func PutDouble(data []byte, v float64) error {
	if err := checkLen(data, 8); err != nil {
		return err
	}
	bits := math.Float64bits(v)
	if bits&(1<<63) == 0 {
		bits |= 1 << 63
	} else {
		bits = ^bits
	}
	binary.BigEndian.PutUint64(data, bits)
	return nil
}

// GetByte decodes a 1 byte field, as used by logical fields.
func GetByte(data []byte) (int8, error) {
	if err := checkLen(data, 1); err != nil {
		return 0, err
	}
	if data[0] == 0 {
		return 0, ErrNull
	}
	return int8(data[0] ^ 0x80), nil //nolint:gosec // G115: sign flip is the on-disk encoding
}

// PutByte encodes a 1 byte field.
func PutByte(data []byte, v int8) error {
	if err := checkLen(data, 1); err != nil {
		return err
	}
	data[0] = byte(v) ^ 0x80
	return nil
}
