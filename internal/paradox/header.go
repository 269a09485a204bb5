// Table header encoding.

package paradox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
)

// FileType is the kind of Paradox file stored in the header.
type FileType uint8

const (
	// FileTypeIndexedDB is a keyed data file.
	FileTypeIndexedDB FileType = 0
	// FileTypeNonIndexedDB is an unkeyed data file.
	FileTypeNonIndexedDB FileType = 2
)

// ErrCorrupt is returned when a file cannot be a Paradox table.
var ErrCorrupt = errors.New("corrupt table file")

const (
	headerUnit    = 0x800
	blockHeader   = 6
	fileVersion7  = 0x0C
	maxFieldLen   = 255
	maxRecordSize = 0x7fff

	offRecordSize = 0x00
	offHeaderSize = 0x02
	offFileType   = 0x04
	offMaxTable   = 0x05
	offNumRecords = 0x06
	offUsedBlocks = 0x0A
	offFileBlocks = 0x0C
	offFirstBlock = 0x0E
	offLastBlock  = 0x10
	offNumFields  = 0x21
	offKeyFields  = 0x23
	offVersion    = 0x39
	offMaxBlocks  = 0x3A
	offFileVerID3 = 0x58
	offFileVerID4 = 0x5A
	offNumFields2 = 0x68
	offCodePage   = 0x6A
	offFieldInfo4 = 0x78
	offFieldInfo3 = 0x58
)

// header is the decoded fixed part of a table file.
type header struct {
	recordSize   int
	headerSize   int
	fileType     FileType
	maxTableSize int
	numRecords   int
	usedBlocks   int
	fileBlocks   int
	firstBlock   int
	lastBlock    int
	keyFields    int
	version      byte
	codePage     uint16
	tableName    string
	fields       []Field
}

func (h *header) blockSize() int {
	return h.maxTableSize * 0x400
}

// hasDataHeader reports whether the extended data file header is present.
func (h *header) hasDataHeader() bool {
	return h.version >= 5 && (h.fileType == FileTypeIndexedDB || h.fileType == FileTypeNonIndexedDB)
}

func (h *header) tableNameLen() int {
	if h.version >= fileVersion7 {
		return 261
	}
	return 79
}

func le16(b []byte, off int) int {
	return int(binary.LittleEndian.Uint16(b[off:]))
}

func putLE16(b []byte, off, v int) {
	binary.LittleEndian.PutUint16(b[off:], uint16(v)) //nolint:gosec // G115: values are range checked by callers
}

// readHeader decodes the header at the start of r.
func readHeader(r io.ReaderAt) (*header, error) {
	var fixed [offFieldInfo4]byte
	if _, err := r.ReadAt(fixed[:offFieldInfo3], 0); err != nil {
		return nil, fmt.Errorf("%w: short header: %w", ErrCorrupt, err)
	}
	size := le16(fixed[:], offHeaderSize)
	if size < offFieldInfo4 {
		return nil, fmt.Errorf("%w: header size %d", ErrCorrupt, size)
	}
	b := make([]byte, size)
	if _, err := r.ReadAt(b, 0); err != nil {
		return nil, fmt.Errorf("%w: short header: %w", ErrCorrupt, err)
	}
	h := &header{
		recordSize:   le16(b, offRecordSize),
		headerSize:   size,
		fileType:     FileType(b[offFileType]),
		maxTableSize: int(b[offMaxTable]),
		numRecords:   int(binary.LittleEndian.Uint32(b[offNumRecords:])),
		usedBlocks:   le16(b, offUsedBlocks),
		fileBlocks:   le16(b, offFileBlocks),
		firstBlock:   le16(b, offFirstBlock),
		lastBlock:    le16(b, offLastBlock),
		keyFields:    le16(b, offKeyFields),
		version:      b[offVersion],
	}
	if h.recordSize == 0 || h.maxTableSize == 0 {
		return nil, fmt.Errorf("%w: record size %d, block size %d", ErrCorrupt, h.recordSize, h.blockSize())
	}
	if h.recordSize > h.blockSize()-blockHeader {
		return nil, fmt.Errorf("%w: record size %d does not fit block size %d", ErrCorrupt, h.recordSize, h.blockSize())
	}
	p := offFieldInfo3
	if h.hasDataHeader() {
		h.codePage = binary.LittleEndian.Uint16(b[offCodePage:])
		p = offFieldInfo4
	}
	cs := CharsetFor(h.codePage)

	n := le16(b, offNumFields)
	if p+2*n > len(b) {
		return nil, fmt.Errorf("%w: %d fields overflow header", ErrCorrupt, n)
	}
	h.fields = make([]Field, n)
	for i := range h.fields {
		h.fields[i].Type = FieldType(b[p])
		h.fields[i].Len = int(b[p+1])
		p += 2
	}
	// Table name pointer and one pointer per field name; meaningless on disk.
	p += 4 + 4*n
	if p+h.tableNameLen() > len(b) {
		return nil, fmt.Errorf("%w: table name overflows header", ErrCorrupt)
	}
	name, err := cs.decode(b[p : p+h.tableNameLen()])
	if err != nil {
		return nil, fmt.Errorf("%w: table name: %w", ErrCorrupt, err)
	}
	h.tableName = name
	p += h.tableNameLen()
	for i := range h.fields {
		end := p
		for end < len(b) && b[end] != 0 {
			end++
		}
		if end == len(b) {
			return nil, fmt.Errorf("%w: field %d name overflows header", ErrCorrupt, i)
		}
		if h.fields[i].Name, err = cs.decode(b[p:end]); err != nil {
			return nil, fmt.Errorf("%w: field %d name: %w", ErrCorrupt, i, err)
		}
		p = end + 1
	}
	return h, nil
}

// encode serializes a new header. headerSize is computed from the content.
func (h *header) encode() ([]byte, error) {
	cs := CharsetFor(h.codePage)
	tableName, err := cs.encode(h.tableName)
	if err != nil {
		return nil, err
	}
	if len(tableName) >= h.tableNameLen() {
		tableName = tableName[:h.tableNameLen()-1]
	}
	names := make([][]byte, len(h.fields))
	size := offFieldInfo4 + 2*len(h.fields) + 4 + 4*len(h.fields) + h.tableNameLen()
	for i, f := range h.fields {
		if names[i], err = cs.encode(f.Name); err != nil {
			return nil, err
		}
		size += len(names[i]) + 1
	}
	const sortOrder = "ascii"
	size += 2*len(h.fields) + len(sortOrder) + 1
	h.headerSize = (size + headerUnit - 1) / headerUnit * headerUnit

	b := make([]byte, h.headerSize)
	putLE16(b, offRecordSize, h.recordSize)
	putLE16(b, offHeaderSize, h.headerSize)
	b[offFileType] = byte(h.fileType)
	b[offMaxTable] = byte(h.maxTableSize) //nolint:gosec // G115: chosen from a fixed list
	h.putCounters(b)
	putLE16(b, offNumFields, len(h.fields))
	putLE16(b, offKeyFields, h.keyFields)
	b[offVersion] = h.version
	putLE16(b, offFileVerID3, 0x0106)
	putLE16(b, offFileVerID4, 0x0106)
	putLE16(b, offNumFields2, len(h.fields))
	binary.LittleEndian.PutUint16(b[offCodePage:], h.codePage)
	p := offFieldInfo4
	for _, f := range h.fields {
		b[p] = byte(f.Type)
		b[p+1] = byte(f.Len) //nolint:gosec // G115: validated by Create
		p += 2
	}
	p += 4 + 4*len(h.fields)
	copy(b[p:], tableName)
	p += h.tableNameLen()
	for _, name := range names {
		p += copy(b[p:], name) + 1
	}
	for i := range h.fields {
		putLE16(b, p, i+1)
		p += 2
	}
	copy(b[p:], sortOrder)
	return b, nil
}

// counterSpan is the byte range rewritten by putCounters.
const counterSpan = offLastBlock + 2

// putCounters writes the record and block counters that change on append.
func (h *header) putCounters(b []byte) {
	binary.LittleEndian.PutUint32(b[offNumRecords:], uint32(h.numRecords)) //nolint:gosec // G115: bounded by the block count
	putLE16(b, offUsedBlocks, h.usedBlocks)
	putLE16(b, offFileBlocks, h.fileBlocks)
	putLE16(b, offFirstBlock, h.firstBlock)
	putLE16(b, offLastBlock, h.lastBlock)
	if len(b) > offMaxBlocks+2 {
		putLE16(b, offMaxBlocks, h.fileBlocks)
	}
}

// pickMaxTableSize returns the smallest block size unit, in KiB, holding at
// least one record.
func pickMaxTableSize(recordSize int) int {
	for _, n := range []int{2, 4, 8, 16, 32} {
		if recordSize <= n*0x400-blockHeader {
			return n
		}
	}
	return 0
}

func validateFields(fields []Field) error {
	if len(fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if slices.Contains([]byte(f.Name), 0) {
			return fmt.Errorf("field %d: name contains NUL", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q: duplicate name", f.Name)
		}
		seen[f.Name] = true
		if f.Len <= 0 || f.Len > maxFieldLen {
			return fmt.Errorf("field %q: length %d out of range 1-%d", f.Name, f.Len, maxFieldLen)
		}
		if want := f.Type.DefaultLen(); want != 0 && f.Len != want {
			return fmt.Errorf("field %q: %s fields are %d bytes, got %d", f.Name, f.Type, want, f.Len)
		}
	}
	if n := RecordSize(fields); n > maxRecordSize {
		return fmt.Errorf("record size %d exceeds %d", n, maxRecordSize)
	}
	return nil
}
