// Table handles: open, create, record access.

package paradox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

var (
	// ErrReadOnly is returned by writes on a table opened with ReadOnly.
	ErrReadOnly = errors.New("table opened read-only")
	// ErrRecordNotFound is returned for record indexes past the end of the table.
	ErrRecordNotFound = errors.New("record not found")
	// ErrBufferSize is returned when a record buffer is not RecordSize bytes long.
	ErrBufferSize = errors.New("record buffer size mismatch")
	// ErrTableFull is returned when no more data blocks can be addressed.
	ErrTableFull = errors.New("table is full")
)

// OpenMode selects how Open accesses the file.
type OpenMode int

const (
	// ReadOnly opens the table for reading.
	ReadOnly OpenMode = iota
	// ReadWrite opens the table for reading and writing records.
	ReadWrite
)

// block is one data block of the record chain.
type block struct {
	num   int // 1-based block number in the file
	first int // index of the first record stored in the block
	count int
}

// Table is an open Paradox table.
//
// A Table is not safe for concurrent use.
type Table struct {
	f        *os.File
	writable bool
	h        *header
	cs       Charset
	perBlock int
	blocks   []block
}

// Open opens an existing table file.
func Open(path string, mode OpenMode) (*Table, error) {
	if !booted() {
		return nil, ErrNotBooted
	}
	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0) //nolint:gosec // G304: path is resolved under the configured location
	if err != nil {
		return nil, err
	}
	h, err := readHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	t := &Table{
		f:        f,
		writable: mode == ReadWrite,
		h:        h,
		cs:       CharsetFor(h.codePage),
		perBlock: (h.blockSize() - blockHeader) / h.recordSize,
	}
	if err := t.loadBlocks(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return t, nil
}

// Create writes a new empty table and returns it opened ReadWrite.
//
// Create takes its own copy of fields; the caller keeps ownership of the
// slice it passed. An existing file at path is never overwritten.
func Create(path string, fields []Field, ft FileType) (*Table, error) {
	if !booted() {
		return nil, ErrNotBooted
	}
	owned := cloneFields(fields)
	if err := validateFields(owned); err != nil {
		return nil, err
	}
	recordSize := RecordSize(owned)
	maxTableSize := pickMaxTableSize(recordSize)
	if maxTableSize == 0 {
		return nil, fmt.Errorf("record size %d does not fit any block size", recordSize)
	}
	h := &header{
		recordSize:   recordSize,
		fileType:     ft,
		maxTableSize: maxTableSize,
		version:      fileVersion7,
		codePage:     DefaultCodePage,
		tableName:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		fields:       owned,
	}
	b, err := h.encode()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // G302,G304: table files are shared with desktop tools
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteAt(b, 0); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return &Table{
		f:        f,
		writable: true,
		h:        h,
		cs:       CharsetFor(h.codePage),
		perBlock: (h.blockSize() - blockHeader) / recordSize,
	}, nil
}

// cloneFields copies the descriptors, names included, so the table does not
// share memory with its caller.
func cloneFields(fields []Field) []Field {
	out := slices.Clone(fields)
	for i := range out {
		out[i].Name = strings.Clone(out[i].Name)
	}
	return out
}

// Close flushes and releases the file.
func (t *Table) Close() error {
	if t.f == nil {
		return nil
	}
	var err error
	if t.writable {
		err = t.f.Sync()
	}
	if err2 := t.f.Close(); err == nil {
		err = err2
	}
	t.f = nil
	return err
}

// Fields returns the field descriptors in declared order.
func (t *Table) Fields() []Field {
	return slices.Clone(t.h.fields)
}

// RecordSize returns the declared size of one record in bytes.
func (t *Table) RecordSize() int {
	return t.h.recordSize
}

// NumRecords returns the number of records reachable through the block chain.
func (t *Table) NumRecords() int {
	return t.h.numRecords
}

// Charset returns the converter for the table's code page.
func (t *Table) Charset() Charset {
	return t.cs
}

func (t *Table) blockOffset(num int) int64 {
	return int64(t.h.headerSize) + int64(num-1)*int64(t.h.blockSize())
}

// loadBlocks walks the data block chain from the first block.
func (t *Table) loadBlocks() error {
	seen := make(map[int]bool)
	var hdr [blockHeader]byte
	total := 0
	for num := t.h.firstBlock; num != 0; {
		if seen[num] || num > t.h.fileBlocks {
			return fmt.Errorf("%w: bad block link %d", ErrCorrupt, num)
		}
		seen[num] = true
		if _, err := t.f.ReadAt(hdr[:], t.blockOffset(num)); err != nil {
			return fmt.Errorf("%w: block %d: %w", ErrCorrupt, num, err)
		}
		next := le16(hdr[:], 0)
		addDataSize := int(int16(binary.LittleEndian.Uint16(hdr[4:]))) //nolint:gosec // G115: signed on disk
		count := 0
		if addDataSize >= 0 {
			count = addDataSize/t.h.recordSize + 1
		}
		if count > t.perBlock {
			return fmt.Errorf("%w: block %d holds %d records, max %d", ErrCorrupt, num, count, t.perBlock)
		}
		t.blocks = append(t.blocks, block{num: num, first: total, count: count})
		total += count
		num = next
	}
	t.h.numRecords = total
	return nil
}

// locate returns the file offset of record i.
func (t *Table) locate(i int) (int64, error) {
	if i < 0 || i >= t.h.numRecords {
		return 0, fmt.Errorf("%w: index %d of %d", ErrRecordNotFound, i, t.h.numRecords)
	}
	j := sort.Search(len(t.blocks), func(j int) bool {
		return t.blocks[j].first+t.blocks[j].count > i
	})
	b := t.blocks[j]
	return t.blockOffset(b.num) + blockHeader + int64(i-b.first)*int64(t.h.recordSize), nil
}

// GetRecord reads record i into buf.
func (t *Table) GetRecord(i int, buf []byte) error {
	if len(buf) != t.h.recordSize {
		return ErrBufferSize
	}
	off, err := t.locate(i)
	if err != nil {
		return err
	}
	_, err = t.f.ReadAt(buf, off)
	return err
}

// PutRecordAt overwrites record i with buf.
func (t *Table) PutRecordAt(i int, buf []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	if len(buf) != t.h.recordSize {
		return ErrBufferSize
	}
	off, err := t.locate(i)
	if err != nil {
		return err
	}
	_, err = t.f.WriteAt(buf, off)
	return err
}

// AppendRecord adds buf as a new last record, allocating a data block when
// the last one is full.
func (t *Table) AppendRecord(buf []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	if len(buf) != t.h.recordSize {
		return ErrBufferSize
	}
	if n := len(t.blocks); n > 0 && t.blocks[n-1].count < t.perBlock {
		last := &t.blocks[n-1]
		off := t.blockOffset(last.num) + blockHeader + int64(last.count)*int64(t.h.recordSize)
		if _, err := t.f.WriteAt(buf, off); err != nil {
			return err
		}
		last.count++
		if err := t.writeAddDataSize(last); err != nil {
			return err
		}
	} else if err := t.appendBlock(buf); err != nil {
		return err
	}
	t.h.numRecords++
	return t.writeCounters()
}

// appendBlock writes a new block at the end of the file holding buf and
// links it after the current last block.
func (t *Table) appendBlock(buf []byte) error {
	if t.h.fileBlocks >= 0xffff {
		return ErrTableFull
	}
	num := t.h.fileBlocks + 1
	prev := 0
	if n := len(t.blocks); n > 0 {
		prev = t.blocks[n-1].num
	}
	data := make([]byte, t.h.blockSize())
	putLE16(data, 0, 0)
	putLE16(data, 2, prev)
	putLE16(data, 4, 0)
	copy(data[blockHeader:], buf)
	if _, err := t.f.WriteAt(data, t.blockOffset(num)); err != nil {
		return err
	}
	if prev != 0 {
		var link [2]byte
		putLE16(link[:], 0, num)
		if _, err := t.f.WriteAt(link[:], t.blockOffset(prev)); err != nil {
			return err
		}
	} else {
		t.h.firstBlock = num
	}
	t.h.lastBlock = num
	t.h.fileBlocks = num
	t.h.usedBlocks++
	t.blocks = append(t.blocks, block{num: num, first: t.h.numRecords, count: 1})
	return nil
}

func (t *Table) writeAddDataSize(b *block) error {
	var v [2]byte
	binary.LittleEndian.PutUint16(v[:], uint16((b.count-1)*t.h.recordSize)) //nolint:gosec // G115: bounded by the block size
	_, err := t.f.WriteAt(v[:], t.blockOffset(b.num)+4)
	return err
}

func (t *Table) writeCounters() error {
	var b [counterSpan]byte
	if _, err := t.f.ReadAt(b[:], 0); err != nil {
		return err
	}
	t.h.putCounters(b[:])
	_, err := t.f.WriteAt(b[offNumRecords:], offNumRecords)
	return err
}
