// Package paradox reads and writes Paradox desktop database tables (.db).
//
// # Overview
//
// A [Table] is opened for the duration of one operation and closed again; no
// handle is meant to outlive the request that acquired it. Records are raw
// byte buffers of [Table.RecordSize] bytes laid out as the concatenation of
// the table's fields in declared order. The typed accessors ([GetShort],
// [PutLong], [Charset.GetAlpha], ...) operate on the slice of such a buffer
// that belongs to a single field.
//
// # File Format
//
// A file starts with a header whose size is a multiple of 2KiB. Integers in
// the header are little-endian. The header lists field types and lengths,
// then the field names. Data follows in fixed-size blocks forming a doubly
// linked list; each block starts with a 6 byte header (next block, previous
// block, offset of the last record).
//
// Field data is big-endian with the sign bit flipped so that byte order
// matches value order. A field made only of zero bytes is null.
//
// # Lifecycle
//
// [Boot] must be called once before any table is opened and [Shutdown] once
// when the process is done with tables.
package paradox
