// Package records converts between Paradox record buffers and JSON values.
//
// A [Layout] fixes the byte offset of every field once per opened table.
// [DecodeField] and [EncodeField] translate a single field slice, and
// [Matches] implements the search comparison used by table queries.
package records
