// Tool argument types.
//
// Each request binds itself leniently from the raw arguments object and then
// validates in a fixed order: table_name first, then the tool specific
// arguments. Struct tags drive the schemas published by tools/list.

package tools

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/invopop/jsonschema"
)

// request is implemented by every tool argument type.
type request interface {
	bind(args map[string]any)
	Validate() error
}

func stringArg(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	return s, ok
}

func objectArg(args map[string]any, key string) (map[string]any, bool) {
	m, ok := args[key].(map[string]any)
	return m, ok
}

func arrayArg(args map[string]any, key string) ([]any, bool) {
	a, ok := args[key].([]any)
	return a, ok
}

// intArg returns a whole JSON number as an int.
func intArg(args map[string]any, key string) (int, bool) {
	var f float64
	switch n := args[key].(type) {
	case json.Number:
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return clampInt(i), true
		}
		v, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = v
	case float64:
		f = n
	case int:
		return n, true
	case int64:
		return clampInt(n), true
	default:
		return 0, false
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, false
	}
	return clampInt(int64(f)), true
}

// uintArg is intArg restricted to non-negative values.
func uintArg(args map[string]any, key string) (int, bool) {
	i, ok := intArg(args, key)
	if !ok || i < 0 {
		return 0, false
	}
	return i, true
}

func clampInt(i int64) int {
	if i > math.MaxInt {
		return math.MaxInt
	}
	if i < math.MinInt {
		return math.MinInt
	}
	return int(i)
}

// noArgs is the request of tools without arguments.
type noArgs struct{}

func (*noArgs) bind(map[string]any) {}

// Validate implements request.
func (*noArgs) Validate() error { return nil }

// tableArg is embedded by every request naming a table.
type tableArg struct {
	TableName string `json:"table_name" jsonschema_description:"The name of the table"`
	hasTable  bool
}

func (r *tableArg) bind(args map[string]any) {
	r.TableName, r.hasTable = stringArg(args, "table_name")
}

// Validate implements request.
func (r *tableArg) Validate() error {
	if !r.hasTable {
		return MissingField("table_name")
	}
	return nil
}

// readSchemaRequest is the argument of read_table_schema.
type readSchemaRequest struct {
	tableArg
}

// JSONSchemaExtend gives table_name the example used by read_table_schema.
func (readSchemaRequest) JSONSchemaExtend(s *jsonschema.Schema) {
	if p, ok := s.Properties.Get("table_name"); ok {
		p.Description = "The name of the table (e.g., 'customers')"
	}
}

// readDataRequest is the argument of read_table_data.
type readDataRequest struct {
	tableArg
	Limit    int `json:"limit,omitempty" jsonschema:"minimum=0,default=100" jsonschema_description:"Maximum number of records to read (default: 100)"`
	hasLimit bool
}

func (r *readDataRequest) bind(args map[string]any) {
	r.tableArg.bind(args)
	r.Limit, r.hasLimit = uintArg(args, "limit")
}

// searchRequest is the argument of search_table.
type searchRequest struct {
	tableArg
	Query    map[string]any `json:"query" jsonschema_description:"Field-value pairs to match (e.g., {\"ID\": \"123\"})"`
	hasQuery bool
}

func (r *searchRequest) bind(args map[string]any) {
	r.tableArg.bind(args)
	r.Query, r.hasQuery = objectArg(args, "query")
}

// Validate implements request.
func (r *searchRequest) Validate() error {
	if err := r.tableArg.Validate(); err != nil {
		return err
	}
	if !r.hasQuery {
		return InvalidField("query object")
	}
	return nil
}

// fieldSpec is one column of create_table.
type fieldSpec struct {
	Name   string `json:"name" jsonschema_description:"Field name"`
	Type   string `json:"type" jsonschema_description:"Field type (ALPHA, SHORT, LONG, NUMBER, DATE, LOGICAL, etc.)"`
	Length int    `json:"length,omitempty" jsonschema_description:"Length for ALPHA fields"`
}

// createRequest is the argument of create_table.
type createRequest struct {
	TableName string      `json:"table_name" jsonschema_description:"The name of the table to create (e.g., 'new_table')"`
	Fields    []fieldSpec `json:"fields" jsonschema_description:"Array of field definitions"`
	hasTable  bool
	hasFields bool
}

func (r *createRequest) bind(args map[string]any) {
	r.TableName, r.hasTable = stringArg(args, "table_name")
	items, ok := arrayArg(args, "fields")
	r.hasFields = ok
	r.Fields = make([]fieldSpec, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		f := fieldSpec{Name: "UNKNOWN", Type: "ALPHA"}
		if s, ok := stringArg(obj, "name"); ok {
			f.Name = s
		}
		if s, ok := stringArg(obj, "type"); ok {
			f.Type = s
		}
		f.Length, _ = intArg(obj, "length")
		r.Fields = append(r.Fields, f)
	}
}

// Validate implements request.
func (r *createRequest) Validate() error {
	if !r.hasTable {
		return MissingField("table_name")
	}
	if !r.hasFields {
		return InvalidField("fields array")
	}
	return nil
}

// insertRequest is the argument of insert_record.
type insertRequest struct {
	tableArg
	Record    map[string]any `json:"record" jsonschema_description:"The record data to insert"`
	hasRecord bool
}

func (r *insertRequest) bind(args map[string]any) {
	r.tableArg.bind(args)
	r.Record, r.hasRecord = objectArg(args, "record")
}

// Validate implements request.
func (r *insertRequest) Validate() error {
	if err := r.tableArg.Validate(); err != nil {
		return err
	}
	if !r.hasRecord {
		return MissingField("record object")
	}
	return nil
}

// updateRequest is the argument of update_record.
type updateRequest struct {
	tableArg
	Index     int            `json:"index" jsonschema:"minimum=0" jsonschema_description:"The 0-based index of the record to update"`
	Record    map[string]any `json:"record" jsonschema_description:"The new record data"`
	hasIndex  bool
	hasRecord bool
}

func (r *updateRequest) bind(args map[string]any) {
	r.tableArg.bind(args)
	r.Index, r.hasIndex = uintArg(args, "index")
	r.Record, r.hasRecord = objectArg(args, "record")
}

// Validate implements request.
//
// The record is checked before the index.
func (r *updateRequest) Validate() error {
	if err := r.tableArg.Validate(); err != nil {
		return err
	}
	if !r.hasRecord {
		return MissingField("record object")
	}
	if !r.hasIndex {
		return MissingField("record index")
	}
	return nil
}
