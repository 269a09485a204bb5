package tools

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/maruel/pxmcp/internal/paradox"
)

// args decodes a JSON object the way the transport does.
func args(t *testing.T, s string) map[string]any {
	t.Helper()
	d := json.NewDecoder(strings.NewReader(s))
	d.UseNumber()
	var m map[string]any
	if err := d.Decode(&m); err != nil {
		t.Fatalf("bad test arguments %s: %v", s, err)
	}
	return m
}

func newDispatcher(t *testing.T, cfg Config) *Dispatcher {
	t.Helper()
	paradox.Boot()
	t.Cleanup(paradox.Shutdown)
	if cfg.Location == "" {
		cfg.Location = t.TempDir()
	}
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

// callTool runs a tool and fails the test if the result's error flag differs
// from wantErr.
func callTool(t *testing.T, d *Dispatcher, name, arguments string, wantErr bool) *Result {
	t.Helper()
	var a map[string]any
	if arguments != "" {
		a = args(t, arguments)
	}
	res := d.Call(t.Context(), name, a)
	if res.IsError != wantErr {
		t.Fatalf("%s(%s) IsError = %v, want %v: %s", name, arguments, res.IsError, wantErr, res.Text())
	}
	return res
}

func decodeRecords(t *testing.T, res *Result) []map[string]any {
	t.Helper()
	if len(res.Content) != 2 {
		t.Fatalf("got %d content items, want 2: %s", len(res.Content), res.Text())
	}
	var out []map[string]any
	if err := json.Unmarshal([]byte(res.Content[1].Text), &out); err != nil {
		t.Fatalf("bad records JSON %q: %v", res.Content[1].Text, err)
	}
	return out
}

const peopleFields = `[
	{"name": "ID", "type": "LONG"},
	{"name": "Name", "type": "ALPHA", "length": 20},
	{"name": "Active", "type": "LOGICAL"}
]`

func TestCatalog(t *testing.T) {
	d := newDispatcher(t, Config{})
	defs := d.Definitions()
	var names []string
	for _, def := range defs {
		names = append(names, def.Name)
	}
	want := []string{
		"get_server_status", "list_tables", "read_table_schema", "read_table_data",
		"search_table", "create_table", "insert_record", "update_record",
	}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("Definitions() = %v, want %v", names, want)
	}
	t.Run("required", func(t *testing.T) {
		tests := []struct {
			tool string
			want []string
		}{
			{"get_server_status", nil},
			{"read_table_schema", []string{"table_name"}},
			{"read_table_data", []string{"table_name"}},
			{"search_table", []string{"table_name", "query"}},
			{"create_table", []string{"table_name", "fields"}},
			{"insert_record", []string{"table_name", "record"}},
			{"update_record", []string{"table_name", "index", "record"}},
		}
		for _, tt := range tests {
			got := d.tools[tt.tool].def.InputSchema.Required
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s required = %v, want %v", tt.tool, got, tt.want)
			}
		}
	})
	t.Run("json", func(t *testing.T) {
		b, err := json.Marshal(d.tools["update_record"].def)
		if err != nil {
			t.Fatal(err)
		}
		s := string(b)
		// Properties keep declaration order.
		i, j, k := strings.Index(s, `"table_name"`), strings.Index(s, `"index"`), strings.Index(s, `"record"`)
		if i < 0 || i > j || j > k {
			t.Errorf("property order wrong in %s", s)
		}
		if !strings.Contains(s, `"inputSchema":{"type":"object"`) {
			t.Errorf("missing object schema in %s", s)
		}
		b, err = json.Marshal(d.tools["list_tables"].def.InputSchema)
		if err != nil {
			t.Fatal(err)
		}
		if got := string(b); got != `{"type":"object","properties":{}}` {
			t.Errorf("list_tables schema = %s", got)
		}
	})
	t.Run("descriptions", func(t *testing.T) {
		tests := []struct {
			tool string
			want string
		}{
			{"read_table_schema", "The name of the table (e.g., 'customers')"},
			{"read_table_data", "The name of the table"},
			{"create_table", "The name of the table to create (e.g., 'new_table')"},
		}
		for _, tt := range tests {
			p := d.tools[tt.tool].def.InputSchema.Property("table_name")
			if p == nil {
				t.Fatalf("%s: table_name property missing", tt.tool)
			}
			if p.Description != tt.want {
				t.Errorf("%s table_name description = %q, want %q", tt.tool, p.Description, tt.want)
			}
		}
	})
	t.Run("limit default", func(t *testing.T) {
		d := newDispatcher(t, Config{DefaultReadLimit: 25})
		limit := d.tools["read_table_data"].def.InputSchema.Property("limit")
		if limit == nil {
			t.Fatal("limit property missing")
		}
		if limit.Default != 25 {
			t.Errorf("limit default = %v, want 25", limit.Default)
		}
		if limit.Type != "integer" {
			t.Errorf("limit type = %q, want integer", limit.Type)
		}
	})
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without location succeeded")
	}
	if _, err := New(Config{Location: t.TempDir(), SearchLimit: -1}); err == nil {
		t.Error("New() with negative limit succeeded")
	}
	d, err := New(Config{Location: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Config(); got.SearchLimit != DefaultSearchLimit || got.DefaultReadLimit != DefaultReadLimit {
		t.Errorf("Config() = %+v, want default limits", got)
	}
}

func TestServerStatus(t *testing.T) {
	t.Run("absolute", func(t *testing.T) {
		dir := t.TempDir()
		d := newDispatcher(t, Config{Location: dir, PermitEditing: true})
		res := callTool(t, d, "get_server_status", "", false)
		want := "Paradox Server Configuration:\n- Location: " + dir + "\n- Permit Editing: true"
		if got := res.Text(); got != want {
			t.Errorf("get_server_status = %q, want %q", got, want)
		}
	})
	t.Run("relative", func(t *testing.T) {
		d := newDispatcher(t, Config{Location: "data/tables"})
		res := callTool(t, d, "get_server_status", "", false)
		want := "Paradox Server Configuration:\n- Location: data/tables\n- Permit Editing: false"
		if got := res.Text(); got != want {
			t.Errorf("get_server_status = %q, want %q", got, want)
		}
		if !filepath.IsAbs(d.root) || !strings.HasSuffix(d.root, filepath.Join("data", "tables")) {
			t.Errorf("root = %q, want an absolute path ending in data/tables", d.root)
		}
		if got := d.Config().Location; got != "data/tables" {
			t.Errorf("Config().Location = %q, want data/tables", got)
		}
	})
}

func TestListTables(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		d := newDispatcher(t, Config{})
		if got := callTool(t, d, "list_tables", "", false).Text(); got != "No .db files found in location." {
			t.Errorf("list_tables = %q", got)
		}
	})
	t.Run("unreadable location", func(t *testing.T) {
		d := newDispatcher(t, Config{Location: filepath.Join(t.TempDir(), "missing")})
		if got := callTool(t, d, "list_tables", "", false).Text(); got != "No .db files found in location." {
			t.Errorf("list_tables = %q", got)
		}
	})
	t.Run("files", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"b.db", "A.DB", "notes.txt", "c.px"} {
			if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
				t.Fatal(err)
			}
		}
		if err := os.Mkdir(filepath.Join(dir, "dir.db"), 0o700); err != nil {
			t.Fatal(err)
		}
		d := newDispatcher(t, Config{Location: dir})
		if got := callTool(t, d, "list_tables", "", false).Text(); got != "Found tables: A.DB, b.db" {
			t.Errorf("list_tables = %q", got)
		}
	})
}

func TestEditingNotPermitted(t *testing.T) {
	d := newDispatcher(t, Config{})
	for _, name := range []string{"create_table", "insert_record", "update_record"} {
		for _, a := range []string{"", `{}`, `{"table_name": "x", "fields": [], "record": {}, "index": 0}`} {
			res := callTool(t, d, name, a, true)
			if got := res.Text(); got != "Editing is not permitted on this server." {
				t.Errorf("%s(%s) = %q", name, a, got)
			}
		}
	}
	if entries, _ := os.ReadDir(d.root); len(entries) != 0 {
		t.Errorf("location has %d entries, want 0", len(entries))
	}
}

func TestValidation(t *testing.T) {
	d := newDispatcher(t, Config{PermitEditing: true})
	tests := []struct {
		tool string
		args string
		want string
	}{
		{"read_table_schema", `{}`, "Missing table_name"},
		{"read_table_schema", `{"table_name": 3}`, "Missing table_name"},
		{"read_table_data", `{"limit": 3}`, "Missing table_name"},
		{"search_table", `{"query": {}}`, "Missing table_name"},
		{"search_table", `{"table_name": "t"}`, "Missing or invalid query object"},
		{"search_table", `{"table_name": "t", "query": "ID=1"}`, "Missing or invalid query object"},
		{"create_table", `{"fields": []}`, "Missing table_name"},
		{"create_table", `{"table_name": "t"}`, "Missing or invalid fields array"},
		{"create_table", `{"table_name": "t", "fields": {}}`, "Missing or invalid fields array"},
		{"insert_record", `{"record": {}}`, "Missing table_name"},
		{"insert_record", `{"table_name": "t"}`, "Missing record object"},
		{"update_record", `{"index": 0}`, "Missing table_name"},
		{"update_record", `{"table_name": "t"}`, "Missing record object"},
		{"update_record", `{"table_name": "t", "index": 0}`, "Missing record object"},
		{"update_record", `{"table_name": "t", "record": {}}`, "Missing record index"},
		{"update_record", `{"table_name": "t", "record": {}, "index": -1}`, "Missing record index"},
		{"update_record", `{"table_name": "t", "record": {}, "index": "0"}`, "Missing record index"},
		{"read_table_schema", `{"table_name": "../escape"}`, "Table '../escape' is outside the configured location."},
		{"read_table_schema", `{"table_name": "a\u0000b"}`, "Invalid table path string."},
		{"drop_table", `{}`, "Tool not found: drop_table"},
	}
	for _, tt := range tests {
		t.Run(tt.tool+" "+tt.args, func(t *testing.T) {
			res := callTool(t, d, tt.tool, tt.args, true)
			if got := res.Text(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMissingTable(t *testing.T) {
	d := newDispatcher(t, Config{PermitEditing: true})
	path := filepath.Join(d.root, "nope.db")
	res := callTool(t, d, "read_table_data", `{"table_name": "nope"}`, true)
	if got, want := res.Text(), "Failed to open table '"+path+"'"; got != want {
		t.Errorf("read_table_data = %q, want %q", got, want)
	}
	res = callTool(t, d, "insert_record", `{"table_name": "nope", "record": {}}`, true)
	if got, want := res.Text(), "Failed to open table '"+path+"' for writing. Ensure it's not locked."; got != want {
		t.Errorf("insert_record = %q, want %q", got, want)
	}
}

func TestNotBooted(t *testing.T) {
	d, err := New(Config{Location: t.TempDir(), PermitEditing: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct{ tool, args string }{
		{"read_table_schema", `{"table_name": "x"}`},
		{"create_table", `{"table_name": "x", "fields": [{"name": "A", "type": "SHORT"}]}`},
	} {
		res := callTool(t, d, tc.tool, tc.args, true)
		if got := res.Text(); got != "Failed to initialize PX library." {
			t.Errorf("%s = %q", tc.tool, got)
		}
	}
}

func TestLifecycle(t *testing.T) {
	d := newDispatcher(t, Config{PermitEditing: true})

	res := callTool(t, d, "create_table", `{"table_name": "test_table", "fields": `+peopleFields+`}`, false)
	if got := res.Text(); got != "Successfully created table 'test_table' with 3 fields." {
		t.Errorf("create_table = %q", got)
	}
	callTool(t, d, "create_table", `{"table_name": "test_table", "fields": `+peopleFields+`}`, true)

	if got := callTool(t, d, "list_tables", "", false).Text(); got != "Found tables: test_table.db" {
		t.Errorf("list_tables = %q", got)
	}

	for _, rec := range []string{
		`{"ID": 1, "Name": "Alice", "Active": true}`,
		`{"ID": 2, "Name": "Bob", "Active": false}`,
		`{"ID": 3, "Name": "Malika"}`,
	} {
		res := callTool(t, d, "insert_record", `{"table_name": "test_table", "record": `+rec+`}`, false)
		if got := res.Text(); got != "Successfully inserted record in table 'test_table'." {
			t.Errorf("insert_record = %q", got)
		}
	}

	t.Run("schema", func(t *testing.T) {
		res := callTool(t, d, "read_table_schema", `{"table_name": "test_table"}`, false)
		if got := res.Content[0].Text; got != "Schema for table 'test_table':" {
			t.Errorf("heading = %q", got)
		}
		var got []schemaField
		if err := json.Unmarshal([]byte(res.Content[1].Text), &got); err != nil {
			t.Fatal(err)
		}
		want := []schemaField{{"ID", "LONG", 4}, {"Name", "ALPHA", 20}, {"Active", "LOGICAL", 1}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("schema = %+v, want %+v", got, want)
		}
	})
	t.Run("search", func(t *testing.T) {
		res := callTool(t, d, "search_table", `{"table_name": "test_table", "query": {"Name": "ali"}}`, false)
		if got := res.Content[0].Text; got != "Search results for table 'test_table' (2 found):" {
			t.Errorf("heading = %q", got)
		}
		recs := decodeRecords(t, res)
		if len(recs) != 2 || recs[0]["Name"] != "Alice" || recs[1]["Name"] != "Malika" {
			t.Errorf("search = %v", recs)
		}
		recs = decodeRecords(t, callTool(t, d, "search_table", `{"table_name": "test_table", "query": {"Name": "ali", "Active": true}}`, false))
		if len(recs) != 1 || recs[0]["ID"] != 1.0 {
			t.Errorf("search = %v", recs)
		}
		recs = decodeRecords(t, callTool(t, d, "search_table", `{"table_name": "test_table", "query": {"Name": "zed"}}`, false))
		if len(recs) != 0 {
			t.Errorf("search = %v", recs)
		}
	})
	t.Run("update", func(t *testing.T) {
		res := callTool(t, d, "update_record", `{"table_name": "test_table", "index": 0, "record": {"Name": "Alicia"}}`, false)
		if got := res.Text(); got != "Successfully updated record in table 'test_table'." {
			t.Errorf("update_record = %q", got)
		}
		res = callTool(t, d, "update_record", `{"table_name": "test_table", "index": 5, "record": {"Name": "x"}}`, true)
		if got := res.Text(); got != "Record at index 5 not found." {
			t.Errorf("update_record = %q", got)
		}
	})
	t.Run("read", func(t *testing.T) {
		res := callTool(t, d, "read_table_data", `{"table_name": "test_table", "limit": 10}`, false)
		if got := res.Content[0].Text; got != "Data for table 'test_table' (3 records):" {
			t.Errorf("heading = %q", got)
		}
		recs := decodeRecords(t, res)
		want := map[string]any{"ID": 1.0, "Name": "Alicia", "Active": true}
		if !reflect.DeepEqual(recs[0], want) {
			t.Errorf("record 0 = %v, want %v", recs[0], want)
		}
		if recs[2]["Active"] != false {
			t.Errorf("record 2 Active = %v, want false", recs[2]["Active"])
		}
	})
	t.Run("limits", func(t *testing.T) {
		tests := []struct {
			args string
			want int
		}{
			{`{"table_name": "test_table", "limit": 0}`, 0},
			{`{"table_name": "test_table", "limit": 2}`, 2},
			{`{"table_name": "test_table"}`, 3},
			{`{"table_name": "test_table", "limit": -4}`, 3},
			{`{"table_name": "test_table", "limit": "2"}`, 3},
			{`{"table_name": "test_table.db", "limit": 1}`, 1},
		}
		for _, tt := range tests {
			if got := len(decodeRecords(t, callTool(t, d, "read_table_data", tt.args, false))); got != tt.want {
				t.Errorf("read_table_data(%s) returned %d records, want %d", tt.args, got, tt.want)
			}
		}
	})
}

func TestCreateTableLengths(t *testing.T) {
	d := newDispatcher(t, Config{PermitEditing: true})
	fields := `[
		{"name": "S", "type": "short"},
		{"name": "N", "type": "NUMBER", "length": 8},
		{"name": "C", "type": "CURRENCY", "length": 0},
		{"name": "D", "type": "DATE"},
		{"name": "X", "type": "VARCHAR", "length": 12},
		{"type": "ALPHA", "length": 5}
	]`
	callTool(t, d, "create_table", `{"table_name": "lengths", "fields": `+fields+`}`, false)
	res := callTool(t, d, "read_table_schema", `{"table_name": "lengths"}`, false)
	var got []schemaField
	if err := json.Unmarshal([]byte(res.Content[1].Text), &got); err != nil {
		t.Fatal(err)
	}
	want := []schemaField{
		{"S", "SHORT", 2},
		{"N", "NUMBER", 8},
		{"C", "CURRENCY", 8},
		{"D", "DATE", 4},
		{"X", "ALPHA", 12},
		{"UNKNOWN", "ALPHA", 5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("schema = %+v, want %+v", got, want)
	}
	res = callTool(t, d, "create_table", `{"table_name": "memo", "fields": [{"name": "M", "type": "MEMO"}]}`, true)
	if got := res.Text(); got != "Failed to create table 'memo'." {
		t.Errorf("create_table(memo) = %q", got)
	}
}

func TestSearchLimit(t *testing.T) {
	d := newDispatcher(t, Config{PermitEditing: true, SearchLimit: 2})
	callTool(t, d, "create_table", `{"table_name": "t", "fields": [{"name": "A", "type": "SHORT"}]}`, false)
	for range 5 {
		callTool(t, d, "insert_record", `{"table_name": "t", "record": {"A": 1}}`, false)
	}
	res := callTool(t, d, "search_table", `{"table_name": "t", "query": {}}`, false)
	if got := len(decodeRecords(t, res)); got != 2 {
		t.Errorf("search returned %d records, want 2", got)
	}
}

func TestUnsupportedTypePlaceholder(t *testing.T) {
	d := newDispatcher(t, Config{PermitEditing: true})
	callTool(t, d, "create_table", `{"table_name": "t", "fields": [{"name": "B", "type": "BYTES", "length": 4}]}`, false)
	callTool(t, d, "insert_record", `{"table_name": "t", "record": {"B": "ignored"}}`, false)
	res := callTool(t, d, "read_table_data", `{"table_name": "t"}`, false)
	if !strings.Contains(res.Content[1].Text, `"B": "<type 24>"`) {
		t.Errorf("read_table_data = %s", res.Content[1].Text)
	}
}

func TestNonFiniteNumber(t *testing.T) {
	d := newDispatcher(t, Config{PermitEditing: true})
	callTool(t, d, "create_table", `{"table_name": "t", "fields": [{"name": "ID", "type": "LONG"}, {"name": "P", "type": "NUMBER"}]}`, false)
	callTool(t, d, "insert_record", `{"table_name": "t", "record": {"ID": 1, "P": 2.5}}`, false)

	tbl, err := paradox.Open(filepath.Join(d.root, "t.db"), paradox.ReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, tbl.RecordSize())
	if err := tbl.GetRecord(0, buf); err != nil {
		t.Fatal(err)
	}
	if err := paradox.PutDouble(buf[4:12], math.Inf(1)); err != nil {
		t.Fatal(err)
	}
	if err := tbl.PutRecordAt(0, buf); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Close(); err != nil {
		t.Fatal(err)
	}

	want := map[string]any{"ID": 1.0, "P": nil}
	recs := decodeRecords(t, callTool(t, d, "read_table_data", `{"table_name": "t"}`, false))
	if len(recs) != 1 || !reflect.DeepEqual(recs[0], want) {
		t.Errorf("read_table_data = %v, want [%v]", recs, want)
	}
	recs = decodeRecords(t, callTool(t, d, "search_table", `{"table_name": "t", "query": {"ID": 1}}`, false))
	if len(recs) != 1 || !reflect.DeepEqual(recs[0], want) {
		t.Errorf("search_table = %v, want [%v]", recs, want)
	}
}

func TestSearchUnknownField(t *testing.T) {
	d := newDispatcher(t, Config{PermitEditing: true})
	callTool(t, d, "create_table", `{"table_name": "t", "fields": [{"name": "Name", "type": "ALPHA", "length": 10}]}`, false)
	callTool(t, d, "insert_record", `{"table_name": "t", "record": {"Name": "Alice"}}`, false)
	res := callTool(t, d, "search_table", `{"table_name": "t", "query": {"Name": "ali", "Nmae": "x"}}`, false)
	if got := res.Content[0].Text; got != "Search results for table 't' (1 found):" {
		t.Errorf("search_table = %q", got)
	}
}

type fakeHistory struct {
	msgs  []string
	files [][]string
}

func (f *fakeHistory) Commit(_ context.Context, msg string, files []string) error {
	f.msgs = append(f.msgs, msg)
	f.files = append(f.files, files)
	return nil
}

func TestHistory(t *testing.T) {
	h := &fakeHistory{}
	d := newDispatcher(t, Config{PermitEditing: true, History: h})
	callTool(t, d, "create_table", `{"table_name": "t", "fields": [{"name": "A", "type": "SHORT"}]}`, false)
	callTool(t, d, "insert_record", `{"table_name": "t", "record": {"A": 1}}`, false)
	callTool(t, d, "read_table_data", `{"table_name": "t"}`, false)
	callTool(t, d, "update_record", `{"table_name": "t", "index": 3, "record": {"A": 1}}`, true)
	want := []string{"create_table t.db", "insert_record t.db"}
	if !reflect.DeepEqual(h.msgs, want) {
		t.Errorf("commits = %v, want %v", h.msgs, want)
	}
	path := filepath.Join(d.root, "t.db")
	for _, files := range h.files {
		if !reflect.DeepEqual(files, []string{path}) {
			t.Errorf("files = %v, want [%s]", files, path)
		}
	}
}

func TestPrettyJSON(t *testing.T) {
	got, err := prettyJSON([]map[string]any{{"b": "<x>", "a": 1}})
	if err != nil {
		t.Fatal(err)
	}
	want := "[\n  {\n    \"a\": 1,\n    \"b\": \"<x>\"\n  }\n]"
	if got != want {
		t.Errorf("prettyJSON() = %q, want %q", got, want)
	}
	if got, _ := prettyJSON([]map[string]any{}); got != "[]" {
		t.Errorf("prettyJSON(empty) = %q", got)
	}
}
