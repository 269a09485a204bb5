// Routes tool calls to their handlers.

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maruel/ksid"
)

const (
	// DefaultSearchLimit caps the number of records search_table returns.
	DefaultSearchLimit = 1000
	// DefaultReadLimit is the read_table_data limit when none is given.
	DefaultReadLimit = 100
)

// Committer records table files after a mutating tool ran.
type Committer interface {
	Commit(ctx context.Context, msg string, files []string) error
}

// Config configures a Dispatcher.
type Config struct {
	// Location is the directory holding the tables.
	Location string
	// PermitEditing enables create_table, insert_record and update_record.
	PermitEditing bool
	// SearchLimit caps search_table results. 0 means DefaultSearchLimit.
	SearchLimit int
	// DefaultReadLimit is used when read_table_data gets no valid limit. 0
	// means DefaultReadLimit.
	DefaultReadLimit int
	// History, when set, is given the files touched by mutating tools.
	History Committer
}

// Dispatcher executes tool calls. Calls are independent; the dispatcher
// keeps no per-call state.
type Dispatcher struct {
	cfg Config
	// root is the absolute form of cfg.Location, used to resolve tables.
	root  string
	tools map[string]*tool
	names []string
}

type tool struct {
	def     Definition
	editing bool
	prepare func(args map[string]any) (func(context.Context, *call) (*Result, error), error)
}

// New returns a Dispatcher with the full tool catalog.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Location == "" {
		return nil, errors.New("location is required")
	}
	if cfg.SearchLimit < 0 || cfg.DefaultReadLimit < 0 {
		return nil, errors.New("limits must be non-negative")
	}
	if cfg.SearchLimit == 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	if cfg.DefaultReadLimit == 0 {
		cfg.DefaultReadLimit = DefaultReadLimit
	}
	root, err := filepath.Abs(cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid location: %w", err)
	}
	d := &Dispatcher{cfg: cfg, root: root, tools: make(map[string]*tool)}
	register(d, "get_server_status", "Get the status and configuration of the Paradox MCP server", false, d.getServerStatus)
	register(d, "list_tables", "List all Paradox tables (.db files) in the configured location", false, d.listTables)
	register(d, "read_table_schema", "Read the schema (field names and types) of a Paradox table", false, d.readTableSchema)
	register(d, "read_table_data", "Read records from a Paradox table", false, d.readTableData)
	register(d, "search_table", "Search for specific records in a Paradox table by field values", false, d.searchTable)
	register(d, "create_table", "Create a new Paradox table with a specific schema (requires editing permission)", true, d.createTable)
	register(d, "insert_record", "Add a new record to a Paradox table (requires editing permission)", true, d.insertRecord)
	register(d, "update_record", "Update an existing record in a Paradox table (requires editing permission)", true, d.updateRecord)

	// The published default follows the configuration.
	if limit := d.tools["read_table_data"].def.InputSchema.Property("limit"); limit != nil {
		limit.Default = cfg.DefaultReadLimit
		limit.Description = fmt.Sprintf("Maximum number of records to read (default: %d)", cfg.DefaultReadLimit)
	}
	return d, nil
}

// register adds a tool whose arguments bind into In.
func register[In any, PtrIn interface {
	*In
	request
}](d *Dispatcher, name, description string, editing bool, fn func(context.Context, *call, PtrIn) (*Result, error)) {
	d.tools[name] = &tool{
		def:     Definition{Name: name, Description: description, InputSchema: schemaFor[In]()},
		editing: editing,
		prepare: func(args map[string]any) (func(context.Context, *call) (*Result, error), error) {
			in := PtrIn(new(In))
			in.bind(args)
			if err := in.Validate(); err != nil {
				return nil, err
			}
			return func(ctx context.Context, c *call) (*Result, error) {
				return fn(ctx, c, in)
			}, nil
		},
	}
	d.names = append(d.names, name)
}

// Definitions returns the tool catalog in registration order.
func (d *Dispatcher) Definitions() []Definition {
	out := make([]Definition, 0, len(d.names))
	for _, n := range d.names {
		out = append(out, d.tools[n].def)
	}
	return out
}

// Config returns the effective configuration. Location is as given to New.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Call runs one tool. Failures are returned as error results, never as Go
// errors. A nil args is treated as an empty object.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) *Result {
	if args == nil {
		args = map[string]any{}
	}
	c := &call{id: ksid.NewID(), tool: name, start: time.Now()}
	c.to(ctx, stateValidating)
	t, ok := d.tools[name]
	if !ok {
		return c.reject(ctx, ToolNotFound(name))
	}
	// Permission is checked before any argument.
	if t.editing && !d.cfg.PermitEditing {
		return c.reject(ctx, EditingNotPermitted())
	}
	run, err := t.prepare(args)
	if err != nil {
		return c.reject(ctx, err)
	}
	c.to(ctx, stateExecuting)
	res, err := run(ctx, c)
	if t.editing {
		d.commitTouched(ctx, c)
	}
	if err != nil {
		slog.WarnContext(ctx, "Tool failed", "call", c.id.String(), "tool", name, "code", codeOf(err), "err", err)
		res = ErrorResult(err)
	}
	c.to(ctx, stateResponded)
	return res
}

// commitTouched hands the files a mutating tool wrote to the history.
//
// It runs whatever the tool outcome: a tool that failed after writing still
// changed the file. Commit errors are logged, not reported.
func (d *Dispatcher) commitTouched(ctx context.Context, c *call) {
	if d.cfg.History == nil || len(c.touched) == 0 {
		return
	}
	msg := fmt.Sprintf("%s %s", c.tool, filepath.Base(c.touched[0]))
	if err := d.cfg.History.Commit(ctx, msg, c.touched); err != nil {
		slog.ErrorContext(ctx, "Failed to commit table changes", "call", c.id.String(), "err", err)
	}
}

// callState is the life cycle of one tool call.
type callState int

const (
	stateIdle callState = iota
	stateValidating
	stateExecuting
	stateRejected
	stateResponded
)

func (s callState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateValidating:
		return "validating"
	case stateExecuting:
		return "executing"
	case stateRejected:
		return "rejected"
	case stateResponded:
		return "responded"
	default:
		return fmt.Sprintf("callState(%d)", int(s))
	}
}

// call is the state of a single tool call. It does not outlive Call.
type call struct {
	id      ksid.ID
	tool    string
	state   callState
	start   time.Time
	touched []string
}

func (c *call) to(ctx context.Context, s callState) {
	slog.DebugContext(ctx, "Tool call", "call", c.id.String(), "tool", c.tool, "from", c.state.String(), "to", s.String(), "elapsed", time.Since(c.start))
	c.state = s
}

// touch records a table file written by the call.
func (c *call) touch(path string) {
	c.touched = append(c.touched, path)
}

func (c *call) reject(ctx context.Context, err error) *Result {
	slog.InfoContext(ctx, "Tool call rejected", "call", c.id.String(), "tool", c.tool, "code", codeOf(err), "err", err)
	c.to(ctx, stateRejected)
	c.to(ctx, stateResponded)
	return ErrorResult(err)
}
