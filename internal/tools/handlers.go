// Tool implementations.

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maruel/pxmcp/internal/paradox"
	"github.com/maruel/pxmcp/internal/records"
)

func (d *Dispatcher) getServerStatus(_ context.Context, _ *call, _ *noArgs) (*Result, error) {
	return TextResult(fmt.Sprintf("Paradox Server Configuration:\n- Location: %s\n- Permit Editing: %t", d.cfg.Location, d.cfg.PermitEditing)), nil
}

func (d *Dispatcher) listTables(_ context.Context, _ *call, _ *noArgs) (*Result, error) {
	names := d.tableFiles()
	if len(names) == 0 {
		return TextResult("No .db files found in location."), nil
	}
	return TextResult("Found tables: " + strings.Join(names, ", ")), nil
}

// schemaField is one entry of read_table_schema.
type schemaField struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Length int    `json:"length"`
}

func (d *Dispatcher) readTableSchema(ctx context.Context, _ *call, req *readSchemaRequest) (*Result, error) {
	path, err := d.tablePath(req.TableName)
	if err != nil {
		return nil, err
	}
	return withTable(ctx, path, paradox.ReadOnly, func(t *paradox.Table) (*Result, error) {
		fields := t.Fields()
		out := make([]schemaField, 0, len(fields))
		for _, f := range fields {
			out = append(out, schemaField{Name: f.Name, Type: f.Type.String(), Length: f.Len})
		}
		js, err := prettyJSON(out)
		if err != nil {
			return nil, err
		}
		return TextResult(fmt.Sprintf("Schema for table '%s':", req.TableName), js), nil
	})
}

func (d *Dispatcher) readTableData(ctx context.Context, _ *call, req *readDataRequest) (*Result, error) {
	path, err := d.tablePath(req.TableName)
	if err != nil {
		return nil, err
	}
	limit := d.cfg.DefaultReadLimit
	if req.hasLimit {
		limit = req.Limit
	}
	return withTable(ctx, path, paradox.ReadOnly, func(t *paradox.Table) (*Result, error) {
		r, err := newReader(t, path)
		if err != nil {
			return nil, err
		}
		n := min(limit, t.NumRecords())
		out := make([]records.Record, 0, n)
		for i := range n {
			rec, err := r.Read(i)
			if err != nil {
				slog.WarnContext(ctx, "Skipping unreadable record", "table", path, "index", i, "err", err)
				continue
			}
			out = append(out, rec)
		}
		js, err := prettyJSON(out)
		if err != nil {
			return nil, err
		}
		return TextResult(fmt.Sprintf("Data for table '%s' (%d records):", req.TableName, len(out)), js), nil
	})
}

func (d *Dispatcher) searchTable(ctx context.Context, _ *call, req *searchRequest) (*Result, error) {
	path, err := d.tablePath(req.TableName)
	if err != nil {
		return nil, err
	}
	return withTable(ctx, path, paradox.ReadOnly, func(t *paradox.Table) (*Result, error) {
		r, err := newReader(t, path)
		if err != nil {
			return nil, err
		}
		out := make([]records.Record, 0)
		for i := range t.NumRecords() {
			if len(out) >= d.cfg.SearchLimit {
				break
			}
			rec, err := r.Read(i)
			if err != nil {
				slog.WarnContext(ctx, "Skipping unreadable record", "table", path, "index", i, "err", err)
				continue
			}
			if records.MatchesQuery(rec, req.Query) {
				out = append(out, rec)
			}
		}
		js, err := prettyJSON(out)
		if err != nil {
			return nil, err
		}
		return TextResult(fmt.Sprintf("Search results for table '%s' (%d found):", req.TableName, len(out)), js), nil
	})
}

func (d *Dispatcher) createTable(ctx context.Context, c *call, req *createRequest) (*Result, error) {
	path, err := d.tablePath(req.TableName)
	if err != nil {
		return nil, err
	}
	fields := make([]paradox.Field, 0, len(req.Fields))
	for _, spec := range req.Fields {
		typ := paradox.ParseFieldType(spec.Type)
		length := spec.Length
		if length <= 0 {
			length = typ.DefaultLen()
		}
		fields = append(fields, paradox.Field{Name: spec.Name, Type: typ, Len: length})
	}
	t, err := paradox.Create(path, fields, paradox.FileTypeIndexedDB)
	if err != nil {
		if errors.Is(err, paradox.ErrNotBooted) {
			return nil, BootFailed().Wrap(err)
		}
		return nil, Storage(fmt.Sprintf("Failed to create table '%s'.", req.TableName)).Wrap(err)
	}
	c.touch(path)
	if err := t.Close(); err != nil {
		return nil, Storage(fmt.Sprintf("Failed to create table '%s'.", req.TableName)).Wrap(err)
	}
	slog.InfoContext(ctx, "Created table", "path", path, "fields", len(fields))
	return TextResult(fmt.Sprintf("Successfully created table '%s' with %d fields.", req.TableName, len(req.Fields))), nil
}

func (d *Dispatcher) insertRecord(ctx context.Context, c *call, req *insertRequest) (*Result, error) {
	return d.writeRecord(ctx, c, req.TableName, nil, req.Record)
}

func (d *Dispatcher) updateRecord(ctx context.Context, c *call, req *updateRequest) (*Result, error) {
	return d.writeRecord(ctx, c, req.TableName, &req.Index, req.Record)
}

// writeRecord appends rec when index is nil and updates record *index
// otherwise.
func (d *Dispatcher) writeRecord(ctx context.Context, c *call, tableName string, index *int, rec map[string]any) (*Result, error) {
	path, err := d.tablePath(tableName)
	if err != nil {
		return nil, err
	}
	return withTable(ctx, path, paradox.ReadWrite, func(t *paradox.Table) (*Result, error) {
		if err := records.WriteRecord(t, index, rec); err != nil {
			if errors.Is(err, records.ErrNotFound) {
				return nil, RecordNotFound(*index).Wrap(err)
			}
			c.touch(path)
			return nil, Storage(fmt.Sprintf("Failed to write record to table '%s'.", tableName)).Wrap(err)
		}
		c.touch(path)
		verb := "inserted"
		if index != nil {
			verb = "updated"
		}
		return TextResult(fmt.Sprintf("Successfully %s record in table '%s'.", verb, tableName)), nil
	})
}

// withTable opens path for the duration of fn and closes it on every path
// out of fn.
func withTable(ctx context.Context, path string, mode paradox.OpenMode, fn func(*paradox.Table) (*Result, error)) (res *Result, err error) {
	t, err := paradox.Open(path, mode)
	if err != nil {
		switch {
		case errors.Is(err, paradox.ErrNotBooted):
			return nil, BootFailed().Wrap(err)
		case mode == paradox.ReadWrite:
			return nil, Storage(fmt.Sprintf("Failed to open table '%s' for writing. Ensure it's not locked.", path)).Wrap(err)
		default:
			return nil, Storage(fmt.Sprintf("Failed to open table '%s'", path)).Wrap(err)
		}
	}
	defer func() {
		if cerr := t.Close(); cerr != nil {
			if mode == paradox.ReadWrite && err == nil {
				res, err = nil, Storage(fmt.Sprintf("Failed to close table '%s'", path)).Wrap(cerr)
				return
			}
			slog.WarnContext(ctx, "Failed to close table", "path", path, "err", cerr)
		}
	}()
	return fn(t)
}

// newReader wraps layout errors with the table path.
func newReader(t *paradox.Table, path string) (*records.Reader, error) {
	r, err := records.NewReader(t)
	if err != nil {
		return nil, Storage(fmt.Sprintf("Failed to read table '%s': %v", path, err)).Wrap(err)
	}
	return r, nil
}
