// Implements the request loop.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/maruel/pxmcp/internal/tools"
	"golang.org/x/time/rate"
)

// Options configures a Server.
type Options struct {
	// Version is reported in serverInfo.
	Version string
	// RateLimit is the sustained tools/call rate per second. 0 disables
	// throttling.
	RateLimit float64
}

// Server answers JSON-RPC requests with a tools.Dispatcher.
type Server struct {
	d       *tools.Dispatcher
	version string
	limiter *rate.Limiter
}

// New returns a Server.
func New(d *tools.Dispatcher, opts Options) *Server {
	s := &Server{d: d, version: opts.Version}
	if s.version == "" {
		s.version = "devel"
	}
	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}
	return s
}

// Serve reads requests from r and writes responses to w until r is exhausted
// or ctx is canceled. Reaching the end of r is not an error.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readLines(ctx, r, lines)
		close(lines)
	}()
	out := bufio.NewWriter(w)
	for {
		var line []byte
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			return <-readErr
		}
		resp, err := s.handleLine(ctx, line)
		if err != nil {
			return err
		}
		if resp == nil {
			continue
		}
		if err := writeResponse(out, resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}

// readLines sends every line of r on lines. A final line without a newline
// is sent too.
func readLines(ctx context.Context, r io.Reader, lines chan<- []byte) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			select {
			case lines <- line:
			case <-ctx.Done():
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}
	}
}

func writeResponse(w *bufio.Writer, resp *Response) error {
	e := json.NewEncoder(w)
	e.SetEscapeHTML(false)
	if err := e.Encode(resp); err != nil {
		return err
	}
	return w.Flush()
}

// handleLine resolves one input line. It returns nil when nothing must be
// written. The error is only set when serving must stop.
func (s *Server) handleLine(ctx context.Context, line []byte) (*Response, error) {
	req, ok := parseRequest(line)
	if !ok {
		slog.DebugContext(ctx, "Dropping invalid request line", "len", len(line))
		return nil, nil
	}
	if req.isNotification() {
		slog.DebugContext(ctx, "Ignoring notification", "method", *req.Method)
		return nil, nil
	}
	result, err := s.handle(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}, nil
}

// handle returns the result member for a request.
func (s *Server) handle(ctx context.Context, req *Request) (any, error) {
	switch *req.Method {
	case "initialize":
		return &initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: ServerName, Version: s.version},
		}, nil
	case "tools/list":
		return map[string]any{"tools": s.d.Definitions()}, nil
	case "tools/call":
		p, ok := parseCallParams(req.Params)
		if !ok {
			return tools.ErrorResult(tools.InvalidParams("Missing params")), nil
		}
		if !p.HasName {
			return tools.ErrorResult(tools.InvalidParams("Missing tool name")), nil
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return s.d.Call(ctx, p.Name, p.Arguments), nil
	default:
		slog.DebugContext(ctx, "Unknown method", "method", *req.Method)
		return map[string]any{}, nil
	}
}
