// Tool call results.

package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Content is one item of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the payload of a tools/call response.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// TextResult returns a successful result made of text items.
func TextResult(texts ...string) *Result {
	r := &Result{Content: make([]Content, 0, len(texts))}
	for _, t := range texts {
		r.Content = append(r.Content, Content{Type: "text", Text: t})
	}
	return r
}

// ErrorResult converts err to an error result. Only the message of an *Error
// is shown; other errors are shown in full.
func ErrorResult(err error) *Result {
	msg := err.Error()
	var e *Error
	if errors.As(err, &e) {
		msg = e.Message()
	}
	r := TextResult(msg)
	r.IsError = true
	return r
}

// Text returns the text items joined by newlines.
func (r *Result) Text() string {
	var parts []string
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

// prettyJSON indents v with two spaces and leaves HTML characters alone.
func prettyJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
