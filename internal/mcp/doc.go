// Package mcp serves the table tools over line-delimited JSON-RPC.
//
// Each input line is one request. Lines that are not a request object are
// dropped. Requests without an id are notifications and get no response.
// Responses are written one per line, in request order; a request is fully
// answered before the next line is considered.
package mcp
