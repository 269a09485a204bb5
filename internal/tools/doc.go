// Package tools implements the Paradox table tools exposed over MCP.
//
// A [Dispatcher] owns the tool catalog. [Dispatcher.Call] validates the
// arguments of one call, runs it against a table opened only for that call,
// and always answers with a [Result]; failures become results with IsError
// set and a human readable message.
package tools
