// Package mcp speaks a subset of the Model Context Protocol over
// line-delimited JSON-RPC 2.0.
//
// Client implements chat.Gateway against any Transport; StdioTransport runs
// the tool server as a child process. Server exposes a fixed set of tools and
// is what cmd/toolserver runs.
package mcp
