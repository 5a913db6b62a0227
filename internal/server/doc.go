// Package server implements the MCP (Model Context Protocol) server for the
// OCR engine.
//
// This package provides a JSON-RPC 2.0 server that exposes text recognition
// through the MCP protocol, so MCP-compatible clients can read text out of
// image files.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - ocr_recognize: Text of every detected region, in reading order
//   - ocr_recognize_detailed: Regions with bounding boxes and confidences
//   - ocr_annotate: Base64 PNG with the regions outlined and labelled
//   - ocr_version: Engine version and recognition backend
//
// # Engine Lifetime
//
// New creates one engine from the configured model files and every tool
// call runs on it. Close destroys it.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details, including the OCR status name
//
// # Usage
//
//	srv, err := server.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer srv.Close()
//	return srv.Run()
package server
