// Package server implements the MCP (Model Context Protocol) server for
// symbol takeoff on drawing pages.
//
// This package provides a JSON-RPC 2.0 server that exposes the takeoff
// engine through the MCP protocol, so an assistant can tile a sheet, run
// symbol detection and inspect the results.
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
// Page Information:
//   - page_load: Load a page and get metadata
//
// Tiling:
//   - page_tiles: List kept tiles and filter counts
//   - page_tile_image: Get one tile's pixels
//   - page_tile_overlay: Draw the tile grid on the page
//
// Detection:
//   - page_detect: Detect and deduplicate symbols
//   - page_annotate: Detect and draw labelled boxes
//
// Cache:
//   - cache_stats: Tile cache counters
//   - cache_clear: Drop cached tiles and pages
//
// Tiling and detection tools accept the page config fields (tile_size,
// overlap_fraction, confidence_threshold, ...) as optional overrides of the
// server's base config.
//
// # Caching
//
// Decoded pages are cached by path for the lifetime of the server. Tile
// detection results are cached by the engine, keyed by tile content, so
// re-running a page with a different confidence threshold does not call the
// detector again.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	engine, _ := takeoff.New(detection.NewShapeDetector(), takeoff.Options{CacheCapacity: 500})
//	srv := server.New(engine, takeoff.DefaultConfig(), server.Options{Version: version})
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
package server
