package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the page raster (PNG, JPEG, TIFF, ...)",
}

// configProperties describes the optional per-call config overrides.
func configProperties() map[string]interface{} {
	return map[string]interface{}{
		"tile_size": map[string]interface{}{
			"type":        "integer",
			"description": "Tile edge length in pixels (default: 640)",
			"minimum":     1,
		},
		"overlap_fraction": map[string]interface{}{
			"type":        "number",
			"description": "Overlap between neighbouring tiles as a fraction of the tile size, in [0, 1) (default: 0.15)",
			"minimum":     0,
			"maximum":     0.99,
		},
		"confidence_threshold": map[string]interface{}{
			"type":        "number",
			"description": "Minimum detection confidence; out-of-range values are clamped to [0, 1] (default: 0.25)",
		},
		"skip_blank": map[string]interface{}{
			"type":        "boolean",
			"description": "Drop mostly-white, low-variance tiles (default: true)",
		},
		"skip_edges": map[string]interface{}{
			"type":        "boolean",
			"description": "Drop tiles touching the page margin (default: false)",
		},
		"edge_margin_px": map[string]interface{}{
			"type":        "integer",
			"description": "Margin width used by skip_edges (default: 50)",
			"minimum":     0,
		},
		"prioritize_by_complexity": map[string]interface{}{
			"type":        "boolean",
			"description": "Process visually busy tiles first (default: true)",
		},
		"max_workers": map[string]interface{}{
			"type":        "integer",
			"description": "Concurrent detector calls; 1 processes tiles sequentially",
			"minimum":     0,
		},
		"early_stop_count": map[string]interface{}{
			"type":        "integer",
			"description": "Stop dispatching tiles once this many detections are found; 0 disables (default: 0)",
			"minimum":     0,
		},
		"iou_suppression_threshold": map[string]interface{}{
			"type":        "number",
			"description": "Same-class overlap above which the weaker detection is dropped (default: 0.5)",
			"minimum":     0,
			"maximum":     1,
		},
	}
}

// withConfig returns props plus the config override properties.
func withConfig(props map[string]interface{}) map[string]interface{} {
	for k, v := range configProperties() {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Page Information
		{
			Name:        "page_load",
			Description: "Load a drawing page and return its dimensions, format and size. The decoded page is cached for later calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},

		// Tiling
		{
			Name:        "page_tiles",
			Description: "List the tiles the engine would process for a page (id, position, size, complexity) and how many were filtered as blank or edge tiles.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withConfig(map[string]interface{}{
					"path": pathProperty,
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "page_tile_image",
			Description: "Return the pixels of one kept tile as base64-encoded PNG. Use page_tiles to find tile ids.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withConfig(map[string]interface{}{
					"path": pathProperty,
					"tile_id": map[string]interface{}{
						"type":        "integer",
						"description": "Tile id as reported by page_tiles",
						"minimum":     0,
					},
				}),
				"required": []string{"path", "tile_id"},
			},
		},
		{
			Name:        "page_tile_overlay",
			Description: "Draw the tile grid with tile ids on top of the page. Returns base64 PNG, or writes it to output_path.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withConfig(map[string]interface{}{
					"path": pathProperty,
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Outline color as hex (default: '#FF000080')",
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Write the render to this file instead of returning it",
					},
				}),
				"required": []string{"path"},
			},
		},

		// Detection
		{
			Name:        "page_detect",
			Description: "Detect equipment symbols on a page. The page is tiled, tiles are run through the detector in parallel with result caching, and duplicates across tile overlaps are merged. Returns detections in page coordinates with per-class counts.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withConfig(map[string]interface{}{
					"path": pathProperty,
					"dpi": map[string]interface{}{
						"type":        "integer",
						"description": "Scan resolution, recorded in the result",
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "page_annotate",
			Description: "Run page_detect and draw every detection box with a per-class color and a short label. Returns the result plus base64 PNG, or writes the PNG to output_path.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withConfig(map[string]interface{}{
					"path": pathProperty,
					"dpi": map[string]interface{}{
						"type":        "integer",
						"description": "Scan resolution, recorded in the result",
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Write the render to this file instead of returning it",
					},
				}),
				"required": []string{"path"},
			},
		},

		// Cache
		{
			Name:        "cache_stats",
			Description: "Report tile cache hits, misses, evictions and size, and the number of cached pages.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "cache_clear",
			Description: "Drop every cached tile result and decoded page.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
