package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/symbol-takeoff/internal/imaging"
	"github.com/ironsheep/symbol-takeoff/internal/takeoff"
	"github.com/ironsheep/symbol-takeoff/internal/tiling"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "page_load", "page_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	log := s.log.WithField("tool", params.Name)
	log.Debug("tool call")

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		log.WithError(err).Warn("tool call failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Page tools share one pattern: unmarshal the arguments, load the page
// through the page cache, apply any config overrides to the server's base
// config and call the engine.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Page Information
	case "page_load":
		return s.handlePageLoad(args)

	// Tiling
	case "page_tiles":
		return s.handlePageTiles(args)
	case "page_tile_image":
		return s.handlePageTileImage(args)
	case "page_tile_overlay":
		return s.handlePageTileOverlay(args)

	// Detection
	case "page_detect":
		return s.handlePageDetect(ctx, args)
	case "page_annotate":
		return s.handlePageAnnotate(ctx, args)

	// Cache
	case "cache_stats":
		return s.handleCacheStats()
	case "cache_clear":
		return s.handleCacheClear()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// configArgs are optional per-call overrides of the base page config.
// Absent fields keep the server's value.
type configArgs struct {
	TileSize                *int     `json:"tile_size"`
	OverlapFraction         *float64 `json:"overlap_fraction"`
	ConfidenceThreshold     *float64 `json:"confidence_threshold"`
	SkipBlank               *bool    `json:"skip_blank"`
	SkipEdges               *bool    `json:"skip_edges"`
	EdgeMarginPx            *int     `json:"edge_margin_px"`
	PrioritizeByComplexity  *bool    `json:"prioritize_by_complexity"`
	MaxWorkers              *int     `json:"max_workers"`
	EarlyStopCount          *int     `json:"early_stop_count"`
	IoUSuppressionThreshold *float64 `json:"iou_suppression_threshold"`
}

func (a configArgs) apply(cfg takeoff.Config) takeoff.Config {
	setInt(&cfg.TileSize, a.TileSize)
	setFloat(&cfg.OverlapFraction, a.OverlapFraction)
	setFloat(&cfg.ConfidenceThreshold, a.ConfidenceThreshold)
	setBool(&cfg.SkipBlank, a.SkipBlank)
	setBool(&cfg.SkipEdges, a.SkipEdges)
	setInt(&cfg.EdgeMarginPx, a.EdgeMarginPx)
	setBool(&cfg.PrioritizeByComplexity, a.PrioritizeByComplexity)
	setInt(&cfg.MaxWorkers, a.MaxWorkers)
	setInt(&cfg.EarlyStopCount, a.EarlyStopCount)
	setFloat(&cfg.IoUSuppressionThreshold, a.IoUSuppressionThreshold)
	return cfg
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// loadPage reads a page through the page cache.
func (s *Server) loadPage(path string, dpi int) (tiling.Page, error) {
	if path == "" {
		return tiling.Page{}, errors.New("path is required")
	}
	img, err := s.pages.Load(path)
	if err != nil {
		return tiling.Page{}, err
	}
	return tiling.Page{Image: img, DPI: dpi}, nil
}

// === Page Information Handlers ===

type pageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handlePageLoad(args json.RawMessage) (interface{}, error) {
	var a pageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	return imaging.LoadPageInfo(s.pages, a.Path)
}

// === Tiling Handlers ===

type pageTilesArgs struct {
	Path string `json:"path"`
	configArgs
}

// PageTilesResult lists the tiles the engine would process for a page.
type PageTilesResult struct {
	Stats tiling.Stats  `json:"stats"`
	Tiles []tiling.Tile `json:"tiles"`
}

func (s *Server) handlePageTiles(args json.RawMessage) (interface{}, error) {
	var a pageTilesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	page, err := s.loadPage(a.Path, 0)
	if err != nil {
		return nil, err
	}

	tiles, stats, err := s.engine.Tiles(page, a.apply(s.base))
	if err != nil {
		return nil, err
	}
	return &PageTilesResult{Stats: stats, Tiles: tiles}, nil
}

type pageTileImageArgs struct {
	Path   string `json:"path"`
	TileID int    `json:"tile_id"`
	configArgs
}

// PageTileImageResult is one tile's pixels with its placement.
type PageTileImageResult struct {
	Tile  tiling.Tile           `json:"tile"`
	Image *imaging.EncodedImage `json:"image"`
}

func (s *Server) handlePageTileImage(args json.RawMessage) (interface{}, error) {
	var a pageTileImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	page, err := s.loadPage(a.Path, 0)
	if err != nil {
		return nil, err
	}

	tiles, _, err := s.engine.Tiles(page, a.apply(s.base))
	if err != nil {
		return nil, err
	}
	for _, t := range tiles {
		if t.ID != a.TileID {
			continue
		}
		enc, err := imaging.EncodePNG(t.Pixels)
		if err != nil {
			return nil, err
		}
		return &PageTileImageResult{Tile: t, Image: enc}, nil
	}
	return nil, fmt.Errorf("tile %d not found among %d kept tiles", a.TileID, len(tiles))
}

type pageTileOverlayArgs struct {
	Path       string `json:"path"`
	Color      string `json:"color"`
	OutputPath string `json:"output_path"`
	configArgs
}

// PageTileOverlayResult is a page render with the tile grid drawn on it.
type PageTileOverlayResult struct {
	Stats      tiling.Stats          `json:"stats"`
	Image      *imaging.EncodedImage `json:"image,omitempty"`
	OutputPath string                `json:"output_path,omitempty"`
}

func (s *Server) handlePageTileOverlay(args json.RawMessage) (interface{}, error) {
	var a pageTileOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Color == "" {
		a.Color = "#FF000080"
	}
	page, err := s.loadPage(a.Path, 0)
	if err != nil {
		return nil, err
	}

	tiles, stats, err := s.engine.Tiles(page, a.apply(s.base))
	if err != nil {
		return nil, err
	}
	rendered := imaging.TileOverlay(page.Image, TileOutlines(tiles), a.Color)

	res := &PageTileOverlayResult{Stats: stats}
	if a.OutputPath != "" {
		if err := imaging.Save(rendered, a.OutputPath); err != nil {
			return nil, err
		}
		res.OutputPath = a.OutputPath
		return res, nil
	}
	if res.Image, err = imaging.EncodePNG(rendered); err != nil {
		return nil, err
	}
	return res, nil
}

// TileOutlines labels each tile with its id for imaging.TileOverlay.
func TileOutlines(tiles []tiling.Tile) []imaging.Outline {
	out := make([]imaging.Outline, len(tiles))
	for i, t := range tiles {
		out[i] = imaging.Outline{
			X:      t.X,
			Y:      t.Y,
			Width:  t.Width,
			Height: t.Height,
			Label:  strconv.Itoa(t.ID),
		}
	}
	return out
}

// === Detection Handlers ===

type pageDetectArgs struct {
	Path string `json:"path"`
	DPI  int    `json:"dpi"`
	configArgs
}

func (s *Server) detect(ctx context.Context, a pageDetectArgs) (tiling.Page, *takeoff.PageResult, error) {
	page, err := s.loadPage(a.Path, a.DPI)
	if err != nil {
		return page, nil, err
	}
	res, err := s.engine.DetectPage(ctx, page, a.apply(s.base))
	if err != nil {
		return page, nil, err
	}
	s.log.WithFields(logrus.Fields{
		"path":   a.Path,
		"job_id": res.JobID,
		"kept":   len(res.Detections),
	}).Debug("page detected")
	return page, res, nil
}

func (s *Server) handlePageDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pageDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	_, res, err := s.detect(ctx, a)
	return res, err
}

type pageAnnotateArgs struct {
	pageDetectArgs
	OutputPath string `json:"output_path"`
}

// PageAnnotateResult pairs a detection result with its rendering.
type PageAnnotateResult struct {
	Result     *takeoff.PageResult   `json:"result"`
	Image      *imaging.EncodedImage `json:"image,omitempty"`
	OutputPath string                `json:"output_path,omitempty"`
	Drawn      int                   `json:"drawn"`
	Skipped    int                   `json:"skipped"`
	Colors     map[string]string     `json:"colors"`
}

func (s *Server) handlePageAnnotate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pageAnnotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	page, res, err := s.detect(ctx, a.pageDetectArgs)
	if err != nil {
		return nil, err
	}

	ann := imaging.Annotate(page.Image, res.Boxes())
	out := &PageAnnotateResult{
		Result:  res,
		Drawn:   ann.Drawn,
		Skipped: ann.Skipped,
		Colors:  ann.Colors,
	}
	if a.OutputPath != "" {
		if err := imaging.Save(ann.Image, a.OutputPath); err != nil {
			return nil, err
		}
		out.OutputPath = a.OutputPath
		return out, nil
	}
	if out.Image, err = imaging.EncodePNG(ann.Image); err != nil {
		return nil, err
	}
	return out, nil
}

// === Cache Handlers ===

func (s *Server) handleCacheStats() (interface{}, error) {
	return map[string]interface{}{
		"tile_cache":   s.engine.CacheStats(),
		"pages_cached": s.pages.Len(),
	}, nil
}

func (s *Server) handleCacheClear() (interface{}, error) {
	s.engine.ClearCache()
	s.pages.Clear()
	return map[string]interface{}{"cleared": true}, nil
}
