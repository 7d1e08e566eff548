// Package tiling splits a drawing page into overlapping square tiles for
// detection.
//
// A page larger than the tile size in both dimensions is covered by a regular
// grid with stride TileSize*(1-Overlap), plus one extra column and row anchored
// to the right and bottom page edges whenever the grid does not end flush, so
// every page pixel belongs to at least one tile. Pages that are no larger than
// the tile size in either dimension become a single tile covering the page.
//
// Candidate tiles can be dropped when they are blank (mostly paper white, or
// flat) or when they touch the page margin, where title blocks and border
// annotations live. Surviving tiles are numbered in generation order and then,
// optionally, reordered so the busiest tiles come first. If nothing survives,
// a single full-page tile is returned so detection still runs.
//
// Every tile owns a copy of its pixels.
package tiling
