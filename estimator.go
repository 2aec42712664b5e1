// Package main - estimator.go
//
// PositionEstimator turns the screen into a world coordinate.
//
// Strategy Chain (first success wins):
//   1. Minimap marker: capture the minimap, find pixels matching the marker
//      color within tolerance, take their centroid and map it with
//      world = base + (pixel - origin) / pixels_per_tile
//   2. Coordinate text: OCR "x,y" or "x,y,z" from coord_region
//   3. Fail open: the last estimate, or base before the first estimate
//
// Estimate never returns an error and never blocks beyond one capture and
// one OCR call. A wrong "no movement" read costs a retry; a frozen bot
// costs the session.
//
// Levels:
// The marker only sees the plane. Its Z is the last known level, which the
// OCR strategy or NoteLevel (after a level transition) updates.
package main

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

// ErrNoMarker means no minimap pixel matched the marker color.
var ErrNoMarker = errors.New("marker not found")

// PositionSource yields the current position estimate.
type PositionSource interface {
	Estimate() Coordinate
}

// PositionEstimator implements PositionSource over the screen.
type PositionEstimator struct {
	cfg    EstimatorConfig
	screen Screen
	text   func(region Bounds, profile string) string
	log    Logger

	last    Coordinate
	hasLast bool
	mu      sync.Mutex
}

// NewPositionEstimator creates an estimator. text may be nil to disable
// the coordinate OCR fallback.
func NewPositionEstimator(cfg EstimatorConfig, screen Screen, text func(Bounds, string) string, log Logger) *PositionEstimator {
	return &PositionEstimator{
		cfg:    cfg,
		screen: screen,
		text:   text,
		log:    orNop(log),
	}
}

// Estimate returns the best available position.
func (e *PositionEstimator) Estimate() Coordinate {
	e.mu.Lock()
	defer e.mu.Unlock()

	fallback := e.cfg.Base
	if e.hasLast {
		fallback = e.last
	}

	c, err := e.fromMarker(fallback.Z)
	if err == nil {
		return e.remember(c)
	}
	e.log.Debug("marker estimate failed: %v", err)

	if c, err := e.fromText(fallback.Z); err == nil {
		return e.remember(c)
	} else if !e.cfg.CoordRegion.Empty() {
		e.log.Debug("coordinate text estimate failed: %v", err)
	}

	e.log.Warn("position unknown; keeping %s", fallback)
	return fallback
}

// Last returns the last successful estimate, or base.
func (e *PositionEstimator) Last() Coordinate {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hasLast {
		return e.last
	}
	return e.cfg.Base
}

// NoteLevel records a level change the marker cannot observe.
func (e *PositionEstimator) NoteLevel(z int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasLast {
		e.last = e.cfg.Base
		e.hasLast = true
	}
	e.last.Z = z
}

func (e *PositionEstimator) remember(c Coordinate) Coordinate {
	e.last = c
	e.hasLast = true
	return c
}

func (e *PositionEstimator) fromMarker(z int) (Coordinate, error) {
	region := e.cfg.MinimapRegion
	if region.Empty() {
		return Coordinate{}, fmt.Errorf("minimap region not configured")
	}
	img, err := e.screen.CaptureRegion(region.Rect())
	if err != nil {
		return Coordinate{}, fmt.Errorf("capture minimap %s: %w", region, err)
	}

	px, ok := findMarker(img, e.cfg.MarkerColor, e.cfg.Tolerance)
	if !ok {
		return Coordinate{}, fmt.Errorf("%w in %s (want %s ±%d)", ErrNoMarker, region, e.cfg.MarkerColor, e.cfg.Tolerance)
	}

	origin := e.cfg.ReferenceOrigin()
	ppt := e.cfg.PixelsPerTile
	if ppt <= 0 {
		ppt = 1
	}
	return Coordinate{
		X: e.cfg.Base.X + divRound(px.X-origin.X, ppt),
		Y: e.cfg.Base.Y + divRound(px.Y-origin.Y, ppt),
		Z: z,
	}, nil
}

func (e *PositionEstimator) fromText(z int) (Coordinate, error) {
	if e.text == nil || e.cfg.CoordRegion.Empty() {
		return Coordinate{}, fmt.Errorf("coordinate region not configured")
	}
	raw := e.text(e.cfg.CoordRegion, ProfileCoords)
	if raw == "" {
		return Coordinate{}, fmt.Errorf("no text in %s", e.cfg.CoordRegion)
	}
	return ParseCoordinate(raw, z)
}

// findMarker returns the rounded centroid of pixels matching want.
// Coordinates are in screen space (the image's own bounds).
func findMarker(img *image.RGBA, want Color, tol uint8) (Point, bool) {
	b := img.Bounds()
	var sumX, sumY, n int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if ColorFromRGBA(img.RGBAAt(x, y)).Matches(want, tol) {
				sumX += x
				sumY += y
				n++
			}
		}
	}
	if n == 0 {
		return Point{}, false
	}
	return Point{X: divRound(sumX, n), Y: divRound(sumY, n)}, true
}

// divRound divides rounding half away from zero.
func divRound(a, b int) int {
	if a >= 0 {
		return (a + b/2) / b
	}
	return -((-a + b/2) / b)
}
