// Package main - data.go
//
// This file defines the core value types shared by every component of the bot.
//
// Major Data Categories:
//
// 1. World Geometry:
//    - Coordinate: tile position (x, y, z) on the abstract world grid
//    - Direction: one of the four walking directions
//
// 2. Screen Geometry:
//    - Point: pixel coordinate on the captured screen
//    - Bounds: rectangular screen region (capture areas, OCR regions)
//
// 3. Pixel Sensing:
//    - Color: RGB color with per-channel tolerance matching
//
// 4. Statistics:
//    - Statistics: kills, loots, waypoints reached/skipped, uptime
//
// Coordinate Invariant:
// Z (the floor/level) only ever changes through an explicit level
// transition. Nothing in this file steps Z.
//
// Thread Safety:
// Statistics uses RWMutex for concurrent access from the worker goroutines.
// All other types are small value types and are copied when shared.
package main

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Coordinate is a tile position in world-grid units.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// NewCoordinate creates a new Coordinate
func NewCoordinate(x, y, z int) Coordinate {
	return Coordinate{X: x, Y: y, Z: z}
}

// Add returns the coordinate shifted by dx, dy on the same level.
func (c Coordinate) Add(dx, dy int) Coordinate {
	return Coordinate{X: c.X + dx, Y: c.Y + dy, Z: c.Z}
}

// Manhattan returns |dx| + |dy|, ignoring the level.
func (c Coordinate) Manhattan(o Coordinate) int {
	return abs(c.X-o.X) + abs(c.Y-o.Y)
}

// Within reports whether o is within tol tiles of c on both plane axes and
// on the same level.
func (c Coordinate) Within(o Coordinate, tol int) bool {
	return c.Z == o.Z && abs(c.X-o.X) <= tol && abs(c.Y-o.Y) <= tol
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// UnmarshalYAML accepts either a flow sequence [x, y] / [x, y, z] or a
// mapping with x, y, z keys.
func (c *Coordinate) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var vals []int
		if err := node.Decode(&vals); err != nil {
			return err
		}
		if len(vals) < 2 || len(vals) > 3 {
			return fmt.Errorf("line %d: coordinate needs 2 or 3 values, got %d", node.Line, len(vals))
		}
		c.X, c.Y, c.Z = vals[0], vals[1], 0
		if len(vals) == 3 {
			c.Z = vals[2]
		}
		return nil
	}

	type plain Coordinate
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Coordinate(p)
	return nil
}

// ParseCoordinate parses "x,y" or "x,y,z" as produced by the coordinate OCR
// profile. Whitespace around the numbers is ignored.
func ParseCoordinate(text string, defaultZ int) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(text), ",")
	if len(parts) < 2 || len(parts) > 3 {
		return Coordinate{}, fmt.Errorf("coordinate text %q: want x,y[,z]", text)
	}

	vals := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Coordinate{}, fmt.Errorf("coordinate text %q: %w", text, err)
		}
		vals[i] = v
	}

	c := Coordinate{X: vals[0], Y: vals[1], Z: defaultZ}
	if len(vals) == 3 {
		c.Z = vals[2]
	}
	return c, nil
}

// Direction is one of the four walking directions.
type Direction int

const (
	DirNorth Direction = iota
	DirEast
	DirSouth
	DirWest
)

// String returns the string representation of the direction
func (d Direction) String() string {
	switch d {
	case DirNorth:
		return "north"
	case DirEast:
		return "east"
	case DirSouth:
		return "south"
	case DirWest:
		return "west"
	default:
		return "unknown"
	}
}

// Delta returns the unit step for the direction. Y grows southwards.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case DirNorth:
		return 0, -1
	case DirEast:
		return 1, 0
	case DirSouth:
		return 0, 1
	case DirWest:
		return -1, 0
	}
	return 0, 0
}

// Orthogonal returns the two directions perpendicular to d.
func (d Direction) Orthogonal() [2]Direction {
	if d == DirNorth || d == DirSouth {
		return [2]Direction{DirEast, DirWest}
	}
	return [2]Direction{DirNorth, DirSouth}
}

// Point represents a 2D coordinate in screen space.
type Point struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// NewPoint creates a new Point
func NewPoint(x, y int) Point {
	return Point{X: x, Y: y}
}

// Bounds represents a rectangular screen area
type Bounds struct {
	X int `yaml:"x" json:"x"` // Top-left X coordinate
	Y int `yaml:"y" json:"y"` // Top-left Y coordinate
	W int `yaml:"w" json:"w"` // Width
	H int `yaml:"h" json:"h"` // Height
}

// NewBounds creates a new Bounds
func NewBounds(x, y, w, h int) Bounds {
	return Bounds{X: x, Y: y, W: w, H: h}
}

// Center returns the center point of the bounds
func (b Bounds) Center() Point {
	return Point{
		X: b.X + b.W/2,
		Y: b.Y + b.H/2,
	}
}

// Empty reports whether the bounds cover no pixels.
func (b Bounds) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Rect converts the bounds to an image.Rectangle
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X && p.X < b.X+b.W &&
		p.Y >= b.Y && p.Y < b.Y+b.H
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%d,%d %dx%d]", b.X, b.Y, b.W, b.H)
}

// Color represents an RGB color
type Color struct {
	R uint8
	G uint8
	B uint8
}

// NewColor creates a new Color
func NewColor(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// ColorFromRGBA drops the alpha channel.
func ColorFromRGBA(c color.RGBA) Color {
	return Color{R: c.R, G: c.G, B: c.B}
}

// ParseHexColor parses "rrggbb" or "#rrggbb".
func ParseHexColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("hex color %q: want 6 digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("hex color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Matches checks if another color matches within tolerance
func (c Color) Matches(other Color, tolerance uint8) bool {
	return absDiff(c.R, other.R) <= tolerance &&
		absDiff(c.G, other.G) <= tolerance &&
		absDiff(c.B, other.B) <= tolerance
}

// IsBlack reports an all-zero color, which the capture layer returns for
// covered or off-screen areas.
func (c Color) IsBlack() bool {
	return c.R == 0 && c.G == 0 && c.B == 0
}

func (c Color) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// UnmarshalYAML accepts [r, g, b] or "#rrggbb".
func (c *Color) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := ParseHexColor(node.Value)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var vals []uint8
	if err := node.Decode(&vals); err != nil {
		return err
	}
	if len(vals) != 3 {
		return fmt.Errorf("line %d: color needs 3 values, got %d", node.Line, len(vals))
	}
	*c = Color{R: vals[0], G: vals[1], B: vals[2]}
	return nil
}

// absDiff returns absolute difference between two uint8 values
func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// Statistics holds runtime statistics
type Statistics struct {
	StartTime        time.Time
	KillCount        int
	LootCount        int
	WaypointsReached int
	WaypointsSkipped int
	LastKillTime     time.Time
	TotalFightTime   time.Duration
	mu               sync.RWMutex
}

// NewStatistics creates new statistics
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
	}
}

// AddKill records a finished fight
func (s *Statistics) AddKill(fightTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.KillCount++
	s.LastKillTime = time.Now()
	s.TotalFightTime += fightTime
}

// AddLoot records a loot attempt on a visible corpse
func (s *Statistics) AddLoot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LootCount++
}

// AddWaypoint records a waypoint outcome
func (s *Statistics) AddWaypoint(reached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reached {
		s.WaypointsReached++
	} else {
		s.WaypointsSkipped++
	}
}

// KillsPerHour calculates kills per hour
func (s *Statistics) KillsPerHour() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	elapsed := time.Since(s.StartTime).Hours()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.KillCount) / elapsed
}

// StatsSnapshot is a copy of Statistics safe to hand to other goroutines.
type StatsSnapshot struct {
	Kills            int     `json:"kills"`
	Loots            int     `json:"loots"`
	WaypointsReached int     `json:"waypoints_reached"`
	WaypointsSkipped int     `json:"waypoints_skipped"`
	KillsPerHour     float64 `json:"kills_per_hour"`
	Uptime           string  `json:"uptime"`
}

// Snapshot returns formatted statistics
func (s *Statistics) Snapshot() StatsSnapshot {
	kph := s.KillsPerHour()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsSnapshot{
		Kills:            s.KillCount,
		Loots:            s.LootCount,
		WaypointsReached: s.WaypointsReached,
		WaypointsSkipped: s.WaypointsSkipped,
		KillsPerHour:     kph,
		Uptime:           FormatDuration(time.Since(s.StartTime)),
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
