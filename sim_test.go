// Package main - sim_test.go
//
// A tiny simulated game world shared by the navigation, combat and bot
// tests. Releasing a walking key moves the character one tile unless the
// destination is blocked; the level keys change Z. The world renders a
// minimap with a single white marker pixel so the real PositionEstimator
// can read it back.
package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"time"
)

type simWorld struct {
	keys    HotkeyConfig
	minimap Bounds
	base    Coordinate

	mu       sync.Mutex
	pos      Coordinate
	blocked  map[Coordinate]bool
	stall    int // walking key releases to ignore before moving again
	down     map[string]bool
	steps    int
	taps     []string
	typed    []string
	clicks   []Point
	moves    []Point
	onStep   func(steps int)
	levelFix bool // level keys change Z
}

func newSimWorld(cfg *Config, start Coordinate) *simWorld {
	return &simWorld{
		keys:     cfg.Hotkeys,
		minimap:  cfg.Estimator.MinimapRegion,
		base:     cfg.Estimator.Base,
		pos:      start,
		blocked:  make(map[Coordinate]bool),
		down:     make(map[string]bool),
		levelFix: true,
	}
}

func (w *simWorld) block(cells ...Coordinate) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range cells {
		w.blocked[c] = true
	}
}

func (w *simWorld) Position() Coordinate {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

func (w *simWorld) Steps() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

func (w *simWorld) Taps() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.taps...)
}

func (w *simWorld) Typed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.typed...)
}

func (w *simWorld) Down() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var keys []string
	for k, d := range w.down {
		if d {
			keys = append(keys, k)
		}
	}
	return keys
}

// Estimate implements PositionSource.
func (w *simWorld) Estimate() Coordinate {
	return w.Position()
}

func (w *simWorld) direction(key string) (Direction, bool) {
	for _, d := range []Direction{DirNorth, DirEast, DirSouth, DirWest} {
		if w.keys.DirectionKey(d) == key {
			return d, true
		}
	}
	return DirNorth, false
}

// step moves one tile in the key's direction. Callers hold mu.
func (w *simWorld) step(key string) {
	dir, ok := w.direction(key)
	if !ok {
		return
	}
	if w.stall > 0 {
		w.stall--
		return
	}
	dx, dy := dir.Delta()
	next := w.pos.Add(dx, dy)
	if w.blocked[next] {
		return
	}
	w.pos = next
	w.steps++
	if w.onStep != nil {
		w.onStep(w.steps)
	}
}

// Device

func (w *simWorld) CaptureRegion(rect image.Rectangle) (*image.RGBA, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	img := image.NewRGBA(rect)
	if w.minimap.Empty() {
		return img, nil
	}
	origin := w.minimap.Center()
	marker := image.Point{X: origin.X + w.pos.X - w.base.X, Y: origin.Y + w.pos.Y - w.base.Y}
	if marker.In(rect) {
		img.SetRGBA(marker.X, marker.Y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	}
	return img, nil
}

func (w *simWorld) PixelAt(x, y int) (Color, error) {
	return Color{}, nil
}

func (w *simWorld) KeyDown(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.down[key] = true
	return nil
}

func (w *simWorld) KeyUp(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.down[key] {
		w.step(key)
	}
	w.down[key] = false
	return nil
}

func (w *simWorld) Tap(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.taps = append(w.taps, key)
	if w.levelFix {
		switch key {
		case w.keys.LevelDown:
			w.pos.Z++
		case w.keys.LevelUp:
			w.pos.Z--
		}
	}
	return nil
}

func (w *simWorld) Move(x, y int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.moves = append(w.moves, Point{X: x, Y: y})
	return nil
}

func (w *simWorld) Click(x, y int, button string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clicks = append(w.clicks, Point{X: x, Y: y})
	return nil
}

func (w *simWorld) Drag(from, to Point) error { return nil }

func (w *simWorld) Type(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.typed = append(w.typed, text)
	return nil
}

func (w *simWorld) Close() error { return nil }

// Input

func (w *simWorld) Hold(ctx context.Context, key string, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.KeyDown(key); err != nil {
		return err
	}
	return w.KeyUp(key)
}

func (w *simWorld) Press(key string) error { return w.KeyDown(key) }

func (w *simWorld) Release(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.down[key] = false
	return nil
}

// fakeSleep records requested sleeps without waiting.
type fakeSleep struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *fakeSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *fakeSleep) Count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == d {
			n++
		}
	}
	return n
}

// fixedText serves OCR text by region.
type fixedText map[Bounds]string

func (f fixedText) Read(region Bounds, profile string) string {
	return f[region]
}

// testConfig returns defaults with every delay and random break removed.
func testConfig() *Config {
	cfg := NewConfig()
	cfg.fillDefaults()
	cfg.LoopWaypoints = false
	cfg.Estimator.MinimapRegion = NewBounds(0, 0, 41, 41)
	cfg.Estimator.Base = NewCoordinate(100, 100, 7)
	cfg.Navigation.ArrivalTolerance = 0
	cfg.Navigation.HoldMin = 0
	cfg.Navigation.HoldMax = 0
	cfg.Navigation.SettleDelay = 0
	cfg.Navigation.BlockedPause = 0
	cfg.Navigation.LevelChangeDelay = 0
	cfg.Navigation.IdlePollMin = time.Millisecond
	cfg.Navigation.IdlePollMax = time.Millisecond
	cfg.AntiIdle.BreakChance = 0
	cfg.AntiIdle.NudgeChance = 0
	cfg.NPC.PhraseDelay = 0
	cfg.Combat.LootDelay = 0
	cfg.Combat.PollInterval = time.Millisecond
	cfg.Healer.PollMin = time.Millisecond
	cfg.Healer.PollMax = time.Millisecond
	cfg.ControlKeys.Enabled = false
	cfg.Storage = StorageConfig{}
	return cfg
}

func mustRoute(name string, instructions ...Instruction) *Route {
	r, err := NewRoute(name, instructions)
	if err != nil {
		panic(fmt.Sprintf("route %s: %v", name, err))
	}
	return r
}

func combatDetails(events []Event) []string {
	var out []string
	for _, e := range events {
		if e.Kind == EventCombat {
			out = append(out, e.Detail)
		}
	}
	return out
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// recordLog keeps warnings and errors for assertions.
type recordLog struct {
	nopLogger
	mu    sync.Mutex
	lines []string
}

func (l *recordLog) Warn(format string, v ...interface{}) {
	l.mu.Lock()
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
	l.mu.Unlock()
}

func (l *recordLog) Error(format string, v ...interface{}) {
	l.Warn(format, v...)
}

func (l *recordLog) Contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}
