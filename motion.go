// Package main - motion.go
//
// MotionController takes one walking step at a time toward a target cell.
//
// Step Algorithm:
//   1. Pick the axis with the larger |delta| (ties go to X)
//   2. Hold that direction's key for a random duration in [hold_min, hold_max]
//   3. Wait settle_delay, then re-estimate the position
//   4. Moved: reset the no-progress counter
//      Did not move: count it; after step_max_retries in a row escalate
//
// Escalation (stuck):
//   - Mark the cell the step tried to enter as an obstacle
//   - Sidestep one orthogonal direction once to shake loose
//   - Pause blocked_pause before handing back to the planner
//
// The counter follows one target; a new target starts a fresh count. Steps
// are single-axis even with eight-way planning, since the walking keys only
// move along one axis.
package main

import (
	"context"
)

// MotionController issues directional steps.
type MotionController struct {
	keys      HotkeyConfig
	nav       NavigationConfig
	input     Input
	pos       PositionSource
	obstacles *ObstacleSet
	jitter    *Jitter
	sleep     Sleeper
	log       Logger
	sink      EventSink

	retrier   *Retrier
	target    Coordinate
	hasTarget bool
	stuck     []Coordinate
}

// NewMotionController creates a controller writing into obstacles.
func NewMotionController(cfg *Config, input Input, pos PositionSource, obstacles *ObstacleSet, jitter *Jitter, sleep Sleeper, log Logger, sink EventSink) *MotionController {
	if sleep == nil {
		sleep = SleepContext
	}
	if jitter == nil {
		jitter = NewJitter(0)
	}
	m := &MotionController{
		keys:      cfg.Hotkeys,
		nav:       cfg.Navigation,
		input:     input,
		pos:       pos,
		obstacles: obstacles,
		jitter:    jitter,
		sleep:     sleep,
		log:       orNop(log),
		sink:      orNopSink(sink),
	}
	m.retrier = NewRetryPolicy(cfg.Navigation.StepMaxRetries).NewRetrier(m.markStuck)
	return m
}

// primaryDirection picks the axis with the larger delta.
func primaryDirection(current, target Coordinate) (Direction, bool) {
	dx := target.X - current.X
	dy := target.Y - current.Y
	switch {
	case dx == 0 && dy == 0:
		return DirNorth, false
	case abs(dx) >= abs(dy):
		if dx > 0 {
			return DirEast, true
		}
		return DirWest, true
	default:
		if dy > 0 {
			return DirSouth, true
		}
		return DirNorth, true
	}
}

// Attempts returns the no-progress count toward the current target
func (m *MotionController) Attempts() int {
	return m.retrier.Attempts()
}

// StepToward takes one step from current toward target and returns the
// re-estimated position. The only error is a cancelled ctx.
func (m *MotionController) StepToward(ctx context.Context, current, target Coordinate) (Coordinate, error) {
	dir, ok := primaryDirection(current, target)
	if !ok {
		return current, nil
	}
	if !m.hasTarget || m.target != target {
		m.target = target
		m.hasTarget = true
		m.retrier.Success()
	}

	if err := m.walk(ctx, dir); err != nil {
		return current, err
	}
	next := m.pos.Estimate()
	if next != current {
		m.retrier.Success()
		return next, nil
	}

	dx, dy := dir.Delta()
	m.stuck = append(m.stuck[:0], current.Add(dx, dy))
	if target.Within(current, 1) && target != m.stuck[0] {
		m.stuck = append(m.stuck, target)
	}
	if !m.retrier.Failure() {
		m.log.Debug("no progress %s from %s toward %s (%d/%d)",
			dir, current, target, m.retrier.Attempts(), m.nav.StepMaxRetries)
		return next, nil
	}

	after, err := m.sidestep(ctx, current, dir)
	if err != nil {
		return after, err
	}
	return after, m.sleep(ctx, m.nav.BlockedPause)
}

// markStuck is the retry escalation: the cell the step tried to enter
// becomes an obstacle, and so does an adjacent target.
func (m *MotionController) markStuck(attempts int) {
	for _, cell := range m.stuck {
		if m.obstacles.Add(cell) {
			m.log.Info("marking %s blocked after %d steps without progress", cell, attempts)
			m.sink.Record(NewEvent(EventObstacle, "no progress").At(cell))
		}
	}
}

// sidestep steps once sideways, preferring a side not already blocked.
func (m *MotionController) sidestep(ctx context.Context, current Coordinate, dir Direction) (Coordinate, error) {
	sides := dir.Orthogonal()
	side := sides[0]
	if dx, dy := side.Delta(); m.obstacles.Contains(current.Add(dx, dy)) {
		side = sides[1]
	}
	m.log.Debug("sidestepping %s from %s", side, current)
	if err := m.walk(ctx, side); err != nil {
		return current, err
	}
	return m.pos.Estimate(), nil
}

// walk holds dir's key and lets the position settle.
func (m *MotionController) walk(ctx context.Context, dir Direction) error {
	key := m.keys.DirectionKey(dir)
	hold := m.jitter.Between(m.nav.HoldMin, m.nav.HoldMax)
	if err := m.input.Hold(ctx, key, hold); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.log.Warn("hold %s (%s) for %v failed: %v", key, dir, hold, err)
	}
	return m.sleep(ctx, m.nav.SettleDelay)
}
