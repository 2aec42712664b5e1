// Package main - director.go
//
// WaypointDirector walks the route. It owns the cursor and the obstacle set
// and is the only goroutine that moves the character.
//
// Main Loop (per instruction at cursor i):
//   1. Wait while combat is active or the bot is paused (i unchanged)
//   2. Dispatch:
//      - Stand/LevelChange: walk until within tolerance; give up after
//        waypoint_max_retries iterations in a row that reach no new tile
//        (logged, skipped)
//      - Action: run the handler; a returned label moves the cursor to the
//        label so the next instruction is the one right after it
//      - Label: nothing
//   3. Advance; past the end, wrap when looping, else finish
//
// Walking Loop (one iteration = one indivisible sub-step):
//   - Estimate position; arrived when on the same level within tolerance
//   - Different level: for LevelChange, first walk onto the spot; then press
//     the level key (level_down when target Z is larger, level_up otherwise)
//   - Same level: plan a path and step toward its first hop
//
// Failure Handling:
// Navigation and action failures never stop the route. Handler errors and
// panics are logged and recorded; ErrRouteEnd from a handler ends the
// traversal cleanly. Only a cancelled context stops Run early.
package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrRouteEnd is returned by an action handler to end the traversal.
var ErrRouteEnd = errors.New("route ended")

// ErrUnknownAction means no handler is registered for an action name.
var ErrUnknownAction = errors.New("unknown action")

const yieldPoll = 100 * time.Millisecond

// ActionHandler runs a named action. A non-empty label asks for a jump.
type ActionHandler func(ctx context.Context, params map[string]string) (label string, err error)

// CombatGate tells the director when to hold still.
type CombatGate interface {
	Active() bool
}

// LevelNoter learns about level changes it cannot observe itself.
type LevelNoter interface {
	NoteLevel(z int)
}

// WaypointDirector runs a route.
type WaypointDirector struct {
	route     *Route
	cfg       *Config
	pos       PositionSource
	planner   *PathPlanner
	motion    *MotionController
	combat    CombatGate
	gate      *PauseGate
	input     Input
	obstacles *ObstacleSet
	handlers  map[string]ActionHandler
	policy    RetryPolicy
	jitter    *Jitter
	sleep     Sleeper
	slept     int
	stats     *Statistics
	log       Logger
	sink      EventSink

	cursor   atomic.Int64
	position atomic.Pointer[Coordinate]

	// OnInstruction, when set, observes each instruction before dispatch.
	OnInstruction func(index int, in Instruction)
}

// DirectorDeps groups the director's collaborators.
type DirectorDeps struct {
	Position  PositionSource
	Input     Input
	Combat    CombatGate
	Gate      *PauseGate
	Obstacles *ObstacleSet
	Stats     *Statistics
	Jitter    *Jitter
	Sleep     Sleeper
	Log       Logger
	Sink      EventSink
}

// NewWaypointDirector creates a director for route.
func NewWaypointDirector(route *Route, cfg *Config, deps DirectorDeps) *WaypointDirector {
	if deps.Sleep == nil {
		deps.Sleep = SleepContext
	}
	if deps.Jitter == nil {
		deps.Jitter = NewJitter(0)
	}
	if deps.Obstacles == nil {
		deps.Obstacles = NewObstacleSet()
	}
	if deps.Stats == nil {
		deps.Stats = NewStatistics()
	}
	d := &WaypointDirector{
		route:     route,
		cfg:       cfg,
		pos:       deps.Position,
		planner:   NewPathPlanner(cfg.Navigation),
		combat:    deps.Combat,
		gate:      deps.Gate,
		input:     deps.Input,
		obstacles: deps.Obstacles,
		handlers:  make(map[string]ActionHandler),
		policy:    NewRetryPolicy(cfg.Navigation.WaypointMaxRetries),
		jitter:    deps.Jitter,
		stats:     deps.Stats,
		log:       orNop(deps.Log),
		sink:      orNopSink(deps.Sink),
	}
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		if dur > 0 {
			d.slept++
		}
		return deps.Sleep(ctx, dur)
	}
	d.motion = NewMotionController(cfg, deps.Input, deps.Position, deps.Obstacles, deps.Jitter, d.sleep, deps.Log, deps.Sink)
	return d
}

// Register binds name to handler, replacing any previous one.
func (d *WaypointDirector) Register(name string, handler ActionHandler) {
	d.handlers[name] = handler
}

// Cursor returns the index of the instruction being processed
func (d *WaypointDirector) Cursor() int {
	return int(d.cursor.Load())
}

// Position returns the last estimate the director acted on
func (d *WaypointDirector) Position() Coordinate {
	if p := d.position.Load(); p != nil {
		return *p
	}
	return Coordinate{}
}

// Obstacles returns the learned obstacle set
func (d *WaypointDirector) Obstacles() *ObstacleSet {
	return d.obstacles
}

func (d *WaypointDirector) looping() bool {
	if d.route.Loop != nil {
		return *d.route.Loop
	}
	return d.cfg.IsLooping()
}

// Run walks the route from the first instruction until it ends or ctx is
// cancelled. A finished route returns nil; cancellation returns ctx.Err().
// Learned obstacles do not carry over between runs.
func (d *WaypointDirector) Run(ctx context.Context) error {
	d.obstacles.Clear()
	d.cursor.Store(0)
	instructions := d.route.Instructions
	if len(instructions) == 0 {
		d.log.Warn("route %q is empty", d.route.Name)
		return nil
	}

	i, quick := 0, 0
	for {
		if i >= len(instructions) {
			if !d.looping() {
				d.log.Info("route %q finished", d.route.Name)
				return nil
			}
			d.log.Debug("route %q wraps around", d.route.Name)
			i = 0
		}
		before := d.slept
		if err := d.yield(ctx); err != nil {
			return err
		}

		in := instructions[i]
		d.cursor.Store(int64(i))
		if d.OnInstruction != nil {
			d.OnInstruction(i, in)
		}

		next := i + 1
		switch {
		case in.IsMovement():
			if err := d.walk(ctx, i, in); err != nil {
				return err
			}
		case in.Kind == KindAction:
			label, err := d.runAction(ctx, in)
			switch {
			case errors.Is(err, ErrRouteEnd):
				d.log.Info("action %s ended route %q", in.Name, d.route.Name)
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				d.log.Error("action %s at waypoint %d failed: %v", in.Name, i, err)
				d.sink.Record(NewEvent(EventActionError, fmt.Sprintf("%s: %v", in.Name, err)).WithIndex(i))
			case label != "":
				if j, ok := resolveJump(instructions, label); ok {
					d.log.Info("action %s jumps to label %s", in.Name, label)
					d.sink.Record(NewEvent(EventJump, label).WithIndex(j))
					next = j + 1
				} else {
					d.log.Warn("action %s asked for unknown label %q; continuing", in.Name, label)
				}
			}
		}

		if err := d.idle(ctx); err != nil {
			return err
		}
		if d.slept == before {
			quick++
		} else {
			quick = 0
		}
		// a full route length without waiting means nothing is moving
		if quick >= len(instructions) {
			quick = 0
			if err := d.sleep(ctx, d.jitter.Between(d.cfg.Navigation.IdlePollMin, d.cfg.Navigation.IdlePollMax)); err != nil {
				return err
			}
		}
		i = next
	}
}

// yield waits while combat is active or the bot is paused.
func (d *WaypointDirector) yield(ctx context.Context) error {
	for {
		if err := d.gate.Wait(ctx); err != nil {
			return err
		}
		if d.combat == nil || !d.combat.Active() {
			return ctx.Err()
		}
		if err := d.sleep(ctx, yieldPoll); err != nil {
			return err
		}
	}
}

func (d *WaypointDirector) observe(c Coordinate) Coordinate {
	d.position.Store(&c)
	return c
}

// walk drives one movement instruction to arrival or give-up.
func (d *WaypointDirector) walk(ctx context.Context, index int, in Instruction) error {
	target := in.At
	tol := in.Tolerance
	if tol < 0 {
		tol = d.cfg.Navigation.ArrivalTolerance
	}
	retrier := d.policy.NewRetrier(nil)
	seen := make(map[Coordinate]struct{})

	for {
		if err := d.yield(ctx); err != nil {
			return err
		}
		cur := d.observe(d.pos.Estimate())
		seen[cur] = struct{}{}
		if cur.Within(target, tol) {
			d.stats.AddWaypoint(true)
			d.sink.Record(NewEvent(EventWaypointReached, in.String()).WithIndex(index).At(cur))
			return nil
		}

		var after Coordinate
		var err error
		planar := Coordinate{X: target.X, Y: target.Y, Z: cur.Z}
		switch {
		case cur.Z != target.Z && (in.Kind != KindLevelChange || cur.Within(planar, tol)):
			after, err = d.changeLevel(ctx, cur, target)
		default:
			after, err = d.stepToward(ctx, cur, planar)
		}
		if err != nil {
			return err
		}

		// Only a tile not yet visited on the way counts as progress, so
		// sidestepping back and forth in a dead end still runs out of retries.
		_, visited := seen[after]
		seen[after] = struct{}{}
		if retrier.Observe(!visited) {
			d.log.Warn("giving up on waypoint %d %s at %s after %d tries without progress",
				index, in, after, d.policy.MaxAttempts)
			d.stats.AddWaypoint(false)
			d.sink.Record(NewEvent(EventWaypointSkipped, in.String()).WithIndex(index).At(after))
			return nil
		}
	}
}

func (d *WaypointDirector) stepToward(ctx context.Context, cur, target Coordinate) (Coordinate, error) {
	hop := target
	if path := d.planner.Plan(cur, target, d.obstacles); len(path) > 0 {
		hop = path[0]
	}
	return d.motion.StepToward(ctx, cur, hop)
}

// changeLevel presses the level key and waits for the transition.
func (d *WaypointDirector) changeLevel(ctx context.Context, cur, target Coordinate) (Coordinate, error) {
	key := d.cfg.Hotkeys.LevelUp
	if target.Z > cur.Z {
		key = d.cfg.Hotkeys.LevelDown
	}
	d.log.Info("level transition %d -> %d with %s", cur.Z, target.Z, key)
	if err := d.input.Tap(key); err != nil {
		d.log.Warn("level key %s failed: %v", key, err)
	}
	if err := d.sleep(ctx, d.cfg.Navigation.LevelChangeDelay); err != nil {
		return cur, err
	}

	after := d.pos.Estimate()
	if after.Z == cur.Z {
		// The marker cannot see levels; assume one step toward the target.
		if noter, ok := d.pos.(LevelNoter); ok {
			z := cur.Z + 1
			if target.Z < cur.Z {
				z = cur.Z - 1
			}
			noter.NoteLevel(z)
			after = d.pos.Estimate()
		}
	}
	if after.Z != cur.Z {
		d.sink.Record(NewEvent(EventLevelChange, fmt.Sprintf("%d->%d", cur.Z, after.Z)).At(after))
	}
	return after, nil
}

// runAction dispatches a NamedAction, turning panics into errors.
func (d *WaypointDirector) runAction(ctx context.Context, in Instruction) (label string, err error) {
	handler, ok := d.handlers[in.Name]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownAction, in.Name)
	}
	d.sink.Record(NewEvent(EventAction, in.Name).WithIndex(d.Cursor()))

	params := in.Params
	if params == nil {
		params = map[string]string{}
	}
	err = recoverError("action "+in.Name, func() error {
		var herr error
		label, herr = handler(ctx, params)
		return herr
	})
	return label, err
}

// idle sometimes takes a short break or nudges the mouse between
// instructions.
func (d *WaypointDirector) idle(ctx context.Context) error {
	ai := d.cfg.AntiIdle
	if d.jitter.Chance(ai.NudgeChance) && !ai.NudgeArea.Empty() {
		x := ai.NudgeArea.X + d.jitter.Intn(ai.NudgeArea.W)
		y := ai.NudgeArea.Y + d.jitter.Intn(ai.NudgeArea.H)
		if err := d.input.Move(x, y); err != nil {
			d.log.Debug("mouse nudge failed: %v", err)
		}
	}
	if d.jitter.Chance(ai.BreakChance) {
		pause := d.jitter.Between(ai.BreakMin, ai.BreakMax)
		d.log.Debug("taking a %v break", pause)
		return d.sleep(ctx, pause)
	}
	return ctx.Err()
}
