package main

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

type testDirector struct {
	d      *WaypointDirector
	world  *simWorld
	events *EventBuffer
	stats  *Statistics
	sleep  *fakeSleep
}

func newTestDirector(cfg *Config, route *Route, world *simWorld, combat CombatGate, text fixedText) *testDirector {
	td := &testDirector{
		world:  world,
		events: NewEventBuffer(256),
		stats:  NewStatistics(),
		sleep:  &fakeSleep{},
	}
	td.d = NewWaypointDirector(route, cfg, DirectorDeps{
		Position: world,
		Input:    world,
		Combat:   combat,
		Stats:    td.stats,
		Jitter:   NewJitter(1),
		Sleep:    td.sleep.Sleep,
		Sink:     td.events,
	})
	RegisterBuiltins(td.d, NewActionKit(cfg, world, text.Read, td.sleep.Sleep, nil))
	return td
}

var supplyRegion = NewBounds(500, 600, 40, 12)

func supplyCheck(min, label string) Instruction {
	return Action("check_supplies", map[string]string{
		"region_x": "500", "region_y": "600", "region_w": "40", "region_h": "12",
		"min": min, "label": label,
	})
}

func TestDirectorWalksRoute(t *testing.T) {
	cfg := testConfig()
	route := mustRoute("hunt",
		Stand(NewCoordinate(10, 10, 0), 0),
		supplyCheck("20", "refill"),
		Stand(NewCoordinate(20, 10, 0), 0),
		Label("refill"),
	)
	world := newSimWorld(cfg, NewCoordinate(10, 10, 0))
	td := newTestDirector(cfg, route, world, nil, fixedText{supplyRegion: "57"})

	if err := td.d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := world.Steps(); got != 10 {
		t.Fatalf("steps=%d want=10", got)
	}
	if got, want := world.Position(), NewCoordinate(20, 10, 0); got != want {
		t.Fatalf("position=%v want=%v", got, want)
	}
	if snap := td.stats.Snapshot(); snap.WaypointsReached != 2 || snap.WaypointsSkipped != 0 {
		t.Fatalf("reached=%d skipped=%d want=2,0", snap.WaypointsReached, snap.WaypointsSkipped)
	}
	if n := countKind(td.events.Events(), EventJump); n != 0 {
		t.Fatalf("jumps=%d want=0", n)
	}
}

func TestDirectorRefillJump(t *testing.T) {
	cfg := testConfig()
	route := mustRoute("hunt",
		Stand(NewCoordinate(0, 0, 0), 0),
		supplyCheck("20", "refill"),
		Stand(NewCoordinate(5, 0, 0), 0),
		Action("end", nil),
		Label("refill"),
		Action("refill", nil),
		Stand(NewCoordinate(0, 3, 0), 0),
	)
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	td := newTestDirector(cfg, route, world, nil, fixedText{supplyRegion: "7"})

	var visited []int
	td.d.OnInstruction = func(i int, _ Instruction) { visited = append(visited, i) }

	if err := td.d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if want := []int{0, 1, 5, 6}; !reflect.DeepEqual(visited, want) {
		t.Fatalf("visited=%v want=%v", visited, want)
	}
	if got, want := world.Position(), NewCoordinate(0, 3, 0); got != want {
		t.Fatalf("position=%v want=%v", got, want)
	}
	if got, want := world.Typed(), cfg.NPC.Scripts["refill"]; !reflect.DeepEqual(got, want) {
		t.Fatalf("typed=%v want=%v", got, want)
	}
	if n := countKind(td.events.Events(), EventJump); n != 1 {
		t.Fatalf("jumps=%d want=1", n)
	}
}

func TestDirectorUnreadableSuppliesDoNotJump(t *testing.T) {
	cfg := testConfig()
	route := mustRoute("hunt",
		supplyCheck("20", "refill"),
		Stand(NewCoordinate(2, 0, 0), 0),
		Action("end", nil),
		Label("refill"),
	)
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	td := newTestDirector(cfg, route, world, nil, fixedText{})

	if err := td.d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got, want := world.Position(), NewCoordinate(2, 0, 0); got != want {
		t.Fatalf("position=%v want=%v", got, want)
	}
}

func TestDirectorLoopOrder(t *testing.T) {
	cfg := testConfig()
	cfg.LoopWaypoints = true
	route := mustRoute("loop",
		Stand(NewCoordinate(0, 0, 0), 0),
		Stand(NewCoordinate(2, 0, 0), 0),
		Stand(NewCoordinate(2, 2, 0), 0),
	)
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	td := newTestDirector(cfg, route, world, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var visited []int
	td.d.OnInstruction = func(i int, _ Instruction) {
		visited = append(visited, i)
		if len(visited) == 5 {
			cancel()
		}
	}

	err := td.d.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want=context.Canceled", err)
	}
	if want := []int{0, 1, 2, 0, 1}; !reflect.DeepEqual(visited, want) {
		t.Fatalf("visited=%v want=%v", visited, want)
	}
}

func TestDirectorRouteLoopOverridesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LoopWaypoints = true
	loop := false
	route := mustRoute("once", Stand(NewCoordinate(1, 0, 0), 0))
	route.Loop = &loop
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	td := newTestDirector(cfg, route, world, nil, nil)

	if err := td.d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if world.Steps() != 1 {
		t.Fatalf("steps=%d want=1", world.Steps())
	}
}

func TestDirectorPollsWhenNothingWaits(t *testing.T) {
	const poll = 50 * time.Millisecond
	tests := []struct {
		name  string
		route *Route
		want  int
	}{
		{"arrived stand", mustRoute("camp", Stand(NewCoordinate(0, 0, 0), 1)), 9},
		{"goto cycle", mustRoute("spin", Label("a"), Action("goto", map[string]string{"label": "a"})), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.LoopWaypoints = true
			cfg.Navigation.IdlePollMin = poll
			cfg.Navigation.IdlePollMax = poll
			world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
			td := newTestDirector(cfg, tt.route, world, nil, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			seen := 0
			td.d.OnInstruction = func(int, Instruction) {
				if seen++; seen == 10 {
					cancel()
				}
			}

			if err := td.d.Run(ctx); !errors.Is(err, context.Canceled) {
				t.Fatalf("err=%v want=context.Canceled", err)
			}
			if got := td.sleep.Count(poll); got != tt.want {
				t.Fatalf("idle polls=%d want=%d", got, tt.want)
			}
		})
	}
}

// combatBurst is active for a few polls once the world has taken enough
// steps, recording the director's cursor each time it is asked.
type combatBurst struct {
	world   *simWorld
	after   int
	polls   int32
	left    int32
	cursors []int
	d       *WaypointDirector
}

func (c *combatBurst) Active() bool {
	if c.world.Steps() < c.after || atomic.LoadInt32(&c.left) == 0 {
		return false
	}
	atomic.AddInt32(&c.left, -1)
	atomic.AddInt32(&c.polls, 1)
	c.cursors = append(c.cursors, c.d.Cursor())
	return true
}

func TestDirectorYieldsToCombatMidTransit(t *testing.T) {
	cfg := testConfig()
	route := mustRoute("hunt",
		Stand(NewCoordinate(6, 0, 0), 0),
		Stand(NewCoordinate(6, 2, 0), 0),
	)
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	combat := &combatBurst{world: world, after: 3, left: 4}
	td := newTestDirector(cfg, route, world, combat, nil)
	combat.d = td.d

	if err := td.d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if combat.polls != 4 {
		t.Fatalf("combat polls=%d want=4", combat.polls)
	}
	for _, c := range combat.cursors {
		if c != 0 {
			t.Fatalf("cursor moved during combat: %v", combat.cursors)
		}
	}
	if got := td.sleep.Count(yieldPoll); got != 4 {
		t.Fatalf("yield sleeps=%d want=4", got)
	}
	if got, want := world.Position(), NewCoordinate(6, 2, 0); got != want {
		t.Fatalf("position=%v want=%v", got, want)
	}
	if world.Steps() != 8 {
		t.Fatalf("steps=%d want=8", world.Steps())
	}
}

func TestDirectorSkipsUnreachableWaypoint(t *testing.T) {
	cfg := testConfig()
	cfg.Navigation.SearchMargin = 2
	goal := NewCoordinate(4, 0, 0)
	route := mustRoute("hunt",
		Stand(goal, 0),
		Stand(NewCoordinate(0, 2, 0), 0),
	)
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	// goal is walled in on every side
	world.block(goal.Add(-1, 0), goal.Add(1, 0), goal.Add(0, -1), goal.Add(0, 1))
	td := newTestDirector(cfg, route, world, nil, nil)

	if err := td.d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := td.stats.Snapshot()
	if snap.WaypointsSkipped != 1 || snap.WaypointsReached != 1 {
		t.Fatalf("skipped=%d reached=%d want=1,1", snap.WaypointsSkipped, snap.WaypointsReached)
	}
	if !td.d.Obstacles().Contains(goal.Add(-1, 0)) {
		t.Fatalf("blocking cell %v not learned", goal.Add(-1, 0))
	}
	if got, want := world.Position(), NewCoordinate(0, 2, 0); got != want {
		t.Fatalf("position=%v want=%v", got, want)
	}
}

func TestDirectorLevelChange(t *testing.T) {
	cfg := testConfig()
	route := mustRoute("stairs",
		LevelChange(NewCoordinate(2, 0, 1)),
		LevelChange(NewCoordinate(2, 0, 0)),
	)
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	td := newTestDirector(cfg, route, world, nil, nil)

	if err := td.d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{cfg.Hotkeys.LevelDown, cfg.Hotkeys.LevelUp}
	if got := world.Taps(); !reflect.DeepEqual(got, want) {
		t.Fatalf("taps=%v want=%v", got, want)
	}
	if world.Steps() != 2 {
		t.Fatalf("steps=%d want=2 (walk onto the stairs first)", world.Steps())
	}
	if n := countKind(td.events.Events(), EventLevelChange); n != 2 {
		t.Fatalf("level events=%d want=2", n)
	}
}

// levelBlind reports the plane but never sees level changes, like the
// minimap marker.
type levelBlind struct {
	world *simWorld
	z     int
}

func (l *levelBlind) Estimate() Coordinate {
	c := l.world.Position()
	c.Z = l.z
	return c
}

func (l *levelBlind) NoteLevel(z int) { l.z = z }

func TestDirectorNotesUnseenLevelChange(t *testing.T) {
	cfg := testConfig()
	route := mustRoute("stairs", LevelChange(NewCoordinate(0, 0, -1)))
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	pos := &levelBlind{world: world}
	sleep := &fakeSleep{}
	d := NewWaypointDirector(route, cfg, DirectorDeps{
		Position: pos,
		Input:    world,
		Sleep:    sleep.Sleep,
		Jitter:   NewJitter(1),
	})

	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if pos.z != -1 {
		t.Fatalf("noted z=%d want=-1", pos.z)
	}
	if got := world.Taps(); len(got) != 1 || got[0] != cfg.Hotkeys.LevelUp {
		t.Fatalf("taps=%v want=[%s]", got, cfg.Hotkeys.LevelUp)
	}
}

func TestDirectorActionFailuresContinue(t *testing.T) {
	cfg := testConfig()
	route := mustRoute("hunt",
		Action("explode", nil),
		Action("missing", nil),
		Action("goto", map[string]string{"label": "nowhere"}),
		Stand(NewCoordinate(1, 0, 0), 0),
	)
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	td := newTestDirector(cfg, route, world, nil, nil)
	td.d.Register("explode", func(context.Context, map[string]string) (string, error) {
		panic("boom")
	})

	if err := td.d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := countKind(td.events.Events(), EventActionError); n != 2 {
		t.Fatalf("action errors=%d want=2", n)
	}
	if world.Steps() != 1 {
		t.Fatalf("steps=%d want=1", world.Steps())
	}
}

func TestDirectorRestartResetsState(t *testing.T) {
	cfg := testConfig()
	route := mustRoute("hunt", Stand(NewCoordinate(1, 0, 0), 0))
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	td := newTestDirector(cfg, route, world, nil, nil)
	td.d.Obstacles().Add(NewCoordinate(9, 9, 0))

	if err := td.d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if td.d.Obstacles().Len() != 0 {
		t.Fatalf("obstacles=%d want=0 after restart", td.d.Obstacles().Len())
	}
	if td.d.Cursor() != 0 {
		t.Fatalf("cursor=%d want=0", td.d.Cursor())
	}
}

func TestDirectorPausedHoldsCursor(t *testing.T) {
	cfg := testConfig()
	route := mustRoute("hunt", Stand(NewCoordinate(3, 0, 0), 0))
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	gate := NewPauseGate()
	gate.Pause()
	sleep := &fakeSleep{}
	d := NewWaypointDirector(route, cfg, DirectorDeps{
		Position: world,
		Input:    world,
		Gate:     gate,
		Sleep:    sleep.Sleep,
		Jitter:   NewJitter(1),
	})

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Run returned %v while paused", err)
	default:
	}
	if world.Steps() != 0 {
		t.Fatalf("moved while paused")
	}
	gate.Resume()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if world.Steps() != 3 {
		t.Fatalf("steps=%d want=3", world.Steps())
	}
}
