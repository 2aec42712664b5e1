package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBotRunsRouteToEnd(t *testing.T) {
	cfg := testConfig()
	world := newSimWorld(cfg, NewCoordinate(100, 100, 7))
	route := mustRoute("short",
		Stand(NewCoordinate(103, 100, 7), 0),
		Action("end", nil),
	)
	b := assembleBot(cfg, route, world, nil, nil)

	var statuses []Status
	b.Watch(func(st Status) { statuses = append(statuses, st) })

	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if got := world.Position(); got != NewCoordinate(103, 100, 7) {
		t.Fatalf("position=%v", got)
	}
	if world.Steps() != 3 {
		t.Fatalf("steps=%d want=3", world.Steps())
	}
	if len(b.device.Held()) != 0 || len(world.Down()) != 0 {
		t.Fatalf("keys left down: held=%v world=%v", b.device.Held(), world.Down())
	}
	if b.Running() {
		t.Fatalf("still running after route end")
	}

	kinds := b.Events().Kinds()
	if kinds[0] != EventSessionStart || kinds[len(kinds)-1] != EventSessionStop {
		t.Fatalf("kinds=%v", kinds)
	}
	if len(statuses) == 0 || statuses[len(statuses)-1].State != StateStopped {
		t.Fatalf("final status missing: %+v", statuses)
	}
}

func TestBotStartStop(t *testing.T) {
	cfg := testConfig()
	world := newSimWorld(cfg, NewCoordinate(100, 100, 7))
	route := mustRoute("idle", Action("wait", map[string]string{"duration": "1h"}))
	b := assembleBot(cfg, route, world, nil, nil)

	ctx := context.Background()
	if err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start err=%v want=ErrAlreadyRunning", err)
	}

	b.Pause()
	if st := b.Status(); st.State != StatePaused {
		t.Fatalf("state=%q want=%q", st.State, StatePaused)
	}
	b.TogglePause()
	if st := b.Status(); st.State != StateRunning {
		t.Fatalf("state=%q want=%q", st.State, StateRunning)
	}

	stopped := make(chan error, 1)
	go func() { stopped <- b.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("stop did not return")
	}
	if b.Running() {
		t.Fatalf("still running after Stop")
	}
	if st := b.Status(); st.State != StateStopped {
		t.Fatalf("state=%q want=%q", st.State, StateStopped)
	}
}
