package main

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSessionStoreSummary(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "sessions.db")

	s, err := OpenSessionStore(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.BeginSession(ctx, "rotworm"); err != nil {
		t.Fatal(err)
	}
	s.Record(NewEvent(EventCombat, "Idle->Engaging"))
	s.Record(NewEvent(EventCombat, "Engaging->Looting"))
	s.Record(NewEvent(EventLoot, "").At(NewCoordinate(5, 5, 7)))
	s.Record(NewEvent(EventWaypointReached, "").WithIndex(0))
	s.Record(NewEvent(EventWaypointReached, "").WithIndex(1))
	s.Record(NewEvent(EventWaypointSkipped, "").WithIndex(2))
	s.Record(NewEvent(EventObstacle, "").At(NewCoordinate(6, 5, 7)))
	if err := s.EndSession(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s.Record(NewEvent(EventLoot, "after close"))

	s, err = OpenSessionStore(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.BeginSession(ctx, "rotworm"); err != nil {
		t.Fatal(err)
	}

	sum, err := s.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := SessionSummary{Sessions: 2, Kills: 1, Loots: 1, WaypointsReached: 2, WaypointsSkipped: 1, Obstacles: 1}
	if sum != want {
		t.Fatalf("got=%+v want=%+v", sum, want)
	}
}

func TestOpenSessionStoreEmptyPath(t *testing.T) {
	if _, err := OpenSessionStore("", nil); err == nil {
		t.Fatalf("want error for empty path")
	}
}
