package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestJitterBetween(t *testing.T) {
	j := NewJitter(42)
	for i := 0; i < 200; i++ {
		d := j.Between(100*time.Millisecond, 200*time.Millisecond)
		if d < 100*time.Millisecond || d > 200*time.Millisecond {
			t.Fatalf("got=%v outside [100ms, 200ms]", d)
		}
	}
	if d := j.Between(time.Second, time.Second); d != time.Second {
		t.Fatalf("got=%v want=1s", d)
	}
	if j.Chance(0) {
		t.Fatalf("Chance(0) returned true")
	}
	if !j.Chance(1) {
		t.Fatalf("Chance(1) returned false")
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(0, 0)
	rl := NewRateLimiter(time.Second)
	rl.now = func() time.Time { return now }

	if !rl.Allow() {
		t.Fatalf("first call not allowed")
	}
	if rl.Allow() {
		t.Fatalf("second call allowed within interval")
	}
	now = now.Add(time.Second)
	if !rl.Allow() {
		t.Fatalf("call after interval not allowed")
	}
	rl.Reset()
	if !rl.Allow() {
		t.Fatalf("call after Reset not allowed")
	}
}

func TestCooldownTracker(t *testing.T) {
	now := time.Unix(0, 0)
	ct := NewCooldownTracker()
	ct.now = func() time.Time { return now }

	if !ct.Ready("f2", time.Second) || !ct.Ready("f2", time.Second) {
		t.Fatalf("Ready started a cooldown")
	}
	ct.Mark("f2")
	if ct.Ready("f2", time.Second) {
		t.Fatalf("cooldown not enforced")
	}
	if !ct.Ready("f3", time.Second) {
		t.Fatalf("keys share a cooldown")
	}
	now = now.Add(time.Second)
	if !ct.Ready("f2", time.Second) {
		t.Fatalf("cooldown did not expire")
	}
}

func TestPauseGate(t *testing.T) {
	g := NewPauseGate()
	if err := g.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	g.Pause()
	released := make(chan error, 1)
	go func() { released <- g.Wait(context.Background()) }()
	select {
	case <-released:
		t.Fatalf("Wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}
	g.Resume()
	select {
	case err := <-released:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait did not return after Resume")
	}

	g.Pause()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want=context.Canceled", err)
	}

	var nilGate *PauseGate
	if nilGate.Paused() || nilGate.Wait(context.Background()) != nil {
		t.Fatalf("nil gate is not open")
	}
}

func TestRecoverError(t *testing.T) {
	err := recoverError("worker", func() error { panic("boom") })
	if err == nil || !strings.Contains(err.Error(), "worker panicked: boom") {
		t.Fatalf("err=%v", err)
	}
	want := errors.New("plain")
	if err := recoverError("worker", func() error { return want }); err != want {
		t.Fatalf("err=%v want=%v", err, want)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{2*time.Minute + 3*time.Second, "2m 3s"},
		{time.Hour + 2*time.Minute + time.Second, "1h 2m 1s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Fatalf("FormatDuration(%v) got=%q want=%q", tt.d, got, tt.want)
		}
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want=context.Canceled", err)
	}
	if err := SleepContext(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
}
