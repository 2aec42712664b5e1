// Package main - utils.go
//
// Helper structures used throughout the bot: cancellable sleeps, jittered
// durations, rate limiting, duration formatting, and panic-safe goroutines.
//
// Cancellable Sleeps:
// Every wait in the bot goes through Sleeper so that a stop request is
// observed within one sleep. Tests replace it with an instant sleeper.
//
// SafeGo Usage:
// Long-running goroutines that are not part of the worker group (tray
// handlers, hotkey hook, status feed) use SafeGo so a panic is logged
// instead of killing the process.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Jitter picks a duration uniformly in [min, max].
type Jitter struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// NewJitter creates a jitter source; seed 0 means time-based.
func NewJitter(seed int64) *Jitter {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Jitter{rng: rand.New(rand.NewSource(seed))}
}

// Between returns a random duration between min and max inclusive
func (j *Jitter) Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return min + time.Duration(j.rng.Int63n(int64(max-min)+1))
}

// Chance returns true with probability p.
func (j *Jitter) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rng.Float64() < p
}

// Intn is rand.Intn behind the jitter lock.
func (j *Jitter) Intn(n int) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rng.Intn(n)
}

// FormatDuration formats a duration into human-readable string
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Clamp restricts a value between min and max
func Clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// SafeGo runs a function in a goroutine with panic recovery
func SafeGo(log Logger, name string, fn func()) {
	log = orNop(log)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic recovered in %s: %v", name, r)
			}
		}()
		fn()
	}()
}

// recoverError turns a panic inside fn into an error.
func recoverError(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	return fn()
}

// RateLimiter limits execution rate
type RateLimiter struct {
	lastExec time.Time
	interval time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter with specified interval
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		now:      time.Now,
	}
}

// Allow checks if enough time has passed since last execution
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if rl.lastExec.IsZero() || now.Sub(rl.lastExec) >= rl.interval {
		rl.lastExec = now
		return true
	}
	return false
}

// Reset resets the rate limiter
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.lastExec = time.Time{}
}

// CooldownTracker tracks per-key cooldowns (hotkey -> last use).
type CooldownTracker struct {
	last map[string]time.Time
	now  func() time.Time
	mu   sync.Mutex
}

// NewCooldownTracker creates an empty tracker
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Ready reports whether key was not used within cooldown. It does not
// start a new cooldown; call Mark once the key was actually pressed.
func (ct *CooldownTracker) Ready(key string, cooldown time.Duration) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	last, ok := ct.last[key]
	return !ok || ct.now().Sub(last) >= cooldown
}

// Mark starts the cooldown of key
func (ct *CooldownTracker) Mark(key string) {
	ct.mu.Lock()
	ct.last[key] = ct.now()
	ct.mu.Unlock()
}

// PauseGate blocks workers while the bot is paused.
type PauseGate struct {
	paused bool
	resume chan struct{}
	mu     sync.Mutex
}

// NewPauseGate creates an open gate
func NewPauseGate() *PauseGate {
	return &PauseGate{resume: make(chan struct{})}
}

// Pause closes the gate
func (g *PauseGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = true
}

// Resume opens the gate and wakes every waiter
func (g *PauseGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.resume)
	g.resume = make(chan struct{})
}

// Paused reports whether the gate is closed
func (g *PauseGate) Paused() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait returns once the gate is open or ctx is done. A nil gate is open.
func (g *PauseGate) Wait(ctx context.Context) error {
	if g == nil {
		return ctx.Err()
	}
	for {
		g.mu.Lock()
		paused, ch := g.paused, g.resume
		g.mu.Unlock()
		if !paused {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
