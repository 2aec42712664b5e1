// Package main - combat.go
//
// CombatInterrupt is the combat worker's state machine. While it is not
// Idle the WaypointDirector holds still.
//
// State Machine:
//
//	Idle ──priority/boss listed──> Engaging ──list empty──> Looting ──> Idle
//
//   - Idle: read the battle list; engage when a priority monster or boss is
//     listed (or anything at all with engage_any)
//   - Engaging: attack at most once per attack_cooldown while the list is
//     non-empty. A boss gets an emergency heal before the first attack.
//   - Looting: loot once, wait loot_delay, return to Idle
//
// Target Selection:
// Bosses outrank priority monsters, which outrank by their configured
// weight; other listed monsters keep the fight going but are only attacked
// when nothing better is listed. With click_targets the chosen row of the
// battle list is clicked before the attack key.
package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// CombatState is the combat worker's state
type CombatState int32

const (
	CombatIdle CombatState = iota
	CombatEngaging
	CombatLooting
)

// String returns the string representation of the state
func (s CombatState) String() string {
	switch s {
	case CombatIdle:
		return "Idle"
	case CombatEngaging:
		return "Engaging"
	case CombatLooting:
		return "Looting"
	default:
		return "Unknown"
	}
}

// HostileDetector lists visible hostiles in battle list order.
type HostileDetector interface {
	DetectHostiles() []string
}

// EmergencyHealer heals immediately, ignoring thresholds.
type EmergencyHealer interface {
	EmergencyHeal(ctx context.Context) error
}

// CorpseLooter loots the most recent kill.
type CorpseLooter interface {
	Loot(ctx context.Context) error
}

// priorityWeight ranks a listed name: bosses first, then configured
// priorities, 0 for everything else.
func priorityWeight(cfg CombatConfig, name string) int {
	best := 0
	for _, boss := range cfg.Bosses {
		if matchesMonster(name, boss) {
			return bossWeight(cfg)
		}
	}
	for monster, w := range cfg.Priority {
		if w > best && matchesMonster(name, monster) {
			best = w
		}
	}
	return best
}

func bossWeight(cfg CombatConfig) int {
	top := 0
	for _, w := range cfg.Priority {
		if w > top {
			top = w
		}
	}
	return top + 1
}

func isBoss(cfg CombatConfig, name string) bool {
	for _, boss := range cfg.Bosses {
		if matchesMonster(name, boss) {
			return true
		}
	}
	return false
}

// selectTarget returns the highest-weight row; earlier rows win ties.
func selectTarget(cfg CombatConfig, hostiles []string) (row, weight int) {
	row, weight = -1, -1
	for i, name := range hostiles {
		if w := priorityWeight(cfg, name); w > weight {
			row, weight = i, w
		}
	}
	return row, weight
}

// CombatInterrupt runs the combat state machine.
type CombatInterrupt struct {
	cfg      CombatConfig
	keys     HotkeyConfig
	detector HostileDetector
	input    Input
	healer   EmergencyHealer
	looter   CorpseLooter
	limiter  *RateLimiter
	jitter   *Jitter
	sleep    Sleeper
	stats    *Statistics
	log      Logger
	sink     EventSink

	state      atomic.Int32
	bossHealed bool
	fightStart time.Time
	attacks    int

	// OnTransition, when set, observes every state change.
	OnTransition func(from, to CombatState)
}

// NewCombatInterrupt creates the combat worker. healer and looter may be nil.
func NewCombatInterrupt(cfg *Config, detector HostileDetector, input Input, healer EmergencyHealer, looter CorpseLooter, stats *Statistics, sleep Sleeper, log Logger, sink EventSink) *CombatInterrupt {
	if sleep == nil {
		sleep = SleepContext
	}
	if stats == nil {
		stats = NewStatistics()
	}
	return &CombatInterrupt{
		cfg:      cfg.Combat,
		keys:     cfg.Hotkeys,
		detector: detector,
		input:    input,
		healer:   healer,
		looter:   looter,
		limiter:  NewRateLimiter(cfg.Combat.AttackCooldown),
		jitter:   NewJitter(0),
		sleep:    sleep,
		stats:    stats,
		log:      orNop(log),
		sink:     orNopSink(sink),
	}
}

// State returns the current state; safe from any goroutine
func (c *CombatInterrupt) State() CombatState {
	return CombatState(c.state.Load())
}

// Active reports whether navigation must yield
func (c *CombatInterrupt) Active() bool {
	return c.State() != CombatIdle
}

// Attacks returns how many attacks were issued
func (c *CombatInterrupt) Attacks() int {
	return c.attacks
}

func (c *CombatInterrupt) transition(to CombatState) {
	from := CombatState(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	c.log.Info("combat %s -> %s", from, to)
	c.sink.Record(NewEvent(EventCombat, fmt.Sprintf("%s->%s", from, to)))
	if c.OnTransition != nil {
		c.OnTransition(from, to)
	}
}

// shouldEngage reports whether the list holds something worth a fight.
func (c *CombatInterrupt) shouldEngage(hostiles []string) bool {
	if len(hostiles) == 0 {
		return false
	}
	if c.cfg.EngageAny {
		return true
	}
	_, w := selectTarget(c.cfg, hostiles)
	return w > 0
}

// Poll runs one tick of the state machine.
func (c *CombatInterrupt) Poll(ctx context.Context) error {
	switch c.State() {
	case CombatIdle:
		hostiles := c.detector.DetectHostiles()
		if !c.shouldEngage(hostiles) {
			return nil
		}
		c.fightStart = time.Now()
		c.bossHealed = false
		c.limiter.Reset()
		c.transition(CombatEngaging)
		return c.engage(ctx, hostiles)

	case CombatEngaging:
		hostiles := c.detector.DetectHostiles()
		if len(hostiles) > 0 {
			return c.engage(ctx, hostiles)
		}
		c.stats.AddKill(time.Since(c.fightStart))
		c.transition(CombatLooting)
		return c.loot(ctx)

	case CombatLooting:
		// Only reachable if a previous loot was cancelled mid-delay.
		return c.loot(ctx)
	}
	return nil
}

func (c *CombatInterrupt) engage(ctx context.Context, hostiles []string) error {
	if !c.bossHealed && c.healer != nil {
		for _, name := range hostiles {
			if isBoss(c.cfg, name) {
				c.log.Info("boss %s listed; emergency heal before attacking", name)
				if err := c.healer.EmergencyHeal(ctx); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					c.log.Warn("emergency heal failed: %v", err)
				}
				c.bossHealed = true
				break
			}
		}
	}

	if !c.limiter.Allow() {
		return nil
	}

	row, weight := selectTarget(c.cfg, hostiles)
	if c.cfg.ClickTargets && row >= 0 && !c.cfg.BattleList.Empty() {
		x := c.cfg.BattleList.X + c.cfg.BattleList.W/2
		y := c.cfg.BattleList.Y + row*c.cfg.RowHeight + c.cfg.RowHeight/2
		if err := c.input.Click(x, y, ButtonLeft); err != nil {
			c.log.Warn("click battle list row %d at (%d,%d) failed: %v", row, x, y, err)
		}
	}
	if err := c.input.Tap(c.keys.Attack); err != nil {
		c.log.Warn("attack key %s failed: %v", c.keys.Attack, err)
		return nil
	}
	c.attacks++
	if row >= 0 {
		c.sink.Record(NewEvent(EventAttack, fmt.Sprintf("%s (weight %d)", hostiles[row], weight)))
	}
	return nil
}

func (c *CombatInterrupt) loot(ctx context.Context) error {
	if c.looter != nil {
		if err := c.looter.Loot(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("loot failed: %v", err)
		}
	}
	if err := c.sleep(ctx, c.cfg.LootDelay); err != nil {
		return err
	}
	c.transition(CombatIdle)
	return nil
}

// Run polls until ctx is done. Poll intervals vary by up to half again.
func (c *CombatInterrupt) Run(ctx context.Context, gate *PauseGate) error {
	defer c.transition(CombatIdle)
	for {
		if err := gate.Wait(ctx); err != nil {
			return nil
		}
		if err := c.Poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		interval := c.jitter.Between(c.cfg.PollInterval, c.cfg.PollInterval*3/2)
		if err := c.sleep(ctx, interval); err != nil {
			return nil
		}
	}
}
