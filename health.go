// Package main - health.go
//
// HealthMonitor is the health worker: it reads HP and mana and presses the
// matching recovery keys.
//
// Priority per poll (one heal and one mana action at most):
//   - hp < strong_heal_below        -> strong heal
//   - else hp < heal_below          -> heal spell
//   - hp < eat_food_below           -> food
//   - mana < mana_below             -> mana potion
//
// Every key has its own cooldown so a slow-updating bar does not make the
// monitor spam the same key. A cooldown starts only when the key was
// actually pressed. Unreadable vitals count as full, so a sensing failure
// never triggers a heal.
//
// Level Up:
// When a LevelUpDetector is attached, each poll also checks the level up
// button and spends the stat points with the level_up skill keys, highest
// priority first. level_up.cooldown keeps a button that stays lit for a
// moment from being read twice.
package main

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const levelUpCooldownKey = "level_up"

// LevelUpDetector reports a lit level up button.
type LevelUpDetector interface {
	CheckLevelUp() bool
}

// VitalsReader reads HP and mana percentages.
type VitalsReader interface {
	Vitals() (hp, mana int)
}

// HealthMonitor keeps the character alive.
type HealthMonitor struct {
	cfg       HealerConfig
	lvl       LevelUpConfig
	keys      HotkeyConfig
	vitals    VitalsReader
	levelUp   LevelUpDetector
	input     Input
	cooldowns *CooldownTracker
	jitter    *Jitter
	sleep     Sleeper
	log       Logger
	sink      EventSink
}

// NewHealthMonitor creates the health worker
func NewHealthMonitor(cfg *Config, vitals VitalsReader, input Input, sleep Sleeper, log Logger, sink EventSink) *HealthMonitor {
	if sleep == nil {
		sleep = SleepContext
	}
	return &HealthMonitor{
		cfg:       cfg.Healer,
		lvl:       cfg.LevelUp,
		keys:      cfg.Hotkeys,
		vitals:    vitals,
		input:     input,
		cooldowns: NewCooldownTracker(),
		jitter:    NewJitter(0),
		sleep:     sleep,
		log:       orNop(log),
		sink:      orNopSink(sink),
	}
}

// WatchLevelUp attaches the level up detector polled by Run
func (h *HealthMonitor) WatchLevelUp(det LevelUpDetector) {
	h.levelUp = det
}

// press taps key when its cooldown has passed and records a heal event.
// A failed tap leaves the cooldown untouched so the next poll retries.
func (h *HealthMonitor) press(key string, cooldown time.Duration, what string, hp, mana int) bool {
	if key == "" || !h.cooldowns.Ready(key, cooldown) {
		return false
	}
	if err := h.input.Tap(key); err != nil {
		h.log.Warn("%s key %s failed: %v", what, key, err)
		return false
	}
	h.cooldowns.Mark(key)
	h.log.Info("%s (hp %d%%, mana %d%%)", what, hp, mana)
	h.sink.Record(NewEvent(EventHeal, fmt.Sprintf("%s hp=%d mana=%d", what, hp, mana)))
	return true
}

// Check reads vitals once and reacts. It returns the actions taken.
func (h *HealthMonitor) Check() []string {
	hp, mana := h.vitals.Vitals()
	var done []string

	switch {
	case hp < h.cfg.StrongHealBelow:
		if h.press(h.keys.StrongHeal, h.cfg.HealCooldown, "strong heal", hp, mana) {
			done = append(done, "strong_heal")
		}
	case hp < h.cfg.HealBelow:
		if h.press(h.keys.HealSpell, h.cfg.HealCooldown, "heal", hp, mana) {
			done = append(done, "heal")
		}
	}

	if hp < h.cfg.EatFoodBelow && h.press(h.keys.Food, h.cfg.FoodCooldown, "food", hp, mana) {
		done = append(done, "food")
	}

	if mana < h.cfg.ManaBelow && h.press(h.keys.ManaPotion, h.cfg.ManaCooldown, "mana potion", hp, mana) {
		done = append(done, "mana")
	}
	return done
}

// EmergencyHeal presses the strong heal key now, ignoring thresholds and
// cooldown.
func (h *HealthMonitor) EmergencyHeal(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := h.keys.StrongHeal
	if key == "" {
		key = h.keys.HealSpell
	}
	if err := h.input.Tap(key); err != nil {
		return fmt.Errorf("emergency heal %s: %w", key, err)
	}
	h.cooldowns.Mark(key)
	h.sink.Record(NewEvent(EventHeal, "emergency"))
	return nil
}

// AssignStats spends stat points when the level up button is lit. It
// returns the skills pressed, highest priority first.
func (h *HealthMonitor) AssignStats(ctx context.Context) ([]string, error) {
	if !h.lvl.Enabled || h.levelUp == nil || !h.cooldowns.Ready(levelUpCooldownKey, h.lvl.Cooldown) {
		return nil, nil
	}
	if !h.levelUp.CheckLevelUp() {
		return nil, nil
	}
	h.cooldowns.Mark(levelUpCooldownKey)

	skills := append([]SkillKey(nil), h.lvl.Skills...)
	sort.SliceStable(skills, func(i, j int) bool {
		return skills[i].Priority > skills[j].Priority
	})
	h.log.Info("level up detected, assigning %d skills", len(skills))
	h.sink.Record(NewEvent(EventLevelUp, fmt.Sprintf("%d skills", len(skills))))

	var done []string
	for _, sk := range skills {
		if err := h.input.Tap(sk.Key); err != nil {
			h.log.Warn("skill %s key %s failed: %v", sk.Name, sk.Key, err)
			continue
		}
		done = append(done, sk.Name)
		if err := h.sleep(ctx, h.lvl.KeyDelay); err != nil {
			return done, err
		}
	}
	return done, nil
}

// Run polls until ctx is done.
func (h *HealthMonitor) Run(ctx context.Context, gate *PauseGate) error {
	if !h.cfg.Enabled {
		h.log.Info("health monitor disabled")
		<-ctx.Done()
		return nil
	}
	for {
		if err := gate.Wait(ctx); err != nil {
			return nil
		}
		h.Check()
		if _, err := h.AssignStats(ctx); err != nil {
			return nil
		}
		if err := h.sleep(ctx, h.jitter.Between(h.cfg.PollMin, h.cfg.PollMax)); err != nil {
			return nil
		}
	}
}
