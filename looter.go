// Package main - looter.go
//
// Looter opens the corpse of the last kill.
//
// Modes:
//   - quick loot: hold quick_loot_key and right-click the corpse once per
//     priority item slot
//   - plain: one right-click on the corpse
//
// Nothing happens when the corpse area does not show a corpse color.
package main

import (
	"context"
	"time"
)

const quickLootClickDelay = 300 * time.Millisecond

// CorpseDetector reports whether a corpse is visible.
type CorpseDetector interface {
	CorpseVisible() bool
}

// Looter loots corpses.
type Looter struct {
	cfg    LooterConfig
	corpse CorpseDetector
	input  Input
	sleep  Sleeper
	stats  *Statistics
	log    Logger
	sink   EventSink
}

// NewLooter creates a looter
func NewLooter(cfg LooterConfig, corpse CorpseDetector, input Input, stats *Statistics, sleep Sleeper, log Logger, sink EventSink) *Looter {
	if sleep == nil {
		sleep = SleepContext
	}
	return &Looter{
		cfg:    cfg,
		corpse: corpse,
		input:  input,
		sleep:  sleep,
		stats:  stats,
		log:    orNop(log),
		sink:   orNopSink(sink),
	}
}

// Loot opens the corpse if one is visible.
func (l *Looter) Loot(ctx context.Context) error {
	if !l.cfg.Enabled {
		return nil
	}
	if !l.corpse.CorpseVisible() {
		l.log.Debug("no corpse in %s", l.cfg.CorpseArea)
		return nil
	}

	at := l.cfg.CorpseArea.Center()
	if l.cfg.QuickLoot && l.cfg.QuickLootKey != "" {
		if err := l.quickLoot(ctx, at); err != nil {
			return err
		}
	} else if err := l.input.Click(at.X, at.Y, ButtonRight); err != nil {
		return err
	}

	if l.stats != nil {
		l.stats.AddLoot()
	}
	l.log.Info("looted corpse at (%d,%d)", at.X, at.Y)
	l.sink.Record(NewEvent(EventLoot, "corpse"))
	return nil
}

func (l *Looter) quickLoot(ctx context.Context, at Point) error {
	if err := l.input.Press(l.cfg.QuickLootKey); err != nil {
		return err
	}
	defer l.input.Release(l.cfg.QuickLootKey)

	clicks := l.cfg.PriorityItems
	if clicks < 1 {
		clicks = 1
	}
	for i := 0; i < clicks; i++ {
		if err := l.input.Click(at.X, at.Y, ButtonRight); err != nil {
			return err
		}
		if err := l.sleep(ctx, quickLootClickDelay); err != nil {
			return err
		}
	}
	return nil
}
