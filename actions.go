// Package main - actions.go
//
// This file implements the built-in NamedAction handlers a route can call.
//
// Handlers:
//   - say            params: text           type a line into chat
//   - goto           params: label          unconditional jump
//   - wait           params: duration       sleep ("2s", "500ms")
//   - check_supplies params: region_x, region_y, region_w, region_h,
//                            min, label     OCR a count; jump when below min
//   - equip          params: slot, label    refill empty equip.slots
//                            (both opt.)
//   - refill, buy, bank, deposit, and every other npc.scripts key
//                    params: label (opt.)   run the NPC chat script of the
//                                           same name from npc.scripts
//   - logout                                press logout and end the route
//   - end                                   end the route
//
// Chat:
// A phrase is sent as chat key, text, chat key, followed by npc.phrase_delay
// so the NPC has time to answer before the next phrase.
//
// Sensing Failures:
// check_supplies does not jump when the count cannot be read. The failure is
// logged with the region so it can be recalibrated. equip treats an
// unreadable slot as empty; pressing the equip key on a full slot is harmless.
package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ActionKit holds what the built-in handlers need.
type ActionKit struct {
	cfg   *Config
	input Input
	text  func(region Bounds, profile string) string
	sleep Sleeper
	log   Logger
}

// NewActionKit creates the built-in handler set
func NewActionKit(cfg *Config, input Input, text func(Bounds, string) string, sleep Sleeper, log Logger) *ActionKit {
	if sleep == nil {
		sleep = SleepContext
	}
	return &ActionKit{cfg: cfg, input: input, text: text, sleep: sleep, log: orNop(log)}
}

// RegisterBuiltins registers every built-in handler on d, plus one chat
// handler per configured NPC script. Scripts never shadow a built-in.
func RegisterBuiltins(d *WaypointDirector, kit *ActionKit) {
	d.Register("say", kit.Say)
	d.Register("goto", kit.Goto)
	d.Register("wait", kit.Wait)
	d.Register("check_supplies", kit.CheckSupplies)
	d.Register("logout", kit.Logout)
	d.Register("end", kit.End)
	d.Register("equip", kit.Equip)
	names := []string{"refill", "buy", "bank", "deposit"}
	for name := range kit.cfg.NPC.Scripts {
		names = append(names, name)
	}
	for _, name := range names {
		if _, taken := d.handlers[name]; taken {
			continue
		}
		d.Register(name, kit.npcScript(name))
	}
}

// chat sends one line of chat.
func (k *ActionKit) chat(ctx context.Context, text string) error {
	if err := k.input.Tap(k.cfg.Hotkeys.Chat); err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	if err := k.input.Type(text); err != nil {
		return fmt.Errorf("type %q: %w", text, err)
	}
	if err := k.input.Tap(k.cfg.Hotkeys.Chat); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}
	return k.sleep(ctx, k.cfg.NPC.PhraseDelay)
}

// Say types params["text"] into chat
func (k *ActionKit) Say(ctx context.Context, params map[string]string) (string, error) {
	text := params["text"]
	if text == "" {
		return "", fmt.Errorf("say: missing text")
	}
	return "", k.chat(ctx, text)
}

// Goto jumps to params["label"]
func (k *ActionKit) Goto(_ context.Context, params map[string]string) (string, error) {
	label := params["label"]
	if label == "" {
		return "", fmt.Errorf("goto: missing label")
	}
	return label, nil
}

// Wait sleeps for params["duration"]
func (k *ActionKit) Wait(ctx context.Context, params map[string]string) (string, error) {
	d, err := time.ParseDuration(params["duration"])
	if err != nil {
		return "", fmt.Errorf("wait: %w", err)
	}
	return "", k.sleep(ctx, d)
}

func paramInt(params map[string]string, key string) (int, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// CheckSupplies reads a count from the configured region and returns
// params["label"] when it is below params["min"].
func (k *ActionKit) CheckSupplies(_ context.Context, params map[string]string) (string, error) {
	var region Bounds
	var min int
	var err error
	for _, f := range []struct {
		key string
		dst *int
	}{
		{"region_x", &region.X},
		{"region_y", &region.Y},
		{"region_w", &region.W},
		{"region_h", &region.H},
		{"min", &min},
	} {
		if *f.dst, err = paramInt(params, f.key); err != nil {
			return "", fmt.Errorf("check_supplies: %w", err)
		}
	}
	label := params["label"]
	if label == "" {
		return "", fmt.Errorf("check_supplies: missing label")
	}

	text := k.text(region, ProfileDigits)
	nums := numberPattern.FindAllString(text, 1)
	if len(nums) == 0 {
		k.log.Warn("check_supplies: no count in %s (read %q); not refilling", region, text)
		return "", nil
	}
	count, err := strconv.Atoi(nums[0])
	if err != nil {
		k.log.Warn("check_supplies: bad count %q in %s: %v; not refilling", nums[0], region, err)
		return "", nil
	}
	if count < min {
		k.log.Info("supplies low: %d < %d, jumping to %s", count, min, label)
		return label, nil
	}
	k.log.Debug("supplies ok: %d >= %d", count, min)
	return "", nil
}

// Equip reads each configured slot and refills the ones that read empty by
// clicking the slot and pressing its key.
func (k *ActionKit) Equip(ctx context.Context, params map[string]string) (string, error) {
	only := params["slot"]
	matched := false
	for _, slot := range k.cfg.Equip.Slots {
		if only != "" && slot.Name != only {
			continue
		}
		matched = true
		text := strings.TrimSpace(k.text(slot.Region, ProfileNames))
		if text != "" && !strings.Contains(strings.ToLower(text), "empty") {
			k.log.Debug("equip: %s holds %q", slot.Name, text)
			continue
		}
		c := slot.Region.Center()
		if err := k.input.Click(c.X, c.Y, ButtonLeft); err != nil {
			return "", fmt.Errorf("equip %s: %w", slot.Name, err)
		}
		if err := k.input.Tap(slot.Key); err != nil {
			return "", fmt.Errorf("equip %s: %w", slot.Name, err)
		}
		k.log.Info("equip: %s looked empty, pressed %s", slot.Name, slot.Key)
		if err := k.sleep(ctx, k.cfg.Equip.Delay); err != nil {
			return "", err
		}
	}
	if only != "" && !matched {
		return "", fmt.Errorf("equip: no slot %q configured", only)
	}
	return params["label"], nil
}

// npcScript returns a handler that runs the chat script called name.
func (k *ActionKit) npcScript(name string) ActionHandler {
	return func(ctx context.Context, params map[string]string) (string, error) {
		phrases := k.cfg.NPC.Scripts[name]
		if len(phrases) == 0 {
			return "", fmt.Errorf("%s: no npc script configured", name)
		}
		for _, phrase := range phrases {
			if err := k.chat(ctx, phrase); err != nil {
				return "", fmt.Errorf("%s: %w", name, err)
			}
		}
		return params["label"], nil
	}
}

// Logout presses the logout key and ends the route
func (k *ActionKit) Logout(_ context.Context, _ map[string]string) (string, error) {
	if err := k.input.Tap(k.cfg.Hotkeys.Logout); err != nil {
		k.log.Error("logout key %s failed: %v", k.cfg.Hotkeys.Logout, err)
	}
	return "", ErrRouteEnd
}

// End ends the route
func (k *ActionKit) End(_ context.Context, _ map[string]string) (string, error) {
	return "", ErrRouteEnd
}
