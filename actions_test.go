package main

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func newTestKit(text fixedText) (*ActionKit, *simWorld, *fakeSleep, *Config) {
	cfg := testConfig()
	cfg.NPC.PhraseDelay = 800 * time.Millisecond
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	sleep := &fakeSleep{}
	return NewActionKit(cfg, world, text.Read, sleep.Sleep, nil), world, sleep, cfg
}

func TestSayTypesIntoChat(t *testing.T) {
	kit, world, sleep, cfg := newTestKit(nil)

	label, err := kit.Say(context.Background(), map[string]string{"text": "hi"})
	if err != nil || label != "" {
		t.Fatalf("got=%q,%v want=\"\",nil", label, err)
	}
	if got, want := world.Taps(), []string{cfg.Hotkeys.Chat, cfg.Hotkeys.Chat}; !reflect.DeepEqual(got, want) {
		t.Fatalf("taps=%v want=%v", got, want)
	}
	if got := world.Typed(); !reflect.DeepEqual(got, []string{"hi"}) {
		t.Fatalf("typed=%v want=[hi]", got)
	}
	if sleep.Count(cfg.NPC.PhraseDelay) != 1 {
		t.Fatalf("phrase delay not applied")
	}

	if _, err := kit.Say(context.Background(), map[string]string{}); err == nil {
		t.Fatalf("want error for missing text")
	}
}

func TestGotoAndWait(t *testing.T) {
	kit, _, sleep, _ := newTestKit(nil)
	ctx := context.Background()

	if label, err := kit.Goto(ctx, map[string]string{"label": "depot"}); err != nil || label != "depot" {
		t.Fatalf("goto got=%q,%v want=depot,nil", label, err)
	}
	if _, err := kit.Goto(ctx, nil); err == nil {
		t.Fatalf("want error for goto without label")
	}

	if _, err := kit.Wait(ctx, map[string]string{"duration": "1500ms"}); err != nil {
		t.Fatal(err)
	}
	if sleep.Count(1500*time.Millisecond) != 1 {
		t.Fatalf("wait did not sleep 1.5s: %v", sleep.calls)
	}
	if _, err := kit.Wait(ctx, map[string]string{"duration": "soon"}); err == nil {
		t.Fatalf("want error for bad duration")
	}
}

func TestCheckSupplies(t *testing.T) {
	params := map[string]string{
		"region_x": "500", "region_y": "600", "region_w": "40", "region_h": "12",
		"min": "20", "label": "refill",
	}
	tests := []struct {
		text string
		want string
	}{
		{"19", "refill"},
		{"x 5 potions", "refill"},
		{"20", ""},
		{"350", ""},
		{"", ""},
		{"--", ""},
	}
	for _, tt := range tests {
		kit, _, _, _ := newTestKit(fixedText{supplyRegion: tt.text})
		got, err := kit.CheckSupplies(context.Background(), params)
		if err != nil {
			t.Fatalf("text %q: %v", tt.text, err)
		}
		if got != tt.want {
			t.Fatalf("text %q: got=%q want=%q", tt.text, got, tt.want)
		}
	}
}

func TestCheckSuppliesOverflowingCount(t *testing.T) {
	kit, _, _, _ := newTestKit(fixedText{supplyRegion: "99999999999999999999"})
	log := &recordLog{}
	kit.log = log
	params := map[string]string{
		"region_x": "500", "region_y": "600", "region_w": "40", "region_h": "12",
		"min": "20", "label": "refill",
	}

	got, err := kit.CheckSupplies(context.Background(), params)
	if err != nil || got != "" {
		t.Fatalf("got=%q,%v want=\"\",nil", got, err)
	}
	if !log.Contains("bad count") {
		t.Fatalf("overflowing count not reported: %v", log.lines)
	}
}

func TestCheckSuppliesBadParams(t *testing.T) {
	kit, _, _, _ := newTestKit(nil)
	for _, params := range []map[string]string{
		{"region_x": "1", "region_y": "1", "region_w": "1", "region_h": "1", "label": "x"},
		{"region_x": "1", "region_y": "1", "region_w": "1", "region_h": "1", "min": "two", "label": "x"},
		{"region_x": "1", "region_y": "1", "region_w": "1", "region_h": "1", "min": "2"},
	} {
		if _, err := kit.CheckSupplies(context.Background(), params); err == nil {
			t.Fatalf("params %v: want error", params)
		}
	}
}

func TestNPCScript(t *testing.T) {
	kit, world, _, cfg := newTestKit(nil)
	cfg.NPC.Scripts = map[string][]string{"deposit": {"hi", "deposit all", "yes"}}

	label, err := kit.npcScript("deposit")(context.Background(), map[string]string{"label": "hunt"})
	if err != nil {
		t.Fatal(err)
	}
	if label != "hunt" {
		t.Fatalf("label=%q want=hunt", label)
	}
	if got, want := world.Typed(), []string{"hi", "deposit all", "yes"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("typed=%v want=%v", got, want)
	}
	if len(world.Taps()) != 6 {
		t.Fatalf("taps=%d want=6", len(world.Taps()))
	}

	if _, err := kit.npcScript("bank")(context.Background(), map[string]string{}); err == nil {
		t.Fatalf("want error for missing script")
	}
}

func TestConfiguredScriptsAreRegistered(t *testing.T) {
	cfg := testConfig()
	cfg.NPC.Scripts["greet"] = []string{"hello"}
	cfg.NPC.Scripts["say"] = []string{"shadowed"}
	route := mustRoute("town",
		Action("greet", nil),
		Action("say", map[string]string{"text": "yo"}),
	)
	world := newSimWorld(cfg, NewCoordinate(0, 0, 0))
	td := newTestDirector(cfg, route, world, nil, nil)

	if err := td.d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got, want := world.Typed(), []string{"hello", "yo"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("typed=%v want=%v", got, want)
	}
	if n := countKind(td.events.Events(), EventActionError); n != 0 {
		t.Fatalf("action errors=%d want=0", n)
	}
}

func TestEquipRefillsEmptySlots(t *testing.T) {
	ring := NewBounds(1770, 240, 32, 32)
	amulet := NewBounds(1770, 200, 32, 32)
	tests := []struct {
		name   string
		text   fixedText
		params map[string]string
		taps   []string
	}{
		{"both empty", fixedText{amulet: " Empty "}, nil, []string{"f8", "f9"}},
		{"ring worn", fixedText{ring: "Might Ring"}, nil, []string{"f9"}},
		{"only ring", fixedText{}, map[string]string{"slot": "ring"}, []string{"f8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kit, world, sleep, cfg := newTestKit(tt.text)
			cfg.Equip.Slots = []EquipSlot{
				{Name: "ring", Region: ring, Key: "f8"},
				{Name: "amulet", Region: amulet, Key: "f9"},
			}

			label, err := kit.Equip(context.Background(), tt.params)
			if err != nil || label != "" {
				t.Fatalf("got=%q,%v want=\"\",nil", label, err)
			}
			if got := world.Taps(); !reflect.DeepEqual(got, tt.taps) {
				t.Fatalf("taps=%v want=%v", got, tt.taps)
			}
			if got := len(world.clicks); got != len(tt.taps) {
				t.Fatalf("clicks=%d want=%d", got, len(tt.taps))
			}
			if got := sleep.Count(cfg.Equip.Delay); got != len(tt.taps) {
				t.Fatalf("delays=%d want=%d", got, len(tt.taps))
			}
		})
	}
}

func TestEquipUnknownSlot(t *testing.T) {
	kit, world, _, _ := newTestKit(nil)
	if _, err := kit.Equip(context.Background(), map[string]string{"slot": "boots"}); err == nil {
		t.Fatalf("want error for unconfigured slot")
	}
	if len(world.Taps()) != 0 {
		t.Fatalf("taps=%v want none", world.Taps())
	}
}

func TestLogoutEndsRoute(t *testing.T) {
	kit, world, _, cfg := newTestKit(nil)

	_, err := kit.Logout(context.Background(), nil)
	if !errors.Is(err, ErrRouteEnd) {
		t.Fatalf("err=%v want=ErrRouteEnd", err)
	}
	if got := world.Taps(); len(got) != 1 || got[0] != cfg.Hotkeys.Logout {
		t.Fatalf("taps=%v want=[%s]", got, cfg.Hotkeys.Logout)
	}
	if _, err := kit.End(context.Background(), nil); !errors.Is(err, ErrRouteEnd) {
		t.Fatalf("err=%v want=ErrRouteEnd", err)
	}
}
