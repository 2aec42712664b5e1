package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendNative || cfg.Navigation.Connectivity != ConnectivityFour {
		t.Fatalf("backend=%q connectivity=%q", cfg.Backend, cfg.Navigation.Connectivity)
	}
	if cfg.Navigation.StepMaxRetries != 5 || cfg.Navigation.WaypointMaxRetries != 12 {
		t.Fatalf("retries=%d/%d want=5/12", cfg.Navigation.StepMaxRetries, cfg.Navigation.WaypointMaxRetries)
	}
	if len(cfg.NPC.Scripts["refill"]) == 0 {
		t.Fatalf("default npc scripts missing")
	}
	if !cfg.IsLooping() {
		t.Fatalf("loop default=false want=true")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
backend: serial
loop_waypoints: false
hotkeys:
  up: w
  down: s
  left: a
  right: d
estimator:
  minimap_region: {x: 10, y: 20, w: 100, h: 80}
  marker_color: "#ff00ff"
  base: [32000, 31000, 7]
  origin: {x: 60, y: 60}
navigation:
  connectivity: eight
  arrival_tolerance: 0
  hold_min: 100ms
  hold_max: 1s
combat:
  priority:
    dragon: 5
  bosses: [demon]
npc:
  scripts:
    refill: ["hi", "potions", "yes"]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendSerial || cfg.IsLooping() {
		t.Fatalf("backend=%q loop=%v", cfg.Backend, cfg.IsLooping())
	}
	if cfg.Hotkeys.DirectionKey(DirWest) != "a" || cfg.Hotkeys.Attack != "f1" {
		t.Fatalf("hotkeys=%+v", cfg.Hotkeys)
	}
	if cfg.Estimator.MarkerColor != NewColor(255, 0, 255) {
		t.Fatalf("marker=%v", cfg.Estimator.MarkerColor)
	}
	if cfg.Estimator.Base != NewCoordinate(32000, 31000, 7) {
		t.Fatalf("base=%v", cfg.Estimator.Base)
	}
	if cfg.Estimator.ReferenceOrigin() != NewPoint(60, 60) {
		t.Fatalf("origin=%v", cfg.Estimator.ReferenceOrigin())
	}
	if cfg.Navigation.Connectivity != ConnectivityEight || cfg.Navigation.ArrivalTolerance != 0 {
		t.Fatalf("navigation=%+v", cfg.Navigation)
	}
	if cfg.Navigation.HoldMin != 100*time.Millisecond || cfg.Navigation.HoldMax != time.Second {
		t.Fatalf("holds=%v/%v", cfg.Navigation.HoldMin, cfg.Navigation.HoldMax)
	}
	if cfg.Navigation.SettleDelay != NewConfig().Navigation.SettleDelay {
		t.Fatalf("omitted key lost its default: %v", cfg.Navigation.SettleDelay)
	}
	if len(cfg.Combat.Priority) != 1 || cfg.Combat.Priority["dragon"] != 5 {
		t.Fatalf("priority=%v want only dragon", cfg.Combat.Priority)
	}
	if got := cfg.NPC.Scripts["refill"]; len(got) != 3 || got[1] != "potions" {
		t.Fatalf("refill script=%v", got)
	}
	if _, ok := cfg.NPC.Scripts["bank"]; ok {
		t.Fatalf("configured scripts were merged with defaults")
	}
}

func TestLoadConfigEquipAndLevelUp(t *testing.T) {
	path := writeFile(t, "config.yaml", `
navigation:
  idle_poll_min: 150ms
  idle_poll_max: 300ms
equip:
  slots:
    - {name: amulet, region: {x: 1770, y: 200, w: 32, h: 32}, key: f11}
  delay: 1s
level_up:
  button: {x: 1690, y: 220, w: 150, h: 60}
  color: "#ffd700"
  tolerance: 60
  skills:
    - {name: magic, key: f8, priority: 2}
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Navigation.IdlePollMin != 150*time.Millisecond || cfg.Navigation.IdlePollMax != 300*time.Millisecond {
		t.Fatalf("idle poll=%v-%v", cfg.Navigation.IdlePollMin, cfg.Navigation.IdlePollMax)
	}
	if len(cfg.Equip.Slots) != 1 || cfg.Equip.Slots[0].Name != "amulet" || cfg.Equip.Slots[0].Key != "f11" {
		t.Fatalf("slots=%+v", cfg.Equip.Slots)
	}
	if cfg.LevelUp.Color != NewColor(255, 215, 0) || cfg.LevelUp.Tolerance != 60 || !cfg.LevelUp.Enabled {
		t.Fatalf("level up=%+v", cfg.LevelUp)
	}
	if len(cfg.LevelUp.Skills) != 1 || cfg.LevelUp.Skills[0].Priority != 2 {
		t.Fatalf("skills=%+v", cfg.LevelUp.Skills)
	}

	if _, err := LoadConfig(writeFile(t, "config.yaml", "equip:\n  slots:\n    - {name: ring}\n")); err == nil {
		t.Fatalf("slot without region and key accepted")
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := map[string]string{
		"unknown section":  "teleport: true\n",
		"bad backend":      "backend: usb\n",
		"bad duration":     "navigation:\n  hold_min: fast\n",
		"bad connectivity": "navigation:\n  connectivity: six\n",
		"bad color":        "estimator:\n  marker_color: [1, 2]\n",
		"bad tolerance":    "estimator:\n  tolerance: 300\n",
	}
	for name, doc := range tests {
		if _, err := LoadConfig(writeFile(t, "config.yaml", doc)); err == nil {
			t.Fatalf("%s: want error", name)
		}
	}
}

func TestDirectionKeys(t *testing.T) {
	keys := NewConfig().Hotkeys
	for d, want := range map[Direction]string{DirNorth: "up", DirEast: "right", DirSouth: "down", DirWest: "left"} {
		if got := keys.DirectionKey(d); got != want {
			t.Fatalf("%v: got=%q want=%q", d, got, want)
		}
	}
	if len(keys.WalkKeys()) != 4 {
		t.Fatalf("walk keys=%v", keys.WalkKeys())
	}
}
