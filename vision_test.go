package main

import (
	"errors"
	"image"
	"image/color"
	"reflect"
	"testing"
)

// profileText answers OCR requests by profile.
type profileText map[string]string

func (p profileText) ReadText(img image.Image, profile string) (string, error) {
	text, ok := p[profile]
	if !ok {
		return "", errors.New("no text")
	}
	return text, nil
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"87", 87, true},
		{"87%", 87, true},
		{"870/1000", 87, true},
		{"HP 45 / 90", 50, true},
		{"150", 100, true},
		{"5/0", 0, false},
		{"", 0, false},
		{"full", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePercent(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("parsePercent(%q) got=%d,%v want=%d,%v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseHostiles(t *testing.T) {
	got := parseHostiles("Muglex Footman\n\n  Rotworm  \nDRAGON   lord\n")
	want := []string{"muglex_footman", "rotworm", "dragon_lord"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
	if parseHostiles("") != nil {
		t.Fatalf("empty text gave hostiles")
	}
}

func TestMatchesMonster(t *testing.T) {
	if !matchesMonster("muglex_footman", "muglex_footman") {
		t.Fatalf("exact name did not match")
	}
	if !matchesMonster("~muglex_footman.", "Muglex Footman") {
		t.Fatalf("noisy name did not match")
	}
	if matchesMonster("rotworm", "muglex_footman") || matchesMonster("rotworm", "") {
		t.Fatalf("unexpected match")
	}
}

func TestVisionReadsThroughOCR(t *testing.T) {
	cfg := testConfig()
	cfg.Healer.HPRegion = NewBounds(0, 0, 10, 10)
	cfg.Healer.ManaRegion = NewBounds(10, 0, 10, 10)
	cfg.Combat.BattleList = NewBounds(0, 10, 20, 10)
	screen := NewImageScreen(image.NewRGBA(image.Rect(0, 0, 40, 40)))
	reader := profileText{
		ProfileDigits: "42%",
		ProfileNames:  "Muglex Assassin\nRat",
	}
	v := NewVision(screen, reader, cfg, nil)

	if hp, mana := v.Vitals(); hp != 42 || mana != 42 {
		t.Fatalf("vitals=%d,%d want=42,42", hp, mana)
	}
	if got := v.DetectHostiles(); !reflect.DeepEqual(got, []string{"muglex_assassin", "rat"}) {
		t.Fatalf("hostiles=%v", got)
	}
	if !v.DetectPriorityTarget() {
		t.Fatalf("assassin is a priority target")
	}
}

func TestVisionFailsSafe(t *testing.T) {
	cfg := testConfig()
	cfg.Healer.HPRegion = NewBounds(0, 0, 10, 10)
	cfg.Healer.ManaRegion = NewBounds(500, 500, 10, 10) // off screen
	screen := NewImageScreen(image.NewRGBA(image.Rect(0, 0, 40, 40)))
	v := NewVision(screen, profileText{}, cfg, nil)

	if hp, mana := v.Vitals(); hp != 100 || mana != 100 {
		t.Fatalf("vitals=%d,%d want=100,100", hp, mana)
	}
	if got := v.DetectHostiles(); len(got) != 0 {
		t.Fatalf("hostiles=%v want none", got)
	}
	if NewVision(screen, nil, cfg, nil).ReadText(cfg.Healer.HPRegion, ProfileDigits) != "" {
		t.Fatalf("nil reader produced text")
	}
}

func TestCorpseVisible(t *testing.T) {
	cfg := testConfig()
	cfg.Looter.CorpseArea = NewBounds(0, 0, 10, 10)
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	v := NewVision(NewImageScreen(img), nil, cfg, nil)

	if v.CorpseVisible() {
		t.Fatalf("black pixel counted as corpse")
	}
	img.SetRGBA(5, 5, color.RGBA{R: 140, G: 70, B: 20, A: 255})
	if !v.CorpseVisible() {
		t.Fatalf("corpse palette pixel not detected")
	}
	img.SetRGBA(5, 5, color.RGBA{R: 0, G: 200, B: 0, A: 255})
	if v.CorpseVisible() {
		t.Fatalf("green pixel counted as corpse")
	}
}

func TestCheckLevelUp(t *testing.T) {
	cfg := testConfig()
	cfg.LevelUp.Button = NewBounds(0, 0, 10, 10)
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	v := NewVision(NewImageScreen(img), nil, cfg, nil)

	if v.CheckLevelUp() {
		t.Fatalf("dark button counted as level up")
	}
	img.SetRGBA(5, 5, color.RGBA{R: 230, G: 190, B: 40, A: 255})
	if !v.CheckLevelUp() {
		t.Fatalf("gold pixel not detected")
	}
	cfg.LevelUp.Button = Bounds{}
	if v.CheckLevelUp() {
		t.Fatalf("empty button region detected a level up")
	}
}
