// Package main - vision.go
//
// This file implements the sensing collaborators built on capture, pixel
// sampling and OCR: vitals, the battle list, corpse detection and the
// level up button.
//
// Failure Policy:
// Every sensing failure resolves to a safe value and a log line that names
// the region and what was expected, so an operator can recalibrate:
//   - vitals unreadable      -> 100 (assume full)
//   - battle list unreadable -> no hostiles
//   - corpse pixel unreadable or black -> no corpse
//   - level up pixel unreadable         -> no level up
//
// Battle List Names:
// OCR text is split into lines; each non-empty line is lowercased, trimmed
// and spaces become underscores ("Muglex Footman" -> "muglex_footman").
// A configured monster matches a line when the line contains its name, so
// OCR noise around a name does not hide it.
package main

import (
	"image"
	"regexp"
	"strconv"
	"strings"
)

// Screen is the capture side of a Device.
type Screen interface {
	CaptureRegion(rect image.Rectangle) (*image.RGBA, error)
	PixelAt(x, y int) (Color, error)
}

// Vision reads game state from the screen.
type Vision struct {
	screen Screen
	reader TextReader
	cfg    *Config
	log    Logger
}

// NewVision creates the sensing layer
func NewVision(screen Screen, reader TextReader, cfg *Config, log Logger) *Vision {
	return &Vision{screen: screen, reader: reader, cfg: cfg, log: orNop(log)}
}

// ReadText captures region and runs OCR with profile. Failures return "".
func (v *Vision) ReadText(region Bounds, profile string) string {
	if region.Empty() || v.reader == nil {
		return ""
	}
	img, err := v.screen.CaptureRegion(region.Rect())
	if err != nil {
		v.log.Warn("capture %s for %s text failed: %v", region, profile, err)
		return ""
	}
	text, err := v.reader.ReadText(img, profile)
	if err != nil {
		v.log.Warn("ocr %s in %s failed: %v", profile, region, err)
		return ""
	}
	return text
}

var numberPattern = regexp.MustCompile(`\d+`)

// parsePercent reads "87", "87%" or "870/1000" as a percentage.
func parsePercent(text string) (int, bool) {
	nums := numberPattern.FindAllString(text, -1)
	if len(nums) == 0 {
		return 0, false
	}
	cur, err := strconv.Atoi(nums[0])
	if err != nil {
		return 0, false
	}
	if strings.Contains(text, "/") && len(nums) >= 2 {
		total, err := strconv.Atoi(nums[1])
		if err != nil || total <= 0 {
			return 0, false
		}
		return Clamp(cur*100/total, 0, 100), true
	}
	return Clamp(cur, 0, 100), true
}

func (v *Vision) percent(region Bounds, what string) int {
	text := v.ReadText(region, ProfileDigits)
	p, ok := parsePercent(text)
	if !ok {
		v.log.Debug("%s unreadable in %s (got %q, want a percentage); assuming 100", what, region, text)
		return 100
	}
	return p
}

// Vitals returns HP and mana percentages
func (v *Vision) Vitals() (hp, mana int) {
	return v.percent(v.cfg.Healer.HPRegion, "hp"), v.percent(v.cfg.Healer.ManaRegion, "mana")
}

// normalizeName turns an OCR line into a monster key.
func normalizeName(line string) string {
	fields := strings.Fields(strings.ToLower(line))
	return strings.Join(fields, "_")
}

// parseHostiles splits battle list OCR text into normalized names, keeping
// row order.
func parseHostiles(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		if name := normalizeName(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// DetectHostiles reads the battle list, one name per row
func (v *Vision) DetectHostiles() []string {
	text := v.ReadText(v.cfg.Combat.BattleList, ProfileNames)
	return parseHostiles(text)
}

// matchesMonster reports whether an OCR'd name refers to monster.
func matchesMonster(name, monster string) bool {
	m := normalizeName(strings.ReplaceAll(monster, "_", " "))
	return m != "" && strings.Contains(name, m)
}

// DetectPriorityTarget reports whether a priority monster or boss is listed.
func (v *Vision) DetectPriorityTarget() bool {
	for _, name := range v.DetectHostiles() {
		if priorityWeight(v.cfg.Combat, name) > 0 {
			return true
		}
	}
	return false
}

// CorpseVisible samples the corpse area center against the corpse palette.
func (v *Vision) CorpseVisible() bool {
	area := v.cfg.Looter.CorpseArea
	if area.Empty() {
		return false
	}
	c := area.Center()
	got, err := v.screen.PixelAt(c.X, c.Y)
	if err != nil {
		v.log.Warn("corpse pixel at (%d,%d) unreadable: %v", c.X, c.Y, err)
		return false
	}
	if got.IsBlack() {
		v.log.Debug("corpse pixel at (%d,%d) is black; no corpse", c.X, c.Y)
		return false
	}
	for _, want := range v.cfg.Looter.CorpseColors {
		if got.Matches(want, v.cfg.Looter.Tolerance) {
			return true
		}
	}
	v.log.Debug("corpse pixel at (%d,%d) is %s, not in corpse palette", c.X, c.Y, got)
	return false
}

// CheckLevelUp reports whether the level up button center shows its lit
// colour.
func (v *Vision) CheckLevelUp() bool {
	lu := v.cfg.LevelUp
	if lu.Button.Empty() {
		return false
	}
	c := lu.Button.Center()
	got, err := v.screen.PixelAt(c.X, c.Y)
	if err != nil {
		v.log.Warn("level up pixel at (%d,%d) unreadable: %v", c.X, c.Y, err)
		return false
	}
	return got.Matches(lu.Color, lu.Tolerance)
}
