// Package main - config.go
//
// This file defines the bot configuration and its loading/validation.
//
// Configuration Sections:
//   - backend:      input/capture backend (native, browser, serial)
//   - hotkeys:      walking keys, attack, heals, level transition, logout
//   - estimator:    minimap marker sampling and OCR coordinate fallback
//   - navigation:   connectivity, arrival tolerance, retry limits, key holds
//   - combat:       battle list, priority monsters, bosses, cooldown, loot delay
//   - healer:       vitals OCR regions and thresholds
//   - looter:       corpse sampling and quick loot
//   - equip:        inventory slots refilled by the equip action
//   - level_up:     level up button colour and stat keys
//   - anti_idle:    random breaks and mouse nudges
//   - npc:          chat phrases for NPC actions
//   - browser/serial/ocr/storage/status_feed/control_keys: collaborators
//
// Load Behavior:
//   - If the file does not exist: defaults from NewConfig()
//   - Otherwise the document is validated against the embedded JSON Schema
//     and decoded over the defaults, so omitted keys keep their default
//   - Any validation or decode failure is returned to the caller
//
// Thread Safety:
// After load the configuration is read-only except for the runtime toggles
// (loop mode) the tray flips; those go through the RWMutex accessors.
package main

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names
const (
	BackendNative  = "native"
	BackendBrowser = "browser"
	BackendSerial  = "serial"
)

// Connectivity names
const (
	ConnectivityFour  = "four"
	ConnectivityEight = "eight"
)

// HotkeyConfig binds game actions to keys.
type HotkeyConfig struct {
	Up         string `yaml:"up"`
	Down       string `yaml:"down"`
	Left       string `yaml:"left"`
	Right      string `yaml:"right"`
	Attack     string `yaml:"attack"`
	HealSpell  string `yaml:"heal_spell"`
	StrongHeal string `yaml:"strong_heal"`
	Food       string `yaml:"food"`
	ManaPotion string `yaml:"mana_potion"`
	LevelUp    string `yaml:"level_up"`
	LevelDown  string `yaml:"level_down"`
	Logout     string `yaml:"logout"`
	Chat       string `yaml:"chat"`
}

// DirectionKey returns the walking key for d.
func (h HotkeyConfig) DirectionKey(d Direction) string {
	switch d {
	case DirNorth:
		return h.Up
	case DirEast:
		return h.Right
	case DirSouth:
		return h.Down
	case DirWest:
		return h.Left
	}
	return ""
}

// WalkKeys returns every walking key, used to release them on stop.
func (h HotkeyConfig) WalkKeys() []string {
	return []string{h.Up, h.Down, h.Left, h.Right}
}

// EstimatorConfig configures the position estimator.
type EstimatorConfig struct {
	MinimapRegion Bounds     `yaml:"minimap_region"`
	MarkerColor   Color      `yaml:"marker_color"`
	Tolerance     uint8      `yaml:"tolerance"`
	Origin        *Point     `yaml:"origin"` // nil means minimap center
	PixelsPerTile int        `yaml:"pixels_per_tile"`
	Base          Coordinate `yaml:"base"`
	CoordRegion   Bounds     `yaml:"coord_region"` // empty disables the OCR fallback
}

// ReferenceOrigin is the pixel that maps onto Base.
func (e EstimatorConfig) ReferenceOrigin() Point {
	if e.Origin != nil {
		return *e.Origin
	}
	return e.MinimapRegion.Center()
}

// NavigationConfig configures planning and motion.
type NavigationConfig struct {
	Connectivity       string        `yaml:"connectivity"`
	ArrivalTolerance   int           `yaml:"arrival_tolerance"`
	StepMaxRetries     int           `yaml:"step_max_retries"`
	WaypointMaxRetries int           `yaml:"waypoint_max_retries"`
	HoldMin            time.Duration `yaml:"hold_min"`
	HoldMax            time.Duration `yaml:"hold_max"`
	SettleDelay        time.Duration `yaml:"settle_delay"`
	BlockedPause       time.Duration `yaml:"blocked_pause"`
	LevelChangeDelay   time.Duration `yaml:"level_change_delay"`
	IdlePollMin        time.Duration `yaml:"idle_poll_min"`
	IdlePollMax        time.Duration `yaml:"idle_poll_max"`
	SearchMargin       int           `yaml:"search_margin"`
	MaxExpansions      int           `yaml:"max_expansions"`
}

// CombatConfig configures the combat interrupt.
type CombatConfig struct {
	BattleList     Bounds         `yaml:"battle_list"`
	RowHeight      int            `yaml:"row_height"`
	ClickTargets   bool           `yaml:"click_targets"`
	Priority       map[string]int `yaml:"priority"`
	Bosses         []string       `yaml:"bosses"`
	EngageAny      bool           `yaml:"engage_any"`
	PollInterval   time.Duration  `yaml:"poll_interval"`
	AttackCooldown time.Duration  `yaml:"attack_cooldown"`
	LootDelay      time.Duration  `yaml:"loot_delay"`
}

// HealerConfig configures the health monitor.
type HealerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	HPRegion        Bounds        `yaml:"hp_region"`
	ManaRegion      Bounds        `yaml:"mana_region"`
	HealBelow       int           `yaml:"heal_below"`
	StrongHealBelow int           `yaml:"strong_heal_below"`
	EatFoodBelow    int           `yaml:"eat_food_below"`
	ManaBelow       int           `yaml:"mana_below"`
	PollMin         time.Duration `yaml:"poll_min"`
	PollMax         time.Duration `yaml:"poll_max"`
	HealCooldown    time.Duration `yaml:"heal_cooldown"`
	FoodCooldown    time.Duration `yaml:"food_cooldown"`
	ManaCooldown    time.Duration `yaml:"mana_cooldown"`
}

// LooterConfig configures corpse looting.
type LooterConfig struct {
	Enabled       bool    `yaml:"enabled"`
	CorpseArea    Bounds  `yaml:"corpse_area"`
	CorpseColors  []Color `yaml:"corpse_colors"`
	Tolerance     uint8   `yaml:"tolerance"`
	QuickLoot     bool    `yaml:"quick_loot"`
	QuickLootKey  string  `yaml:"quick_loot_key"`
	PriorityItems int     `yaml:"priority_items"`
}

// EquipSlot is an inventory slot the equip action keeps filled.
type EquipSlot struct {
	Name   string `yaml:"name"`
	Region Bounds `yaml:"region"`
	Key    string `yaml:"key"`
}

// EquipConfig configures the equip action.
type EquipConfig struct {
	Slots []EquipSlot   `yaml:"slots"`
	Delay time.Duration `yaml:"delay"`
}

// SkillKey binds one stat to the key that spends a point on it.
type SkillKey struct {
	Name     string `yaml:"name"`
	Key      string `yaml:"key"`
	Priority int    `yaml:"priority"`
}

// LevelUpConfig configures stat assignment when the level up button lights.
type LevelUpConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Button    Bounds        `yaml:"button"`
	Color     Color         `yaml:"color"`
	Tolerance uint8         `yaml:"tolerance"`
	Skills    []SkillKey    `yaml:"skills"`
	KeyDelay  time.Duration `yaml:"key_delay"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// AntiIdleConfig configures humanizing breaks.
type AntiIdleConfig struct {
	BreakChance float64       `yaml:"break_chance"`
	BreakMin    time.Duration `yaml:"break_min"`
	BreakMax    time.Duration `yaml:"break_max"`
	NudgeChance float64       `yaml:"nudge_chance"`
	NudgeArea   Bounds        `yaml:"nudge_area"`
}

// NPCConfig configures NPC chat scripts for named actions.
type NPCConfig struct {
	Scripts     map[string][]string `yaml:"scripts"`
	PhraseDelay time.Duration       `yaml:"phrase_delay"`
}

// BrowserConfig configures the chromedp backend.
type BrowserConfig struct {
	URL      string `yaml:"url"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Headless bool   `yaml:"headless"`
	Overlay  bool   `yaml:"overlay"`
}

// SerialConfig configures the Arduino HID backend.
type SerialConfig struct {
	VID         string        `yaml:"vid"`
	PID         string        `yaml:"pid"`
	Port        string        `yaml:"port"` // explicit port skips enumeration
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// OCRConfig configures tesseract.
type OCRConfig struct {
	Language string `yaml:"language"`
}

// StorageConfig configures the event sinks on disk.
type StorageConfig struct {
	DBPath     string `yaml:"db_path"`
	JournalDir string `yaml:"journal_dir"`
}

// StatusFeedConfig configures the websocket status feed.
type StatusFeedConfig struct {
	Addr     string        `yaml:"addr"` // empty disables
	Interval time.Duration `yaml:"interval"`
}

// ControlKeysConfig configures global hotkeys.
type ControlKeysConfig struct {
	Enabled bool   `yaml:"enabled"`
	Pause   string `yaml:"pause"`
	Stop    string `yaml:"stop"`
}

// Config holds bot configuration
type Config struct {
	Backend       string `yaml:"backend"`
	Debug         bool   `yaml:"debug"`
	RoutePath     string `yaml:"route"`
	LoopWaypoints bool   `yaml:"loop_waypoints"`

	Hotkeys     HotkeyConfig      `yaml:"hotkeys"`
	Estimator   EstimatorConfig   `yaml:"estimator"`
	Navigation  NavigationConfig  `yaml:"navigation"`
	Combat      CombatConfig      `yaml:"combat"`
	Healer      HealerConfig      `yaml:"healer"`
	Looter      LooterConfig      `yaml:"looter"`
	Equip       EquipConfig       `yaml:"equip"`
	LevelUp     LevelUpConfig     `yaml:"level_up"`
	AntiIdle    AntiIdleConfig    `yaml:"anti_idle"`
	NPC         NPCConfig         `yaml:"npc"`
	Browser     BrowserConfig     `yaml:"browser"`
	Serial      SerialConfig      `yaml:"serial"`
	OCR         OCRConfig         `yaml:"ocr"`
	Storage     StorageConfig     `yaml:"storage"`
	StatusFeed  StatusFeedConfig  `yaml:"status_feed"`
	ControlKeys ControlKeysConfig `yaml:"control_keys"`

	mu sync.RWMutex
}

// NewConfig creates default configuration
func NewConfig() *Config {
	return &Config{
		Backend:       BackendNative,
		RoutePath:     "route.yaml",
		LoopWaypoints: true,
		Hotkeys: HotkeyConfig{
			Up:         "up",
			Down:       "down",
			Left:       "left",
			Right:      "right",
			Attack:     "f1",
			HealSpell:  "f2",
			StrongHeal: "f3",
			Food:       "f4",
			ManaPotion: "f5",
			LevelUp:    "f6",
			LevelDown:  "f7",
			Logout:     "f12",
			Chat:       "enter",
		},
		Estimator: EstimatorConfig{
			MinimapRegion: NewBounds(1750, 30, 110, 110),
			MarkerColor:   NewColor(255, 255, 255),
			Tolerance:     30,
			PixelsPerTile: 1,
		},
		Navigation: NavigationConfig{
			Connectivity:       ConnectivityFour,
			ArrivalTolerance:   1,
			StepMaxRetries:     5,
			WaypointMaxRetries: 12,
			HoldMin:            120 * time.Millisecond,
			HoldMax:            260 * time.Millisecond,
			SettleDelay:        150 * time.Millisecond,
			BlockedPause:       300 * time.Millisecond,
			LevelChangeDelay:   800 * time.Millisecond,
			IdlePollMin:        200 * time.Millisecond,
			IdlePollMax:        400 * time.Millisecond,
			SearchMargin:       32,
			MaxExpansions:      20000,
		},
		Combat: CombatConfig{
			BattleList:     NewBounds(1750, 300, 160, 220),
			RowHeight:      22,
			PollInterval:   200 * time.Millisecond,
			AttackCooldown: 350 * time.Millisecond,
			LootDelay:      1800 * time.Millisecond,
		},
		Healer: HealerConfig{
			Enabled:         true,
			HPRegion:        NewBounds(1760, 160, 60, 16),
			ManaRegion:      NewBounds(1760, 180, 60, 16),
			HealBelow:       75,
			StrongHealBelow: 45,
			EatFoodBelow:    50,
			ManaBelow:       40,
			PollMin:         250 * time.Millisecond,
			PollMax:         500 * time.Millisecond,
			HealCooldown:    time.Second,
			FoodCooldown:    60 * time.Second,
			ManaCooldown:    time.Second,
		},
		Looter: LooterConfig{
			Enabled:      true,
			CorpseArea:   NewBounds(880, 420, 64, 64),
			Tolerance:    70,
			QuickLootKey: "alt",
		},
		Equip: EquipConfig{
			Delay: 500 * time.Millisecond,
		},
		LevelUp: LevelUpConfig{
			Enabled:   true,
			Button:    NewBounds(1690, 220, 150, 60),
			Color:     NewColor(255, 215, 0),
			Tolerance: 80,
			KeyDelay:  300 * time.Millisecond,
			Cooldown:  5 * time.Second,
		},
		AntiIdle: AntiIdleConfig{
			BreakChance: 0.08,
			BreakMin:    3 * time.Second,
			BreakMax:    10 * time.Second,
			NudgeChance: 0.25,
			NudgeArea:   NewBounds(400, 200, 800, 500),
		},
		NPC: NPCConfig{
			PhraseDelay: 800 * time.Millisecond,
		},
		Browser: BrowserConfig{
			Width:  1280,
			Height: 800,
		},
		Serial: SerialConfig{
			VID:         "2341",
			PID:         "8036",
			BaudRate:    9600,
			ReadTimeout: 2 * time.Second,
		},
		OCR: OCRConfig{
			Language: "eng",
		},
		Storage: StorageConfig{
			DBPath:     "cavebot.db",
			JournalDir: "journal",
		},
		StatusFeed: StatusFeedConfig{
			Interval: time.Second,
		},
		ControlKeys: ControlKeysConfig{
			Enabled: true,
			Pause:   "f9",
			Stop:    "f10",
		},
	}
}

// fillDefaults sets collections that decoding would otherwise merge into
// instead of replace.
func (c *Config) fillDefaults() {
	if len(c.Combat.Priority) == 0 {
		c.Combat.Priority = map[string]int{
			"muglex_assassin": 2,
			"muglex_footman":  1,
		}
	}
	if len(c.Looter.CorpseColors) == 0 {
		c.Looter.CorpseColors = []Color{
			NewColor(139, 69, 19),
			NewColor(101, 67, 33),
			NewColor(128, 128, 128),
			NewColor(160, 82, 45),
		}
	}
	if len(c.NPC.Scripts) == 0 {
		c.NPC.Scripts = map[string][]string{
			"refill":  {"hi", "trade"},
			"buy":     {"hi", "trade"},
			"bank":    {"hi", "balance"},
			"deposit": {"hi", "deposit all", "yes"},
		}
	}
	if len(c.Equip.Slots) == 0 {
		c.Equip.Slots = []EquipSlot{
			{Name: "ring", Region: NewBounds(1770, 240, 32, 32), Key: "f8"},
		}
	}
	if c.Navigation.StepMaxRetries <= 0 {
		c.Navigation.StepMaxRetries = 5
	}
	if c.Navigation.WaypointMaxRetries <= 0 {
		c.Navigation.WaypointMaxRetries = 12
	}
	if c.Navigation.IdlePollMin <= 0 {
		c.Navigation.IdlePollMin = 200 * time.Millisecond
	}
	if c.Navigation.IdlePollMax < c.Navigation.IdlePollMin {
		c.Navigation.IdlePollMax = c.Navigation.IdlePollMin
	}
	if c.Estimator.PixelsPerTile <= 0 {
		c.Estimator.PixelsPerTile = 1
	}
}

// LoadConfig reads, validates and decodes a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg.fillDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := validateYAML("config.schema.json", configSchema, raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// IsLooping safely returns the loop toggle
func (c *Config) IsLooping() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LoopWaypoints
}

// SetLooping safely sets the loop toggle
func (c *Config) SetLooping(loop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LoopWaypoints = loop
}
