// Package main - schema.go
//
// Embedded JSON Schemas for config.yaml and route files, and the helper that
// validates a YAML document against them.
//
// YAML is decoded generically, re-encoded as JSON and decoded again so the
// validator sees plain JSON values (float64 numbers, string-keyed maps).
package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const durationPattern = `^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

var boundsSchema = `{
	"type": "object",
	"properties": {
		"x": {"type": "integer"},
		"y": {"type": "integer"},
		"w": {"type": "integer", "minimum": 0},
		"h": {"type": "integer", "minimum": 0}
	},
	"additionalProperties": false
}`

var colorSchema = `{
	"oneOf": [
		{"type": "string", "pattern": "^#?[0-9a-fA-F]{6}$"},
		{"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 255}, "minItems": 3, "maxItems": 3}
	]
}`

var coordinateSchema = `{
	"oneOf": [
		{"type": "array", "items": {"type": "integer"}, "minItems": 2, "maxItems": 3},
		{
			"type": "object",
			"properties": {"x": {"type": "integer"}, "y": {"type": "integer"}, "z": {"type": "integer"}},
			"required": ["x", "y"],
			"additionalProperties": false
		}
	]
}`

var durationSchema = `{"type": "string", "pattern": "` + durationPattern + `"}`

var configSchema = expandSchema(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"backend": {"enum": ["native", "browser", "serial"]},
		"debug": {"type": "boolean"},
		"route": {"type": "string"},
		"loop_waypoints": {"type": "boolean"},
		"hotkeys": {"type": "object", "additionalProperties": {"type": "string"}},
		"estimator": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"minimap_region": @BOUNDS@,
				"marker_color": @COLOR@,
				"tolerance": {"type": "integer", "minimum": 0, "maximum": 255},
				"origin": {"type": "object", "properties": {"x": {"type": "integer"}, "y": {"type": "integer"}}},
				"pixels_per_tile": {"type": "integer", "minimum": 1},
				"base": @COORD@,
				"coord_region": @BOUNDS@
			}
		},
		"navigation": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"connectivity": {"enum": ["four", "eight"]},
				"arrival_tolerance": {"type": "integer", "minimum": 0},
				"step_max_retries": {"type": "integer", "minimum": 1},
				"waypoint_max_retries": {"type": "integer", "minimum": 1},
				"hold_min": @DURATION@,
				"hold_max": @DURATION@,
				"settle_delay": @DURATION@,
				"blocked_pause": @DURATION@,
				"level_change_delay": @DURATION@,
				"idle_poll_min": @DURATION@,
				"idle_poll_max": @DURATION@,
				"search_margin": {"type": "integer", "minimum": 0},
				"max_expansions": {"type": "integer", "minimum": 1}
			}
		},
		"combat": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"battle_list": @BOUNDS@,
				"row_height": {"type": "integer", "minimum": 1},
				"click_targets": {"type": "boolean"},
				"priority": {"type": "object", "additionalProperties": {"type": "integer"}},
				"bosses": {"type": "array", "items": {"type": "string"}},
				"engage_any": {"type": "boolean"},
				"poll_interval": @DURATION@,
				"attack_cooldown": @DURATION@,
				"loot_delay": @DURATION@
			}
		},
		"healer": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"enabled": {"type": "boolean"},
				"hp_region": @BOUNDS@,
				"mana_region": @BOUNDS@,
				"heal_below": {"type": "integer", "minimum": 0, "maximum": 100},
				"strong_heal_below": {"type": "integer", "minimum": 0, "maximum": 100},
				"eat_food_below": {"type": "integer", "minimum": 0, "maximum": 100},
				"mana_below": {"type": "integer", "minimum": 0, "maximum": 100},
				"poll_min": @DURATION@,
				"poll_max": @DURATION@,
				"heal_cooldown": @DURATION@,
				"food_cooldown": @DURATION@,
				"mana_cooldown": @DURATION@
			}
		},
		"looter": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"enabled": {"type": "boolean"},
				"corpse_area": @BOUNDS@,
				"corpse_colors": {"type": "array", "items": @COLOR@},
				"tolerance": {"type": "integer", "minimum": 0, "maximum": 255},
				"quick_loot": {"type": "boolean"},
				"quick_loot_key": {"type": "string"},
				"priority_items": {"type": "integer", "minimum": 0}
			}
		},
		"equip": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"slots": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["name", "region", "key"],
						"additionalProperties": false,
						"properties": {"name": {"type": "string"}, "region": @BOUNDS@, "key": {"type": "string"}}
					}
				},
				"delay": @DURATION@
			}
		},
		"level_up": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"enabled": {"type": "boolean"},
				"button": @BOUNDS@,
				"color": @COLOR@,
				"tolerance": {"type": "integer", "minimum": 0, "maximum": 255},
				"skills": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["key"],
						"additionalProperties": false,
						"properties": {"name": {"type": "string"}, "key": {"type": "string"}, "priority": {"type": "integer"}}
					}
				},
				"key_delay": @DURATION@,
				"cooldown": @DURATION@
			}
		},
		"anti_idle": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"break_chance": {"type": "number", "minimum": 0, "maximum": 1},
				"break_min": @DURATION@,
				"break_max": @DURATION@,
				"nudge_chance": {"type": "number", "minimum": 0, "maximum": 1},
				"nudge_area": @BOUNDS@
			}
		},
		"npc": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"scripts": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
				"phrase_delay": @DURATION@
			}
		},
		"browser": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"url": {"type": "string"},
				"width": {"type": "integer", "minimum": 1},
				"height": {"type": "integer", "minimum": 1},
				"headless": {"type": "boolean"},
				"overlay": {"type": "boolean"}
			}
		},
		"serial": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"vid": {"type": "string"},
				"pid": {"type": "string"},
				"port": {"type": "string"},
				"baud_rate": {"type": "integer", "minimum": 1},
				"read_timeout": @DURATION@
			}
		},
		"ocr": {
			"type": "object",
			"properties": {"language": {"type": "string"}}
		},
		"storage": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"db_path": {"type": "string"},
				"journal_dir": {"type": "string"}
			}
		},
		"status_feed": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"addr": {"type": "string"},
				"interval": @DURATION@
			}
		},
		"control_keys": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"enabled": {"type": "boolean"},
				"pause": {"type": "string"},
				"stop": {"type": "string"}
			}
		}
	}
}`)

var routeSchema = expandSchema(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"required": ["waypoints"],
	"properties": {
		"name": {"type": "string"},
		"loop": {"type": "boolean"},
		"waypoints": {
			"type": "array",
			"items": {
				"oneOf": [
					{
						"type": "object",
						"required": ["stand"],
						"additionalProperties": false,
						"properties": {"stand": @COORD@, "tolerance": {"type": "integer", "minimum": 0}}
					},
					{
						"type": "object",
						"required": ["level"],
						"additionalProperties": false,
						"properties": {"level": @COORD@, "tolerance": {"type": "integer", "minimum": 0}}
					},
					{
						"type": "object",
						"required": ["action"],
						"additionalProperties": false,
						"properties": {
							"action": {"type": "string", "minLength": 1},
							"params": {"type": "object", "additionalProperties": {"type": ["string", "number", "boolean"]}}
						}
					},
					{
						"type": "object",
						"required": ["label"],
						"additionalProperties": false,
						"properties": {"label": {"type": "string", "minLength": 1}}
					}
				]
			}
		}
	}
}`)

func expandSchema(s string) string {
	return strings.NewReplacer(
		"@BOUNDS@", boundsSchema,
		"@COLOR@", colorSchema,
		"@COORD@", coordinateSchema,
		"@DURATION@", durationSchema,
	).Replace(s)
}

var (
	schemaCache   = map[string]*jsonschema.Schema{}
	schemaCacheMu sync.Mutex
)

func compiledSchema(name, text string) (*jsonschema.Schema, error) {
	schemaCacheMu.Lock()
	defer schemaCacheMu.Unlock()

	if s, ok := schemaCache[name]; ok {
		return s, nil
	}
	s, err := jsonschema.CompileString(name, text)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	schemaCache[name] = s
	return s, nil
}

// validateYAML checks a YAML document against the named schema.
func validateYAML(name, schemaText string, raw []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("re-encode yaml: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	s, err := compiledSchema(name, schemaText)
	if err != nil {
		return err
	}
	return s.Validate(v)
}
