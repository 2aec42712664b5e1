// Package main - route.go
//
// This file defines the waypoint instruction set and route loading.
//
// Instruction Kinds:
//   - Stand:       walk to a coordinate until within tolerance
//   - LevelChange: walk to a coordinate that requires a level transition
//   - Action:      run a named handler; it may return a label to jump to
//   - Label:       no-op marker, target of jumps
//
// Route File (YAML):
//   name: rotworm-cave
//   loop: true
//   waypoints:
//     - stand: [32100, 32200, 7]
//     - action: check_supplies
//       params: {region_x: 1700, min: 20, label: refill}
//     - level: [32110, 32190, 8]
//     - label: refill
//
// Jumps:
// resolveJump is a pure function over the instruction list. The director
// sets its cursor to the returned index, so the next processed instruction
// is the one right after the label.
//
// The instruction list is immutable once loaded.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InstructionKind tags an Instruction variant
type InstructionKind int

const (
	KindStand InstructionKind = iota
	KindLevelChange
	KindAction
	KindLabel
)

// String returns the string representation of the kind
func (k InstructionKind) String() string {
	switch k {
	case KindStand:
		return "Stand"
	case KindLevelChange:
		return "LevelChange"
	case KindAction:
		return "Action"
	case KindLabel:
		return "Label"
	default:
		return "Unknown"
	}
}

// Instruction is one waypoint of a route.
//
// Fields by kind:
//   - Stand/LevelChange: At, Tolerance (-1 means the configured default)
//   - Action: Name, Params
//   - Label: Name
type Instruction struct {
	Kind      InstructionKind
	At        Coordinate
	Tolerance int
	Name      string
	Params    map[string]string
}

// Stand builds a StandPoint instruction.
func Stand(at Coordinate, tolerance int) Instruction {
	return Instruction{Kind: KindStand, At: at, Tolerance: tolerance}
}

// LevelChange builds a LevelChange instruction.
func LevelChange(at Coordinate) Instruction {
	return Instruction{Kind: KindLevelChange, At: at, Tolerance: -1}
}

// Action builds a NamedAction instruction.
func Action(name string, params map[string]string) Instruction {
	return Instruction{Kind: KindAction, Name: name, Params: params}
}

// Label builds a Label instruction.
func Label(name string) Instruction {
	return Instruction{Kind: KindLabel, Name: name}
}

// IsMovement reports whether the instruction walks somewhere.
func (in Instruction) IsMovement() bool {
	return in.Kind == KindStand || in.Kind == KindLevelChange
}

func (in Instruction) String() string {
	switch in.Kind {
	case KindStand, KindLevelChange:
		return fmt.Sprintf("%s%s", in.Kind, in.At)
	case KindAction:
		return fmt.Sprintf("Action(%s)", in.Name)
	case KindLabel:
		return fmt.Sprintf("Label(%s)", in.Name)
	}
	return "Unknown"
}

// resolveJump returns the index of the Label named label, or false.
func resolveJump(instructions []Instruction, label string) (int, bool) {
	for i, in := range instructions {
		if in.Kind == KindLabel && in.Name == label {
			return i, true
		}
	}
	return 0, false
}

// Route is a loaded waypoint list.
type Route struct {
	Name         string
	Loop         *bool // nil defers to config
	Instructions []Instruction
}

// NewRoute wraps an instruction list, checking label uniqueness.
func NewRoute(name string, instructions []Instruction) (*Route, error) {
	seen := make(map[string]int)
	for i, in := range instructions {
		switch in.Kind {
		case KindLabel:
			if in.Name == "" {
				return nil, fmt.Errorf("waypoint %d: empty label", i)
			}
			if prev, ok := seen[in.Name]; ok {
				return nil, fmt.Errorf("waypoint %d: label %q already defined at %d", i, in.Name, prev)
			}
			seen[in.Name] = i
		case KindAction:
			if in.Name == "" {
				return nil, fmt.Errorf("waypoint %d: empty action name", i)
			}
		}
	}
	return &Route{Name: name, Instructions: instructions}, nil
}

// Len returns the number of instructions
func (r *Route) Len() int {
	return len(r.Instructions)
}

// routeFile mirrors the YAML layout
type routeFile struct {
	Name      string          `yaml:"name"`
	Loop      *bool           `yaml:"loop"`
	Waypoints []routeWaypoint `yaml:"waypoints"`
}

type routeWaypoint struct {
	Stand     *Coordinate       `yaml:"stand"`
	Level     *Coordinate       `yaml:"level"`
	Tolerance *int              `yaml:"tolerance"`
	Action    string            `yaml:"action"`
	Params    map[string]string `yaml:"params"`
	Label     string            `yaml:"label"`
}

func (w routeWaypoint) instruction() Instruction {
	tol := -1
	if w.Tolerance != nil {
		tol = *w.Tolerance
	}
	switch {
	case w.Stand != nil:
		return Stand(*w.Stand, tol)
	case w.Level != nil:
		in := LevelChange(*w.Level)
		in.Tolerance = tol
		return in
	case w.Action != "":
		return Action(w.Action, w.Params)
	default:
		return Label(w.Label)
	}
}

// ParseRoute validates and decodes a route document.
func ParseRoute(raw []byte) (*Route, error) {
	if err := validateYAML("route.schema.json", routeSchema, raw); err != nil {
		return nil, err
	}

	var f routeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}

	instructions := make([]Instruction, 0, len(f.Waypoints))
	for _, w := range f.Waypoints {
		instructions = append(instructions, w.instruction())
	}

	route, err := NewRoute(f.Name, instructions)
	if err != nil {
		return nil, err
	}
	route.Loop = f.Loop
	return route, nil
}

// LoadRoute reads a route file from disk.
func LoadRoute(path string) (*Route, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	route, err := ParseRoute(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if route.Name == "" {
		route.Name = path
	}
	return route, nil
}
