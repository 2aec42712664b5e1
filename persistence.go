// Package main - persistence.go
//
// This file persists the runtime UI state between runs: the loop toggle the
// tray flips and the browser cookies that keep the game session logged in.
//
// File Format:
// JSON with 2-space indentation so it can be edited by hand:
// {
//   "loop_waypoints": true,
//   "route": "routes/rotworm.yaml",
//   "cookies": [
//     { "name": "session", "value": "...", "domain": "example.com", ... }
//   ]
// }
//
// Load Behavior:
//   - File missing: defaults, no error
//   - File corrupted: logged, defaults, no error
//   - Other read errors are returned
//
// Configuration proper lives in config.yaml; data.json only carries what the
// bot itself changes while running.
package main

import (
	"encoding/json"
	"errors"
	"os"
)

const dataFile = "data.json"

// CookieData is one browser cookie.
type CookieData struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// PersistentData is the runtime state saved to data.json.
type PersistentData struct {
	LoopWaypoints *bool        `json:"loop_waypoints,omitempty"`
	Route         string       `json:"route,omitempty"`
	Cookies       []CookieData `json:"cookies"`
}

// NewPersistentData returns empty state
func NewPersistentData() *PersistentData {
	return &PersistentData{Cookies: []CookieData{}}
}

// Apply copies saved toggles onto cfg.
func (d *PersistentData) Apply(cfg *Config) {
	if d.LoopWaypoints != nil {
		cfg.SetLooping(*d.LoopWaypoints)
	}
}

// Capture records cfg's runtime toggles.
func (d *PersistentData) Capture(cfg *Config) {
	loop := cfg.IsLooping()
	d.LoopWaypoints = &loop
}

// SaveData writes data to path (data.json when empty).
func SaveData(path string, data *PersistentData, log Logger) error {
	if path == "" {
		path = dataFile
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}

	orNop(log).Info("Data saved to %s", path)
	return nil
}

// LoadData reads path (data.json when empty), falling back to defaults when
// the file is missing or cannot be decoded.
func LoadData(path string, log Logger) (*PersistentData, error) {
	log = orNop(log)
	if path == "" {
		path = dataFile
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("No existing data file, starting fresh")
		return NewPersistentData(), nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data PersistentData
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		log.Error("Failed to decode data file %s: %v", path, err)
		return NewPersistentData(), nil
	}
	if data.Cookies == nil {
		data.Cookies = []CookieData{}
	}

	log.Info("Data loaded from %s", path)
	return &data, nil
}
