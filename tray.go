// Package main - tray.go
//
// This file implements the system tray control surface.
// Uses getlantern/systray library for cross-platform tray menu support.
//
// Menu Structure:
//   Cavebot
//   ├─ Status: State | Combat | Waypoint | Kills | Uptime (read-only)
//   ├─ Position: x,y,z | Obstacles (read-only)
//   ├─ Start
//   ├─ Pause / Resume
//   ├─ Stop
//   ├─ Loop Waypoints (checkbox, saved to data.json)
//   └─ Quit (graceful shutdown)
//
// Status lines refresh from the bot's status watcher. Menu clicks are
// handled on one goroutine; Quit calls onQuit and leaves systray.
package main

import (
	"context"
	"fmt"

	"github.com/getlantern/systray"
)

// TrayApp manages the system tray menu.
type TrayApp struct {
	bot    *Bot
	ctx    context.Context
	onQuit func()
	log    Logger

	statusItem   *systray.MenuItem
	positionItem *systray.MenuItem
	startItem    *systray.MenuItem
	pauseItem    *systray.MenuItem
	stopItem     *systray.MenuItem
	loopItem     *systray.MenuItem
	quitItem     *systray.MenuItem
}

// NewTrayApp creates a tray for bot. Start clicks run the bot under ctx.
func NewTrayApp(ctx context.Context, bot *Bot, onQuit func(), log Logger) *TrayApp {
	t := &TrayApp{bot: bot, ctx: ctx, onQuit: onQuit, log: orNop(log)}
	bot.Watch(t.UpdateStatus)
	return t
}

// Run starts the tray (blocking until Quit)
func (t *TrayApp) Run() {
	t.log.Info("Starting system tray application")
	systray.Run(t.onReady, func() {
		t.log.Info("System tray exit complete")
	})
}

// Quit leaves the tray loop
func (t *TrayApp) Quit() {
	systray.Quit()
}

func (t *TrayApp) onReady() {
	systray.SetTitle("Cavebot")
	systray.SetTooltip("Cavebot waypoint runner")

	t.statusItem = systray.AddMenuItem("Status: Starting...", "Current bot status")
	t.statusItem.Disable()
	t.positionItem = systray.AddMenuItem("Position: -", "Last position estimate")
	t.positionItem.Disable()

	systray.AddSeparator()

	t.startItem = systray.AddMenuItem("Start", "Start the route")
	t.pauseItem = systray.AddMenuItem("Pause", "Pause or resume every worker")
	t.stopItem = systray.AddMenuItem("Stop", "Stop and release all keys")
	t.loopItem = systray.AddMenuItemCheckbox("Loop Waypoints", "Restart the route at its end", t.bot.cfg.IsLooping())

	systray.AddSeparator()
	t.quitItem = systray.AddMenuItem("Quit", "Stop the bot and exit")

	t.syncButtons()
	go t.handleEvents()
}

func (t *TrayApp) handleEvents() {
	for {
		select {
		case <-t.startItem.ClickedCh:
			if err := t.bot.Start(t.ctx); err != nil {
				t.log.Warn("start from tray: %v", err)
			}
			t.syncButtons()
		case <-t.pauseItem.ClickedCh:
			t.bot.TogglePause()
			t.syncButtons()
		case <-t.stopItem.ClickedCh:
			if err := t.bot.Stop(); err != nil {
				t.log.Warn("stop from tray: %v", err)
			}
			t.syncButtons()
		case <-t.loopItem.ClickedCh:
			loop := !t.loopItem.Checked()
			if loop {
				t.loopItem.Check()
			} else {
				t.loopItem.Uncheck()
			}
			t.bot.SetLooping(loop)
		case <-t.quitItem.ClickedCh:
			t.log.Info("Quit requested by user")
			if t.onQuit != nil {
				t.onQuit()
			}
			systray.Quit()
			return
		case <-t.ctx.Done():
			systray.Quit()
			return
		}
	}
}

// syncButtons enables the buttons that make sense for the bot state.
func (t *TrayApp) syncButtons() {
	if t.startItem == nil {
		return
	}
	if t.bot.Running() {
		t.startItem.Disable()
		t.pauseItem.Enable()
		t.stopItem.Enable()
	} else {
		t.startItem.Enable()
		t.pauseItem.Disable()
		t.stopItem.Disable()
	}
	if t.bot.gate.Paused() {
		t.pauseItem.SetTitle("Resume")
	} else {
		t.pauseItem.SetTitle("Pause")
	}
}

// UpdateStatus refreshes the read-only lines
func (t *TrayApp) UpdateStatus(st Status) {
	if t.statusItem == nil {
		return
	}
	t.statusItem.SetTitle(fmt.Sprintf("Status: %s | %s | wp %d | Kills: %d | %s",
		st.State, st.Combat, st.Waypoint, st.Stats.Kills, st.Stats.Uptime))
	t.positionItem.SetTitle(fmt.Sprintf("Position: %s | Obstacles: %d", st.Position, st.Obstacles))
	systray.SetTooltip(fmt.Sprintf("Cavebot: %s, %s", st.State, st.Instruction))
}
