// Package main - hotkeys.go
//
// Global control keys, active even while the game window has focus:
//   - control_keys.pause: toggle pause/resume
//   - control_keys.stop:  stop the bot
//
// The hook runs until ctx is done. Callbacks run on the hook goroutine and
// must not block.
package main

import (
	"context"

	hook "github.com/robotn/gohook"
)

// ListenControlKeys registers the pause and stop keys and blocks until ctx
// is done.
func ListenControlKeys(ctx context.Context, cfg ControlKeysConfig, onPause, onStop func(), log Logger) {
	log = orNop(log)
	if !cfg.Enabled {
		return
	}

	if cfg.Pause != "" {
		hook.Register(hook.KeyDown, []string{cfg.Pause}, func(hook.Event) {
			log.Info("Pause key %s pressed", cfg.Pause)
			onPause()
		})
	}
	if cfg.Stop != "" {
		hook.Register(hook.KeyDown, []string{cfg.Stop}, func(hook.Event) {
			log.Info("Stop key %s pressed", cfg.Stop)
			onStop()
		})
	}

	s := hook.Start()
	go func() {
		<-ctx.Done()
		hook.End()
	}()
	log.Info("Control keys active: pause=%s stop=%s", cfg.Pause, cfg.Stop)
	<-hook.Process(s)
}
