// Package main - main.go
//
// Entry point.
//
// Flags:
//   -config     configuration file (default config.yaml; missing means defaults)
//   -route      route file, overrides the config's route
//   -data       runtime state file (default data.json)
//   -headless   no tray: run the route until it ends or a signal arrives
//   -calibrate  "live" or a screenshot path: sample every sensor once and exit
//
// Exit Codes:
//   - 0: normal exit
//   - 1: startup failure (config, route, logger, backend)
//   - 2: unhandled panic
//
// SIGINT/SIGTERM stop the bot, release held keys, save state and exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

func main() {
	configPath := flag.String("config", "config.yaml", "configuration file")
	routePath := flag.String("route", "", "route file (overrides config)")
	dataPath := flag.String("data", dataFile, "runtime state file")
	headless := flag.Bool("headless", false, "run without the tray")
	calibrate := flag.String("calibrate", "", `"live" or a screenshot to calibrate against`)
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *routePath != "" {
		cfg.RoutePath = *routePath
	}
	if *headless {
		cfg.Browser.Headless = true
	}

	logger, err := NewFileLogger("Debug.log", cfg.Debug, *headless || *calibrate != "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC: %v\n", r)
			logger.Error("PANIC in main: %v", r)
			logger.Close()
			os.Exit(2)
		}
	}()

	logger.Info("=== Cavebot Started (%s/%s) ===", runtime.GOOS, runtime.GOARCH)
	code := run(cfg, *dataPath, *headless, *calibrate, logger)
	logger.Info("=== Cavebot Shutdown ===")
	logger.Close()
	os.Exit(code)
}

func run(cfg *Config, dataPath string, headless bool, calibrate string, log Logger) int {
	if calibrate != "" {
		return runCalibrate(cfg, calibrate, log)
	}

	route, err := LoadRoute(cfg.RoutePath)
	if err != nil {
		log.Error("Failed to load route: %v", err)
		fmt.Fprintf(os.Stderr, "Failed to load route: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bot, err := NewBot(cfg, route, dataPath, log)
	if err != nil {
		log.Error("Failed to create bot: %v", err)
		fmt.Fprintf(os.Stderr, "Failed to create bot: %v\n", err)
		return 1
	}
	defer func() {
		if err := bot.Close(); err != nil {
			log.Warn("close: %v", err)
		}
	}()

	if cfg.StatusFeed.Addr != "" {
		feed := NewStatusFeed(bot.Status, cfg.StatusFeed.Interval, log)
		SafeGo(log, "status feed", func() {
			if err := feed.ListenAndServe(ctx, cfg.StatusFeed.Addr); err != nil {
				log.Error("status feed: %v", err)
			}
		})
	}

	onStop := cancel
	if !headless {
		onStop = func() { go bot.Stop() }
	}
	SafeGo(log, "control keys", func() {
		ListenControlKeys(ctx, cfg.ControlKeys, bot.TogglePause, onStop, log)
	})

	var tray *TrayApp
	if !headless {
		tray = NewTrayApp(ctx, bot, cancel, log)
	}
	if err := bot.Start(ctx); err != nil {
		log.Error("Failed to start bot: %v", err)
		return 1
	}

	if tray == nil {
		if err := bot.Wait(); err != nil {
			return 1
		}
		return 0
	}
	tray.Run()
	return 0
}

func runCalibrate(cfg *Config, source string, log Logger) int {
	var screen Screen
	if source == "live" {
		screen = NewNativeDevice()
	} else {
		still, err := LoadImageScreen(source)
		if err != nil {
			log.Error("Calibration image: %v", err)
			return 1
		}
		screen = still
	}

	reader := NewTesseractReader(cfg.OCR)
	defer reader.Close()

	report, err := Calibrate(cfg, screen, reader, "calibration", log)
	if err != nil {
		log.Error("Calibration failed: %v", err)
		return 1
	}
	fmt.Printf("position=%s hp=%d mana=%d hostiles=%v corpse=%v images=%d\n",
		report.Position, report.HP, report.Mana, report.Hostiles, report.Corpse, len(report.Saved))
	return 0
}
