// Package main - bot.go
//
// Bot assembles the components and runs the worker loops.
//
// Workers (errgroup, first error cancels the rest):
//   - health:   HealthMonitor.Run
//   - combat:   CombatInterrupt.Run
//   - director: WaypointDirector.Run; a finished route stops the others
//   - status:   pushes Status to watchers (tray, browser overlay)
//
// Lifecycle:
//   1. NewBot: open backend, OCR, sinks; wire everything
//   2. Start: begin a session and launch the workers
//   3. Pause/Resume: the shared PauseGate holds every worker between steps
//   4. Stop: cancel, wait for the workers, release every held key
//   5. Close: stop, save state, close sinks and the device
//
// Whatever ends the workers (stop, finished route, a worker error or a
// recovered panic), held walking keys are released before Wait returns.
package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Bot states reported in Status
const (
	StateStopped = "stopped"
	StateRunning = "running"
	StatePaused  = "paused"
)

// ErrAlreadyRunning is returned by Start on a running bot.
var ErrAlreadyRunning = errors.New("bot already running")

// Bot is the top-level orchestrator.
type Bot struct {
	cfg      *Config
	route    *Route
	data     *PersistentData
	dataPath string
	log      Logger

	device   *SharedDevice
	browser  *BrowserDevice
	reader   *TesseractReader
	vision   *Vision
	position *PositionEstimator
	stats    *Statistics
	events   *EventBuffer
	journal  *Journal
	store    *SessionStore
	sink     EventSink
	gate     *PauseGate

	health   *HealthMonitor
	combat   *CombatInterrupt
	looter   *Looter
	director *WaypointDirector

	watchers []func(Status)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	lastErr error
}

// NewBot opens the configured backend and sinks and wires the bot.
func NewBot(cfg *Config, route *Route, dataPath string, log Logger) (*Bot, error) {
	log = orNop(log)

	data, err := LoadData(dataPath, log)
	if err != nil {
		log.Error("Failed to load data: %v, using defaults", err)
		data = NewPersistentData()
	}
	data.Apply(cfg)

	dev, browser, err := openBackend(cfg, data, log)
	if err != nil {
		return nil, err
	}
	reader := NewTesseractReader(cfg.OCR)

	var sinks []EventSink
	var journal *Journal
	if cfg.Storage.JournalDir != "" {
		journal = NewJournal(cfg.Storage.JournalDir, log)
		sinks = append(sinks, journal)
	}
	var store *SessionStore
	if cfg.Storage.DBPath != "" {
		store, err = OpenSessionStore(cfg.Storage.DBPath, log)
		if err != nil {
			log.Warn("session store disabled: %v", err)
			store = nil
		} else {
			sinks = append(sinks, store)
		}
	}

	b := assembleBot(cfg, route, dev, reader, log, sinks...)
	b.data = data
	b.dataPath = dataPath
	b.browser = browser
	b.reader = reader
	b.journal = journal
	b.store = store
	if browser != nil {
		b.Watch(func(st Status) {
			if err := browser.ShowStatus(st); err != nil {
				log.Debug("status overlay: %v", err)
			}
		})
	}
	return b, nil
}

// openBackend creates the Device named by cfg.Backend.
func openBackend(cfg *Config, data *PersistentData, log Logger) (Device, *BrowserDevice, error) {
	switch cfg.Backend {
	case BackendNative, "":
		return NewNativeDevice(), nil, nil
	case BackendBrowser:
		browser := NewBrowserDevice(cfg.Browser, log)
		if err := browser.Start(data.Cookies); err != nil {
			browser.Close()
			return nil, nil, fmt.Errorf("start browser: %w", err)
		}
		return browser, browser, nil
	case BackendSerial:
		dev, err := OpenSerialDevice(cfg.Serial, log)
		if err != nil {
			return nil, nil, err
		}
		return dev, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// assembleBot wires the components over dev.
func assembleBot(cfg *Config, route *Route, dev Device, reader TextReader, log Logger, sinks ...EventSink) *Bot {
	log = orNop(log)
	b := &Bot{
		cfg:    cfg,
		route:  route,
		data:   NewPersistentData(),
		log:    log,
		device: NewSharedDevice(dev, log),
		stats:  NewStatistics(),
		events: NewEventBuffer(256),
		gate:   NewPauseGate(),
	}
	b.sink = append(MultiSink{b.events}, sinks...)

	b.vision = NewVision(b.device, reader, cfg, log)
	text := b.vision.ReadText
	b.position = NewPositionEstimator(cfg.Estimator, b.device, text, log)

	b.health = NewHealthMonitor(cfg, b.vision, b.device, nil, log, b.sink)
	b.health.WatchLevelUp(b.vision)
	b.looter = NewLooter(cfg.Looter, b.vision, b.device, b.stats, nil, log, b.sink)
	b.combat = NewCombatInterrupt(cfg, b.vision, b.device, b.health, b.looter, b.stats, nil, log, b.sink)
	b.combat.OnTransition = func(from, to CombatState) {
		if from == CombatLooting && to == CombatIdle {
			snap := b.stats.Snapshot()
			log.Info("Kills: %d (%.1f/h), loots: %d", snap.Kills, snap.KillsPerHour, snap.Loots)
		}
	}

	b.director = NewWaypointDirector(route, cfg, DirectorDeps{
		Position: b.position,
		Input:    b.device,
		Combat:   b.combat,
		Gate:     b.gate,
		Stats:    b.stats,
		Log:      log,
		Sink:     b.sink,
	})
	b.director.OnInstruction = func(i int, in Instruction) {
		log.Debug("waypoint %d: %s", i, in)
	}
	RegisterBuiltins(b.director, NewActionKit(cfg, b.device, text, nil, log))
	return b
}

// Watch adds fn to the status watchers. Call before Start.
func (b *Bot) Watch(fn func(Status)) {
	b.watchers = append(b.watchers, fn)
}

// Director exposes the waypoint director
func (b *Bot) Director() *WaypointDirector { return b.director }

// Events exposes the in-memory event buffer
func (b *Bot) Events() *EventBuffer { return b.events }

// Running reports whether the workers are running
func (b *Bot) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start launches the workers. The returned error only covers startup;
// use Wait for the run result.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running = true
	b.lastErr = nil
	b.gate.Resume()

	if b.store != nil {
		if _, err := b.store.BeginSession(ctx, b.route.Name); err != nil {
			b.log.Warn("begin session: %v", err)
		}
	}
	b.sink.Record(NewEvent(EventSessionStart, b.route.Name))
	b.log.Info("Bot started on route %q (%d instructions)", b.route.Name, len(b.route.Instructions))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(b.worker("health", func() error { return b.health.Run(gctx, b.gate) }))
	g.Go(b.worker("combat", func() error { return b.combat.Run(gctx, b.gate) }))
	g.Go(b.worker("director", func() error {
		defer cancel()
		return b.director.Run(gctx)
	}))
	g.Go(b.worker("status", func() error { return b.publishStatus(gctx) }))

	go b.finish(g, cancel)
	return nil
}

// worker wraps fn so a panic becomes an error and cancellation is not one.
func (b *Bot) worker(name string, fn func() error) func() error {
	return func() error {
		err := recoverError(name, fn)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil {
			b.log.Error("worker %s failed: %v", name, err)
		}
		return err
	}
}

func (b *Bot) finish(g *errgroup.Group, cancel context.CancelFunc) {
	err := g.Wait()
	cancel()
	b.device.ReleaseAll(b.cfg.Hotkeys.WalkKeys()...)

	b.sink.Record(NewEvent(EventSessionStop, b.Status().Stats.Uptime))
	if b.store != nil {
		if err := b.store.EndSession(context.Background()); err != nil {
			b.log.Warn("end session: %v", err)
		}
	}

	b.mu.Lock()
	b.lastErr = err
	b.running = false
	done := b.done
	b.mu.Unlock()

	if err != nil {
		b.log.Error("Bot stopped: %v", err)
	} else {
		b.log.Info("Bot stopped")
	}
	st := b.Status()
	for _, fn := range b.watchers {
		fn(st)
	}
	close(done)
}

func (b *Bot) publishStatus(ctx context.Context) error {
	if len(b.watchers) == 0 {
		<-ctx.Done()
		return nil
	}
	interval := b.cfg.StatusFeed.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st := b.Status()
			for _, fn := range b.watchers {
				fn(st)
			}
		}
	}
}

// Wait blocks until the workers exit and returns the first worker error.
func (b *Bot) Wait() error {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Stop cancels the workers and waits for them.
func (b *Bot) Stop() error {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel == nil {
		return nil
	}
	b.gate.Resume()
	cancel()
	return b.Wait()
}

// Pause holds every worker at its next step
func (b *Bot) Pause() {
	b.gate.Pause()
	b.device.ReleaseAll()
	b.log.Info("Bot paused")
}

// Resume releases paused workers
func (b *Bot) Resume() {
	b.gate.Resume()
	b.log.Info("Bot resumed")
}

// TogglePause flips between paused and running
func (b *Bot) TogglePause() {
	if b.gate.Paused() {
		b.Resume()
	} else {
		b.Pause()
	}
}

// SetLooping flips the loop toggle and persists it
func (b *Bot) SetLooping(loop bool) {
	b.cfg.SetLooping(loop)
	b.log.Info("Loop waypoints: %v", loop)
	b.SaveState()
}

// Status returns a snapshot for the tray, the feed and the overlay.
func (b *Bot) Status() Status {
	state := StateStopped
	if b.Running() {
		state = StateRunning
		if b.gate.Paused() {
			state = StatePaused
		}
	}
	st := Status{
		State:     state,
		Combat:    b.combat.State().String(),
		Waypoint:  b.director.Cursor(),
		Position:  b.director.Position(),
		Obstacles: b.director.Obstacles().Len(),
		Stats:     b.stats.Snapshot(),
		Time:      time.Now(),
	}
	if i := st.Waypoint; i >= 0 && i < len(b.route.Instructions) {
		st.Instruction = b.route.Instructions[i].String()
	}
	return st
}

// SaveState writes the runtime toggles and browser cookies to data.json
func (b *Bot) SaveState() {
	if b.browser != nil {
		cookies, err := b.browser.Cookies()
		if err != nil {
			b.log.Warn("Failed to get cookies: %v", err)
		} else {
			b.data.Cookies = cookies
		}
	}
	b.data.Capture(b.cfg)
	if err := SaveData(b.dataPath, b.data, b.log); err != nil {
		b.log.Error("Failed to save data: %v", err)
	}
}

// Close stops the bot, saves state and releases every resource.
func (b *Bot) Close() error {
	err := b.Stop()
	if b.dataPath != "" {
		b.SaveState()
	}

	if b.store != nil {
		if summary, serr := b.store.Summary(context.Background()); serr == nil {
			b.log.Info("Totals: %d sessions, %d kills, %d loots, %d waypoints reached, %d skipped",
				summary.Sessions, summary.Kills, summary.Loots, summary.WaypointsReached, summary.WaypointsSkipped)
		}
		if cerr := b.store.Close(); cerr != nil {
			b.log.Warn("close store: %v", cerr)
		}
	}
	if b.journal != nil {
		if cerr := b.journal.Close(); cerr != nil {
			b.log.Warn("close journal: %v", cerr)
		}
	}
	if b.reader != nil {
		b.reader.Close()
	}
	if cerr := b.device.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
