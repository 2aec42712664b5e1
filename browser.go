// Package main - browser.go
//
// This file implements BrowserDevice, the Device backend for games that run
// in a web page. chromedp drives a Chrome instance; input is dispatched as
// DOM events by an injected script (see action.go) and capture uses clipped
// DevTools screenshots.
//
// Key Responsibilities:
//   - Chrome lifecycle (start, navigate, close)
//   - Region capture and single-pixel sampling with timeout protection
//   - Cookie save/restore so a login survives restarts
//   - Recent action log and the status overlay drawn over the page
//
// Browser Architecture:
// Two nested contexts manage resources:
//   - allocCtx: allocator context owning the browser process
//   - ctx: browser tab context for page operations
// Both cancel functions run on Close.
//
// Timeouts:
//   - Navigation: 60 seconds
//   - Capture:    5 seconds
//   - Input/eval: 2 seconds
package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	navigateTimeout = 60 * time.Second
	captureTimeout  = 5 * time.Second
	evalTimeout     = 2 * time.Second
	actionLogSize   = 10
)

// ActionLog is one entry of the recent-input ring shown in the overlay.
type ActionLog struct {
	Message   string
	Timestamp time.Time
}

// BrowserDevice manages the chromedp browser instance.
//
// Lifecycle:
//   1. NewBrowserDevice(): create with config and logger
//   2. Start(): start Chrome, restore cookies, navigate, inject input script
//   3. CaptureRegion()/input methods: used through SharedDevice
//   4. Cookies(): read back before shutdown for persistence
//   5. Close(): cancel both contexts
type BrowserDevice struct {
	cfg         BrowserConfig
	log         Logger
	ctx         context.Context
	cancel      context.CancelFunc
	allocCtx    context.Context
	allocCancel context.CancelFunc
	actionLogs  []ActionLog
	logMutex    sync.RWMutex
}

// NewBrowserDevice creates a browser backend; call Start before use.
func NewBrowserDevice(cfg BrowserConfig, log Logger) *BrowserDevice {
	return &BrowserDevice{
		cfg:        cfg,
		log:        orNop(log),
		actionLogs: make([]ActionLog, 0, actionLogSize),
	}
}

// LogAction records an input for the overlay (keeps the last 10)
func (b *BrowserDevice) LogAction(message string) {
	b.logMutex.Lock()
	defer b.logMutex.Unlock()

	b.actionLogs = append(b.actionLogs, ActionLog{
		Message:   message,
		Timestamp: time.Now(),
	})
	if len(b.actionLogs) > actionLogSize {
		b.actionLogs = b.actionLogs[len(b.actionLogs)-actionLogSize:]
	}
}

// RecentActions returns up to n of the latest logged inputs, oldest first
func (b *BrowserDevice) RecentActions(n int) []ActionLog {
	b.logMutex.RLock()
	defer b.logMutex.RUnlock()

	if n > len(b.actionLogs) {
		n = len(b.actionLogs)
	}
	out := make([]ActionLog, n)
	copy(out, b.actionLogs[len(b.actionLogs)-n:])
	return out
}

// Start launches Chrome and navigates to the configured URL.
//
// Cookies saved by a previous run are set before navigation so the page
// loads with the old session.
func (b *BrowserDevice) Start(cookies []CookieData) error {
	if b.cfg.URL == "" {
		return fmt.Errorf("browser backend: no url configured")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("disable-gpu", false),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(b.cfg.Width, b.cfg.Height),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.ctx, b.cancel = chromedp.NewContext(b.allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		b.log.Debug(format, args...)
	}))
	b.log.Info("Browser context created")

	if len(cookies) > 0 {
		if err := b.SetCookies(cookies); err != nil {
			b.log.Warn("Failed to set cookies before navigation: %v", err)
		}
	}

	b.log.Info("Navigating to %s", b.cfg.URL)
	navCtx, navCancel := context.WithTimeout(b.ctx, navigateTimeout)
	defer navCancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(b.cfg.URL)); err != nil {
		return fmt.Errorf("navigate %s: %w", b.cfg.URL, err)
	}

	if err := b.injectInputScript(); err != nil {
		return fmt.Errorf("inject input script: %w", err)
	}
	if !b.CanvasExists() {
		b.log.Warn("No canvas element found yet; input events go to window")
	}
	b.log.Info("Navigation completed")
	return nil
}

func (b *BrowserDevice) valid() error {
	if b.ctx == nil || b.ctx.Err() != nil {
		return fmt.Errorf("browser context is invalid")
	}
	return nil
}

// CanvasExists checks if the page has a canvas element
func (b *BrowserDevice) CanvasExists() bool {
	if b.valid() != nil {
		return false
	}
	var exists bool
	checkCtx, cancel := context.WithTimeout(b.ctx, evalTimeout)
	defer cancel()
	if err := chromedp.Run(checkCtx, chromedp.Evaluate(`document.querySelector('canvas') !== null`, &exists)); err != nil {
		b.log.Debug("canvas check failed: %v", err)
		return false
	}
	return exists
}

// CaptureRegion screenshots rect of the viewport.
func (b *BrowserDevice) CaptureRegion(rect image.Rectangle) (*image.RGBA, error) {
	if err := b.valid(); err != nil {
		return nil, err
	}
	if rect.Empty() {
		return nil, fmt.Errorf("capture %v: empty rectangle", rect)
	}

	var buf []byte
	captureCtx, cancel := context.WithTimeout(b.ctx, captureTimeout)
	defer cancel()
	err := chromedp.Run(captureCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(&page.Viewport{
				X:      float64(rect.Min.X),
				Y:      float64(rect.Min.Y),
				Width:  float64(rect.Dx()),
				Height: float64(rect.Dy()),
				Scale:  1,
			}).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("capture %v: %w", rect, err)
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("capture %v: decode: %w", rect, err)
	}

	// Re-anchor so pixel coordinates match the viewport.
	rgba := image.NewRGBA(image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+img.Bounds().Dx(), rect.Min.Y+img.Bounds().Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

// PixelAt samples one viewport pixel
func (b *BrowserDevice) PixelAt(x, y int) (Color, error) {
	img, err := b.CaptureRegion(image.Rect(x, y, x+1, y+1))
	if err != nil {
		return Color{}, err
	}
	return ColorFromRGBA(img.RGBAAt(x, y)), nil
}

// Cookies reads all cookies from the browser
func (b *BrowserDevice) Cookies() ([]CookieData, error) {
	if err := b.valid(); err != nil {
		return nil, err
	}

	var cookies []*network.Cookie
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}

	out := make([]CookieData, len(cookies))
	for i, c := range cookies {
		out[i] = CookieData{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		}
	}
	b.log.Info("Retrieved %d cookies from browser", len(out))
	return out, nil
}

// SetCookies sets cookies in the browser
func (b *BrowserDevice) SetCookies(cookies []CookieData) error {
	if len(cookies) == 0 {
		return nil
	}
	if err := b.valid(); err != nil {
		return err
	}

	return chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				params = params.WithExpires(&expires)
			}
			if c.SameSite != "" {
				params = params.WithSameSite(network.CookieSameSite(c.SameSite))
			}
			if err := params.Do(ctx); err != nil {
				b.log.Warn("Failed to set cookie %s: %v", c.Name, err)
			}
		}
		return nil
	}))
}

// ShowStatus draws the status overlay in the page corner.
func (b *BrowserDevice) ShowStatus(st Status) error {
	if !b.cfg.Overlay {
		return nil
	}
	text := fmt.Sprintf("%s | %s | wp %d %s | pos %s | obst %d | kills %d | %s",
		st.State, st.Combat, st.Waypoint, st.Instruction, st.Position,
		st.Obstacles, st.Stats.Kills, st.Stats.Uptime)
	for _, a := range b.RecentActions(3) {
		text += "\n" + a.Timestamp.Format("15:04:05") + " " + a.Message
	}
	return b.eval(fmt.Sprintf("setStatusOverlay('%s');", escapeJavaScriptString(text)))
}

// Close cancels the browser contexts
func (b *BrowserDevice) Close() error {
	b.log.Info("Closing browser...")
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}
