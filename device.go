// Package main - device.go
//
// This file defines the Device contract (screen capture plus simulated
// input) and SharedDevice, the single access point all workers share.
//
// Backends:
//   - NativeDevice:  robotgo input, kbinani/screenshot capture
//   - BrowserDevice: chromedp JavaScript events and screenshots
//   - SerialDevice:  Arduino HID board for input, native capture
//
// Serialisation:
// The capture handles and input backends are not safe for concurrent use,
// so SharedDevice takes one mutex around every call. A held key is pressed
// and released under the lock but the hold itself waits outside it, so the
// health worker can still capture while the director walks.
//
// Stop Behaviour:
// SharedDevice tracks every key currently down. ReleaseAll lifts them and
// is called by the bot on stop and on fatal exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"
)

// ErrDeviceClosed is returned by a SharedDevice after Close.
var ErrDeviceClosed = errors.New("device closed")

// Mouse buttons
const (
	ButtonLeft  = "left"
	ButtonRight = "right"
)

// Device is a capture and input backend.
type Device interface {
	CaptureRegion(rect image.Rectangle) (*image.RGBA, error)
	PixelAt(x, y int) (Color, error)
	KeyDown(key string) error
	KeyUp(key string) error
	Tap(key string) error
	Move(x, y int) error
	Click(x, y int, button string) error
	Drag(from, to Point) error
	Type(text string) error
	Close() error
}

// Input is the simulated-input side of a SharedDevice.
type Input interface {
	Hold(ctx context.Context, key string, d time.Duration) error
	Press(key string) error
	Release(key string) error
	Tap(key string) error
	Move(x, y int) error
	Click(x, y int, button string) error
	Drag(from, to Point) error
	Type(text string) error
}

// SharedDevice serialises access to a Device.
type SharedDevice struct {
	dev    Device
	log    Logger
	held   map[string]struct{}
	closed bool
	mu     sync.Mutex
}

// NewSharedDevice wraps dev
func NewSharedDevice(dev Device, log Logger) *SharedDevice {
	return &SharedDevice{
		dev:  dev,
		log:  orNop(log),
		held: make(map[string]struct{}),
	}
}

func (s *SharedDevice) do(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDeviceClosed
	}
	return fn()
}

// CaptureRegion captures rect
func (s *SharedDevice) CaptureRegion(rect image.Rectangle) (*image.RGBA, error) {
	var img *image.RGBA
	err := s.do(func() error {
		var err error
		img, err = s.dev.CaptureRegion(rect)
		return err
	})
	if err == nil && img == nil {
		err = fmt.Errorf("capture %v: empty frame", rect)
	}
	return img, err
}

// PixelAt samples one pixel
func (s *SharedDevice) PixelAt(x, y int) (Color, error) {
	var c Color
	err := s.do(func() error {
		var err error
		c, err = s.dev.PixelAt(x, y)
		return err
	})
	return c, err
}

// Tap presses and releases key
func (s *SharedDevice) Tap(key string) error {
	return s.do(func() error { return s.dev.Tap(key) })
}

// Move moves the mouse to x, y
func (s *SharedDevice) Move(x, y int) error {
	return s.do(func() error { return s.dev.Move(x, y) })
}

// Click clicks at x, y
func (s *SharedDevice) Click(x, y int, button string) error {
	return s.do(func() error { return s.dev.Click(x, y, button) })
}

// Drag drags from one point to another
func (s *SharedDevice) Drag(from, to Point) error {
	return s.do(func() error { return s.dev.Drag(from, to) })
}

// Type types text
func (s *SharedDevice) Type(text string) error {
	return s.do(func() error { return s.dev.Type(text) })
}

// Press puts key down and tracks it until Release.
func (s *SharedDevice) Press(key string) error {
	return s.do(func() error {
		if err := s.dev.KeyDown(key); err != nil {
			return err
		}
		s.held[key] = struct{}{}
		return nil
	})
}

// Release lifts a key put down by Press.
func (s *SharedDevice) Release(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(key)
}

func (s *SharedDevice) releaseLocked(key string) error {
	delete(s.held, key)
	if s.closed {
		return ErrDeviceClosed
	}
	return s.dev.KeyUp(key)
}

// Hold keeps key down for d. A cancelled ctx ends the hold early; the key
// is always released before Hold returns.
func (s *SharedDevice) Hold(ctx context.Context, key string, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Press(key); err != nil {
		return err
	}
	waitErr := SleepContext(ctx, d)
	if err := s.Release(key); err != nil {
		return err
	}
	return waitErr
}

// Held returns the keys currently down, sorted.
func (s *SharedDevice) Held() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.held))
	for k := range s.held {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ReleaseAll lifts every held key plus extra, logging failures.
func (s *SharedDevice) ReleaseAll(extra ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make(map[string]struct{}, len(s.held)+len(extra))
	for k := range s.held {
		keys[k] = struct{}{}
	}
	for _, k := range extra {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	for k := range keys {
		if err := s.releaseLocked(k); err != nil && !errors.Is(err, ErrDeviceClosed) {
			s.log.Warn("release %s: %v", k, err)
		}
	}
}

// Close releases held keys and closes the backend.
func (s *SharedDevice) Close() error {
	s.ReleaseAll()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.dev.Close()
}
