// Package main - device_native.go
//
// NativeDevice drives the real desktop: robotgo for keyboard, mouse and
// pixel sampling, kbinani/screenshot for region capture.
//
// Drag is press, smooth move, release. Clicks move the cursor first so the
// game sees a hover before the button event.
package main

import (
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
)

// NativeDevice is the desktop Device backend.
type NativeDevice struct{}

// NewNativeDevice creates a desktop backend
func NewNativeDevice() *NativeDevice {
	return &NativeDevice{}
}

// CaptureRegion grabs rect from the screen
func (n *NativeDevice) CaptureRegion(rect image.Rectangle) (*image.RGBA, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("capture %v: empty rectangle", rect)
	}
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("capture %v: %w", rect, err)
	}
	// Pixel coordinates are screen coordinates.
	img.Rect = img.Rect.Add(rect.Min.Sub(img.Rect.Min))
	return img, nil
}

// PixelAt samples one screen pixel
func (n *NativeDevice) PixelAt(x, y int) (Color, error) {
	return ParseHexColor(robotgo.GetPixelColor(x, y))
}

// KeyDown presses key
func (n *NativeDevice) KeyDown(key string) error {
	return robotgo.KeyToggle(key, "down")
}

// KeyUp releases key
func (n *NativeDevice) KeyUp(key string) error {
	return robotgo.KeyToggle(key, "up")
}

// Tap presses and releases key
func (n *NativeDevice) Tap(key string) error {
	return robotgo.KeyTap(key)
}

// Move moves the mouse to x, y
func (n *NativeDevice) Move(x, y int) error {
	robotgo.MoveSmooth(x, y)
	return nil
}

// Click moves to x, y and clicks button
func (n *NativeDevice) Click(x, y int, button string) error {
	robotgo.Move(x, y)
	robotgo.Click(button)
	return nil
}

// Drag presses the left button at from and releases it at to
func (n *NativeDevice) Drag(from, to Point) error {
	robotgo.Move(from.X, from.Y)
	if err := robotgo.Toggle(ButtonLeft); err != nil {
		return err
	}
	robotgo.MoveSmooth(to.X, to.Y)
	return robotgo.Toggle(ButtonLeft, "up")
}

// Type types text into the focused window
func (n *NativeDevice) Type(text string) error {
	robotgo.TypeStr(text)
	return nil
}

// Close is a no-op for the desktop backend
func (n *NativeDevice) Close() error {
	return nil
}
