// Package main - device_serial.go
//
// SerialDevice sends input through an Arduino board that enumerates as a USB
// keyboard and mouse, so the game only ever sees hardware HID events.
// Capture and pixel sampling still read the local screen.
//
// Line Protocol (one command per write, board answers "ready"):
//   - "1<code>"   key tap
//   - "2<text>"   type text
//   - "3<code>"   key down
//   - "4<code>"   key up
//   - "5<sx><sy><n>" relative mouse move, n = |dx|*65535 + |dy|, sx/sy = +/-
//   - "6<button>" click
//   - "7<button>" mouse down
//   - "8<button>" mouse up
//
// Key codes follow the Arduino Keyboard library (ASCII for printable keys,
// 128+ for modifiers and 176+ for special keys).
package main

import (
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/go-vgo/robotgo"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const serialReply = "ready"

// Arduino mouse button codes
const (
	arduinoMouseLeft  = 1
	arduinoMouseRight = 2
)

var arduinoKeyCodes = map[string]int{
	"ctrl":      128,
	"shift":     129,
	"alt":       130,
	"up":        218,
	"down":      217,
	"left":      216,
	"right":     215,
	"backspace": 178,
	"tab":       179,
	"enter":     176,
	"esc":       177,
	"escape":    177,
	"space":     32,
	"insert":    209,
	"delete":    212,
	"home":      210,
	"end":       213,
	"pageup":    211,
	"pagedown":  214,
	"f1":        194,
	"f2":        195,
	"f3":        196,
	"f4":        197,
	"f5":        198,
	"f6":        199,
	"f7":        200,
	"f8":        201,
	"f9":        202,
	"f10":       203,
	"f11":       204,
	"f12":       205,
}

// arduinoKeyCode maps a key name onto the Arduino Keyboard code.
func arduinoKeyCode(key string) (int, error) {
	k := strings.ToLower(key)
	if code, ok := arduinoKeyCodes[k]; ok {
		return code, nil
	}
	if len(k) == 1 && k[0] >= 0x20 && k[0] < 0x7f {
		return int(k[0]), nil
	}
	return 0, fmt.Errorf("no arduino key code for %q", key)
}

// serialPort is the part of serial.Port the controller uses.
type serialPort interface {
	io.ReadWriter
	ResetInputBuffer() error
	Close() error
}

// SerialDevice is the Arduino Device backend.
type SerialDevice struct {
	port   serialPort
	screen *NativeDevice
	cursor func() (int, int)
	log    Logger
}

// OpenSerialDevice finds the board by VID/PID (or uses cfg.Port) and opens it.
func OpenSerialDevice(cfg SerialConfig, log Logger) (*SerialDevice, error) {
	log = orNop(log)

	name := cfg.Port
	if name == "" {
		var err error
		name, err = findArduinoPort(cfg.VID, cfg.PID)
		if err != nil {
			return nil, err
		}
	}
	log.Info("Arduino found on port %s", name)

	port, err := serial.Open(name, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	return newSerialDevice(port, log), nil
}

func newSerialDevice(port serialPort, log Logger) *SerialDevice {
	return &SerialDevice{
		port:   port,
		screen: NewNativeDevice(),
		cursor: robotgo.GetMousePos,
		log:    orNop(log),
	}
}

func findArduinoPort(vid, pid string) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", err
	}
	for _, port := range ports {
		if port.IsUSB && strings.EqualFold(port.VID, vid) && strings.EqualFold(port.PID, pid) {
			return port.Name, nil
		}
	}
	return "", fmt.Errorf("no serial device with VID=%s PID=%s", vid, pid)
}

// send writes one command and waits for the board's reply. Callers are
// serialised by SharedDevice.
func (s *SerialDevice) send(cmd string) error {
	if err := s.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer: %w", err)
	}
	if _, err := s.port.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("send %q: %w", cmd, err)
	}

	reply := make([]byte, len(serialReply))
	if _, err := io.ReadFull(s.port, reply); err != nil {
		return fmt.Errorf("reply to %q: %w", cmd, err)
	}
	if string(reply) != serialReply {
		return fmt.Errorf("reply to %q: got %q want %q", cmd, reply, serialReply)
	}
	s.log.Debug("serial %q ok", cmd)
	return nil
}

func (s *SerialDevice) sendKey(prefix, key string) error {
	code, err := arduinoKeyCode(key)
	if err != nil {
		return err
	}
	return s.send(prefix + strconv.Itoa(code))
}

func (s *SerialDevice) moveTo(x, y int) error {
	cx, cy := s.cursor()
	dx, dy := x-cx, y-cy
	if dx == 0 && dy == 0 {
		return nil
	}
	signX, signY := "+", "+"
	if dx < 0 {
		signX = "-"
	}
	if dy < 0 {
		signY = "-"
	}
	return s.send(fmt.Sprintf("5%s%s%d", signX, signY, abs(dx)*65535+abs(dy)))
}

func arduinoButton(button string) int {
	if button == ButtonRight {
		return arduinoMouseRight
	}
	return arduinoMouseLeft
}

// CaptureRegion grabs rect from the local screen
func (s *SerialDevice) CaptureRegion(rect image.Rectangle) (*image.RGBA, error) {
	return s.screen.CaptureRegion(rect)
}

// PixelAt samples one local screen pixel
func (s *SerialDevice) PixelAt(x, y int) (Color, error) {
	return s.screen.PixelAt(x, y)
}

func (s *SerialDevice) KeyDown(key string) error { return s.sendKey("3", key) }
func (s *SerialDevice) KeyUp(key string) error   { return s.sendKey("4", key) }
func (s *SerialDevice) Tap(key string) error     { return s.sendKey("1", key) }
func (s *SerialDevice) Type(text string) error   { return s.send("2" + text) }

// Move moves the HID mouse to x, y
func (s *SerialDevice) Move(x, y int) error { return s.moveTo(x, y) }

// Click moves the HID mouse to x, y and clicks
func (s *SerialDevice) Click(x, y int, button string) error {
	if err := s.moveTo(x, y); err != nil {
		return err
	}
	return s.send("6" + strconv.Itoa(arduinoButton(button)))
}

// Drag holds the left button from one point to another
func (s *SerialDevice) Drag(from, to Point) error {
	if err := s.moveTo(from.X, from.Y); err != nil {
		return err
	}
	if err := s.send("7" + strconv.Itoa(arduinoMouseLeft)); err != nil {
		return err
	}
	if err := s.moveTo(to.X, to.Y); err != nil {
		s.send("8" + strconv.Itoa(arduinoMouseLeft))
		return err
	}
	return s.send("8" + strconv.Itoa(arduinoMouseLeft))
}

// Close closes the serial port
func (s *SerialDevice) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.log.Info("Serial port closed")
	return err
}
