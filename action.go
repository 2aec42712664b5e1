// Package main - action.go
//
// This file implements BrowserDevice input through JavaScript injection.
// Keyboard and mouse events are dispatched to the page's canvas by the
// helpers in inputScript, which Start injects after navigation.
//
// Script Functions:
//   - keyboardEvent(mode, key): mode is 'down', 'up' or 'tap'
//   - mouseEvent(type, x, y, button): 'move', 'down', 'up', 'click'
//   - setInputChat(text): fill the focused chat input
//   - setStatusOverlay(text): draw the status box
//
// Key Names:
// Bot key names ("up", "f1", "enter") are translated to KeyboardEvent.key
// values ("ArrowUp", "F1", "Enter") before injection.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

const inputScript = `
(() => {
    const target = () => document.querySelector('canvas') ?? window
    window.keyboardEvent = (mode, key) => {
        const t = target()
        if (mode === 'down' || mode === 'tap') t.dispatchEvent(new KeyboardEvent('keydown', { key, bubbles: true }))
        if (mode === 'up' || mode === 'tap') t.dispatchEvent(new KeyboardEvent('keyup', { key, bubbles: true }))
    }
    window.mouseEvent = (type, x, y, button) => {
        const t = target()
        const opts = { clientX: x, clientY: y, button, bubbles: true }
        t.dispatchEvent(new MouseEvent('mousemove', opts))
        if (type === 'down' || type === 'click') t.dispatchEvent(new MouseEvent('mousedown', opts))
        if (type === 'up' || type === 'click') t.dispatchEvent(new MouseEvent('mouseup', opts))
        if (type === 'click' && button === 2) t.dispatchEvent(new MouseEvent('contextmenu', opts))
    }
    window.setInputChat = (text) => {
        const input = document.querySelector('input[type=text], textarea')
        if (!input) return
        input.value = text
        input.dispatchEvent(new Event('input', { bubbles: true }))
    }
    window.setStatusOverlay = (text) => {
        let box = document.getElementById('cavebot-status')
        if (!box) {
            box = document.createElement('pre')
            box.id = 'cavebot-status'
            box.style.cssText = 'position:fixed;top:4px;left:4px;z-index:99999;margin:0;padding:4px 6px;' +
                'background:rgba(0,0,0,.6);color:#0f0;font:11px monospace;pointer-events:none'
            document.body.appendChild(box)
        }
        box.textContent = text
    }
})();
`

var jsKeyNames = map[string]string{
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
	"enter":     "Enter",
	"esc":       "Escape",
	"escape":    "Escape",
	"space":     " ",
	"tab":       "Tab",
	"backspace": "Backspace",
	"alt":       "Alt",
	"ctrl":      "Control",
	"shift":     "Shift",
}

// jsKeyName converts a bot key name to a KeyboardEvent.key value.
func jsKeyName(key string) string {
	k := strings.ToLower(key)
	if name, ok := jsKeyNames[k]; ok {
		return name
	}
	if len(k) >= 2 && k[0] == 'f' && k[1] >= '1' && k[1] <= '9' {
		return strings.ToUpper(k)
	}
	return key
}

func jsButton(button string) int {
	if button == ButtonRight {
		return 2
	}
	return 0
}

func (b *BrowserDevice) injectInputScript() error {
	return b.eval(inputScript)
}

func (b *BrowserDevice) eval(js string) error {
	if err := b.valid(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(b.ctx, evalTimeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.Evaluate(js, nil))
}

func (b *BrowserDevice) sendKey(mode, key string) error {
	js := fmt.Sprintf("keyboardEvent('%s', '%s');", mode, escapeJavaScriptString(jsKeyName(key)))
	if err := b.eval(js); err != nil {
		return fmt.Errorf("key %s %s: %w", mode, key, err)
	}
	b.LogAction(fmt.Sprintf("Key %s: %s", mode, key))
	return nil
}

func (b *BrowserDevice) sendMouse(kind string, x, y int, button string) error {
	js := fmt.Sprintf("mouseEvent('%s', %d, %d, %d);", kind, x, y, jsButton(button))
	if err := b.eval(js); err != nil {
		return fmt.Errorf("mouse %s at (%d, %d): %w", kind, x, y, err)
	}
	b.LogAction(fmt.Sprintf("Mouse %s %s: (%d, %d)", kind, button, x, y))
	return nil
}

// KeyDown dispatches keydown
func (b *BrowserDevice) KeyDown(key string) error { return b.sendKey("down", key) }

// KeyUp dispatches keyup
func (b *BrowserDevice) KeyUp(key string) error { return b.sendKey("up", key) }

// Tap dispatches keydown then keyup
func (b *BrowserDevice) Tap(key string) error { return b.sendKey("tap", key) }

// Move dispatches a mousemove
func (b *BrowserDevice) Move(x, y int) error {
	return b.sendMouse("move", x, y, ButtonLeft)
}

// Click dispatches a click at viewport coordinates
func (b *BrowserDevice) Click(x, y int, button string) error {
	return b.sendMouse("click", x, y, button)
}

// Drag presses at from, moves and releases at to
func (b *BrowserDevice) Drag(from, to Point) error {
	if err := b.sendMouse("down", from.X, from.Y, ButtonLeft); err != nil {
		return err
	}
	return b.sendMouse("up", to.X, to.Y, ButtonLeft)
}

// Type fills the chat input with text.
//
// The text is set, not sent; callers press the chat key afterwards.
func (b *BrowserDevice) Type(text string) error {
	js := fmt.Sprintf("setInputChat('%s');", escapeJavaScriptString(text))
	if err := b.eval(js); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	b.LogAction("Chat: " + text)
	return nil
}

// escapeJavaScriptString escapes s for a single-quoted JavaScript literal.
func escapeJavaScriptString(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\'':
			sb.WriteString(`\'`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
