// Package main - ocr.go
//
// TesseractReader is the read_text collaborator: it runs tesseract through
// gosseract on a captured region using a recognition profile.
//
// Profiles:
//   - digits: 0-9 and '%', single line (vitals, supply counts)
//   - coords: 0-9 and ',', single line ("x,y,z" readouts)
//   - names:  letters, space, apostrophe and '-', one name per line (battle list)
//
// One tesseract client is reused across calls; the mutex keeps calls from
// different workers apart since the client is not safe for concurrent use.
package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract"
)

// Recognition profiles
const (
	ProfileDigits = "digits"
	ProfileCoords = "coords"
	ProfileNames  = "names"
)

// TextReader extracts text from an image.
type TextReader interface {
	ReadText(img image.Image, profile string) (string, error)
}

type ocrProfile struct {
	whitelist string
	mode      gosseract.PageSegMode
}

var ocrProfiles = map[string]ocrProfile{
	ProfileDigits: {whitelist: "0123456789%", mode: gosseract.PSM_SINGLE_LINE},
	ProfileCoords: {whitelist: "0123456789,", mode: gosseract.PSM_SINGLE_LINE},
	ProfileNames: {
		whitelist: "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ '-",
		mode:      gosseract.PSM_SINGLE_BLOCK,
	},
}

// TesseractReader reads text with tesseract.
type TesseractReader struct {
	client *gosseract.Client
	mu     sync.Mutex
}

// NewTesseractReader creates a reader for the configured language
func NewTesseractReader(cfg OCRConfig) *TesseractReader {
	client := gosseract.NewClient()
	client.SetLanguage(cfg.Language)
	return &TesseractReader{client: client}
}

// ReadText runs OCR on img with the named profile.
func (r *TesseractReader) ReadText(img image.Image, profile string) (string, error) {
	p, ok := ocrProfiles[profile]
	if !ok {
		return "", fmt.Errorf("unknown ocr profile %q", profile)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode ocr input: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.client.SetWhitelist(p.whitelist)
	r.client.SetPageSegMode(p.mode)
	if err := r.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("ocr image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr %s: %w", profile, err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the tesseract client
func (r *TesseractReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}
