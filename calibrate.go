// Package main - calibrate.go
//
// Calibration mode runs every sensor once and saves what it saw, so the
// configured regions and colors can be checked without running the bot.
//
// Usage:
//   cavebot -calibrate live         sample the live screen
//   cavebot -calibrate shot.png     sample a saved screenshot
//
// Output (in calibration/):
//   - one PNG per configured region (minimap, battle_list, hp, mana, ...)
//   - overview.png: the full frame with every region outlined and the
//     detected marker crossed (only for screenshots)
//
// Results (position, vitals, hostiles, corpse) are written to Debug.log.
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/vcaesar/imgo"
)

// ImageScreen serves captures from a still image.
type ImageScreen struct {
	img *image.RGBA
}

// NewImageScreen wraps img, keeping its pixel coordinates
func NewImageScreen(img image.Image) *ImageScreen {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	return &ImageScreen{img: rgba}
}

// LoadImageScreen reads a screenshot file
func LoadImageScreen(path string) (*ImageScreen, error) {
	img, err := imgo.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewImageScreen(img), nil
}

// CaptureRegion copies rect out of the image
func (s *ImageScreen) CaptureRegion(rect image.Rectangle) (*image.RGBA, error) {
	if !rect.In(s.img.Bounds()) {
		return nil, fmt.Errorf("capture %v: outside image %v", rect, s.img.Bounds())
	}
	out := image.NewRGBA(rect)
	draw.Draw(out, rect, s.img, rect.Min, draw.Src)
	return out, nil
}

// PixelAt reads one pixel
func (s *ImageScreen) PixelAt(x, y int) (Color, error) {
	if !(image.Point{X: x, Y: y}).In(s.img.Bounds()) {
		return Color{}, fmt.Errorf("pixel (%d, %d) outside image %v", x, y, s.img.Bounds())
	}
	return ColorFromRGBA(s.img.RGBAAt(x, y)), nil
}

// CalibrationReport is what the sensors saw.
type CalibrationReport struct {
	Position Coordinate
	Marker   *Point
	HP       int
	Mana     int
	Hostiles []string
	Priority bool
	Corpse   bool
	LevelUp  bool
	Saved    []string
}

type namedRegion struct {
	name   string
	bounds Bounds
	color  color.RGBA
}

func calibrationRegions(cfg *Config) []namedRegion {
	regions := []namedRegion{
		{"minimap", cfg.Estimator.MinimapRegion, color.RGBA{R: 0, G: 255, B: 255, A: 255}},
		{"coords", cfg.Estimator.CoordRegion, color.RGBA{R: 255, G: 255, B: 0, A: 255}},
		{"battle_list", cfg.Combat.BattleList, color.RGBA{R: 255, G: 0, B: 0, A: 255}},
		{"hp", cfg.Healer.HPRegion, color.RGBA{R: 255, G: 64, B: 64, A: 255}},
		{"mana", cfg.Healer.ManaRegion, color.RGBA{R: 64, G: 64, B: 255, A: 255}},
		{"corpse", cfg.Looter.CorpseArea, color.RGBA{R: 160, G: 82, B: 45, A: 255}},
		{"level_up", cfg.LevelUp.Button, color.RGBA{R: 255, G: 215, B: 0, A: 255}},
	}
	for _, slot := range cfg.Equip.Slots {
		regions = append(regions, namedRegion{"equip_" + slot.Name, slot.Region, color.RGBA{R: 0, G: 255, B: 0, A: 255}})
	}
	out := regions[:0]
	for _, r := range regions {
		if !r.bounds.Empty() {
			out = append(out, r)
		}
	}
	return out
}

// Calibrate samples every sensor once on screen and saves the captures
// under outDir.
func Calibrate(cfg *Config, screen Screen, reader TextReader, outDir string, log Logger) (CalibrationReport, error) {
	log = orNop(log)
	var report CalibrationReport

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return report, err
	}

	vision := NewVision(screen, reader, cfg, log)
	estimator := NewPositionEstimator(cfg.Estimator, screen, vision.ReadText, log)

	report.Position = estimator.Estimate()
	report.HP, report.Mana = vision.Vitals()
	report.Hostiles = vision.DetectHostiles()
	report.Priority = vision.DetectPriorityTarget()
	report.Corpse = vision.CorpseVisible()
	report.LevelUp = vision.CheckLevelUp()

	log.Info("=== Calibration ===")
	log.Info("Position: %s (base %s)", report.Position, cfg.Estimator.Base)
	log.Info("HP: %d%%, Mana: %d%%", report.HP, report.Mana)
	log.Info("Hostiles: [%s] priority=%v", strings.Join(report.Hostiles, ", "), report.Priority)
	log.Info("Corpse visible: %v, level up lit: %v", report.Corpse, report.LevelUp)

	for _, r := range calibrationRegions(cfg) {
		img, err := screen.CaptureRegion(r.bounds.Rect())
		if err != nil {
			log.Warn("capture %s %s failed: %v", r.name, r.bounds, err)
			continue
		}
		if r.name == "minimap" {
			if p, ok := findMarker(img, cfg.Estimator.MarkerColor, cfg.Estimator.Tolerance); ok {
				report.Marker = &p
				drawCross(img, p, color.RGBA{R: 255, G: 0, B: 255, A: 255})
				log.Info("Marker at (%d, %d), origin %v", p.X, p.Y, cfg.Estimator.ReferenceOrigin())
			} else {
				log.Warn("No marker pixel matches %s within %d in %s", cfg.Estimator.MarkerColor, cfg.Estimator.Tolerance, r.bounds)
			}
		}
		path := filepath.Join(outDir, r.name+".png")
		if err := imgo.Save(path, img); err != nil {
			return report, fmt.Errorf("save %s: %w", path, err)
		}
		report.Saved = append(report.Saved, path)
	}

	if still, ok := screen.(*ImageScreen); ok {
		overview := image.NewRGBA(still.img.Bounds())
		draw.Draw(overview, overview.Bounds(), still.img, still.img.Bounds().Min, draw.Src)
		for _, r := range calibrationRegions(cfg) {
			drawRect(overview, r.bounds, r.color, 2)
		}
		if report.Marker != nil {
			drawCross(overview, *report.Marker, color.RGBA{R: 255, G: 0, B: 255, A: 255})
		}
		path := filepath.Join(outDir, "overview.png")
		if err := imgo.Save(path, overview); err != nil {
			return report, fmt.Errorf("save %s: %w", path, err)
		}
		report.Saved = append(report.Saved, path)
	}

	log.Info("Saved %d calibration images to %s", len(report.Saved), outDir)
	return report, nil
}

// drawRect draws a rectangle outline, clipped to img
func drawRect(img *image.RGBA, b Bounds, col color.RGBA, thickness int) {
	for t := 0; t < thickness; t++ {
		for x := b.X; x < b.X+b.W; x++ {
			setClipped(img, x, b.Y+t, col)
			setClipped(img, x, b.Y+b.H-t-1, col)
		}
		for y := b.Y; y < b.Y+b.H; y++ {
			setClipped(img, b.X+t, y, col)
			setClipped(img, b.X+b.W-t-1, y, col)
		}
	}
}

func drawCross(img *image.RGBA, p Point, col color.RGBA) {
	for d := -3; d <= 3; d++ {
		setClipped(img, p.X+d, p.Y, col)
		setClipped(img, p.X, p.Y+d, col)
	}
}

func setClipped(img *image.RGBA, x, y int, col color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, col)
	}
}
