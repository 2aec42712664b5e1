package main

import (
	"image"
	"image/color"
	"os"
	"testing"
)

func TestCalibrateSavesRegions(t *testing.T) {
	cfg := testConfig()
	cfg.Estimator.MinimapRegion = NewBounds(0, 0, 21, 21)
	cfg.Estimator.CoordRegion = Bounds{}
	cfg.Combat.BattleList = Bounds{}
	cfg.Healer.HPRegion = NewBounds(30, 0, 10, 5)
	cfg.Healer.ManaRegion = Bounds{}
	cfg.Looter.CorpseArea = Bounds{}
	cfg.LevelUp.Button = NewBounds(40, 20, 10, 10)

	img := image.NewRGBA(image.Rect(0, 0, 60, 40))
	img.SetRGBA(12, 10, color.RGBA{R: 250, G: 250, B: 250, A: 255})
	img.SetRGBA(45, 25, color.RGBA{R: 255, G: 210, B: 10, A: 255})
	screen := NewImageScreen(img)
	reader := profileText{ProfileDigits: "64"}

	report, err := Calibrate(cfg, screen, reader, t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Marker == nil || *report.Marker != NewPoint(12, 10) {
		t.Fatalf("marker=%v", report.Marker)
	}
	if report.Position != NewCoordinate(102, 100, 7) {
		t.Fatalf("position=%v", report.Position)
	}
	if report.HP != 64 {
		t.Fatalf("hp=%d want=64", report.HP)
	}
	if !report.LevelUp {
		t.Fatalf("lit level up button not reported")
	}
	// minimap, hp, level up and the overview; the default ring slot is off image
	if len(report.Saved) != 4 {
		t.Fatalf("saved=%v", report.Saved)
	}
	for _, path := range report.Saved {
		if _, err := os.Stat(path); err != nil {
			t.Fatal(err)
		}
	}
}

func TestImageScreenBounds(t *testing.T) {
	screen := NewImageScreen(image.NewRGBA(image.Rect(0, 0, 10, 10)))
	if _, err := screen.PixelAt(10, 0); err == nil {
		t.Fatalf("pixel outside image accepted")
	}
	if _, err := screen.CaptureRegion(image.Rect(5, 5, 20, 20)); err == nil {
		t.Fatalf("capture outside image accepted")
	}
}
