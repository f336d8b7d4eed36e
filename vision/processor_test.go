// MODUL: processor_test
// ZWECK: Tests fuer Prozessor-Konfiguration, Bild- und Video-Verarbeitung
// INPUT: Temporaere Checkpoint-Verzeichnisse mit preprocessor_config.json
// OUTPUT: Testresultate
// NEBENEFFEKTE: Temporaere Dateien
// ABHAENGIGKEITEN: testing, os
// HINWEISE: keine

package vision

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestNewProcessorDefaults(t *testing.T) {
	// Leeres Verzeichnis: CLIP-Defaults
	p, err := NewProcessor(t.TempDir())
	if err != nil {
		t.Fatalf("NewProcessor Fehler: %v", err)
	}

	if p.Width != DefaultImageSize || p.Height != DefaultImageSize {
		t.Errorf("Groesse = %dx%d, erwartet %dx%d", p.Width, p.Height, DefaultImageSize, DefaultImageSize)
	}
	if p.Mean != ClipMean {
		t.Errorf("Mean = %v, erwartet CLIP-Default", p.Mean)
	}
}

func TestNewProcessorConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := `{
		"image_mean": [0.5, 0.5, 0.5],
		"image_std": [0.5, 0.5, 0.5],
		"size": {"shortest_edge": 224},
		"do_normalize": true,
		"do_resize": true
	}`
	if err := os.WriteFile(filepath.Join(dir, "preprocessor_config.json"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := NewProcessor(dir)
	if err != nil {
		t.Fatalf("NewProcessor Fehler: %v", err)
	}

	if p.Width != 224 || p.Height != 224 {
		t.Errorf("Groesse = %dx%d, erwartet 224x224", p.Width, p.Height)
	}
	if p.Mean != ImageNetStandardMean {
		t.Errorf("Mean = %v, erwartet [0.5 0.5 0.5]", p.Mean)
	}
}

func TestProcess(t *testing.T) {
	p := &Processor{Width: 4, Height: 4, Mean: ImageNetStandardMean, Std: ImageNetStandardStd}

	pv, err := p.Process(pngBytes(t, 16, 16, color.RGBA{200, 100, 50, 255}))
	if err != nil {
		t.Fatalf("Process Fehler: %v", err)
	}

	if pv.Frames != 1 || pv.Channels != 3 || pv.Height != 4 || pv.Width != 4 {
		t.Errorf("Shape = %d/%d/%d/%d, erwartet 1/3/4/4", pv.Frames, pv.Channels, pv.Height, pv.Width)
	}
	if len(pv.Data) != 3*4*4 {
		t.Errorf("Daten Laenge = %d, erwartet 48", len(pv.Data))
	}
}

func TestSampleFrames(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		data := pngBytes(t, 8, 8, color.RGBA{uint8(i * 40), 0, 0, 255})
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	p := &Processor{Width: 4, Height: 4, Mean: ClipMean, Std: ClipStd}
	pv, err := p.SampleFrames(dir, 3)
	if err != nil {
		t.Fatalf("SampleFrames Fehler: %v", err)
	}

	if pv.Frames != 3 {
		t.Errorf("Frames = %d, erwartet 3", pv.Frames)
	}
	if len(pv.Data) != 3*3*4*4 {
		t.Errorf("Daten Laenge = %d, erwartet %d (TCHW)", len(pv.Data), 3*3*4*4)
	}
}

func TestSampleFramesEmpty(t *testing.T) {
	p := &Processor{Width: 4, Height: 4, Mean: ClipMean, Std: ClipStd}
	if _, err := p.SampleFrames(t.TempDir(), 3); err == nil {
		t.Error("erwartet Fehler bei leerem Frame-Verzeichnis")
	}
}
