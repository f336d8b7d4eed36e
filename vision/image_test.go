// MODUL: image_test
// ZWECK: Tests fuer Dekodierung, Resize und CenterCrop
// INPUT: Synthetische PNG-Daten
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, image/png
// HINWEISE: keine

package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// pngBytes kodiert ein einfaerbiges Bild als PNG
func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		t.Fatalf("PNG kodieren fehlgeschlagen: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	data := pngBytes(t, 8, 6, color.RGBA{0, 255, 0, 255})

	img, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeImage Fehler: %v", err)
	}

	if img.Width != 8 || img.Height != 6 {
		t.Errorf("Groesse = %dx%d, erwartet 8x6", img.Width, img.Height)
	}
}

func TestDecodeImageInvalid(t *testing.T) {
	_, err := DecodeImage(bytes.NewReader([]byte("kein bild")))
	if err == nil {
		t.Error("erwartet Fehler bei ungueltigen Daten")
	}
}

func TestResize(t *testing.T) {
	img := createTestImage(10, 10, color.RGBA{50, 100, 150, 255})

	resized, err := Resize(img, 4, 4)
	if err != nil {
		t.Fatalf("Resize Fehler: %v", err)
	}

	if resized.Width != 4 || resized.Height != 4 {
		t.Errorf("Groesse = %dx%d, erwartet 4x4", resized.Width, resized.Height)
	}
}

func TestCenterCrop(t *testing.T) {
	img := createTestImage(10, 8, color.RGBA{10, 20, 30, 255})

	cropped, err := CenterCrop(img, 4, 4)
	if err != nil {
		t.Fatalf("CenterCrop Fehler: %v", err)
	}

	if cropped.Width != 4 || cropped.Height != 4 {
		t.Errorf("Groesse = %dx%d, erwartet 4x4", cropped.Width, cropped.Height)
	}
}

func TestCenterCropTooLarge(t *testing.T) {
	img := createTestImage(4, 4, color.RGBA{0, 0, 0, 255})

	if _, err := CenterCrop(img, 8, 8); err == nil {
		t.Error("erwartet Fehler wenn Crop groesser als Bild")
	}
}
