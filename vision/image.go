// MODUL: image
// ZWECK: Bild-Lade- und Verarbeitungsfunktionen fuer die Daten-Pipeline
// INPUT: Dateipfad, Bytes oder io.Reader
// OUTPUT: ImageInput Struktur mit dekodiertem Bild
// NEBENEFFEKTE: Dateisystem-Lesezugriff bei LoadImage
// ABHAENGIGKEITEN: golang.org/x/image/draw (extern), image/jpeg, image/png
// HINWEISE: Alle Bilder werden als RGBA konvertiert, WebP benoetigt x/image/webp

package vision

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	// Standard-Decoder registrieren
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImageInput enthaelt ein dekodiertes Bild mit Metadaten
type ImageInput struct {
	Image  *image.RGBA
	Width  int
	Height int
}

// LoadImage laedt ein Bild von einem Dateipfad
func LoadImage(path string) (*ImageInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("datei lesen fehlgeschlagen: %w", err)
	}
	return DecodeImage(bytes.NewReader(data))
}

// DecodeImage dekodiert ein Bild aus einem io.Reader
func DecodeImage(reader io.Reader) (*ImageInput, error) {
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("bild dekodieren fehlgeschlagen: %w", err)
	}

	rgba := toRGBA(img)
	bounds := rgba.Bounds()

	return &ImageInput{
		Image:  rgba,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// toRGBA konvertiert ein beliebiges image.Image zu *image.RGBA
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// Resize skaliert ein Bild bilinear auf die angegebene Groesse
func Resize(img *ImageInput, width, height int) (*ImageInput, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ungueltige Groesse: %dx%d", width, height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img.Image, img.Image.Bounds(), draw.Over, nil)

	return &ImageInput{
		Image:  dst,
		Width:  width,
		Height: height,
	}, nil
}

// CenterCrop schneidet einen zentrierten Bereich aus
func CenterCrop(img *ImageInput, width, height int) (*ImageInput, error) {
	if width > img.Width || height > img.Height {
		return nil, fmt.Errorf("crop groesser als bild: %dx%d > %dx%d", width, height, img.Width, img.Height)
	}

	offsetX := (img.Width - width) / 2
	offsetY := (img.Height - height) / 2

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	srcRect := image.Rect(offsetX, offsetY, offsetX+width, offsetY+height)

	draw.Draw(dst, dst.Bounds(), img.Image, srcRect.Min, draw.Src)

	return &ImageInput{
		Image:  dst,
		Width:  width,
		Height: height,
	}, nil
}
