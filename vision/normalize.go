// MODUL: normalize
// ZWECK: Normalisierung und Tensor-Konvertierung fuer Pixel-Werte
// INPUT: ImageInput, Normalisierungs-Parameter (mean, std)
// OUTPUT: float32-Werte im CHW Layout
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: keine (nur Standardbibliothek)
// HINWEISE: Presets fuer ImageNet und CLIP

package vision

// Standard-Normalisierungswerte fuer verschiedene Modelle
var (
	// ImageNet Default (ResNet, EfficientNet, etc.)
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}

	// ImageNet Standard (normalisiert auf [-1, 1])
	ImageNetStandardMean = [3]float32{0.5, 0.5, 0.5}
	ImageNetStandardStd  = [3]float32{0.5, 0.5, 0.5}

	// CLIP Default
	ClipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	ClipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// NormalizeRGB normalisiert ein Bild mit gegebenen mean/std Werten
// Gibt einen float32-Slice im CHW Format zurueck (Channel-First)
func NormalizeRGB(img *ImageInput, mean, std [3]float32) []float32 {
	bounds := img.Image.Bounds()
	h := bounds.Dy()
	w := bounds.Dx()
	size := h * w

	result := make([]float32, size*3)
	rOffset := 0
	gOffset := size
	bOffset := size * 2

	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := extractRGB(img, x, y)

			result[rOffset+idx] = (r - mean[0]) / std[0]
			result[gOffset+idx] = (g - mean[1]) / std[1]
			result[bOffset+idx] = (b - mean[2]) / std[2]
			idx++
		}
	}

	return result
}

// extractRGB holt RGB-Werte als float32 im Bereich [0,1]
func extractRGB(img *ImageInput, x, y int) (float32, float32, float32) {
	c := img.Image.At(x, y)
	r, g, b, _ := c.RGBA()
	// RGBA gibt 16-bit Werte zurueck, auf 8-bit konvertieren
	return float32(r>>8) / 255.0, float32(g>>8) / 255.0, float32(b>>8) / 255.0
}
