// MODUL: processor
// ZWECK: Bild-Prozessor gemaess preprocessor_config.json eines Checkpoints
// INPUT: Rohe Bild-Bytes bzw. Frame-Verzeichnisse
// OUTPUT: PixelValues Tensor-Struktur (CHW bzw. TCHW)
// NEBENEFFEKTE: Dateisystem-Lesezugriff beim Laden der Konfiguration
// ABHAENGIGKEITEN: image.go, normalize.go
// HINWEISE: Fehlende preprocessor_config.json ergibt CLIP-Defaults

package vision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultImageSize ist die Eingabegroesse, wenn keine Konfiguration vorliegt
const DefaultImageSize = 336

// PixelValues ist ein dicht gepackter float32-Tensor fuer Modelleingaben
type PixelValues struct {
	Data []float32

	// Frames > 1 bedeutet TCHW Layout (Video), sonst CHW
	Frames   int
	Channels int
	Height   int
	Width    int
}

// preprocessorConfig spiegelt die relevanten Felder der preprocessor_config.json
type preprocessorConfig struct {
	ImageMean []float32 `json:"image_mean"`
	ImageStd  []float32 `json:"image_std"`
	Size      *struct {
		Width        int `json:"width"`
		Height       int `json:"height"`
		ShortestEdge int `json:"shortest_edge"`
	} `json:"size"`
	CropSize *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"crop_size"`
	DoNormalize bool `json:"do_normalize"`
	DoResize    bool `json:"do_resize"`
}

// Processor wendet die Bildvorverarbeitung eines Checkpoints an
type Processor struct {
	Width  int
	Height int
	Mean   [3]float32
	Std    [3]float32
}

// NewProcessor laedt die Prozessor-Konfiguration aus einem Checkpoint-Verzeichnis.
// Fehlt die Datei, werden CLIP-Defaults verwendet.
func NewProcessor(dir string) (*Processor, error) {
	p := &Processor{
		Width:  DefaultImageSize,
		Height: DefaultImageSize,
		Mean:   ClipMean,
		Std:    ClipStd,
	}

	bts, err := os.ReadFile(filepath.Join(dir, "preprocessor_config.json"))
	if os.IsNotExist(err) {
		return p, nil
	} else if err != nil {
		return nil, err
	}

	var cfg preprocessorConfig
	if err := json.Unmarshal(bts, &cfg); err != nil {
		return nil, fmt.Errorf("ungueltige preprocessor_config.json: %w", err)
	}

	if len(cfg.ImageMean) >= 3 {
		copy(p.Mean[:], cfg.ImageMean)
	}
	if len(cfg.ImageStd) >= 3 {
		copy(p.Std[:], cfg.ImageStd)
	}

	switch {
	case cfg.Size != nil && cfg.Size.Width > 0 && cfg.Size.Height > 0:
		p.Width, p.Height = cfg.Size.Width, cfg.Size.Height
	case cfg.Size != nil && cfg.Size.ShortestEdge > 0:
		p.Width, p.Height = cfg.Size.ShortestEdge, cfg.Size.ShortestEdge
	case cfg.CropSize != nil && cfg.CropSize.Width > 0 && cfg.CropSize.Height > 0:
		p.Width, p.Height = cfg.CropSize.Width, cfg.CropSize.Height
	}

	return p, nil
}

// Process konvertiert rohe Bild-Bytes zu normalisierten Pixel-Werten
func (p *Processor) Process(data []byte) (*PixelValues, error) {
	img, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	resized, err := Resize(img, p.Width, p.Height)
	if err != nil {
		return nil, err
	}

	return &PixelValues{
		Data:     NormalizeRGB(resized, p.Mean, p.Std),
		Frames:   1,
		Channels: 3,
		Height:   p.Height,
		Width:    p.Width,
	}, nil
}
