// MODUL: video
// ZWECK: Frame-Sampling fuer die Video/Action-Modalitaet
// INPUT: Verzeichnis mit extrahierten Frames (jpg/png), Clip-Laenge
// OUTPUT: PixelValues im TCHW Layout
// NEBENEFFEKTE: Dateisystem-Lesezugriff
// ABHAENGIGKEITEN: processor.go
// HINWEISE: Container-Dekodierung (mp4 etc.) uebernimmt die externe Runtime;
// die Pipeline arbeitet auf vorab extrahierten Frames.

package vision

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SampleFrames waehlt numFrames gleichmaessig verteilte Frames aus framesDir
// und verarbeitet sie zu einem TCHW-Tensor.
func (p *Processor) SampleFrames(framesDir string, numFrames int) (*PixelValues, error) {
	if numFrames <= 0 {
		return nil, fmt.Errorf("ungueltige Frame-Anzahl: %d", numFrames)
	}

	frames, err := listFrames(framesDir)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("keine Frames in %s", framesDir)
	}

	frameSize := 3 * p.Height * p.Width
	out := &PixelValues{
		Data:     make([]float32, 0, numFrames*frameSize),
		Frames:   numFrames,
		Channels: 3,
		Height:   p.Height,
		Width:    p.Width,
	}

	for i := 0; i < numFrames; i++ {
		// gleichmaessiges Sampling ueber die Clip-Laenge
		idx := i * (len(frames) - 1) / max(numFrames-1, 1)

		data, err := os.ReadFile(frames[idx])
		if err != nil {
			return nil, err
		}

		pv, err := p.Process(data)
		if err != nil {
			return nil, fmt.Errorf("frame %s: %w", frames[idx], err)
		}
		out.Data = append(out.Data, pv.Data...)
	}

	return out, nil
}

// listFrames listet Frame-Dateien eines Verzeichnisses in sortierter Reihenfolge
func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".webp":
			frames = append(frames, filepath.Join(dir, e.Name()))
		}
	}

	slices.Sort(frames)
	return frames, nil
}
