// checkpoint.go - Checkpoint-Laden: config.json, Gewichts-Dateien, Tokenizer
// Hauptfunktionen: Load, (*Model).Tensor
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var ErrNoWeights = errors.New("checkpoint: no weight files found")

// Params - Konfiguration aus config.json
type Params struct {
	Architectures  []string `json:"architectures"`
	ModelType      string   `json:"model_type"`
	VocabSize      uint32   `json:"vocab_size"`
	HiddenSize     uint32   `json:"hidden_size"`
	NumHiddenLayer uint32   `json:"num_hidden_layers"`
	MaxPosition    uint32   `json:"max_position_embeddings"`

	TextConfig struct {
		VocabSize  uint32 `json:"vocab_size"`
		HiddenSize uint32 `json:"hidden_size"`
	} `json:"text_config"`
}

// Architecture gibt die erste gemeldete Architektur zurueck
func (p *Params) Architecture() string {
	if len(p.Architectures) > 0 {
		return p.Architectures[0]
	}
	return p.ModelType
}

// Tensor beschreibt einen benannten Gewichts-Tensor eines Checkpoints.
// Die Daten werden erst bei Materialize gelesen.
type Tensor struct {
	Name  string
	Dtype string
	Shape []uint64

	source func() ([]float32, error)
}

// Elements gibt die Anzahl der Elemente zurueck
func (t *Tensor) Elements() uint64 {
	n := uint64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Materialize liest die Tensor-Daten als float32
func (t *Tensor) Materialize() ([]float32, error) {
	return t.source()
}

// Model ist ein geladener Checkpoint
type Model struct {
	Dir     string
	Params  Params
	Tensors []*Tensor
}

// Load laedt einen Checkpoint aus einem Verzeichnis.
// Unterstuetzte Gewichts-Formate: safetensors (bevorzugt), pytorch .bin
func Load(dir string) (*Model, error) {
	bts, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	m := &Model{Dir: dir}
	if err := json.Unmarshal(bts, &m.Params); err != nil {
		return nil, fmt.Errorf("checkpoint: invalid config.json: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var safetensors, torch []string
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".safetensors"):
			safetensors = append(safetensors, filepath.Join(dir, e.Name()))
		case strings.HasSuffix(e.Name(), ".bin"):
			torch = append(torch, filepath.Join(dir, e.Name()))
		}
	}

	switch {
	case len(safetensors) > 0:
		for _, fn := range safetensors {
			ts, err := parseSafetensors(fn)
			if err != nil {
				return nil, err
			}
			m.Tensors = append(m.Tensors, ts...)
		}
	case len(torch) > 0:
		for _, fn := range torch {
			ts, err := parseTorch(fn)
			if err != nil {
				return nil, err
			}
			m.Tensors = append(m.Tensors, ts...)
		}
	default:
		return nil, ErrNoWeights
	}

	slog.Info("checkpoint loaded", "dir", dir, "architecture", m.Params.Architecture(), "tensors", len(m.Tensors))
	return m, nil
}

// Tensor gibt den benannten Tensor zurueck
func (m *Model) Tensor(name string) (*Tensor, bool) {
	for _, t := range m.Tensors {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}
