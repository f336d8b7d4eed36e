// dataset.go - Datensatz-Quellen fuer SFT- und Preference-Pipelines
//
// Dieses Modul enthaelt:
// - RawSample: Ein roher JSONL-Record (prompt, response, optional Bild/Video)
// - Source: Geladene Records mit Basis-Verzeichnis fuer Medien-Pfade
// - Open: Laedt train/eval Splits aus Datei oder Verzeichnis
//
// Datensaetze liegen als JSONL vor; ein Verzeichnis enthaelt
// <split>.jsonl Dateien, ein direkter Dateipfad ignoriert den Split.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// RawSample ist ein einzelner Datensatz-Record
type RawSample struct {
	System   string `json:"system,omitempty"`
	Prompt   string `json:"prompt"`
	Response string `json:"response,omitempty"`

	// Preference-Paare (DPO)
	Better string `json:"better_response,omitempty"`
	Worse  string `json:"worse_response,omitempty"`

	// Medien, Pfade relativ zur Datensatz-Datei
	Image string `json:"image,omitempty"`
	Video string `json:"video,omitempty"`

	// Aktions-Sequenz der Video/Action-Modalitaet
	Actions []string `json:"actions,omitempty"`
}

// Source enthaelt die geladenen Records eines Splits
type Source struct {
	Records []RawSample

	// BaseDir loest relative Bild/Video-Pfade auf
	BaseDir string
}

// Open laedt einen Datensatz-Split.
// path kann eine .jsonl Datei oder ein Verzeichnis mit <split>.jsonl sein.
// size > 0 begrenzt die Anzahl der Records.
func Open(path, split string, size int) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("dataset: path must be set")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}

	file := path
	if info.IsDir() {
		if split == "" {
			split = "train"
		}
		file = filepath.Join(path, split+".jsonl")
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	src := &Source{BaseDir: filepath.Dir(file)}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec RawSample
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("dataset: %s line %d: %w", file, lineNo, err)
		}

		// Aktions-Records tragen die Zielsequenz in actions statt response
		if rec.Response == "" && len(rec.Actions) > 0 {
			rec.Response = strings.Join(rec.Actions, " ")
		}

		src.Records = append(src.Records, rec)
		if size > 0 && len(src.Records) >= size {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	slog.Info("dataset loaded", "file", file, "records", len(src.Records))
	return src, nil
}

// MediaPath loest einen Record-Pfad gegen das Basis-Verzeichnis auf
func (s *Source) MediaPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.BaseDir, p)
}
