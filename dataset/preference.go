// preference.go - Preference-Dataset und Collator (DPO)
//
// Dieses Modul enthaelt:
// - PreferenceDataset: better/worse Konversations-Paare
// - Kollation: ein Batch enthaelt [better..., worse...] konkateniert,
//   Response-Laengen in derselben Reihenfolge im Meta-Feld
//
// Records, deren better- und worse-Response identisch (oder leer) sind,
// werden beim Laden herausgefiltert.
package dataset

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alignforge/alignforge/api"
	"github.com/alignforge/alignforge/template"
	"github.com/alignforge/alignforge/tokenizer"
	"github.com/alignforge/alignforge/vision"
)

// PreferenceDataset formt Preference-Paare in modellfertige Samples um
type PreferenceDataset struct {
	src  *Source
	opts SFTOptions

	valid []int
}

type preferenceSample struct {
	betterIDs     []int32
	worseIDs      []int32
	betterRespLen int
	worseRespLen  int
	pixelValues   *vision.PixelValues
}

// NewPreference erstellt ein Preference-Dataset und filtert Records,
// deren Antworten keinen Vergleich hergeben
func NewPreference(src *Source, opts SFTOptions) (*PreferenceDataset, error) {
	if opts.Template == nil || opts.Tokenizer == nil {
		return nil, fmt.Errorf("dataset: template and tokenizer must be set")
	}
	if opts.PaddingSide == "" {
		opts.PaddingSide = "right"
	}

	ds := &PreferenceDataset{src: src, opts: opts}

	skipped := 0
	for i, rec := range src.Records {
		if rec.Prompt == "" || rec.Better == "" || rec.Worse == "" || rec.Better == rec.Worse {
			skipped++
			continue
		}
		ds.valid = append(ds.valid, i)
	}

	if skipped > 0 {
		slog.Info("filtered preference records", "skipped", skipped, "kept", len(ds.valid))
	}

	return ds, nil
}

// Len gibt die Anzahl gueltiger Paare zurueck
func (ds *PreferenceDataset) Len() int {
	return len(ds.valid)
}

// preprocess tokenisiert ein einzelnes Preference-Paar
func (ds *PreferenceDataset) preprocess(index int) (*preferenceSample, error) {
	rec := ds.src.Records[ds.valid[index]]

	var images []api.ImageData
	var pixel *vision.PixelValues

	if rec.Image != "" && ds.opts.Processor != nil {
		data, err := os.ReadFile(ds.src.MediaPath(rec.Image))
		if err != nil {
			return nil, fmt.Errorf("dataset: %w", err)
		}
		images = append(images, data)

		pixel, err = ds.opts.Processor.Process(data)
		if err != nil {
			return nil, err
		}
	}

	better, worse, err := ds.opts.Template.FormatPreferenceSample(rec.System, rec.Prompt, rec.Better, rec.Worse, images)
	if err != nil {
		return nil, err
	}

	eos := ds.opts.Tokenizer.EOSToken()
	better = template.EnsureSuffix(better, eos)
	worse = template.EnsureSuffix(worse, eos)

	s := &preferenceSample{
		betterIDs:     tokenizer.Truncate(ds.opts.Tokenizer.Encode(better, true), ds.opts.MaxLength),
		worseIDs:      tokenizer.Truncate(ds.opts.Tokenizer.Encode(worse, true), ds.opts.MaxLength),
		betterRespLen: len(ds.opts.Tokenizer.Encode(rec.Better, false)) + 1,
		worseRespLen:  len(ds.opts.Tokenizer.Encode(rec.Worse, false)) + 1,
		pixelValues:   pixel,
	}

	if s.betterRespLen > len(s.betterIDs) {
		s.betterRespLen = len(s.betterIDs)
	}
	if s.worseRespLen > len(s.worseIDs) {
		s.worseRespLen = len(s.worseIDs)
	}

	return s, nil
}

// SeqLen gibt die Token-Laenge des better-Zweigs zurueck (fuer Length-Grouping)
func (ds *PreferenceDataset) SeqLen(index int) int {
	rec := ds.src.Records[ds.valid[index]]
	conversation, err := ds.opts.Template.FormatSample(rec.System, rec.Prompt, rec.Better, nil, nil)
	if err != nil {
		return 0
	}
	return len(ds.opts.Tokenizer.Encode(conversation, true))
}

// Batch kollatiert die Paare der gegebenen Indizes.
// Die erste Haelfte der Zeilen sind die better-Konversationen, die zweite
// Haelfte die worse-Konversationen; Bilder werden fuer beide Haelften
// wiederholt.
func (ds *PreferenceDataset) Batch(indices []int) (*Batch, error) {
	n := len(indices)

	seqs := make([][]int32, 0, 2*n)
	pixels := make([]*vision.PixelValues, 2*n)
	respLens := make([]int, 0, 2*n)

	samples := make([]*preferenceSample, 0, n)
	for _, idx := range indices {
		s, err := ds.preprocess(idx)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}

	for i, s := range samples {
		seqs = append(seqs, s.betterIDs)
		pixels[i] = s.pixelValues
	}
	for i, s := range samples {
		seqs = append(seqs, s.worseIDs)
		pixels[n+i] = s.pixelValues
	}
	for _, s := range samples {
		respLens = append(respLens, s.betterRespLen)
	}
	for _, s := range samples {
		respLens = append(respLens, s.worseRespLen)
	}

	padded, mask := tokenizer.PadBatch(seqs, ds.opts.Tokenizer.PadID(), ds.opts.PaddingSide)

	// Labels wie im SFT-Fall: nur die Response-Tokens bleiben unmaskiert
	labels := make([][]int32, len(padded))
	for i, row := range padded {
		l := make([]int32, len(row))
		for j := range l {
			l[j] = tokenizer.IgnoreIndex
		}

		seqLen := len(seqs[i])
		respLen := respLens[i]
		if ds.opts.PaddingSide == "left" {
			for j := len(row) - respLen; j < len(row); j++ {
				l[j] = row[j]
			}
		} else {
			for j := seqLen - respLen; j < seqLen; j++ {
				l[j] = row[j]
			}
		}
		labels[i] = l
	}

	return &Batch{
		InputIDs:      padded,
		Labels:        labels,
		AttentionMask: mask,
		PixelValues:   pixels,
		Meta: BatchMeta{
			ResponseLens: respLens,
			Preference:   true,
		},
	}, nil
}
