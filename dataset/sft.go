// sft.go - SFT-Dataset und Collator
//
// Dieses Modul enthaelt:
// - SFTDataset: formt Records in tokenisierte Samples um
// - sftSample: Zwischenform eines Samples vor der Kollation
// - Batch: siehe batch.go
//
// Label-Maskierung: alle Positionen ausser den letzten response_len Tokens
// werden auf IgnoreIndex gesetzt, so dass nur die Response in den Loss
// eingeht.
package dataset

import (
	"fmt"
	"os"

	"github.com/alignforge/alignforge/api"
	"github.com/alignforge/alignforge/template"
	"github.com/alignforge/alignforge/tokenizer"
	"github.com/alignforge/alignforge/vision"
)

// SFTOptions buendelt die Abhaengigkeiten eines SFT-Datasets
type SFTOptions struct {
	Template    *template.Template
	Tokenizer   *tokenizer.Tokenizer
	Processor   *vision.Processor
	MaxLength   int
	PaddingSide string

	// FramesPerClip steuert das Video-Sampling (0 = keine Videos)
	FramesPerClip int
}

// SFTDataset formt rohe Records in modellfertige Samples um
type SFTDataset struct {
	src  *Source
	opts SFTOptions

	valid []int
}

type sftSample struct {
	inputIDs    []int32
	labels      []int32
	pixelValues *vision.PixelValues
	responseLen int
}

// NewSFT erstellt ein SFT-Dataset und filtert unbrauchbare Records
func NewSFT(src *Source, opts SFTOptions) (*SFTDataset, error) {
	if opts.Template == nil || opts.Tokenizer == nil {
		return nil, fmt.Errorf("dataset: template and tokenizer must be set")
	}
	if opts.PaddingSide == "" {
		opts.PaddingSide = "right"
	}

	ds := &SFTDataset{src: src, opts: opts}
	for i, rec := range src.Records {
		if rec.Prompt == "" || rec.Response == "" {
			continue
		}
		ds.valid = append(ds.valid, i)
	}

	return ds, nil
}

// Len gibt die Anzahl gueltiger Samples zurueck
func (ds *SFTDataset) Len() int {
	return len(ds.valid)
}

// preprocess tokenisiert einen einzelnen Record
func (ds *SFTDataset) preprocess(index int) (*sftSample, error) {
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

	var video *api.VideoData
	if rec.Video != "" && ds.opts.Processor != nil {
		video = &api.VideoData{FramesDir: ds.src.MediaPath(rec.Video), NumFrames: ds.opts.FramesPerClip}

		var err error
		pixel, err = ds.opts.Processor.SampleFrames(video.FramesDir, ds.opts.FramesPerClip)
		if err != nil {
			return nil, err
		}
	}

	conversation, err := ds.opts.Template.FormatSample(rec.System, rec.Prompt, rec.Response, images, video)
	if err != nil {
		return nil, err
	}
	conversation = template.EnsureSuffix(conversation, ds.opts.Tokenizer.EOSToken())

	inputIDs := tokenizer.Truncate(ds.opts.Tokenizer.Encode(conversation, true), ds.opts.MaxLength)

	// Response-Laenge bestimmt die unmaskierten Label-Positionen
	responseLen := len(ds.opts.Tokenizer.Encode(rec.Response, false)) + 1 // + eos
	if responseLen > len(inputIDs) {
		responseLen = len(inputIDs)
	}

	labels := make([]int32, len(inputIDs))
	for i := range labels {
		if i < len(inputIDs)-responseLen {
			labels[i] = tokenizer.IgnoreIndex
		} else {
			labels[i] = inputIDs[i]
		}
	}

	return &sftSample{
		inputIDs:    inputIDs,
		labels:      labels,
		pixelValues: pixel,
		responseLen: responseLen,
	}, nil
}

// SeqLen gibt die Token-Laenge eines Samples zurueck (fuer Length-Grouping)
func (ds *SFTDataset) SeqLen(index int) int {
	rec := ds.src.Records[ds.valid[index]]
	// grobe Schaetzung ohne Tokenisierung reicht fuer das Bucketing nicht;
	// tokenisiert wird hier nur der Text, Medien sind laengenneutral
	conversation, err := ds.opts.Template.FormatSample(rec.System, rec.Prompt, rec.Response, nil, nil)
	if err != nil {
		return 0
	}
	return len(ds.opts.Tokenizer.Encode(conversation, true))
}

// Batch kollatiert die Samples der gegebenen Indizes
func (ds *SFTDataset) Batch(indices []int) (*Batch, error) {
	seqs := make([][]int32, 0, len(indices))
	labels := make([][]int32, 0, len(indices))
	pixels := make([]*vision.PixelValues, 0, len(indices))
	respLens := make([]int, 0, len(indices))

	for _, idx := range indices {
		s, err := ds.preprocess(idx)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, s.inputIDs)
		labels = append(labels, s.labels)
		pixels = append(pixels, s.pixelValues)
		respLens = append(respLens, s.responseLen)
	}

	padded, mask := tokenizer.PadBatch(seqs, ds.opts.Tokenizer.PadID(), ds.opts.PaddingSide)

	return &Batch{
		InputIDs:      padded,
		Labels:        tokenizer.PadLabels(labels, ds.opts.PaddingSide),
		AttentionMask: mask,
		PixelValues:   pixels,
		Meta:          BatchMeta{ResponseLens: respLens},
	}, nil
}
