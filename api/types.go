// types.go - Core API Types (Messages, Samples, Metriken)
// Enthaelt: Message, ImageData, VideoData, StepMetrics, RunInfo, Duration
package api

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// ImageData represents the raw binary data of an image file.
type ImageData []byte

// VideoData references a clip as a directory of frame images. Decoding
// full video containers is left to the external runtime; the pipeline
// works on pre-extracted frames.
type VideoData struct {
	FramesDir string `json:"frames_dir"`
	NumFrames int    `json:"num_frames,omitempty"`
}

// Message ist eine einzelne Konversations-Nachricht (role + content)
type Message struct {
	Role    string      `json:"role"`
	Content string      `json:"content"`
	Images  []ImageData `json:"images,omitempty"`
	Video   *VideoData  `json:"video,omitempty"`
}

// StepMetrics enthaelt Performance-Metriken fuer einen Trainings-Schritt
type StepMetrics struct {
	Step          int     `json:"step"`
	Epoch         int     `json:"epoch"`
	Loss          float64 `json:"loss"`
	LearningRate  float64 `json:"learning_rate"`
	SamplesPerSec float64 `json:"samples_per_sec,omitempty"`
	DataMS        float64 `json:"data_ms,omitempty"`
	ComputeMS     float64 `json:"compute_ms,omitempty"`

	// DPO bookkeeping; zero for SFT runs
	RewardMargin   float64 `json:"reward_margin,omitempty"`
	RewardAccuracy float64 `json:"reward_accuracy,omitempty"`
}

// RunInfo beschreibt einen Trainingslauf fuer den Run-Store und die Status-API
type RunInfo struct {
	ID         string    `json:"id"`
	Stage      string    `json:"stage"` // "sft" oder "dpo"
	Model      string    `json:"model"`
	Recipe     string    `json:"recipe"`
	Status     string    `json:"status"` // "running", "completed", "failed"
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Duration ist ein JSON-serialisierbarer time.Duration Wrapper
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	if d.Duration < 0 {
		return []byte("-1"), nil
	}
	return []byte("\"" + d.Duration.String() + "\""), nil
}

func (d *Duration) UnmarshalJSON(b []byte) (err error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch t := v.(type) {
	case float64:
		if t < 0 {
			d.Duration = time.Duration(math.MaxInt64)
		} else {
			d.Duration = time.Duration(t * float64(time.Second))
		}
	case string:
		d.Duration, err = time.ParseDuration(t)
		if err != nil {
			return err
		}
		if d.Duration < 0 {
			d.Duration = time.Duration(math.MaxInt64)
		}
	default:
		return fmt.Errorf("Unsupported type: '%s'", reflect.TypeOf(v))
	}

	return nil
}
