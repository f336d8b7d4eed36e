// scheduler.go - Learning-Rate-Schedules
//
// Dieses Modul enthaelt den LR-Scheduler der Trainingsschleife:
// - constant: volle LR nach dem Warmup
// - linear:   linearer Abfall auf 0 nach dem Warmup
// - cosine:   Cosinus-Abfall auf 0 nach dem Warmup
//
// Das Warmup ist immer linear von 0 auf die Basis-LR.
package train

import (
	"fmt"
	"math"
)

// Scheduler berechnet die Learning Rate fuer einen Optimizer-Step
type Scheduler struct {
	kind        string
	base        float64
	warmupSteps int
	totalSteps  int
}

// NewScheduler erstellt einen Scheduler.
// warmupRatio wird auf totalSteps bezogen und abgerundet.
func NewScheduler(kind string, base float64, warmupRatio float64, totalSteps int) (*Scheduler, error) {
	switch kind {
	case "constant", "linear", "cosine":
	default:
		return nil, fmt.Errorf("train: unknown lr scheduler %q", kind)
	}
	if totalSteps <= 0 {
		return nil, fmt.Errorf("train: total steps must be > 0 (got %d)", totalSteps)
	}

	warmup := int(warmupRatio * float64(totalSteps))
	if warmup >= totalSteps {
		warmup = totalSteps - 1
	}

	return &Scheduler{
		kind:        kind,
		base:        base,
		warmupSteps: warmup,
		totalSteps:  totalSteps,
	}, nil
}

// LR gibt die Learning Rate fuer den Optimizer-Step zurueck (1-basiert)
func (s *Scheduler) LR(step int) float64 {
	if step <= 0 {
		return 0
	}
	if step > s.totalSteps {
		step = s.totalSteps
	}

	if step <= s.warmupSteps {
		return s.base * float64(step) / float64(s.warmupSteps)
	}

	switch s.kind {
	case "constant":
		return s.base
	case "linear":
		progress := float64(step-s.warmupSteps) / float64(s.totalSteps-s.warmupSteps)
		return s.base * (1 - progress)
	case "cosine":
		progress := float64(step-s.warmupSteps) / float64(s.totalSteps-s.warmupSteps)
		return s.base * 0.5 * (1 + math.Cos(math.Pi*progress))
	}

	return s.base
}

// WarmupSteps gibt die Anzahl der Warmup-Steps zurueck
func (s *Scheduler) WarmupSteps() int {
	return s.warmupSteps
}
