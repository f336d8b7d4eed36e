// metrics.go - Laufende Trainingsmetriken
//
// Window akkumuliert Timing- und Loss-Werte ueber mehrere Steps und
// liefert beim Snapshot Durchschnittswerte fuer das Logging. Danach
// wird das Fenster zurueckgesetzt.
package train

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Window akkumuliert Metriken ueber ein Logging-Intervall
type Window struct {
	samples int
	data    time.Duration
	compute time.Duration

	losses    []float64
	margins   []float64
	accurates []float64
}

// Record fuegt die Messung eines Steps hinzu
func (w *Window) Record(batchSize int, dataTime, computeTime time.Duration, loss float64) {
	w.samples += batchSize
	w.data += dataTime
	w.compute += computeTime
	w.losses = append(w.losses, loss)
}

// RecordRewards fuegt DPO-Reward-Statistiken eines Steps hinzu
func (w *Window) RecordRewards(margin, accuracy float64) {
	w.margins = append(w.margins, margin)
	w.accurates = append(w.accurates, accuracy)
}

// Snapshot sind die aggregierten Metriken eines Logging-Intervalls
type Snapshot struct {
	Loss           float64
	SamplesPerSec  float64
	AvgDataMS      float64
	AvgComputeMS   float64
	RewardMargin   float64
	RewardAccuracy float64
}

// Snapshot aggregiert das Fenster und setzt es zurueck
func (w *Window) Snapshot() Snapshot {
	var snap Snapshot

	total := w.data + w.compute
	if total > 0 {
		snap.SamplesPerSec = float64(w.samples) / total.Seconds()
	}
	if steps := len(w.losses); steps > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(steps)
		snap.Loss = stat.Mean(w.losses, nil)
	}
	if len(w.margins) > 0 {
		snap.RewardMargin = stat.Mean(w.margins, nil)
		snap.RewardAccuracy = stat.Mean(w.accurates, nil)
	}

	w.samples = 0
	w.data = 0
	w.compute = 0
	w.losses = w.losses[:0]
	w.margins = w.margins[:0]
	w.accurates = w.accurates[:0]

	return snap
}

// Steps gibt die Anzahl der seit dem letzten Snapshot erfassten Steps zurueck
func (w *Window) Steps() int {
	return len(w.losses)
}
