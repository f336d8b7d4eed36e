// metrics_test.go - Tests fuer das Metrik-Fenster
package train

import (
	"math"
	"testing"
	"time"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window

	w.Record(4, 100*time.Millisecond, 400*time.Millisecond, 2.0)
	w.Record(4, 100*time.Millisecond, 400*time.Millisecond, 4.0)

	if w.Steps() != 2 {
		t.Fatalf("Steps = %d, erwartet 2", w.Steps())
	}

	snap := w.Snapshot()
	if math.Abs(snap.Loss-3.0) > 1e-9 {
		t.Errorf("Loss = %f, erwartet 3.0", snap.Loss)
	}
	// 8 Samples in 1s Gesamtzeit
	if math.Abs(snap.SamplesPerSec-8.0) > 1e-9 {
		t.Errorf("SamplesPerSec = %f, erwartet 8.0", snap.SamplesPerSec)
	}
	if math.Abs(snap.AvgDataMS-100) > 1e-9 {
		t.Errorf("AvgDataMS = %f, erwartet 100", snap.AvgDataMS)
	}
	if math.Abs(snap.AvgComputeMS-400) > 1e-9 {
		t.Errorf("AvgComputeMS = %f, erwartet 400", snap.AvgComputeMS)
	}

	// Snapshot setzt das Fenster zurueck
	if w.Steps() != 0 {
		t.Errorf("Steps nach Snapshot = %d, erwartet 0", w.Steps())
	}
	empty := w.Snapshot()
	if empty.Loss != 0 || empty.SamplesPerSec != 0 {
		t.Errorf("leerer Snapshot = %+v", empty)
	}
}

func TestWindowRewards(t *testing.T) {
	var w Window

	w.Record(2, time.Millisecond, time.Millisecond, 0.7)
	w.RecordRewards(0.5, 1.0)
	w.RecordRewards(1.5, 0.5)

	snap := w.Snapshot()
	if math.Abs(snap.RewardMargin-1.0) > 1e-9 {
		t.Errorf("RewardMargin = %f, erwartet 1.0", snap.RewardMargin)
	}
	if math.Abs(snap.RewardAccuracy-0.75) > 1e-9 {
		t.Errorf("RewardAccuracy = %f, erwartet 0.75", snap.RewardAccuracy)
	}
}
