// scheduler_test.go - Tests fuer die Learning-Rate-Schedules
package train

import (
	"math"
	"testing"
)

func TestNewSchedulerValidation(t *testing.T) {
	if _, err := NewScheduler("polynomial", 1e-4, 0, 100); err == nil {
		t.Error("erwartet Fehler fuer unbekannten Scheduler")
	}
	if _, err := NewScheduler("constant", 1e-4, 0, 0); err == nil {
		t.Error("erwartet Fehler fuer totalSteps 0")
	}
}

func TestSchedulerWarmup(t *testing.T) {
	s, err := NewScheduler("constant", 1.0, 0.1, 100)
	if err != nil {
		t.Fatal(err)
	}

	if s.WarmupSteps() != 10 {
		t.Fatalf("WarmupSteps = %d, erwartet 10", s.WarmupSteps())
	}
	if got := s.LR(0); got != 0 {
		t.Errorf("LR(0) = %f, erwartet 0", got)
	}
	if got := s.LR(5); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("LR(5) = %f, erwartet 0.5", got)
	}
	if got := s.LR(10); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("LR(10) = %f, erwartet 1.0", got)
	}
	// nach dem Warmup konstant
	if got := s.LR(50); got != 1.0 {
		t.Errorf("LR(50) = %f, erwartet 1.0", got)
	}
}

func TestSchedulerWarmupCapped(t *testing.T) {
	s, err := NewScheduler("constant", 1.0, 2.0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if s.WarmupSteps() != 4 {
		t.Errorf("WarmupSteps = %d, erwartet 4 (totalSteps-1)", s.WarmupSteps())
	}
}

func TestSchedulerLinear(t *testing.T) {
	s, err := NewScheduler("linear", 1.0, 0.1, 100)
	if err != nil {
		t.Fatal(err)
	}

	// Mitte des Decays: progress (55-10)/90 = 0.5
	if got := s.LR(55); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("LR(55) = %f, erwartet 0.5", got)
	}
	if got := s.LR(100); math.Abs(got) > 1e-9 {
		t.Errorf("LR(100) = %f, erwartet 0", got)
	}
	// ueber totalSteps hinaus bleibt die Endrate
	if got := s.LR(150); math.Abs(got) > 1e-9 {
		t.Errorf("LR(150) = %f, erwartet 0", got)
	}
}

func TestSchedulerCosine(t *testing.T) {
	s, err := NewScheduler("cosine", 1.0, 0, 100)
	if err != nil {
		t.Fatal(err)
	}

	if got := s.LR(1); got >= 1.0 || got <= 0 {
		t.Errorf("LR(1) = %f, erwartet (0, 1)", got)
	}
	// Halbzeit: cos(pi/2) = 0 -> base/2
	if got := s.LR(50); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("LR(50) = %f, erwartet 0.5", got)
	}
	if got := s.LR(100); math.Abs(got) > 1e-9 {
		t.Errorf("LR(100) = %f, erwartet 0", got)
	}

	// monoton fallend nach dem Warmup
	prev := s.LR(1)
	for step := 2; step <= 100; step++ {
		lr := s.LR(step)
		if lr > prev {
			t.Fatalf("LR steigt bei Step %d: %f > %f", step, lr, prev)
		}
		prev = lr
	}
}
