// runtime.go - Runtime-Schnittstelle der Trainingsschleife
//
// MODUL: runtime
// ZWECK: Entkoppelt die Trainingsschleife von der Rechen-Backend-Implementierung
// INPUT: Kollatierte Batches der Daten-Pipeline
// OUTPUT: Loss-Werte, Log-Wahrscheinlichkeiten, Gewichts-Snapshots
//
// Die eigentliche Modell-Mathematik laeuft in einem austauschbaren Backend.
// BigramRuntime ist ein kleines In-Process-Backend auf gonum-Basis: ein
// Bigram-Sprachmodell, das die komplette Schleife (SFT und DPO) ohne
// externe Abhaengigkeiten durchrechnet und in Tests als Referenz dient.
package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/alignforge/alignforge/checkpoint"
	"github.com/alignforge/alignforge/dataset"
	"github.com/alignforge/alignforge/tokenizer"
)

// Runtime ist das Rechen-Backend der Trainingsschleife
type Runtime interface {
	// Step fuehrt einen SFT-Gradientenschritt aus und gibt den
	// mittleren Token-Loss des Batches zurueck
	Step(ctx context.Context, b *dataset.Batch, lr float64) (float64, error)

	// LogProbs gibt je Zeile die Summe der Log-Wahrscheinlichkeiten
	// der gelabelten Tokens zurueck
	LogProbs(ctx context.Context, b *dataset.Batch) ([]float64, error)

	// PreferenceStep wendet einen Gradientenschritt mit per-Zeile
	// Gewichten an (dLoss/dLogProb je Zeile)
	PreferenceStep(ctx context.Context, b *dataset.Batch, coeffs []float64, lr float64) error

	// Snapshot exportiert die trainierbaren Gewichte
	Snapshot() []*checkpoint.AdapterTensor
}

// BigramRuntime ist ein Bigram-Sprachmodell als Referenz-Backend.
// Die Gewichtsmatrix ist (vocab x vocab): Zeile = vorheriges Token,
// Spalte = Logit des naechsten Tokens.
type BigramRuntime struct {
	vocab   int
	weights *mat.Dense
}

// NewBigramRuntime erstellt ein Backend mit kleinen Zufallsgewichten
func NewBigramRuntime(vocab int, seed int64) *BigramRuntime {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, vocab*vocab)
	for i := range data {
		data[i] = rng.NormFloat64() * 0.01
	}
	return &BigramRuntime{
		vocab:   vocab,
		weights: mat.NewDense(vocab, vocab, data),
	}
}

// Clone erstellt eine unabhaengige Kopie, z.B. als eingefrorene
// Referenz-Policy fuer DPO
func (r *BigramRuntime) Clone() *BigramRuntime {
	return &BigramRuntime{
		vocab:   r.vocab,
		weights: mat.DenseCopyOf(r.weights),
	}
}

// target ist ein gelabeltes Bigram (prev -> next) einer Batch-Zeile
type target struct {
	prev int
	next int
}

// rowTargets sammelt die gelabelten Bigrams einer Zeile.
// Position 0 hat keinen Vorgaenger und wird uebersprungen.
func (r *BigramRuntime) rowTargets(b *dataset.Batch, row int) ([]target, error) {
	ids := b.InputIDs[row]
	labels := b.Labels[row]
	mask := b.AttentionMask[row]

	var ts []target
	for t := 1; t < len(ids); t++ {
		if labels[t] == tokenizer.IgnoreIndex || mask[t] == 0 {
			continue
		}
		prev, next := int(ids[t-1]), int(labels[t])
		if prev < 0 || prev >= r.vocab || next < 0 || next >= r.vocab {
			return nil, fmt.Errorf("train: token id out of range (prev=%d next=%d vocab=%d)", prev, next, r.vocab)
		}
		ts = append(ts, target{prev: prev, next: next})
	}
	return ts, nil
}

// logProb gibt log p(next|prev) zurueck
func (r *BigramRuntime) logProb(prev, next int) float64 {
	logits := r.weights.RawRowView(prev)
	return logits[next] - floats.LogSumExp(logits)
}

// LogProbs implementiert Runtime
func (r *BigramRuntime) LogProbs(ctx context.Context, b *dataset.Batch) ([]float64, error) {
	out := make([]float64, b.Size())
	for i := range b.InputIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ts, err := r.rowTargets(b, i)
		if err != nil {
			return nil, err
		}
		for _, t := range ts {
			out[i] += r.logProb(t.prev, t.next)
		}
	}
	return out, nil
}

// applyGrad macht einen SGD-Schritt auf der Zeile prev.
// scale ist dLoss/dLogProb des Bigrams; der Gradient der Log-Wahrscheinlichkeit
// nach den Logits ist (onehot - softmax).
func (r *BigramRuntime) applyGrad(prev, next int, scale, lr float64) {
	logits := r.weights.RawRowView(prev)
	lse := floats.LogSumExp(logits)
	for k := range logits {
		p := math.Exp(logits[k] - lse)
		grad := -p
		if k == next {
			grad += 1
		}
		logits[k] -= lr * scale * grad
	}
}

// Step implementiert Runtime: Cross-Entropy ueber die gelabelten Tokens
func (r *BigramRuntime) Step(ctx context.Context, b *dataset.Batch, lr float64) (float64, error) {
	var loss float64
	var count int

	for i := range b.InputIDs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		ts, err := r.rowTargets(b, i)
		if err != nil {
			return 0, err
		}
		for _, t := range ts {
			loss -= r.logProb(t.prev, t.next)
			r.applyGrad(t.prev, t.next, -1, lr)
			count++
		}
	}

	if count == 0 {
		return 0, nil
	}
	return loss / float64(count), nil
}

// PreferenceStep implementiert Runtime
func (r *BigramRuntime) PreferenceStep(ctx context.Context, b *dataset.Batch, coeffs []float64, lr float64) error {
	if len(coeffs) != b.Size() {
		return fmt.Errorf("train: coeffs length %d does not match batch size %d", len(coeffs), b.Size())
	}

	for i := range b.InputIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		ts, err := r.rowTargets(b, i)
		if err != nil {
			return err
		}
		for _, t := range ts {
			r.applyGrad(t.prev, t.next, coeffs[i], lr)
		}
	}
	return nil
}

// Snapshot implementiert Runtime: exportiert die Gewichtsmatrix als F32
func (r *BigramRuntime) Snapshot() []*checkpoint.AdapterTensor {
	raw := r.weights.RawMatrix()
	data := make([]float32, len(raw.Data))
	for i, v := range raw.Data {
		data[i] = float32(v)
	}
	return []*checkpoint.AdapterTensor{{
		Name:  "bigram.weight",
		Shape: []uint64{uint64(r.vocab), uint64(r.vocab)},
		Kind:  checkpoint.KindF32,
		Data:  data,
	}}
}
