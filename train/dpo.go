// dpo.go - Direct Preference Optimization
//
// Der Loss wird aus den Log-Wahrscheinlichkeiten der Policy und der
// eingefrorenen Referenz berechnet. Ein Preference-Batch traegt die
// better-Zeilen in der ersten und die worse-Zeilen in der zweiten
// Haelfte; beide Haelften laufen in einem Forward-Pass.
package train

import (
	"fmt"
	"math"
)

// DPOResult sind Loss und Reward-Statistiken eines Preference-Batches
type DPOResult struct {
	Loss           float64
	RewardMargin   float64
	RewardAccuracy float64

	// Coeffs ist dLoss/dLogProb je Zeile in Batch-Reihenfolge
	// [better..., worse...]; damit treibt die Runtime den Update
	Coeffs []float64
}

// DPOLoss berechnet den DPO-Loss eines Preference-Batches.
// policy und ref sind per-Zeile Log-Wahrscheinlichkeiten in
// [better..., worse...] Reihenfolge.
func DPOLoss(policy, ref []float64, beta, labelSmoothing float64) (*DPOResult, error) {
	if len(policy) != len(ref) {
		return nil, fmt.Errorf("train: policy/ref length mismatch (%d vs %d)", len(policy), len(ref))
	}
	if len(policy)%2 != 0 {
		return nil, fmt.Errorf("train: preference batch must have even row count (got %d)", len(policy))
	}

	pairs := len(policy) / 2
	res := &DPOResult{Coeffs: make([]float64, len(policy))}

	for i := 0; i < pairs; i++ {
		betterRatio := policy[i] - ref[i]
		worseRatio := policy[pairs+i] - ref[pairs+i]
		logits := beta * (betterRatio - worseRatio)

		// -(1-ls)*logsigmoid(x) - ls*logsigmoid(-x)
		res.Loss += -(1-labelSmoothing)*logSigmoid(logits) - labelSmoothing*logSigmoid(-logits)

		// dLoss/dlogits, dann Kettenregel auf die Log-Wahrscheinlichkeiten
		dLogits := -(1-labelSmoothing)*sigmoid(-logits) + labelSmoothing*sigmoid(logits)
		res.Coeffs[i] = dLogits * beta
		res.Coeffs[pairs+i] = -dLogits * beta

		// Rewards sind beta-skalierte Log-Ratios; die Margin ist gleich logits
		res.RewardMargin += logits
		if logits > 0 {
			res.RewardAccuracy++
		}
	}

	res.Loss /= float64(pairs)
	res.RewardMargin /= float64(pairs)
	res.RewardAccuracy /= float64(pairs)

	for i := range res.Coeffs {
		res.Coeffs[i] /= float64(pairs)
	}

	return res, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// logSigmoid ist numerisch stabil fuer stark negative x
func logSigmoid(x float64) float64 {
	if x < -30 {
		return x
	}
	return -math.Log1p(math.Exp(-x))
}
