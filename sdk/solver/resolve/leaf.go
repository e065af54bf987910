package resolve

import (
	"github.com/lox/pokersolver/poker/table"
	"github.com/lox/pokersolver/sdk/solver"
)

// leafBiasFactor scales the blueprint mass assigned to a leaf policy's
// favored action family before renormalizing; built from scratch in the
// teacher's idiom since no file in the corpus implements biased-leaf-policy
// blending, only the four named policies in the distilled spec.
const leafBiasFactor = 3.0

// applyLeafPolicy returns weights biased toward the action family the given
// policy favors. LeafBlueprint returns weights unchanged.
func applyLeafPolicy(policy LeafPolicy, decisions []solver.Decision, weights []float64) []float64 {
	if policy == LeafBlueprint || len(weights) == 0 {
		return weights
	}

	biased := append([]float64(nil), weights...)
	total := 0.0
	for i, d := range decisions {
		if leafPolicyFavors(policy, d.Action) {
			biased[i] *= leafBiasFactor
		}
		total += biased[i]
	}
	if total <= 0 {
		uniform := 1.0 / float64(len(biased))
		for i := range biased {
			biased[i] = uniform
		}
		return biased
	}
	for i := range biased {
		biased[i] /= total
	}
	return biased
}

func leafPolicyFavors(policy LeafPolicy, action table.Action) bool {
	switch policy {
	case LeafFoldBiased:
		return action == table.Fold
	case LeafCallBiased:
		return action == table.Check || action == table.Call
	case LeafRaiseBiased:
		return action == table.Raise || action == table.AllIn
	default:
		return false
	}
}
