// Package resolve implements real-time subgame re-solving: given a trained
// blueprint and the hero's current decision point, it runs a short,
// ephemeral CFR search over just the remaining subgame, regularized toward
// the blueprint by a KL penalty, to produce a locally-refined action
// distribution without retraining anything.
package resolve

import (
	"time"

	"github.com/lox/pokersolver/sdk/solver"
)

// LeafPolicy selects how a depth-limited subgame imputes value past its
// search horizon, by biasing the blueprint strategy used for the rollout.
type LeafPolicy int

const (
	LeafBlueprint LeafPolicy = iota
	LeafFoldBiased
	LeafCallBiased
	LeafRaiseBiased
)

func (p LeafPolicy) String() string {
	switch p {
	case LeafFoldBiased:
		return "fold_biased"
	case LeafCallBiased:
		return "call_biased"
	case LeafRaiseBiased:
		return "raise_biased"
	default:
		return "blueprint"
	}
}

// Config mirrors SearchConfig's real-time-search knobs.
type Config struct {
	// TimeBudget bounds one Solve call; MinIterations is honored even if it
	// runs past TimeBudget, matching the original's "loop until
	// min_iterations, then until time_budget_ms elapses" order.
	TimeBudget    time.Duration
	MinIterations int

	// KLWeight is the preflop/global regularization weight; KLWeightFlop/
	// Turn/River override it postflop, each +KLWeightOOPBonus when the
	// resolving player is out of position.
	KLWeight         float64
	KLWeightFlop     float64
	KLWeightTurn     float64
	KLWeightRiver    float64
	KLWeightOOPBonus float64

	// BlueprintClipMin floors the blueprint probability used as the KL
	// divergence's reference distribution, so an infoset the blueprint
	// assigns zero mass to doesn't produce a divide-by-zero/-inf penalty.
	BlueprintClipMin float64

	TrackKLStats    bool
	KLHighThreshold float64

	// WarmStartScale multiplies blueprint probabilities into the ephemeral
	// table's initial regrets, biasing early iterations toward the
	// blueprint before the subgame search has accumulated its own history.
	WarmStartScale float64

	// DepthLimitStreets bounds the subgame to this many streets past the
	// one the resolver was invoked on; beyond it, LeafPolicyDefault takes
	// over instead of a regret-tracked traversal.
	DepthLimitStreets int

	EnablePublicCardSampling   bool
	NumFutureBoardSamples      int
	MaxSamplesWarningThreshold int

	LeafPolicyDefault LeafPolicy

	// ResolveFromRoundStart enables SolveFromRoundStart's unsafe re-solve
	// mode; Solve itself always roots at the hand state it is given.
	ResolveFromRoundStart bool
}

// DefaultConfig mirrors SearchConfig's field defaults.
func DefaultConfig() Config {
	return Config{
		TimeBudget:                 80 * time.Millisecond,
		MinIterations:              100,
		KLWeight:                   1.0,
		KLWeightFlop:               0.30,
		KLWeightTurn:               0.50,
		KLWeightRiver:              0.70,
		KLWeightOOPBonus:           0.10,
		BlueprintClipMin:           1e-6,
		TrackKLStats:               true,
		KLHighThreshold:            0.3,
		WarmStartScale:             10,
		DepthLimitStreets:          1,
		NumFutureBoardSamples:      1,
		MaxSamplesWarningThreshold: 100,
		LeafPolicyDefault:          LeafBlueprint,
	}
}

// klWeight returns the regularization weight for a street/position pair.
func (c Config) klWeight(street solver.Street, isOOP bool) float64 {
	weight := c.KLWeight
	switch street {
	case solver.StreetFlop:
		weight = c.KLWeightFlop
	case solver.StreetTurn:
		weight = c.KLWeightTurn
	case solver.StreetRiver:
		weight = c.KLWeightRiver
	}
	if isOOP {
		weight += c.KLWeightOOPBonus
	}
	return weight
}

// effectiveSamples mirrors get_effective_num_samples: sampling is disabled
// (1 sample) unless explicitly enabled with more than one board requested.
func (c Config) effectiveSamples() int {
	if !c.EnablePublicCardSampling {
		return 1
	}
	if c.NumFutureBoardSamples > 1 {
		return c.NumFutureBoardSamples
	}
	return 1
}
