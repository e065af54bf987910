package resolve

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/pokersolver/poker"
	"github.com/lox/pokersolver/poker/table"
	"github.com/lox/pokersolver/sdk/solver"
	"github.com/lox/pokersolver/sdk/solver/runtime"
)

// GameParams carries the real table's stake structure, needed to
// reconstruct a Trainer purely to reach its action-abstraction surface
// (LegalDecisions/InfoSetKey) — the same reconstruction pattern
// cmd/solver/eval_runner.go uses to replay a blueprint.
type GameParams struct {
	SmallBlind    int
	BigBlind      int
	StartingStack int
}

// Resolver refines a blueprint locally for the hero's current decision by
// running a short, ephemeral, KL-regularized CFR search over the remaining
// subgame — grounded on
// original_source/src/holdem/realtime/resolver.py::SubgameResolver. Its
// per-node utility was a documented placeholder (`rng.uniform(-1, 1)`,
// commented "LIMITATION: does not fully traverse the subgame tree"); this
// replaces it with a real recursive traversal, built in the idiom of
// trainer.go's iterationContext/traverse, that reuses the trainer's own
// action abstraction and counterfactual-regret bookkeeping instead of
// sampling a random number for the node value.
type Resolver struct {
	cfg     Config
	policy  *runtime.Policy
	trainer *solver.Trainer
	rng     *rand.Rand
	logger  zerolog.Logger

	statsMu   sync.Mutex
	klHistory map[string][]float64 // "<street>/<IP|OOP>" -> kl values, for Statistics()
}

// New constructs a Resolver against a loaded blueprint. seed drives every
// random draw the resolver makes (opponent hole cards, future board cards,
// action sampling), so two resolvers built with the same seed against the
// same blueprint and decision point produce identical strategies.
func New(cfg Config, policy *runtime.Policy, params GameParams, logger zerolog.Logger, seed int64) (*Resolver, error) {
	if policy == nil || policy.Blueprint() == nil {
		return nil, fmt.Errorf("resolve: policy with a loaded blueprint is required")
	}
	bp := policy.Blueprint()

	trainer, err := solver.NewTrainer(bp.Abstraction, solver.TrainingConfig{
		Iterations:     1,
		Players:        2,
		Seed:           seed,
		ParallelTables: 1,
		SmallBlind:     params.SmallBlind,
		BigBlind:       params.BigBlind,
		StartingStack:  params.StartingStack,
		EnableRaises:   bp.Abstraction.EnableRaises,
		Sampling:       solver.SamplingModeExternal,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve: reconstruct action abstraction: %w", err)
	}

	return &Resolver{
		cfg:       cfg,
		policy:    policy,
		trainer:   trainer,
		rng:       rand.New(rand.NewSource(seed)),
		logger:    logger,
		klHistory: make(map[string][]float64),
	}, nil
}

// Result is the output of one subgame solve.
type Result struct {
	Decisions []solver.Decision
	Strategy  []float64
	Metrics   Metrics
}

// Solve runs the ephemeral CFR search rooted at hand's current decision
// point for heroSeat and returns a refined action distribution. It does not
// use public-card sampling; call SolveWithSampling for that.
func (r *Resolver) Solve(ctx context.Context, hand *table.HandState, heroSeat int) (*Result, error) {
	return r.solveSingle(ctx, hand, heroSeat, r.cfg.TimeBudget, 0)
}

// SolveWithSampling implements the Pluribus-style public-card sampling
// variance reduction: it samples NumFutureBoardSamples complete future
// boards, solves the subgame once per board with a fraction of the time
// budget, and returns the iteration-weighted mean of the per-board results.
// Falls back to Solve when sampling is disabled, there are too few samples
// to average, or the hand is already on the river (no future cards left to
// sample) — grounded on resolver.py::solve_with_sampling.
func (r *Resolver) SolveWithSampling(ctx context.Context, hand *table.HandState, heroSeat int) (*Result, error) {
	key := r.trainer.InfoSetKey(hand, heroSeat)
	n := r.cfg.effectiveSamples()
	if n <= 1 || key.Street == solver.StreetRiver {
		return r.Solve(ctx, hand, heroSeat)
	}
	if n > r.cfg.MaxSamplesWarningThreshold {
		r.logger.Warn().Int("samples", n).Msg("public card sampling: sample count exceeds recommended threshold, performance may degrade")
	}

	boards := sampleFutureBoards(hand, heroSeat, key.Street, r.rng, n)
	if len(boards) <= 1 {
		return r.Solve(ctx, hand, heroSeat)
	}

	perSample := r.cfg.TimeBudget / time.Duration(len(boards))
	results := make([]*Result, 0, len(boards))
	for _, board := range boards {
		if ctx.Err() != nil {
			break
		}
		res, err := r.solveSingle(ctx, hand, heroSeat, perSample, board)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("resolve: no board sample completed before context cancellation")
	}
	return averageResults(results), nil
}

// SolveFromRoundStart implements the "unsafe re-solve" mode: the subgame
// roots at roundStart (a hand state the caller captured at the start of the
// current betting round), replays heroActions — the hero's own actions
// already taken this round — deterministically without re-optimizing them,
// and then solves from the resulting state exactly like Solve. Opponent
// decisions along the way remain free for the CFR traversal to re-explore,
// which is what makes this unsafe: if real play diverged from what a
// blueprint-consistent opponent would have done, the result can be wrong.
//
// Grounded on resolver.py::reconstruct_round_history, completed here rather
// than translated: the original left round-boundary detection as an open
// TODO ("return simplified result... not yet implemented") because it tried
// to recover the round start by replaying a flat action-history list after
// the fact. HandState carries no such history buffer, so this instead takes
// the round-start state and the hero's in-round actions directly from the
// caller, which already has to track both to drive a live hand.
func (r *Resolver) SolveFromRoundStart(ctx context.Context, roundStart *table.HandState, heroSeat int, heroActions []solver.Decision) (*Result, error) {
	hand := roundStart.Clone()
	for i, d := range heroActions {
		if hand.IsComplete() {
			return nil, fmt.Errorf("resolve: frozen hero action %d came after the round already completed", i)
		}
		if hand.ActivePlayer != heroSeat {
			return nil, fmt.Errorf("resolve: frozen hero action %d expected seat %d to act, got seat %d", i, heroSeat, hand.ActivePlayer)
		}
		if err := hand.ProcessAction(d.Action, d.Amount); err != nil {
			return nil, fmt.Errorf("resolve: replay frozen hero action %d: %w", i, err)
		}
	}
	return r.Solve(ctx, hand, heroSeat)
}

// Statistics returns the accumulated KL divergence samples for every
// street/position pair this resolver has solved, mirroring
// resolver.py::get_kl_statistics's per-(street, position) grouping.
func (r *Resolver) Statistics() map[string][]float64 {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	out := make(map[string][]float64, len(r.klHistory))
	for k, v := range r.klHistory {
		out[k] = append([]float64(nil), v...)
	}
	return out
}

func (r *Resolver) recordKL(street solver.Street, isOOP bool, values []float64) {
	if !r.cfg.TrackKLStats || len(values) == 0 {
		return
	}
	pos := "IP"
	if isOOP {
		pos = "OOP"
	}
	bucket := fmt.Sprintf("%s/%s", street, pos)
	r.statsMu.Lock()
	r.klHistory[bucket] = append(r.klHistory[bucket], values...)
	r.statsMu.Unlock()
}

// solveSingle runs one ephemeral CFR search. boardOverride, when non-zero,
// fixes the future board for every iteration to sampled cards instead of
// letting each iteration's deck draw them independently (public-card
// sampling).
func (r *Resolver) solveSingle(ctx context.Context, hand *table.HandState, heroSeat int, timeBudget time.Duration, boardOverride poker.Hand) (*Result, error) {
	if hand.ActivePlayer != heroSeat {
		return nil, fmt.Errorf("resolve: hand is not awaiting an action from seat %d (active seat %d)", heroSeat, hand.ActivePlayer)
	}

	key := r.trainer.InfoSetKey(hand, heroSeat)
	decisions := r.trainer.LegalDecisions(hand)
	if len(decisions) == 0 {
		return nil, fmt.Errorf("resolve: no legal decisions at seat %d's current node", heroSeat)
	}

	blueprintWeights, err := r.policy.ActionWeights(key, len(decisions))
	if err != nil {
		return nil, fmt.Errorf("resolve: blueprint action weights: %w", err)
	}

	isOOP := !table.InPositionPostflop(heroSeat, hand.Button, len(hand.Players))

	regrets := solver.NewRegretTable()
	entry := regrets.Get(key, len(decisions))
	warmStartRegrets(entry, blueprintWeights, r.cfg.WarmStartScale)

	sctx := &searchContext{
		regrets:    regrets,
		heroSeat:   heroSeat,
		rootStreet: key.Street,
		isOOP:      isOOP,
	}

	start := time.Now()
	klValues := make([]float64, 0, r.cfg.MinIterations)
	iterations := 0
	for {
		if iterations >= r.cfg.MinIterations {
			if ctx.Err() != nil || time.Since(start) >= timeBudget {
				break
			}
		}

		root := prepareSubgameRoot(hand, heroSeat, r.rng, boardOverride)
		var rootKL float64
		sctx.rootKL = &rootKL
		if _, err := r.traverse(sctx, root, 0); err != nil {
			return nil, fmt.Errorf("resolve: subgame traversal: %w", err)
		}
		klValues = append(klValues, rootKL)
		iterations++

		if ctx.Err() != nil && iterations >= r.cfg.MinIterations {
			break
		}
	}

	elapsedMS := float64(time.Since(start)) / float64(time.Millisecond)
	r.recordKL(key.Street, isOOP, klValues)

	return &Result{
		Decisions: decisions,
		Strategy:  entry.AverageStrategy(),
		Metrics:   computeMetrics(klValues, r.cfg.KLHighThreshold, elapsedMS),
	}, nil
}

// warmStartRegrets biases an ephemeral entry's initial regret toward the
// blueprint's most likely actions, proportional to blueprint probability —
// grounded on resolver.py::warm_start_from_blueprint ("Higher blueprint
// probability -> higher initial regret"). The strategy sum is left
// untouched (reachWeight 0) so AverageStrategy only reflects real search
// iterations, not the warm start itself.
func warmStartRegrets(entry *solver.RegretEntry, blueprintWeights []float64, scale float64) {
	scaled := make([]float64, len(blueprintWeights))
	zero := make([]float64, len(blueprintWeights))
	for i, p := range blueprintWeights {
		scaled[i] = p * scale
	}
	entry.Update(scaled, zero, 0, solver.RegretUpdateOptions{})
}

// searchContext threads the fixed-for-this-solve parameters of a subgame
// traversal, in the idiom of trainer.go's iterationContext.
type searchContext struct {
	regrets    *solver.RegretTable
	heroSeat   int
	rootStreet solver.Street
	isOOP      bool
	rootKL     *float64
}

// traverse recursively walks the subgame from hand, enumerating every
// action at a hero node (full counterfactual regret update, regularized
// toward the blueprint by a KL penalty) and single-sampling one action at
// an opponent node from the blueprint's own distribution, external-sampling
// style. Beyond rootStreet+cfg.DepthLimitStreets it switches to a biased
// blueprint rollout (rolloutLeaf) instead of continuing the regret-tracked
// traversal.
func (r *Resolver) traverse(ctx *searchContext, hand *table.HandState, depth int) (float64, error) {
	if hand.IsComplete() {
		return float64(utilityForHand(hand, ctx.heroSeat)), nil
	}
	if hand.ActivePlayer == -1 {
		advanceToNextDecision(hand)
		if hand.IsComplete() {
			return float64(utilityForHand(hand, ctx.heroSeat)), nil
		}
	}

	current := hand.ActivePlayer
	key := r.trainer.InfoSetKey(hand, current)

	if streetsPast := int(key.Street) - int(ctx.rootStreet); streetsPast > r.cfg.DepthLimitStreets {
		return r.rolloutLeaf(hand, ctx.heroSeat)
	}

	decisions := r.trainer.LegalDecisions(hand)
	if len(decisions) == 0 {
		return float64(utilityForHand(hand, ctx.heroSeat)), nil
	}

	if current != ctx.heroSeat {
		weights, err := r.policy.ActionWeights(key, len(decisions))
		if err != nil {
			return 0, err
		}
		idx := sampleIndex(weights, r.rng)
		child := hand.Clone()
		if err := child.ProcessAction(decisions[idx].Action, decisions[idx].Amount); err != nil {
			return 0, err
		}
		return r.traverse(ctx, child, depth+1)
	}

	blueprintWeights, err := r.policy.ActionWeights(key, len(decisions))
	if err != nil {
		return 0, err
	}

	entry := ctx.regrets.Get(key, len(decisions))
	strategy := entry.Strategy()

	util := make([]float64, len(decisions))
	nodeUtil := 0.0
	for i, d := range decisions {
		child := hand.Clone()
		if err := child.ProcessAction(d.Action, d.Amount); err != nil {
			return 0, err
		}
		u, err := r.traverse(ctx, child, depth+1)
		if err != nil {
			return 0, err
		}
		util[i] = u
		nodeUtil += strategy[i] * u
	}

	klW := r.cfg.klWeight(key.Street, ctx.isOOP)
	kl := klDivergence(strategy, blueprintWeights, r.cfg.BlueprintClipMin)
	if depth == 0 && ctx.rootKL != nil {
		*ctx.rootKL = kl
	}

	// KL-regularized regret: each action's utility is penalized by klWeight
	// times the (unnormalized) gradient of KL(strategy||blueprint) at that
	// action, log(strategy[i]/blueprint[i]), generalizing the original's
	// flat "utility -= kl_weight * kl_divergence" placeholder (which only
	// ever touched the single sampled action) into a per-action term usable
	// by a full counterfactual regret update.
	adjUtil := make([]float64, len(decisions))
	adjNodeUtil := 0.0
	for i := range decisions {
		penalty := 0.0
		if strategy[i] > 0 {
			bp := blueprintWeights[i]
			if bp < r.cfg.BlueprintClipMin {
				bp = r.cfg.BlueprintClipMin
			}
			penalty = math.Log(strategy[i] / bp)
		}
		adjUtil[i] = util[i] - klW*penalty
		adjNodeUtil += strategy[i] * adjUtil[i]
	}

	regretVals := make([]float64, len(decisions))
	for i := range decisions {
		regretVals[i] = adjUtil[i] - adjNodeUtil
	}
	entry.Update(regretVals, strategy, 1.0, solver.RegretUpdateOptions{ClampNegativeRegrets: true})

	return nodeUtil, nil
}

// rolloutLeaf continues hand to a terminal state by repeatedly sampling
// actions from the blueprint, biased by the resolver's configured leaf
// policy, without any further regret tracking.
func (r *Resolver) rolloutLeaf(hand *table.HandState, heroSeat int) (float64, error) {
	h := hand.Clone()
	for !h.IsComplete() {
		if h.ActivePlayer == -1 {
			h.NextStreet()
			continue
		}
		decisions := r.trainer.LegalDecisions(h)
		if len(decisions) == 0 {
			break
		}
		key := r.trainer.InfoSetKey(h, h.ActivePlayer)
		weights, err := r.policy.ActionWeights(key, len(decisions))
		if err != nil {
			return 0, err
		}
		weights = applyLeafPolicy(r.cfg.LeafPolicyDefault, decisions, weights)
		idx := sampleIndex(weights, r.rng)
		if err := h.ProcessAction(decisions[idx].Action, decisions[idx].Amount); err != nil {
			return 0, err
		}
	}
	return float64(utilityForHand(h, heroSeat)), nil
}

// averageResults combines one Result per sampled board into a single
// iteration-weighted mean strategy and averaged metrics; every result must
// share the same Decisions slice (same infoset, same abstraction).
func averageResults(results []*Result) *Result {
	n := len(results[0].Strategy)
	combined := make([]float64, n)
	totalWeight := 0.0
	for _, res := range results {
		weight := float64(res.Metrics.IterationsCompleted)
		if weight <= 0 {
			weight = 1
		}
		for i, p := range res.Strategy {
			combined[i] += p * weight
		}
		totalWeight += weight
	}
	if totalWeight > 0 {
		for i := range combined {
			combined[i] /= totalWeight
		}
	}

	metrics := make([]Metrics, len(results))
	for i, res := range results {
		metrics[i] = res.Metrics
	}

	return &Result{
		Decisions: results[0].Decisions,
		Strategy:  combined,
		Metrics:   averageMetrics(metrics),
	}
}
