package solver

import (
	"github.com/lox/pokersolver/internal/randutil"

	rand "math/rand/v2"

	"github.com/lox/pokersolver/poker/abstraction"
	"github.com/lox/pokersolver/poker/table"
	"github.com/lox/pokersolver/poker"
)

// Decision is one legal action at a node, with the raise-to total filled in
// for table.Raise (ignored for every other action).
type Decision struct {
	Action table.Action
	Amount int
}

type iterationContext struct {
	trainer      *Trainer
	table        *RegretTable // worker-local store; never t.regrets directly
	deckSeed     int64
	button       int
	playerNames  []string
	stats        *TraversalStats
	sampler      *rand.Rand
	deckRNG      *rand.Rand // Reusable RNG for deck operations
	fastRNG      PCG32      // Embedded PCG32 to avoid allocations
	updateOpts   RegretUpdateOptions
	deckTemplate poker.Deck
}

func (t *Trainer) traverse(ctx *iterationContext, path []Decision, target int, depth int, reachPlayer, reachOthers float64) (float64, error) {
	if ctx.stats != nil {
		ctx.stats.NodesVisited++
		if depth > ctx.stats.MaxDepth {
			ctx.stats.MaxDepth = depth
		}
	}

	hand, err := t.simulatePath(ctx, path)
	if err != nil {
		return 0, err
	}

	if hand.IsComplete() {
		if ctx.stats != nil {
			ctx.stats.TerminalNodes++
		}
		return float64(utilityForPlayer(hand, target)), nil
	}

	current := hand.ActivePlayer
	if current == -1 {
		advanceToNextDecision(hand)
		if hand.IsComplete() {
			return float64(utilityForPlayer(hand, target)), nil
		}
		current = hand.ActivePlayer
	}

	key := t.infoSetKey(hand, current)
	expandRaises := t.shouldExpandRaises(key)
	actions := t.legalActions(hand, expandRaises)
	if len(actions) == 0 {
		if ctx.stats != nil {
			ctx.stats.TerminalNodes++
		}
		return float64(utilityForPlayer(hand, target)), nil
	}

	entry := ctx.table.Get(key, len(actions))
	strategy := entry.Strategy()

	if current == target {
		util := make([]float64, len(actions))
		nodeUtil := 0.0
		for i, act := range actions {
			nextPath := appendPath(path, act)
			u, err := t.traverse(ctx, nextPath, target, depth+1, reachPlayer, reachOthers*strategy[i])
			if err != nil {
				return 0, err
			}
			util[i] = u
			nodeUtil += strategy[i] * u
		}

		regrets := make([]float64, len(actions))
		for i := range actions {
			regrets[i] = (util[i] - nodeUtil) * reachOthers
		}
		entry.Update(regrets, strategy, reachPlayer, ctx.updateOpts)
		t.recordVisit(key)
		return nodeUtil, nil
	}

	if t.trainCfg.Sampling == SamplingModeFullTraversal {
		nodeUtil := 0.0
		total := 0.0
		for i, act := range actions {
			prob := strategy[i]
			if prob <= 0 {
				continue
			}
			nextPath := appendPath(path, act)
			u, err := t.traverse(ctx, nextPath, target, depth+1, reachPlayer, reachOthers*prob)
			if err != nil {
				return 0, err
			}
			nodeUtil += prob * u
			total += prob
		}
		if total <= 0 && len(actions) > 0 {
			fallback := 1.0 / float64(len(actions))
			for _, act := range actions {
				nextPath := appendPath(path, act)
				u, err := t.traverse(ctx, nextPath, target, depth+1, reachPlayer, reachOthers*fallback)
				if err != nil {
					return 0, err
				}
				nodeUtil += fallback * u
			}
		}
		return nodeUtil, nil
	}

	sampled := strategy[:len(actions)]
	idx, prob := sampleStrategyIndex(sampled, ctx.sampler)
	if prob <= 0 {
		prob = 1.0 / float64(len(actions))
	}
	nextPath := appendPath(path, actions[idx])
	u, err := t.traverse(ctx, nextPath, target, depth+1, reachPlayer*prob, reachOthers)
	if err != nil {
		return 0, err
	}
	return u, nil
}

func (t *Trainer) simulatePath(ctx *iterationContext, path []Decision) (*table.HandState, error) {
	deck := cloneDeck(&ctx.deckTemplate)
	hand := table.NewHand(ctx.deckRNG, ctx.playerNames, ctx.button, t.trainCfg.SmallBlind, t.trainCfg.BigBlind, table.WithChips(t.trainCfg.StartingStack), table.WithDeck(deck))

	for _, step := range path {
		if hand.IsComplete() {
			break
		}
		if err := hand.ProcessAction(step.Action, step.Amount); err != nil {
			return nil, err
		}
	}

	advanceToNextDecision(hand)
	return hand, nil
}

func advanceToNextDecision(hand *table.HandState) {
	for !hand.IsComplete() && hand.ActivePlayer == -1 {
		hand.NextStreet()
	}
}

func appendPath(path []Decision, act Decision) []Decision {
	next := make([]Decision, len(path)+1)
	copy(next, path)
	next[len(path)] = act
	return next
}

func cloneDeck(src *poker.Deck) *poker.Deck {
	clone := *src
	return &clone
}

// InfoSetKey exports the trainer's info-set abstraction so runtime policy
// evaluation can look up a blueprint strategy for the seat to act.
func (t *Trainer) InfoSetKey(hand *table.HandState, seat int) InfoSetKey {
	return t.infoSetKey(hand, seat)
}

// LegalDecisions exports the trainer's action abstraction for the given hand,
// expanding raises exactly as a live traversal at this node would.
func (t *Trainer) LegalDecisions(hand *table.HandState) []Decision {
	if hand.ActivePlayer < 0 {
		return nil
	}
	key := t.infoSetKey(hand, hand.ActivePlayer)
	return t.legalActions(hand, t.shouldExpandRaises(key))
}

// abstractionConfig adapts the trainer's abstraction and training knobs into
// the poker/abstraction package's Config shape.
func (t *Trainer) abstractionConfig() abstraction.Config {
	return abstraction.Config{
		BetSizing:          t.absCfg.BetSizing,
		OOPBetSizing:       t.absCfg.OOPBetSizing,
		MaxActionsPerNode:  t.absCfg.MaxActionsPerNode,
		MaxRaisesPerBucket: t.absCfg.MaxRaisesPerBucket,
		BigBlind:           t.trainCfg.BigBlind,
	}
}

func (t *Trainer) legalActions(hand *table.HandState, expandRaises bool) []Decision {
	if hand.ActivePlayer < 0 {
		return nil
	}
	if !t.raisesEnabled() {
		return legalActionsNoRaises(hand, t.absCfg.MaxActionsPerNode)
	}

	inPosition := table.InPositionPostflop(hand.ActivePlayer, hand.Button, len(hand.Players))
	abstract := abstraction.AvailableAbstractActions(t.abstractionConfig(), hand, hand.Street, inPosition, expandRaises)

	decisions := make([]Decision, 0, len(abstract))
	for _, abs := range abstract {
		decision, err := abstraction.Backmap(t.abstractionConfig(), hand, abs)
		if err != nil {
			continue
		}
		decisions = append(decisions, Decision(decision))
	}
	return decisions
}

// legalActionsNoRaises handles the degenerate abstraction where raises are
// disabled entirely: only fold/check/call survive, regardless of street or
// position.
func legalActionsNoRaises(hand *table.HandState, maxActions int) []Decision {
	raw := hand.GetValidActions()
	actions := make([]Decision, 0, 2)
	for _, act := range raw {
		switch act {
		case table.Fold:
			actions = append(actions, Decision{Action: table.Fold})
		case table.Check:
			actions = append(actions, Decision{Action: table.Check})
		case table.Call:
			actions = append(actions, Decision{Action: table.Call})
		}
	}
	if maxActions > 0 && len(actions) > maxActions {
		actions = actions[:maxActions]
	}
	return actions
}

func (t *Trainer) infoSetKey(hand *table.HandState, seat int) InfoSetKey {
	player := hand.Players[seat]

	holeBucket := t.bucket.HoleBucket(player.HoleCards)
	boardBucket := 0
	if hand.Board != 0 && hand.Board.CountCards() >= 3 {
		boardBucket = t.bucket.BoardBucket(hand.Board)
	}

	pot := t.potSize(hand)
	toCall := 0
	if hand.Betting.CurrentBet > player.Bet {
		toCall = hand.Betting.CurrentBet - player.Bet
	}

	return InfoSetKey{
		Street:       mapStreet(hand.Street),
		Player:       seat,
		HoleBucket:   holeBucket,
		BoardBucket:  boardBucket,
		PotBucket:    t.potBucket(pot),
		ToCallBucket: t.toCallBucket(toCall),
	}
}

func (t *Trainer) potSize(hand *table.HandState) int {
	pots := hand.GetPots()
	total := 0
	for _, pot := range pots {
		total += pot.Amount
	}
	return total
}

func (t *Trainer) potBucket(pot int) int {
	bb := max(t.trainCfg.BigBlind, 1)
	thresholds := []int{bb, bb * 3, bb * 6, bb * 12}
	for i, boundary := range thresholds {
		if pot <= boundary {
			return i
		}
	}
	return len(thresholds)
}

func (t *Trainer) toCallBucket(toCall int) int {
	bb := max(t.trainCfg.BigBlind, 1)
	thresholds := []int{0, bb, bb * 2, bb * 4}
	for i, boundary := range thresholds {
		if toCall <= boundary {
			return i
		}
	}
	return len(thresholds)
}

func mapStreet(s table.Street) Street {
	switch s {
	case table.Preflop:
		return StreetPreflop
	case table.Flop:
		return StreetFlop
	case table.Turn:
		return StreetTurn
	case table.River:
		return StreetRiver
	default:
		return StreetRiver
	}
}

func utilityForPlayer(hand *table.HandState, seat int) int {
	winnings := 0
	potList := hand.GetPots()
	winners := hand.GetWinners()

	for idx, pot := range potList {
		winnersForPot, ok := winners[idx]
		if !ok || len(winnersForPot) == 0 {
			continue
		}
		share := pot.Amount / len(winnersForPot)
		for _, w := range winnersForPot {
			if w == seat {
				winnings += share
			}
		}
	}

	contribution := hand.Players[seat].TotalBet
	return winnings - contribution
}

func sampleStrategyIndex(strategy []float64, rng *rand.Rand) (int, float64) {
	if len(strategy) == 0 {
		return 0, 0
	}
	if rng == nil {
		rng = randutil.New(42)
	}
	total := 0.0
	for _, v := range strategy {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		idx := rng.IntN(len(strategy))
		return idx, 1.0 / float64(len(strategy))
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, v := range strategy {
		if v <= 0 {
			continue
		}
		acc += v
		if r <= acc {
			return i, v / total
		}
	}
	return len(strategy) - 1, strategy[len(strategy)-1] / total
}
