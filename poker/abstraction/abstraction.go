// Package abstraction implements the solver's action abstraction and
// back-mapper: a finite, position- and street-aware vocabulary of abstract
// actions layered over the rules kernel's concrete action set, and a
// deterministic mapping from an abstract action back to a legal concrete one.
package abstraction

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/pokersolver/poker/table"
)

// Kind enumerates the abstract action vocabulary.
type Kind int

const (
	Fold Kind = iota
	CheckCall
	Bet
	AllIn
)

func (k Kind) String() string {
	switch k {
	case Fold:
		return "fold"
	case CheckCall:
		return "check_call"
	case Bet:
		return "bet"
	case AllIn:
		return "all_in"
	default:
		return "unknown"
	}
}

// Action is one entry of the abstract action set. Fraction is only
// meaningful when Kind == Bet, and names the pot fraction the entry
// represents (e.g. 0.5 for a half-pot bet/raise).
type Action struct {
	Kind     Kind
	Fraction float64
}

func (a Action) String() string {
	if a.Kind == Bet {
		return fmt.Sprintf("bet(%.2fx pot)", a.Fraction)
	}
	return a.Kind.String()
}

// Decision is the concrete action a backmap call resolves an abstract action
// to: an action from the rules kernel's enum, plus the raise-to total when
// Action is table.Raise.
type Decision struct {
	Action table.Action
	Amount int
}

// Config parameterises the abstraction menu. BetSizing lists pot-fraction
// raise sizes in increasing order; OOPBetSizing, when non-empty, replaces
// BetSizing for out-of-position postflop decisions (the menu the rules
// kernel exposes there excludes over-bets). AllInThreshold and
// MicroStackBigBlinds fall back to the package defaults when zero.
type Config struct {
	BetSizing           []float64
	OOPBetSizing        []float64
	MaxActionsPerNode   int
	MaxRaisesPerBucket  int
	BigBlind            int
	AllInThreshold      float64
	MicroStackBigBlinds float64
}

const (
	defaultAllInThreshold      = 0.97
	defaultMicroStackBigBlinds = 2.0
)

func (c Config) bigBlind() int {
	if c.BigBlind > 0 {
		return c.BigBlind
	}
	return 1
}

func (c Config) allInThreshold() float64 {
	if c.AllInThreshold > 0 {
		return c.AllInThreshold
	}
	return defaultAllInThreshold
}

func (c Config) microStackBigBlinds() float64 {
	if c.MicroStackBigBlinds > 0 {
		return c.MicroStackBigBlinds
	}
	return defaultMicroStackBigBlinds
}

func (c Config) menu(street table.Street, inPosition bool) []float64 {
	if street != table.Preflop && !inPosition && len(c.OOPBetSizing) > 0 {
		return c.OOPBetSizing
	}
	return c.BetSizing
}

// AvailableAbstractActions returns the abstract actions legal at hand's
// current decision node, filtered and pruned for street, position, pot,
// stack and to-call exactly as spec'd: richer preflop/IP menus, OOP postflop
// menus that exclude over-bets, and a collapse to {FOLD, CHECK_CALL, ALL_IN}
// for micro-stacks. expandRaises disables MaxRaisesPerBucket pruning, for
// infosets the trainer has promoted to the full bet-sizing menu.
func AvailableAbstractActions(cfg Config, hand *table.HandState, street table.Street, inPosition bool, expandRaises bool) []Action {
	if hand == nil || hand.ActivePlayer < 0 || hand.ActivePlayer >= len(hand.Players) {
		return nil
	}
	player := hand.Players[hand.ActivePlayer]
	raw := hand.GetValidActions()

	var hasFold, hasCheck, hasCall, hasAllIn, hasRaise bool
	for _, a := range raw {
		switch a {
		case table.Fold:
			hasFold = true
		case table.Check:
			hasCheck = true
		case table.Call:
			hasCall = true
		case table.AllIn:
			hasAllIn = true
		case table.Raise:
			hasRaise = true
		}
	}

	actions := make([]Action, 0, len(cfg.BetSizing)+3)
	if hasFold {
		actions = append(actions, Action{Kind: Fold})
	}
	if hasCheck || hasCall {
		actions = append(actions, Action{Kind: CheckCall})
	}

	if microStack(cfg, player) {
		if hasRaise || hasAllIn {
			actions = append(actions, Action{Kind: AllIn})
		}
		return capActions(cfg, actions)
	}

	if hasRaise {
		fractions := raiseFractions(cfg, hand, street, inPosition, player, expandRaises)
		for _, f := range fractions {
			actions = append(actions, Action{Kind: Bet, Fraction: f})
		}
	}
	if hasAllIn {
		actions = append(actions, Action{Kind: AllIn})
	}
	return capActions(cfg, actions)
}

func capActions(cfg Config, actions []Action) []Action {
	if cfg.MaxActionsPerNode > 0 && len(actions) > cfg.MaxActionsPerNode {
		return actions[:cfg.MaxActionsPerNode]
	}
	return actions
}

// microStack reports whether the acting player's remaining stack is small
// enough that the full bet-sizing menu collapses to a shove-or-not decision.
func microStack(cfg Config, player *table.Player) bool {
	limit := cfg.microStackBigBlinds() * float64(cfg.bigBlind())
	return float64(player.Chips) <= limit
}

// raiseFractions computes the surviving pot-fraction menu for a raise,
// applying the street/position menu, deduping by the resulting chip total,
// and pruning to MaxRaisesPerBucket by keeping the smallest, the largest,
// and the entry closest to a pot-sized raise.
func raiseFractions(cfg Config, hand *table.HandState, street table.Street, inPosition bool, player *table.Player, expand bool) []float64 {
	menu := cfg.menu(street, inPosition)
	if len(menu) == 0 {
		return nil
	}

	type candidate struct {
		fraction float64
		total    int
	}
	maxTotal := player.Bet + player.Chips
	pot := potSize(hand)
	minRaise := hand.Betting.MinRaise
	if minRaise <= 0 {
		minRaise = cfg.bigBlind()
	}

	candidates := make([]candidate, 0, len(menu))
	seen := make(map[int]struct{}, len(menu))
	for _, fraction := range menu {
		if fraction <= 0 {
			continue
		}
		raiseBy := int(math.Round(float64(pot) * fraction))
		if raiseBy < minRaise {
			raiseBy = minRaise
		}
		total := hand.Betting.CurrentBet + raiseBy
		if total <= hand.Betting.CurrentBet || total >= maxTotal {
			continue
		}
		if _, ok := seen[total]; ok {
			continue
		}
		seen[total] = struct{}{}
		candidates = append(candidates, candidate{fraction: fraction, total: total})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].total < candidates[j].total })

	maxRaises := cfg.MaxRaisesPerBucket
	if expand || maxRaises <= 0 || len(candidates) <= maxRaises {
		out := make([]float64, len(candidates))
		for i, c := range candidates {
			out[i] = c.fraction
		}
		return out
	}

	totals := make([]int, len(candidates))
	for i, c := range candidates {
		totals[i] = c.total
	}
	closest := closestToPotRaise(hand, player, pot, totals)

	selected := make(map[int]struct{}, maxRaises)
	selectIndex := func(idx int) {
		if idx < 0 || idx >= len(totals) || len(selected) >= maxRaises {
			return
		}
		selected[idx] = struct{}{}
	}
	selectIndex(0)
	selectIndex(len(totals) - 1)
	selectIndex(closest)
	for i := 0; len(selected) < maxRaises && i < len(totals); i++ {
		selectIndex(i)
	}

	out := make([]float64, 0, maxRaises)
	for i := 0; i < len(candidates) && len(out) < maxRaises; i++ {
		if _, ok := selected[i]; ok {
			out = append(out, candidates[i].fraction)
		}
	}
	return out
}

// closestToPotRaise returns the index of the candidate raise total closest
// to a pot-sized raise-to amount, the same target the trainer used to favour
// a "standard" sizing when pruning down to MaxRaisesPerBucket.
func closestToPotRaise(hand *table.HandState, player *table.Player, pot int, totals []int) int {
	if len(totals) == 0 {
		return -1
	}
	toCall := 0
	if hand.Betting.CurrentBet > player.Bet {
		toCall = hand.Betting.CurrentBet - player.Bet
	}
	target := hand.Betting.CurrentBet + toCall + pot + toCall
	best := 0
	bestDiff := absInt(totals[0] - target)
	for i := 1; i < len(totals); i++ {
		if diff := absInt(totals[i] - target); diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}

func potSize(hand *table.HandState) int {
	total := 0
	for _, pot := range hand.GetPots() {
		total += pot.Amount
	}
	return total
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Backmap deterministically resolves an abstract action at hand's current
// decision node to a concrete, rules-kernel-legal Decision, applying the
// tie-break ladder from the action-abstraction specification: FOLD collapses
// to a free CHECK when available; CHECK_CALL calls for whatever is owed,
// clamped to the caller's stack; a pot-fraction BET snaps to the big-blind
// floor, shoves once it crosses the all-in threshold of the remaining stack,
// and otherwise raises by the computed amount, falling back to an all-in
// shove when the stack cannot complete a legal minimum raise; ALL_IN shoves
// the stack, or folds a player with no chips left. Backmap never returns an
// action the rules kernel would reject for the current node.
func Backmap(cfg Config, hand *table.HandState, abs Action) (Decision, error) {
	if hand == nil || hand.ActivePlayer < 0 || hand.ActivePlayer >= len(hand.Players) {
		return Decision{}, fmt.Errorf("abstraction: no active player to backmap for")
	}
	player := hand.Players[hand.ActivePlayer]
	toCall := 0
	if hand.Betting.CurrentBet > player.Bet {
		toCall = hand.Betting.CurrentBet - player.Bet
	}

	switch abs.Kind {
	case Fold:
		if toCall == 0 {
			return Decision{Action: table.Check}, nil
		}
		return Decision{Action: table.Fold}, nil

	case CheckCall:
		if toCall == 0 {
			return Decision{Action: table.Check}, nil
		}
		if toCall >= player.Chips {
			return Decision{Action: table.AllIn}, nil
		}
		return Decision{Action: table.Call}, nil

	case AllIn:
		if player.Chips == 0 {
			return Decision{Action: table.Fold}, nil
		}
		return Decision{Action: table.AllIn}, nil

	case Bet:
		return backmapBet(cfg, hand, player, toCall, abs.Fraction)

	default:
		return Decision{}, fmt.Errorf("abstraction: unknown abstract action kind %d", abs.Kind)
	}
}

func backmapBet(cfg Config, hand *table.HandState, player *table.Player, toCall int, fraction float64) (Decision, error) {
	if player.Chips == 0 {
		return Decision{Action: table.Fold}, nil
	}

	bigBlind := cfg.bigBlind()
	pot := potSize(hand)
	target := int(math.Round(fraction * float64(pot)))
	if target < bigBlind && player.Chips > bigBlind {
		target = bigBlind
	}

	maxTotal := player.Bet + player.Chips
	if float64(target) >= cfg.allInThreshold()*float64(player.Chips) {
		return Decision{Action: table.AllIn}, nil
	}

	minRaise := hand.Betting.MinRaise
	if minRaise <= 0 {
		minRaise = bigBlind
	}
	raiseBy := target
	if raiseBy < minRaise {
		raiseBy = minRaise
	}
	total := hand.Betting.CurrentBet + raiseBy
	minTotal := hand.Betting.CurrentBet + minRaise

	switch {
	case total >= maxTotal:
		return Decision{Action: table.AllIn}, nil
	case minTotal >= maxTotal:
		// The stack cannot complete even a minimum raise; the rules kernel's
		// exception for a sub-minimum all-in raise is what ALL_IN means here.
		return Decision{Action: table.AllIn}, nil
	case toCall >= player.Chips:
		return Decision{Action: table.Call}, nil
	default:
		return Decision{Action: table.Raise, Amount: total}, nil
	}
}
