package resolve

import (
	"math/rand"

	"github.com/lox/pokersolver/poker"
	"github.com/lox/pokersolver/poker/table"
	"github.com/lox/pokersolver/sdk/solver"
)

// boardTargetCards is the number of board cards the next street holds, i.e.
// how far sampleFutureBoards completes the board from each street (the river
// maps to 5, leaving nothing to sample) — grounded verbatim on
// resolver.py::solve_with_sampling's target_cards table.
var boardTargetCards = map[solver.Street]int{
	solver.StreetPreflop: 3,
	solver.StreetFlop:    4,
	solver.StreetTurn:    5,
	solver.StreetRiver:   5,
}

// prepareSubgameRoot clones hand and replaces every non-hero hole card and
// every undealt future board card with a fresh random draw from the cards
// neither the board nor the hero can see, so the resolver traversal never
// looks at information the hero doesn't actually have (the real hand's
// remaining deck holds the true, already-determined opponent cards and
// future board, which a live decision must not get to see). boardOverride,
// when non-zero, fixes the future board to specific sampled cards instead of
// letting the per-iteration deck draw them — this is how public-card
// sampling holds one board fixed across many iterations.
func prepareSubgameRoot(hand *table.HandState, heroSeat int, rng *rand.Rand, boardOverride poker.Hand) *table.HandState {
	root := hand.Clone()
	root.Board |= boardOverride

	known := root.Board | root.Players[heroSeat].HoleCards
	root.Deck = poker.NewDeckExcluding(rng, known)

	for i, p := range root.Players {
		if i == heroSeat || p.Folded {
			continue
		}
		if cards := root.Deck.Deal(2); cards != nil {
			p.HoleCards = poker.NewHand(cards...)
		}
	}
	return root
}

// sampleFutureBoards draws n independent, mutually-unaware completions of
// the board from the street the subgame is rooted on up to the next street's
// board size (boardTargetCards), excluding the
// hero's hole cards and the board already dealt.
func sampleFutureBoards(hand *table.HandState, heroSeat int, street solver.Street, rng *rand.Rand, n int) []poker.Hand {
	target, ok := boardTargetCards[street]
	if !ok {
		target = 5
	}
	need := target - hand.Board.CountCards()
	if need <= 0 {
		return nil
	}

	known := hand.Board | hand.Players[heroSeat].HoleCards
	boards := make([]poker.Hand, 0, n)
	for i := 0; i < n; i++ {
		deck := poker.NewDeckExcluding(rng, known)
		cards := deck.Deal(need)
		if cards == nil {
			continue
		}
		boards = append(boards, poker.NewHand(cards...))
	}
	return boards
}

func advanceToNextDecision(hand *table.HandState) {
	for !hand.IsComplete() && hand.ActivePlayer == -1 {
		hand.NextStreet()
	}
}

// utilityForHand reports seat's net chip result for a completed hand,
// grounded on traversal.go's utilityForPlayer.
func utilityForHand(hand *table.HandState, seat int) int {
	winnings := 0
	allWinners := hand.GetWinners()
	for idx, pot := range hand.GetPots() {
		winners, ok := allWinners[idx]
		if !ok || len(winners) == 0 {
			continue
		}
		share := pot.Amount / len(winners)
		for _, w := range winners {
			if w == seat {
				winnings += share
			}
		}
	}
	return winnings - hand.Players[seat].TotalBet
}

func sampleIndex(weights []float64, rng *rand.Rand) int {
	if len(weights) == 0 {
		return 0
	}
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
