package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/pokersolver/poker"
	"github.com/lox/pokersolver/poker/table"
	"github.com/lox/pokersolver/sdk/solver"
	"github.com/lox/pokersolver/sdk/solver/runtime"
)

// evaluationOptions configures a blueprint self-play evaluation run.
type evaluationOptions struct {
	BlueprintPath string
	Hands         int
	Seed          int64
	SmallBlind    int
	BigBlind      int
	StartChips    int
	Mirror        bool
}

type evalResult struct {
	HandsCompleted uint64
	Duration       time.Duration
	Players        []evalPlayer
}

type evalPlayer struct {
	Name      string
	NetChips  int
	BBPerHand float64
	BBPer100  float64
	Hands     int
}

// runEvaluation replays the stored blueprint against itself for opts.Hands
// hands, alternating the button and (when opts.Mirror is set) replaying each
// deck with seats swapped to cancel dealing variance, and reports net chips
// won per seat in big blinds.
func runEvaluation(ctx context.Context, logger zerolog.Logger, opts evaluationOptions) (*evalResult, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	policy, err := runtime.Load(opts.BlueprintPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	bp := policy.Blueprint()

	trainer, err := solver.NewTrainer(bp.Abstraction, solver.TrainingConfig{
		Iterations:     1,
		Players:        2,
		Seed:           seed,
		ParallelTables: 1,
		SmallBlind:     opts.SmallBlind,
		BigBlind:       opts.BigBlind,
		StartingStack:  opts.StartChips,
		EnableRaises:   bp.Abstraction.EnableRaises,
		Sampling:       solver.SamplingModeExternal,
	})
	if err != nil {
		return nil, fmt.Errorf("reconstruct abstraction: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))
	names := []string{"blueprint-a", "blueprint-b"}
	net := make([]int, len(names))

	var completed uint64
	start := time.Now()

	playOne := func(button int, deck *poker.Deck) []int {
		hand := table.NewHand(rng, names, button, opts.SmallBlind, opts.BigBlind, table.WithChips(opts.StartChips), table.WithDeck(deck))

		for !hand.IsComplete() {
			if hand.ActivePlayer == -1 {
				hand.NextStreet()
				continue
			}

			decisions := trainer.LegalDecisions(hand)
			if len(decisions) == 0 {
				break
			}

			key := trainer.InfoSetKey(hand, hand.ActivePlayer)
			weights, err := policy.ActionWeights(key, len(decisions))
			if err != nil {
				return nil
			}

			idx := sampleIndex(weights, rng)
			d := decisions[idx]
			if err := hand.ProcessAction(d.Action, d.Amount); err != nil {
				return nil
			}
		}

		result := make([]int, len(names))
		winners := hand.GetWinners()
		for potIdx, pot := range hand.GetPots() {
			seats, ok := winners[potIdx]
			if !ok || len(seats) == 0 {
				continue
			}
			share := pot.Amount / len(seats)
			for _, seat := range seats {
				result[seat] += share
			}
		}
		for seat, p := range hand.Players {
			result[seat] -= p.TotalBet
		}
		return result
	}

	for i := 0; i < opts.Hands; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		button := i % len(names)
		deck := poker.NewDeck(rng)
		deckForMirror := deck
		if opts.Mirror && len(names) == 2 {
			frozen := *deck // copy card order/next before it gets dealt from
			deckForMirror = &frozen
		}

		result := playOne(button, deck)
		if result == nil {
			return nil, fmt.Errorf("hand %d: action weights or processing failed", i)
		}
		for seat := range net {
			net[seat] += result[seat]
		}
		completed++

		if opts.Mirror && len(names) == 2 {
			// Replay the identical card sequence with seats swapped to cancel
			// this deal's card-luck variance, a standard duplicate-match technique.
			mirrored := playOne(1-button, deckForMirror)
			if mirrored == nil {
				return nil, fmt.Errorf("mirrored hand %d: action weights or processing failed", i)
			}
			net[0] += mirrored[1]
			net[1] += mirrored[0]
			completed++
		}
	}

	duration := time.Since(start)
	bb := opts.BigBlind
	if bb <= 0 {
		bb = 1
	}

	players := make([]evalPlayer, len(names))
	for seat, name := range names {
		hands := int(completed)
		bbPerHand := 0.0
		bbPer100 := 0.0
		if hands > 0 {
			bbPerHand = float64(net[seat]) / float64(bb) / float64(hands)
			bbPer100 = bbPerHand * 100
		}
		players[seat] = evalPlayer{
			Name:      name,
			NetChips:  net[seat],
			BBPerHand: bbPerHand,
			BBPer100:  bbPer100,
			Hands:     hands,
		}
	}

	logger.Debug().Int("hands", int(completed)).Dur("duration", duration).Msg("self-play evaluation finished")

	return &evalResult{
		HandsCompleted: completed,
		Duration:       duration,
		Players:        players,
	}, nil
}

// sampleIndex draws an action index from a (possibly unnormalised) weight
// distribution, falling back to uniform selection if every weight is zero.
func sampleIndex(weights []float64, rng *rand.Rand) int {
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
