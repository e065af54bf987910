package solver

import (
	"math/rand"
	"testing"

	"github.com/lox/pokersolver/poker/table"
	"github.com/lox/pokersolver/poker"
)

func mustParseHand(t *testing.T, cards ...string) poker.Hand {
	h, err := poker.ParseHand(cards...)
	if err != nil {
		t.Fatalf("parse hand %v: %v", cards, err)
	}
	return h
}

func TestUtilityForPlayerSidePot(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	hand := table.NewHand(rng, []string{"Alice", "Bob", "Cara"}, 0, 5, 10, table.WithChips(1000))

	hand.Board = mustParseHand(t, "2h", "7d", "9c", "Jd", "Qs")
	hand.Street = table.Showdown

	players := hand.Players

	players[0].Bet = 100
	players[0].TotalBet = 100
	players[0].Chips = 0
	players[0].HoleCards = mustParseHand(t, "As", "Ad")

	players[1].Bet = 100
	players[1].TotalBet = 100
	players[1].Chips = 0
	players[1].HoleCards = mustParseHand(t, "Kc", "Kh")

	players[2].Bet = 40
	players[2].TotalBet = 40
	players[2].Chips = 0
	players[2].AllInFlag = true
	players[2].HoleCards = mustParseHand(t, "3c", "4c")

	hand.PotManager = table.NewPotManager(players)
	hand.PotManager.CollectBets(players)
	hand.PotManager.CalculateSidePots(players)

	pots := hand.GetPots()
	if len(pots) != 2 {
		t.Fatalf("expected 2 pots, got %d", len(pots))
	}
	if pots[0].Amount != 120 || len(pots[0].Eligible) != 3 {
		t.Fatalf("expected main pot 120 with 3 eligible, got %+v", pots[0])
	}
	if pots[1].Amount != 120 || len(pots[1].Eligible) != 2 {
		t.Fatalf("expected side pot 120 with 2 eligible, got %+v", pots[1])
	}

	if util := utilityForPlayer(hand, 0); util != 140 {
		t.Fatalf("expected P0 utility 140, got %d", util)
	}
	if util := utilityForPlayer(hand, 1); util != -100 {
		t.Fatalf("expected P1 utility -100, got %d", util)
	}
	if util := utilityForPlayer(hand, 2); util != -40 {
		t.Fatalf("expected P2 utility -40, got %d", util)
	}
}

func TestLegalActionsDelegatesToAbstractionPackage(t *testing.T) {
	abs := DefaultAbstraction()
	cfg := DefaultTrainingConfig()
	cfg.Players = 2
	cfg.SmallBlind = 1
	cfg.BigBlind = 2
	cfg.StartingStack = 10
	cfg.Iterations = 1

	trainer, err := NewTrainer(abs, cfg)
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}

	hand := table.NewHand(rand.New(rand.NewSource(3)), []string{"A", "B"}, 0, cfg.SmallBlind, cfg.BigBlind, table.WithChips(cfg.StartingStack))
	hand.Betting.CurrentBet = cfg.BigBlind
	hand.Betting.MinRaise = cfg.BigBlind
	players := hand.Players
	for i := range players {
		players[i].Bet = cfg.BigBlind
		players[i].TotalBet = cfg.BigBlind
		players[i].Chips = cfg.StartingStack - cfg.BigBlind
	}
	hand.PotManager = table.NewPotManager(players)
	hand.PotManager.CollectBets(players)

	actions := trainer.legalActions(hand, false)
	if len(actions) == 0 {
		t.Fatalf("expected at least one legal action")
	}
	var sawRaise bool
	for _, a := range actions {
		if a.Action == table.Raise {
			sawRaise = true
			if a.Amount <= hand.Betting.CurrentBet {
				t.Fatalf("raise amount %d does not exceed current bet %d", a.Amount, hand.Betting.CurrentBet)
			}
		}
	}
	if !sawRaise {
		t.Fatalf("expected at least one raise among legal actions, got %v", actions)
	}

	// Tight stack should collapse to the micro-stack menu (no distinct raises).
	players[hand.ActivePlayer].Chips = 0
	tight := trainer.legalActions(hand, false)
	for _, a := range tight {
		if a.Action == table.Raise {
			t.Fatalf("expected no raises with empty stack, got %v", tight)
		}
	}
}
