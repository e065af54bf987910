package abstraction

import (
	"math/rand"
	"testing"

	"github.com/lox/pokersolver/poker/table"
)

func newTestHand(seed int64, smallBlind, bigBlind, stack int) *table.HandState {
	return table.NewHand(rand.New(rand.NewSource(seed)), []string{"A", "B"}, 0, smallBlind, bigBlind, table.WithChips(stack))
}

func TestAvailableAbstractActionsRespectsConstraints(t *testing.T) {
	cfg := Config{
		BetSizing:          []float64{0.5, 1.0, 1.5},
		MaxActionsPerNode:  8,
		MaxRaisesPerBucket: 0,
		BigBlind:           2,
	}

	hand := newTestHand(3, 1, 2, 10)
	hand.Betting.CurrentBet = cfg.BigBlind
	hand.Betting.MinRaise = cfg.BigBlind
	players := hand.Players
	for i := range players {
		players[i].Bet = cfg.BigBlind
		players[i].TotalBet = cfg.BigBlind
		players[i].Chips = 10 - cfg.BigBlind
	}
	hand.PotManager = table.NewPotManager(players)
	hand.PotManager.CollectBets(players)

	actions := AvailableAbstractActions(cfg, hand, table.Preflop, true, false)
	var bets []Action
	for _, a := range actions {
		if a.Kind == Bet {
			bets = append(bets, a)
		}
	}
	if len(bets) == 0 {
		t.Fatalf("expected at least one bet-kind action, got %v", actions)
	}

	// A tight stack collapses the menu to fold/check-call/all-in.
	players[hand.ActivePlayer].Chips = 0
	collapsed := AvailableAbstractActions(cfg, hand, table.Preflop, true, false)
	for _, a := range collapsed {
		if a.Kind == Bet {
			t.Fatalf("expected no bet-kind actions with empty stack, got %v", collapsed)
		}
	}
}

func TestAvailableAbstractActionsPrunesToLimit(t *testing.T) {
	cfg := Config{
		BetSizing:          []float64{0.25, 0.5, 0.75, 1.0, 1.5, 2.0},
		MaxActionsPerNode:  8,
		MaxRaisesPerBucket: 2,
		BigBlind:           2,
	}

	hand := newTestHand(17, 1, 2, 40)
	hand.ActivePlayer = 0
	hand.Betting.CurrentBet = cfg.BigBlind * 2
	hand.Betting.MinRaise = cfg.BigBlind
	players := hand.Players
	for i := range players {
		players[i].Bet = cfg.BigBlind * 2
		players[i].TotalBet = cfg.BigBlind * 2
		players[i].Chips = 40 - cfg.BigBlind*2
	}
	hand.PotManager = table.NewPotManager(players)
	hand.PotManager.CollectBets(players)

	pruned := AvailableAbstractActions(cfg, hand, table.Flop, true, false)
	var betsPruned int
	for _, a := range pruned {
		if a.Kind == Bet {
			betsPruned++
		}
	}
	if betsPruned != 2 {
		t.Fatalf("expected 2 bet-kind actions after pruning, got %d: %v", betsPruned, pruned)
	}

	expanded := AvailableAbstractActions(cfg, hand, table.Flop, true, true)
	var betsExpanded int
	for _, a := range expanded {
		if a.Kind == Bet {
			betsExpanded++
		}
	}
	if betsExpanded <= betsPruned {
		t.Fatalf("expected expandRaises to surface more bets than pruned menu: %d vs %d", betsExpanded, betsPruned)
	}
}

func TestBackmapCheckCall(t *testing.T) {
	cfg := Config{BigBlind: 2}
	hand := newTestHand(5, 1, 2, 100)
	hand.Betting.CurrentBet = 0
	player := hand.Players[hand.ActivePlayer]
	player.Bet = 0

	decision, err := Backmap(cfg, hand, Action{Kind: CheckCall})
	if err != nil {
		t.Fatalf("backmap: %v", err)
	}
	if decision.Action != table.Check {
		t.Fatalf("expected Check with nothing to call, got %v", decision.Action)
	}

	hand.Betting.CurrentBet = 10
	decision, err = Backmap(cfg, hand, Action{Kind: CheckCall})
	if err != nil {
		t.Fatalf("backmap: %v", err)
	}
	if decision.Action != table.Call {
		t.Fatalf("expected Call when facing a bet, got %v", decision.Action)
	}
}

func TestBackmapFoldCollapsesToFreeCheck(t *testing.T) {
	cfg := Config{BigBlind: 2}
	hand := newTestHand(5, 1, 2, 100)
	hand.Betting.CurrentBet = 0
	hand.Players[hand.ActivePlayer].Bet = 0

	decision, err := Backmap(cfg, hand, Action{Kind: Fold})
	if err != nil {
		t.Fatalf("backmap: %v", err)
	}
	if decision.Action != table.Check {
		t.Fatalf("expected FOLD to collapse to a free CHECK, got %v", decision.Action)
	}
}

func TestBackmapAllInThresholdShoves(t *testing.T) {
	cfg := Config{BigBlind: 2, AllInThreshold: 0.97}
	hand := newTestHand(9, 5, 10, 100)
	players := hand.Players
	for _, p := range players {
		p.Bet = 30
		p.TotalBet = 30
	}
	hand.PotManager = table.NewPotManager(players)
	hand.PotManager.CollectBets(players) // pot = 60

	player := hand.Players[hand.ActivePlayer]
	player.Chips = 20
	player.Bet = 0
	hand.Betting.CurrentBet = 0
	hand.Betting.MinRaise = 10

	// A pot-sized bet (pot=60) against a 20-chip stack should cross the
	// all-in threshold and shove rather than leave a few chips behind.
	decision, err := Backmap(cfg, hand, Action{Kind: Bet, Fraction: 1.0})
	if err != nil {
		t.Fatalf("backmap: %v", err)
	}
	if decision.Action != table.AllIn {
		t.Fatalf("expected ALL_IN once target crosses the threshold, got %v amount=%d", decision.Action, decision.Amount)
	}
}

func TestBackmapAllInFoldsWithNoChips(t *testing.T) {
	cfg := Config{BigBlind: 2}
	hand := newTestHand(5, 1, 2, 100)
	hand.Players[hand.ActivePlayer].Chips = 0

	decision, err := Backmap(cfg, hand, Action{Kind: AllIn})
	if err != nil {
		t.Fatalf("backmap: %v", err)
	}
	if decision.Action != table.Fold {
		t.Fatalf("expected ALL_IN with zero chips to fold, got %v", decision.Action)
	}
}
