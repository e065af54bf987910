// Package rules implements the pure legality and validation functions of
// No-Limit Hold'em betting. It holds no game state of its own: every
// function takes the state it needs and returns a value, so it can be
// exercised directly from MCCFR traversal without touching table.HandState.
package rules

import "github.com/lox/pokersolver/poker/table"

// IsActionLegal reports whether action is legal for player given the
// current betting round, without mutating anything.
func IsActionLegal(br *table.BettingRound, player *table.Player, action table.Action) bool {
	for _, a := range br.GetValidActions(player) {
		if a == action {
			return true
		}
	}
	return false
}

// ValidateBetAmount checks a raise-to amount against the minimum-raise and
// stack-size constraints, snapping below-minimum non-all-in raises up to
// the minimum and capping above-stack raises down to the player's stack.
// It mirrors the carve-out in HandState.ProcessAction: a raise that puts a
// player fully all-in is legal even below the minimum-raise increment.
func ValidateBetAmount(br *table.BettingRound, player *table.Player, requestedTotal int) (correctedTotal int, ok bool) {
	maxTotal := player.Bet + player.Chips
	if requestedTotal >= maxTotal {
		return maxTotal, true
	}
	minTotal := br.CurrentBet + br.MinRaise
	if requestedTotal < minTotal {
		return minTotal, false
	}
	return requestedTotal, true
}

// CheckPotConsistency verifies that the sum of the given pot amounts equals
// the total chips committed by players this hand (the sum of TotalBet). It
// adds no uncollected bets itself, so it balances against pots that already
// include them, as HandState.GetPots returns. It is a diagnostic, not a gate:
// callers log violations rather than abort on them.
func CheckPotConsistency(pots []table.Pot, players []*table.Player) bool {
	potTotal := 0
	for _, p := range pots {
		potTotal += p.Amount
	}
	committed := 0
	for _, p := range players {
		committed += p.TotalBet
	}
	return potTotal == committed
}

// CheckStackConsistency verifies no player's chip count went negative and
// that folded/all-in flags are mutually exclusive with further action.
func CheckStackConsistency(players []*table.Player) []string {
	var violations []string
	for _, p := range players {
		if p.Chips < 0 {
			violations = append(violations, p.Name+": negative stack")
		}
		if p.Folded && p.AllInFlag {
			violations = append(violations, p.Name+": folded and all-in simultaneously")
		}
	}
	return violations
}

// CanAdvanceToNextStreet reports whether every player who can still act has
// matched the current bet and acted at least once this round (subject to
// the BB-option carve-out implemented in BettingRound.IsBettingComplete).
func CanAdvanceToNextStreet(br *table.BettingRound, players []*table.Player, street table.Street, button int) bool {
	return br.IsBettingComplete(players, street, button)
}

// GetNextStreet returns the street that follows s, and ok=false at the
// river (the caller must route to showdown instead of dealing a card).
func GetNextStreet(s table.Street) (table.Street, bool) {
	switch s {
	case table.Preflop:
		return table.Flop, true
	case table.Flop:
		return table.Turn, true
	case table.Turn:
		return table.River, true
	default:
		return table.Showdown, false
	}
}

// SuggestCorrectedAction maps an illegal action to the closest legal one:
// an over-stack call or raise becomes an all-in; a check attempted when
// facing a bet becomes a call; anything else becomes a legal check or call,
// and fold only when neither is available.
func SuggestCorrectedAction(br *table.BettingRound, player *table.Player, attempted table.Action) table.Action {
	if IsActionLegal(br, player, attempted) {
		return attempted
	}
	toCall := br.CurrentBet - player.Bet
	switch attempted {
	case table.Check:
		if toCall > 0 {
			if toCall >= player.Chips {
				return table.AllIn
			}
			return table.Call
		}
	case table.Call, table.Raise:
		if toCall >= player.Chips {
			return table.AllIn
		}
	}
	for _, a := range br.GetValidActions(player) {
		if a == table.Check || a == table.Call {
			return a
		}
	}
	return table.Fold
}
