package table

// Clone returns a deep copy of the hand state, safe to mutate independently
// of the original. Real-time subgame resolution branches a traversal at a
// decision node by cloning rather than replaying history from hand start,
// which Player's HoleCards/bet fields are already documented as supporting.
func (h *HandState) Clone() *HandState {
	players := make([]*Player, len(h.Players))
	for i, p := range h.Players {
		cp := *p
		players[i] = &cp
	}
	deck := *h.Deck

	return &HandState{
		Players:      players,
		Button:       h.Button,
		Street:       h.Street,
		Board:        h.Board,
		PotManager:   h.PotManager.clone(),
		ActivePlayer: h.ActivePlayer,
		Deck:         &deck,
		Betting:      h.Betting.clone(),
	}
}

func (pm *PotManager) clone() *PotManager {
	pots := make([]Pot, len(pm.pots))
	for i, p := range pm.pots {
		pots[i] = Pot{
			Amount:       p.Amount,
			Eligible:     append([]int(nil), p.Eligible...),
			MaxPerPlayer: p.MaxPerPlayer,
		}
	}
	return &PotManager{pots: pots}
}

func (br *BettingRound) clone() *BettingRound {
	cp := *br
	cp.ActedThisRound = append([]bool(nil), br.ActedThisRound...)
	return &cp
}
