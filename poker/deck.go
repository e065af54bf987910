package poker

import (
	"math/rand"
)

// Deck represents a standard 52-card deck
type Deck struct {
	cards [52]Card // Fixed size array
	count int      // number of live cards in cards[:count]; 52 unless built via NewDeckExcluding
	next  int
	rng   *rand.Rand // Random source for deterministic shuffling
}

// NewDeck creates a new shuffled deck with explicit RNG
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{
		next:  0,
		count: 52,
		rng:   rng,
	}

	// Create all 52 cards
	i := 0
	for suit := range uint8(4) {
		for rank := range uint8(13) {
			d.cards[i] = NewCard(rank, suit)
			i++
		}
	}

	// Shuffle
	d.Shuffle()
	return d
}

// NewDeckExcluding builds a shuffled deck containing every card except those
// already known to the caller (board cards dealt so far, hole cards already
// seen). Used by real-time subgame resolution to fill in unknown hole cards
// and future board cards without ever re-dealing a card the resolver has
// already observed.
func NewDeckExcluding(rng *rand.Rand, known Hand) *Deck {
	d := &Deck{rng: rng}
	i := 0
	for suit := range uint8(4) {
		for rank := range uint8(13) {
			c := NewCard(rank, suit)
			if known&Hand(c) != 0 {
				continue
			}
			d.cards[i] = c
			i++
		}
	}
	d.count = i
	d.next = 0
	d.shuffleRange(i)
	return d
}

// shuffleRange Fisher-Yates shuffles only the first n slots of cards, leaving
// the remaining (unused, zero-value) slots untouched; NewDeckExcluding uses
// this so a deck holding fewer than 52 live cards doesn't shuffle its unused
// tail into play.
func (d *Deck) shuffleRange(n int) {
	for i := n - 1; i > 0; i-- {
		var j int
		if d.rng != nil {
			j = d.rng.Intn(i + 1)
		} else {
			j = rand.Intn(i + 1)
		}
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Shuffle shuffles the deck using Fisher-Yates
func (d *Deck) Shuffle() {
	d.next = 0
	if d.count == 0 {
		d.count = len(d.cards)
	}
	d.shuffleRange(d.count)
}

// Deal deals n cards from the deck
func (d *Deck) Deal(n int) []Card {
	if d.next+n > d.count {
		return nil
	}
	cards := d.cards[d.next : d.next+n]
	d.next += n
	return cards
}

// DealOne deals a single card from the deck
func (d *Deck) DealOne() Card {
	if d.next >= d.count {
		return 0
	}
	card := d.cards[d.next]
	d.next++
	return card
}

// Reset resets and reshuffles the deck
func (d *Deck) Reset() {
	d.Shuffle()
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return d.count - d.next
}
