package poker

import (
	lru "github.com/opencoff/golang-lru"
)

// rankCacheSize bounds memory use. The outcome sampler and resolver both
// re-evaluate showdown strength for the same 7-card combination many times
// across iterations and opponent samples, so a bounded cache absorbs most
// repeat lookups without growing without limit across a long training run.
const rankCacheSize = 1 << 16

var rankCache *lru.Cache

func init() {
	c, err := lru.New(rankCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	rankCache = c
}

// Evaluate7CardsCached wraps Evaluate7Cards with an LRU cache keyed on the
// packed 7-card hand. Safe for concurrent use; the underlying cache is
// internally locked.
func Evaluate7CardsCached(hand Hand) HandRank {
	if cached, ok := rankCache.Get(hand); ok {
		return cached.(HandRank)
	}
	rank := Evaluate7Cards(hand)
	rankCache.Add(hand, rank)
	return rank
}
