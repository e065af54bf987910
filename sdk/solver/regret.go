package solver

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dchest/siphash"
)

// DCFR discount exponents from Brown & Sandholm's "Solving Imperfect-Information
// Games via Discounted Regret Minimization": positive regrets are discounted
// more slowly than negative ones, and the strategy sum is discounted to favour
// later iterations in the running average.
const (
	dcfrAlpha = 1.5
	dcfrBeta  = 0.0
	dcfrGamma = 2.0
)

// Street enumerates the betting round within a Texas Hold'em hand.
type Street uint8

const (
	StreetPreflop Street = iota
	StreetFlop
	StreetTurn
	StreetRiver
)

func (s Street) String() string {
	switch s {
	case StreetPreflop:
		return "preflop"
	case StreetFlop:
		return "flop"
	case StreetTurn:
		return "turn"
	case StreetRiver:
		return "river"
	default:
		return "unknown"
	}
}

// InfoSetKey uniquely identifies the situation a player experiences. It must
// correspond to the abstraction used while training; otherwise averaging becomes
// meaningless.
type InfoSetKey struct {
	Street       Street
	Player       int
	HoleBucket   int
	BoardBucket  int
	PotBucket    int
	ToCallBucket int
}

func (k InfoSetKey) String() string {
	return fmt.Sprintf("%d/%d/%d/%d/%d/%d", k.Street, k.Player, k.HoleBucket, k.BoardBucket, k.PotBucket, k.ToCallBucket)
}

// RegretEntry accumulates regrets and strategy sums for a node. Values are kept
// in slices to avoid map churn during CFR traversals.
type RegretEntry struct {
	Actions     []float64
	RegretSum   []float64
	StrategySum []float64
	Normalising float64
	mutex       sync.Mutex
}

// RegretUpdateOptions configures how regrets and strategy sums are accumulated.
type RegretUpdateOptions struct {
	ClampNegativeRegrets bool
	LinearAveraging      bool
	UseDCFR              bool
	Iteration            int
}

// ensureSize grows the regret entry to accommodate n actions.
func (e *RegretEntry) ensureSize(n int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if len(e.Actions) >= n {
		return
	}
	missing := n - len(e.Actions)
	e.Actions = append(e.Actions, make([]float64, missing)...)
	e.RegretSum = append(e.RegretSum, make([]float64, missing)...)
	e.StrategySum = append(e.StrategySum, make([]float64, missing)...)
}

// Strategy returns the current regret-matching distribution for the node.
func (e *RegretEntry) Strategy() []float64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	total := 0.0
	strat := make([]float64, len(e.RegretSum))
	for i, r := range e.RegretSum {
		if r > 0 {
			strat[i] = r
			total += r
		}
	}
	if total <= 0 {
		// Uniform fallback
		v := 1.0 / float64(len(strat))
		for i := range strat {
			strat[i] = v
		}
		return strat
	}
	for i := range strat {
		strat[i] /= total
	}
	return strat
}

// Update accumulates regrets and strategy sums for the node. When opts.UseDCFR
// is set, the existing sums are discounted before the new contribution is
// folded in, per the iteration-indexed discount schedule in dcfrAlpha/Beta/Gamma;
// this discounting is incompatible with opts.ClampNegativeRegrets (CFR+), so
// callers should enable at most one of the two.
func (e *RegretEntry) Update(regret []float64, strategy []float64, reachWeight float64, opts RegretUpdateOptions) {
	e.mutex.Lock()
	iterWeight := 1.0
	if opts.LinearAveraging {
		iter := opts.Iteration
		if iter <= 0 {
			iter = 1
		}
		iterWeight = float64(iter)
	}
	weight := reachWeight * iterWeight

	if opts.UseDCFR && opts.Iteration > 0 {
		t := float64(opts.Iteration)
		posDiscount := math.Pow(t, dcfrAlpha) / (math.Pow(t, dcfrAlpha) + 1)
		negDiscount := math.Pow(t, dcfrBeta) / (math.Pow(t, dcfrBeta) + 1)
		for i := range e.RegretSum {
			if e.RegretSum[i] > 0 {
				e.RegretSum[i] *= posDiscount
			} else {
				e.RegretSum[i] *= negDiscount
			}
		}
		stratDiscount := math.Pow(t/(t+1), dcfrGamma)
		for i := range e.StrategySum {
			e.StrategySum[i] *= stratDiscount
		}
		e.Normalising *= stratDiscount
	}

	for i := range regret {
		if opts.ClampNegativeRegrets {
			e.RegretSum[i] += regret[i]
			if e.RegretSum[i] < 0 {
				e.RegretSum[i] = 0
			}
		} else {
			e.RegretSum[i] += regret[i]
		}
		e.StrategySum[i] += weight * strategy[i]
	}
	e.Normalising += weight
	e.mutex.Unlock()
}

// Merge adds other's accumulated sums into e, element-wise. Either side may
// be shorter (a node that only some workers visited); missing slots are
// treated as zero and e grows to the larger size. Merge is commutative and
// associative, so merging a set of worker entries in any order, or merging
// them one at a time instead of all at once, produces the same totals up to
// floating-point rounding.
func (e *RegretEntry) Merge(other *RegretEntry) {
	if other == nil {
		return
	}
	other.mutex.Lock()
	regretCopy := append([]float64(nil), other.RegretSum...)
	stratCopy := append([]float64(nil), other.StrategySum...)
	norm := other.Normalising
	other.mutex.Unlock()

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if n := len(regretCopy); len(e.RegretSum) < n {
		missing := n - len(e.RegretSum)
		e.Actions = append(e.Actions, make([]float64, missing)...)
		e.RegretSum = append(e.RegretSum, make([]float64, missing)...)
		e.StrategySum = append(e.StrategySum, make([]float64, missing)...)
	}
	for i, v := range regretCopy {
		e.RegretSum[i] += v
	}
	for i, v := range stratCopy {
		e.StrategySum[i] += v
	}
	e.Normalising += norm
}

// Discount applies the DCFR discount schedule to the entry's existing sums
// without folding in a new contribution, by routing through Update with a
// zero regret/strategy/reach-weight update. This is the periodic, table-wide
// counterpart to Update's per-touch discount: a batch driver calls it once
// every discount interval on the master store, rather than relying on each
// independent-store worker's own (always-empty-at-batch-start) discount
// calls, which would have nothing accumulated yet to discount.
func (e *RegretEntry) Discount(iteration int) {
	n := len(e.RegretSum)
	zero := make([]float64, n)
	e.Update(zero, zero, 0, RegretUpdateOptions{UseDCFR: true, Iteration: iteration})
}

// AverageStrategy returns the normalised average strategy for the node.
func (e *RegretEntry) AverageStrategy() []float64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	strat := make([]float64, len(e.StrategySum))
	if e.Normalising <= 0 {
		v := 1.0 / float64(len(strat))
		for i := range strat {
			strat[i] = v
		}
		return strat
	}
	for i := range strat {
		strat[i] = e.StrategySum[i] / e.Normalising
	}
	return strat
}

// RegretTable maintains thread-safe entries keyed by info set.
const regretTableShardCount = 64
const regretTableShardMask = regretTableShardCount - 1

type regretShard struct {
	mu      sync.RWMutex
	entries map[string]*RegretEntry
}

// RegretTable maintains thread-safe entries keyed by info set using sharded maps.
type RegretTable struct {
	shards [regretTableShardCount]regretShard
}

// NewRegretTable returns an empty regret table ready for use.
func NewRegretTable() *RegretTable {
	table := &RegretTable{}
	for i := 0; i < regretTableShardCount; i++ {
		table.shards[i].entries = make(map[string]*RegretEntry)
	}
	return table
}

// Get returns the entry for the given key, creating it if missing.
func (t *RegretTable) Get(key InfoSetKey, actionCount int) *RegretEntry {
	k := key.String()
	shard := t.shardFor(k)

	shard.mu.RLock()
	entry, ok := shard.entries[k]
	shard.mu.RUnlock()
	if ok {
		entry.ensureSize(actionCount)
		return entry
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if entry, ok = shard.entries[k]; ok {
		entry.ensureSize(actionCount)
		return entry
	}

	entry = &RegretEntry{}
	entry.ensureSize(actionCount)
	shard.entries[k] = entry
	return entry
}

// Entries exposes a snapshot of the underlying table for serialisation.
func (t *RegretTable) Entries() map[string]*RegretEntry {
	out := make(map[string]*RegretEntry)
	for i := 0; i < regretTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.RLock()
		for k, v := range shard.entries {
			out[k] = v
		}
		shard.mu.RUnlock()
	}
	return out
}

// Size returns the number of info sets tracked.
func (t *RegretTable) Size() int {
	total := 0
	for i := 0; i < regretTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

// Merge adds every entry of other into t, creating entries as needed and
// combining matching ones with RegretEntry.Merge. Keys within a shard are
// visited in sorted order so that merging the same worker tables always
// walks info sets in the same order, matching the deterministic
// (worker-id, infoset, action) reduction order used when folding a batch's
// independent-store workers back into the master table.
func (t *RegretTable) Merge(other *RegretTable) {
	if other == nil {
		return
	}
	for i := range other.shards {
		shard := &other.shards[i]
		shard.mu.RLock()
		keys := make([]string, 0, len(shard.entries))
		for k := range shard.entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			entry := shard.entries[k]
			dst := t.shardFor(k)
			dst.mu.Lock()
			existing, ok := dst.entries[k]
			if !ok {
				existing = &RegretEntry{}
				dst.entries[k] = existing
			}
			dst.mu.Unlock()
			existing.Merge(entry)
		}
		shard.mu.RUnlock()
	}
}

// Discount applies the DCFR discount schedule to every entry in the table,
// once, at the given (global) iteration number. The batch driver calls this
// at the configured discount interval after merging a batch's workers back
// in, instead of discounting per worker-local touch.
func (t *RegretTable) Discount(iteration int) {
	for i := range t.shards {
		shard := &t.shards[i]
		shard.mu.RLock()
		entries := make([]*RegretEntry, 0, len(shard.entries))
		for _, e := range shard.entries {
			entries = append(entries, e)
		}
		shard.mu.RUnlock()
		for _, e := range entries {
			e.Discount(iteration)
		}
	}
}

// Fixed siphash key: shard placement only needs to be deterministic within a
// single process, not resistant to adversarial input, so the key is a constant
// rather than randomised at startup.
const shardHashKey0, shardHashKey1 = 0x9ae16a3b2f90404f, 0xc3a5c85c97cb3127

func (t *RegretTable) shardFor(key string) *regretShard {
	h := siphash.Hash(shardHashKey0, shardHashKey1, []byte(key))
	return &t.shards[uint32(h)&regretTableShardMask]
}

// LoadSnapshot replaces the table's contents with the given entries, sharding
// each by its key the same way Get does. It is used to restore a checkpoint
// into a freshly constructed table.
func (t *RegretTable) LoadSnapshot(entries map[string]*RegretEntry) {
	for i := 0; i < regretTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.Lock()
		shard.entries = make(map[string]*RegretEntry)
		shard.mu.Unlock()
	}
	for key, entry := range entries {
		shard := t.shardFor(key)
		shard.mu.Lock()
		shard.entries[key] = entry
		shard.mu.Unlock()
	}
}

func (e *RegretEntry) snapshot() regretSnapshot {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	snap := regretSnapshot{
		Actions:     append([]float64(nil), e.Actions...),
		RegretSum:   append([]float64(nil), e.RegretSum...),
		StrategySum: append([]float64(nil), e.StrategySum...),
		Normalising: e.Normalising,
	}
	return snap
}

func newRegretEntryFromSnapshot(snap regretSnapshot) *RegretEntry {
	entry := &RegretEntry{
		Actions:     append([]float64(nil), snap.Actions...),
		RegretSum:   append([]float64(nil), snap.RegretSum...),
		StrategySum: append([]float64(nil), snap.StrategySum...),
		Normalising: snap.Normalising,
	}
	return entry
}

