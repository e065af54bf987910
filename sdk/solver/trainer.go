package solver

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lox/pokersolver/sdk/solver/parallel"
)

// TraversalStats captures instrumentation metrics for a single MCCFR iteration.
type TraversalStats struct {
	NodesVisited  int64
	TerminalNodes int64
	MaxDepth      int
	IterationTime time.Duration
}

// Progress contains metadata emitted during long-running solver operations.
type Progress struct {
	Iteration       int
	RegretTableSize int
	Stats           TraversalStats
}

// Trainer orchestrates Monte Carlo CFR iterations over the PokerForBots engine.
type Trainer struct {
	absCfg          AbstractionConfig
	trainCfg        TrainingConfig
	bucket          *BucketMapper
	regrets         *RegretTable
	iteration       atomic.Int64
	rng             *rand.Rand
	playerNames     []string
	statsMu         sync.Mutex
	stats           TraversalStats
	rngSeed         int64
	rngInt63        int64
	rngIntn         int64
	checkpointPath  string
	checkpointEvery int
	adaptiveMu      sync.Mutex
	adaptiveState   map[string]*adaptiveInfo
}

type adaptiveInfo struct {
	visits   int64
	expanded bool
}

// NewTrainer constructs a solver trainer given abstraction and training configs.
func NewTrainer(absCfg AbstractionConfig, trainCfg TrainingConfig) (*Trainer, error) {
	if err := absCfg.Validate(); err != nil {
		return nil, err
	}
	if err := trainCfg.Validate(); err != nil {
		return nil, err
	}

	mapper, err := NewBucketMapper(absCfg)
	if err != nil {
		return nil, err
	}

	seed := trainCfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	names := make([]string, trainCfg.Players)
	for i := range names {
		names[i] = fmt.Sprintf("P%d", i)
	}

	trainer := &Trainer{
		absCfg:      absCfg,
		trainCfg:    trainCfg,
		bucket:      mapper,
		regrets:     NewRegretTable(),
		rng:         rand.New(rand.NewSource(seed)),
		playerNames: names,
		rngSeed:     seed,
	}
	if trainCfg.AdaptiveRaiseVisits > 0 {
		trainer.adaptiveState = make(map[string]*adaptiveInfo)
	}
	return trainer, nil
}

// Run executes the requested number of external-sampling MCCFR iterations,
// checkpointing and reporting progress at the configured intervals.
func (t *Trainer) Run(ctx context.Context, progress func(Progress)) error {
	pLog := t.trainCfg.Iterations / 100
	if pLog == 0 {
		pLog = 1
	}
	progressEvery := pLog
	if cfg := t.trainCfg.ProgressEvery; cfg > 0 {
		progressEvery = cfg
	}

	batchSize := t.trainCfg.BatchSize
	if batchSize <= 0 {
		batchSize = max(t.trainCfg.ParallelTables, 1)
	}

	for int(t.iteration.Load()) < t.trainCfg.Iterations {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		prev := int(t.iteration.Load())
		size := batchSize
		if remaining := t.trainCfg.Iterations - prev; size > remaining {
			size = remaining
		}

		startBatch := time.Now()
		stats, err := t.runBatch(size)
		if err != nil {
			return err
		}
		stats.IterationTime = time.Since(startBatch)
		t.setStats(stats)
		iter := int(t.iteration.Add(int64(size)))

		if t.trainCfg.UseDCFR && crossedBoundary(prev, iter, t.trainCfg.DiscountInterval) {
			t.regrets.Discount(iter)
		}

		if t.checkpointPath != "" && crossedBoundary(prev, iter, t.checkpointEvery) {
			if err := t.SaveCheckpoint(t.checkpointPath); err != nil {
				return err
			}
		}

		if progress != nil && crossedBoundary(prev, iter, progressEvery) {
			progress(Progress{Iteration: iter, RegretTableSize: t.regrets.Size(), Stats: stats})
		}
	}

	if progress != nil {
		iter := int(t.iteration.Load())
		progress(Progress{Iteration: iter, RegretTableSize: t.regrets.Size(), Stats: t.Stats()})
	}

	if t.checkpointPath != "" && t.checkpointEvery > 0 {
		if err := t.SaveCheckpoint(t.checkpointPath); err != nil {
			return err
		}
	}
	return nil
}

// crossedBoundary reports whether advancing the iteration counter from prev
// to cur crossed a multiple of interval, so a batch that jumps by more than
// one iteration at a time still fires periodic work (checkpoint, progress,
// discount) on schedule instead of only on an exact modulo hit.
func crossedBoundary(prev, cur, interval int) bool {
	if interval <= 0 {
		return false
	}
	return cur/interval > prev/interval
}

// Blueprint materialises the averaged strategy produced by training so far.
func (t *Trainer) Blueprint() *Blueprint {
	entries := t.regrets.Entries()
	strategies := make(map[string][]float64, len(entries))
	for key, entry := range entries {
		strategies[key] = entry.AverageStrategy()
	}
	return &Blueprint{
		Version:     blueprintFileVersion,
		GeneratedAt: time.Now().UTC(),
		Iterations:  int(t.iteration.Load()),
		Abstraction: t.absCfg,
		Strategies:  strategies,
	}
}

// workerTimeoutMinSeconds and workerTimeoutMultiplier bound the batch join
// timeout: max(workerTimeoutMinSeconds, iterationsPerWorker *
// workerTimeoutMultiplier) seconds, grounded on
// WORKER_TIMEOUT_MIN_SECONDS/WORKER_TIMEOUT_MULTIPLIER in
// parallel_solver.py.
const (
	workerTimeoutMinSeconds = 300
	workerTimeoutMultiplier = 10
)

// runBatch executes size MCCFR iterations split across the trainer's
// parallel tables. No intra-process goroutine shares the regret/strategy
// store: each worker owns its own empty RegretTable for its slice of the
// batch's iteration range and reports it back once finished; the batch
// merges worker stores into the master table by element-wise sum (the
// Merge contract), in worker-id order, only after every worker has
// completed. Discounting, checkpointing and progress reporting are driver
// post-steps applied to the master table once the merge lands, never
// inside a worker. A batch that fails (a worker error or the join timeout
// elapsing) is abandoned and retried once with fresh seeds before the
// error is returned to the caller.
func (t *Trainer) runBatch(size int) (TraversalStats, error) {
	if size <= 0 {
		return TraversalStats{}, nil
	}

	stats, err := t.runBatchOnce(size)
	if err != nil {
		stats, err = t.runBatchOnce(size)
	}
	return stats, err
}

func (t *Trainer) runBatchOnce(size int) (TraversalStats, error) {
	workers := max(t.trainCfg.ParallelTables, 1)
	if workers > size {
		workers = size
	}
	iterationsPerWorker := size / workers
	extra := size % workers

	timeoutSeconds := iterationsPerWorker * workerTimeoutMultiplier
	if timeoutSeconds < workerTimeoutMinSeconds {
		timeoutSeconds = workerTimeoutMinSeconds
	}
	joinCtx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	type tableSeeds struct {
		deck   int64
		sample int64
		button int
	}

	total := size
	seeds := make([]tableSeeds, total)
	for i := range seeds {
		seeds[i].deck = t.rng.Int63()
		t.rngInt63++
		seeds[i].sample = t.rng.Int63()
		t.rngInt63++
		seeds[i].button = t.rng.Intn(t.trainCfg.Players)
		t.rngIntn++
	}

	batchStart := int(t.iteration.Load())
	tables := make([]*RegretTable, workers)
	statsSlice := make([]TraversalStats, workers)

	err := parallel.Run(joinCtx, workers, func(gctx context.Context, w int) error {
		local := NewRegretTable()
		tables[w] = local

		base := w * iterationsPerWorker
		count := iterationsPerWorker
		if w < extra {
			base += w
			count++
		} else {
			base += extra
		}
		for li := 0; li < count; li++ {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("worker %d: batch join timed out: %w", w, err)
			}
			seed := seeds[base+li]
			globalIter := batchStart + base + li + 1

			ctx := &iterationContext{
				trainer:     t,
				table:       local,
				deckSeed:    seed.deck,
				button:      seed.button,
				playerNames: t.playerNames,
				stats:       &statsSlice[w],
				sampler:     rand.New(rand.NewSource(seed.sample)),
				fastRNG:     PCG32{state: uint64(seed.deck)*2 + 1}, // Initialize embedded RNG
				updateOpts: RegretUpdateOptions{
					ClampNegativeRegrets: t.trainCfg.UseCFRPlus,
					LinearAveraging:      t.trainCfg.UseDCFR,
					Iteration:            globalIter,
				},
			}

			for player := 0; player < t.trainCfg.Players; player++ {
				if _, err := t.traverse(ctx, nil, player, 0, 1.0, 1.0); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return TraversalStats{}, err
	}

	for _, local := range tables {
		t.regrets.Merge(local)
	}

	aggregated := TraversalStats{}
	for i := 0; i < workers; i++ {
		aggregated.NodesVisited += statsSlice[i].NodesVisited
		aggregated.TerminalNodes += statsSlice[i].TerminalNodes
		if statsSlice[i].MaxDepth > aggregated.MaxDepth {
			aggregated.MaxDepth = statsSlice[i].MaxDepth
		}
	}

	return aggregated, nil
}

func (t *Trainer) setStats(stats TraversalStats) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	t.stats = stats
}

// Stats returns the most recent traversal statistics recorded by the trainer.
func (t *Trainer) Stats() TraversalStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

func (t *Trainer) AdaptiveStats() (int, int) {
	if t.adaptiveState == nil {
		return 0, 0
	}
	t.adaptiveMu.Lock()
	defer t.adaptiveMu.Unlock()
	expanded := 0
	tracked := 0
	for _, info := range t.adaptiveState {
		tracked++
		if info.expanded {
			expanded++
		}
	}
	return expanded, tracked
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (t *Trainer) TrainingConfig() TrainingConfig {
	return t.trainCfg
}

func (t *Trainer) Iteration() int64 {
	return t.iteration.Load()
}

func (t *Trainer) SetTotalIterations(n int) error {
	current := int(t.iteration.Load())
	if n < current {
		return fmt.Errorf("total iterations %d less than completed %d", n, current)
	}
	t.trainCfg.Iterations = n
	return nil
}

func (t *Trainer) raisesEnabled() bool {
	if !t.trainCfg.EnableRaises || !t.absCfg.EnableRaises {
		return false
	}
	return len(t.absCfg.BetSizing) > 0
}

func (t *Trainer) SetRaisesEnabled(enabled bool) {
	t.trainCfg.EnableRaises = enabled
}

func (t *Trainer) SetProgressEvery(n int) {
	if n < 0 {
		n = 0
	}
	t.trainCfg.ProgressEvery = n
}

func (t *Trainer) shouldExpandRaises(key InfoSetKey) bool {
	if t.trainCfg.AdaptiveRaiseVisits <= 0 {
		return false
	}
	if t.adaptiveState == nil {
		return false
	}
	ks := key.String()
	t.adaptiveMu.Lock()
	info, ok := t.adaptiveState[ks]
	t.adaptiveMu.Unlock()
	return ok && info.expanded
}

func (t *Trainer) recordVisit(key InfoSetKey) {
	if t.trainCfg.AdaptiveRaiseVisits <= 0 {
		return
	}
	ks := key.String()
	t.adaptiveMu.Lock()
	defer t.adaptiveMu.Unlock()
	if t.adaptiveState == nil {
		t.adaptiveState = make(map[string]*adaptiveInfo)
	}
	info := t.adaptiveState[ks]
	if info == nil {
		info = &adaptiveInfo{}
		t.adaptiveState[ks] = info
	}
	info.visits++
	if !info.expanded && info.visits >= int64(t.trainCfg.AdaptiveRaiseVisits) {
		info.expanded = true
	}
}
