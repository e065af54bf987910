// Package coordinator drives long MCCFR training runs across process
// boundaries: the chunked coordinator releases a process's entire heap
// between chunks by checkpointing and exiting, and the multi-instance
// coordinator fans a run out across sibling processes with their own
// iteration ranges. Neither holds any regret/strategy state beyond one
// chunk or one instance launch; persistence is entirely file-based.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/pokersolver/sdk/solver"
)

// ChunkedConfig describes one chunk of a chunked training run. The caller
// re-invokes the process with the same config after each chunk; progress
// persists entirely through CheckpointDir, so a fresh process picks up
// exactly where the last one left off.
type ChunkedConfig struct {
	CheckpointDir string

	// ChunkIterations bounds a chunk by iteration count; zero disables the
	// bound. At least one of ChunkIterations/ChunkDuration must be set.
	ChunkIterations int

	// ChunkDuration bounds a chunk by wall-clock time; zero disables the
	// bound.
	ChunkDuration time.Duration

	// Abstraction/Training seed a fresh trainer when CheckpointDir has no
	// usable checkpoint yet. Ignored once a checkpoint is found.
	Abstraction solver.AbstractionConfig
	Training    solver.TrainingConfig

	Logger zerolog.Logger
}

func (c ChunkedConfig) validate() error {
	if c.CheckpointDir == "" {
		return fmt.Errorf("checkpoint dir is required")
	}
	if c.ChunkIterations <= 0 && c.ChunkDuration <= 0 {
		return fmt.Errorf("must set chunk iterations or chunk duration")
	}
	return nil
}

// ChunkResult reports what a single RunChunk call accomplished.
type ChunkResult struct {
	StartIteration int
	EndIteration   int
	Complete       bool // true once the trainer's total Iterations target is reached
	CheckpointPath string
}

const checkpointFilePrefix = "checkpoint_"
const checkpointFileSuffix = ".json"

// RunChunk loads the latest checkpoint in CheckpointDir (or starts a fresh
// trainer if none exists), trains until the chunk's iteration or time bound
// is hit, writes a new checkpoint, and returns — grounded on
// chunked_coordinator.py's run/_run_chunk split, minus the TensorBoard and
// multiprocessing-restart machinery that package handled for a
// single-process CPython worker. The caller is expected to call RunChunk
// once per process invocation and exit afterward (os.Exit outside this
// function, so deferred cleanup in the caller's main still runs) so the OS
// reclaims the heap the chunk built up.
func RunChunk(ctx context.Context, cfg ChunkedConfig) (ChunkResult, error) {
	if err := cfg.validate(); err != nil {
		return ChunkResult{}, err
	}
	if err := os.MkdirAll(cfg.CheckpointDir, 0o755); err != nil {
		return ChunkResult{}, fmt.Errorf("create checkpoint dir: %w", err)
	}

	latest, err := FindLatestCheckpoint(cfg.CheckpointDir)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("find latest checkpoint: %w", err)
	}

	var trainer *solver.Trainer
	if latest != "" {
		cfg.Logger.Info().Str("checkpoint", latest).Msg("resuming chunked training from checkpoint")
		trainer, err = solver.LoadTrainerFromCheckpoint(latest)
		if err != nil {
			return ChunkResult{}, fmt.Errorf("load checkpoint %s: %w", latest, err)
		}
	} else {
		cfg.Logger.Info().Msg("starting fresh chunked training (no checkpoint found)")
		trainer, err = solver.NewTrainer(cfg.Abstraction, cfg.Training)
		if err != nil {
			return ChunkResult{}, fmt.Errorf("new trainer: %w", err)
		}
	}

	startIteration := int(trainer.Iteration())
	totalTarget := trainer.TrainingConfig().Iterations

	chunkTarget := totalTarget
	if cfg.ChunkIterations > 0 {
		boundary := startIteration + cfg.ChunkIterations
		if boundary < chunkTarget {
			chunkTarget = boundary
		}
	}
	if chunkTarget != totalTarget {
		if err := trainer.SetTotalIterations(chunkTarget); err != nil {
			return ChunkResult{}, fmt.Errorf("bound chunk target: %w", err)
		}
	}

	runCtx := ctx
	if cfg.ChunkDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.ChunkDuration)
		defer cancel()
	}

	cfg.Logger.Info().Int("start_iteration", startIteration).Int("chunk_target", chunkTarget).Msg("running chunk")

	progress := func(p solver.Progress) {
		cfg.Logger.Debug().Int("iteration", p.Iteration).Int("infosets", p.RegretTableSize).Msg("chunk progress")
	}

	runErr := trainer.Run(runCtx, progress)
	if chunkTarget != totalTarget {
		// Put the run's total target back so the checkpoint below resumes
		// toward it rather than toward this chunk's boundary.
		if err := trainer.SetTotalIterations(totalTarget); err != nil {
			return ChunkResult{}, fmt.Errorf("restore total target: %w", err)
		}
	}
	if runErr != nil && !errors.Is(runErr, context.DeadlineExceeded) {
		// A hard error (not a chunk-duration timeout) still gets a
		// checkpoint written before it propagates, matching the
		// original's "save checkpoint on error, then re-raise" behavior.
		if _, saveErr := saveChunkCheckpoint(cfg.CheckpointDir, trainer); saveErr != nil {
			cfg.Logger.Error().Err(saveErr).Msg("failed to save checkpoint after chunk error")
		}
		return ChunkResult{}, fmt.Errorf("run chunk: %w", runErr)
	}

	path, err := saveChunkCheckpoint(cfg.CheckpointDir, trainer)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("save chunk checkpoint: %w", err)
	}

	endIteration := int(trainer.Iteration())
	complete := endIteration >= totalTarget
	if complete {
		cfg.Logger.Info().Int("final_iteration", endIteration).Msg("chunked training complete")
	} else {
		cfg.Logger.Info().Int("iteration", endIteration).Msg("chunk complete; process should now exit to free memory")
	}

	return ChunkResult{
		StartIteration: startIteration,
		EndIteration:   endIteration,
		Complete:       complete,
		CheckpointPath: path,
	}, nil
}

func saveChunkCheckpoint(dir string, trainer *solver.Trainer) (string, error) {
	name := fmt.Sprintf("%s%010d%s", checkpointFilePrefix, trainer.Iteration(), checkpointFileSuffix)
	path := filepath.Join(dir, name)
	if err := trainer.SaveCheckpoint(path); err != nil {
		return "", err
	}
	return path, nil
}

// FindLatestCheckpoint returns the checkpoint file in dir with the highest
// embedded iteration number, skipping any file that fails to decode as a
// checkpoint (a torn write from a crashed prior process, for instance).
// Returns "" if dir has no usable checkpoint, matching
// chunked_coordinator.py's _find_latest_checkpoint returning None.
func FindLatestCheckpoint(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	type candidate struct {
		path string
		iter int
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, checkpointFilePrefix) || !strings.HasSuffix(name, checkpointFileSuffix) {
			continue
		}
		numeric := strings.TrimSuffix(strings.TrimPrefix(name, checkpointFilePrefix), checkpointFileSuffix)
		iter, err := strconv.Atoi(numeric)
		if err != nil {
			continue
		}
		path := filepath.Join(dir, name)
		if !checkpointIsComplete(path) {
			continue
		}
		candidates = append(candidates, candidate{path: path, iter: iter})
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].iter > candidates[j].iter })
	return candidates[0].path, nil
}

// checkpointIsComplete reports whether path loads as a valid trainer
// checkpoint. It is intentionally a full decode rather than a cheap
// existence/size check, since a torn write can produce a file of plausible
// size that still fails to parse.
func checkpointIsComplete(path string) bool {
	trainer, err := solver.LoadTrainerFromCheckpoint(path)
	return err == nil && trainer != nil
}
