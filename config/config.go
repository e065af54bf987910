// Package config loads the solver's deep configuration structs (abstraction,
// training, bucketing) from HCL files, the same decode pattern the original
// server/client tooling used for its own table and bot configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/pokersolver/sdk/solver"
)

// File is the top-level decode target for a solver HCL config file.
type File struct {
	Abstraction *AbstractionBlock `hcl:"abstraction,block"`
	Training    *TrainingBlock    `hcl:"training,block"`
	Bucket      *BucketBlock      `hcl:"bucket,block"`
}

// AbstractionBlock mirrors solver.AbstractionConfig.
type AbstractionBlock struct {
	PreflopBuckets     int       `hcl:"preflop_buckets,optional"`
	PostflopBuckets    int       `hcl:"postflop_buckets,optional"`
	BetSizing          []float64 `hcl:"bet_sizing,optional"`
	OOPBetSizing       []float64 `hcl:"oop_bet_sizing,optional"`
	MaxActionsPerNode  int       `hcl:"max_actions_per_node,optional"`
	EnableRaises       bool      `hcl:"enable_raises,optional"`
	MaxRaisesPerBucket int       `hcl:"max_raises_per_bucket,optional"`
}

// TrainingBlock mirrors solver.TrainingConfig.
type TrainingBlock struct {
	Iterations          int    `hcl:"iterations,optional"`
	Players             int    `hcl:"players,optional"`
	Seed                int64  `hcl:"seed,optional"`
	ParallelTables      int    `hcl:"parallel_tables,optional"`
	CheckpointEveryMins int    `hcl:"checkpoint_every_mins,optional"`
	ProgressEvery       int    `hcl:"progress_every,optional"`
	SmallBlind          int    `hcl:"small_blind,optional"`
	BigBlind            int    `hcl:"big_blind,optional"`
	StartingStack       int    `hcl:"starting_stack,optional"`
	AdaptiveRaiseVisits int    `hcl:"adaptive_raise_visits,optional"`
	UseCFRPlus          bool   `hcl:"use_cfr_plus,optional"`
	UseDCFR             bool   `hcl:"use_dcfr,optional"`
	Sampling            string `hcl:"sampling,optional"`
	BatchSize           int    `hcl:"batch_size,optional"`
	DiscountInterval    int    `hcl:"discount_interval,optional"`
}

// BucketBlock configures the hole/board bucket mapper's coarseness; it has
// no abstraction-independent fields beyond what AbstractionBlock already
// names, and exists so a config file can separate "how finely we bucket"
// from "how finely we abstract actions" the way the teacher separates table
// and bot blocks.
type BucketBlock struct {
	HoleBuckets  int `hcl:"hole_buckets,optional"`
	BoardBuckets int `hcl:"board_buckets,optional"`
}

// Load reads and decodes an HCL config file. A missing file is not an
// error: callers get solver defaults back, matching the teacher's
// LoadServerConfig behavior of falling back to DefaultServerConfig when the
// file does not exist.
func Load(filename string) (*File, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return &File{}, nil
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse HCL file: %s", diags.Error())
	}

	var f File
	diags = gohcl.DecodeBody(hclFile.Body, nil, &f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decode HCL: %s", diags.Error())
	}
	return &f, nil
}

// Abstraction merges the decoded block over the supplied base, leaving any
// zero-valued fields in the file untouched so CLI-set defaults survive a
// config file that only overrides a few knobs. enable_raises is the
// exception: it is always copied from a present block, so a block that
// omits it turns raises off.
func (f *File) Abstraction(base solver.AbstractionConfig) solver.AbstractionConfig {
	if f == nil || f.Abstraction == nil {
		return base
	}
	b := f.Abstraction
	out := base
	if b.PreflopBuckets > 0 {
		out.PreflopBucketCount = b.PreflopBuckets
	}
	if b.PostflopBuckets > 0 {
		out.PostflopBucketCount = b.PostflopBuckets
	}
	if len(b.BetSizing) > 0 {
		out.BetSizing = b.BetSizing
	}
	if len(b.OOPBetSizing) > 0 {
		out.OOPBetSizing = b.OOPBetSizing
	}
	if b.MaxActionsPerNode > 0 {
		out.MaxActionsPerNode = b.MaxActionsPerNode
	}
	out.EnableRaises = b.EnableRaises
	if b.MaxRaisesPerBucket > 0 {
		out.MaxRaisesPerBucket = b.MaxRaisesPerBucket
	}
	return out
}

// Training merges the decoded block over the supplied base the same way
// Abstraction does. Its booleans (use_cfr_plus, use_dcfr) are likewise
// always copied, so an omitted one is false, and an empty sampling value
// selects external.
func (f *File) Training(base solver.TrainingConfig) (solver.TrainingConfig, error) {
	if f == nil || f.Training == nil {
		return base, nil
	}
	b := f.Training
	out := base
	if b.Iterations > 0 {
		out.Iterations = b.Iterations
	}
	if b.Players > 0 {
		out.Players = b.Players
	}
	if b.Seed != 0 {
		out.Seed = b.Seed
	}
	if b.ParallelTables > 0 {
		out.ParallelTables = b.ParallelTables
	}
	if b.CheckpointEveryMins > 0 {
		out.CheckpointEvery = time.Duration(b.CheckpointEveryMins) * time.Minute
	}
	if b.ProgressEvery > 0 {
		out.ProgressEvery = b.ProgressEvery
	}
	if b.SmallBlind > 0 {
		out.SmallBlind = b.SmallBlind
	}
	if b.BigBlind > 0 {
		out.BigBlind = b.BigBlind
	}
	if b.StartingStack > 0 {
		out.StartingStack = b.StartingStack
	}
	if b.AdaptiveRaiseVisits > 0 {
		out.AdaptiveRaiseVisits = b.AdaptiveRaiseVisits
	}
	out.UseCFRPlus = b.UseCFRPlus
	out.UseDCFR = b.UseDCFR
	if b.BatchSize > 0 {
		out.BatchSize = b.BatchSize
	}
	if b.DiscountInterval > 0 {
		out.DiscountInterval = b.DiscountInterval
	}
	switch b.Sampling {
	case "", "external":
		out.Sampling = solver.SamplingModeExternal
	case "full":
		out.Sampling = solver.SamplingModeFullTraversal
	default:
		return out, fmt.Errorf("unknown sampling mode %q in config", b.Sampling)
	}
	return out, nil
}
