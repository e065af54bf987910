package solver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/lox/pokersolver/internal/fileutil"
)

const blueprintFileVersion = 1

// Blueprint captures the averaged strategies produced by a solver run so that
// runtime bots can sample actions without rerunning CFR.
type Blueprint struct {
	Version     int                  `json:"version"`
	GeneratedAt time.Time            `json:"generated_at"`
	Iterations  int                  `json:"iterations"`
	Abstraction AbstractionConfig    `json:"abstraction"`
	Strategies  map[string][]float64 `json:"strategies"`
}

// Save writes the blueprint to disk in JSON format, atomically, and writes a
// "<path>.sha256" sidecar containing the SHA-256 of the serialized bytes so
// callers can detect truncated or mismatched blueprint files before loading
// them into a solver run.
func (b *Blueprint) Save(path string) error {
	if b == nil {
		return errors.New("nil blueprint")
	}
	if path == "" {
		return errors.New("destination path is required")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return err
	}
	data := buf.Bytes()

	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return err
	}

	sum := sha256.Sum256(data)
	sidecar := []byte(hex.EncodeToString(sum[:]) + "  " + path + "\n")
	return fileutil.WriteFileAtomic(path+".sha256", sidecar, 0o644)
}

// LoadBlueprint reads a blueprint from disk and ensures the abstraction metadata
// is present for runtime compatibility checks.
func LoadBlueprint(path string) (*Blueprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bp Blueprint
	if err := json.NewDecoder(f).Decode(&bp); err != nil {
		return nil, err
	}
	if err := bp.Abstraction.Validate(); err != nil {
		return nil, err
	}
	if bp.Version != blueprintFileVersion {
		return nil, errors.New("unsupported blueprint version")
	}
	return &bp, nil
}

// Strategy returns the stored average strategy for the provided info-set key.
func (b *Blueprint) Strategy(key InfoSetKey) ([]float64, bool) {
	if b == nil {
		return nil, false
	}
	strat, ok := b.Strategies[key.String()]
	return strat, ok
}
