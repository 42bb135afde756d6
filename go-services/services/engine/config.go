package engine

// Run manifest for reproducibility

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const EngineVersion = "1.0.0"

type RunManifest struct {
	JobID         string   `json:"job_id"`
	StrategyHash  string   `json:"strategy_hash"`
	EngineVersion string   `json:"engine_version"`
	Timeframe     string   `json:"timeframe"`
	Symbols       []string `json:"symbols"`
	GridPoints    int      `json:"grid_points"`
	CreatedAt     uint64   `json:"created_at"`
}

// StrategyHash is the sha256 of the strategy's JSON encoding. Two runs with
// equal hashes over the same data produce equal rows.
func StrategyHash(s Strategy) string {
	b, _ := json.Marshal(s)
	return fmt.Sprintf("%x", sha256.Sum256(b))
}

func NewManifest(s Strategy, symbols []string) *RunManifest {
	grid := 1
	if s.Sweep != nil {
		if g, err := Grid(s.Sweep.Min, s.Sweep.Max, s.Sweep.Step); err == nil {
			grid = len(g)
		}
	}
	return &RunManifest{
		JobID:         uuid.New().String(),
		StrategyHash:  StrategyHash(s),
		EngineVersion: EngineVersion,
		Timeframe:     s.Timeframe,
		Symbols:       append([]string(nil), symbols...),
		GridPoints:    grid,
		CreatedAt:     uint64(time.Now().UnixMilli()),
	}
}
