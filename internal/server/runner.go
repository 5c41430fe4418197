package server

import (
	"fmt"

	"github.com/botarena/arena/pkg/arena/ipd"
)

// Runner executes one isolated match between two bot code blobs. The engine
// runner below compiles the restricted policy language in-process; a
// container-sandboxed runner would implement the same interface.
type Runner interface {
	Run(botACode, botBCode string, seed int64) (*ipd.Result, error)
}

// EngineRunner runs matches with the in-process IPD engine.
type EngineRunner struct {
	rounds int
}

// NewEngineRunner creates a runner playing full-length matches.
func NewEngineRunner() *EngineRunner {
	return &EngineRunner{rounds: ipd.Rounds}
}

// Run compiles both policies and plays them against each other.
func (r *EngineRunner) Run(botACode, botBCode string, seed int64) (*ipd.Result, error) {
	policyA, err := ipd.Compile(botACode, seed)
	if err != nil {
		return nil, fmt.Errorf("bot a: %w", err)
	}
	policyB, err := ipd.Compile(botBCode, seed+1)
	if err != nil {
		return nil, fmt.Errorf("bot b: %w", err)
	}
	return ipd.Run(policyA, policyB, r.rounds)
}
