// Package ipd implements the iterated prisoner's dilemma environment used by
// the arena: the payoff matrix, per-round observations, and a deterministic
// in-process match runner.
package ipd

import (
	"fmt"
	"time"
)

// Action is one move in a round: cooperate or defect.
type Action string

const (
	Cooperate Action = "C"
	Defect    Action = "D"
)

// Rounds is the fixed match length.
const Rounds = 200

// EnvID identifies this environment in bot and match records.
const EnvID = "ipd"

// BaselineOpponent is the fixed reference policy used for private test runs.
const BaselineOpponent = "always_cooperate"

// Valid reports whether x is a legal action.
func Valid(x Action) bool {
	return x == Cooperate || x == Defect
}

// Payoff returns the rewards for one round given both actions.
// Standard IPD payoff matrix.
func Payoff(a, b Action) (int, int) {
	switch {
	case a == Cooperate && b == Cooperate:
		return 3, 3
	case a == Defect && b == Cooperate:
		return 5, 0
	case a == Cooperate && b == Defect:
		return 0, 5
	default:
		return 1, 1
	}
}

// HistoryEntry records one past round from a single side's point of view:
// [my action, opponent action].
type HistoryEntry [2]Action

// Observation is what a policy sees at the start of a round. History is
// normalized per side, so both players observe their own moves first.
type Observation struct {
	Round     int            `json:"round"`
	MaxRounds int            `json:"max_rounds"`
	History   []HistoryEntry `json:"history"`
}

// State is the opaque per-bot state threaded between rounds.
type State map[string]any

// Policy decides an action given the current observation and the state
// returned from the previous round.
type Policy func(obs Observation, state State) (Action, State, error)

// Step is one completed round.
type Step struct {
	Round   int           `json:"round"`
	ObsA    Observation   `json:"obs_a"`
	ActA    Action        `json:"act_a"`
	ObsB    Observation   `json:"obs_b"`
	ActB    Action        `json:"act_b"`
	RewardA int           `json:"reward_a"`
	RewardB int           `json:"reward_b"`
	CumA    int           `json:"cum_a"`
	CumB    int           `json:"cum_b"`
}

// Result is a completed match.
type Result struct {
	Steps []Step
	CumA  int
	CumB  int
	ExecA time.Duration
	ExecB time.Duration
}

// Run plays policyA against policyB for the given number of rounds and
// returns the full step record. A policy error or invalid action aborts the
// match.
func Run(policyA, policyB Policy, rounds int) (*Result, error) {
	if rounds <= 0 {
		rounds = Rounds
	}

	var (
		histA  []HistoryEntry
		histB  []HistoryEntry
		stateA = State{}
		stateB = State{}
		res    = &Result{}
	)

	for r := 1; r <= rounds; r++ {
		obsA := Observation{Round: r, MaxRounds: rounds, History: append([]HistoryEntry(nil), histA...)}
		obsB := Observation{Round: r, MaxRounds: rounds, History: append([]HistoryEntry(nil), histB...)}

		startA := time.Now()
		actA, nextA, err := policyA(obsA, stateA)
		res.ExecA += time.Since(startA)
		if err != nil {
			return nil, fmt.Errorf("policy a: round %d: %w", r, err)
		}

		startB := time.Now()
		actB, nextB, err := policyB(obsB, stateB)
		res.ExecB += time.Since(startB)
		if err != nil {
			return nil, fmt.Errorf("policy b: round %d: %w", r, err)
		}

		if !Valid(actA) || !Valid(actB) {
			return nil, fmt.Errorf("round %d: invalid action (a=%q b=%q)", r, actA, actB)
		}

		stateA, stateB = nextA, nextB
		if stateA == nil {
			stateA = State{}
		}
		if stateB == nil {
			stateB = State{}
		}

		ra, rb := Payoff(actA, actB)
		res.CumA += ra
		res.CumB += rb

		res.Steps = append(res.Steps, Step{
			Round:   r,
			ObsA:    obsA,
			ActA:    actA,
			ObsB:    obsB,
			ActB:    actB,
			RewardA: ra,
			RewardB: rb,
			CumA:    res.CumA,
			CumB:    res.CumB,
		})

		histA = append(histA, HistoryEntry{actA, actB})
		histB = append(histB, HistoryEntry{actB, actA})
	}

	return res, nil
}
