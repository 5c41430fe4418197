package ipd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayoff(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Action
		ra    int
		rb    int
	}{
		{"mutual cooperation", Cooperate, Cooperate, 3, 3},
		{"exploit", Defect, Cooperate, 5, 0},
		{"exploited", Cooperate, Defect, 0, 5},
		{"mutual defection", Defect, Defect, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ra, rb := Payoff(tt.a, tt.b)
			assert.Equal(t, tt.ra, ra)
			assert.Equal(t, tt.rb, rb)
		})
	}
}

func TestRun_ConstantPolicies(t *testing.T) {
	res, err := Run(Constant(Cooperate), Constant(Cooperate), Rounds)
	require.NoError(t, err)
	assert.Len(t, res.Steps, Rounds)
	assert.Equal(t, 3*Rounds, res.CumA)
	assert.Equal(t, 3*Rounds, res.CumB)

	res, err = Run(Constant(Defect), Constant(Cooperate), Rounds)
	require.NoError(t, err)
	assert.Equal(t, 5*Rounds, res.CumA)
	assert.Equal(t, 0, res.CumB)
}

func TestRun_HistoryIsPerSide(t *testing.T) {
	// Tit-for-tat against always-defect: cooperates once, then mirrors.
	res, err := Run(TitForTat(), Constant(Defect), 10)
	require.NoError(t, err)

	require.Len(t, res.Steps, 10)
	assert.Equal(t, Cooperate, res.Steps[0].ActA)
	for _, s := range res.Steps[1:] {
		assert.Equal(t, Defect, s.ActA, "round %d", s.Round)
	}

	// A's observation history rows are [own, opp]; B sees the mirror.
	last := res.Steps[9]
	require.Len(t, last.ObsA.History, 9)
	assert.Equal(t, HistoryEntry{Cooperate, Defect}, last.ObsA.History[0])
	assert.Equal(t, HistoryEntry{Defect, Cooperate}, last.ObsB.History[0])
}

func TestRun_CumulativeScoresMatchSteps(t *testing.T) {
	res, err := Run(TitForTat(), Grudger(), 50)
	require.NoError(t, err)

	cumA, cumB := 0, 0
	for _, s := range res.Steps {
		cumA += s.RewardA
		cumB += s.RewardB
		assert.Equal(t, cumA, s.CumA)
		assert.Equal(t, cumB, s.CumB)
	}
	assert.Equal(t, cumA, res.CumA)
	assert.Equal(t, cumB, res.CumB)
}

func TestRun_InvalidAction(t *testing.T) {
	bad := func(_ Observation, state State) (Action, State, error) {
		return Action("X"), state, nil
	}
	_, err := Run(bad, Constant(Cooperate), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid action")
}

func TestRandom_Deterministic(t *testing.T) {
	a, err := Run(Random(42), Constant(Cooperate), Rounds)
	require.NoError(t, err)
	b, err := Run(Random(42), Constant(Cooperate), Rounds)
	require.NoError(t, err)
	assert.Equal(t, a.CumA, b.CumA)
	assert.Equal(t, a.CumB, b.CumB)
}
