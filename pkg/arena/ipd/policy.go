package ipd

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// ErrUnsupportedCode is returned when bot code is not expressible in the
// restricted policy language the arena accepts.
var ErrUnsupportedCode = errors.New("unsupported bot code")

// The constant form the arena accepts: an optional python-style function
// header followed by exactly one statement, a return of a constant action.
var (
	funcHeader     = regexp.MustCompile(`^def\s+\w+\s*\(.*\)\s*:$`)
	constantReturn = regexp.MustCompile(`^return\s+['"]([CD])['"](\s*,\s*state)?$`)
)

// Compile turns bot source code into a runnable Policy.
//
// The accepted language is deliberately tiny: either the whole (trimmed) code
// is the name of a built-in strategy, or it is a function whose entire body
// is a single constant-action return. Anything with more statements than
// that, branching included, fails to compile rather than silently running the
// wrong policy; the failure surfaces to the user as a runner error. The
// signature keeps the seam where a real sandboxed interpreter would plug in.
func Compile(code string, seed int64) (Policy, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty code", ErrUnsupportedCode)
	}

	if p, ok := builtin(trimmed, seed); ok {
		return p, nil
	}

	if act, ok := constantBody(trimmed); ok {
		return Constant(act), nil
	}

	return nil, fmt.Errorf("%w: not a known strategy or a single constant return", ErrUnsupportedCode)
}

// constantBody matches code whose sole statement returns a constant action.
// Blank and comment lines are ignored, a leading function header may wrap the
// return. A body with any other statement does not match, no matter what its
// returns look like.
func constantBody(code string) (Action, bool) {
	var stmts []string
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stmts = append(stmts, line)
	}
	if len(stmts) == 2 && funcHeader.MatchString(stmts[0]) {
		stmts = stmts[1:]
	}
	if len(stmts) != 1 {
		return "", false
	}
	m := constantReturn.FindStringSubmatch(stmts[0])
	if m == nil {
		return "", false
	}
	return Action(m[1]), true
}

// Constant returns a policy that always plays act.
func Constant(act Action) Policy {
	return func(_ Observation, state State) (Action, State, error) {
		return act, state, nil
	}
}

// TitForTat cooperates first, then mirrors the opponent's previous move.
func TitForTat() Policy {
	return func(obs Observation, state State) (Action, State, error) {
		if len(obs.History) == 0 {
			return Cooperate, state, nil
		}
		return obs.History[len(obs.History)-1][1], state, nil
	}
}

// Grudger cooperates until the opponent defects once, then defects forever.
func Grudger() Policy {
	return func(obs Observation, state State) (Action, State, error) {
		if state == nil {
			state = State{}
		}
		if hold, _ := state["grudge"].(bool); hold {
			return Defect, state, nil
		}
		if n := len(obs.History); n > 0 && obs.History[n-1][1] == Defect {
			state["grudge"] = true
			return Defect, state, nil
		}
		return Cooperate, state, nil
	}
}

// Random plays uniformly at random from a seeded source, so a given seed
// replays identically.
func Random(seed int64) Policy {
	rng := rand.New(rand.NewSource(seed))
	return func(_ Observation, state State) (Action, State, error) {
		if rng.Intn(2) == 0 {
			return Cooperate, state, nil
		}
		return Defect, state, nil
	}
}

func builtin(name string, seed int64) (Policy, bool) {
	switch name {
	case "always_cooperate":
		return Constant(Cooperate), true
	case "always_defect":
		return Constant(Defect), true
	case "tit_for_tat":
		return TitForTat(), true
	case "grudger":
		return Grudger(), true
	case "random":
		return Random(seed), true
	}
	return nil, false
}
