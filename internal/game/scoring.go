package game

import "time"

// SharedAnswers counts the positions where both players picked the same
// option. Positions both players left unanswered count as a match. With
// sequences of different length only the overlapping prefix is compared.
func SharedAnswers(yours, opponents []string) int {
	n := len(yours)
	if len(opponents) < n {
		n = len(opponents)
	}
	shared := 0
	for i := 0; i < n; i++ {
		if yours[i] == opponents[i] {
			shared++
		}
	}
	return shared
}

// NextStageGate is the product-policy check in front of a next-stage invite:
// a short cool-down after the results appear, and a minimum compatibility
// score. It is a plain predicate; callers check it before SendInvite.
type NextStageGate struct {
	Cooldown         time.Duration
	MinCompatibility int
}

// DefaultNextStageGate mirrors the shipped client: 5s cool-down, 40%.
func DefaultNextStageGate() NextStageGate {
	return NextStageGate{Cooldown: 5 * time.Second, MinCompatibility: 40}
}

// Allowed reports whether a next-stage invite may be sent, given the
// server-computed compatibility and the time elapsed since the results were
// shown. The final stage has no next stage.
func (g NextStageGate) Allowed(stage, compatibility int, sinceResults time.Duration) bool {
	if stage >= MaxStage {
		return false
	}
	return sinceResults >= g.Cooldown && compatibility >= g.MinCompatibility
}
