package engine

import "fmt"

// Phase is the lifecycle state of one invocation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTriggered
	PhaseRequesting
	PhaseSucceeded
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseIdle:       "idle",
	PhaseTriggered:  "triggered",
	PhaseRequesting: "requesting",
	PhaseSucceeded:  "succeeded",
	PhaseFailed:     "failed",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether no further transition is allowed.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// transitions lists the legal successor phases.
var transitions = map[Phase][]Phase{
	PhaseIdle:       {PhaseTriggered},
	PhaseTriggered:  {PhaseRequesting},
	PhaseRequesting: {PhaseSucceeded, PhaseFailed},
}

// phaseMachine tracks one invocation's phase. It is owned by a single
// lifecycle goroutine and needs no locking.
type phaseMachine struct {
	operationID  string
	invocationID string
	phase        Phase
}

// advance moves to next or reports an illegal transition.
func (m *phaseMachine) advance(next Phase) error {
	for _, allowed := range transitions[m.phase] {
		if allowed == next {
			m.phase = next
			return nil
		}
	}
	return &RuntimeError{
		Code:         ErrCodeIllegalTransition,
		Message:      fmt.Sprintf("cannot move from %s to %s", m.phase, next),
		OperationID:  m.operationID,
		InvocationID: m.invocationID,
	}
}
