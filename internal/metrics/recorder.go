// Package metrics records lifecycle metrics for operations.
package metrics

import "time"

// Outcome labels for finished invocations.
const (
	OutcomeSuccess = "success"
	OutcomeFail    = "fail"
	OutcomeFatal   = "fatal"
)

// Recorder defines the interface for recording lifecycle metrics.
type Recorder interface {
	// InvocationStarted marks an invocation as in flight.
	InvocationStarted(operation string)

	// InvocationFinished records the outcome and duration of an invocation
	// and clears its in-flight mark.
	InvocationFinished(operation, outcome string, duration time.Duration)

	// EventApplied counts a lifecycle event folded into state.
	EventApplied(kind string)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// InvocationStarted does nothing in the no-op recorder.
func (n *NoopRecorder) InvocationStarted(_ string) {}

// InvocationFinished does nothing in the no-op recorder.
func (n *NoopRecorder) InvocationFinished(_, _ string, _ time.Duration) {}

// EventApplied does nothing in the no-op recorder.
func (n *NoopRecorder) EventApplied(_ string) {}
