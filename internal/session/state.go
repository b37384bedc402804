// Package session owns the single shared test/question state and the
// transition logic triggered by instructor commands.
package session

import "audiotest/pkg/types"

// NoQuestion is the question index while no test is active.
const NoQuestion = -1

// State is the session's finite-state-machine value: Idle (no test, index
// -1) or Running (test assigned, 0 <= index < len(questions)). Transitions
// are pure; the Coordinator applies them and emits the resulting events.
//
// Invariant: index == NoQuestion exactly when test == nil.
type State struct {
	test  *types.Test
	index int
}

// Idle returns the no-test state.
func Idle() State {
	return State{index: NoQuestion}
}

// Running reports whether a test is active.
func (s State) Running() bool {
	return s.test != nil
}

// Test returns the active test definition, or nil when idle.
func (s State) Test() *types.Test {
	return s.test
}

// Index returns the current question index, NoQuestion when idle.
func (s State) Index() int {
	return s.index
}

// Question returns the currently active question. The second return is false
// when no test is running.
func (s State) Question() (types.Question, bool) {
	if !s.Running() {
		return types.Question{}, false
	}
	return s.test.Questions[s.index], true
}

// Start unconditionally resets to the first question of the given test.
// Starting over a running test discards it; the only notification anyone
// receives of the discard is the new test-start event.
func (s State) Start(test *types.Test) State {
	return State{test: test, index: 0}
}

// Advance moves to the next question. Advancing past the last question ends
// the test instead of leaving range: the returned state is Idle and ended is
// true. This is the defined over-run policy, not an error.
func (s State) Advance() (next State, ended bool) {
	if !s.Running() {
		return s, false
	}
	index := s.index + 1
	if index >= len(s.test.Questions) {
		return Idle(), true
	}
	return State{test: s.test, index: index}, false
}

// Stop returns to Idle. Stopping an idle state is a no-op by value.
func (s State) Stop() State {
	return Idle()
}
