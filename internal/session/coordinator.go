package session

import (
	"context"
	"log"
	"sync"

	"audiotest/internal/router"
	"audiotest/internal/websocket"
	"audiotest/pkg/interfaces"
	"audiotest/pkg/types"
)

// Coordinator owns the session state machine and applies instructor commands
// to it, fanning the resulting events out through the router.
//
// ARCHITECTURAL DISCOVERY: every mutating entry point holds the one mutex, so
// all session-mutating operations are totally ordered no matter how many
// connections feed commands in concurrently. Broadcast fan-out happens inside
// the critical section but each individual send is non-blocking, so a stalled
// recipient can never delay a state transition.
type Coordinator struct {
	registry *websocket.Registry
	router   *router.Router
	store    interfaces.TestStore

	mu    sync.Mutex
	state State
}

// NewCoordinator creates a coordinator in the Idle state. store may be nil
// when test-definition persistence is disabled.
func NewCoordinator(registry *websocket.Registry, router *router.Router, store interfaces.TestStore) *Coordinator {
	return &Coordinator{
		registry: registry,
		router:   router,
		store:    store,
		state:    Idle(),
	}
}

// StartTest begins a test at question 0. Accepted from any state: a running
// test is discarded without further notice. The definition is persisted
// through the TestStore collaborator; persistence failure is logged, never
// fatal to the session.
func (c *Coordinator) StartTest(test *types.Test) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = c.state.Start(test)

	if c.store != nil {
		if err := c.store.PersistTest(context.Background(), test); err != nil {
			log.Printf("Failed to persist test %s: %v", test.ID, err)
		}
	}

	log.Printf("Test started: id=%s name=%s questions=%d", test.ID, test.Name, len(test.Questions))

	c.router.SendToRole(types.RoleStudent, types.NewTestStart(test, c.state.Index()))
	c.router.SendToRole(types.RoleInstructor, types.NewTestStarted(test, c.state.Index()))
}

// NextQuestion advances the active test by one question. A safe no-op while
// idle. Advancing past the last question performs the stop effect instead.
func (c *Coordinator) NextQuestion() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Running() {
		return
	}

	next, ended := c.state.Advance()
	c.state = next

	if ended {
		log.Printf("Test ended: advanced past last question")
		c.router.SendToAll(types.NewTestEnd())
		return
	}

	log.Printf("Question started: index=%d", c.state.Index())

	c.router.SendToRole(types.RoleStudent, types.NewQuestionStart(c.state.Index()))
	c.router.SendToRole(types.RoleInstructor, types.NewQuestionStarted(c.state.Index()))
}

// SubmitAnswer records a participant's answer and notifies instructors of the
// graded result. Submissions while idle are discarded without acknowledgement.
//
// Grading compares against the question active at submission time: a late
// answer that arrives after next-question is graded against the new current
// question, not the one it was presumably meant for. Preserved protocol
// behavior; see the coordinator tests pinning it down.
func (c *Coordinator) SubmitAnswer(clientID string, answer types.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	question, ok := c.state.Question()
	if !ok {
		log.Printf("Discarding answer from %s: no test active", clientID)
		return
	}

	if !c.registry.AppendAnswer(clientID, answer) {
		log.Printf("Discarding answer from %s: not registered", clientID)
		return
	}

	graded := types.GradedAnswer{
		Answer:    answer,
		IsCorrect: answer.Option == question.CorrectOption,
	}

	log.Printf("Answer submitted: student=%s question=%d correct=%t", clientID, answer.QuestionID, graded.IsCorrect)

	c.router.SendToRole(types.RoleInstructor, types.NewAnswerSubmitted(clientID, graded))
}

// StopTest clears the session state and announces test-end to everyone.
// Idempotent in state: stopping twice broadcasts twice but changes nothing
// after the first call.
func (c *Coordinator) StopTest() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = c.state.Stop()

	log.Printf("Test stopped")

	c.router.SendToAll(types.NewTestEnd())
}

// ClientConnected admits a connection into the registry and plays the accept
// protocol: identity acknowledgement, join notification to instructors, and
// a catch-up snapshot when a participant joins mid-test.
func (c *Coordinator) ClientConnected(client *websocket.Client) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.Register(client); err != nil {
		return err
	}

	switch client.Role() {
	case types.RoleInstructor:
		c.router.SendTo(client.ID(), types.NewTeacherConnected(client.ID()))

	case types.RoleStudent:
		c.router.SendTo(client.ID(), types.NewStudentID(client.ID()))
		c.router.SendToRole(types.RoleInstructor, types.NewStudentConnected(client.ID()))

		// Late joiners observe the in-progress state instead of missing it.
		if c.state.Running() {
			c.router.SendTo(client.ID(), types.NewTestCatchUp(c.state.Test(), c.state.Index()))
		}
	}

	return nil
}

// ClientDisconnected removes the connection record, answer history included,
// and tells instructors when a participant leaves. Instructor departures are
// not announced.
func (c *Coordinator) ClientDisconnected(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, exists := c.registry.Lookup(clientID)
	if !exists {
		return
	}

	c.registry.Unregister(clientID)

	if client.Role() == types.RoleStudent {
		c.router.SendToRole(types.RoleInstructor, types.NewStudentDisconnected(clientID))
	}
}

// Snapshot is a read-only view of the session for monitoring surfaces.
type Snapshot struct {
	Running       bool   `json:"running"`
	TestID        string `json:"testId,omitempty"`
	TestName      string `json:"testName,omitempty"`
	QuestionIndex int    `json:"questionIndex"`
	QuestionCount int    `json:"questionCount"`
}

// Snapshot returns the current session state for the HTTP API.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := Snapshot{
		Running:       c.state.Running(),
		QuestionIndex: c.state.Index(),
	}
	if test := c.state.Test(); test != nil {
		snapshot.TestID = test.ID
		snapshot.TestName = test.Name
		snapshot.QuestionCount = len(test.Questions)
	}
	return snapshot
}
