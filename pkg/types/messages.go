package types

import (
	"encoding/json"
	"fmt"
)

// Message type discriminators, exactly as they appear on the wire.
// Every frame in either direction carries one of these in its "type" field.
const (
	MessageTypeTeacherConnected    = "teacher-connected"
	MessageTypeStudentID           = "student-id"
	MessageTypeStudentConnected    = "student-connected"
	MessageTypeStudentDisconnected = "student-disconnected"
	MessageTypeStartTest           = "start-test"
	MessageTypeTestStart           = "test-start"
	MessageTypeTestStarted         = "test-started"
	MessageTypeNextQuestion        = "next-question"
	MessageTypeQuestionStart       = "question-start"
	MessageTypeQuestionStarted     = "question-started"
	MessageTypeSubmitAnswer        = "submit-answer"
	MessageTypeAnswerSubmitted     = "answer-submitted"
	MessageTypeStopTest            = "stop-test"
	MessageTypeTestEnd             = "test-end"
)

// Server-to-client events. One struct per wire message so payload shapes are
// fixed at compile time instead of living in open-ended maps.

// IdentityEvent is the post-accept identity acknowledgement. The type field
// distinguishes instructor (teacher-connected) from participant (student-id).
type IdentityEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// NewTeacherConnected builds the instructor identity acknowledgement.
func NewTeacherConnected(id string) IdentityEvent {
	return IdentityEvent{Type: MessageTypeTeacherConnected, ID: id}
}

// NewStudentID builds the participant identity acknowledgement.
func NewStudentID(id string) IdentityEvent {
	return IdentityEvent{Type: MessageTypeStudentID, ID: id}
}

// StudentConnectedEvent notifies instructors that a participant joined.
type StudentConnectedEvent struct {
	Type      string  `json:"type"`
	StudentID string  `json:"studentId"`
	Student   Student `json:"student"`
}

// NewStudentConnected builds the join notification with a generated display
// label, since participants carry no self-reported name.
func NewStudentConnected(id string) StudentConnectedEvent {
	return StudentConnectedEvent{
		Type:      MessageTypeStudentConnected,
		StudentID: id,
		Student: Student{
			ID:     id,
			Name:   fmt.Sprintf("Student %s", id),
			Status: StudentStatusWaiting,
		},
	}
}

// StudentDisconnectedEvent notifies instructors that a participant left.
type StudentDisconnectedEvent struct {
	Type      string `json:"type"`
	StudentID string `json:"studentId"`
}

// NewStudentDisconnected builds the leave notification.
func NewStudentDisconnected(id string) StudentDisconnectedEvent {
	return StudentDisconnectedEvent{Type: MessageTypeStudentDisconnected, StudentID: id}
}

// TestStartEvent carries the full test definition to participants. A live
// broadcast sets questionIndex; the late-join catch-up variant sets
// currentQuestion instead. The asymmetry is part of the wire protocol.
type TestStartEvent struct {
	Type            string `json:"type"`
	Test            *Test  `json:"test"`
	QuestionIndex   *int   `json:"questionIndex,omitempty"`
	CurrentQuestion *int   `json:"currentQuestion,omitempty"`
}

// NewTestStart builds the broadcast sent to every participant when a test begins.
func NewTestStart(t *Test, index int) TestStartEvent {
	return TestStartEvent{Type: MessageTypeTestStart, Test: t, QuestionIndex: &index}
}

// NewTestCatchUp builds the snapshot sent to a participant that joins while a
// test is already running.
func NewTestCatchUp(t *Test, index int) TestStartEvent {
	return TestStartEvent{Type: MessageTypeTestStart, Test: t, CurrentQuestion: &index}
}

// TestStartedEvent acknowledges a start-test command to instructors.
type TestStartedEvent struct {
	Type          string `json:"type"`
	Test          *Test  `json:"test"`
	QuestionIndex int    `json:"questionIndex"`
}

// NewTestStarted builds the instructor-side start acknowledgement.
func NewTestStarted(t *Test, index int) TestStartedEvent {
	return TestStartedEvent{Type: MessageTypeTestStarted, Test: t, QuestionIndex: index}
}

// QuestionEvent announces an advance. Participants already hold the full test
// from test-start, so only the new index travels.
type QuestionEvent struct {
	Type          string `json:"type"`
	QuestionIndex int    `json:"questionIndex"`
}

// NewQuestionStart builds the participant-side advance announcement.
func NewQuestionStart(index int) QuestionEvent {
	return QuestionEvent{Type: MessageTypeQuestionStart, QuestionIndex: index}
}

// NewQuestionStarted builds the instructor-side advance acknowledgement.
func NewQuestionStarted(index int) QuestionEvent {
	return QuestionEvent{Type: MessageTypeQuestionStarted, QuestionIndex: index}
}

// AnswerSubmittedEvent carries a graded answer to instructors.
type AnswerSubmittedEvent struct {
	Type      string       `json:"type"`
	StudentID string       `json:"studentId"`
	Answer    GradedAnswer `json:"answer"`
}

// NewAnswerSubmitted builds the graded-answer notification.
func NewAnswerSubmitted(studentID string, answer GradedAnswer) AnswerSubmittedEvent {
	return AnswerSubmittedEvent{Type: MessageTypeAnswerSubmitted, StudentID: studentID, Answer: answer}
}

// TestEndEvent announces the end of the active test to all connections.
type TestEndEvent struct {
	Type string `json:"type"`
}

// NewTestEnd builds the end-of-test broadcast.
func NewTestEnd() TestEndEvent {
	return TestEndEvent{Type: MessageTypeTestEnd}
}

// Client-to-server commands form a tagged union keyed by the type field.
// DecodeCommand is the single entry point; adding a message type means adding
// a variant here and a case in every switch over Command, which the compiler
// will point out.

// Command is one decoded client-to-server message.
type Command interface {
	// CommandType returns the wire discriminator of the command.
	CommandType() string
}

// StartTestCommand begins a test with the attached definition.
type StartTestCommand struct {
	Test *Test
}

// NextQuestionCommand advances the active test by one question.
type NextQuestionCommand struct{}

// SubmitAnswerCommand records a participant's answer for grading.
type SubmitAnswerCommand struct {
	Answer Answer
}

// StopTestCommand ends the active test.
type StopTestCommand struct{}

func (c *StartTestCommand) CommandType() string    { return MessageTypeStartTest }
func (c *NextQuestionCommand) CommandType() string { return MessageTypeNextQuestion }
func (c *SubmitAnswerCommand) CommandType() string { return MessageTypeSubmitAnswer }
func (c *StopTestCommand) CommandType() string     { return MessageTypeStopTest }

// DecodeCommand parses an inbound frame into its typed command variant.
// Two-step decode: peek the discriminator, then unmarshal the type-specific
// payload. Callers treat every returned error as drop-and-log; a bad frame
// never closes the connection.
func DecodeCommand(data []byte) (Command, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch probe.Type {
	case MessageTypeStartTest:
		var payload struct {
			Test *Test `json:"test"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if err := payload.Test.Validate(); err != nil {
			return nil, err
		}
		return &StartTestCommand{Test: payload.Test}, nil

	case MessageTypeNextQuestion:
		return &NextQuestionCommand{}, nil

	case MessageTypeSubmitAnswer:
		var payload struct {
			Answer *Answer `json:"answer"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if payload.Answer == nil {
			return nil, fmt.Errorf("%w: submit-answer without answer payload", ErrMalformedFrame)
		}
		return &SubmitAnswerCommand{Answer: *payload.Answer}, nil

	case MessageTypeStopTest:
		return &StopTestCommand{}, nil

	case "":
		return nil, ErrMissingMessageType

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, probe.Type)
	}
}
