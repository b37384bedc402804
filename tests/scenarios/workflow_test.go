// End-to-end scenarios driving a full in-process server through real
// WebSocket clients.
package scenarios

import (
	"testing"
	"time"

	"audiotest/pkg/types"
	"audiotest/tests/fixtures"
)

func TestTwoQuestionWorkflow(t *testing.T) {
	server := fixtures.StartServer(t)

	teacher, teacherRec := fixtures.ConnectTeacher(t, server)
	student1, student1Rec, student1ID := fixtures.ConnectStudent(t, server)
	_, student2Rec, _ := fixtures.ConnectStudent(t, server)

	// The instructor observed both joins.
	teacherRec.WaitFor(t, types.MessageTypeStudentConnected, 2)

	// Start the test: participants get the definition, the instructor an ack.
	if err := teacher.Send(fixtures.StartTestCommand(fixtures.TwoQuestionTest())); err != nil {
		t.Fatalf("Failed to send start-test: %v", err)
	}

	startEvent := student1Rec.WaitFor(t, types.MessageTypeTestStart, 1)
	var start types.TestStartEvent
	if err := startEvent.Decode(&start); err != nil {
		t.Fatalf("Failed to decode test-start: %v", err)
	}
	if start.Test == nil || len(start.Test.Questions) != 2 {
		t.Fatalf("Expected full two-question definition, got %+v", start.Test)
	}
	if start.QuestionIndex == nil || *start.QuestionIndex != 0 {
		t.Fatalf("Expected questionIndex 0, got %v", start.QuestionIndex)
	}
	student2Rec.WaitFor(t, types.MessageTypeTestStart, 1)
	teacherRec.WaitFor(t, types.MessageTypeTestStarted, 1)

	// Student 1 answers question 1 correctly.
	if err := student1.Send(fixtures.SubmitAnswerCommand(types.Answer{
		QuestionID: 1, Option: "A", Timestamp: time.Now().UnixMilli(),
	})); err != nil {
		t.Fatalf("Failed to submit answer: %v", err)
	}

	answerEvent := teacherRec.WaitFor(t, types.MessageTypeAnswerSubmitted, 1)
	var submitted types.AnswerSubmittedEvent
	if err := answerEvent.Decode(&submitted); err != nil {
		t.Fatalf("Failed to decode answer-submitted: %v", err)
	}
	if submitted.StudentID != student1ID {
		t.Errorf("Expected answer attributed to %s, got %s", student1ID, submitted.StudentID)
	}
	if !submitted.Answer.IsCorrect {
		t.Error("Expected first answer graded correct")
	}

	// Participants never see each other's answers.
	student2Rec.ExpectNone(t, types.MessageTypeAnswerSubmitted)

	// Advance to question 2.
	if err := teacher.Send(map[string]interface{}{"type": types.MessageTypeNextQuestion}); err != nil {
		t.Fatalf("Failed to send next-question: %v", err)
	}
	questionEvent := student1Rec.WaitFor(t, types.MessageTypeQuestionStart, 1)
	var question types.QuestionEvent
	if err := questionEvent.Decode(&question); err != nil {
		t.Fatalf("Failed to decode question-start: %v", err)
	}
	if question.QuestionIndex != 1 {
		t.Errorf("Expected question index 1, got %d", question.QuestionIndex)
	}

	// Advancing past the last question ends the test for everyone.
	if err := teacher.Send(map[string]interface{}{"type": types.MessageTypeNextQuestion}); err != nil {
		t.Fatalf("Failed to send final next-question: %v", err)
	}
	student1Rec.WaitFor(t, types.MessageTypeTestEnd, 1)
	student2Rec.WaitFor(t, types.MessageTypeTestEnd, 1)
	teacherRec.WaitFor(t, types.MessageTypeTestEnd, 1)

	if server.Coordinator.Snapshot().Running {
		t.Error("Expected idle session after test end")
	}
}

func TestLateJoinerCatchesUp(t *testing.T) {
	server := fixtures.StartServer(t)

	teacher, teacherRec := fixtures.ConnectTeacher(t, server)
	_, studentRec, _ := fixtures.ConnectStudent(t, server)

	if err := teacher.Send(fixtures.StartTestCommand(fixtures.TwoQuestionTest())); err != nil {
		t.Fatalf("Failed to send start-test: %v", err)
	}
	studentRec.WaitFor(t, types.MessageTypeTestStart, 1)

	if err := teacher.Send(map[string]interface{}{"type": types.MessageTypeNextQuestion}); err != nil {
		t.Fatalf("Failed to send next-question: %v", err)
	}
	studentRec.WaitFor(t, types.MessageTypeQuestionStart, 1)

	// A participant joining mid-test receives the definition plus the current
	// position, flagged as a catch-up rather than a live start.
	_, lateRec, _ := fixtures.ConnectStudent(t, server)
	catchUpEvent := lateRec.WaitFor(t, types.MessageTypeTestStart, 1)

	var catchUp types.TestStartEvent
	if err := catchUpEvent.Decode(&catchUp); err != nil {
		t.Fatalf("Failed to decode catch-up: %v", err)
	}
	if catchUp.Test == nil || catchUp.Test.ID != "listening-1" {
		t.Errorf("Expected full definition in catch-up, got %+v", catchUp.Test)
	}
	if catchUp.CurrentQuestion == nil || *catchUp.CurrentQuestion != 1 {
		t.Errorf("Expected currentQuestion 1, got %v", catchUp.CurrentQuestion)
	}
	if catchUp.QuestionIndex != nil {
		t.Error("Catch-up must carry currentQuestion, not questionIndex")
	}

	teacherRec.WaitFor(t, types.MessageTypeStudentConnected, 2)
}

func TestStudentDisconnectNotifiesTeacher(t *testing.T) {
	server := fixtures.StartServer(t)

	_, teacherRec := fixtures.ConnectTeacher(t, server)
	student, _, studentID := fixtures.ConnectStudent(t, server)

	teacherRec.WaitFor(t, types.MessageTypeStudentConnected, 1)

	student.Close()

	leftEvent := teacherRec.WaitFor(t, types.MessageTypeStudentDisconnected, 1)
	var left types.StudentDisconnectedEvent
	if err := leftEvent.Decode(&left); err != nil {
		t.Fatalf("Failed to decode student-disconnected: %v", err)
	}
	if left.StudentID != studentID {
		t.Errorf("Expected disconnect for %s, got %s", studentID, left.StudentID)
	}
}

func TestStudentCommandsIgnored(t *testing.T) {
	server := fixtures.StartServer(t)

	_, teacherRec := fixtures.ConnectTeacher(t, server)
	student, studentRec, _ := fixtures.ConnectStudent(t, server)

	// A participant trying to start a test gets silently ignored.
	if err := student.Send(fixtures.StartTestCommand(fixtures.TwoQuestionTest())); err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}

	studentRec.ExpectNone(t, types.MessageTypeTestStart)
	teacherRec.ExpectNone(t, types.MessageTypeTestStarted)

	if server.Coordinator.Snapshot().Running {
		t.Error("Expected session to stay idle")
	}
}

func TestStopTestEndsForEveryone(t *testing.T) {
	server := fixtures.StartServer(t)

	teacher, teacherRec := fixtures.ConnectTeacher(t, server)
	_, studentRec, _ := fixtures.ConnectStudent(t, server)

	if err := teacher.Send(fixtures.StartTestCommand(fixtures.TwoQuestionTest())); err != nil {
		t.Fatalf("Failed to send start-test: %v", err)
	}
	studentRec.WaitFor(t, types.MessageTypeTestStart, 1)

	if err := teacher.Send(map[string]interface{}{"type": types.MessageTypeStopTest}); err != nil {
		t.Fatalf("Failed to send stop-test: %v", err)
	}

	studentRec.WaitFor(t, types.MessageTypeTestEnd, 1)
	teacherRec.WaitFor(t, types.MessageTypeTestEnd, 1)

	if server.Coordinator.Snapshot().Running {
		t.Error("Expected idle session after stop")
	}
}
