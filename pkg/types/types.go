package types

// Role is a connection's fixed capability class, derived once at accept time
// from the connection request and never changed afterwards.
type Role string

const (
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// IsValid reports whether the role is one of the two known capability classes.
func (r Role) IsValid() bool {
	return r == RoleInstructor || r == RoleStudent
}

// Test is the immutable test definition supplied by the instructor.
// The coordinator never mutates a Test after start-test.
type Test struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Question is one entry of a test. AudioFile is presentation data played
// locally by each endpoint; the coordinator only reads CorrectOption.
type Question struct {
	ID            int    `json:"id"`
	AudioFile     string `json:"audioFile,omitempty"`
	CorrectOption string `json:"correctOption"`
}

// Answer is a participant's submission for one question. Timestamp and
// StartTime are millisecond epoch values recorded by the submitting endpoint.
type Answer struct {
	QuestionID int    `json:"questionId"`
	Option     string `json:"option"`
	Timestamp  int64  `json:"timestamp"`
	StartTime  int64  `json:"startTime"`
}

// GradedAnswer is an Answer plus the correctness verdict the coordinator
// derives at submission time against the question active at that moment.
type GradedAnswer struct {
	Answer
	IsCorrect bool `json:"isCorrect"`
}

// Student is the display record instructors receive when a participant joins.
type Student struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Participant status values surfaced to instructors.
const (
	StudentStatusWaiting   = "waiting"
	StudentStatusAnswering = "answering"
	StudentStatusAnswered  = "answered"
)

// Validate checks that a test definition can actually be run. A test without
// questions has no valid question index, so it is rejected before start.
func (t *Test) Validate() error {
	if t == nil || t.ID == "" {
		return ErrInvalidTest
	}
	if len(t.Questions) == 0 {
		return ErrEmptyTest
	}
	return nil
}
