// Command student is a headless participant for exercising a running server:
// it connects, follows the test as questions advance, logs the audio it would
// play, and can optionally auto-submit an answer per question.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"audiotest/pkg/client"
	"audiotest/pkg/interfaces"
	"audiotest/pkg/types"
)

// logPlayer satisfies the audio collaborator by narrating playback instead of
// producing sound.
type logPlayer struct{}

func (logPlayer) PlayAudio(path string) error {
	log.Printf("Playing audio: %s", path)
	return nil
}

func (logPlayer) StopAudio() error {
	log.Println("Audio stopped")
	return nil
}

// participant tracks the test as seen from one student connection.
type participant struct {
	client *client.Client
	player interfaces.AudioPlayer

	autoAnswer bool
	answerWith string

	mu    sync.Mutex
	id    string
	test  *types.Test
	index int
	start time.Time
}

func (p *participant) onStudentID(event client.Event) {
	var identity types.IdentityEvent
	if err := event.Decode(&identity); err != nil {
		log.Printf("Bad student-id event: %v", err)
		return
	}

	p.mu.Lock()
	p.id = identity.ID
	p.mu.Unlock()

	log.Printf("Assigned student id: %s", identity.ID)
}

func (p *participant) onTestStart(event client.Event) {
	var payload types.TestStartEvent
	if err := event.Decode(&payload); err != nil {
		log.Printf("Bad test-start event: %v", err)
		return
	}

	// A live start carries questionIndex; a mid-test catch-up carries
	// currentQuestion instead.
	index := 0
	switch {
	case payload.QuestionIndex != nil:
		index = *payload.QuestionIndex
	case payload.CurrentQuestion != nil:
		index = *payload.CurrentQuestion
		log.Printf("Joined mid-test at question %d", index)
	}

	p.mu.Lock()
	p.test = payload.Test
	p.index = index
	p.start = time.Now()
	p.mu.Unlock()

	log.Printf("Test started: %s (%d questions)", payload.Test.Name, len(payload.Test.Questions))
	p.presentQuestion(index)
}

func (p *participant) onQuestionStart(event client.Event) {
	var payload types.QuestionEvent
	if err := event.Decode(&payload); err != nil {
		log.Printf("Bad question-start event: %v", err)
		return
	}

	p.mu.Lock()
	p.index = payload.QuestionIndex
	p.start = time.Now()
	p.mu.Unlock()

	p.presentQuestion(payload.QuestionIndex)
}

func (p *participant) onTestEnd(client.Event) {
	p.mu.Lock()
	p.test = nil
	p.mu.Unlock()

	_ = p.player.StopAudio()
	log.Println("Test ended")
}

func (p *participant) presentQuestion(index int) {
	p.mu.Lock()
	test := p.test
	start := p.start
	p.mu.Unlock()

	if test == nil || index < 0 || index >= len(test.Questions) {
		return
	}
	question := test.Questions[index]

	log.Printf("Question %d of %d", index+1, len(test.Questions))
	if question.AudioFile != "" {
		if err := p.player.PlayAudio(question.AudioFile); err != nil {
			log.Printf("Audio playback failed: %v", err)
		}
	}

	if p.autoAnswer {
		answer := types.Answer{
			QuestionID: question.ID,
			Option:     p.answerWith,
			Timestamp:  time.Now().UnixMilli(),
			StartTime:  start.UnixMilli(),
		}
		command := map[string]interface{}{
			"type":   types.MessageTypeSubmitAnswer,
			"answer": answer,
		}
		if err := p.client.Send(command); err != nil {
			log.Printf("Failed to submit answer: %v", err)
		} else {
			log.Printf("Submitted answer %q for question %d", p.answerWith, question.ID)
		}
	}
}

func (p *participant) onConnectionStatus(event client.Event) {
	var status client.ConnectionStatus
	if err := event.Decode(&status); err != nil {
		return
	}

	switch status.Status {
	case client.StatusConnected:
		log.Println("Connected to server")
	case client.StatusDisconnected:
		log.Println("Connection lost, retrying...")
	case client.StatusFailed:
		log.Println("Could not reach server, giving up")
	}
}

func main() {
	_ = godotenv.Load()

	defaultURL := os.Getenv("AUDIOTEST_SERVER_URL")
	if defaultURL == "" {
		defaultURL = "ws://localhost:8080/ws"
	}

	serverURL := flag.String("server", defaultURL, "WebSocket URL of the audiotest server")
	autoAnswer := flag.Bool("auto-answer", false, "submit an answer automatically for every question")
	answerWith := flag.String("answer", "A", "option submitted in auto-answer mode")
	retryDelay := flag.Duration("retry-delay", 3*time.Second, "delay between reconnect attempts")
	maxAttempts := flag.Int("max-attempts", 5, "reconnect attempts before giving up")
	flag.Parse()

	c := client.New(*serverURL, client.Options{
		RetryDelay:  *retryDelay,
		MaxAttempts: *maxAttempts,
	})

	p := &participant{
		client:     c,
		player:     logPlayer{},
		autoAnswer: *autoAnswer,
		answerWith: *answerWith,
	}

	c.On(types.MessageTypeStudentID, p.onStudentID)
	c.On(types.MessageTypeTestStart, p.onTestStart)
	c.On(types.MessageTypeQuestionStart, p.onQuestionStart)
	c.On(types.MessageTypeTestEnd, p.onTestEnd)
	c.On(client.EventConnectionStatus, p.onConnectionStatus)

	log.Printf("Connecting to %s", *serverURL)
	if err := c.Connect(); err != nil {
		// The client keeps retrying in the background; only log here.
		log.Printf("Initial connection failed: %v", err)
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signalCh

	fmt.Println()
	log.Printf("Received signal %v, disconnecting", sig)
	if err := c.Close(); err != nil {
		log.Printf("Close error: %v", err)
	}
}
