package ai

import (
	"context"
	"fmt"
)

// Assistants is the thread/run backend. It knows nothing about bot types or
// HTTP callers.
type Assistants interface {
	CreateThread(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, threadID, text string) error
	StartRun(ctx context.Context, threadID, assistantID, instructions string) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	// ListMessages returns the thread's messages newest-first.
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}

// Run is the locally observed state of a backend run.
type Run struct {
	ID     string
	Status string
}

// Message is one thread message reduced to its text segments.
type Message struct {
	Role  string // "user" | "assistant"
	Texts []string
}

const (
	StepCreateThread = "create_thread"
	StepPostMessage  = "post_message"
	StepStartRun     = "start_run"
	StepGetRun       = "get_run"
	StepListMessages = "list_messages"
)

// CallError is returned by every Assistants method on failure. StatusCode is
// zero when no HTTP response was received.
type CallError struct {
	Step       string
	StatusCode int
	Body       string
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("ai: %s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("ai: %s failed: %d %s", e.Step, e.StatusCode, e.Body)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
