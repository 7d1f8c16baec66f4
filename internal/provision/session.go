// Package provision drives the guided server-creation conversation:
// one short-lived session per user, advanced step by step until the two
// panel calls run and the outcome is reported.
package provision

import "time"

// Step identifies which input the session is waiting for.
type Step string

const (
	StepEmail      Step = "email"
	StepUsername   Step = "username"
	StepPassword   Step = "password"
	StepProcessing Step = "processing"
)

// Session is the in-progress conversation state for one user. It exists
// from type selection until the terminal step resolves, and is only
// ever touched under that user's lock.
type Session struct {
	UserID    string
	Step      Step
	TypeKey   string
	AttemptID string // correlates log lines across the two panel calls

	Email    string
	Username string
	Password string

	UpdatedAt time.Time
}

// Prompt is one message for the adapter to render.
type Prompt struct {
	Title  string
	Body   string
	Footer string
	Retry  bool // a validation reprompt, not a step transition
}

// Result is the final summary of one provisioning attempt.
type Result struct {
	OK          bool
	TypeName    string
	ServerName  string
	MemoryMB    int
	Identifier  string
	ErrorDetail string
}
