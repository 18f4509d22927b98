package core

import "time"

type State string

const (
	StateIdle         State = "idle"
	StatePlanning     State = "planning"
	StateRetrieving   State = "retrieving"
	StateValidating   State = "validating"
	StateRefining     State = "refining"
	StateAbstracting  State = "abstracting"
	StateSynthesizing State = "synthesizing"
	StateAugmenting   State = "augmenting"
	StateSummarizing  State = "summarizing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Transition is one entry of a run's audit trace.
type Transition struct {
	From State         `json:"from"`
	To   State         `json:"to"`
	At   time.Time     `json:"at"`
	Took time.Duration `json:"took"`
	Note string        `json:"note,omitempty"`
}

// Progress is reported to the caller on every state change.
type Progress struct {
	RunID   string
	State   State
	Message string
}

type Result struct {
	RunID          string        `json:"run_id"`
	SessionID      string        `json:"session_id"`
	Query          string        `json:"query"`
	Answer         string        `json:"answer"`
	Reasoning      string        `json:"reasoning,omitempty"`
	DisplayContent string        `json:"display_content"`
	MemoryContent  string        `json:"memory_content"`
	Citations      []Citation    `json:"citations"`
	Plan           SearchPlan    `json:"plan"`
	Trace          []Transition  `json:"trace"`
	Record         MemoryRecord  `json:"-"`
	Elapsed        time.Duration `json:"elapsed"`
}
