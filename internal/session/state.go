// Package session implements the interview turn-taking state machine and
// the runtime that drives it.
//
// The design is a reducer: all session state lives in a single [State]
// value, and every external stimulus — an inbound backend message, a user
// action, a timer, a finished utterance — is an [Event] fed through the
// pure transition function [Apply]. Apply returns the next state plus a
// list of [Effect] commands (send a message, speak, start capturing, arm a
// timer) that the [Runtime] executes. The runtime is the only goroutine
// that touches the state, which gives the single-threaded cooperative
// model its ordering guarantees without locks.
package session

import (
	"time"

	"github.com/prepwell/intervox/internal/transcript"
)

// Phase is the interview turn-taking phase.
type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseConnecting   Phase = "connecting"
	PhaseIdle         Phase = "idle"
	PhaseListening    Phase = "listening"
	PhaseThinking     Phase = "thinking"
	PhaseSpeaking     Phase = "speaking"
	PhaseEnding       Phase = "ending"
	PhaseCompleted    Phase = "completed"
)

// busy reports whether the phase represents an in-flight turn that an
// inbound error should clear back to idle.
func (p Phase) busy() bool {
	return p == PhaseListening || p == PhaseThinking || p == PhaseSpeaking
}

// Mode selects the interview flavor.
type Mode string

const (
	ModeResume    Mode = "resume"
	ModeTechnical Mode = "technical"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	return m == ModeResume || m == ModeTechnical
}

// EntryKind tags a conversation log entry by author.
type EntryKind string

const (
	EntryQuestion EntryKind = "Q"
	EntryAnswer   EntryKind = "You"
	EntryHint     EntryKind = "Hint"
	EntryFeedback EntryKind = "Feedback"
	EntryNotice   EntryKind = "MSG"
)

// Entry is one conversation log line. Entries are append-only and never
// mutated after insertion; insertion order is chronological.
type Entry struct {
	Kind EntryKind
	Text string
	At   time.Time
}

// State is the complete session state. It is a value type: Apply copies it,
// mutates the copy, and returns it, so historical states stay intact.
//
// LastAIQuestion is maintained explicitly — it is updated in the same
// transition that appends the AI-authored log entry, never re-derived by
// scanning the log, so it can never go stale against the history.
type State struct {
	SessionID string
	Mode      Mode
	Phase     Phase
	StartedAt time.Time

	// Conversation.
	Log            []Entry
	LastAIQuestion string

	// Current question.
	CurrentQuestion   string
	QuestionKind      transcript.QuestionKind
	CodeEditorOpen    bool
	QuestionStartedAt time.Time

	// Technical-mode progress.
	HintsUsed         int
	ApproachDiscussed bool

	// Outcome.
	FinalScore      float64
	DownloadURL     string
	ReconnectFailed bool
}

// NewState returns the initial state for an interview in the given mode.
func NewState(mode Mode, now time.Time) State {
	return State{
		Mode:      mode,
		Phase:     PhaseDisconnected,
		StartedAt: now,
	}
}

// appendEntry returns s with a log entry added. For AI-authored question
// entries the LastAIQuestion field is updated in the same step.
func (s State) appendEntry(kind EntryKind, text string, now time.Time) State {
	s.Log = append(s.Log[:len(s.Log):len(s.Log)], Entry{Kind: kind, Text: text, At: now})
	if kind == EntryQuestion {
		s.LastAIQuestion = text
	}
	return s
}

// Summary is the minimal record persisted on normal termination.
type Summary struct {
	SessionID   string    `json:"session_id"`
	Mode        Mode      `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Questions   int       `json:"questions"`
	HintsUsed   int       `json:"hints_used"`
	FinalScore  float64   `json:"final_score"`
	DownloadURL string    `json:"download_url,omitempty"`
}

// Summarize builds the persisted summary from the final state.
func (s State) Summarize(endedAt time.Time) Summary {
	questions := 0
	for _, e := range s.Log {
		if e.Kind == EntryQuestion {
			questions++
		}
	}
	return Summary{
		SessionID:   s.SessionID,
		Mode:        s.Mode,
		StartedAt:   s.StartedAt,
		EndedAt:     endedAt,
		Questions:   questions,
		HintsUsed:   s.HintsUsed,
		FinalScore:  s.FinalScore,
		DownloadURL: s.DownloadURL,
	}
}
