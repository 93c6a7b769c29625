package session

import (
	"github.com/prepwell/intervox/internal/protocol"
)

// Event is a stimulus fed through [Apply]. Events come from four places:
// the gateway (inbound messages and connection statuses), the voice
// controller (utterance finished), the capture client (transcript ready),
// and the user (submit, hint, end).
type Event interface{ isEvent() }

// ServerEvent wraps an inbound backend message.
type ServerEvent struct {
	Msg protocol.ServerMessage
}

// Connected fires after the gateway opens a socket, initial or reconnect.
type Connected struct{}

// ConnectionFailed fires when the gateway exhausts its reconnect budget.
type ConnectionFailed struct{}

// SpeechFinished fires when the voice controller hands control back after
// an utterance (clean, failed, or degraded).
type SpeechFinished struct{}

// TranscriptCaptured delivers the result of one bounded recording.
// Text is empty when nothing usable was transcribed.
type TranscriptCaptured struct {
	Text string
}

// HintTimerFired fires when the candidate has been idle on a technical
// question long enough to deserve an unprompted hint.
type HintTimerFired struct{}

// UserSubmitAnswer is a typed (non-voice) answer submission.
type UserSubmitAnswer struct {
	Text string
}

// UserSubmitCode submits the code editor contents.
type UserSubmitCode struct {
	Code     string
	Language string
}

// UserRequestHint asks for the next hint explicitly.
type UserRequestHint struct{}

// UserEndInterview starts the ending sequence at the user's request.
type UserEndInterview struct{}

// EndingFinished fires after the ending sequence has run to completion.
type EndingFinished struct{}

func (ServerEvent) isEvent()        {}
func (Connected) isEvent()          {}
func (ConnectionFailed) isEvent()   {}
func (SpeechFinished) isEvent()     {}
func (TranscriptCaptured) isEvent() {}
func (HintTimerFired) isEvent()     {}
func (UserSubmitAnswer) isEvent()   {}
func (UserSubmitCode) isEvent()     {}
func (UserRequestHint) isEvent()    {}
func (UserEndInterview) isEvent()   {}
func (EndingFinished) isEvent()     {}

// EffectKind discriminates the commands a transition can emit.
type EffectKind string

const (
	// EffectSend writes Msg to the backend socket.
	EffectSend EffectKind = "send"

	// EffectSendInit sends the mode-appropriate session init message. The
	// runtime owns the resume ID / topic list, so the reducer only requests
	// the init rather than building it.
	EffectSendInit EffectKind = "send_init"

	// EffectSpeak voices Text through the speech controller.
	EffectSpeak EffectKind = "speak"

	// EffectCapture starts one bounded recording and transcription round.
	EffectCapture EffectKind = "capture"

	// EffectResetHintTimer re-arms the idle hint timer from zero.
	EffectResetHintTimer EffectKind = "reset_hint_timer"

	// EffectStopHintTimer stops the idle hint timer without re-arming.
	EffectStopHintTimer EffectKind = "stop_hint_timer"

	// EffectCancelSpeech aborts any in-flight utterance.
	EffectCancelSpeech EffectKind = "cancel_speech"

	// EffectBeginEnding runs the full ending sequence.
	EffectBeginEnding EffectKind = "begin_ending"

	// EffectNoteRejection records a discarded transcript for observability.
	// Text carries the rejection reason.
	EffectNoteRejection EffectKind = "note_rejection"

	// EffectNoteCopy flags a code submission that closely mirrors the
	// question text. The submission still goes through; the flag is for the
	// log and the session record.
	EffectNoteCopy EffectKind = "note_copy"
)

// Effect is a command for the runtime to execute after a transition.
// Effects execute in slice order.
type Effect struct {
	Kind EffectKind
	Msg  protocol.ClientMessage
	Text string
}

func send(msg protocol.ClientMessage) Effect { return Effect{Kind: EffectSend, Msg: msg} }
func speak(text string) Effect               { return Effect{Kind: EffectSpeak, Text: text} }
func capture() Effect                        { return Effect{Kind: EffectCapture} }
