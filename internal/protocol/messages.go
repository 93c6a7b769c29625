// Package protocol defines the JSON message contract spoken over the
// WebSocket connection to the interview backend.
//
// Every message carries a "type" discriminator. Payload fields are optional
// per type: decoding is absent-safe, so missing fields simply stay at their
// zero values and callers never need nil checks. The backend is treated as
// an opaque collaborator — nothing here interprets message semantics beyond
// naming the types.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType discriminates inbound and outbound messages.
type MessageType string

// Client → backend message types.
const (
	TypeInit           MessageType = "init"
	TypeInitTechnical  MessageType = "init_technical"
	TypeAnswer         MessageType = "answer"
	TypeCodeSubmission MessageType = "code_submission"
	TypeSubmitCode     MessageType = "submit_code"
	TypeRequestHint    MessageType = "request_hint"
	TypeRecordAudio    MessageType = "record_audio"
	TypeStopRecording  MessageType = "stop_recording"
	TypeStopInterview  MessageType = "stop_interview"
	TypeEnd            MessageType = "end"
	TypeEndInterview   MessageType = "end_interview"
)

// Backend → client message types.
const (
	TypeReady             MessageType = "ready"
	TypeAssessment        MessageType = "assessment"
	TypeListening         MessageType = "listening"
	TypeTranscribed       MessageType = "transcribed"
	TypeNoSpeech          MessageType = "no_speech"
	TypeInvalidTranscript MessageType = "invalid_transcript"
	TypeAIThinking        MessageType = "ai_thinking"
	TypeEnded             MessageType = "ended"
	TypeError             MessageType = "error"
	TypeQuestion          MessageType = "question"
	TypeHint              MessageType = "hint"
	TypeCodeFeedback      MessageType = "code_feedback"
	TypeApproachFeedback  MessageType = "approach_feedback"
	TypeApproachAnalyzed  MessageType = "approach_analyzed"
	TypeRecordingStopped  MessageType = "recording_stopped"
	TypeQuestionComplete  MessageType = "question_complete"
	TypeInterviewComplete MessageType = "interview_complete"
	TypeStopSpeech        MessageType = "stop_speech"
)

// ClientMessage is an outbound message. Only the fields relevant to Type are
// populated; the rest are omitted from the wire form.
type ClientMessage struct {
	Type              MessageType `json:"type"`
	Mode              string      `json:"mode,omitempty"`
	ResumeID          string      `json:"resume_id,omitempty"`
	Text              string      `json:"text,omitempty"`
	Code              string      `json:"code,omitempty"`
	SessionID         string      `json:"session_id,omitempty"`
	Timestamp         int64       `json:"timestamp,omitempty"`
	ForceStop         bool        `json:"force_stop,omitempty"`
	Topics            []string    `json:"topics,omitempty"`
	Question          string      `json:"question,omitempty"`
	Language          string      `json:"language,omitempty"`
	TimeSpentSec      int         `json:"time_spent,omitempty"`
	HintsUsed         int         `json:"hints_used,omitempty"`
	ApproachDiscussed bool        `json:"approach_discussed,omitempty"`
}

// Encode marshals m to its wire form.
func (m ClientMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Type, err)
	}
	return data, nil
}

// Init starts a resume-based interview for the given uploaded resume.
func Init(mode, resumeID string) ClientMessage {
	return ClientMessage{Type: TypeInit, Mode: mode, ResumeID: resumeID}
}

// InitTechnical starts a technical interview over the given topics.
func InitTechnical(topics []string) ClientMessage {
	return ClientMessage{Type: TypeInitTechnical, Topics: topics}
}

// Answer forwards an accepted transcript as the candidate's answer.
func Answer(text string) ClientMessage {
	return ClientMessage{Type: TypeAnswer, Text: text}
}

// CodeSubmission submits code in resume mode.
func CodeSubmission(code string) ClientMessage {
	return ClientMessage{Type: TypeCodeSubmission, Code: code}
}

// SubmitCode submits a technical-mode solution with its working metadata.
func SubmitCode(question, code, language string, timeSpent time.Duration, hintsUsed int, approachDiscussed bool) ClientMessage {
	return ClientMessage{
		Type:              TypeSubmitCode,
		Question:          question,
		Code:              code,
		Language:          language,
		TimeSpentSec:      int(timeSpent.Seconds()),
		HintsUsed:         hintsUsed,
		ApproachDiscussed: approachDiscussed,
	}
}

// RequestHint asks the backend for the next hint.
func RequestHint() ClientMessage {
	return ClientMessage{Type: TypeRequestHint}
}

// RecordAudio tells the backend a recording is starting.
func RecordAudio() ClientMessage {
	return ClientMessage{Type: TypeRecordAudio}
}

// StopRecording tells the backend the current recording has stopped.
func StopRecording() ClientMessage {
	return ClientMessage{Type: TypeStopRecording}
}

// StopInterview is the force-stop variant of session termination. It is sent
// ahead of the legacy [End] message; older backend versions only understand
// the latter.
func StopInterview(sessionID string, at time.Time) ClientMessage {
	return ClientMessage{
		Type:      TypeStopInterview,
		SessionID: sessionID,
		Timestamp: at.UnixMilli(),
		ForceStop: true,
	}
}

// End is the legacy session termination message.
func End() ClientMessage {
	return ClientMessage{Type: TypeEnd}
}

// EndInterview terminates a technical-mode interview.
func EndInterview() ClientMessage {
	return ClientMessage{Type: TypeEndInterview}
}

// ServerMessage is an inbound message. Field presence is optional per type;
// absent fields decode to zero values.
type ServerMessage struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Question    string      `json:"question"`
	Text        string      `json:"text"`
	Message     string      `json:"message"`
	Evaluation  string      `json:"evaluation"`
	Hint        string      `json:"hint"`
	Feedback    string      `json:"feedback"`
	Score       float64     `json:"score"`
	QuestionNum int         `json:"question_number"`
	DownloadURL string      `json:"download_url"`
}

// Decode parses an inbound wire message. Unknown fields are ignored and
// missing fields stay zero; the only error condition is malformed JSON or a
// missing type discriminator.
func Decode(data []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ServerMessage{}, fmt.Errorf("protocol: decode: %w", err)
	}
	if msg.Type == "" {
		return ServerMessage{}, fmt.Errorf("protocol: decode: missing type discriminator")
	}
	return msg, nil
}

// SpokenText returns the text the interviewer should speak for msg, checking
// the message-specific payload fields in precedence order. Returns "" when
// the message carries nothing speakable.
func (m ServerMessage) SpokenText() string {
	switch {
	case m.Question != "":
		return m.Question
	case m.Evaluation != "":
		return m.Evaluation
	case m.Hint != "":
		return m.Hint
	case m.Feedback != "":
		return m.Feedback
	case m.Text != "":
		return m.Text
	case m.Message != "":
		return m.Message
	}
	return ""
}
