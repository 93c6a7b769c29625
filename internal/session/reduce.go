package session

import (
	"time"

	"github.com/prepwell/intervox/internal/protocol"
	"github.com/prepwell/intervox/internal/similarity"
	"github.com/prepwell/intervox/internal/transcript"
)

// Apply is the transition function. It is pure: given the same state,
// event, filter and clock reading it always produces the same next state
// and effect list, which is what makes every turn-taking rule unit
// testable without a socket, a microphone, or a real timer.
//
// Events arriving in a phase where they make no sense are dropped without
// effects. That is deliberate: the single-ordered event loop has no
// happens-before guarantee between a phase change and an in-flight
// transcription from the previous turn, so stale events must be harmless.
func Apply(s State, ev Event, f *transcript.Filter, now time.Time) (State, []Effect) {
	switch ev := ev.(type) {
	case Connected:
		return applyConnected(s)
	case ConnectionFailed:
		s.ReconnectFailed = true
		s.Phase = PhaseDisconnected
		return s, []Effect{{Kind: EffectStopHintTimer}}
	case ServerEvent:
		return applyServer(s, ev.Msg, f, now)
	case SpeechFinished:
		return applySpeechFinished(s)
	case TranscriptCaptured:
		return applyTranscript(s, ev.Text, f, now)
	case HintTimerFired:
		if s.Mode != ModeTechnical || s.Phase == PhaseEnding || s.Phase == PhaseCompleted {
			return s, nil
		}
		return s, []Effect{send(protocol.RequestHint()), {Kind: EffectResetHintTimer}}
	case UserSubmitAnswer:
		if ev.Text == "" || (!s.Phase.busy() && s.Phase != PhaseIdle) {
			return s, nil
		}
		s = s.appendEntry(EntryAnswer, ev.Text, now)
		s.Phase = PhaseThinking
		return s, []Effect{send(protocol.Answer(ev.Text))}
	case UserSubmitCode:
		return applySubmitCode(s, ev, now)
	case UserRequestHint:
		if s.Mode != ModeTechnical || s.Phase == PhaseEnding || s.Phase == PhaseCompleted {
			return s, nil
		}
		return s, []Effect{send(protocol.RequestHint()), {Kind: EffectResetHintTimer}}
	case UserEndInterview:
		if s.Phase == PhaseEnding || s.Phase == PhaseCompleted {
			return s, nil
		}
		s.Phase = PhaseEnding
		return s, []Effect{{Kind: EffectBeginEnding}}
	case EndingFinished:
		s.Phase = PhaseCompleted
		return s, nil
	}
	return s, nil
}

func applyConnected(s State) (State, []Effect) {
	s.ReconnectFailed = false
	if s.Phase != PhaseDisconnected && s.Phase != PhaseConnecting {
		// Mid-session reconnect: the backend keeps the session, so no
		// re-init; resume waiting for it to drive the next turn.
		return s, nil
	}
	s.Phase = PhaseIdle
	return s, []Effect{{Kind: EffectSendInit}}
}

func applySpeechFinished(s State) (State, []Effect) {
	if s.Phase != PhaseSpeaking {
		return s, nil
	}
	s.Phase = PhaseListening
	return s, []Effect{capture()}
}

// applyTranscript routes one locally captured transcript through the
// filter pipeline. Empty and rejected transcripts keep the microphone
// loop going; only an accepted transcript becomes an answer.
func applyTranscript(s State, text string, f *transcript.Filter, now time.Time) (State, []Effect) {
	if s.Phase != PhaseListening {
		// Late arrival from a previous turn; the filter pipeline is the
		// designed safety net, but a phase check discards it even earlier.
		return s, nil
	}
	if text == "" {
		return s, []Effect{capture()}
	}

	v := f.Check(text, s.LastAIQuestion)
	if !v.Accepted {
		return s, []Effect{
			{Kind: EffectNoteRejection, Text: string(v.Reason)},
			capture(),
		}
	}

	s = s.appendEntry(EntryAnswer, v.Text, now)
	s.Phase = PhaseThinking
	return s, []Effect{send(protocol.Answer(v.Text))}
}

func applySubmitCode(s State, ev UserSubmitCode, now time.Time) (State, []Effect) {
	if ev.Code == "" || s.Phase == PhaseEnding || s.Phase == PhaseCompleted {
		return s, nil
	}
	s = s.appendEntry(EntryAnswer, "[code submission]", now)
	s.CodeEditorOpen = false
	s.Phase = PhaseThinking

	// Copy detection: a submission that is mostly the question text pasted
	// back is flagged, not blocked. The Jaro-Winkler threshold is far above
	// the echo threshold on purpose; see the similarity package.
	var flagged []Effect
	if similarity.JaroWinkler(ev.Code, s.CurrentQuestion) >= similarity.CopyThreshold {
		s = s.appendEntry(EntryNotice, "code submission closely matches the question text", now)
		flagged = append(flagged, Effect{Kind: EffectNoteCopy})
	}

	if s.Mode == ModeTechnical {
		spent := now.Sub(s.QuestionStartedAt)
		msg := protocol.SubmitCode(s.CurrentQuestion, ev.Code, ev.Language, spent, s.HintsUsed, s.ApproachDiscussed)
		return s, append([]Effect{send(msg), {Kind: EffectStopHintTimer}}, flagged...)
	}
	return s, append([]Effect{send(protocol.CodeSubmission(ev.Code))}, flagged...)
}

func applyServer(s State, msg protocol.ServerMessage, f *transcript.Filter, now time.Time) (State, []Effect) {
	if s.Phase == PhaseCompleted {
		return s, nil
	}
	if msg.SessionID != "" && s.SessionID == "" {
		s.SessionID = msg.SessionID
	}

	switch msg.Type {
	case protocol.TypeReady:
		if s.Phase == PhaseConnecting || s.Phase == PhaseDisconnected {
			s.Phase = PhaseIdle
		}
		if text := msg.SpokenText(); text != "" {
			return speakQuestion(s, text, now)
		}
		return s, nil

	case protocol.TypeQuestion:
		return speakQuestion(s, msg.SpokenText(), now)

	case protocol.TypeAssessment, protocol.TypeCodeFeedback:
		text := msg.SpokenText()
		if text == "" {
			return s, nil
		}
		s = s.appendEntry(EntryFeedback, text, now)
		s.Phase = PhaseSpeaking
		return s, []Effect{speak(text)}

	case protocol.TypeHint:
		text := msg.SpokenText()
		if text == "" {
			return s, nil
		}
		s.HintsUsed++
		s = s.appendEntry(EntryHint, text, now)
		s.Phase = PhaseSpeaking
		return s, []Effect{speak(text), {Kind: EffectResetHintTimer}}

	case protocol.TypeApproachFeedback, protocol.TypeApproachAnalyzed:
		s.ApproachDiscussed = true
		effects := []Effect{{Kind: EffectResetHintTimer}}
		if text := msg.SpokenText(); text != "" {
			s = s.appendEntry(EntryFeedback, text, now)
			s.Phase = PhaseSpeaking
			effects = append(effects, speak(text))
		}
		return s, effects

	case protocol.TypeListening:
		s.Phase = PhaseListening
		return s, []Effect{capture()}

	case protocol.TypeTranscribed:
		// Backend-side transcription of the candidate's speech. Same filter
		// policy as the local path, but a rejection here resets to idle and
		// lets the backend drive the retry.
		text := msg.SpokenText()
		if text == "" || s.Phase != PhaseListening {
			return s, nil
		}
		v := f.Check(text, s.LastAIQuestion)
		if !v.Accepted {
			s.Phase = PhaseIdle
			return s, []Effect{{Kind: EffectNoteRejection, Text: string(v.Reason)}}
		}
		s = s.appendEntry(EntryAnswer, v.Text, now)
		s.Phase = PhaseThinking
		return s, []Effect{send(protocol.Answer(v.Text))}

	case protocol.TypeNoSpeech, protocol.TypeInvalidTranscript:
		if s.Phase != PhaseListening {
			return s, nil
		}
		return s, []Effect{capture()}

	case protocol.TypeAIThinking:
		s.Phase = PhaseThinking
		return s, nil

	case protocol.TypeStopSpeech:
		if s.Phase == PhaseSpeaking {
			s.Phase = PhaseIdle
		}
		return s, []Effect{{Kind: EffectCancelSpeech}}

	case protocol.TypeRecordingStopped:
		return s, nil

	case protocol.TypeQuestionComplete:
		s.CurrentQuestion = ""
		s.CodeEditorOpen = false
		if text := msg.SpokenText(); text != "" {
			s = s.appendEntry(EntryNotice, text, now)
			s.Phase = PhaseSpeaking
			return s, []Effect{speak(text), {Kind: EffectResetHintTimer}}
		}
		return s, []Effect{{Kind: EffectResetHintTimer}}

	case protocol.TypeEnded, protocol.TypeInterviewComplete:
		if msg.Score > 0 {
			s.FinalScore = msg.Score
		}
		if msg.DownloadURL != "" {
			s.DownloadURL = msg.DownloadURL
		}
		if text := msg.SpokenText(); text != "" {
			s = s.appendEntry(EntryNotice, text, now)
		}
		if s.Phase == PhaseEnding {
			// Backend confirmation of a locally initiated stop; the ending
			// sequence is already running.
			return s, nil
		}
		s.Phase = PhaseEnding
		return s, []Effect{{Kind: EffectBeginEnding}}

	case protocol.TypeError:
		// Backend errors clear the busy phase but never end the session.
		if text := msg.SpokenText(); text != "" {
			s = s.appendEntry(EntryNotice, text, now)
		}
		if s.Phase.busy() {
			s.Phase = PhaseIdle
			return s, []Effect{{Kind: EffectCancelSpeech}}
		}
		return s, nil
	}

	return s, nil
}

// speakQuestion installs a new interviewer question: log it, classify it,
// open the code editor for coding questions, and voice it.
func speakQuestion(s State, text string, now time.Time) (State, []Effect) {
	if text == "" {
		return s, nil
	}
	s = s.appendEntry(EntryQuestion, text, now)
	s.CurrentQuestion = text
	s.QuestionKind = transcript.Classify(text)
	s.CodeEditorOpen = s.QuestionKind == transcript.KindCoding
	s.QuestionStartedAt = now
	s.HintsUsed = 0
	s.ApproachDiscussed = false
	s.Phase = PhaseSpeaking

	effects := []Effect{speak(text)}
	if s.Mode == ModeTechnical {
		effects = append(effects, Effect{Kind: EffectResetHintTimer})
	}
	return s, effects
}
