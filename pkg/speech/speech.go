// Package speech defines the Synthesizer interface for text-to-speech
// backends used to voice the interviewer's questions.
//
// A Synthesizer renders one utterance at a time. The contract is
// deliberately blocking: Speak returns only once the utterance has finished
// rendering (or playing, for implementations wired to an output device), so
// the caller's turn-taking logic can key the listening transition off the
// return. Implementations must be safe for concurrent use; serializing
// utterances is the caller's job.
package speech

import "context"

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Speak renders text as speech and blocks until done. Cancelling ctx
	// aborts the utterance. text is never empty; callers filter blank
	// input before reaching the synthesizer.
	Speak(ctx context.Context, text string) error
}
