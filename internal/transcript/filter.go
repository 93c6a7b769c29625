// Package transcript implements the rejection and cleanup pipeline applied to
// every transcribed utterance before it is treated as a candidate answer.
//
// The microphone routinely picks up the interviewer's own synthesized speech,
// so raw speech-to-text output cannot be trusted to contain the candidate's
// words. The [Filter] runs a fixed sequence of stages over each transcript —
// question-pattern detection, similarity-based echo rejection, substring
// containment, echo prefix stripping, length and noise checks, and a
// content-word overlap ratio — and the first matching stage wins.
//
// Stage ordering matters: prefix stripping runs after the containment checks
// so that partial echoes ("walk me through your approach well I would use a
// stack") are salvaged rather than discarded outright.
//
// A Filter is read-only after construction and safe for concurrent use.
package transcript

import (
	"regexp"
	"strings"

	"github.com/prepwell/intervox/internal/similarity"
)

// Reason identifies which pipeline stage rejected a transcript.
type Reason string

const (
	ReasonLooksLikeQuestion Reason = "looks_like_question"
	ReasonEchoSimilarity    Reason = "echo_similarity"
	ReasonEchoContainment   Reason = "echo_containment"
	ReasonTooShort          Reason = "too_short"
	ReasonGibberish         Reason = "gibberish"
	ReasonHighOverlap       Reason = "high_overlap"
)

// Verdict is the outcome of running a transcript through the pipeline.
// When Accepted is true, Text holds the cleaned transcript (echo prefixes
// stripped, whitespace trimmed) and Reason is empty.
type Verdict struct {
	Accepted bool
	Text     string
	Reason   Reason
}

// Pipeline tuning defaults. The echo similarity threshold is deliberately
// aggressive: any double-digit percentage of word overlap with the last
// question is dropped as echo. This is an anti-echo policy, not a bug, and
// is intentionally much stricter than the 0.70 copy-detection threshold
// used for code submissions.
const (
	defaultEchoThreshold    = similarity.EchoThreshold
	defaultOverlapThreshold = 0.50

	// minQuestionLen is the shortest last-question for which the echo
	// stages run at all. Below this the question carries too little text
	// to compare against.
	minQuestionLen = 15

	// containmentPrefixLen is how many leading characters participate in
	// the substring containment check.
	containmentPrefixLen = 40

	// stripCandidateLen is the minimum transcript length for prefix
	// stripping to be attempted.
	stripCandidateLen = 50

	minWords = 3
	minChars = 3
)

// questionPatterns match interrogative openers typical of AI-generated
// interview questions. A trailing question mark is checked separately.
var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(can|could|would) you (please )?(tell|describe|explain|give|share|list)`),
	regexp.MustCompile(`(?i)^tell me (about|more|why|how|what)`),
	regexp.MustCompile(`(?i)^what('s| is| are| was| were| would| kind| type)`),
	regexp.MustCompile(`(?i)^how (do|does|did|would|will|can|have|has)`),
	regexp.MustCompile(`(?i)^why (do|does|did|would|is|are|was)`),
	regexp.MustCompile(`(?i)^(describe|explain) (your|the|a|an|how|what)`),
	regexp.MustCompile(`(?i)^(have|has) you (ever )?(used|worked|built|designed)`),
}

// gibberishPattern matches transcription artifacts: stray diacritic runs the
// STT engine produces on breath noise, and absurdly long single tokens.
var gibberishPattern = regexp.MustCompile(`[\x{00C0}-\x{024F}]{3,}|\S{25,}`)

// noiseTokens are short non-speech fillers the STT engine emits for
// keyboard clatter and throat noise. An utterance of three or fewer words
// made up entirely of these is dropped.
var noiseTokens = map[string]struct{}{
	"uh": {}, "um": {}, "hmm": {}, "mhm": {}, "huh": {},
	"ah": {}, "oh": {}, "eh": {}, "hm": {},
	"asdf": {}, "sdf": {}, "dfg": {}, "qwe": {}, "jkl": {},
}

// Option configures a [Filter].
type Option func(*Filter)

// WithEchoThreshold overrides the Jaccard similarity above which a
// transcript is rejected as an echo of the last question. Default: 0.10.
func WithEchoThreshold(threshold float64) Option {
	return func(f *Filter) { f.echoThreshold = threshold }
}

// WithOverlapThreshold overrides the content-word overlap ratio above which
// a transcript is rejected. Default: 0.50.
func WithOverlapThreshold(threshold float64) Option {
	return func(f *Filter) { f.overlapThreshold = threshold }
}

// Filter applies the transcript rejection pipeline. The zero value is not
// usable; construct with [NewFilter].
type Filter struct {
	echoThreshold    float64
	overlapThreshold float64
}

// NewFilter returns a [Filter] with the default thresholds, adjusted by opts.
func NewFilter(opts ...Option) *Filter {
	f := &Filter{
		echoThreshold:    defaultEchoThreshold,
		overlapThreshold: defaultOverlapThreshold,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Check runs candidate through every pipeline stage against lastQuestion,
// the most recent AI-authored utterance. The first matching stage rejects;
// only a transcript surviving all stages is accepted.
func (f *Filter) Check(candidate, lastQuestion string) Verdict {
	text := strings.TrimSpace(candidate)
	question := strings.TrimSpace(lastQuestion)

	// Stage 1: the transcript itself reads like a question.
	if looksLikeQuestion(text) {
		return Verdict{Reason: ReasonLooksLikeQuestion}
	}

	if len(question) > minQuestionLen {
		// Stage 2: word-set similarity to the last question.
		if similarity.Jaccard(text, question) > f.echoThreshold {
			return Verdict{Reason: ReasonEchoSimilarity}
		}

		// Stage 3: leading-substring containment in either direction.
		if containsPrefix(text, question) || containsPrefix(question, text) {
			return Verdict{Reason: ReasonEchoContainment}
		}

		// Stage 4: salvage partial echoes — strip a leading fragment of
		// the question out of a long transcript and keep filtering the
		// remainder.
		if len(text) > stripCandidateLen {
			text = stripQuestionPrefix(text, question)
		}
	}

	// Stage 5: too short to be an answer.
	if len(strings.Fields(text)) < minWords || len(text) < minChars {
		return Verdict{Reason: ReasonTooShort}
	}

	// Stage 6: transcription artifacts and keyboard noise.
	if isGibberish(text) {
		return Verdict{Reason: ReasonGibberish}
	}

	// Stage 7: too many of the answer's content words come from the question.
	if question != "" && similarity.ContentOverlap(text, question) > f.overlapThreshold {
		return Verdict{Reason: ReasonHighOverlap}
	}

	return Verdict{Accepted: true, Text: text}
}

// looksLikeQuestion reports whether text matches an interrogative opener
// pattern or ends with a question mark.
func looksLikeQuestion(text string) bool {
	if strings.HasSuffix(text, "?") {
		return true
	}
	for _, p := range questionPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// containsPrefix reports whether the first containmentPrefixLen characters
// of inner appear as a substring of outer, case-insensitive.
func containsPrefix(outer, inner string) bool {
	inner = strings.ToLower(inner)
	if len(inner) > containmentPrefixLen {
		inner = inner[:containmentPrefixLen]
	}
	if inner == "" {
		return false
	}
	return strings.Contains(strings.ToLower(outer), inner)
}

// stripQuestionPrefix removes a leading echo of question from text. It tries
// decreasing-length word prefixes of the question (20 words down to 5) and,
// on the first hit, drops everything up to and including that fragment.
// Returns text unchanged when no fragment is found.
func stripQuestionPrefix(text, question string) string {
	lower := strings.ToLower(text)
	words := strings.Fields(strings.ToLower(question))

	for n := 20; n >= 5; n-- {
		if n > len(words) {
			continue
		}
		fragment := strings.Join(words[:n], " ")
		idx := strings.Index(lower, fragment)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(text[idx+len(fragment):])
		rest = strings.TrimLeft(rest, ".,;:!? ")
		if rest != "" {
			return rest
		}
		return text
	}
	return text
}

// isGibberish reports whether text is a transcription artifact: it matches
// the gibberish pattern, or it is a short utterance made up entirely of
// known noise tokens.
func isGibberish(text string) bool {
	if gibberishPattern.MatchString(text) {
		return true
	}
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 || len(fields) > 3 {
		return false
	}
	for _, w := range fields {
		if _, ok := noiseTokens[strings.Trim(w, ".,!?")]; !ok {
			return false
		}
	}
	return true
}
