package transcript

import (
	"regexp"
	"strings"
)

// QuestionKind classifies an inbound interview question by the kind of
// answer it expects.
type QuestionKind string

const (
	// KindFreeform expects a spoken answer.
	KindFreeform QuestionKind = "freeform"

	// KindCoding expects code; the session opens the code editor sub-state.
	KindCoding QuestionKind = "coding"
)

// codingPattern matches the imperative phrasing of coding exercises:
// "write a function", "implement an algorithm", "create a program", and so on.
var codingPattern = regexp.MustCompile(
	`(?i)\b(write|implement|create)\b.{0,20}\b(function|program|class|algorithm|method|script)\b`,
)

// codingPhrases are literal markers checked in addition to the pattern.
var codingPhrases = []string{
	"write code to",
	"code a solution",
}

// Classify reports whether question is a coding exercise or a freeform
// question. Pure and deterministic; safe to call from any goroutine.
func Classify(question string) QuestionKind {
	q := strings.ToLower(question)
	if codingPattern.MatchString(q) {
		return KindCoding
	}
	for _, phrase := range codingPhrases {
		if strings.Contains(q, phrase) {
			return KindCoding
		}
	}
	return KindFreeform
}
