// Package similarity provides the text-overlap scoring used to decide whether
// a transcribed utterance is actually the interviewer's own spoken question
// leaking back through the microphone.
//
// Two measures are exposed:
//
//   - [Jaccard]: word-set overlap between two strings. This drives the
//     aggressive echo rejection in the transcript filter (any double-digit
//     percentage overlap with the last question is treated as echo).
//
//   - [JaroWinkler]: character-level string similarity via the matchr
//     library. This drives copy detection on code submissions, where a much
//     higher threshold (0.70) applies.
//
// The two thresholds are intentionally asymmetric: echoes are cheap to drop
// (the candidate simply re-records), while falsely flagging an answer as a
// copy is expensive. Callers must not unify them.
package similarity

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// EchoThreshold is the Jaccard score above which a transcript is
	// considered an echo of the last AI question.
	EchoThreshold = 0.10

	// CopyThreshold is the Jaro-Winkler score above which a code
	// submission is considered a copy of the question text.
	CopyThreshold = 0.70

	// minTokenLen is the shortest token that participates in Jaccard
	// scoring. Articles and other filler ("a", "to", "of") carry no signal.
	minTokenLen = 3
)

// Jaccard returns the word-set overlap of a and b in [0, 1].
//
// Both inputs are lowercased and split on whitespace; tokens of length two
// or shorter are dropped before the sets are built. The score is
// |intersection| / |union|. It returns 0 when either input is empty or when
// either filtered token set is empty, so the division is always defined.
//
// Jaccard is symmetric and deterministic, with no side effects.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// JaroWinkler returns the Jaro-Winkler similarity of a and b in [0, 1],
// case-insensitive. Used for copy detection against [CopyThreshold].
func JaroWinkler(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	return matchr.JaroWinkler(a, b, false)
}

// ContentOverlap returns the fraction of a's content words (length > 3)
// that also appear among b's content words. Returns 0 when a has no
// content words.
//
// Unlike [Jaccard] this is directional: it asks "how much of a is made of
// b", which is the right question when a is a candidate answer and b is
// the question it may be parroting.
func ContentOverlap(a, b string) float64 {
	wordsA := contentWords(a)
	if len(wordsA) == 0 {
		return 0
	}
	setB := make(map[string]struct{})
	for _, w := range contentWords(b) {
		setB[w] = struct{}{}
	}

	shared := 0
	for _, w := range wordsA {
		if _, ok := setB[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(wordsA))
}

// tokenSet lowercases s, splits it on whitespace, and returns the set of
// tokens longer than minTokenLen-1 characters.
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		if len(tok) < minTokenLen {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// contentWords returns the lowercase words of s longer than three characters,
// in order, duplicates preserved.
func contentWords(s string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		if len(tok) > 3 {
			out = append(out, tok)
		}
	}
	return out
}
