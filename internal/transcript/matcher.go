// Package transcript corrects recognized utterances before they reach the
// responder. Speech recognition reliably mangles the words the companion
// cares about most (her own name, the user's name, recurring topics), so
// every finalized utterance is checked against the persona vocabulary using
// Double Metaphone phonetic codes with Jaro-Winkler ranking.
package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// matcher scores a heard word against the vocabulary. Read-only after
// construction, so safe for concurrent use.
type matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// match finds the vocabulary entry most phonetically similar to word.
//
// Entries whose Double Metaphone codes overlap the word's are candidates and
// need only clear phoneticThreshold on Jaro-Winkler similarity; entries with
// no phonetic overlap must clear the stricter fuzzyThreshold. When matched is
// false, corrected equals word and confidence is 0.
func (m *matcher) match(word string, vocabulary []string) (corrected string, confidence float64, matched bool) {
	wordLower := strings.ToLower(strings.TrimSpace(word))
	if wordLower == "" || len(vocabulary) == 0 {
		return word, 0, false
	}
	wordCodes := phoneticCodes(wordLower)

	var (
		bestEntry    string
		bestScore    float64
		bestPhonetic bool
	)
	for _, entry := range vocabulary {
		entryLower := strings.ToLower(strings.TrimSpace(entry))
		if entryLower == "" {
			continue
		}

		score := matchr.JaroWinkler(wordLower, entryLower, false)
		phonetic := codesOverlap(wordCodes, phoneticCodes(entryLower))

		switch {
		case phonetic && score >= m.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestEntry, bestScore, bestPhonetic = entry, score, true
			}
		case !phonetic && !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore:
			bestEntry, bestScore = entry, score
		}
	}

	if bestEntry == "" {
		return word, 0, false
	}
	return bestEntry, bestScore, true
}

// phoneticCodes returns the Double Metaphone codes of a lowercased word.
// Words too short to produce a code yield an empty set.
func phoneticCodes(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	primary, secondary := matchr.DoubleMetaphone(word)
	if primary != "" {
		codes[primary] = struct{}{}
	}
	if secondary != "" {
		codes[secondary] = struct{}{}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
