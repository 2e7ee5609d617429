package transcript

import (
	"log/slog"
	"strings"
	"unicode"
)

// Correction records one replaced word for logging and UI display.
type Correction struct {
	// Heard is the word as the recognizer produced it.
	Heard string
	// Corrected is the vocabulary entry substituted for it.
	Corrected string
	// Confidence is the Jaro-Winkler similarity of the accepted match.
	Confidence float64
}

// Corrector rewrites recognized utterances so vocabulary words the
// recognizer mangled come out right. Safe for concurrent use.
type Corrector struct {
	vocabulary []string
	exact      map[string]struct{}
	match      matcher
	log        *slog.Logger
}

// Option is a functional option for configuring a Corrector.
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum similarity for phonetically matched
// words. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.match.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum similarity for words with no phonetic
// overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.match.fuzzyThreshold = threshold
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(c *Corrector) {
		c.log = log
	}
}

// New creates a Corrector over the given vocabulary (names and topics the
// persona should always hear correctly). An empty vocabulary produces a
// Corrector that passes text through unchanged.
func New(vocabulary []string, opts ...Option) *Corrector {
	c := &Corrector{
		vocabulary: vocabulary,
		exact:      make(map[string]struct{}, len(vocabulary)),
		match: matcher{
			phoneticThreshold: defaultPhoneticThreshold,
			fuzzyThreshold:    defaultFuzzyThreshold,
		},
		log: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	for _, v := range vocabulary {
		c.exact[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return c
}

// Correct rewrites one utterance, returning the corrected text and the list
// of substitutions made. Words already matching the vocabulary exactly are
// left alone; punctuation around words is preserved.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if len(c.vocabulary) == 0 || strings.TrimSpace(text) == "" {
		return text, nil
	}

	fields := strings.Fields(text)
	var corrections []Correction

	for i, field := range fields {
		prefix, word, suffix := splitPunct(field)
		if word == "" {
			continue
		}
		if _, known := c.exact[strings.ToLower(word)]; known {
			continue
		}

		corrected, confidence, matched := c.match.match(word, c.vocabulary)
		if !matched || strings.EqualFold(corrected, word) {
			continue
		}

		replacement := matchCase(corrected, word)
		fields[i] = prefix + replacement + suffix
		corrections = append(corrections, Correction{
			Heard:      word,
			Corrected:  replacement,
			Confidence: confidence,
		})
		c.log.Debug("corrected transcript word",
			"heard", word, "corrected", replacement, "confidence", confidence)
	}

	if len(corrections) == 0 {
		return text, nil
	}
	return strings.Join(fields, " "), corrections
}

// splitPunct separates leading and trailing punctuation from a token.
func splitPunct(token string) (prefix, word, suffix string) {
	runes := []rune(token)
	start, end := 0, len(runes)
	for start < end && !unicode.IsLetter(runes[start]) && !unicode.IsDigit(runes[start]) {
		start++
	}
	for end > start && !unicode.IsLetter(runes[end-1]) && !unicode.IsDigit(runes[end-1]) {
		end--
	}
	return string(runes[:start]), string(runes[start:end]), string(runes[end:])
}

// matchCase capitalizes the replacement when the heard word was capitalized
// or the vocabulary entry itself is a proper noun.
func matchCase(replacement, heard string) string {
	if replacement == "" || heard == "" {
		return replacement
	}
	hr := []rune(heard)
	rr := []rune(replacement)
	if unicode.IsUpper(hr[0]) && unicode.IsLower(rr[0]) {
		return string(unicode.ToUpper(rr[0])) + string(rr[1:])
	}
	return replacement
}
