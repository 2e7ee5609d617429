package chat

import "strings"

// minReplyLength is the shortest trimmed reply accepted from a backend.
// Anything shorter is treated as a failed generation and substituted.
const minReplyLength = 3

// defaultResponsePool substitutes for degenerate backend output. Picked
// uniformly at random via the responder's picker so tests can pin the choice.
var defaultResponsePool = []string{
	"Hello! I'm so happy to chat with you.",
	"Mm-hm, I'm listening — tell me more.",
	"That's interesting! What happened next?",
	"I was just thinking about you. What's on your mind?",
	"Hehe, go on — I like hearing about your day.",
}

// defaultApologyPool is used when both the cloud and local paths fail on the
// same request. The user never sees a raw error, only one of these.
var defaultApologyPool = []string{
	"I'm sorry, my thoughts got tangled for a moment. Could you say that again?",
	"Oh no, I lost my train of thought. Give me another chance?",
	"Something went wrong on my end — let's try that once more.",
}

// defaultPlaceholder is returned when no local model is loaded and the cloud
// path is not in use.
const defaultPlaceholder = "I'm still learning how to talk. Give me a little more time!"

// stripEchoedPrompt removes the prompt prefix from generated text. Small
// completion models frequently echo the prompt before their continuation;
// the echo must never reach the user.
func stripEchoedPrompt(generated, prompt string) string {
	if prompt != "" && strings.HasPrefix(generated, prompt) {
		return generated[len(prompt):]
	}
	return generated
}

// isDegenerate reports whether a trimmed reply is unusable: empty,
// whitespace-only, shorter than minReplyLength characters, or the lone
// period some models emit when they have nothing to say.
func isDegenerate(trimmed string) bool {
	if trimmed == "." {
		return true
	}
	return len(trimmed) < minReplyLength
}

// sanitizeReply strips the echoed prompt and surrounding whitespace from raw
// backend output. The second return value reports whether the remainder is
// degenerate and must be substituted from the response pool.
func sanitizeReply(raw, prompt string) (string, bool) {
	text := strings.TrimSpace(stripEchoedPrompt(raw, prompt))
	return text, isDegenerate(text)
}
