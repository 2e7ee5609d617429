package chat

import "fmt"

// Prompt templates. Local prompts vary by mode; the cloud template is a
// single fixed string independent of mode. That asymmetry is intentional,
// carried over from the original product behaviour, and pinned by tests —
// do not unify the two paths without a product decision.
const (
	// persona is the framing sentence shared by every template.
	persona = "You are Bella, a warm and lively virtual companion."

	localCasualTemplate    = persona + " Have a natural conversation with the user.\nThe user says: %q\nBella:"
	localAssistantTemplate = persona + " Respond naturally and be helpful.\nThe user says: %q\nBella:"
	localCreativeTemplate  = persona + " Chat naturally; be creative and companionable.\nThe user says: %q\nBella:"

	cloudTemplate = persona + "\nThe user says: %q\nBella:"
)

// ComposePrompt deterministically builds the exact text sent to a backend.
// It is a pure function of (utterance, mode, backend): no state, no
// randomness, the utterance embedded verbatim as a quoted turn.
//
// Unrecognised modes fall back to the casual template rather than failing —
// prompt composition must never be the reason a reply cannot be produced.
func ComposePrompt(utterance string, mode Mode, backend Backend) string {
	if backend == BackendCloud {
		return fmt.Sprintf(cloudTemplate, utterance)
	}

	switch mode {
	case ModeAssistant:
		return fmt.Sprintf(localAssistantTemplate, utterance)
	case ModeCreative:
		return fmt.Sprintf(localCreativeTemplate, utterance)
	default:
		return fmt.Sprintf(localCasualTemplate, utterance)
	}
}
