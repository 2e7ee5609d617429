package chat

// Mode is a named behavioural preset that shapes how local prompts are
// phrased. The current mode is session state owned by a [Responder]; it is
// mutated only through [Responder.SetMode].
type Mode string

const (
	// ModeCasual asks for relaxed, everyday conversation. This is the
	// default and the fallback for unrecognised mode values.
	ModeCasual Mode = "casual"

	// ModeAssistant asks for a helpful, task-oriented register.
	ModeAssistant Mode = "assistant"

	// ModeCreative asks for a playful, imaginative register.
	ModeCreative Mode = "creative"
)

// IsValid reports whether m is a recognised conversation mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeCasual, ModeAssistant, ModeCreative:
		return true
	}
	return false
}

// Backend identifies which backend family a prompt is composed for or a
// reply came from.
type Backend string

const (
	// BackendLocal is the in-process/local-server generation model.
	BackendLocal Backend = "local"

	// BackendCloud is a remote chat API.
	BackendCloud Backend = "cloud"
)
