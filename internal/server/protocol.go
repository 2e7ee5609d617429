package server

// The browser UI talks to the server over one WebSocket per session using
// small JSON envelopes. Every client message carries a type tag; the server
// answers utterances with a reply envelope and everything else with an ack.

// Client message types.
const (
	// TypeUtterance submits recognized or typed text for a reply.
	TypeUtterance = "utterance"

	// TypeAudioUtterance submits a recorded utterance as base64 WAV for
	// server-side recognition followed by a reply.
	TypeAudioUtterance = "audio_utterance"

	// TypeSetMode changes the conversation mode.
	TypeSetMode = "set_mode"

	// TypeSwitchBackend selects "local" or a named cloud provider, with an
	// optional API key.
	TypeSwitchBackend = "switch_backend"

	// TypeClearHistory forgets the cloud conversation history.
	TypeClearHistory = "clear_history"

	// TypeRecall searches long-term memory for related past turns.
	TypeRecall = "recall"
)

// Server message types.
const (
	// TypeReply answers an utterance.
	TypeReply = "reply"

	// TypeAck answers control messages.
	TypeAck = "ack"

	// TypeRecallResult answers a recall request.
	TypeRecallResult = "recall_result"

	// TypeError reports a malformed or failed request.
	TypeError = "error"
)

// clientMessage is the envelope for everything the browser sends.
type clientMessage struct {
	Type string `json:"type"`

	// Text carries the utterance for TypeUtterance, the mode for
	// TypeSetMode, the backend selection for TypeSwitchBackend, and the
	// query for TypeRecall.
	Text string `json:"text,omitempty"`

	// Audio is a base64-encoded WAV container for TypeAudioUtterance.
	Audio string `json:"audio,omitempty"`

	// APIKey optionally accompanies TypeSwitchBackend.
	APIKey string `json:"api_key,omitempty"`
}

// wordFix reports one transcript correction to the UI.
type wordFix struct {
	Heard     string `json:"heard"`
	Corrected string `json:"corrected"`
}

// recalledTurn is one semantic-recall hit.
type recalledTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// serverMessage is the envelope for everything the server sends.
type serverMessage struct {
	Type string `json:"type"`

	// Reply fields.
	Text   string `json:"text,omitempty"`
	Source string `json:"source,omitempty"`

	// Utterance echoes the text the reply answers; for audio utterances
	// this is the corrected transcript the UI should display.
	Utterance string `json:"utterance,omitempty"`

	// Audio is the spoken reply as base64 WAV, when synthesis is available.
	Audio string `json:"audio,omitempty"`

	// Corrections lists vocabulary fixes applied to a transcript.
	Corrections []wordFix `json:"corrections,omitempty"`

	// Ack/error fields.
	OK     bool   `json:"ok,omitempty"`
	Detail string `json:"detail,omitempty"`

	// Recall results.
	Matches []recalledTurn `json:"matches,omitempty"`
}
