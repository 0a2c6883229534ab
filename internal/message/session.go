package message

// DeliveryMode controls how the agent process queues a sent prompt.
type DeliveryMode string

const (
	// DeliverEnqueue queues the prompt behind any in-progress turn.
	DeliverEnqueue DeliveryMode = "enqueue"

	// DeliverImmediate interrupts the current turn and delivers the prompt now.
	DeliverImmediate DeliveryMode = "immediate"
)

// SessionConfig configures session creation.
type SessionConfig struct {
	// SessionID optionally supplies the session identifier. If empty, the
	// agent process assigns one.
	SessionID string `json:"sessionId,omitempty"`

	// Model optionally selects the model for this session.
	Model string `json:"model,omitempty"`

	// Tools are the caller-supplied tools available to the session. Only
	// name, description, and parameter schema are sent over the wire.
	Tools []ToolDefinition `json:"tools,omitempty"`
}

// SendOptions configures a single prompt delivery.
type SendOptions struct {
	// Prompt is the user message text.
	Prompt string `json:"prompt"`

	// Attachments are optional binary attachments delivered with the prompt.
	Attachments []Attachment `json:"attachments,omitempty"`

	// Mode optionally selects the delivery mode. Empty leaves the choice to
	// the agent process.
	Mode DeliveryMode `json:"mode,omitempty"`
}

// Attachment is a named binary payload attached to a prompt.
type Attachment struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Data      []byte `json:"data"`
}
