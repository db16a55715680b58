package domain

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage returns a message authored by the user.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns a message authored by the model.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Conversation is an ordered list of messages. Roles alternate by convention
// but this is not enforced. Append never mutates the receiver's backing array,
// so a conversation handed to a provider stays stable.
type Conversation []Message

// Append returns a new conversation with msgs added at the end.
func (c Conversation) Append(msgs ...Message) Conversation {
	out := make(Conversation, 0, len(c)+len(msgs))
	out = append(out, c...)
	return append(out, msgs...)
}

// Clone returns a copy of the conversation.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// StopReason is the provider-reported reason a stream ended.
type StopReason string

const (
	StopReasonEndTurn      StopReason = "end_turn"
	StopReasonMaxTokens    StopReason = "max_tokens"
	StopReasonStopSequence StopReason = "stop_sequence"
	StopReasonOther        StopReason = "other"
)

// ParseStopReason maps a provider string onto the StopReason enumeration.
// Empty and unknown values map to StopReasonOther.
func ParseStopReason(s string) StopReason {
	switch StopReason(s) {
	case StopReasonEndTurn, StopReasonMaxTokens, StopReasonStopSequence:
		return StopReason(s)
	default:
		return StopReasonOther
	}
}

// Truncated reports whether the stream hit the output length cap.
func (s StopReason) Truncated() bool {
	return s == StopReasonMaxTokens
}

// EventKind tags a StreamEvent.
type EventKind int

const (
	// EventContentDelta carries incremental text to append.
	EventContentDelta EventKind = iota + 1
	// EventMessageDelta carries the end-of-turn stop reason.
	EventMessageDelta
)

// StreamEvent is one incremental unit of model output. Exactly one of Text
// or StopReason is meaningful depending on Kind. Err reports an in-stream
// transport failure; no further events follow it.
type StreamEvent struct {
	Kind       EventKind
	Text       string
	StopReason StopReason
	Err        error
}

// ContentDelta builds a content delta event.
func ContentDelta(text string) StreamEvent {
	return StreamEvent{Kind: EventContentDelta, Text: text}
}

// MessageDelta builds a message delta event.
func MessageDelta(reason StopReason) StreamEvent {
	return StreamEvent{Kind: EventMessageDelta, StopReason: reason}
}

// ReasoningConfig enables extended thinking with a token budget.
type ReasoningConfig struct {
	BudgetTokens int `json:"budget_tokens"`
}

// InvokeRequest is a single streaming call to a model.
type InvokeRequest struct {
	Model           string           `json:"model"`
	Messages        Conversation     `json:"messages"`
	MaxOutputTokens int              `json:"max_output_tokens,omitempty"`
	Temperature     float32          `json:"temperature"`
	Reasoning       *ReasoningConfig `json:"reasoning,omitempty"`
	UserAgent       string           `json:"-"`
}
