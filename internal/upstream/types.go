// Package upstream wraps the Bedrock-routed anthropic-sdk-go client:
// the UpstreamRequest/UpstreamMessage shapes of spec.md §3, and the
// UpstreamClient (C8) that invokes unary and streaming calls against
// them.
package upstream

import "encoding/json"

// Request is the UpstreamRequest of spec.md §3, independent of the
// anthropic-sdk-go param types so the translate package can build it
// without importing the SDK directly.
type Request struct {
	ModelID              string
	System               []string
	Messages             []Message
	MaxTokens            int
	Temperature          *float64
	TopP                 *float64
	StopSequences        []string
	Tools                []ToolSpec
	ToolChoice           *ToolChoice
	ThinkingBudgetTokens int // 0 means disabled
}

// Message is the UpstreamMessage of spec.md §3: a role and an ordered
// sequence of content blocks.
type Message struct {
	Role    string // "user" | "assistant"
	Content []ContentBlock
}

// BlockKind distinguishes the variant a ContentBlock carries.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockImage      BlockKind = "image"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
	BlockThinking   BlockKind = "thinking"
)

// ContentBlock is the sum-type-over-variant content unit spec.md §9
// recommends over an inheritance hierarchy. Exactly the fields for Kind
// are populated.
type ContentBlock struct {
	Kind BlockKind

	Text string // BlockText, BlockThinking

	ImageFormat string // BlockImage: "jpeg"|"png"|"gif"|"webp"
	ImageBytes  []byte // BlockImage

	ToolUseID   string          // BlockToolUse, BlockToolResult
	ToolName    string          // BlockToolUse
	ToolInput   json.RawMessage // BlockToolUse
	ToolContent string          // BlockToolResult
}

// ToolSpec is one tool definition sent in a Request's Tools.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolChoiceKind distinguishes the variant a ToolChoice carries.
type ToolChoiceKind string

const (
	ToolChoiceAuto ToolChoiceKind = "auto"
	ToolChoiceAny  ToolChoiceKind = "any"
	ToolChoiceTool ToolChoiceKind = "tool"
)

// ToolChoice mirrors the upstream toolConfig.toolChoice variants spec.md
// §4.4 step 8 maps from the client's tool_choice field.
type ToolChoice struct {
	Kind ToolChoiceKind
	Name string // ToolChoiceTool only
}

// StopReason is the upstream terminal reason, normalized by the caller
// through FinishReason before it reaches a client response.
type StopReason string

const (
	StopEndTurn         StopReason = "end_turn"
	StopStopSequence    StopReason = "stop_sequence"
	StopMaxTokens       StopReason = "max_tokens"
	StopToolUse         StopReason = "tool_use"
	StopContentFiltered StopReason = "content_filtered"
)

// Usage is the upstream token accounting block.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// UnaryResponse is a terminal, non-streamed upstream response.
type UnaryResponse struct {
	Content    []ContentBlock
	StopReason StopReason
	Usage      Usage
}

// Event is one item of the upstream event stream, spec.md §4.6's event
// vocabulary normalized away from the anthropic-sdk-go SSE union type.
type Event struct {
	Kind EventKind

	// ContentBlockStart / ContentBlockStop / ContentBlockDelta
	Index int
	Block ContentBlock // ContentBlockStart only: Kind + identifying fields, no accumulated text

	// ContentBlockDelta
	TextDelta        string // BlockText, BlockThinking deltas
	PartialJSONDelta string // BlockToolUse input_json_delta

	// MessageDelta / MessageStop
	StopReason StopReason
	Usage      Usage
}

// EventKind distinguishes the variant an Event carries.
type EventKind string

const (
	EventMessageStart      EventKind = "message_start"
	EventContentBlockStart EventKind = "content_block_start"
	EventContentBlockDelta EventKind = "content_block_delta"
	EventContentBlockStop  EventKind = "content_block_stop"
	EventMessageDelta      EventKind = "message_delta"
	EventMessageStop       EventKind = "message_stop"
)

// EventStream is the pull-iterator side of the push/pull adapter spec.md
// §9 describes. It mirrors anthropic-sdk-go's ssestream.Stream[T].
type EventStream interface {
	Next() bool
	Current() Event
	Err() error
	Close() error
}
