// Package openai defines hand-rolled OpenAI Chat Completions wire types.
// The official github.com/openai/openai-go SDK is an outbound client
// builder (param.Opt[T] wrapper fields tuned for constructing a call to
// OpenAI); it is not suited to tolerant inbound decoding of arbitrary
// client-supplied JSON, which is this gateway's actual job. The
// envoyproxy/ai-gateway project hand-rolls the same wire types for the
// same reason (see other_examples' xiaolin593-ai-gateway translator);
// this package follows that precedent.
package openai

import "encoding/json"

// ChatRequest is the inbound shape of POST /v1/chat/completions,
// spec.md §3 "ChatRequest (OpenAI-shape)".
type ChatRequest struct {
	Model       string          `json:"model"`
	Messages    []Message       `json:"messages"`
	Stream      bool            `json:"stream,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stop        *StopSeq        `json:"stop,omitempty"`
	Tools       []Tool          `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
	Thinking    *Thinking       `json:"thinking,omitempty"`
}

// Thinking is the recognized extra option enabling extended thinking.
type Thinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

// StopSeq decodes either a single string or an array of strings into a
// normalized slice, matching the "string or sequence" shape spec.md §3
// describes for ChatRequest.stop.
type StopSeq struct {
	Values []string
}

func (s *StopSeq) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			s.Values = []string{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	s.Values = many
	return nil
}

func (s StopSeq) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values)
}

// Message is one entry of ChatRequest.Messages.
type Message struct {
	Role       string     `json:"role"`
	Content    *Content   `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// Content is either a plain string or an ordered sequence of typed
// parts. Exactly one of Text or Parts is populated after decode.
type Content struct {
	Text  string
	Parts []ContentPart
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	c.Parts = parts
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// IsEmpty reports whether the content carries neither text nor parts,
// as distinct from carrying an explicit empty string.
func (c *Content) IsEmpty() bool {
	return c == nil || (c.Text == "" && len(c.Parts) == 0)
}

// ContentPart is one element of a multi-part Content value.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries either a data URL or an http(s) URL.
type ImageURL struct {
	URL string `json:"url"`
}

// ToolCall is one entry of an assistant message's tool_calls.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolCallFunc `json:"function"`
}

// ToolCallFunc carries the invoked function name and its JSON-encoded
// argument string (never pre-parsed — the wire format keeps arguments
// as a string, per spec.md §3).
type ToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is one entry of ChatRequest.Tools.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable function's name, description, and
// JSON Schema parameters.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolChoiceNamed is the decoded shape of {"type":"function","function":{"name":...}}.
type ToolChoiceNamed struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// ChatCompletion is the unary response body, spec.md §4.5.
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one entry of ChatCompletion.Choices; this gateway ever
// emits a single choice (index 0), per spec.md §4.5.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a unary response.
type ResponseMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// Thinking is an extension field outside OpenAI's schema (spec.md §9).
	Thinking string `json:"thinking,omitempty"`
}

// Usage is the token accounting block shared by unary responses and the
// final streaming chunk.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one SSE "data:" payload of a streaming
// response, spec.md §4.6.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice is one entry of ChatCompletionChunk.Choices.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental content of one streaming chunk.
type Delta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
	// Thinking is an extension field outside OpenAI's schema (spec.md §9).
	Thinking string `json:"thinking,omitempty"`
}

// ToolCallDelta is an incremental tool_calls entry within a Delta.
type ToolCallDelta struct {
	Index    int                `json:"index"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function *ToolCallFuncDelta `json:"function,omitempty"`
}

// ToolCallFuncDelta is the incremental function name/arguments pair
// within a ToolCallDelta.
type ToolCallFuncDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ModelsResponse is the body of GET /v1/models.
type ModelsResponse struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// ModelInfo is one entry of ModelsResponse.Data.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}
