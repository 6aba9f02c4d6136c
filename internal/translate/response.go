package translate

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/neboloop/bedrock-openai-gateway/internal/openai"
	"github.com/neboloop/bedrock-openai-gateway/internal/upstream"
)

const base62Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomBase62 returns a random string of n characters drawn from the
// base62 alphabet, used to build unary chatcmpl-<id> ids. Streaming
// chunk ids are built from a UUID instead (internal/logic/chat).
func randomBase62(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(base62Alphabet))))
		if err != nil {
			sb.WriteByte(base62Alphabet[0])
			continue
		}
		sb.WriteByte(base62Alphabet[idx.Int64()])
	}
	return sb.String()
}

// FinishReason maps an upstream stop reason to the OpenAI finish_reason
// vocabulary, spec.md §4.5.
func FinishReason(reason upstream.StopReason) string {
	switch reason {
	case upstream.StopEndTurn, upstream.StopStopSequence:
		return "stop"
	case upstream.StopMaxTokens:
		return "length"
	case upstream.StopToolUse:
		return "tool_calls"
	case upstream.StopContentFiltered:
		return "content_filter"
	default:
		return "stop"
	}
}

// ResponseTranslator implements C6: a terminal upstream.UnaryResponse
// becomes an openai.ChatCompletion.
type ResponseTranslator struct{}

// NewResponseTranslator returns a ResponseTranslator. It holds no state.
func NewResponseTranslator() *ResponseTranslator { return &ResponseTranslator{} }

// Translate applies spec.md §4.5's rules. clientModel is the
// client-supplied model id (echoed back, not the resolved upstream id).
func (ResponseTranslator) Translate(resp *upstream.UnaryResponse, clientModel string) *openai.ChatCompletion {
	var text strings.Builder
	var thinking strings.Builder
	var toolCalls []openai.ToolCall
	hasText := false

	for _, block := range resp.Content {
		switch block.Kind {
		case upstream.BlockText:
			text.WriteString(block.Text)
			hasText = true
		case upstream.BlockThinking:
			thinking.WriteString(block.Text)
		case upstream.BlockToolUse:
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   block.ToolUseID,
				Type: "function",
				Function: openai.ToolCallFunc{
					Name:      block.ToolName,
					Arguments: string(block.ToolInput),
				},
			})
		}
	}

	var content *string
	if hasText || len(toolCalls) == 0 {
		s := text.String()
		content = &s
	}

	msg := openai.ResponseMessage{
		Role:      "assistant",
		Content:   content,
		ToolCalls: toolCalls,
		Thinking:  thinking.String(),
	}

	return &openai.ChatCompletion{
		ID:      "chatcmpl-" + randomBase62(24),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   clientModel,
		Choices: []openai.Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: FinishReason(resp.StopReason),
		}},
		Usage: openai.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}
