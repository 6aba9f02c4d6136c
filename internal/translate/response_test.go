package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/bedrock-openai-gateway/internal/upstream"
)

func TestResponseTranslateTextOnly(t *testing.T) {
	resp := &upstream.UnaryResponse{
		Content:    []upstream.ContentBlock{{Kind: upstream.BlockText, Text: "hello there"}},
		StopReason: upstream.StopEndTurn,
		Usage:      upstream.Usage{InputTokens: 10, OutputTokens: 5},
	}
	out := NewResponseTranslator().Translate(resp, "gpt-4o")
	require.Len(t, out.Choices, 1)
	require.NotNil(t, out.Choices[0].Message.Content)
	assert.Equal(t, "hello there", *out.Choices[0].Message.Content)
	assert.Equal(t, "stop", out.Choices[0].FinishReason)
	assert.Equal(t, "gpt-4o", out.Model)
	assert.Equal(t, 15, out.Usage.TotalTokens)
}

func TestResponseTranslateToolCallsOnlyGivesNullContent(t *testing.T) {
	resp := &upstream.UnaryResponse{
		Content: []upstream.ContentBlock{{
			Kind: upstream.BlockToolUse, ToolUseID: "t1", ToolName: "get_weather", ToolInput: []byte(`{"city":"nyc"}`),
		}},
		StopReason: upstream.StopToolUse,
	}
	out := NewResponseTranslator().Translate(resp, "m")
	assert.Nil(t, out.Choices[0].Message.Content)
	require.Len(t, out.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "get_weather", out.Choices[0].Message.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"city":"nyc"}`, out.Choices[0].Message.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "tool_calls", out.Choices[0].FinishReason)
}

func TestResponseTranslateTextAndToolCallsKeepsContent(t *testing.T) {
	resp := &upstream.UnaryResponse{
		Content: []upstream.ContentBlock{
			{Kind: upstream.BlockText, Text: "let me check"},
			{Kind: upstream.BlockToolUse, ToolUseID: "t1", ToolName: "f", ToolInput: []byte(`{}`)},
		},
	}
	out := NewResponseTranslator().Translate(resp, "m")
	require.NotNil(t, out.Choices[0].Message.Content)
	assert.Equal(t, "let me check", *out.Choices[0].Message.Content)
	assert.Len(t, out.Choices[0].Message.ToolCalls, 1)
}

func TestResponseTranslateCollectsThinkingSeparately(t *testing.T) {
	resp := &upstream.UnaryResponse{
		Content: []upstream.ContentBlock{
			{Kind: upstream.BlockThinking, Text: "reasoning..."},
			{Kind: upstream.BlockText, Text: "answer"},
		},
	}
	out := NewResponseTranslator().Translate(resp, "m")
	assert.Equal(t, "reasoning...", out.Choices[0].Message.Thinking)
	require.NotNil(t, out.Choices[0].Message.Content)
	assert.Equal(t, "answer", *out.Choices[0].Message.Content)
}

func TestFinishReasonMapping(t *testing.T) {
	cases := map[upstream.StopReason]string{
		upstream.StopEndTurn:         "stop",
		upstream.StopStopSequence:    "stop",
		upstream.StopMaxTokens:       "length",
		upstream.StopToolUse:         "tool_calls",
		upstream.StopContentFiltered: "content_filter",
	}
	for reason, want := range cases {
		assert.Equal(t, want, FinishReason(reason))
	}
}

func TestResponseTranslateGeneratesUniqueIDs(t *testing.T) {
	resp := &upstream.UnaryResponse{Content: []upstream.ContentBlock{{Kind: upstream.BlockText, Text: "x"}}}
	out1 := NewResponseTranslator().Translate(resp, "m")
	out2 := NewResponseTranslator().Translate(resp, "m")
	assert.NotEqual(t, out1.ID, out2.ID)
}
