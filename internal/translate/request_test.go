package translate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/bedrock-openai-gateway/internal/openai"
	"github.com/neboloop/bedrock-openai-gateway/internal/upstream"
)

func allFeatures() Features {
	return Features{Vision: true, ToolUse: true, ExtendedThinking: true}
}

func textContent(s string) *openai.Content { return &openai.Content{Text: s} }

func TestTranslateHoistsSystemMessages(t *testing.T) {
	tr := NewRequestTranslator(allFeatures(), nil)
	req := &openai.ChatRequest{
		Model: "claude-sonnet-4-5-20250929",
		Messages: []openai.Message{
			{Role: "system", Content: textContent("be terse")},
			{Role: "user", Content: textContent("hi")},
		},
	}
	out, err := tr.Translate(context.Background(), req, "upstream-id")
	require.NoError(t, err)
	assert.Equal(t, []string{"be terse"}, out.System)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "user", out.Messages[0].Role)
}

func TestTranslateRewritesToolMessageAsUserToolResult(t *testing.T) {
	tr := NewRequestTranslator(allFeatures(), nil)
	req := &openai.ChatRequest{
		Model: "m",
		Messages: []openai.Message{
			{Role: "user", Content: textContent("what's the weather")},
			{Role: "assistant", ToolCalls: []openai.ToolCall{{
				ID:   "call_1",
				Type: "function",
				Function: openai.ToolCallFunc{Name: "get_weather", Arguments: `{"city":"nyc"}`},
			}}},
			{Role: "tool", ToolCallID: "call_1", Content: textContent("72F and sunny")},
		},
	}
	out, err := tr.Translate(context.Background(), req, "m")
	require.NoError(t, err)
	require.Len(t, out.Messages, 3)

	assistant := out.Messages[1]
	assert.Equal(t, "assistant", assistant.Role)
	require.Len(t, assistant.Content, 1)
	assert.Equal(t, upstream.BlockToolUse, assistant.Content[0].Kind)
	assert.Equal(t, "get_weather", assistant.Content[0].ToolName)
	assert.Equal(t, "call_1", assistant.Content[0].ToolUseID)

	toolResultMsg := out.Messages[2]
	assert.Equal(t, "user", toolResultMsg.Role)
	require.Len(t, toolResultMsg.Content, 1)
	assert.Equal(t, upstream.BlockToolResult, toolResultMsg.Content[0].Kind)
	assert.Equal(t, "call_1", toolResultMsg.Content[0].ToolUseID)
	assert.Equal(t, "72F and sunny", toolResultMsg.Content[0].ToolContent)
}

func TestTranslateCoalescesAdjacentSameRoleMessages(t *testing.T) {
	tr := NewRequestTranslator(allFeatures(), nil)
	req := &openai.ChatRequest{
		Model: "m",
		Messages: []openai.Message{
			{Role: "user", Content: textContent("part one")},
			{Role: "assistant", ToolCalls: []openai.ToolCall{{
				ID: "c1", Function: openai.ToolCallFunc{Name: "f", Arguments: `{}`},
			}}},
			{Role: "tool", ToolCallID: "c1", Content: textContent("result")},
			{Role: "user", Content: textContent("part two")},
		},
	}
	out, err := tr.Translate(context.Background(), req, "m")
	require.NoError(t, err)
	// "tool" rewrites to a user message, which must coalesce with the
	// trailing literal user message into one upstream message: user,
	// assistant, then the merged tool-result+text user message.
	require.Len(t, out.Messages, 3)
	assert.Equal(t, "user", out.Messages[2].Role)
	require.Len(t, out.Messages[2].Content, 2)
}

func TestTranslateRejectsToolsWhenDisabled(t *testing.T) {
	tr := NewRequestTranslator(Features{}, nil)
	req := &openai.ChatRequest{
		Model:    "m",
		Messages: []openai.Message{{Role: "user", Content: textContent("hi")}},
		Tools:    []openai.Tool{{Type: "function", Function: openai.ToolFunction{Name: "f"}}},
	}
	_, err := tr.Translate(context.Background(), req, "m")
	require.Error(t, err)
}

func TestTranslateToolChoiceNoneDropsTools(t *testing.T) {
	tr := NewRequestTranslator(allFeatures(), nil)
	req := &openai.ChatRequest{
		Model:      "m",
		Messages:   []openai.Message{{Role: "user", Content: textContent("hi")}},
		Tools:      []openai.Tool{{Type: "function", Function: openai.ToolFunction{Name: "f"}}},
		ToolChoice: json.RawMessage(`"none"`),
	}
	out, err := tr.Translate(context.Background(), req, "m")
	require.NoError(t, err)
	assert.Empty(t, out.Tools)
	assert.Nil(t, out.ToolChoice)
}

func TestTranslateToolChoiceRequiredMapsToAny(t *testing.T) {
	tr := NewRequestTranslator(allFeatures(), nil)
	req := &openai.ChatRequest{
		Model:      "m",
		Messages:   []openai.Message{{Role: "user", Content: textContent("hi")}},
		Tools:      []openai.Tool{{Type: "function", Function: openai.ToolFunction{Name: "f"}}},
		ToolChoice: json.RawMessage(`"required"`),
	}
	out, err := tr.Translate(context.Background(), req, "m")
	require.NoError(t, err)
	require.NotNil(t, out.ToolChoice)
	assert.Equal(t, upstream.ToolChoiceAny, out.ToolChoice.Kind)
}

func TestTranslateEmptyStopListOmitsStopSequences(t *testing.T) {
	tr := NewRequestTranslator(allFeatures(), nil)
	req := &openai.ChatRequest{
		Model:    "m",
		Messages: []openai.Message{{Role: "user", Content: textContent("hi")}},
		Stop:     &openai.StopSeq{Values: nil},
	}
	out, err := tr.Translate(context.Background(), req, "m")
	require.NoError(t, err)
	assert.Nil(t, out.StopSequences)
}

func TestTranslateThinkingRejectsExplicitTemperature(t *testing.T) {
	tr := NewRequestTranslator(allFeatures(), nil)
	temp := 0.7
	req := &openai.ChatRequest{
		Model:       "m",
		Messages:    []openai.Message{{Role: "user", Content: textContent("hi")}},
		Temperature: &temp,
		Thinking:    &openai.Thinking{Type: "enabled", BudgetTokens: 1024},
	}
	_, err := tr.Translate(context.Background(), req, "m")
	require.Error(t, err)
}

func TestTranslateThinkingSetsBudget(t *testing.T) {
	tr := NewRequestTranslator(allFeatures(), nil)
	req := &openai.ChatRequest{
		Model:    "m",
		Messages: []openai.Message{{Role: "user", Content: textContent("hi")}},
		Thinking: &openai.Thinking{Type: "enabled", BudgetTokens: 2048},
	}
	out, err := tr.Translate(context.Background(), req, "m")
	require.NoError(t, err)
	assert.Equal(t, 2048, out.ThinkingBudgetTokens)
}

func TestTranslateRejectsOutOfRangeTemperature(t *testing.T) {
	tr := NewRequestTranslator(allFeatures(), nil)
	temp := 3.0
	req := &openai.ChatRequest{
		Model:       "m",
		Messages:    []openai.Message{{Role: "user", Content: textContent("hi")}},
		Temperature: &temp,
	}
	_, err := tr.Translate(context.Background(), req, "m")
	require.Error(t, err)
}

func TestTranslateRejectsEmptyMessages(t *testing.T) {
	tr := NewRequestTranslator(allFeatures(), nil)
	req := &openai.ChatRequest{Model: "m"}
	_, err := tr.Translate(context.Background(), req, "m")
	require.Error(t, err)
}

func TestTranslateDataURLImage(t *testing.T) {
	tr := NewRequestTranslator(allFeatures(), nil)
	// 1x1 transparent PNG, base64-encoded.
	const png1x1 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNk+A8AAQUBAScY42YAAAAASUVORK5CYII="
	req := &openai.ChatRequest{
		Model: "m",
		Messages: []openai.Message{{
			Role: "user",
			Content: &openai.Content{Parts: []openai.ContentPart{
				{Type: "text", Text: "what is this"},
				{Type: "image_url", ImageURL: &openai.ImageURL{URL: "data:image/png;base64," + png1x1}},
			}},
		}},
	}
	out, err := tr.Translate(context.Background(), req, "m")
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	require.Len(t, out.Messages[0].Content, 2)
	assert.Equal(t, upstream.BlockImage, out.Messages[0].Content[1].Kind)
	assert.Equal(t, "png", out.Messages[0].Content[1].ImageFormat)
	assert.NotEmpty(t, out.Messages[0].Content[1].ImageBytes)
}

func TestTranslateImageRejectedWhenVisionDisabled(t *testing.T) {
	tr := NewRequestTranslator(Features{ToolUse: true, ExtendedThinking: true}, nil)
	req := &openai.ChatRequest{
		Model: "m",
		Messages: []openai.Message{{
			Role: "user",
			Content: &openai.Content{Parts: []openai.ContentPart{
				{Type: "image_url", ImageURL: &openai.ImageURL{URL: "data:image/png;base64,AAAA"}},
			}},
		}},
	}
	_, err := tr.Translate(context.Background(), req, "m")
	require.Error(t, err)
}
