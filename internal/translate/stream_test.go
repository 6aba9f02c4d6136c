package translate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/bedrock-openai-gateway/internal/apierror"
	"github.com/neboloop/bedrock-openai-gateway/internal/openai"
	"github.com/neboloop/bedrock-openai-gateway/internal/upstream"
)

// fakeEventStream replays a fixed slice of upstream.Event, optionally
// ending with an error instead of a clean close.
type fakeEventStream struct {
	events []upstream.Event
	pos    int
	cur    upstream.Event
	err    error
	closed bool
}

func (f *fakeEventStream) Next() bool {
	if f.pos >= len(f.events) {
		return false
	}
	f.cur = f.events[f.pos]
	f.pos++
	return true
}
func (f *fakeEventStream) Current() upstream.Event { return f.cur }
func (f *fakeEventStream) Err() error              { return f.err }
func (f *fakeEventStream) Close() error            { f.closed = true; return nil }

// recordingSink captures every emission in order for assertion.
type recordingSink struct {
	chunks []*openai.ChatCompletionChunk
	errs   []apierror.Body
	done   bool
}

func (s *recordingSink) EmitChunk(c *openai.ChatCompletionChunk) error {
	s.chunks = append(s.chunks, c)
	return nil
}
func (s *recordingSink) EmitError(b apierror.Body) error {
	s.errs = append(s.errs, b)
	return nil
}
func (s *recordingSink) EmitDone() error {
	s.done = true
	return nil
}

func TestStreamTranslatorEmitsRoleThenTextThenStop(t *testing.T) {
	es := &fakeEventStream{events: []upstream.Event{
		{Kind: upstream.EventMessageStart},
		{Kind: upstream.EventContentBlockStart, Index: 0, Block: upstream.ContentBlock{Kind: upstream.BlockText}},
		{Kind: upstream.EventContentBlockDelta, Index: 0, TextDelta: "Hel"},
		{Kind: upstream.EventContentBlockDelta, Index: 0, TextDelta: "lo"},
		{Kind: upstream.EventContentBlockStop, Index: 0},
		{Kind: upstream.EventMessageDelta, StopReason: upstream.StopEndTurn, Usage: upstream.Usage{InputTokens: 3, OutputTokens: 2}},
		{Kind: upstream.EventMessageStop},
	}}
	sink := &recordingSink{}
	tr := NewStreamTranslator("chatcmpl-1", 1000, "gpt-4o")
	require.NoError(t, tr.Run(es, sink))

	require.True(t, sink.done)
	require.Len(t, sink.chunks, 4) // role, "Hel", "lo", terminal
	assert.Equal(t, "assistant", sink.chunks[0].Choices[0].Delta.Role)
	assert.Equal(t, "Hel", sink.chunks[1].Choices[0].Delta.Content)
	assert.Equal(t, "lo", sink.chunks[2].Choices[0].Delta.Content)

	terminal := sink.chunks[3]
	require.NotNil(t, terminal.Choices[0].FinishReason)
	assert.Equal(t, "stop", *terminal.Choices[0].FinishReason)
	require.NotNil(t, terminal.Usage)
	assert.Equal(t, 5, terminal.Usage.TotalTokens)

	for _, c := range sink.chunks {
		assert.Equal(t, "chatcmpl-1", c.ID)
		assert.Equal(t, int64(1000), c.Created)
	}

	streamUsage, ok := tr.Usage()
	require.True(t, ok)
	assert.Equal(t, 3, streamUsage.InputTokens)
	assert.Equal(t, 2, streamUsage.OutputTokens)
}

func TestStreamTranslatorUsageNotOKWhenNeverObserved(t *testing.T) {
	tr := NewStreamTranslator("id", 0, "m")
	_, ok := tr.Usage()
	assert.False(t, ok)
}

func TestStreamTranslatorAssignsDenseToolCallIndices(t *testing.T) {
	es := &fakeEventStream{events: []upstream.Event{
		{Kind: upstream.EventMessageStart},
		{Kind: upstream.EventContentBlockStart, Index: 0, Block: upstream.ContentBlock{Kind: upstream.BlockToolUse, ToolUseID: "t1", ToolName: "f1"}},
		{Kind: upstream.EventContentBlockDelta, Index: 0, PartialJSONDelta: `{"a":1`},
		{Kind: upstream.EventContentBlockDelta, Index: 0, PartialJSONDelta: `}`},
		{Kind: upstream.EventContentBlockStop, Index: 0},
		{Kind: upstream.EventContentBlockStart, Index: 1, Block: upstream.ContentBlock{Kind: upstream.BlockToolUse, ToolUseID: "t2", ToolName: "f2"}},
		{Kind: upstream.EventContentBlockStop, Index: 1},
		{Kind: upstream.EventMessageDelta, StopReason: upstream.StopToolUse},
		{Kind: upstream.EventMessageStop},
	}}
	sink := &recordingSink{}
	tr := NewStreamTranslator("id", 0, "m")
	require.NoError(t, tr.Run(es, sink))

	// First tool_use block start: index 0.
	assert.Equal(t, 0, sink.chunks[1].Choices[0].Delta.ToolCalls[0].Index)
	assert.Equal(t, "t1", sink.chunks[1].Choices[0].Delta.ToolCalls[0].ID)
	// Second tool_use block start: index 1, dense regardless of upstream Index.
	assert.Equal(t, 1, sink.chunks[4].Choices[0].Delta.ToolCalls[0].Index)
	assert.Equal(t, "t2", sink.chunks[4].Choices[0].Delta.ToolCalls[0].ID)
}

func TestStreamTranslatorEmitsErrorThenDoneOnMidStreamFailure(t *testing.T) {
	es := &fakeEventStream{
		events: []upstream.Event{{Kind: upstream.EventMessageStart}},
		err:    errors.New("connection reset"),
	}
	sink := &recordingSink{}
	tr := NewStreamTranslator("id", 0, "m")
	require.NoError(t, tr.Run(es, sink))

	require.Len(t, sink.chunks, 2) // role, then the synthetic error-finish chunk
	errorChunk := sink.chunks[1]
	require.NotNil(t, errorChunk.Choices[0].FinishReason)
	assert.Equal(t, "error", *errorChunk.Choices[0].FinishReason)

	require.Len(t, sink.errs, 1)
	assert.Equal(t, "server_error", sink.errs[0].ErrorInfo.Type)
	assert.True(t, sink.done, "a well-formed terminator must still follow a mid-stream failure")
}

func TestStreamTranslatorEmitsDoneOnCleanEOFWithoutMessageStop(t *testing.T) {
	es := &fakeEventStream{events: []upstream.Event{{Kind: upstream.EventMessageStart}}}
	sink := &recordingSink{}
	tr := NewStreamTranslator("id", 0, "m")
	require.NoError(t, tr.Run(es, sink))
	assert.True(t, sink.done)
	assert.Empty(t, sink.errs)
}
