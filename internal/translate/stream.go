package translate

import (
	"github.com/neboloop/bedrock-openai-gateway/internal/apierror"
	"github.com/neboloop/bedrock-openai-gateway/internal/openai"
	"github.com/neboloop/bedrock-openai-gateway/internal/upstream"
)

// Sink is the push side of the pull-iterator-to-push-sink adapter
// spec.md §9 describes. StreamTranslator pulls from an
// upstream.EventStream and pushes through a Sink in strict event order.
type Sink interface {
	// EmitChunk writes one SSE "data: <json>\n\n" event.
	EmitChunk(chunk *openai.ChatCompletionChunk) error
	// EmitError writes the out-of-band "event: error\ndata: <json>\n\n"
	// event used by the mid-stream failure protocol (spec.md §4.6).
	EmitError(body apierror.Body) error
	// EmitDone writes the literal "data: [DONE]\n\n" terminator.
	EmitDone() error
}

// blockState tracks the per-content-block bookkeeping spec.md §4.6
// requires: kind, and — for tool_use blocks — the dense tool_call_index
// assigned on first sight.
type blockState struct {
	kind          upstream.BlockKind
	toolCallIndex int
}

// StreamTranslator implements C7: it consumes an upstream.EventStream
// in order and pushes OpenAI-shaped chunks to a Sink, preserving
// per-choice ordering and emitting a well-formed terminator.
type StreamTranslator struct {
	id          string
	created     int64
	clientModel string

	roleSent     bool
	blocks       map[int]*blockState
	nextToolIdx  int
	finishSeen   bool
	finishReason upstream.StopReason
	usage        *upstream.Usage
}

// NewStreamTranslator begins a new per-stream translation session. id,
// created, and clientModel are fixed across every chunk the session
// emits, per spec.md §4.6's "per-stream state".
func NewStreamTranslator(id string, created int64, clientModel string) *StreamTranslator {
	return &StreamTranslator{
		id:          id,
		created:     created,
		clientModel: clientModel,
		blocks:      make(map[int]*blockState),
	}
}

// Run drains es, pushing chunks to sink in strict upstream event order,
// until es is exhausted or a mid-stream failure occurs. It never
// returns an error for a well-formed stream; errors indicate a failure
// to write to sink itself (e.g. a broken client connection).
func (t *StreamTranslator) Run(es upstream.EventStream, sink Sink) error {
	for es.Next() {
		event := es.Current()
		if err := t.handleEvent(event, sink); err != nil {
			return err
		}
		if t.finishSeen {
			return sink.EmitDone()
		}
	}
	if err := es.Err(); err != nil {
		// Mid-stream failure: the connection ended before messageStop.
		// spec.md §4.6 requires both a synthetic terminal chunk (so a
		// client only reading the chunk stream still sees a
		// finish_reason) and the out-of-band error event.
		errReason := "error"
		if emitErr := sink.EmitChunk(t.chunk(openai.Delta{}, &errReason, nil)); emitErr != nil {
			return emitErr
		}
		_, body := apierror.Render(err)
		if emitErr := sink.EmitError(body); emitErr != nil {
			return emitErr
		}
		return sink.EmitDone()
	}
	// Upstream closed cleanly without a messageStop event: treat as done.
	return sink.EmitDone()
}

func (t *StreamTranslator) handleEvent(event upstream.Event, sink Sink) error {
	switch event.Kind {
	case upstream.EventMessageStart:
		t.roleSent = true
		return sink.EmitChunk(t.chunk(openai.Delta{Role: "assistant"}, nil, nil))

	case upstream.EventContentBlockStart:
		st := &blockState{kind: event.Block.Kind}
		t.blocks[event.Index] = st
		switch event.Block.Kind {
		case upstream.BlockToolUse:
			st.toolCallIndex = t.nextToolIdx
			t.nextToolIdx++
			return sink.EmitChunk(t.chunk(openai.Delta{
				ToolCalls: []openai.ToolCallDelta{{
					Index: st.toolCallIndex,
					ID:    event.Block.ToolUseID,
					Type:  "function",
					Function: &openai.ToolCallFuncDelta{
						Name:      event.Block.ToolName,
						Arguments: "",
					},
				}},
			}, nil, nil))
		default:
			return nil // text, thinking: no emission on block start
		}

	case upstream.EventContentBlockDelta:
		st := t.blocks[event.Index]
		if st == nil {
			return nil
		}
		switch st.kind {
		case upstream.BlockText:
			return sink.EmitChunk(t.chunk(openai.Delta{Content: event.TextDelta}, nil, nil))
		case upstream.BlockThinking:
			return sink.EmitChunk(t.chunk(openai.Delta{Thinking: event.TextDelta}, nil, nil))
		case upstream.BlockToolUse:
			return sink.EmitChunk(t.chunk(openai.Delta{
				ToolCalls: []openai.ToolCallDelta{{
					Index:    st.toolCallIndex,
					Function: &openai.ToolCallFuncDelta{Arguments: event.PartialJSONDelta},
				}},
			}, nil, nil))
		}
		return nil

	case upstream.EventContentBlockStop:
		return nil // no emission

	case upstream.EventMessageDelta:
		t.finishReason = event.StopReason
		usage := event.Usage
		t.usage = &usage
		return nil

	case upstream.EventMessageStop:
		t.finishSeen = true
		reason := FinishReason(t.finishReason)
		var usage *openai.Usage
		if t.usage != nil {
			usage = &openai.Usage{
				PromptTokens:     t.usage.InputTokens,
				CompletionTokens: t.usage.OutputTokens,
				TotalTokens:      t.usage.InputTokens + t.usage.OutputTokens,
			}
		}
		return sink.EmitChunk(t.chunk(openai.Delta{}, &reason, usage))
	}
	return nil
}

// Usage returns the token usage captured from the upstream
// message_delta event, if one was observed before Run returned. ok is
// false for a stream that failed or closed before any message_delta
// (so no usage is available to record).
func (t *StreamTranslator) Usage() (usage upstream.Usage, ok bool) {
	if t.usage == nil {
		return upstream.Usage{}, false
	}
	return *t.usage, true
}

// chunk builds a ChatCompletionChunk carrying delta (and, on the
// terminal chunk, a finish reason and usage) against this session's
// fixed id/created/model.
func (t *StreamTranslator) chunk(delta openai.Delta, finishReason *string, usage *openai.Usage) *openai.ChatCompletionChunk {
	return &openai.ChatCompletionChunk{
		ID:      t.id,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   t.clientModel,
		Choices: []openai.ChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finishReason,
		}},
		Usage: usage,
	}
}
