package upstream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/neboloop/bedrock-openai-gateway/internal/apierror"
)

// Client is C8, the UpstreamClient: it invokes unary and streaming
// Bedrock Converse calls against Anthropic Claude models via
// anthropic-sdk-go's bedrock transport, grounded on the teacher's
// AnthropicProvider (internal/agent/ai/api_anthropic.go), rerouted from
// the direct Anthropic endpoint to Bedrock.
type Client struct {
	sdk            anthropic.Client
	requestTimeout time.Duration
	sem            chan struct{}
}

// NewClient builds a Client whose requests are signed and routed
// through Bedrock in awsRegion. requestTimeout is the default unary
// deadline (spec.md §4.7: 120s default, overridable per request).
// maxConcurrent bounds the shared upstream connection pool (spec.md
// §5); 0 or less leaves it unbounded.
func NewClient(ctx context.Context, awsRegion string, requestTimeout time.Duration, maxConcurrent int) (*Client, error) {
	sdk := anthropic.NewClient(
		bedrock.WithLoadDefaultConfig(ctx, bedrock.WithRegion(awsRegion)),
	)
	c := &Client{sdk: sdk, requestTimeout: requestTimeout}
	if maxConcurrent > 0 {
		c.sem = make(chan struct{}, maxConcurrent)
	}
	return c, nil
}

// acquire blocks until a pool slot is free or ctx is done. A nil sem
// (unbounded pool) always succeeds immediately.
func (c *Client) acquire(ctx context.Context) error {
	if c.sem == nil {
		return nil
	}
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apierror.Wrap(apierror.KindUpstreamUnavailable, "upstream connection pool saturated", ctx.Err())
	}
}

func (c *Client) release() {
	if c.sem == nil {
		return
	}
	<-c.sem
}

// Invoke performs a unary call, retrying per spec.md §4.7: up to 2
// additional attempts on upstream_unavailable/upstream_throttled with
// exponential backoff (base 250ms, factor 2, full jitter). No retry is
// attempted here for streaming once bytes have been delivered — that
// constraint is enforced by InvokeStream never retrying internally.
func (c *Client) Invoke(ctx context.Context, req *Request) (*UnaryResponse, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	params := toMessageParams(req)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		msg, err := c.sdk.Messages.New(callCtx, params)
		cancel()
		if err == nil {
			return toUnaryResponse(msg), nil
		}
		lastErr = classifyTransportError(err)
		if !isRetryable(lastErr) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// InvokeStream starts a streaming call and returns the pull-iterator
// side of the push/pull adapter described in spec.md §9. Retries apply
// only to establishing the connection; once the first event has been
// read, failures surface as a stream error rather than a silent retry
// (spec.md §4.7: "no retry once any byte of a streaming body has been
// delivered").
func (c *Client) InvokeStream(ctx context.Context, req *Request) (EventStream, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}

	params := toMessageParams(req)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				c.release()
				return nil, err
			}
		}
		stream := c.sdk.Messages.NewStreaming(ctx, params)
		if stream.Err() != nil {
			lastErr = classifyTransportError(stream.Err())
			if !isRetryable(lastErr) {
				c.release()
				return nil, lastErr
			}
			continue
		}
		// The pool slot is released when the caller closes the stream,
		// not here: a streaming call holds its slot for its full
		// duration (spec.md §5).
		return &sdkEventStream{stream: stream, release: c.release}, nil
	}
	c.release()
	return nil, lastErr
}

const maxRetries = 2
const backoffBase = 250 * time.Millisecond

func sleepBackoff(ctx context.Context, attempt int) error {
	// factor 2, full jitter: sleep uniform(0, base * 2^(attempt-1))
	max := backoffBase * time.Duration(1<<uint(attempt-1))
	d := time.Duration(rand.Int63n(int64(max) + 1))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return apierror.Wrap(apierror.KindUpstreamUnavailable, "canceled while backing off", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryable(err error) bool {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == apierror.KindUpstreamUnavailable || apiErr.Kind == apierror.KindUpstreamThrottled
}

// classifyTransportError maps a transport failure to the typed kinds
// spec.md §4.7 specifies: upstream_unavailable (connect/timeout),
// upstream_throttled (429-equivalent), upstream_server (5xx), and any
// other 4xx as invalid_request_error.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return apierror.Wrap(apierror.KindUpstreamThrottled, "upstream throttled", err)
		case apiErr.StatusCode >= 500:
			return apierror.Wrap(apierror.KindUpstreamServer, "upstream server error", err)
		case apiErr.StatusCode >= 400:
			return apierror.Wrap(apierror.KindInvalidRequest, "upstream rejected request", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierror.Wrap(apierror.KindUpstreamUnavailable, "upstream timeout", err)
	}
	return apierror.Wrap(apierror.KindUpstreamUnavailable, "upstream unreachable", err)
}

// sdkEventStream adapts ssestream.Stream[anthropic.MessageStreamEventUnion]
// to the EventStream interface, normalizing the SDK's union types into
// the flat Event shape the translate package consumes.
type sdkEventStream struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	current Event
	// openBlocks records the block opened by each content_block_start,
	// keyed by its upstream index.
	openBlocks map[int64]ContentBlock
	// inputTokens is captured off message_start's Message.Usage and
	// carried forward into the message_delta event, since Bedrock only
	// reports OutputTokens on message_delta itself.
	inputTokens int
	// release returns this stream's slot to the client's connection
	// pool semaphore. Called exactly once, from Close.
	release func()
}

func (s *sdkEventStream) Next() bool {
	if s.openBlocks == nil {
		s.openBlocks = make(map[int64]ContentBlock)
	}
	for s.stream.Next() {
		event := s.stream.Current()
		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			s.inputTokens = int(ms.Message.Usage.InputTokens)
			s.current = Event{Kind: EventMessageStart}
			return true
		case "content_block_start":
			cb := event.AsContentBlockStart()
			block := blockFromSDK(cb.ContentBlock.AsAny())
			s.openBlocks[cb.Index] = block
			s.current = Event{Kind: EventContentBlockStart, Index: int(cb.Index), Block: block}
			return true
		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			e := Event{Kind: EventContentBlockDelta, Index: int(delta.Index)}
			switch d := delta.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				e.TextDelta = d.Text
			case anthropic.InputJSONDelta:
				e.PartialJSONDelta = d.PartialJSON
			case anthropic.ThinkingDelta:
				e.TextDelta = d.Thinking
			default:
				continue // signature_delta and similar carry nothing translatable
			}
			s.current = e
			return true
		case "content_block_stop":
			cb := event.AsContentBlockStop()
			s.current = Event{Kind: EventContentBlockStop, Index: int(cb.Index)}
			return true
		case "message_delta":
			md := event.AsMessageDelta()
			s.current = Event{
				Kind:       EventMessageDelta,
				StopReason: stopReasonFromSDK(string(md.Delta.StopReason)),
				Usage:      Usage{InputTokens: s.inputTokens, OutputTokens: int(md.Usage.OutputTokens)},
			}
			return true
		case "message_stop":
			s.current = Event{Kind: EventMessageStop}
			return true
		case "error":
			return false
		default:
			continue
		}
	}
	return false
}

func (s *sdkEventStream) Current() Event { return s.current }

func (s *sdkEventStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return classifyTransportError(err)
	}
	return nil
}

func (s *sdkEventStream) Close() error {
	err := s.stream.Close()
	if s.release != nil {
		s.release()
	}
	return err
}

func blockFromSDK(block any) ContentBlock {
	switch b := block.(type) {
	case anthropic.TextBlock:
		return ContentBlock{Kind: BlockText, Text: b.Text}
	case anthropic.ToolUseBlock:
		input, _ := b.Input.MarshalJSON()
		return ContentBlock{Kind: BlockToolUse, ToolUseID: b.ID, ToolName: b.Name, ToolInput: json.RawMessage(input)}
	case anthropic.ThinkingBlock:
		return ContentBlock{Kind: BlockThinking, Text: b.Thinking}
	default:
		return ContentBlock{}
	}
}

func stopReasonFromSDK(reason string) StopReason {
	switch reason {
	case "end_turn":
		return StopEndTurn
	case "stop_sequence":
		return StopStopSequence
	case "max_tokens":
		return StopMaxTokens
	case "tool_use":
		return StopToolUse
	default:
		return StopReason(reason)
	}
}

func toUnaryResponse(msg *anthropic.Message) *UnaryResponse {
	blocks := make([]ContentBlock, 0, len(msg.Content))
	for _, c := range msg.Content {
		blocks = append(blocks, blockFromSDK(c.AsAny()))
	}
	return &UnaryResponse{
		Content:    blocks,
		StopReason: stopReasonFromSDK(string(msg.StopReason)),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
}

func toMessageParams(req *Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.ModelID),
		MaxTokens: int64(req.MaxTokens),
	}
	if len(req.System) > 0 {
		for _, s := range req.System {
			params.System = append(params.System, anthropic.TextBlockParam{Text: s})
		}
	}
	params.Messages = make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		var blocks []anthropic.ContentBlockParamUnion
		for _, b := range m.Content {
			blocks = append(blocks, blockToSDK(b))
		}
		role := anthropic.MessageParamRoleUser
		if m.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}
		params.Messages = append(params.Messages, anthropic.MessageParam{Role: role, Content: blocks})
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			var schema map[string]any
			_ = json.Unmarshal(t.InputSchema, &schema)
			toolParam := anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: schema["properties"]},
			}
			if required, ok := schema["required"].([]any); ok {
				reqStrings := make([]string, len(required))
				for i, r := range required {
					reqStrings[i], _ = r.(string)
				}
				toolParam.InputSchema.Required = reqStrings
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}
	if req.ToolChoice != nil {
		switch req.ToolChoice.Kind {
		case ToolChoiceAuto:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
		case ToolChoiceAny:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
		case ToolChoiceTool:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: req.ToolChoice.Name}}
		}
	}
	if req.ThinkingBudgetTokens > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(req.ThinkingBudgetTokens))
	}
	return params
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func blockToSDK(b ContentBlock) anthropic.ContentBlockParamUnion {
	switch b.Kind {
	case BlockText:
		return anthropic.NewTextBlock(b.Text)
	case BlockImage:
		mediaType := fmt.Sprintf("image/%s", b.ImageFormat)
		return anthropic.NewImageBlockBase64(mediaType, encodeBase64(b.ImageBytes))
	case BlockToolUse:
		var input map[string]any
		_ = json.Unmarshal(b.ToolInput, &input)
		return anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
			ID: b.ToolUseID, Name: b.ToolName, Input: input,
		}}
	case BlockToolResult:
		return anthropic.NewToolResultBlock(b.ToolUseID, b.ToolContent, false)
	default:
		return anthropic.ContentBlockParamUnion{}
	}
}
