// Package translate implements C5 (RequestTranslator), C6
// (ResponseTranslator), and C7 (StreamTranslator): the bidirectional
// mapping between OpenAI-shaped wire objects and upstream Bedrock
// Converse objects, spec.md §3–§4.6.
package translate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/neboloop/bedrock-openai-gateway/internal/apierror"
	"github.com/neboloop/bedrock-openai-gateway/internal/openai"
	"github.com/neboloop/bedrock-openai-gateway/internal/upstream"
)

// Features gates which optional request capabilities are accepted, per
// the enable_vision / enable_tool_use / enable_extended_thinking
// configuration options of spec.md §6.
type Features struct {
	Vision           bool
	ToolUse          bool
	ExtendedThinking bool
}

var supportedImageFormats = map[string]bool{
	"jpeg": true, "png": true, "gif": true, "webp": true,
}

// RequestTranslator implements C5: it turns a validated ChatRequest and
// a resolved upstream model id into an upstream.Request, applying the
// ordered rules of spec.md §4.4.
type RequestTranslator struct {
	features   Features
	httpClient *http.Client
}

// NewRequestTranslator builds a RequestTranslator. httpClient is used
// only for fetching http(s) image URLs (step 5); nil selects a client
// with spec.md's 10s bound.
func NewRequestTranslator(features Features, httpClient *http.Client) *RequestTranslator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RequestTranslator{features: features, httpClient: httpClient}
}

const maxImageFetchBytes = 10 * 1024 * 1024 // 10 MiB, spec.md §4.4 step 5
const imageFetchTimeout = 10 * time.Second

// Translate applies spec.md §4.4's ordered rules, producing an
// upstream.Request. The only I/O performed is an optional http(s) image
// fetch in step 5; everything else is pure given its inputs.
func (t *RequestTranslator) Translate(ctx context.Context, req *openai.ChatRequest, upstreamModelID string) (*upstream.Request, error) {
	// Step 1: range validation.
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return nil, apierror.New(apierror.KindInvalidRequest, "temperature must be in [0,2]", "temperature")
	}
	if req.TopP != nil && (*req.TopP <= 0 || *req.TopP > 1) {
		return nil, apierror.New(apierror.KindInvalidRequest, "top_p must be in (0,1]", "top_p")
	}
	maxTokens := 4096
	if req.MaxTokens != nil {
		if *req.MaxTokens < 1 {
			return nil, apierror.New(apierror.KindInvalidRequest, "max_tokens must be >= 1", "max_tokens")
		}
		maxTokens = *req.MaxTokens
	}
	if len(req.Messages) == 0 {
		return nil, apierror.New(apierror.KindInvalidRequest, "messages must not be empty", "messages")
	}

	out := &upstream.Request{ModelID: upstreamModelID, MaxTokens: maxTokens}

	// Step 2: partition system messages out.
	var nonSystem []openai.Message
	for _, m := range req.Messages {
		if m.Role == "system" {
			if m.Content != nil {
				out.System = append(out.System, contentText(m.Content))
			}
			continue
		}
		nonSystem = append(nonSystem, m)
	}

	// Steps 3-5: rewrite tool/assistant/user messages into upstream messages.
	rewritten := make([]upstream.Message, 0, len(nonSystem))
	for _, m := range nonSystem {
		switch m.Role {
		case "tool":
			rewritten = append(rewritten, upstream.Message{
				Role: "user",
				Content: []upstream.ContentBlock{{
					Kind:        upstream.BlockToolResult,
					ToolUseID:   m.ToolCallID,
					ToolContent: contentText(m.Content),
				}},
			})
		case "assistant":
			var blocks []upstream.ContentBlock
			if m.Content != nil && !m.Content.IsEmpty() {
				blocks = append(blocks, upstream.ContentBlock{Kind: upstream.BlockText, Text: contentText(m.Content)})
			}
			for _, tc := range m.ToolCalls {
				var input json.RawMessage
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
					return nil, apierror.New(apierror.KindInvalidRequest, "tool_calls.arguments is not valid JSON", "tool_calls.arguments")
				}
				blocks = append(blocks, upstream.ContentBlock{
					Kind: upstream.BlockToolUse, ToolUseID: tc.ID, ToolName: tc.Function.Name, ToolInput: input,
				})
			}
			rewritten = append(rewritten, upstream.Message{Role: "assistant", Content: blocks})
		case "user":
			blocks, err := t.userContentBlocks(ctx, m.Content)
			if err != nil {
				return nil, err
			}
			rewritten = append(rewritten, upstream.Message{Role: "user", Content: blocks})
		default:
			return nil, apierror.New(apierror.KindInvalidRequest, fmt.Sprintf("unsupported role %q", m.Role), "messages")
		}
	}

	// Step 6: coalesce adjacent same-role messages.
	out.Messages = coalesce(rewritten)

	// Step 7: sampling params.
	out.Temperature = req.Temperature
	out.TopP = req.TopP
	if req.Stop != nil && len(req.Stop.Values) > 0 {
		out.StopSequences = req.Stop.Values
	}

	// Step 8: tools / tool_choice.
	if len(req.Tools) > 0 {
		if !t.features.ToolUse {
			return nil, apierror.New(apierror.KindInvalidRequest, "tool use is not enabled", "tools")
		}
		choice, dropTools, err := parseToolChoice(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		if !dropTools {
			for _, tool := range req.Tools {
				out.Tools = append(out.Tools, upstream.ToolSpec{
					Name:        tool.Function.Name,
					Description: tool.Function.Description,
					InputSchema: tool.Function.Parameters,
				})
			}
			out.ToolChoice = choice
		}
	}

	// Step 9: thinking.
	if req.Thinking != nil && req.Thinking.Type == "enabled" {
		if !t.features.ExtendedThinking {
			return nil, apierror.New(apierror.KindInvalidRequest, "extended thinking is not enabled", "thinking")
		}
		if req.Temperature != nil {
			return nil, apierror.New(apierror.KindInvalidRequest, "temperature must be omitted when thinking is enabled", "temperature")
		}
		out.ThinkingBudgetTokens = req.Thinking.BudgetTokens
	}

	return out, nil
}

// contentText extracts the effective text of a Content value: its
// string form, or the concatenation of any text parts.
func contentText(c *openai.Content) string {
	if c == nil {
		return ""
	}
	if c.Parts == nil {
		return c.Text
	}
	var sb strings.Builder
	for _, p := range c.Parts {
		if p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func (t *RequestTranslator) userContentBlocks(ctx context.Context, c *openai.Content) ([]upstream.ContentBlock, error) {
	if c == nil {
		return nil, nil
	}
	if c.Parts == nil {
		if c.Text == "" {
			return nil, nil
		}
		return []upstream.ContentBlock{{Kind: upstream.BlockText, Text: c.Text}}, nil
	}
	blocks := make([]upstream.ContentBlock, 0, len(c.Parts))
	for _, part := range c.Parts {
		switch part.Type {
		case "text":
			blocks = append(blocks, upstream.ContentBlock{Kind: upstream.BlockText, Text: part.Text})
		case "image_url":
			if !t.features.Vision {
				return nil, apierror.New(apierror.KindInvalidRequest, "vision is not enabled", "messages")
			}
			block, err := t.imageBlock(ctx, part.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		default:
			return nil, apierror.New(apierror.KindInvalidRequest, fmt.Sprintf("unsupported content part type %q", part.Type), "messages")
		}
	}
	return blocks, nil
}

func (t *RequestTranslator) imageBlock(ctx context.Context, url string) (upstream.ContentBlock, error) {
	if strings.HasPrefix(url, "data:") {
		return decodeDataURL(url)
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return t.fetchImage(ctx, url)
	}
	return upstream.ContentBlock{}, apierror.New(apierror.KindInvalidRequest, "image_url must be a data: or http(s): URL", "messages")
}

func decodeDataURL(url string) (upstream.ContentBlock, error) {
	rest := strings.TrimPrefix(url, "data:")
	semi := strings.IndexByte(rest, ';')
	comma := strings.IndexByte(rest, ',')
	if semi < 0 || comma < 0 || comma < semi {
		return upstream.ContentBlock{}, apierror.New(apierror.KindInvalidRequest, "malformed data URL", "messages")
	}
	mime := rest[:semi]
	encoding := rest[semi+1 : comma]
	payload := rest[comma+1:]
	if encoding != "base64" {
		return upstream.ContentBlock{}, apierror.New(apierror.KindInvalidRequest, "data URL must be base64-encoded", "messages")
	}
	format := strings.TrimPrefix(mime, "image/")
	if !supportedImageFormats[format] {
		return upstream.ContentBlock{}, apierror.New(apierror.KindInvalidRequest, fmt.Sprintf("unsupported image mime type %q", mime), "messages")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return upstream.ContentBlock{}, apierror.New(apierror.KindInvalidRequest, "invalid base64 image payload", "messages")
	}
	return upstream.ContentBlock{Kind: upstream.BlockImage, ImageFormat: format, ImageBytes: data}, nil
}

func (t *RequestTranslator) fetchImage(ctx context.Context, url string) (upstream.ContentBlock, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, imageFetchTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return upstream.ContentBlock{}, apierror.New(apierror.KindInvalidRequest, "could not build image fetch request", "messages")
	}
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return upstream.ContentBlock{}, apierror.New(apierror.KindInvalidRequest, "could not fetch image URL", "messages")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return upstream.ContentBlock{}, apierror.New(apierror.KindInvalidRequest, "image URL fetch returned non-200", "messages")
	}
	contentType := resp.Header.Get("Content-Type")
	format := strings.TrimPrefix(strings.SplitN(contentType, ";", 2)[0], "image/")
	if !supportedImageFormats[format] {
		return upstream.ContentBlock{}, apierror.New(apierror.KindInvalidRequest, fmt.Sprintf("unsupported image content-type %q", contentType), "messages")
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageFetchBytes+1))
	if err != nil {
		return upstream.ContentBlock{}, apierror.New(apierror.KindInvalidRequest, "failed reading image body", "messages")
	}
	if len(data) > maxImageFetchBytes {
		return upstream.ContentBlock{}, apierror.New(apierror.KindInvalidRequest, "image exceeds 10MiB limit", "messages")
	}
	return upstream.ContentBlock{Kind: upstream.BlockImage, ImageFormat: format, ImageBytes: data}, nil
}

// coalesce merges consecutive messages of the same role into one
// message whose content blocks concatenate in order (spec.md §3, last
// invariant; §4.4 step 6).
func coalesce(msgs []upstream.Message) []upstream.Message {
	if len(msgs) == 0 {
		return msgs
	}
	out := make([]upstream.Message, 0, len(msgs))
	out = append(out, msgs[0])
	for _, m := range msgs[1:] {
		last := &out[len(out)-1]
		if last.Role == m.Role {
			last.Content = append(last.Content, m.Content...)
			continue
		}
		out = append(out, m)
	}
	return out
}

// parseToolChoice maps the client's tool_choice field to an upstream
// ToolChoice, per spec.md §4.4 step 8. A true dropTools return means
// the gateway omits tools entirely ("none").
func parseToolChoice(raw json.RawMessage) (*upstream.ToolChoice, bool, error) {
	if len(raw) == 0 {
		return &upstream.ToolChoice{Kind: upstream.ToolChoiceAuto}, false, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "auto":
			return &upstream.ToolChoice{Kind: upstream.ToolChoiceAuto}, false, nil
		case "none":
			return nil, true, nil
		case "required":
			return &upstream.ToolChoice{Kind: upstream.ToolChoiceAny}, false, nil
		}
		return nil, false, apierror.New(apierror.KindInvalidRequest, fmt.Sprintf("unsupported tool_choice %q", asString), "tool_choice")
	}
	var named openai.ToolChoiceNamed
	if err := json.Unmarshal(raw, &named); err == nil && named.Function.Name != "" {
		return &upstream.ToolChoice{Kind: upstream.ToolChoiceTool, Name: named.Function.Name}, false, nil
	}
	return nil, false, apierror.New(apierror.KindInvalidRequest, "malformed tool_choice", "tool_choice")
}
