// Package chat holds the business logic for POST /v1/chat/completions,
// following the teacher's logic-struct-embeds-logx.Logger convention
// (internal/logic/chat/sendmessagelogic.go).
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/neboloop/bedrock-openai-gateway/internal/apierror"
	"github.com/neboloop/bedrock-openai-gateway/internal/model"
	"github.com/neboloop/bedrock-openai-gateway/internal/openai"
	"github.com/neboloop/bedrock-openai-gateway/internal/svc"
	"github.com/neboloop/bedrock-openai-gateway/internal/translate"
	"github.com/neboloop/bedrock-openai-gateway/internal/upstream"
	"github.com/neboloop/bedrock-openai-gateway/internal/usage"
)

// CompletionsLogic implements the admission-pipeline steps that sit
// between auth/rate-limit (chi middleware) and the client response:
// ModelResolver, RequestTranslator, UpstreamClient, and the response
// side of ResponseTranslator/StreamTranslator.
type CompletionsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

// NewCompletionsLogic builds a CompletionsLogic bound to one request.
func NewCompletionsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *CompletionsLogic {
	return &CompletionsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// PreparedRequest carries everything the handler needs after resolution
// and translation but before invoking the upstream.
type PreparedRequest struct {
	UpstreamReq *upstream.Request
	ClientModel string
	ApiKey      string
}

// Prepare resolves the client model id and translates req into an
// upstream.Request. Returns an *apierror.Error on any validation
// failure, per spec.md §4.4.
func (l *CompletionsLogic) Prepare(apiKey *model.ApiKeyRecord, req *openai.ChatRequest) (*PreparedRequest, error) {
	upstreamModelID := l.svcCtx.Resolver.Resolve(req.Model)
	upstreamReq, err := l.svcCtx.ReqTrans.Translate(l.ctx, req, upstreamModelID)
	if err != nil {
		return nil, err
	}
	return &PreparedRequest{UpstreamReq: upstreamReq, ClientModel: req.Model, ApiKey: apiKey.ApiKey}, nil
}

// Unary invokes the upstream unary endpoint and translates the result
// into an OpenAI ChatCompletion, recording usage on every exit.
func (l *CompletionsLogic) Unary(prep *PreparedRequest, outcome *usage.Outcome) (*openai.ChatCompletion, error) {
	outcome.Model = prep.UpstreamReq.ModelID
	resp, err := l.svcCtx.Upstream.Invoke(l.ctx, prep.UpstreamReq)
	if err != nil {
		l.recordFailure(outcome, err)
		return nil, err
	}
	outcome.PromptTokens = resp.Usage.InputTokens
	outcome.CompletionTokens = resp.Usage.OutputTokens
	outcome.Success = true
	completion := l.svcCtx.RespTrans.Translate(resp, prep.ClientModel)
	l.svcCtx.UsageRecorder.Record(l.ctx, outcome.Row())
	return completion, nil
}

// StartStream invokes the upstream streaming endpoint and returns the
// raw event stream plus a StreamTranslator session primed with a fresh
// chunk id. The caller (the HTTP handler) drives translate.StreamTranslator.Run
// against an SSE Sink and is responsible for finishing outcome/usage
// once the stream ends.
func (l *CompletionsLogic) StartStream(prep *PreparedRequest) (upstream.EventStream, *translate.StreamTranslator, error) {
	stream, err := l.svcCtx.Upstream.InvokeStream(l.ctx, prep.UpstreamReq)
	if err != nil {
		return nil, nil, err
	}
	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()
	return stream, translate.NewStreamTranslator(id, created, prep.ClientModel), nil
}

func (l *CompletionsLogic) recordFailure(outcome *usage.Outcome, err error) {
	outcome.Success = false
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		outcome.ErrorMessage = apiErr.Message
	} else {
		outcome.ErrorMessage = err.Error()
	}
	l.svcCtx.UsageRecorder.Record(l.ctx, outcome.Row())
}
