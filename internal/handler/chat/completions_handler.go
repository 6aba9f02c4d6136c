// Package chat wires POST /v1/chat/completions, following the
// teacher's handler-calls-logic convention
// (internal/handler/chat/sendmessagehandler.go).
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/neboloop/bedrock-openai-gateway/internal/apierror"
	chatlogic "github.com/neboloop/bedrock-openai-gateway/internal/logic/chat"
	"github.com/neboloop/bedrock-openai-gateway/internal/middleware"
	"github.com/neboloop/bedrock-openai-gateway/internal/openai"
	"github.com/neboloop/bedrock-openai-gateway/internal/svc"
	"github.com/neboloop/bedrock-openai-gateway/internal/usage"
)

// CompletionsHandler serves POST /v1/chat/completions for both the
// unary and text/event-stream response shapes of spec.md §6.
func CompletionsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rec := middleware.APIKeyFromContext(ctx)
		requestID := middleware.RequestIDFromContext(ctx)

		outcome := &usage.Outcome{
			ApiKey:    rec.ApiKey,
			RequestID: requestID,
			StartedAt: time.Now(),
		}

		var req openai.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			decodeErr := apierror.New(apierror.KindInvalidRequest, "malformed JSON body", "")
			outcome.Success = false
			outcome.ErrorMessage = decodeErr.Error()
			svcCtx.UsageRecorder.Record(ctx, outcome.Row())
			writeError(w, decodeErr)
			return
		}

		logic := chatlogic.NewCompletionsLogic(ctx, svcCtx)
		prep, err := logic.Prepare(rec, &req)
		if err != nil {
			outcome.Success = false
			outcome.ErrorMessage = err.Error()
			svcCtx.UsageRecorder.Record(ctx, outcome.Row())
			writeError(w, err)
			return
		}
		outcome.Model = prep.UpstreamReq.ModelID

		if req.Stream {
			serveStream(ctx, w, logic, prep, outcome, svcCtx)
			return
		}

		completion, err := logic.Unary(prep, outcome)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, completion)
	}
}

func serveStream(ctx context.Context, w http.ResponseWriter, logic *chatlogic.CompletionsLogic, prep *chatlogic.PreparedRequest, outcome *usage.Outcome, svcCtx *svc.ServiceContext) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		flushErr := apierror.New(apierror.KindInternal, "streaming unsupported by response writer", "")
		outcome.Success = false
		outcome.ErrorMessage = flushErr.Error()
		svcCtx.UsageRecorder.Record(ctx, outcome.Row())
		writeError(w, flushErr)
		return
	}

	stream, translator, err := logic.StartStream(prep)
	if err != nil {
		outcome.Success = false
		outcome.ErrorMessage = err.Error()
		svcCtx.UsageRecorder.Record(ctx, outcome.Row())
		writeError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sink := &sseSink{w: w, flusher: flusher}
	outcome.Success = true
	if err := translator.Run(stream, sink); err != nil {
		logx.Errorf("chat: stream write failed for request %s: %v", outcome.RequestID, err)
		outcome.Success = false
		outcome.ErrorMessage = "client_canceled"
	}
	if streamUsage, ok := translator.Usage(); ok {
		outcome.PromptTokens = streamUsage.InputTokens
		outcome.CompletionTokens = streamUsage.OutputTokens
	}
	svcCtx.UsageRecorder.Record(ctx, outcome.Row())
}

// sseSink implements translate.Sink by writing "data: <json>\n\n"
// events to an http.ResponseWriter and flushing after each write, the
// push side of the pull/push adapter spec.md §9 describes.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) EmitChunk(chunk *openai.ChatCompletionChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) EmitError(body apierror.Body) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: error\ndata: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) EmitDone() error {
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, body := apierror.Render(err)
	writeJSON(w, status, body)
}
