// Package svc wires the gateway's dependencies into a single
// ServiceContext, following the dependency-bag pattern the teacher's
// go-zero-generated logic layer expects (internal/logic/**/*.go all take
// a *svc.ServiceContext built once at startup).
package svc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/neboloop/bedrock-openai-gateway/internal/auth"
	gwconfig "github.com/neboloop/bedrock-openai-gateway/internal/config"
	"github.com/neboloop/bedrock-openai-gateway/internal/keystore"
	"github.com/neboloop/bedrock-openai-gateway/internal/ratelimit"
	"github.com/neboloop/bedrock-openai-gateway/internal/resolver"
	"github.com/neboloop/bedrock-openai-gateway/internal/translate"
	"github.com/neboloop/bedrock-openai-gateway/internal/upstream"
	"github.com/neboloop/bedrock-openai-gateway/internal/usage"
)

// ServiceContext bundles every dependency the HTTP handlers need.
type ServiceContext struct {
	Config gwconfig.Config

	Store         keystore.Store
	Authn         *auth.Authenticator
	Limiter       *ratelimit.Limiter
	Resolver      *resolver.Resolver
	ReqTrans      *translate.RequestTranslator
	RespTrans     *translate.ResponseTranslator
	Upstream      *upstream.Client
	UsageRecorder *usage.Recorder
}

// New builds a ServiceContext from cfg. When cfg.DynamoAPIKeysTable and
// friends point at real tables, a DynamoStore is built from the default
// AWS credential chain; set useMemoryStore to force the in-memory
// adapter for local runs and tests.
func New(ctx context.Context, cfg gwconfig.Config, useMemoryStore bool) (*ServiceContext, error) {
	store, err := buildStore(ctx, cfg, useMemoryStore)
	if err != nil {
		return nil, fmt.Errorf("svc: build store: %w", err)
	}

	upstreamClient, err := upstream.NewClient(ctx, cfg.AWSRegion, cfg.RequestTimeout, cfg.MaxConcurrentRequests)
	if err != nil {
		return nil, fmt.Errorf("svc: build upstream client: %w", err)
	}

	res := resolver.New(store)
	if err := res.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("svc: initial model mapping load: %w", err)
	}

	features := translate.Features{
		Vision:           cfg.EnableVision,
		ToolUse:          cfg.EnableToolUse,
		ExtendedThinking: cfg.EnableExtendedThinking,
	}

	return &ServiceContext{
		Config:        cfg,
		Store:         store,
		Authn:         auth.New(store, cfg.MasterAPIKey, cfg.RequireAPIKey),
		Limiter:       ratelimit.New(),
		Resolver:      res,
		ReqTrans:      translate.NewRequestTranslator(features, &http.Client{Timeout: 10 * time.Second}),
		RespTrans:     translate.NewResponseTranslator(),
		Upstream:      upstreamClient,
		UsageRecorder: usage.New(store),
	}, nil
}

func buildStore(ctx context.Context, cfg gwconfig.Config, useMemoryStore bool) (keystore.Store, error) {
	if useMemoryStore {
		return keystore.NewMemoryStore(), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg)
	return keystore.NewDynamoStore(client, cfg.DynamoAPIKeysTable, cfg.DynamoUsageTable, cfg.DynamoModelMapTable), nil
}
