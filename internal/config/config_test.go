package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GATEWAY_HOST", "GATEWAY_PORT", "aws_region", "require_api_key",
		"master_api_key", "rate_limit_enabled", "rate_limit_requests",
		"rate_limit_window", "enable_vision", "enable_tool_use",
		"enable_extended_thinking", "request_timeout_seconds",
		"stream_timeout_seconds", "max_concurrent_requests",
		"dynamo_api_keys_table", "dynamo_usage_table", "dynamo_model_mapping_table",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	clearGatewayEnv(t)
	c := Load()
	assert.Equal(t, "0.0.0.0", c.Host)
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "us-east-1", c.AWSRegion)
	assert.Equal(t, 60, c.RateLimitRequests)
	assert.Equal(t, 60*time.Second, c.RateLimitWindow)
	assert.Equal(t, 120*time.Second, c.RequestTimeout)
	assert.Equal(t, 300*time.Second, c.StreamTimeout)
	assert.Equal(t, 256, c.MaxConcurrentRequests)
	assert.True(t, c.RequireAPIKey)
	assert.True(t, c.EnableVision)
}

func TestLoadHonorsExplicitOverrides(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("GATEWAY_PORT", "9090")
	t.Setenv("rate_limit_requests", "10")
	t.Setenv("enable_vision", "false")
	t.Setenv("require_api_key", "no")

	c := Load()
	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, 10, c.RateLimitRequests)
	assert.False(t, c.EnableVision)
	assert.False(t, c.RequireAPIKey)
}

func TestParseBoolAcceptedLiterals(t *testing.T) {
	assert.True(t, parseBool("true", false))
	assert.True(t, parseBool("1", false))
	assert.True(t, parseBool("yes", false))
	assert.True(t, parseBool("YES", false))
	assert.False(t, parseBool("no", true))
	assert.False(t, parseBool("false", true))
	assert.Equal(t, true, parseBool("", true))
	assert.Equal(t, false, parseBool("", false))
}
