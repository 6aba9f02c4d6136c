// Package config loads the gateway's configuration from environment
// variables, following the load-then-applyDefaults shape of the
// teacher's YAML loader (internal/config/config.go.bak) adapted to a
// stateless service configured by its environment rather than a config
// file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every recognized option of spec.md §6. Unrecognized
// environment variables are ignored.
type Config struct {
	Host string
	Port int

	AWSRegion string

	RequireAPIKey bool
	MasterAPIKey  string

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	EnableVision           bool
	EnableToolUse          bool
	EnableExtendedThinking bool

	RequestTimeout        time.Duration
	StreamTimeout         time.Duration
	MaxConcurrentRequests int

	DynamoAPIKeysTable  string
	DynamoUsageTable    string
	DynamoModelMapTable string
}

// Load reads Config from the process environment and applies defaults
// for anything unset, mirroring applyDefaults in the teacher's loader.
func Load() Config {
	c := Config{
		Host:                   getEnv("GATEWAY_HOST", ""),
		Port:                   getEnvInt("GATEWAY_PORT", 0),
		AWSRegion:              getEnv("aws_region", ""),
		RequireAPIKey:          parseBool(os.Getenv("require_api_key"), true),
		MasterAPIKey:           getEnv("master_api_key", ""),
		RateLimitEnabled:       parseBool(os.Getenv("rate_limit_enabled"), true),
		RateLimitRequests:      getEnvInt("rate_limit_requests", 0),
		RateLimitWindow:        getEnvSeconds("rate_limit_window", 0),
		EnableVision:           parseBool(os.Getenv("enable_vision"), true),
		EnableToolUse:          parseBool(os.Getenv("enable_tool_use"), true),
		EnableExtendedThinking: parseBool(os.Getenv("enable_extended_thinking"), true),
		RequestTimeout:         getEnvSeconds("request_timeout_seconds", 0),
		StreamTimeout:          getEnvSeconds("stream_timeout_seconds", 0),
		MaxConcurrentRequests:  getEnvInt("max_concurrent_requests", 0),
		DynamoAPIKeysTable:     getEnv("dynamo_api_keys_table", ""),
		DynamoUsageTable:       getEnv("dynamo_usage_table", ""),
		DynamoModelMapTable:    getEnv("dynamo_model_mapping_table", ""),
	}
	applyDefaults(&c)
	return c
}

func applyDefaults(c *Config) {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.AWSRegion == "" {
		c.AWSRegion = "us-east-1"
	}
	if c.RateLimitRequests == 0 {
		c.RateLimitRequests = 60
	}
	if c.RateLimitWindow == 0 {
		c.RateLimitWindow = 60 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 120 * time.Second
	}
	if c.StreamTimeout == 0 {
		c.StreamTimeout = 300 * time.Second
	}
	if c.MaxConcurrentRequests == 0 {
		c.MaxConcurrentRequests = 256
	}
	if c.DynamoAPIKeysTable == "" {
		c.DynamoAPIKeysTable = "gateway_api_keys"
	}
	if c.DynamoUsageTable == "" {
		c.DynamoUsageTable = "gateway_usage"
	}
	if c.DynamoModelMapTable == "" {
		c.DynamoModelMapTable = "gateway_model_mapping"
	}
}

// parseBool parses a string as boolean with a default value. Accepts
// "true", "1", "yes" as true; empty or other values return the default.
func parseBool(s string, defaultVal bool) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return defaultVal
	}
	return s == "true" || s == "1" || s == "yes"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	n := getEnvInt(key, -1)
	if n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
