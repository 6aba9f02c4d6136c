package upstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/bedrock-openai-gateway/internal/apierror"
)

func TestClassifyTransportErrorMapsDeadlineExceeded(t *testing.T) {
	err := classifyTransportError(context.DeadlineExceeded)
	var apiErr *apierror.Error
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindUpstreamUnavailable, apiErr.Kind)
}

func TestClassifyTransportErrorMapsGenericConnectFailure(t *testing.T) {
	err := classifyTransportError(errors.New("dial tcp: connection refused"))
	var apiErr *apierror.Error
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindUpstreamUnavailable, apiErr.Kind)
}

func TestClassifyTransportErrorNilIsNil(t *testing.T) {
	assert.NoError(t, classifyTransportError(nil))
}

func TestIsRetryableOnlyForThrottledAndUnavailable(t *testing.T) {
	assert.True(t, isRetryable(apierror.New(apierror.KindUpstreamThrottled, "x", "")))
	assert.True(t, isRetryable(apierror.New(apierror.KindUpstreamUnavailable, "x", "")))
	assert.False(t, isRetryable(apierror.New(apierror.KindUpstreamServer, "x", "")))
	assert.False(t, isRetryable(apierror.New(apierror.KindInvalidRequest, "x", "")))
	assert.False(t, isRetryable(errors.New("not an apierror")))
}

func TestEncodeBase64(t *testing.T) {
	assert.Equal(t, "aGVsbG8=", encodeBase64([]byte("hello")))
}

func TestStopReasonFromSDKKnownAndUnknown(t *testing.T) {
	assert.Equal(t, StopEndTurn, stopReasonFromSDK("end_turn"))
	assert.Equal(t, StopToolUse, stopReasonFromSDK("tool_use"))
	assert.Equal(t, StopReason("content_filtered"), stopReasonFromSDK("content_filtered"))
}

func TestAcquireUnboundedWhenNoSemConfigured(t *testing.T) {
	c := &Client{}
	assert.NoError(t, c.acquire(context.Background()))
	c.release() // must not panic on a nil sem
}

func TestAcquireBlocksUntilReleaseFreesASlot(t *testing.T) {
	c := &Client{sem: make(chan struct{}, 1)}
	require.NoError(t, c.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.acquire(ctx)
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindUpstreamUnavailable, apiErr.Kind)

	c.release()
	require.NoError(t, c.acquire(context.Background()))
}
