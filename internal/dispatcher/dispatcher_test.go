// SPDX-License-Identifier: Apache-2.0

package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmqueue "github.com/Aid-On/llm-queue-dispatcher"
	"github.com/Aid-On/llm-queue-dispatcher/internal/ratelimiter"
	"github.com/Aid-On/llm-queue-dispatcher/internal/scoring"
	"github.com/Aid-On/llm-queue-dispatcher/internal/storage"
)

func req(priority llmqueue.Priority, estimated int) llmqueue.LLMRequest {
	return llmqueue.LLMRequest{Priority: priority, TokenInfo: llmqueue.TokenInfo{Estimated: estimated}}
}

func TestDequeue_PriorityWinsUnderNoLimit(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	d, err := New(storage.NewMemory())
	require.NoError(err)
	ctx := context.Background()

	_, err = d.Enqueue(ctx, req(llmqueue.Low, 100))
	require.NoError(err)
	_, err = d.Enqueue(ctx, req(llmqueue.Urgent, 100))
	require.NoError(err)
	_, err = d.Enqueue(ctx, req(llmqueue.Normal, 100))
	require.NoError(err)

	limiter := ratelimiter.AlwaysAllow(20, 2000)
	pm, err := d.Dequeue(ctx, limiter)
	require.NoError(err)
	require.NotNil(pm)

	assert.Equal(llmqueue.Urgent, pm.Request().Priority)
	assert.Equal(1, pm.Attributes().ReceiveCount)
}

func TestDequeue_TPMStarvationBlocksOversized(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	d, err := New(storage.NewMemory())
	require.NoError(err)
	ctx := context.Background()

	_, err = d.Enqueue(ctx, req(llmqueue.Normal, 50))
	require.NoError(err)
	_, err = d.Enqueue(ctx, req(llmqueue.Normal, 800))
	require.NoError(err)
	_, err = d.Enqueue(ctx, req(llmqueue.Normal, 1200))
	require.NoError(err)

	limiter := &ratelimiter.TPMCapped{AvailableTPM: 1000, AvailableRPM: 100}
	pm, err := d.Dequeue(ctx, limiter)
	require.NoError(err)
	require.NotNil(pm)

	assert.Equal(800, pm.Request().TokenInfo.Estimated)
}

func TestDequeue_RetryPenaltyAfterRequeue(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	d, err := New(storage.NewMemory(), WithVisibilityTimeout(time.Second))
	require.NoError(err)
	ctx := context.Background()

	_, err = d.Enqueue(ctx, req(llmqueue.Normal, 100))
	require.NoError(err)

	limiter := ratelimiter.AlwaysAllow(20, 2000)

	pm, err := d.Dequeue(ctx, limiter)
	require.NoError(err)
	require.NotNil(pm)
	assert.Equal(1, pm.Attributes().ReceiveCount)

	pm.MarkAsFailed(errors.New("downstream failure"))

	time.Sleep(1100 * time.Millisecond)

	pm2, err := d.Dequeue(ctx, limiter)
	require.NoError(err)
	require.NotNil(pm2)

	assert.Equal(2, pm2.Attributes().ReceiveCount)
	assert.LessOrEqual(pm2.Score().Breakdown.Retry, 0.7+1e-9)
}

func TestDequeue_MinimumThreshold(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	d, err := New(storage.NewMemory(), WithMinScoreThreshold(0.9))
	require.NoError(err)
	ctx := context.Background()

	_, err = d.Enqueue(ctx, req(llmqueue.Low, 100))
	require.NoError(err)

	limiter := ratelimiter.AlwaysAllow(20, 2000)
	pm, err := d.Dequeue(ctx, limiter)
	require.NoError(err)
	assert.Nil(pm)
}

func TestDequeue_PriorityFocusedProfile(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	weights := scoring.Weights{
		Priority:       0.9,
		Efficiency:     0.02,
		WaitTime:       0.02,
		Retry:          0.02,
		TokenFit:       0.02,
		ProcessingTime: 0.02,
	}

	d, err := New(storage.NewMemory(), WithWeights(weights))
	require.NoError(err)
	ctx := context.Background()

	_, err = d.Enqueue(ctx, req(llmqueue.Low, 800))
	require.NoError(err)
	_, err = d.Enqueue(ctx, req(llmqueue.Urgent, 50))
	require.NoError(err)

	limiter := ratelimiter.AlwaysAllow(20, 2000)
	pm, err := d.Dequeue(ctx, limiter)
	require.NoError(err)
	require.NotNil(pm)

	assert.Equal(llmqueue.Urgent, pm.Request().Priority)
}

func TestDequeue_DenyAllLimiterNeverAdmits(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	d, err := New(storage.NewMemory())
	require.NoError(err)
	ctx := context.Background()

	_, err = d.Enqueue(ctx, req(llmqueue.Urgent, 100))
	require.NoError(err)

	limiter := ratelimiter.DenyAll(ratelimiter.DenyRPM)
	pm, err := d.Dequeue(ctx, limiter)
	require.NoError(err)
	assert.Nil(pm)

	d.inflightMu.Lock()
	n := len(d.inflight)
	d.inflightMu.Unlock()
	assert.Equal(0, n)
}

func TestDequeue_NilRateLimiterIsInvalidInput(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	d, err := New(storage.NewMemory())
	require.NoError(err)

	_, err = d.Dequeue(context.Background(), nil)
	assert.ErrorIs(err, ErrInvalidInput)
}

func TestMarkAsProcessed_DeletesAndRecordsCompletion(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	d, err := New(storage.NewMemory())
	require.NoError(err)
	ctx := context.Background()

	_, err = d.Enqueue(ctx, req(llmqueue.Normal, 100))
	require.NoError(err)

	limiter := ratelimiter.AlwaysAllow(20, 2000)
	pm, err := d.Dequeue(ctx, limiter)
	require.NoError(err)
	require.NotNil(pm)

	require.NoError(pm.MarkAsProcessed(ctx, 95))

	count, err := d.storage.GetApproximateMessageCount(ctx)
	require.NoError(err)
	assert.Equal(0, count)

	// A second acknowledgement against the now-revoked handle fails.
	err = pm.MarkAsProcessed(ctx, 95)
	assert.ErrorIs(err, storage.ErrNotFound)
}

func TestGetQueueMetrics_ReflectsInFlightAndBufferState(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	d, err := New(storage.NewMemory(), WithBufferSize(10))
	require.NoError(err)
	ctx := context.Background()

	_, err = d.Enqueue(ctx, req(llmqueue.Normal, 100))
	require.NoError(err)

	limiter := ratelimiter.AlwaysAllow(20, 2000)
	pm, err := d.Dequeue(ctx, limiter)
	require.NoError(err)
	require.NotNil(pm)

	report, err := d.GetQueueMetrics(ctx)
	require.NoError(err)
	require.Len(report.InFlight, 1)
	assert.Equal(pm.ID(), report.InFlight[0].ID)
	assert.Equal(10, report.BufferCapacity)
}

func TestPurge_ClearsInFlightBufferAndStorage(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	d, err := New(storage.NewMemory())
	require.NoError(err)
	ctx := context.Background()

	_, err = d.Enqueue(ctx, req(llmqueue.Normal, 100))
	require.NoError(err)

	limiter := ratelimiter.AlwaysAllow(20, 2000)
	_, err = d.Dequeue(ctx, limiter)
	require.NoError(err)

	n, err := d.Purge(ctx)
	require.NoError(err)
	assert.Equal(1, n)

	d.inflightMu.Lock()
	inflightLen := len(d.inflight)
	d.inflightMu.Unlock()
	assert.Equal(0, inflightLen)
	assert.Equal(0, d.buf.Size())
}
