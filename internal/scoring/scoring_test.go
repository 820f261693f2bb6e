// SPDX-License-Identifier: Apache-2.0

package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	llmqueue "github.com/Aid-On/llm-queue-dispatcher"
	"github.com/Aid-On/llm-queue-dispatcher/internal/ratelimiter"
)

func TestPriorityScore_Ordering(t *testing.T) {
	assert := assert.New(t)
	assert.Greater(priorityScore(llmqueue.Urgent), priorityScore(llmqueue.High))
	assert.Greater(priorityScore(llmqueue.High), priorityScore(llmqueue.Normal))
	assert.Greater(priorityScore(llmqueue.Normal), priorityScore(llmqueue.Low))
	assert.Equal(1.0, priorityScore(llmqueue.Urgent))
	assert.Equal(0.1, priorityScore(llmqueue.Low))
}

func TestEfficiencyScore(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(0.0, efficiencyScore(100, 0))
	assert.Equal(1.0, efficiencyScore(800, 1000))  // 0.8, sweet spot
	assert.Equal(0.9, efficiencyScore(950, 1000))  // 0.95
	assert.Equal(0.0, efficiencyScore(1200, 1000)) // over 1.0
	assert.InDelta(0.5/0.7, efficiencyScore(500, 1000), 1e-9)
}

func TestTokenFitScore(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(0.0, tokenFitScore(100, 0))
	assert.InDelta(0.5, tokenFitScore(50, 1000), 1e-9) // r=0.05 -> 10*0.05
	assert.Equal(1.0, tokenFitScore(300, 1000))        // r=0.3
	assert.InDelta(0.88, tokenFitScore(800, 1000), 1e-9)
	assert.Equal(0.0, tokenFitScore(1200, 1000))
}

func TestRetryPenalty_MonotonicAndFloored(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(1.0, retryPenalty(0))
	prev := retryPenalty(0)
	for i := 1; i <= 10; i++ {
		cur := retryPenalty(i)
		assert.LessOrEqual(cur, prev)
		assert.GreaterOrEqual(cur, 0.1)
		prev = cur
	}
	assert.Equal(0.1, retryPenalty(10))
}

func TestWaitTimeScore_UrgentConcaveRampsFaster(t *testing.T) {
	assert := assert.New(t)
	urgentHalf := waitTimeScore(5*time.Second, llmqueue.Urgent)
	normalHalf := waitTimeScore(30*time.Second, llmqueue.Normal)
	assert.InDelta(0.5, normalHalf, 1e-9)
	assert.Greater(urgentHalf, 0.5, "sqrt concave transform ramps urgent faster than linear")
}

func TestProcessingTimeScore(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(1.0, processingTimeScore(50, nil)) // 500ms
	d := 40 * time.Second
	assert.Equal(0.1, processingTimeScore(1, &d))
}

func TestCalculate_ComponentsInRange(t *testing.T) {
	assert := assert.New(t)
	now := time.Now()
	c := Candidate{
		Request: llmqueue.LLMRequest{
			Priority:  llmqueue.High,
			TokenInfo: llmqueue.TokenInfo{Estimated: 500},
		},
		EnqueuedAt:   now.Add(-10 * time.Second),
		ReceiveCount: 1,
	}
	ctx := Context{
		RateLimiter: ratelimiter.Metrics{TPM: ratelimiter.AxisMetrics{Available: 1000}},
		CurrentTime: now,
	}

	score := Calculate(c, ctx, DefaultWeights(), nil)

	b := score.Breakdown
	for _, v := range []float64{b.Priority, b.Efficiency, b.WaitTime, b.Retry, b.TokenFit, b.ProcessingTime} {
		assert.GreaterOrEqual(v, 0.0)
		assert.LessOrEqual(v, 1.0)
	}
}

type fixedScorer struct {
	name   string
	weight float64
	value  float64
}

func (f fixedScorer) Name() string                             { return f.name }
func (f fixedScorer) Weight() float64                          { return f.weight }
func (f fixedScorer) Calculate(_ Candidate, _ Context) float64 { return f.value }

func TestCalculate_CustomScorerIsAdditive(t *testing.T) {
	assert := assert.New(t)
	now := time.Now()
	c := Candidate{Request: llmqueue.LLMRequest{Priority: llmqueue.Normal, TokenInfo: llmqueue.TokenInfo{Estimated: 100}}, EnqueuedAt: now}
	ctx := Context{RateLimiter: ratelimiter.Metrics{TPM: ratelimiter.AxisMetrics{Available: 1000}}, CurrentTime: now}

	base := Calculate(c, ctx, DefaultWeights(), nil)
	withCustom := Calculate(c, ctx, DefaultWeights(), []CustomScorer{fixedScorer{name: "bonus", weight: 0.5, value: 1.0}})

	assert.InDelta(base.Total+0.5, withCustom.Total, 1e-9)
}
