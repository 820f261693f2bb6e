// SPDX-License-Identifier: Apache-2.0

package scoring

import (
	"math"
	"time"

	llmqueue "github.com/Aid-On/llm-queue-dispatcher"
)

// Candidate is the subset of a queue message the calculator scores.
type Candidate struct {
	Request      llmqueue.LLMRequest
	EnqueuedAt   time.Time
	ReceiveCount int
}

// CandidateFor builds a Candidate from a full queue message.
func CandidateFor(msg llmqueue.QueueMessage) Candidate {
	return Candidate{
		Request:      msg.Body,
		EnqueuedAt:   msg.Attributes.EnqueuedAt,
		ReceiveCount: msg.Attributes.ReceiveCount,
	}
}

var priorityTable = map[llmqueue.Priority]float64{
	llmqueue.Urgent: 1.0,
	llmqueue.High:   0.7,
	llmqueue.Normal: 0.4,
	llmqueue.Low:    0.1,
}

var waitTimeMax = map[llmqueue.Priority]time.Duration{
	llmqueue.Urgent: 10 * time.Second,
	llmqueue.High:   30 * time.Second,
	llmqueue.Normal: 60 * time.Second,
	llmqueue.Low:    300 * time.Second,
}

// priorityScore is a direct table lookup; unknown priorities score 0.
func priorityScore(p llmqueue.Priority) float64 {
	return priorityTable[p]
}

// efficiencyScore rewards requests that fill the available TPM budget
// into a "sweet spot" without risking overcommitment.
func efficiencyScore(estimated, availableTPM int) float64 {
	if availableTPM <= 0 {
		return 0
	}

	u := float64(estimated) / float64(availableTPM)
	switch {
	case u > 1.0:
		return 0
	case u > 0.9:
		return 0.9
	case u >= 0.7:
		return 1.0
	default:
		return u / 0.7
	}
}

// waitTimeScore normalizes elapsed wait against a priority-specific
// ceiling, applying a concave transform for URGENT so its score ramps up
// faster than linear.
func waitTimeScore(wait time.Duration, priority llmqueue.Priority) float64 {
	max, ok := waitTimeMax[priority]
	if !ok || max <= 0 {
		return 0
	}

	s := float64(wait) / float64(max)
	if s > 1 {
		s = 1
	}
	if s < 0 {
		s = 0
	}

	if priority == llmqueue.Urgent {
		s = math.Sqrt(s)
	}

	return s
}

// retryPenalty rewards fresh messages and decays geometrically with
// redelivery count, floored so a message is never permanently starved.
func retryPenalty(receiveCount int) float64 {
	if receiveCount <= 0 {
		return 1.0
	}

	p := math.Pow(0.7, float64(receiveCount))
	if p < 0.1 {
		return 0.1
	}
	return p
}

// tokenFitScore penalizes requests that are too small to matter and
// those that risk not fitting at all, favoring the middle of the budget.
func tokenFitScore(estimated, availableTPM int) float64 {
	if availableTPM <= 0 {
		return 0
	}

	r := float64(estimated) / float64(availableTPM)
	switch {
	case r > 1.0:
		return 0
	case r > 0.5:
		return 1.0 - 0.4*(r-0.5)
	case r >= 0.1:
		return 1.0
	default:
		return 10 * r
	}
}

// processingTimeScore favors requests expected to complete quickly. If the
// caller did not supply an expected duration, it is approximated as 10ms
// per estimated token.
func processingTimeScore(estimated int, expected *time.Duration) float64 {
	var t time.Duration
	if expected != nil {
		t = *expected
	} else {
		t = time.Duration(estimated) * 10 * time.Millisecond
	}

	ms := float64(t / time.Millisecond)
	switch {
	case ms <= 1000:
		return 1.0
	case ms <= 5000:
		return 1.0 - 0.3*(ms-1000)/4000
	case ms <= 30000:
		return 0.7 - 0.6*(ms-5000)/25000
	default:
		return 0.1
	}
}

// Calculate scores a single candidate against ctx using weights, adding
// any customScorers' contributions.
func Calculate(c Candidate, ctx Context, weights Weights, customScorers []CustomScorer) llmqueue.MessageScore {
	wait := ctx.CurrentTime.Sub(c.EnqueuedAt)

	breakdown := llmqueue.ScoreBreakdown{
		Priority:       priorityScore(c.Request.Priority),
		Efficiency:     efficiencyScore(c.Request.TokenInfo.Estimated, ctx.RateLimiter.TPM.Available),
		WaitTime:       waitTimeScore(wait, c.Request.Priority),
		Retry:          retryPenalty(c.ReceiveCount),
		TokenFit:       tokenFitScore(c.Request.TokenInfo.Estimated, ctx.RateLimiter.TPM.Available),
		ProcessingTime: processingTimeScore(c.Request.TokenInfo.Estimated, c.Request.ExpectedProcessingTime),
	}

	total := weights.Priority*breakdown.Priority +
		weights.Efficiency*breakdown.Efficiency +
		weights.WaitTime*breakdown.WaitTime +
		weights.Retry*breakdown.Retry +
		weights.TokenFit*breakdown.TokenFit +
		weights.ProcessingTime*breakdown.ProcessingTime

	for _, cs := range customScorers {
		if cs == nil {
			continue
		}
		total += cs.Weight() * cs.Calculate(c, ctx)
	}

	return llmqueue.MessageScore{Total: total, Breakdown: breakdown}
}
