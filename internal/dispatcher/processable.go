// SPDX-License-Identifier: Apache-2.0

package dispatcher

import (
	"context"
	"time"

	llmqueue "github.com/Aid-On/llm-queue-dispatcher"
)

// ProcessableMessage is the handle a caller receives from Dequeue. It
// authorizes exactly one acknowledgement: MarkAsProcessed, MarkAsFailed,
// or any number of UpdateVisibility extensions in between.
type ProcessableMessage struct {
	dispatcher *Dispatcher
	message    llmqueue.QueueMessage
	score      llmqueue.MessageScore
	startedAt  time.Time
}

func newProcessableMessage(d *Dispatcher, msg llmqueue.QueueMessage, score llmqueue.MessageScore, startedAt time.Time) *ProcessableMessage {
	return &ProcessableMessage{dispatcher: d, message: msg, score: score, startedAt: startedAt}
}

// ID returns the message's storage-scoped id.
func (p *ProcessableMessage) ID() string { return p.message.ID }

// Request returns the wrapped LLM request.
func (p *ProcessableMessage) Request() llmqueue.LLMRequest { return p.message.Body }

// Attributes returns the delivery bookkeeping attached to this delivery.
func (p *ProcessableMessage) Attributes() llmqueue.MessageAttributes { return p.message.Attributes }

// Score returns the weighted score that won this message its delivery.
func (p *ProcessableMessage) Score() llmqueue.MessageScore { return p.score }

// MarkAsProcessed deletes the message from storage, removes it from the
// in-flight index, and records a completion event with the elapsed
// processing time. The caller supplies the actual tokens consumed; the
// dispatcher never charges a rate limiter itself.
func (p *ProcessableMessage) MarkAsProcessed(ctx context.Context, tokensUsed int) error {
	if err := p.dispatcher.storage.DeleteMessage(ctx, p.message.Attributes.ReceiptHandle); err != nil {
		return err
	}

	p.dispatcher.removeInFlight(p.message.Attributes.ReceiptHandle)
	p.dispatcher.metrics.RecordComplete(p.message.ID, tokensUsed, p.dispatcher.now().Sub(p.startedAt))
	return nil
}

// MarkAsFailed removes the message from the in-flight index and records
// a failure event. It intentionally performs no storage action: the
// message's visibility timeout will expire and it will become visible
// again for natural re-delivery.
func (p *ProcessableMessage) MarkAsFailed(cause error) {
	p.dispatcher.removeInFlight(p.message.Attributes.ReceiptHandle)
	p.dispatcher.metrics.RecordFailure(p.message.ID, cause)
}

// UpdateVisibility forwards a visibility-timeout extension to storage.
func (p *ProcessableMessage) UpdateVisibility(ctx context.Context, timeout time.Duration) error {
	return p.dispatcher.storage.UpdateVisibilityTimeout(ctx, p.message.Attributes.ReceiptHandle, int(timeout/time.Second))
}
