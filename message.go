// SPDX-License-Identifier: Apache-2.0

package llmqueue

import (
	"time"

	"github.com/Aid-On/llm-queue-dispatcher/internal/ratelimiter"
)

//go:generate go install github.com/tinylib/msgp@latest
//go:generate msgp -io=false -tests=false
//msgp:newtime

// MessageAttributes holds the storage-assigned bookkeeping fields attached
// to every QueueMessage.
type MessageAttributes struct {
	// MessageID is the storage-scoped identifier of the message.
	MessageID string `msg:"message_id"`
	// ReceiptHandle authorizes the next delete/extend for this delivery.
	// It is regenerated on every visible->in-flight transition; prior
	// handles become immediately invalid.
	ReceiptHandle string `msg:"receipt_handle"`
	// EnqueuedAt is set once, at insertion, and never mutated.
	EnqueuedAt time.Time `msg:"enqueued_at"`
	// ReceiveCount is monotonically increasing across redeliveries.
	ReceiveCount int `msg:"receive_count"`
	// FirstReceivedAt is set the first time the message is dequeued.
	FirstReceivedAt *time.Time `msg:"first_received_at"`
}

// QueueMessage is the storage-assigned envelope wrapping an LLMRequest.
type QueueMessage struct {
	// ID is the storage-scoped unique identifier, stable across
	// redeliveries (unlike ReceiptHandle).
	ID string `msg:"id"`
	// Body is the wrapped request payload.
	Body LLMRequest `msg:"-"`
	// Attributes carries delivery bookkeeping.
	Attributes MessageAttributes `msg:"attributes"`
}

// InFlightMessage is the dispatcher's internal tracking record for a
// message between dequeue and acknowledgement.
type InFlightMessage struct {
	// Envelope is the message as it was handed to the caller.
	Envelope QueueMessage
	// StartedAt is when the message was released to the caller.
	StartedAt time.Time
	// Limiter is the rate limiter that admitted the message, retained
	// for bookkeeping against the same limiter instance at release time.
	Limiter ratelimiter.RateLimiter
}
