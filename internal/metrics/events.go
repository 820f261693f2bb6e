// SPDX-License-Identifier: Apache-2.0

// Package metrics implements the append-only event log and sliding-window
// report for the queue's observable lifecycle events, grounded on the
// typed-event-struct + Listener/ListenerFunc pattern of
// internal/credentials/event, generalized from
// Fetch/Decorate to four kinds: enqueue, dequeue, complete, failure.
package metrics

import (
	"time"

	llmqueue "github.com/Aid-On/llm-queue-dispatcher"
)

// EnqueueEvent is recorded whenever a request is accepted into storage.
type EnqueueEvent struct {
	MessageID string
	Priority  llmqueue.Priority
	At        time.Time
}

// EnqueueListener receives EnqueueEvent notifications.
type EnqueueListener interface {
	OnEnqueue(EnqueueEvent)
}

// EnqueueListenerFunc adapts a function to an EnqueueListener.
type EnqueueListenerFunc func(EnqueueEvent)

func (f EnqueueListenerFunc) OnEnqueue(e EnqueueEvent) { f(e) }

// DequeueEvent is recorded whenever the dispatcher releases a message to
// a caller.
type DequeueEvent struct {
	MessageID string
	Priority  llmqueue.Priority
	At        time.Time
}

// DequeueListener receives DequeueEvent notifications.
type DequeueListener interface {
	OnDequeue(DequeueEvent)
}

// DequeueListenerFunc adapts a function to a DequeueListener.
type DequeueListenerFunc func(DequeueEvent)

func (f DequeueListenerFunc) OnDequeue(e DequeueEvent) { f(e) }

// CompleteEvent is recorded when a caller acknowledges successful
// processing.
type CompleteEvent struct {
	MessageID      string
	TokensUsed     int
	ProcessingTime time.Duration
	At             time.Time
}

// CompleteListener receives CompleteEvent notifications.
type CompleteListener interface {
	OnComplete(CompleteEvent)
}

// CompleteListenerFunc adapts a function to a CompleteListener.
type CompleteListenerFunc func(CompleteEvent)

func (f CompleteListenerFunc) OnComplete(e CompleteEvent) { f(e) }

// FailureEvent is recorded when a caller reports a processing failure.
type FailureEvent struct {
	MessageID string
	Err       error
	At        time.Time
}

// FailureListener receives FailureEvent notifications.
type FailureListener interface {
	OnFailure(FailureEvent)
}

// FailureListenerFunc adapts a function to a FailureListener.
type FailureListenerFunc func(FailureEvent)

func (f FailureListenerFunc) OnFailure(e FailureEvent) { f(e) }
