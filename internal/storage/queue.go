// SPDX-License-Identifier: Apache-2.0

// Package storage declares the abstract queue contract the dispatcher
// core requires and ships an in-memory reference implementation.
// Concrete non-memory backends (SQS/Redis adapters) are explicitly out
// of scope for this module.
package storage

import (
	"context"
	"errors"

	llmqueue "github.com/Aid-On/llm-queue-dispatcher"
)

var (
	// ErrNotFound is returned when a receipt handle is unknown or stale.
	ErrNotFound = errors.New("receipt handle not found")
	// ErrStorage wraps any other failure reported by a storage adapter.
	ErrStorage = errors.New("storage error")
)

// Attributes summarizes the queue's current state, as returned by
// GetQueueAttributes.
type Attributes struct {
	ApproximateVisible  int
	ApproximateInFlight int
	OldestMessageAgeMS  int64
}

// Queue is the contract the dispatcher core requires of any persistent
// queue. All operations may fail with an error wrapping ErrStorage or
// ErrNotFound.
type Queue interface {
	// Enqueue assigns an id and an initial receipt handle, sets
	// EnqueuedAt to now, and makes the message immediately visible.
	Enqueue(ctx context.Context, req llmqueue.LLMRequest) (llmqueue.QueueMessage, error)

	// Dequeue returns up to limit visible messages. Each returned message
	// is, atomically: issued a new receipt handle, has its receive count
	// incremented, has FirstReceivedAt set if unset, and is marked
	// in-flight until now+visibilityTimeout.
	Dequeue(ctx context.Context, limit int, visibilityTimeout int) ([]llmqueue.QueueMessage, error)

	// DeleteMessage removes the message iff receiptHandle matches the
	// message's current in-flight handle.
	DeleteMessage(ctx context.Context, receiptHandle string) error

	// UpdateVisibilityTimeout extends or shortens the in-flight window for
	// the message currently holding receiptHandle. A seconds value of 0
	// makes the message visible again immediately.
	UpdateVisibilityTimeout(ctx context.Context, receiptHandle string, seconds int) error

	// GetApproximateMessageCount returns the count of currently-visible
	// messages; expired in-flight messages count as visible.
	GetApproximateMessageCount(ctx context.Context) (int, error)

	// PeekMessagesByPriority performs a non-consuming read of up to limit
	// visible messages with matching priority.
	PeekMessagesByPriority(ctx context.Context, priority llmqueue.Priority, limit int) ([]llmqueue.QueueMessage, error)
}

// BatchEnqueuer is an optional capability: an adapter that can enqueue a
// batch of requests more efficiently than sequential Enqueue calls.
type BatchEnqueuer interface {
	BatchEnqueue(ctx context.Context, reqs []llmqueue.LLMRequest) ([]llmqueue.QueueMessage, error)
}

// BatchDeleter is an optional capability for batch deletion.
type BatchDeleter interface {
	BatchDelete(ctx context.Context, receiptHandles []string) error
}

// AttributeGetter is an optional capability exposing queue-wide counters.
type AttributeGetter interface {
	GetQueueAttributes(ctx context.Context) (Attributes, error)
}

// Purger is an optional capability that clears all messages from a queue.
type Purger interface {
	// Purge removes every message and returns the number removed.
	Purge(ctx context.Context) (int, error)
}
