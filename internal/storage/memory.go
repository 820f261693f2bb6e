// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	llmqueue "github.com/Aid-On/llm-queue-dispatcher"
)

// record is the storage-owned state for a single message. Buffer entries
// held by the dispatcher are borrowed views of these records; storage
// alone mutates them.
type record struct {
	body               llmqueue.LLMRequest
	id                 string
	receiptHandle      string
	enqueuedAt         time.Time
	receiveCount       int
	firstReceivedAt    *time.Time
	visibilityDeadline time.Time // zero value means "visible"
}

func (r *record) visible(now time.Time) bool {
	return r.visibilityDeadline.IsZero() || !r.visibilityDeadline.After(now)
}

func (r *record) envelope() llmqueue.QueueMessage {
	return llmqueue.QueueMessage{
		ID:   r.id,
		Body: r.body,
		Attributes: llmqueue.MessageAttributes{
			MessageID:       r.id,
			ReceiptHandle:   r.receiptHandle,
			EnqueuedAt:      r.enqueuedAt,
			ReceiveCount:    r.receiveCount,
			FirstReceivedAt: r.firstReceivedAt,
		},
	}
}

// Memory is the in-memory reference implementation of Queue, grounded on
// the mutex-guarded record-map shape used by internal/credentials's token
// cache and internal/credentials/internal/storage.Info. It maintains a
// mapping from
// id to record and a second mapping from the record's *current* receipt
// handle to id, so a stale handle (superseded by redelivery) reliably
// fails with ErrNotFound.
type Memory struct {
	mu        sync.Mutex
	byID      map[string]*record
	byHandle  map[string]string
	now       func() time.Time
	idFactory func() string
}

var _ Queue = (*Memory)(nil)
var _ AttributeGetter = (*Memory)(nil)
var _ Purger = (*Memory)(nil)

// NewMemory constructs an empty in-memory queue.
func NewMemory() *Memory {
	return &Memory{
		byID:      make(map[string]*record),
		byHandle:  make(map[string]string),
		now:       time.Now,
		idFactory: newID,
	}
}

func newID() string {
	return uuid.NewString()
}

func (m *Memory) Enqueue(_ context.Context, req llmqueue.LLMRequest) (llmqueue.QueueMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &record{
		body:          req,
		id:            m.idFactory(),
		receiptHandle: m.idFactory(),
		enqueuedAt:    m.now(),
	}
	m.byID[r.id] = r
	m.byHandle[r.receiptHandle] = r.id

	return r.envelope(), nil
}

func (m *Memory) BatchEnqueue(ctx context.Context, reqs []llmqueue.LLMRequest) ([]llmqueue.QueueMessage, error) {
	out := make([]llmqueue.QueueMessage, 0, len(reqs))
	for _, req := range reqs {
		msg, err := m.Enqueue(ctx, req)
		if err != nil {
			return out, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (m *Memory) Dequeue(_ context.Context, limit int, visibilityTimeout int) ([]llmqueue.QueueMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]llmqueue.QueueMessage, 0, limit)

	for _, r := range m.byID {
		if len(out) >= limit {
			break
		}
		if !r.visible(now) {
			continue
		}

		// Every visible->in-flight transition revokes the prior handle and
		// mints a fresh one.
		delete(m.byHandle, r.receiptHandle)
		r.receiptHandle = m.idFactory()
		r.receiveCount++
		if r.firstReceivedAt == nil {
			t := now
			r.firstReceivedAt = &t
		}
		r.visibilityDeadline = now.Add(time.Duration(visibilityTimeout) * time.Second)
		m.byHandle[r.receiptHandle] = r.id

		out = append(out, r.envelope())
	}

	return out, nil
}

func (m *Memory) DeleteMessage(_ context.Context, receiptHandle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHandle[receiptHandle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, receiptHandle)
	}

	delete(m.byHandle, receiptHandle)
	delete(m.byID, id)
	return nil
}

func (m *Memory) UpdateVisibilityTimeout(_ context.Context, receiptHandle string, seconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHandle[receiptHandle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, receiptHandle)
	}

	r := m.byID[id]
	if seconds <= 0 {
		r.visibilityDeadline = time.Time{}
		return nil
	}

	r.visibilityDeadline = m.now().Add(time.Duration(seconds) * time.Second)
	return nil
}

func (m *Memory) GetApproximateMessageCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	count := 0
	for _, r := range m.byID {
		if r.visible(now) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) PeekMessagesByPriority(_ context.Context, priority llmqueue.Priority, limit int) ([]llmqueue.QueueMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]llmqueue.QueueMessage, 0, limit)
	for _, r := range m.byID {
		if len(out) >= limit {
			break
		}
		if r.body.Priority != priority || !r.visible(now) {
			continue
		}
		out = append(out, r.envelope())
	}
	return out, nil
}

func (m *Memory) GetQueueAttributes(_ context.Context) (Attributes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	attrs := Attributes{}
	var oldest time.Time
	for _, r := range m.byID {
		if r.visible(now) {
			attrs.ApproximateVisible++
		} else {
			attrs.ApproximateInFlight++
		}
		if oldest.IsZero() || r.enqueuedAt.Before(oldest) {
			oldest = r.enqueuedAt
		}
	}
	if !oldest.IsZero() {
		attrs.OldestMessageAgeMS = now.Sub(oldest).Milliseconds()
	}
	return attrs, nil
}

func (m *Memory) Purge(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.byID)
	m.byID = make(map[string]*record)
	m.byHandle = make(map[string]string)
	return n, nil
}
