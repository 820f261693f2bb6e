// SPDX-License-Identifier: Apache-2.0

// Package llmqueue defines the shared data model for the rate-aware LLM
// request dispatcher: the client-facing request envelope, the
// storage-assigned queue message, and the scoring types the dispatcher and
// scorer exchange.
package llmqueue

import "time"

// TokenInfo describes the token budget an LLMRequest is expected to consume.
type TokenInfo struct {
	// Estimated is the caller's best-effort token estimate for the request.
	// It must be a positive integer.
	Estimated int
	// Actual is filled in after processing, if known.
	Actual *int
	// Model is the model the request will be routed to, if known.
	Model string
}

// LLMRequest is the client-supplied unit of work submitted to the
// dispatcher.
type LLMRequest struct {
	// ID is a stable, client-supplied identifier, opaque to the dispatcher.
	ID string
	// Payload is the arbitrary request body.
	Payload any
	// Priority is the client's requested urgency.
	Priority Priority
	// TokenInfo carries the request's token budget.
	TokenInfo TokenInfo
	// ExpectedProcessingTime, if supplied, overrides the scorer's
	// estimated-token-based processing time heuristic.
	ExpectedProcessingTime *time.Duration
	// Metadata is an opaque, caller-defined key/value map.
	Metadata map[string]string
	// CreatedAt is set by the caller; storage does not fill it in at
	// enqueue time.
	CreatedAt time.Time
}
