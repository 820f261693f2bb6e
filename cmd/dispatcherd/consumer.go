// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Aid-On/llm-queue-dispatcher/internal/dispatcher"
	"github.com/Aid-On/llm-queue-dispatcher/internal/ratelimiter"
)

// idlePollInterval is how long consumeLoop waits before retrying Dequeue
// after finding nothing to process.
const idlePollInterval = 250 * time.Millisecond

// consumeLoop repeatedly dequeues the best candidate and marks it
// processed immediately, standing in for a real LLM call. It exists to
// demonstrate the dispatcher/rate-limiter contract end to end; a real
// deployment replaces the body of the loop with an actual model call.
func consumeLoop(ctx context.Context, d *dispatcher.Dispatcher, limiter ratelimiter.RateLimiter, log *zap.SugaredLogger) {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm, err := d.Dequeue(ctx, limiter)
			if err != nil {
				log.Warnw("dequeue failed", "error", err)
				continue
			}
			if pm == nil {
				continue
			}

			tokensUsed := pm.Request().TokenInfo.Estimated
			if err := pm.MarkAsProcessed(ctx, tokensUsed); err != nil {
				log.Warnw("mark as processed failed", "messageId", pm.ID(), "error", err)
				continue
			}

			log.Debugw("processed message", "messageId", pm.ID(), "priority", pm.Request().Priority.String())
		}
	}
}
