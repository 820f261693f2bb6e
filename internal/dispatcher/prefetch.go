// SPDX-License-Identifier: Apache-2.0

package dispatcher

import (
	"context"
	"time"
)

// Start launches the prefetch worker if enablePrefetch was configured. It
// is a no-op if prefetch is disabled or the worker is already running,
// mirroring internal/wrphandlers/qos.Handler.Start's idempotent guard.
func (d *Dispatcher) Start() {
	if !d.enablePrefetch {
		return
	}

	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	if d.shutdown != nil {
		return
	}

	var ctx context.Context
	ctx, d.shutdown = context.WithCancel(context.Background())

	d.wg.Add(1)
	go d.run(ctx)
}

// Stop cancels the prefetch worker and waits for it to exit. It does not
// affect outstanding ProcessableMessage handles, which remain valid until
// acknowledged or their visibility timeout expires.
func (d *Dispatcher) Stop() {
	d.lifecycleMu.Lock()
	shutdown := d.shutdown
	d.shutdown = nil
	d.lifecycleMu.Unlock()

	if shutdown == nil {
		return
	}

	shutdown()
	d.wg.Wait()
}

// run is the prefetch worker's long-running goroutine: tick, refill,
// extend visibility of buffered candidates, drop any that fail
// extension. A storage error pauses the loop for one retry.Policy
// backoff step instead of spinning on the immediate next tick.
func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.prefetchInterval)
	defer ticker.Stop()

	policy := d.retryPolicyFactory.NewPolicy(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.prefetchTick(ctx); err != nil {
				d.logger.Warn("prefetch tick failed", "error", err)

				wait, _ := policy.Next()
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return
				}
				continue
			}
			policy = d.retryPolicyFactory.NewPolicy(ctx)
		}
	}
}

// prefetchTick performs one prefetch cycle: refill the buffer if it has
// room, then extend the visibility of everything already buffered,
// dropping any entry whose extension fails.
func (d *Dispatcher) prefetchTick(ctx context.Context) error {
	if room := d.bufferSize - d.buf.Size(); room > 0 {
		if err := d.prefetchRefill(ctx, room); err != nil {
			return err
		}
	}

	seconds := int(d.visibilityTimeout / time.Second)
	for _, entry := range d.buf.GetAll() {
		if err := d.storage.UpdateVisibilityTimeout(ctx, entry.Message.Attributes.ReceiptHandle, seconds); err != nil {
			d.logger.Debug("dropping buffered candidate after failed visibility extension", "messageId", entry.Message.ID, "error", err)
			d.buf.Remove(entry.Message.ID)
		}
	}

	return nil
}

// prefetchRefill pulls up to n visible messages from storage and adds
// them to the buffer with the configured visibility timeout.
func (d *Dispatcher) prefetchRefill(ctx context.Context, n int) error {
	msgs, err := d.storage.Dequeue(ctx, n, int(d.visibilityTimeout/time.Second))
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		d.buf.Add(msg, msg.Body.Priority, nil)
	}
	return nil
}
