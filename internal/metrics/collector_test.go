// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	llmqueue "github.com/Aid-On/llm-queue-dispatcher"
)

// clock lets tests control Collector's notion of "now" without sleeping.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCollector_ReportCountsByPriority(t *testing.T) {
	assert := assert.New(t)
	clk := &clock{t: time.Now()}
	c := New()
	c.now = clk.now

	c.RecordEnqueue("a", llmqueue.Urgent)
	c.RecordEnqueue("b", llmqueue.Normal)
	c.RecordEnqueue("c", llmqueue.Normal)

	report := c.GetReport(ReportOptions{})
	assert.Equal(3, report.TotalMessages)
	assert.Equal(1, report.MessagesByPriority[llmqueue.Urgent])
	assert.Equal(2, report.MessagesByPriority[llmqueue.Normal])
}

func TestCollector_AverageWaitTimeMatchedByMessageID(t *testing.T) {
	assert := assert.New(t)
	clk := &clock{t: time.Now()}
	c := New()
	c.now = clk.now

	c.RecordEnqueue("a", llmqueue.Normal)
	clk.advance(2 * time.Second)
	c.RecordEnqueue("b", llmqueue.Normal)
	clk.advance(2 * time.Second)

	c.RecordComplete("a", 10, 100*time.Millisecond) // waited 4s
	c.RecordComplete("b", 10, 100*time.Millisecond) // waited 2s

	report := c.GetReport(ReportOptions{})
	assert.Equal(3*time.Second, report.AverageWaitTime)
}

func TestCollector_OldestMessageAge(t *testing.T) {
	assert := assert.New(t)
	clk := &clock{t: time.Now()}
	c := New()
	c.now = clk.now

	c.RecordEnqueue("a", llmqueue.Low)
	clk.advance(90 * time.Second)
	c.RecordEnqueue("b", llmqueue.Low)
	clk.advance(10 * time.Second)

	report := c.GetReport(ReportOptions{})
	assert.Equal(100*time.Second, report.OldestMessageAge)
}

func TestCollector_RetentionExcludesStaleRecords(t *testing.T) {
	assert := assert.New(t)
	clk := &clock{t: time.Now()}
	c := New(WithRetention(time.Minute))
	c.now = clk.now

	c.RecordEnqueue("stale", llmqueue.Normal)
	clk.advance(2 * time.Minute)
	c.RecordEnqueue("fresh", llmqueue.Normal)

	report := c.GetReport(ReportOptions{})
	assert.Equal(1, report.TotalMessages)
	assert.Equal(1, report.MessagesByPriority[llmqueue.Normal])
}

func TestCollector_ThroughputActualVsApproximate(t *testing.T) {
	assert := assert.New(t)
	clk := &clock{t: time.Now()}
	c := New()
	c.now = clk.now

	c.RecordComplete("a", 500, 10*time.Millisecond)
	c.RecordComplete("b", 1500, 10*time.Millisecond)

	actual := c.GetReport(ReportOptions{})
	assert.Equal(2.0, actual.Throughput.CompletesPerMinute)
	assert.Equal(2000.0, actual.Throughput.TokensPerMinute)

	approx := c.GetReport(ReportOptions{ApproximateThroughput: true})
	assert.Equal(2000.0, approx.Throughput.TokensPerMinute)
}

func TestCollector_CapacityCleanupBoundsRecordCount(t *testing.T) {
	assert := assert.New(t)
	clk := &clock{t: time.Now()}
	c := New(WithMaxRecords(10))
	c.now = clk.now

	for i := 0; i < 30; i++ {
		c.RecordEnqueue(fmt.Sprintf("msg-%d", i), llmqueue.Normal)
	}

	c.mu.Lock()
	n := len(c.records)
	c.mu.Unlock()
	// Cleanup runs only once the log grows past cap*cleanupFactor, so the
	// retained count may sit anywhere up to that threshold between cleanups.
	assert.LessOrEqual(n, int(10*cleanupFactor))
}

func TestCollector_ListenersAreNotified(t *testing.T) {
	assert := assert.New(t)
	c := New()

	var gotEnqueue EnqueueEvent
	var gotDequeue DequeueEvent
	var gotComplete CompleteEvent
	var gotFailure FailureEvent

	c.AddEnqueueListener(EnqueueListenerFunc(func(e EnqueueEvent) { gotEnqueue = e }))
	c.AddDequeueListener(DequeueListenerFunc(func(e DequeueEvent) { gotDequeue = e }))
	c.AddCompleteListener(CompleteListenerFunc(func(e CompleteEvent) { gotComplete = e }))
	c.AddFailureListener(FailureListenerFunc(func(e FailureEvent) { gotFailure = e }))

	c.RecordEnqueue("a", llmqueue.High)
	c.RecordDequeue("a", llmqueue.High)
	c.RecordComplete("a", 42, time.Second)
	c.RecordFailure("a", errors.New("boom"))

	assert.Equal("a", gotEnqueue.MessageID)
	assert.Equal(llmqueue.High, gotDequeue.Priority)
	assert.Equal(42, gotComplete.TokensUsed)
	assert.EqualError(gotFailure.Err, "boom")
}

func TestCollector_CancelListenerStopsNotifications(t *testing.T) {
	assert := assert.New(t)
	c := New()

	calls := 0
	cancel := c.AddEnqueueListener(EnqueueListenerFunc(func(EnqueueEvent) { calls++ }))
	c.RecordEnqueue("a", llmqueue.Normal)
	cancel()
	c.RecordEnqueue("b", llmqueue.Normal)

	assert.Equal(1, calls)
}
