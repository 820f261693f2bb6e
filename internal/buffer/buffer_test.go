// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	llmqueue "github.com/Aid-On/llm-queue-dispatcher"
)

func msg(id string) llmqueue.QueueMessage {
	return llmqueue.QueueMessage{ID: id, Attributes: llmqueue.MessageAttributes{MessageID: id}}
}

func TestBuffer_PeekByPriority_StableAmongEqualPriority(t *testing.T) {
	b := New(10)
	assert.True(t, b.Add(msg("a"), llmqueue.Normal, nil))
	assert.True(t, b.Add(msg("b"), llmqueue.Urgent, nil))
	assert.True(t, b.Add(msg("c"), llmqueue.Normal, nil))

	got := b.PeekByPriority(0)
	ids := []string{got[0].Message.ID, got[1].Message.ID, got[2].Message.ID}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestBuffer_Eviction(t *testing.T) {
	assert := assert.New(t)
	b := New(5)

	for i := 0; i < 5; i++ {
		assert.True(b.Add(msg(string(rune('a'+i))), llmqueue.Normal, nil))
	}
	assert.Equal(5, b.Size())

	// Lower priority should not evict.
	assert.False(b.Add(msg("low"), llmqueue.Low, nil))
	assert.Equal(5, b.Size())

	// Strictly higher priority evicts the lowest-priority occupant.
	assert.True(b.Add(msg("urgent"), llmqueue.Urgent, nil))
	assert.Equal(5, b.Size())

	all := b.GetAll()
	found := false
	for _, e := range all {
		if e.Message.ID == "urgent" {
			found = true
		}
	}
	assert.True(found)
}

func TestBuffer_RemoveAndUpdateScore(t *testing.T) {
	assert := assert.New(t)
	b := New(5)
	b.Add(msg("a"), llmqueue.Normal, nil)

	assert.True(b.UpdateScore("a", 0.75))
	assert.False(b.UpdateScore("missing", 0.1))

	got := b.PeekByScore(0)
	assert.Len(got, 1)
	assert.Equal(0.75, *got[0].Score)

	assert.True(b.Remove("a"))
	assert.False(b.Remove("a"))
	assert.Equal(0, b.Size())
}

func TestBuffer_PeekByScore_ExcludesUnscored(t *testing.T) {
	assert := assert.New(t)
	b := New(5)
	b.Add(msg("a"), llmqueue.Normal, nil)
	score := 0.5
	b.Add(msg("b"), llmqueue.Normal, &score)

	got := b.PeekByScore(0)
	assert.Len(got, 1)
	assert.Equal("b", got[0].Message.ID)
}

func TestBuffer_Clear(t *testing.T) {
	b := New(5)
	b.Add(msg("a"), llmqueue.Normal, nil)
	b.Clear()
	assert.Equal(t, 0, b.Size())
}
