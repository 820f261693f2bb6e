// SPDX-License-Identifier: Apache-2.0

package presets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aid-On/llm-queue-dispatcher/internal/dispatcher"
	"github.com/Aid-On/llm-queue-dispatcher/internal/storage"
)

func TestPresets_ConstructValidDispatchers(t *testing.T) {
	require := require.New(t)

	allPresets := map[string][]dispatcher.Option{
		"default":         Default(),
		"simple-priority": SimplePriority(),
		"throughput":      Throughput(),
		"fair":            Fair(),
	}

	for name, opts := range allPresets {
		t.Run(name, func(t *testing.T) {
			_, err := dispatcher.New(storage.NewMemory(), opts...)
			require.NoError(err)
		})
	}
}

func TestPrefetching_EnforcesMinimumBufferSize(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	base := map[string][]dispatcher.Option{
		"fair":            Fair(),
		"default":         Default(),
		"simple-priority": SimplePriority(),
	}

	for name, baseOpts := range base {
		t.Run(name, func(t *testing.T) {
			opts := append(baseOpts, Prefetching(10)...)
			d, err := dispatcher.New(storage.NewMemory(), opts...)
			require.NoError(err)
			require.NotNil(d)

			report, err := d.GetQueueMetrics(t.Context())
			require.NoError(err)
			assert.GreaterOrEqual(report.BufferCapacity, 100)
		})
	}
}
