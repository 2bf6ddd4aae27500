package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkersConfigured(t *testing.T) {
	assert.Equal(t, 3, Workers(3))
}

func TestWorkersAuto(t *testing.T) {
	assert.GreaterOrEqual(t, Workers(0), 1)
}

func TestWorkersFor(t *testing.T) {
	cases := []struct {
		name string
		res  Resources
		want int
	}{
		{"cpu bound", Resources{CPUs: 4, AvailableMemory: 8 * 1024 * WorkerMemory}, 4},
		{"memory bound", Resources{CPUs: 16, AvailableMemory: 2 * WorkerMemory}, 2},
		{"starved", Resources{CPUs: 8, AvailableMemory: WorkerMemory / 2}, 1},
		{"unknown memory", Resources{CPUs: 6}, 6},
		{"no cpus", Resources{}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, workersFor(tc.res))
		})
	}
}

func TestProbe(t *testing.T) {
	res, err := Probe()
	require.NoError(t, err)
	assert.Positive(t, res.CPUs)
	assert.Positive(t, res.TotalMemory)
	assert.Contains(t, res.String(), "CPUs")
}
