package main

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/joshuapare/poolkit/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchCommand(t *testing.T) {
	for _, policy := range []string{"first", "best"} {
		t.Run(policy, func(t *testing.T) {
			resetFlags()
			benchPools = 4
			benchWorkers = 3
			benchOps = 5000
			benchSize = "64KiB"
			benchPolicy = policy

			output, err := captureOutput(t, runBench)
			require.NoError(t, err)
			assertContains(t, output, []string{"5,000 ops on 4", "POOL", "ALLOCATED", "pool#0.1", "pool#3.4"})
		})
	}
}

func TestBenchCommand_JSON(t *testing.T) {
	resetFlags()
	jsonOut = true
	benchPools = 2
	benchWorkers = 2
	benchOps = 1000
	benchSize = "16KiB"

	output, err := captureOutput(t, runBench)
	require.NoError(t, err)
	assertJSON(t, output)

	var got BenchResult
	require.NoError(t, json.Unmarshal([]byte(output), &got))
	assert.Equal(t, 2, got.Pools)
	assert.Equal(t, 1000, got.Ops)
	require.Len(t, got.PerPool, 2)

	// Every operation lands on some pool: allocations attempted plus frees.
	total := 0
	for _, p := range got.PerPool {
		assert.Equal(t, int64(16*1024), p.Stats.TotalSize)
		assert.Equal(t, p.Live, p.Stats.AllocationCount)
		assert.Equal(t, p.NoFit, p.Stats.Ops.NoFit)
		total += p.Stats.Ops.AllocCalls + p.Stats.Ops.FreeCalls
	}
	assert.Equal(t, 1000, total)
}

func TestBenchCommand_BadFlags(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{"zero pools", func() { benchPools = 0 }},
		{"zero workers", func() { benchWorkers = 0 }},
		{"zero max alloc", func() { benchMaxSize = 0 }},
		{"bad size", func() { benchSize = "huge" }},
		{"bad policy", func() { benchPolicy = "random" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			benchOps = 10
			tt.setup()
			_, err := captureOutput(t, runBench)
			assert.Error(t, err)
		})
	}
}

func TestBenchPool_Churn(t *testing.T) {
	reg, err := pool.NewRegistry(pool.DefaultConfig)
	require.NoError(t, err)
	h, err := reg.Open(4096, pool.BestFit)
	require.NoError(t, err)
	p, err := reg.Pool(h)
	require.NoError(t, err)

	bp := &benchPool{handle: h, p: p}
	require.NoError(t, bp.churn(rand.New(rand.NewSource(3)), 2000, 512))
	require.NoError(t, p.Check())
	assert.Equal(t, len(bp.live), p.Allocations())
	assert.Equal(t, 2000, p.Stats().Ops.AllocCalls+p.Stats().Ops.FreeCalls)
}

func TestBenchCommand_VerboseJSON(t *testing.T) {
	resetFlags()
	verbose = true
	jsonOut = true
	benchPools = 2
	benchOps = 200
	benchSize = "8KiB"

	output, err := captureOutput(t, runBench)
	require.NoError(t, err)
	assertJSON(t, output)
}
