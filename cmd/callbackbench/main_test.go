package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nativecallback "github.com/opd-ai/nativecallback"
	"github.com/opd-ai/nativecallback/harness"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// TestComputeCommand tests the compute subcommand
func TestComputeCommand(t *testing.T) {
	out, err := execute(t, "compute", "5")
	require.NoError(t, err)
	assert.Equal(t, "compute(5) = 30\n", out)

	out, err = execute(t, "compute", "--", "-3")
	require.NoError(t, err)
	assert.Equal(t, "compute(-3) = 6\n", out)

	_, err = execute(t, "compute", "4294967296")
	assert.Error(t, err)

	_, err = execute(t, "compute")
	assert.Error(t, err)
}

// TestRunCommand tests a default run over both modes
func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--iterations", "20", "--concurrency", "2", "--style", "reusable", "--log-level", "error")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "sync "))
	assert.True(t, strings.HasPrefix(lines[1], "async "))
	for _, line := range lines {
		assert.Contains(t, line, "n=20 ")
		assert.Contains(t, line, "failed=0 ")
	}
}

// TestRunCommandGoDispatch tests a run with Go dispatch instead of the C entry point
func TestRunCommandGoDispatch(t *testing.T) {
	out, err := execute(t, "run", "--native=false", "--iterations", "10", "--mode", "async", "--style", "prepared", "--log-level", "error")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "async "))
	assert.Contains(t, out, "n=10 ")

	inv, err := (&runConfig{native: false}).invoker()
	require.NoError(t, err)
	assert.IsType(t, &nativecallback.Surface{}, inv)
}

// TestRunCommandRejectsBadFlags tests flag validation for the run subcommand
func TestRunCommandRejectsBadFlags(t *testing.T) {
	tests := [][]string{
		{"run", "--iterations", "0"},
		{"run", "--concurrency", "0"},
		{"run", "--iterations", "2", "--concurrency", "3"},
		{"run", "--mode", "sideways"},
		{"run", "--style", "eager"},
		{"run", "--iterations", "1", "--log-level", "chatty"},
	}
	for _, args := range tests {
		_, err := execute(t, args...)
		assert.Error(t, err, "args %v", args)
	}
}

// TestModes tests mode name parsing
func TestModes(t *testing.T) {
	m, err := modes("sync")
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, m)

	m, err = modes("async")
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, m)

	m, err = modes("both")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, m)

	_, err = modes("")
	assert.Error(t, err)
}

type pendingForever struct{}

func (pendingForever) InvokeCallback(nativecallback.Callback, unsafe.Pointer, bool) (nativecallback.Status, error) {
	return nativecallback.StatusPending, nil
}

// TestBenchCountsFailures tests that failed invocations are counted rather than fatal
func TestBenchCountsFailures(t *testing.T) {
	cfg := &runConfig{
		iterations:  6,
		concurrency: 3,
		mode:        "async",
		style:       "oneshot",
		timeout:     time.Millisecond,
	}

	summaries, err := cfg.bench(context.Background(), pendingForever{}, nil)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "async", summaries[0].Mode)
	assert.Equal(t, 0, summaries[0].Count)
	assert.Equal(t, 6, summaries[0].Failures)
}

// TestBenchStopsOnCancel tests that cancellation stops a run
func TestBenchStopsOnCancel(t *testing.T) {
	cfg := &runConfig{iterations: 100, concurrency: 1, mode: "sync", style: "oneshot", timeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cfg.bench(ctx, nativecallback.NewSurface(nil), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestBenchRecordsMetrics tests that a run records prometheus metrics
func TestBenchRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := harness.NewMetrics(reg)
	require.NoError(t, err)

	cfg := &runConfig{iterations: 10, concurrency: 2, mode: "both", style: "always-await", timeout: time.Second}
	summaries, err := cfg.bench(context.Background(), nativecallback.NewSurface(nil), metrics)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	count, err := testutil.GatherAndCount(reg, "callbackbench_invocations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// TestSummarize tests the latency summary statistics
func TestSummarize(t *testing.T) {
	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[i] = time.Duration(i+1) * time.Microsecond
	}

	s, err := summarize("sync", samples, 3)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Count)
	assert.Equal(t, 3, s.Failures)
	assert.Equal(t, time.Microsecond, s.Min)
	assert.Equal(t, 100*time.Microsecond, s.Max)
	assert.Equal(t, 50500*time.Nanosecond, s.Mean)
	assert.Equal(t, 50500*time.Nanosecond, s.Median)
	assert.InDelta(t, float64(95*time.Microsecond), float64(s.P95), float64(time.Microsecond))
	assert.InDelta(t, float64(99*time.Microsecond), float64(s.P99), float64(time.Microsecond))

	var buf bytes.Buffer
	s.write(&buf)
	assert.Contains(t, buf.String(), "n=100")
	assert.Contains(t, buf.String(), "failed=3")
}

// TestSummarizeEmpty tests a summary with no successful samples
func TestSummarizeEmpty(t *testing.T) {
	s, err := summarize("async", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, 2, s.Failures)
	assert.Zero(t, s.Mean)
}
