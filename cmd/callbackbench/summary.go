package main

import (
	"fmt"
	"io"
	"time"

	"github.com/montanaflynn/stats"
)

// summary describes the latency distribution of one mode.
type summary struct {
	Mode     string
	Count    int
	Failures int
	Min      time.Duration
	Mean     time.Duration
	Median   time.Duration
	P95      time.Duration
	P99      time.Duration
	Max      time.Duration
}

// summarize computes the latency summary for samples.
func summarize(mode string, samples []time.Duration, failures int) (summary, error) {
	s := summary{Mode: mode, Count: len(samples), Failures: failures}
	if len(samples) == 0 {
		return s, nil
	}

	data := make(stats.Float64Data, len(samples))
	for i, d := range samples {
		data[i] = float64(d)
	}

	var err error
	fields := []struct {
		dst *time.Duration
		fn  func(stats.Float64Data) (float64, error)
	}{
		{&s.Min, stats.Min},
		{&s.Mean, stats.Mean},
		{&s.Median, stats.Median},
		{&s.P95, func(d stats.Float64Data) (float64, error) { return stats.Percentile(d, 95) }},
		{&s.P99, func(d stats.Float64Data) (float64, error) { return stats.Percentile(d, 99) }},
		{&s.Max, stats.Max},
	}
	for _, f := range fields {
		var v float64
		if v, err = f.fn(data); err != nil {
			return s, fmt.Errorf("summarize %s: %w", mode, err)
		}
		*f.dst = time.Duration(v)
	}
	return s, nil
}

// write prints the summary as one aligned line.
func (s summary) write(w io.Writer) {
	fmt.Fprintf(w, "%-6s n=%-8d failed=%-6d min=%-10v mean=%-10v median=%-10v p95=%-10v p99=%-10v max=%v\n",
		s.Mode, s.Count, s.Failures, s.Min, s.Mean, s.Median, s.P95, s.P99, s.Max)
}
