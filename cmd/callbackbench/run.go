package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	nativecallback "github.com/opd-ai/nativecallback"
	"github.com/opd-ai/nativecallback/harness"
)

// runConfig is the configuration for the run subcommand.
type runConfig struct {
	iterations  int
	concurrency int
	mode        string
	style       string
	timeout     time.Duration
	logLevel    string
	metricsAddr string
	native      bool
}

// runSubcommand returns the run subcommand.
func runSubcommand() *cobra.Command {
	cfg := &runConfig{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Invoke the callback surface repeatedly and summarise latency",
		Args:  cobra.NoArgs,
		RunE:  cfg.main,
	}
	flags := cmd.Flags()
	flags.IntVar(&cfg.iterations, "iterations", 10000, "invocations per mode")
	flags.IntVar(&cfg.concurrency, "concurrency", 1, "concurrent drivers per mode")
	flags.StringVar(&cfg.mode, "mode", "both", "sync, async or both")
	flags.StringVar(&cfg.style, "style", harness.StyleOneShot.String(), "oneshot, reusable, always-await, reusable-await or prepared")
	flags.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "maximum wait for an asynchronous callback")
	flags.StringVar(&cfg.logLevel, "log-level", "warn", "logrus level")
	flags.StringVar(&cfg.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	flags.BoolVar(&cfg.native, "native", true, "call through the exported C entry point; false dispatches in Go")
	return cmd
}

// modes returns the nativeAsync values selected by name.
func modes(name string) ([]bool, error) {
	switch name {
	case "sync":
		return []bool{false}, nil
	case "async":
		return []bool{true}, nil
	case "both":
		return []bool{false, true}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", name)
	}
}

// validate checks flag values before anything starts.
func (c *runConfig) validate() error {
	if c.iterations <= 0 {
		return errors.New("iterations must be positive")
	}
	if c.concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	if c.concurrency > c.iterations {
		return errors.New("concurrency must not exceed iterations")
	}
	if _, err := modes(c.mode); err != nil {
		return err
	}
	if _, err := harness.ParseStyle(c.style); err != nil {
		return err
	}
	return nil
}

// main is the main function of the run subcommand.
func (c *runConfig) main(cmd *cobra.Command, _ []string) error {
	if err := c.validate(); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	invoker, err := c.invoker()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *harness.Metrics
	if c.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if metrics, err = harness.NewMetrics(reg); err != nil {
			return err
		}
		srv := &http.Server{
			Addr:              c.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithFields(logrus.Fields{
					"function": "run",
					"addr":     c.metricsAddr,
					"error":    err.Error(),
				}).Error("Metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	summaries, err := c.bench(ctx, invoker, metrics)
	for _, s := range summaries {
		s.write(cmd.OutOrStdout())
	}
	return err
}

// invoker returns the invoker selected by --native.
func (c *runConfig) invoker() (harness.Invoker, error) {
	if c.native {
		return nativeInvoker()
	}
	return nativecallback.NewSurface(nil), nil
}

// bench runs every selected mode and returns one summary per mode.
func (c *runConfig) bench(ctx context.Context, invoker harness.Invoker, metrics *harness.Metrics) ([]summary, error) {
	style, err := harness.ParseStyle(c.style)
	if err != nil {
		return nil, err
	}
	selected, err := modes(c.mode)
	if err != nil {
		return nil, err
	}

	opts := harness.DefaultOptions()
	opts.Style = style
	opts.Timeout = c.timeout
	opts.Metrics = metrics

	var out []summary
	for _, nativeAsync := range selected {
		samples, failures, err := c.benchMode(ctx, invoker, opts, nativeAsync)
		if err != nil {
			return out, err
		}
		s, err := summarize(modeName(nativeAsync), samples, failures)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

func modeName(nativeAsync bool) string {
	if nativeAsync {
		return "async"
	}
	return "sync"
}

// benchMode splits the iterations across concurrency drivers. Failed
// invocations are counted, not fatal; only cancellation stops the run.
func (c *runConfig) benchMode(ctx context.Context, invoker harness.Invoker, opts harness.Options, nativeAsync bool) ([]time.Duration, int, error) {
	perWorker := make([][]time.Duration, c.concurrency)
	failures := make([]int, c.concurrency)

	drivers := make([]*harness.Driver, c.concurrency)
	for w := range drivers {
		d, err := harness.NewDriver(invoker, opts)
		if err != nil {
			return nil, 0, err
		}
		drivers[w] = d
	}

	g, gctx := errgroup.WithContext(ctx)
	for w, d := range drivers {
		w, d := w, d
		n := c.iterations / c.concurrency
		if w < c.iterations%c.concurrency {
			n++
		}

		g.Go(func() error {
			samples := make([]time.Duration, 0, n)
			for i := 0; i < n; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := d.Invoke(gctx, nativeAsync)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					failures[w]++
					continue
				}
				samples = append(samples, res.Latency)
			}
			perWorker[w] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var all []time.Duration
	total := 0
	for w := range perWorker {
		all = append(all, perWorker[w]...)
		total += failures[w]
	}
	return all, total, nil
}
