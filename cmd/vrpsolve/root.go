package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"routeopt/internal/config"
	"routeopt/internal/integrations"
	"routeopt/internal/integrations/csvsource"
	"routeopt/internal/model"
	"routeopt/internal/opt"
)

type flags struct {
	input     string
	timeLimit time.Duration
	strategy  string
	workers   int
	pretty    bool
	csv       bool
	vehicles  int
	capacity  int
	verbose   bool
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "vrpsolve",
		Short: "Solve a capacitated vehicle routing instance with time windows",
		Long: `Reads a solve request (JSON, or CSV rows of lat,lng,demand,window_start,window_end
with --csv) from --input or stdin and writes the result JSON to stdout.
The exit status is 0 for ok, no_solution and error results; only I/O failures exit non-zero.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, cmd, f, stdin, stdout)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "read the request from this file instead of stdin")
	fl.DurationVarP(&f.timeLimit, "time-limit", "t", 0, "local search wall-clock budget (default from config, 10s)")
	fl.StringVarP(&f.strategy, "strategy", "s", "", "first solution strategy: cheapest_insertion, savings or nearest_neighbor")
	fl.IntVar(&f.workers, "workers", 0, "parallel move evaluation workers (0: all CPUs)")
	fl.BoolVar(&f.pretty, "pretty", false, "indent the JSON result")
	fl.BoolVar(&f.csv, "csv", false, "input is CSV; the first row is the depot")
	fl.IntVar(&f.vehicles, "vehicles", 0, "vehicle count for CSV input")
	fl.IntVar(&f.capacity, "capacity", 0, "vehicle capacity for CSV input")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log solve progress and a summary to stderr")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, f flags, stdin io.Reader, stdout io.Writer) error {
	in := stdin
	if f.input != "" {
		file, err := os.Open(f.input)
		if err != nil {
			return err
		}
		defer file.Close()
		in = file
	}
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	base, err := cfg.SolverOptions()
	if err != nil {
		return err
	}
	if f.timeLimit > 0 {
		secs := f.timeLimit.Seconds()
		if base, err = base.With(&model.SolveOptions{TimeLimitSeconds: &secs}); err != nil {
			return write(stdout, opt.ExtractError(err), f.pretty)
		}
	}
	if f.workers > 0 {
		base.Workers = f.workers
	}
	if f.strategy != "" {
		s, err := opt.ParseStrategy(f.strategy)
		if err != nil {
			return write(stdout, opt.ExtractError(err), f.pretty)
		}
		base.Strategy = s
	}
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	if f.verbose {
		base.Observer = func(p opt.Progress) {
			logger.Printf("phase=%s iter=%d cost=%d best=%d elapsed=%s", p.Phase, p.Iteration, p.Cost, p.BestCost, p.Elapsed)
		}
	}

	req, err := decode(ctx, raw, f)
	if err != nil {
		return write(stdout, model.SolveResponse{Status: model.StatusError, Msg: err.Error()}, f.pretty)
	}
	resp, m := opt.SolveRequest(ctx, req, base)
	if f.verbose {
		logger.Printf("status=%s stops=%d vehicles=%d strategy=%s construct_cost=%d final_cost=%d iterations=%d stop=%s",
			m.Status, m.Stops, m.Vehicles, m.Strategy, m.ConstructionCost, m.FinalCost, m.Search.Iterations, m.Search.Stop)
	}
	return write(stdout, resp, f.pretty)
}

func decode(ctx context.Context, raw []byte, f flags) (model.SolveRequest, error) {
	if f.csv {
		return integrations.Request(ctx, csvsource.Adapter{}, bytes.NewReader(raw), f.vehicles, f.capacity)
	}
	var req model.SolveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("invalid request JSON: %w", err)
	}
	return req, nil
}

func write(w io.Writer, resp model.SolveResponse, pretty bool) error {
	b, err := opt.Encode(resp)
	if err != nil {
		return err
	}
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, b, "", "  "); err != nil {
			return err
		}
		b = buf.Bytes()
	}
	_, err = w.Write(b)
	return err
}
