// Package main provides the entry point for M8Sim.
// M8Sim is a cycle-accurate simulator of an 8-stage in-order MIPS pipeline.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/m8sim/config"
	"github.com/sarchlab/m8sim/loader"
	"github.com/sarchlab/m8sim/report"
	"github.com/sarchlab/m8sim/timing/core"
	"github.com/sarchlab/m8sim/timing/pipeline"
)

// Exit codes.
const (
	exitOK         = 0
	exitAborted    = 1
	exitUsage      = 2
	exitCycleLimit = 3
	exitMismatch   = 4
)

// options are the parsed command line flags.
type options struct {
	configPath    string
	maxCycles     uint64
	start         uint
	skipMalformed bool
	quiet         bool
	check         bool
	verbosity     int
	set           map[string]bool
}

// result is the outcome of simulating one program file.
type result struct {
	code   int
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses args, simulates every program file and returns the exit code.
// Programs run concurrently; their output is written in argument order.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, paths, err := parseFlags(args, stderr)
	if err != nil {
		return exitUsage
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return exitUsage
	}

	log := newLogger(stderr, opts.verbosity)

	results := make([]*result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		results[i] = &result{}
		g.Go(func() error {
			simulate(ctx, path, cfg, opts, log.WithValues("program", path), results[i])
			return nil
		})
	}
	_ = g.Wait()

	code := exitOK
	for i, res := range results {
		if len(paths) > 1 {
			fmt.Fprintf(stdout, "==> %s <==\n", paths[i])
		}
		_, _ = stdout.Write(res.stdout.Bytes())
		_, _ = stderr.Write(res.stderr.Bytes())
		if code == exitOK {
			code = res.code
		}
	}

	return code
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("m8sim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to run configuration (JSON or YAML)")
	fs.Uint64Var(&opts.maxCycles, "max-cycles", config.DefaultMaxCycles, "Maximum cycles to simulate (0 for no limit)")
	fs.UintVar(&opts.start, "start", uint(config.DefaultStartAddress), "Address of the first instruction")
	fs.BoolVar(&opts.skipMalformed, "skip-malformed", false, "Skip malformed program lines instead of failing")
	fs.BoolVar(&opts.quiet, "q", false, "Print only the final summary")
	fs.BoolVar(&opts.check, "check", false, "Compare the final state with functional execution")
	fs.IntVar(&opts.verbosity, "v", 0, "Log verbosity on stderr (0-2)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: m8sim [options] <program.txt> [more.txt ...]\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if fs.NArg() < 1 {
		fs.Usage()
		return nil, nil, errors.New("no program given")
	}

	return opts, fs.Args(), nil
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
	}

	if opts.set["max-cycles"] {
		cfg.MaxCycles = opts.maxCycles
	}
	if opts.set["start"] {
		cfg.StartAddress = uint32(opts.start)
	}
	if opts.set["skip-malformed"] {
		cfg.SkipMalformed = opts.skipMalformed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

// simulate runs one program file and records its output and exit code.
func simulate(
	ctx context.Context,
	path string,
	cfg *config.Config,
	opts *options,
	log logr.Logger,
	res *result,
) {
	prog, err := loader.Load(path, loader.Options{SkipMalformed: cfg.SkipMalformed})
	if err != nil {
		fmt.Fprintf(&res.stderr, "Error loading program: %v\n", err)
		res.code = exitUsage
		return
	}
	for _, skipped := range prog.Skipped {
		fmt.Fprintf(&res.stderr, "Warning: %s: skipped %v\n", path, skipped)
	}

	mode := report.ModeCycles
	if opts.quiet {
		mode = report.ModeSummary
	}
	reporter := report.NewReporter(&res.stdout, report.WithMode(mode))

	c, err := core.NewCore(cfg, core.WithLogger(log), core.WithHook(reporter))
	if err != nil {
		fmt.Fprintf(&res.stderr, "Error: %v\n", err)
		res.code = exitUsage
		return
	}
	c.LoadProgram(prog.Words)

	err = c.Run(ctx)
	snapshot := c.Snapshot()

	switch {
	case err == nil:
		reporter.Summary(&snapshot)
		res.code = exitOK
		if opts.check {
			res.code = checkResult(c, res)
		}

	case errors.Is(err, pipeline.ErrCycleLimit):
		reporter.Summary(&snapshot)
		fmt.Fprintf(&res.stderr, "Error: %s: cycle limit of %d reached before the pipeline drained\n",
			path, cfg.MaxCycles)
		res.code = exitCycleLimit

	default:
		reporter.Abort(&snapshot, err)
		fmt.Fprintf(&res.stderr, "Error: %s: %v\n", path, err)
		res.code = exitAborted
	}

	if werr := reporter.Err(); werr != nil {
		fmt.Fprintf(&res.stderr, "Error writing report: %v\n", werr)
	}
}

func checkResult(c *core.Core, res *result) int {
	if err := c.Check(); err != nil {
		fmt.Fprintf(&res.stderr, "Check failed: %v\n", err)
		return exitMismatch
	}
	fmt.Fprintf(&res.stdout, "Check: pipeline state matches functional execution\n")
	return exitOK
}
