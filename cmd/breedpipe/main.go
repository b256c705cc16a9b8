// Command breedpipe extracts the dog breed catalog and builds the breed dimension tables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/backend/orchestration"
	"github.com/giobale/dog-breed-explorer/internal/config"
	"github.com/giobale/dog-breed-explorer/internal/logging"
	"github.com/giobale/dog-breed-explorer/internal/models"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const (
	cmdGraph = "graph"
	cmdServe = "serve"
)

const usage = `Usage: breedpipe [-env-file FILE] COMMAND

Commands:
  extract   load the breed catalog into the raw table
  run       evaluate every model
  test      run the data tests against the current tables
  build     run, then test
  all       extract, then build
  graph     print the model graph in evaluation order
  serve     serve the HTTP API and run the weekly schedule
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("breedpipe", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		fmt.Fprintln(stderr, "\nFlags:")
		flags.PrintDefaults()
	}
	envFile := flags.String("env-file", "", "env file to load before reading the environment (default .env if present)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return exitUsage
	}
	command := flags.Arg(0)
	if command != cmdGraph && command != cmdServe && !models.ValidStages[command] {
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		flags.Usage()
		return exitUsage
	}

	if command == cmdGraph {
		if err := printGraph(stdout); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return exitFailure
		}
		return exitOK
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "error: invalid configuration:", err)
		return exitFailure
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize pipeline", zap.Error(err))
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	defer a.Close()

	if command == cmdServe {
		if err := serve(ctx, a, cfg, log); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return exitFailure
		}
		return exitOK
	}

	pipelineRun, err := a.pipeline.RunStage(ctx, command, orchestration.TriggerCLI)
	if pipelineRun != nil {
		printRun(stdout, pipelineRun)
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	return exitOK
}
