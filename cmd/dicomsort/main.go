package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/scanwell-labs/dicomsort/pkg/buildinfo"
	"github.com/scanwell-labs/dicomsort/pkg/config"
	"github.com/scanwell-labs/dicomsort/pkg/dicommeta"
	"github.com/scanwell-labs/dicomsort/pkg/engine"
	"github.com/scanwell-labs/dicomsort/pkg/flagparse"
	"github.com/scanwell-labs/dicomsort/pkg/plog"
)

// runSort handles the logic for the 'sort' command.
func runSort(ctx context.Context, flagMap map[string]interface{}) error {
	// Merge the flag values over the defaults to get the final run config.
	runConfig := config.MergeConfigWithFlags(config.NewDefault(), flagMap)

	// Set the global log level based on the final configuration.
	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))

	if err := runConfig.Validate(); err != nil {
		return err
	}

	runConfig.LogSummary()

	startTime := time.Now()
	runner := engine.NewRunner(runConfig, dicommeta.NewParser())
	err := runner.ExecuteSort(ctx)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err // The error will be logged with full details by main()
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)
	return nil
}

// run encapsulates the main application logic and returns an error if something
// goes wrong, allowing the main function to handle exit codes.
func run(ctx context.Context) error {
	command, flagMap, err := flagparse.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	switch command {
	case flagparse.None:
		// Help was printed, nothing else to do.
		return nil
	case flagparse.Version:
		fmt.Printf("%s version %s\n", buildinfo.Name, buildinfo.Version)
		return nil
	case flagparse.Sort:
		plog.Info("Starting "+buildinfo.Name, "version", buildinfo.Version, "pid", os.Getpid())
		return runSort(ctx, flagMap)
	default:
		return fmt.Errorf("internal error: unknown command %d", command)
	}
}

func main() {
	// Set up a context that is canceled when an interrupt signal is received.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for interrupt signals (like Ctrl+C) in a separate goroutine.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx); err != nil {
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		os.Exit(1)
	}
}
