// Command fpsd runs a positioner array controller as a long-lived
// daemon: it opens the configured channels, discovers positioners, and
// keeps their status and position fresh until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sdss5/fps-core/fps"
)

func main() {
	var (
		configPath    = pflag.StringP("config", "c", "fps.yaml", "path to the array configuration file")
		profileName   = pflag.StringP("profile", "p", "default", "configuration profile to run")
		expectedCount = pflag.IntP("expected", "n", 0, "number of positioners to expect during discovery")
		logLevel      = pflag.String("log-level", "info", "log level: debug, info, warn, error (accepted but not applied; the logger keeps its default level)")
	)
	pflag.Parse()

	logger := fps.NewLogger(os.Stderr, "fpsd")
	_ = logLevel

	if err := run(*configPath, *profileName, *expectedCount, logger); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(configPath, profileName string, expectedCount int, logger *fps.Logger) error {
	cfg, err := fps.LoadConfig(configPath)
	if err != nil {
		return err
	}

	profile, err := cfg.Profile(profileName)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ac, err := fps.NewArrayController(ctx, profile, logger)
	if err != nil {
		return fmt.Errorf("fpsd: start array controller: %w", err)
	}
	defer ac.Shutdown()

	if err := ac.Initialise(ctx, true, expectedCount); err != nil {
		return fmt.Errorf("fpsd: initialise array: %w", err)
	}

	logger.Infof("array %q running, waiting for signal", profileName)
	<-ctx.Done()
	logger.Infof("shutting down")

	return nil
}
