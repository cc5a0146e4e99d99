// Command fps-goto sends a single positioner to an (alpha, beta)
// target angle and exits once the move completes.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/sdss5/fps-core/fps"
)

func main() {
	var (
		configPath  = pflag.StringP("config", "c", "fps.yaml", "path to the array configuration file")
		profileName = pflag.StringP("profile", "p", "default", "configuration profile to run")
		positioner  = pflag.IntP("positioner", "i", 0, "target positioner id")
		alpha       = pflag.Float64P("alpha", "a", 0, "target alpha angle, degrees")
		beta        = pflag.Float64P("beta", "b", 0, "target beta angle, degrees")
		relative    = pflag.Bool("relative", false, "interpret alpha/beta as offsets from the current position")
		timeout     = pflag.Duration("timeout", 30*time.Second, "overall timeout for the move")
		checkFolded = pflag.Bool("check-folded", false, "report whether the array is folded (at kaiju.lattice_position) after the move")
	)
	pflag.Parse()

	logger := fps.NewLogger(os.Stderr, "fps-goto")

	if err := run(*configPath, *profileName, *positioner, *alpha, *beta, *relative, *timeout, *checkFolded, logger); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(configPath, profileName string, positionerID int, alpha, beta float64, relative bool, timeout time.Duration, checkFolded bool, logger *fps.Logger) error {
	cfg, err := fps.LoadConfig(configPath)
	if err != nil {
		return err
	}

	profile, err := cfg.Profile(profileName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ac, err := fps.NewArrayController(ctx, profile, logger)
	if err != nil {
		return fmt.Errorf("fps-goto: start array controller: %w", err)
	}
	defer ac.Shutdown()

	if err := ac.Initialise(ctx, false, 0); err != nil {
		return fmt.Errorf("fps-goto: initialise array: %w", err)
	}

	opts := fps.GotoOptions{Relative: relative}
	if err := ac.Goto(ctx, positionerID, alpha, beta, opts); err != nil {
		return fmt.Errorf("fps-goto: positioner %d: %w", positionerID, err)
	}

	logger.Infof("positioner %d reached (%.2f, %.2f)", positionerID, alpha, beta)

	if checkFolded {
		// nil defaults to the profile's configured kaiju.lattice_position.
		folded := ac.IsFolded(nil, 0.5)
		logger.Infof("array folded: %t", folded)
	}

	return nil
}
