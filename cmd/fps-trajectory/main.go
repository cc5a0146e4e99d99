// Command fps-trajectory uploads and runs a trajectory described by a
// YAML file, mapping positioner id to its alpha/beta point sequences.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/sdss5/fps-core/fps"
)

func main() {
	var (
		configPath     = pflag.StringP("config", "c", "fps.yaml", "path to the array configuration file")
		profileName    = pflag.StringP("profile", "p", "default", "configuration profile to run")
		trajectoryPath = pflag.StringP("trajectory", "t", "", "path to the trajectory YAML file")
		useSyncLine    = pflag.Bool("sync-line", false, "start the trajectory over the hardware sync line instead of a broadcast")
		timeout        = pflag.Duration("timeout", 2*time.Minute, "overall timeout for upload, start, and monitor")
	)
	pflag.Parse()

	logger := fps.NewLogger(os.Stderr, "fps-trajectory")

	if *trajectoryPath == "" {
		logger.Errorf("--trajectory is required")
		os.Exit(2)
	}

	if err := run(*configPath, *profileName, *trajectoryPath, *useSyncLine, *timeout, logger); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func loadTrajectory(path string) (fps.Trajectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trajectory %s: %w", path, err)
	}

	var t fps.Trajectory
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse trajectory %s: %w", path, err)
	}

	return t, nil
}

func run(configPath, profileName, trajectoryPath string, useSyncLine bool, timeout time.Duration, logger *fps.Logger) error {
	cfg, err := fps.LoadConfig(configPath)
	if err != nil {
		return err
	}

	profile, err := cfg.Profile(profileName)
	if err != nil {
		return err
	}

	trajectory, err := loadTrajectory(trajectoryPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ac, err := fps.NewArrayController(ctx, profile, logger)
	if err != nil {
		return fmt.Errorf("fps-trajectory: start array controller: %w", err)
	}
	defer ac.Shutdown()

	if err := ac.Initialise(ctx, true, len(trajectory)); err != nil {
		return fmt.Errorf("fps-trajectory: initialise array: %w", err)
	}

	if err := ac.SendTrajectory(ctx, trajectory, useSyncLine); err != nil {
		return fmt.Errorf("fps-trajectory: %w", err)
	}

	logger.Infof("trajectory completed for %d positioners", len(trajectory))

	return nil
}
