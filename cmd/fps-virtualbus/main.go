// Command fps-virtualbus runs a handful of simulated positioners on an
// in-process virtual bus until interrupted, for exercising the rest of
// this module without real hardware attached. It logs how many
// positioners it started and a line on shutdown; individual frames are
// not printed.
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
	count := pflag.IntP("count", "n", 4, "number of simulated positioners")
	alphaSteps := pflag.Int("alpha-steps", 10000, "simulated alpha motor steps per revolution")
	betaSteps := pflag.Int("beta-steps", 10000, "simulated beta motor steps per revolution")
	pflag.Parse()

	logger := fps.NewLogger(os.Stderr, "fps-virtualbus")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bus := fps.NewVirtualBus()

	sims := make([]*fps.PositionerSimulator, 0, *count)
	for i := 1; i <= *count; i++ {
		ch := bus.Attach(fmt.Sprintf("sim-%d", i))
		sim := fps.NewPositionerSimulator(i, *alphaSteps, *betaSteps, ch, logger)
		sim.Start(ctx)
		sims = append(sims, sim)
	}

	logger.Infof("%d simulated positioners running on the virtual bus", len(sims))
	<-ctx.Done()
	logger.Infof("shutting down")
}
