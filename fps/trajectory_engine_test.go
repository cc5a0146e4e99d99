package fps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrajectoryEngineRunCompletesAgainstSimulator(t *testing.T) {
	bus := NewVirtualBus()
	logger := NewLogger(nil, "test")

	simCh := bus.Attach("sim")
	sim := NewPositionerSimulator(1, 10000, 10000, simCh, logger)
	require.NoError(t, sim.Start(context.Background()))

	ctrlCh := bus.Attach("ctrl")
	require.NoError(t, ctrlCh.Open(context.Background()))

	registry := NewRegistry(logger)
	notifier := NewNotifier(logger)
	notifier.AddChannel(ctrlCh)
	notifier.AddListener(func(ctx context.Context, ch Channel, f Frame) {
		registry.HandleFrame(f)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifier.Start(ctx)
	defer notifier.Shutdown()

	p := NewPositioner(1, 10000, 10000, registry, ctrlCh, logger)
	positioners := map[int]*Positioner{1: p}
	channelFor := func(id int) Channel { return ctrlCh }

	traj := Trajectory{
		1: PositionerTrajectory{
			Alpha: []TrajectoryPoint{{AngleDegrees: 0, TimeSeconds: 0}, {AngleDegrees: 30, TimeSeconds: 0.05}},
			Beta:  []TrajectoryPoint{{AngleDegrees: 170, TimeSeconds: 0}, {AngleDegrees: 175, TimeSeconds: 0.05}},
		},
	}

	engine := NewTrajectoryEngine(registry, logger, nil, 10*time.Millisecond, 2*time.Second)

	runCtx, runCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer runCancel()

	err := engine.Run(runCtx, traj, positioners, channelFor, false, time.Second)
	assert.NoError(t, err)
}

func TestTrajectoryEngineRejectsConcurrentRun(t *testing.T) {
	registry := NewRegistry(nil)
	engine := NewTrajectoryEngine(registry, nil, nil, 10*time.Millisecond, time.Second)

	require.True(t, engine.acquire())
	defer engine.release()

	positioners := map[int]*Positioner{}
	traj := Trajectory{}
	ch := &fakeChannel{}

	err := engine.Run(context.Background(), traj, positioners, func(int) Channel { return ch }, false, time.Second)
	assert.Error(t, err)
}
