package fps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() ProfileConfig {
	return ProfileConfig{
		ChannelType: "virtual",
		Channels:    []ChannelConfig{{Name: "bus0"}},
		MotorSteps:  MotorStepsConfig{Alpha: 10000, Beta: 10000},
		MotorSpeed:  MotorSpeedConfig{Alpha: 500, Beta: 500},

		InitialiseTimeout: 500 * time.Millisecond,
		CommandTimeout:    500 * time.Millisecond,

		StatusPollerDelay:   time.Hour,
		PositionPollerDelay: time.Hour,

		Kaiju: KaijuConfig{LatticePosition: FoldAngles{Alpha: 0, Beta: 180}},
	}
}

// newDiscoverableArray wires an ArrayController to a virtual bus that
// also carries a handful of simulated positioners, so Initialise has
// something to discover.
func newDiscoverableArray(t *testing.T, simCount int) (*ArrayController, *VirtualBus) {
	t.Helper()

	bus := NewVirtualBus()
	logger := NewLogger(nil, "test")

	for i := 1; i <= simCount; i++ {
		ch := bus.Attach("sim")
		sim := NewPositionerSimulator(i, 10000, 10000, ch, logger)
		require.NoError(t, sim.Start(context.Background()))
	}

	ac := &ArrayController{
		logger:      logger,
		channels:    map[string]Channel{"bus0": bus.Attach("ctrl")},
		channelOf:   make(map[int]string),
		registry:    NewRegistry(logger),
		syncLines:   make(map[string]SyncLine),
		profile:     testProfile(),
		positioners: make(map[int]*Positioner),
	}
	ac.notifier = NewNotifier(logger)
	for _, ch := range ac.channels {
		ac.notifier.AddChannel(ch)
	}
	ac.notifier.AddListener(func(ctx context.Context, ch Channel, f Frame) {
		ac.registry.HandleFrame(f)
		ac.onUnsolicitedFrame(f)
	})
	ac.engine = NewTrajectoryEngine(ac.registry, logger, nil, 10*time.Millisecond, time.Second)
	ac.notifier.Start(context.Background())

	return ac, bus
}

func TestArrayControllerInitialiseDiscoversPositioners(t *testing.T) {
	ac, _ := newDiscoverableArray(t, 3)
	defer ac.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, ac.Initialise(ctx, false, 3))

	positioners := ac.snapshotPositioners()
	assert.Len(t, positioners, 3)
	for _, p := range positioners {
		assert.True(t, p.Status().Has(StatusSystemInitialized))
	}
}

func TestArrayControllerGotoMovesSimulatedPositioner(t *testing.T) {
	ac, _ := newDiscoverableArray(t, 1)
	defer ac.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, ac.Initialise(ctx, false, 1))

	positioners := ac.snapshotPositioners()
	require.Len(t, positioners, 1)
	id := positioners[0].ID

	require.NoError(t, ac.Goto(ctx, id, 45, 180, GotoOptions{}))

	alpha, beta := positioners[0].Position()
	assert.InDelta(t, 45, alpha, 1.0)
	assert.InDelta(t, 180, beta, 1.0)
}

func TestArrayControllerIsFoldedIgnoresDisabledPositioners(t *testing.T) {
	ac, _ := newDiscoverableArray(t, 1)
	defer ac.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ac.Initialise(ctx, false, 1))

	positioners := ac.snapshotPositioners()
	require.Len(t, positioners, 1)
	positioners[0].SetDisabled(true)

	assert.True(t, ac.IsFolded(&FoldAngles{Alpha: 0, Beta: 180}, 0.5))
}

func TestArrayControllerIsFoldedDefaultsToConfiguredLatticePosition(t *testing.T) {
	ac, _ := newDiscoverableArray(t, 1)
	defer ac.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ac.Initialise(ctx, false, 1))

	assert.True(t, ac.IsFolded(nil, 0.5))
}
