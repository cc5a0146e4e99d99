package fps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionerSimulatorEchoesTagOnReply(t *testing.T) {
	bus := NewVirtualBus()
	logger := NewLogger(nil, "test")

	simCh := bus.Attach("sim")
	sim := NewPositionerSimulator(1, 10000, 10000, simCh, logger)
	require.NoError(t, sim.Start(context.Background()))

	ctrlCh := bus.Attach("ctrl")
	require.NoError(t, ctrlCh.Open(context.Background()))

	req, err := NewFrame(1, OpGetStatus, 42, nil)
	require.NoError(t, err)
	require.NoError(t, ctrlCh.Send(context.Background(), req))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := ctrlCh.Receive(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint8(42), reply.ResponseOrTag())
	assert.Equal(t, 1, reply.PositionerID())
	assert.Equal(t, OpGetStatus, reply.Opcode())
	assert.Len(t, reply.Data, 4)
}

func TestPositionerSimulatorGotoCompletesDisplacement(t *testing.T) {
	bus := NewVirtualBus()
	logger := NewLogger(nil, "test")

	simCh := bus.Attach("sim")
	sim := NewPositionerSimulator(1, 10000, 10000, simCh, logger)
	require.NoError(t, sim.Start(context.Background()))

	ctrlCh := bus.Attach("ctrl")
	require.NoError(t, ctrlCh.Open(context.Background()))

	payload := append(IntToBytes(int64(degreesToSteps(90, 10000)), 4, BigEndian),
		IntToBytes(int64(degreesToSteps(45, 10000)), 4, BigEndian)...)
	req, err := NewFrame(1, OpGoToAbsolutePosition, 5, payload)
	require.NoError(t, err)
	require.NoError(t, ctrlCh.Send(context.Background(), req))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ack, err := ctrlCh.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(ResponseAccepted)}, ack.Data)

	// Poll GET_STATUS until the displacement-completed bits appear.
	deadline := time.Now().Add(time.Second)
	var status StatusFlag
	for time.Now().Before(deadline) {
		statReq, err := NewFrame(1, OpGetStatus, 6, nil)
		require.NoError(t, err)
		require.NoError(t, ctrlCh.Send(context.Background(), statReq))

		reply, err := ctrlCh.Receive(ctx)
		require.NoError(t, err)
		u, _ := BytesToInt(reply.Data, BigEndian)
		status = StatusFlag(u)
		if status.Has(StatusDisplacementCompleted) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	assert.True(t, status.Has(StatusDisplacementCompleted))
}
