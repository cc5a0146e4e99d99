package fps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeedForAxesIsIdentityNotSwap(t *testing.T) {
	aRPM, bRPM := speedForAxes(12.5, 30.0)
	assert.Equal(t, 12.5, aRPM)
	assert.Equal(t, 30.0, bRPM)
}

func TestPositionerGotoRejectsDisabled(t *testing.T) {
	p := newTestPositioner(1)
	p.SetDisabled(true)

	err := p.Goto(context.Background(), 10, 170, GotoOptions{}, time.Second)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

// TestPositionerGotoRejectsOutOfRangeAngle pins scenario S4: a goto at
// exactly 360 degrees is out of range and rejected before any frame is
// sent, while an angle just below 360 (359.999) passes validation.
func TestPositionerGotoRejectsOutOfRangeAngle(t *testing.T) {
	p := newTestPositioner(1)

	err := p.Goto(context.Background(), 360, 0, GotoOptions{}, time.Second)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = p.Goto(ctx, 359.999, 0, GotoOptions{}, 20*time.Millisecond)
	require.Error(t, err)
	require.NotErrorAs(t, err, &valErr)
}

func TestPositionerGotoTimesOutWithoutReply(t *testing.T) {
	p := newTestPositioner(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Goto(ctx, 10, 170, GotoOptions{}, 20*time.Millisecond)
	assert.Error(t, err)
}

func TestPositionerUpdatePositionConvertsStepsToDegrees(t *testing.T) {
	p := newTestPositioner(1)
	p.UpdatePosition(degreesToSteps(90, p.AlphaMotorSteps), degreesToSteps(180, p.BetaMotorSteps))

	alpha, beta := p.Position()
	assert.InDelta(t, 90, alpha, 0.01)
	assert.InDelta(t, 180, beta, 0.01)
}

func TestPositionerWaitForStatusUnblocksOnUpdate(t *testing.T) {
	p := newTestPositioner(1)

	done := make(chan error, 1)
	go func() {
		done <- p.WaitForStatus(context.Background(), StatusDisplacementCompleted)
	}()

	time.Sleep(10 * time.Millisecond)
	p.UpdateStatus(StatusDisplacementCompleted)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForStatus did not unblock after UpdateStatus")
	}
}

func TestPositionerWaitForStatusRespectsContextCancellation(t *testing.T) {
	p := newTestPositioner(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.WaitForStatus(ctx, StatusDisplacementCompleted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPositionerStateDerivesFromStatus(t *testing.T) {
	p := newTestPositioner(1)
	assert.Equal(t, StateOffline, p.State())

	p.UpdateStatus(StatusSystemInitialized)
	assert.Equal(t, StateReady, p.State())

	p.UpdateStatus(StatusSystemInitialized | StatusCollisionAlpha)
	assert.Equal(t, StateCollided, p.State())
}
