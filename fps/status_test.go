package fps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStateOffline(t *testing.T) {
	assert.Equal(t, StateOffline, DeriveState(false, 0, false, 0))
}

func TestDeriveStateBootloaderTakesPriority(t *testing.T) {
	assert.Equal(t, StateBootloader, DeriveState(true, StatusCollisionAlpha, true, 0))
}

func TestDeriveStateCollided(t *testing.T) {
	assert.Equal(t, StateCollided, DeriveState(true, StatusSystemInitialized|StatusCollisionBeta, false, 0))
}

func TestDeriveStateUnknown(t *testing.T) {
	assert.Equal(t, StateUnknown, DeriveState(true, StatusUnknown, false, 0))
}

func TestDeriveStateNotYetInitialized(t *testing.T) {
	assert.Equal(t, StateInitialized, DeriveState(true, 0, false, 0))
}

func TestDeriveStateMovingOnActiveOpcode(t *testing.T) {
	assert.Equal(t, StateMoving, DeriveState(true, StatusSystemInitialized, false, OpGoToAbsolutePosition))
}

func TestDeriveStateCalibratingOnCalibrationOpcode(t *testing.T) {
	assert.Equal(t, StateCalibrating, DeriveState(true, StatusSystemInitialized, false, OpStartDatumCalibration))
}

func TestDeriveStateMovingOnReceivingTrajectory(t *testing.T) {
	assert.Equal(t, StateMoving, DeriveState(true, StatusSystemInitialized|StatusReceivingTrajectory, false, 0))
}

func TestDeriveStateReady(t *testing.T) {
	assert.Equal(t, StateReady, DeriveState(true, StatusSystemInitialized, false, 0))
}

func TestFirmwareSupportsState(t *testing.T) {
	assert.False(t, firmwareSupportsState(0, 0, 0))
	assert.True(t, firmwareSupportsState(0, 0, 1))
	assert.True(t, firmwareSupportsState(0, 1, 0))
	assert.True(t, firmwareSupportsState(1, 0, 0))
}
