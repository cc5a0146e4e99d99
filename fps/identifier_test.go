package fps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeDecodeIdentifierRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pid := rapid.IntRange(0, maxPositionerID).Draw(t, "pid")
		op := Opcode(rapid.IntRange(0, maxOpcode).Draw(t, "op"))
		tag := uint8(rapid.IntRange(0, maxTag).Draw(t, "tag"))

		id, err := EncodeIdentifier(pid, op, tag)
		require.NoError(t, err)

		gotPID, gotOp, gotTag, err := DecodeIdentifier(id)
		require.NoError(t, err)
		assert.Equal(t, pid, gotPID)
		assert.Equal(t, op, gotOp)
		assert.Equal(t, tag, gotTag)
	})
}

func TestEncodeIdentifierRejectsOutOfRangeFields(t *testing.T) {
	_, err := EncodeIdentifier(maxPositionerID+1, OpGetID, 0)
	assert.Error(t, err)

	_, err = EncodeIdentifier(0, Opcode(maxOpcode+1), 0)
	assert.Error(t, err)
}

func TestDecodeIdentifierRejectsOverflow(t *testing.T) {
	_, _, _, err := DecodeIdentifier(1 << 29)
	assert.Error(t, err)
}

func TestBroadcastIdentifierUsesZeroPositioner(t *testing.T) {
	id, err := EncodeIdentifier(BroadcastID, OpGetID, 7)
	require.NoError(t, err)

	pid, op, tag, err := DecodeIdentifier(id)
	require.NoError(t, err)
	assert.Equal(t, 0, pid)
	assert.Equal(t, OpGetID, op)
	assert.Equal(t, uint8(7), tag)
}
