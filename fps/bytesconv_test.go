package fps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestIntToBytesBytesToIntRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		width := rapid.SampledFrom([]int{2, 4}).Draw(t, "width")
		order := rapid.SampledFrom([]Endian{BigEndian, LittleEndian}).Draw(t, "order")

		var v int64
		if width == 2 {
			v = int64(rapid.IntRange(-32768, 32767).Draw(t, "v16"))
		} else {
			v = int64(rapid.Int32().Draw(t, "v32"))
		}

		buf := IntToBytes(v, width, order)
		require.Len(t, buf, width)

		got, err := BytesToInt(buf, order)
		require.NoError(t, err)

		switch width {
		case 2:
			assert.Equal(t, uint16(v), uint16(got))
		case 4:
			assert.Equal(t, uint32(v), uint32(got))
		}
	})
}

func TestBytesToInt32SignedRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Int32().Draw(t, "v")
		order := rapid.SampledFrom([]Endian{BigEndian, LittleEndian}).Draw(t, "order")

		buf := IntToBytes(int64(v), 4, order)
		got, err := BytesToInt32Signed(buf, order)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	})
}

func TestDegreesStepsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		motorSteps := rapid.IntRange(1000, 1_000_000).Draw(t, "motorSteps")
		degrees := rapid.Float64Range(-720, 720).Draw(t, "degrees")

		steps := degreesToSteps(degrees, motorSteps)
		back := stepsToDegrees(steps, motorSteps)

		// Integer truncation to a step count loses less than one step's
		// worth of angle.
		tolerance := 360.0 / float64(motorSteps)
		assert.InDelta(t, degrees, back, tolerance)
	})
}

func TestBytesToIntRejectsUnsupportedWidth(t *testing.T) {
	_, err := BytesToInt([]byte{1, 2, 3}, BigEndian)
	assert.Error(t, err)
}

func TestIntToBytesBigEndianByteOrder(t *testing.T) {
	buf := IntToBytes(0x0102, 2, BigEndian)
	assert.Equal(t, []byte{0x01, 0x02}, buf)

	buf = IntToBytes(0x0102, 2, LittleEndian)
	assert.Equal(t, []byte{0x02, 0x01}, buf)
}
