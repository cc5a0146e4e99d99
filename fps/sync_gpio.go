package fps

import (
	"context"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// SyncLine drives (or simulates) the external hardware line used to
// start a trajectory on every positioner simultaneously, without a
// broadcast START_TRAJECTORY frame competing with bus traffic.
type SyncLine interface {
	Assert(ctx context.Context) error
	Deassert(ctx context.Context) error
	Close() error
}

// GPIOSyncLine drives a single GPIO output line through go-gpiocdev,
// asserted high for the duration of the pulse that starts a
// trajectory and deasserted immediately after.
type GPIOSyncLine struct {
	line *gpiocdev.Line
}

// NewGPIOSyncLine requests chipName's offset line as an output,
// initially low.
func NewGPIOSyncLine(chipName string, offset int) (*GPIOSyncLine, error) {
	line, err := gpiocdev.RequestLine(chipName, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("fps: request sync gpio %s:%d: %w", chipName, offset, err)
	}

	return &GPIOSyncLine{line: line}, nil
}

func (s *GPIOSyncLine) Assert(ctx context.Context) error {
	return s.line.SetValue(1)
}

func (s *GPIOSyncLine) Deassert(ctx context.Context) error {
	return s.line.SetValue(0)
}

func (s *GPIOSyncLine) Close() error {
	return s.line.Close()
}
