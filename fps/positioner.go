package fps

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// GotoOptions configures a single goto call. A nil AlphaRPM/BetaRPM
// leaves the positioner's currently configured speed untouched.
type GotoOptions struct {
	Relative bool
	AlphaRPM *float64
	BetaRPM  *float64
}

// speedForAxes maps a (alpha, beta) RPM pair supplied by a caller onto
// the (alpha, beta) pair actually written into the SET_SPEED payload.
// The two never get swapped: this function exists so that decision is
// made exactly once, in one place, instead of at every call site that
// assembles a motion payload.
func speedForAxes(alphaRPM, betaRPM float64) (aRPM, bRPM float64) {
	return alphaRPM, betaRPM
}

// Positioner is the live model of one two-axis robot: its last known
// angles, speeds, firmware identity, and status bits, plus the
// synchronization needed to wait for a status change without polling.
type Positioner struct {
	ID int

	AlphaMotorSteps int
	BetaMotorSteps  int

	registry *Registry
	channel  Channel
	logger   *Logger

	mu               sync.RWMutex
	alpha, beta      float64
	alphaRPM, betaRPM float64
	firmwareMajor    int
	firmwareMinor    int
	firmwarePatch    int
	status           StatusFlag
	bootloaderStatus BootloaderFlag
	inBootloader     bool
	disabled         bool
	seen             bool
	lastSeen         time.Time
	activeOpcode     Opcode

	changed chan struct{}
}

// NewPositioner creates a Positioner that issues commands through ch
// via registry, and has not yet been seen on the bus.
func NewPositioner(id int, alphaMotorSteps, betaMotorSteps int, registry *Registry, ch Channel, logger *Logger) *Positioner {
	return &Positioner{
		ID:              id,
		AlphaMotorSteps: alphaMotorSteps,
		BetaMotorSteps:  betaMotorSteps,
		registry:        registry,
		channel:         ch,
		logger:          logger,
		changed:         make(chan struct{}),
	}
}

// signalChangedLocked wakes every current waiter and installs a fresh
// channel for the next wait. Callers must hold p.mu for writing.
func (p *Positioner) signalChangedLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}

// State returns the positioner's current coarse lifecycle state.
func (p *Positioner) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return DeriveState(p.seen, p.status, p.inBootloader, p.activeOpcode)
}

// Status returns the raw status maskbits from the last GET_STATUS
// reply or unsolicited status frame.
func (p *Positioner) Status() StatusFlag {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Position returns the last known (alpha, beta) angle in degrees.
func (p *Positioner) Position() (alpha, beta float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.alpha, p.beta
}

// Speed returns the last known (alpha, beta) RPM.
func (p *Positioner) Speed() (alphaRPM, betaRPM float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.alphaRPM, p.betaRPM
}

// FirmwareVersion returns the last known major.minor.patch triplet.
func (p *Positioner) FirmwareVersion() (major, minor, patch int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.firmwareMajor, p.firmwareMinor, p.firmwarePatch
}

// Disabled reports whether this positioner has been administratively
// excluded from broadcast reply counts and array-wide operations.
func (p *Positioner) Disabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.disabled
}

// SetDisabled marks this positioner as disabled or re-enables it.
func (p *Positioner) SetDisabled(disabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled = disabled
}

// LastSeen returns the time of the most recent frame attributed to
// this positioner, or the zero time if none has arrived yet.
func (p *Positioner) LastSeen() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSeen
}

// UpdateStatus records a new status maskbit set, marks the positioner
// seen, and wakes any WaitForStatus callers.
func (p *Positioner) UpdateStatus(status StatusFlag) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = status
	p.seen = true
	p.inBootloader = false
	p.lastSeen = time.Now()
	p.signalChangedLocked()
}

// UpdateBootloaderStatus records a status reply received while the
// positioner's firmware is running its bootloader image.
func (p *Positioner) UpdateBootloaderStatus(status BootloaderFlag) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bootloaderStatus = status
	p.inBootloader = true
	p.seen = true
	p.lastSeen = time.Now()
	p.signalChangedLocked()
}

// UpdatePosition records a new (alpha, beta) angle, converting from
// motor steps using this positioner's configured steps-per-revolution.
func (p *Positioner) UpdatePosition(alphaSteps, betaSteps int32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.alpha = stepsToDegrees(alphaSteps, p.AlphaMotorSteps)
	p.beta = stepsToDegrees(betaSteps, p.BetaMotorSteps)
	p.lastSeen = time.Now()
	p.signalChangedLocked()
}

// UpdateFirmwareVersion records a firmware version triplet reported by
// GET_FIRMWARE_VERSION or GET_POSITIONER_INFO.
func (p *Positioner) UpdateFirmwareVersion(major, minor, patch int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.firmwareMajor, p.firmwareMinor, p.firmwarePatch = major, minor, patch
	p.seen = true
	p.lastSeen = time.Now()
}

func (p *Positioner) setActiveOpcode(op Opcode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeOpcode = op
	p.signalChangedLocked()
}

func (p *Positioner) clearActiveOpcode(op Opcode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.activeOpcode == op {
		p.activeOpcode = 0
	}
	p.signalChangedLocked()
}

// WaitForStatus blocks until the status maskbits satisfy mask (every
// bit in mask must be set) or ctx is cancelled.
func (p *Positioner) WaitForStatus(ctx context.Context, mask StatusFlag) error {
	for {
		p.mu.RLock()
		if p.status.Has(mask) {
			p.mu.RUnlock()
			return nil
		}
		waitCh := p.changed
		p.mu.RUnlock()

		select {
		case <-waitCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Goto commands the positioner to an absolute or relative angle,
// optionally overriding its configured speed, and waits for the
// DISPLACEMENT_COMPLETED bit to be set.
func (p *Positioner) Goto(ctx context.Context, alpha, beta float64, opts GotoOptions, timeout time.Duration) error {
	p.mu.RLock()
	disabled := p.disabled
	p.mu.RUnlock()
	if disabled {
		return &ValidationError{Reason: "positioner is disabled"}
	}
	if alpha < 0 || alpha >= 360 {
		return &ValidationError{Reason: fmt.Sprintf("alpha %.3f out of range [0, 360)", alpha)}
	}
	if beta < 0 || beta >= 360 {
		return &ValidationError{Reason: fmt.Sprintf("beta %.3f out of range [0, 360)", beta)}
	}

	if opts.AlphaRPM != nil && opts.BetaRPM != nil {
		aRPM, bRPM := speedForAxes(*opts.AlphaRPM, *opts.BetaRPM)
		if err := p.setSpeed(ctx, aRPM, bRPM, timeout); err != nil {
			return err
		}
	}

	op := OpGoToAbsolutePosition
	if opts.Relative {
		op = OpGoToRelativePosition
	}

	alphaSteps := degreesToSteps(alpha, p.AlphaMotorSteps)
	betaSteps := degreesToSteps(beta, p.BetaMotorSteps)

	payload := make([]byte, 0, 8)
	payload = append(payload, IntToBytes(int64(alphaSteps), 4, BigEndian)...)
	payload = append(payload, IntToBytes(int64(betaSteps), 4, BigEndian)...)

	p.setActiveOpcode(op)
	defer p.clearActiveOpcode(op)

	cmd, err := p.registry.Submit(ctx, p.channel, op, p.ID, []int{p.ID}, 1, payload, timeout)
	if err != nil {
		return err
	}
	if _, err := cmd.Wait(); err != nil {
		return err
	}

	return p.WaitForStatus(ctx, StatusDisplacementCompleted)
}

func (p *Positioner) setSpeed(ctx context.Context, alphaRPM, betaRPM float64, timeout time.Duration) error {
	payload := make([]byte, 0, 4)
	payload = append(payload, IntToBytes(int64(alphaRPM), 2, BigEndian)...)
	payload = append(payload, IntToBytes(int64(betaRPM), 2, BigEndian)...)

	cmd, err := p.registry.Submit(ctx, p.channel, OpSetSpeed, p.ID, []int{p.ID}, 1, payload, timeout)
	if err != nil {
		return err
	}
	if _, err := cmd.Wait(); err != nil {
		return err
	}

	p.mu.Lock()
	p.alphaRPM, p.betaRPM = alphaRPM, betaRPM
	p.mu.Unlock()

	return nil
}

// Home issues INITIALIZE_DATUMS to this positioner alone and waits for
// both axes to report their datum initialized.
func (p *Positioner) Home(ctx context.Context, timeout time.Duration) error {
	p.setActiveOpcode(OpInitializeDatums)
	defer p.clearActiveOpcode(OpInitializeDatums)

	cmd, err := p.registry.Submit(ctx, p.channel, OpInitializeDatums, p.ID, []int{p.ID}, 1, nil, timeout)
	if err != nil {
		return err
	}
	if _, err := cmd.Wait(); err != nil {
		return err
	}

	return p.WaitForStatus(ctx, StatusDatumAlphaInitialized|StatusDatumBetaInitialized)
}

// Abort stops any in-progress trajectory or move on this positioner.
// STOP_TRAJECTORY is a safe command: it may be issued even while a
// move command holds this positioner's move lock.
func (p *Positioner) Abort(ctx context.Context, timeout time.Duration) error {
	cmd, err := p.registry.Submit(ctx, p.channel, OpStopTrajectory, p.ID, nil, 1, nil, timeout)
	if err != nil {
		return err
	}
	_, err = cmd.Wait()
	return err
}
