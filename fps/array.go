package fps

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ArrayController is the single entry point for driving a whole array
// of positioners: it owns the channels, the notifier fanning frames
// out to the command registry, the live positioner models, the
// pollers that keep them fresh, and the trajectory engine.
type ArrayController struct {
	logger *Logger

	channels    map[string]Channel
	channelOf   map[int]string // positioner id -> owning channel name
	notifier    *Notifier
	registry    *Registry
	engine      *TrajectoryEngine
	syncLines   map[string]SyncLine

	profile ProfileConfig

	mu          sync.RWMutex
	positioners map[int]*Positioner

	statusPoller   *Poller
	positionPoller *Poller
}

// NewArrayController builds a controller for profile, opening every
// configured channel and wiring the notifier, registry, and trajectory
// engine around them. It does not discover positioners; call
// Initialise for that.
func NewArrayController(ctx context.Context, profile ProfileConfig, logger *Logger) (*ArrayController, error) {
	registry := NewRegistry(logger)
	notifier := NewNotifier(logger)

	ac := &ArrayController{
		logger:      logger,
		channels:    make(map[string]Channel),
		channelOf:   make(map[int]string),
		notifier:    notifier,
		registry:    registry,
		syncLines:   make(map[string]SyncLine),
		profile:     profile,
		positioners: make(map[int]*Positioner),
	}

	for _, cc := range profile.Channels {
		ch, err := ac.openChannel(ctx, cc)
		if err != nil {
			ac.closeAllChannels()
			return nil, err
		}
		ac.channels[cc.Name] = ch
		notifier.AddChannel(ch)

		if cc.SyncGPIOChip != "" {
			sl, err := NewGPIOSyncLine(cc.SyncGPIOChip, cc.SyncGPIOOffset)
			if err != nil {
				if logger != nil {
					logger.Warnf("channel %s: sync gpio unavailable: %v", cc.Name, err)
				}
			} else {
				ac.syncLines[cc.Name] = sl
			}
		}
	}

	notifier.AddListener(func(ctx context.Context, ch Channel, f Frame) {
		registry.HandleFrame(f)
		ac.onUnsolicitedFrame(f)
	})

	var syncLine SyncLine
	for _, sl := range ac.syncLines {
		syncLine = sl
		break
	}

	ac.engine = NewTrajectoryEngine(registry, logger, syncLine, 100*time.Millisecond, 5*time.Second)

	notifier.Start(ctx)

	return ac, nil
}

func (ac *ArrayController) openChannel(ctx context.Context, cc ChannelConfig) (Channel, error) {
	address, err := resolveAddress(ctx, cc.Address)
	if err != nil {
		return nil, err
	}

	var ch Channel
	switch ac.profile.ChannelType {
	case "gateway":
		ch = NewGatewayChannel(cc.Name, address, cc.Bitrate)
	case "socketcan":
		ch = newSocketCANChannelForPlatform(cc.Name, address)
	case "virtual":
		bus := NewVirtualBus()
		ch = bus.Attach(cc.Name)
	default:
		return nil, fmt.Errorf("fps: unknown channel_type %q", ac.profile.ChannelType)
	}

	if err := ch.Open(ctx); err != nil {
		return nil, err
	}

	return ch, nil
}

func (ac *ArrayController) closeAllChannels() {
	for _, ch := range ac.channels {
		ch.Shutdown()
	}
}

// onUnsolicitedFrame updates a positioner's live model from any frame
// that also happens to satisfy a pending command, and from frames that
// arrive with no pending command at all (periodic position/status
// broadcasts some firmware emits unprompted).
func (ac *ArrayController) onUnsolicitedFrame(f Frame) {
	pid := f.PositionerID()
	if pid == BroadcastID {
		return
	}

	ac.mu.RLock()
	p, ok := ac.positioners[pid]
	ac.mu.RUnlock()
	if !ok {
		return
	}

	switch f.Opcode() {
	case OpGetStatus:
		if status, err := decodeStatusReply(f.Data); err == nil {
			p.UpdateStatus(status)
		}
	case OpGetActualPosition:
		if a, b, err := decodePositionReply(f.Data); err == nil {
			p.UpdatePosition(a, b)
		}
	case OpGetFirmwareVersion:
		if maj, min, pat, err := decodeFirmwareVersionReply(f.Data); err == nil {
			p.UpdateFirmwareVersion(maj, min, pat)
		}
	}
}

// Initialise discovers every positioner on the bus via a broadcast
// GET_ID, fetches each one's firmware version and current status and
// position, and, if startPollers is true, begins the background
// status/position pollers.
func (ac *ArrayController) Initialise(ctx context.Context, startPollers bool, expectedCount int) error {
	ch := ac.anyChannel()
	if ch == nil {
		return fmt.Errorf("fps: array controller has no open channels")
	}

	cmd, err := ac.registry.Submit(ctx, ch, OpGetID, BroadcastID, nil, expectedCount, nil, ac.profile.InitialiseTimeout)
	if err != nil {
		return err
	}
	replies, err := cmd.Wait()
	if _, ok := err.(*TimeoutError); err != nil && !ok {
		return err
	}

	ac.mu.Lock()
	for _, f := range replies {
		pid := f.PositionerID()
		if _, exists := ac.positioners[pid]; !exists {
			p := NewPositioner(pid, ac.profile.MotorSteps.Alpha, ac.profile.MotorSteps.Beta, ac.registry, ch, ac.logger)
			ac.positioners[pid] = p
			ac.channelOf[pid] = ch.Name()
		}
	}
	ac.mu.Unlock()

	for _, p := range ac.snapshotPositioners() {
		if err := ac.refreshPositioner(ctx, p); err != nil && ac.logger != nil {
			ac.logger.Warnf("positioner %d: initial refresh failed: %v", p.ID, err)
		}
	}

	if startPollers {
		ac.startPollers(ctx)
	}

	return nil
}

func (ac *ArrayController) refreshPositioner(ctx context.Context, p *Positioner) error {
	ch := ac.channelFor(p.ID)

	if cmd, err := ac.registry.Submit(ctx, ch, OpGetFirmwareVersion, p.ID, nil, 1, nil, ac.profile.CommandTimeout); err == nil {
		if replies, err := cmd.Wait(); err == nil && len(replies) == 1 {
			if maj, min, pat, err := decodeFirmwareVersionReply(replies[0].Data); err == nil {
				p.UpdateFirmwareVersion(maj, min, pat)
			}
		}
	}

	if cmd, err := ac.registry.Submit(ctx, ch, OpGetStatus, p.ID, nil, 1, nil, ac.profile.CommandTimeout); err == nil {
		if replies, err := cmd.Wait(); err == nil && len(replies) == 1 {
			if status, err := decodeStatusReply(replies[0].Data); err == nil {
				p.UpdateStatus(status)
			}
		}
	}

	if cmd, err := ac.registry.Submit(ctx, ch, OpGetActualPosition, p.ID, nil, 1, nil, ac.profile.CommandTimeout); err == nil {
		if replies, err := cmd.Wait(); err == nil && len(replies) == 1 {
			if a, b, err := decodePositionReply(replies[0].Data); err == nil {
				p.UpdatePosition(a, b)
			}
		}
	}

	return nil
}

func (ac *ArrayController) startPollers(ctx context.Context) {
	ac.statusPoller = NewPoller("status", ac.profile.StatusPollerDelay, func(ctx context.Context) {
		for _, p := range ac.snapshotPositioners() {
			ch := ac.channelFor(p.ID)
			cmd, err := ac.registry.Submit(ctx, ch, OpGetStatus, p.ID, nil, 1, nil, ac.profile.CommandTimeout)
			if err != nil {
				continue
			}
			if replies, err := cmd.Wait(); err == nil && len(replies) == 1 {
				if status, err := decodeStatusReply(replies[0].Data); err == nil {
					p.UpdateStatus(status)
				}
			}
		}
	})

	ac.positionPoller = NewPoller("position", ac.profile.PositionPollerDelay, func(ctx context.Context) {
		for _, p := range ac.snapshotPositioners() {
			ch := ac.channelFor(p.ID)
			cmd, err := ac.registry.Submit(ctx, ch, OpGetActualPosition, p.ID, nil, 1, nil, ac.profile.CommandTimeout)
			if err != nil {
				continue
			}
			if replies, err := cmd.Wait(); err == nil && len(replies) == 1 {
				if a, b, err := decodePositionReply(replies[0].Data); err == nil {
					p.UpdatePosition(a, b)
				}
			}
		}
	})

	ac.statusPoller.Start(ctx)
	ac.positionPoller.Start(ctx)
}

func (ac *ArrayController) pausePollers() {
	if ac.statusPoller != nil {
		ac.statusPoller.Pause()
	}
	if ac.positionPoller != nil {
		ac.positionPoller.Pause()
	}
}

func (ac *ArrayController) resumePollers() {
	if ac.statusPoller != nil {
		ac.statusPoller.Resume()
	}
	if ac.positionPoller != nil {
		ac.positionPoller.Resume()
	}
}

// Goto commands a single positioner to an absolute or relative angle.
func (ac *ArrayController) Goto(ctx context.Context, positionerID int, alpha, beta float64, opts GotoOptions) error {
	p, err := ac.positioner(positionerID)
	if err != nil {
		return err
	}
	return p.Goto(ctx, alpha, beta, opts, ac.profile.CommandTimeout)
}

// Home homes a single positioner.
func (ac *ArrayController) Home(ctx context.Context, positionerID int) error {
	p, err := ac.positioner(positionerID)
	if err != nil {
		return err
	}
	return p.Home(ctx, ac.profile.CommandTimeout)
}

// UpdatePosition overrides a positioner's believed current angle
// without moving it, via SET_ACTUAL_POSITION.
func (ac *ArrayController) UpdatePosition(ctx context.Context, positionerID int, alpha, beta float64) error {
	p, err := ac.positioner(positionerID)
	if err != nil {
		return err
	}

	alphaSteps := degreesToSteps(alpha, p.AlphaMotorSteps)
	betaSteps := degreesToSteps(beta, p.BetaMotorSteps)
	payload := encodeSetActualPositionPayload(alphaSteps, betaSteps)

	ch := ac.channelFor(positionerID)
	cmd, err := ac.registry.Submit(ctx, ch, OpSetActualPosition, positionerID, []int{positionerID}, 1, payload, ac.profile.CommandTimeout)
	if err != nil {
		return err
	}
	if _, err := cmd.Wait(); err != nil {
		return err
	}

	p.UpdatePosition(alphaSteps, betaSteps)
	return nil
}

// IsFolded reports whether every known, non-disabled positioner is
// within tolerance of its folded (stowed) angle. fold is the fold
// point to compare against; if nil, it defaults to the profile's
// configured kaiju.lattice_position.
func (ac *ArrayController) IsFolded(fold *FoldAngles, toleranceDegrees float64) bool {
	foldedAlpha, foldedBeta := ac.foldAngles(fold)
	for _, p := range ac.snapshotPositioners() {
		if p.Disabled() {
			continue
		}
		alpha, beta := p.Position()
		if absFloat(alpha-foldedAlpha) > toleranceDegrees || absFloat(beta-foldedBeta) > toleranceDegrees {
			return false
		}
	}
	return true
}

// foldAngles resolves the fold point fold, if provided, to the
// profile's configured kaiju.lattice_position otherwise.
func (ac *ArrayController) foldAngles(fold *FoldAngles) (alpha, beta float64) {
	if fold != nil {
		return fold.Alpha, fold.Beta
	}
	return ac.profile.Kaiju.LatticePosition.Alpha, ac.profile.Kaiju.LatticePosition.Beta
}

// SendTrajectory uploads, starts, and monitors t across the array,
// pausing the background pollers for the duration so they do not
// contend with the high-frequency monitor loop.
func (ac *ArrayController) SendTrajectory(ctx context.Context, t Trajectory, useSyncLine bool) error {
	ac.pausePollers()
	defer ac.resumePollers()

	positioners := ac.snapshotPositionerMap()

	if err := ValidateTrajectory(t, positioners, ac.safeModeMinBeta()); err != nil {
		return err
	}

	return ac.engine.Run(ctx, t, positioners, ac.channelFor, useSyncLine, ac.profile.CommandTimeout)
}

func (ac *ArrayController) safeModeMinBeta() float64 {
	if ac.profile.SafeMode.Enabled {
		return ac.profile.SafeMode.MinBeta
	}
	return -360.0
}

// Shutdown stops all pollers, closes every channel, and stops the
// notifier.
func (ac *ArrayController) Shutdown() {
	if ac.statusPoller != nil {
		ac.statusPoller.Stop()
	}
	if ac.positionPoller != nil {
		ac.positionPoller.Stop()
	}

	ac.notifier.Shutdown()

	for _, sl := range ac.syncLines {
		_ = sl.Close()
	}
	ac.closeAllChannels()
}

func (ac *ArrayController) positioner(id int) (*Positioner, error) {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	p, ok := ac.positioners[id]
	if !ok {
		return nil, fmt.Errorf("fps: unknown positioner %d", id)
	}
	return p, nil
}

func (ac *ArrayController) channelFor(id int) Channel {
	ac.mu.RLock()
	name := ac.channelOf[id]
	ac.mu.RUnlock()
	if name == "" {
		return ac.anyChannel()
	}
	return ac.channels[name]
}

func (ac *ArrayController) anyChannel() Channel {
	for _, ch := range ac.channels {
		return ch
	}
	return nil
}

func (ac *ArrayController) snapshotPositioners() []*Positioner {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	out := make([]*Positioner, 0, len(ac.positioners))
	for _, p := range ac.positioners {
		out = append(out, p)
	}
	return out
}

func (ac *ArrayController) snapshotPositionerMap() map[int]*Positioner {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	out := make(map[int]*Positioner, len(ac.positioners))
	for id, p := range ac.positioners {
		out[id] = p
	}
	return out
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
