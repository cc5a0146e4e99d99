package fps

import (
	"context"
	"sync"
	"time"
)

// trajectoryCompleteMask is the pair of bits a positioner sets on each
// axis once it has finished executing its trajectory.
const trajectoryCompleteMask = StatusAlphaDisplacementCompleted | StatusBetaDisplacementCompleted

// trajectoryReceivedMask is the pair of bits a positioner sets once it
// has fully received both axes' point sequences.
const trajectoryReceivedMask = StatusTrajectoryAlphaReceived | StatusTrajectoryBetaReceived

// TrajectoryEngine owns the array-wide upload/start/monitor/abort
// sequence. Only one trajectory may be in flight across the whole
// array at a time.
type TrajectoryEngine struct {
	registry *Registry
	logger   *Logger
	syncLine SyncLine

	pollInterval time.Duration
	slack        time.Duration

	mu      sync.Mutex
	running bool
}

// NewTrajectoryEngine creates an engine. syncLine may be nil, in which
// case Run always falls back to a broadcast START_TRAJECTORY even if
// useSyncLine is requested.
func NewTrajectoryEngine(registry *Registry, logger *Logger, syncLine SyncLine, pollInterval, slack time.Duration) *TrajectoryEngine {
	return &TrajectoryEngine{
		registry:     registry,
		logger:       logger,
		syncLine:     syncLine,
		pollInterval: pollInterval,
		slack:        slack,
	}
}

func (e *TrajectoryEngine) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

func (e *TrajectoryEngine) release() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Run uploads, starts, monitors, and resolves t across the array.
// positioners maps each participating id to its live model; channelFor
// selects which Channel carries commands to a given positioner id.
func (e *TrajectoryEngine) Run(ctx context.Context, t Trajectory, positioners map[int]*Positioner, channelFor func(id int) Channel, useSyncLine bool, perFrameTimeout time.Duration) error {
	if !e.acquire() {
		return &TrajectoryError{Reason: "a trajectory is already in progress"}
	}
	defer e.release()

	if err := e.upload(ctx, t, positioners, channelFor, perFrameTimeout); err != nil {
		e.abort(ctx, positioners, channelFor, perFrameTimeout)
		return err
	}

	if err := e.waitReceived(ctx, t, positioners, channelFor, perFrameTimeout); err != nil {
		e.abort(ctx, positioners, channelFor, perFrameTimeout)
		return err
	}

	if err := e.start(ctx, t, positioners, channelFor, useSyncLine, perFrameTimeout); err != nil {
		e.abort(ctx, positioners, channelFor, perFrameTimeout)
		return err
	}

	return e.monitor(ctx, t, positioners, channelFor, perFrameTimeout)
}

func (e *TrajectoryEngine) upload(ctx context.Context, t Trajectory, positioners map[int]*Positioner, channelFor func(id int) Channel, timeout time.Duration) error {
	for pid, pt := range t {
		p, ok := positioners[pid]
		if !ok {
			return &TrajectoryError{Reason: "unknown positioner in trajectory", FailedPositioners: []int{pid}}
		}
		ch := channelFor(pid)

		prev := 0.0
		for _, pt := range pt.Alpha {
			steps := degreesToSteps(pt.AngleDegrees, p.AlphaMotorSteps)
			payload := encodeTrajectoryPointPayload(trajectoryPoint{AngleSteps: steps, DurationMS: uint32((pt.TimeSeconds - prev) * 1000)})
			prev = pt.TimeSeconds
			cmd, err := e.registry.Submit(ctx, ch, OpSendTrajectoryDataAlpha, pid, nil, 1, payload, timeout)
			if err != nil {
				return &TrajectoryError{Reason: err.Error(), FailedPositioners: []int{pid}}
			}
			if _, err := cmd.Wait(); err != nil {
				return &TrajectoryError{Reason: err.Error(), FailedPositioners: []int{pid}}
			}
		}

		prev = 0.0
		for _, pt := range pt.Beta {
			steps := degreesToSteps(pt.AngleDegrees, p.BetaMotorSteps)
			payload := encodeTrajectoryPointPayload(trajectoryPoint{AngleSteps: steps, DurationMS: uint32((pt.TimeSeconds - prev) * 1000)})
			prev = pt.TimeSeconds
			cmd, err := e.registry.Submit(ctx, ch, OpSendTrajectoryDataBeta, pid, nil, 1, payload, timeout)
			if err != nil {
				return &TrajectoryError{Reason: err.Error(), FailedPositioners: []int{pid}}
			}
			if _, err := cmd.Wait(); err != nil {
				return &TrajectoryError{Reason: err.Error(), FailedPositioners: []int{pid}}
			}
		}

		cmd, err := e.registry.Submit(ctx, ch, OpSendTrajectoryDataEnd, pid, nil, 1, nil, timeout)
		if err != nil {
			return &TrajectoryError{Reason: err.Error(), FailedPositioners: []int{pid}}
		}
		if _, err := cmd.Wait(); err != nil {
			return &TrajectoryError{Reason: err.Error(), FailedPositioners: []int{pid}}
		}
	}

	return nil
}

// waitReceived polls GET_STATUS on each participating positioner until
// its TRAJECTORY_ALPHA_RECEIVED/BETA_RECEIVED bits are both set or
// timeout elapses. Every data point and the closing
// SEND_TRAJECTORY_DATA_END are already acked in upload, but the
// receive bits are the positioner's own
// confirmation that it finished reassembling both axes' sequences
// before START_TRAJECTORY is issued.
func (e *TrajectoryEngine) waitReceived(ctx context.Context, t Trajectory, positioners map[int]*Positioner, channelFor func(id int) Channel, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pending := trajectoryPositionerIDs(t)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		var remaining []int
		for _, pid := range pending {
			p := positioners[pid]
			if p.Status().Has(trajectoryReceivedMask) {
				continue
			}
			remaining = append(remaining, pid)
		}
		pending = remaining

		if len(pending) == 0 {
			return nil
		}

		e.refreshStatus(ctx, trajectorySubset(t, pending), positioners, channelFor, timeout)

		select {
		case <-ctx.Done():
			return &TrajectoryError{Reason: "positioners did not confirm trajectory receipt", FailedPositioners: pending}
		case <-ticker.C:
		}
	}
}

func (e *TrajectoryEngine) start(ctx context.Context, t Trajectory, positioners map[int]*Positioner, channelFor func(id int) Channel, useSyncLine bool, timeout time.Duration) error {
	for pid := range t {
		p := positioners[pid]
		p.setActiveOpcode(OpStartTrajectory)
	}

	if useSyncLine && e.syncLine != nil {
		if err := e.syncLine.Assert(ctx); err != nil {
			return err
		}
		return e.syncLine.Deassert(ctx)
	}

	var ch Channel
	for pid := range t {
		ch = channelFor(pid)
		break
	}
	if ch == nil {
		return &TrajectoryError{Reason: "no channel available to start trajectory"}
	}

	cmd, err := e.registry.Submit(ctx, ch, OpStartTrajectory, BroadcastID, trajectoryPositionerIDs(t), len(t), nil, timeout)
	if err != nil {
		return &TrajectoryError{Reason: err.Error()}
	}
	_, err = cmd.Wait()
	return err
}

func (e *TrajectoryEngine) monitor(ctx context.Context, t Trajectory, positioners map[int]*Positioner, channelFor func(id int) Channel, timeout time.Duration) error {
	deadline := time.Now().Add(time.Duration(t.estimatedDuration()*float64(time.Second)) + e.slack)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		e.refreshStatus(ctx, t, positioners, channelFor, timeout)

		var collided, pending []int
		done := true

		for pid := range t {
			p := positioners[pid]
			status := p.Status()
			if status.Any(StatusCollisionAlpha | StatusCollisionBeta) {
				collided = append(collided, pid)
			}
			if !status.Has(trajectoryCompleteMask) {
				done = false
				pending = append(pending, pid)
			}
		}

		if len(collided) > 0 {
			for pid := range t {
				positioners[pid].clearActiveOpcode(OpStartTrajectory)
			}
			finalStatus := snapshotStatus(t, positioners)
			e.abort(ctx, positioners, channelFor, timeout)
			return &TrajectoryError{Reason: "collision during trajectory", FailedPositioners: collided, FinalStatus: finalStatus}
		}

		if done {
			for pid := range t {
				positioners[pid].clearActiveOpcode(OpStartTrajectory)
			}
			return nil
		}

		if time.Now().After(deadline) {
			for pid := range t {
				positioners[pid].clearActiveOpcode(OpStartTrajectory)
			}
			finalStatus := snapshotStatus(t, positioners)
			e.abort(ctx, positioners, channelFor, timeout)
			return &TrajectoryError{Reason: "trajectory did not complete within estimated duration plus slack", FailedPositioners: pending, FinalStatus: finalStatus}
		}

		select {
		case <-ctx.Done():
			for pid := range t {
				positioners[pid].clearActiveOpcode(OpStartTrajectory)
			}
			e.abort(ctx, positioners, channelFor, timeout)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// refreshStatus issues a unicast GET_STATUS to every participating
// positioner and folds the reply into its live model. The background
// status poller is paused for the duration of a trajectory, so the
// waitReceived and monitor loops, through this function, are the only
// thing keeping each Positioner's cached status from going stale while
// a trajectory is in flight.
func (e *TrajectoryEngine) refreshStatus(ctx context.Context, t Trajectory, positioners map[int]*Positioner, channelFor func(id int) Channel, timeout time.Duration) {
	for pid := range t {
		p := positioners[pid]
		ch := channelFor(pid)

		cmd, err := e.registry.Submit(ctx, ch, OpGetStatus, pid, nil, 1, nil, timeout)
		if err != nil {
			continue
		}
		replies, err := cmd.Wait()
		if err != nil || len(replies) != 1 {
			continue
		}
		if status, err := decodeStatusReply(replies[0].Data); err == nil {
			p.UpdateStatus(status)
		}
	}
}

func (e *TrajectoryEngine) abort(ctx context.Context, positioners map[int]*Positioner, channelFor func(id int) Channel, timeout time.Duration) {
	for _, p := range positioners {
		ch := channelFor(p.ID)
		cmd, err := e.registry.Submit(ctx, ch, OpStopTrajectory, p.ID, nil, 1, nil, timeout)
		if err != nil {
			continue
		}
		_, _ = cmd.Wait()
	}
}

func trajectoryPositionerIDs(t Trajectory) []int {
	ids := make([]int, 0, len(t))
	for pid := range t {
		ids = append(ids, pid)
	}
	return ids
}

// trajectorySubset returns a Trajectory restricted to ids, for
// re-using refreshStatus's per-positioner loop over a shrinking
// pending set. The per-positioner sequences themselves are irrelevant
// to refreshStatus, which only iterates the map's keys.
func trajectorySubset(t Trajectory, ids []int) Trajectory {
	out := make(Trajectory, len(ids))
	for _, id := range ids {
		out[id] = t[id]
	}
	return out
}

func snapshotStatus(t Trajectory, positioners map[int]*Positioner) map[int]StatusFlag {
	out := make(map[int]StatusFlag, len(t))
	for pid := range t {
		out[pid] = positioners[pid].Status()
	}
	return out
}
