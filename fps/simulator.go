package fps

import (
	"context"
	"sync"
	"time"
)

// PositionerSimulator is a minimal firmware stand-in that answers the
// same opcodes a real positioner would, over a Channel. It exists so
// the rest of this module can be exercised on the virtual bus without
// hardware attached. It starts folded at alpha 0, beta 180 degrees. It
// does not model motor dynamics: a move reaches its target in one step
// after a fixed settle delay.
type PositionerSimulator struct {
	id         int
	alphaSteps int
	betaSteps  int
	ch         Channel
	logger     *Logger

	firmwareMajor, firmwareMinor, firmwarePatch uint8

	mu             sync.Mutex
	alpha, beta    int32
	status         StatusFlag
	trajAlpha      []trajectoryPoint
	trajBeta       []trajectoryPoint
}

// NewPositionerSimulator creates a simulator for positioner id, with
// the given motor-steps-per-revolution on each axis, bound to ch.
func NewPositionerSimulator(id int, alphaMotorSteps, betaMotorSteps int, ch Channel, logger *Logger) *PositionerSimulator {
	return &PositionerSimulator{
		id:            id,
		alphaSteps:    alphaMotorSteps,
		betaSteps:     betaMotorSteps,
		ch:            ch,
		logger:        logger,
		beta:          degreesToSteps(180, betaMotorSteps),
		firmwareMajor: 1,
		status:        StatusSystemInitialized,
	}
}

// Start opens the simulator's channel and begins serving requests in a
// background goroutine. It returns once the channel is open.
func (s *PositionerSimulator) Start(ctx context.Context) error {
	if err := s.ch.Open(ctx); err != nil {
		return err
	}

	go s.serve(ctx)

	return nil
}

func (s *PositionerSimulator) serve(ctx context.Context) {
	for {
		f, err := s.ch.Receive(ctx)
		if err != nil {
			return
		}

		pid := f.PositionerID()
		if pid != BroadcastID && pid != s.id {
			continue
		}

		s.handle(ctx, f)
	}
}

func (s *PositionerSimulator) handle(ctx context.Context, f Frame) {
	op := f.Opcode()
	tag := f.ResponseOrTag()

	switch op {
	case OpGetID:
		s.replyData(ctx, op, tag, nil)

	case OpGetFirmwareVersion:
		s.replyData(ctx, op, tag, []byte{s.firmwareMajor, s.firmwareMinor, s.firmwarePatch})

	case OpGetStatus:
		s.mu.Lock()
		status := s.status
		s.mu.Unlock()
		s.replyData(ctx, op, tag, IntToBytes(int64(status), 4, BigEndian))

	case OpGetActualPosition:
		s.mu.Lock()
		a, b := s.alpha, s.beta
		s.mu.Unlock()
		payload := append(IntToBytes(int64(a), 4, BigEndian), IntToBytes(int64(b), 4, BigEndian)...)
		s.replyData(ctx, op, tag, payload)

	case OpSetActualPosition:
		if len(f.Data) == 8 {
			a, _ := BytesToInt32Signed(f.Data[0:4], BigEndian)
			b, _ := BytesToInt32Signed(f.Data[4:8], BigEndian)
			s.mu.Lock()
			s.alpha, s.beta = a, b
			s.mu.Unlock()
		}
		s.replyAck(ctx, op, tag, ResponseAccepted)

	case OpInitializeDatums:
		s.mu.Lock()
		s.status |= StatusDatumAlphaInitialized | StatusDatumBetaInitialized | StatusDatumCalibrated
		s.mu.Unlock()
		s.replyAck(ctx, op, tag, ResponseAccepted)

	case OpGoToAbsolutePosition, OpGoToRelativePosition:
		if len(f.Data) < 8 {
			s.replyAck(ctx, op, tag, ResponseInvalid)
			return
		}
		target, _ := BytesToInt32Signed(f.Data[0:4], BigEndian)
		targetBeta, _ := BytesToInt32Signed(f.Data[4:8], BigEndian)
		s.replyAck(ctx, op, tag, ResponseAccepted)
		go s.simulateMove(ctx, op == OpGoToRelativePosition, target, targetBeta)

	case OpSendTrajectoryDataAlpha:
		if len(f.Data) == 8 {
			pt := decodeTrajectoryPointPayload(f.Data)
			s.mu.Lock()
			s.trajAlpha = append(s.trajAlpha, pt)
			s.mu.Unlock()
		}
		s.replyAck(ctx, op, tag, ResponseAccepted)

	case OpSendTrajectoryDataBeta:
		if len(f.Data) == 8 {
			pt := decodeTrajectoryPointPayload(f.Data)
			s.mu.Lock()
			s.trajBeta = append(s.trajBeta, pt)
			s.mu.Unlock()
		}
		s.replyAck(ctx, op, tag, ResponseAccepted)

	case OpSendTrajectoryDataEnd:
		s.mu.Lock()
		s.status |= StatusTrajectoryAlphaReceived | StatusTrajectoryBetaReceived
		s.status &^= StatusAlphaDisplacementCompleted | StatusBetaDisplacementCompleted
		s.mu.Unlock()
		s.replyAck(ctx, op, tag, ResponseAccepted)

	case OpStartTrajectory:
		s.replyAck(ctx, op, tag, ResponseAccepted)
		go s.runTrajectory(ctx)

	case OpStopTrajectory:
		s.mu.Lock()
		s.trajAlpha = nil
		s.trajBeta = nil
		s.mu.Unlock()
		s.replyAck(ctx, op, tag, ResponseAccepted)

	case OpGetPositionerInfo:
		payload := append([]byte{s.firmwareMajor, s.firmwareMinor, s.firmwarePatch}, IntToBytes(int64(s.id), 2, BigEndian)...)
		s.replyData(ctx, op, tag, payload)

	default:
		s.replyAck(ctx, op, tag, ResponseAccepted)
	}
}

// decodeTrajectoryPointPayload is the inverse of
// encodeTrajectoryPointPayload, used by the simulator to play back an
// uploaded trajectory.
func decodeTrajectoryPointPayload(data []byte) trajectoryPoint {
	angle, _ := BytesToInt32Signed(data[0:4], BigEndian)
	duration, _ := BytesToInt(data[4:8], BigEndian)
	return trajectoryPoint{AngleSteps: angle, DurationMS: uint32(duration)}
}

// simulateMove waits a fixed settle delay, then sets alpha/beta to the
// requested target in one step and sets the displacement-completed
// bits.
func (s *PositionerSimulator) simulateMove(ctx context.Context, relative bool, alpha, beta int32) {
	const settle = 200 * time.Millisecond

	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return
	}

	s.mu.Lock()
	if relative {
		s.alpha += alpha
		s.beta += beta
	} else {
		s.alpha = alpha
		s.beta = beta
	}
	s.status |= StatusDisplacementCompleted | StatusAlphaDisplacementCompleted | StatusBetaDisplacementCompleted
	s.mu.Unlock()
}

// runTrajectory plays back the uploaded alpha/beta point sequences,
// advancing position by each segment's duration, then marks both axes
// complete.
func (s *PositionerSimulator) runTrajectory(ctx context.Context) {
	s.mu.Lock()
	alpha := append([]trajectoryPoint(nil), s.trajAlpha...)
	beta := append([]trajectoryPoint(nil), s.trajBeta...)
	s.status &^= StatusAlphaDisplacementCompleted | StatusBetaDisplacementCompleted
	s.mu.Unlock()

	n := len(alpha)
	if len(beta) > n {
		n = len(beta)
	}

	for i := 0; i < n; i++ {
		var d time.Duration
		if i < len(alpha) {
			d = time.Duration(alpha[i].DurationMS) * time.Millisecond
		}
		if i < len(beta) && time.Duration(beta[i].DurationMS)*time.Millisecond > d {
			d = time.Duration(beta[i].DurationMS) * time.Millisecond
		}

		select {
		case <-time.After(d):
		case <-ctx.Done():
			return
		}

		s.mu.Lock()
		if i < len(alpha) {
			s.alpha = alpha[i].AngleSteps
		}
		if i < len(beta) {
			s.beta = beta[i].AngleSteps
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.status |= StatusAlphaDisplacementCompleted | StatusBetaDisplacementCompleted
	s.trajAlpha = nil
	s.trajBeta = nil
	s.mu.Unlock()
}

// replyData sends a reply frame carrying real data: the correlation
// tag echoed unchanged and the full payload, with no leading response
// code byte.
func (s *PositionerSimulator) replyData(ctx context.Context, op Opcode, tag uint8, payload []byte) {
	f, err := NewFrame(s.id, op, tag, payload)
	if err != nil {
		return
	}
	_ = s.ch.Send(ctx, f)
}

// replyAck sends a reply frame for a write/action command that has no
// data of its own to return: the correlation tag echoed unchanged and
// a single-byte accept/reject payload.
func (s *PositionerSimulator) replyAck(ctx context.Context, op Opcode, tag uint8, code ResponseCode) {
	f, err := NewFrame(s.id, op, tag, []byte{byte(code)})
	if err != nil {
		return
	}
	_ = s.ch.Send(ctx, f)
}
