package fps

import (
	"context"
	"sync"
	"time"
)

// tagAllocKey identifies one rolling tag counter: a target (0 for
// broadcast, else a positioner id) paired with an opcode.
type tagAllocKey struct {
	target int
	opcode Opcode
}

// broadcastKey identifies a broadcast command's in-flight entry: reply
// frames for a broadcast arrive tagged with the replying positioner's
// real id, so broadcasts cannot be keyed by positioner id the way
// unicast commands are.
type broadcastKey struct {
	opcode Opcode
	tag    uint8
}

// Registry is the array-wide command registry: it allocates tags,
// correlates replies to pending commands, drives per-command timeouts,
// and enforces the per-positioner move-command mutual exclusion.
type Registry struct {
	logger *Logger

	mu          sync.Mutex
	tagInFlight map[tagAllocKey]map[uint8]bool
	tagNext     map[tagAllocKey]uint8
	unicast     map[commandKey]*Command
	broadcast   map[broadcastKey]*broadcastEntry
	moveLock    map[int]Opcode // positioner id -> opcode currently holding the move lock
}

type broadcastEntry struct {
	cmd     *Command
	want    int
	replied map[int]bool
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *Logger) *Registry {
	return &Registry{
		logger:      logger,
		tagInFlight: make(map[tagAllocKey]map[uint8]bool),
		tagNext:     make(map[tagAllocKey]uint8),
		unicast:     make(map[commandKey]*Command),
		broadcast:   make(map[broadcastKey]*broadcastEntry),
		moveLock:    make(map[int]Opcode),
	}
}

// Submit allocates a tag for opcode, builds a Command, installs it in
// the in-flight table, and sends it on ch. affected lists the
// positioner ids this command will acquire the move lock for: a single
// id for a unicast command, or every known non-disabled positioner id
// for a broadcast move command. wantReplies is 1 for unicast, or the
// number of known non-disabled positioners for a broadcast.
func (r *Registry) Submit(ctx context.Context, ch Channel, opcode Opcode, positionerID int, affected []int, wantReplies int, payload []byte, timeout time.Duration) (*Command, error) {
	r.mu.Lock()

	if opcode.MoveCommand() {
		for _, pid := range affected {
			if held, ok := r.moveLock[pid]; ok {
				r.mu.Unlock()
				_ = held
				return nil, &MoveInProgressError{PositionerID: pid}
			}
		}
	}

	tag := r.allocTagLocked(positionerID, opcode)

	cmd := newCommand(ctx, opcode, positionerID, payload, timeout)
	cmd.Tag = tag
	cmd.WantReplies = wantReplies

	if positionerID == BroadcastID {
		r.broadcast[broadcastKey{opcode: opcode, tag: tag}] = &broadcastEntry{
			cmd:     cmd,
			want:    wantReplies,
			replied: make(map[int]bool),
		}
	} else {
		r.unicast[commandKey{positionerID: positionerID, opcode: opcode, tag: tag}] = cmd
	}

	if opcode.MoveCommand() {
		for _, pid := range affected {
			r.moveLock[pid] = opcode
		}
	}

	r.mu.Unlock()

	frame, err := NewFrame(positionerID, opcode, tag, payload)
	if err != nil {
		r.release(cmd, affected)
		return nil, err
	}

	if err := ch.Send(ctx, frame); err != nil {
		r.release(cmd, affected)
		cmd.resolve(CommandResult{Err: err})
		return cmd, err
	}

	if timeout > 0 {
		go r.watchTimeout(cmd, affected, timeout)
	}

	return cmd, nil
}

// allocTagLocked returns the next free tag for (target, opcode),
// skipping tags still in flight and wrapping on overflow. Callers must
// hold r.mu.
func (r *Registry) allocTagLocked(positionerID int, opcode Opcode) uint8 {
	key := tagAllocKey{target: positionerID, opcode: opcode}

	inFlight := r.tagInFlight[key]
	if inFlight == nil {
		inFlight = make(map[uint8]bool)
		r.tagInFlight[key] = inFlight
	}

	start := r.tagNext[key]
	tag := start

	for inFlight[tag] {
		tag++
		if tag == start {
			// Wrapped all the way around with every tag in flight;
			// reuse start rather than spin forever.
			break
		}
	}

	inFlight[tag] = true
	r.tagNext[key] = tag + 1

	return tag
}

func (r *Registry) freeTagLocked(positionerID int, opcode Opcode, tag uint8) {
	key := tagAllocKey{target: positionerID, opcode: opcode}
	delete(r.tagInFlight[key], tag)
}

// watchTimeout marks cmd FAILED with a timeout error if it has not
// resolved by the time timeout elapses.
func (r *Registry) watchTimeout(cmd *Command, affected []int, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-cmd.done:
		// Already resolved; put the result back for Wait to consume,
		// since this select and Wait both receive from cmd.done.
		select {
		case cmd.done <- res:
		default:
		}
		return
	case <-timer.C:
		r.mu.Lock()
		replies := r.cancelLocked(cmd)
		r.mu.Unlock()
		r.release(cmd, affected)

		cmd.resolve(CommandResult{
			Replies: replies,
			Err: &TimeoutError{
				PositionerID: cmd.PositionerID,
				Opcode:       cmd.Opcode,
				Tag:          cmd.Tag,
				Got:          len(replies),
				Want:         cmd.WantReplies,
			},
		})
	}
}

// cancelLocked removes cmd's in-flight table entry and returns
// whatever replies had accumulated for it. Callers must hold r.mu.
func (r *Registry) cancelLocked(cmd *Command) []Frame {
	if cmd.PositionerID == BroadcastID {
		key := broadcastKey{opcode: cmd.Opcode, tag: cmd.Tag}
		entry := r.broadcast[key]
		delete(r.broadcast, key)
		if entry != nil {
			return entry.cmd.replies
		}
		return nil
	}

	key := commandKey{positionerID: cmd.PositionerID, opcode: cmd.Opcode, tag: cmd.Tag}
	delete(r.unicast, key)

	return cmd.replies
}

func (r *Registry) release(cmd *Command, affected []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.freeTagLocked(cmd.PositionerID, cmd.Opcode, cmd.Tag)

	if cmd.Opcode.MoveCommand() {
		for _, pid := range affected {
			if r.moveLock[pid] == cmd.Opcode {
				delete(r.moveLock, pid)
			}
		}
	}
}

// HandleFrame routes an inbound reply frame to its pending command.
// Frames whose (positioner, opcode, tag) does not match any pending
// command are logged as orphan and dropped.
func (r *Registry) HandleFrame(f Frame) {
	pid := f.PositionerID()
	opcode := f.Opcode()
	tag := f.ResponseOrTag()

	r.mu.Lock()

	if cmd, ok := r.unicast[commandKey{positionerID: pid, opcode: opcode, tag: tag}]; ok {
		delete(r.unicast, commandKey{positionerID: pid, opcode: opcode, tag: tag})
		r.freeTagLocked(pid, opcode, tag)
		if cmd.Opcode.MoveCommand() && r.moveLock[pid] == cmd.Opcode {
			delete(r.moveLock, pid)
		}
		r.mu.Unlock()

		cmd.replies = append(cmd.replies, f)

		var err error
		if code, isAck := replyResponseCode(f); isAck && code != ResponseAccepted {
			err = &ProtocolError{PositionerID: pid, Opcode: opcode, Code: code}
		}
		cmd.resolve(CommandResult{Replies: cmd.replies, Err: err})

		return
	}

	bkey := broadcastKey{opcode: opcode, tag: tag}
	if entry, ok := r.broadcast[bkey]; ok {
		entry.cmd.replies = append(entry.cmd.replies, f)
		entry.replied[pid] = true
		done := len(entry.replied) >= entry.want

		if done {
			delete(r.broadcast, bkey)
			r.freeTagLocked(BroadcastID, opcode, tag)
			if entry.cmd.Opcode.MoveCommand() {
				for p := range entry.replied {
					if r.moveLock[p] == entry.cmd.Opcode {
						delete(r.moveLock, p)
					}
				}
			}
		}

		r.mu.Unlock()

		if done {
			entry.cmd.resolve(CommandResult{Replies: entry.cmd.replies})
		}

		return
	}

	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Warnf("orphan frame, no pending command: %s", f)
	}
}

// InFlightCount reports the number of commands currently awaiting
// reply.
func (r *Registry) InFlightCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.unicast) + len(r.broadcast)
}

// MoveLockHolders returns a snapshot of positioners currently holding
// the move lock.
func (r *Registry) MoveLockHolders() map[int]Opcode {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int]Opcode, len(r.moveLock))
	for k, v := range r.moveLock {
		out[k] = v
	}

	return out
}
