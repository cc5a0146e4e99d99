package fps

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel records every frame handed to Send and never produces
// anything on Receive; tests drive replies directly into the registry
// with HandleFrame instead of routing them through a channel.
type fakeChannel struct {
	statsTracker
	mu   sync.Mutex
	sent []Frame
}

func (c *fakeChannel) Name() string                   { return "fake" }
func (c *fakeChannel) Open(ctx context.Context) error  { return nil }
func (c *fakeChannel) Close() error                    { return nil }
func (c *fakeChannel) Shutdown()                       {}
func (c *fakeChannel) Stats() ChannelStats             { return c.snapshot() }
func (c *fakeChannel) Receive(ctx context.Context) (Frame, error) {
	<-ctx.Done()
	return Frame{}, ctx.Err()
}

func (c *fakeChannel) Send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	c.sent = append(c.sent, f)
	c.mu.Unlock()
	c.recordSend()
	return nil
}

func (c *fakeChannel) last() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[len(c.sent)-1]
}

func TestRegistryUnicastRoundTrip(t *testing.T) {
	r := NewRegistry(nil)
	ch := &fakeChannel{}

	cmd, err := r.Submit(context.Background(), ch, OpGetStatus, 5, []int{5}, 1, nil, time.Second)
	require.NoError(t, err)

	reply, err := NewFrame(5, OpGetStatus, cmd.Tag, IntToBytes(int64(StatusSystemInitialized), 4, BigEndian))
	require.NoError(t, err)

	r.HandleFrame(reply)

	replies, err := cmd.Wait()
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, reply, replies[0])
}

func TestRegistryUnicastProtocolError(t *testing.T) {
	r := NewRegistry(nil)
	ch := &fakeChannel{}

	cmd, err := r.Submit(context.Background(), ch, OpGoToAbsolutePosition, 5, []int{5}, 1, nil, time.Second)
	require.NoError(t, err)

	reply, err := NewFrame(5, OpGoToAbsolutePosition, cmd.Tag, []byte{byte(ResponseValueOutOfRange)})
	require.NoError(t, err)

	r.HandleFrame(reply)

	_, err = cmd.Wait()
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, ResponseValueOutOfRange, protoErr.Code)
}

func TestRegistryBroadcastAccumulatesUntilWantReplies(t *testing.T) {
	r := NewRegistry(nil)
	ch := &fakeChannel{}

	cmd, err := r.Submit(context.Background(), ch, OpGetID, BroadcastID, nil, 3, nil, time.Second)
	require.NoError(t, err)

	for _, pid := range []int{1, 2, 3} {
		reply, err := NewFrame(pid, OpGetID, cmd.Tag, nil)
		require.NoError(t, err)
		r.HandleFrame(reply)
	}

	replies, err := cmd.Wait()
	require.NoError(t, err)
	assert.Len(t, replies, 3)
}

func TestRegistryBroadcastTimesOutOnPartialReplies(t *testing.T) {
	r := NewRegistry(nil)
	ch := &fakeChannel{}

	cmd, err := r.Submit(context.Background(), ch, OpGetID, BroadcastID, nil, 3, nil, 20*time.Millisecond)
	require.NoError(t, err)

	reply, err := NewFrame(1, OpGetID, cmd.Tag, nil)
	require.NoError(t, err)
	r.HandleFrame(reply)

	_, err = cmd.Wait()
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 1, timeoutErr.Got)
	assert.Equal(t, 3, timeoutErr.Want)
}

func TestRegistryMoveLockRejectsConcurrentMoveCommand(t *testing.T) {
	r := NewRegistry(nil)
	ch := &fakeChannel{}

	_, err := r.Submit(context.Background(), ch, OpGoToAbsolutePosition, 9, []int{9}, 1, nil, time.Second)
	require.NoError(t, err)

	_, err = r.Submit(context.Background(), ch, OpGoToAbsolutePosition, 9, []int{9}, 1, nil, time.Second)
	var lockErr *MoveInProgressError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, 9, lockErr.PositionerID)
}

func TestRegistrySafeCommandBypassesMoveLock(t *testing.T) {
	r := NewRegistry(nil)
	ch := &fakeChannel{}

	_, err := r.Submit(context.Background(), ch, OpGoToAbsolutePosition, 9, []int{9}, 1, nil, time.Second)
	require.NoError(t, err)

	// OpStopTrajectory is safe and submitted with a nil affected list,
	// so it must not be blocked by the move lock held above.
	_, err = r.Submit(context.Background(), ch, OpStopTrajectory, 9, nil, 1, nil, time.Second)
	assert.NoError(t, err)
}

func TestRegistryMoveLockReleasedOnResolve(t *testing.T) {
	r := NewRegistry(nil)
	ch := &fakeChannel{}

	cmd, err := r.Submit(context.Background(), ch, OpGoToAbsolutePosition, 9, []int{9}, 1, nil, time.Second)
	require.NoError(t, err)

	reply, err := NewFrame(9, OpGoToAbsolutePosition, cmd.Tag, []byte{byte(ResponseAccepted)})
	require.NoError(t, err)
	r.HandleFrame(reply)
	_, err = cmd.Wait()
	require.NoError(t, err)

	_, err = r.Submit(context.Background(), ch, OpGoToAbsolutePosition, 9, []int{9}, 1, nil, time.Second)
	assert.NoError(t, err)
}

func TestRegistryOrphanFrameIsDropped(t *testing.T) {
	r := NewRegistry(nil)

	f, err := NewFrame(42, OpGetStatus, 3, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() { r.HandleFrame(f) })
	assert.Equal(t, 0, r.InFlightCount())
}
