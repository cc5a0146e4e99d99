package fps

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierDispatchesToAllListeners(t *testing.T) {
	bus := NewVirtualBus()
	sender := bus.Attach("sender")
	receiver := bus.Attach("receiver")
	require.NoError(t, sender.Open(context.Background()))
	require.NoError(t, receiver.Open(context.Background()))

	n := NewNotifier(nil)
	n.AddChannel(receiver)

	var mu sync.Mutex
	var got []Frame
	n.AddListener(func(ctx context.Context, ch Channel, f Frame) {
		mu.Lock()
		got = append(got, f)
		mu.Unlock()
	})
	n.AddListener(func(ctx context.Context, ch Channel, f Frame) {
		mu.Lock()
		got = append(got, f)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.Start(ctx)
	defer n.Shutdown()

	f, err := NewFrame(1, OpGetID, 0, nil)
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), f))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestNotifierShutdownStopsDispatch(t *testing.T) {
	bus := NewVirtualBus()
	sender := bus.Attach("sender")
	receiver := bus.Attach("receiver")
	require.NoError(t, sender.Open(context.Background()))
	require.NoError(t, receiver.Open(context.Background()))

	n := NewNotifier(nil)
	n.AddChannel(receiver)

	var mu sync.Mutex
	dispatched := 0
	n.AddListener(func(ctx context.Context, ch Channel, f Frame) {
		mu.Lock()
		dispatched++
		mu.Unlock()
	})

	ctx := context.Background()
	n.Start(ctx)
	n.Shutdown()

	f, err := NewFrame(1, OpGetID, 0, nil)
	require.NoError(t, err)
	assert.NoError(t, sender.Send(context.Background(), f))

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, dispatched)
}
