package feed_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/synote/pkg/feed"
)

func TestMailbox_DeliversLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	var mu sync.Mutex
	var got []int

	m := feed.Start(ctx, func(v int) {
		if v == 1 {
			<-release // hold the consumer so later puts coalesce
		}
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	}, nil)

	m.Put(1)
	time.Sleep(20 * time.Millisecond)
	m.Put(2)
	m.Put(3)
	m.Put(4)
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 4}, got)
}

func TestMailbox_StopPreventsDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delivered := make(chan string, 4)
	m := feed.Start(ctx, func(v string) { delivered <- v }, nil)

	m.Put("first")
	select {
	case v := <-delivered:
		assert.Equal(t, "first", v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	m.Stop()
	m.Put("after-stop")
	assert.True(t, m.Stopped())

	select {
	case v := <-delivered:
		t.Fatalf("unexpected delivery after stop: %q", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMailbox_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := feed.Start(ctx, func(int) {}, nil)
	cancel()

	require.Eventually(t, m.Stopped, time.Second, 5*time.Millisecond)
}
