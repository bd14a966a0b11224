package client_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/junaidrashid-git/storefront-core/client"
)

func waitEvent(t *testing.T, ch <-chan client.RealtimeEvent) client.RealtimeEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no event delivered")
		return client.RealtimeEvent{}
	}
}

func TestRealtimeDeliversSubscribedTopic(t *testing.T) {
	c, srv := newClient(t)

	ch := make(chan client.RealtimeEvent, 4)
	unsub, err := c.Realtime.Subscribe("orders:user-1", func(ev client.RealtimeEvent) { ch <- ev })
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool { return srv.Subscribed("orders:user-1") },
		2*time.Second, 10*time.Millisecond)

	require.Equal(t, 1, srv.Push("orders:user-1", "UPDATE", map[string]string{"id": "o1"}))
	ev := waitEvent(t, ch)
	require.Equal(t, "orders:user-1", ev.Topic)
	require.Equal(t, "UPDATE", ev.Event)
	require.JSONEq(t, `{"id":"o1"}`, string(ev.Payload))
}

func TestRealtimeUnsubscribeStopsDelivery(t *testing.T) {
	c, srv := newClient(t)

	ch := make(chan client.RealtimeEvent, 4)
	unsub, err := c.Realtime.Subscribe("auth:user-1", func(ev client.RealtimeEvent) { ch <- ev })
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Subscribed("auth:user-1") },
		2*time.Second, 10*time.Millisecond)

	unsub()
	require.Eventually(t, func() bool { return !srv.Subscribed("auth:user-1") },
		2*time.Second, 10*time.Millisecond)
	require.Zero(t, srv.Push("auth:user-1", "SIGNED_OUT", nil))
}

func TestRealtimeResubscribesAfterConnectionDrop(t *testing.T) {
	c, srv := newClient(t)

	ch := make(chan client.RealtimeEvent, 4)
	unsub, err := c.Realtime.Subscribe("orders:user-1", func(ev client.RealtimeEvent) { ch <- ev })
	require.NoError(t, err)
	defer unsub()
	require.Eventually(t, func() bool { return srv.Subscribed("orders:user-1") },
		2*time.Second, 10*time.Millisecond)

	srv.DropRealtime()
	require.Eventually(t, func() bool { return !srv.Subscribed("orders:user-1") },
		2*time.Second, 10*time.Millisecond)

	// The client redials on its own and replays the subscribe frame; events
	// pushed after the blip still reach the registered handler.
	require.Eventually(t, func() bool { return srv.Subscribed("orders:user-1") },
		5*time.Second, 20*time.Millisecond)
	require.Equal(t, 1, srv.Push("orders:user-1", "UPDATE", map[string]string{"id": "o2"}))
	ev := waitEvent(t, ch)
	require.JSONEq(t, `{"id":"o2"}`, string(ev.Payload))
}

func TestRealtimeCloseStopsReconnecting(t *testing.T) {
	c, srv := newClient(t)

	_, err := c.Realtime.Subscribe("orders:user-1", func(client.RealtimeEvent) {})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Subscribed("orders:user-1") },
		2*time.Second, 10*time.Millisecond)

	c.Realtime.Close()
	require.Eventually(t, func() bool { return !srv.Subscribed("orders:user-1") },
		2*time.Second, 10*time.Millisecond)

	// No redial after an explicit Close.
	time.Sleep(1500 * time.Millisecond)
	require.False(t, srv.Subscribed("orders:user-1"))

	// A later Subscribe brings the channel back.
	_, err = c.Realtime.Subscribe("orders:user-2", func(client.RealtimeEvent) {})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Subscribed("orders:user-1") && srv.Subscribed("orders:user-2") },
		2*time.Second, 10*time.Millisecond)
}
