package events_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/events"
	"github.com/stretchr/testify/require"
)

type ping struct {
	N int
}

func TestChannel_EmitInOrder(t *testing.T) {
	c := events.NewChannel[ping]("ping")
	require.Equal(t, "ping", c.Name())

	var got []string
	c.Subscribe(func(p ping) { got = append(got, "a") })
	c.Subscribe(func(p ping) { got = append(got, "b") })

	c.Emit(ping{N: 1})
	require.Equal(t, []string{"a", "b"}, got)
}

func TestChannel_Unsubscribe(t *testing.T) {
	c := events.NewChannel[ping]("ping")
	calls := 0
	unsubscribe := c.Subscribe(func(ping) { calls++ })
	other := 0
	c.Subscribe(func(ping) { other++ })

	c.Emit(ping{})
	unsubscribe()
	unsubscribe()
	c.Emit(ping{})

	require.Equal(t, 1, calls)
	require.Equal(t, 2, other)
	require.Equal(t, 1, c.Len())
}

func TestChannel_PanickingListenerIsIsolated(t *testing.T) {
	c := events.NewChannel[ping]("ping")
	var seen []int
	c.Subscribe(func(ping) { panic("boom") })
	c.Subscribe(func(p ping) { seen = append(seen, p.N) })

	require.NotPanics(t, func() { c.Emit(ping{N: 3}) })
	require.Equal(t, []int{3}, seen)
}

func TestChannel_ListenerMayUnsubscribeDuringEmit(t *testing.T) {
	c := events.NewChannel[ping]("ping")
	calls := 0
	var unsubscribe func()
	unsubscribe = c.Subscribe(func(ping) {
		calls++
		unsubscribe()
	})

	c.Emit(ping{})
	c.Emit(ping{})
	require.Equal(t, 1, calls)
}
