package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ n int }
type pong struct{ n int }

func TestBus_EventsVisibleNextTick(t *testing.T) {
	b := NewBus()
	var got []int
	Subscribe(b, func(p ping) { got = append(got, p.n) })

	Emit(b, ping{1})
	b.DispatchAll()
	assert.Empty(t, got)
	assert.Equal(t, 1, b.Pending())

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []int{1}, got)
	assert.Zero(t, b.Pending())

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []int{1}, got, "front buffer is cleared by the next swap")
}

func TestBus_DispatchOrderFollowsFirstEmit(t *testing.T) {
	b := NewBus()
	var order []string
	Subscribe(b, func(p ping) { order = append(order, "ping") })
	Subscribe(b, func(p pong) { order = append(order, "pong") })

	Emit(b, pong{1})
	Emit(b, ping{1})
	Emit(b, pong{2})
	b.SwapBuffers()
	b.DispatchAll()

	assert.Equal(t, []string{"pong", "pong", "ping"}, order)
}

func TestBus_NilBusDropsEvents(t *testing.T) {
	assert.NotPanics(t, func() { Emit[ping](nil, ping{1}) })
}
