package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{ S string }

func TestInstanceBus(t *testing.T) {
	b := New()
	var got []int
	unsubscribe := On(b, func(_ context.Context, e ping) { got = append(got, e.N) })
	var pongs int
	On(b, func(_ context.Context, _ pong) { pongs++ })

	Emit(b, context.Background(), ping{N: 1})
	Emit(b, context.Background(), ping{N: 2})
	require.True(t, Has[ping](b))

	unsubscribe()
	Emit(b, context.Background(), ping{N: 3})

	assert.Equal(t, []int{1, 2}, got)
	assert.Zero(t, pongs)
	assert.False(t, Has[ping](b))
}

func TestUnsubscribeKeepsOtherHandlers(t *testing.T) {
	b := New()
	var a, c int
	first := On(b, func(context.Context, ping) { a++ })
	On(b, func(context.Context, ping) { c++ })
	first()
	Emit(b, context.Background(), ping{})
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, c)
}

func TestGlobalBus(t *testing.T) {
	Use(nil)
	Publish(context.Background(), ping{N: 1})
	assert.False(t, Has[ping](nil))

	b := New()
	Use(b)
	defer Use(nil)
	var got int
	Subscribe(func(_ context.Context, e ping) { got += e.N })
	Publish(context.Background(), ping{N: 5})
	Emit(nil, context.Background(), ping{N: 2})
	assert.Equal(t, 7, got)
}
