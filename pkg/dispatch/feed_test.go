package dispatch_test

import (
	"testing"

	"github.com/skillswap/realtime/pkg/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOut(t *testing.T) {
	feed := dispatch.NewFeed[string]()

	var a, b, c int
	feed.On(func(string) { a++ })
	feed.On(func(string) { b++ })
	feed.On(func(string) { c++ })

	feed.Emit("hello")

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, 1, c)
}

func TestDuplicateRegistrationIsNoOp(t *testing.T) {
	feed := dispatch.NewFeed[int]()

	calls := 0
	fn := func(int) { calls++ }

	off1 := feed.On(fn)
	off2 := feed.On(fn)

	require.Equal(t, 1, feed.Len())

	feed.Emit(1)
	assert.Equal(t, 1, calls)

	off1()
	off2()
	assert.Equal(t, 0, feed.Len())
}

func TestClosuresFromOneLiteralAreIndependent(t *testing.T) {
	feed := dispatch.NewFeed[int]()

	// Registering in a loop produces distinct closures that share code;
	// each must be delivered to, and each disposer must target its own.
	counts := make([]int, 3)
	offs := make([]func(), 3)
	for i := range counts {
		i := i
		offs[i] = feed.On(func(int) { counts[i]++ })
	}

	require.Equal(t, 3, feed.Len())

	feed.Emit(1)
	assert.Equal(t, []int{1, 1, 1}, counts)

	offs[0]()
	require.Equal(t, 2, feed.Len())

	feed.Emit(2)
	assert.Equal(t, []int{1, 2, 2}, counts)
}

func TestUnsubscribe(t *testing.T) {
	feed := dispatch.NewFeed[int]()

	calls := 0
	off := feed.On(func(int) { calls++ })

	feed.Emit(1)
	off()
	feed.Emit(2)
	off() // second call must be harmless

	assert.Equal(t, 1, calls)
}

func TestUnsubscribeMidDispatchKeepsCurrentCycle(t *testing.T) {
	feed := dispatch.NewFeed[int]()

	var got []string
	var offB func()

	feed.On(func(int) {
		got = append(got, "a")
		offB()
	})
	offB = feed.On(func(int) { got = append(got, "b") })
	feed.On(func(int) { got = append(got, "c") })

	feed.Emit(1)

	// All three fire for the dispatch in flight regardless of order.
	assert.Len(t, got, 3)

	got = nil
	feed.Emit(2)
	assert.NotContains(t, got, "b")
	assert.Len(t, got, 2)
}

func TestPanickingSubscriberDoesNotBreakSiblings(t *testing.T) {
	feed := dispatch.NewFeed[int]()

	calls := 0
	feed.On(func(int) { panic("boom") })
	feed.On(func(int) { calls++ })

	require.NotPanics(t, func() { feed.Emit(1) })
	assert.Equal(t, 1, calls)
}
