package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opEvent(id string) event {
	return event{kind: eventQueryDone, op: &operation{id: id}}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(opEvent(id)))
	}

	for _, want := range []string{"a", "b", "c"} {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, e.op.id)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_SignalsAvailability(t *testing.T) {
	q := newEventQueue()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(opEvent("late"))
	}()

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("no signal after enqueue")
	}
	e, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "late", e.op.id)
}

func TestEventQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newEventQueue()
	require.True(t, q.Enqueue(opEvent("kept")))
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(opEvent("dropped")))
	<-q.Wait()

	e, ok := q.TryDequeue()
	require.True(t, ok, "events queued before Close are still drained")
	assert.Equal(t, "kept", e.op.id)
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(opEvent("x"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, q.Len())
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				c.Next()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1000), c.Current())
}

func TestInflightCounter_WaitReturnsAtZero(t *testing.T) {
	c := newInflightCounter()
	c.wait()

	c.add()
	c.add()
	released := make(chan struct{})
	go func() {
		c.wait()
		close(released)
	}()

	c.done()
	select {
	case <-released:
		t.Fatal("wait returned with an operation still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	c.done()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("wait did not return at zero")
	}
	assert.Equal(t, 0, c.count())
}

func TestInflightCounter_AddDuringWait(t *testing.T) {
	c := newInflightCounter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.add()
			c.done()
		}()
		go func() {
			defer wg.Done()
			c.wait()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, c.count())
}
