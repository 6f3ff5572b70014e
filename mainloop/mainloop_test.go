package mainloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New()
	go l.Run()
	t.Cleanup(func() {
		l.Quit()
		<-l.Done()
	})
	return l
}

func TestScheduleOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := range 100 {
		l.Schedule(func() { got = append(got, i) })
	}
	require.True(t, l.Sync(func() {}))

	want := make([]int, 100)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestScheduleFromManyGoroutines(t *testing.T) {
	l := startLoop(t)

	// count is only touched on the loop goroutine
	count := 0
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 250 {
				l.Schedule(func() { count++ })
			}
		}()
	}
	wg.Wait()

	var got int
	require.True(t, l.Sync(func() { got = count }))
	assert.Equal(t, 2000, got)
}

func TestScheduleDoesNotBlockBeforeRun(t *testing.T) {
	l := New()
	done := make(chan struct{})
	go func() {
		for range 10000 {
			l.Schedule(func() {})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Schedule blocked without a running loop")
	}
	l.Quit()
}

func TestAfter(t *testing.T) {
	l := startLoop(t)

	fired := make(chan time.Time, 1)
	start := time.Now()
	l.After(30*time.Millisecond, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 30*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("After callback never ran")
	}
}

func TestAfterStopped(t *testing.T) {
	l := startLoop(t)

	fired := make(chan struct{}, 1)
	timer := l.After(20*time.Millisecond, func() { fired <- struct{}{} })
	require.True(t, timer.Stop())

	select {
	case <-fired:
		t.Fatal("stopped timer still fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestQuitDropsLateCallbacks(t *testing.T) {
	l := New()
	go l.Run()
	l.Quit()
	<-l.Done()

	ran := false
	l.Schedule(func() { ran = true })
	assert.False(t, l.Sync(func() {}))
	assert.False(t, ran)
}
