package stream_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dsyer/ratpack/stream"
)

// collector accumulates signals and exposes the subscription for manual
// demand control.
type collector struct {
	mu      sync.Mutex
	signals []string
	sub     stream.Subscription
	done    chan struct{}

	// requestEach, when set, signals this much demand on subscribe and
	// after every element.
	requestEach int64
}

func newCollector(requestEach int64) *collector {
	return &collector{requestEach: requestEach, done: make(chan struct{})}
}

func (c *collector) record(s string) {
	c.mu.Lock()
	c.signals = append(c.signals, s)
	c.mu.Unlock()
}

func (c *collector) OnSubscribe(s stream.Subscription) {
	c.sub = s
	c.record("subscribe")
	if c.requestEach > 0 {
		s.Request(c.requestEach)
	}
}

func (c *collector) OnNext(element int) {
	c.record(fmt.Sprintf("next:%d", element))
	if c.requestEach > 0 {
		c.sub.Request(c.requestEach)
	}
}

func (c *collector) OnComplete() {
	c.record("complete")
	close(c.done)
}

func (c *collector) OnError(cause error) {
	c.record("error:" + cause.Error())
	close(c.done)
}

func (c *collector) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.signals...)
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("stream never terminated; signals so far: %v", c.recorded())
	}
}

func assertSignals(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("signals = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("signals = %v, want %v", got, want)
		}
	}
}

func TestFromSliceEmitsAllOnDemand(t *testing.T) {
	c := newCollector(1)
	stream.FromSlice([]int{1, 2, 3}).Subscribe(c)
	c.wait(t)
	assertSignals(t, c.recorded(), []string{"subscribe", "next:1", "next:2", "next:3", "complete"})
}

func TestFromSliceEmptyCompletesImmediately(t *testing.T) {
	c := newCollector(1)
	stream.FromSlice[int](nil).Subscribe(c)
	c.wait(t)
	assertSignals(t, c.recorded(), []string{"subscribe", "complete"})
}

func TestFromSliceHonoursDemand(t *testing.T) {
	c := newCollector(0)
	stream.FromSlice([]int{1, 2, 3, 4}).Subscribe(c)

	// No demand yet: nothing emitted after subscribe.
	assertSignals(t, c.recorded(), []string{"subscribe"})

	c.sub.Request(2)
	assertSignals(t, c.recorded(), []string{"subscribe", "next:1", "next:2"})

	c.sub.Request(2)
	c.wait(t)
	assertSignals(t, c.recorded(),
		[]string{"subscribe", "next:1", "next:2", "next:3", "next:4", "complete"})
}

func TestFromSliceCancelStopsEmission(t *testing.T) {
	c := newCollector(0)
	stream.FromSlice([]int{1, 2, 3}).Subscribe(c)

	c.sub.Request(1)
	c.sub.Cancel()
	c.sub.Request(10)

	assertSignals(t, c.recorded(), []string{"subscribe", "next:1"})
}

func TestFromSliceIgnoresNonPositiveDemand(t *testing.T) {
	c := newCollector(0)
	stream.FromSlice([]int{1}).Subscribe(c)

	c.sub.Request(0)
	c.sub.Request(-3)
	assertSignals(t, c.recorded(), []string{"subscribe"})
}

func TestFromChanEmitsAndCompletes(t *testing.T) {
	ch := make(chan int, 3)
	ch <- 7
	ch <- 8
	close(ch)

	c := newCollector(1)
	stream.FromChan(ch).Subscribe(c)
	c.wait(t)
	assertSignals(t, c.recorded(), []string{"subscribe", "next:7", "next:8", "complete"})
}

func TestFromChanWaitsForDemand(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 42

	c := newCollector(0)
	stream.FromChan(ch).Subscribe(c)

	// Element is available but demand has not been signalled.
	time.Sleep(20 * time.Millisecond)
	assertSignals(t, c.recorded(), []string{"subscribe"})

	c.sub.Request(2)
	close(ch)
	c.wait(t)
	assertSignals(t, c.recorded(), []string{"subscribe", "next:42", "complete"})
}

func TestFromChanCancelStopsDraining(t *testing.T) {
	ch := make(chan int)
	c := newCollector(0)
	stream.FromChan(ch).Subscribe(c)

	c.sub.Cancel()
	c.sub.Cancel() // idempotent
	c.sub.Request(5)

	// The drainer must have exited; sending would block forever, so just
	// verify no signals beyond subscribe arrived.
	time.Sleep(20 * time.Millisecond)
	assertSignals(t, c.recorded(), []string{"subscribe"})
}
