package clock_test

import (
	"testing"
	"time"

	"shotsync/internal/clock"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresInDeadlineOrder(t *testing.T) {
	c := clock.NewFake(epoch)
	var order []int
	c.AfterFunc(4*time.Second, func() { order = append(order, 4) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(3 * time.Second)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected fire order after 3s: %v", order)
	}
	if got := c.Now(); !got.Equal(epoch.Add(3 * time.Second)) {
		t.Fatalf("unexpected now: %s", got)
	}

	c.Advance(time.Second)
	if len(order) != 3 || order[2] != 4 {
		t.Fatalf("expected 4s timer to fire, got %v", order)
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", c.Pending())
	}
}

func TestFakeTimerStop(t *testing.T) {
	c := clock.NewFake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("expected Stop to report an active timer")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if timer.Stop() {
		t.Fatal("second Stop should report inactive timer")
	}
}

func TestFakeTickerDropsWhenFull(t *testing.T) {
	c := clock.NewFake(epoch)
	ticker := c.NewTicker(2 * time.Second)
	defer ticker.Stop()

	c.Advance(7 * time.Second)
	select {
	case tick := <-ticker.C():
		if !tick.Equal(epoch.Add(2 * time.Second)) {
			t.Fatalf("expected first tick at 2s, got %s", tick)
		}
	default:
		t.Fatal("expected a tick")
	}
	select {
	case <-ticker.C():
		t.Fatal("expected extra ticks to be dropped")
	default:
	}

	c.Advance(time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("expected tick at 8s")
	}
}

func TestFakeAfterZeroDelivers(t *testing.T) {
	c := clock.NewFake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("expected immediate delivery")
	}
}
