package node

import (
	"sync/atomic"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer paces the broadcaster. Each tick must be followed by a reset
// for the timer to fire again.
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{}      //sends a signal to listening process
	resetCh      chan time.Duration //receives instruction to reset the heartbeatTimer
	stopCh       chan struct{}      //receives instruction to stop the heartbeatTimer
	shutdownCh   chan struct{}      //receives instruction to exit Run loop
	set          int32
}

// NewControlTimer returns a timer that counts as set until Run arms it with
// its initial duration.
func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}),
		resetCh:      make(chan time.Duration),
		stopCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
		set:          1,
	}
}

// NewDefaultControlTimer uses time.After.
func NewDefaultControlTimer() *ControlTimer {
	return NewControlTimer(func(d time.Duration) <-chan time.Time {
		if d == 0 {
			return nil
		}
		return time.After(d)
	})
}

// Run ...
func (c *ControlTimer) Run(init time.Duration) {

	setTimer := func(t time.Duration) <-chan time.Time {
		atomic.StoreInt32(&c.set, 1)
		return c.timerFactory(t)
	}

	timer := setTimer(init)
	for {
		select {
		case <-timer:
			// Unset before ticking, so the listener can reset it.
			timer = nil
			atomic.StoreInt32(&c.set, 0)
			select {
			case c.tickCh <- struct{}{}:
			case <-c.shutdownCh:
				return
			}
		case t := <-c.resetCh:
			timer = setTimer(t)
		case <-c.stopCh:
			timer = nil
			atomic.StoreInt32(&c.set, 0)
		case <-c.shutdownCh:
			atomic.StoreInt32(&c.set, 0)
			return
		}
	}
}

// Set reports whether the timer is armed.
func (c *ControlTimer) Set() bool {
	return atomic.LoadInt32(&c.set) == 1
}

// Shutdown ...
func (c *ControlTimer) Shutdown() {
	close(c.shutdownCh)
}
