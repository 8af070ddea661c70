package trap

// The tick counter normally advanced by the timer interrupt. Readable
// from anywhere without locking.

import "sync/atomic"
import "time"

var ticks uint64

func Ticks() uint64 {
	return atomic.LoadUint64(&ticks)
}

// Tick is the timer interrupt: advance the tick counter by one. Tests
// call it directly to control LRU time.
func Tick() {
	atomic.AddUint64(&ticks, 1)
}

// Tickerstart drives Tick from a wall-clock timer until the returned
// stop function is called.
func Tickerstart(d time.Duration) func() {
	done := make(chan bool)
	go func() {
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				Tick()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
