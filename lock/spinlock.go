package lock

// Mutual exclusion spin locks. Hosted on the Go runtime the lock itself
// maps onto a sync.Mutex; Acquire still enters a PushOff section so the
// holder's CPU binding is stable for the duration.

import "sync"

import "github.com/dyccyber/xv6/cpu"

type Spinlock_t struct {
	m    sync.Mutex
	name string
}

func (lk *Spinlock_t) Init(name string) {
	lk.name = name
}

func (lk *Spinlock_t) Acquire() {
	cpu.PushOff()
	lk.m.Lock()
}

func (lk *Spinlock_t) Release() {
	lk.m.Unlock()
	cpu.PopOff()
}
