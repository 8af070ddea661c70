package lock

// Long-term locks for kernel goroutines. A sleep-lock may be held
// across blocking operations; waiters suspend instead of spinning.

import "sync"

import "github.com/dyccyber/xv6/cpu"

type Sleeplock_t struct {
	m      sync.Mutex // protects locked and owner
	cond   *sync.Cond
	locked bool
	owner  int64
	name   string
}

func (lk *Sleeplock_t) Init(name string) {
	lk.name = name
	lk.cond = sync.NewCond(&lk.m)
}

func (lk *Sleeplock_t) Acquire() {
	lk.m.Lock()
	for lk.locked {
		lk.cond.Wait()
	}
	lk.locked = true
	lk.owner = cpu.Gid()
	lk.m.Unlock()
}

func (lk *Sleeplock_t) Release() {
	lk.m.Lock()
	if !lk.locked || lk.owner != cpu.Gid() {
		lk.m.Unlock()
		panic("sleeplock: release")
	}
	lk.locked = false
	lk.owner = 0
	lk.m.Unlock()
	lk.cond.Signal()
}

// Holding reports whether the calling goroutine holds lk.
func (lk *Sleeplock_t) Holding() bool {
	lk.m.Lock()
	r := lk.locked && lk.owner == cpu.Gid()
	lk.m.Unlock()
	return r
}
