package mem

// Physical memory allocator, for user processes, kernel stacks,
// page-table pages, and pipe buffers. Allocates whole 4096-byte frames.
//
// Each CPU owns a freelist so that the common case takes only the
// caller's own lock; an empty CPU steals one frame at a time from the
// others. Hosted on the Go runtime, "physical memory" is a page-aligned
// arena standing in for [end, PHYSTOP).

import "fmt"
import "unsafe"

import "github.com/dyccyber/xv6/cpu"
import "github.com/dyccyber/xv6/defs"
import "github.com/dyccyber/xv6/lock"
import "github.com/dyccyber/xv6/stats"

const kalloc_debug = false

// junk fill patterns, to catch dangling references
const freejunk = 1
const allocjunk = 5

// a free frame viewed as a freelist node; the link lives in the frame
// itself
type run_t struct {
	next *run_t
}

type kmem_t struct {
	lock     lock.Spinlock_t
	freelist *run_t
}

type kstats_t struct {
	Nalloc stats.Counter_t
	Nfree  stats.Counter_t
	Nsteal stats.Counter_t
}

type Kmem_t struct {
	kmems   [defs.NCPU]kmem_t
	arena   []uint8
	end     uintptr // first frame address
	phystop uintptr // one past the last frame
	stats   kstats_t
}

// MkKmem builds an allocator over npages fresh frames, all seeded onto
// the caller's freelist. Called once, by the boot CPU.
func MkKmem(npages int) *Kmem_t {
	km := &Kmem_t{}
	for i := range km.kmems {
		km.kmems[i].lock.Init("kmem")
	}
	km.arena = make([]uint8, (npages+1)*int(defs.PGSIZE))
	base := uintptr(unsafe.Pointer(&km.arena[0]))
	km.end = defs.Pgroundup(base)
	km.phystop = km.end + uintptr(npages)*defs.PGSIZE
	km.freerange(km.end, km.phystop)
	return km
}

func (km *Kmem_t) freerange(pastart, paend uintptr) {
	for p := defs.Pgroundup(pastart); p+defs.PGSIZE <= paend; p += defs.PGSIZE {
		km.Kfree(p)
	}
}

// Kfree frees the frame at pa, which normally should have been returned
// by a call to Kalloc. (The exception is when MkKmem seeds the
// freelists.)
func (km *Kmem_t) Kfree(pa uintptr) {
	if pa%defs.PGSIZE != 0 || pa < km.end || pa >= km.phystop {
		panic("kfree")
	}

	memset(pa, freejunk)
	r := (*run_t)(unsafe.Pointer(pa))

	cpu.PushOff()
	id := cpu.Mycpu()
	cpu.PopOff()

	mine := &km.kmems[id]
	mine.lock.Acquire()
	r.next = mine.freelist
	mine.freelist = r
	mine.lock.Release()
	km.stats.Nfree.Inc()
}

// Kalloc allocates one 4096-byte frame of physical memory. Returns 0
// if no frame is free on any CPU.
func (km *Kmem_t) Kalloc() uintptr {
	cpu.PushOff()
	id := cpu.Mycpu()
	cpu.PopOff()

	mine := &km.kmems[id]
	mine.lock.Acquire()
	r := mine.freelist
	if r != nil {
		mine.freelist = r.next
		mine.lock.Release()
		return km.scrub(r)
	}
	mine.lock.Release()

	// own list empty: steal a single frame from another CPU, holding
	// one remote lock at a time
	for i := range km.kmems {
		if i == id {
			continue
		}
		other := &km.kmems[i]
		other.lock.Acquire()
		r = other.freelist
		if r != nil {
			other.freelist = r.next
			other.lock.Release()
			if kalloc_debug {
				fmt.Printf("kalloc: cpu %v stole a frame from cpu %v\n", id, i)
			}
			km.stats.Nsteal.Inc()
			return km.scrub(r)
		}
		other.lock.Release()
	}
	return 0
}

func (km *Kmem_t) scrub(r *run_t) uintptr {
	pa := uintptr(unsafe.Pointer(r))
	memset(pa, allocjunk)
	km.stats.Nalloc.Inc()
	return pa
}

// Dmap returns the frame at pa as a byte slice.
func (km *Kmem_t) Dmap(pa uintptr) []uint8 {
	if pa%defs.PGSIZE != 0 || pa < km.end || pa >= km.phystop {
		panic("dmap")
	}
	return unsafe.Slice((*uint8)(unsafe.Pointer(pa)), int(defs.PGSIZE))
}

func (km *Kmem_t) Stats() string {
	return "kmem" + stats.Stats2String(km.stats)
}

func memset(pa uintptr, c uint8) {
	p := unsafe.Slice((*uint8)(unsafe.Pointer(pa)), int(defs.PGSIZE))
	for i := range p {
		p[i] = c
	}
}

var Kmem *Kmem_t

// Kinit is called once by the boot CPU.
func Kinit(npages int) {
	Kmem = MkKmem(npages)
}
