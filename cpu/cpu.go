package cpu

// Virtual CPUs for a kernel hosted on the Go runtime. A goroutine
// standing in for a kernel thread binds itself to a CPU with SetMycpu;
// unbound goroutines run on CPU 0 (the boot CPU). Mycpu must be read
// between PushOff/PopOff so the binding is stable while it is used.

import "runtime"
import "sync"

import "github.com/dyccyber/xv6/defs"

type cpubind_t struct {
	cpu  int
	noff int32
	set  bool // bound explicitly via SetMycpu
}

var cpus struct {
	sync.Mutex
	bind map[int64]*cpubind_t
}

func init() {
	cpus.bind = make(map[int64]*cpubind_t)
}

// Gid returns the calling goroutine's id, the hosted stand-in for the
// thread pointer register.
func Gid() int64 {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	// the first line is "goroutine N [status]:"
	var id int64
	for _, c := range buf[len("goroutine "):n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}

// SetMycpu binds the calling goroutine to a CPU.
func SetMycpu(id int) {
	if id < 0 || id >= defs.NCPU {
		panic("setmycpu")
	}
	g := Gid()
	cpus.Lock()
	b, ok := cpus.bind[g]
	if !ok {
		b = &cpubind_t{}
		cpus.bind[g] = b
	}
	b.cpu = id
	b.set = true
	cpus.Unlock()
}

// UnsetMycpu drops the calling goroutine's binding.
func UnsetMycpu() {
	g := Gid()
	cpus.Lock()
	if b, ok := cpus.bind[g]; ok {
		b.set = false
		if b.noff == 0 {
			delete(cpus.bind, g)
		}
	}
	cpus.Unlock()
}

func PushOff() {
	g := Gid()
	cpus.Lock()
	b, ok := cpus.bind[g]
	if !ok {
		b = &cpubind_t{}
		cpus.bind[g] = b
	}
	b.noff++
	cpus.Unlock()
}

func PopOff() {
	g := Gid()
	cpus.Lock()
	b, ok := cpus.bind[g]
	if !ok || b.noff < 1 {
		cpus.Unlock()
		panic("popoff")
	}
	b.noff--
	if b.noff == 0 && !b.set {
		delete(cpus.bind, g)
	}
	cpus.Unlock()
}

// Mycpu returns the calling goroutine's CPU.
func Mycpu() int {
	g := Gid()
	cpus.Lock()
	id := 0
	if b, ok := cpus.bind[g]; ok {
		id = b.cpu
	}
	cpus.Unlock()
	return id
}
