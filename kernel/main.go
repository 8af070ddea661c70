package main

// Boots the kernel core on the host and runs the smoke tests.

import "fmt"
import "sync"
import "time"

import "github.com/dyccyber/xv6/cpu"
import "github.com/dyccyber/xv6/defs"
import "github.com/dyccyber/xv6/fs"
import "github.com/dyccyber/xv6/lock"
import "github.com/dyccyber/xv6/mem"
import "github.com/dyccyber/xv6/trap"

const kmempages = 1024

func main() {
	stop := trap.Tickerstart(time.Millisecond)
	defer stop()

	fmt.Printf("kinit... ")
	mem.Kinit(kmempages)
	fmt.Printf("OK\n")

	fmt.Printf("binit... ")
	disk := fs.MkMemdisk()
	bc := fs.MkBcache(disk, defs.NBUF, defs.NBUK)
	fmt.Printf("OK\n")

	kallocTest()
	bcacheTest(bc)
	spinlockTest()

	fmt.Printf("%s", mem.Kmem.Stats())
	fmt.Printf("%s", bc.Stats())
	fmt.Printf("%s", disk.Stats())
}

func kallocTest() {
	fmt.Printf("--- kalloc test ---\n")

	pages := make([]uintptr, 0, kmempages)
	for {
		pa := mem.Kmem.Kalloc()
		if pa == 0 {
			break
		}
		pages = append(pages, pa)
	}
	fmt.Printf("allocated %d KB memory\n", len(pages)*4)

	// hand half the pages to CPU 1, exhaust CPU 0, then force a steal
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cpu.SetMycpu(1)
		defer cpu.UnsetMycpu()
		for _, pa := range pages[:len(pages)/2] {
			mem.Kmem.Kfree(pa)
		}
	}()
	wg.Wait()
	stolen := mem.Kmem.Kalloc()
	if stolen == 0 {
		panic("kalloc test: steal failed")
	}
	mem.Kmem.Kfree(stolen)
	for _, pa := range pages[len(pages)/2:] {
		mem.Kmem.Kfree(pa)
	}
	fmt.Printf("kalloc test OK\n")
}

func bcacheTest(bc *fs.Bcache_t) {
	fmt.Printf("--- bcache test ---\n")

	// write a pattern to more distinct blocks than the cache holds,
	// then read everything back through eviction pressure
	const nblocks = defs.NBUF * 2
	for i := 0; i < nblocks; i++ {
		b := bc.Bread(1, i)
		for j := range b.Data {
			b.Data[j] = uint8(i)
		}
		bc.Bwrite(b)
		bc.Brelse(b)
	}
	for i := 0; i < nblocks; i++ {
		b := bc.Bread(1, i)
		for _, v := range b.Data {
			if v != uint8(i) {
				panic("bcache test: bad data")
			}
		}
		bc.Brelse(b)
	}
	fmt.Printf("bcache test OK\n")
}

func spinlockTest() {
	fmt.Printf("--- spinlock test ---\n")

	const nproc = 4
	const iters = 10000
	var lk lock.Spinlock_t
	lk.Init("counter")
	count := 0

	var wg sync.WaitGroup
	for i := 0; i < nproc; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			cpu.SetMycpu(id % defs.NCPU)
			defer cpu.UnsetMycpu()
			for j := 0; j < iters; j++ {
				lk.Acquire()
				count++
				lk.Release()
			}
		}(i)
	}
	wg.Wait()
	if count != nproc*iters {
		panic("spinlock test: lost updates")
	}
	fmt.Printf("count %d OK\n", count)
}
