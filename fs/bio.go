package fs

// Buffer cache.
//
// The cache holds cached copies of disk block contents in a fixed pool
// of buffers, spread over hash buckets locked independently so that
// CPUs mostly touch disjoint locks. Caching disk blocks in memory
// reduces the number of disk reads and provides a synchronization point
// for blocks used by multiple goroutines.
//
// Interface:
// * To get a buffer for a particular disk block, call Bread.
// * After changing buffer data, call Bwrite to write it to disk.
// * When done with the buffer, call Brelse.
// * Do not use the buffer after calling Brelse.
// * Only one goroutine at a time can use a buffer, so do not keep them
//   longer than necessary.

import "fmt"

import "github.com/dyccyber/xv6/defs"
import "github.com/dyccyber/xv6/lock"
import "github.com/dyccyber/xv6/stats"
import "github.com/dyccyber/xv6/trap"

const bio_debug = false

type bucket_t struct {
	lock lock.Spinlock_t
	head Buf_t // sentinel; head.next is the first buf in the chain
}

type bstats_t struct {
	Nhit     stats.Counter_t
	Nmiss    stats.Counter_t
	Nevict   stats.Counter_t
	Nrecheck stats.Counter_t
}

type Bcache_t struct {
	// evictlock serialises the multi-bucket part of eviction; a buf
	// is spliced into a bucket only with both this and the bucket's
	// lock held
	evictlock lock.Spinlock_t
	bufs      []Buf_t
	buckets   []bucket_t
	disk      Disk_i
	stats     bstats_t
}

// MkBcache builds a cache of nbuf buffers over nbuk buckets, all
// buffers initially chained into bucket 0.
func MkBcache(disk Disk_i, nbuf, nbuk int) *Bcache_t {
	bc := &Bcache_t{}
	bc.disk = disk
	bc.evictlock.Init("bcache")
	bc.bufs = make([]Buf_t, nbuf)
	bc.buckets = make([]bucket_t, nbuk)
	for i := range bc.buckets {
		bc.buckets[i].lock.Init("bcache.bucket")
	}
	now := trap.Ticks()
	prev := &bc.buckets[0].head
	for i := range bc.bufs {
		b := &bc.bufs[i]
		b.lock.Init("buffer")
		b.Data = &defs.Bytebuf_t{}
		b.ts = now
		prev.next = b
		prev = b
	}
	return bc
}

func (bc *Bcache_t) bhash(dev, blkno int) int {
	return (dev * blkno) % len(bc.buckets)
}

// bget looks through the cache for block blkno on device dev. If not
// cached, it recycles the unreferenced buffer with the largest (most
// recent) release time. In either case the returned buffer is
// sleep-locked.
func (bc *Bcache_t) bget(dev, blkno int) *Buf_t {
	bukid := bc.bhash(dev, blkno)
	buk := &bc.buckets[bukid]

	buk.lock.Acquire()
	for b := buk.head.next; b != nil; b = b.next {
		if b.Dev == dev && b.Block == blkno {
			b.refcnt++
			buk.lock.Release()
			bc.stats.Nhit.Inc()
			b.lock.Acquire()
			return b
		}
	}
	buk.lock.Release()
	bc.stats.Nmiss.Inc()

	// Not cached. Scan every bucket for the unreferenced buffer with
	// the largest timestamp, keeping the best bucket's lock held so
	// the candidate cannot be taken behind our back. At most two
	// bucket locks are held at once, in ascending index order.
	var prevlru *Buf_t
	lrubuk := -1
	maxts := uint64(0)
	better := false
	for i := range bc.buckets {
		bc.buckets[i].lock.Acquire()
		for prev := &bc.buckets[i].head; prev.next != nil; prev = prev.next {
			if prev.next.refcnt == 0 && prev.next.ts >= maxts {
				maxts = prev.next.ts
				prevlru = prev
				better = true
			}
		}
		if better {
			if lrubuk != -1 {
				bc.buckets[lrubuk].lock.Release()
			}
			lrubuk = i
		} else {
			bc.buckets[i].lock.Release()
		}
		better = false
	}
	if lrubuk == -1 {
		panic("bget: no buffers")
	}

	lrub := prevlru.next
	prevlru.next = lrub.next
	bc.buckets[lrubuk].lock.Release()

	bc.evictlock.Acquire()
	buk.lock.Acquire()

	// splice the stolen buffer into the target bucket, then re-check
	// the chain: a concurrent caller may have installed this block
	// while no lock was held. On a re-check hit the stolen buffer
	// stays here under its old identity until a future eviction
	// picks it up again.
	lrub.next = buk.head.next
	buk.head.next = lrub

	for b := buk.head.next; b != nil; b = b.next {
		if b.Dev == dev && b.Block == blkno {
			b.refcnt++
			buk.lock.Release()
			bc.evictlock.Release()
			bc.stats.Nrecheck.Inc()
			b.lock.Acquire()
			return b
		}
	}

	lrub.Dev = dev
	lrub.Block = blkno
	lrub.valid = false
	lrub.refcnt = 1
	buk.lock.Release()
	bc.evictlock.Release()
	bc.stats.Nevict.Inc()
	lrub.lock.Acquire()
	return lrub
}

// Bread returns a sleep-locked buf with the contents of the indicated
// block.
func (bc *Bcache_t) Bread(dev, blkno int) *Buf_t {
	b := bc.bget(dev, blkno)
	if !b.valid {
		bc.rw(b, BDEV_READ)
		b.valid = true
	}
	return b
}

// Bwrite writes b's contents to disk. Caller must hold b's sleep-lock.
func (bc *Bcache_t) Bwrite(b *Buf_t) {
	if !b.lock.Holding() {
		panic("bwrite")
	}
	bc.rw(b, BDEV_WRITE)
}

// Brelse releases a sleep-locked buffer and stamps its LRU time if this
// was the last reference.
func (bc *Bcache_t) Brelse(b *Buf_t) {
	if !b.lock.Holding() {
		panic("brelse")
	}
	b.lock.Release()

	buk := &bc.buckets[bc.bhash(b.Dev, b.Block)]
	buk.lock.Acquire()
	b.refcnt--
	if b.refcnt == 0 {
		b.ts = trap.Ticks()
	}
	buk.lock.Release()
}

// Bpin keeps b resident across Brelse without holding its sleep-lock.
func (bc *Bcache_t) Bpin(b *Buf_t) {
	buk := &bc.buckets[bc.bhash(b.Dev, b.Block)]
	buk.lock.Acquire()
	b.refcnt++
	buk.lock.Release()
}

func (bc *Bcache_t) Bunpin(b *Buf_t) {
	buk := &bc.buckets[bc.bhash(b.Dev, b.Block)]
	buk.lock.Acquire()
	b.refcnt--
	buk.lock.Release()
}

func (bc *Bcache_t) rw(b *Buf_t, cmd Bdevcmd_t) {
	if bio_debug {
		fmt.Printf("bio rw: cmd %v (%v,%v)\n", cmd, b.Dev, b.Block)
	}
	req := MkRequest(b, cmd)
	if bc.disk.Start(req) {
		<-req.AckCh
	}
}

func (bc *Bcache_t) Stats() string {
	return "bcache" + stats.Stats2String(bc.stats)
}
