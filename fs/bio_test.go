package fs

import "fmt"
import "math/rand"
import "sync"
import "sync/atomic"
import "testing"
import "time"

import "github.com/dyccyber/xv6/defs"
import "github.com/dyccyber/xv6/trap"

func mkTestCache(nbuf, nbuk int) (*Memdisk_t, *Bcache_t) {
	md := MkMemdisk()
	bc := MkBcache(md, nbuf, nbuk)
	return md, bc
}

// seed the disk image directly, bypassing the cache
func poke(md *Memdisk_t, dev, blkno int, v uint8) {
	data := &defs.Bytebuf_t{}
	for i := range data {
		data[i] = v
	}
	md.Lock()
	md.blocks[blockkey_t{dev, blkno}] = data
	md.Unlock()
}

func expectPanic(t *testing.T, msg string, f func()) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic %q", msg)
		}
		if s, ok := r.(string); !ok || s != msg {
			t.Fatalf("expected panic %q, got %v", msg, r)
		}
	}()
	f()
}

// count the bufs linked across all buckets, each exactly once
func (bc *Bcache_t) countBufs(t *testing.T) int {
	seen := make(map[*Buf_t]bool)
	n := 0
	for i := range bc.buckets {
		bc.buckets[i].lock.Acquire()
		for b := bc.buckets[i].head.next; b != nil; b = b.next {
			if seen[b] {
				t.Fatalf("buf (%v,%v) linked twice", b.Dev, b.Block)
			}
			seen[b] = true
			n++
		}
		bc.buckets[i].lock.Release()
	}
	return n
}

// S1: a re-read of a released block must not touch the disk.
func TestReadHit(t *testing.T) {
	md, bc := mkTestCache(3, 2)
	poke(md, 1, 10, 0xaa)

	b := bc.Bread(1, 10)
	if !b.valid {
		t.Fatalf("buf not valid after read")
	}
	if b.Data[0] != 0xaa {
		t.Fatalf("bad data %#x", b.Data[0])
	}
	bc.Brelse(b)
	if n := md.Reads(); n != 1 {
		t.Fatalf("%v disk reads", n)
	}

	b = bc.Bread(1, 10)
	if !b.valid {
		t.Fatalf("buf not valid on hit")
	}
	if b.Data[0] != 0xaa {
		t.Fatalf("bad data %#x", b.Data[0])
	}
	bc.Brelse(b)
	if n := md.Reads(); n != 1 {
		t.Fatalf("hit went to disk: %v reads", n)
	}
}

// S2: reading more distinct blocks than the cache holds evicts, and the
// evicted block's next read goes back to disk.
func TestReadEvicted(t *testing.T) {
	md, bc := mkTestCache(2, 2)
	for _, blkno := range []int{1, 2, 3} {
		b := bc.Bread(1, blkno)
		bc.Brelse(b)
		trap.Tick()
	}

	n := md.Reads()
	b := bc.Bread(1, 1)
	bc.Brelse(b)
	if md.Reads() != n+1 {
		t.Fatalf("read of evicted block did not reach disk")
	}
}

// S3: when every buf is referenced, a miss panics.
func TestAllPinned(t *testing.T) {
	_, bc := mkTestCache(2, 2)
	b1 := bc.Bread(1, 1)
	b2 := bc.Bread(1, 2)
	expectPanic(t, "bget: no buffers", func() {
		bc.Bread(1, 3)
	})
	bc.Brelse(b1)
	bc.Brelse(b2)
}

// Eviction always recycles the unreferenced buf with the largest
// timestamp; older free bufs are left alone.
func TestEvictOrder(t *testing.T) {
	_, bc := mkTestCache(3, 2)

	b2 := bc.Bread(1, 2)
	trap.Tick()
	bc.Brelse(b2)

	b4 := bc.Bread(1, 4)
	if b4 != b2 {
		t.Fatalf("evicted a buf with a smaller timestamp")
	}
	trap.Tick()
	bc.Brelse(b4)

	b6 := bc.Bread(1, 6)
	if b6 != b4 {
		t.Fatalf("evicted a buf with a smaller timestamp")
	}
	bc.Brelse(b6)
}

// Pinned bufs survive release and eviction pressure.
func TestPin(t *testing.T) {
	md, bc := mkTestCache(2, 2)

	b := bc.Bread(1, 1)
	bc.Bpin(b)
	bc.Brelse(b)
	trap.Tick()

	// churn every other buf through the cache
	for blkno := 2; blkno < 8; blkno++ {
		o := bc.Bread(1, blkno)
		bc.Brelse(o)
		trap.Tick()
	}

	n := md.Reads()
	b = bc.Bread(1, 1)
	if md.Reads() != n {
		t.Fatalf("pinned block was evicted")
	}
	bc.Bunpin(b)
	bc.Brelse(b)
}

func TestWriteReadback(t *testing.T) {
	_, bc := mkTestCache(defs.NBUF, defs.NBUK)
	const nblocks = defs.NBUF * 2
	for i := 0; i < nblocks; i++ {
		b := bc.Bread(1, i)
		for j := range b.Data {
			b.Data[j] = uint8(i)
		}
		bc.Bwrite(b)
		bc.Brelse(b)
		trap.Tick()
	}
	for i := 0; i < nblocks; i++ {
		b := bc.Bread(1, i)
		for j, v := range b.Data {
			if v != uint8(i) {
				t.Fatalf("block %v byte %v: %#x", i, j, v)
			}
		}
		bc.Brelse(b)
		trap.Tick()
	}
}

func TestContractPanics(t *testing.T) {
	_, bc := mkTestCache(2, 2)
	b := bc.Bread(1, 1)
	bc.Brelse(b)
	expectPanic(t, "bwrite", func() {
		bc.Bwrite(b)
	})
	expectPanic(t, "brelse", func() {
		bc.Brelse(b)
	})
}

// Two racing readers of the same missing block must agree on one buf
// identity and issue a single disk read.
func TestRecheck(t *testing.T) {
	for iter := 0; iter < 50; iter++ {
		md, bc := mkTestCache(4, 2)
		poke(md, 1, 9, 0x5a)

		var wg sync.WaitGroup
		bufs := make([]*Buf_t, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				b := bc.Bread(1, 9)
				if b.Data[0] != 0x5a {
					t.Errorf("bad data %#x", b.Data[0])
				}
				bufs[i] = b
				bc.Brelse(b)
			}(i)
		}
		wg.Wait()

		if bufs[0] != bufs[1] {
			t.Fatalf("racing readers got different bufs")
		}
		if n := md.Reads(); n != 1 {
			t.Fatalf("%v disk reads for one block", n)
		}
	}
}

const nproc = 4

// Hammer a small cache from several goroutines and check that block
// contents never bleed into each other and that no buf is lost.
func TestConcur(t *testing.T) {
	const nblocks = 10
	md, bc := mkTestCache(5, 3)
	for i := 0; i < nblocks; i++ {
		poke(md, 1, i, uint8(i+1))
	}

	done := int32(0)
	var wg sync.WaitGroup
	for i := 0; i < nproc; i++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(seed)))
			for atomic.LoadInt32(&done) == 0 {
				blkno := r.Intn(nblocks)
				b := bc.Bread(1, blkno)
				if b.Dev != 1 || b.Block != blkno {
					t.Errorf("got (%v,%v), want (1,%v)", b.Dev, b.Block, blkno)
				}
				for _, v := range b.Data {
					if v != uint8(blkno+1) {
						t.Errorf("block %v: byte %#x", blkno, v)
						break
					}
				}
				bc.Brelse(b)
				trap.Tick()
			}
		}(i)
	}

	for i := 0; i < 1000; i++ {
		trap.Tick()
		time.Sleep(100 * time.Microsecond)
	}
	atomic.StoreInt32(&done, 1)
	wg.Wait()

	if n := bc.countBufs(t); n != 5 {
		t.Fatalf("%v bufs after workload", n)
	}
	fmt.Printf("concur: %v reads %v writes\n", md.Reads(), md.Writes())
}

// Concurrent writers to distinct blocks must not lose updates even when
// the cache is much smaller than the block set.
func TestConcurWrite(t *testing.T) {
	const perproc = 20
	md, bc := mkTestCache(4, 3)

	var wg sync.WaitGroup
	for i := 0; i < nproc; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perproc; j++ {
				blkno := id*perproc + j
				b := bc.Bread(1, blkno)
				for k := range b.Data {
					b.Data[k] = uint8(blkno)
				}
				bc.Bwrite(b)
				bc.Brelse(b)
				trap.Tick()
			}
		}(i)
	}
	wg.Wait()

	for blkno := 0; blkno < nproc*perproc; blkno++ {
		b := bc.Bread(1, blkno)
		if b.Data[0] != uint8(blkno) || b.Data[defs.BSIZE-1] != uint8(blkno) {
			t.Fatalf("block %v lost its write", blkno)
		}
		bc.Brelse(b)
		trap.Tick()
	}
	if md.Writes() != int64(nproc*perproc) {
		t.Fatalf("%v disk writes", md.Writes())
	}
}
