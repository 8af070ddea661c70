package fs

import "github.com/dyccyber/xv6/defs"
import "github.com/dyccyber/xv6/lock"

// A Buf_t is the in-memory copy of one disk block. The sleep-lock is
// held by the goroutine currently reading or writing Data; refcnt, ts
// and next are protected by the owning bucket's spin lock.
type Buf_t struct {
	lock   lock.Sleeplock_t
	Dev    int
	Block  int
	Data   *defs.Bytebuf_t
	valid  bool
	refcnt int
	ts     uint64 // ticks at the last refcnt 1->0 transition
	next   *Buf_t // bucket chain
}

type Bdevcmd_t uint

const (
	BDEV_WRITE Bdevcmd_t = 1
	BDEV_READ  Bdevcmd_t = 2
)

type Bdev_req_t struct {
	Cmd   Bdevcmd_t
	Buf   *Buf_t
	AckCh chan bool
}

func MkRequest(b *Buf_t, cmd Bdevcmd_t) *Bdev_req_t {
	ret := &Bdev_req_t{}
	ret.Buf = b
	ret.Cmd = cmd
	ret.AckCh = make(chan bool)
	return ret
}

// Disk_i is the block device driver. Start returns true if the request
// was queued and the caller must wait on AckCh.
type Disk_i interface {
	Start(*Bdev_req_t) bool
	Stats() string
}
