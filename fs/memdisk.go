package fs

// A RAM-backed Disk_i for the demo kernel and tests. Blocks never
// written read back as zeroes. Requests complete before Start returns,
// so Start never asks the caller to wait.

import "fmt"
import "sync"

import "github.com/dyccyber/xv6/defs"

type blockkey_t struct {
	dev   int
	block int
}

type Memdisk_t struct {
	sync.Mutex
	blocks map[blockkey_t]*defs.Bytebuf_t
	nread  int64
	nwrite int64
}

func MkMemdisk() *Memdisk_t {
	md := &Memdisk_t{}
	md.blocks = make(map[blockkey_t]*defs.Bytebuf_t)
	return md
}

func (md *Memdisk_t) Start(req *Bdev_req_t) bool {
	b := req.Buf
	k := blockkey_t{b.Dev, b.Block}
	md.Lock()
	switch req.Cmd {
	case BDEV_READ:
		if data, ok := md.blocks[k]; ok {
			*b.Data = *data
		} else {
			*b.Data = defs.Bytebuf_t{}
		}
		md.nread++
	case BDEV_WRITE:
		data := &defs.Bytebuf_t{}
		*data = *b.Data
		md.blocks[k] = data
		md.nwrite++
	default:
		md.Unlock()
		panic("memdisk: bad cmd")
	}
	md.Unlock()
	return false
}

func (md *Memdisk_t) Reads() int64 {
	md.Lock()
	n := md.nread
	md.Unlock()
	return n
}

func (md *Memdisk_t) Writes() int64 {
	md.Lock()
	n := md.nwrite
	md.Unlock()
	return n
}

func (md *Memdisk_t) Stats() string {
	return fmt.Sprintf("memdisk\n\t#Nread: %d\n\t#Nwrite: %d\n", md.Reads(), md.Writes())
}
