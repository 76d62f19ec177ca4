package buf

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// DefaultPool is the package-wide bytebufferpool.Pool used by NewPooled when
// no pool is supplied, grounded on the pooling idiom shockwave applies
// throughout its hot paths (buffer_pool.go, client/pool.go, websocket/pool.go).
var DefaultPool = new(bytebufferpool.Pool)

// root is the state shared by a Pooled buffer and every Buffer produced by
// slicing it: the pool-owned allocation and its reference count.
type root struct {
	pool  *bytebufferpool.Pool
	owner *bytebufferpool.ByteBuffer
	refs  int32
}

func (r *root) release() {
	if atomic.AddInt32(&r.refs, -1) == 0 && r.owner != nil {
		r.owner.Reset()
		r.pool.Put(r.owner)
	}
}

// Pooled is the default Buffer implementation: a refcounted window over a
// []byte drawn from a bytebufferpool.Pool. A Pooled created by NewPooled is
// the "root" view and is writable; views returned by Slice share the root's
// backing array and refcount, each with its own independent read index, and
// are read-only.
type Pooled struct {
	rt     *root
	data   []byte // window this view covers
	ridx   int
	isRoot bool
}

// NewPooled allocates a fresh writable Buffer from pool (or DefaultPool if
// nil), with an initial reference count of 1.
func NewPooled(pool *bytebufferpool.Pool) *Pooled {
	if pool == nil {
		pool = DefaultPool
	}
	owner := pool.Get()
	return &Pooled{
		rt:     &root{pool: pool, owner: owner, refs: 1},
		data:   owner.B,
		isRoot: true,
	}
}

// FromBytes wraps an existing slice as a root, writable Buffer without pool
// backing; Release is then a no-op once the refcount reaches zero. Useful
// for tests and for wrapping caller-owned network read buffers.
func FromBytes(b []byte) *Pooled {
	return &Pooled{
		rt:     &root{pool: nil, owner: nil, refs: 1},
		data:   b,
		isRoot: true,
	}
}

func (p *Pooled) ReadableBytes() int { return len(p.data) - p.ridx }

func (p *Pooled) Bytes() []byte { return p.data[p.ridx:] }

func (p *Pooled) ReadByte() (byte, error) {
	if p.ReadableBytes() < 1 {
		return 0, ErrShortBuffer
	}
	b := p.data[p.ridx]
	p.ridx++
	return b, nil
}

func (p *Pooled) ReadUint16() (uint16, error) {
	if p.ReadableBytes() < 2 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint16(p.data[p.ridx : p.ridx+2])
	p.ridx += 2
	return v, nil
}

func (p *Pooled) ReadUint32() (uint32, error) {
	if p.ReadableBytes() < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint32(p.data[p.ridx : p.ridx+4])
	p.ridx += 4
	return v, nil
}

func (p *Pooled) ReadUint64() (uint64, error) {
	if p.ReadableBytes() < 8 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint64(p.data[p.ridx : p.ridx+8])
	p.ridx += 8
	return v, nil
}

func (p *Pooled) Discard(n int) error {
	if n < 0 || p.ReadableBytes() < n {
		return ErrShortBuffer
	}
	p.ridx += n
	return nil
}

// Slice carves out the next n readable bytes as an independent Buffer
// sharing this buffer's backing array and refcount — no copy is made.
func (p *Pooled) Slice(n int) (Buffer, error) {
	if n < 0 || p.ReadableBytes() < n {
		return nil, ErrShortBuffer
	}
	start := p.ridx
	p.ridx += n
	atomic.AddInt32(&p.rt.refs, 1)
	return &Pooled{
		rt:     p.rt,
		data:   p.data[start : start+n : start+n],
		isRoot: false,
	}, nil
}

func (p *Pooled) ForEachByte(fn func(b byte) bool) int {
	n := 0
	for i := p.ridx; i < len(p.data); i++ {
		n++
		if !fn(p.data[i]) {
			break
		}
	}
	return n
}

func (p *Pooled) WriteByte(b byte) error {
	if !p.isRoot {
		return ErrShortBuffer
	}
	p.data = append(p.data, b)
	if p.rt.owner != nil {
		p.rt.owner.B = p.data
	}
	return nil
}

func (p *Pooled) Write(b []byte) (int, error) {
	if !p.isRoot {
		return 0, ErrShortBuffer
	}
	p.data = append(p.data, b...)
	if p.rt.owner != nil {
		p.rt.owner.B = p.data
	}
	return len(b), nil
}

// Grow ensures at least n more bytes of writable tail capacity without
// changing ReadableBytes, implementing the optional Grower interface.
// No-op on a non-root view, which has no writable tail.
func (p *Pooled) Grow(n int) {
	if !p.isRoot || n <= 0 {
		return
	}
	if cap(p.data)-len(p.data) >= n {
		return
	}
	grown := make([]byte, len(p.data), len(p.data)+n)
	copy(grown, p.data)
	p.data = grown
	if p.rt.owner != nil {
		p.rt.owner.B = p.data
	}
}

func (p *Pooled) Retain() Buffer {
	atomic.AddInt32(&p.rt.refs, 1)
	return p
}

func (p *Pooled) Release() {
	p.rt.release()
}

func (p *Pooled) RefCount() int32 {
	return atomic.LoadInt32(&p.rt.refs)
}
