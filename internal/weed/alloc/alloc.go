// Package alloc provides the memory primitives a host hands to plugins
// during bootstrap. Leaf storage is charged against an Allocator so a
// host can bound what a plugin keeps alive.
package alloc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrExhausted    = errors.New("alloc: budget exhausted")
	ErrForeignBlock = errors.New("alloc: block not issued by this allocator")
	ErrDoubleFree   = errors.New("alloc: block already released")
	ErrInvalidSize  = errors.New("alloc: invalid size")
)

// Block is a region handed out by an Allocator. The zero Block is the
// null region; freeing it is a no-op.
type Block struct {
	Bytes []byte
	owner uint64
	id    uint64
}

func (b Block) Len() int     { return len(b.Bytes) }
func (b Block) IsZero() bool { return b.owner == 0 }

// Allocator is the negotiated memory table. Implementations must refuse
// blocks they did not issue.
type Allocator interface {
	ID() uint64
	Malloc(size int) (Block, error)
	Calloc(n, size int) (Block, error)
	Realloc(b Block, size int) (Block, error)
	Free(b Block) error
	InUse() int
}

var nextPoolID atomic.Uint64

// Pool is a byte-budgeted Allocator. A limit of zero or less means the
// pool never reports exhaustion.
type Pool struct {
	mu     sync.Mutex
	id     uint64
	limit  int
	inUse  int
	peak   int
	nextID uint64
	live   map[uint64]int
}

func NewPool(limit int) *Pool {
	return &Pool{
		id:    nextPoolID.Add(1),
		limit: limit,
		live:  make(map[uint64]int),
	}
}

func (p *Pool) ID() uint64 { return p.id }

func (p *Pool) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}

// SetLimit changes the budget. Blocks already issued are not affected,
// so InUse may exceed a lowered limit until they are freed.
func (p *Pool) SetLimit(limit int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limit = limit
}

func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Peak reports the high-water mark of bytes in use.
func (p *Pool) Peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

// Live reports how many blocks are outstanding.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

func (p *Pool) Malloc(size int) (Block, error) {
	if size < 0 {
		return Block{}, fmt.Errorf("malloc %d: %w", size, ErrInvalidSize)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reserveLocked(size); err != nil {
		return Block{}, err
	}
	return p.issueLocked(make([]byte, size)), nil
}

// Calloc behaves like Malloc(n*size); Go memory is already zeroed.
func (p *Pool) Calloc(n, size int) (Block, error) {
	if n < 0 || size < 0 || (size != 0 && n > int(^uint(0)>>1)/size) {
		return Block{}, fmt.Errorf("calloc %dx%d: %w", n, size, ErrInvalidSize)
	}
	return p.Malloc(n * size)
}

// Realloc resizes b, preserving its prefix. A zero b behaves as Malloc.
// On failure b is left valid and unchanged.
func (p *Pool) Realloc(b Block, size int) (Block, error) {
	if b.IsZero() {
		return p.Malloc(size)
	}
	if size < 0 {
		return Block{}, fmt.Errorf("realloc %d: %w", size, ErrInvalidSize)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	old, err := p.lookupLocked(b)
	if err != nil {
		return Block{}, err
	}
	if grow := size - old; grow > 0 {
		if err := p.reserveLocked(grow); err != nil {
			return Block{}, err
		}
	} else {
		p.inUse += grow
	}
	buf := make([]byte, size)
	copy(buf, b.Bytes)
	delete(p.live, b.id)
	return p.issueLocked(buf), nil
}

func (p *Pool) Free(b Block) error {
	if b.IsZero() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	size, err := p.lookupLocked(b)
	if err != nil {
		return err
	}
	delete(p.live, b.id)
	p.inUse -= size
	return nil
}

func (p *Pool) reserveLocked(size int) error {
	if p.limit > 0 && p.inUse+size > p.limit {
		return fmt.Errorf("reserve %d bytes (%d/%d in use): %w", size, p.inUse, p.limit, ErrExhausted)
	}
	p.inUse += size
	if p.inUse > p.peak {
		p.peak = p.inUse
	}
	return nil
}

func (p *Pool) issueLocked(buf []byte) Block {
	p.nextID++
	p.live[p.nextID] = len(buf)
	return Block{Bytes: buf, owner: p.id, id: p.nextID}
}

func (p *Pool) lookupLocked(b Block) (int, error) {
	if b.owner != p.id {
		return 0, ErrForeignBlock
	}
	size, ok := p.live[b.id]
	if !ok {
		return 0, ErrDoubleFree
	}
	return size, nil
}

// Memset fills the first n bytes of b with c and returns b.
func Memset(b Block, c byte, n int) Block {
	n = min(n, len(b.Bytes))
	for i := range b.Bytes[:n] {
		b.Bytes[i] = c
	}
	return b
}

// Memcpy copies up to n bytes from src into dst and returns the count.
func Memcpy(dst, src Block, n int) int {
	n = min(n, len(dst.Bytes), len(src.Bytes))
	return copy(dst.Bytes[:n], src.Bytes[:n])
}

// Memmove is Memcpy for regions that may overlap.
func Memmove(dst, src Block, n int) int {
	return Memcpy(dst, src, n)
}
