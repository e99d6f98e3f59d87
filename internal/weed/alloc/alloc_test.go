package alloc

import (
	"errors"
	"testing"

	"github.com/danmuck/weedcore/internal/testutil/testlog"
)

func TestPoolBudget(t *testing.T) {
	testlog.Start(t)

	p := NewPool(16)
	a, err := p.Malloc(10)
	if err != nil {
		t.Fatalf("malloc: %v", err)
	}
	if _, err := p.Malloc(7); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if p.InUse() != 10 {
		t.Fatalf("expected 10 bytes in use, got %d", p.InUse())
	}
	if err := p.Free(a); err != nil {
		t.Fatalf("free: %v", err)
	}
	if err := p.Free(a); !errors.Is(err, ErrDoubleFree) {
		t.Fatalf("expected ErrDoubleFree, got %v", err)
	}
	if p.InUse() != 0 || p.Live() != 0 {
		t.Fatalf("pool not drained: inUse=%d live=%d", p.InUse(), p.Live())
	}
	if p.Peak() != 10 {
		t.Fatalf("expected peak 10, got %d", p.Peak())
	}
}

func TestPoolRejectsForeignBlock(t *testing.T) {
	testlog.Start(t)

	a, b := NewPool(0), NewPool(0)
	if a.ID() == b.ID() {
		t.Fatalf("pools share identity %d", a.ID())
	}
	blk, err := a.Malloc(4)
	if err != nil {
		t.Fatalf("malloc: %v", err)
	}
	if err := b.Free(blk); !errors.Is(err, ErrForeignBlock) {
		t.Fatalf("expected ErrForeignBlock, got %v", err)
	}
	if err := b.Free(Block{}); err != nil {
		t.Fatalf("freeing the null block should be a no-op: %v", err)
	}
}

func TestReallocPreservesPrefix(t *testing.T) {
	testlog.Start(t)

	p := NewPool(32)
	blk, _ := p.Malloc(4)
	copy(blk.Bytes, "weed")

	grown, err := p.Realloc(blk, 8)
	if err != nil {
		t.Fatalf("realloc: %v", err)
	}
	if string(grown.Bytes[:4]) != "weed" || grown.Len() != 8 {
		t.Fatalf("unexpected realloc result %q", grown.Bytes)
	}
	if p.InUse() != 8 {
		t.Fatalf("expected 8 bytes in use, got %d", p.InUse())
	}
	if err := p.Free(blk); !errors.Is(err, ErrDoubleFree) {
		t.Fatalf("old block should be retired, got %v", err)
	}
	if _, err := p.Realloc(grown, 64); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if p.InUse() != 8 {
		t.Fatalf("failed realloc changed accounting: %d", p.InUse())
	}
}

func TestCallocAndMemOps(t *testing.T) {
	testlog.Start(t)

	p := NewPool(0)
	if _, err := p.Calloc(-1, 4); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
	dst, _ := p.Calloc(2, 4)
	src, _ := p.Malloc(8)
	Memset(src, 0xab, 6)
	if n := Memcpy(dst, src, 16); n != 8 {
		t.Fatalf("memcpy copied %d bytes", n)
	}
	if dst.Bytes[5] != 0xab || dst.Bytes[6] != 0 {
		t.Fatalf("unexpected bytes %x", dst.Bytes)
	}

	copy(dst.Bytes, "abcdefgh")
	shifted := Block{Bytes: dst.Bytes[2:]}
	Memmove(shifted, dst, 4)
	if string(dst.Bytes) != "ababcdgh" {
		t.Fatalf("memmove overlap gave %q", dst.Bytes)
	}
}
