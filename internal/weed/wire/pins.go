package wire

import "sync"

// Pins maps opaque function and pointer values to tokens so they can
// cross the codec and be resolved again on the same host. Token 0 means
// nil.
type Pins struct {
	mu      sync.Mutex
	next    uint64
	byToken map[uint64]any
}

func NewPins() *Pins {
	return &Pins{byToken: make(map[uint64]any)}
}

// Pin registers v and returns its token. Function values are not
// comparable, so every call issues a new token.
func (p *Pins) Pin(v any) uint64 {
	if v == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	p.byToken[p.next] = v
	return p.next
}

func (p *Pins) Lookup(tok uint64) (any, bool) {
	if tok == 0 {
		return nil, true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.byToken[tok]
	return v, ok
}

// Len reports how many values are pinned.
func (p *Pins) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byToken)
}
