package policy

import "sync/atomic"

// Holder publishes the current Resolver to concurrent readers and lets a
// watcher swap in a reloaded one.
type Holder struct {
	p atomic.Pointer[Resolver]
}

// NewHolder creates a Holder seeded with r, which may be nil.
func NewHolder(r *Resolver) *Holder {
	h := &Holder{}
	h.p.Store(r)
	return h
}

// Load returns the current Resolver. A nil Holder yields nil, which resolves
// nothing.
func (h *Holder) Load() *Resolver {
	if h == nil {
		return nil
	}
	return h.p.Load()
}

// Store replaces the current Resolver.
func (h *Holder) Store(r *Resolver) { h.p.Store(r) }

// Resolve resolves target against the current Resolver.
func (h *Holder) Resolve(target string) (string, *Policy, bool) {
	return h.Load().Resolve(target)
}
