// Package handle implements the opaque handle table behind the interop
// boundary. Objects crossing the boundary are never exposed as Go pointers;
// callers hold pointer-sized Handle values that the table resolves with a
// generation check, so a stale handle misses instead of touching freed state.
package handle

import "sync"

// Kind identifies the category of object a handle refers to. The kind is
// packed into the handle itself so a handle of the wrong category fails
// resolution without a table lookup.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindPeerConnection
	KindLocalVideoTrack
	KindLocalAudioTrack
	KindDataChannel
	KindExternalVideoSource
	KindStatsReport
	KindEnumerator
)

func (k Kind) String() string {
	switch k {
	case KindPeerConnection:
		return "peer-connection"
	case KindLocalVideoTrack:
		return "local-video-track"
	case KindLocalAudioTrack:
		return "local-audio-track"
	case KindDataChannel:
		return "data-channel"
	case KindExternalVideoSource:
		return "external-video-source"
	case KindStatsReport:
		return "stats-report"
	case KindEnumerator:
		return "enumerator"
	default:
		return "invalid"
	}
}

// Handle is the opaque value handed to foreign callers. Zero is the null
// handle. Layout: bits 0..31 slot index, 32..39 kind, 40..63 generation.
type Handle uint64

// Nil is the null handle. No live object ever resolves from it.
const Nil Handle = 0

const genMask = 0xFFFFFF

// Kind extracts the object category packed into the handle.
func (h Handle) Kind() Kind { return Kind(h >> 32) }

func (h Handle) index() uint32      { return uint32(h) }
func (h Handle) generation() uint32 { return uint32(h>>40) & genMask }

func pack(index uint32, kind Kind, gen uint32) Handle {
	return Handle(uint64(index) | uint64(kind)<<32 | uint64(gen&genMask)<<40)
}

type slot struct {
	val  any
	refs int32
	gen  uint32
	kind Kind
	live bool
}

// Registry is the process-wide slot table. Every live object carries an
// explicit reference count; the release that drops the count to zero is the
// exclusive destroy transition: it frees the slot, bumps its generation and
// hands the stored value back so cleanup can run outside the table lock.
type Registry struct {
	mu    sync.RWMutex
	slots []slot
	free  []uint32
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Put stores val under a fresh handle of the given kind with one reference.
// kind must not be KindInvalid and val must not be nil.
func (r *Registry) Put(kind Kind, val any) Handle {
	if kind == KindInvalid || val == nil {
		return Nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		idx = uint32(len(r.slots) - 1)
	}
	s := &r.slots[idx]
	s.val = val
	s.refs = 1
	s.kind = kind
	s.live = true
	return pack(idx, kind, s.gen)
}

// Get resolves h to its object. It fails when h is null, of the wrong kind,
// or refers to a slot that has been freed or reused since h was issued.
func (r *Registry) Get(h Handle, kind Kind) (any, bool) {
	if h == Nil || h.Kind() != kind {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.lookup(h)
	if s == nil {
		return nil, false
	}
	return s.val, true
}

// AddRef takes one additional reference on the object behind h.
func (r *Registry) AddRef(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.lookup(h)
	if s == nil {
		return false
	}
	s.refs++
	return true
}

// Refs reports the current reference count, zero if h does not resolve.
func (r *Registry) Refs(h Handle) int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.lookup(h)
	if s == nil {
		return 0
	}
	return s.refs
}

// Release drops one reference. On the final release the slot is freed, its
// generation bumped so outstanding copies of h go stale, and the stored
// value is returned with last=true.
func (r *Registry) Release(h Handle) (val any, last, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.lookup(h)
	if s == nil {
		return nil, false, false
	}
	s.refs--
	if s.refs > 0 {
		return s.val, false, true
	}
	val = s.val
	s.val = nil
	s.live = false
	s.gen = (s.gen + 1) & genMask
	r.free = append(r.free, h.index())
	return val, true, true
}

// Len reports the number of live objects of all kinds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for i := range r.slots {
		if r.slots[i].live {
			n++
		}
	}
	return n
}

// CountKind reports the number of live objects of one kind.
func (r *Registry) CountKind(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for i := range r.slots {
		if r.slots[i].live && r.slots[i].kind == kind {
			n++
		}
	}
	return n
}

// lookup must be called with r.mu held.
func (r *Registry) lookup(h Handle) *slot {
	if h == Nil {
		return nil
	}
	idx := h.index()
	if idx >= uint32(len(r.slots)) {
		return nil
	}
	s := &r.slots[idx]
	if !s.live || s.kind != h.Kind() || s.gen != h.generation() {
		return nil
	}
	return s
}
