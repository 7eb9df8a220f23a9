package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/thesyncim/rtcbridge/internal/engine"
)

// channelCallbacks holds the three per-channel slots. Same contract as the
// session slots: silent replacement, nil disables, tear-free access.
type channelCallbacks struct {
	mu        sync.RWMutex
	message   func(data []byte)
	buffering func(previous, current, limit uint64)
	state     func(state engine.DataChannelState, id int32)
}

// DataChannel wraps one engine channel. The session owns it; the boundary
// hands out a registry handle that this object backs.
type DataChannel struct {
	session *Session
	ch      engine.DataChannel
	cb      channelCallbacks

	// Correlation value the embedding binding associates with this channel.
	interop atomic.Uintptr

	removed atomic.Bool
}

func newDataChannel(s *Session, ch engine.DataChannel) *DataChannel {
	d := &DataChannel{session: s, ch: ch}
	ch.OnEvent(d.handleEvent)
	return d
}

func (d *DataChannel) ID() int32     { return d.ch.ID() }
func (d *DataChannel) Label() string { return d.ch.Label() }

func (d *DataChannel) InteropHandle() uintptr     { return d.interop.Load() }
func (d *DataChannel) SetInteropHandle(h uintptr) { d.interop.Store(h) }

// SetCallbacks replaces all three slots at once, the shape channel
// creation uses. Nil entries disable the matching event.
func (d *DataChannel) SetCallbacks(
	message func(data []byte),
	buffering func(previous, current, limit uint64),
	state func(state engine.DataChannelState, id int32),
) {
	d.cb.mu.Lock()
	d.cb.message = message
	d.cb.buffering = buffering
	d.cb.state = state
	d.cb.mu.Unlock()
}

func (d *DataChannel) handleEvent(ev engine.DataChannelEvent) {
	if d.removed.Load() {
		return
	}
	switch e := ev.(type) {
	case engine.DataChannelMessage:
		d.cb.mu.RLock()
		fn := d.cb.message
		d.cb.mu.RUnlock()
		if fn != nil {
			d.session.fire("data channel message", func() { fn(e.Data) })
		}
	case engine.DataChannelBuffering:
		d.cb.mu.RLock()
		fn := d.cb.buffering
		d.cb.mu.RUnlock()
		if fn != nil {
			d.session.fire("data channel buffering", func() { fn(e.Previous, e.Current, e.Limit) })
		}
	case engine.DataChannelStateChanged:
		d.cb.mu.RLock()
		fn := d.cb.state
		d.cb.mu.RUnlock()
		if fn != nil {
			d.session.fire("data channel state", func() { fn(e.State, e.ID) })
		}
	}
}

func (d *DataChannel) Send(data []byte) error {
	if d.removed.Load() {
		return fmt.Errorf("%w: channel removed", engine.ErrInvalidOperation)
	}
	return d.ch.Send(data)
}

func (d *DataChannel) BufferedAmount() uint64 { return d.ch.BufferedAmount() }

// detach silences the channel and closes the underlying transport.
func (d *DataChannel) detach() {
	if !d.removed.CompareAndSwap(false, true) {
		return
	}
	d.ch.OnEvent(nil)
	if err := d.ch.Close(); err != nil {
		d.session.log.Debugf("data channel %d: close: %v", d.ch.ID(), err)
	}
}

// AddDataChannel creates a channel on the engine and wraps it. Engine
// failures pass through unmapped so the boundary can surface the
// distinguished creation codes.
func (s *Session) AddDataChannel(cfg engine.DataChannelConfig) (*DataChannel, error) {
	if s.closed.Load() {
		return nil, engine.ErrPeerClosed
	}
	ch, err := s.eng.AddDataChannel(cfg)
	if err != nil {
		return nil, err
	}
	dc := newDataChannel(s, ch)
	s.mu.Lock()
	s.channels = append(s.channels, dc)
	s.mu.Unlock()
	return dc, nil
}

// RemoveDataChannel detaches the channel and fires the removed slot.
func (s *Session) RemoveDataChannel(dc *DataChannel) error {
	if s.closed.Load() {
		return engine.ErrPeerClosed
	}

	s.mu.Lock()
	found := false
	for i, cur := range s.channels {
		if cur == dc {
			s.channels = append(s.channels[:i], s.channels[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return fmt.Errorf("%w: channel not attached", engine.ErrNotFound)
	}
	dc.detach()

	s.cb.mu.RLock()
	fn := s.cb.dataChannelRemoved
	s.cb.mu.RUnlock()
	if fn != nil {
		s.fire("data channel removed", func() { fn(dc) })
	}
	return nil
}
