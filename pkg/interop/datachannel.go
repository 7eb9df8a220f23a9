package interop

import (
	"github.com/thesyncim/rtcbridge/internal/engine"
	"github.com/thesyncim/rtcbridge/internal/handle"
	"github.com/thesyncim/rtcbridge/internal/session"
)

func resolveDataChannel(h Handle) (*session.DataChannel, Result) {
	v, ok := registry.Get(h, handle.KindDataChannel)
	if !ok {
		return nil, ResultInvalidNativeHandle
	}
	return v.(*session.DataChannel), ResultSuccess
}

// applyChannelCallbacks installs the three per-channel slots, binding each
// callback to its userData.
func applyChannelCallbacks(dc *session.DataChannel, cbs DataChannelCallbacks) {
	var message func(data []byte)
	var buffering func(previous, current, limit uint64)
	var state func(state engine.DataChannelState, id int32)
	if cb := cbs.Message; cb != nil {
		ud := cbs.MessageUserData
		message = func(data []byte) { cb(ud, data) }
	}
	if cb := cbs.Buffering; cb != nil {
		ud := cbs.BufferingUserData
		buffering = func(previous, current, limit uint64) { cb(ud, previous, current, limit) }
	}
	if cb := cbs.State; cb != nil {
		ud := cbs.StateUserData
		state = func(st engine.DataChannelState, id int32) { cb(ud, DataChannelState(st), id) }
	}
	dc.SetCallbacks(message, buffering, state)
}

// PeerConnectionAddDataChannel creates a data channel with the given
// identity and delivery semantics and attaches the three callback kinds
// carried in cbs before any event can fire. id >= 0 requests an
// out-of-band negotiated channel with that exact id; a negative id lets
// the engine number the channel in-band. Engine creation failures pass
// through with their distinguished codes.
func PeerConnectionAddDataChannel(h Handle, id int32, label string, ordered, reliable bool, cbs DataChannelCallbacks, correlation uintptr, out *Handle) Result {
	if out == nil {
		return ResultInvalidParameter
	}
	*out = Null
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}

	dc, err := pc.sess.AddDataChannel(engine.DataChannelConfig{
		ID:       id,
		Label:    label,
		Ordered:  ordered,
		Reliable: reliable,
	})
	if err != nil {
		return resultFromError(err)
	}
	dc.SetInteropHandle(correlation)
	applyChannelCallbacks(dc, cbs)
	*out = pc.adoptChannel(dc, false)
	return ResultSuccess
}

// PeerConnectionRemoveDataChannel detaches the channel from the session
// and invalidates its handle. Using the handle afterwards reports an
// invalid native handle instead of touching freed state.
func PeerConnectionRemoveDataChannel(h Handle, channel Handle) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	dc, res := resolveDataChannel(channel)
	if res != ResultSuccess {
		return res
	}
	return resultFromError(pc.sess.RemoveDataChannel(dc))
}

// DataChannelSendMessage queues data for transmission. A rejected send
// reads as an unknown error; backpressure is signalled through the
// buffering callback, not the return code.
func DataChannelSendMessage(h Handle, data []byte) Result {
	dc, res := resolveDataChannel(h)
	if res != ResultSuccess {
		return res
	}
	return resultFromError(dc.Send(data))
}

// DataChannelRegisterCallbacks replaces all three per-channel callback
// slots. Nil entries disable the matching event.
func DataChannelRegisterCallbacks(h Handle, cbs DataChannelCallbacks) Result {
	dc, res := resolveDataChannel(h)
	if res != ResultSuccess {
		return res
	}
	applyChannelCallbacks(dc, cbs)
	return ResultSuccess
}

// DataChannelGetID reports the channel id, -1 when the handle does not
// resolve.
func DataChannelGetID(h Handle) int32 {
	dc, res := resolveDataChannel(h)
	if res != ResultSuccess {
		return -1
	}
	return dc.ID()
}

// DataChannelGetLabel reports the channel label, empty when the handle
// does not resolve.
func DataChannelGetLabel(h Handle) string {
	dc, res := resolveDataChannel(h)
	if res != ResultSuccess {
		return ""
	}
	return dc.Label()
}
