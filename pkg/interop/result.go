package interop

import (
	"errors"

	"github.com/thesyncim/rtcbridge/internal/capture"
	"github.com/thesyncim/rtcbridge/internal/dispatch"
	"github.com/thesyncim/rtcbridge/internal/engine"
	"github.com/thesyncim/rtcbridge/internal/session"
)

// Result is the status code every boundary operation returns.
type Result int32

const (
	ResultSuccess Result = 0

	// Generic failures.
	ResultUnknownError        Result = 1
	ResultInvalidParameter    Result = 2
	ResultInvalidOperation    Result = 3
	ResultWrongThread         Result = 4
	ResultNotFound            Result = 5
	ResultInvalidNativeHandle Result = 6
	ResultBufferTooSmall      Result = 7

	// Peer-connection failures.
	ResultPeerConnectionClosed Result = 0x101

	// Data-channel failures.
	ResultSCTPNotEstablished Result = 0x301
	ResultDataChannelNotOpen Result = 0x302
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultUnknownError:
		return "unknown error"
	case ResultInvalidParameter:
		return "invalid parameter"
	case ResultInvalidOperation:
		return "invalid operation"
	case ResultWrongThread:
		return "wrong thread"
	case ResultNotFound:
		return "not found"
	case ResultInvalidNativeHandle:
		return "invalid native handle"
	case ResultBufferTooSmall:
		return "buffer too small"
	case ResultPeerConnectionClosed:
		return "peer connection closed"
	case ResultSCTPNotEstablished:
		return "sctp not established"
	case ResultDataChannelNotOpen:
		return "data channel not open"
	default:
		return "unknown result"
	}
}

// resultFromError maps the error vocabulary of the layers below onto the
// boundary codes. A wedged or torn-down dispatch queue reads as an
// invalid operation, matching the other "wrong lifecycle moment" cases.
func resultFromError(err error) Result {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, engine.ErrInvalidParam):
		return ResultInvalidParameter
	case errors.Is(err, engine.ErrInvalidHandle):
		return ResultInvalidNativeHandle
	case errors.Is(err, engine.ErrInvalidOperation),
		errors.Is(err, dispatch.ErrInvokeTimeout),
		errors.Is(err, dispatch.ErrClosed),
		errors.Is(err, session.ErrRuntimeClosed),
		errors.Is(err, capture.ErrClosed):
		return ResultInvalidOperation
	case errors.Is(err, engine.ErrNotFound),
		errors.Is(err, capture.ErrNotFound),
		errors.Is(err, capture.ErrShimNotLoaded):
		return ResultNotFound
	case errors.Is(err, engine.ErrWrongThread):
		return ResultWrongThread
	case errors.Is(err, engine.ErrBufferTooSmall):
		return ResultBufferTooSmall
	case errors.Is(err, engine.ErrPeerClosed):
		return ResultPeerConnectionClosed
	case errors.Is(err, engine.ErrSCTPNotEstablished):
		return ResultSCTPNotEstablished
	case errors.Is(err, engine.ErrDataChannelNotOpen):
		return ResultDataChannelNotOpen
	default:
		return ResultUnknownError
	}
}
