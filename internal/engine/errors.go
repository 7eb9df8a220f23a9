package engine

import "errors"

// Sentinel errors shared across the library. Layers wrap these with %w and
// the interop boundary maps them to result codes with errors.Is.
var (
	ErrInvalidParam       = errors.New("invalid parameter")
	ErrInvalidHandle      = errors.New("invalid native handle")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrNotFound           = errors.New("not found")
	ErrWrongThread        = errors.New("wrong thread")
	ErrBufferTooSmall     = errors.New("buffer too small")
	ErrPeerClosed         = errors.New("peer connection closed")
	ErrSCTPNotEstablished = errors.New("sctp transport not established")
	ErrDataChannelNotOpen = errors.New("data channel not open")
	ErrUnknown            = errors.New("unknown engine error")
)
