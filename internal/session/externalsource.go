package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/thesyncim/rtcbridge/internal/engine"
	"github.com/thesyncim/rtcbridge/pkg/frame"
)

// SourceFormat is the pixel format an external source's completion calls
// must use.
type SourceFormat int32

const (
	SourceI420A SourceFormat = iota
	SourceARGB
)

func (f SourceFormat) String() string {
	switch f {
	case SourceI420A:
		return "i420a"
	case SourceARGB:
		return "argb32"
	default:
		return fmt.Sprintf("format(%d)", int32(f))
	}
}

const defaultSourceFPS = 30

// Pending requests older than this are dropped; completing one afterwards
// reports not-found.
const requestRetention = 2 * time.Second

// ExternalVideoSource produces frames by asking the caller for them: a
// pump goroutine issues numbered frame requests at the configured rate and
// the caller answers each with a completion call carrying the frame. One
// source can feed any number of tracks, across sessions.
type ExternalVideoSource struct {
	log      logging.LeveledLogger
	format   SourceFormat
	request  func(requestID uint32, whenMs int64)
	interval time.Duration

	mu      sync.Mutex
	pending map[uint32]int64
	tracks  []*VideoTrack
	nextID  uint32
	stopped bool

	stop     chan struct{}
	stopOnce sync.Once
}

// NewExternalVideoSource starts the request pump. fps <= 0 selects the
// default rate. The request callback runs on the pump goroutine.
func NewExternalVideoSource(lf logging.LoggerFactory, format SourceFormat, fps float64, request func(requestID uint32, whenMs int64)) *ExternalVideoSource {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	if fps <= 0 {
		fps = defaultSourceFPS
	}
	src := &ExternalVideoSource{
		log:      lf.NewLogger("extsource"),
		format:   format,
		request:  request,
		interval: time.Duration(float64(time.Second) / fps),
		pending:  make(map[uint32]int64),
		nextID:   1,
		stop:     make(chan struct{}),
	}
	go src.run()
	return src
}

func (src *ExternalVideoSource) Format() SourceFormat { return src.format }

func (src *ExternalVideoSource) run() {
	ticker := time.NewTicker(src.interval)
	defer ticker.Stop()
	for {
		select {
		case <-src.stop:
			return
		case <-ticker.C:
			src.issue()
		}
	}
}

func (src *ExternalVideoSource) issue() {
	now := time.Now()
	nowMs := now.UnixMilli()

	src.mu.Lock()
	if src.stopped {
		src.mu.Unlock()
		return
	}
	id := src.nextID
	src.nextID++
	src.pending[id] = nowMs
	cutoff := now.Add(-requestRetention).UnixMilli()
	for reqID, issued := range src.pending {
		if issued < cutoff {
			delete(src.pending, reqID)
		}
	}
	src.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			src.log.Errorf("frame request callback panicked: %v", r)
		}
	}()
	src.request(id, nowMs+src.interval.Milliseconds())
}

// take claims a pending request. A request that was never issued, already
// completed, or aged out is stale.
func (src *ExternalVideoSource) take(requestID uint32) ([]*VideoTrack, error) {
	src.mu.Lock()
	defer src.mu.Unlock()
	if _, ok := src.pending[requestID]; !ok {
		return nil, fmt.Errorf("%w: stale frame request %d", engine.ErrNotFound, requestID)
	}
	delete(src.pending, requestID)
	return append([]*VideoTrack(nil), src.tracks...), nil
}

// CompleteI420AFrame answers a pending request with an I420A frame and
// fans it out to every attached track.
func (src *ExternalVideoSource) CompleteI420AFrame(requestID uint32, timestampMs int64, f *frame.I420AVideoFrame) error {
	if src.format != SourceI420A {
		return fmt.Errorf("%w: source expects %s frames", engine.ErrInvalidParam, src.format)
	}
	if f == nil {
		return fmt.Errorf("%w: nil frame", engine.ErrInvalidParam)
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrInvalidParam, err)
	}
	tracks, err := src.take(requestID)
	if err != nil {
		return err
	}
	for _, t := range tracks {
		t.deliverFrame(f)
	}
	return nil
}

// CompleteARGBFrame answers a pending request with an ARGB32 frame,
// converting once before fan-out.
func (src *ExternalVideoSource) CompleteARGBFrame(requestID uint32, timestampMs int64, f *frame.ARGBVideoFrame) error {
	if src.format != SourceARGB {
		return fmt.Errorf("%w: source expects %s frames", engine.ErrInvalidParam, src.format)
	}
	if f == nil {
		return fmt.Errorf("%w: nil frame", engine.ErrInvalidParam)
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrInvalidParam, err)
	}
	tracks, err := src.take(requestID)
	if err != nil {
		return err
	}
	converted := frame.ARGBToI420(f)
	for _, t := range tracks {
		t.deliverFrame(converted)
	}
	return nil
}

// Shutdown stops the pump and drops pending requests. Attached tracks stay
// attached; they just stop receiving frames. Safe to call twice.
func (src *ExternalVideoSource) Shutdown() {
	src.stopOnce.Do(func() {
		src.mu.Lock()
		src.stopped = true
		src.pending = make(map[uint32]int64)
		src.mu.Unlock()
		close(src.stop)
		src.log.Debugf("external source shut down")
	})
}

func (src *ExternalVideoSource) attach(t *VideoTrack) error {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.stopped {
		return fmt.Errorf("%w: source is shut down", engine.ErrInvalidOperation)
	}
	src.tracks = append(src.tracks, t)
	return nil
}

func (src *ExternalVideoSource) detach(t *VideoTrack) {
	src.mu.Lock()
	defer src.mu.Unlock()
	for i, cur := range src.tracks {
		if cur == t {
			src.tracks = append(src.tracks[:i], src.tracks[i+1:]...)
			return
		}
	}
}
