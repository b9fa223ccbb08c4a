package xvid

import (
	"errors"
	"sync"
	"sync/atomic"
)

// StreamEncoderStats holds running counters of a StreamEncoder.
type StreamEncoderStats struct {
	FramesEncoded    uint64
	KeyframesEncoded uint64
	BytesEncoded     uint64
}

// StreamEncoder wraps an Encoder for real-time streaming: it produces
// timestamped EncodedFrames ready for an RTPPacketizer and can be asked for
// a keyframe at any time. B-frames are disabled so that frames come out in
// presentation order.
type StreamEncoder struct {
	enc      frameEncoder
	rate     Fraction
	frames   int
	buf      []byte
	config   []byte
	duration uint32

	stats   StreamEncoderStats
	statsMu sync.Mutex

	keyframeReq atomic.Bool
	mu          sync.Mutex
}

// frameEncoder is the part of Encoder a StreamEncoder drives.
type frameEncoder interface {
	Encode(frame EncoderFrame) (int, *EncoderStats, error)
	Close()
}

var (
	errVariableFrameRate = errors.New("xvid: StreamEncoder needs a constant frame rate")
	errNilImage          = errors.New("xvid: nil input image")
)

// NewStreamEncoder creates a StreamEncoder from init. init.MaxBFrames is
// forced to 0.
func NewStreamEncoder(init EncoderInit) (*StreamEncoder, error) {
	if init.FrameRate.Numerator <= 0 || init.FrameRate.Denominator <= 0 {
		return nil, errVariableFrameRate
	}
	init.MaxBFrames = 0
	enc, err := NewEncoder(&init)
	if err != nil {
		return nil, err
	}
	return newStreamEncoder(enc, init), nil
}

func newStreamEncoder(enc frameEncoder, init EncoderInit) *StreamEncoder {
	e := &StreamEncoder{
		enc:      enc,
		rate:     init.FrameRate,
		buf:      make([]byte, BufferSize(init.Width, init.Height)),
		duration: RTPTimestamp(1, init.FrameRate),
	}
	e.keyframeReq.Store(true)
	return e
}

// Encode encodes img with the per-frame settings of tmpl (its Input and
// Output are ignored). It returns nil when the encoder produced no frame.
// The returned frame data is owned by the caller.
func (e *StreamEncoder) Encode(img *Image, tmpl EncoderFrame) (*EncodedFrame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if img == nil {
		return nil, errNilImage
	}
	tmpl.Input = img
	tmpl.Output = &e.buf
	if e.keyframeReq.Swap(false) {
		tmpl.Type = FrameTypeI
	}
	frame, err := e.encode(tmpl)
	e.frames++
	return frame, err
}

func (e *StreamEncoder) encode(tmpl EncoderFrame) (*EncodedFrame, error) {
	n, stats, err := e.enc.Encode(tmpl)
	if err != nil {
		return nil, err
	}
	if stats == nil || n == 0 {
		return nil, nil
	}
	data := make([]byte, n)
	copy(data, e.buf[:n])
	if stats.KeyFrame {
		if config := StreamConfig(data); config != nil {
			e.config = config
		}
	}
	frame := &EncodedFrame{
		Data:      data,
		FrameType: stats.FrameType,
		Timestamp: RTPTimestamp(e.frames, e.rate),
		Duration:  e.duration,
	}

	e.statsMu.Lock()
	e.stats.FramesEncoded++
	if stats.KeyFrame {
		e.stats.KeyframesEncoded++
	}
	e.stats.BytesEncoded += uint64(n)
	e.statsMu.Unlock()

	return frame, nil
}

// RequestKeyframe makes the next encoded frame an intra frame.
func (e *StreamEncoder) RequestKeyframe() {
	e.keyframeReq.Store(true)
}

// Config returns the stream headers of the last keyframe, for use with
// MP4VCodecCapability. It is nil until a keyframe has been encoded.
func (e *StreamEncoder) Config() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// Stats returns the running counters.
func (e *StreamEncoder) Stats() StreamEncoderStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Flush drains the frames the encoder still holds. Each flushed frame takes
// the next frame slot.
func (e *StreamEncoder) Flush() ([]*EncodedFrame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var frames []*EncodedFrame
	for {
		frame, err := e.encode(EncoderFrame{Output: &e.buf})
		if errors.Is(err, ErrEnd) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		if frame == nil {
			return frames, nil
		}
		e.frames++
		frames = append(frames, frame)
	}
}

// Close closes the underlying Encoder.
func (e *StreamEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enc.Close()
	return nil
}
