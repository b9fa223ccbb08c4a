package xvid

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// MimeTypeMP4V is the RTP media type of MPEG-4 Visual elementary streams.
const MimeTypeMP4V = "video/MP4V-ES"

// ErrTrackClosed is returned when writing to a closed LocalTrack.
var ErrTrackClosed = errors.New("xvid: track closed")

// MP4VCodecCapability returns the codec capability advertising an MPEG-4
// Visual stream with the given configuration headers (see StreamConfig).
// config may be nil, in which case receivers must get the headers in-band.
func MP4VCodecCapability(config []byte) webrtc.RTPCodecCapability {
	fmtp := fmt.Sprintf("profile-level-id=%d", ProfileLevel(config))
	if len(config) > 0 {
		fmtp += ";config=" + strings.ToUpper(hex.EncodeToString(config))
	}
	return webrtc.RTPCodecCapability{
		MimeType:    MimeTypeMP4V,
		ClockRate:   VideoClockRate,
		SDPFmtpLine: fmtp,
		RTCPFeedback: []webrtc.RTCPFeedback{
			{Type: webrtc.TypeRTCPFBNACK},
			{Type: webrtc.TypeRTCPFBNACK, Parameter: "pli"},
			{Type: webrtc.TypeRTCPFBCCM, Parameter: "fir"},
		},
	}
}

// RegisterMP4VCodec registers MPEG-4 Visual under payload type pt with a
// MediaEngine.
func RegisterMP4VCodec(m *webrtc.MediaEngine, pt webrtc.PayloadType, config []byte) error {
	return m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: MP4VCodecCapability(config),
		PayloadType:        pt,
	}, webrtc.RTPCodecTypeVideo)
}

// LocalTrack implements pion's webrtc.TrackLocal interface for an MPEG-4
// Visual stream. Frames written with WriteFrame are packetized and sent to
// every bound PeerConnection.
type LocalTrack struct {
	id       string
	streamID string
	rid      string
	codec    webrtc.RTPCodecCapability
	closed   atomic.Bool

	packetizer *MP4VPacketizer
	bindMu     sync.RWMutex
	bindings   []trackBinding
}

// trackBinding is one negotiated PeerConnection sender.
type trackBinding struct {
	id          string
	ssrc        uint32
	payloadType uint8
	writeStream webrtc.TrackLocalWriter
}

// NewLocalTrack creates a new LocalTrack that implements webrtc.TrackLocal.
// An empty id or streamID is replaced by a random UUID.
func NewLocalTrack(codec webrtc.RTPCodecCapability, id, streamID string) (*LocalTrack, error) {
	packetizer, err := NewMP4VPacketizer(0, 0, DefaultMTU)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	if streamID == "" {
		streamID = uuid.NewString()
	}
	return &LocalTrack{
		id:         id,
		streamID:   streamID,
		codec:      codec,
		packetizer: packetizer,
	}, nil
}

func (t *LocalTrack) ID() string                { return t.id }
func (t *LocalTrack) StreamID() string          { return t.streamID }
func (t *LocalTrack) RID() string               { return t.rid }
func (t *LocalTrack) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeVideo }

// SetRID sets the simulcast stream id. It must be called before the track
// is added to a PeerConnection.
func (t *LocalTrack) SetRID(rid string) {
	t.rid = rid
}

// Codec returns the codec capability.
func (t *LocalTrack) Codec() webrtc.RTPCodecCapability {
	return t.codec
}

// Bind implements webrtc.TrackLocal.
func (t *LocalTrack) Bind(ctx webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	t.bindMu.Lock()
	defer t.bindMu.Unlock()

	// Find matching codec from negotiated parameters
	for _, p := range ctx.CodecParameters() {
		if strings.EqualFold(p.MimeType, t.codec.MimeType) {
			t.bindings = append(t.bindings, trackBinding{
				id:          ctx.ID(),
				ssrc:        uint32(ctx.SSRC()),
				payloadType: uint8(p.PayloadType),
				writeStream: ctx.WriteStream(),
			})
			return p, nil
		}
	}
	return webrtc.RTPCodecParameters{}, webrtc.ErrUnsupportedCodec
}

// Unbind implements webrtc.TrackLocal.
func (t *LocalTrack) Unbind(ctx webrtc.TrackLocalContext) error {
	t.bindMu.Lock()
	defer t.bindMu.Unlock()

	for i, b := range t.bindings {
		if b.id == ctx.ID() {
			t.bindings = append(t.bindings[:i], t.bindings[i+1:]...)
			break
		}
	}
	return nil
}

// WriteRTP writes an RTP packet to all bound contexts, rewriting the SSRC
// and payload type negotiated for each.
func (t *LocalTrack) WriteRTP(p *rtp.Packet) error {
	if t.closed.Load() {
		return ErrTrackClosed
	}
	t.bindMu.RLock()
	defer t.bindMu.RUnlock()

	var errs []error
	header := p.Header
	for _, b := range t.bindings {
		header.SSRC = b.ssrc
		header.PayloadType = b.payloadType
		if _, err := b.writeStream.WriteRTP(&header, p.Payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Write writes raw RTP bytes to all bound contexts.
func (t *LocalTrack) Write(b []byte) (int, error) {
	var p rtp.Packet
	if err := p.Unmarshal(b); err != nil {
		return 0, err
	}
	return len(b), t.WriteRTP(&p)
}

// WriteFrame packetizes an encoded frame and writes it to all bound
// contexts. Frames written before the track is bound are dropped.
func (t *LocalTrack) WriteFrame(frame *EncodedFrame) error {
	if t.closed.Load() {
		return ErrTrackClosed
	}
	t.bindMu.RLock()
	bound := len(t.bindings) > 0
	t.bindMu.RUnlock()
	if !bound {
		return nil
	}
	packets, err := t.packetizer.Packetize(frame)
	if err != nil {
		return err
	}
	for _, p := range packets {
		if err := t.WriteRTP(p); err != nil {
			return err
		}
	}
	return nil
}

// Close implements io.Closer.
func (t *LocalTrack) Close() error {
	t.closed.Store(true)
	return nil
}

// Verify LocalTrack implements webrtc.TrackLocal
var _ webrtc.TrackLocal = (*LocalTrack)(nil)
