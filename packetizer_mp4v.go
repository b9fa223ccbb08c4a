package xvid

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/rtp"
)

// MPEG-4 Visual start code values (the byte following 0x000001).
const (
	startCodeVOLFirst = 0x20
	startCodeVOLLast  = 0x2F
	startCodeVOS      = 0xB0
	startCodeGOV      = 0xB3
	startCodeVOP      = 0xB6
)

var errEmptyMP4VPayload = errors.New("xvid: empty MP4V-ES payload")

// FindStartCode returns the offset of the first 0x000001 prefix followed by
// code in data, or -1.
func FindStartCode(data []byte, code byte) int {
	pattern := []byte{0, 0, 1, code}
	return bytes.Index(data, pattern)
}

// findAnyStartCode returns the offset of the first 0x000001 prefix at or
// after from, or -1.
func findAnyStartCode(data []byte, from int) int {
	if from >= len(data) {
		return -1
	}
	i := bytes.Index(data[from:], []byte{0, 0, 1})
	if i < 0 || from+i+3 >= len(data) {
		return -1
	}
	return from + i
}

// VOPCodingType returns the coding type of the first VOP in data. A frame
// holding stream headers only reports FrameTypeVOL. ok is false when data
// holds neither.
func VOPCodingType(data []byte) (t FrameType, ok bool) {
	i := FindStartCode(data, startCodeVOP)
	if i < 0 || i+4 >= len(data) {
		for j := findAnyStartCode(data, 0); j >= 0; j = findAnyStartCode(data, j+3) {
			if c := data[j+3]; c >= startCodeVOLFirst && c <= startCodeVOLLast {
				return FrameTypeVOL, true
			}
		}
		return frameTypeNothing, false
	}
	switch data[i+4] >> 6 {
	case 0:
		return FrameTypeI, true
	case 1:
		return FrameTypeP, true
	case 2:
		return FrameTypeB, true
	default:
		return FrameTypeS, true
	}
}

// StreamConfig returns the stream headers (VOS, VO and VOL) preceding the
// first VOP in data, as carried in the SDP config parameter. It returns nil
// when data starts with a VOP or has no VOL.
func StreamConfig(data []byte) []byte {
	end := FindStartCode(data, startCodeVOP)
	if end < 0 {
		end = len(data)
	}
	if t, ok := VOPCodingType(data[:end]); !ok || t != FrameTypeVOL {
		return nil
	}
	// a GOV header belongs to the frame, not the configuration
	if gov := FindStartCode(data[:end], startCodeGOV); gov >= 0 {
		end = gov
	}
	config := make([]byte, end)
	copy(config, data[:end])
	return config
}

// ProfileLevel returns the profile_and_level_indication of the VOS header
// in config, or 1 (Simple Profile Level 1) when there is none.
func ProfileLevel(config []byte) int {
	i := FindStartCode(config, startCodeVOS)
	if i < 0 || i+4 >= len(config) {
		return 1
	}
	return int(config[i+4])
}

// MP4VPayloader implements rtp.Payloader for MPEG-4 Visual elementary
// streams. Payloads are cut at start codes when possible so that each
// packet begins at a decodable boundary.
type MP4VPayloader struct{}

// Payload fragments an MPEG-4 Visual frame into payloads of at most mtu bytes.
func (p *MP4VPayloader) Payload(mtu uint16, payload []byte) [][]byte {
	if len(payload) == 0 || mtu == 0 {
		return nil
	}
	limit := int(mtu)
	var out [][]byte
	for start := 0; start < len(payload); {
		end := start + limit
		if end >= len(payload) {
			end = len(payload)
		} else if cut := lastStartCode(payload, start, end); cut > start {
			end = cut
		}
		chunk := make([]byte, end-start)
		copy(chunk, payload[start:end])
		out = append(out, chunk)
		start = end
	}
	return out
}

// lastStartCode returns the offset of the last start code prefix in
// data[start+1:end], or -1.
func lastStartCode(data []byte, start, end int) int {
	i := bytes.LastIndex(data[start+1:end], []byte{0, 0, 1})
	if i < 0 {
		return -1
	}
	return start + 1 + i
}

// MP4VPacket implements rtp.Depacketizer for MPEG-4 Visual. The payload
// carries the elementary stream verbatim.
type MP4VPacket struct {
	Payload []byte
}

// Unmarshal parses the RTP payload and returns the stream bytes.
func (p *MP4VPacket) Unmarshal(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errEmptyMP4VPayload
	}
	p.Payload = payload
	return payload, nil
}

// IsPartitionHead reports whether payload starts at a start code.
func (p *MP4VPacket) IsPartitionHead(payload []byte) bool {
	return len(payload) >= 4 && payload[0] == 0 && payload[1] == 0 && payload[2] == 1
}

// IsPartitionTail reports whether the packet ends a frame.
func (p *MP4VPacket) IsPartitionTail(marker bool, _ []byte) bool {
	return marker
}

// MP4VPacketizer implements RTPPacketizer for MPEG-4 Visual (RFC 6416).
type MP4VPacketizer struct {
	ssrc        uint32
	payloadType uint8
	mtu         int
	sequencer   rtp.Sequencer
	payloader   *MP4VPayloader
	mu          sync.Mutex
}

// NewMP4VPacketizer creates a new MP4V-ES RTP packetizer.
func NewMP4VPacketizer(ssrc uint32, pt uint8, mtu int) (*MP4VPacketizer, error) {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	if mtu <= rtpHeaderSize {
		return nil, fmt.Errorf("xvid: MTU %d leaves no room for payload", mtu)
	}
	return &MP4VPacketizer{
		ssrc:        ssrc,
		payloadType: pt,
		mtu:         mtu,
		sequencer:   rtp.NewRandomSequencer(),
		payloader:   &MP4VPayloader{},
	}, nil
}

// Packetize converts an encoded frame to RTP packets.
func (p *MP4VPacketizer) Packetize(frame *EncodedFrame) ([]*RTPPacket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(frame.Data) == 0 {
		return nil, nil
	}

	payloads := p.payloader.Payload(uint16(min(p.mtu-rtpHeaderSize, 0xFFFF)), frame.Data)
	if len(payloads) == 0 {
		return nil, nil
	}

	packets := make([]*RTPPacket, len(payloads))
	for i, payload := range payloads {
		packets[i] = &RTPPacket{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == len(payloads)-1,
				PayloadType:    p.payloadType,
				SequenceNumber: p.sequencer.NextSequenceNumber(),
				Timestamp:      frame.Timestamp,
				SSRC:           p.ssrc,
			},
			Payload: payload,
		}
	}
	return packets, nil
}

// PacketizeToBytes converts an encoded frame to raw RTP packet bytes.
func (p *MP4VPacketizer) PacketizeToBytes(frame *EncodedFrame) ([][]byte, error) {
	packets, err := p.Packetize(frame)
	if err != nil {
		return nil, err
	}
	result := make([][]byte, len(packets))
	for i, pkt := range packets {
		if result[i], err = pkt.Marshal(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (p *MP4VPacketizer) SetSSRC(ssrc uint32)     { p.mu.Lock(); p.ssrc = ssrc; p.mu.Unlock() }
func (p *MP4VPacketizer) SSRC() uint32            { p.mu.Lock(); defer p.mu.Unlock(); return p.ssrc }
func (p *MP4VPacketizer) PayloadType() uint8      { p.mu.Lock(); defer p.mu.Unlock(); return p.payloadType }
func (p *MP4VPacketizer) SetPayloadType(pt uint8) { p.mu.Lock(); p.payloadType = pt; p.mu.Unlock() }
func (p *MP4VPacketizer) MTU() int                { p.mu.Lock(); defer p.mu.Unlock(); return p.mtu }

// SetMTU updates the MTU. A non-positive mtu selects DefaultMTU; an mtu
// that leaves no room for payload is ignored.
func (p *MP4VPacketizer) SetMTU(mtu int) {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	if mtu <= rtpHeaderSize {
		logger().Warn("xvid: ignoring MTU without room for payload", "mtu", mtu)
		return
	}
	p.mu.Lock()
	p.mtu = mtu
	p.mu.Unlock()
}

// MP4VDepacketizer implements RTPDepacketizer for MPEG-4 Visual.
type MP4VDepacketizer struct {
	depacketizer MP4VPacket
	buffer       []byte
	timestamp    uint32
	started      bool
	// timestamp of the last emitted frame
	last    uint32
	emitted bool
	mu      sync.Mutex
}

// NewMP4VDepacketizer creates a new MP4V-ES RTP depacketizer.
func NewMP4VDepacketizer() (*MP4VDepacketizer, error) {
	return &MP4VDepacketizer{}, nil
}

// Depacketize processes an RTP packet and returns a complete frame if
// available. Packets older than the frame being assembled, or not newer than
// the last emitted frame, arrived late and are dropped.
func (d *MP4VDepacketizer) Depacketize(packet *RTPPacket) (*EncodedFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	payload, err := d.depacketizer.Unmarshal(packet.Payload)
	if err != nil {
		return nil, fmt.Errorf("MP4V-ES unmarshal failed: %w", err)
	}

	ts := packet.Header.Timestamp
	switch {
	case d.started && ts != d.timestamp:
		if IsRTPTimestampOlder(ts, d.timestamp) {
			return nil, nil
		}
		// new frame started, the tail of the buffered one was lost
		d.buffer = d.buffer[:0]
	case !d.started && d.emitted && IsRTPTimestampOlder(ts, d.last):
		return nil, nil
	}
	d.timestamp = ts
	d.started = true

	d.buffer = append(d.buffer, payload...)

	if !d.depacketizer.IsPartitionTail(packet.Header.Marker, payload) {
		return nil, nil
	}
	frame := &EncodedFrame{
		Data:      make([]byte, len(d.buffer)),
		Timestamp: d.timestamp,
	}
	copy(frame.Data, d.buffer)
	frame.FrameType, _ = VOPCodingType(frame.Data)
	d.buffer = d.buffer[:0]
	d.started = false
	d.last = d.timestamp
	d.emitted = true
	return frame, nil
}

// DepacketizeBytes processes raw RTP packet bytes.
func (d *MP4VDepacketizer) DepacketizeBytes(data []byte) (*EncodedFrame, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		return nil, err
	}
	return d.Depacketize(&pkt)
}

// Reset clears any buffered partial frames.
func (d *MP4VDepacketizer) Reset() {
	d.mu.Lock()
	d.buffer = d.buffer[:0]
	d.timestamp = 0
	d.started = false
	d.emitted = false
	d.mu.Unlock()
}

var (
	_ rtp.Payloader    = (*MP4VPayloader)(nil)
	_ rtp.Depacketizer = (*MP4VPacket)(nil)
	_ RTPPacketizer    = (*MP4VPacketizer)(nil)
	_ RTPDepacketizer  = (*MP4VDepacketizer)(nil)
)
