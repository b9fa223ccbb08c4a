package xvid

import (
	"github.com/pion/rtp"
)

// Re-export pion/rtp types for convenience
type (
	// RTPPacket is an alias to pion's rtp.Packet
	RTPPacket = rtp.Packet

	// RTPHeader is an alias to pion's rtp.Header
	RTPHeader = rtp.Header
)

// RTPPacketizer segments encoded frames into RTP packets.
type RTPPacketizer interface {
	// Packetize converts an encoded frame to RTP packets.
	Packetize(frame *EncodedFrame) ([]*RTPPacket, error)

	// PacketizeToBytes converts an encoded frame to raw RTP packet bytes.
	PacketizeToBytes(frame *EncodedFrame) ([][]byte, error)

	// SetSSRC updates the SSRC for outgoing packets.
	SetSSRC(ssrc uint32)

	// SSRC returns the current SSRC.
	SSRC() uint32

	// PayloadType returns the configured payload type.
	PayloadType() uint8

	// SetPayloadType updates the payload type.
	SetPayloadType(pt uint8)

	// MTU returns the maximum transmission unit.
	MTU() int

	// SetMTU updates the MTU.
	SetMTU(mtu int)
}

// RTPDepacketizer reassembles RTP packets into encoded frames.
type RTPDepacketizer interface {
	// Depacketize processes an RTP packet and returns a complete frame if available.
	// Returns nil if the frame is not yet complete.
	Depacketize(packet *RTPPacket) (*EncodedFrame, error)

	// DepacketizeBytes processes raw RTP packet bytes.
	DepacketizeBytes(data []byte) (*EncodedFrame, error)

	// Reset clears any buffered partial frames.
	Reset()
}

// Default MTU for RTP packets (UDP safe)
const DefaultMTU = 1200

// rtpHeaderSize is the size of an RTP header without CSRCs or extensions.
const rtpHeaderSize = 12

// VideoClockRate is the RTP clock rate of MPEG-4 video.
const VideoClockRate = 90000

// IsRTPTimestampOlder returns true if ts1 is older than or equal to ts2,
// handling 32-bit wraparound correctly per RTP timestamp comparison rules.
// MP4VDepacketizer uses it to discard late-arriving packets.
func IsRTPTimestampOlder(ts1, ts2 uint32) bool {
	if ts1 == ts2 {
		return true
	}
	// ts1 is older if (ts2 - ts1) < 2^31
	diff := ts2 - ts1
	return diff < 0x80000000
}

// RTPTimestamp converts a frame index at the given frame rate to a 90kHz
// RTP timestamp offset.
func RTPTimestamp(frame int, rate Fraction) uint32 {
	if rate.Numerator == 0 {
		return 0
	}
	return uint32(int64(frame) * VideoClockRate * int64(rate.Denominator) / int64(rate.Numerator))
}
