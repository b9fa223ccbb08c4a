// Encoded frame type shared by the encoder and the RTP layer.
package xvid

// EncodedFrame holds one encoded MPEG-4 Part 2 frame.
type EncodedFrame struct {
	Data      []byte    // Encoded bitstream data
	FrameType FrameType // Coding type of the (first) VOP in Data
	Timestamp uint32    // RTP timestamp (90kHz clock for video)
	Duration  uint32    // Duration in RTP timestamp units
}

// IsKeyframe returns true if this is an intra frame.
func (f *EncodedFrame) IsKeyframe() bool {
	return f.FrameType == FrameTypeI
}

// Clone creates a deep copy of the encoded frame.
func (f *EncodedFrame) Clone() *EncodedFrame {
	clone := &EncodedFrame{
		FrameType: f.FrameType,
		Timestamp: f.Timestamp,
		Duration:  f.Duration,
	}
	if f.Data != nil {
		clone.Data = make([]byte, len(f.Data))
		copy(clone.Data, f.Data)
	}
	return clone
}
