package xvid

import (
	"bytes"
	"errors"
	"testing"
)

func TestMP4WriterRoundTrip(t *testing.T) {
	frames := []*EncodedFrame{
		{Data: concat(testVOS, testVO, testVOL, testVOP(0, 300)), FrameType: FrameTypeI, Timestamp: 90000, Duration: 3600},
		{Data: testVOP(1, 120), FrameType: FrameTypeP, Timestamp: 93600, Duration: 3600},
		{Data: testVOP(1, 80), FrameType: FrameTypeP, Timestamp: 97200},
	}
	w := NewMP4Writer(64, 48)
	for i, f := range frames {
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame(%d) = %v", i, err)
		}
	}
	if w.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", w.Len())
	}
	// the writer keeps copies
	frames[1].Data[5] = 0xFF

	var buf bytes.Buffer
	if err := w.Encode(&buf); err != nil {
		t.Fatalf("Encode() = %v", err)
	}

	got, err := ReadMP4(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadMP4() = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadMP4() returned %d frames, want 3", len(got))
	}
	wantTypes := []FrameType{FrameTypeI, FrameTypeP, FrameTypeP}
	for i, f := range got {
		if want := uint32(i * 3600); f.Timestamp != want {
			t.Errorf("frame %d timestamp = %d, want %d", i, f.Timestamp, want)
		}
		if f.Duration != 3600 {
			t.Errorf("frame %d duration = %d, want 3600", i, f.Duration)
		}
		if f.FrameType != wantTypes[i] {
			t.Errorf("frame %d type = %v, want %v", i, f.FrameType, wantTypes[i])
		}
	}
	if !bytes.Equal(got[0].Data, frames[0].Data) {
		t.Error("frame 0 data mismatch")
	}
	if !bytes.Equal(got[1].Data, testVOP(1, 120)) {
		t.Error("frame 1 data mismatch")
	}
}

func TestMP4WriterErrors(t *testing.T) {
	w := NewMP4Writer(64, 48)
	if err := w.Encode(&bytes.Buffer{}); !errors.Is(err, ErrNoFrames) {
		t.Errorf("Encode() with no frames = %v, want ErrNoFrames", err)
	}
	if err := w.WriteFrame(&EncodedFrame{Data: testVOP(1, 10)}); !errors.Is(err, errMP4NeedKeyframe) {
		t.Errorf("WriteFrame() of a leading P-frame = %v, want errMP4NeedKeyframe", err)
	}
	if err := w.WriteFrame(&EncodedFrame{}); err != nil {
		t.Errorf("WriteFrame() of an empty frame = %v", err)
	}
	if w.Len() != 0 {
		t.Errorf("Len() = %d, want 0", w.Len())
	}
}

func TestReadMP4Invalid(t *testing.T) {
	if _, err := ReadMP4(bytes.NewReader([]byte("not an mp4 file"))); err == nil {
		t.Error("ReadMP4() accepted garbage")
	}
}
