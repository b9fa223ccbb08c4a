package xvid

import (
	"errors"
	"testing"
)

func TestEncodedFrame_IsKeyframe(t *testing.T) {
	tests := []struct {
		frameType FrameType
		want      bool
	}{
		{FrameTypeI, true},
		{FrameTypeP, false},
		{FrameTypeB, false},
		{FrameTypeS, false},
		{FrameTypeVOL, false},
	}
	for _, tt := range tests {
		t.Run(tt.frameType.String(), func(t *testing.T) {
			f := &EncodedFrame{FrameType: tt.frameType}
			if got := f.IsKeyframe(); got != tt.want {
				t.Errorf("IsKeyframe() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodedFrame_Clone(t *testing.T) {
	original := &EncodedFrame{
		Data:      []byte{0, 0, 1, 0xB6, 0x40},
		FrameType: FrameTypeP,
		Timestamp: 3600,
		Duration:  3600,
	}
	clone := original.Clone()
	if clone.FrameType != original.FrameType || clone.Timestamp != original.Timestamp || clone.Duration != original.Duration {
		t.Errorf("Clone() = %+v, want %+v", clone, original)
	}
	clone.Data[4] = 0
	if original.Data[4] != 0x40 {
		t.Error("Clone() shares Data with the original")
	}

	if empty := (&EncodedFrame{}).Clone(); empty.Data != nil {
		t.Errorf("Clone() of an empty frame has Data %v, want nil", empty.Data)
	}
}

func TestVersion(t *testing.T) {
	v := Version{version: xvidVersion}
	if v.Major() != 1 || v.Minor() != 3 || v.Patch() != 0 {
		t.Errorf("Version = %d.%d.%d, want 1.3.0", v.Major(), v.Minor(), v.Patch())
	}
	if got := v.String(); got != "1.3.0" {
		t.Errorf("Version.String() = %v, want 1.3.0", got)
	}
}

func TestPixelAspectRatio(t *testing.T) {
	if got := (PixelAspectRatio{}).nativeValue(); got != par11VGA {
		t.Errorf("zero PixelAspectRatio = %v, want %v", got, par11VGA)
	}
	if got := PixelAspectRatio169NTSC.nativeValue(); got != par169NTSC {
		t.Errorf("PixelAspectRatio169NTSC = %v, want %v", got, par169NTSC)
	}
	p := NewPixelAspectRatio(64, 45)
	if p.nativeValue() != parExt || p.Width != 64 || p.Height != 45 {
		t.Errorf("NewPixelAspectRatio(64, 45) = %+v", p)
	}
	if got := (Fraction{30000, 1001}).Float(); got < 29.97 || got > 29.98 {
		t.Errorf("Fraction.Float() = %v, want 29.97", got)
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		code int32
		want error
		msg  string
	}{
		{codeFail, ErrFail, "xvid: general fault"},
		{codeMemory, ErrMemory, "xvid: memory allocation error"},
		{codeFormat, ErrFormat, "xvid: file format error"},
		{codeVersion, ErrVersion, "xvid: version not supported"},
		{codeEnd, ErrEnd, "xvid: end of stream reached"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := error(xvidErr(tt.code))
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
			if err.Error() != tt.msg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.msg)
			}
		})
	}

	unknown := xvidErr(-42)
	if got := unknown.Error(); got != "xvid: unknown error: code -42" {
		t.Errorf("Error() = %v", got)
	}
	if errors.Is(unknown, ErrFail) {
		t.Error("unknown code matches ErrFail")
	}
	var xe *Error
	if !errors.As(error(unknown), &xe) || xe.Code != -42 {
		t.Errorf("errors.As lost the native code: %v", xe)
	}
}
