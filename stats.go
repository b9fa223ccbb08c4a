package xvid

import "unsafe"

// StatsBlob is the decoder statistics structure (xvid_dec_stats_t) filled by
// one native decode call. Its data member is a union holding either frame
// (VOP) or stream (VOL) information; which one is determined by the decode
// call that produced it.
//
// A StatsBlob is only meaningful for the duration of the decode call (see
// DecoderFrame.OnStats). Use ExtractVOP or ExtractVOL to copy it out.
type StatsBlob struct {
	version int32
	typ     int32
	data    vopArm
}

// Type returns the discriminant written by the decoder. ExtractVOP and
// ExtractVOL never read it.
func (b *StatsBlob) Type() FrameType {
	return FrameType(b.typ)
}

func (b *StatsBlob) vol() *volArm {
	return (*volArm)(unsafe.Pointer(&b.data))
}

// VOPData is the frame-level record of a StatsBlob.
type VOPData struct {
	// frame flags, see VOPFlag (e.g. VOPUpperFieldFirst)
	General int32
	// presentation time of the frame is TimeIncrement/TimeBase
	TimeBase      int32
	TimeIncrement int32
	// quantizer table row stride, in elements
	QScaleStride int32

	qscale *int32
}

// QScale returns the per-macroblock quantizer table as a view of
// QScaleStride*rows elements. The view aliases decoder memory: it must not
// be retained or written to after the decode call that produced it returns.
// It returns nil if the decoder did not report a table.
func (v VOPData) QScale(rows int) []int32 {
	n := int(v.QScaleStride) * rows
	if v.qscale == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice(v.qscale, n)
}

// CopyQScale is like QScale but returns an owned copy that may outlive the
// decode call.
func (v VOPData) CopyQScale(rows int) []int32 {
	view := v.QScale(rows)
	if view == nil {
		return nil
	}
	out := make([]int32, len(view))
	copy(out, view)
	return out
}

// UpperFieldFirst reports whether VOPUpperFieldFirst is set in General.
func (v VOPData) UpperFieldFirst() bool {
	return VOPFlag(uint32(v.General))&VOPUpperFieldFirst != 0
}

// VOLData is the stream-level record of a StatsBlob. It holds no reference
// into decoder memory.
type VOLData struct {
	// stream flags, see VOLFlag (e.g. VOLInterlacing)
	General int32
	Width   int32
	Height  int32
	// pixel aspect ratio code; ParWidth and ParHeight are only meaningful
	// for the extended (custom) code
	PAR       int32
	PARWidth  int32
	PARHeight int32
}

// Interlacing reports whether VOLInterlacing is set in General.
func (v VOLData) Interlacing() bool {
	return VOLFlag(uint32(v.General))&VOLInterlacing != 0
}

// PixelAspectRatio maps the native aspect ratio code to a PixelAspectRatio.
// Unknown codes are reported as square pixels.
func (v VOLData) PixelAspectRatio() PixelAspectRatio {
	switch v.PAR {
	case par11VGA:
		return PixelAspectRatio11VGA
	case par43PAL:
		return PixelAspectRatio43PAL
	case par43NTSC:
		return PixelAspectRatio43NTSC
	case par169PAL:
		return PixelAspectRatio169PAL
	case par169NTSC:
		return PixelAspectRatio169NTSC
	case parExt:
		return NewPixelAspectRatio(int(v.PARWidth), int(v.PARHeight))
	default:
		return PixelAspectRatio11VGA
	}
}

// ExtractVOP copies the frame arm of b.
//
// The caller must know that b holds frame data (b.Type() > 0). The
// discriminant is not checked: called on a VOL blob, ExtractVOP returns the
// VOL fields reinterpreted as frame fields. This matches xvidcore, which has
// no runtime tag check either.
func ExtractVOP(b *StatsBlob) VOPData {
	return vopData(b)
}

// ExtractVOL copies the stream arm of b.
//
// The caller must know that b holds stream data (b.Type() == FrameTypeVOL).
// As with ExtractVOP the discriminant is not checked.
func ExtractVOL(b *StatsBlob) VOLData {
	return volData(b)
}
