package xvid

import (
	"runtime"
	"testing"
	"unsafe"
)

// vopBlob builds the statistics of a decoded frame as xvidcore fills them.
func vopBlob(p *runtime.Pinner, general, timeBase, timeIncrement, stride int32, qscale []int32) *StatsBlob {
	b := &StatsBlob{version: xvidVersion, typ: int32(FrameTypeP)}
	b.data.general = general
	b.data.timeBase = timeBase
	b.data.timeIncrement = timeIncrement
	b.data.qscaleStride = stride
	if qscale != nil {
		p.Pin(&qscale[0])
		b.data.qscale = &qscale[0]
	}
	return b
}

func volBlob(general, width, height, par, parWidth, parHeight int32) *StatsBlob {
	b := &StatsBlob{version: xvidVersion, typ: int32(FrameTypeVOL)}
	vol := b.vol()
	vol.general = general
	vol.width = width
	vol.height = height
	vol.par = par
	vol.parWidth = parWidth
	vol.parHeight = parHeight
	return b
}

func TestExtractVOP(t *testing.T) {
	var p runtime.Pinner
	defer p.Unpin()

	buf := make([]int32, 22)
	for i := range buf {
		buf[i] = int32(i + 2)
	}
	b := vopBlob(&p, 3, 25, 1, 11, buf)

	vop := ExtractVOP(b)
	if vop.General != 3 {
		t.Errorf("General = %d, want 3", vop.General)
	}
	if vop.TimeBase != 25 {
		t.Errorf("TimeBase = %d, want 25", vop.TimeBase)
	}
	if vop.TimeIncrement != 1 {
		t.Errorf("TimeIncrement = %d, want 1", vop.TimeIncrement)
	}
	if vop.QScaleStride != 11 {
		t.Errorf("QScaleStride = %d, want 11", vop.QScaleStride)
	}

	view := vop.QScale(2)
	if len(view) != 22 {
		t.Fatalf("len(QScale(2)) = %d, want 22", len(view))
	}
	if &view[0] != &buf[0] {
		t.Error("QScale view does not alias the decoder table")
	}
	// the view is borrowed: writes through the table are visible
	buf[5] = 99
	if view[5] != 99 {
		t.Errorf("view[5] = %d, want 99", view[5])
	}

	owned := vop.CopyQScale(2)
	if len(owned) != 22 || &owned[0] == &buf[0] {
		t.Fatal("CopyQScale did not return an owned copy")
	}
	buf[0] = -1
	if owned[0] != 2 {
		t.Errorf("owned[0] = %d, want 2", owned[0])
	}
}

func TestExtractVOPNoTable(t *testing.T) {
	var p runtime.Pinner
	defer p.Unpin()

	vop := ExtractVOP(vopBlob(&p, 0, 30, 2, 0, nil))
	if vop.QScale(4) != nil {
		t.Error("QScale should be nil without a table")
	}
	if vop.CopyQScale(4) != nil {
		t.Error("CopyQScale should be nil without a table")
	}
}

func TestVOPUpperFieldFirst(t *testing.T) {
	var p runtime.Pinner
	defer p.Unpin()

	if ExtractVOP(vopBlob(&p, 0, 0, 0, 0, nil)).UpperFieldFirst() {
		t.Error("UpperFieldFirst set on empty flags")
	}
	if !ExtractVOP(vopBlob(&p, int32(VOPUpperFieldFirst), 0, 0, 0, nil)).UpperFieldFirst() {
		t.Error("UpperFieldFirst not reported")
	}
}

func TestExtractVOL(t *testing.T) {
	b := volBlob(int32(VOLInterlacing), 720, 576, parExt, 16, 11)
	vol := ExtractVOL(b)

	want := VOLData{General: int32(VOLInterlacing), Width: 720, Height: 576, PAR: parExt, PARWidth: 16, PARHeight: 11}
	if vol != want {
		t.Errorf("ExtractVOL = %+v, want %+v", vol, want)
	}
	if !vol.Interlacing() {
		t.Error("Interlacing not reported")
	}
	if got := vol.PixelAspectRatio(); got.Width != 16 || got.Height != 11 {
		t.Errorf("PixelAspectRatio = %d:%d, want 16:11", got.Width, got.Height)
	}

	// the record is owned: later writes to the blob do not show through
	b.vol().width = 1
	if vol.Width != 720 {
		t.Errorf("Width = %d after blob reuse, want 720", vol.Width)
	}
}

func TestVOLPixelAspectRatio(t *testing.T) {
	tests := []struct {
		name string
		par  int32
		want PixelAspectRatio
	}{
		{"square", par11VGA, PixelAspectRatio11VGA},
		{"4:3 PAL", par43PAL, PixelAspectRatio43PAL},
		{"4:3 NTSC", par43NTSC, PixelAspectRatio43NTSC},
		{"16:9 PAL", par169PAL, PixelAspectRatio169PAL},
		{"16:9 NTSC", par169NTSC, PixelAspectRatio169NTSC},
		{"unknown", 9, PixelAspectRatio11VGA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VOLData{PAR: tt.par}.PixelAspectRatio()
			if got != tt.want {
				t.Errorf("PixelAspectRatio() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractWrongArm(t *testing.T) {
	// a VOL blob read as a frame: fields are reinterpreted, not rejected
	b := volBlob(7, 320, 240, 0, 0, 0)
	vop := ExtractVOP(b)
	if vop.General != 7 || vop.TimeBase != 320 || vop.TimeIncrement != 240 {
		t.Errorf("ExtractVOP on VOL blob = %+v, want the VOL words reinterpreted", vop)
	}
	if b.Type() != FrameTypeVOL {
		t.Errorf("Type() = %v, want VOL", b.Type())
	}

	// and a frame blob read as a stream
	var p runtime.Pinner
	defer p.Unpin()
	fb := vopBlob(&p, 1, 2, 3, 0, nil)
	vol := ExtractVOL(fb)
	if vol.General != 1 || vol.Width != 2 || vol.Height != 3 {
		t.Errorf("ExtractVOL on frame blob = %+v, want the frame words reinterpreted", vol)
	}
}

func TestStatsBlobLayout(t *testing.T) {
	if unsafe.Sizeof(volArm{}) > unsafe.Sizeof(vopArm{}) {
		t.Fatalf("vol arm (%d bytes) does not fit the union storage (%d bytes)",
			unsafe.Sizeof(volArm{}), unsafe.Sizeof(vopArm{}))
	}
	if off := unsafe.Offsetof(StatsBlob{}.data); off != 8 {
		t.Errorf("data offset = %d, want 8", off)
	}
}
