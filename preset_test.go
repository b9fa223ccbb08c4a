package xvid

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultEncoderPreset(t *testing.T) {
	p := DefaultEncoderPreset()
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	init := NewEncoderInit(320, 240, Fraction{25, 1}, nil)
	if err := p.Apply(init); err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	if init.MaxBFrames != 2 || init.MaxKeyFrameInterval != 300 {
		t.Errorf("Apply() MaxBFrames %d MaxKeyFrameInterval %d, want 2 300", init.MaxBFrames, init.MaxKeyFrameInterval)
	}
	if len(init.Plugins) != 0 {
		t.Errorf("constant quantizer preset added %d plugins", len(init.Plugins))
	}

	var frame EncoderFrame
	if err := p.ApplyFrame(&frame); err != nil {
		t.Fatalf("ApplyFrame() = %v", err)
	}
	if frame.Quantizer != 4 {
		t.Errorf("Quantizer = %d, want 4", frame.Quantizer)
	}
	if frame.VOPFlags != vopPresets[MaxPresetQuality] {
		t.Errorf("VOPFlags = %v, want %v", frame.VOPFlags, vopPresets[MaxPresetQuality])
	}
	if frame.MotionFlags != motionPresets[MaxPresetQuality] {
		t.Errorf("MotionFlags = %v, want %v", frame.MotionFlags, motionPresets[MaxPresetQuality])
	}
}

func TestParseEncoderPreset(t *testing.T) {
	p, err := ParseEncoderPreset([]byte(`
quality: 3
bitrate: 1500000
max_bframes: 0
threads: 4
quantizer_i: {min: 2, max: 10}
encoder_flags: [closed_gop]
vol_flags: [quarterpel, gmc]
vop_flags: [chroma_opt]
motion_flags: [use_squares16]
`))
	if err != nil {
		t.Fatalf("ParseEncoderPreset() = %v", err)
	}

	init := NewEncoderInit(320, 240, Fraction{25, 1}, nil)
	if err := p.Apply(init); err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	if init.Flags&EncoderClosedGOP == 0 {
		t.Error("closed_gop not applied")
	}
	if init.NumThreads != 4 || init.MaxBFrames != 0 {
		t.Errorf("NumThreads %d MaxBFrames %d, want 4 0", init.NumThreads, init.MaxBFrames)
	}
	if init.QuantizerI != (QuantizerRange{Min: 2, Max: 10}) {
		t.Errorf("QuantizerI = %+v", init.QuantizerI)
	}
	// unset keys keep their defaults
	if init.MaxKeyFrameInterval != 300 {
		t.Errorf("MaxKeyFrameInterval = %d, want 300", init.MaxKeyFrameInterval)
	}
	if len(init.Plugins) != 1 {
		t.Fatalf("got %d plugins, want the 1-pass rate control", len(init.Plugins))
	}
	rc, ok := init.Plugins[0].(builtinPlugin)
	if !ok || rc.symbol != "xvid_plugin_single" {
		t.Fatalf("plugin = %#v, want xvid_plugin_single", init.Plugins[0])
	}
	if params := (*pluginSingleParams)(rc.params); params.bitrate != 1500000 || params.reactionDelayFactor != 16 {
		t.Errorf("rate control bitrate %d delay %d, want 1500000 16", params.bitrate, params.reactionDelayFactor)
	}

	frame := EncoderFrame{Quantizer: 9}
	if err := p.ApplyFrame(&frame); err != nil {
		t.Fatalf("ApplyFrame() = %v", err)
	}
	if frame.Quantizer != 9 {
		t.Errorf("rate controlled preset changed Quantizer to %d", frame.Quantizer)
	}
	if frame.VOLFlags != VOLQuarterPixel|VOLGMC {
		t.Errorf("VOLFlags = %v", frame.VOLFlags)
	}
	if want := vopPresets[3] | VOPChromaOptimization; frame.VOPFlags != want {
		t.Errorf("VOPFlags = %v, want %v", frame.VOPFlags, want)
	}
	want := motionPresets[3] | MotionUseSquares16 | MotionQuarterPixelRefine16 | MotionQuarterPixelRefine8 | MotionGMERefine
	if frame.MotionFlags != want {
		t.Errorf("MotionFlags = %v, want %v", frame.MotionFlags, want)
	}
}

func TestParseEncoderPresetRateControl(t *testing.T) {
	p, err := ParseEncoderPreset([]byte(`
bitrate: 800000
rate_control:
  bitrate: 1
  reaction_delay_factor: 8
  averaging_period: 50
  smoothing_buffer: 20
`))
	if err != nil {
		t.Fatalf("ParseEncoderPreset() = %v", err)
	}
	var init EncoderInit
	if err := p.Apply(&init); err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	params := (*pluginSingleParams)(init.Plugins[0].(builtinPlugin).params)
	if params.bitrate != 800000 || params.reactionDelayFactor != 8 || params.averagingPeriod != 50 || params.buffer != 20 {
		t.Errorf("rate control params = %+v", *params)
	}
}

func TestParseEncoderPresetQuarterPixelWithoutInter4V(t *testing.T) {
	p, err := ParseEncoderPreset([]byte("quality: 2\nvol_flags: [quarterpel]\n"))
	if err != nil {
		t.Fatalf("ParseEncoderPreset() = %v", err)
	}
	var frame EncoderFrame
	if err := p.ApplyFrame(&frame); err != nil {
		t.Fatalf("ApplyFrame() = %v", err)
	}
	if frame.MotionFlags&MotionQuarterPixelRefine16 == 0 {
		t.Error("quarterpel did not add the 16x16 refinement")
	}
	if frame.MotionFlags&MotionQuarterPixelRefine8 != 0 {
		t.Error("8x8 refinement added without inter4v")
	}
}

func TestParseEncoderPresetEmpty(t *testing.T) {
	p, err := ParseEncoderPreset(nil)
	if err != nil {
		t.Fatalf("ParseEncoderPreset(nil) = %v", err)
	}
	if p.Quality != DefaultEncoderPreset().Quality {
		t.Errorf("Quality = %d, want the default", p.Quality)
	}
}

func TestParseEncoderPresetErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown key", "qualty: 3\n", "qualty"},
		{"unknown vop flag", "vop_flags: [halfpel, turbo]\n", `unknown vop flag "turbo"`},
		{"unknown motion flag", "motion_flags: [warp]\n", `unknown motion flag "warp"`},
		{"unknown encoder flag", "encoder_flags: [fast]\n", `unknown encoder flag "fast"`},
		{"quality too high", "quality: 7\n", "out of range"},
		{"negative quality", "quality: -1\n", "out of range"},
		{"negative bitrate", "bitrate: -5\n", "negative preset bitrate"},
		{"bad yaml", "quality: [\n", "parse encoder preset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEncoderPreset([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}

	var flagErr *unknownFlagError
	_, err := ParseEncoderPreset([]byte("vol_flags: [nope]\n"))
	if !errors.As(err, &flagErr) || flagErr.kind != "vol" {
		t.Errorf("error = %v, want an unknown vol flag", err)
	}
}

func TestLoadEncoderPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	if err := os.WriteFile(path, []byte("quality: 1\nquantizer: 6\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadEncoderPreset(path)
	if err != nil {
		t.Fatalf("LoadEncoderPreset() = %v", err)
	}
	if p.Quality != 1 || p.Quantizer != 6 {
		t.Errorf("preset = %+v", p)
	}

	if _, err := LoadEncoderPreset(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want os.ErrNotExist", err)
	}
}
