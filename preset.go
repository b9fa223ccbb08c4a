package xvid

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// EncoderPreset is a YAML-friendly encoder configuration. Quality selects
// the motion estimation and VOP coding tools like xvid_encraw's -quality
// option; the named flag lists are or-ed on top of it.
//
//	quality: 6
//	bitrate: 2000000
//	max_bframes: 2
//	vol_flags: [quarterpel]
//	vop_flags: [chroma_opt]
type EncoderPreset struct {
	// motion/VOP tool preset, 0 (fastest) to 6 (best)
	Quality int `yaml:"quality"`
	// target bitrate in bits per second for 1-pass rate control; 0 means
	// constant quantizer mode using Quantizer
	Bitrate int `yaml:"bitrate,omitempty"`
	// quantizer for every frame when Bitrate is 0
	Quantizer int `yaml:"quantizer,omitempty"`
	// 1-pass rate control tuning; Bitrate overrides its Bitrate field
	RateControl *PluginRC1PassInit `yaml:"rate_control,omitempty"`

	MaxBFrames          int             `yaml:"max_bframes"`
	MaxKeyFrameInterval int             `yaml:"max_key_interval"`
	Threads             int             `yaml:"threads,omitempty"`
	BFrameQuantizer     BFrameQuantizer `yaml:"bquant"`

	QuantizerI QuantizerRange `yaml:"quantizer_i,omitempty"`
	QuantizerP QuantizerRange `yaml:"quantizer_p,omitempty"`
	QuantizerB QuantizerRange `yaml:"quantizer_b,omitempty"`

	EncoderFlags []string `yaml:"encoder_flags,omitempty"`
	VOLFlags     []string `yaml:"vol_flags,omitempty"`
	VOPFlags     []string `yaml:"vop_flags,omitempty"`
	MotionFlags  []string `yaml:"motion_flags,omitempty"`
}

var encoderFlagNames = map[string]EncoderFlag{
	"packed":         EncoderPacked,
	"closed_gop":     EncoderClosedGOP,
	"extra_stats":    EncoderEnableExtraStats,
	"divx5_userdata": EncoderWriteDivX5UserData,
}

// Tool presets indexed by quality.
var motionPresets = [...]MotionFlag{
	0,
	MotionAdvancedDiamond16,
	MotionAdvancedDiamond16 | MotionHalfPixelRefine16,
	MotionAdvancedDiamond16 | MotionHalfPixelRefine16 | MotionAdvancedDiamond8 | MotionHalfPixelRefine8,
	MotionAdvancedDiamond16 | MotionHalfPixelRefine16 | MotionAdvancedDiamond8 | MotionHalfPixelRefine8 |
		MotionChromaPFrame | MotionChromaBFrame,
	MotionAdvancedDiamond16 | MotionHalfPixelRefine16 | MotionAdvancedDiamond8 | MotionHalfPixelRefine8 |
		MotionChromaPFrame | MotionChromaBFrame,
	MotionAdvancedDiamond16 | MotionHalfPixelRefine16 | MotionAdvancedDiamond8 | MotionHalfPixelRefine8 |
		MotionChromaPFrame | MotionChromaBFrame | MotionExtendSearch16 | MotionExtendSearch8,
}

var vopPresets = [...]VOPFlag{
	0,
	0,
	VOPHalfPixel,
	VOPHalfPixel | VOPInter4Vectors,
	VOPHalfPixel | VOPInter4Vectors,
	VOPHalfPixel | VOPInter4Vectors | VOPTrellisQuantization,
	VOPHalfPixel | VOPInter4Vectors | VOPTrellisQuantization | VOPHighQualityACPrediction,
}

// MaxPresetQuality is the highest EncoderPreset quality.
const MaxPresetQuality = len(vopPresets) - 1

// DefaultEncoderPreset returns the preset matching NewEncoderInit defaults
// at the highest quality, in constant quantizer mode.
func DefaultEncoderPreset() EncoderPreset {
	return EncoderPreset{
		Quality:             MaxPresetQuality,
		Quantizer:           4,
		MaxBFrames:          2,
		MaxKeyFrameInterval: 300,
		BFrameQuantizer:     BFrameQuantizer{Ratio: 150, Offset: 100},
	}
}

// ParseEncoderPreset parses a YAML preset over DefaultEncoderPreset.
// Unknown keys and flag names are errors.
func ParseEncoderPreset(data []byte) (EncoderPreset, error) {
	p := DefaultEncoderPreset()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, fmt.Errorf("xvid: parse encoder preset: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// LoadEncoderPreset reads a YAML preset file.
func LoadEncoderPreset(path string) (EncoderPreset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultEncoderPreset(), err
	}
	return ParseEncoderPreset(data)
}

// Validate checks the quality range and every flag name.
func (p EncoderPreset) Validate() error {
	if p.Quality < 0 || p.Quality > MaxPresetQuality {
		return fmt.Errorf("xvid: preset quality %d out of range 0-%d", p.Quality, MaxPresetQuality)
	}
	if p.Bitrate < 0 {
		return fmt.Errorf("xvid: negative preset bitrate %d", p.Bitrate)
	}
	_, _, _, _, err := p.flags()
	return err
}

func (p EncoderPreset) flags() (EncoderFlag, VOLFlag, VOPFlag, MotionFlag, error) {
	enc, err := parseFlagNames("encoder", encoderFlagNames, p.EncoderFlags)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	vol, err := parseFlagNames("vol", volFlagNames, p.VOLFlags)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	vop, err := parseFlagNames("vop", vopFlagNames, p.VOPFlags)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	motion, err := parseFlagNames("motion", motionFlagNames, p.MotionFlags)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	q := min(max(p.Quality, 0), MaxPresetQuality)
	vop |= vopPresets[q]
	motion |= motionPresets[q]
	if vol&VOLQuarterPixel != 0 {
		motion |= MotionQuarterPixelRefine16
		if vop&VOPInter4Vectors != 0 {
			motion |= MotionQuarterPixelRefine8
		}
	}
	if vol&VOLGMC != 0 {
		motion |= MotionGMERefine
	}
	return enc, vol, vop, motion, nil
}

// Apply sets the encoder-wide settings of p on init, appending a 1-pass
// rate control plugin when Bitrate is set.
func (p EncoderPreset) Apply(init *EncoderInit) error {
	enc, _, _, _, err := p.flags()
	if err != nil {
		return err
	}
	init.Flags |= enc
	init.MaxBFrames = p.MaxBFrames
	init.MaxKeyFrameInterval = p.MaxKeyFrameInterval
	init.BFrameQuantizer = p.BFrameQuantizer
	init.QuantizerI = p.QuantizerI
	init.QuantizerP = p.QuantizerP
	init.QuantizerB = p.QuantizerB
	if p.Threads > 0 {
		init.NumThreads = p.Threads
	}
	if p.Bitrate > 0 {
		rc := NewPluginRC1PassInit(p.Bitrate)
		if p.RateControl != nil {
			rc = *p.RateControl
			rc.Bitrate = p.Bitrate
		}
		init.Plugins = append(init.Plugins, PluginRC1Pass(rc))
	}
	return nil
}

// ApplyFrame sets the per-frame settings of p on frame.
func (p EncoderPreset) ApplyFrame(frame *EncoderFrame) error {
	_, vol, vop, motion, err := p.flags()
	if err != nil {
		return err
	}
	frame.VOLFlags = vol
	frame.VOPFlags = vop
	frame.MotionFlags = motion
	if p.Bitrate == 0 {
		frame.Quantizer = p.Quantizer
	}
	return nil
}
