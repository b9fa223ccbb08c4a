package xvid

import (
	"sort"
	"strconv"
	"strings"
)

// Native flag constants, re-declared as explicit uint32 values.
//
// Several xvid.h flags are defined as (1<<31). As untyped constants they do
// not fit the signed C int the native structures use, so every flag family
// is bridged through an unsigned fixed-width type and only reinterpreted as
// int32 when it is written into a native structure.

// CPUFlag is a flag (or a bitwise-or union of flags) for CPU-specific features.
type CPUFlag uint32

const (
	CPU_MMX      CPUFlag = 1 << 0
	CPU_MMXEXT   CPUFlag = 1 << 1
	CPU_SSE      CPUFlag = 1 << 2
	CPU_SSE2     CPUFlag = 1 << 3
	CPU_3DNOW    CPUFlag = 1 << 4
	CPU_3DNOWEXT CPUFlag = 1 << 5
	CPU_TSC      CPUFlag = 1 << 6
	CPU_ASM      CPUFlag = 1 << 7
	CPU_SSE3     CPUFlag = 1 << 8
	CPU_SSE41    CPUFlag = 1 << 9

	// CPUForce is XVID_CPU_FORCE: use exactly the given CPU flags instead
	// of autodetecting them.
	CPUForce CPUFlag = 1 << 31
)

// DebugFlag is a flag (or a bitwise-or union of flags) for printing of
// specific types of debug messages to standard error.
type DebugFlag uint32

const (
	DebugError         DebugFlag = 1 << 0
	DebugStartCode     DebugFlag = 1 << 1
	DebugHeader        DebugFlag = 1 << 2
	DebugTimecode      DebugFlag = 1 << 3
	DebugMacroBlocks   DebugFlag = 1 << 4
	DebugCoefficients  DebugFlag = 1 << 5
	DebugMotionVectors DebugFlag = 1 << 6
	DebugRateControl   DebugFlag = 1 << 7

	// DebugDebug is XVID_DEBUG_DEBUG.
	DebugDebug DebugFlag = 1 << 31
)

// ColorSpaceFlag is a modifier or-ed into a native color space value.
type ColorSpaceFlag uint32

// ColorSpaceVerticalFlip is XVID_CSP_VFLIP.
const ColorSpaceVerticalFlip ColorSpaceFlag = 1 << 31

// DecoderFlag is a flag (or a bitwise-or union of flags) for decoding a
// frame, set in each frame.
type DecoderFlag uint32

const (
	// lowdelay mode
	DecoderLowDelay DecoderFlag = 1 << 0
	// indicate break/discontinuity in streaming
	DecoderDiscontinuity DecoderFlag = 1 << 1
	// perform luma deblocking
	DecoderDeblockLuma DecoderFlag = 1 << 2
	// perform chroma deblocking
	DecoderDeblockChroma DecoderFlag = 1 << 3
	// adds film grain
	DecoderFilmGrain DecoderFlag = 1 << 4
	// perform chroma deringing, requires deblocking to work
	DecoderDeringChroma DecoderFlag = 1 << 5
	// perform luma deringing, requires deblocking to work
	DecoderDeringLuma DecoderFlag = 1 << 6
)

// EncoderFlag is a flag (or a bitwise-or union of flags) for encoding
// frames, set in NewEncoder.
type EncoderFlag uint32

const (
	// packed B-frames; strongly discouraged
	EncoderPacked EncoderFlag = 1 << 0
	// closed GOP
	EncoderClosedGOP EncoderFlag = 1 << 1
	// require plugins to use the original image for PSNR calculation
	EncoderEnableExtraStats EncoderFlag = 1 << 2
	// write DivX5 userdata string, implied by EncoderPacked
	EncoderWriteDivX5UserData EncoderFlag = 1 << 5
)

// VOLFlag is a flag (or a bitwise-or union of flags) for encoding a group
// of frames, set in Encoder.Encode. It is also reported in decoded VOL
// statistics.
type VOLFlag uint32

const (
	// enable MPEG type quantization
	VOLMPEGQuantization VOLFlag = 1 << 0
	// enable plane sse stats
	VOLExtraStats VOLFlag = 1 << 1
	// enable quarterpel: frames will encoded as quarterpel
	VOLQuarterPixel VOLFlag = 1 << 2
	// enable GMC (global motion compensation)
	VOLGMC VOLFlag = 1 << 3
	// enable interlaced encoding
	VOLInterlacing VOLFlag = 1 << 5
)

// VOPFlag is a flag (or a bitwise-or union of flags) for encoding a single
// frame, set in Encoder.Encode. It is also reported in decoded frame
// statistics.
type VOPFlag uint32

const (
	// print debug messages in frames
	VOPDebug VOPFlag = 1 << 0
	// use halfpel interpolation
	VOPHalfPixel VOPFlag = 1 << 1
	// use 4 motion vectors per MB
	VOPInter4Vectors VOPFlag = 1 << 2
	// use trellis based R-D "optimal" quantization
	VOPTrellisQuantization VOPFlag = 1 << 3
	// enable chroma optimization pre-filter
	VOPChromaOptimization VOPFlag = 1 << 4
	// use 'cartoon mode'
	VOPCartoon VOPFlag = 1 << 5
	// enable greyscale only mode
	VOPGreyscale VOPFlag = 1 << 6
	// high quality ac prediction
	VOPHighQualityACPrediction VOPFlag = 1 << 7
	// enable DCT-ME and use it for mode decision
	VOPModeDecisionRD VOPFlag = 1 << 8
	// only valid with VOLInterlacing, set upper-field-first flag
	VOPUpperFieldFirst VOPFlag = 1 << 9
	// only valid with VOLInterlacing, set alternate vertical scan flag
	VOPAlternateScan VOPFlag = 1 << 10
	// use simplified R-D mode decision
	VOPFastModeDecisionRD VOPFlag = 1 << 12
	// enable rate-distortion mode decision in b-frames
	VOPRateDistortionBFrames VOPFlag = 1 << 13
	// use PSNR-HVS-M as metric for rate-distortion optimizations
	VOPRateDistortionPSNRHVSM VOPFlag = 1 << 14
)

// MotionFlag is a flag (or a bitwise-or union of flags) of motion
// estimation flags for encoding a single frame, set in Encoder.Encode.
type MotionFlag uint32

const (
	// use advdiamonds instead of diamonds as search pattern
	MotionAdvancedDiamond16 MotionFlag = 1 << 0
	// use advdiamond for MotionExtendSearch8
	MotionAdvancedDiamond8 MotionFlag = 1 << 1
	// use squares instead of diamonds as search pattern
	MotionUseSquares16 MotionFlag = 1 << 2
	// use square for MotionExtendSearch8
	MotionUseSquares8 MotionFlag = 1 << 3

	MotionHalfPixelRefine16    MotionFlag = 1 << 4
	MotionHalfPixelRefine8     MotionFlag = 1 << 6
	MotionQuarterPixelRefine16 MotionFlag = 1 << 7
	MotionQuarterPixelRefine8  MotionFlag = 1 << 8
	MotionGMERefine            MotionFlag = 1 << 9
	// extend PMV by more searches
	MotionExtendSearch16 MotionFlag = 1 << 10
	// use diamond/square for extended 8x8 search
	MotionExtendSearch8 MotionFlag = 1 << 11
	// also use chroma for P_VOP/S_VOP ME
	MotionChromaPFrame MotionFlag = 1 << 12
	// also use chroma for B_VOP ME
	MotionChromaBFrame MotionFlag = 1 << 13

	// only valid with VOPModeDecisionRD, perform RD-based halfpel refinement
	MotionHalfPixelRefine16RD MotionFlag = 1 << 14
	// only valid with VOPModeDecisionRD, perform RD-based halfpel refinement for 8x8 mode
	MotionHalfPixelRefine8RD MotionFlag = 1 << 15
	// only valid with VOPModeDecisionRD, perform RD-based qpel refinement
	MotionQuarterPixelRefine16RD MotionFlag = 1 << 16
	// only valid with VOPModeDecisionRD, perform RD-based qpel refinement for 8x8 mode
	MotionQuarterPixelRefine8RD MotionFlag = 1 << 17
	// only valid with VOPModeDecisionRD, perform RD-based search using square pattern
	MotionExtendSearchRD MotionFlag = 1 << 18
	// only valid with VOPModeDecisionRD, always check vector equal to prediction
	MotionCheckPredictionRD MotionFlag = 1 << 19

	// speed-up ME by detecting stationary scenes
	MotionDetectStaticMotion MotionFlag = 1 << 24
	// use low-complexity refinement functions
	MotionFastRefine16 MotionFlag = 1 << 25
	// speed-up by skipping b-frame delta search
	MotionSkipDeltaSearch MotionFlag = 1 << 26
	// speed-up by partly skipping interpolate mode
	MotionFastModeInterpolate MotionFlag = 1 << 27
	// speed-up by early exiting b-search
	MotionBFrameEarlyStop MotionFlag = 1 << 28
	// low-complexity 8x8 sub-block refinement
	MotionFastRefine8 MotionFlag = 1 << 29
)

// PluginFlag is a flag (or a bitwise-or union of flags) of data a custom
// Plugin needs access to.
type PluginFlag uint32

const (
	// plugin needs a copy of the original (uncompressed) image
	PluginRequireOriginal PluginFlag = 1 << 0
	// plugin needs psnr between the uncompressed and compressed image
	PluginRequirePSNR PluginFlag = 1 << 1
	// plugin needs the diff quantizer table
	PluginRequireDiffQuantizer PluginFlag = 1 << 2
	// plugin needs the lambda table
	PluginRequireLambda PluginFlag = 1 << 3
)

// ZoneType is a kind of bitrate zone, applied on a range of frames while
// encoding.
type ZoneType uint32

const (
	// enforce a specific quantizer, value is the quantizer, recommended range is 2-31
	ZoneModeQuantizer ZoneType = 1 << 0
	// enforce a specific frame weight, value is the weight, default weight is 1
	ZoneModeWeight ZoneType = 1 << 1
)

// EncoderProfile is a profile (and level) used for encoding; should be set
// to EncoderProfileAuto to detect automatically.
type EncoderProfile uint32

const (
	EncoderProfileAuto    EncoderProfile = 0
	EncoderProfileS_L0    EncoderProfile = 0x08
	EncoderProfileS_L1    EncoderProfile = 0x01
	EncoderProfileS_L2    EncoderProfile = 0x02
	EncoderProfileS_L3    EncoderProfile = 0x03
	EncoderProfileS_L4A   EncoderProfile = 0x04
	EncoderProfileS_L5    EncoderProfile = 0x05
	EncoderProfileS_L6    EncoderProfile = 0x06
	EncoderProfileARTS_L1 EncoderProfile = 0x91
	EncoderProfileARTS_L2 EncoderProfile = 0x92
	EncoderProfileARTS_L3 EncoderProfile = 0x93
	EncoderProfileARTS_L4 EncoderProfile = 0x94
	EncoderProfileAS_L0   EncoderProfile = 0xf0
	EncoderProfileAS_L1   EncoderProfile = 0xf1
	EncoderProfileAS_L2   EncoderProfile = 0xf2
	EncoderProfileAS_L3   EncoderProfile = 0xf3
	EncoderProfileAS_L4   EncoderProfile = 0xf4
)

// FrameType is the type of a frame that was decoded [D], that was encoded
// (in EncoderStats) [E], or to be encoded [S].
type FrameType int32

const (
	// [D] VOL (metadata) was decoded
	FrameTypeVOL FrameType = -1
	// [S] automatically determine coding type
	FrameTypeAuto FrameType = 0
	// [D,E,S] intra frame
	FrameTypeI FrameType = 1
	// [D,E,S] predicted frame
	FrameTypeP FrameType = 2
	// [D,E,S] bidirectionally encoded
	FrameTypeB FrameType = 3
	// [D,E,S] predicted+sprite frame
	FrameTypeS FrameType = 4

	// [D,E] nothing was decoded or encoded
	frameTypeNothing FrameType = 0
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeVOL:
		return "VOL"
	case FrameTypeAuto:
		return "Auto"
	case FrameTypeI:
		return "I"
	case FrameTypeP:
		return "P"
	case FrameTypeB:
		return "B"
	case FrameTypeS:
		return "S"
	default:
		return "Unknown"
	}
}

// native reinterprets the bits of an unsigned flag word as the signed C int
// the native structures store.
func native[F ~uint32](f F) int32 {
	return int32(uint32(f))
}

// Flag names used by encoder presets.

var volFlagNames = map[string]VOLFlag{
	"mpeg_quant":  VOLMPEGQuantization,
	"extra_stats": VOLExtraStats,
	"quarterpel":  VOLQuarterPixel,
	"gmc":         VOLGMC,
	"interlacing": VOLInterlacing,
}

var vopFlagNames = map[string]VOPFlag{
	"debug":              VOPDebug,
	"halfpel":            VOPHalfPixel,
	"inter4v":            VOPInter4Vectors,
	"trellis_quant":      VOPTrellisQuantization,
	"chroma_opt":         VOPChromaOptimization,
	"cartoon":            VOPCartoon,
	"greyscale":          VOPGreyscale,
	"hq_ac_pred":         VOPHighQualityACPrediction,
	"mode_decision_rd":   VOPModeDecisionRD,
	"top_field_first":    VOPUpperFieldFirst,
	"alternate_scan":     VOPAlternateScan,
	"fast_mode_decision": VOPFastModeDecisionRD,
	"rd_bvop":            VOPRateDistortionBFrames,
	"rd_psnrhvsm":        VOPRateDistortionPSNRHVSM,
}

var motionFlagNames = map[string]MotionFlag{
	"advanced_diamond16":    MotionAdvancedDiamond16,
	"advanced_diamond8":     MotionAdvancedDiamond8,
	"use_squares16":         MotionUseSquares16,
	"use_squares8":          MotionUseSquares8,
	"halfpel_refine16":      MotionHalfPixelRefine16,
	"halfpel_refine8":       MotionHalfPixelRefine8,
	"qpel_refine16":         MotionQuarterPixelRefine16,
	"qpel_refine8":          MotionQuarterPixelRefine8,
	"gme_refine":            MotionGMERefine,
	"extsearch16":           MotionExtendSearch16,
	"extsearch8":            MotionExtendSearch8,
	"chroma_pvop":           MotionChromaPFrame,
	"chroma_bvop":           MotionChromaBFrame,
	"halfpel_refine16_rd":   MotionHalfPixelRefine16RD,
	"halfpel_refine8_rd":    MotionHalfPixelRefine8RD,
	"qpel_refine16_rd":      MotionQuarterPixelRefine16RD,
	"qpel_refine8_rd":       MotionQuarterPixelRefine8RD,
	"extsearch_rd":          MotionExtendSearchRD,
	"check_prediction_rd":   MotionCheckPredictionRD,
	"detect_static_motion":  MotionDetectStaticMotion,
	"fast_refine16":         MotionFastRefine16,
	"skip_delta_search":     MotionSkipDeltaSearch,
	"fast_mode_interpolate": MotionFastModeInterpolate,
	"bframe_early_stop":     MotionBFrameEarlyStop,
	"fast_refine8":          MotionFastRefine8,
}

// parseFlagNames or-s together the flags named in names.
func parseFlagNames[F ~uint32](kind string, table map[string]F, names []string) (F, error) {
	var f F
	for _, name := range names {
		v, ok := table[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, &unknownFlagError{kind: kind, name: name}
		}
		f |= v
	}
	return f, nil
}

// flagNames returns the sorted names of the flags set in f.
func flagNames[F ~uint32](table map[string]F, f F) []string {
	var names []string
	for name, v := range table {
		if f&v == v {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type unknownFlagError struct {
	kind string
	name string
}

func (e *unknownFlagError) Error() string {
	return "xvid: unknown " + e.kind + " flag " + strconv.Quote(e.name)
}
