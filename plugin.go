package xvid

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Plugin is an Xvid plugin that is used during the encoding process as a callback
// for both read and write operations to some internal frame encoding data.
// Plugins are passed to NewEncoder in EncoderInit.Plugins.
//
// Some native plugins are provided, which include 1-pass and 2-pass rate control.
// Custom plugins are created by implementing the Plugin interface; they are
// reached through the native plugin callback, see RegisterPluginHandler.
type Plugin interface {
	// called during NewEncoder, returns the data the plugin needs access to
	Info() PluginFlag
	// called during NewEncoder to init the plugin;
	// return false to disable the plugin for this Encoder
	Init(create PluginInit) bool
	// called during Encoder.Close to close any open plugin resources
	Close(close PluginClose)

	// Frame callbacks. See PluginData for what fields are readable and
	// writable in each one.

	// called during Encoder.Encode, before starting to encode a frame
	Before(data *PluginData)
	// called during Encoder.Encode, while encoding a frame
	Frame(data *PluginData)
	// called during Encoder.Encode, after encoding a frame
	After(data *PluginData)
}

// PluginInit stores general information for an encoder, used for reading by plugins
// in their Init callback.
type PluginInit struct {
	// encoder bitrate zones, sorted by start frame
	Zones []EncoderZone
	// frame width in pixels
	Width int
	// frame height in pixels
	Height int
	// frame width in macro blocks
	WidthMacroBlocks int
	// frame height in macro blocks
	HeightMacroBlocks int
	// framerate; Numerator=0 means variable framerate
	FrameRate Fraction
}

// PluginClose stores information for an encoding session, used for reading by plugins
// in their Close callback.
type PluginClose struct {
	// total count of encoded frames
	NumFrames int
}

// PluginData stores information about an encoder and a specific frame to encode.
// It is used in plugins Before, Frame, and After callbacks.
//
// Depending on the callback ([B]efore, [F]rame, [A]fter), some fields can be
// [R]eadable or [W]ritable. To represent this, each field description starts
// with a list [<B(efore)/F(rame)/A(fter)><R(ead)/W(rite)>, ...].
// For example [AR,FW] means: writable during Frame, readable during After.
//
// Images, DiffQuantizers and Lambda alias encoder memory and must not be
// retained after the callback returns.
type PluginData struct {
	// [BR,FR,AR] current encoder zone, or nil if none
	Zone *EncoderZone
	// [BR,FR,AR] frame width in pixels
	Width int
	// [BR,FR,AR] frame height in pixels
	Height int
	// [BR,FR,AR] frame width in macro blocks
	WidthMacroBlocks int
	// [BR,FR,AR] frame height in macro blocks
	HeightMacroBlocks int
	// [BR,FR,AR] framerate; Numerator=0 means variable framerate
	FrameRate Fraction
	// [BR,FR,AR] quantizer range for I frames
	QuantizerI QuantizerRange
	// [BR,FR,AR] quantizer range for P frames
	QuantizerP QuantizerRange
	// [BR,FR,AR] quantizer range for B frames
	QuantizerB QuantizerRange
	// [BR,FR,AR] frame number
	FrameNum int
	// [BR,FR,AR] reference frame
	Reference Image
	// [BR,FR,AR] current frame
	Current Image
	// [AR] the original (uncompressed) copy of the current frame
	Original Image
	// [BR,FR,AR,BW] type of this frame
	Type FrameType
	// [BR,FR,AR,BW,FW] quantizer used for this frame
	Quantizer int
	// [AR,FW] diff quantizers for this frame, only present if PluginRequireDiffQuantizer was set during Info()
	DiffQuantizers []int32
	// [FR,AR] diff quantizers stride (quantizers per row), only set if PluginRequireDiffQuantizer was set during Info()
	DiffQuantizersStride int
	// [BR,AR,BW] actual group of pictures flags
	VOLFlags VOLFlag
	// [BR,AR,BW] encoding flags for this frame
	VOPFlags VOPFlag
	// [BR,AR,BW] motion estimation flags for this frame
	MotionFlags MotionFlag
	// [FW] lambda table for this frame, only present if PluginRequireLambda was set during Info(); six floats for each macroblock
	Lambda []float32
	// [BR,FR,AR] B-frames quantizer multipier/offset
	BFrameQuantizer BFrameQuantizer
	// [AR] frame statistics
	Stats EncoderStats
}

// builtinPlugin is one of the plugins exported by libxvidcore. Its Plugin
// methods are never called: native code invokes symbol directly.
type builtinPlugin struct {
	symbol string
	// native parameter block, nil for plugins without parameters
	params unsafe.Pointer
	// Go memory params points into; pinned with params
	refs []*byte
}

func (builtinPlugin) Info() PluginFlag            { return 0 }
func (builtinPlugin) Init(create PluginInit) bool { return true }
func (builtinPlugin) Close(close PluginClose)     {}
func (builtinPlugin) Before(data *PluginData)     {}
func (builtinPlugin) Frame(data *PluginData)      {}
func (builtinPlugin) After(data *PluginData)      {}

// cString returns s as a NUL-terminated byte string.
func cString(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

// PluginRC1PassInit is a configuration for the PluginRC1Pass plugin (1-pass rate-control).
// To return a configuration initialized to default values, use NewPluginRC1PassInit.
type PluginRC1PassInit struct {
	// target bitrate in bits per second
	Bitrate int `yaml:"bitrate"`
	// reaction delay factor; defaults to 16
	ReactionDelayFactor int `yaml:"reaction_delay_factor"`
	// averaging period; defaults to 100
	AveragingPeriod int `yaml:"averaging_period"`
	// smoothing buffer; defaults to 100
	SmoothingBuffer int `yaml:"smoothing_buffer"`
}

// NewPluginRC1PassInit returns a PluginRC1PassInit initialized to default values.
func NewPluginRC1PassInit(bitrate int) PluginRC1PassInit {
	return PluginRC1PassInit{
		Bitrate:             bitrate,
		ReactionDelayFactor: 16,
		AveragingPeriod:     100,
		SmoothingBuffer:     100,
	}
}

// PluginRC1Pass returns an instance of the 1-pass rate-control plugin.
// This plugin will choose specific quantizers to try to match the bitrate parameters.
func PluginRC1Pass(init PluginRC1PassInit) Plugin {
	return builtinPlugin{
		symbol: "xvid_plugin_single",
		params: unsafe.Pointer(&pluginSingleParams{
			version:             xvidVersion,
			bitrate:             int32(init.Bitrate),
			reactionDelayFactor: int32(init.ReactionDelayFactor),
			averagingPeriod:     int32(init.AveragingPeriod),
			buffer:              int32(init.SmoothingBuffer),
		}),
	}
}

// PluginRC2Pass1 returns an instance of the 2-pass rate-control plugin for the first pass.
// To do 2-pass rate-control, encode the same images twice, in the first run using the
// PluginRC2Pass1 plugin, and in the second run using the PluginRC2Pass2 plugin.
//
// filename is used to store the rate-control information (the file will be
// overwritten). xvidcore does not report write failures, check for the file
// after encoding.
func PluginRC2Pass1(filename string) Plugin {
	name := cString(filename)
	return builtinPlugin{
		symbol: "xvid_plugin_2pass1",
		params: unsafe.Pointer(&plugin2Pass1Params{
			version:  xvidVersion,
			filename: name,
		}),
		refs: []*byte{name},
	}
}

// PluginRC2Pass2Init is a configuration for the PluginRC2Pass2 plugin (2-pass rate-control, pass 2).
// To return a configuration initialized to default values, use NewPluginRC2Pass2Init.
type PluginRC2Pass2Init struct {
	// target bitrate in bits per second; defaults to 700*1024
	Bitrate int
	// path to file to read rate-control info from, should be the same file as the first pass filename
	Filename string
	// I-frame boost percentage, range: [0..100]; defaults to 10
	IFrameBoost int
	// percentage of compression performed on the high part of the curve (above average); defaults to 0
	CurveCompressionHigh int
	// percentage of compression performed on the low part of the curve (below average); defaults to 0
	CurveCompressionLow int
	// payback delay in number of frames; defaults to 5
	OverflowControlStrength int
	// percentage of allowed range for a frame that gets bigger because of overflow bonus; defaults to 5
	MaxOverflowImprovement int
	// percentage of allowed range for a frame that gets smaller because of overflow penalty; defaults to 5
	MaxOverflowDegradation int

	// maximum bitrate reduction applied to an I-frame under the IFrameThreshold distance limit; defaults to 20
	IFrameReduction int
	// if an I-frame is closer to the next I-frame than this distance, its bit
	// allocation is reduced by up to IFrameReduction; defaults to 1
	IFrameThreshold int

	// how many bytes the controller has to compensate per frame due to container format overhead; defaults to 0
	ContainerFrameOverhead int

	// Video Buffering Verifier buffer size in bits; 0 disables VBV check; defaults to 0
	VBVSize int
	// Video Buffering Verifier max processing bitrate in bits per second
	VBVMaxRate int
	// Video Buffering Verifier initial buffer occupancy in bits; defaults to 0
	VBVInitial int
	// Video Buffering Verifier peak bitrate in bits per second
	VBVPeakRate int
}

// NewPluginRC2Pass2Init returns a PluginRC2Pass2Init initialized to default values.
func NewPluginRC2Pass2Init(bitrate int, filename string) PluginRC2Pass2Init {
	return PluginRC2Pass2Init{
		Bitrate:                 bitrate,
		Filename:                filename,
		IFrameBoost:             10,
		OverflowControlStrength: 5,
		MaxOverflowImprovement:  5,
		MaxOverflowDegradation:  5,
		IFrameReduction:         20,
		IFrameThreshold:         1,
	}
}

// PluginRC2Pass2 returns an instance of the 2-pass rate-control plugin for the second pass.
func PluginRC2Pass2(init PluginRC2Pass2Init) Plugin {
	name := cString(init.Filename)
	return builtinPlugin{
		symbol: "xvid_plugin_2pass2",
		params: unsafe.Pointer(&plugin2Pass2Params{
			version:                 xvidVersion,
			bitrate:                 int32(init.Bitrate),
			filename:                name,
			keyframeBoost:           int32(init.IFrameBoost),
			curveCompressionHigh:    int32(init.CurveCompressionHigh),
			curveCompressionLow:     int32(init.CurveCompressionLow),
			overflowControlStrength: int32(init.OverflowControlStrength),
			maxOverflowImprovement:  int32(init.MaxOverflowImprovement),
			maxOverflowDegradation:  int32(init.MaxOverflowDegradation),
			kfReduction:             int32(init.IFrameReduction),
			kfThreshold:             int32(init.IFrameThreshold),
			containerFrameOverhead:  int32(init.ContainerFrameOverhead),
			vbvSize:                 int32(init.VBVSize),
			vbvInitial:              int32(init.VBVInitial),
			vbvMaxRate:              int32(init.VBVMaxRate),
			vbvPeakRate:             int32(init.VBVPeakRate),
		}),
		refs: []*byte{name},
	}
}

// MaskingMethod is a method used for lumi-masking (adaptive quantization).
type MaskingMethod uint32

const (
	// luminance masking
	MaskingLuminance MaskingMethod = 0
	// variance masking
	MaskingVariance MaskingMethod = 1
)

// PluginAdaptiveQuantization returns an instance of the adaptive quantization plugin
// (also called lumi-masking).
func PluginAdaptiveQuantization(method MaskingMethod) Plugin {
	return builtinPlugin{
		symbol: "xvid_plugin_lumimasking",
		params: unsafe.Pointer(&pluginLumiMaskingParams{
			version: xvidVersion,
			method:  native(method),
		}),
	}
}

// PluginPSNR returns an instance of a plugin that writes PSNR values to the standard output.
func PluginPSNR() Plugin {
	return builtinPlugin{symbol: "xvid_plugin_psnr"}
}

// PluginDump returns an instance of a plugin that writes original and encoded image data
// to files in YUV in PGM format in the working directory.
func PluginDump() Plugin {
	return builtinPlugin{symbol: "xvid_plugin_dump"}
}

// PluginSSIMInit is a configuration for the PluginSSIM plugin (write SSIM values).
// The SSIM values can be written to the standard output or to a file.
type PluginSSIMInit struct {
	// whether to output stats to stdout
	PrintStats bool
	// output stats filename (file will be overwritten); or empty to not output to a file
	StatsFilename string

	// SSIM computation accuracy from 0 (gaussian weighted, very slow), 1 (unweighted, slow) to 4 (unweighted, very fast); default is 2
	Accuracy int
	// CPU flags to use for the computation, or nil to use the autodetected CPU features
	CPUFlags *CPUFlag
}

// PluginSSIM returns an instance of a plugin that writes SSIM values to the standard output
// or to a file.
func PluginSSIM(init PluginSSIMInit) Plugin {
	p := builtinPlugin{symbol: "xvid_plugin_ssim"}
	params := &pluginSSIMParams{
		printStat: cbool(init.PrintStats),
		acc:       int32(init.Accuracy),
	}
	if init.StatsFilename != "" {
		params.statPath = cString(init.StatsFilename)
		p.refs = []*byte{params.statPath}
	}
	if init.CPUFlags != nil {
		params.cpuFlags = native(*init.CPUFlags | CPUForce)
	}
	p.params = unsafe.Pointer(params)
	return p
}

// PluginPSNRHVSM returns an instance of a plugin that writes PSNR-HVS-M values
// to the standard output.
func PluginPSNRHVSM() Plugin {
	return builtinPlugin{symbol: "xvid_plugin_psnrhvsm"}
}

// goPlugin is a Go Plugin registered with one Encoder.
type goPlugin struct {
	plugin Plugin
	zones  []EncoderZone
}

// goPlugins maps the opaque handles native code holds to Go plugins.
var goPlugins = newHandleTable()

// pluginQueue lists, in order, the Go plugins of the encoder being created.
// XVID_PLG_INFO carries no plugin parameter, so the Nth INFO call is
// attributed to the Nth Go plugin.
type pluginQueue struct {
	ids  []uintptr
	next int
}

var (
	creationMu sync.Mutex
	creating   atomic.Pointer[pluginQueue]
)

// goPluginDispatcher is the PluginHandler routing native callbacks to Go
// plugins. Its address identifies it in the handler slot.
var goPluginDispatcher PluginHandler = dispatchGoPlugin

func lookupGoPlugin(h uintptr) (*goPlugin, bool) {
	v, ok := goPlugins.get(h)
	if !ok {
		return nil, false
	}
	p, ok := v.(*goPlugin)
	return p, ok
}

func dispatchGoPlugin(handle unsafe.Pointer, option int32, param1, param2 unsafe.Pointer) int32 {
	switch option {
	case plgInfoOpt:
		q := creating.Load()
		if q == nil || q.next >= len(q.ids) {
			logger().Error("xvid: plugin info requested outside of encoder creation")
			return codeFail
		}
		id := q.ids[q.next]
		q.next++
		p, ok := lookupGoPlugin(id)
		if !ok {
			return codeFail
		}
		(*plgInfo)(param1).flags = native(p.plugin.Info())
		return 0
	case plgCreateOpt:
		create := (*plgCreate)(param1)
		p, ok := lookupGoPlugin(create.param)
		if !ok {
			logger().Error("xvid: plugin create for unknown handle", "handle", create.param)
			return codeFail
		}
		*(*uintptr)(param2) = create.param
		if !p.plugin.Init(PluginInit{
			Zones:             p.zones,
			Width:             int(create.width),
			Height:            int(create.height),
			WidthMacroBlocks:  int(create.mbWidth),
			HeightMacroBlocks: int(create.mbHeight),
			FrameRate:         Fraction{int(create.fbase), int(create.fincr)},
		}) {
			return codeFail
		}
		return 0
	case plgDestroyOpt:
		if param1 == nil {
			// encoder creation failed before the plugin was set up
			return 0
		}
		p, ok := lookupGoPlugin(uintptr(handle))
		if !ok {
			logger().Error("xvid: plugin destroy for unknown handle", "handle", uintptr(handle))
			return codeFail
		}
		p.plugin.Close(PluginClose{NumFrames: int(((*plgDestroy)(param1)).numFrames)})
		return 0
	case plgBeforeOpt, plgFrameOpt, plgAfterOpt:
		p, ok := lookupGoPlugin(uintptr(handle))
		if !ok {
			logger().Error("xvid: plugin callback for unknown handle", "handle", uintptr(handle), "option", option)
			return codeFail
		}
		nd := (*plgData)(param1)
		data := pluginReadData(nd)
		if data == nil {
			logger().Warn("xvid: unexpected plugin image colorspace, skipping callback", "option", option)
			return 0
		}
		switch option {
		case plgBeforeOpt:
			p.plugin.Before(data)
		case plgFrameOpt:
			p.plugin.Frame(data)
		default:
			p.plugin.After(data)
		}
		pluginWriteData(nd, data)
		return 0
	}
	logger().Debug("xvid: ignoring unknown plugin option", "option", option)
	return 0
}

// pluginReadData converts the native plugin data. It returns nil if the
// encoder images are not in the planar layout plugins expect.
func pluginReadData(d *plgData) *PluginData {
	var zone *EncoderZone
	if d.zone != nil {
		zone = &EncoderZone{
			Frame: int(d.zone.frame),
			Mode:  ZoneType(uint32(d.zone.mode)),
			Value: Fraction{int(d.zone.increment), int(d.zone.base)},
		}
	}
	data := &PluginData{
		Zone:                 zone,
		Width:                int(d.width),
		Height:               int(d.height),
		WidthMacroBlocks:     int(d.mbWidth),
		HeightMacroBlocks:    int(d.mbHeight),
		FrameRate:            Fraction{int(d.fbase), int(d.fincr)},
		QuantizerI:           QuantizerRange{int(d.minQuant[0]), int(d.maxQuant[0])},
		QuantizerP:           QuantizerRange{int(d.minQuant[1]), int(d.maxQuant[1])},
		QuantizerB:           QuantizerRange{int(d.minQuant[2]), int(d.maxQuant[2])},
		FrameNum:             int(d.frameNum),
		Type:                 FrameType(d.typ),
		Quantizer:            int(d.quant),
		DiffQuantizersStride: int(d.dquantStride),
		VOLFlags:             VOLFlag(uint32(d.volFlags)),
		VOPFlags:             VOPFlag(uint32(d.vopFlags)),
		MotionFlags:          MotionFlag(uint32(d.motionFlags)),
		BFrameQuantizer:      BFrameQuantizer{int(d.bquantRatio), int(d.bquantOffset)},
		Stats:                encoderStatsFrom(&d.stats, FrameType(d.stats.typ) == FrameTypeI),
	}
	reference := viewImage(&d.reference, data.Width, data.Height)
	current := viewImage(&d.current, data.Width, data.Height)
	if reference == nil || current == nil {
		return nil
	}
	data.Reference = *reference
	data.Current = *current
	if d.original.csp != 0 {
		original := viewImage(&d.original, data.Width, data.Height)
		if original == nil {
			return nil
		}
		data.Original = *original
	}
	mbs := data.WidthMacroBlocks * data.HeightMacroBlocks
	if d.dquant != nil && mbs > 0 {
		data.DiffQuantizers = unsafe.Slice(d.dquant, mbs)
	}
	if d.lambda != nil && mbs > 0 {
		data.Lambda = unsafe.Slice(d.lambda, 6*mbs)
	}
	return data
}

// pluginWriteData stores the writable fields back. DiffQuantizers and
// Lambda are written in place through their views.
func pluginWriteData(d *plgData, data *PluginData) {
	d.typ = int32(data.Type)
	d.quant = int32(data.Quantizer)
	d.volFlags = native(data.VOLFlags)
	d.vopFlags = native(data.VOPFlags)
	d.motionFlags = native(data.MotionFlags)
}
