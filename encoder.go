package xvid

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"
)

// BufferSize returns the minimal output buffer size for encoding a frame.
// The Output buffer of an EncoderFrame will automatically be reallocated to
// this size if it is smaller.
func BufferSize(width int, height int) int {
	return 16384 + width*height*30*3/8 + 120 + 8
}

// BFrameQuantizer stores parameters for choosing B-frames quantizers.
// The actual formula used is:
//
//	quantizer = (average(pastReferenceQuantizer, futureReferenceQuantizer) * Ratio + Offset) / 100
type BFrameQuantizer struct {
	// ratio in percent (see formula); default is 150
	Ratio int `yaml:"ratio"`
	// offset in 0.01 units (see formula); default is 100
	Offset int `yaml:"offset"`
}

// Encoder is an initialized Xvid encoder.
// To create an Encoder, use NewEncoder.
// An Encoder must be closed after use, by calling its Close method.
// An Encoder is not safe for concurrent use.
type Encoder struct {
	handle unsafe.Pointer
	width  int
	height int

	// plugin parameter blocks, pinned for the encoder lifetime
	pinner    runtime.Pinner
	pluginIDs []uintptr
	closed    bool
}

// EncoderInit is information used to create an Encoder in NewEncoder.
// To initialize an EncoderInit with default values, use NewEncoderInit.
type EncoderInit struct {
	// frame width in pixels
	Width int
	// frame height in pixels
	Height int

	// optional encoder profile; default is EncoderProfileAuto for automatic profile selection
	Profile EncoderProfile
	// optional encoder bitrate zones, must be sorted in increasing frame start order
	Zones []EncoderZone
	// optional encoder plugins
	Plugins []Plugin
	// optional number of threads to use for encoding, 0 means single-threaded
	NumThreads int
	// optional maximum sequential B-frames, 0 means disabling B-frames; default is 2
	MaxBFrames int
	// optional global encoder flags; default is no flags
	Flags EncoderFlag

	// framerate; Numerator=0 means variable framerate; only the Denominator can be changed after initialization
	FrameRate Fraction

	// optional maximum interval between key frames; default is 300
	MaxKeyFrameInterval int
	// optional frame dropping ratio in percent between 0 (drop none) to 100 (drop all); default is 0
	FrameDropRatio int

	// optional B-frames quantizer multipier/offset; used when automatic quantizer is used
	BFrameQuantizer BFrameQuantizer

	// optional quantizer range for I frames
	QuantizerI QuantizerRange
	// optional quantizer range for P frames
	QuantizerP QuantizerRange
	// optional quantizer range for B frames
	QuantizerB QuantizerRange

	// optional starting frame number, relative to the zones start frames; default is 0
	StartFrameNumber int
	// optional number of slices to encode for each frame; default is 1
	NumSlices int
}

// EncoderZone is a bitrate enforcement zone used for encoding, which applies during
// a range of frames, starting on its Frame (inclusive) and ending on the next EncoderZone frame
// (exclusive).
type EncoderZone struct {
	// start frame (inclusive) of the zone
	Frame int
	// zone type
	Mode ZoneType
	// value, meaning depends on the ZoneType used
	Value Fraction
}

// EncoderFrame is information used when encoding a frame in Encoder.Encode.
// Its only required fields are the Input Image and its Output buffer.
type EncoderFrame struct {
	// input image to encode; nil flushes the frames the encoder still holds
	Input *Image
	// buffer to store the encoded frame data into, if pointing to a nil or too small slice, will realloc it to the minimum buffer size as returned by BufferSize
	Output *[]byte

	// optional flags for the next group of pictures; the encoder will not react to any changes until the next VOL (keyframe)
	VOLFlags VOLFlag
	// optional 8x8 row-major quantizer matrix for intraframe encoding
	QuantizerIntraMatrix []uint8
	// optional 8x8 row-major quantizer matrix for interframe encoding
	QuantizerInterMatrix []uint8
	// optional pixel aspect ratio, defaults to square pixel
	PixelAspectRatio PixelAspectRatio

	// optional; sets the frame rate by changing the Denominator of the frame rate fraction defined in Init; 0 means unchanged
	FrameRateDenominator int
	// optional encoding flags for this frame
	VOPFlags VOPFlag
	// optional motion estimation flags for this frame
	MotionFlags MotionFlag

	// optional forced type for this frame, defaults to FrameTypeAuto
	Type FrameType
	// optional quantizer for this frame, 0 defaults to automatic rate-controlled quantizer, recommended range is 2-31
	Quantizer int
	// optional adjustment for choosing between encoding a P-frame or a B-frame; > 0 means more B-frames, <0 means less B-frames
	BFrameThreshold int
}

// EncoderStats is information about an encoded frame, returned by Encoder.Encode.
type EncoderStats struct {
	// frame type of the encoded frame
	FrameType FrameType
	// whether this frame was encoded as a key frame
	KeyFrame bool
	// quantizer used for the frame
	Quantizer int
	// actual VOL flags used for the frame
	VOLFlags VOLFlag
	// actual VOP flags used for the frame
	VOPFlags VOPFlag
	// length of frame in bytes
	Length int
	// length of frame header in bytes
	HeaderLength int
	// number of blocks coded as intra
	IntraBlocks int
	// number of blocks coded as inter
	InterBlocks int
	// number of blocks not coded
	UncodedBlocks int

	// only present if VOLExtraStats is set; Y plane SSE
	SSEY int
	// only present if VOLExtraStats is set; U plane SSE
	SSEU int
	// only present if VOLExtraStats is set; V plane SSE
	SSEV int
}

func encoderStatsFrom(s *encStats, keyFrame bool) EncoderStats {
	return EncoderStats{
		FrameType:     FrameType(s.typ),
		KeyFrame:      keyFrame,
		Quantizer:     int(s.quant),
		VOLFlags:      VOLFlag(uint32(s.volFlags)),
		VOPFlags:      VOPFlag(uint32(s.vopFlags)),
		Length:        int(s.length),
		HeaderLength:  int(s.hlength),
		IntraBlocks:   int(s.kblks),
		InterBlocks:   int(s.mblks),
		UncodedBlocks: int(s.ublks),
		SSEY:          int(s.sseY),
		SSEU:          int(s.sseU),
		SSEV:          int(s.sseV),
	}
}

// NewEncoderInit returns an EncoderInit initialized with the default encoding parameters.
//
// Rate control is done with plugins: either 1-pass with PluginRC1Pass, or 2-pass
// with PluginRC2Pass1 (on the first pass) and PluginRC2Pass2 (on the second pass).
func NewEncoderInit(width int, height int, frameRate Fraction, plugins []Plugin) *EncoderInit {
	nThreads := 1
	if info, err := GetGlobalInfo(); err == nil && info.NumThreads > 2 {
		nThreads = info.NumThreads - 1
	}
	return &EncoderInit{
		Width:               width,
		Height:              height,
		Profile:             EncoderProfileAuto,
		Plugins:             plugins,
		NumThreads:          nThreads,
		MaxBFrames:          2,
		FrameRate:           frameRate,
		MaxKeyFrameInterval: 300,
		BFrameQuantizer:     BFrameQuantizer{150, 100},
		NumSlices:           1,
	}
}

var errNilEncoderInit = errors.New("xvid: EncoderInit must not be nil")

// NewEncoder creates a new Encoder based on a EncoderInit configuration. Init (or InitWithFlags) must be called once before calling this function.
// The Encoder is non-nil if and only if the returned error is nil.
//
// Go plugins in init.Plugins are driven through the native plugin callback;
// NewEncoder fails with ErrPluginHandlerInUse if a custom PluginHandler owns it.
func NewEncoder(init *EncoderInit) (*Encoder, error) {
	if init == nil {
		return nil, errNilEncoderInit
	}
	if err := loadXvid(); err != nil {
		return nil, err
	}
	e := &Encoder{
		width:  init.Width,
		height: init.Height,
	}

	var call runtime.Pinner
	defer call.Unpin()

	var zones *encZone
	if len(init.Zones) > 0 {
		nz := make([]encZone, len(init.Zones))
		for i, z := range init.Zones {
			nz[i] = encZone{
				frame:     int32(z.Frame),
				mode:      native(z.Mode),
				increment: int32(z.Value.Numerator),
				base:      int32(z.Value.Denominator),
			}
		}
		zones = &nz[0]
		call.Pin(zones)
	}

	queue := &pluginQueue{}
	var plugins *encPlugin
	if len(init.Plugins) > 0 {
		np := make([]encPlugin, len(init.Plugins))
		for i, p := range init.Plugins {
			var err error
			if np[i], err = e.nativePlugin(p, init.Zones); err != nil {
				e.release()
				return nil, err
			}
			if b, ok := p.(builtinPlugin); !ok || b.symbol == "" {
				queue.ids = append(queue.ids, np[i].param)
			}
		}
		plugins = &np[0]
		call.Pin(plugins)
	}

	create := encCreate{
		version:        xvidVersion,
		profile:        native(init.Profile),
		width:          int32(init.Width),
		height:         int32(init.Height),
		numZones:       int32(len(init.Zones)),
		zones:          zones,
		numPlugins:     int32(len(init.Plugins)),
		plugins:        plugins,
		numThreads:     int32(init.NumThreads),
		maxBFrames:     int32(init.MaxBFrames),
		global:         native(init.Flags),
		fincr:          int32(init.FrameRate.Denominator),
		fbase:          int32(init.FrameRate.Numerator),
		maxKeyInterval: int32(init.MaxKeyFrameInterval),
		frameDropRatio: int32(init.FrameDropRatio),
		bquantRatio:    int32(init.BFrameQuantizer.Ratio),
		bquantOffset:   int32(init.BFrameQuantizer.Offset),
		minQuant:       [3]int32{int32(init.QuantizerI.Min), int32(init.QuantizerP.Min), int32(init.QuantizerB.Min)},
		maxQuant:       [3]int32{int32(init.QuantizerI.Max), int32(init.QuantizerP.Max), int32(init.QuantizerB.Max)},
		startFrameNum:  int32(init.StartFrameNumber),
		numSlices:      int32(init.NumSlices),
	}

	creationMu.Lock()
	creating.Store(queue)
	code := xvidEncore(nil, opEncCreate, unsafe.Pointer(&create), nil)
	creating.Store(nil)
	creationMu.Unlock()

	if code != 0 {
		e.release()
		return nil, xvidErr(code)
	}
	e.handle = create.handle
	return e, nil
}

// nativePlugin resolves p to a native plugin entry. Built-in parameter
// blocks are pinned for the encoder lifetime; Go plugins get a handle.
func (e *Encoder) nativePlugin(p Plugin, zones []EncoderZone) (encPlugin, error) {
	if b, ok := p.(builtinPlugin); ok && b.symbol != "" {
		fn, err := builtinPluginAddr(b.symbol)
		if err != nil {
			return encPlugin{}, err
		}
		for _, ref := range b.refs {
			e.pinner.Pin(ref)
		}
		if b.params != nil {
			e.pinner.Pin(b.params)
		}
		return encPlugin{fn: fn, param: uintptr(b.params)}, nil
	}
	if p == nil {
		return encPlugin{}, fmt.Errorf("xvid: nil plugin")
	}
	if err := pluginHandlers.claim(&goPluginDispatcher); err != nil {
		return encPlugin{}, err
	}
	fn := pluginCallbackAddr()
	if fn == 0 {
		return encPlugin{}, ErrNotAvailable
	}
	id := goPlugins.add(&goPlugin{plugin: p, zones: zones})
	e.pluginIDs = append(e.pluginIDs, id)
	return encPlugin{fn: fn, param: id}, nil
}

// release drops the plugin handles and pins held by e.
func (e *Encoder) release() {
	for _, id := range e.pluginIDs {
		goPlugins.delete(id)
	}
	e.pluginIDs = nil
	e.pinner.Unpin()
}

// Encode encodes a single Image to an encoded Xvid stream.
//
// Encode returns the length in bytes of the data written to Output. The
// Encoder might write data and return a non-zero length even if no frame
// was written (EncoderStats is nil), as xvidcore buffers frames internally.
//
// EncoderStats is nil when no frame was encoded.
func (e *Encoder) Encode(frame EncoderFrame) (int, *EncoderStats, error) {
	if e.closed {
		return 0, nil, ErrEncoderClosed
	}
	if frame.Output == nil {
		return 0, nil, fmt.Errorf("xvid: EncoderFrame.Output must not be nil")
	}
	var pinner runtime.Pinner
	defer pinner.Unpin()

	intra, err := quantMatrix(&pinner, "intra", frame.QuantizerIntraMatrix)
	if err != nil {
		return 0, nil, err
	}
	inter, err := quantMatrix(&pinner, "inter", frame.QuantizerInterMatrix)
	if err != nil {
		return 0, nil, err
	}
	input := xvidImage{csp: cspNull}
	if frame.Input != nil {
		if input, err = frame.Input.nativeInput(&pinner, e.width, e.height); err != nil {
			return 0, nil, err
		}
	}
	if l := BufferSize(e.width, e.height); len(*frame.Output) < l {
		*frame.Output = make([]byte, l)
	}
	out := *frame.Output
	pinner.Pin(&out[0])

	ef := encFrame{
		version:          xvidVersion,
		volFlags:         native(frame.VOLFlags),
		quantIntraMatrix: intra,
		quantInterMatrix: inter,
		par:              frame.PixelAspectRatio.nativeValue(),
		parWidth:         int32(frame.PixelAspectRatio.Width),
		parHeight:        int32(frame.PixelAspectRatio.Height),
		fincr:            int32(frame.FrameRateDenominator),
		vopFlags:         native(frame.VOPFlags),
		motion:           native(frame.MotionFlags),
		input:            input,
		typ:              int32(frame.Type),
		quant:            int32(frame.Quantizer),
		bframeThreshold:  int32(frame.BFrameThreshold),
		bitstream:        unsafe.Pointer(&out[0]),
		length:           int32(len(out)),
	}
	stats := encStats{version: xvidVersion}
	code := xvidEncore(e.handle, opEncEncode, unsafe.Pointer(&ef), unsafe.Pointer(&stats))
	if code < 0 {
		return 0, nil, xvidErr(code)
	}
	if FrameType(stats.typ) == frameTypeNothing {
		return int(code), nil, nil
	}
	s := encoderStatsFrom(&stats, ef.outFlags&encKeyframe != 0)
	return int(code), &s, nil
}

func quantMatrix(p *runtime.Pinner, kind string, m []uint8) (*uint8, error) {
	if m == nil {
		return nil, nil
	}
	if len(m) != 64 {
		return nil, fmt.Errorf("xvid: expected quantization %s table of 64 coefficients, got %d", kind, len(m))
	}
	p.Pin(&m[0])
	return &m[0], nil
}

// Close closes any internal resources specific to the Encoder, calling the
// Close method of its Go plugins. Close is idempotent.
func (e *Encoder) Close() {
	if e.closed {
		return
	}
	e.closed = true
	xvidEncore(e.handle, opEncDestroy, nil, nil)
	e.release()
}
