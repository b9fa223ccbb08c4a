package xvid

import (
	"testing"
	"unsafe"
)

// recordingPlugin records its callbacks and raises the quantizer in Before.
type recordingPlugin struct {
	info    PluginFlag
	refuse  bool
	init    *PluginInit
	closed  *PluginClose
	befores int
	afters  []PluginData
}

func (p *recordingPlugin) Info() PluginFlag { return p.info }
func (p *recordingPlugin) Init(create PluginInit) bool {
	p.init = &create
	return !p.refuse
}
func (p *recordingPlugin) Close(close PluginClose) { p.closed = &close }
func (p *recordingPlugin) Before(data *PluginData) {
	p.befores++
	data.Quantizer = 7
	data.VOPFlags |= VOPTrellisQuantization
	if len(data.DiffQuantizers) > 0 {
		data.DiffQuantizers[0] = -2
	}
}
func (p *recordingPlugin) Frame(data *PluginData) {}
func (p *recordingPlugin) After(data *PluginData) { p.afters = append(p.afters, *data) }

func registerGoPlugin(t *testing.T, p Plugin, zones []EncoderZone) uintptr {
	t.Helper()
	id := goPlugins.add(&goPlugin{plugin: p, zones: zones})
	t.Cleanup(func() { goPlugins.delete(id) })
	return id
}

// handleArg passes a plugin id the way xvidcore does, as the handle argument.
func handleArg(id uintptr) unsafe.Pointer {
	return unsafe.Pointer(id)
}

// planarData returns plugin data for an 8x8 frame (one macroblock) with
// planar reference and current images.
func planarData(planes *[3][]byte) plgData {
	for j := range planes {
		if planes[j] == nil {
			planes[j] = make([]byte, 64)
		}
	}
	img := xvidImage{csp: cspPlanar, stride: [4]int32{8, 4, 4}}
	for j := range planes {
		img.plane[j] = unsafe.Pointer(&planes[j][0])
	}
	return plgData{
		version:   xvidVersion,
		width:     8,
		height:    8,
		mbWidth:   1,
		mbHeight:  1,
		fincr:     1,
		fbase:     25,
		minQuant:  [3]int32{2, 3, 4},
		maxQuant:  [3]int32{31, 30, 29},
		reference: img,
		current:   img,
		frameNum:  12,
		typ:       int32(FrameTypeP),
		quant:     5,
		vopFlags:  int32(VOPHalfPixel),
	}
}

func TestGoPluginInfoQueue(t *testing.T) {
	a := registerGoPlugin(t, &recordingPlugin{info: PluginRequireOriginal}, nil)
	b := registerGoPlugin(t, &recordingPlugin{info: PluginRequireDiffQuantizer | PluginRequireLambda}, nil)

	creationMu.Lock()
	creating.Store(&pluginQueue{ids: []uintptr{a, b}})
	defer func() {
		creating.Store(nil)
		creationMu.Unlock()
	}()

	var info plgInfo
	if got := dispatchGoPlugin(nil, plgInfoOpt, unsafe.Pointer(&info), nil); got != 0 {
		t.Fatalf("INFO = %d, want 0", got)
	}
	if PluginFlag(info.flags) != PluginRequireOriginal {
		t.Errorf("first INFO flags = %#x, want %#x", info.flags, PluginRequireOriginal)
	}
	if got := dispatchGoPlugin(nil, plgInfoOpt, unsafe.Pointer(&info), nil); got != 0 {
		t.Fatalf("INFO = %d, want 0", got)
	}
	if PluginFlag(info.flags) != PluginRequireDiffQuantizer|PluginRequireLambda {
		t.Errorf("second INFO flags = %#x", info.flags)
	}
	// more INFO calls than Go plugins
	if got := dispatchGoPlugin(nil, plgInfoOpt, unsafe.Pointer(&info), nil); got != -1 {
		t.Errorf("extra INFO = %d, want -1", got)
	}
}

func TestGoPluginInfoOutsideCreation(t *testing.T) {
	var info plgInfo
	if got := dispatchGoPlugin(nil, plgInfoOpt, unsafe.Pointer(&info), nil); got != -1 {
		t.Errorf("INFO = %d, want -1", got)
	}
}

func TestGoPluginCreate(t *testing.T) {
	zones := []EncoderZone{{Frame: 0, Mode: ZoneModeWeight, Value: Fraction{1, 1}}}
	plugin := &recordingPlugin{}
	id := registerGoPlugin(t, plugin, zones)

	create := plgCreate{
		version:  xvidVersion,
		width:    320,
		height:   240,
		mbWidth:  20,
		mbHeight: 15,
		fincr:    1,
		fbase:    30,
		param:    id,
	}
	var handle uintptr
	if got := dispatchGoPlugin(nil, plgCreateOpt, unsafe.Pointer(&create), unsafe.Pointer(&handle)); got != 0 {
		t.Fatalf("CREATE = %d, want 0", got)
	}
	if handle != id {
		t.Errorf("handle = %d, want %d", handle, id)
	}
	if plugin.init == nil {
		t.Fatal("Init not called")
	}
	if plugin.init.Width != 320 || plugin.init.HeightMacroBlocks != 15 {
		t.Errorf("init = %+v", *plugin.init)
	}
	if plugin.init.FrameRate != (Fraction{30, 1}) {
		t.Errorf("FrameRate = %+v, want 30/1", plugin.init.FrameRate)
	}
	if len(plugin.init.Zones) != 1 || plugin.init.Zones[0].Mode != ZoneModeWeight {
		t.Errorf("Zones = %+v", plugin.init.Zones)
	}
}

func TestGoPluginCreateRefused(t *testing.T) {
	id := registerGoPlugin(t, &recordingPlugin{refuse: true}, nil)
	create := plgCreate{version: xvidVersion, param: id}
	var handle uintptr
	if got := dispatchGoPlugin(nil, plgCreateOpt, unsafe.Pointer(&create), unsafe.Pointer(&handle)); got != -1 {
		t.Errorf("CREATE = %d, want -1", got)
	}
}

func TestGoPluginCreateUnknownHandle(t *testing.T) {
	create := plgCreate{version: xvidVersion, param: ^uintptr(0)}
	var handle uintptr
	if got := dispatchGoPlugin(nil, plgCreateOpt, unsafe.Pointer(&create), unsafe.Pointer(&handle)); got != -1 {
		t.Errorf("CREATE = %d, want -1", got)
	}
}

func TestGoPluginBeforeWritesBack(t *testing.T) {
	plugin := &recordingPlugin{}
	id := registerGoPlugin(t, plugin, nil)

	var planes [3][]byte
	nd := planarData(&planes)
	dquant := []int32{0}
	nd.dquant = &dquant[0]
	nd.dquantStride = 1

	if got := dispatchGoPlugin(handleArg(id), plgBeforeOpt, unsafe.Pointer(&nd), nil); got != 0 {
		t.Fatalf("BEFORE = %d, want 0", got)
	}
	if plugin.befores != 1 {
		t.Errorf("Before called %d times, want 1", plugin.befores)
	}
	if nd.quant != 7 {
		t.Errorf("quant = %d, want 7", nd.quant)
	}
	if VOPFlag(nd.vopFlags) != VOPHalfPixel|VOPTrellisQuantization {
		t.Errorf("vopFlags = %#x", nd.vopFlags)
	}
	if dquant[0] != -2 {
		t.Errorf("dquant[0] = %d, want -2 (written through the view)", dquant[0])
	}
}

func TestGoPluginAfterReadsData(t *testing.T) {
	plugin := &recordingPlugin{}
	id := registerGoPlugin(t, plugin, nil)

	var planes [3][]byte
	planes[0] = make([]byte, 64)
	planes[0][9] = 200
	nd := planarData(&planes)
	nd.stats = encStats{version: xvidVersion, typ: int32(FrameTypeI), quant: 5, length: 1234}

	if got := dispatchGoPlugin(handleArg(id), plgAfterOpt, unsafe.Pointer(&nd), nil); got != 0 {
		t.Fatalf("AFTER = %d, want 0", got)
	}
	if len(plugin.afters) != 1 {
		t.Fatalf("After called %d times, want 1", len(plugin.afters))
	}
	data := plugin.afters[0]
	if data.FrameNum != 12 || data.Type != FrameTypeP || data.Quantizer != 5 {
		t.Errorf("data = frame %d type %v quant %d", data.FrameNum, data.Type, data.Quantizer)
	}
	if data.QuantizerP != (QuantizerRange{3, 30}) {
		t.Errorf("QuantizerP = %+v, want {3 30}", data.QuantizerP)
	}
	if data.FrameRate != (Fraction{25, 1}) {
		t.Errorf("FrameRate = %+v, want 25/1", data.FrameRate)
	}
	if data.Current.Planes[0][9] != 200 {
		t.Error("current image does not view the encoder plane")
	}
	if !data.Stats.KeyFrame || data.Stats.Length != 1234 {
		t.Errorf("Stats = %+v", data.Stats)
	}
	if data.DiffQuantizers != nil || data.Lambda != nil {
		t.Error("tables present although not requested")
	}
}

func TestGoPluginSkipsPackedImages(t *testing.T) {
	plugin := &recordingPlugin{}
	id := registerGoPlugin(t, plugin, nil)

	var planes [3][]byte
	nd := planarData(&planes)
	nd.current.csp = cspRGBA
	if got := dispatchGoPlugin(handleArg(id), plgBeforeOpt, unsafe.Pointer(&nd), nil); got != 0 {
		t.Fatalf("BEFORE = %d, want 0", got)
	}
	if plugin.befores != 0 {
		t.Error("Before called with a packed image")
	}
	if nd.quant != 5 {
		t.Errorf("quant = %d, want 5 (untouched)", nd.quant)
	}
}

func TestGoPluginDestroy(t *testing.T) {
	plugin := &recordingPlugin{}
	id := registerGoPlugin(t, plugin, nil)

	// creation failed before the plugin was set up
	if got := dispatchGoPlugin(nil, plgDestroyOpt, nil, nil); got != 0 {
		t.Errorf("DESTROY(nil) = %d, want 0", got)
	}
	destroy := plgDestroy{version: xvidVersion, numFrames: 250}
	if got := dispatchGoPlugin(handleArg(id), plgDestroyOpt, unsafe.Pointer(&destroy), nil); got != 0 {
		t.Fatalf("DESTROY = %d, want 0", got)
	}
	if plugin.closed == nil || plugin.closed.NumFrames != 250 {
		t.Errorf("Close got %+v, want 250 frames", plugin.closed)
	}
}

func TestGoPluginUnknown(t *testing.T) {
	var planes [3][]byte
	nd := planarData(&planes)
	if got := dispatchGoPlugin(unsafe.Pointer(new(byte)), plgFrameOpt, unsafe.Pointer(&nd), nil); got != -1 {
		t.Errorf("FRAME on unknown handle = %d, want -1", got)
	}
	if got := dispatchGoPlugin(nil, 1<<20, nil, nil); got != 0 {
		t.Errorf("unknown option = %d, want 0", got)
	}
}

func TestBuiltinPluginParams(t *testing.T) {
	p := PluginRC1Pass(NewPluginRC1PassInit(250_000)).(builtinPlugin)
	if p.symbol != "xvid_plugin_single" {
		t.Errorf("symbol = %q", p.symbol)
	}
	single := (*pluginSingleParams)(p.params)
	if single.version != xvidVersion || single.bitrate != 250_000 || single.reactionDelayFactor != 16 {
		t.Errorf("params = %+v", *single)
	}

	p = PluginRC2Pass1("stats.pass").(builtinPlugin)
	pass1 := (*plugin2Pass1Params)(p.params)
	if got := unsafe.String(pass1.filename, len("stats.pass")); got != "stats.pass" {
		t.Errorf("filename = %q", got)
	}
	if *(*byte)(unsafe.Add(unsafe.Pointer(pass1.filename), len("stats.pass"))) != 0 {
		t.Error("filename not NUL-terminated")
	}
	if len(p.refs) != 1 || p.refs[0] != pass1.filename {
		t.Error("filename not kept in refs")
	}

	flags := CPU_MMX
	p = PluginSSIM(PluginSSIMInit{Accuracy: 2, CPUFlags: &flags}).(builtinPlugin)
	ssim := (*pluginSSIMParams)(p.params)
	if uint32(ssim.cpuFlags) != uint32(CPUForce|CPU_MMX) {
		t.Errorf("ssim cpu flags = %#x, want forced MMX", uint32(ssim.cpuFlags))
	}
	if ssim.statPath != nil || len(p.refs) != 0 {
		t.Error("stat path set without a filename")
	}

	if p := PluginPSNR().(builtinPlugin); p.params != nil || p.symbol != "xvid_plugin_psnr" {
		t.Errorf("psnr = %+v", p)
	}
}
