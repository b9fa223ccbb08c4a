// Go mirrors of the xvid.h structures exchanged with xvidcore.
//
// Layouts must match the C definitions field for field (C int is 32 bits on
// every supported platform). The cgo build checks them against the real
// headers in abi_cgo_test.go.

package xvid

import "unsafe"

// xvidVersion is XVID_MAKE_VERSION(1,3,0); xvidcore only checks the major.
const xvidVersion int32 = 1<<16 | 3<<8

// Return codes.
const (
	codeFail    = -1
	codeMemory  = -2
	codeFormat  = -3
	codeVersion = -4
	codeEnd     = -5
)

// xvid_global operations.
const (
	opGlobalInit    int32 = 0
	opGlobalInfo    int32 = 1
	opGlobalConvert int32 = 2
)

// xvid_decore operations.
const (
	opDecCreate  int32 = 0
	opDecDestroy int32 = 1
	opDecDecode  int32 = 2
)

// xvid_encore operations.
const (
	opEncCreate  int32 = 0
	opEncDestroy int32 = 1
	opEncEncode  int32 = 2
)

// Plugin callback options.
const (
	plgCreateOpt  int32 = 1 << 0
	plgDestroyOpt int32 = 1 << 1
	plgInfoOpt    int32 = 1 << 2
	plgBeforeOpt  int32 = 1 << 3
	plgFrameOpt   int32 = 1 << 4
	plgAfterOpt   int32 = 1 << 5
)

// encKeyframe is XVID_KEYFRAME in xvid_enc_frame_t.out_flags.
const encKeyframe int32 = 1 << 1

// Pixel aspect ratio codes.
const (
	par11VGA   int32 = 1
	par43PAL   int32 = 2
	par43NTSC  int32 = 3
	par169PAL  int32 = 4
	par169NTSC int32 = 5
	parExt     int32 = 15
)

// xvid_image_t
type xvidImage struct {
	csp    int32
	plane  [4]unsafe.Pointer
	stride [4]int32
}

// xvid_gbl_init_t
type gblInit struct {
	version  int32
	cpuFlags uint32
	debug    int32
}

// xvid_gbl_info_t
type gblInfo struct {
	version       int32
	actualVersion int32
	build         uintptr
	cpuFlags      uint32
	numThreads    int32
}

// xvid_gbl_convert_t
type gblConvert struct {
	version     int32
	input       xvidImage
	output      xvidImage
	width       int32
	height      int32
	interlacing int32
}

// xvid_dec_create_t
type decCreate struct {
	version    int32
	width      int32
	height     int32
	handle     unsafe.Pointer
	fourcc     int32
	numThreads int32
}

// xvid_dec_frame_t
type decFrame struct {
	version    int32
	general    int32
	bitstream  unsafe.Pointer
	length     int32
	output     xvidImage
	brightness int32
}

// vopArm is the vop member of the xvid_dec_stats_t data union. It is the
// largest member, so it also provides the storage for the union.
type vopArm struct {
	general       int32
	timeBase      int32
	timeIncrement int32
	qscale        *int32
	qscaleStride  int32
}

// volArm is the vol member of the xvid_dec_stats_t data union.
type volArm struct {
	general   int32
	width     int32
	height    int32
	par       int32
	parWidth  int32
	parHeight int32
}

// xvid_enc_zone_t
type encZone struct {
	frame     int32
	mode      int32
	increment int32
	base      int32
}

// xvid_enc_plugin_t. param is an opaque word: a native parameter block for
// built-in plugins, a handle table id for Go plugins.
type encPlugin struct {
	fn    uintptr
	param uintptr
}

// xvid_enc_create_t
type encCreate struct {
	version        int32
	profile        int32
	width          int32
	height         int32
	numZones       int32
	zones          *encZone
	numPlugins     int32
	plugins        *encPlugin
	numThreads     int32
	maxBFrames     int32
	global         int32
	fincr          int32
	fbase          int32
	maxKeyInterval int32
	frameDropRatio int32
	bquantRatio    int32
	bquantOffset   int32
	minQuant       [3]int32
	maxQuant       [3]int32
	handle         unsafe.Pointer
	startFrameNum  int32
	numSlices      int32
}

// xvid_enc_frame_t
type encFrame struct {
	version          int32
	volFlags         int32
	quantIntraMatrix *uint8
	quantInterMatrix *uint8
	par              int32
	parWidth         int32
	parHeight        int32
	fincr            int32
	vopFlags         int32
	motion           int32
	input            xvidImage
	typ              int32
	quant            int32
	bframeThreshold  int32
	bitstream        unsafe.Pointer
	length           int32
	outFlags         int32
}

// xvid_enc_stats_t
type encStats struct {
	version  int32
	typ      int32
	quant    int32
	volFlags int32
	vopFlags int32
	length   int32
	hlength  int32
	kblks    int32
	mblks    int32
	ublks    int32
	sseY     int32
	sseU     int32
	sseV     int32
}

// xvid_plg_info_t
type plgInfo struct {
	version int32
	flags   int32
}

// xvid_plg_create_t
type plgCreate struct {
	version  int32
	numZones int32
	zones    *encZone
	width    int32
	height   int32
	mbWidth  int32
	mbHeight int32
	fincr    int32
	fbase    int32
	param    uintptr
}

// xvid_plg_destroy_t
type plgDestroy struct {
	version   int32
	numFrames int32
}

// xvid_plg_data_t
type plgData struct {
	version      int32
	zone         *encZone
	width        int32
	height       int32
	mbWidth      int32
	mbHeight     int32
	fincr        int32
	fbase        int32
	minQuant     [3]int32
	maxQuant     [3]int32
	reference    xvidImage
	current      xvidImage
	original     xvidImage
	frameNum     int32
	typ          int32
	quant        int32
	dquant       *int32
	dquantStride int32
	vopFlags     int32
	volFlags     int32
	motionFlags  int32
	lambda       *float32
	bquantRatio  int32
	bquantOffset int32
	stats        encStats
}

// Built-in plugin parameter blocks.

// xvid_plugin_single_t
type pluginSingleParams struct {
	version             int32
	bitrate             int32
	reactionDelayFactor int32
	averagingPeriod     int32
	buffer              int32
}

// xvid_plugin_2pass1_t
type plugin2Pass1Params struct {
	version  int32
	filename *byte
}

// xvid_plugin_2pass2_t
type plugin2Pass2Params struct {
	version                 int32
	bitrate                 int32
	filename                *byte
	keyframeBoost           int32
	curveCompressionHigh    int32
	curveCompressionLow     int32
	overflowControlStrength int32
	maxOverflowImprovement  int32
	maxOverflowDegradation  int32
	kfReduction             int32
	kfThreshold             int32
	containerFrameOverhead  int32
	vbvSize                 int32
	vbvInitial              int32
	vbvMaxRate              int32
	vbvPeakRate             int32
}

// xvid_plugin_lumimasking_t
type pluginLumiMaskingParams struct {
	version int32
	method  int32
}

// xvid_plugin_ssim_t
type pluginSSIMParams struct {
	printStat int32
	statPath  *byte
	visualize int32
	acc       int32
	cpuFlags  int32
}
