//go:build xvidcgo

// libxvidcore backend using cgo: links directly against libxvidcore and
// builds against the installed xvid.h. Enabled with the xvidcgo build tag.

package xvid

/*
#cgo CFLAGS: -I${SRCDIR}/clib
#cgo LDFLAGS: -lxvidcore

#include "goxvid.h"

const unsigned int CPU_FORCE = XVID_CPU_FORCE;
const unsigned int DEBUG_DEBUG = XVID_DEBUG_DEBUG;
const unsigned int CSP_VFLIP = XVID_CSP_VFLIP;

vop_t vop_data(xvid_dec_stats_t *stats) {
  return (vop_t) {
    .general = stats->data.vop.general,
    .time_base = stats->data.vop.time_base,
    .time_increment = stats->data.vop.time_increment,
    .qscale = stats->data.vop.qscale,
    .qscale_stride = stats->data.vop.qscale_stride,
  };
}

vol_t vol_data(xvid_dec_stats_t *stats) {
  return (vol_t) {
    .general = stats->data.vol.general,
    .width = stats->data.vol.width,
    .height = stats->data.vol.height,
    .par = stats->data.vol.par,
    .par_width = stats->data.vol.par_width,
    .par_height = stats->data.vol.par_height,
  };
}

int pluginCallback_cgo(void *handle, int opt, void *param1, void *param2) {
  int pluginCallback(void *, int, void *, void *);
  return pluginCallback(handle, opt, param1, param2);
}

uintptr_t goxvid_plugin_addr(int which) {
  switch (which) {
  case 0: return (uintptr_t)&xvid_plugin_single;
  case 1: return (uintptr_t)&xvid_plugin_2pass1;
  case 2: return (uintptr_t)&xvid_plugin_2pass2;
  case 3: return (uintptr_t)&xvid_plugin_lumimasking;
  case 4: return (uintptr_t)&xvid_plugin_psnr;
  case 5: return (uintptr_t)&xvid_plugin_dump;
  case 6: return (uintptr_t)&xvid_plugin_ssim;
  case 7: return (uintptr_t)&xvid_plugin_psnrhvsm;
  }
  return 0;
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

var builtinPluginIndex = map[string]C.int{
	"xvid_plugin_single":      0,
	"xvid_plugin_2pass1":      1,
	"xvid_plugin_2pass2":      2,
	"xvid_plugin_lumimasking": 3,
	"xvid_plugin_psnr":        4,
	"xvid_plugin_dump":        5,
	"xvid_plugin_ssim":        6,
	"xvid_plugin_psnrhvsm":    7,
}

func loadXvid() error {
	return nil
}

// IsAvailable checks if libxvidcore is available.
// With cgo this is always true since it links at compile time.
func IsAvailable() bool {
	return true
}

func xvidGlobal(op int32, param1, param2 unsafe.Pointer) int32 {
	return int32(C.xvid_global(nil, C.int(op), param1, param2))
}

func xvidDecore(handle unsafe.Pointer, op int32, param1, param2 unsafe.Pointer) int32 {
	return int32(C.xvid_decore(handle, C.int(op), param1, param2))
}

func xvidEncore(handle unsafe.Pointer, op int32, param1, param2 unsafe.Pointer) int32 {
	return int32(C.xvid_encore(handle, C.int(op), param1, param2))
}

func pluginCallbackAddr() uintptr {
	return uintptr(unsafe.Pointer(C.pluginCallback_cgo))
}

func builtinPluginAddr(symbol string) (uintptr, error) {
	i, ok := builtinPluginIndex[symbol]
	if !ok {
		return 0, fmt.Errorf("xvid: resolve %s: unknown plugin", symbol)
	}
	return uintptr(C.goxvid_plugin_addr(i)), nil
}

func buildString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	return C.GoString((*C.char)(unsafe.Pointer(ptr)))
}

func vopData(b *StatsBlob) VOPData {
	v := C.vop_data((*C.xvid_dec_stats_t)(unsafe.Pointer(b)))
	return VOPData{
		General:       int32(v.general),
		TimeBase:      int32(v.time_base),
		TimeIncrement: int32(v.time_increment),
		QScaleStride:  int32(v.qscale_stride),
		qscale:        (*int32)(unsafe.Pointer(v.qscale)),
	}
}

func volData(b *StatsBlob) VOLData {
	v := C.vol_data((*C.xvid_dec_stats_t)(unsafe.Pointer(b)))
	return VOLData{
		General:   int32(v.general),
		Width:     int32(v.width),
		Height:    int32(v.height),
		PAR:       int32(v.par),
		PARWidth:  int32(v.par_width),
		PARHeight: int32(v.par_height),
	}
}

// bridgeConstants returns the sign-bit flags as seen by the C compiler.
func bridgeConstants() (cpuForce, debugDebug, cspVFlip uint32) {
	return uint32(C.CPU_FORCE), uint32(C.DEBUG_DEBUG), uint32(C.CSP_VFLIP)
}

type layoutCheck struct {
	name   string
	native uintptr
	mirror uintptr
}

// abiLayout pairs the size and selected offsets of each native structure
// with its Go mirror.
func abiLayout() []layoutCheck {
	return []layoutCheck{
		{"xvid_image_t", C.sizeof_xvid_image_t, unsafe.Sizeof(xvidImage{})},
		{"xvid_image_t.stride", unsafe.Offsetof(C.xvid_image_t{}.stride), unsafe.Offsetof(xvidImage{}.stride)},
		{"xvid_gbl_init_t", C.sizeof_xvid_gbl_init_t, unsafe.Sizeof(gblInit{})},
		{"xvid_gbl_info_t", C.sizeof_xvid_gbl_info_t, unsafe.Sizeof(gblInfo{})},
		{"xvid_gbl_info_t.build", unsafe.Offsetof(C.xvid_gbl_info_t{}.build), unsafe.Offsetof(gblInfo{}.build)},
		{"xvid_gbl_convert_t", C.sizeof_xvid_gbl_convert_t, unsafe.Sizeof(gblConvert{})},
		{"xvid_dec_create_t", C.sizeof_xvid_dec_create_t, unsafe.Sizeof(decCreate{})},
		{"xvid_dec_create_t.handle", unsafe.Offsetof(C.xvid_dec_create_t{}.handle), unsafe.Offsetof(decCreate{}.handle)},
		{"xvid_dec_frame_t", C.sizeof_xvid_dec_frame_t, unsafe.Sizeof(decFrame{})},
		{"xvid_dec_frame_t.output", unsafe.Offsetof(C.xvid_dec_frame_t{}.output), unsafe.Offsetof(decFrame{}.output)},
		{"xvid_dec_stats_t", C.sizeof_xvid_dec_stats_t, unsafe.Sizeof(StatsBlob{})},
		{"xvid_dec_stats_t.data", unsafe.Offsetof(C.xvid_dec_stats_t{}.data), unsafe.Offsetof(StatsBlob{}.data)},
		{"xvid_enc_zone_t", C.sizeof_xvid_enc_zone_t, unsafe.Sizeof(encZone{})},
		{"xvid_enc_plugin_t", C.sizeof_xvid_enc_plugin_t, unsafe.Sizeof(encPlugin{})},
		{"xvid_enc_create_t", C.sizeof_xvid_enc_create_t, unsafe.Sizeof(encCreate{})},
		{"xvid_enc_create_t.handle", unsafe.Offsetof(C.xvid_enc_create_t{}.handle), unsafe.Offsetof(encCreate{}.handle)},
		{"xvid_enc_frame_t", C.sizeof_xvid_enc_frame_t, unsafe.Sizeof(encFrame{})},
		{"xvid_enc_frame_t.input", unsafe.Offsetof(C.xvid_enc_frame_t{}.input), unsafe.Offsetof(encFrame{}.input)},
		{"xvid_enc_frame_t.out_flags", unsafe.Offsetof(C.xvid_enc_frame_t{}.out_flags), unsafe.Offsetof(encFrame{}.outFlags)},
		{"xvid_enc_stats_t", C.sizeof_xvid_enc_stats_t, unsafe.Sizeof(encStats{})},
		{"xvid_plg_info_t", C.sizeof_xvid_plg_info_t, unsafe.Sizeof(plgInfo{})},
		{"xvid_plg_create_t", C.sizeof_xvid_plg_create_t, unsafe.Sizeof(plgCreate{})},
		{"xvid_plg_create_t.param", unsafe.Offsetof(C.xvid_plg_create_t{}.param), unsafe.Offsetof(plgCreate{}.param)},
		{"xvid_plg_destroy_t", C.sizeof_xvid_plg_destroy_t, unsafe.Sizeof(plgDestroy{})},
		{"xvid_plg_data_t", C.sizeof_xvid_plg_data_t, unsafe.Sizeof(plgData{})},
		{"xvid_plg_data_t.reference", unsafe.Offsetof(C.xvid_plg_data_t{}.reference), unsafe.Offsetof(plgData{}.reference)},
		{"xvid_plg_data_t.lambda", unsafe.Offsetof(C.xvid_plg_data_t{}.lambda), unsafe.Offsetof(plgData{}.lambda)},
		{"xvid_plg_data_t.stats", unsafe.Offsetof(C.xvid_plg_data_t{}.stats), unsafe.Offsetof(plgData{}.stats)},
		{"xvid_plugin_single_t", C.sizeof_xvid_plugin_single_t, unsafe.Sizeof(pluginSingleParams{})},
		{"xvid_plugin_2pass1_t", C.sizeof_xvid_plugin_2pass1_t, unsafe.Sizeof(plugin2Pass1Params{})},
		{"xvid_plugin_2pass2_t", C.sizeof_xvid_plugin_2pass2_t, unsafe.Sizeof(plugin2Pass2Params{})},
		{"xvid_plugin_lumimasking_t", C.sizeof_xvid_plugin_lumimasking_t, unsafe.Sizeof(pluginLumiMaskingParams{})},
		{"xvid_plugin_ssim_t", C.sizeof_xvid_plugin_ssim_t, unsafe.Sizeof(pluginSSIMParams{})},
	}
}
