//go:build xvidcgo

package xvid

/*
#cgo CFLAGS: -I${SRCDIR}/clib

#include "goxvid.h"
*/
import "C"

import "unsafe"

//export pluginCallback
func pluginCallback(handle unsafe.Pointer, option C.int, param1, param2 unsafe.Pointer) C.int {
	return C.int(invokePluginCallback(handle, int32(option), param1, param2))
}
