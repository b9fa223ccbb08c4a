//go:build !xvidcgo && !(darwin || linux)

package xvid

import "unsafe"

func loadXvid() error {
	return ErrNotAvailable
}

// IsAvailable reports false: libxvidcore is only loaded on Linux and macOS
// without cgo. Build with the xvidcgo tag to link it on other platforms.
func IsAvailable() bool {
	return false
}

func xvidGlobal(op int32, param1, param2 unsafe.Pointer) int32 {
	return codeFail
}

func xvidDecore(handle unsafe.Pointer, op int32, param1, param2 unsafe.Pointer) int32 {
	return codeFail
}

func xvidEncore(handle unsafe.Pointer, op int32, param1, param2 unsafe.Pointer) int32 {
	return codeFail
}

func pluginCallbackAddr() uintptr {
	return 0
}

func builtinPluginAddr(symbol string) (uintptr, error) {
	return 0, ErrNotAvailable
}

func buildString(ptr uintptr) string {
	return ""
}
