//go:build (darwin || linux) && !xvidcgo

// libxvidcore backend using purego: the library is loaded at runtime, so
// the package builds without cgo or the xvid headers.
//
// Library locations checked (in order):
//   - XVID_LIB_PATH environment variable (full path)
//   - XVID_SDK_LIB_PATH environment variable (directory)
//   - next to the executable, build/ directories of the working directory
//     and the module root
//   - System library paths

package xvid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	xvidOnce    sync.Once
	xvidHandle  uintptr
	xvidInitErr error
	xvidLoaded  bool
)

// libxvidcore entry points
var (
	xvidGlobalFn func(handle unsafe.Pointer, op int32, param1, param2 unsafe.Pointer) int32
	xvidDecoreFn func(handle unsafe.Pointer, op int32, param1, param2 unsafe.Pointer) int32
	xvidEncoreFn func(handle unsafe.Pointer, op int32, param1, param2 unsafe.Pointer) int32
)

var (
	callbackOnce sync.Once
	callbackPtr  uintptr
)

// loadXvid loads the libxvidcore shared library.
func loadXvid() error {
	xvidOnce.Do(func() {
		xvidInitErr = loadXvidLib()
		if xvidInitErr == nil {
			xvidLoaded = true
			logger().Debug("xvid: loaded libxvidcore", "backend", "purego")
		}
	})
	return xvidInitErr
}

func loadXvidLib() error {
	paths := getXvidLibPaths()

	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			xvidHandle = handle
			if err := loadXvidSymbols(); err != nil {
				purego.Dlclose(handle)
				lastErr = err
				continue
			}
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %w", ErrNotAvailable, lastErr)
	}
	return errors.New("libxvidcore not found in any standard location")
}

func xvidLibNames() []string {
	if runtime.GOOS == "darwin" {
		return []string{"libxvidcore.4.dylib", "libxvidcore.dylib"}
	}
	return []string{"libxvidcore.so.4", "libxvidcore.so"}
}

func getXvidLibPaths() []string {
	var paths []string
	libNames := xvidLibNames()

	// Environment variable overrides
	if envPath := os.Getenv("XVID_LIB_PATH"); envPath != "" {
		paths = append(paths, envPath)
	}
	if envPath := os.Getenv("XVID_SDK_LIB_PATH"); envPath != "" {
		for _, libName := range libNames {
			paths = append(paths, filepath.Join(envPath, libName))
		}
	}

	var dirs []string
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		dirs = append(dirs, exeDir, filepath.Join(exeDir, "..", "lib"))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs,
			filepath.Join(wd, "build"),
			filepath.Join(wd, "..", "build"),
			filepath.Join(wd, "..", "..", "build"),
		)
	}
	if root := findModuleRoot(); root != "" {
		dirs = append(dirs, filepath.Join(root, "build"))
	}
	if root := findSourceRoot(); root != "" {
		dirs = append(dirs, filepath.Join(root, "build"))
	}
	for _, dir := range dirs {
		for _, libName := range libNames {
			paths = append(paths, filepath.Join(dir, libName))
		}
	}

	// System paths
	for _, libName := range libNames {
		paths = append(paths, libName)
		switch runtime.GOOS {
		case "darwin":
			paths = append(paths,
				filepath.Join("/usr/local/lib", libName),
				filepath.Join("/opt/homebrew/lib", libName),
			)
		case "linux":
			paths = append(paths,
				filepath.Join("/usr/local/lib", libName),
				filepath.Join("/usr/lib", libName),
				filepath.Join("/usr/lib/x86_64-linux-gnu", libName),
				filepath.Join("/usr/lib/aarch64-linux-gnu", libName),
			)
		}
	}

	return paths
}

func loadXvidSymbols() error {
	for _, name := range []string{"xvid_global", "xvid_decore", "xvid_encore"} {
		if _, err := purego.Dlsym(xvidHandle, name); err != nil {
			return fmt.Errorf("libxvidcore: missing symbol %s: %w", name, err)
		}
	}
	purego.RegisterLibFunc(&xvidGlobalFn, xvidHandle, "xvid_global")
	purego.RegisterLibFunc(&xvidDecoreFn, xvidHandle, "xvid_decore")
	purego.RegisterLibFunc(&xvidEncoreFn, xvidHandle, "xvid_encore")
	return nil
}

// IsAvailable checks if libxvidcore could be loaded.
func IsAvailable() bool {
	if err := loadXvid(); err != nil {
		return false
	}
	return xvidLoaded
}

func xvidGlobal(op int32, param1, param2 unsafe.Pointer) int32 {
	return xvidGlobalFn(nil, op, param1, param2)
}

func xvidDecore(handle unsafe.Pointer, op int32, param1, param2 unsafe.Pointer) int32 {
	return xvidDecoreFn(handle, op, param1, param2)
}

func xvidEncore(handle unsafe.Pointer, op int32, param1, param2 unsafe.Pointer) int32 {
	return xvidEncoreFn(handle, op, param1, param2)
}

// pluginCallbackAddr returns the native address of the plugin callback.
// purego callbacks are never freed, so a single one is created and shared.
// Pointer arguments are received as unsafe.Pointer so that no uintptr
// conversion happens on plugin ids or other non-address handles.
func pluginCallbackAddr() uintptr {
	callbackOnce.Do(func() {
		callbackPtr = purego.NewCallback(func(handle unsafe.Pointer, option uintptr, param1, param2 unsafe.Pointer) uintptr {
			return uintptr(invokePluginCallback(handle, int32(option), param1, param2))
		})
	})
	return callbackPtr
}

// builtinPluginAddr resolves one of the plugin functions exported by
// libxvidcore, such as xvid_plugin_single.
func builtinPluginAddr(symbol string) (uintptr, error) {
	if err := loadXvid(); err != nil {
		return 0, err
	}
	addr, err := purego.Dlsym(xvidHandle, symbol)
	if err != nil {
		return 0, fmt.Errorf("xvid: resolve %s: %w", symbol, err)
	}
	return addr, nil
}

// buildString reads the NUL-terminated build string reported by
// XVID_GBL_INFO.
func buildString(ptr uintptr) string {
	return goStringFromPtr(ptr)
}
