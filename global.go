package xvid

import (
	"runtime"
	"unsafe"
)

// GlobalInfo stores global information about Xvid, obtained from GetGlobalInfo.
type GlobalInfo struct {
	// runtime version of xvidcore
	Version Version
	// runtime build string of xvidcore
	Build string
	// supported cpu features found
	CPUFlags CPUFlag
	// count of system threads found
	NumThreads int
}

// GetGlobalInfo returns global information about Xvid, can be called before any Init method.
// If an error is returned, no further Xvid functions are expected to work.
func GetGlobalInfo() (*GlobalInfo, error) {
	if err := loadXvid(); err != nil {
		return nil, err
	}
	info := gblInfo{version: xvidVersion}
	if code := xvidGlobal(opGlobalInfo, unsafe.Pointer(&info), nil); code != 0 {
		return nil, xvidErr(code)
	}
	return &GlobalInfo{
		Version:    Version{info.actualVersion},
		Build:      buildString(info.build),
		CPUFlags:   CPUFlag(info.cpuFlags),
		NumThreads: int(info.numThreads),
	}, nil
}

// Init initializes Xvid and must be called once before calling any other method, except GetGlobalInfo.
// Init uses all the available CPU features and doesn't enable any debug.
// There is no global Close() function corresponding to Init.
func Init() error {
	return initGlobal(gblInit{version: xvidVersion})
}

// InitWithFlags initializes Xvid with exactly the given CPU features instead
// of the autodetected ones, and with the given debug output enabled.
func InitWithFlags(cpuFlags CPUFlag, debugFlags DebugFlag) error {
	return initGlobal(gblInit{
		version:  xvidVersion,
		cpuFlags: uint32(cpuFlags | CPUForce),
		debug:    native(debugFlags),
	})
}

func initGlobal(init gblInit) error {
	if err := loadXvid(); err != nil {
		return err
	}
	if code := xvidGlobal(opGlobalInit, unsafe.Pointer(&init), nil); code != 0 {
		return xvidErr(code)
	}
	return nil
}

// Convert converts an Image from a color space to another. Init (or
// InitWithFlags) must be called once before calling this function. Output
// planes that are nil are allocated.
func Convert(input Image, output *Image, width int, height int, interlacing bool) error {
	if err := loadXvid(); err != nil {
		return err
	}
	var pinner runtime.Pinner
	defer pinner.Unpin()
	in, err := input.nativeInput(&pinner, width, height)
	if err != nil {
		return err
	}
	out, err := output.nativeOutput(&pinner, width, height)
	if err != nil {
		return err
	}
	convert := gblConvert{
		version:     xvidVersion,
		input:       in,
		output:      out,
		width:       int32(width),
		height:      int32(height),
		interlacing: cbool(interlacing),
	}
	if code := xvidGlobal(opGlobalConvert, unsafe.Pointer(&convert), nil); code != 0 {
		return xvidErr(code)
	}
	return nil
}

func cbool(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
