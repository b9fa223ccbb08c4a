// Package xvid provides Go bindings for xvidcore, the MPEG-4 Part 2 (ASP)
// video codec library, plus the RTP/WebRTC plumbing to carry its streams.
//
// Key pieces include:
//   - Decoder and Encoder over the native xvid_decore/xvid_encore entry points
//   - Built-in rate control and analysis plugins, and Go plugins driven through
//     a single native callback
//   - Typed extraction of the decoder statistics union (ExtractVOP, ExtractVOL)
//   - Flag words whose sign bit is set (CPUForce, DebugDebug,
//     ColorSpaceVerticalFlip) kept unsigned on the Go side
//   - MP4V-ES (RFC 6416) packetizer/depacketizer and a webrtc.TrackLocal
//   - YAML encoder presets
//   - PatternSource, a synthetic YUV frame generator for tests and demos
//   - MP4Writer and ReadMP4 for storing streams in MP4 files (mp4v/esds)
//
// # Architecture
//
//	Encode: Image -> Encoder (+ Plugins) -> EncodedFrame -> MP4VPacketizer -> LocalTrack
//	Decode: RTP -> MP4VDepacketizer -> Decoder.DecodePacket -> Image
//
// # Native Library
//
// By default the package loads libxvidcore at runtime with purego
// (CGO_ENABLED=0 works). Set XVID_LIB_PATH to the library file, or
// XVID_SDK_LIB_PATH to a directory containing it. Build with the xvidcgo
// tag to link against libxvidcore with cgo instead. On other platforms
// every native entry point returns ErrNotAvailable.
//
// # Plugin Callback
//
// xvidcore calls plugins through a C function pointer. The package exposes
// one process-wide native callback that forwards (handle, option, param1,
// param2) to a single PluginHandler. The handler slot is write-once: either
// the package's own Go plugin dispatcher claims it the first time an Encoder
// with Go plugins is created, or a caller installs a custom handler with
// RegisterPluginHandler. If the callback fires with no handler installed it
// logs an error and returns -1 (XVID_ERR_FAIL).
package xvid
