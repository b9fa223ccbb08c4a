package xvid

import (
	"sync/atomic"
	"unsafe"
)

// PluginHandler receives every invocation of the native plugin callback:
// the plugin handle, the operation code (one of the XVID_PLG_* options) and
// two operation-specific parameter blocks. Its result is returned to
// xvidcore unchanged; negative values are native error codes.
//
// xvidcore may invoke the callback from its own worker threads, so a
// handler must be safe for concurrent and reentrant use.
type PluginHandler func(handle unsafe.Pointer, option int32, param1, param2 unsafe.Pointer) int32

// handlerSlot is a write-once holder for the process-wide PluginHandler.
type handlerSlot struct {
	h atomic.Pointer[PluginHandler]
}

func (s *handlerSlot) install(h *PluginHandler) error {
	if h == nil || *h == nil {
		return ErrNilPluginHandler
	}
	if !s.h.CompareAndSwap(nil, h) {
		return ErrPluginHandlerRegistered
	}
	return nil
}

// claim installs h unless the slot already holds it. It fails with
// ErrPluginHandlerInUse when another handler owns the slot.
func (s *handlerSlot) claim(h *PluginHandler) error {
	err := s.install(h)
	if err == ErrPluginHandlerRegistered {
		if s.h.Load() == h {
			return nil
		}
		return ErrPluginHandlerInUse
	}
	return err
}

// dispatch forwards one native callback to the registered handler. With no
// handler it logs and returns the native general-fault code.
func (s *handlerSlot) dispatch(handle unsafe.Pointer, option int32, param1, param2 unsafe.Pointer) int32 {
	h := s.h.Load()
	if h == nil {
		logger().Error("xvid: plugin callback invoked with no handler registered",
			"handle", uintptr(handle), "option", option)
		return codeFail
	}
	return (*h)(handle, option, param1, param2)
}

var pluginHandlers handlerSlot

// RegisterPluginHandler installs h as the target of the native plugin
// callback. The slot can be set once per process: later calls return
// ErrPluginHandlerRegistered and leave the first handler in place.
//
// Encoders created with Go plugins install the package's own handler on
// first use. Registering a custom handler first makes such encoders fail
// with ErrPluginHandlerInUse.
func RegisterPluginHandler(h PluginHandler) error {
	return pluginHandlers.install(&h)
}

// invokePluginCallback is the single entry point both native backends call.
func invokePluginCallback(handle unsafe.Pointer, option int32, param1, param2 unsafe.Pointer) int32 {
	return pluginHandlers.dispatch(handle, option, param1, param2)
}
