//go:build (darwin || linux) && !xvidcgo

package xvid

import (
	"bytes"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"unsafe"

	"github.com/ebitengine/purego"
)

// resetPluginHandlers empties the process-wide handler slot for the test
// and restores the previous handler afterwards.
func resetPluginHandlers(t *testing.T) {
	t.Helper()
	prev := pluginHandlers.h.Swap(nil)
	t.Cleanup(func() { pluginHandlers.h.Store(prev) })
}

// callNative invokes the plugin callback through its native address.
func callNative(handle, option, param1, param2 uintptr) int32 {
	r1, _, _ := purego.SyscallN(pluginCallbackAddr(), handle, option, param1, param2)
	return int32(r1)
}

func TestPluginCallbackNoHandler(t *testing.T) {
	resetPluginHandlers(t)
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetLogger(nil)

	if got := callNative(0x1, 7, 0, 0); got != -1 {
		t.Errorf("callback without handler = %d, want -1", got)
	}
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("missing handler not logged as error: %q", buf.String())
	}
}

func TestPluginCallbackRegisteredHandler(t *testing.T) {
	resetPluginHandlers(t)

	var calls int
	var gotHandle, gotP1, gotP2 uintptr
	var gotOption int32
	ret := int32(42)
	err := RegisterPluginHandler(func(handle unsafe.Pointer, option int32, p1, p2 unsafe.Pointer) int32 {
		calls++
		gotHandle, gotOption, gotP1, gotP2 = uintptr(handle), option, uintptr(p1), uintptr(p2)
		return ret
	})
	if err != nil {
		t.Fatalf("RegisterPluginHandler() = %v", err)
	}

	if got := callNative(0x1, 7, 0, 0); got != 42 {
		t.Errorf("callback = %d, want 42", got)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
	if gotHandle != 0x1 || gotOption != 7 || gotP1 != 0 || gotP2 != 0 {
		t.Errorf("handler got (%#x, %d, %#x, %#x), want (0x1, 7, 0, 0)", gotHandle, gotOption, gotP1, gotP2)
	}

	ret = -5
	if got := callNative(0x1, 7, 0, 0); got != -5 {
		t.Errorf("callback = %d, want -5", got)
	}

	other := PluginHandler(func(unsafe.Pointer, int32, unsafe.Pointer, unsafe.Pointer) int32 { return 0 })
	if err := RegisterPluginHandler(other); err != ErrPluginHandlerRegistered {
		t.Errorf("second RegisterPluginHandler() = %v, want ErrPluginHandlerRegistered", err)
	}
}

func TestPluginCallbackGoPluginHandle(t *testing.T) {
	resetPluginHandlers(t)
	if err := pluginHandlers.claim(&goPluginDispatcher); err != nil {
		t.Fatalf("claim() = %v", err)
	}

	plugin := &recordingPlugin{}
	id := registerGoPlugin(t, plugin, nil)

	destroy := &plgDestroy{version: xvidVersion, numFrames: 250}
	var pinner runtime.Pinner
	pinner.Pin(destroy)
	defer pinner.Unpin()

	if got := callNative(id, uintptr(plgDestroyOpt), uintptr(unsafe.Pointer(destroy)), 0); got != 0 {
		t.Fatalf("DESTROY through native callback = %d, want 0", got)
	}
	if plugin.closed == nil || plugin.closed.NumFrames != 250 {
		t.Errorf("Close got %+v, want 250 frames", plugin.closed)
	}
}
