package xvid

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"
)

func TestHandlerSlotForwardsOnce(t *testing.T) {
	var slot handlerSlot

	param1 := new(int32)
	param2 := new(int64)
	var calls int
	var gotHandle, gotP1, gotP2 unsafe.Pointer
	var gotOption int32
	h := PluginHandler(func(handle unsafe.Pointer, option int32, p1, p2 unsafe.Pointer) int32 {
		calls++
		gotHandle, gotOption, gotP1, gotP2 = handle, option, p1, p2
		return 42
	})
	if err := slot.install(&h); err != nil {
		t.Fatalf("install failed: %v", err)
	}

	handle := unsafe.Pointer(new(byte))
	if got := slot.dispatch(handle, 7, unsafe.Pointer(param1), unsafe.Pointer(param2)); got != 42 {
		t.Errorf("dispatch = %d, want 42", got)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
	if gotHandle != handle || gotOption != 7 || gotP1 != unsafe.Pointer(param1) || gotP2 != unsafe.Pointer(param2) {
		t.Errorf("handler got (%p, %d, %p, %p), want arguments unchanged", gotHandle, gotOption, gotP1, gotP2)
	}
}

func TestHandlerSlotNilParams(t *testing.T) {
	var slot handlerSlot
	h := PluginHandler(func(handle unsafe.Pointer, option int32, p1, p2 unsafe.Pointer) int32 {
		if p1 != nil || p2 != nil {
			t.Errorf("params = %p, %p, want nil", p1, p2)
		}
		return 42
	})
	if err := slot.install(&h); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if got := slot.dispatch(unsafe.Pointer(new(byte)), 7, nil, nil); got != 42 {
		t.Errorf("dispatch = %d, want 42", got)
	}
}

func TestHandlerSlotReturnsResultUnchanged(t *testing.T) {
	for _, want := range []int32{0, 1, -1, -5, 1 << 30, -(1 << 31)} {
		var slot handlerSlot
		h := PluginHandler(func(unsafe.Pointer, int32, unsafe.Pointer, unsafe.Pointer) int32 { return want })
		if err := slot.install(&h); err != nil {
			t.Fatalf("install failed: %v", err)
		}
		if got := slot.dispatch(nil, 0, nil, nil); got != want {
			t.Errorf("dispatch = %d, want %d", got, want)
		}
	}
}

func TestHandlerSlotMissingHandler(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetLogger(nil)

	var slot handlerSlot
	if got := slot.dispatch(unsafe.Pointer(new(byte)), 7, nil, nil); got != -1 {
		t.Errorf("dispatch without handler = %d, want -1", got)
	}
	if got := slot.dispatch(nil, 0, nil, nil); got == 0 {
		t.Error("dispatch without handler reported success")
	}
	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "no handler registered") {
		t.Errorf("missing handler not logged as error: %q", out)
	}
	if !strings.Contains(out, "option=7") {
		t.Errorf("log lacks the option attribute: %q", out)
	}
}

func TestHandlerSlotWriteOnce(t *testing.T) {
	var slot handlerSlot
	first := PluginHandler(func(unsafe.Pointer, int32, unsafe.Pointer, unsafe.Pointer) int32 { return 1 })
	second := PluginHandler(func(unsafe.Pointer, int32, unsafe.Pointer, unsafe.Pointer) int32 { return 2 })

	if err := slot.install(&first); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if err := slot.install(&second); !errors.Is(err, ErrPluginHandlerRegistered) {
		t.Errorf("second install err = %v, want ErrPluginHandlerRegistered", err)
	}
	if got := slot.dispatch(nil, 0, nil, nil); got != 1 {
		t.Errorf("dispatch = %d, want 1 (first handler kept)", got)
	}
}

func TestHandlerSlotNil(t *testing.T) {
	var slot handlerSlot
	if err := slot.install(nil); !errors.Is(err, ErrNilPluginHandler) {
		t.Errorf("install(nil) err = %v, want ErrNilPluginHandler", err)
	}
	var h PluginHandler
	if err := slot.install(&h); !errors.Is(err, ErrNilPluginHandler) {
		t.Errorf("install(&nil) err = %v, want ErrNilPluginHandler", err)
	}
	if got := slot.dispatch(nil, 0, nil, nil); got != -1 {
		t.Errorf("dispatch = %d, want -1 (slot still empty)", got)
	}
}

func TestHandlerSlotClaim(t *testing.T) {
	var slot handlerSlot
	own := PluginHandler(func(unsafe.Pointer, int32, unsafe.Pointer, unsafe.Pointer) int32 { return 3 })
	if err := slot.claim(&own); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if err := slot.claim(&own); err != nil {
		t.Errorf("repeated claim err = %v, want nil", err)
	}

	var foreignSlot handlerSlot
	foreign := PluginHandler(func(unsafe.Pointer, int32, unsafe.Pointer, unsafe.Pointer) int32 { return 4 })
	if err := foreignSlot.install(&foreign); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if err := foreignSlot.claim(&own); !errors.Is(err, ErrPluginHandlerInUse) {
		t.Errorf("claim over foreign handler err = %v, want ErrPluginHandlerInUse", err)
	}
	if got := foreignSlot.dispatch(nil, 0, nil, nil); got != 4 {
		t.Errorf("dispatch = %d, want 4 (foreign handler kept)", got)
	}
}

func TestHandlerSlotConcurrentInstall(t *testing.T) {
	var slot handlerSlot
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(v int32) {
			defer wg.Done()
			h := PluginHandler(func(unsafe.Pointer, int32, unsafe.Pointer, unsafe.Pointer) int32 { return v })
			if slot.install(&h) == nil {
				wins.Add(1)
			}
		}(int32(i))
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("%d installs succeeded, want exactly 1", wins.Load())
	}
}

func TestHandlerSlotConcurrentDispatch(t *testing.T) {
	var slot handlerSlot
	var calls atomic.Int64
	h := PluginHandler(func(_ unsafe.Pointer, option int32, _, _ unsafe.Pointer) int32 {
		calls.Add(1)
		return option
	})
	if err := slot.install(&h); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(option int32) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := slot.dispatch(nil, option, nil, nil); got != option {
					t.Errorf("dispatch = %d, want %d", got, option)
					return
				}
			}
		}(int32(i))
	}
	wg.Wait()
	if calls.Load() != 800 {
		t.Errorf("calls = %d, want 800", calls.Load())
	}
}
