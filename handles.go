package xvid

import "sync"

// handleTable hands out integer ids for Go values that native code refers
// to. Native memory only ever stores the id, never a Go pointer.
type handleTable struct {
	mu     sync.RWMutex
	next   uintptr
	values map[uintptr]any
}

// firstHandle keeps ids out of the first page. Native code hands ids back
// as pointer-typed arguments, and the runtime's pointer checks reject
// values below 4096.
const firstHandle = 1 << 12

func newHandleTable() *handleTable {
	return &handleTable{next: firstHandle, values: make(map[uintptr]any)}
}

// add stores v and returns its id. Ids start at firstHandle and are never
// reused, so 0 is never a valid handle.
func (t *handleTable) add(v any) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.next
	t.next++
	t.values[h] = v
	return h
}

func (t *handleTable) get(h uintptr) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[h]
	return v, ok
}

func (t *handleTable) delete(h uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.values, h)
}

func (t *handleTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}
