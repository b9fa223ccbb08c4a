package xvid

import "testing"

func TestHandleTable(t *testing.T) {
	tab := newHandleTable()
	a := tab.add("a")
	b := tab.add("b")
	if a < firstHandle || b < firstHandle {
		t.Fatalf("handles = %d, %d, want >= %d", a, b, firstHandle)
	}
	if a == b {
		t.Fatal("handles not unique")
	}
	if v, ok := tab.get(a); !ok || v != "a" {
		t.Errorf("get(a) = %v, %v, want a, true", v, ok)
	}
	if tab.len() != 2 {
		t.Errorf("len = %d, want 2", tab.len())
	}

	tab.delete(a)
	if _, ok := tab.get(a); ok {
		t.Error("deleted handle still resolves")
	}
	if c := tab.add("c"); c == a {
		t.Error("deleted handle reused")
	}
	if _, ok := tab.get(0); ok {
		t.Error("handle 0 resolves")
	}
}
