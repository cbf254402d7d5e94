package httpengine

import "testing"

func TestHeaderAddGet(t *testing.T) {
	var h Header
	if err := h.Add([]byte("Content-Type"), []byte("text/plain")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if got := h.GetString([]byte("content-type")); got != "text/plain" {
		t.Errorf("GetString = %q, want %q", got, "text/plain")
	}
}

func TestHeaderSetReplacesExisting(t *testing.T) {
	var h Header
	h.Add([]byte("X-Count"), []byte("1"))
	h.Set([]byte("x-count"), []byte("2"))
	if h.Len() != 1 {
		t.Fatalf("Len = %d, want 1", h.Len())
	}
	if got := h.GetString([]byte("X-Count")); got != "2" {
		t.Errorf("GetString = %q, want %q", got, "2")
	}
}

func TestHeaderSetAddsWhenAbsent(t *testing.T) {
	var h Header
	h.Set([]byte("X-New"), []byte("v"))
	if !h.Has([]byte("x-new")) {
		t.Error("expected header to be present after Set")
	}
}

func TestHeaderDel(t *testing.T) {
	var h Header
	h.Add([]byte("A"), []byte("1"))
	h.Add([]byte("B"), []byte("2"))
	h.Del([]byte("a"))
	if h.Has([]byte("A")) {
		t.Error("A should have been deleted")
	}
	if got := h.GetString([]byte("B")); got != "2" {
		t.Errorf("B = %q, want %q", got, "2")
	}
}

func TestHeaderRejectsCRLFInValue(t *testing.T) {
	var h Header
	err := h.Add([]byte("X"), []byte("evil\r\nSet-Cookie: a=b"))
	if err != ErrInvalidHeader {
		t.Fatalf("err = %v, want ErrInvalidHeader", err)
	}
}

func TestHeaderOverflowsToMapBeyondInlineCapacity(t *testing.T) {
	var h Header
	for i := 0; i < MaxHeaders+4; i++ {
		h.Add([]byte("X-Gen"), []byte("v"))
	}
	if h.Len() != MaxHeaders+4 {
		t.Errorf("Len = %d, want %d", h.Len(), MaxHeaders+4)
	}
}

func TestHeaderLongValueOverflowsToMap(t *testing.T) {
	var h Header
	long := make([]byte, MaxHeaderValue+16)
	for i := range long {
		long[i] = 'a'
	}
	if err := h.Add([]byte("X-Long"), long); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if got := h.GetString([]byte("X-Long")); got != string(long) {
		t.Error("overflowed long value was not preserved")
	}
}

func TestHeaderReset(t *testing.T) {
	var h Header
	h.Add([]byte("A"), []byte("1"))
	h.Reset()
	if h.Len() != 0 {
		t.Errorf("Len after Reset = %d, want 0", h.Len())
	}
}

func TestHeaderVisitAllStopsEarly(t *testing.T) {
	var h Header
	h.Add([]byte("A"), []byte("1"))
	h.Add([]byte("B"), []byte("2"))
	seen := 0
	h.VisitAll(func(name, value []byte) bool {
		seen++
		return false
	})
	if seen != 1 {
		t.Errorf("VisitAll visited %d headers, want 1 after early stop", seen)
	}
}
