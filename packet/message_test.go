package packet

import (
	"reflect"
	"testing"
)

func TestMessagePayloadViewJSON(t *testing.T) {
	m := NewMessage("mpypi/nodes/x/info", []byte(`{"sysname":"linux"}`), 1, true)

	view := m.PayloadView()
	got, ok := view.(map[string]any)
	if !ok {
		t.Fatalf("PayloadView() = %T, want map[string]any", view)
	}
	if got["sysname"] != "linux" {
		t.Errorf("view[sysname] = %v, want linux", got["sysname"])
	}

	// Cached: a second call returns the same value without re-decoding.
	if second := m.PayloadView(); !reflect.DeepEqual(second, view) {
		t.Errorf("second PayloadView() = %v, want %v", second, view)
	}
}

func TestMessagePayloadViewNonJSONFallsBackToRaw(t *testing.T) {
	m := NewMessage("t", []byte("not json"), 0, false)
	view := m.PayloadView()
	raw, ok := view.([]byte)
	if !ok {
		t.Fatalf("PayloadView() = %T, want []byte", view)
	}
	if string(raw) != "not json" {
		t.Errorf("view = %q, want %q", raw, "not json")
	}
}

func TestMessageSetPayloadViewInvalidatesCache(t *testing.T) {
	m := NewMessage("t", []byte(`1`), 0, false)
	_ = m.PayloadView()

	if err := m.SetPayloadView("replaced"); err != nil {
		t.Fatalf("SetPayloadView: %v", err)
	}
	if string(m.PayloadRaw) != "replaced" {
		t.Errorf("PayloadRaw = %q, want %q", m.PayloadRaw, "replaced")
	}
	if got := m.PayloadView(); string(got.([]byte)) != "replaced" {
		t.Errorf("PayloadView() after SetPayloadView(string) = %v, want %q", got, "replaced")
	}
}
