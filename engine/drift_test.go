package engine

import (
	"strings"
	"testing"
)

const richLayout = `<html><body><header><nav><ul><li><a>Home</a></li><li><a>Shop</a></li></ul></nav></header><main><section><article><h1>Oak Table</h1><img><p>Solid oak</p><table><tr><td>Price</td><td><span>EGP 1,450</span></td></tr></table><form><select><option>1</option></select><button>Add</button></form></article></section></main><footer><p>x</p></footer></body></html>`

func TestDrift(t *testing.T) {
	t.Parallel()
	if d := Drift(richLayout, richLayout); d != 0 {
		t.Errorf("identical documents drift = %d, want 0", d)
	}

	// Text changes leave the structure alone.
	edited := strings.Replace(richLayout, "Solid oak", "Reclaimed pine, oiled", 1)
	if d := Drift(richLayout, edited); d != 0 {
		t.Errorf("text-only change drift = %d, want 0", d)
	}

	if d := Drift(thinPage, richLayout); d <= DriftThreshold {
		t.Errorf("shell vs rendered drift = %d, want > %d", d, DriftThreshold)
	}
}

func TestStructureFingerprint_Empty(t *testing.T) {
	t.Parallel()
	if fp := StructureFingerprint("just text"); fp != 0 {
		t.Errorf("fingerprint of tagless input = %064b, want 0", fp)
	}
	if fp := StructureFingerprint("<p>"); fp == 0 {
		t.Error("a single tag should produce a non-zero fingerprint")
	}
}
