package extract

import "testing"

func TestTrimSiteSuffix(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		title    string
		siteName string
		host     string
		want     string
	}{
		{"suffix by site name", "Blue Mug | Shop", "Shop", "", "Blue Mug"},
		{"prefix by host label", "Acme - Blue Mug", "", "acme.com", "Blue Mug"},
		{"suffix by full host", "Blue Mug – acme.com", "", "www.acme.com", "Blue Mug"},
		{"compact site name", "Blue Mug | Acme Store", "AcmeStore", "", "Blue Mug"},
		{"arabic site name", "كوب أزرق | متجر النيل", "متجر النيل", "", "كوب أزرق"},
		{"nothing to trim", "Blue Mug", "", "acme.com", "Blue Mug"},
		{"separator kept when unrelated", "Mug - Large", "", "acme.com", "Mug - Large"},
		{"whitespace collapsed", "  Blue   Mug  ", "", "", "Blue Mug"},
		{"empty", "", "Shop", "shop.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TrimSiteSuffix(tt.title, tt.siteName, tt.host); got != tt.want {
				t.Errorf("TrimSiteSuffix(%q, %q, %q) = %q, want %q", tt.title, tt.siteName, tt.host, got, tt.want)
			}
		})
	}
}
