package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDisplayURL(t *testing.T) {
	tests := []struct {
		listen, role, want string
	}{
		{"127.0.0.1:8080", "", "http://127.0.0.1:8080/display"},
		{":9000", "", "http://127.0.0.1:9000/display"},
		{"0.0.0.0:80", "secondary", "http://127.0.0.1:80/display?role=secondary"},
		{"[::]:8080", "", "http://127.0.0.1:8080/display"},
		{"kiosk.local:8080", "primary", "http://kiosk.local:8080/display?role=primary"},
	}
	for _, tt := range tests {
		got, err := DisplayURL(tt.listen, tt.role)
		if err != nil {
			t.Fatalf("DisplayURL(%q): %v", tt.listen, err)
		}
		if got != tt.want {
			t.Errorf("DisplayURL(%q, %q) = %q, want %q", tt.listen, tt.role, got, tt.want)
		}
	}
	if _, err := DisplayURL("no-port", ""); err == nil {
		t.Error("expected error for address without port")
	}
}

func TestCapturePNG_RequiresURLAndOutput(t *testing.T) {
	if err := CapturePNG(context.Background(), Options{Output: "x.png"}); err == nil {
		t.Error("missing URL accepted")
	}
	if err := CapturePNG(context.Background(), Options{URL: "http://127.0.0.1/display"}); err == nil {
		t.Error("missing output accepted")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shots", "display.png")
	if err := writeFileAtomic(path, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := writeFileAtomic(path, []byte("two")); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "two" {
		t.Fatalf("content = %q, %v", b, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("leftover temp files: %v", entries)
	}
}
