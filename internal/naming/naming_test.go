package naming

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"Café con Leche", "cafe-con-leche"},
		{"  many   spaces ", "-many-spaces-"},
		{"photo_2024 (1)", "photo_2024-1"},
		{"ÑANDÚ", "nandu"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Photo.JPG", "my-photo.jpg"},
		{"vídeo final.MP4", "video-final.mp4"},
		{"../../etc/passwd", "passwd"},
		{"???.png", "file.png"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReplaceExt(t *testing.T) {
	if got := ReplaceExt("clip.mov", ".webm"); got != "clip.webm" {
		t.Errorf("ReplaceExt() = %q, want clip.webm", got)
	}
	if got := ReplaceExt("noext", ".webp"); got != "noext.webp" {
		t.Errorf("ReplaceExt() = %q, want noext.webp", got)
	}
}

func TestAvailableFilename(t *testing.T) {
	dir := t.TempDir()

	if got := AvailableFilename(dir, "clip.mp4"); got != "clip.mp4" {
		t.Errorf("AvailableFilename() = %q, want clip.mp4", got)
	}

	for _, name := range []string{"clip.mp4", "clip-1.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if got := AvailableFilename(dir, "clip.mp4"); got != "clip-2.mp4" {
		t.Errorf("AvailableFilename() = %q, want clip-2.mp4", got)
	}
}

func TestFolderFromDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"https://shop.example.com/store/", "shop.example.com_store"},
		{" http://a.b/c/d ", "a.b_c_d"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FolderFromDomain(tt.in); got != tt.want {
				t.Errorf("FolderFromDomain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
