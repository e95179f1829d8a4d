package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"CAR-S-2041", "CAR-S-2041"},
		{"  CAR-S-2041  ", "CAR-S-2041"},
		{"CAR/S:2041", "CAR_S_2041"},
		{`a\b*c?d"e<f>g|h`, "a_b_c_d_e_f_g_h"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"tab\there", "tab_here"},
		{"...", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.input); got != tt.expected {
			t.Errorf("SanitizeFilename(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestOutputPath(t *testing.T) {
	is := is.New(t)

	is.Equal(OutputPath("out", "CAR-S-2041", ".jpg", "shape_1"), filepath.Join("out", "CAR-S-2041.jpg"))
	is.Equal(OutputPath("out", "CAR/S", "png", "shape_1"), filepath.Join("out", "CAR_S.png"))
	is.Equal(OutputPath("out", "  ", ".jpg", "shape_1"), filepath.Join("out", "shape_1.jpg"))
}

func TestEnsureDirAndFileExists(t *testing.T) {
	is := is.New(t)
	dir := filepath.Join(t.TempDir(), "a", "b")

	is.NoErr(EnsureDir(dir))
	is.NoErr(EnsureDir(dir))

	file := filepath.Join(dir, "x.jpg")
	is.True(!FileExists(file))
	is.NoErr(os.WriteFile(file, []byte("x"), 0644))
	is.True(FileExists(file))
	is.True(!FileExists(dir))
}

func TestGetFileExtension(t *testing.T) {
	is := is.New(t)
	is.Equal(GetFileExtension("map.JPG"), "jpg")
	is.Equal(GetFileExtension("annotations"), "")
}
