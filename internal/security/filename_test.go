package security

import (
	"path/filepath"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"density", "density"},
		{"smoke density", "smoke_density"},
		{"../../etc/passwd", "etc_passwd"},
		{"a///b", "a_b"},
		{"v1.2-final", "v1.2-final"},
		{"__hidden__", "hidden"},
		{"", "unknown"},
		{"...", "unknown"},
		{"dichte²", "dichte"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	if got := SanitizeFilename(string(long)); len(got) != maxFilenameLen {
		t.Errorf("len = %d, want %d", len(got), maxFilenameLen)
	}
}

func TestOutputPath(t *testing.T) {
	got := OutputPath("plots", "../smoke", ".png")
	want := filepath.Join("plots", "smoke.png")
	if got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
	if !WithinDirectory(got, "plots") {
		t.Errorf("%q should be within plots", got)
	}
	if got := OutputPath("out", "velocity", "csv"); got != filepath.Join("out", "velocity.csv") {
		t.Errorf("OutputPath = %q", got)
	}
}

func TestWithinDirectory(t *testing.T) {
	tests := []struct {
		path, dir string
		want      bool
	}{
		{"plots/a.png", "plots", true},
		{"plots/sub/a.png", "plots", true},
		{"plots/../a.png", "plots", false},
		{"../a.png", ".", false},
		{"/tmp/a.png", "/tmp", true},
		{"/etc/a.png", "/tmp", false},
		{"plots..x/a.png", "plots", false},
	}
	for _, tt := range tests {
		if got := WithinDirectory(tt.path, tt.dir); got != tt.want {
			t.Errorf("WithinDirectory(%q, %q) = %v, want %v", tt.path, tt.dir, got, tt.want)
		}
	}
}
