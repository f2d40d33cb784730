package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	allowedDir := t.TempDir()
	otherDir := t.TempDir()
	subDir := filepath.Join(allowedDir, "subdir")
	if err := os.MkdirAll(subDir, 0700); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		allowedDirs []string
		errContains string // empty means valid
	}{
		{"inside allowed dir", filepath.Join(allowedDir, "run.gpr"), []string{allowedDir}, ""},
		{"in subdirectory", filepath.Join(subDir, "run.gpr"), []string{allowedDir}, ""},
		{"not yet created subdirectories", filepath.Join(allowedDir, "a", "b", "run.gpr"), []string{allowedDir}, ""},
		{"the allowed dir itself", allowedDir, []string{allowedDir}, ""},
		{"second allowed dir", filepath.Join(otherDir, "run.gpr"), []string{allowedDir, otherDir}, ""},
		{"dot-dot traversal", filepath.Join(allowedDir, "..", "etc", "passwd"), []string{allowedDir}, "outside allowed directories"},
		{"outside", filepath.Join(otherDir, "run.gpr"), []string{allowedDir}, "outside allowed directories"},
		{"prefix is not containment", allowedDir + "-evil/run.gpr", []string{allowedDir}, "outside allowed directories"},
		{"empty", "", []string{allowedDir}, "empty"},
		{"no allowed dirs", filepath.Join(allowedDir, "run.gpr"), nil, "no allowed directories"},
		{"null byte", allowedDir + "/run\x00.gpr", []string{allowedDir}, "null byte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.allowedDirs)
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("ValidatePath() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ValidatePath() = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestValidatePath_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not supported on Windows")
	}

	allowedDir := t.TempDir()
	outsideDir := t.TempDir()
	realSubDir := filepath.Join(allowedDir, "real")
	if err := os.MkdirAll(realSubDir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outsideDir, filepath.Join(allowedDir, "escape")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	if err := os.Symlink(realSubDir, filepath.Join(allowedDir, "link")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	err := ValidatePath(filepath.Join(allowedDir, "escape", "run.gpr"), []string{allowedDir})
	if !errors.Is(err, ErrOutsideAllowed) {
		t.Errorf("symlink pointing outside: err = %v, want ErrOutsideAllowed", err)
	}
	if err := ValidatePath(filepath.Join(allowedDir, "link", "run.gpr"), []string{allowedDir}); err != nil {
		t.Errorf("symlink staying inside: err = %v", err)
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/home/user/.gasprops/history.db", ".../.gasprops/history.db"},
		{"history.db", "history.db"},
		{"/history.db", "history.db"},
		{"/home/user/.gasprops/", ".../user/.gasprops"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RedactPath(tt.path); got != tt.want {
			t.Errorf("RedactPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestExportDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dirs, err := ExportDirs()
	if err != nil {
		t.Fatalf("ExportDirs() error = %v", err)
	}
	if len(dirs) == 0 || dirs[0] != filepath.Join(home, ".gasprops", "exports") {
		t.Errorf("ExportDirs() = %v", dirs)
	}
	wd, _ := os.Getwd()
	if len(dirs) != 2 || dirs[1] != wd {
		t.Errorf("ExportDirs() should include the working directory, got %v", dirs)
	}
}
