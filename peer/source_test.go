package peer

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/imaneimrh/relaychat/shared"
)

func shareDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestDirSourceOpen(t *testing.T) {
	src := DirSource{Root: shareDir(t, map[string]string{
		"notes.txt":    "remember the milk",
		"docs/plan.md": "# plan",
		"empty.txt":    "",
	})}

	for name, want := range map[string]string{
		"notes.txt":    "remember the milk",
		"docs/plan.md": "# plan",
		"empty.txt":    "",
	} {
		size, body, err := src.Open(name)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if string(data) != want || size != uint64(len(want)) {
			t.Errorf("%s: got %q with size %d", name, data, size)
		}
	}
}

func TestDirSourceRefuses(t *testing.T) {
	root := shareDir(t, map[string]string{"docs/plan.md": "# plan"})
	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	os.WriteFile(outside, []byte("secret"), 0644)
	t.Cleanup(func() { os.Remove(outside) })

	src := DirSource{Root: root}
	for _, name := range []string{"../secret.txt", "/etc/passwd", "docs"} {
		if _, _, err := src.Open(name); !errors.Is(err, shared.ErrFileUnavailable) {
			t.Errorf("%s: got %v, want ErrFileUnavailable", name, err)
		}
	}
	if _, _, err := src.Open("missing.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing.txt: got %v", err)
	}
}
