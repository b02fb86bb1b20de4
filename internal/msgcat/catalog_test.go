package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{"help", "error.parse", "error.illegal_move", "status.playback", "archive.game", "preview.line"} {
		if !c.Has(key) {
			t.Fatalf("missing %s", key)
		}
	}
	got, err := c.Render("error.illegal_move", map[string]any{"Input": "Qa8", "Index": 4, "Applied": "c4 e5 g3 Ke7"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Illegal move Qa8 at ply 4; applied so far: c4 e5 g3 Ke7" {
		t.Fatalf("got %q", got)
	}
	got, err = c.Render("status.playback", map[string]any{"Playing": true, "Speed": 2.5})
	if err != nil || got != "Playing, every 2.5s" {
		t.Fatalf("playback = %q, %v", got, err)
	}
}

func TestRenderMissing(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("nope.key", nil); err == nil {
		t.Fatalf("expected missing template error")
	}
	if _, err := c.Render("error.out_of_range", map[string]any{"Index": 9}); err == nil {
		t.Fatalf("expected missingkey error")
	}
}

func TestOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("error:\n  parse: \"bad input\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, _ := c.Render("error.parse", nil); got != "bad input" {
		t.Fatalf("override not applied: %q", got)
	}
	if got, _ := c.Render("info.bye", nil); got != "Bye." {
		t.Fatalf("default lost: %q", got)
	}
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("info:\n  bye: \"x\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	_, err := New(dir)
	if err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("err = %v", err)
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("a:\n  b: 3\n")); err == nil {
		t.Fatalf("expected error for int leaf")
	}
}
