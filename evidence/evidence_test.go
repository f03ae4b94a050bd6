package evidence_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"rptc/config"
	"rptc/evidence"
)

func testEvidenceConfig() *config.EvidenceConfig {
	return &config.EvidenceConfig{
		Manifest:        "evidence.yaml",
		ImageExtensions: []string{"png", ".jpg", "svg"},
		TextExtensions:  []string{"txt", "log"},
	}
}

func TestTableLookups(t *testing.T) {
	records := []evidence.Record{
		{Label: "Shot-01", Path: "a.png"},
		{Label: "", Path: "b.txt"},
		{Label: "shot-01", Path: "dup.png"},
	}
	tbl := evidence.NewTable(records, testEvidenceConfig(), nil, zaptest.NewLogger(t))

	if tbl.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", tbl.Len())
	}

	t.Run("ByIndex", func(t *testing.T) {
		rec, ok := tbl.ByIndex(1)
		if !ok || rec.Path != "b.txt" {
			t.Errorf("ByIndex(1) = %+v, %v", rec, ok)
		}
		if _, ok := tbl.ByIndex(-1); ok {
			t.Error("ByIndex(-1) should miss")
		}
		if _, ok := tbl.ByIndex(3); ok {
			t.Error("ByIndex(3) should miss")
		}
	})

	t.Run("ByLabel", func(t *testing.T) {
		rec, ok := tbl.ByLabel("shot-01")
		if !ok || rec.Path != "a.png" {
			t.Errorf("expected first record to win for duplicate label, got %+v, %v", rec, ok)
		}
		if rec, ok := tbl.ByLabel("  SHOT-01  "); !ok || rec.Path != "a.png" {
			t.Errorf("label lookup should be forgiving, got %+v, %v", rec, ok)
		}
		if _, ok := tbl.ByLabel("missing"); ok {
			t.Error("ByLabel(missing) should miss")
		}
		if _, ok := tbl.ByLabel(""); ok {
			t.Error("empty label should miss")
		}
	})

	t.Run("NilTable", func(t *testing.T) {
		var nilTbl *evidence.Table
		if nilTbl.Len() != 0 {
			t.Error("nil table should have zero length")
		}
		if _, ok := nilTbl.ByIndex(0); ok {
			t.Error("nil table ByIndex should miss")
		}
		if _, ok := nilTbl.ByLabel("x"); ok {
			t.Error("nil table ByLabel should miss")
		}
		if k := nilTbl.Kind(evidence.Record{Path: "a.png"}); k != evidence.KindUnknown {
			t.Errorf("nil table Kind = %v", k)
		}
	})
}

func TestTableKind(t *testing.T) {
	tbl := evidence.NewTable(nil, testEvidenceConfig(), nil, zaptest.NewLogger(t))

	tests := []struct {
		path string
		want evidence.Kind
	}{
		{"shot.png", evidence.KindImage},
		{"SHOT.PNG", evidence.KindImage},
		{"photo.jpg", evidence.KindImage},
		{"diagram.svg", evidence.KindImage},
		{"notes.txt", evidence.KindText},
		{"session.LOG", evidence.KindText},
		{"payload.exe", evidence.KindUnknown},
		{"noextension", evidence.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := tbl.Kind(evidence.Record{Path: tt.path}); got != tt.want {
				t.Errorf("Kind(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestTableLoadText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.log")
	if err := os.WriteFile(path, []byte("line1\r\nline2\rline3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tbl := evidence.NewTable(nil, testEvidenceConfig(), nil, zaptest.NewLogger(t))

	text, err := tbl.LoadText(evidence.Record{Label: "log", Path: path})
	if err != nil {
		t.Fatalf("LoadText failed: %v", err)
	}
	if text != "line1\nline2\nline3\n" {
		t.Errorf("line endings not normalized: %q", text)
	}

	if _, err := tbl.LoadText(evidence.Record{Path: filepath.Join(dir, "missing.log")}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	absPath := filepath.Join(dir, "elsewhere", "session.log")

	t.Run("ResolvesRelativePaths", func(t *testing.T) {
		manifest := filepath.Join(dir, "evidence.yaml")
		content := fmt.Sprintf("title: Demo Report\nevidence:\n  - label: shot-01\n    path: images/shot-01.png\n  - label: log\n    path: %s\n", absPath)
		if err := os.WriteFile(manifest, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		m, err := evidence.LoadManifest(manifest, zaptest.NewLogger(t))
		if err != nil {
			t.Fatalf("LoadManifest failed: %v", err)
		}
		if m.Title != "Demo Report" {
			t.Errorf("wrong title: %q", m.Title)
		}
		if len(m.Evidence) != 2 {
			t.Fatalf("expected 2 records, got %d", len(m.Evidence))
		}
		if want := filepath.Join(dir, "images", "shot-01.png"); m.Evidence[0].Path != want {
			t.Errorf("relative path not resolved: got %q, want %q", m.Evidence[0].Path, want)
		}
		if m.Evidence[1].Path != absPath {
			t.Errorf("absolute path changed: %q", m.Evidence[1].Path)
		}
	})

	t.Run("EmptyManifest", func(t *testing.T) {
		manifest := filepath.Join(dir, "empty.yaml")
		if err := os.WriteFile(manifest, []byte(""), 0o600); err != nil {
			t.Fatal(err)
		}
		m, err := evidence.LoadManifest(manifest, zaptest.NewLogger(t))
		if err != nil {
			t.Fatalf("empty manifest should not fail: %v", err)
		}
		if m.Title != "" || len(m.Evidence) != 0 {
			t.Errorf("expected empty manifest, got %+v", m)
		}
	})

	t.Run("UnknownFields", func(t *testing.T) {
		manifest := filepath.Join(dir, "unknown.yaml")
		if err := os.WriteFile(manifest, []byte("evidence:\n  - label: a\n    path: b.png\n    extra: nope\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := evidence.LoadManifest(manifest, zaptest.NewLogger(t)); err == nil {
			t.Error("expected error for unknown manifest field")
		}
	})

	t.Run("MissingPath", func(t *testing.T) {
		manifest := filepath.Join(dir, "nopath.yaml")
		if err := os.WriteFile(manifest, []byte("evidence:\n  - label: a\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := evidence.LoadManifest(manifest, zaptest.NewLogger(t))
		if err == nil || !strings.Contains(err.Error(), "has no path") {
			t.Errorf("expected record validation error, got %v", err)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := evidence.LoadManifest(filepath.Join(dir, "nonexistent.yaml"), zaptest.NewLogger(t)); err == nil {
			t.Error("expected error for missing manifest")
		}
	})
}
