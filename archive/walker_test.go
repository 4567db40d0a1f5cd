package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func makeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")

	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	w := zip.NewWriter(zipFile)

	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, name := range names {
		if name[len(name)-1] == '/' {
			hdr := &zip.FileHeader{Name: name}
			hdr.SetMode(os.ModeDir | 0755)
			if _, err := w.CreateHeader(hdr); err != nil {
				t.Fatalf("Failed to create directory: %v", err)
			}
			continue
		}
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create file %s in zip: %v", name, err)
		}
		if _, err := fw.Write([]byte(files[name])); err != nil {
			t.Fatalf("Failed to write content for %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	zipFile.Close()
	return zipPath
}

func visit(t *testing.T, zipPath, prefix string, exts []string) []string {
	t.Helper()
	var visited []string
	err := Walk(zipPath, prefix, exts, func(archive string, file *zip.File) error {
		if archive != zipPath {
			t.Errorf("archive = %s, want %s", archive, zipPath)
		}
		visited = append(visited, file.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	return visited
}

func TestWalk(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"docs/":           "",
		"docs/Load.wiki":  "== Load ==",
		"docs/Save.WIKI":  "== Save ==",
		"docs/notes.txt":  "notes",
		"img/logo.png":    "png",
		"Docs/Upper.wiki": "upper",
		"index.mediawiki": "index",
	})

	tests := []struct {
		name   string
		prefix string
		exts   []string
		want   []string
	}{
		{"prefix only", "docs/", nil, []string{"docs/Load.wiki", "docs/Save.WIKI", "docs/notes.txt"}},
		{"prefix and extension", "docs/", []string{".wiki"}, []string{"docs/Load.wiki", "docs/Save.WIKI"}},
		{"case sensitive prefix", "Docs/", nil, []string{"Docs/Upper.wiki"}},
		{"no match", "nonexistent/", nil, nil},
		{"everything with extensions", "", []string{".wiki", ".mediawiki"}, []string{"Docs/Upper.wiki", "docs/Load.wiki", "docs/Save.WIKI", "index.mediawiki"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := visit(t, zipPath, tt.prefix, tt.exts)
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Errorf("visited %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWalk_EarlyTermination(t *testing.T) {
	zipPath := makeZip(t, map[string]string{"a.wiki": "", "b.wiki": "", "c.wiki": ""})

	var visited int
	stopErr := errors.New("stop walking")
	err := Walk(zipPath, "", nil, func(archive string, file *zip.File) error {
		visited++
		if visited == 2 {
			return stopErr
		}
		return nil
	})
	if !errors.Is(err, stopErr) {
		t.Errorf("Walk() error = %v, want %v", err, stopErr)
	}
	if visited != 2 {
		t.Errorf("visited %d files, want 2", visited)
	}
}

func TestWalk_InvalidArchive(t *testing.T) {
	if err := Walk("/nonexistent/file.zip", "", nil, func(string, *zip.File) error { return nil }); err == nil {
		t.Error("Expected error for nonexistent file")
	}

	invalidZip := filepath.Join(t.TempDir(), "invalid.zip")
	if err := os.WriteFile(invalidZip, []byte("not a zip file"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Walk(invalidZip, "", nil, func(string, *zip.File) error { return nil }); err == nil {
		t.Error("Expected error for invalid zip file")
	}
}

func TestWalk_UnsafePath(t *testing.T) {
	zipPath := makeZip(t, map[string]string{"../evil.wiki": "x"})
	if err := Walk(zipPath, "", nil, func(string, *zip.File) error { return nil }); err == nil {
		t.Error("Expected error for path traversal entry")
	}
}

func TestReadFile(t *testing.T) {
	zipPath := makeZip(t, map[string]string{"page.wiki": "0123456789"})

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	data, err := ReadFile(r.File[0], 0)
	if err != nil || string(data) != "0123456789" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
	if _, err := ReadFile(r.File[0], 5); err == nil {
		t.Error("expected size limit error")
	}
}

func TestHasExt(t *testing.T) {
	tests := []struct {
		name string
		exts []string
		want bool
	}{
		{"a/b.wiki", []string{".wiki"}, true},
		{"a/b.Wiki", []string{".wiki"}, true},
		{"a/b.txt", []string{".wiki"}, false},
		{"a/b", nil, true},
		{`a\b.txt`, []string{".txt"}, true},
	}
	for _, tt := range tests {
		if got := HasExt(tt.name, tt.exts); got != tt.want {
			t.Errorf("HasExt(%q, %v) = %v, want %v", tt.name, tt.exts, got, tt.want)
		}
	}
}
