package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestReport_Close(t *testing.T) {
	tmp := t.TempDir()

	conf := ReporterConfig{Destination: filepath.Join(tmp, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	page := filepath.Join(tmp, "page.html")
	if err := os.WriteFile(page, []byte("<p>x</p>"), 0644); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(tmp, "img")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	r.Store("page.html", page)
	r.Store("page.html", page) // same path again is fine
	r.Store("images", dir)
	r.Store("missing", filepath.Join(tmp, "nope"))
	r.StoreData("config.yaml", []byte("version: 1\n"))

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	zr, err := zip.OpenReader(r.Name())
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer zr.Close()

	var names []string
	content := make(map[string]string)
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		content[f.Name] = string(data)
	}

	for _, want := range []string{"MANIFEST", "config.yaml", "images/a.png", "page.html"} {
		if !slices.Contains(names, want) {
			t.Errorf("report missing %q, has %v", want, names)
		}
	}
	if slices.Contains(names, "missing") {
		t.Error("absent file should be skipped")
	}
	if content["config.yaml"] != "version: 1\n" {
		t.Errorf("config.yaml = %q", content["config.yaml"])
	}
	if !strings.Contains(content["MANIFEST"], "missing") {
		t.Error("manifest should list every stored entry")
	}
}

func TestReport_StoreConflictPanics(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	r.Store("a", "/one")

	defer func() {
		if recover() == nil {
			t.Error("expected panic on conflicting Store")
		}
	}()
	r.Store("a", "/two")
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	r.Store("x", "y")
	r.StoreData("z", nil)
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
	if r.Name() != "" {
		t.Error("nil report has no name")
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
