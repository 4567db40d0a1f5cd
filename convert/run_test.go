package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"mwh/config"
	"mwh/state"
)

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	env.Stylesheet = defaultStylesheet
	return ctx, env
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func makeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "pages.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, name := range names {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(files[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return zipPath
}

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func mustContain(t *testing.T, what, text string, subs ...string) {
	t.Helper()
	for _, s := range subs {
		if !strings.Contains(text, s) {
			t.Errorf("%s does not contain %q:\n%s", what, s, text)
		}
	}
}

var samplePages = map[string]string{
	"Main_Page.wiki":            "== Intro ==\nSee [[Load Data]] and [[Missing Page]].\n\n[[Image:pic.png|thumb|A picture]]\n[[Category:Help]]\n",
	"algorithms/Load_Data.wiki": "* first\n* second\n\nBack to [[Main Page|home]].\n",
	"notes.md":                  "not a wiki page",
}

// TestProcess_Directory converts a small tree and checks pages, images,
// stylesheet and help project.
func TestProcess_Directory(t *testing.T) {
	ctx, _ := setupTestEnv(t)
	src, dst := t.TempDir(), t.TempDir()
	writeFiles(t, src, samplePages)

	if err := process(ctx, src, dst, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("process: %v", err)
	}

	main := readFile(t, filepath.Join(dst, "Main_Page.html"))
	mustContain(t, "Main_Page.html", main,
		"<title>Main Page</title>",
		`href="help.css"`,
		"<h1>Intro</h1>",
		"<a href='algorithms/Load_Data.html'>Load Data</a>",
		"Missing Page",
		"src='img/ImageNotFound.png'",
		"Missing image: pic.png",
		"Categories: Help",
	)
	if strings.Contains(main, "href='Missing") {
		t.Error("unresolved page must not be linked")
	}

	load := readFile(t, filepath.Join(dst, "algorithms", "Load_Data.html"))
	mustContain(t, "Load_Data.html", load,
		`href="../help.css"`,
		"<ul>\n<li>first</li>\n<li>second</li>\n</ul>",
		"<a href='../Main_Page.html'>home</a>",
	)

	if _, err := os.Stat(filepath.Join(dst, "notes.html")); !os.IsNotExist(err) {
		t.Error("files with unknown extensions must be skipped")
	}
	for _, name := range []string{"help.css", "img/ImageNotFound.png", "help.qhp"} {
		if _, err := os.Stat(filepath.Join(dst, filepath.FromSlash(name))); err != nil {
			t.Errorf("%s was not produced: %v", name, err)
		}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(filepath.Join(dst, "help.qhp")); err != nil {
		t.Fatalf("read help project: %v", err)
	}
	var files []string
	for _, f := range doc.FindElements("//files/file") {
		files = append(files, f.Text())
	}
	want := []string{"Main_Page.html", "algorithms/Load_Data.html", "help.css", "img/ImageNotFound.png"}
	slices.Sort(files)
	if !slices.Equal(files, want) {
		t.Errorf("project files = %v, want %v", files, want)
	}
	var keywords []string
	for _, k := range doc.FindElements("//keywords/keyword") {
		keywords = append(keywords, k.SelectAttrValue("name", ""))
	}
	if !slices.Contains(keywords, "Help") || !slices.Contains(keywords, "Load Data") {
		t.Errorf("project keywords = %v", keywords)
	}
	if doc.FindElement("//toc/section/section[@title='Main Page']/section[@title='Intro']") == nil {
		t.Error("page heading missing from table of contents")
	}
}

func TestProcess_ExistingOutput(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src, dst := t.TempDir(), t.TempDir()
	writeFiles(t, src, samplePages)

	if err := process(ctx, src, dst, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := process(ctx, src, dst, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error when output exists and overwrite is not allowed")
	}

	env.Overwrite = true
	if err := process(ctx, src, dst, zaptest.NewLogger(t)); err != nil {
		t.Errorf("run with overwrite: %v", err)
	}
}

func TestProcess_NoDirsNoProject(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.NoDirs, env.NoProject = true, true
	src, dst := t.TempDir(), t.TempDir()
	writeFiles(t, src, samplePages)

	if err := process(ctx, src, dst, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("process: %v", err)
	}
	load := readFile(t, filepath.Join(dst, "Load_Data.html"))
	mustContain(t, "Load_Data.html", load, `href="help.css"`, "<a href='Main_Page.html'>home</a>")
	if _, err := os.Stat(filepath.Join(dst, "help.qhp")); !os.IsNotExist(err) {
		t.Error("help project must not be written")
	}
}

func TestProcess_Archive(t *testing.T) {
	ctx, _ := setupTestEnv(t)
	arc := makeZip(t, map[string]string{
		"docs/A.wiki":    "Page A links [[B]].",
		"docs/B.txt":     "Page B",
		"docs/readme.md": "skip me",
		"other/C.wiki":   "Page C",
	})
	dst := t.TempDir()

	if err := process(ctx, filepath.Join(arc, "docs"), dst, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("process: %v", err)
	}
	a := readFile(t, filepath.Join(dst, "docs", "A.html"))
	mustContain(t, "A.html", a, "<a href='B.html'>B</a>")
	if _, err := os.Stat(filepath.Join(dst, "docs", "B.html")); err != nil {
		t.Errorf("B.html: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "other", "C.html")); !os.IsNotExist(err) {
		t.Error("page outside of requested archive path must be skipped")
	}
}

func TestProcess_SingleFile(t *testing.T) {
	ctx, _ := setupTestEnv(t)
	src, dst := t.TempDir(), t.TempDir()
	writeFiles(t, src, map[string]string{"Only.page": "Just text"})

	if err := process(ctx, filepath.Join(src, "Only.page"), dst, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("process: %v", err)
	}
	mustContain(t, "Only.html", readFile(t, filepath.Join(dst, "Only.html")), "<p>Just text\n</p>")
}

func TestProcess_NonExistentPath(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	err := process(ctx, "/nonexistent/path/file.wiki", t.TempDir(), zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("Expected error for non-existent path, got nil")
	}
	if !strings.Contains(err.Error(), "input source was not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, _ := setupTestEnv(t)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	tmpDir := t.TempDir()
	if err := process(cancelCtx, tmpDir, tmpDir, zaptest.NewLogger(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestDedupe(t *testing.T) {
	sources := []source{
		{origin: "a/X.wiki", out: "X.html"},
		{origin: "b/X.wiki", out: "X.html"},
		{origin: "Y.wiki", out: "Y.html"},
	}
	got := dedupe(sources, zaptest.NewLogger(t))
	if len(got) != 2 || got[0].origin != "a/X.wiki" || got[1].origin != "Y.wiki" {
		t.Errorf("dedupe() = %+v", got)
	}
}

func writePNG(t *testing.T, name string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	writeFiles(t, filepath.Dir(name), map[string]string{filepath.Base(name): buf.String()})
}
