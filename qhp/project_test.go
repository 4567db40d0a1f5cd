package qhp

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

func TestExtractPage(t *testing.T) {
	src := `<!DOCTYPE html><html><head><title>Load  Data</title></head><body>
<h1 class="page-title">Load Data</h1>
<h1>Summary</h1><p>text</p>
<h2 id="props">Properties &amp; <b>flags</b></h2>
<h3>Deep</h3>
<h1></h1>
</body></html>`

	pg, err := ExtractPage("algorithms/load.html", strings.NewReader(src))
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	if pg.Title != "Load Data" {
		t.Errorf("Title = %q", pg.Title)
	}
	want := []Section{
		{Title: "Summary", Level: 1},
		{Title: "Properties & flags", Anchor: "props", Level: 2},
		{Title: "Deep", Level: 3},
	}
	if !reflect.DeepEqual(pg.Sections, want) {
		t.Errorf("Sections = %+v, want %+v", pg.Sections, want)
	}
}

func TestProject_Document(t *testing.T) {
	p := New("org.example.doc", "doc", "Example Help")
	p.AddPage(Page{File: "page10.html", Title: "Page 10"})
	p.AddPage(Page{
		File:  "page2.html",
		Title: "Page 2",
		Sections: []Section{
			{Title: "A", Level: 1},
			{Title: "A.1", Anchor: "a1", Level: 2},
			{Title: "B", Level: 1},
		},
		Keywords: []string{"Algorithms"},
	})
	p.AddFiles("help.css", "img/x.png", "./help.css")

	doc := p.Document()
	root := doc.SelectElement("QtHelpProject")
	if root == nil || root.SelectAttrValue("version", "") != "1.0" {
		t.Fatal("missing QtHelpProject root")
	}
	if ns := root.SelectElement("namespace").Text(); ns != "org.example.doc" {
		t.Errorf("namespace = %q", ns)
	}

	top := doc.FindElement("//toc/section")
	if top.SelectAttrValue("title", "") != "Example Help" {
		t.Errorf("top section title = %q", top.SelectAttrValue("title", ""))
	}
	pages := top.SelectElements("section")
	if len(pages) != 2 {
		t.Fatalf("got %d page sections, want 2", len(pages))
	}
	// natural order puts Page 2 before Page 10
	if pages[0].SelectAttrValue("ref", "") != "page2.html" {
		t.Errorf("first page = %q", pages[0].SelectAttrValue("ref", ""))
	}
	if top.SelectAttrValue("ref", "") != "page2.html" {
		t.Errorf("index ref = %q", top.SelectAttrValue("ref", ""))
	}

	heads := pages[0].SelectElements("section")
	if len(heads) != 2 {
		t.Fatalf("got %d top headings, want 2", len(heads))
	}
	nested := heads[0].SelectElements("section")
	if len(nested) != 1 || nested[0].SelectAttrValue("ref", "") != "page2.html#a1" {
		t.Errorf("nested heading not attached properly")
	}

	var kws []string
	for _, k := range doc.FindElements("//keywords/keyword") {
		kws = append(kws, k.SelectAttrValue("name", ""))
	}
	if want := []string{"Algorithms", "Page 2", "Page 10"}; !reflect.DeepEqual(kws, want) {
		t.Errorf("keywords = %v, want %v", kws, want)
	}

	var files []string
	for _, f := range doc.FindElements("//files/file") {
		files = append(files, f.Text())
	}
	if want := []string{"help.css", "img/x.png", "page2.html", "page10.html"}; !reflect.DeepEqual(files, want) {
		t.Errorf("files = %v, want %v", files, want)
	}
}

func TestProject_WriteFile(t *testing.T) {
	p := New("ns", "vf", "T")
	p.AddPage(Page{File: "index.html", Title: "Index"})

	name := filepath.Join(t.TempDir(), "help.qhp")
	if err := p.WriteFile(name); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(name); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if doc.FindElement("//files/file").Text() != "index.html" {
		t.Error("file list not written")
	}
	if _, err := os.Stat(name); err != nil {
		t.Fatal(err)
	}
}
