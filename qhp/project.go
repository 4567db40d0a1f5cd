// Package qhp builds Qt Help Project files describing converted help pages.
package qhp

import (
	"fmt"
	"os"
	"path"
	"slices"
	"sort"
	"sync"

	"github.com/beevik/etree"
	"github.com/maruel/natural"
)

// Section is a heading inside a page.
type Section struct {
	Title  string
	Anchor string
	Level  int
}

// Page describes single converted help page. File is slash separated and
// relative to project file.
type Page struct {
	File     string
	Title    string
	Sections []Section
	Keywords []string
}

// Project accumulates pages and auxiliary files. Safe for concurrent use.
type Project struct {
	Namespace     string
	VirtualFolder string
	Title         string

	mu    sync.Mutex
	pages []Page
	files map[string]struct{}
}

// New creates empty project.
func New(namespace, virtualFolder, title string) *Project {
	return &Project{
		Namespace:     namespace,
		VirtualFolder: virtualFolder,
		Title:         title,
		files:         make(map[string]struct{}),
	}
}

// AddPage registers page. Page file is added to file list.
func (p *Project) AddPage(pg Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = append(p.pages, pg)
	p.files[pg.File] = struct{}{}
}

// AddFiles registers auxiliary files (stylesheets, images).
func (p *Project) AddFiles(files ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range files {
		if f != "" {
			p.files[path.Clean(f)] = struct{}{}
		}
	}
}

// Pages returns pages in natural order of their titles.
func (p *Project) Pages() []Page {
	p.mu.Lock()
	pages := slices.Clone(p.pages)
	p.mu.Unlock()

	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Title == pages[j].Title {
			return natural.Less(pages[i].File, pages[j].File)
		}
		return natural.Less(pages[i].Title, pages[j].Title)
	})
	return pages
}

func (p *Project) indexFile(pages []Page) string {
	for _, pg := range pages {
		if path.Base(pg.File) == "index.html" {
			return pg.File
		}
	}
	if len(pages) > 0 {
		return pages[0].File
	}
	return ""
}

// Document builds project XML.
func (p *Project) Document() *etree.Document {
	pages := p.Pages()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("QtHelpProject")
	root.CreateAttr("version", "1.0")
	root.CreateElement("namespace").SetText(p.Namespace)
	root.CreateElement("virtualFolder").SetText(p.VirtualFolder)

	filter := root.CreateElement("filterSection")

	toc := filter.CreateElement("toc")
	top := toc.CreateElement("section")
	top.CreateAttr("title", p.Title)
	top.CreateAttr("ref", p.indexFile(pages))
	for _, pg := range pages {
		addPageSections(top, pg)
	}

	keywords := filter.CreateElement("keywords")
	for _, kw := range collectKeywords(pages) {
		el := keywords.CreateElement("keyword")
		el.CreateAttr("name", kw.name)
		el.CreateAttr("ref", kw.ref)
	}

	files := filter.CreateElement("files")
	for _, f := range p.fileList() {
		files.CreateElement("file").SetText(f)
	}

	doc.Indent(2)
	return doc
}

// addPageSections appends page section with its headings nested by level.
func addPageSections(parent *etree.Element, pg Page) {
	el := parent.CreateElement("section")
	el.CreateAttr("title", pg.Title)
	el.CreateAttr("ref", pg.File)

	type level struct {
		el    *etree.Element
		depth int
	}
	stack := []level{{el: el, depth: 0}}
	for _, s := range pg.Sections {
		for len(stack) > 1 && stack[len(stack)-1].depth >= s.Level {
			stack = stack[:len(stack)-1]
		}
		sec := stack[len(stack)-1].el.CreateElement("section")
		sec.CreateAttr("title", s.Title)
		ref := pg.File
		if s.Anchor != "" {
			ref += "#" + s.Anchor
		}
		sec.CreateAttr("ref", ref)
		stack = append(stack, level{el: sec, depth: s.Level})
	}
}

type keyword struct {
	name, ref string
}

func collectKeywords(pages []Page) []keyword {
	seen := make(map[keyword]struct{})
	var out []keyword
	add := func(name, ref string) {
		if name == "" {
			return
		}
		kw := keyword{name: name, ref: ref}
		if _, ok := seen[kw]; ok {
			return
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	for _, pg := range pages {
		add(pg.Title, pg.File)
		for _, k := range pg.Keywords {
			add(k, pg.File)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].name == out[j].name {
			return natural.Less(out[i].ref, out[j].ref)
		}
		return natural.Less(out[i].name, out[j].name)
	})
	return out
}

func (p *Project) fileList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	files := make([]string, 0, len(p.files))
	for f := range p.files {
		files = append(files, f)
	}
	sort.Sort(natural.StringSlice(files))
	return files
}

// WriteFile writes project XML into file.
func (p *Project) WriteFile(name string) error {
	doc := p.Document()
	data, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("unable to serialize help project: %w", err)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("unable to write help project: %w", err)
	}
	return nil
}
