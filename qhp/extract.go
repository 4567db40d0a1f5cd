package qhp

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	}
	return 0
}

// ExtractPage reads rendered HTML page and collects its title and headings.
// Headings marked with class "page-title" repeat the title and are skipped.
func ExtractPage(file string, r io.Reader) (Page, error) {
	pg := Page{File: file}

	z := html.NewTokenizer(r)

	var (
		inTitle  bool
		title    strings.Builder
		current  *Section
		text     strings.Builder
		skipping bool
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return pg, fmt.Errorf("unable to parse page %s: %w", file, err)
			}
			pg.Title = strings.Join(strings.Fields(title.String()), " ")
			return pg, nil

		case html.StartTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.Title {
				inTitle = true
				continue
			}
			if level := headingLevel(tok.DataAtom); level > 0 {
				current = &Section{Level: level}
				skipping = false
				for _, a := range tok.Attr {
					switch a.Key {
					case "id":
						current.Anchor = a.Val
					case "class":
						if strings.Contains(" "+a.Val+" ", " page-title ") {
							skipping = true
						}
					}
				}
				text.Reset()
			}

		case html.EndTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.Title {
				inTitle = false
				continue
			}
			if current != nil && headingLevel(tok.DataAtom) == current.Level {
				current.Title = strings.Join(strings.Fields(text.String()), " ")
				if !skipping && current.Title != "" {
					pg.Sections = append(pg.Sections, *current)
				}
				current = nil
			}

		case html.TextToken:
			switch {
			case inTitle:
				title.Write(z.Text())
			case current != nil:
				text.Write(z.Text())
			}
		}
	}
}
