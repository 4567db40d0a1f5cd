// Package css scans help stylesheets for resources they reference.
package css

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Stylesheet lists what stylesheet refers to.
type Stylesheet struct {
	// Imports holds @import targets.
	Imports []string
	// Resources holds local url() targets (images, fonts), in order of
	// appearance without duplicates.
	Resources []string
	Warnings  []string
}

// Parser scans CSS stylesheets.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse scans CSS text. The optional source parameter identifies what's being
// parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	sheet := &Stylesheet{}
	seen := make(map[string]struct{})

	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	add := func(ref string) {
		if ref == "" {
			return
		}
		if !isLocal(ref) {
			p.log.Debug("Skipping non local resource", zap.String("url", ref))
			return
		}
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		sheet.Resources = append(sheet.Resources, ref)
	}

	input := parse.NewInput(bytes.NewReader(data))
	parser := css.NewParser(input, false)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				p.log.Debug("CSS parse error", zap.Error(err))
				sheet.Warnings = append(sheet.Warnings, err.Error())
			}
			return sheet

		case css.AtRuleGrammar:
			if string(data) == "@import" {
				if ref := extractImportURL(parser.Values()); ref != "" {
					sheet.Imports = append(sheet.Imports, ref)
					p.log.Debug("Parsed @import", zap.String("url", ref))
				}
			}

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			for _, t := range parser.Values() {
				if t.TokenType == css.URLToken {
					add(urlTokenValue(t.Data))
				}
			}
		}
	}
}

// extractImportURL extracts the URL from @import tokens.
// Handles: @import "url"; @import url("url"); @import url(url);
func extractImportURL(tokens []css.Token) string {
	for _, t := range tokens {
		switch t.TokenType {
		case css.StringToken:
			return unquote(string(t.Data))
		case css.URLToken:
			return urlTokenValue(t.Data)
		}
	}
	return ""
}

// urlTokenValue strips url( ) and quotes, token data is the full url(...) string.
func urlTokenValue(data []byte) string {
	s := string(data)
	s = strings.TrimPrefix(s, "url(")
	s = strings.TrimSuffix(s, ")")
	return unquote(strings.TrimSpace(s))
}

func isLocal(ref string) bool {
	if strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "/") {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
