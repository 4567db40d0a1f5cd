// Package links rewrites wiki links into HTML anchors, image figures and
// category records.
package links

import (
	"html"
	"regexp"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"mwh/wiki"
)

// PageResolver returns href for wiki page title.
type PageResolver func(title string) (string, bool)

// Fixer is link rewriting collaborator of wiki.Converter. It records images
// and categories it encounters, so single Fixer must not be shared between
// concurrent conversions.
type Fixer struct {
	images  *wiki.ImageFormatter
	resolve PageResolver
	log     *zap.Logger

	seenImages     map[string]struct{}
	seenCategories map[string]struct{}
}

// New creates link fixer. Nil images leaves image directives untouched, nil
// resolve turns every internal link into plain label.
func New(images *wiki.ImageFormatter, resolve PageResolver, log *zap.Logger) *Fixer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fixer{
		images:         images,
		resolve:        resolve,
		log:            log,
		seenImages:     make(map[string]struct{}),
		seenCategories: make(map[string]struct{}),
	}
}

// TitleKey normalizes page title so that links and file names agree.
func TitleKey(title string) string {
	return slug.Make(strings.ReplaceAll(strings.TrimSpace(title), "_", " "))
}

// FixLinks implements wiki.LinkFixer.
func (f *Fixer) FixLinks(text string) string {
	return f.fixExternal(f.fixInternal(text))
}

// Images returns sorted names of images referenced so far. Placeholder name
// is included when substitution happened.
func (f *Fixer) Images() []string {
	return sortedKeys(f.seenImages)
}

// Categories returns sorted category names seen so far.
func (f *Fixer) Categories() []string {
	return sortedKeys(f.seenCategories)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// fixInternal replaces balanced [[...]] constructs. Unbalanced openings are
// copied as is.
func (f *Fixer) fixInternal(text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, "[[")
		if start < 0 {
			b.WriteString(text)
			break
		}
		end := matchingClose(text, start)
		if end < 0 {
			b.WriteString(text[:start+2])
			text = text[start+2:]
			continue
		}
		b.WriteString(text[:start])
		b.WriteString(f.replace(text[start+2 : end]))
		text = text[end+2:]
	}
	return b.String()
}

// matchingClose returns index of "]]" balancing "[[" at start or -1.
func matchingClose(text string, start int) int {
	depth := 0
	for i := start; i+1 < len(text); i++ {
		switch text[i : i+2] {
		case "[[":
			depth++
			i++
		case "]]":
			depth--
			if depth == 0 {
				return i
			}
			i++
		}
	}
	return -1
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

func (f *Fixer) replace(inner string) string {
	trimmed := strings.TrimSpace(inner)

	if _, ok := cutPrefixFold(trimmed, "File:"); ok {
		return f.image(trimmed)
	}
	if _, ok := cutPrefixFold(trimmed, "Image:"); ok {
		return f.image(trimmed)
	}
	if name, ok := cutPrefixFold(trimmed, "Category:"); ok {
		name, _, _ = strings.Cut(name, "|")
		if name = strings.TrimSpace(name); name != "" {
			f.seenCategories[name] = struct{}{}
		}
		return ""
	}
	return f.page(trimmed)
}

func (f *Fixer) image(inner string) string {
	if f.images == nil {
		return "[[" + inner + "]]"
	}
	// captions may carry links of their own
	inner = f.fixInternal(inner)
	name, fragment := f.images.Format("[[" + inner + "]]")
	f.seenImages[name] = struct{}{}
	return fragment
}

func (f *Fixer) page(inner string) string {
	target, label, hasLabel := strings.Cut(inner, "|")
	target = strings.TrimSpace(target)
	title, anchor, _ := strings.Cut(target, "#")
	if !hasLabel || strings.TrimSpace(label) == "" {
		label = target
	}

	var href string
	switch {
	case title == "" && anchor != "":
		href = "#" + anchor
	case f.resolve != nil:
		h, ok := f.resolve(title)
		if !ok {
			f.log.Warn("Unable to resolve page link", zap.String("page", title))
			return label
		}
		href = h
		if anchor != "" {
			href += "#" + strings.ReplaceAll(strings.TrimSpace(anchor), " ", "_")
		}
	default:
		return label
	}
	return "<a href='" + html.EscapeString(href) + "'>" + label + "</a>"
}

var reExternal = regexp.MustCompile(`\[((?:https?|ftp|mailto|file):[^\s\]]+)(?:\s+([^\]]*))?\]`)

func (f *Fixer) fixExternal(text string) string {
	return reExternal.ReplaceAllStringFunc(text, func(m string) string {
		sub := reExternal.FindStringSubmatch(m)
		target, label := sub[1], strings.TrimSpace(sub[2])
		if label == "" {
			label = target
		}
		return "<a href='" + html.EscapeString(target) + "'>" + label + "</a>"
	})
}
