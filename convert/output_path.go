package convert

import (
	"path"
	"strings"

	"github.com/gosimple/slug"

	"mwh/config"
)

const pageExt = ".html"

// pageTitle derives wiki page title from source path the same way wiki links
// name pages: base name without extension, underscores are spaces.
func pageTitle(src string) string {
	base := path.Base(strings.ReplaceAll(src, `\`, "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.Join(strings.Fields(strings.ReplaceAll(base, "_", " ")), " ")
}

// titleOutputPath returns output page name for wiki page title, the reverse of
// pageTitle: spaces become underscores as in source file names.
func titleOutputPath(title string, transliterate bool) string {
	name := strings.Join(strings.Fields(title), "_")
	if name == "" {
		return ""
	}
	return buildOutputPath(name+".wiki", true, transliterate)
}

// buildOutputPath returns slash separated output page path relative to
// destination. "src" is source path relative to original input (always
// including file name). Directory structure is kept unless noDirs is set, each
// path segment is cleaned and if requested transliterated.
func buildOutputPath(src string, noDirs, transliterate bool) string {
	src = strings.ReplaceAll(src, `\`, "/")
	segments := splitPath(src)
	if len(segments) == 0 {
		return ""
	}

	base := segments[len(segments)-1]
	base = strings.TrimSuffix(base, path.Ext(base))
	name := cleanPathSegment(base, transliterate) + pageExt

	if noDirs {
		return name
	}
	parts := make([]string, 0, len(segments))
	for _, s := range segments[:len(segments)-1] {
		parts = append(parts, cleanPathSegment(s, transliterate))
	}
	return path.Join(append(parts, name)...)
}

func splitPath(p string) []string {
	segments := make([]string, 0, 8)
	for _, s := range strings.Split(path.Clean("/"+p), "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func cleanPathSegment(segment string, transliterate bool) string {
	if transliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}

// relativeRoot returns prefix leading from page directory back to output root.
func relativeRoot(out string) string {
	return strings.Repeat("../", strings.Count(out, "/"))
}
