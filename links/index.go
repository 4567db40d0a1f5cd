package links

import (
	"path"
	"strings"
)

// Index maps page titles to output files (slash separated, relative to
// output root).
type Index struct {
	files map[string]string
}

// NewIndex creates empty index.
func NewIndex() *Index {
	return &Index{files: make(map[string]string)}
}

// Add registers output file for page title. First registration wins.
func (idx *Index) Add(title, file string) {
	key := TitleKey(title)
	if key == "" {
		return
	}
	if _, exists := idx.files[key]; exists {
		return
	}
	idx.files[key] = file
}

// Len returns number of registered pages.
func (idx *Index) Len() int {
	return len(idx.files)
}

// Lookup returns output file registered for title.
func (idx *Index) Lookup(title string) (string, bool) {
	file, ok := idx.files[TitleKey(title)]
	return file, ok
}

// ResolverFor returns PageResolver producing hrefs relative to page file from.
func (idx *Index) ResolverFor(from string) PageResolver {
	return func(title string) (string, bool) {
		file, ok := idx.Lookup(title)
		if !ok {
			return "", false
		}
		return Relative(from, file), true
	}
}

// Relative returns slash separated path to target as seen from file from.
// Both paths are relative to the same root.
func Relative(from, target string) string {
	fromDir := path.Dir(path.Clean(from))
	if fromDir == "." {
		return path.Clean(target)
	}
	up := strings.Count(fromDir, "/") + 1
	// strip common leading directories
	fromParts := strings.Split(fromDir, "/")
	targetParts := strings.Split(path.Clean(target), "/")
	common := 0
	for common < len(fromParts) && common < len(targetParts)-1 && fromParts[common] == targetParts[common] {
		common++
	}
	up -= common
	return strings.Repeat("../", up) + strings.Join(targetParts[common:], "/")
}
