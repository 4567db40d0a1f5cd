package wiki

import (
	"regexp"
	"strings"
)

// LineKind is classification of a single line driving emission.
type LineKind int

const (
	LinePlain LineKind = iota
	LineBlank
	LineUnordered
	LineOrdered
	LineHeading
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineUnordered:
		return "unordered"
	case LineOrdered:
		return "ordered"
	case LineHeading:
		return "heading"
	default:
		return "plain"
	}
}

// LineClass describes line after all text passes. For list items Tag holds
// nesting tag (one U or O per marker character) and Text is item content
// without markers.
type LineClass struct {
	Kind LineKind
	Tag  string
	Text string
}

// IsList reports whether line is a list item of any kind.
func (c LineClass) IsList() bool {
	return c.Kind == LineUnordered || c.Kind == LineOrdered
}

var reHeadingTag = regexp.MustCompile(`^<h[1-6][\s>]`)

func isHeadingLine(line string) bool {
	return reHeadingTag.MatchString(strings.TrimSpace(line))
}

func classifyLine(line string) LineClass {
	s := strings.TrimSpace(line)
	switch {
	case s == "":
		return LineClass{Kind: LineBlank}
	case isHeadingLine(s):
		return LineClass{Kind: LineHeading, Text: s}
	case s[0] == '*' || s[0] == '#':
	default:
		return LineClass{Kind: LinePlain, Text: line}
	}

	markers := s[:len(s)-len(strings.TrimLeft(s, "*#"))]
	tag := make([]byte, len(markers))
	for i := range len(markers) {
		if markers[i] == '*' {
			tag[i] = 'U'
		} else {
			tag[i] = 'O'
		}
	}
	kind := LineUnordered
	if markers[len(markers)-1] == '#' {
		kind = LineOrdered
	}
	return LineClass{
		Kind: kind,
		Tag:  string(tag),
		Text: strings.Join(strings.Fields(s[len(markers):]), " "),
	}
}

// classifyLines computes classification for every line once.
func classifyLines(lines []string) []LineClass {
	classes := make([]LineClass, len(lines))
	for i, line := range lines {
		classes[i] = classifyLine(line)
	}
	return classes
}
