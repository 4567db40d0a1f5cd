package wiki

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultDeprecationNotice is heading which, when it starts the text, gets a
// blank line inserted after it.
const DefaultDeprecationNotice = "== Deprecation notice =="

const (
	maxHeadingMarker = 5
	minHeadingMarker = 2
)

func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// normalizeText unifies line endings and trims surrounding whitespace.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

// spaceDeprecationNotice inserts blank line after leading notice heading.
func spaceDeprecationNotice(text, notice string) string {
	if notice == "" || !strings.HasPrefix(text, notice) {
		return text
	}
	return notice + "\n" + text[len(notice):]
}

// clearBlankLines replaces whitespace only lines with empty ones.
func clearBlankLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out[i] = line
	}
	return out
}

// reInlineHeading matches heading marker surrounded by whitespace anywhere in
// text, including the middle of a line.
var reInlineHeading = regexp.MustCompile(`\s+(==+[^=\n].*?==+)\s+`)

// separateHeadings moves headings sharing a line with other text onto lines of
// their own, surrounded by blank lines.
func separateHeadings(text string) string {
	return reInlineHeading.ReplaceAllString(text, "\n\n$1\n\n")
}

// headingLevel returns HTML heading level and heading text for a line which
// is entirely a wiki heading marker, longest marker wins. Level is 0 when
// line is not a heading.
func headingLevel(line string) (int, string) {
	s := strings.TrimSpace(line)
	for n := maxHeadingMarker; n >= minHeadingMarker; n-- {
		marker := strings.Repeat("=", n)
		if len(s) <= 2*n || !strings.HasPrefix(s, marker) || !strings.HasSuffix(s, marker) {
			continue
		}
		inner := strings.TrimSpace(s[n : len(s)-n])
		if inner == "" {
			continue
		}
		return n - 1, inner
	}
	return 0, ""
}

// promoteHeadings replaces wiki heading lines with <hN> markup and makes sure
// every heading is separated from surrounding text by blank lines. Already
// promoted text is left unchanged.
func promoteHeadings(lines []string) []string {
	out := make([]string, 0, len(lines)+4)
	for i, line := range lines {
		level, inner := headingLevel(line)
		if level == 0 {
			out = append(out, line)
			continue
		}
		if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
			out = append(out, "")
		}
		out = append(out, fmt.Sprintf("<h%d>%s</h%d>", level, inner, level))
		if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
			out = append(out, "")
		}
	}
	return out
}

func isUnorderedStart(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "*")
}

func isListLine(line string) bool {
	s := strings.TrimSpace(line)
	return strings.HasPrefix(s, "*") || strings.HasPrefix(s, "#")
}

// coalesceListItems folds wrapped continuation lines of unordered list items
// into the item line. Continuation ends on a blank line, another list item or
// a heading. Text without list items is returned unchanged.
func coalesceListItems(lines []string) []string {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !isUnorderedStart(line) {
			out = append(out, line)
			continue
		}
		parts := []string{line}
		for i+1 < len(lines) {
			next := lines[i+1]
			if strings.TrimSpace(next) == "" || isListLine(next) || isHeadingLine(next) {
				break
			}
			parts = append(parts, strings.TrimSpace(next))
			i++
		}
		if len(parts) == 1 {
			out = append(out, line)
			continue
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}
