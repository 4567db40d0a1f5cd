package wiki

import (
	"go.uber.org/zap"
)

// LinkFixer rewrites wiki links in text into HTML anchors.
type LinkFixer interface {
	FixLinks(text string) string
}

// LinkFixerFunc adapts ordinary function to LinkFixer.
type LinkFixerFunc func(text string) string

// FixLinks calls f(text).
func (f LinkFixerFunc) FixLinks(text string) string {
	return f(text)
}

// NopLinkFixer leaves text untouched.
var NopLinkFixer = LinkFixerFunc(func(text string) string { return text })

// DocumentWriter receives converted markup. CloseTag closes the most
// recently opened tag.
type DocumentWriter interface {
	OpenTag(name string)
	Write(text string)
	CloseTag()
}

// Converter turns wiki text blocks into HTML. It keeps no state between
// calls and may be used concurrently as long as each call gets its own
// link fixer and writer.
type Converter struct {
	deprecationNotice string
	log               *zap.Logger
}

// NewConverter creates converter. Empty notice disables deprecation notice
// spacing.
func NewConverter(notice string, log *zap.Logger) *Converter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{deprecationNotice: notice, log: log}
}

// Prepare runs all text passes preceding link rewriting and returns resulting
// lines. Returns nil for empty text.
func (c *Converter) Prepare(text string) []string {
	text = normalizeText(text)
	if text == "" {
		return nil
	}
	text = spaceDeprecationNotice(text, c.deprecationNotice)
	text = separateHeadings(text)

	lines := clearBlankLines(splitLines(text))
	lines = promoteHeadings(lines)
	return coalesceListItems(lines)
}

// Convert converts text and streams result into w. Links are rewritten by
// fixer, nil fixer leaves them as is. Empty text produces no output.
func (c *Converter) Convert(text string, fixer LinkFixer, w DocumentWriter) {
	prepared := c.Prepare(text)
	if prepared == nil {
		c.log.Debug("Empty wiki text, nothing to convert")
		return
	}
	if fixer == nil {
		fixer = NopLinkFixer
	}

	lines := splitLines(fixer.FixLinks(joinLines(prepared)))
	classes := classifyLines(lines)

	c.log.Debug("Converting wiki text", zap.Int("lines", len(lines)))

	e := emitter{w: w}
	e.run(lines, classes)
}

type emitter struct {
	w    DocumentWriter
	para bool
	list LineClass
}

func (e *emitter) openPara() {
	if !e.para {
		e.w.OpenTag("p")
		e.para = true
	}
}

func (e *emitter) closePara() {
	if e.para {
		e.w.CloseTag()
		e.para = false
	}
}

func (e *emitter) openList(c LineClass) {
	if e.list.Tag == c.Tag {
		return
	}
	e.closeList()
	if c.Kind == LineOrdered {
		e.w.Write("<ol>\n")
	} else {
		e.w.Write("<ul>\n")
	}
	e.list = c
}

func (e *emitter) closeList() {
	if e.list.Tag == "" {
		return
	}
	if e.list.Kind == LineOrdered {
		e.w.Write("</ol>\n")
	} else {
		e.w.Write("</ul>\n")
	}
	e.list = LineClass{}
}

func (e *emitter) run(lines []string, classes []LineClass) {
	isHeading := func(i int) bool {
		return i >= 0 && i < len(classes) && classes[i].Kind == LineHeading
	}

	e.openPara()
	for i, c := range classes {
		switch c.Kind {
		case LineUnordered, LineOrdered:
			e.closePara()
			e.openList(c)
			e.w.Write("<li>" + c.Text + "</li>\n")
		case LineHeading:
			e.closeList()
			e.closePara()
			e.w.Write(c.Text + "\n")
		case LineBlank:
			e.closeList()
			if e.para && !isHeading(i-1) {
				e.closePara()
			}
			if !e.para && !isHeading(i+1) {
				e.openPara()
			}
		default:
			e.closeList()
			e.openPara()
			e.w.Write(lines[i] + "\n")
		}
	}
	e.closeList()
	e.closePara()
}
