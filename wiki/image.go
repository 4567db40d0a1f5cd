// Package wiki converts blocks of wiki markup into HTML fragments.
package wiki

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultImageDir is directory image src attributes point into.
	DefaultImageDir = "img"
	// DefaultPlaceholder is image name substituted for missing images.
	DefaultPlaceholder = "ImageNotFound.png"
)

// ExistsFunc reports whether image with given name could be located.
type ExistsFunc func(name string) bool

// ImageDirective is parsed form of [[File:...]] image tag.
type ImageDirective struct {
	Filename   string
	Align      Alignment
	Alt        string
	HasAlt     bool
	Caption    string
	HasCaption bool
	Width      int
	Height     int
}

// ImageFormatter turns image tags into <figure> fragments.
type ImageFormatter struct {
	Dir         string
	Placeholder string
	Exists      ExistsFunc

	log *zap.Logger
}

// NewImageFormatter creates formatter. Empty dir and placeholder are replaced
// with defaults, nil exists treats every image as present.
func NewImageFormatter(dir, placeholder string, exists ExistsFunc, log *zap.Logger) *ImageFormatter {
	if dir == "" {
		dir = DefaultImageDir
	}
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ImageFormatter{
		Dir:         dir,
		Placeholder: placeholder,
		Exists:      exists,
		log:         log,
	}
}

// ParseImageDirective parses raw image tag without logging.
func ParseImageDirective(raw string) ImageDirective {
	return parseImageDirective(raw, zap.NewNop())
}

// Parse parses raw image tag. Raw tag may carry "[[" and anything up to and
// including first colon in front and "]]" at the end.
func (f *ImageFormatter) Parse(raw string) ImageDirective {
	return parseImageDirective(raw, f.log)
}

func parseImageDirective(raw string, log *zap.Logger) ImageDirective {
	body := raw
	if idx := strings.IndexByte(body, ':'); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = strings.TrimPrefix(body, "[[")
	}
	body = strings.TrimSuffix(body, "]]")

	segments := strings.Split(body, "|")
	d := ImageDirective{Filename: strings.TrimSpace(segments[0])}

	for _, seg := range segments[1:] {
		low := strings.ToLower(seg)
		switch {
		case low == "thumb":
			// layout hint, ignored
		case strings.HasSuffix(seg, "px"):
			d.setDimensions(strings.TrimSuffix(seg, "px"), log)
		case low == "left" || low == "center" || low == "right":
			d.Align, _ = ParseAlignment(low)
		case strings.HasPrefix(low, "alt"):
			if _, alt, found := strings.Cut(seg, "="); found {
				d.Alt = alt
			}
			d.HasAlt = true
		default:
			// only one caption slot, last unrecognized segment wins
			d.Caption, d.HasCaption = seg, true
		}
	}
	return d
}

func (d *ImageDirective) setDimensions(token string, log *zap.Logger) {
	parse := func(s string) (int, bool) {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n <= 0 {
			log.Debug("Ignoring bad image dimension", zap.String("token", token), zap.String("value", s))
			return 0, false
		}
		return n, true
	}

	if h, ok := strings.CutPrefix(token, "x"); ok {
		if n, ok := parse(h); ok {
			d.Height = n
		}
		return
	}
	if w, h, ok := strings.Cut(token, "x"); ok {
		if n, ok := parse(w); ok {
			d.Width = n
		}
		if n, ok := parse(h); ok {
			d.Height = n
		}
		return
	}
	if n, ok := parse(token); ok {
		d.Width = n
	}
}

// Resolve checks image presence and substitutes placeholder when image could
// not be found. Missing image note referencing original name is added to the
// caption. Returns name to use for rendering.
func (f *ImageFormatter) Resolve(d *ImageDirective) string {
	if f.Exists == nil || f.Exists(d.Filename) {
		return d.Filename
	}

	f.log.Warn("Missing image, using placeholder", zap.String("image", d.Filename), zap.String("placeholder", f.Placeholder))

	note := "Missing image: " + d.Filename
	if d.HasCaption {
		d.Caption += "\n" + note
	} else {
		d.Caption, d.HasCaption = note, true
	}
	return f.Placeholder
}

// Format parses raw image tag, resolves it and renders HTML fragment.
// Returns resolved image name and fragment.
func (f *ImageFormatter) Format(raw string) (string, string) {
	d := f.Parse(raw)
	name := f.Resolve(&d)
	return name, f.Render(d, name)
}

// Render produces <figure> fragment for directive using name as image file.
func (f *ImageFormatter) Render(d ImageDirective, name string) string {
	var b strings.Builder

	b.WriteString("<figure>")
	b.WriteString("<img src='")
	b.WriteString(html.EscapeString(f.Dir + "/" + name))
	b.WriteString("'")
	if d.HasAlt {
		fmt.Fprintf(&b, " alt='%s'", html.EscapeString(d.Alt))
	}
	if d.Align != AlignNone {
		fmt.Fprintf(&b, " align='%s'", d.Align)
	}
	if d.Width > 0 {
		fmt.Fprintf(&b, " width='%d'", d.Width)
	}
	if d.Height > 0 {
		fmt.Fprintf(&b, " height='%d'", d.Height)
	}
	b.WriteString("/>")
	if d.HasCaption {
		fmt.Fprintf(&b, "\n<figcaption>%s</figcaption>\n", d.Caption)
	}
	b.WriteString("</figure>\n")
	return b.String()
}
