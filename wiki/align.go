package wiki

import (
	"fmt"
	"strings"
)

// Alignment of an image inside the page.
type Alignment int

const (
	AlignNone Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

var alignmentNames = [...]string{
	AlignNone:   "none",
	AlignLeft:   "left",
	AlignCenter: "center",
	AlignRight:  "right",
}

func (a Alignment) String() string {
	if a < 0 || int(a) >= len(alignmentNames) {
		return fmt.Sprintf("Alignment(%d)", int(a))
	}
	return alignmentNames[a]
}

// ParseAlignment converts image directive token to Alignment. Only left,
// center and right are recognized, case does not matter.
func ParseAlignment(s string) (Alignment, error) {
	switch strings.ToLower(s) {
	case "left":
		return AlignLeft, nil
	case "center":
		return AlignCenter, nil
	case "right":
		return AlignRight, nil
	}
	return AlignNone, fmt.Errorf("%q is not a valid Alignment", s)
}
