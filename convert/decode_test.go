package convert

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func TestDecodeText_UTF8(t *testing.T) {
	log := zaptest.NewLogger(t)

	if got := decodeText([]byte("== Title ==\nтекст"), "a.wiki", log); got != "== Title ==\nтекст" {
		t.Errorf("plain UTF-8 changed: %q", got)
	}
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, "text"...)
	if got := decodeText(withBOM, "a.wiki", log); got != "text" {
		t.Errorf("BOM not stripped: %q", got)
	}
}

func TestDecodeText_UTF16(t *testing.T) {
	for _, order := range []unicode.Endianness{unicode.LittleEndian, unicode.BigEndian} {
		data, err := unicode.UTF16(order, unicode.UseBOM).NewEncoder().Bytes([]byte("* item\n* другой"))
		if err != nil {
			t.Fatal(err)
		}
		if got := decodeText(data, "a.wiki", zaptest.NewLogger(t)); got != "* item\n* другой" {
			t.Errorf("UTF-16 (%v) decoded to %q", order, got)
		}
	}
}

func TestDecodeText_Legacy(t *testing.T) {
	src := strings.Repeat("Le café de la gare est fermé à cause de la grève. Où est la clé? Ça dépend de l'été. ", 8)
	data, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if utf8.Valid(data) {
		t.Fatal("test data must not be valid UTF-8")
	}

	got := decodeText(data, "legacy.wiki", zaptest.NewLogger(t))
	if !utf8.ValidString(got) {
		t.Fatal("result is not valid UTF-8")
	}
	if !strings.Contains(got, "café") || !strings.Contains(got, "grève") {
		t.Errorf("legacy text not decoded: %q", got[:40])
	}
}

func TestDecodeText_Garbage(t *testing.T) {
	got := decodeText([]byte{0xff, 0xfe, 0xfd, 0x00, 0x81}, "junk.wiki", zaptest.NewLogger(t))
	if !utf8.ValidString(got) {
		t.Errorf("result is not valid UTF-8: %q", got)
	}
}

func TestLookupEncoding(t *testing.T) {
	tests := []struct {
		charset string
		known   bool
	}{
		{"ISO-8859-1", true},
		{"windows-1251", true},
		{"UTF-16LE", true},
		{"Shift_JIS", true},
		{"GB-18030", true},
		{"KOI8-R", true},
		{"no-such-charset", false},
	}
	for _, tt := range tests {
		if got := lookupEncoding(tt.charset); (got != nil) != tt.known {
			t.Errorf("lookupEncoding(%q) = %v, want known=%v", tt.charset, got, tt.known)
		}
	}
}
