package convert

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// minConfidence is lowest chardet confidence we act upon.
const minConfidence = 30

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func lookupEncoding(charset string) encoding.Encoding {
	if enc, err := ianaindex.IANA.Encoding(charset); err == nil && enc != nil {
		return enc
	}
	// chardet uses some names IANA index does not know, like GB-18030
	if enc, err := htmlindex.Get(strings.ReplaceAll(charset, "-", "")); err == nil {
		return enc
	}
	if enc, err := htmlindex.Get(charset); err == nil {
		return enc
	}
	return nil
}

// decodeText returns wiki source as UTF-8 text. Valid UTF-8 (with or without
// BOM) is taken as is, UTF-16 with BOM is decoded, anything else goes through
// charset detection. Undecodable input is returned with invalid sequences
// replaced.
func decodeText(data []byte, name string, log *zap.Logger) string {
	if rest, ok := bytes.CutPrefix(data, utf8BOM); ok {
		return string(rest)
	}
	if len(data) >= 2 && (data[0] == 0xFF && data[1] == 0xFE || data[0] == 0xFE && data[1] == 0xFF) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil {
			return string(out)
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}

	res, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || res == nil || res.Confidence < minConfidence {
		log.Warn("Unable to detect source encoding, assuming UTF-8", zap.String("file", name), zap.Error(err))
		return strings.ToValidUTF8(string(data), "�")
	}

	enc := lookupEncoding(res.Charset)
	if enc == nil {
		log.Warn("Unsupported source encoding, assuming UTF-8", zap.String("file", name), zap.String("charset", res.Charset))
		return strings.ToValidUTF8(string(data), "�")
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		log.Warn("Unable to decode source, assuming UTF-8", zap.String("file", name), zap.String("charset", res.Charset), zap.Error(err))
		return strings.ToValidUTF8(string(data), "�")
	}
	log.Debug("Source decoded", zap.String("file", name), zap.String("charset", res.Charset), zap.Int("confidence", res.Confidence))
	return string(out)
}
