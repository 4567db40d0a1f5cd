package images

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"go.uber.org/zap"
)

//go:embed not-found.svg
var notFoundSVG []byte

const defaultSVGSize = 1024 // used when SVG viewBox has no size

// maxRasterDim limits rasterized image size so huge viewBox values cannot
// exhaust memory.
var maxRasterDim = 4096

// RasterizeSVG rasterizes SVG to an RGBA image on white background using
// dimensions of its viewBox, limited to maxRasterDim on the larger side.
func RasterizeSVG(svgData []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, err
	}

	w := int(math.Ceil(icon.ViewBox.W))
	h := int(math.Ceil(icon.ViewBox.H))
	if w <= 0 {
		w = defaultSVGSize
	}
	if h <= 0 {
		h = defaultSVGSize
	}

	if w > maxRasterDim || h > maxRasterDim {
		s := min(float64(maxRasterDim)/float64(w), float64(maxRasterDim)/float64(h))
		w = max(int(math.Round(float64(w)*s)), 1)
		h = max(int(math.Round(float64(h)*s)), 1)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return dst, nil
}

// PlaceholderImage returns built-in "image not found" picture encoded in
// format matching name extension (PNG when extension is not recognized).
func PlaceholderImage(name string) ([]byte, error) {
	img, err := RasterizeSVG(notFoundSVG)
	if err != nil {
		return nil, fmt.Errorf("unable to rasterize placeholder: %w", err)
	}
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		format = imaging.PNG
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("unable to encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Store) writePlaceholder(dst string) error {
	data, err := PlaceholderImage(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("unable to create image directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("unable to write placeholder: %w", err)
	}
	s.log.Debug("Placeholder image generated", zap.String("file", dst))
	return nil
}
