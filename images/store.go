// Package images locates, copies and substitutes images referenced by help
// pages.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"mwh/wiki"
)

// Options controls image store.
type Options struct {
	// Root is documentation output root.
	Root string
	// Dir is image directory relative to Root.
	Dir string
	// SourceDir is optional secondary directory images could be found in.
	SourceDir string
	// Placeholder is image name substituted for missing images.
	Placeholder string
	// Copy makes Finalize copy images found in SourceDir into image directory.
	Copy bool
	// MaxWidth when positive down-scales wider raster images during copy.
	MaxWidth int
}

// Store answers image existence questions for converters and keeps track of
// images pages referenced. Safe for concurrent use.
type Store struct {
	opts Options
	log  *zap.Logger

	mu         sync.Mutex
	referenced map[string]struct{}
}

// NewStore creates image store.
func NewStore(opts Options, log *zap.Logger) *Store {
	if opts.Dir == "" {
		opts.Dir = wiki.DefaultImageDir
	}
	if opts.Placeholder == "" {
		opts.Placeholder = wiki.DefaultPlaceholder
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		opts:       opts,
		log:        log.Named("images"),
		referenced: make(map[string]struct{}),
	}
}

// Dir returns image directory relative to documentation root.
func (s *Store) Dir() string {
	return s.opts.Dir
}

// Placeholder returns name of placeholder image.
func (s *Store) Placeholder() string {
	return s.opts.Placeholder
}

// OutputDir returns absolute or root relative path of image directory.
func (s *Store) OutputDir() string {
	return filepath.Join(s.opts.Root, filepath.FromSlash(s.opts.Dir))
}

// validName rejects names which would escape image directory.
func validName(name string) bool {
	if name == "" || strings.ContainsRune(name, 0) {
		return false
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(name)))
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return false
	}
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Exists reports whether image could be located either in output image
// directory or in source directory. Matches wiki.ExistsFunc.
func (s *Store) Exists(name string) bool {
	if !validName(name) {
		s.log.Debug("Rejecting image name", zap.String("image", name))
		return false
	}
	if isFile(filepath.Join(s.OutputDir(), filepath.FromSlash(name))) {
		return true
	}
	return s.opts.SourceDir != "" && isFile(filepath.Join(s.opts.SourceDir, filepath.FromSlash(name)))
}

// Reference records image names pages use.
func (s *Store) Reference(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.referenced[n] = struct{}{}
	}
}

// Referenced returns sorted names recorded so far.
func (s *Store) Referenced() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.referenced))
	for n := range s.referenced {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Finalize materializes referenced images in output image directory: copies
// ones found only in source directory (when copying is enabled) and
// generates placeholder image when it was used and is not present.
func (s *Store) Finalize() (err error) {
	names := s.Referenced()
	if len(names) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.OutputDir(), 0o755); err != nil {
		return fmt.Errorf("unable to create image directory: %w", err)
	}

	for _, name := range names {
		if !validName(name) {
			continue
		}
		dst := filepath.Join(s.OutputDir(), filepath.FromSlash(name))
		if isFile(dst) {
			continue
		}
		if name == s.opts.Placeholder {
			err = multierr.Append(err, s.writePlaceholder(dst))
			continue
		}
		if !s.opts.Copy || s.opts.SourceDir == "" {
			continue
		}
		src := filepath.Join(s.opts.SourceDir, filepath.FromSlash(name))
		if !isFile(src) {
			continue
		}
		err = multierr.Append(err, s.copyImage(src, dst))
	}
	return err
}

var errNotImage = errors.New("not an image")

func (s *Store) copyImage(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("unable to read image: %w", err)
	}

	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		// svg is text and is not recognized by signature
		if !strings.EqualFold(filepath.Ext(src), ".svg") {
			s.log.Warn("Skipping file which is not an image", zap.String("file", src))
			return fmt.Errorf("unable to copy %s: %w", src, errNotImage)
		}
	} else {
		s.log.Debug("Copying image", zap.String("file", src), zap.String("type", kind.MIME.Value))
	}

	if s.opts.MaxWidth > 0 && kind.MIME.Type == "image" {
		if scaled, ok := s.downscale(data, dst); ok {
			data = scaled
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("unable to create image directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("unable to write image: %w", err)
	}
	return nil
}

// downscale resizes image wider than MaxWidth keeping aspect ratio. Images
// which cannot be decoded or encoded back into the same format are left
// alone.
func (s *Store) downscale(data []byte, dst string) ([]byte, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= s.opts.MaxWidth {
		return nil, false
	}
	format, err := imaging.FormatFromFilename(dst)
	if err != nil {
		s.log.Debug("Unable to resize image, unsupported output format", zap.String("file", dst), zap.Error(err))
		return nil, false
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		s.log.Debug("Unable to decode image for resizing", zap.String("file", dst), zap.Error(err))
		return nil, false
	}

	resized := imaging.Resize(img, s.opts.MaxWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		s.log.Debug("Unable to encode resized image", zap.String("file", dst), zap.Error(err))
		return nil, false
	}
	s.log.Debug("Image resized", zap.String("file", dst),
		zap.Int("width", cfg.Width), zap.Int("new_width", s.opts.MaxWidth))
	return buf.Bytes(), true
}
