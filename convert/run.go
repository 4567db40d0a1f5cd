package convert

import (
	"archive/zip"
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"mwh/archive"
	"mwh/css"
	"mwh/images"
	"mwh/links"
	"mwh/misc"
	"mwh/page"
	"mwh/qhp"
	"mwh/state"
	"mwh/wiki"
)

//go:embed default.css
var defaultStylesheet []byte

// maxSourceSize limits size of a single wiki page read from archive.
const maxSourceSize = 16 << 20

// source is a single wiki page discovered in input.
type source struct {
	// name is slash separated source path relative to original input,
	// always including file name
	name string
	// out is slash separated output page path relative to destination
	out   string
	title string
	// origin is what we report in logs: file path or archive path
	origin string
	load   func() ([]byte, error)
}

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Stylesheet = defaultStylesheet
	if env.Cfg.Document.StylesheetPath != "" {
		data, err := os.ReadFile(env.Cfg.Document.StylesheetPath)
		if err != nil {
			return fmt.Errorf("unable to read style css from %q: %w", env.Cfg.Document.StylesheetPath, err)
		}
		env.Stylesheet = data
	}

	env.NoDirs, env.Overwrite, env.NoProject = cmd.Bool("nodirs"), cmd.Bool("overwrite"), cmd.Bool("no-project")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// process handles the core conversion logic independently of CLI framework. It
// determines the input type (directory, archive, or single file), collects
// wiki pages and builds help set out of them.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	sources, err := collect(ctx, src, log)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		log.Warn("Nothing to process", zap.String("source", src))
		return nil
	}
	return build(ctx, sources, dst, log)
}

// collect locates input and returns wiki pages found there.
func collect(ctx context.Context, src string, log *zap.Logger) ([]source, error) {
	env := state.EnvFromContext(ctx)
	exts := env.Cfg.Document.Extensions

	var (
		head, tail string
		sources    []source
	)
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return nil, fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if sources, err = collectDir(ctx, head, exts, log); err != nil {
				return nil, fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		if isArchiveFile(head) {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if sources, err = collectArchive(ctx, head, filepath.ToSlash(tail), exts, log); err != nil {
				return nil, fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		if len(tail) == 0 {
			// single page, whatever its extension is
			name := filepath.Base(head)
			sources = []source{newSource(env, name, head, func() ([]byte, error) { return os.ReadFile(head) })}
			break
		}
		return nil, fmt.Errorf("input was not recognized as wiki page (%s)", head)
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("input source was not found (%s)", src)
	}
	return dedupe(sources, log), nil
}

func newSource(env *state.LocalEnv, name, origin string, load func() ([]byte, error)) source {
	return source{
		name:   name,
		out:    buildOutputPath(name, env.NoDirs, env.Cfg.Document.FileNameTransliterate),
		title:  pageTitle(name),
		origin: origin,
		load:   load,
	}
}

// dedupe drops pages which would be written to the same output file.
func dedupe(sources []source, log *zap.Logger) []source {
	seen := make(map[string]string, len(sources))
	out := sources[:0]
	for _, s := range sources {
		if prev, ok := seen[s.out]; ok {
			log.Warn("Skipping page, output name is already taken",
				zap.String("file", s.origin), zap.String("by", prev), zap.String("to", s.out))
			continue
		}
		seen[s.out] = s.origin
		out = append(out, s)
	}
	return out
}

func isArchiveFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}

// collectDir walks directory tree finding wiki pages. Archives found inside
// are looked into as well.
func collectDir(ctx context.Context, dir string, exts []string, log *zap.Logger) ([]source, error) {
	env := state.EnvFromContext(ctx)

	var sources []source
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", p), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			log.Warn("Skipping path", zap.String("path", p), zap.Error(err))
			return nil
		}
		rel = filepath.ToSlash(rel)

		if isArchiveFile(p) {
			found, err := collectArchive(ctx, p, "", exts, log)
			if err != nil {
				log.Error("Unable to process archive", zap.String("file", p), zap.Error(err))
				return nil
			}
			prefix := path.Dir(rel)
			for _, s := range found {
				if prefix != "." {
					s.name = path.Join(prefix, s.name)
					s.out = buildOutputPath(s.name, env.NoDirs, env.Cfg.Document.FileNameTransliterate)
				}
				sources = append(sources, s)
			}
			return nil
		}

		if !archive.HasExt(p, exts) {
			log.Debug("Skipping file, not recognized as wiki page or archive", zap.String("file", p))
			return nil
		}
		sources = append(sources, newSource(env, rel, p, func() ([]byte, error) { return os.ReadFile(p) }))
		return nil
	})
	if err == nil && len(sources) == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
	}
	return sources, err
}

// collectArchive walks all files inside archive, finds wiki pages under
// "pathIn" and reads them.
func collectArchive(ctx context.Context, arc, pathIn string, exts []string, log *zap.Logger) ([]source, error) {
	env := state.EnvFromContext(ctx)

	var sources []source
	err := archive.Walk(arc, pathIn, exts, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		pathInArchive := f.FileHeader.Name
		if env.CodePage != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := env.CodePage.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(env.CodePage)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}

		data, err := archive.ReadFile(f, maxSourceSize)
		if err != nil {
			log.Error("Unable to read file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		sources = append(sources, newSource(env, pathInArchive, arc+"/"+f.FileHeader.Name, func() ([]byte, error) { return data, nil }))
		return nil
	})
	if err == nil && len(sources) == 0 {
		log.Debug("Nothing to process", zap.String("archive", arc))
	}
	return sources, err
}

// builder keeps everything needed to produce pages of a single help set.
type builder struct {
	env      *state.LocalEnv
	dst      string
	index    *links.Index
	store    *images.Store
	conv     *wiki.Converter
	renderer *page.Renderer
	project  *qhp.Project
	css      string
	log      *zap.Logger
}

// build converts all collected pages, then copies images and stylesheet and
// writes help project. Failure of a single page is logged and does not stop
// processing.
func build(ctx context.Context, sources []source, dst string, log *zap.Logger) (err error) {
	env := state.EnvFromContext(ctx)
	doc := &env.Cfg.Document

	renderer, err := page.NewRenderer(doc.TemplatePath)
	if err != nil {
		return err
	}

	b := &builder{
		env:   env,
		dst:   dst,
		index: links.NewIndex(),
		store: images.NewStore(images.Options{
			Root:        dst,
			Dir:         doc.ImageDir,
			SourceDir:   doc.Images.SourceDir,
			Placeholder: doc.Placeholder,
			Copy:        doc.Images.Copy,
			MaxWidth:    doc.Images.MaxWidth,
		}, log),
		conv:     wiki.NewConverter(doc.DeprecationNotice, log),
		renderer: renderer,
		css:      stylesheetName(doc.StylesheetPath),
		log:      log,
	}
	if doc.Project.Generate && !env.NoProject {
		title := doc.Project.Title
		if title == "" {
			title = doc.Project.VirtualFolder
		}
		b.project = qhp.New(doc.Project.Namespace, doc.Project.VirtualFolder, title)
	}

	for _, s := range sources {
		b.index.Add(s.title, s.out)
	}

	var failed int
	for _, s := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.processPage(s); err != nil {
			failed++
			log.Error("Unable to process page", zap.String("file", s.origin), zap.Error(err))
		}
	}
	if failed > 0 {
		log.Warn("Some pages were not converted", zap.Int("failed", failed), zap.Int("total", len(sources)))
	}

	err = multierr.Append(err, b.store.Finalize())
	if b.project != nil {
		for _, name := range b.store.Referenced() {
			if _, er := os.Stat(filepath.Join(b.store.OutputDir(), filepath.FromSlash(name))); er == nil {
				b.project.AddFiles(path.Join(b.store.Dir(), name))
			}
		}
	}
	err = multierr.Append(err, b.writeStylesheet())
	err = multierr.Append(err, b.writeProject())
	return err
}

func stylesheetName(p string) string {
	if p == "" {
		return "help.css"
	}
	return filepath.Base(p)
}

// processPage converts single wiki page and writes resulting HTML.
func (b *builder) processPage(s source) (rerr error) {
	var outputName string

	b.log.Info("Conversion starting", zap.String("from", s.origin))
	defer func(start time.Time) {
		// one bad page must not stop the whole help set
		if r := recover(); r != nil {
			b.log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		} else if rerr == nil {
			b.log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	data, err := s.load()
	if err != nil {
		return fmt.Errorf("unable to read wiki source (%s): %w", s.name, err)
	}
	text := decodeText(data, s.name, b.log)

	root := relativeRoot(s.out)
	doc := &b.env.Cfg.Document

	formatter := wiki.NewImageFormatter(root+doc.ImageDir, doc.Placeholder, b.store.Exists, b.log)
	fixer := links.New(formatter, b.index.ResolverFor(s.out), b.log)
	w := page.NewWriter(b.log)
	b.conv.Convert(text, fixer, w)

	html, err := b.renderer.Render(page.Data{
		Title:      s.title,
		Stylesheet: root + b.css,
		Body:       w.String(),
		Categories: fixer.Categories(),
		SourceFile: s.name,
		Generator:  misc.GetAppName() + " " + misc.GetVersion(),
	})
	if err != nil {
		return err
	}

	outputName = filepath.Join(b.dst, filepath.FromSlash(s.out))
	if err := b.prepareOutput(outputName); err != nil {
		return err
	}
	if err := os.WriteFile(outputName, html, 0644); err != nil {
		return fmt.Errorf("unable to write page: %w", err)
	}

	b.store.Reference(fixer.Images()...)

	if b.project != nil {
		pg, err := qhp.ExtractPage(s.out, bytes.NewReader(html))
		if err != nil {
			b.log.Warn("Unable to index page for help project", zap.String("file", outputName), zap.Error(err))
			pg = qhp.Page{File: s.out}
		}
		if pg.Title == "" {
			pg.Title = s.title
		}
		pg.Keywords = fixer.Categories()
		b.project.AddPage(pg)
	}

	// Store conversion result for debugging
	if b.env.Rpt != nil {
		b.env.Rpt.Store("pages/"+s.out, outputName)
	}
	return nil
}

// prepareOutput checks if output file already exists and makes sure its
// directory is there.
func (b *builder) prepareOutput(name string) error {
	if _, err := os.Stat(name); err == nil {
		if !b.env.Overwrite {
			return fmt.Errorf("output file already exists: %s", name)
		}
		b.log.Warn("Overwriting existing file", zap.String("file", name))
		if err = os.Remove(name); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}

// writeStylesheet puts stylesheet next to pages along with local resources it
// refers to.
func (b *builder) writeStylesheet() error {
	name := filepath.Join(b.dst, b.css)
	if err := b.prepareOutput(name); err != nil {
		return fmt.Errorf("unable to write stylesheet: %w", err)
	}
	if err := os.WriteFile(name, b.env.Stylesheet, 0644); err != nil {
		return fmt.Errorf("unable to write stylesheet: %w", err)
	}
	if b.project != nil {
		b.project.AddFiles(b.css)
	}

	sheet := css.NewParser(b.log).Parse(b.env.Stylesheet, b.css)
	if len(sheet.Resources) == 0 {
		return nil
	}
	if b.env.Cfg.Document.StylesheetPath == "" {
		// built-in stylesheet has no resources
		return nil
	}
	srcDir := filepath.Dir(b.env.Cfg.Document.StylesheetPath)

	var err error
	for _, res := range sheet.Resources {
		from := filepath.Join(srcDir, filepath.FromSlash(res))
		to := filepath.Join(b.dst, filepath.FromSlash(res))
		data, er := os.ReadFile(from)
		if er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to read stylesheet resource: %w", er))
			continue
		}
		if er := os.MkdirAll(filepath.Dir(to), 0755); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to create stylesheet resource directory: %w", er))
			continue
		}
		if er := os.WriteFile(to, data, 0644); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to write stylesheet resource: %w", er))
			continue
		}
		if b.project != nil {
			b.project.AddFiles(res)
		}
	}
	return err
}

func (b *builder) writeProject() error {
	if b.project == nil {
		return nil
	}
	name := filepath.Join(b.dst, b.env.Cfg.Document.Project.FileName)
	if err := b.prepareOutput(name); err != nil {
		return fmt.Errorf("unable to write help project: %w", err)
	}
	if err := b.project.WriteFile(name); err != nil {
		return err
	}
	b.log.Info("Help project written", zap.String("file", name))
	if b.env.Rpt != nil {
		b.env.Rpt.Store("project/"+filepath.Base(name), name)
	}
	return nil
}
