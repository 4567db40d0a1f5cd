package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"mwh/images"
	"mwh/links"
	"mwh/misc"
	"mwh/page"
	"mwh/state"
	"mwh/wiki"
)

// Render converts single wiki page (FILE or STDIN) and prints result.
func Render(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("render")

	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many sources", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	var (
		in   io.Reader = os.Stdin
		name           = "STDIN"
		root string
		err  error
	)
	if fname := cmd.Args().Get(0); len(fname) > 0 {
		f, err := os.Open(fname)
		if err != nil {
			return fmt.Errorf("unable to open source file '%s': %w", fname, err)
		}
		defer f.Close()
		in, name, root = f, filepath.Base(fname), filepath.Dir(fname)
	} else if root, err = os.Getwd(); err != nil {
		return fmt.Errorf("unable to get working directory: %w", err)
	}

	return renderPage(ctx, in, name, root, os.Stdout, cmd.Bool("full"), log)
}

// renderPage converts wiki text from r writing HTML fragment (or complete page
// when full is set) to w. Images are looked up relative to root, internal
// links point to pages named the way convert would name them.
func renderPage(ctx context.Context, r io.Reader, name, root string, w io.Writer, full bool, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)
	doc := &env.Cfg.Document

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read wiki source: %w", err)
	}
	text := decodeText(data, name, log)

	store := images.NewStore(images.Options{
		Root:        root,
		Dir:         doc.ImageDir,
		SourceDir:   doc.Images.SourceDir,
		Placeholder: doc.Placeholder,
	}, log)
	formatter := wiki.NewImageFormatter(doc.ImageDir, doc.Placeholder, store.Exists, log)
	fixer := links.New(formatter, func(title string) (string, bool) {
		href := titleOutputPath(title, doc.FileNameTransliterate)
		return href, href != ""
	}, log)

	pw := page.NewWriter(log)
	wiki.NewConverter(doc.DeprecationNotice, log).Convert(text, fixer, pw)

	out := []byte(pw.String())
	if full {
		renderer, err := page.NewRenderer(doc.TemplatePath)
		if err != nil {
			return err
		}
		if out, err = renderer.Render(page.Data{
			Title:      pageTitle(name),
			Stylesheet: stylesheetName(doc.StylesheetPath),
			Body:       string(out),
			Categories: fixer.Categories(),
			SourceFile: name,
			Generator:  misc.GetAppName() + " " + misc.GetVersion(),
		}); err != nil {
			return err
		}
	}

	if imgs := fixer.Images(); len(imgs) > 0 {
		log.Debug("Page references images", zap.Strings("images", imgs))
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("unable to write result: %w", err)
	}
	return nil
}
