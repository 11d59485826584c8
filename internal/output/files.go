package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"dividend-screener/internal/models"
)

// Default artifact names.
const (
	DefaultCSVName  = "screener.csv"
	DefaultHTMLName = "screener.html"
)

// Options selects which artifacts WriteFiles produces.
type Options struct {
	Dir      string
	CSVName  string
	HTMLName string
	CSV      bool
	HTML     bool
	Unit     models.Unit
	Meta     Meta
}

// WriteFiles writes the selected artifacts into opts.Dir, each replacing
// any previous file atomically. It returns the paths written; a failure of
// one artifact does not prevent the other.
func WriteFiles(rows []models.Row, opts Options) ([]string, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.CSVName == "" {
		opts.CSVName = DefaultCSVName
	}
	if opts.HTMLName == "" {
		opts.HTMLName = DefaultHTMLName
	}
	if opts.Unit == "" {
		opts.Unit = models.UnitFraction
	}
	opts.Meta.Unit = opts.Unit

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var (
		written []string
		errs    error
	)

	if opts.CSV {
		path := filepath.Join(opts.Dir, opts.CSVName)
		err := writeAtomic(path, func(w io.Writer) error {
			return WriteCSV(w, rows, opts.Unit)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("csv %s: %w", path, err))
		} else {
			written = append(written, path)
		}
	}

	if opts.HTML {
		path := filepath.Join(opts.Dir, opts.HTMLName)
		err := writeAtomic(path, func(w io.Writer) error {
			return WriteHTML(w, rows, opts.Meta)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("html %s: %w", path, err))
		} else {
			written = append(written, path)
		}
	}

	return written, errs
}

// writeAtomic writes to a temp file in the target directory and renames it
// over path, so readers never see a partial artifact.
func writeAtomic(path string, render func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = render(bw); err != nil {
		tmp.Close()
		return err
	}
	if err = bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
