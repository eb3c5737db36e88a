package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/community-solar/internal/fetcher"
	"github.com/sells-group/community-solar/internal/store"
	"github.com/sells-group/community-solar/pkg/arcgis"
)

// Store is the subset of the pipeline store used by ingestion.
type Store interface {
	EnsureTable(ctx context.Context, table string, header []string) (bool, error)
	LoadRows(ctx context.Context, table string, columns []string, rows <-chan []string) (*store.LoadResult, error)
	StartLoad(ctx context.Context, table, source string) (*store.LoadRun, error)
	FinishLoad(ctx context.Context, run *store.LoadRun, result *store.LoadResult, loadErr error) error
}

// Exporter waits for an asynchronous export and reports where to download it.
type Exporter interface {
	WaitForExport(ctx context.Context, exportURL string) (*arcgis.Job, error)
}

// Observer receives the outcome of each table load.
type Observer interface {
	ObserveLoad(table string, result *store.LoadResult, err error)
}

// Loader fetches sources and bulk loads them into the store.
type Loader struct {
	store    Store
	fetcher  fetcher.Fetcher
	exporter Exporter
	observer Observer
	workDir  string
	encoding string
}

// Option configures a Loader.
type Option func(*Loader)

// WithExporter sets the client used to resolve asynchronous exports.
func WithExporter(e Exporter) Option {
	return func(l *Loader) { l.exporter = e }
}

// WithObserver registers a load observer.
func WithObserver(o Observer) Option {
	return func(l *Loader) { l.observer = o }
}

// WithWorkDir sets where downloads and extracted archives are written.
func WithWorkDir(dir string) Option {
	return func(l *Loader) { l.workDir = dir }
}

// WithEncoding sets the character encoding of CSV sources.
func WithEncoding(enc string) Option {
	return func(l *Loader) { l.encoding = enc }
}

// NewLoader creates a Loader.
func NewLoader(s Store, f fetcher.Fetcher, opts ...Option) *Loader {
	l := &Loader{store: s, fetcher: f, workDir: "data"}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Fetch makes source available as a local CSV or XLSX file. Export
// endpoints are polled through the exporter first; ZIP archives are
// unpacked to their first CSV.
func (l *Loader) Fetch(ctx context.Context, d Dataset, source string) (string, error) {
	log := zap.L().With(zap.String("dataset", d.Name), zap.String("source", source))

	if l.exporter != nil && isExportURL(source) {
		log.Info("waiting for export")
		job, err := l.exporter.WaitForExport(ctx, source)
		if err != nil {
			return "", eris.Wrapf(err, "ingest: export %s", d.Name)
		}
		source = job.ResultURL
	}

	path, err := fetcher.Localize(ctx, l.fetcher, source, l.workDir, d.Fallback)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: fetch %s", d.Name)
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		dest := filepath.Join(l.workDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		path, err = fetcher.ExtractZIPMatch(path, ".csv", dest)
		if err != nil {
			return "", eris.Wrapf(err, "ingest: unpack %s", d.Name)
		}
	}

	log.Info("source ready", zap.String("path", path))
	return path, nil
}

// LoadFile loads a local file into the dataset's table, creating the table
// from the projected header when needed. Each call is recorded in the load
// log. Rows committed before a mid-file read error are kept.
func (l *Loader) LoadFile(ctx context.Context, d Dataset, path, source string) (*store.LoadResult, error) {
	// Cancelling on return stops the reader and closes the file when the
	// load ends before every row was consumed.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	header, rows, readErrs, err := l.open(ctx, path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}

	proj, err := d.Project(header)
	if err != nil {
		return nil, err
	}

	if _, err := l.store.EnsureTable(ctx, d.Table, proj.Columns); err != nil {
		return nil, eris.Wrapf(err, "ingest: ensure %s", d.Table)
	}

	run, err := l.store.StartLoad(ctx, d.Table, source)
	if err != nil {
		return nil, err
	}

	result, loadErr := l.store.LoadRows(ctx, d.Table, proj.Columns, proj.Stream(ctx, rows))
	if loadErr == nil {
		// The reader closes its row channel before reporting, so this never blocks.
		if rerr := <-readErrs; rerr != nil {
			loadErr = eris.Wrapf(rerr, "ingest: read %s", path)
		}
	}

	if l.observer != nil {
		l.observer.ObserveLoad(d.Table, result, loadErr)
	}
	if err := l.store.FinishLoad(context.WithoutCancel(ctx), run, result, loadErr); err != nil {
		zap.L().Warn("failed to record load", zap.String("run_id", run.RunID), zap.Error(err))
	}

	if loadErr != nil {
		return result, loadErr
	}

	zap.L().Info("load complete",
		zap.String("table", d.Table),
		zap.Int("inserted", result.Inserted),
		zap.Int("failed", result.Failed()),
	)
	return result, nil
}

// Load fetches and loads one dataset.
func (l *Loader) Load(ctx context.Context, d Dataset, source string) (*store.LoadResult, error) {
	path, err := l.Fetch(ctx, d, source)
	if err != nil {
		return nil, err
	}
	return l.LoadFile(ctx, d, path, source)
}

func (l *Loader) open(ctx context.Context, path string) ([]string, <-chan []string, <-chan error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{})
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, nil, err
		}
		header, rows, errs, err := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{Encoding: l.encoding})
		if err != nil {
			f.Close() //nolint:errcheck
			return nil, nil, nil, err
		}
		return header, rows, closeAfter(f, errs), nil
	}
}

// closeAfter closes c once errs is exhausted and forwards its error.
func closeAfter(c interface{ Close() error }, errs <-chan error) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer close(out)
		var first error
		for err := range errs {
			if first == nil {
				first = err
			}
		}
		c.Close() //nolint:errcheck
		if first != nil {
			out <- first
		}
	}()
	return out
}

// isExportURL reports whether source is an ArcGIS Hub download API endpoint.
func isExportURL(source string) bool {
	return fetcher.IsRemote(source) && strings.Contains(source, "/api/download/")
}
