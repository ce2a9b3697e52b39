package elements

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Table file formats.
const (
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// ErrNoSource is returned by Refresh when no remote source is configured.
var ErrNoSource = errors.New("no element source configured")

// DetectFormat guesses the table format from a path or URL.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatCSV
}

// Parse decodes a Keplerian table in the given format.
func Parse(r io.Reader, format string, unit Unit, logger *slog.Logger) (*Table, error) {
	switch format {
	case FormatCSV, "":
		return ParseCSV(r, unit, logger)
	case FormatYAML, "yml":
		return ParseYAML(r, unit, logger)
	}
	return nil, fmt.Errorf("unsupported table format %q", format)
}

// Options selects the files a dataset is loaded from. An empty Path selects
// the built-in table; empty velocity paths skip the velocity variant.
type Options struct {
	Path          string
	Format        string
	Unit          Unit
	Epoch         time.Time
	VelocityPath  string
	ReferencePath string
}

// Load reads a complete dataset from local files.
func Load(opts Options, logger *slog.Logger) (*Dataset, error) {
	ds := &Dataset{Source: "builtin", LoadedAt: time.Now().UTC()}

	if opts.Path == "" {
		ds.Keplerian = Default()
	} else {
		format := opts.Format
		if format == "" {
			format = DetectFormat(opts.Path)
		}
		table, err := loadTable(opts.Path, format, opts.Unit, logger)
		if err != nil {
			return nil, err
		}
		ds.Keplerian = table
		ds.Source = opts.Path
	}
	if !opts.Epoch.IsZero() {
		ds.Keplerian.Epoch = opts.Epoch
	}

	if opts.VelocityPath != "" {
		if opts.ReferencePath == "" {
			return nil, fmt.Errorf("velocity table %s needs a reference coordinates file", opts.VelocityPath)
		}
		vt, err := loadVelocity(opts.VelocityPath, opts.ReferencePath, logger)
		if err != nil {
			return nil, err
		}
		ds.Velocity = vt
	}

	logger.Info("element dataset loaded",
		"source", ds.Source,
		"bodies", ds.BodyCount(),
		"velocity_table", ds.Velocity != nil,
	)
	return ds, nil
}

func loadTable(path, format string, unit Unit, logger *slog.Logger) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening element table: %w", err)
	}
	defer f.Close()

	table, err := Parse(f, format, unit, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

func loadVelocity(velocityPath, referencePath string, logger *slog.Logger) (*VelocityTable, error) {
	vf, err := os.Open(velocityPath)
	if err != nil {
		return nil, fmt.Errorf("opening velocity table: %w", err)
	}
	defer vf.Close()

	rf, err := os.Open(referencePath)
	if err != nil {
		return nil, fmt.Errorf("opening reference coordinates: %w", err)
	}
	defer rf.Close()

	return ParseVelocityTable(vf, rf, logger)
}

// Refresher replaces the Keplerian table from a remote source, keeping an
// on-disk snapshot of every successful fetch.
type Refresher struct {
	store   *Store
	fetcher *Fetcher
	cache   *Cache
	format  string
	unit    Unit
	logger  *slog.Logger
}

// NewRefresher wires a store to its fetcher and cache. fetcher and cache may
// be nil.
func NewRefresher(store *Store, fetcher *Fetcher, cache *Cache, format string, unit Unit, logger *slog.Logger) *Refresher {
	if format == "" && fetcher != nil {
		format = DetectFormat(fetcher.SourceURL())
	}
	return &Refresher{
		store:   store,
		fetcher: fetcher,
		cache:   cache,
		format:  format,
		unit:    unit,
		logger:  logger,
	}
}

// Refresh fetches, parses and publishes a new table. On failure the
// current snapshot keeps serving.
func (r *Refresher) Refresh(ctx context.Context) (*Dataset, error) {
	if r.fetcher == nil {
		return nil, ErrNoSource
	}

	r.store.Lock()
	defer r.store.Unlock()

	data, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	table, err := Parse(bytes.NewReader(data), r.format, r.unit, r.logger)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ds := r.publish(table, r.fetcher.SourceURL(), now)

	if r.cache != nil {
		if err := r.cache.Write(data, now); err != nil {
			r.logger.Warn("failed to write element cache", "error", err)
		}
	}

	r.logger.Info("element table refreshed", "source", ds.Source, "bodies", len(table.Bodies))
	return ds, nil
}

// LoadCache publishes the newest on-disk snapshot.
func (r *Refresher) LoadCache() (*Dataset, error) {
	if r.cache == nil {
		return nil, fmt.Errorf("element cache disabled")
	}

	r.store.Lock()
	defer r.store.Unlock()

	data, ts, err := r.cache.LoadLatest()
	if err != nil {
		return nil, err
	}
	table, err := Parse(bytes.NewReader(data), r.format, r.unit, r.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing cached element table: %w", err)
	}

	ds := r.publish(table, "cache", ts)
	r.logger.Info("loaded element table from cache", "bodies", len(table.Bodies), "cached_at", ts.Format(time.RFC3339))
	return ds, nil
}

// publish swaps in a new snapshot. The velocity table is not refreshed
// remotely, so it carries over from the current dataset. Callers hold the
// store lock.
func (r *Refresher) publish(table *Table, source string, loadedAt time.Time) *Dataset {
	ds := &Dataset{Source: source, LoadedAt: loadedAt, Keplerian: table}
	if cur := r.store.Get(); cur != nil {
		ds.Velocity = cur.Velocity
		if cur.Keplerian != nil && table.Epoch.Equal(DefaultEpoch) {
			table.Epoch = cur.Keplerian.Epoch
		}
	}
	r.store.Set(ds)
	return ds
}
