package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// SheetsPrefix marks a Google Sheets source, e.g. "sheets:Articles!A:H".
const SheetsPrefix = "sheets:"

// ErrSourceUnavailable is returned for source kinds that are not configured.
var ErrSourceUnavailable = errors.New("spreadsheet source not configured")

// RangeReader reads a cell range from a remote spreadsheet.
type RangeReader interface {
	ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error)
}

// Downloader copies a remote file to a local path.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Loader resolves a source string into rows. Local paths are read with
// ReadFile, http(s) URLs are downloaded first and "sheets:" ranges go through
// the Sheets API. Either remote collaborator may be nil.
type Loader struct {
	sheets     RangeReader
	downloader Downloader
	// notFound reports whether a download error means the file is absent.
	notFound func(error) bool
	logger   *zap.Logger
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithSheets enables "sheets:" sources.
func WithSheets(r RangeReader) LoaderOption {
	return func(l *Loader) { l.sheets = r }
}

// WithDownloader enables http(s) sources. notFound classifies download errors
// that should surface as ErrFileNotFound.
func WithDownloader(d Downloader, notFound func(error) bool) LoaderOption {
	return func(l *Loader) {
		l.downloader = d
		l.notFound = notFound
	}
}

// NewLoader builds a Loader.
func NewLoader(logger *zap.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every row of source, validating the header first.
func (l *Loader) Load(ctx context.Context, source string) ([]Row, error) {
	switch {
	case strings.HasPrefix(source, SheetsPrefix):
		return l.loadSheet(ctx, strings.TrimPrefix(source, SheetsPrefix))
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return l.loadURL(ctx, source)
	default:
		l.logger.Debug("reading workbook", zap.String("path", source))
		return ReadFile(source)
	}
}

func (l *Loader) loadSheet(ctx context.Context, sheetRange string) ([]Row, error) {
	if l.sheets == nil {
		return nil, fmt.Errorf("%w: google sheets credentials are not set", ErrSourceUnavailable)
	}

	values, err := l.sheets.ReadRange(ctx, sheetRange)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	table := make([][]any, len(values))
	for i, line := range values {
		table[i] = line
	}
	l.logger.Debug("sheet range loaded", zap.String("range", sheetRange), zap.Int("lines", len(table)))
	return BuildRows(table)
}

func (l *Loader) loadURL(ctx context.Context, url string) ([]Row, error) {
	if l.downloader == nil {
		return nil, fmt.Errorf("%w: remote downloads are disabled", ErrSourceUnavailable)
	}

	dir, err := os.MkdirTemp("", "inventaire-*")
	if err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dest := filepath.Join(dir, "source.xlsx")
	if err := l.downloader.Download(ctx, url, dest); err != nil {
		if l.notFound != nil && l.notFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, url)
		}
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	l.logger.Debug("remote workbook downloaded", zap.String("url", url))
	return ReadFile(dest)
}
