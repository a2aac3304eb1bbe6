// Package importer turns spreadsheet rows into stored articles with QR codes.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/inventaire/internal/domain/dates"
	"github.com/mamadbah2/inventaire/internal/domain/models"
	"github.com/mamadbah2/inventaire/internal/repository/spreadsheet"
	"github.com/mamadbah2/inventaire/internal/service/qrcode"
)

// RowSource loads every row of a source, failing before any row on schema
// problems.
type RowSource interface {
	Load(ctx context.Context, source string) ([]spreadsheet.Row, error)
}

// Articles upserts articles and attaches their QR codes.
type Articles interface {
	GetOrCreate(ctx context.Context, fields models.Fields) (*models.Article, bool, error)
	AttachQRCode(ctx context.Context, article *models.Article) (string, error)
	AttachFallbackQRCode(ctx context.Context, article *models.Article) error
}

// Summary counts the outcome of one run.
type Summary struct {
	Rows        int
	Created     int
	Existing    int
	Skipped     int
	QRGenerated int
	QRFailed    int
}

// Service runs imports sequentially, one row at a time.
type Service struct {
	source   RowSource
	articles Articles
	reporter *Reporter
	logger   *zap.Logger
}

// NewService wires a new import service.
func NewService(source RowSource, articles Articles, reporter *Reporter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = NewReporter(nil, nil)
	}
	return &Service{source: source, articles: articles, reporter: reporter, logger: logger}
}

// Run imports every row of source. Only source-level failures (missing file,
// unreadable file, schema mismatch) are returned; row failures are reported
// and counted in the summary.
func (s *Service) Run(ctx context.Context, source string) (Summary, error) {
	started := time.Now()
	s.logger.Info("import started", zap.String("source", source))

	rows, err := s.source.Load(ctx, source)
	if err != nil {
		s.reporter.Aborted(err)
		s.logger.Error("import aborted", zap.String("source", source), zap.Error(err))
		return Summary{}, fmt.Errorf("load %s: %w", source, err)
	}

	var sum Summary
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			s.reporter.Finished(sum)
			return sum, err
		}
		sum.Rows++
		s.importRow(ctx, row, &sum)
	}

	s.reporter.Finished(sum)
	s.logger.Info("import finished",
		zap.String("source", source),
		zap.Int("rows", sum.Rows),
		zap.Int("created", sum.Created),
		zap.Int("existing", sum.Existing),
		zap.Int("skipped", sum.Skipped),
		zap.Int("qr_generated", sum.QRGenerated),
		zap.Int("qr_failed", sum.QRFailed),
		zap.Duration("elapsed", time.Since(started)),
	)
	return sum, nil
}

func (s *Service) importRow(ctx context.Context, row spreadsheet.Row, sum *Summary) {
	designation := text(row.Value(spreadsheet.ColumnDesignation))

	fields, err := parseFields(row)
	if err != nil {
		s.skip(&RowError{Line: row.Line, Designation: designation, Err: err}, sum)
		return
	}

	article, created, err := s.articles.GetOrCreate(ctx, fields)
	if err != nil {
		s.skip(&RowError{Line: row.Line, Designation: designation, Err: err}, sum)
		return
	}
	if created {
		sum.Created++
		s.reporter.Created(designation)
	} else {
		sum.Existing++
		s.reporter.Existing(designation)
	}

	if article.QRCode != "" {
		return
	}

	link, err := s.articles.AttachQRCode(ctx, article)
	if err != nil {
		rowErr := &RowError{Line: row.Line, Designation: designation, Err: err}
		sum.QRFailed++
		s.reporter.QRFailed(rowErr)
		s.logger.Warn("qr code not generated", zap.Uint("article_id", article.ID), zap.Error(rowErr))
		if created && errors.Is(err, qrcode.ErrURLGeneration) {
			if err := s.articles.AttachFallbackQRCode(ctx, article); err != nil {
				s.logger.Error("fallback qr code not generated", zap.Uint("article_id", article.ID), zap.Error(err))
			}
		}
		return
	}
	sum.QRGenerated++
	s.reporter.QRGenerated(designation, link)
}

func (s *Service) skip(err *RowError, sum *Summary) {
	sum.Skipped++
	s.reporter.Skipped(err)

	fields := []zap.Field{zap.Int("line", err.Line), zap.String("designation", err.Designation), zap.Error(err.Err)}
	if isDataError(err.Err) {
		s.logger.Warn("row skipped", fields...)
		return
	}
	s.logger.Error("row skipped", fields...)
}

// isDataError reports whether err comes from the cell values rather than the
// store.
func isDataError(err error) bool {
	var dateErr *dates.DateError
	return errors.As(err, &dateErr) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, models.ErrInvalidFields)
}
