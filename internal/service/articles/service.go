package articles

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/inventaire/internal/domain/models"
	"github.com/mamadbah2/inventaire/internal/repository"
	"github.com/mamadbah2/inventaire/internal/service/qrcode"
)

const backfillBatchSize = 100

// QRGenerator renders and stores article QR images.
type QRGenerator interface {
	Generate(id uint) (relPath, link string, err error)
	Write(id uint, content string) (relPath string, err error)
}

// BackfillResult counts the outcome of BackfillQRCodes.
type BackfillResult struct {
	Scanned   int
	Generated int
	Failed    int
}

// Service creates articles and attaches their QR codes once they have an
// identifier.
type Service struct {
	store       repository.Store
	qr          QRGenerator
	fallbackURL string
	logger      *zap.Logger
}

// NewService wires a new article service. fallbackURL is encoded instead of
// the detail link when that link cannot be built during Create.
func NewService(store repository.Store, qr QRGenerator, fallbackURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, qr: qr, fallbackURL: fallbackURL, logger: logger}
}

// GetOrCreate delegates to the store without touching QR codes.
func (s *Service) GetOrCreate(ctx context.Context, fields models.Fields) (*models.Article, bool, error) {
	return s.store.GetOrCreate(ctx, fields)
}

// Get returns one article.
func (s *Service) Get(ctx context.Context, id uint) (*models.Article, error) {
	return s.store.Get(ctx, id)
}

// List returns a page of articles and the filtered total.
func (s *Service) List(ctx context.Context, filter repository.ListFilter) ([]models.Article, int64, error) {
	return s.store.List(ctx, filter)
}

// Create inserts an article and gives it a QR code. A saved article is
// returned even when the QR step fails.
func (s *Service) Create(ctx context.Context, fields models.Fields) (*models.Article, error) {
	article, err := s.store.Create(ctx, fields)
	if err != nil {
		return nil, err
	}

	if err := s.afterCreate(ctx, article); err != nil {
		return article, fmt.Errorf("article %d saved without qr code: %w", article.ID, err)
	}
	return article, nil
}

func (s *Service) afterCreate(ctx context.Context, article *models.Article) error {
	if article.QRCode != "" {
		return nil
	}

	_, err := s.AttachQRCode(ctx, article)
	if !errors.Is(err, qrcode.ErrURLGeneration) {
		return err
	}

	s.logger.Warn("detail url unavailable, encoding base url",
		zap.Uint("article_id", article.ID),
		zap.String("fallback", s.fallbackURL),
		zap.Error(err),
	)
	return s.AttachFallbackQRCode(ctx, article)
}

// AttachFallbackQRCode encodes the base URL for an article whose detail link
// cannot be built.
func (s *Service) AttachFallbackQRCode(ctx context.Context, article *models.Article) error {
	if article.QRCode != "" {
		return repository.ErrQRCodeAlreadySet
	}

	rel, err := s.qr.Write(article.ID, s.fallbackURL)
	if err != nil {
		return err
	}
	return s.setQRCode(ctx, article, rel)
}

// AttachQRCode generates the QR image of a saved article and records its
// path. It returns the encoded URL. Articles that already have an image are
// left alone with repository.ErrQRCodeAlreadySet.
func (s *Service) AttachQRCode(ctx context.Context, article *models.Article) (string, error) {
	if article.QRCode != "" {
		return "", repository.ErrQRCodeAlreadySet
	}

	rel, link, err := s.qr.Generate(article.ID)
	if err != nil {
		return "", err
	}
	if err := s.setQRCode(ctx, article, rel); err != nil {
		return "", err
	}
	return link, nil
}

func (s *Service) setQRCode(ctx context.Context, article *models.Article, rel string) error {
	if err := s.store.SetQRCode(ctx, article.ID, rel); err != nil {
		return fmt.Errorf("save qr code path: %w", err)
	}
	article.QRCode = rel
	return nil
}

// BackfillQRCodes generates images for every stored article without one.
func (s *Service) BackfillQRCodes(ctx context.Context) (BackfillResult, error) {
	var res BackfillResult
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		// Fixed articles leave the filter; failed ones are skipped by offset.
		page, _, err := s.store.List(ctx, repository.ListFilter{
			Offset:        res.Failed,
			Limit:         backfillBatchSize,
			MissingQRCode: true,
		})
		if err != nil {
			return res, fmt.Errorf("list articles without qr code: %w", err)
		}
		if len(page) == 0 {
			return res, nil
		}

		for i := range page {
			article := &page[i]
			res.Scanned++
			if _, err := s.AttachQRCode(ctx, article); err != nil {
				res.Failed++
				s.logger.Error("qr code backfill failed", zap.Uint("article_id", article.ID), zap.Error(err))
				continue
			}
			res.Generated++
		}
	}
}
