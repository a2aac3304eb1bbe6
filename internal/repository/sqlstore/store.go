package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mamadbah2/inventaire/internal/domain/models"
	"github.com/mamadbah2/inventaire/internal/repository"
)

// Store implements repository.Store on top of gorm.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New wraps an already migrated connection.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

var _ repository.Store = (*Store)(nil)

// GetOrCreate looks the tuple up and inserts it when absent, inside one transaction.
func (s *Store) GetOrCreate(ctx context.Context, fields models.Fields) (*models.Article, bool, error) {
	if err := fields.Validate(); err != nil {
		return nil, false, err
	}
	fields = fields.Normalized()

	var article models.Article
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := matchFields(tx, fields).First(&article).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup article: %w", err)
		}

		article = models.NewArticle(fields)
		if err := tx.Create(&article).Error; err != nil {
			return fmt.Errorf("insert article: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.logger.Debug("article upserted", zap.Uint("id", article.ID), zap.Bool("created", created))
	return &article, created, nil
}

// Create inserts a new article without looking for an existing match.
func (s *Store) Create(ctx context.Context, fields models.Fields) (*models.Article, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	article := models.NewArticle(fields)
	if err := s.db.WithContext(ctx).Create(&article).Error; err != nil {
		return nil, fmt.Errorf("insert article: %w", err)
	}
	return &article, nil
}

func (s *Store) Get(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	if err := s.db.WithContext(ctx).First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrArticleNotFound
		}
		return nil, err
	}
	return &article, nil
}

func (s *Store) List(ctx context.Context, filter repository.ListFilter) ([]models.Article, int64, error) {
	var articles []models.Article
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Article{})
	if filter.Family != "" {
		query = query.Where("family = ?", filter.Family)
	}
	if filter.MissingQRCode {
		query = query.Where("(qr_code = '' OR qr_code IS NULL)")
	}

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("id").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&articles).Error; err != nil {
		return nil, 0, err
	}

	return articles, total, nil
}

// SetQRCode only updates rows whose qr_code is still empty.
func (s *Store) SetQRCode(ctx context.Context, id uint, path string) error {
	if path == "" {
		return errors.New("qr code path must not be empty")
	}

	res := s.db.WithContext(ctx).
		Model(&models.Article{}).
		Where("id = ? AND (qr_code = '' OR qr_code IS NULL)", id).
		Update("qr_code", path)
	if res.Error != nil {
		return fmt.Errorf("update qr code of article %d: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return repository.ErrQRCodeAlreadySet
}

// Close releases the underlying connection pool.
func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// matchFields restricts a query to articles equal to f on all eight fields.
// A missing acquisition date only matches a missing date.
func matchFields(tx *gorm.DB, f models.Fields) *gorm.DB {
	query := tx.Model(&models.Article{}).Where(
		"designation = ? AND quantity = ? AND family = ? AND location = ? AND brand = ? AND model = ? AND prefix = ?",
		f.Designation, f.Quantity, f.Family, f.Location, f.Brand, f.Model, f.Prefix,
	)
	if f.AcquiredOn == nil {
		return query.Where("acquired_on IS NULL")
	}
	return query.Where("acquired_on = ?", datatypes.Date(*f.AcquiredOn))
}
