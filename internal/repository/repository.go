// Package repository defines the article persistence contract shared by the
// SQL and MongoDB backends.
package repository

import (
	"context"
	"errors"

	"github.com/mamadbah2/inventaire/internal/domain/models"
)

var (
	// ErrArticleNotFound is returned when no article has the requested identifier.
	ErrArticleNotFound = errors.New("article not found")
	// ErrQRCodeAlreadySet is returned when attaching a QR code to an article that has one.
	ErrQRCodeAlreadySet = errors.New("article already has a qr code")
)

// ListFilter narrows article listings.
type ListFilter struct {
	Offset        int
	Limit         int
	Family        string
	MissingQRCode bool
}

// Store persists articles.
type Store interface {
	// GetOrCreate returns the article matching every field of the tuple, creating
	// it when none exists. The boolean reports whether a record was inserted.
	GetOrCreate(ctx context.Context, fields models.Fields) (*models.Article, bool, error)
	// Create always inserts a new article.
	Create(ctx context.Context, fields models.Fields) (*models.Article, error)
	Get(ctx context.Context, id uint) (*models.Article, error)
	// List returns a page of articles ordered by identifier plus the filtered total.
	List(ctx context.Context, filter ListFilter) ([]models.Article, int64, error)
	// SetQRCode records the relative QR image path. It never overwrites an existing one.
	SetQRCode(ctx context.Context, id uint, path string) error
	Close(ctx context.Context) error
}
