package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// ErrInvalidFields is returned when an article tuple fails validation.
var ErrInvalidFields = errors.New("invalid article fields")

var validate = validator.New()

// Article is an inventoried equipment item.
type Article struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Designation string          `gorm:"size:255;not null;index" json:"designation"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	AcquiredOn  *datatypes.Date `json:"acquired_on,omitempty"`
	Family      string          `gorm:"size:255;not null" json:"family"`
	Location    string          `gorm:"size:255;not null" json:"location"`
	Brand       string          `gorm:"size:255;not null" json:"brand"`
	Model       string          `gorm:"size:255;not null" json:"model"`
	Prefix      string          `gorm:"size:50;not null" json:"prefix"`
	// QRCode is the image path relative to the media root, empty until generated.
	QRCode    string    `gorm:"size:255" json:"qr_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Article) TableName() string {
	return "articles"
}

// Fields is the tuple identifying an article during imports: two rows with
// identical values across all of them describe the same article.
type Fields struct {
	Designation string `validate:"required,max=255"`
	Quantity    int    `validate:"gte=0"`
	AcquiredOn  *time.Time
	Family      string `validate:"max=255"`
	Location    string `validate:"max=255"`
	Brand       string `validate:"max=255"`
	Model       string `validate:"max=255"`
	Prefix      string `validate:"max=50"`
}

// Validate checks lengths and the non-negative quantity.
func (f Fields) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFields, err)
	}
	return nil
}

// Normalized returns a copy whose acquisition date is truncated to midnight UTC.
func (f Fields) Normalized() Fields {
	if f.AcquiredOn != nil {
		d := DateOnly(*f.AcquiredOn)
		f.AcquiredOn = &d
	}
	return f
}

// NewArticle builds an unsaved article from the import tuple.
func NewArticle(f Fields) Article {
	f = f.Normalized()
	a := Article{
		Designation: f.Designation,
		Quantity:    f.Quantity,
		Family:      f.Family,
		Location:    f.Location,
		Brand:       f.Brand,
		Model:       f.Model,
		Prefix:      f.Prefix,
	}
	if f.AcquiredOn != nil {
		d := datatypes.Date(*f.AcquiredOn)
		a.AcquiredOn = &d
	}
	return a
}

// Fields extracts the import tuple of a stored article.
func (a *Article) Fields() Fields {
	f := Fields{
		Designation: a.Designation,
		Quantity:    a.Quantity,
		Family:      a.Family,
		Location:    a.Location,
		Brand:       a.Brand,
		Model:       a.Model,
		Prefix:      a.Prefix,
	}
	if d, ok := a.AcquisitionDate(); ok {
		f.AcquiredOn = &d
	}
	return f
}

// AcquisitionDate returns the acquisition date, if any, at midnight UTC.
func (a *Article) AcquisitionDate() (time.Time, bool) {
	if a.AcquiredOn == nil {
		return time.Time{}, false
	}
	return DateOnly(time.Time(*a.AcquiredOn)), true
}

// DateOnly drops the clock part of t and pins it to UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
