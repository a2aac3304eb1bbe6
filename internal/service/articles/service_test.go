package articles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mamadbah2/inventaire/internal/domain/models"
	"github.com/mamadbah2/inventaire/internal/repository"
	"github.com/mamadbah2/inventaire/internal/repository/sqlstore"
	"github.com/mamadbah2/inventaire/internal/service/qrcode"
)

const baseURL = "http://localhost:8000"

func setupStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, sqlstore.Migrate(db))

	store := sqlstore.New(db, nil)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func chairFields() models.Fields {
	acquired := time.Date(2022, time.September, 1, 0, 0, 0, 0, time.UTC)
	return models.Fields{
		Designation: "Chair",
		Quantity:    12,
		AcquiredOn:  &acquired,
		Family:      "Mobilier",
		Location:    "B2",
		Brand:       "Acme",
		Model:       "C1",
		Prefix:      "CHR",
	}
}

func TestCreateAttachesQRCode(t *testing.T) {
	store := setupStore(t)
	media := t.TempDir()
	svc := NewService(store, qrcode.NewGenerator(media, qrcode.DetailURL(baseURL), nil), baseURL, nil)

	article, err := svc.Create(context.Background(), chairFields())
	require.NoError(t, err)
	assert.Equal(t, qrcode.RelativePath(article.ID), article.QRCode)
	assert.FileExists(t, filepath.Join(media, article.QRCode))

	stored, err := store.Get(context.Background(), article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.QRCode, stored.QRCode)
}

func TestCreateFallsBackToBaseURL(t *testing.T) {
	store := setupStore(t)
	media := t.TempDir()
	broken := func(uint) (string, error) { return "", errors.New("route not registered") }
	gen := qrcode.NewGenerator(media, broken, nil)
	svc := NewService(store, gen, baseURL, nil)

	article, err := svc.Create(context.Background(), chairFields())
	require.NoError(t, err)
	require.NotEmpty(t, article.QRCode)

	got, err := os.ReadFile(filepath.Join(media, article.QRCode))
	require.NoError(t, err)
	want, err := gen.Render(baseURL)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAttachQRCodeNeverRegenerates(t *testing.T) {
	store := setupStore(t)
	media := t.TempDir()
	svc := NewService(store, qrcode.NewGenerator(media, qrcode.DetailURL(baseURL), nil), baseURL, nil)
	ctx := context.Background()

	article, created, err := svc.GetOrCreate(ctx, chairFields())
	require.NoError(t, err)
	require.True(t, created)
	assert.Empty(t, article.QRCode)

	link, err := svc.AttachQRCode(ctx, article)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/articles/1/", link)

	path := filepath.Join(media, article.QRCode)
	info, err := os.Stat(path)
	require.NoError(t, err)

	_, err = svc.AttachQRCode(ctx, article)
	assert.ErrorIs(t, err, repository.ErrQRCodeAlreadySet)
	assert.ErrorIs(t, svc.AttachFallbackQRCode(ctx, article), repository.ErrQRCodeAlreadySet)

	// A stale copy without the path is rejected by the store.
	stale := *article
	stale.QRCode = ""
	_, err = svc.AttachQRCode(ctx, &stale)
	assert.ErrorIs(t, err, repository.ErrQRCodeAlreadySet)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), after.Size())
}

func TestBackfillQRCodes(t *testing.T) {
	store := setupStore(t)
	media := t.TempDir()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f := chairFields()
		f.Quantity = i + 1
		_, _, err := store.GetOrCreate(ctx, f)
		require.NoError(t, err)
	}

	// Article 2 cannot get a link.
	urlFor := func(id uint) (string, error) {
		if id == 2 {
			return "", errors.New("no route")
		}
		return qrcode.DetailURL(baseURL)(id)
	}
	svc := NewService(store, qrcode.NewGenerator(media, urlFor, nil), baseURL, nil)

	res, err := svc.BackfillQRCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{Scanned: 3, Generated: 2, Failed: 1}, res)

	missing, total, err := store.List(ctx, repository.ListFilter{MissingQRCode: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, missing, 1)
	assert.Equal(t, uint(2), missing[0].ID)

	res, err = NewService(store, qrcode.NewGenerator(media, qrcode.DetailURL(baseURL), nil), baseURL, nil).BackfillQRCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{Scanned: 1, Generated: 1}, res)
}
