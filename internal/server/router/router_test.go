package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/inventaire/internal/domain/models"
	"github.com/mamadbah2/inventaire/internal/repository"
	"github.com/mamadbah2/inventaire/internal/server/handlers"
)

type fakeArticles struct {
	articles   []models.Article
	lastFilter repository.ListFilter
	created    []models.Fields
	createErr  error
}

func (f *fakeArticles) Create(_ context.Context, fields models.Fields) (*models.Article, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	f.created = append(f.created, fields)
	a := models.NewArticle(fields)
	a.ID = uint(len(f.articles) + 1)
	if f.createErr == nil {
		a.QRCode = fmt.Sprintf("qr_codes/article_%d.png", a.ID)
	}
	f.articles = append(f.articles, a)
	return &a, f.createErr
}

func (f *fakeArticles) Get(_ context.Context, id uint) (*models.Article, error) {
	for i := range f.articles {
		if f.articles[i].ID == id {
			return &f.articles[i], nil
		}
	}
	return nil, repository.ErrArticleNotFound
}

func (f *fakeArticles) List(_ context.Context, filter repository.ListFilter) ([]models.Article, int64, error) {
	f.lastFilter = filter
	return f.articles, int64(len(f.articles)), nil
}

func newTestRouter(t *testing.T, svc *fakeArticles) (http.Handler, string) {
	t.Helper()
	media := t.TempDir()
	h := handlers.NewArticleHandler(svc, MediaPrefix, nil)
	return New(h, media, nil), media
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func laptop() models.Article {
	acquired := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	a := models.NewArticle(models.Fields{
		Designation: "Laptop X", Quantity: 5, AcquiredOn: &acquired,
		Family: "IT", Location: "HQ", Brand: "Acme", Model: "X1", Prefix: "LX",
	})
	a.ID = 1
	a.QRCode = "qr_codes/article_1.png"
	return a
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, &fakeArticles{})
	rec := serve(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestArticleDetail(t *testing.T) {
	r, _ := newTestRouter(t, &fakeArticles{articles: []models.Article{laptop()}})

	rec := serve(r, http.MethodGet, "/articles/1/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Laptop X", body["designation"])
	assert.Equal(t, "/media/qr_codes/article_1.png", body["qr_code_url"])
	assert.Equal(t, "2023-03-15T00:00:00Z", body["acquired_on"])

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/articles/9/", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/articles/abc/", "").Code)
}

func TestArticleList(t *testing.T) {
	svc := &fakeArticles{articles: []models.Article{laptop()}}
	r, _ := newTestRouter(t, svc)

	rec := serve(r, http.MethodGet, "/articles/?offset=10&limit=500&family=IT&missing_qr=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.ListFilter{Offset: 10, Limit: 200, Family: "IT", MissingQRCode: true}, svc.lastFilter)

	var body struct {
		Items []map[string]any `json:"items"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body.Total)
	require.Len(t, body.Items, 1)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/articles/?limit=zero", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/articles/?offset=-1", "").Code)
}

func TestArticleCreate(t *testing.T) {
	svc := &fakeArticles{}
	r, _ := newTestRouter(t, svc)

	rec := serve(r, http.MethodPost, "/articles/", `{"designation":"Chair","quantity":12,"acquired_on":"01/09/2022","family":"Mobilier","prefix":"CHR"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, svc.created, 1)
	require.NotNil(t, svc.created[0].AcquiredOn)
	assert.Equal(t, time.Date(2022, time.September, 1, 0, 0, 0, 0, time.UTC), *svc.created[0].AcquiredOn)

	t.Run("invalid date", func(t *testing.T) {
		rec := serve(r, http.MethodPost, "/articles/", `{"designation":"Desk","quantity":1,"acquired_on":"31/02/2023"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid calendar date")
	})

	t.Run("missing quantity", func(t *testing.T) {
		rec := serve(r, http.MethodPost, "/articles/", `{"designation":"Desk"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("qr failure still created", func(t *testing.T) {
		svc.createErr = errors.New("disk full")
		defer func() { svc.createErr = nil }()

		rec := serve(r, http.MethodPost, "/articles/", `{"designation":"Lamp","quantity":2}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NotContains(t, rec.Body.String(), "qr_code_url")
	})
}

func TestMediaIsServed(t *testing.T) {
	r, media := newTestRouter(t, &fakeArticles{})
	require.NoError(t, os.MkdirAll(filepath.Join(media, "qr_codes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(media, "qr_codes", "article_1.png"), []byte("png"), 0o644))

	rec := serve(r, http.MethodGet, "/media/qr_codes/article_1.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())
}
