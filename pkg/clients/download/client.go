package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/inventaire/internal/config"
)

// ErrNotFound is returned when the remote file does not exist.
var ErrNotFound = errors.New("remote file not found")

// Client fetches remote spreadsheets.
type Client interface {
	Download(ctx context.Context, url, dest string) error
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds a download client using the provided configuration values.
func NewClient(cfg config.DownloadConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Accept", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet, */*")

	return &APIClient{httpClient: restyClient}
}

// Download streams the body of url into dest.
func (c *APIClient) Download(ctx context.Context, url, dest string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetOutput(dest).
		Get(url)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound || code == http.StatusGone:
		return fmt.Errorf("download %s: %w", url, ErrNotFound)
	case code >= http.StatusBadRequest:
		return fmt.Errorf("download %s: unexpected status %d", url, code)
	}

	return nil
}
