// Package qrcode renders article detail links as PNG QR codes under the
// media root.
package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"go.uber.org/zap"
)

const (
	// Dir is the media sub-directory holding generated images.
	Dir = "qr_codes"

	defaultModuleSize = 10
	defaultBorder     = 4
)

// ErrURLGeneration is returned when the detail URL of an article cannot be
// built.
var ErrURLGeneration = errors.New("article url generation failed")

// URLError carries the article whose URL could not be built.
type URLError struct {
	ArticleID uint
	Err       error
}

func (e *URLError) Error() string {
	return fmt.Sprintf("article %d: %v: %v", e.ArticleID, ErrURLGeneration, e.Err)
}

func (e *URLError) Unwrap() []error { return []error{ErrURLGeneration, e.Err} }

// URLFunc returns the detail page URL of an article.
type URLFunc func(id uint) (string, error)

// DetailURL builds URLs of the form {base}/articles/{id}/.
func DetailURL(baseURL string) URLFunc {
	return func(id uint) (string, error) {
		if id == 0 {
			return "", errors.New("article has no id")
		}
		base, err := url.Parse(strings.TrimSpace(baseURL))
		if err != nil {
			return "", err
		}
		if base.Scheme == "" || base.Host == "" {
			return "", fmt.Errorf("base url %q is not absolute", baseURL)
		}
		base.Path = path.Join("/", base.Path, "articles", fmt.Sprint(id)) + "/"
		base.RawQuery, base.Fragment = "", ""
		return base.String(), nil
	}
}

// RelativePath is the media-relative location of an article's image.
func RelativePath(id uint) string {
	return path.Join(Dir, fmt.Sprintf("article_%d.png", id))
}

// Generator writes QR code images for articles.
type Generator struct {
	mediaRoot  string
	urlFor     URLFunc
	moduleSize int
	border     int
	logger     *zap.Logger
}

// NewGenerator builds a Generator writing under mediaRoot.
func NewGenerator(mediaRoot string, urlFor URLFunc, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		mediaRoot:  mediaRoot,
		urlFor:     urlFor,
		moduleSize: defaultModuleSize,
		border:     defaultBorder,
		logger:     logger,
	}
}

// Generate encodes the detail URL of the article and stores the image. It
// returns the media-relative path and the encoded URL. A URL failure is
// returned as *URLError and nothing is written.
func (g *Generator) Generate(id uint) (string, string, error) {
	link, err := g.urlFor(id)
	if err != nil {
		return "", "", &URLError{ArticleID: id, Err: err}
	}

	rel, err := g.Write(id, link)
	if err != nil {
		return "", "", err
	}
	return rel, link, nil
}

// Write encodes content into the image of article id, replacing any file
// already there.
func (g *Generator) Write(id uint, content string) (string, error) {
	payload, err := g.Render(content)
	if err != nil {
		return "", err
	}

	rel := RelativePath(id)
	dest := filepath.Join(g.mediaRoot, filepath.FromSlash(rel))
	if err := writeFile(dest, payload); err != nil {
		return "", fmt.Errorf("store qr code: %w", err)
	}

	g.logger.Debug("qr code written", zap.Uint("article_id", id), zap.String("path", rel))
	return rel, nil
}

// Render returns the PNG bytes for content: low error correction, black
// modules on white with a quiet zone of border modules.
func (g *Generator) Render(content string) ([]byte, error) {
	code, err := qr.Encode(content, qr.L, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}

	modules := code.Bounds().Dx()
	scaled, err := barcode.Scale(code, modules*g.moduleSize, modules*g.moduleSize)
	if err != nil {
		return nil, fmt.Errorf("scale qr code: %w", err)
	}

	side := (modules + 2*g.border) * g.moduleSize
	canvas := image.NewGray(image.Rect(0, 0, side, side))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	offset := g.border * g.moduleSize
	target := image.Rect(offset, offset, offset+scaled.Bounds().Dx(), offset+scaled.Bounds().Dy())
	draw.Draw(canvas, target, scaled, scaled.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFile replaces dest through a rename in the same directory.
func writeFile(dest string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".article-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
