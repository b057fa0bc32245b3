// Package pdfsource turns a PDF file into an ordered list of pages, either as
// extracted text or as rendered JPEG images.
package pdfsource

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"log/slog"
	"os"
	"runtime"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/pdf2md/internal/models"
)

var (
	// ErrSourceNotFound means the PDF path does not exist.
	ErrSourceNotFound = errors.New("source document not found")
	// ErrSourceUnreadable means the file exists but is not a usable PDF.
	ErrSourceUnreadable = errors.New("source document unreadable")
)

const (
	DefaultDPI         = 200
	DefaultJPEGQuality = 75
)

// Extractor reads pages from PDF files.
type Extractor struct {
	dpi     float64
	quality int
	workers int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDPI sets the rendering resolution for image pages.
func WithDPI(dpi float64) Option {
	return func(e *Extractor) {
		if dpi > 0 {
			e.dpi = dpi
		}
	}
}

// WithJPEGQuality sets the JPEG quality (1-100) for image pages.
func WithJPEGQuality(q int) Option {
	return func(e *Extractor) {
		if q >= 1 && q <= 100 {
			e.quality = q
		}
	}
}

// NewExtractor returns an extractor with default rendering settings.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		dpi:     DefaultDPI,
		quality: DefaultJPEGQuality,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns every page of the PDF at path in document order. A valid
// document without pages yields empty Pages and no error.
func (e *Extractor) Extract(ctx context.Context, path string, kind models.PageKind) (models.Pages, error) {
	logCtx := slog.With("path", path, "kind", kind)

	pageCount, err := validate(path)
	if err != nil {
		return models.Pages{}, err
	}
	logCtx.Info("Validated source PDF", "pageCount", pageCount)

	switch kind {
	case models.PageKindText:
		return extractText(path, pageCount)
	case models.PageKindImage:
		return e.renderImages(ctx, path)
	default:
		return models.Pages{}, fmt.Errorf("unknown page kind %q", kind)
	}
}

func validate(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return 0, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrSourceUnreadable, path)
	}

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, cfg); err != nil {
		return 0, fmt.Errorf("%w: failed to validate pdf: %w", ErrSourceUnreadable, err)
	}
	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count pages: %w", ErrSourceUnreadable, err)
	}
	return pageCount, nil
}

func extractText(path string, pageCount int) (pages models.Pages, err error) {
	// The text layer parser panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			pages, err = models.Pages{}, fmt.Errorf("%w: text extraction panicked: %v", ErrSourceUnreadable, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return models.Pages{}, fmt.Errorf("%w: failed to open pdf: %w", ErrSourceUnreadable, err)
	}
	defer f.Close()

	if n := r.NumPage(); n != pageCount {
		slog.Warn("Page count mismatch between parsers", "path", path, "validated", pageCount, "textLayer", n)
	}

	fonts := make(map[string]*pdf.Font)
	items := make([]models.Page, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			items = append(items, models.Page{Number: i})
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return models.Pages{}, fmt.Errorf("%w: failed to read page %d: %w", ErrSourceUnreadable, i, err)
		}
		items = append(items, models.Page{Number: i, Content: text})
	}
	return models.Pages{Items: items, Kind: models.PageKindText}, nil
}

func (e *Extractor) renderImages(ctx context.Context, path string) (models.Pages, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return models.Pages{}, fmt.Errorf("%w: failed to open pdf for rendering: %w", ErrSourceUnreadable, err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	items := make([]models.Page, pageCount)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for i := 0; i < pageCount; i++ {
		if err := gctx.Err(); err != nil {
			break
		}
		img, err := doc.ImageDPI(i, e.dpi)
		if err != nil {
			_ = eg.Wait()
			return models.Pages{}, fmt.Errorf("%w: failed to render page %d: %w", ErrSourceUnreadable, i+1, err)
		}
		eg.Go(func() error {
			encoded, err := EncodeJPEG(img, e.quality)
			if err != nil {
				return fmt.Errorf("failed to encode page %d: %w", i+1, err)
			}
			items[i] = models.Page{Number: i + 1, Content: encoded}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return models.Pages{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Pages{}, err
	}
	return models.Pages{Items: items, Kind: models.PageKindImage}, nil
}

// EncodeJPEG returns img as a base64-encoded JPEG.
func EncodeJPEG(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
