package pdfsource

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdf2md/internal/models"
)

func TestExtractMissingFile(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), models.PageKindText)
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.NotErrorIs(t, err, ErrSourceUnreadable)
}

func TestExtractInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o644))

	for _, kind := range []models.PageKind{models.PageKindText, models.PageKindImage} {
		_, err := NewExtractor().Extract(context.Background(), path, kind)
		assert.ErrorIs(t, err, ErrSourceUnreadable, "kind %s", kind)
	}
}

func TestExtractDirectory(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), t.TempDir(), models.PageKindText)
	assert.ErrorIs(t, err, ErrSourceUnreadable)
}

func TestEncodeJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		img.Set(x, 1, color.RGBA{R: 255, A: 255})
	}

	encoded, err := EncodeJPEG(img, DefaultJPEGQuality)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	decoded, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	e := NewExtractor(WithDPI(-1), WithJPEGQuality(0))
	assert.Equal(t, float64(DefaultDPI), e.dpi)
	assert.Equal(t, DefaultJPEGQuality, e.quality)

	e = NewExtractor(WithDPI(96), WithJPEGQuality(90))
	assert.Equal(t, 96.0, e.dpi)
	assert.Equal(t, 90, e.quality)
}
