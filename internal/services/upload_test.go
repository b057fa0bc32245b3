package services

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdf2md/internal/models"
	"github.com/Lllllllleong/pdf2md/internal/output"
)

type uploadFixture struct {
	dest      *output.Memory
	names     []string
	downloads []string
}

func (u *uploadFixture) function(shared *SummarizerFunction) *UploadFunction {
	return &UploadFunction{
		summarizer: shared,
		prompts:    testPrompts,
		config:     UploadConfig{ResultsBucket: "results"},
		newDestination: func(name string) (output.Destination, error) {
			u.names = append(u.names, name)
			return u.dest, nil
		},
		download: func(_ context.Context, bucket, object, destPath string) error {
			u.downloads = append(u.downloads, bucket+"/"+object)
			return os.WriteFile(destPath, []byte("%PDF-1.4 stub"), 0o644)
		},
	}
}

func TestUploadIgnoresNonPDFObjects(t *testing.T) {
	provider := lectureModel()
	extractor := &stubExtractor{pages: textPages(2)}
	fx := &uploadFixture{dest: &output.Memory{}}

	err := fx.function(newTestSummarizer(provider, extractor)).Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "notes/readme.txt"})
	require.NoError(t, err)

	assert.Empty(t, fx.names)
	assert.Empty(t, fx.downloads)
	assert.Zero(t, extractor.calls)
	assert.Zero(t, provider.Count())
}

func TestUploadSkipsExistingResult(t *testing.T) {
	provider := lectureModel()
	extractor := &stubExtractor{pages: textPages(2)}
	fx := &uploadFixture{dest: &output.Memory{}}
	require.NoError(t, fx.dest.Write(context.Background(), "earlier result"))

	err := fx.function(newTestSummarizer(provider, extractor)).Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "week1/lecture.pdf"})
	require.NoError(t, err)

	assert.Equal(t, []string{"lecture"}, fx.names)
	assert.Empty(t, fx.downloads)
	assert.Zero(t, extractor.calls)
	assert.Zero(t, provider.Count())
	assert.Equal(t, "earlier result", fx.dest.Doc)
}

func TestUploadSummarizesNewPDF(t *testing.T) {
	provider := lectureModel()
	extractor := &stubExtractor{pages: textPages(2)}
	jobs := &memoryJobStore{}
	fx := &uploadFixture{dest: &output.Memory{}}

	f := fx.function(newTestSummarizer(provider, extractor, WithJobStore(jobs)))
	err := f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "week1/Lecture.PDF"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Lecture"}, fx.names)
	assert.Equal(t, []string{"uploads/week1/Lecture.PDF"}, fx.downloads)
	assert.Equal(t, 1, extractor.calls)
	assert.Equal(t, "# Exam Summary\n\n## Page 1", fx.dest.Doc)
	require.Len(t, jobs.created, 1)
	assert.Equal(t, "Lecture.PDF", jobs.created[0].OriginalFilename)
	assert.Equal(t, string(models.PageKindText), jobs.created[0].PageKind)
}
