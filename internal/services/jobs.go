package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/Lllllllleong/pdf2md/internal/models"
)

// JobStore records the progress of a summarization job. It is bookkeeping
// only and is never read back.
type JobStore interface {
	Create(ctx context.Context, doc models.Document) (string, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
}

type nopJobStore struct{}

func (nopJobStore) Create(context.Context, models.Document) (string, error)       { return "", nil }
func (nopJobStore) Update(context.Context, string, map[string]interface{}) error { return nil }

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
