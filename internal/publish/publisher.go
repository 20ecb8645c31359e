// Package publish archives a generated deck with its frames and uploads it
// to object storage.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/menta2k/video-slides/internal/utils"
)

// Uploader stores a zip archive under a key
type Uploader interface {
	UploadZip(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}

// Publisher zips and uploads decks
type Publisher struct {
	zipper   *ZipCreator
	uploader Uploader
	logger   *zap.Logger
	tempDir  string
}

func NewPublisher(uploader Uploader, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		zipper:   NewZipCreator(),
		uploader: uploader,
		logger:   logger,
		tempDir:  os.TempDir(),
	}
}

// Publish uploads deckFile together with the frame images it references
// and returns the object key. Entries keep their paths relative to the
// deepest directory shared by the deck and its frames.
func (p *Publisher) Publish(ctx context.Context, deckFile string, frames []string) (string, error) {
	deckAbs, err := filepath.Abs(deckFile)
	if err != nil {
		return "", fmt.Errorf("resolve deck: %w", err)
	}

	files := []string{deckAbs}
	root := filepath.Dir(deckAbs)
	for _, frame := range frames {
		abs, err := filepath.Abs(frame)
		if err != nil {
			return "", fmt.Errorf("resolve frame: %w", err)
		}
		files = append(files, abs)
		root = CommonDir(root, filepath.Dir(abs))
	}

	runID := uuid.New().String()
	zipPath := filepath.Join(p.tempDir, "slides-"+runID+".zip")
	defer os.Remove(zipPath)

	if err := p.zipper.CreateZip(ctx, root, files, zipPath); err != nil {
		return "", err
	}

	f, err := os.Open(zipPath)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat zip: %w", err)
	}

	objectKey := ObjectKey(runID, deckFile)
	if err := p.uploader.UploadZip(ctx, objectKey, f, info.Size()); err != nil {
		return "", err
	}

	p.logger.Info("deck published",
		zap.String("object_key", objectKey),
		zap.Int("files", len(files)),
		zap.String("size", utils.FormatFileSize(info.Size())),
	)
	return objectKey, nil
}

// ObjectKey names an uploaded deck
func ObjectKey(runID, deckFile string) string {
	return fmt.Sprintf("decks/%s/%s.zip", runID, utils.SanitizeFilename(utils.Stem(deckFile)))
}

// CommonDir returns the deepest directory containing both a and b
func CommonDir(a, b string) string {
	pa := strings.Split(filepath.Clean(a), string(filepath.Separator))
	pb := strings.Split(filepath.Clean(b), string(filepath.Separator))

	n := 0
	for n < len(pa) && n < len(pb) && pa[n] == pb[n] {
		n++
	}
	if n == 0 {
		return string(filepath.Separator)
	}
	common := strings.Join(pa[:n], string(filepath.Separator))
	if common == "" {
		return string(filepath.Separator)
	}
	return common
}
