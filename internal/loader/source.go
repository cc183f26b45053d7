package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/storage"
)

// ObjectStore is the subset of the S3 client the loader needs.
type ObjectStore interface {
	GetObject(ctx context.Context, loc storage.Location) (io.ReadCloser, *storage.ObjectMetadata, error)
	HeadObject(ctx context.Context, loc storage.Location) (*storage.ObjectMetadata, error)
}

// Sources opens vocabulary sources from local paths or s3:// URIs.
type Sources struct {
	store ObjectStore
}

// NewSources creates a Sources. store may be nil when S3 is not configured.
func NewSources(store ObjectStore) *Sources {
	return &Sources{store: store}
}

// Open returns a reader for source.
func (s *Sources) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	if loc, ok := storage.ParseURI(source); ok {
		if s.store == nil {
			return nil, domain.NewDomainError(domain.ErrCodeNotConfigured, "object storage not configured")
		}
		body, _, err := s.store.GetObject(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", source, err)
		}
		return body, nil
	}
	if err := checkScheme(source); err != nil {
		return nil, err
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
	return f, nil
}

// Fingerprint identifies the current content of source without reading it:
// the ETag for objects, size and modification time for files.
func (s *Sources) Fingerprint(ctx context.Context, source string) (string, error) {
	if loc, ok := storage.ParseURI(source); ok {
		if s.store == nil {
			return "", domain.NewDomainError(domain.ErrCodeNotConfigured, "object storage not configured")
		}
		meta, err := s.store.HeadObject(ctx, loc)
		if err != nil {
			return "", err
		}
		return "etag:" + strings.Trim(meta.ETag, `"`), nil
	}

	if err := checkScheme(source); err != nil {
		return "", err
	}

	info, err := os.Stat(source)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", source, err)
	}
	return fmt.Sprintf("file:%d:%d", info.Size(), info.ModTime().UnixNano()), nil
}

func checkScheme(source string) error {
	if strings.Contains(source, "://") {
		return domain.NewDomainError(domain.ErrCodeValidation, "unsupported source scheme: "+source)
	}
	return nil
}

// Delimiter picks the field separator from the source extension.
func Delimiter(source string) rune {
	if strings.EqualFold(filepath.Ext(source), ".tsv") {
		return '\t'
	}
	return ','
}
