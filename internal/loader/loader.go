package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/index"
	"github.com/cloo-solutions/vocabtool/internal/registry"
)

// Result describes one completed load.
type Result struct {
	System      string      `json:"system"`
	Source      string      `json:"source"`
	Fingerprint string      `json:"fingerprint"`
	Stats       ParseStats  `json:"stats"`
	Index       index.Stats `json:"index"`
	Duration    string      `json:"duration"`
}

// Loader parses a vocabulary's source and rebuilds its index.
type Loader struct {
	sources *Sources
	logger  *slog.Logger
}

// New creates a Loader.
func New(sources *Sources) *Loader {
	return &Loader{
		sources: sources,
		logger:  slog.Default().With("component", "loader"),
	}
}

// Load rebuilds v's index from its configured source.
func (l *Loader) Load(ctx context.Context, v *registry.Vocabulary) (*Result, error) {
	return l.LoadFrom(ctx, v, v.System.Source)
}

// LoadFrom rebuilds v's index from source, overriding the configured one.
func (l *Loader) LoadFrom(ctx context.Context, v *registry.Vocabulary, source string) (*Result, error) {
	if source == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "no source configured for "+v.System.Name)
	}
	start := time.Now()
	logger := l.logger.With("system", v.System.Name, "source", source)

	fingerprint, err := l.sources.Fingerprint(ctx, source)
	if err != nil {
		return nil, err
	}

	rc, err := l.sources.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	entries, stats, err := Parse(rc, v.System.Columns, Delimiter(source))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	if stats.Skipped > 0 || stats.Duplicates > 0 {
		logger.Warn("rows ignored", "skipped", stats.Skipped, "duplicates", stats.Duplicates)
	}

	ixStats, err := v.Index.Build(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("build %s index: %w", v.System.Name, err)
	}

	elapsed := time.Since(start)
	logger.Info("vocabulary loaded",
		"entries", stats.Entries,
		"generation", ixStats.Generation,
		"duration_ms", elapsed.Milliseconds(),
	)

	return &Result{
		System:      v.System.Name,
		Source:      source,
		Fingerprint: fingerprint,
		Stats:       stats,
		Index:       ixStats,
		Duration:    elapsed.Round(time.Millisecond).String(),
	}, nil
}

// Fingerprint reports the current fingerprint of v's source.
func (l *Loader) Fingerprint(ctx context.Context, v *registry.Vocabulary) (string, error) {
	return l.sources.Fingerprint(ctx, v.System.Source)
}
