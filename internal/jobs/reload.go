package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cloo-solutions/vocabtool/internal/loader"
	"github.com/cloo-solutions/vocabtool/internal/registry"
	"github.com/cloo-solutions/vocabtool/internal/telemetry"
)

const (
	// MaxRetries is the number of consecutive failed loads of one source
	// fingerprint before the reloader waits for the source to change.
	MaxRetries = 3
)

// VocabularyLoader rebuilds a vocabulary index from its source.
type VocabularyLoader interface {
	Load(ctx context.Context, v *registry.Vocabulary) (*loader.Result, error)
	Fingerprint(ctx context.Context, v *registry.Vocabulary) (string, error)
}

// VocabularySet lists the vocabularies to watch.
type VocabularySet interface {
	Vocabularies() []*registry.Vocabulary
}

type reloadState struct {
	fingerprint string
	failed      string
	failures    int
}

// ReloadProcessor rebuilds an index when its source fingerprint changes or
// the index has never been built.
type ReloadProcessor struct {
	vocabs VocabularySet
	loader VocabularyLoader
	logger *slog.Logger

	mu    sync.Mutex
	state map[string]*reloadState
}

// NewReloadProcessor creates a ReloadProcessor.
func NewReloadProcessor(vocabs VocabularySet, l VocabularyLoader) *ReloadProcessor {
	return &ReloadProcessor{
		vocabs: vocabs,
		loader: l,
		logger: slog.Default().With("component", "reloader"),
		state:  make(map[string]*reloadState),
	}
}

// Seed records the fingerprint an index was last built from.
func (p *ReloadProcessor) Seed(system, fingerprint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stateFor(system).fingerprint = fingerprint
}

func (p *ReloadProcessor) stateFor(system string) *reloadState {
	st, ok := p.state[system]
	if !ok {
		st = &reloadState{}
		p.state[system] = st
	}
	return st
}

// Sweep checks every sourced vocabulary once and reloads the stale ones.
func (p *ReloadProcessor) Sweep(ctx context.Context) error {
	var failed int
	for _, v := range p.vocabs.Vocabularies() {
		if v.System.Source == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.check(ctx, v); err != nil {
			failed++
			p.logger.Error("reload failed", "system", v.System.Name, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d vocabularies failed to reload", failed)
	}
	return nil
}

func (p *ReloadProcessor) check(ctx context.Context, v *registry.Vocabulary) error {
	name := v.System.Name
	fingerprint, err := p.loader.Fingerprint(ctx, v)
	if err != nil {
		return fmt.Errorf("fingerprint: %w", err)
	}

	p.mu.Lock()
	st := p.stateFor(name)
	current := st.fingerprint
	exhausted := st.failed == fingerprint && st.failures >= MaxRetries
	p.mu.Unlock()

	if fingerprint == current && v.Index.Ready() {
		return nil
	}
	if exhausted {
		p.logger.Debug("skipping source after repeated failures", "system", name, "fingerprint", fingerprint)
		return nil
	}

	ctx, tx := telemetry.StartTransaction(ctx, "reload "+name, "vocab.reload")
	defer tx.End()

	result, err := p.loader.Load(ctx, v)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		tx.SetError(err)
		telemetry.CaptureError(ctx, err)
		if st.failed != fingerprint {
			st.failed, st.failures = fingerprint, 0
		}
		st.failures++
		return err
	}
	st.fingerprint = result.Fingerprint
	st.failed, st.failures = "", 0
	p.logger.Info("vocabulary reloaded",
		"system", name,
		"entries", result.Stats.Entries,
		"generation", result.Index.Generation,
	)
	return nil
}
