package service

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/cloo-solutions/vocabtool/internal/domain"
)

// Resolver codes a single concept.
type Resolver interface {
	Resolve(ctx context.Context, input ResolveInput) (*domain.ResolutionResult, error)
}

// BatchItem is the outcome for one concept of a batch, in input order.
type BatchItem struct {
	Index  int                      `json:"index"`
	Focus  string                   `json:"focus"`
	Result *domain.ResolutionResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
	Code   string                   `json:"code,omitempty"`
}

// BatchResolver resolves independent concepts concurrently on a worker pool.
type BatchResolver struct {
	resolver Resolver
	pool     *ants.Pool
	logger   *slog.Logger
}

// NewBatchResolver creates a pool of size workers. A non-positive size uses
// half the CPUs, with a minimum of one.
func NewBatchResolver(resolver Resolver, size int) (*BatchResolver, error) {
	if size <= 0 {
		size = runtime.NumCPU() / 2
	}
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &BatchResolver{
		resolver: resolver,
		pool:     pool,
		logger:   slog.Default().With("component", "batch-resolver"),
	}, nil
}

// ResolveAll resolves every input. Per-concept errors are reported in the
// item; the call itself fails only when ctx is cancelled.
func (b *BatchResolver) ResolveAll(ctx context.Context, inputs []ResolveInput) ([]BatchItem, error) {
	items := make([]BatchItem, len(inputs))
	var wg sync.WaitGroup

	for i, in := range inputs {
		items[i] = BatchItem{Index: i, Focus: in.Focus}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			result, err := b.resolver.Resolve(ctx, in)
			if err != nil {
				items[i].Error = err.Error()
				items[i].Code = domain.CodeOf(err)
				return
			}
			items[i].Result = result
		}
		if err := b.pool.Submit(task); err != nil {
			wg.Done()
			b.logger.Error("failed to submit resolution", "index", i, "error", err)
			items[i].Error = err.Error()
			items[i].Code = domain.ErrCodeInternalError
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Release stops the worker pool.
func (b *BatchResolver) Release() {
	b.pool.Release()
}
