package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jacklau/mvsdump/internal/catalog"
	"github.com/jacklau/mvsdump/internal/mvs"
	"github.com/jacklau/mvsdump/internal/pubsub"
	"github.com/jacklau/mvsdump/internal/store"
)

// Strategy selects which product ids a run requests.
type Strategy string

const (
	// StrategyRange requests ids 1..Count.
	StrategyRange Strategy = "range"
	// StrategyDiscover requests every known id again, then probes past the
	// largest known id until a batch comes back empty.
	StrategyDiscover Strategy = "discover"
)

const (
	// DefaultBatchSize is the number of product ids per API request.
	DefaultBatchSize = 128

	// DefaultWorkers is the number of batches fetched concurrently.
	DefaultWorkers = 4
)

// Fetcher is the part of the API client the engine needs.
type Fetcher interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]catalog.RawRecord, error)
	GetSearchResults(ctx context.Context) ([]catalog.RawRecord, error)
}

// Batch describes one persisted batch, passed to Options.OnBatch.
type Batch struct {
	First, Last int64
	Products    int
}

// Options controls a single run. StrategyRange requests ids [1, Count], so a
// zero Count requests nothing.
type Options struct {
	Strategy  Strategy
	Count     int64
	BatchSize int
	Workers   int

	// Baseline, if non-nil, replaces the stored file ids as the snapshot new
	// files are diffed against. A run retried after a partial failure passes
	// the snapshot taken before the first attempt.
	Baseline map[int64]struct{}

	// OnBatch, if set, is called after each batch is persisted.
	OnBatch func(Batch)
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = StrategyRange
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	return o
}

func (o Options) validate() error {
	switch o.Strategy {
	case StrategyRange, StrategyDiscover:
	default:
		return fmt.Errorf("unknown strategy %q", o.Strategy)
	}
	if o.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", o.Count)
	}
	return nil
}

// Engine fetches the vendor catalog, stores it and reports new files.
type Engine struct {
	store   store.Store
	fetcher Fetcher
	broker  *pubsub.Broker[*Report]
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Engine. broker may be nil.
func New(st store.Store, fetcher Fetcher, broker *pubsub.Broker[*Report], logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   st,
		fetcher: fetcher,
		broker:  broker,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs one sync. The store is snapshotted, the selected ids are
// fetched and persisted, and the file ids that appeared during the run are
// reported together with their products.
//
// When a batch fails, batches already persisted stay committed and the
// partial report is returned along with the error. Credential expiry is
// reported as an error matching mvs.ErrCredentialExpired.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating run id: %w", err)
	}
	report := &Report{
		RunID:     runID.String(),
		Strategy:  opts.Strategy,
		StartedAt: e.now(),
	}
	logger := e.logger.With("run_id", report.RunID, "strategy", string(opts.Strategy))

	oldFiles := opts.Baseline
	if oldFiles == nil {
		oldFiles, err = e.store.FileIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshotting file ids: %w", err)
		}
	}
	productIDs, err := e.store.ProductIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting product ids: %w", err)
	}
	names, err := e.store.ProductNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting product names: %w", err)
	}
	report.OldFileCount = len(oldFiles)

	r := &run{
		engine: e,
		opts:   opts,
		report: report,
		names:  names,
		logger: logger,
	}

	logger.Info("sync started", "stored_files", len(oldFiles), "stored_products", len(productIDs))

	switch opts.Strategy {
	case StrategyRange:
		err = r.fetchRange(ctx, 1, opts.Count)
	case StrategyDiscover:
		last := maxID(productIDs)
		err = r.fetchRange(ctx, 1, last)
		if err == nil {
			err = r.probe(ctx, last+1)
		}
	}
	if err != nil {
		report.FinishedAt = e.now()
		e.publish(pubsub.SyncFailed, report)
		if errors.Is(err, mvs.ErrCredentialExpired) {
			logger.Warn("sync stopped: credential expired", "stored", report.ProductsStored)
		}
		return report, err
	}

	newFiles, err := e.store.FileIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("reading file ids: %w", err)
	}
	report.NewFileCount = len(newFiles)
	report.NewFileIDs = diff(newFiles, oldFiles)

	report.Changed, err = e.store.ProductsForFileIDs(ctx, report.NewFileIDs)
	if err != nil {
		return report, fmt.Errorf("resolving changed products: %w", err)
	}
	report.FinishedAt = e.now()

	logger.Info("sync finished",
		"fetched", report.ProductsFetched,
		"stored", report.ProductsStored,
		"skipped", report.ProductsSkipped,
		"new_files", len(report.NewFileIDs),
		"changed_products", len(report.Changed),
		"duration", report.Duration(),
	)

	if report.HasChanges() {
		e.publish(pubsub.ChangesFound, report)
	} else {
		e.publish(pubsub.SyncCompleted, report)
	}
	return report, nil
}

func (e *Engine) publish(typ pubsub.EventType, report *Report) {
	if e.broker != nil {
		e.broker.Publish(typ, report)
	}
}

// run holds the state of a single Run call. Only the goroutine executing Run
// touches it; fetch workers return their results through batch slots.
type run struct {
	engine *Engine
	opts   Options
	report *Report
	names  map[int64]string
	logger *slog.Logger

	searchNames   map[int64]string
	searchFetched bool
}

type fetchResult struct {
	first, last int64
	products    map[int64]catalog.RawRecord
	err         error
}

// fetchRange fetches ids first..last in windows of up to Workers concurrent
// batches and persists each window in batch order.
func (r *run) fetchRange(ctx context.Context, first, last int64) error {
	size := int64(r.opts.BatchSize)
	for start := first; start <= last; {
		window := make([]fetchResult, 0, r.opts.Workers)
		for len(window) < r.opts.Workers && start <= last {
			end := min(start+size-1, last)
			window = append(window, fetchResult{first: start, last: end})
			start = end + 1
		}

		sem := make(chan struct{}, r.opts.Workers)
		var wg sync.WaitGroup
		for i := range window {
			wg.Add(1)
			sem <- struct{}{}
			go func(slot *fetchResult) {
				defer wg.Done()
				defer func() { <-sem }()
				slot.products, slot.err = r.engine.fetcher.GetProducts(ctx, idRange(slot.first, slot.last))
			}(&window[i])
		}
		wg.Wait()

		for _, res := range window {
			if res.err != nil {
				return fmt.Errorf("fetching products %d-%d: %w", res.first, res.last, res.err)
			}
			if err := r.persist(ctx, res); err != nil {
				return err
			}
		}
	}
	return nil
}

// probe requests batches past the largest known id, one at a time, until a
// batch returns no products.
func (r *run) probe(ctx context.Context, first int64) error {
	size := int64(r.opts.BatchSize)
	for start := first; ; start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := fetchResult{first: start, last: start + size - 1}
		res.products, res.err = r.engine.fetcher.GetProducts(ctx, idRange(res.first, res.last))
		if res.err != nil {
			return fmt.Errorf("probing products %d-%d: %w", res.first, res.last, res.err)
		}
		if len(res.products) == 0 {
			r.logger.Debug("probe reached an empty batch", "batch", fmt.Sprintf("%d-%d", res.first, res.last))
			return nil
		}
		if err := r.persist(ctx, res); err != nil {
			return err
		}
	}
}

// persist assembles and stores the products of one batch in id order.
func (r *run) persist(ctx context.Context, res fetchResult) error {
	ids := make([]int64, 0, len(res.products))
	for id := range res.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	stored := 0
	for _, id := range ids {
		r.report.ProductsFetched++

		p, err := catalog.Assemble(res.products[id], r.logger)
		if err != nil {
			r.report.ProductsSkipped++
			r.logger.Warn("skipping malformed product", "product", id, "error", err)
			continue
		}

		// Stored products keep their first name, so only new ones are looked up.
		if _, known := r.names[p.ID]; p.Name == "" && !known {
			name, err := r.recoverName(ctx, p.ID)
			if err != nil {
				return err
			}
			if name != "" {
				p.Name = name
				r.report.NamesRecovered++
			}
		}

		if err := r.engine.store.AddProduct(ctx, p); err != nil {
			return fmt.Errorf("storing product %d: %w", p.ID, err)
		}
		if _, known := r.names[p.ID]; !known {
			r.names[p.ID] = p.Name
		}
		r.report.ProductsStored++
		stored++
	}

	if r.opts.OnBatch != nil {
		r.opts.OnBatch(Batch{First: res.first, Last: res.last, Products: stored})
	}
	return nil
}

// recoverName looks a product name up in the search listing, which is
// fetched at most once per run. Only credential expiry aborts the run; other
// search failures leave the product unnamed.
func (r *run) recoverName(ctx context.Context, id int64) (string, error) {
	if !r.searchFetched {
		r.searchFetched = true
		results, err := r.engine.fetcher.GetSearchResults(ctx)
		switch {
		case errors.Is(err, mvs.ErrCredentialExpired):
			return "", fmt.Errorf("fetching search results: %w", err)
		case err != nil:
			r.logger.Warn("search results unavailable, products stay unnamed", "error", err)
		default:
			r.searchNames = catalog.SearchNames(results)
			r.logger.Debug("fetched search results for name recovery", "names", len(r.searchNames))
		}
	}
	return r.searchNames[id], nil
}

func idRange(first, last int64) []int64 {
	ids := make([]int64, 0, last-first+1)
	for id := first; id <= last; id++ {
		ids = append(ids, id)
	}
	return ids
}

func maxID(ids map[int64]struct{}) int64 {
	var m int64
	for id := range ids {
		m = max(m, id)
	}
	return m
}

// diff returns the ids in after that are missing from before, ascending.
func diff(after, before map[int64]struct{}) []int64 {
	var added []int64
	for id := range after {
		if _, ok := before[id]; !ok {
			added = append(added, id)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	return added
}
