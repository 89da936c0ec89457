package crawler

import (
	"context"

	"github.com/flare-foundation/go-flare-common/pkg/logger"

	"github.com/flare-foundation/evm-address-indexer/internal/database"
	"github.com/flare-foundation/evm-address-indexer/internal/entities"
	"github.com/flare-foundation/evm-address-indexer/internal/etherscan"
	"github.com/flare-foundation/evm-address-indexer/internal/metrics"
)

// categoryPipeline hides the explorer DTO and entity types of one category.
type categoryPipeline interface {
	nextStartBlock(ctx context.Context, address string) (uint64, error)
	crawl(ctx context.Context, address string) (int, error)
	fetchPage(ctx context.Context, req etherscan.PageRequest, persist bool) ([]entities.Record, error)
	count(ctx context.Context, filter database.Filter) (int64, error)
	page(ctx context.Context, filter database.Filter, page, pageSize int) ([]entities.Record, error)
}

type pipeline[D any, R entities.Record] struct {
	category     entities.Category
	fetch        func(context.Context, etherscan.PageRequest) etherscan.Outcome[D]
	mapRecord    func(D) (R, error)
	store        database.Store[R]
	paginator    etherscan.Paginator
	defaultStart uint64
}

func (p *pipeline[D, R]) nextStartBlock(ctx context.Context, address string) (uint64, error) {
	return nextStartBlock(ctx, p.store, address, p.defaultStart)
}

// crawl fetches every page from the cursor onwards and upserts the result in
// a single batch.
func (p *pipeline[D, R]) crawl(ctx context.Context, address string) (int, error) {
	start, err := p.nextStartBlock(ctx, address)
	if err != nil {
		return 0, err
	}

	logger.Infof("crawling %s for %s from block %d", p.category, address, start)

	raw, err := etherscan.FetchAll(ctx, p.paginator, func(ctx context.Context, page int) etherscan.Outcome[D] {
		out := p.fetch(ctx, etherscan.PageRequest{
			Address:    address,
			StartBlock: start,
			Page:       page,
			PageSize:   p.paginator.PageSize,
		})
		if out.Kind == etherscan.Success {
			metrics.PagesFetched.WithLabelValues(p.category.String()).Inc()
		}

		return out
	})
	if err != nil {
		return 0, err
	}

	records := entities.Dedupe(p.mapAll(raw))
	if err := p.upsert(ctx, records); err != nil {
		return 0, err
	}

	return len(records), nil
}

func (p *pipeline[D, R]) fetchPage(ctx context.Context, req etherscan.PageRequest, persist bool) ([]entities.Record, error) {
	out := p.fetch(ctx, req)

	switch out.Kind {
	case etherscan.Empty:
		return []entities.Record{}, nil
	case etherscan.TransientFailure, etherscan.FatalFailure:
		return nil, out.Err
	}

	records := entities.Dedupe(p.mapAll(out.Items))
	if persist {
		if err := p.upsert(ctx, records); err != nil {
			return nil, err
		}
	}

	return toRecords(records), nil
}

func (p *pipeline[D, R]) count(ctx context.Context, filter database.Filter) (int64, error) {
	return p.store.Count(ctx, filter)
}

func (p *pipeline[D, R]) page(ctx context.Context, filter database.Filter, page, pageSize int) ([]entities.Record, error) {
	items, err := p.store.Page(ctx, filter, page, pageSize)
	if err != nil {
		return nil, err
	}

	return toRecords(items), nil
}

func (p *pipeline[D, R]) upsert(ctx context.Context, records []R) error {
	if len(records) == 0 {
		return nil
	}

	if err := p.store.Upsert(ctx, records); err != nil {
		return err
	}

	metrics.RecordsUpserted.WithLabelValues(p.category.String()).Add(float64(len(records)))

	return nil
}

// mapAll drops the records that fail to map.
func (p *pipeline[D, R]) mapAll(items []D) []R {
	out := make([]R, 0, len(items))

	for _, item := range items {
		r, err := p.mapRecord(item)
		if err != nil {
			logger.Warnf("skipping %s record: %v", p.category, err)
			metrics.RecordsRejected.WithLabelValues(p.category.String()).Inc()

			continue
		}

		out = append(out, r)
	}

	return out
}

func toRecords[R entities.Record](items []R) []entities.Record {
	out := make([]entities.Record, len(items))
	for i := range items {
		out[i] = items[i]
	}

	return out
}
