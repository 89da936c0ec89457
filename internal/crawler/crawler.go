package crawler

import (
	"context"
	"time"

	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/flare-foundation/evm-address-indexer/internal/database"
	"github.com/flare-foundation/evm-address-indexer/internal/entities"
	"github.com/flare-foundation/evm-address-indexer/internal/etherscan"
	"github.com/flare-foundation/evm-address-indexer/internal/metrics"
	"github.com/flare-foundation/evm-address-indexer/internal/timeutil"
)

var ErrInvalidAddress = errors.New("invalid address")

// Source serves single explorer pages. *etherscan.Client implements it.
type Source interface {
	Transactions(context.Context, etherscan.PageRequest) etherscan.Outcome[etherscan.TxDTO]
	InternalTransactions(context.Context, etherscan.PageRequest) etherscan.Outcome[etherscan.InternalDTO]
	TokenTransfers(context.Context, etherscan.PageRequest) etherscan.Outcome[etherscan.TokenDTO]
}

type Stores struct {
	Transactions         database.Store[entities.Transaction]
	InternalTransactions database.Store[entities.InternalTransaction]
	TokenTransfers       database.Store[entities.TokenTransfer]
}

func NewStores(db *database.DB) Stores {
	return Stores{
		Transactions:         database.NewTable[entities.Transaction](db),
		InternalTransactions: database.NewTable[entities.InternalTransaction](db),
		TokenTransfers:       database.NewTable[entities.TokenTransfer](db),
	}
}

type Config struct {
	// Paginator drives full crawls; its PageSize is the crawl page size.
	Paginator         etherscan.Paginator
	DefaultStartBlock uint64
	// CategoryDelay is slept between sequential categories after one that
	// yielded records.
	CategoryDelay      time.Duration
	ParallelCategories bool
}

// PagedResult is one page of records of a single category.
type PagedResult struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
	Items    []entities.Record `json:"items"`
}

// PageQuery parametrizes a single explorer page fetch.
type PageQuery struct {
	FromBlock *uint64
	Page      int
	PageSize  int
	Persist   bool
}

// RangeQuery parametrizes a stored range read.
type RangeQuery struct {
	FromBlock *uint64
	ToBlock   *uint64
	Page      int
	PageSize  int
}

type Crawler struct {
	cfg       Config
	pipelines map[entities.Category]categoryPipeline
}

func New(cfg Config, source Source, stores Stores) *Crawler {
	return &Crawler{
		cfg: cfg,
		pipelines: map[entities.Category]categoryPipeline{
			entities.Transactions: &pipeline[etherscan.TxDTO, entities.Transaction]{
				category:     entities.Transactions,
				fetch:        source.Transactions,
				mapRecord:    etherscan.MapTransaction,
				store:        stores.Transactions,
				paginator:    cfg.Paginator,
				defaultStart: cfg.DefaultStartBlock,
			},
			entities.InternalTransactions: &pipeline[etherscan.InternalDTO, entities.InternalTransaction]{
				category:     entities.InternalTransactions,
				fetch:        source.InternalTransactions,
				mapRecord:    etherscan.MapInternalTransaction,
				store:        stores.InternalTransactions,
				paginator:    cfg.Paginator,
				defaultStart: cfg.DefaultStartBlock,
			},
			entities.TokenTransfers: &pipeline[etherscan.TokenDTO, entities.TokenTransfer]{
				category:     entities.TokenTransfers,
				fetch:        source.TokenTransfers,
				mapRecord:    etherscan.MapTokenTransfer,
				store:        stores.TokenTransfers,
				paginator:    cfg.Paginator,
				defaultStart: cfg.DefaultStartBlock,
			},
		},
	}
}

// NextStartBlock is the block the next full crawl of category starts from.
func (c *Crawler) NextStartBlock(ctx context.Context, category entities.Category, address string) (uint64, error) {
	p, address, err := c.resolve(category, address)
	if err != nil {
		return 0, err
	}

	return p.nextStartBlock(ctx, address)
}

// GetPage fetches exactly one explorer page, bypassing the cursor, and
// optionally upserts what it got. Total is the number of returned items.
func (c *Crawler) GetPage(
	ctx context.Context, category entities.Category, address string, q PageQuery,
) (*PagedResult, error) {
	p, address, err := c.resolve(category, address)
	if err != nil {
		return nil, err
	}

	page, pageSize := database.ClampPaging(q.Page, q.PageSize)

	start := c.cfg.DefaultStartBlock
	if q.FromBlock != nil {
		start = *q.FromBlock
	}

	items, err := p.fetchPage(ctx, etherscan.PageRequest{
		Address:    address,
		StartBlock: start,
		Page:       page,
		PageSize:   pageSize,
	}, q.Persist)
	if err != nil {
		return nil, err
	}

	return &PagedResult{Total: int64(len(items)), Page: page, PageSize: pageSize, Items: items}, nil
}

// GetRange reads stored records. When nothing matches, the category is
// crawled once and the store is queried again.
func (c *Crawler) GetRange(
	ctx context.Context, category entities.Category, address string, q RangeQuery,
) (*PagedResult, error) {
	p, address, err := c.resolve(category, address)
	if err != nil {
		return nil, err
	}

	page, pageSize := database.ClampPaging(q.Page, q.PageSize)
	filter := database.Filter{Address: address, FromBlock: q.FromBlock, ToBlock: q.ToBlock}

	total, err := p.count(ctx, filter)
	if err != nil {
		return nil, err
	}

	if total == 0 {
		if err := c.FullCrawl(ctx, address, entities.NewCategorySet(category)); err != nil {
			return nil, err
		}

		if total, err = p.count(ctx, filter); err != nil {
			return nil, err
		}
	}

	items, err := p.page(ctx, filter, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &PagedResult{Total: total, Page: page, PageSize: pageSize, Items: items}, nil
}

// FullCrawl catches every requested category up from its own cursor. A
// failing category does not stop the others; all failures are combined in
// the returned error.
func (c *Crawler) FullCrawl(ctx context.Context, address string, categories entities.CategorySet) error {
	address = entities.NormalizeAddress(address)
	if address == "" {
		return errors.Wrap(ErrInvalidAddress, "empty address")
	}

	ordered := categories.Ordered()
	if c.cfg.ParallelCategories {
		return c.crawlParallel(ctx, address, ordered)
	}

	var (
		errs      error
		prevYield bool
	)
	for _, category := range ordered {
		if prevYield && c.cfg.CategoryDelay > 0 {
			if err := timeutil.Sleep(ctx, c.cfg.CategoryDelay); err != nil {
				return multierr.Append(errs, err)
			}
		}

		n, err := c.crawlCategory(ctx, category, address)
		errs = multierr.Append(errs, err)
		prevYield = n > 0
	}

	return errs
}

func (c *Crawler) crawlParallel(ctx context.Context, address string, categories []entities.Category) error {
	var eg errgroup.Group
	errs := make([]error, len(categories))

	for i, category := range categories {
		eg.Go(func() error {
			_, errs[i] = c.crawlCategory(ctx, category, address)
			return errs[i]
		})
	}

	// Wait returns the first failure only; errs holds all of them.
	if err := eg.Wait(); err == nil {
		return nil
	}

	return multierr.Combine(errs...)
}

func (c *Crawler) crawlCategory(ctx context.Context, category entities.Category, address string) (int, error) {
	start := time.Now()

	n, err := c.pipelines[category].crawl(ctx, address)

	status := "ok"
	if err != nil {
		status = "error"
		err = errors.Wrapf(err, "crawling %s for %s", category, address)
		logger.Errorf("%v", err)
	} else {
		logger.Infof("crawled %d %s records for %s", n, category, address)
	}

	metrics.CrawlDuration.WithLabelValues(category.String(), status).Observe(time.Since(start).Seconds())

	return n, err
}

func (c *Crawler) resolve(category entities.Category, address string) (categoryPipeline, string, error) {
	p, ok := c.pipelines[category]
	if !ok {
		return nil, "", errors.Wrapf(entities.ErrUnknownCategory, "%q", category)
	}

	address = entities.NormalizeAddress(address)
	if address == "" {
		return nil, "", errors.Wrap(ErrInvalidAddress, "empty address")
	}

	return p, address, nil
}
