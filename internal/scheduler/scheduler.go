package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/pkg/errors"

	"github.com/flare-foundation/evm-address-indexer/internal/entities"
	"github.com/flare-foundation/evm-address-indexer/internal/metrics"
	"github.com/flare-foundation/evm-address-indexer/internal/timeutil"
)

type Crawler interface {
	FullCrawl(ctx context.Context, address string, categories entities.CategorySet) error
}

type Config struct {
	Addresses    []string
	Interval     time.Duration
	InitialDelay time.Duration
}

// Scheduler periodically crawls every watched address.
type Scheduler struct {
	cfg     Config
	crawler Crawler
}

func New(cfg Config, crawler Crawler) *Scheduler {
	return &Scheduler{cfg: cfg, crawler: crawler}
}

// Run blocks until ctx is cancelled. Cancellation is observed at the initial
// delay, between ticks and between addresses; a crawl already in progress
// runs to completion.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Infof("scheduler watching %d addresses, first tick in %v", len(s.addresses()), s.cfg.InitialDelay)

	if err := timeutil.Sleep(ctx, s.cfg.InitialDelay); err != nil {
		logger.Info("scheduler stopped before first tick")
		return
	}

	for {
		s.tick(ctx)

		if err := timeutil.Sleep(ctx, s.cfg.Interval); err != nil {
			logger.Info("scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	logger.Infof("crawler tick at %s", time.Now().UTC().Format(time.RFC3339))

	crawlCtx := context.WithoutCancel(ctx)
	for _, address := range s.addresses() {
		if ctx.Err() != nil {
			return
		}

		if err := s.crawlAddress(crawlCtx, address); err != nil {
			logger.Errorf("crawler error for %s: %v", address, err)
			metrics.SchedulerFailures.Inc()
		}
	}

	metrics.SchedulerTicks.Inc()
}

func (s *Scheduler) crawlAddress(ctx context.Context, address string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()

	return s.crawler.FullCrawl(ctx, address, entities.AllCategorySet())
}

func (s *Scheduler) addresses() []string {
	out := make([]string, 0, len(s.cfg.Addresses))
	for _, a := range s.cfg.Addresses {
		if strings.TrimSpace(a) != "" {
			out = append(out, a)
		}
	}

	return out
}
