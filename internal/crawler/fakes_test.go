package crawler_test

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/flare-foundation/evm-address-indexer/internal/database"
	"github.com/flare-foundation/evm-address-indexer/internal/entities"
	"github.com/flare-foundation/evm-address-indexer/internal/etherscan"
)

// memStore is an in-memory database.Store keyed by record identity.
type memStore[R entities.Record] struct {
	mu        sync.Mutex
	rows      map[string]R
	upserts   int
	upsertErr error
}

func newMemStore[R entities.Record]() *memStore[R] {
	return &memStore[R]{rows: make(map[string]R)}
}

func (s *memStore[R]) Upsert(_ context.Context, records []R) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upsertErr != nil {
		return errors.Wrap(database.ErrStore, s.upsertErr.Error())
	}

	s.upserts++
	for _, r := range entities.Dedupe(records) {
		s.rows[r.GetKey()] = r
	}

	return nil
}

func (s *memStore[R]) MaxBlock(_ context.Context, address string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touching []R
	for _, r := range s.rows {
		if entities.Touches(r, address) {
			touching = append(touching, r)
		}
	}

	highest, found := entities.MaxBlock(touching)

	return highest, found, nil
}

func (s *memStore[R]) Count(_ context.Context, filter database.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.matching(filter))), nil
}

func (s *memStore[R]) Page(_ context.Context, filter database.Filter, page, pageSize int) ([]R, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, pageSize = database.ClampPaging(page, pageSize)
	items := s.matching(filter)

	from := (page - 1) * pageSize
	if from >= len(items) {
		return []R{}, nil
	}

	to := from + pageSize
	if to > len(items) {
		to = len(items)
	}

	return items[from:to], nil
}

func (s *memStore[R]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rows)
}

func (s *memStore[R]) matching(filter database.Filter) []R {
	var out []R
	for _, r := range s.rows {
		if !entities.Touches(r, filter.Address) {
			continue
		}
		if filter.FromBlock != nil && r.GetBlockNumber() < *filter.FromBlock {
			continue
		}
		if filter.ToBlock != nil && r.GetBlockNumber() > *filter.ToBlock {
			continue
		}

		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].GetBlockNumber() != out[j].GetBlockNumber() {
			return out[i].GetBlockNumber() > out[j].GetBlockNumber()
		}
		return out[i].GetKey() < out[j].GetKey()
	})

	return out
}

type sourceRequest struct {
	category entities.Category
	req      etherscan.PageRequest
}

// fakeSource pages through fixed explorer data the way the explorer does:
// records at or above the start block, ascending, offset-sized pages.
type fakeSource struct {
	mu        sync.Mutex
	txs       []etherscan.TxDTO
	internals []etherscan.InternalDTO
	tokens    []etherscan.TokenDTO
	failures  map[entities.Category]etherscan.Outcome[struct{}]
	requests  []sourceRequest
}

func (f *fakeSource) Transactions(_ context.Context, req etherscan.PageRequest) etherscan.Outcome[etherscan.TxDTO] {
	f.mu.Lock()
	defer f.mu.Unlock()

	return serve(f, entities.Transactions, req, f.txs, func(d etherscan.TxDTO) (string, string, string) {
		return d.BlockNumber, d.From, d.To
	})
}

func (f *fakeSource) InternalTransactions(_ context.Context, req etherscan.PageRequest) etherscan.Outcome[etherscan.InternalDTO] {
	f.mu.Lock()
	defer f.mu.Unlock()

	return serve(f, entities.InternalTransactions, req, f.internals, func(d etherscan.InternalDTO) (string, string, string) {
		return d.BlockNumber, d.From, d.To
	})
}

func (f *fakeSource) TokenTransfers(_ context.Context, req etherscan.PageRequest) etherscan.Outcome[etherscan.TokenDTO] {
	f.mu.Lock()
	defer f.mu.Unlock()

	return serve(f, entities.TokenTransfers, req, f.tokens, func(d etherscan.TokenDTO) (string, string, string) {
		return d.BlockNumber, d.From, d.To
	})
}

func (f *fakeSource) requestsFor(category entities.Category) []etherscan.PageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []etherscan.PageRequest
	for _, r := range f.requests {
		if r.category == category {
			out = append(out, r.req)
		}
	}

	return out
}

func (f *fakeSource) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.requests)
}

func serve[D any](
	f *fakeSource, category entities.Category, req etherscan.PageRequest, data []D,
	fields func(D) (block, from, to string),
) etherscan.Outcome[D] {
	f.requests = append(f.requests, sourceRequest{category: category, req: req})

	if failure, ok := f.failures[category]; ok {
		return etherscan.Outcome[D]{Kind: failure.Kind, Err: failure.Err}
	}

	var matching []D
	for _, d := range data {
		block, from, to := fields(d)
		n, err := strconv.ParseUint(block, 10, 64)
		if err == nil && n < req.StartBlock {
			continue
		}
		if entities.NormalizeAddress(from) != req.Address && entities.NormalizeAddress(to) != req.Address {
			continue
		}

		matching = append(matching, d)
	}

	from := (req.Page - 1) * req.PageSize
	if from >= len(matching) {
		return etherscan.Outcome[D]{Kind: etherscan.Empty}
	}

	to := from + req.PageSize
	if to > len(matching) {
		to = len(matching)
	}

	return etherscan.Outcome[D]{Kind: etherscan.Success, Items: matching[from:to]}
}
