package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/flare-foundation/evm-address-indexer/internal/crawler"
	"github.com/flare-foundation/evm-address-indexer/internal/database"
	"github.com/flare-foundation/evm-address-indexer/internal/entities"
	"github.com/flare-foundation/evm-address-indexer/internal/etherscan"
)

const address = "0xAbC0000000000000000000000000000000000001"

type fakeService struct {
	category  entities.Category
	address   string
	pageQuery crawler.PageQuery
	rangeQ    crawler.RangeQuery
	result    *crawler.PagedResult
	err       error
}

func (f *fakeService) GetPage(_ context.Context, category entities.Category, address string, q crawler.PageQuery) (*crawler.PagedResult, error) {
	f.category, f.address, f.pageQuery = category, address, q
	return f.result, f.err
}

func (f *fakeService) GetRange(_ context.Context, category entities.Category, address string, q crawler.RangeQuery) (*crawler.PagedResult, error) {
	f.category, f.address, f.rangeQ = category, address, q
	return f.result, f.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, r http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	return rec
}

func TestGetPageDefaults(t *testing.T) {
	svc := &fakeService{result: &crawler.PagedResult{Total: 1, Page: 1, PageSize: 50, Items: []entities.Record{
		entities.Transaction{Hash: "0xaa", BlockNumber: 19_000_001, From: "0xabc0000000000000000000000000000000000001"},
	}}}

	rec := serve(t, NewRouter(svc, nil), "/api/addresses/"+address+"/transactions")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, entities.Transactions, svc.category)
	require.Equal(t, address, svc.address)
	require.Equal(t, crawler.PageQuery{Page: 1, PageSize: 50, Persist: true}, svc.pageQuery)

	var body struct {
		Total    int64 `json:"total"`
		Page     int   `json:"page"`
		PageSize int   `json:"pageSize"`
		Items    []struct {
			Hash        string `json:"hash"`
			BlockNumber uint64 `json:"blockNumber"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body.Total)
	assert.Equal(t, 50, body.PageSize)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "0xaa", body.Items[0].Hash)
	assert.EqualValues(t, 19_000_001, body.Items[0].BlockNumber)
}

func TestGetPageQuery(t *testing.T) {
	svc := &fakeService{result: &crawler.PagedResult{}}

	rec := serve(t, NewRouter(svc, nil), "/api/addresses/"+address+"/token-transfers?fromBlock=19000100&page=3&pageSize=10&persist=false")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, entities.TokenTransfers, svc.category)
	require.NotNil(t, svc.pageQuery.FromBlock)
	require.EqualValues(t, 19_000_100, *svc.pageQuery.FromBlock)
	require.Equal(t, 3, svc.pageQuery.Page)
	require.Equal(t, 10, svc.pageQuery.PageSize)
	require.False(t, svc.pageQuery.Persist)
}

func TestGetRangeQuery(t *testing.T) {
	svc := &fakeService{result: &crawler.PagedResult{Total: 7}}

	rec := serve(t, NewRouter(svc, nil), "/api/addresses/"+address+"/internal-transactions/stored?fromBlock=1&toBlock=2")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, entities.InternalTransactions, svc.category)
	require.EqualValues(t, 1, *svc.rangeQ.FromBlock)
	require.EqualValues(t, 2, *svc.rangeQ.ToBlock)
	require.Equal(t, 1, svc.rangeQ.Page)
	require.Equal(t, 50, svc.rangeQ.PageSize)
	require.Contains(t, rec.Body.String(), `"total":7`)
}

func TestBadRequests(t *testing.T) {
	r := NewRouter(&fakeService{result: &crawler.PagedResult{}}, nil)

	for _, target := range []string{
		"/api/addresses/not-an-address/transactions",
		"/api/addresses/" + address + "/blocks",
		"/api/addresses/" + address + "/transactions?fromBlock=-1",
		"/api/addresses/" + address + "/transactions?page=first",
		"/api/addresses/" + address + "/transactions?pageSize=x",
		"/api/addresses/" + address + "/transactions?persist=maybe",
		"/api/addresses/" + address + "/transactions/stored?toBlock=latest",
	} {
		rec := serve(t, r, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"error"`, target)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: errors.Wrap(etherscan.ErrRemoteTransport, "timeout"), want: http.StatusBadGateway},
		{err: errors.Wrap(etherscan.ErrRateLimited, "Max calls"), want: http.StatusBadGateway},
		{err: &etherscan.RetriesExhaustedError{Page: 2, Attempts: 3, Err: etherscan.ErrRateLimited}, want: http.StatusBadGateway},
		{err: multierr.Combine(errors.Wrap(etherscan.ErrRemoteLogical, "NOTOK")), want: http.StatusBadGateway},
		{err: errors.Wrap(database.ErrStore, "connection refused"), want: http.StatusInternalServerError},
		{err: context.Canceled, want: http.StatusInternalServerError},
	}

	for _, test := range tests {
		svc := &fakeService{err: test.err}
		rec := serve(t, NewRouter(svc, nil), "/api/addresses/"+address+"/transactions/stored")
		assert.Equal(t, test.want, rec.Code, test.err.Error())
	}
}

func TestHealthz(t *testing.T) {
	rec := serve(t, NewRouter(&fakeService{}, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	down := func(context.Context) error { return errors.New("db unreachable") }
	rec = serve(t, NewRouter(&fakeService{}, down), "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewRouter(&fakeService{}, nil)
	serve(t, r, "/healthz")

	rec := serve(t, r, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/healthz",status="2xx"}`)
}
