package etherscan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/flare-foundation/evm-address-indexer/internal/entities"
	"github.com/flare-foundation/evm-address-indexer/internal/metrics"
)

const endBlock = "99999999"

var (
	ErrRemoteTransport  = errors.New("explorer transport failure")
	ErrRateLimited      = errors.New("explorer rate limit reached")
	ErrRemoteLogical    = errors.New("explorer returned an error")
	ErrUnexpectedResult = errors.New("explorer returned an unexpected result")
)

var actions = map[entities.Category]string{
	entities.Transactions:         "txlist",
	entities.InternalTransactions: "txlistinternal",
	entities.TokenTransfers:       "tokentx",
}

var (
	noRecordsPhrases = []string{"no transactions", "no records"}
	rateLimitPhrases = []string{"rate limit", "max rate limit reached", "max calls"}
)

type OutcomeKind int

const (
	Success OutcomeKind = iota
	Empty
	TransientFailure
	FatalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Empty:
		return "empty"
	case TransientFailure:
		return "transient"
	case FatalFailure:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of a single page request. Items is only
// set for Success and Err only for the failure kinds.
type Outcome[D any] struct {
	Kind  OutcomeKind
	Items []D
	Err   error
}

type PageRequest struct {
	Address    string
	StartBlock uint64
	Page       int
	PageSize   int
}

type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

type Client struct {
	http    *http.Client
	baseURL *url.URL
	apiKey  string
	timeout time.Duration
	limiter *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base_url must be provided")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("api_key must be provided")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing base_url")
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		http:    &http.Client{},
		baseURL: u,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

func (c *Client) Transactions(ctx context.Context, req PageRequest) Outcome[TxDTO] {
	return fetchPage[TxDTO](ctx, c, entities.Transactions, req)
}

func (c *Client) InternalTransactions(ctx context.Context, req PageRequest) Outcome[InternalDTO] {
	return fetchPage[InternalDTO](ctx, c, entities.InternalTransactions, req)
}

func (c *Client) TokenTransfers(ctx context.Context, req PageRequest) Outcome[TokenDTO] {
	return fetchPage[TokenDTO](ctx, c, entities.TokenTransfers, req)
}

func fetchPage[D any](ctx context.Context, c *Client, category entities.Category, req PageRequest) Outcome[D] {
	rsp, err := c.do(ctx, category, req)

	var out Outcome[D]
	if err != nil {
		out = Outcome[D]{Kind: FatalFailure, Err: err}
	} else {
		out = classify[D](rsp)
	}

	metrics.RemoteRequests.WithLabelValues(category.String(), out.Kind.String()).Inc()
	if out.Err != nil {
		out.Err = errors.Wrapf(out.Err, "%s page %d", actions[category], req.Page)
	}

	return out
}

func (c *Client) do(ctx context.Context, category entities.Category, req PageRequest) (*response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrapf(ErrRemoteTransport, "waiting for rate limiter: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(category, req), nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}

	httpRsp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(ErrRemoteTransport, "%v", scrubKey(err.Error(), c.apiKey))
	}
	defer httpRsp.Body.Close()

	if httpRsp.StatusCode < 200 || httpRsp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrRemoteTransport, "unexpected HTTP status %d", httpRsp.StatusCode)
	}

	var rsp response
	if err := json.NewDecoder(httpRsp.Body).Decode(&rsp); err != nil {
		return nil, errors.Wrapf(ErrRemoteTransport, "decoding response: %v", err)
	}

	return &rsp, nil
}

func (c *Client) pageURL(category entities.Category, req PageRequest) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("module", "account")
	q.Set("action", actions[category])
	q.Set("address", req.Address)
	q.Set("startblock", strconv.FormatUint(req.StartBlock, 10))
	q.Set("endblock", endBlock)
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("offset", strconv.Itoa(req.PageSize))
	q.Set("sort", "asc")
	q.Set("apikey", c.apiKey)
	u.RawQuery = q.Encode()

	return u.String()
}

// classify maps an explorer envelope to an outcome. Status "0" is either an
// empty result, a rate limit or an error depending on the message text.
func classify[D any](rsp *response) Outcome[D] {
	diagnostic, _ := rsp.Result.(string)
	text := strings.ToLower(rsp.Message + " " + diagnostic)

	if rsp.Status == "0" {
		if containsAny(text, noRecordsPhrases) {
			return Outcome[D]{Kind: Empty}
		}
		if containsAny(text, rateLimitPhrases) {
			return Outcome[D]{Kind: TransientFailure, Err: errors.Wrapf(ErrRateLimited, "%s %s", rsp.Message, diagnostic)}
		}
	}

	if rsp.Status != "1" {
		return Outcome[D]{Kind: FatalFailure, Err: errors.Wrapf(ErrRemoteLogical, "status %q: %s %s", rsp.Status, rsp.Message, diagnostic)}
	}

	list, ok := rsp.Result.([]interface{})
	if !ok {
		return Outcome[D]{Kind: FatalFailure, Err: errors.Wrapf(ErrUnexpectedResult, "result of type %T", rsp.Result)}
	}

	items := make([]D, 0, len(list))
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &items,
	})
	if err != nil {
		return Outcome[D]{Kind: FatalFailure, Err: errors.Wrap(err, "mapstructure.NewDecoder")}
	}
	if err := decoder.Decode(list); err != nil {
		return Outcome[D]{Kind: FatalFailure, Err: errors.Wrapf(ErrUnexpectedResult, "mapstructure.Decode(result): %v", err)}
	}

	return Outcome[D]{Kind: Success, Items: items}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}

	return false
}

// scrubKey keeps the API key out of errors that echo the request URL.
func scrubKey(s, key string) string {
	if key == "" {
		return s
	}

	return strings.ReplaceAll(s, key, "***")
}
