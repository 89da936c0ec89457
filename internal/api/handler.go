package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/flare-foundation/evm-address-indexer/internal/crawler"
	"github.com/flare-foundation/evm-address-indexer/internal/database"
	"github.com/flare-foundation/evm-address-indexer/internal/entities"
	"github.com/flare-foundation/evm-address-indexer/internal/etherscan"
)

const defaultPage = 1

var errBadRequest = errors.New("bad request")

type handler struct {
	svc Service
}

// getPage serves one explorer page, persisting it unless persist=false.
func (h *handler) getPage(c *gin.Context) {
	category, address, err := pathParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	q := crawler.PageQuery{}
	if q.FromBlock, err = optionalBlock(c, "fromBlock"); err != nil {
		respondError(c, err)
		return
	}
	if q.Page, q.PageSize, err = paging(c); err != nil {
		respondError(c, err)
		return
	}
	if q.Persist, err = strconv.ParseBool(c.DefaultQuery("persist", "true")); err != nil {
		respondError(c, errors.Wrapf(errBadRequest, "persist: %v", err))
		return
	}

	result, err := h.svc.GetPage(c.Request.Context(), category, address, q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// getRange serves stored records, crawling the category first when none match.
func (h *handler) getRange(c *gin.Context) {
	category, address, err := pathParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	q := crawler.RangeQuery{}
	if q.FromBlock, err = optionalBlock(c, "fromBlock"); err != nil {
		respondError(c, err)
		return
	}
	if q.ToBlock, err = optionalBlock(c, "toBlock"); err != nil {
		respondError(c, err)
		return
	}
	if q.Page, q.PageSize, err = paging(c); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.svc.GetRange(c.Request.Context(), category, address, q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func pathParams(c *gin.Context) (entities.Category, string, error) {
	address := strings.TrimSpace(c.Param("address"))
	if !common.IsHexAddress(address) {
		return "", "", errors.Wrapf(crawler.ErrInvalidAddress, "%q", address)
	}

	category, err := entities.ParseCategory(c.Param("category"))
	if err != nil {
		return "", "", err
	}

	return category, address, nil
}

func optionalBlock(c *gin.Context, key string) (*uint64, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}

	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(errBadRequest, "%s: %q is not a block number", key, raw)
	}

	return &n, nil
}

func paging(c *gin.Context) (int, int, error) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if err != nil {
		return 0, 0, errors.Wrapf(errBadRequest, "page: %v", err)
	}

	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(database.DefaultPageSize)))
	if err != nil {
		return 0, 0, errors.Wrapf(errBadRequest, "pageSize: %v", err)
	}

	return page, pageSize, nil
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, crawler.ErrInvalidAddress),
		errors.Is(err, entities.ErrUnknownCategory):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrStore):
		return http.StatusInternalServerError
	case errors.Is(err, etherscan.ErrRemoteTransport),
		errors.Is(err, etherscan.ErrRateLimited),
		errors.Is(err, etherscan.ErrRemoteLogical),
		errors.Is(err, etherscan.ErrUnexpectedResult),
		errors.Is(err, etherscan.ErrRetriesExhausted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
