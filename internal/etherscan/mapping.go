package etherscan

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/flare-foundation/evm-address-indexer/internal/entities"
	"github.com/flare-foundation/evm-address-indexer/internal/units"
)

var ErrMalformedRecord = errors.New("malformed explorer record")

func MapTransaction(d TxDTO) (entities.Transaction, error) {
	var (
		tx  entities.Transaction
		err error
	)

	tx.Hash = normalizeHash(d.Hash)
	if tx.Hash == "" {
		return tx, errors.Wrap(ErrMalformedRecord, "missing hash")
	}
	if tx.BlockNumber, err = parseBlockNumber(d.BlockNumber); err != nil {
		return tx, err
	}
	if tx.Timestamp, err = parseTimestamp(d.TimeStamp); err != nil {
		return tx, err
	}
	if tx.ValueEth, err = units.WeiToEther(d.Value); err != nil {
		return tx, errors.Wrap(err, "value")
	}
	if tx.GasUsed, err = units.ToDecimalFixed(d.GasUsed, 0); err != nil {
		return tx, errors.Wrap(err, "gasUsed")
	}
	if tx.GasPriceGwei, err = units.WeiToGwei(d.GasPrice); err != nil {
		return tx, errors.Wrap(err, "gasPrice")
	}

	tx.From = entities.NormalizeAddress(d.From)
	tx.To = entities.NormalizeAddress(d.To)
	tx.IsError = strings.TrimSpace(d.IsError) == "1"

	return tx, nil
}

func MapInternalTransaction(d InternalDTO) (entities.InternalTransaction, error) {
	var (
		itx entities.InternalTransaction
		err error
	)

	itx.Hash = normalizeHash(d.Hash)
	if itx.Hash == "" {
		return itx, errors.Wrap(ErrMalformedRecord, "missing hash")
	}
	itx.ID = entities.InternalTransactionID(itx.Hash, strings.TrimSpace(d.TraceID))

	if itx.BlockNumber, err = parseBlockNumber(d.BlockNumber); err != nil {
		return itx, err
	}
	if itx.Timestamp, err = parseTimestamp(d.TimeStamp); err != nil {
		return itx, err
	}
	if itx.ValueEth, err = units.WeiToEther(d.Value); err != nil {
		return itx, errors.Wrap(err, "value")
	}

	itx.From = entities.NormalizeAddress(d.From)
	itx.To = entities.NormalizeAddress(d.To)

	return itx, nil
}

func MapTokenTransfer(d TokenDTO) (entities.TokenTransfer, error) {
	var (
		tt  entities.TokenTransfer
		err error
	)

	tt.TxHash = normalizeHash(d.Hash)
	if tt.TxHash == "" {
		return tt, errors.Wrap(ErrMalformedRecord, "missing hash")
	}
	tt.LogIndex = strings.TrimSpace(d.LogIndex)
	if tt.LogIndex == "" {
		tt.LogIndex = "0"
	}
	tt.ID = entities.TokenTransferID(tt.TxHash, tt.LogIndex)

	if tt.BlockNumber, err = parseBlockNumber(d.BlockNumber); err != nil {
		return tt, err
	}
	if tt.Timestamp, err = parseTimestamp(d.TimeStamp); err != nil {
		return tt, err
	}
	if tt.TokenDecimals, err = parseTokenDecimals(d.TokenDecimal); err != nil {
		return tt, err
	}
	if tt.Amount, err = units.ScaleByTokenDecimals(d.Value, tt.TokenDecimals); err != nil {
		return tt, errors.Wrap(err, "value")
	}

	tt.ContractAddress = entities.NormalizeAddress(d.ContractAddress)
	tt.TokenSymbol = strings.TrimSpace(d.TokenSymbol)
	tt.From = entities.NormalizeAddress(d.From)
	tt.To = entities.NormalizeAddress(d.To)

	return tt, nil
}

func normalizeHash(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseBlockNumber(s string) (uint64, error) {
	v, err := units.ParseInteger(s)
	if err != nil || !v.IsUint64() {
		return 0, errors.Wrapf(ErrMalformedRecord, "block number %q", s)
	}

	return v.Uint64(), nil
}

func parseTimestamp(s string) (time.Time, error) {
	sec, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || sec < 0 {
		return time.Time{}, errors.Wrapf(ErrMalformedRecord, "timestamp %q", s)
	}

	return time.Unix(sec, 0).UTC(), nil
}

// parseTokenDecimals treats a blank value as 0 and rejects counts outside
// [0, units.MaxTokenDecimals].
func parseTokenDecimals(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedRecord, "token decimals %q", s)
	}
	if d < 0 || d > units.MaxTokenDecimals {
		return 0, errors.Wrapf(entities.ErrInvalidDecimals, "%d", d)
	}

	return d, nil
}
