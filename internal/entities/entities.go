package entities

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidDecimals rejects token transfers reporting a decimal count outside
// what an ERC-20 token can declare.
var ErrInvalidDecimals = errors.New("invalid token decimals")

// Record is implemented by every persisted category entity.
type Record interface {
	GetKey() string
	GetBlockNumber() uint64
	GetFrom() string
	GetTo() string
}

type Transaction struct {
	Hash         string          `gorm:"primaryKey;type:varchar(66)" json:"hash"`
	BlockNumber  uint64          `gorm:"index" json:"blockNumber"`
	Timestamp    time.Time       `gorm:"index" json:"timestamp"`
	From         string          `gorm:"column:from_address;index;type:varchar(42)" json:"from"`
	To           string          `gorm:"column:to_address;index;type:varchar(42)" json:"to"`
	ValueEth     decimal.Decimal `gorm:"type:numeric" json:"valueEth"`
	GasUsed      decimal.Decimal `gorm:"type:numeric" json:"gasUsed"`
	GasPriceGwei decimal.Decimal `gorm:"type:numeric" json:"gasPriceGwei"`
	IsError      bool            `json:"isError"`
}

type InternalTransaction struct {
	ID          string          `gorm:"primaryKey;type:varchar(160)" json:"id"` // hash:traceId
	Hash        string          `gorm:"index;type:varchar(66)" json:"hash"`
	BlockNumber uint64          `gorm:"index" json:"blockNumber"`
	Timestamp   time.Time       `gorm:"index" json:"timestamp"`
	From        string          `gorm:"column:from_address;index;type:varchar(42)" json:"from"`
	To          string          `gorm:"column:to_address;index;type:varchar(42)" json:"to"`
	ValueEth    decimal.Decimal `gorm:"type:numeric" json:"valueEth"`
}

type TokenTransfer struct {
	ID              string          `gorm:"primaryKey;type:varchar(100)" json:"id"` // txHash:logIndex
	TxHash          string          `gorm:"index;type:varchar(66)" json:"txHash"`
	LogIndex        string          `gorm:"type:varchar(32)" json:"logIndex"`
	BlockNumber     uint64          `gorm:"index" json:"blockNumber"`
	Timestamp       time.Time       `gorm:"index" json:"timestamp"`
	ContractAddress string          `gorm:"index;index:idx_token_transfers_contract_symbol,priority:1;type:varchar(42)" json:"contractAddress"`
	TokenSymbol     string          `gorm:"index:idx_token_transfers_contract_symbol,priority:2" json:"tokenSymbol"`
	TokenDecimals   int             `json:"tokenDecimals"`
	From            string          `gorm:"column:from_address;index;type:varchar(42)" json:"from"`
	To              string          `gorm:"column:to_address;index;type:varchar(42)" json:"to"`
	Amount          decimal.Decimal `gorm:"type:numeric" json:"amount"`
}

func (t Transaction) GetKey() string         { return t.Hash }
func (t Transaction) GetBlockNumber() uint64 { return t.BlockNumber }
func (t Transaction) GetFrom() string        { return t.From }
func (t Transaction) GetTo() string          { return t.To }

func (t InternalTransaction) GetKey() string         { return t.ID }
func (t InternalTransaction) GetBlockNumber() uint64 { return t.BlockNumber }
func (t InternalTransaction) GetFrom() string        { return t.From }
func (t InternalTransaction) GetTo() string          { return t.To }

func (t TokenTransfer) GetKey() string         { return t.ID }
func (t TokenTransfer) GetBlockNumber() uint64 { return t.BlockNumber }
func (t TokenTransfer) GetFrom() string        { return t.From }
func (t TokenTransfer) GetTo() string          { return t.To }

func InternalTransactionID(hash, traceID string) string {
	return hash + ":" + traceID
}

// TokenTransferID falls back to log index "0" when the explorer omits it.
func TokenTransferID(txHash, logIndex string) string {
	if logIndex == "" {
		logIndex = "0"
	}

	return txHash + ":" + logIndex
}
