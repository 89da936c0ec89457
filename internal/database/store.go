package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flare-foundation/evm-address-indexer/internal/entities"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 1000

	transactionBatchSize = 1000
)

// Store persists the records of one category.
type Store[R entities.Record] interface {
	// Upsert inserts records or overwrites the rows sharing their identity
	// key. The batch is applied atomically.
	Upsert(ctx context.Context, records []R) error
	// MaxBlock is the highest block of a record touching address.
	MaxBlock(ctx context.Context, address string) (uint64, bool, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	// Page returns records ordered by descending block number.
	Page(ctx context.Context, filter Filter, page, pageSize int) ([]R, error)
}

// Filter selects the records sent or received by Address, optionally within
// an inclusive block range.
type Filter struct {
	Address   string
	FromBlock *uint64
	ToBlock   *uint64
}

// ClampPaging keeps page at least 1 and pageSize within [1, MaxPageSize].
func ClampPaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}

	switch {
	case pageSize < 1:
		pageSize = 1
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}

	return page, pageSize
}

type Table[R entities.Record] struct {
	g *gorm.DB
}

func NewTable[R entities.Record](db *DB) *Table[R] {
	return &Table[R]{g: db.g}
}

func (t *Table[R]) Upsert(ctx context.Context, records []R) error {
	records = entities.Dedupe(records)
	if len(records) == 0 {
		return nil
	}

	err := t.g.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).
			CreateInBatches(records, transactionBatchSize).
			Error
	})
	if err != nil {
		return errors.Wrapf(ErrStore, "upserting %d records: %v", len(records), err)
	}

	return nil
}

func (t *Table[R]) MaxBlock(ctx context.Context, address string) (uint64, bool, error) {
	address = entities.NormalizeAddress(address)

	var highest sql.NullInt64
	err := t.g.WithContext(ctx).
		Model(new(R)).
		Select("MAX(block_number)").
		Where("from_address = ? OR to_address = ?", address, address).
		Row().
		Scan(&highest)
	if err != nil {
		return 0, false, errors.Wrapf(ErrStore, "max block: %v", err)
	}

	if !highest.Valid {
		return 0, false, nil
	}

	return uint64(highest.Int64), true, nil
}

func (t *Table[R]) Count(ctx context.Context, filter Filter) (int64, error) {
	var total int64
	if err := t.filtered(ctx, filter).Count(&total).Error; err != nil {
		return 0, errors.Wrapf(ErrStore, "count: %v", err)
	}

	return total, nil
}

// pageOrder sorts newest first and breaks ties within a block by primary key
// so that offset paging is stable.
var pageOrder = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "block_number"}, Desc: true},
	{Column: clause.Column{Name: clause.PrimaryKey}},
}}

func (t *Table[R]) Page(ctx context.Context, filter Filter, page, pageSize int) ([]R, error) {
	page, pageSize = ClampPaging(page, pageSize)

	var items []R
	if err := t.pageQuery(ctx, filter, page, pageSize).Find(&items).Error; err != nil {
		return nil, errors.Wrapf(ErrStore, "page %d: %v", page, err)
	}

	return items, nil
}

func (t *Table[R]) pageQuery(ctx context.Context, filter Filter, page, pageSize int) *gorm.DB {
	return t.filtered(ctx, filter).
		Order(pageOrder).
		Offset((page - 1) * pageSize).
		Limit(pageSize)
}

func (t *Table[R]) filtered(ctx context.Context, filter Filter) *gorm.DB {
	address := entities.NormalizeAddress(filter.Address)

	q := t.g.WithContext(ctx).
		Model(new(R)).
		Where("(from_address = ? OR to_address = ?)", address, address)

	if filter.FromBlock != nil {
		q = q.Where("block_number >= ?", *filter.FromBlock)
	}
	if filter.ToBlock != nil {
		q = q.Where("block_number <= ?", *filter.ToBlock)
	}

	return q
}
