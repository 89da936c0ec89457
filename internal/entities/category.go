package entities

import (
	"strings"

	"github.com/pkg/errors"
)

// Category names one independently paginated and cursor-tracked record feed.
type Category string

const (
	Transactions         Category = "transactions"
	InternalTransactions Category = "internal-transactions"
	TokenTransfers       Category = "token-transfers"
)

// AllCategories is the fixed crawl order.
var AllCategories = []Category{Transactions, InternalTransactions, TokenTransfers}

var ErrUnknownCategory = errors.New("unknown category")

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllCategories {
		if c == known {
			return c, nil
		}
	}

	return "", errors.Wrapf(ErrUnknownCategory, "%q", s)
}

func (c Category) String() string {
	return string(c)
}

// CategorySet selects the categories a crawl should cover.
type CategorySet map[Category]struct{}

func NewCategorySet(categories ...Category) CategorySet {
	set := make(CategorySet, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}

	return set
}

func AllCategorySet() CategorySet {
	return NewCategorySet(AllCategories...)
}

func (s CategorySet) Has(c Category) bool {
	_, ok := s[c]
	return ok
}

// Ordered returns the members in crawl order.
func (s CategorySet) Ordered() []Category {
	out := make([]Category, 0, len(s))
	for _, c := range AllCategories {
		if s.Has(c) {
			out = append(out, c)
		}
	}

	return out
}
