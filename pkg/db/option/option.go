// Package option holds composable gorm query modifiers.
package option

import (
	"strconv"
	"strings"

	"github.com/smallbiznis/podbudget/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryFunc func(*gorm.DB) *gorm.DB

func (f queryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

// ApplyPagination limits the result set and skips past the cursor when one is set.
// Cursors are ordered on id, so callers must order by id ascending.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		size := PageSize(page.PageSize)
		if page.PageToken != "" {
			if cursor, err := pagination.DecodeCursor(page.PageToken); err == nil {
				if id, err := strconv.ParseInt(cursor.ID, 10, 64); err == nil {
					db = db.Where("id > ?", id)
				}
			}
		}
		return db.Limit(size + 1)
	})
}

// PageSize clamps a requested page size to the supported range.
func PageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

type Operator string

const (
	EQ  Operator = "="
	GTE Operator = ">="
	LTE Operator = "<="
	IN  Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func ApplyOperator(cond Condition) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		switch cond.Operator {
		case EQ, GTE, LTE:
			return db.Where(cond.Field+" "+string(cond.Operator)+" ?", cond.Value)
		case IN:
			return db.Where(cond.Field+" IN ?", cond.Value)
		default:
			return db
		}
	})
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

func WithQuerySortBy(sortBy, orderBy string, allow map[string]bool) QuerySortBy {
	return QuerySortBy{SortBy: sortBy, OrderBy: orderBy, Allow: allow}
}

// WithSortBy orders by an allow-listed column with id as the tie breaker.
func WithSortBy(q QuerySortBy) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		column := strings.ToLower(strings.TrimSpace(q.SortBy))
		if column == "" || !q.Allow[column] {
			return db.Order("id asc")
		}
		direction := "asc"
		if strings.EqualFold(q.OrderBy, "desc") {
			direction = "desc"
		}
		return db.Order(column + " " + direction).Order("id asc")
	})
}
