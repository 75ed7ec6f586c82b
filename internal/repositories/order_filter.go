package repositories

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
)

const (
	DefaultOrderPageSize = 10
	MaxOrderPageSize     = 100
)

// Normalized fills defaults and clamps paging so every backend applies identical bounds.
func (f OrderListFilter) Normalized() OrderListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit < 1:
		f.Limit = DefaultOrderPageSize
	case f.Limit > MaxOrderPageSize:
		f.Limit = MaxOrderPageSize
	}
	switch f.SortBy {
	case OrderSortCreatedAt, OrderSortTotalAmount, OrderSortOrderNumber:
	default:
		f.SortBy = OrderSortCreatedAt
	}
	if f.SortOrder != domain.SortAsc {
		f.SortOrder = domain.SortDesc
	}
	return f
}

// Offset returns the number of rows skipped before the requested page.
func (f OrderListFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Matches applies every predicate except Search, which backends evaluate where they can.
func (f OrderListFilter) Matches(order domain.Order) bool {
	if f.CustomerID != "" && order.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != nil && order.Status != *f.Status {
		return false
	}
	if from := f.CreatedAt.From; from != nil && order.CreatedAt.Before(*from) {
		return false
	}
	if to := f.CreatedAt.To; to != nil && order.CreatedAt.After(*to) {
		return false
	}
	return true
}

// MatchesSearch reports whether order number or email contains Search, ignoring case.
func (f OrderListFilter) MatchesSearch(order domain.Order) bool {
	if strings.TrimSpace(f.Search) == "" {
		return true
	}
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(f.Search))
	return strings.Contains(fold.String(order.OrderNumber), needle) ||
		strings.Contains(fold.String(order.Email), needle)
}

// Compare orders a and b by SortBy and SortOrder, breaking ties on ID so paging is stable.
func (f OrderListFilter) Compare(a, b domain.Order) int {
	var c int
	switch f.SortBy {
	case OrderSortTotalAmount:
		c = cmp.Compare(a.Totals.Total, b.Totals.Total)
	case OrderSortOrderNumber:
		c = cmp.Compare(a.OrderNumber, b.OrderNumber)
	default:
		c = a.CreatedAt.Compare(b.CreatedAt)
	}
	if c == 0 {
		c = cmp.Compare(a.ID, b.ID)
	}
	if f.SortOrder == domain.SortDesc {
		return -c
	}
	return c
}

// PageOf sorts matched orders and cuts the requested page.
func (f OrderListFilter) PageOf(matched []domain.Order) domain.OffsetPage[domain.Order] {
	slices.SortFunc(matched, f.Compare)
	total := int64(len(matched))
	start := min(f.Offset(), len(matched))
	end := min(start+f.Limit, len(matched))
	return domain.OffsetPage[domain.Order]{
		Items: append([]domain.Order(nil), matched[start:end]...),
		Info:  domain.NewPageInfo(f.Page, f.Limit, total),
	}
}
