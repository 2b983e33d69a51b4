package pagination

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/persistorai/auditlog/internal/metrics"
	"github.com/persistorai/auditlog/internal/query"
)

// Record is a row that can mint a resume cursor.
type Record interface {
	CursorID() string
	CursorValue(field string) (any, bool)
}

// Source is a tenant-scoped collection that can be counted and searched.
type Source[T Record] interface {
	Count(ctx context.Context, filter query.Expr) (int64, error)
	Find(ctx context.Context, filter query.Expr, opts query.FindOptions) ([]T, error)
}

// Meta describes the page returned. Total, Pages and Page are nil in cursor
// mode because no count query runs.
type Meta struct {
	Total       *int64  `json:"total"`
	Pages       *int64  `json:"pages"`
	Page        *int    `json:"page"`
	Limit       int     `json:"limit"`
	HasPrevPage bool    `json:"hasPrevPage"`
	HasNextPage bool    `json:"hasNextPage"`
	PrevPage    *int    `json:"prevPage"`
	NextPage    *int    `json:"nextPage"`
	NextCursor  *string `json:"nextCursor"`
	SortBy      string  `json:"sortBy"`
	Order       Order   `json:"order"`
}

// Page is one page of results.
type Page[T Record] struct {
	Data []T
	Meta Meta
}

// Run executes plan over src within scope.
func Run[T Record](ctx context.Context, src Source[T], scope query.And, plan *Plan) (*Page[T], error) {
	metrics.PaginationQueries.WithLabelValues(string(plan.Mode)).Inc()

	if plan.Mode == ModeCursor {
		return runCursor(ctx, src, scope, plan)
	}

	return runOffset(ctx, src, scope, plan)
}

func runOffset[T Record](ctx context.Context, src Source[T], scope query.And, plan *Plan) (*Page[T], error) {
	var (
		total int64
		rows  []T
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := src.Count(gctx, scope)
		if err != nil {
			return fmt.Errorf("counting: %w", err)
		}
		total = n

		return nil
	})

	g.Go(func() error {
		r, err := src.Find(gctx, scope, plan.FindOptions())
		if err != nil {
			return fmt.Errorf("finding: %w", err)
		}
		rows = r

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	limit := int64(plan.Limit)
	pages := (total + limit - 1) / limit
	page := plan.Page

	meta := Meta{
		Total:       &total,
		Pages:       &pages,
		Page:        &page,
		Limit:       plan.Limit,
		HasPrevPage: page > 1,
		HasNextPage: int64(page) < pages,
		SortBy:      plan.SortBy,
		Order:       orderOf(plan),
	}

	if meta.HasPrevPage {
		prev := page - 1
		meta.PrevPage = &prev
	}

	if meta.HasNextPage {
		next := page + 1
		meta.NextPage = &next

		c, err := nextCursor(rows, plan.SortBy)
		if err != nil {
			return nil, err
		}
		meta.NextCursor = c
	}

	return &Page[T]{Data: nonNil(rows), Meta: meta}, nil
}

func runCursor[T Record](ctx context.Context, src Source[T], scope query.And, plan *Plan) (*Page[T], error) {
	rows, err := src.Find(ctx, plan.Scope(scope), plan.FindOptions())
	if err != nil {
		return nil, fmt.Errorf("finding: %w", err)
	}

	meta := Meta{
		Limit:       plan.Limit,
		HasNextPage: len(rows) == plan.Limit,
		SortBy:      plan.SortBy,
		Order:       orderOf(plan),
	}

	if meta.HasNextPage {
		c, err := nextCursor(rows, plan.SortBy)
		if err != nil {
			return nil, err
		}
		meta.NextCursor = c
	}

	return &Page[T]{Data: nonNil(rows), Meta: meta}, nil
}

// nextCursor mints a cursor from the last row, or nil when rows is empty.
func nextCursor[T Record](rows []T, sortBy string) (*string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	last := rows[len(rows)-1]

	v, ok := last.CursorValue(sortBy)
	if !ok {
		return nil, fmt.Errorf("minting cursor: row has no value for %s", sortBy)
	}

	token, err := Encode(Cursor{Field: sortBy, Value: v, ID: last.CursorID()})
	if err != nil {
		return nil, err
	}

	return &token, nil
}

func orderOf(plan *Plan) Order {
	if plan.Desc {
		return Desc
	}

	return Asc
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}

	return rows
}
