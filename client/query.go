package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Query builds one table request in the backend's REST dialect: equality /
// greater-than / pattern filters, ordering, limit, optional single-row mode.
// A Query is single-use.
type Query struct {
	c       *Client
	table   string
	sel     string
	filters []filter
	orderBy string
	limit   int
	single  bool
}

type filter struct {
	column string
	op     string
	value  string
}

func (q *Query) Select(columns string) *Query {
	q.sel = columns
	return q
}

func (q *Query) Eq(column string, value any) *Query {
	q.filters = append(q.filters, filter{column, "eq", fmt.Sprint(value)})
	return q
}

func (q *Query) Gt(column string, value any) *Query {
	q.filters = append(q.filters, filter{column, "gt", fmt.Sprint(value)})
	return q
}

func (q *Query) Gte(column string, value any) *Query {
	q.filters = append(q.filters, filter{column, "gte", fmt.Sprint(value)})
	return q
}

func (q *Query) Lte(column string, value any) *Query {
	q.filters = append(q.filters, filter{column, "lte", fmt.Sprint(value)})
	return q
}

// Ilike matches case-insensitively; value uses * as the wildcard.
func (q *Query) Ilike(column, value string) *Query {
	q.filters = append(q.filters, filter{column, "ilike", value})
	return q
}

func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.orderBy = column + "." + dir
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Single makes Get expect exactly one row; zero rows is errs.ErrNotFound.
func (q *Query) Single() *Query {
	q.single = true
	return q
}

func (q *Query) values() url.Values {
	v := url.Values{}
	v.Set("select", q.sel)
	for _, f := range q.filters {
		v.Add(f.column, f.op+"."+f.value)
	}
	if q.orderBy != "" {
		v.Set("order", q.orderBy)
	}
	if q.limit > 0 {
		v.Set("limit", fmt.Sprint(q.limit))
	}
	return v
}

func (q *Query) path() string {
	return "/rest/v1/" + q.table
}

// Get runs the select and decodes rows into dest (a *[]Row, or *Row with
// Single).
func (q *Query) Get(ctx context.Context, dest any) error {
	headers := map[string]string{}
	if q.single {
		headers["Accept"] = "application/vnd.pgrst.object+json"
	}
	return q.c.doJSON(ctx, http.MethodGet, q.path(), q.values(), headers, nil, dest)
}

// Insert writes rows. When dest is non-nil the created representation is
// requested back and decoded into it.
func (q *Query) Insert(ctx context.Context, rows, dest any) error {
	headers := map[string]string{"Prefer": "return=minimal"}
	if dest != nil {
		headers["Prefer"] = "return=representation"
		if q.single {
			headers["Accept"] = "application/vnd.pgrst.object+json"
		}
	}
	return q.c.doJSON(ctx, http.MethodPost, q.path(), q.values(), headers, rows, dest)
}

// Update patches every row matched by the filters.
func (q *Query) Update(ctx context.Context, patch any) error {
	return q.c.doJSON(ctx, http.MethodPatch, q.path(), q.values(), nil, patch, nil)
}

// Delete removes every row matched by the filters.
func (q *Query) Delete(ctx context.Context) error {
	return q.c.doJSON(ctx, http.MethodDelete, q.path(), q.values(), nil, nil, nil)
}
