package supabase

import (
	"net/url"
	"strconv"
)

// Query builds PostgREST query strings: column filters, select, order, limit and offset.
type Query struct {
	values url.Values
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{values: url.Values{}}
}

// Select restricts the returned columns.
func (q *Query) Select(columns string) *Query {
	q.values.Set("select", columns)

	return q
}

// Eq adds column = value.
func (q *Query) Eq(column, value string) *Query {
	return q.filter(column, "eq", value)
}

// Gte adds column >= value.
func (q *Query) Gte(column, value string) *Query {
	return q.filter(column, "gte", value)
}

// Lt adds column < value.
func (q *Query) Lt(column, value string) *Query {
	return q.filter(column, "lt", value)
}

// Order sets the sort, e.g. "processed_at.desc,id.desc".
func (q *Query) Order(order string) *Query {
	q.values.Set("order", order)

	return q
}

// Limit caps the number of rows returned.
func (q *Query) Limit(n int) *Query {
	q.values.Set("limit", strconv.Itoa(n))

	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	q.values.Set("offset", strconv.Itoa(n))

	return q
}

// Encode returns the URL-encoded query string.
func (q *Query) Encode() string {
	return q.values.Encode()
}

func (q *Query) filter(column, op, value string) *Query {
	q.values.Add(column, op+"."+value)

	return q
}
