package pandascore

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is the page size used when none is given
	DefaultPageSize = 50
	// MaxPageSize is the largest page size PandaScore accepts
	MaxPageSize = 100

	paramPageNumber = "page[number]"
	paramPageSize   = "page[size]"
)

// Params is a flat query parameter mapping. Values are scalars or slices;
// slices expand to repeated keys on the wire.
type Params map[string]any

// Clone returns a shallow copy
func (p Params) Clone() Params {
	out := make(Params, len(p)+2)
	maps.Copy(out, p)
	return out
}

// PaginationParameters selects a page. Use NewPagination to get clamped values.
type PaginationParameters struct {
	Page int
	Size int
}

// NewPagination clamps page to >= 1 and size to [1, MaxPageSize]
func NewPagination(page, size int) PaginationParameters {
	return PaginationParameters{
		Page: max(1, page),
		Size: min(MaxPageSize, max(1, size)),
	}
}

// SortDirection orders a sort field
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

// SortParameter is one sort field
type SortParameter struct {
	Field     string
	Direction SortDirection
}

// SortBy returns an ascending sort on field
func SortBy(field string) SortParameter {
	return SortParameter{Field: field, Direction: Ascending}
}

// SortByDesc returns a descending sort on field
func SortByDesc(field string) SortParameter {
	return SortParameter{Field: field, Direction: Descending}
}

// String renders the sort as "field" or "-field"
func (s SortParameter) String() string {
	if s.Direction == Descending {
		return "-" + s.Field
	}
	return s.Field
}

// RangeParameter bounds a numeric field. Either side may be open.
type RangeParameter struct {
	Min *float64
	Max *float64
}

// Between returns a closed range
func Between(lo, hi float64) RangeParameter {
	return RangeParameter{Min: &lo, Max: &hi}
}

// AtLeast returns a range with only a lower bound
func AtLeast(lo float64) RangeParameter {
	return RangeParameter{Min: &lo}
}

// AtMost returns a range with only an upper bound
func AtMost(hi float64) RangeParameter {
	return RangeParameter{Max: &hi}
}

// String renders "min,max", "min,", ",max" or ""
func (r RangeParameter) String() string {
	switch {
	case r.Min != nil && r.Max != nil:
		return formatFloat(*r.Min) + "," + formatFloat(*r.Max)
	case r.Min != nil:
		return formatFloat(*r.Min) + ","
	case r.Max != nil:
		return "," + formatFloat(*r.Max)
	default:
		return ""
	}
}

// QueryParameters collects pagination, sort, filter, search and range
// parameters for a listing call.
type QueryParameters struct {
	Pagination *PaginationParameters
	Sort       []SortParameter
	Filters    map[string]any
	Search     map[string]string
	Ranges     map[string]RangeParameter
}

// Params flattens q into a query mapping
func (q QueryParameters) Params() Params {
	params := make(Params)

	if q.Pagination != nil {
		params[paramPageNumber] = q.Pagination.Page
		params[paramPageSize] = q.Pagination.Size
	}

	if len(q.Sort) > 0 {
		fields := make([]string, len(q.Sort))
		for i, s := range q.Sort {
			fields[i] = s.String()
		}
		params["sort"] = strings.Join(fields, ",")
	}

	for key, value := range q.Filters {
		params["filter["+key+"]"] = value
	}
	for key, value := range q.Search {
		params["search["+key+"]"] = value
	}
	for key, r := range q.Ranges {
		params["range["+key+"]"] = r.String()
	}

	return params
}

// QueryBuilder builds QueryParameters fluently
type QueryBuilder struct {
	q QueryParameters
}

// NewQueryBuilder returns an empty builder
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// WithPagination sets the page and size (clamped)
func (b *QueryBuilder) WithPagination(page, size int) *QueryBuilder {
	p := NewPagination(page, size)
	b.q.Pagination = &p
	return b
}

// WithSort appends a sort field
func (b *QueryBuilder) WithSort(field string, direction SortDirection) *QueryBuilder {
	b.q.Sort = append(b.q.Sort, SortParameter{Field: field, Direction: direction})
	return b
}

// WithFilter sets filter[key]
func (b *QueryBuilder) WithFilter(key string, value any) *QueryBuilder {
	if b.q.Filters == nil {
		b.q.Filters = make(map[string]any)
	}
	b.q.Filters[key] = value
	return b
}

// WithSearch sets search[key]
func (b *QueryBuilder) WithSearch(key, value string) *QueryBuilder {
	if b.q.Search == nil {
		b.q.Search = make(map[string]string)
	}
	b.q.Search[key] = value
	return b
}

// WithRange sets range[key]
func (b *QueryBuilder) WithRange(key string, r RangeParameter) *QueryBuilder {
	if b.q.Ranges == nil {
		b.q.Ranges = make(map[string]RangeParameter)
	}
	b.q.Ranges[key] = r
	return b
}

// Build returns the collected parameters
func (b *QueryBuilder) Build() QueryParameters {
	return b.q
}

// formatValue renders a scalar parameter value for the wire and cache keys
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// expandValue returns the wire values of v; slices expand to one value per item
func expandValue(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []int:
		out := make([]string, len(val))
		for i, n := range val {
			out[i] = strconv.Itoa(n)
		}
		return out
	case []any:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = formatValue(item)
		}
		return out
	default:
		return []string{formatValue(v)}
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
