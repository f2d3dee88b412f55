package models

// MatchType selects how a filter value list is compared to a column.
type MatchType string

const (
	MatchEquals      MatchType = "EQUALS"
	MatchIn          MatchType = "IN"
	MatchGreaterThan MatchType = "GREATERTHAN"
	MatchLessThan    MatchType = "LESSTHAN"
)

// Range-pair pseudo-columns understood by the archived query engine. Their
// values are epoch milliseconds; MatchType is ignored for them.
const (
	ColumnPublishDateFrom = "publishDateFrom"
	ColumnPublishDateTo   = "publishDateTo"
	ColumnActiveFrom      = "activeFrom"
	ColumnActiveTo        = "activeTo"
)

// filterColumns is the full filter vocabulary: pseudo-columns plus every
// queryable card column. Both query executors accept exactly this set.
var filterColumns = map[string]struct{}{
	ColumnPublishDateFrom: {},
	ColumnPublishDateTo:   {},
	ColumnActiveFrom:      {},
	ColumnActiveTo:        {},
	"publisher":           {},
	"publisherType":       {},
	"process":             {},
	"processInstanceId":   {},
	"processVersion":      {},
	"state":               {},
	"severity":            {},
	"title":               {},
	"parentCardId":        {},
	"publishDate":         {},
	"startDate":           {},
}

// ValidFilterColumn reports whether the column name belongs to the archived
// query filter vocabulary.
func ValidFilterColumn(name string) bool {
	_, ok := filterColumns[name]
	return ok
}

// Filter is one declarative column filter. All filters of a query are ANDed.
type Filter struct {
	ColumnName string    `json:"columnName"`
	MatchType  MatchType `json:"matchType,omitempty"`
	Values     []string  `json:"filter"`
}

// CardsFilter is the full archived query request: filters plus paging.
// Page is zero-based; Size must be positive.
type CardsFilter struct {
	Filters []Filter `json:"filters,omitempty"`
	Page    int      `json:"page"`
	Size    int      `json:"size"`
}

// Page is one page of query results with pagination totals.
// TotalPages is never below 1, even for an empty result set.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
}

// NewPage computes pagination totals for one page of content.
func NewPage[T any](content []T, total int64, page, size int) Page[T] {
	totalPages := 1
	if size > 0 && total > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	if content == nil {
		content = []T{}
	}
	return Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Page:          page,
		Size:          size,
	}
}
