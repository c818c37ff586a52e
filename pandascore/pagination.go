package pandascore

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
)

// PaginationInfo describes the page a listing response belongs to
type PaginationInfo struct {
	Page    int
	PerPage int
	Total   int
	Links   NavigationLinks
}

// NavigationLinks are the RFC 5988 links of a listing response
type NavigationLinks struct {
	First *url.URL
	Prev  *url.URL
	Next  *url.URL
	Last  *url.URL
}

// TotalPages returns the number of pages at PerPage items each
func (p PaginationInfo) TotalPages() int {
	if p.PerPage <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// HasNext reports whether a later page exists
func (p PaginationInfo) HasNext() bool {
	return p.Page < p.TotalPages()
}

// HasPrev reports whether an earlier page exists
func (p PaginationInfo) HasPrev() bool {
	return p.Page > 1
}

// ParsePagination reads X-Page, X-Per-Page, X-Total and Link. It returns
// false when any of the counters is missing or malformed.
func ParsePagination(h http.Header) (PaginationInfo, bool) {
	page, err := strconv.Atoi(h.Get("X-Page"))
	if err != nil {
		return PaginationInfo{}, false
	}
	perPage, err := strconv.Atoi(h.Get("X-Per-Page"))
	if err != nil {
		return PaginationInfo{}, false
	}
	total, err := strconv.Atoi(h.Get("X-Total"))
	if err != nil {
		return PaginationInfo{}, false
	}

	return PaginationInfo{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Links:   ParseLinks(h.Get("Link")),
	}, true
}

var linkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="(\w+)"`)

// ParseLinks parses a Link header such as
// `<https://api.pandascore.co/...&page=2>; rel="next"`.
func ParseLinks(header string) NavigationLinks {
	var links NavigationLinks
	for _, m := range linkPattern.FindAllStringSubmatch(header, -1) {
		u, err := url.Parse(m[1])
		if err != nil {
			continue
		}
		switch m[2] {
		case "first":
			links.First = u
		case "prev":
			links.Prev = u
		case "next":
			links.Next = u
		case "last":
			links.Last = u
		}
	}
	return links
}
