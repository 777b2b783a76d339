// Package query holds the report filter specification, its tolerant parser
// and the paginator used to slice filtered results.
package query

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
)

// DateLayout is the accepted calendar date format
const DateLayout = "2006-01-02"

// DefaultTimeZone is the zone calendar-date bounds are interpreted in
const DefaultTimeZone = "America/Sao_Paulo"

// SortKey selects the result order
type SortKey string

// Supported sort keys
const (
	SortNewest    SortKey = "-created_at"
	SortOldest    SortKey = "created_at"
	SortTitleAsc  SortKey = "title"
	SortTitleDesc SortKey = "-title"
)

// SortKeys lists every accepted key
var SortKeys = []SortKey{SortNewest, SortOldest, SortTitleAsc, SortTitleDesc}

// Valid reports whether k is a supported key
func (k SortKey) Valid() bool {
	for _, s := range SortKeys {
		if s == k {
			return true
		}
	}
	return false
}

// Column returns the ordered column
func (k SortKey) Column() string {
	return strings.TrimPrefix(string(k), "-")
}

// Descending reports whether the order is descending
func (k SortKey) Descending() bool {
	return strings.HasPrefix(string(k), "-")
}

// Date is a calendar day without a time of day
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, false
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, true
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}

// StartIn returns the first instant of the day in loc
func (d Date) StartIn(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// EndIn returns the last representable instant of the day in loc
func (d Date) EndIn(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 999999999, loc)
}

// Filter is the validated set of optional constraints for listing reports.
// Zero values mean "no constraint".
type Filter struct {
	Text      string
	Category  models.Category
	StartDate *Date
	EndDate   *Date
	Sort      SortKey
	Page      int
	// Location interprets StartDate and EndDate; nil means DefaultTimeZone
	Location *time.Location
}

// SortKeyOrDefault returns the effective sort key
func (f Filter) SortKeyOrDefault() SortKey {
	if f.Sort.Valid() {
		return f.Sort
	}
	return SortNewest
}

// PageOrDefault returns the requested page, never below 1
func (f Filter) PageOrDefault() int {
	if f.Page < 1 {
		return 1
	}
	return f.Page
}

// Bounds returns the inclusive UTC instants covered by the date range.
// A nil pointer means the side is open.
func (f Filter) Bounds() (from, to *time.Time) {
	loc := f.Location
	if loc == nil {
		loc = DefaultLocation()
	}
	if f.StartDate != nil {
		t := f.StartDate.StartIn(loc).UTC()
		from = &t
	}
	if f.EndDate != nil {
		t := f.EndDate.EndIn(loc).UTC()
		to = &t
	}
	return from, to
}

// Values encodes the filter back into query parameters, omitting defaults
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Text != "" {
		v.Set("q", f.Text)
	}
	if f.Category != "" {
		v.Set("category", string(f.Category))
	}
	if f.StartDate != nil {
		v.Set("start_date", f.StartDate.String())
	}
	if f.EndDate != nil {
		v.Set("end_date", f.EndDate.String())
	}
	if k := f.SortKeyOrDefault(); k != SortNewest {
		v.Set("order_by", string(k))
	}
	if p := f.PageOrDefault(); p != 1 {
		v.Set("page", strconv.Itoa(p))
	}
	return v
}

// ParseFilter builds a Filter from request parameters. Parsing is tolerant:
// a malformed field is dropped and the remaining constraints still apply.
func ParseFilter(values url.Values, loc *time.Location) Filter {
	f := Filter{Location: loc, Sort: SortNewest, Page: 1}

	f.Text = strings.TrimSpace(values.Get("q"))

	if c := models.Category(strings.TrimSpace(values.Get("category"))); c.Valid() {
		f.Category = c
	}

	if d, ok := ParseDate(values.Get("start_date")); ok {
		f.StartDate = &d
	}
	if d, ok := ParseDate(values.Get("end_date")); ok {
		f.EndDate = &d
	}

	if k := SortKey(strings.TrimSpace(values.Get("order_by"))); k.Valid() {
		f.Sort = k
	}

	f.Page = ParsePage(values.Get("page"))
	return f
}

// ParsePage converts a raw page parameter; non-numeric or non-positive input yields 1
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// DefaultLocation loads DefaultTimeZone, falling back to UTC when tzdata is unavailable
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
