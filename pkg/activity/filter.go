package activity

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/httputil"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Filter selects activity entries. OwnerID is set by the caller's scope,
// never taken from the request for non-admins.
type Filter struct {
	OwnerID    string
	Search     string
	ActionType ActionType
	TimeRange  TimeRange
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}

// ParseFilter reads and validates the activity query parameters. The
// owner parameter is returned separately so the handler can scope it.
func ParseFilter(values url.Values) (Filter, string, error) {
	f := Filter{
		Search:     strings.TrimSpace(values.Get("search")),
		ActionType: ActionType(strings.TrimSpace(values.Get("actionType"))),
		TimeRange:  TimeRange(strings.TrimSpace(values.Get("timeRange"))),
		Limit:      DefaultLimit,
	}

	if _, ok := f.ActionType.LabelFragment(); !ok {
		return Filter{}, "", httputil.InvalidInput(fmt.Sprintf("Invalid actionType: %s", f.ActionType))
	}
	if !f.TimeRange.valid() {
		return Filter{}, "", httputil.InvalidInput(fmt.Sprintf("Invalid timeRange: %s", f.TimeRange))
	}

	var err error
	if f.DateFrom, err = parseDate(values.Get("dateFrom"), false); err != nil {
		return Filter{}, "", httputil.InvalidInput("Invalid dateFrom")
	}
	if f.DateTo, err = parseDate(values.Get("dateTo"), true); err != nil {
		return Filter{}, "", httputil.InvalidInput("Invalid dateTo")
	}

	if f.Limit, err = parseNonNegative(values.Get("limit"), DefaultLimit); err != nil {
		return Filter{}, "", httputil.InvalidInput("Invalid limit")
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset, err = parseNonNegative(values.Get("offset"), 0); err != nil {
		return Filter{}, "", httputil.InvalidInput("Invalid offset")
	}

	return f, strings.TrimSpace(values.Get("userId")), nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain date used
// as an upper bound covers that whole day.
func parseDate(s string, upper bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

func parseNonNegative(s string, defaultVal int) (int, error) {
	if s == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return n, nil
}

// ResolveTimeRange turns the filter's dates or named range into a
// half-open window [from, to). Explicit dates take precedence over the
// named range. Day boundaries are computed in now's location.
func ResolveTimeRange(f Filter, now time.Time) (from, to *time.Time) {
	if f.DateFrom != nil || f.DateTo != nil {
		return f.DateFrom, f.DateTo
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch f.TimeRange {
	case TimeRangeToday:
		return &midnight, nil
	case TimeRangeYesterday:
		start := midnight.AddDate(0, 0, -1)
		return &start, &midnight
	case TimeRangeWeek:
		start := now.AddDate(0, 0, -7)
		return &start, nil
	case TimeRangeMonth:
		start := now.AddDate(0, -1, 0)
		return &start, nil
	}
	return nil, nil
}
