package activity

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/httputil"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestResolveTimeRange(t *testing.T) {
	now := mustTime(t, "2024-01-15T10:00:00Z")

	tests := []struct {
		name     string
		rangeVal TimeRange
		from     string
		to       string
	}{
		{"today", TimeRangeToday, "2024-01-15T00:00:00Z", ""},
		{"yesterday", TimeRangeYesterday, "2024-01-14T00:00:00Z", "2024-01-15T00:00:00Z"},
		{"week", TimeRangeWeek, "2024-01-08T10:00:00Z", ""},
		{"month", TimeRangeMonth, "2023-12-15T10:00:00Z", ""},
		{"all", TimeRangeAll, "", ""},
		{"custom without dates", TimeRangeCustom, "", ""},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := ResolveTimeRange(Filter{TimeRange: tt.rangeVal}, now)
			if tt.from == "" {
				assert.Nil(t, from)
			} else {
				require.NotNil(t, from)
				assert.True(t, mustTime(t, tt.from).Equal(*from), "from = %s", from)
			}
			if tt.to == "" {
				assert.Nil(t, to)
			} else {
				require.NotNil(t, to)
				assert.True(t, mustTime(t, tt.to).Equal(*to), "to = %s", to)
			}
		})
	}
}

func TestResolveTimeRange_UsesLocationOfNow(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2024, 1, 15, 2, 0, 0, 0, loc)

	from, to := ResolveTimeRange(Filter{TimeRange: TimeRangeYesterday}, now)
	assert.True(t, time.Date(2024, 1, 14, 0, 0, 0, 0, loc).Equal(*from))
	assert.True(t, time.Date(2024, 1, 15, 0, 0, 0, 0, loc).Equal(*to))
}

func TestResolveTimeRange_ExplicitDatesWin(t *testing.T) {
	now := mustTime(t, "2024-01-15T10:00:00Z")
	dateFrom := mustTime(t, "2023-06-01T00:00:00Z")

	from, to := ResolveTimeRange(Filter{TimeRange: TimeRangeToday, DateFrom: &dateFrom}, now)
	assert.Equal(t, &dateFrom, from)
	assert.Nil(t, to)
}

func TestParseFilter_Defaults(t *testing.T) {
	f, owner, err := ParseFilter(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, f.Limit)
	assert.Equal(t, 0, f.Offset)
	assert.Empty(t, owner)
	assert.Nil(t, f.DateFrom)
	assert.Nil(t, f.DateTo)
}

func TestParseFilter_Values(t *testing.T) {
	f, owner, err := ParseFilter(url.Values{
		"search":     {"  alice "},
		"actionType": {"upload"},
		"timeRange":  {"week"},
		"dateFrom":   {"2024-01-01"},
		"dateTo":     {"2024-01-10"},
		"limit":      {"500"},
		"offset":     {"40"},
		"userId":     {"u-7"},
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", f.Search)
	assert.Equal(t, ActionTypeUpload, f.ActionType)
	assert.Equal(t, TimeRangeWeek, f.TimeRange)
	assert.True(t, mustTime(t, "2024-01-01T00:00:00Z").Equal(*f.DateFrom))
	// a plain upper date covers the whole day
	assert.True(t, mustTime(t, "2024-01-11T00:00:00Z").Equal(*f.DateTo))
	assert.Equal(t, MaxLimit, f.Limit)
	assert.Equal(t, 40, f.Offset)
	assert.Equal(t, "u-7", owner)
}

func TestParseFilter_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
	}{
		{"action type", url.Values{"actionType": {"teleport"}}},
		{"time range", url.Values{"timeRange": {"fortnight"}}},
		{"date from", url.Values{"dateFrom": {"yesterday"}}},
		{"date to", url.Values{"dateTo": {"2024-13-45"}}},
		{"negative limit", url.Values{"limit": {"-1"}}},
		{"negative offset", url.Values{"offset": {"-5"}}},
		{"non numeric offset", url.Values{"offset": {"ten"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseFilter(tt.values)
			require.Error(t, err)
			assert.Equal(t, httputil.KindInvalidInput, httputil.Classify(err).Kind)
		})
	}
}

func TestActionType_LabelFragment(t *testing.T) {
	fragment, ok := ActionTypeAll.LabelFragment()
	assert.True(t, ok)
	assert.Empty(t, fragment)

	fragment, ok = ActionTypeUpload.LabelFragment()
	assert.True(t, ok)
	assert.Contains(t, ActionFileUpload, fragment)

	fragment, _ = ActionTypeLogin.LabelFragment()
	assert.Contains(t, ActionFirstSignIn, fragment)

	fragment, _ = ActionTypeUserEdit.LabelFragment()
	assert.Equal(t, ActionUserUpdate, fragment)

	_, ok = ActionType("teleport").LabelFragment()
	assert.False(t, ok)
}
