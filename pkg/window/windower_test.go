package window

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/Sternrassler/soundcharts-client/internal/testutil"
	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/Sternrassler/soundcharts-client/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const followersPath = "/api/v2/artist/11e81bcc-9c1c-ce38-b96b-a0369fe50396/social/instagram"

func newTestWindower(t *testing.T, mock *testutil.MockAPI, today string) *Windower {
	t.Helper()

	logger := zerolog.Nop()
	cfg := client.DefaultConfig("app", "key")
	cfg.BaseURL = mock.URL()
	cfg.Logger = &logger
	c, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	pages := pagination.NewPaginator(c, pagination.Config{Logger: &logger})
	return NewWindower(pages, Config{
		Now:    func() time.Time { return date(today).Add(15 * time.Hour) },
		Logger: &logger,
	})
}

// num is how the client decodes JSON numbers.
func num(n int) json.Number {
	return json.Number(strconv.Itoa(n))
}

func TestRange_SingleWindow(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetDailySeries(followersPath, testutil.DailyValues("2021-01-01", "2021-06-30"), 100)

	w := newTestWindower(t, mock, "2021-07-01")
	series, err := w.Range(context.Background(), Request{
		Path:  followersPath,
		Start: date("2021-05-01"),
		End:   date("2021-05-20"),
	})
	require.NoError(t, err)

	assert.Len(t, series, 20)
	assert.Equal(t, 1, mock.RequestCount())
	assert.Contains(t, series, "2021-05-01")
	assert.Contains(t, series, "2021-05-20")

	q := mock.Requests()[0].Query()
	assert.Equal(t, "2021-05-01", q.Get("startDate"))
	assert.Equal(t, "2021-05-20", q.Get("endDate"))
}

func TestRange_TwoWindows(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetDailySeries(followersPath, testutil.DailyValues("2021-01-01", "2021-06-30"), 100)

	w := newTestWindower(t, mock, "2021-07-01")
	series, err := w.Range(context.Background(), Request{
		Path:  followersPath,
		Start: date("2021-02-01"),
		End:   date("2021-05-20"),
	})
	require.NoError(t, err)

	assert.Len(t, series, 109)

	require.Equal(t, 2, mock.RequestCount())
	var windowStarts []string
	for _, u := range mock.Requests() {
		windowStarts = append(windowStarts, u.Query().Get("startDate"))
	}
	assert.Equal(t, []string{"2021-02-19", "2021-02-01"}, windowStarts)

	dates := series.Dates()
	assert.Equal(t, "2021-02-01", dates[0])
	assert.Equal(t, "2021-05-20", dates[len(dates)-1])
}

func TestRange_Idempotent(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetDailySeries(followersPath, testutil.DailyValues("2020-01-01", "2021-06-30"), 50)

	w := newTestWindower(t, mock, "2021-07-01")
	req := Request{Path: followersPath, Start: date("2020-03-15"), End: date("2021-04-02")}

	first, err := w.Range(context.Background(), req)
	require.NoError(t, err)
	second, err := w.Range(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 384)
}

func TestRange_SharedBoundaryKeepsOlderWindow(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	// Each window reports a different value for the shared day 2021-04-01.
	values := map[string]int{"2021-04-01": 100, "2021-01-01": 200}
	mock.SetHandler(followersPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{"date": "2021-04-01T00:00:00+00:00", "value": values[r.URL.Query().Get("startDate")]},
			},
			"page": map[string]any{"next": nil},
		})
	})

	w := newTestWindower(t, mock, "2021-07-01")
	got, err := w.Range(context.Background(), Request{
		Path:  followersPath,
		Start: date("2021-01-01"),
		End:   date("2021-06-30"),
	})
	require.NoError(t, err)

	requests := mock.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "2021-04-01", requests[0].Query().Get("startDate"), "newest window first")
	assert.Equal(t, "2021-01-01", requests[1].Query().Get("startDate"))
	assert.Equal(t, Series{"2021-04-01": num(200)}, got, "older window is fetched last and wins")
}

func TestRange_SparseDataHasNoGaps(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	series := map[string]any{
		"2020-12-31": 1, // before start
		"2021-01-01": 2,
		"2021-04-01": 3, // shared boundary of two windows
		"2021-06-29": 4,
		"2021-06-30": 5,
	}
	mock.SetDailySeries(followersPath, series, 100)

	w := newTestWindower(t, mock, "2021-07-01")
	got, err := w.Range(context.Background(), Request{
		Path:  followersPath,
		Start: date("2021-01-01"),
		End:   date("2021-06-30"),
	})
	require.NoError(t, err)

	assert.Equal(t, Series{
		"2021-01-01": num(2),
		"2021-04-01": num(3),
		"2021-06-29": num(4),
		"2021-06-30": num(5),
	}, got)
}

func TestRange_SingleDay(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetDailySeries(followersPath, testutil.DailyValues("2021-05-01", "2021-05-31"), 100)

	w := newTestWindower(t, mock, "2021-07-01")
	got, err := w.Range(context.Background(), Request{
		Path:  followersPath,
		Start: date("2021-05-10"),
		End:   date("2021-05-10"),
	})
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.Equal(t, 1, mock.RequestCount())
}

func TestRange_Defaults(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetDailySeries(followersPath, map[string]any{}, 100)

	w := newTestWindower(t, mock, "2021-07-01")
	_, err := w.Range(context.Background(), Request{Path: followersPath})
	require.NoError(t, err)

	require.Equal(t, 1, mock.RequestCount())
	q := mock.Requests()[0].Query()
	assert.Equal(t, "2021-04-02", q.Get("startDate"))
	assert.Equal(t, "2021-07-01", q.Get("endDate"))
}

func TestRange_InvalidRange(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	w := newTestWindower(t, mock, "2021-07-01")
	_, err := w.Range(context.Background(), Request{
		Path:  followersPath,
		Start: date("2021-05-20"),
		End:   date("2021-05-01"),
	})

	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Equal(t, 0, mock.RequestCount())
}

func TestRange_RemoteErrorPropagates(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetError(followersPath, http.StatusBadRequest, 400, "Invalid date range")

	w := newTestWindower(t, mock, "2021-07-01")
	_, err := w.Range(context.Background(), Request{Path: followersPath})

	var remote *client.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, 400, remote.StatusCode)
}

func TestRange_NoSocialAccount(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetError(followersPath, http.StatusNotFound, 404, "No social account found for this artist")

	w := newTestWindower(t, mock, "2021-07-01")
	_, err := w.Range(context.Background(), Request{Path: followersPath})

	assert.ErrorIs(t, err, client.ErrNoSocialAccount)
	var remote *client.RemoteError
	require.ErrorAs(t, err, &remote, "the remote error stays reachable")
	assert.Equal(t, 404, remote.StatusCode)
}

func TestRange_CustomValue(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetDailySeries(followersPath, map[string]any{"2021-05-01": 7}, 100)

	w := newTestWindower(t, mock, "2021-07-01")
	got, err := w.Range(context.Background(), Request{
		Path:  followersPath,
		Start: date("2021-04-01"),
		End:   date("2021-05-02"),
		Value: WholeItem,
	})
	require.NoError(t, err)

	item, ok := got["2021-05-01"].(pagination.Item)
	require.True(t, ok)
	assert.Equal(t, "2021-05-01T00:00:00+00:00", item["date"])
}

func TestLatest_StopsAtFirstNonEmptyWindow(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	// Nothing in the newest window [2021-02-19, 2021-05-20]; one entry on the
	// last day of the window before it.
	mock.SetDailySeries(followersPath, map[string]any{
		"2021-01-05": 10,
		"2021-02-18": 42,
	}, 100)

	w := newTestWindower(t, mock, "2021-07-01")
	point, ok, err := w.Latest(context.Background(), Request{
		Path:  followersPath,
		Start: date("2019-01-01"),
		End:   date("2021-05-20"),
	})
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "2021-02-18", point.Date)
	assert.Equal(t, num(42), point.Value)
	assert.Equal(t, 2, mock.RequestCount())
}

func TestLatest_NoData(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetDailySeries(followersPath, map[string]any{"2018-01-01": 1}, 100)

	w := newTestWindower(t, mock, "2021-07-01")
	_, ok, err := w.Latest(context.Background(), Request{
		Path:  followersPath,
		Start: date("2021-01-01"),
		End:   date("2021-05-20"),
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, mock.RequestCount())
}

func TestLatest_RemoteErrorMeansNoData(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(followersPath, testutil.NewServerErrorResponse())

	w := newTestWindower(t, mock, "2021-07-01")
	_, ok, err := w.Latest(context.Background(), Request{Path: followersPath})

	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestLatest_NoSocialAccount(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetError(followersPath, http.StatusNotFound, 404, "No social account found for this artist")

	w := newTestWindower(t, mock, "2021-07-01")
	_, ok, err := w.Latest(context.Background(), Request{Path: followersPath})

	assert.False(t, ok)
	assert.ErrorIs(t, err, client.ErrNoSocialAccount)

	var absent *client.NoSocialAccountError
	require.ErrorAs(t, err, &absent)
	assert.Equal(t, 404, absent.Remote.StatusCode)
}

func TestDaily(t *testing.T) {
	tests := []struct {
		name      string
		series    map[string]any
		backscan  bool
		depth     int
		wantOK    bool
		wantDate  string
		wantCalls int
	}{
		{
			name:      "value on the day",
			series:    map[string]any{"2021-05-20": 5},
			wantOK:    true,
			wantDate:  "2021-05-20",
			wantCalls: 1,
		},
		{
			name:      "missing without backscan",
			series:    map[string]any{"2021-05-19": 5},
			wantOK:    false,
			wantCalls: 1,
		},
		{
			name:      "backscan finds earlier day",
			series:    map[string]any{"2021-05-17": 5},
			backscan:  true,
			wantOK:    true,
			wantDate:  "2021-05-17",
			wantCalls: 4,
		},
		{
			name:      "backscan bounded by default depth",
			series:    map[string]any{"2021-05-11": 5},
			backscan:  true,
			wantOK:    false,
			wantCalls: 9,
		},
		{
			name:      "value at the last day within default depth",
			series:    map[string]any{"2021-05-12": 5},
			backscan:  true,
			wantOK:    true,
			wantDate:  "2021-05-12",
			wantCalls: 9,
		},
		{
			name:      "custom depth",
			series:    map[string]any{},
			backscan:  true,
			depth:     2,
			wantOK:    false,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetDailySeries(followersPath, tt.series, 100)

			w := newTestWindower(t, mock, "2021-07-01")
			point, ok, err := w.Daily(context.Background(), DailyRequest{
				Path:     followersPath,
				Day:      date("2021-05-20"),
				Backscan: tt.backscan,
				Depth:    tt.depth,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCalls, mock.RequestCount())
			if tt.wantOK {
				assert.Equal(t, tt.wantDate, point.Date)
			}

			for _, u := range mock.Requests() {
				q := u.Query()
				assert.Equal(t, q.Get("startDate"), q.Get("endDate"), "daily queries span one day")
			}
		})
	}
}

func TestDaily_AmbiguousIsNoData(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetJSON(followersPath, http.StatusOK, map[string]any{
		"items": []map[string]any{
			{"date": "2021-05-20T00:00:00+00:00", "value": 1},
			{"date": "2021-05-20T12:00:00+00:00", "value": 2},
		},
		"page": map[string]any{"next": nil},
	})

	w := newTestWindower(t, mock, "2021-07-01")
	_, ok, err := w.Daily(context.Background(), DailyRequest{
		Path:     followersPath,
		Day:      date("2021-05-20"),
		Backscan: true,
	})
	require.NoError(t, err)

	assert.False(t, ok)
	assert.Equal(t, 1, mock.RequestCount(), "ambiguity does not trigger backscan")
}

func TestDaily_Errors(t *testing.T) {
	t.Run("remote error is no data", func(t *testing.T) {
		mock := testutil.NewMockAPI()
		defer mock.Close()
		mock.SetError(followersPath, http.StatusNotFound, 404, "Artist not found")

		w := newTestWindower(t, mock, "2021-07-01")
		_, ok, err := w.Daily(context.Background(), DailyRequest{Path: followersPath, Backscan: true})
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, mock.RequestCount())
	})

	t.Run("no social account", func(t *testing.T) {
		mock := testutil.NewMockAPI()
		defer mock.Close()
		mock.SetError(followersPath, http.StatusNotFound, 404, "No social account")

		w := newTestWindower(t, mock, "2021-07-01")
		_, _, err := w.Daily(context.Background(), DailyRequest{Path: followersPath})
		assert.True(t, errors.Is(err, client.ErrNoSocialAccount))
	})

	t.Run("cancelled context propagates", func(t *testing.T) {
		mock := testutil.NewMockAPI()
		defer mock.Close()
		mock.SetDailySeries(followersPath, map[string]any{}, 100)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		w := newTestWindower(t, mock, "2021-07-01")
		_, ok, err := w.Daily(ctx, DailyRequest{Path: followersPath})
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestMonthly(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	const base = "/api/v2/artist/abc/streaming/spotify/listeners"
	months := map[string][]map[string]any{
		"2021/01": {{"date": "2021-01-10T00:00:00+00:00", "value": 1}, {"date": "2021-01-31T00:00:00+00:00", "value": 2}},
		"2021/02": {{"date": "2021-02-15T00:00:00+00:00", "value": 3}},
		"2021/03": {{"date": "2021-03-01T00:00:00+00:00", "value": 4}, {"date": "2021-03-25T00:00:00+00:00", "value": 5}},
	}
	for ym, items := range months {
		mock.SetPagedItems(base+"/"+ym, "items", items, 100)
	}

	w := newTestWindower(t, mock, "2021-07-01")
	got, err := w.Monthly(context.Background(), MonthlyRequest{
		PathFor: func(year int, month time.Month) string {
			return fmt.Sprintf("%s/%04d/%02d", base, year, int(month))
		},
		Start: date("2021-01-15"),
		End:   date("2021-03-10"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, mock.RequestCount())
	assert.Equal(t, Series{
		"2021-01-31T00:00:00+00:00": num(2),
		"2021-02-15T00:00:00+00:00": num(3),
		"2021-03-01T00:00:00+00:00": num(4),
	}, got)
}

func TestMonthly_RemoteErrorPropagates(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	w := newTestWindower(t, mock, "2021-07-01")
	_, err := w.Monthly(context.Background(), MonthlyRequest{
		PathFor: func(year int, month time.Month) string {
			return fmt.Sprintf("/missing/%04d/%02d", year, int(month))
		},
		Start: date("2021-01-15"),
		End:   date("2021-03-10"),
	})

	assert.True(t, client.IsRemote(err))
	assert.Equal(t, 1, mock.RequestCount())
}

func TestMonthly_NoSocialAccount(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetError("/listeners/2021/01", http.StatusNotFound, 404, "No social account for this artist")

	w := newTestWindower(t, mock, "2021-07-01")
	_, err := w.Monthly(context.Background(), MonthlyRequest{
		PathFor: func(year int, month time.Month) string {
			return fmt.Sprintf("/listeners/%04d/%02d", year, int(month))
		},
		Start: date("2021-01-15"),
		End:   date("2021-02-10"),
	})

	assert.ErrorIs(t, err, client.ErrNoSocialAccount)
	assert.True(t, client.IsRemote(err))
	assert.Equal(t, 1, mock.RequestCount())
}
