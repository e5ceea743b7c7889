package window

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/Sternrassler/soundcharts-client/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrInvalidRange is returned when the start date is after the end date.
var ErrInvalidRange = errors.New("window: start date after end date")

// DefaultBackscanDepth bounds how many earlier days a daily query may try.
const DefaultBackscanDepth = 8

const dateLayout = time.DateOnly

// Prometheus metrics for windowed retrieval.
var (
	windowsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundcharts_windows_fetched_total",
		Help: "Total date windows (or months, or days) fetched by retrieval mode",
	}, []string{"mode"})

	backscanHopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soundcharts_backscan_hops_total",
		Help: "Total earlier days tried by daily queries with backscan",
	})
)

// ValueFunc extracts the value stored for an item.
type ValueFunc func(pagination.Item) any

// ItemValue returns item["value"].
func ItemValue(item pagination.Item) any {
	return item["value"]
}

// WholeItem keeps the entire item as the value.
func WholeItem(item pagination.Item) any {
	return item
}

// Request describes a date-ranged time series.
type Request struct {
	// Path is the resource path including its version prefix.
	Path string

	// Params are sent with every window. startDate/endDate are set per window.
	Params url.Values

	// ListingKey defaults to "items".
	ListingKey string

	// Start defaults to End minus 90 days; End defaults to today.
	Start time.Time
	End   time.Time

	// Value defaults to ItemValue.
	Value ValueFunc
}

// DailyRequest describes a single-day lookup.
type DailyRequest struct {
	Path       string
	Params     url.Values
	ListingKey string

	// Day defaults to today.
	Day time.Time

	// Backscan retries earlier days when a day has no data, up to Depth
	// (default DefaultBackscanDepth) extra days.
	Backscan bool
	Depth    int

	Value ValueFunc
}

// MonthlyRequest describes a series served one calendar month per resource.
type MonthlyRequest struct {
	// PathFor builds the resource path for a month.
	PathFor func(year int, month time.Month) string

	Params     url.Values
	ListingKey string

	Start time.Time
	End   time.Time

	Value ValueFunc
}

// Config holds windower configuration.
type Config struct {
	// Span defaults to MaxSpan.
	Span time.Duration

	// Now defaults to time.Now. Used to default End dates.
	Now func() time.Time

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default windower configuration.
func DefaultConfig() Config {
	return Config{
		Span: MaxSpan,
		Now:  time.Now,
	}
}

// Windower runs windowed retrievals on top of a paginator.
type Windower struct {
	pages  *pagination.Paginator
	span   time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewWindower creates a windower.
func NewWindower(pages *pagination.Paginator, config Config) *Windower {
	if config.Span <= 0 {
		config.Span = MaxSpan
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	logger := log.With().Str("component", "window").Logger()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Windower{
		pages:  pages,
		span:   config.Span,
		now:    config.Now,
		logger: logger,
	}
}

// Today returns the current UTC calendar day.
func (w *Windower) Today() time.Time {
	return Day(w.now())
}

// bounds applies the date defaults and validates the range.
func (w *Windower) bounds(start, end time.Time) (time.Time, time.Time, error) {
	if end.IsZero() {
		end = w.Today()
	}
	end = Day(end)
	if start.IsZero() {
		start = end.Add(-MaxSpan)
	}
	start = Day(start)
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s > %s",
			ErrInvalidRange, start.Format(dateLayout), end.Format(dateLayout))
	}
	return start, end, nil
}

// windows covers [start, end]. A single day becomes one window.
func (w *Windower) windows(start, end time.Time) []Window {
	if start.Equal(end) {
		return []Window{{Start: start, End: end}}
	}
	var out []Window
	for win := range Windows(start, end, w.span) {
		out = append(out, win)
	}
	return out
}

// Range fetches every window of the request and merges the items into one
// Series keyed by day. A date reported by two windows keeps the value of the
// window fetched last. Remote errors propagate; a no-social-account error
// comes back as *client.NoSocialAccountError.
func (w *Windower) Range(ctx context.Context, req Request) (Series, error) {
	start, end, err := w.bounds(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	value := valueFunc(req.Value)

	series := make(Series)
	for _, win := range w.windows(start, end) {
		items, err := w.fetchWindow(ctx, req.Path, req.Params, req.ListingKey, win, "range")
		if err != nil {
			return nil, client.AsAbsence(err)
		}
		for _, item := range items {
			if date, ok := dayKey(item); ok {
				series[date] = value(item)
			}
		}
	}

	w.logger.Debug().
		Str("endpoint", req.Path).
		Str("start", start.Format(dateLayout)).
		Str("end", end.Format(dateLayout)).
		Int("dates", len(series)).
		Msg("Range retrieved")

	return series, nil
}

// Latest walks the windows newest first and returns the most recent point of
// the first window holding any data. Start is the earliest date considered.
// Remote errors mean no data, except a missing social account which is
// returned as *client.NoSocialAccountError.
func (w *Windower) Latest(ctx context.Context, req Request) (Point, bool, error) {
	start, end, err := w.bounds(req.Start, req.End)
	if err != nil {
		return Point{}, false, err
	}
	value := valueFunc(req.Value)

	for _, win := range w.windows(start, end) {
		items, err := w.fetchWindow(ctx, req.Path, req.Params, req.ListingKey, win, "latest")
		if err != nil {
			return Point{}, false, w.bestEffort(req.Path, err)
		}

		var point Point
		found := false
		for _, item := range items {
			if date, ok := dayKey(item); ok {
				point = Point{Date: date, Value: value(item)}
				found = true
			}
		}
		if found {
			return point, true, nil
		}
	}

	w.logger.Debug().
		Str("endpoint", req.Path).
		Str("floor", start.Format(dateLayout)).
		Msg("No data in any window")
	return Point{}, false, nil
}

// Daily fetches the value for one day. With Backscan, an empty day moves the
// query one day back until data is found or Depth extra days were tried.
// More than one item for a day is treated as no data.
func (w *Windower) Daily(ctx context.Context, req DailyRequest) (Point, bool, error) {
	day := req.Day
	if day.IsZero() {
		day = w.Today()
	}
	day = Day(day)

	depth := req.Depth
	if depth <= 0 {
		depth = DefaultBackscanDepth
	}
	if !req.Backscan {
		depth = 0
	}
	value := valueFunc(req.Value)

	for hops := 0; ; hops++ {
		items, err := w.pages.Collect(ctx, pagination.Query{
			Path:       req.Path,
			Params:     windowParams(req.Params, day, day),
			ListingKey: req.ListingKey,
			MaxItems:   2,
		})
		windowsFetchedTotal.WithLabelValues("daily").Inc()
		if err != nil {
			return Point{}, false, w.bestEffort(req.Path, err)
		}

		switch len(items) {
		case 1:
			date, ok := dayKey(items[0])
			if !ok {
				date = day.Format(dateLayout)
			}
			return Point{Date: date, Value: value(items[0])}, true, nil
		case 0:
		default:
			w.logger.Warn().
				Str("endpoint", req.Path).
				Str("day", day.Format(dateLayout)).
				Int("items", len(items)).
				Msg("Ambiguous daily data, treating as no data")
			return Point{}, false, nil
		}

		if hops >= depth {
			w.logger.Debug().
				Str("endpoint", req.Path).
				Str("day", day.Format(dateLayout)).
				Int("hops", hops).
				Msg("No daily data")
			return Point{}, false, nil
		}

		backscanHopsTotal.Inc()
		day = day.AddDate(0, 0, -1)
	}
}

// Monthly fetches each calendar month touched by [Start, End] once and keeps
// the items dated inside the range, keyed by their exact date string. Errors
// are treated as in Range.
func (w *Windower) Monthly(ctx context.Context, req MonthlyRequest) (Series, error) {
	start, end, err := w.bounds(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if req.PathFor == nil {
		return nil, errors.New("window: monthly request without PathFor")
	}
	value := valueFunc(req.Value)

	type yearMonth struct {
		year  int
		month time.Month
	}
	seen := make(map[yearMonth]bool)

	series := make(Series)
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for m := first; !m.After(end); m = m.AddDate(0, 1, 0) {
		key := yearMonth{m.Year(), m.Month()}
		if seen[key] {
			continue
		}
		seen[key] = true

		path := req.PathFor(key.year, key.month)
		items, err := w.pages.Collect(ctx, pagination.Query{
			Path:       path,
			Params:     req.Params,
			ListingKey: req.ListingKey,
		})
		windowsFetchedTotal.WithLabelValues("monthly").Inc()
		if err != nil {
			return nil, fmt.Errorf("month %04d-%02d: %w", key.year, key.month, client.AsAbsence(err))
		}

		for _, item := range items {
			date, _ := item["date"].(string)
			if len(date) < len(dateLayout) {
				continue
			}
			d, err := time.Parse(dateLayout, date[:len(dateLayout)])
			if err != nil || d.Before(start) || d.After(end) {
				continue
			}
			series[date] = value(item)
		}
	}

	return series, nil
}

func (w *Windower) fetchWindow(ctx context.Context, path string, params url.Values, listingKey string, win Window, mode string) ([]pagination.Item, error) {
	w.logger.Debug().
		Str("endpoint", path).
		Str("window_start", win.Start.Format(dateLayout)).
		Str("window_end", win.End.Format(dateLayout)).
		Msg("Fetching window")

	items, err := w.pages.Collect(ctx, pagination.Query{
		Path:       path,
		Params:     windowParams(params, win.Start, win.End),
		ListingKey: listingKey,
	})
	windowsFetchedTotal.WithLabelValues(mode).Inc()
	if err != nil {
		return nil, fmt.Errorf("window %s..%s: %w",
			win.Start.Format(dateLayout), win.End.Format(dateLayout), err)
	}
	return items, nil
}

// bestEffort maps remote errors to no data for the convenience variants.
func (w *Windower) bestEffort(path string, err error) error {
	if client.IsNoSocialAccount(err) {
		return client.AsAbsence(err)
	}
	if client.IsRemote(err) {
		w.logger.Warn().
			Err(err).
			Str("endpoint", path).
			Msg("Remote error, treating as no data")
		return nil
	}
	return err
}

func windowParams(base url.Values, start, end time.Time) url.Values {
	params := make(url.Values, len(base)+2)
	for key, values := range base {
		params[key] = append([]string(nil), values...)
	}
	params.Set("startDate", start.Format(dateLayout))
	params.Set("endDate", end.Format(dateLayout))
	return params
}

// dayKey returns the calendar-day portion of item["date"].
func dayKey(item pagination.Item) (string, bool) {
	date, _ := item["date"].(string)
	if len(date) < len(dateLayout) {
		return "", false
	}
	return date[:len(dateLayout)], true
}

func valueFunc(f ValueFunc) ValueFunc {
	if f == nil {
		return ItemValue
	}
	return f
}
