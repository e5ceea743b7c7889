package soundcharts

import (
	"context"
	"iter"
	"net/url"
	"strconv"

	"github.com/Sternrassler/soundcharts-client/pkg/pagination"
)

const topArtistPrefix = "/api/v2/top-artist"

// TopArtistOptions filters a top-artist listing. Zero values are not sent.
// The API wants value and change bounds in pairs: a lone MinValue gets
// MaxValue = 100×MinValue, a lone MaxValue gets MinValue = 0. Changes pair
// the same way except a lone MaxChange gets MinChange = 1.
type TopArtistOptions struct {
	// SortBy defaults to "total".
	SortBy string
	// Period defaults to "week".
	Period string

	Limit    int
	MaxItems int

	MinValue  int
	MaxValue  int
	MinChange int
	MaxChange int
}

func (o TopArtistOptions) params() url.Values {
	params := url.Values{}

	sortBy, period := o.SortBy, o.Period
	if sortBy == "" {
		sortBy = "total"
	}
	if period == "" {
		period = "week"
	}
	params.Set("sortBy", sortBy)
	params.Set("period", period)

	if o.Limit > 0 {
		params.Set("limit", strconv.Itoa(o.Limit))
	}

	if lo, hi, ok := pairBounds(o.MinValue, o.MaxValue, 0); ok {
		params.Set("minValue", strconv.Itoa(lo))
		params.Set("maxValue", strconv.Itoa(hi))
	}
	if lo, hi, ok := pairBounds(o.MinChange, o.MaxChange, 1); ok {
		params.Set("minChange", strconv.Itoa(lo))
		params.Set("maxChange", strconv.Itoa(hi))
	}
	return params
}

// pairBounds completes a half-open bound. floor is used when only max is set.
func pairBounds(lo, hi, floor int) (int, int, bool) {
	switch {
	case lo != 0 && hi != 0:
		return lo, hi, true
	case lo != 0:
		return lo, lo * 100, true
	case hi != 0:
		return floor, hi, true
	default:
		return 0, 0, false
	}
}

// TopArtists groups the top-artist endpoints.
type TopArtists struct {
	api *API
}

// ByPlatformMetric lists the top artists for a platform and metric, e.g.
// (Spotify, "followers").
func (s *TopArtists) ByPlatformMetric(ctx context.Context, platform Platform, metric string, opts TopArtistOptions) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, join(topArtistPrefix, string(platform), metric), opts.params(), opts.MaxItems)
}
