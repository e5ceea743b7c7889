package soundcharts

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/Sternrassler/soundcharts-client/pkg/pagination"
	"github.com/Sternrassler/soundcharts-client/pkg/window"
)

const (
	artistPrefix       = "/api/v2/artist"
	artistAlbumsPrefix = "/api/v2.18/artist"
)

// Artists groups the artist endpoints.
type Artists struct {
	api *API
}

// Search lists artists matching term.
func (s *Artists) Search(ctx context.Context, term string, opts ListOptions) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, join(artistPrefix, "search", term), opts.params(), opts.MaxItems)
}

// ByPlatformID resolves an artist from a platform identifier. Any remote
// failure is reported as client.ErrNotFound.
func (s *Artists) ByPlatformID(ctx context.Context, platform Platform, id string) (client.Object, error) {
	return s.api.lookup(ctx, join(artistPrefix, "by-platform", string(platform), id), "artist")
}

// ByCountry lists artists from a country (ISO 3166-1 alpha-2).
func (s *Artists) ByCountry(ctx context.Context, countryCode string, opts ListOptions) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, join(artistPrefix, "by-country", countryCode), opts.params(), opts.MaxItems)
}

func socialPath(uuid string, platform Platform) string {
	return join(artistPrefix, uuid, "social", string(platform))
}

// Followers returns the daily follower counts on platform for [start, end].
// Zero dates default to the last 90 days.
func (s *Artists) Followers(ctx context.Context, uuid string, platform Platform, start, end time.Time) (window.Series, error) {
	return s.api.windows.Range(ctx, window.Request{
		Path:  socialPath(uuid, platform),
		Start: start,
		End:   end,
	})
}

// FollowersOnDay returns the follower count for day. With backscan the most
// recent earlier day with data is used instead, within the default depth.
func (s *Artists) FollowersOnDay(ctx context.Context, uuid string, platform Platform, day time.Time, backscan bool) (window.Point, bool, error) {
	return s.api.windows.Daily(ctx, window.DailyRequest{
		Path:     socialPath(uuid, platform),
		Day:      day,
		Backscan: backscan,
	})
}

// LatestFollowers returns the most recent follower count not older than floor.
func (s *Artists) LatestFollowers(ctx context.Context, uuid string, platform Platform, floor time.Time) (window.Point, bool, error) {
	return s.api.windows.Latest(ctx, window.Request{
		Path:  socialPath(uuid, platform),
		Start: floor,
	})
}

func listenersPath(uuid string, year int, month time.Month) string {
	return join(artistPrefix, uuid, "streaming", "spotify", "listeners",
		fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", int(month)))
}

// MonthlyListeners lists the Spotify monthly listener records of one month.
func (s *Artists) MonthlyListeners(ctx context.Context, uuid string, year int, month time.Month) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, listenersPath(uuid, year, month), nil, 0)
}

// MonthlyListenersRange returns the Spotify monthly listener records dated in
// [start, end], keyed by their exact date. Values are the whole records.
func (s *Artists) MonthlyListenersRange(ctx context.Context, uuid string, start, end time.Time) (window.Series, error) {
	return s.api.windows.Monthly(ctx, window.MonthlyRequest{
		PathFor: func(year int, month time.Month) string {
			return listenersPath(uuid, year, month)
		},
		Start: start,
		End:   end,
		Value: window.WholeItem,
	})
}

// Albums lists the albums of an artist.
func (s *Artists) Albums(ctx context.Context, uuid string, sort SortOptions, opts ListOptions) iter.Seq2[pagination.Item, error] {
	params := opts.params()
	sort.apply(params, SortOptions{})
	return s.api.list(ctx, join(artistAlbumsPrefix, uuid, "albums"), params, opts.MaxItems)
}

// Identifiers lists the platform identifiers of an artist.
func (s *Artists) Identifiers(ctx context.Context, uuid string, opts ListOptions) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, join(artistPrefix, uuid, "identifiers"), opts.params(), opts.MaxItems)
}
