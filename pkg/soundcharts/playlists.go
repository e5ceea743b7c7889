package soundcharts

import (
	"context"
	"iter"
	"time"

	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/Sternrassler/soundcharts-client/pkg/pagination"
	"github.com/Sternrassler/soundcharts-client/pkg/window"
)

const (
	playlistPrefix        = "/api/v2/playlist"
	playlistObjectPrefix  = "/api/v2.8/playlist"
	playlistListingPrefix = "/api/v2.20/playlist"
)

// defaultPlaylistSort orders playlist listings by audience, largest first.
var defaultPlaylistSort = SortOptions{SortBy: "audience", SortOrder: "desc"}

// Playlists groups the playlist endpoints.
type Playlists struct {
	api *API
}

// Platforms lists the platforms with playlist data.
func (s *Playlists) Platforms(ctx context.Context) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, join(playlistPrefix, "platforms"), nil, 0)
}

// Curators lists the playlist curators of a platform.
func (s *Playlists) Curators(ctx context.Context, platform Platform, opts ListOptions) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, join(playlistPrefix, "curators", string(platform)), opts.params(), opts.MaxItems)
}

// ByUUID fetches a playlist. Any remote failure is client.ErrNotFound.
func (s *Playlists) ByUUID(ctx context.Context, uuid string) (client.Object, error) {
	return s.api.lookup(ctx, join(playlistObjectPrefix, uuid), "playlist")
}

// ByPlatformID fetches a playlist by platform identifier. Any remote failure
// is client.ErrNotFound.
func (s *Playlists) ByPlatformID(ctx context.Context, platform Platform, id string) (client.Object, error) {
	return s.api.lookup(ctx, join(playlistObjectPrefix, "by-platform", string(platform), id), "playlist")
}

// ByType lists the playlists of a type. Sorted by audience descending unless
// sort says otherwise.
func (s *Playlists) ByType(ctx context.Context, platform Platform, playlistType PlaylistType, sort SortOptions, opts ListOptions) iter.Seq2[pagination.Item, error] {
	params := opts.params()
	sort.apply(params, defaultPlaylistSort)
	return s.api.list(ctx, join(playlistListingPrefix, "by-type", string(platform), string(playlistType)), params, opts.MaxItems)
}

// ByCurator lists the playlists of a curator. Sorted by audience descending
// unless sort says otherwise.
func (s *Playlists) ByCurator(ctx context.Context, platform Platform, curator string, sort SortOptions, opts ListOptions) iter.Seq2[pagination.Item, error] {
	params := opts.params()
	sort.apply(params, defaultPlaylistSort)
	return s.api.list(ctx, join(playlistListingPrefix, "by-curator", string(platform), curator), params, opts.MaxItems)
}

// Audience returns the daily subscriber counts of a playlist for [start, end].
func (s *Playlists) Audience(ctx context.Context, uuid string, start, end time.Time) (window.Series, error) {
	return s.api.windows.Range(ctx, window.Request{
		Path:  join(playlistListingPrefix, uuid, "audience"),
		Start: start,
		End:   end,
	})
}
