// Package soundcharts is the endpoint catalog of the Soundcharts API: artists,
// songs, playlists, top artists, the library, TikTok and derived insights.
//
// Every call goes through one client.Client. Listings are returned as lazy
// sequences backed by the paginator, date-ranged series through the windower.
//
//	c, _ := client.New(client.DefaultConfig(appID, apiKey))
//	api := soundcharts.New(c)
//	followers, err := api.Artists().Followers(ctx, uuid, soundcharts.Instagram, start, end)
package soundcharts

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/Sternrassler/soundcharts-client/pkg/pagination"
	"github.com/Sternrassler/soundcharts-client/pkg/window"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fetcher is the transport the catalog runs on. *client.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req client.Request) (client.Object, error)
	FetchObject(ctx context.Context, req client.Request, objType string) (client.Object, error)
}

// Platform identifies a social or streaming platform.
type Platform string

// Platforms known to the API.
const (
	Amazon        Platform = "amazon"
	AppleMusic    Platform = "apple-music"
	Deezer        Platform = "deezer"
	Facebook      Platform = "facebook"
	Genius        Platform = "genius"
	Instagram     Platform = "instagram"
	ITunes        Platform = "itunes"
	LastFM        Platform = "lastfm"
	Napster       Platform = "napster"
	Shazam        Platform = "shazam"
	Songkick      Platform = "songkick"
	SoundCloud    Platform = "soundcloud"
	Spotify       Platform = "spotify"
	Tidal         Platform = "tidal"
	TikTok        Platform = "tiktok"
	Twitter       Platform = "twitter"
	YouTube       Platform = "youtube"
	YouTubeArtist Platform = "youtube-artist"
)

// PlaylistType classifies playlists.
type PlaylistType string

// Playlist types.
const (
	Algorithmic           PlaylistType = "algorithmic"
	Charts                PlaylistType = "charts"
	CuratorsListeners     PlaylistType = "curators_listeners"
	Editorial             PlaylistType = "editorial"
	EditorialPersonalised PlaylistType = "algotorial"
	MajorLabel            PlaylistType = "major"
	Radio                 PlaylistType = "radios"
	ThisIs                PlaylistType = "this_is"
)

// ListOptions controls paging of a listing. Zero values are not sent.
type ListOptions struct {
	// Limit is the page size requested from the API.
	Limit int
	// Offset skips items on the first page.
	Offset int
	// MaxItems caps the number of items produced. 0 means no cap.
	MaxItems int
}

func (o ListOptions) params() url.Values {
	params := url.Values{}
	if o.Limit > 0 {
		params.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		params.Set("offset", strconv.Itoa(o.Offset))
	}
	return params
}

// SortOptions selects the order of a listing. Empty fields fall back to the
// endpoint's default.
type SortOptions struct {
	SortBy    string
	SortOrder string
}

func (o SortOptions) apply(params url.Values, defaults SortOptions) {
	sortBy, sortOrder := o.SortBy, o.SortOrder
	if sortBy == "" {
		sortBy = defaults.SortBy
	}
	if sortOrder == "" {
		sortOrder = defaults.SortOrder
	}
	if sortBy != "" {
		params.Set("sortBy", sortBy)
	}
	if sortOrder != "" {
		params.Set("sortOrder", sortOrder)
	}
}

// Config holds catalog configuration.
type Config struct {
	Pagination pagination.Config
	Window     window.Config
	Logger     *zerolog.Logger
}

// DefaultConfig returns the default catalog configuration.
func DefaultConfig() Config {
	return Config{
		Pagination: pagination.DefaultConfig(),
		Window:     window.DefaultConfig(),
	}
}

// API is the entry point of the catalog.
type API struct {
	fetcher Fetcher
	pages   *pagination.Paginator
	windows *window.Windower
	logger  zerolog.Logger
}

// New creates the catalog with the default configuration.
func New(f Fetcher) *API {
	return NewWithConfig(f, DefaultConfig())
}

// NewWithConfig creates the catalog.
func NewWithConfig(f Fetcher, config Config) *API {
	logger := log.With().Str("component", "soundcharts").Logger()
	if config.Logger != nil {
		logger = *config.Logger
		if config.Pagination.Logger == nil {
			config.Pagination.Logger = config.Logger
		}
		if config.Window.Logger == nil {
			config.Window.Logger = config.Logger
		}
	}

	pages := pagination.NewPaginator(f, config.Pagination)
	return &API{
		fetcher: f,
		pages:   pages,
		windows: window.NewWindower(pages, config.Window),
		logger:  logger,
	}
}

// Artists returns the artist endpoints.
func (a *API) Artists() *Artists { return &Artists{api: a} }

// Songs returns the song endpoints.
func (a *API) Songs() *Songs { return &Songs{api: a} }

// Playlists returns the playlist endpoints.
func (a *API) Playlists() *Playlists { return &Playlists{api: a} }

// TopArtists returns the top-artist endpoints.
func (a *API) TopArtists() *TopArtists { return &TopArtists{api: a} }

// Library returns the library endpoints.
func (a *API) Library() *Library { return &Library{api: a} }

// TikTok returns the TikTok endpoints.
func (a *API) TikTok() *TikTokService { return &TikTokService{api: a} }

// Insights returns the derived queries built on several endpoints.
func (a *API) Insights() *Insights { return &Insights{api: a} }

func (a *API) list(ctx context.Context, path string, params url.Values, maxItems int) iter.Seq2[pagination.Item, error] {
	return a.pages.All(ctx, pagination.Query{
		Path:     path,
		Params:   params,
		MaxItems: maxItems,
	})
}

func (a *API) object(ctx context.Context, path string, params url.Values, objType string) (client.Object, error) {
	return a.fetcher.FetchObject(ctx, client.Request{Path: path, Params: params}, objType)
}

// lookup is a best-effort single-object fetch: remote errors mean not found.
func (a *API) lookup(ctx context.Context, path, objType string) (client.Object, error) {
	obj, err := a.object(ctx, path, nil, objType)
	if err != nil && client.IsRemote(err) {
		a.logger.Warn().
			Err(err).
			Str("endpoint", path).
			Msg("Lookup failed, treating as not found")
		return nil, client.ErrNotFound
	}
	return obj, err
}

// join builds a resource path, escaping each segment.
func join(prefix string, segments ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// number converts a decoded JSON number.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// errNoUUID is returned when a resolved object carries no uuid.
var errNoUUID = errors.New("soundcharts: object has no uuid")
