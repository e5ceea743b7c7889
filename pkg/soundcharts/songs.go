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

const songPrefix = "/api/v2/song"

// Songs groups the song endpoints.
type Songs struct {
	api *API
}

// ByUUID fetches a song by its Soundcharts identifier.
func (s *Songs) ByUUID(ctx context.Context, uuid string) (client.Object, error) {
	return s.api.object(ctx, join(songPrefix, uuid), nil, "song")
}

// ByISRC fetches a song by ISRC.
func (s *Songs) ByISRC(ctx context.Context, isrc string) (client.Object, error) {
	return s.api.object(ctx, join(songPrefix, "by-isrc", isrc), nil, "song")
}

// ByPlatformID resolves a song from a platform identifier such as a Spotify
// track id. An empty answer is client.ErrNotFound.
func (s *Songs) ByPlatformID(ctx context.Context, platform Platform, id string) (client.Object, error) {
	song, err := s.api.object(ctx, join(songPrefix, "by-platform", string(platform), id), nil, "song")
	if err != nil {
		return nil, fmt.Errorf("song for %s id %s: %w", platform, id, err)
	}
	return song, nil
}

// StreamCounts returns the daily Spotify stream counts of a song for
// [start, end]. Zero dates default to the last 90 days.
func (s *Songs) StreamCounts(ctx context.Context, uuid string, start, end time.Time) (window.Series, error) {
	return s.api.windows.Range(ctx, window.Request{
		Path:  join(songPrefix, uuid, "spotify", "stream"),
		Start: start,
		End:   end,
	})
}

// StreamCountsByPlatformID resolves a Spotify track id and returns its stream
// counts.
func (s *Songs) StreamCountsByPlatformID(ctx context.Context, spotifyID string, start, end time.Time) (window.Series, error) {
	song, err := s.ByPlatformID(ctx, Spotify, spotifyID)
	if err != nil {
		return nil, err
	}
	uuid, _ := song["uuid"].(string)
	if uuid == "" {
		return nil, fmt.Errorf("song for spotify id %s: %w", spotifyID, errNoUUID)
	}
	return s.StreamCounts(ctx, uuid, start, end)
}

// Identifiers lists the platform identifiers of a song.
func (s *Songs) Identifiers(ctx context.Context, uuid string, opts ListOptions) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, join(songPrefix, uuid, "identifiers"), opts.params(), opts.MaxItems)
}

// PlatformIdentifier returns the first identifier of a song on platform.
func (s *Songs) PlatformIdentifier(ctx context.Context, uuid string, platform Platform) (string, bool, error) {
	for item, err := range s.Identifiers(ctx, uuid, ListOptions{}) {
		if err != nil {
			return "", false, err
		}
		if code, _ := item["platformCode"].(string); code != string(platform) {
			continue
		}
		if id, _ := item["identifier"].(string); id != "" {
			return id, true, nil
		}
	}
	return "", false, nil
}

// TikTokMusics lists the TikTok sounds linked to a song.
func (s *Songs) TikTokMusics(ctx context.Context, uuid string, opts ListOptions) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, join(songPrefix, uuid, "tiktokmusic"), opts.params(), opts.MaxItems)
}
