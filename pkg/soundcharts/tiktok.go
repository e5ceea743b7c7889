package soundcharts

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/Sternrassler/soundcharts-client/pkg/pagination"
	"github.com/Sternrassler/soundcharts-client/pkg/window"
)

const (
	tiktokPrefix      = "/api/v2/tiktok"
	tiktokStatsPrefix = "/api/v2.11/tiktok"
)

// TikTokService groups the TikTok endpoints.
type TikTokService struct {
	api *API
}

// UserVideos lists the latest videos of a user, newest first.
func (s *TikTokService) UserVideos(ctx context.Context, username string, maxItems int) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, join(tiktokPrefix, "user", username, "videos"), nil, maxItems)
}

// User fetches a TikTok user profile.
func (s *TikTokService) User(ctx context.Context, username string) (client.Object, error) {
	return s.api.object(ctx, join(tiktokPrefix, "user", username), nil, "")
}

// UserStats fetches the audience statistics of a user over period days
// ending at end (today when zero).
func (s *TikTokService) UserStats(ctx context.Context, username string, end time.Time, period int) (client.Object, error) {
	return s.api.object(ctx, join(tiktokStatsPrefix, "user", username, "audience"), s.periodParams(end, period), "")
}

// Video fetches a video by id. The raw response is returned.
func (s *TikTokService) Video(ctx context.Context, id string) (client.Object, error) {
	return s.api.fetcher.Fetch(ctx, client.Request{Path: join(tiktokPrefix, "video", id)})
}

// VideoStats lists the audience statistics of a video over period days ending
// at end (today when zero).
func (s *TikTokService) VideoStats(ctx context.Context, id string, end time.Time, period int) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, join(tiktokPrefix, "video", id, "audience"), s.periodParams(end, period), 0)
}

func (s *TikTokService) periodParams(end time.Time, period int) url.Values {
	if end.IsZero() {
		end = s.api.windows.Today()
	}
	params := url.Values{}
	params.Set("period", strconv.Itoa(period))
	params.Set("endDate", window.Day(end).Format(time.DateOnly))
	return params
}

// AddUserLinks submits TikTok profile URLs unknown to Soundcharts. Entries
// that are not http(s) links are dropped; nothing is sent when none remain.
func (s *TikTokService) AddUserLinks(ctx context.Context, links []string) (client.Object, error) {
	urls := make([]string, 0, len(links))
	for _, link := range links {
		if strings.HasPrefix(link, "http") {
			urls = append(urls, link)
		}
	}
	if len(urls) == 0 {
		return nil, nil
	}

	return s.api.fetcher.Fetch(ctx, client.Request{
		Method: http.MethodPost,
		Path:   join(tiktokPrefix, "user", "urls", "add"),
		Body:   map[string]any{"urls": urls},
	})
}
