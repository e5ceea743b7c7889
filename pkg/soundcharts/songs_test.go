package soundcharts

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/soundcharts-client/internal/testutil"
	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const songUUID = "7d534228-5165-11e9-9375-549f35161576"

func TestSongs_ByUUID(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetObject("/api/v2/song/"+songUUID, "song", map[string]any{"uuid": songUUID, "name": "bad guy"})
	mock.SetObject("/api/v2/song/wrong-type", "artist", map[string]any{"uuid": "x"})

	api := newTestAPI(t, mock)

	song, err := api.Songs().ByUUID(context.Background(), songUUID)
	require.NoError(t, err)
	assert.Equal(t, "bad guy", song["name"])

	_, err = api.Songs().ByUUID(context.Background(), "wrong-type")
	var typeErr *client.UnexpectedTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "song", typeErr.Expected)
	assert.Equal(t, "artist", typeErr.Received)
}

func TestSongs_ByISRC(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetObject("/api/v2/song/by-isrc/USUM71900764", "song", map[string]any{"uuid": songUUID})

	api := newTestAPI(t, mock)
	song, err := api.Songs().ByISRC(context.Background(), "USUM71900764")
	require.NoError(t, err)
	assert.Equal(t, songUUID, song["uuid"])
}

func TestSongs_ByPlatformIDNotFound(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetJSON("/api/v2/song/by-platform/spotify/nothing", http.StatusOK, map[string]any{
		"type":   "song",
		"object": nil,
	})

	api := newTestAPI(t, mock)
	_, err := api.Songs().ByPlatformID(context.Background(), Spotify, "nothing")
	assert.ErrorIs(t, err, client.ErrNotFound)
	assert.Contains(t, err.Error(), "spotify id nothing")
}

func TestSongs_StreamCountsByPlatformID(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetObject("/api/v2/song/by-platform/spotify/2Fxmhks0bxGSBdJ92vM42m", "song", map[string]any{"uuid": songUUID})
	mock.SetDailySeries("/api/v2/song/"+songUUID+"/spotify/stream", testutil.DailyValues("2021-01-01", "2021-07-15"), 100)

	api := newTestAPI(t, mock)
	series, err := api.Songs().StreamCountsByPlatformID(context.Background(), "2Fxmhks0bxGSBdJ92vM42m", day("2021-07-01"), day("2021-07-10"))
	require.NoError(t, err)
	assert.Len(t, series, 10)
	assert.Equal(t, 2, mock.RequestCount())
}

func TestSongs_StreamCountsDefaultRange(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetDailySeries("/api/v2/song/"+songUUID+"/spotify/stream", testutil.DailyValues("2021-01-01", "2021-07-15"), 100)

	api := newTestAPI(t, mock)
	series, err := api.Songs().StreamCounts(context.Background(), songUUID, time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Len(t, series, 91)
	require.Equal(t, 1, mock.RequestCount())
	q := mock.Requests()[0].Query()
	assert.Equal(t, "2021-04-16", q.Get("startDate"))
	assert.Equal(t, testToday, q.Get("endDate"))
}

func TestSongs_PlatformIdentifier(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPagedItems("/api/v2/song/"+songUUID+"/identifiers", "items", []map[string]any{
		{"platformCode": "deezer", "identifier": "655095912"},
		{"platformCode": "spotify", "identifier": "2Fxmhks0bxGSBdJ92vM42m"},
		{"platformCode": "spotify", "identifier": "second"},
	}, 100)

	api := newTestAPI(t, mock)

	id, ok, err := api.Songs().PlatformIdentifier(context.Background(), songUUID, Spotify)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2Fxmhks0bxGSBdJ92vM42m", id)

	_, ok, err = api.Songs().PlatformIdentifier(context.Background(), songUUID, Tidal)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSongs_TikTokMusics(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPagedItems("/api/v2/song/"+songUUID+"/tiktokmusic", "items", testutil.Items(4), 100)

	api := newTestAPI(t, mock)
	items := collect(t, api.Songs().TikTokMusics(context.Background(), songUUID, ListOptions{}))
	assert.Len(t, items, 4)
}
