package soundcharts

import (
	"iter"
	"testing"
	"time"

	"github.com/Sternrassler/soundcharts-client/internal/testutil"
	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/Sternrassler/soundcharts-client/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// testToday is the fixed "now" of the catalog tests.
const testToday = "2021-07-15"

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestAPI(t *testing.T, mock *testutil.MockAPI) *API {
	t.Helper()

	logger := zerolog.Nop()
	cfg := client.DefaultConfig("app", "key")
	cfg.BaseURL = mock.URL()
	cfg.Logger = &logger
	c, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	config := DefaultConfig()
	config.Logger = &logger
	config.Window.Now = func() time.Time { return day(testToday).Add(9 * time.Hour) }
	return NewWithConfig(c, config)
}

func collect(t *testing.T, seq iter.Seq2[pagination.Item, error]) []pagination.Item {
	t.Helper()
	var items []pagination.Item
	for item, err := range seq {
		require.NoError(t, err)
		items = append(items, item)
	}
	return items
}
