package soundcharts

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/Sternrassler/soundcharts-client/pkg/pagination"
)

// DefaultAverageVideos is the number of recent videos averaged by
// AverageVideoPlays.
const DefaultAverageVideos = 6

// countryLookback is how far back TopCountries searches when no month is given.
const countryLookback = 95 * 24 * time.Hour

// CountryShare is one country of a listener breakdown.
type CountryShare struct {
	CountryCode string  `json:"countryCode"`
	CountryName string  `json:"countryName,omitempty"`
	Value       float64 `json:"value"`
	Percentage  float64 `json:"percentage"`
}

// CountryBreakdown is the country split of one monthly listeners record.
type CountryBreakdown struct {
	Date      string         `json:"date"`
	Listeners float64        `json:"listeners"`
	Countries []CountryShare `json:"countries"`
}

// CountryOptions selects the month TopCountries reads. With Year or Month set
// only that month is searched; otherwise the last three months or so.
type CountryOptions struct {
	// Limit keeps the first Limit countries. 0 keeps all.
	Limit int
	Year  int
	Month time.Month
}

// Insights groups queries derived from several endpoint calls.
type Insights struct {
	api *API
}

// TopCountries returns the countries of an artist's Spotify listeners from the
// most recent monthly record with a country breakdown, largest first. Remote
// errors yield an empty result.
func (s *Insights) TopCountries(ctx context.Context, uuid string, opts CountryOptions) ([]CountryShare, error) {
	record, err := s.latestCountryRecord(ctx, uuid, opts)
	if err != nil {
		if client.IsRemote(err) {
			s.api.logger.Error().Err(err).Str("artist", uuid).Msg("Country lookup failed")
			return []CountryShare{}, nil
		}
		return nil, err
	}
	if record == nil {
		s.api.logger.Warn().Str("artist", uuid).Msg("No country data found for artist")
		return []CountryShare{}, nil
	}

	shares := countryShares(record)
	if opts.Limit > 0 && len(shares) > opts.Limit {
		shares = shares[:opts.Limit]
	}
	return shares, nil
}

func (s *Insights) latestCountryRecord(ctx context.Context, uuid string, opts CountryOptions) (pagination.Item, error) {
	today := s.api.windows.Today()
	year, month := today.Year(), today.Month()
	if opts.Year != 0 {
		year = opts.Year
	}
	if opts.Month != 0 {
		month = opts.Month
	}
	working := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	backstop := working.Add(-countryLookback)
	if opts.Year != 0 || opts.Month != 0 {
		backstop = working.AddDate(0, 0, -1)
	}

	var found pagination.Item
	for found == nil && !working.Before(backstop) {
		for item, err := range s.api.Artists().MonthlyListeners(ctx, uuid, working.Year(), working.Month()) {
			if err != nil {
				return nil, err
			}
			// Keep scanning: a later record in the month is more recent.
			if plots, _ := item["countryPlots"].([]any); len(plots) > 0 {
				found = item
			}
		}
		working = working.AddDate(0, -1, 0)
	}
	return found, nil
}

// TopCountriesRange returns the country breakdown of every monthly listeners
// record dated in [start, end] that carries one, oldest first.
func (s *Insights) TopCountriesRange(ctx context.Context, uuid string, start, end time.Time) ([]CountryBreakdown, error) {
	series, err := s.api.Artists().MonthlyListenersRange(ctx, uuid, start, end)
	if err != nil {
		if client.IsRemote(err) {
			s.api.logger.Error().Err(err).Str("artist", uuid).Msg("Country range lookup failed")
			return []CountryBreakdown{}, nil
		}
		return nil, err
	}

	out := []CountryBreakdown{}
	for _, date := range series.Dates() {
		record, _ := series[date].(pagination.Item)
		if plots, _ := record["countryPlots"].([]any); len(plots) == 0 {
			continue
		}
		total, _ := number(record["value"])
		out = append(out, CountryBreakdown{
			Date:      date,
			Listeners: total,
			Countries: countryShares(record),
		})
	}
	return out, nil
}

// countryShares computes each country's share of the record's total value,
// rounded to two decimals, sorted by value descending.
func countryShares(record pagination.Item) []CountryShare {
	total, _ := number(record["value"])
	plots, _ := record["countryPlots"].([]any)

	shares := make([]CountryShare, 0, len(plots))
	for _, p := range plots {
		plot, ok := p.(map[string]any)
		if !ok {
			continue
		}
		value, _ := number(plot["value"])
		share := CountryShare{Value: value}
		share.CountryCode, _ = plot["countryCode"].(string)
		share.CountryName, _ = plot["countryName"].(string)
		if total > 0 {
			share.Percentage = math.Round(value/total*100*100) / 100
		}
		shares = append(shares, share)
	}

	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Value > shares[j].Value
	})
	return shares
}

// ReleasesBefore returns the albums of an artist released before day, oldest
// first. Albums without a release date are skipped. Remote errors yield an
// empty result.
func (s *Insights) ReleasesBefore(ctx context.Context, uuid string, day time.Time) ([]pagination.Item, error) {
	cutoff := day.Format(time.DateOnly)
	matched := []pagination.Item{}

	albums := s.api.Artists().Albums(ctx, uuid, SortOptions{SortBy: "releaseDate", SortOrder: "asc"}, ListOptions{})
	for album, err := range albums {
		if err != nil {
			if client.IsRemote(err) {
				s.api.logger.Error().Err(err).Str("artist", uuid).Msg("Release lookup failed")
				return []pagination.Item{}, nil
			}
			return nil, err
		}

		released, _ := album["releaseDate"].(string)
		if len(released) < len(time.DateOnly) {
			s.api.logger.Debug().
				Interface("album", album["name"]).
				Msg("Skipping album without release date")
			continue
		}
		// Sorted by release date: the first album on or after the cutoff ends it.
		if released[:len(time.DateOnly)] >= cutoff {
			break
		}
		matched = append(matched, album)
	}
	return matched, nil
}

// AverageVideoPlays returns the mean play count of the n latest videos of a
// TikTok user, rounded to the nearest integer. n defaults to
// DefaultAverageVideos. The bool is false when the user has no videos.
func (s *Insights) AverageVideoPlays(ctx context.Context, username string, n int) (int64, bool, error) {
	if n <= 0 {
		n = DefaultAverageVideos
	}

	var total float64
	count := 0
	for video, err := range s.api.TikTok().UserVideos(ctx, username, n) {
		if err != nil {
			return 0, false, err
		}
		audience, _ := video["latestAudience"].(map[string]any)
		plays, _ := number(audience["playCount"])
		total += plays
		count++
	}

	if count == 0 {
		return 0, false, nil
	}
	return int64(math.Round(total / float64(count))), true, nil
}
