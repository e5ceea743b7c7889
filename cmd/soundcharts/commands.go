package main

import (
	"fmt"
	"iter"
	"time"

	"github.com/Sternrassler/soundcharts-client/pkg/pagination"
	"github.com/Sternrassler/soundcharts-client/pkg/soundcharts"
	"github.com/spf13/cobra"
)

func newFollowersCmd(a *app) *cobra.Command {
	var (
		dates    dateRange
		platform string
		latest   bool
	)

	cmd := &cobra.Command{
		Use:   "followers <artist-uuid>",
		Short: "Daily follower counts of an artist on a platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := dates.parse()
			if err != nil {
				return err
			}

			artists := a.api.Artists()
			if latest {
				point, ok, err := artists.LatestFollowers(cmd.Context(), args[0], soundcharts.Platform(platform), start)
				if err != nil {
					return err
				}
				if !ok {
					return a.print(nil)
				}
				return a.print(point)
			}

			series, err := artists.Followers(cmd.Context(), args[0], soundcharts.Platform(platform), start, end)
			if err != nil {
				return err
			}
			return a.print(series)
		},
	}

	dates.register(cmd)
	cmd.Flags().StringVar(&platform, "platform", string(soundcharts.Spotify), "platform code, e.g. spotify, instagram, tiktok")
	cmd.Flags().BoolVar(&latest, "latest", false, "print only the most recent count not older than --start")
	return cmd
}

func newStreamsCmd(a *app) *cobra.Command {
	var (
		dates     dateRange
		spotifyID bool
	)

	cmd := &cobra.Command{
		Use:   "streams <song-uuid>",
		Short: "Daily Spotify stream counts of a song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := dates.parse()
			if err != nil {
				return err
			}

			songs := a.api.Songs()
			var series any
			if spotifyID {
				series, err = songs.StreamCountsByPlatformID(cmd.Context(), args[0], start, end)
			} else {
				series, err = songs.StreamCounts(cmd.Context(), args[0], start, end)
			}
			if err != nil {
				return err
			}
			return a.print(series)
		},
	}

	dates.register(cmd)
	cmd.Flags().BoolVar(&spotifyID, "spotify-id", false, "treat the argument as a Spotify track id")
	return cmd
}

func newAudienceCmd(a *app) *cobra.Command {
	var dates dateRange

	cmd := &cobra.Command{
		Use:   "audience <playlist-uuid>",
		Short: "Daily follower counts of a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := dates.parse()
			if err != nil {
				return err
			}
			series, err := a.api.Playlists().Audience(cmd.Context(), args[0], start, end)
			if err != nil {
				return err
			}
			return a.print(series)
		},
	}

	dates.register(cmd)
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var maxItems int

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search artists by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := a.api.Artists().Search(cmd.Context(), args[0], soundcharts.ListOptions{MaxItems: maxItems})
			return a.printAll(items)
		},
	}

	cmd.Flags().IntVar(&maxItems, "max-items", 20, "maximum number of results (0 for all)")
	return cmd
}

func newTopArtistsCmd(a *app) *cobra.Command {
	var (
		platform string
		metric   string
		opts     soundcharts.TopArtistOptions
	)

	cmd := &cobra.Command{
		Use:   "top-artists",
		Short: "Top artists of a platform ranked by a metric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items := a.api.TopArtists().ByPlatformMetric(cmd.Context(), soundcharts.Platform(platform), metric, opts)
			return a.printAll(items)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&platform, "platform", string(soundcharts.Spotify), "platform code")
	flags.StringVar(&metric, "metric", "followers", "ranking metric")
	flags.StringVar(&opts.SortBy, "sort-by", "", "total or volume (default total)")
	flags.StringVar(&opts.Period, "period", "", "change period: week, month, quarter (default week)")
	flags.IntVar(&opts.Limit, "limit", 0, "page size")
	flags.IntVar(&opts.MaxItems, "max-items", 100, "maximum number of artists (0 for all)")
	flags.IntVar(&opts.MinValue, "min-value", 0, "lower bound of the metric value")
	flags.IntVar(&opts.MaxValue, "max-value", 0, "upper bound of the metric value")
	return cmd
}

func newCountriesCmd(a *app) *cobra.Command {
	var (
		opts  soundcharts.CountryOptions
		month string
	)

	cmd := &cobra.Command{
		Use:   "countries <artist-uuid>",
		Short: "Top countries of an artist's Spotify listeners",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if month != "" {
				t, err := time.Parse("2006-01", month)
				if err != nil {
					return fmt.Errorf("--month: expected YYYY-MM, got %q", month)
				}
				opts.Year, opts.Month = t.Year(), t.Month()
			}
			countries, err := a.api.Insights().TopCountries(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return a.print(countries)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "number of countries (0 for all)")
	cmd.Flags().StringVar(&month, "month", "", "read this month (YYYY-MM) instead of the latest")
	return cmd
}

func newQuotaCmd(a *app) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show the remaining API call quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if probe {
				// Any response carries x-quota-remaining.
				for _, err := range a.api.Playlists().Platforms(cmd.Context()) {
					if err != nil {
						return err
					}
					break
				}
			}
			state, err := a.client.Quota().State(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(state)
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "send one request to refresh the quota first")
	return cmd
}

// printAll drains items and prints them as one JSON array. Items already
// received are printed even when a later page fails.
func (a *app) printAll(items iter.Seq2[pagination.Item, error]) error {
	out := []pagination.Item{}
	var iterErr error
	for item, err := range items {
		if err != nil {
			iterErr = err
			break
		}
		out = append(out, item)
	}
	if len(out) > 0 || iterErr == nil {
		if err := a.print(out); err != nil {
			return err
		}
	}
	return iterErr
}
