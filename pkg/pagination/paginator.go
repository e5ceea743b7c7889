package pagination

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"time"

	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultListingKey is the response field holding the items of a page.
const DefaultListingKey = "items"

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundcharts_pages_fetched_total",
		Help: "Total listing pages fetched by endpoint",
	}, []string{"endpoint"})

	itemsYieldedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundcharts_items_yielded_total",
		Help: "Total listing items handed to consumers by endpoint",
	}, []string{"endpoint"})
)

// PageFetcher performs one request and returns the decoded response.
// *client.Client implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, req client.Request) (client.Object, error)
}

// Item is one element of a listing.
type Item = client.Object

// Query describes a paginated listing.
type Query struct {
	// Path is the resource path including its version prefix.
	Path string

	// Params are sent with the first request and carried to every page.
	Params url.Values

	// ListingKey defaults to DefaultListingKey.
	ListingKey string

	// MaxItems caps the number of items produced. 0 means no cap.
	MaxItems int
}

// Config holds paginator configuration.
type Config struct {
	// PageTimeout bounds each page fetch. 0 leaves the caller's deadline alone.
	PageTimeout time.Duration

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default paginator configuration.
func DefaultConfig() Config {
	return Config{
		PageTimeout: 30 * time.Second,
	}
}

// Paginator produces the items of cursor-paginated listings.
type Paginator struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewPaginator creates a paginator on top of fetcher.
func NewPaginator(fetcher PageFetcher, config Config) *Paginator {
	if config.PageTimeout < 0 {
		config.PageTimeout = 0
	}

	logger := log.With().Str("component", "pagination").Logger()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Paginator{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// Iterate returns a lazy iterator over the listing. No request is sent until
// the first call to Next.
func (p *Paginator) Iterate(ctx context.Context, q Query) *Iterator {
	if q.ListingKey == "" {
		q.ListingKey = DefaultListingKey
	}
	return &Iterator{
		p:      p,
		ctx:    ctx,
		query:  q,
		params: cloneValues(q.Params),
	}
}

// All returns the listing as a range-over-func sequence. A fetch error is
// yielded once, as the final element, with a nil item.
func (p *Paginator) All(ctx context.Context, q Query) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		it := p.Iterate(ctx, q)
		for it.Next() {
			if !yield(it.Item(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Collect drains the listing. On error the items gathered so far are returned
// alongside it.
func (p *Paginator) Collect(ctx context.Context, q Query) ([]Item, error) {
	var items []Item
	it := p.Iterate(ctx, q)
	for it.Next() {
		items = append(items, it.Item())
	}
	return items, it.Err()
}

// Iterator walks one listing. It is not safe for concurrent use.
type Iterator struct {
	p      *Paginator
	ctx    context.Context
	query  Query
	params url.Values

	page []Item
	raw  int
	idx  int
	next string

	item  Item
	pages int
	total int
	done  bool
	err   error
}

// Next advances to the next item, fetching a page when the current one is
// exhausted. It returns false when the listing ends, the cap is reached, or a
// fetch fails.
func (it *Iterator) Next() bool {
	for {
		if it.done {
			return false
		}

		if it.query.MaxItems > 0 && it.total >= it.query.MaxItems {
			it.p.logger.Info().
				Str("endpoint", it.query.Path).
				Int("max_items", it.query.MaxItems).
				Int("pages", it.pages).
				Msg("Item cap reached, stopping pagination")
			it.stop()
			return false
		}

		if it.idx < len(it.page) {
			it.item = it.page[it.idx]
			it.idx++
			it.total++
			itemsYieldedTotal.WithLabelValues(it.query.Path).Inc()
			return true
		}

		if it.pages > 0 {
			if it.raw == 0 || it.next == "" {
				it.stop()
				return false
			}
			if err := it.advance(); err != nil {
				it.fail(err)
				return false
			}
		}

		if err := it.fetch(); err != nil {
			it.fail(err)
			return false
		}
	}
}

// Item returns the current item. Only valid after Next returned true.
func (it *Iterator) Item() Item {
	return it.item
}

// Err returns the error that ended the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Pages returns the number of pages fetched so far.
func (it *Iterator) Pages() int {
	return it.pages
}

// Total returns the number of items produced so far.
func (it *Iterator) Total() int {
	return it.total
}

func (it *Iterator) fetch() error {
	ctx := it.ctx
	if it.p.config.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, it.p.config.PageTimeout)
		defer cancel()
	}

	resp, err := it.p.fetcher.Fetch(ctx, client.Request{
		Path:   it.query.Path,
		Params: cloneValues(it.params),
	})
	if err != nil {
		return fmt.Errorf("fetch page %d of %s: %w", it.pages+1, it.query.Path, err)
	}

	it.pages++
	pagesFetchedTotal.WithLabelValues(it.query.Path).Inc()

	it.page, it.raw = listing(resp, it.query.ListingKey)
	it.idx = 0
	it.next = nextLink(resp)

	it.p.logger.Debug().
		Str("endpoint", it.query.Path).
		Int("page", it.pages).
		Int("items", it.raw).
		Int("total", it.total).
		Bool("has_next", it.next != "").
		Msg("Fetched page")

	return nil
}

// advance merges the continuation's query over the current parameters.
func (it *Iterator) advance() error {
	u, err := url.Parse(it.next)
	if err != nil {
		return fmt.Errorf("parse page.next %q: %w", it.next, err)
	}
	for key, values := range u.Query() {
		it.params[key] = append([]string(nil), values...)
	}
	return nil
}

func (it *Iterator) stop() {
	it.done = true
	it.item = nil
}

func (it *Iterator) fail(err error) {
	it.p.logger.Warn().
		Err(err).
		Str("endpoint", it.query.Path).
		Int("pages", it.pages).
		Int("items", it.total).
		Msg("Pagination stopped by fetch error")
	it.err = err
	it.stop()
}

// listing extracts the object items under key and the raw element count. A
// missing or malformed listing counts as an empty page.
func listing(resp client.Object, key string) ([]Item, int) {
	raw, _ := resp[key].([]any)
	items := make([]Item, 0, len(raw))
	for _, v := range raw {
		if obj, ok := v.(map[string]any); ok {
			items = append(items, obj)
		}
	}
	return items, len(raw)
}

func nextLink(resp client.Object) string {
	page, _ := resp["page"].(map[string]any)
	next, _ := page["next"].(string)
	return next
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for key, values := range v {
		out[key] = append([]string(nil), values...)
	}
	return out
}
