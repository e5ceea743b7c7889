package soundcharts

import (
	"context"
	"iter"

	"github.com/Sternrassler/soundcharts-client/pkg/pagination"
)

const libraryPrefix = "/api/v2/library"

// Library groups the endpoints of the account's own artist library.
type Library struct {
	api *API
}

// Artists lists the artists in the library.
func (s *Library) Artists(ctx context.Context, opts ListOptions) iter.Seq2[pagination.Item, error] {
	return s.api.list(ctx, join(libraryPrefix, "artist"), opts.params(), opts.MaxItems)
}
