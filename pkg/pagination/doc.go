// Package pagination walks cursor-paginated Soundcharts listings.
//
// Listing responses carry their items under a listing key (usually "items")
// and a continuation under page.next:
//
//	{"items": [...], "page": {"offset": 0, "total": 240, "next": "https://.../?offset=100&limit=100"}}
//
// The query string of page.next is merged over the caller's parameters for the
// following request, so filters such as sortBy or period survive every page.
// Pages are fetched one at a time and only on demand: a consumer that stops
// early, or a MaxItems cap that is reached, never triggers another request.
//
// Example usage:
//
//	p := pagination.NewPaginator(apiClient, pagination.DefaultConfig())
//	it := p.Iterate(ctx, pagination.Query{
//		Path:     "/api/v2/artist/search/billie",
//		MaxItems: 20,
//	})
//	for it.Next() {
//		fmt.Println(it.Item()["name"])
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
//
// Pagination stops when page.next is empty, when a page comes back with no
// items, when MaxItems items were produced, or on the first fetch error.
package pagination
