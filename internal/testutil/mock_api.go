// Package testutil provides testing utilities for the Soundcharts client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"
)

// DefaultQuota is the x-quota-remaining value sent by default.
const DefaultQuota = "100000"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock of the Soundcharts API for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requests []*url.URL
	headers  http.Header
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		u := *r.URL
		mock.requests = append(mock.requests, &u)
		mock.headers = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		WriteJSON(w, http.StatusNotFound, map[string]any{
			"errors": []map[string]any{{"code": 404, "message": "No route found for " + r.URL.Path}},
		})
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.headers = nil
}

// RequestCount returns the number of requests served.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns the URLs of all requests served, in order.
func (m *MockAPI) Requests() []*url.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*url.URL, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.headers
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		if _, ok := resp.Headers["X-Quota-Remaining"]; !ok {
			w.Header().Set("X-Quota-Remaining", DefaultQuota)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON configures a JSON response for a path.
func (m *MockAPI) SetJSON(path string, status int, body any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// SetObject configures a single-object response ({"type": ..., "object": ...}).
func (m *MockAPI) SetObject(path, objType string, obj map[string]any) {
	m.SetJSON(path, http.StatusOK, map[string]any{
		"type":   objType,
		"object": obj,
		"errors": []any{},
	})
}

// SetError configures an error response with one error descriptor.
func (m *MockAPI) SetError(path string, status, code int, message string) {
	m.SetResponse(path, NewErrorResponse(status, code, message))
}

// SetPagedItems serves items in pages of pageSize under listingKey using
// offset/limit parameters. page.next is an absolute URL carrying the next
// offset and limit only, so callers must merge it over their own parameters.
func (m *MockAPI) SetPagedItems(path, listingKey string, items []map[string]any, pageSize int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("offset"))
		WriteJSON(w, http.StatusOK, m.page(r, listingKey, items, offset, pageSize))
	})
}

// SetDailySeries serves a time series: one item per date in series, filtered
// to [startDate, endDate] and sorted ascending, paged like SetPagedItems.
// Dates are rendered as timestamps to exercise 10-character truncation.
func (m *MockAPI) SetDailySeries(path string, series map[string]any, pageSize int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, end := q.Get("startDate"), q.Get("endDate")

		dates := make([]string, 0, len(series))
		for d := range series {
			if (start == "" || d >= start) && (end == "" || d <= end) {
				dates = append(dates, d)
			}
		}
		sort.Strings(dates)

		items := make([]map[string]any, 0, len(dates))
		for _, d := range dates {
			items = append(items, map[string]any{
				"date":  d + "T00:00:00+00:00",
				"value": series[d],
			})
		}

		offset, _ := strconv.Atoi(q.Get("offset"))
		WriteJSON(w, http.StatusOK, m.page(r, "items", items, offset, pageSize))
	})
}

func (m *MockAPI) page(r *http.Request, listingKey string, items []map[string]any, offset, pageSize int) map[string]any {
	if pageSize <= 0 {
		pageSize = 100
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + pageSize
	if end > len(items) {
		end = len(items)
	}

	var next any
	if end < len(items) {
		next = fmt.Sprintf("%s%s?offset=%d&limit=%d", m.server.URL, r.URL.EscapedPath(), end, pageSize)
	}

	return map[string]any{
		listingKey: items[offset:end],
		"page": map[string]any{
			"offset": offset,
			"total":  len(items),
			"next":   next,
		},
		"errors": []any{},
	}
}

// WriteJSON writes body as JSON with a default quota header.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	if w.Header().Get("X-Quota-Remaining") == "" {
		w.Header().Set("X-Quota-Remaining", DefaultQuota)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// NewErrorResponse creates an error response with one error descriptor.
func NewErrorResponse(status, code int, message string) MockResponse {
	body, _ := json.Marshal(map[string]any{
		"errors": []map[string]any{{"code": code, "message": message}},
	})
	return MockResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 response with an unparseable body.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "<html>upstream failure</html>",
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return NewErrorResponse(http.StatusTooManyRequests, 429, "Too many requests")
}

// Items builds n listing items with sequential ids.
func Items(n int) []map[string]any {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{"uuid": fmt.Sprintf("item-%03d", i), "position": i + 1}
	}
	return items
}

// DailyValues builds a series with one value per calendar day in
// [start, end] (YYYY-MM-DD), the value being the day's index.
func DailyValues(start, end string) map[string]any {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		panic(err)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		panic(err)
	}

	series := make(map[string]any)
	for i, d := 0, s; !d.After(e); i, d = i+1, d.AddDate(0, 0, 1) {
		series[d.Format(time.DateOnly)] = 1000 + i
	}
	return series
}
