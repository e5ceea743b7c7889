package quota

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrQuotaExhausted is returned by Allow when the remaining quota is critical.
var ErrQuotaExhausted = errors.New("soundcharts: api quota exhausted")

// DefaultThrottleDelay is the pause applied to each request in the warning band.
const DefaultThrottleDelay = 1 * time.Second

// DefaultBlockDuration is how long a critical quota report blocks requests.
// Once it has passed the next request is sent and its response header
// refreshes the state.
const DefaultBlockDuration = 1 * time.Minute

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "soundcharts_quota_remaining",
		Help: "Remaining Soundcharts API call quota as last reported by the server",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soundcharts_quota_blocks_total",
		Help: "Total number of requests blocked because the quota was critical",
	})

	quotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soundcharts_quota_throttles_total",
		Help: "Total number of requests throttled because the quota was low",
	})
)

// Tracker monitors the API quota and gates requests.
type Tracker struct {
	store         Store
	logger        zerolog.Logger
	throttleDelay time.Duration
	blockDuration time.Duration
}

// NewTracker creates a tracker. A nil store means a fresh MemoryStore.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:         store,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
		blockDuration: DefaultBlockDuration,
	}
}

// SetThrottleDelay overrides the warning-band pause (0 disables it).
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// SetBlockDuration overrides how long a critical report blocks requests.
func (t *Tracker) SetBlockDuration(d time.Duration) {
	t.blockDuration = d
}

// State returns the current quota state.
func (t *Tracker) State(ctx context.Context) (*State, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load quota state: %w", err)
	}
	return state, nil
}

// UpdateFromHeaders records the x-quota-remaining header of a response.
// Responses without the header leave the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	state := &State{
		Remaining:  remain,
		LastUpdate: time.Now(),
	}
	state.UpdateHealth()

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}

	quotaRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().Int("quota_remaining", remain).Msg("Quota CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().Int("quota_remaining", remain).Msg("Quota WARNING - requests will be throttled")
	default:
		t.logger.Info().Int("quota_remaining", remain).Msg("Quota remaining")
	}

	return nil
}

// Allow checks whether a request may be sent. It returns ErrQuotaExhausted
// while a critical report is younger than the block duration and sleeps for the
// throttle delay in the warning band. A critical report older than the block
// duration lets the request through so the server can report a new quota.
func (t *Tracker) Allow(ctx context.Context) error {
	state, err := t.State(ctx)
	if err != nil {
		return err
	}

	if state.NeedsCriticalBlock() {
		if state.IsStale(t.blockDuration) {
			t.logger.Warn().
				Int("quota_remaining", state.Remaining).
				Time("last_update", state.LastUpdate).
				Msg("Quota critical report expired - sending request to refresh it")
			return nil
		}

		t.logger.Error().
			Int("quota_remaining", state.Remaining).
			Msg("Quota critical - blocking request")
		quotaBlocksTotal.Inc()
		return ErrQuotaExhausted
	}

	if state.NeedsThrottling() && t.throttleDelay > 0 {
		t.logger.Warn().
			Int("quota_remaining", state.Remaining).
			Dur("delay", t.throttleDelay).
			Msg("Quota warning - throttling request")
		quotaThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.throttleDelay):
		}
	}

	return nil
}
