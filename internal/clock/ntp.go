package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"
	"github.com/rs/zerolog"

	"github.com/mrz1836/mavsign/internal/constants"
)

// queryFunc returns the offset between the local clock and server.
type queryFunc func(server string) (time.Duration, error)

// defaultQuery asks server for the current offset with a bounded timeout.
func defaultQuery(server string) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: 5 * time.Second})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// NTPClock is a Clock that corrects the system time with an offset learned
// from an NTP server.
//
// Now never touches the network; the offset is refreshed by Sync or Run.
type NTPClock struct {
	server       string
	syncInterval time.Duration
	query        queryFunc
	logger       zerolog.Logger

	offset atomic.Int64 // nanoseconds

	mu        sync.Mutex
	lastSync  time.Time
	lastError error
	backoff   time.Duration
}

// NewNTPClock creates a clock that trusts the system time until the first
// successful sync against server.
func NewNTPClock(server string, syncInterval time.Duration, logger zerolog.Logger) *NTPClock {
	if server == "" {
		server = constants.DefaultNTPServer
	}
	if syncInterval <= 0 {
		syncInterval = constants.DefaultNTPSyncInterval
	}
	return &NTPClock{
		server:       server,
		syncInterval: syncInterval,
		query:        defaultQuery,
		logger:       logger.With().Str("component", "ntp_clock").Str("server", server).Logger(),
	}
}

// Now returns the system time adjusted by the last known NTP offset.
func (c *NTPClock) Now() time.Time {
	return time.Now().Add(time.Duration(c.offset.Load()))
}

// Offset returns the correction currently applied to the system time.
func (c *NTPClock) Offset() time.Duration {
	return time.Duration(c.offset.Load())
}

// Sync queries the server once and updates the offset on success.
// A failed query keeps the previous offset.
func (c *NTPClock) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	offset, err := c.query(c.server)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastError = err
		if c.backoff == 0 {
			c.backoff = constants.NTPBackoffInitial
		} else {
			c.backoff = min(c.backoff*2, constants.NTPBackoffMax)
		}
		c.logger.Warn().Err(err).Dur("retry_in", c.backoff).Msg("ntp sync failed")
		return err
	}

	c.offset.Store(int64(offset))
	c.lastSync = time.Now()
	c.lastError = nil
	c.backoff = 0
	c.logger.Debug().Dur("offset", offset).Msg("ntp offset updated")
	return nil
}

// nextDelay is the wait before the next sync attempt.
func (c *NTPClock) nextDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backoff > 0 {
		return c.backoff
	}
	return c.syncInterval
}

// Run syncs immediately and then periodically until ctx is done.
func (c *NTPClock) Run(ctx context.Context) {
	_ = c.Sync(ctx)
	for {
		timer := time.NewTimer(c.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			_ = c.Sync(ctx)
		}
	}
}

// Health reports whether the last sync attempt succeeded, with the current
// offset, the time of the last successful sync and the last error.
func (c *NTPClock) Health() (healthy bool, offset time.Duration, lastSync time.Time, lastError error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError == nil && !c.lastSync.IsZero(), c.Offset(), c.lastSync, c.lastError
}

var _ Clock = (*NTPClock)(nil)
