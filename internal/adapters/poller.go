package adapters

import (
	"context"
	"sync/atomic"
	"time"

	logger "github.com/sirupsen/logrus"
)

const pollInterval = 5 * time.Second

// Poller periodically calls fetch and records whether it succeeded. fetch
// returns only an error: delivering any executions it finds is up to fetch
// itself. Adapters fall back to this when a platform has no push stream or
// its stream transport exhausts its reconnect attempts.
type Poller struct {
	name   string
	cancel context.CancelFunc

	// healthy reflects whether the most recent fetch succeeded, so a
	// caller can ask isConnected() without issuing its own network round
	// trip. Starts true: a freshly started poller hasn't failed yet.
	healthy atomic.Bool
}

// NewPoller starts a background polling loop that calls fetch every
// pollInterval (5s) and returns a handle that stops it.
func NewPoller(ctx context.Context, name string, fetch func(context.Context) error) *Poller {
	pctx, cancel := context.WithCancel(ctx)
	p := &Poller{name: name, cancel: cancel}
	p.healthy.Store(true)

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pctx.Done():
				return
			case <-ticker.C:
				if err := fetch(pctx); err != nil {
					p.healthy.Store(false)
					logger.WithField("adapter", name).WithError(err).
						Warn("poll fallback fetch failed, will retry next tick")
				} else {
					p.healthy.Store(true)
				}
			}
		}
	}()

	return p
}

// Healthy reports whether the poller's most recent fetch succeeded, used as
// the lightweight socket-health signal behind isConnected().
func (p *Poller) Healthy() bool { return p.healthy.Load() }

// Stop ends the polling loop.
func (p *Poller) Stop() {
	p.cancel()
}
