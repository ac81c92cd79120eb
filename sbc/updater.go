package sbc

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Updater pushes a number to every configured gateway host and collects
// independent per-host outcomes. The operation as a whole never fails:
// per-host failure is reported, not thrown, and one host's failure never
// blocks or rolls back the other.
type Updater struct {
	mu       sync.RWMutex
	gateways []Gateway
	cache    *StatusCache
	log      *zap.SugaredLogger
}

// NewUpdater creates an updater over the given gateway clients.
func NewUpdater(gateways []Gateway, log *zap.SugaredLogger) *Updater {
	return &Updater{
		gateways: gateways,
		cache:    NewStatusCache(),
		log:      log,
	}
}

// SetGateways swaps the gateway client list, used when configuration is
// hot-reloaded. In-flight operations keep the clients they started with.
func (u *Updater) SetGateways(gateways []Gateway) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.gateways = gateways
}

// Cache returns the advisory last-outcome cache. It is display-only and
// never consulted for correctness decisions.
func (u *Updater) Cache() *StatusCache {
	return u.cache
}

// ApplyNumber pushes the number to all hosts concurrently and returns one
// outcome per host, in target order.
func (u *Updater) ApplyNumber(ctx context.Context, number string) []Outcome {
	number = strings.ReplaceAll(number, " ", "")
	return u.fanOut(func(g Gateway) Outcome {
		return g.Push(ctx, number)
	})
}

// CurrentStatus queries every host for its configured number.
func (u *Updater) CurrentStatus(ctx context.Context) []Outcome {
	return u.fanOut(func(g Gateway) Outcome {
		return g.FetchCurrent(ctx)
	})
}

// fanOut runs op against every gateway in parallel and joins before
// returning, so a job's per-host outcomes are all captured before its
// status is finalized.
func (u *Updater) fanOut(op func(Gateway) Outcome) []Outcome {
	u.mu.RLock()
	gateways := u.gateways
	u.mu.RUnlock()

	outcomes := make([]Outcome, len(gateways))
	var wg sync.WaitGroup
	for i, g := range gateways {
		wg.Add(1)
		go func(i int, g Gateway) {
			defer wg.Done()
			outcomes[i] = op(g)
		}(i, g)
	}
	wg.Wait()

	for _, o := range outcomes {
		u.cache.Record(o)
		if u.log != nil && !o.OK() {
			u.log.Warnw("Gateway reported failure", "host", o.Host, "message", o.Message)
		}
	}

	return outcomes
}
