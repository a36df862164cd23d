package vrfy

import (
	"log/slog"
	"sync"
	"time"

	"github.com/athena-mta/verigate/internal/metrics"
	"github.com/athena-mta/verigate/internal/table"
)

// ProbeSubmitter is the outbound probe submission path: the cache policy
// calls out to it and only distinguishes queued from could-not-queue.
type ProbeSubmitter interface {
	Submit(sender, recipient string) (ok bool, err error)
}

// Config holds the cache policy's tunables.
type Config struct {
	PositiveExpire  time.Duration
	PositiveRefresh time.Duration
	NegativeExpire  time.Duration
	NegativeRefresh time.Duration
	NegativeCache   bool
	ProbeTTL        time.Duration
	Sender          string
}

// Cache is the verification cache policy engine. It is process-wide state
// passed explicitly to request handlers, rather than referenced through
// package-level globals.
type Cache struct {
	// mu serializes Query/Update so the read-modify-write of a single
	// address is indivisible even though the accept loop runs one goroutine
	// per connection.
	mu        sync.Mutex
	table     table.Table
	cfg       Config
	submitter ProbeSubmitter
	clock     func() time.Time
	logger    *slog.Logger
}

// NewCache constructs a cache policy over an already-open backing table.
func NewCache(t table.Table, cfg Config, submitter ProbeSubmitter, clock func() time.Time, logger *slog.Logger) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{table: t, cfg: cfg, submitter: submitter, clock: clock, logger: logger}
}

// SetConfig swaps the policy's tunables, used on a SIGHUP configuration
// reload.
func (c *Cache) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

func (c *Cache) now() int64 {
	return c.clock().Unix()
}

// fetch loads and parses the stored entry for addr. A missing key and a
// parse failure both report ok=false; both are treated as "missing".
func (c *Cache) fetch(addr string) (entry Entry, ok bool) {
	raw, res := c.table.Get(addr)
	if res != table.ResultOK {
		return Entry{}, false
	}
	e, err := Parse(raw)
	if err != nil {
		metrics.VrfyParseFailures.Inc()
		c.logger.Warn("discarding unparseable verify cache entry", "address", addr, "error", err)
		return Entry{}, false
	}
	return e, true
}

// Query implements the QUERY path.
func (c *Cache) Query(addr string) (status Status, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	stored, existed := c.fetch(addr)

	stale := false
	if existed {
		stale = probeGateOpen(stored.Probed, now, c.cfg.ProbeTTL) && isExpired(stored, c.cfg, now)
	}

	working := stored
	if !existed || stale {
		// The delete-on-miss check and the suppress-TODO-persistence check
		// below share a condition but are evaluated as two separate steps
		// in this order; do not merge them.
		if existed && !c.cfg.NegativeCache {
			if err := c.table.Del(addr); err != nil {
				c.logger.Warn("deleting stale verify cache entry", "address", addr, "error", err)
			}
		}
		working = Entry{Status: StatusTodo, Probed: 0, Updated: 0, Text: "Address verification in progress"}
	}

	metrics.VrfyQueries.WithLabelValues(working.Status.String()).Inc()

	refreshNeeded := probeGateOpen(working.Probed, now, c.cfg.ProbeTTL) && isRefreshDue(working, c.cfg, now)

	if refreshNeeded {
		ok, err := c.submitProbe(addr)
		if err != nil {
			c.logger.Warn("submitting verification probe", "address", addr, "error", err)
		}
		if ok {
			if working.Updated != 0 || c.cfg.NegativeCache {
				toWrite := Entry{Status: working.Status, Probed: now, Updated: working.Updated, Text: working.Text}
				if err := c.table.Put(addr, toWrite.Serialize()); err != nil {
					c.logger.Error("writing back probe timestamp", "address", addr, "error", err)
				}
			}
		}
	}

	return working.Status, working.Text
}

// probeGateOpen implements the PROBE_TTL gate: probed==0 means no probe is
// outstanding, so the gate is trivially open regardless of elapsed time;
// otherwise a probe may only be sent again once PROBE_TTL seconds have
// passed since the last one went out.
func probeGateOpen(probed, now int64, ttl time.Duration) bool {
	if probed == 0 {
		return true
	}
	return now-probed > int64(ttl/time.Second)
}

// isExpired reports whether the stored entry's status-appropriate expiry
// threshold has passed.
func isExpired(e Entry, cfg Config, now int64) bool {
	if e.Status == StatusOK {
		return e.Updated+int64(cfg.PositiveExpire/time.Second) < now
	}
	return e.Updated+int64(cfg.NegativeExpire/time.Second) < now
}

// isRefreshDue reports whether the stored entry's status-appropriate
// refresh threshold has passed. Updated==0 means no result has ever been
// applied (a fresh TODO placeholder just created by a cold or stale
// QUERY), which is unconditionally refresh-due: there is nothing to
// refresh toward except the very first probe.
func isRefreshDue(e Entry, cfg Config, now int64) bool {
	if e.Updated == 0 {
		return true
	}
	if e.Status == StatusOK {
		return e.Updated+int64(cfg.PositiveRefresh/time.Second) < now
	}
	return e.Updated+int64(cfg.NegativeRefresh/time.Second) < now
}

func (c *Cache) submitProbe(addr string) (bool, error) {
	ok, err := c.submitter.Submit(c.cfg.Sender, addr)
	if ok {
		metrics.VrfyProbesSubmitted.WithLabelValues("queued").Inc()
	} else {
		metrics.VrfyProbesSubmitted.WithLabelValues("failed").Inc()
	}
	return ok, err
}

// UpdateResult distinguishes the three UPDATE outcomes for metrics and
// tests.
type UpdateResult int

const (
	UpdateApplied UpdateResult = iota
	UpdateProtected
	UpdateBad
)

// Update implements the UPDATE path.
func (c *Cache) Update(addr string, status Status, text string) UpdateResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if status != StatusOK && status != StatusDefer && status != StatusBounce {
		metrics.VrfyUpdates.WithLabelValues("bad").Inc()
		return UpdateBad
	}

	if status != StatusOK {
		if raw, res := c.table.Get(addr); res == table.ResultOK {
			if peeked, ok := PeekStatus(raw); ok && peeked == StatusOK {
				// Protective update rule: a negative result can never
				// overwrite a positive entry. The full record doesn't need
				// parsing just to compare its status.
				metrics.VrfyUpdates.WithLabelValues("protected").Inc()
				return UpdateProtected
			}
		}
	}

	e := Entry{Status: status, Probed: 0, Updated: c.now(), Text: text}
	if err := c.table.Put(addr, e.Serialize()); err != nil {
		c.logger.Error("writing verify cache update", "address", addr, "error", err)
		metrics.VrfyUpdates.WithLabelValues("bad").Inc()
		return UpdateBad
	}
	metrics.VrfyUpdates.WithLabelValues("applied").Inc()
	return UpdateApplied
}
