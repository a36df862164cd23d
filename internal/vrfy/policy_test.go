package vrfy

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/athena-mta/verigate/internal/table"
)

type fakeSubmitter struct {
	calls []string
	fail  bool
}

func (f *fakeSubmitter) Submit(sender, recipient string) (bool, error) {
	f.calls = append(f.calls, recipient)
	if f.fail {
		return false, nil
	}
	return true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T, cfg Config, sub ProbeSubmitter, now *int64) *Cache {
	t.Helper()
	tbl := table.NewMemTable(table.FlagReadWrite)
	clock := func() time.Time { return time.Unix(*now, 0) }
	return NewCache(tbl, cfg, sub, clock, testLogger())
}

// Scenario 1: cold query at t=100 with negative caching on.
func TestScenarioColdQuery(t *testing.T) {
	now := int64(100)
	sub := &fakeSubmitter{}
	cfg := Config{
		PositiveExpire: time.Hour, PositiveRefresh: time.Hour,
		NegativeExpire: time.Hour, NegativeRefresh: time.Hour,
		NegativeCache: true, ProbeTTL: 1000 * time.Second, Sender: "",
	}
	c := newTestCache(t, cfg, sub, &now)

	status, text := c.Query("u@x")
	if status != StatusTodo {
		t.Fatalf("status = %v, want TODO", status)
	}
	if text != "Address verification in progress" {
		t.Fatalf("text = %q", text)
	}
	if len(sub.calls) != 1 || sub.calls[0] != "u@x" {
		t.Fatalf("submitter calls = %v, want one call for u@x", sub.calls)
	}

	raw, res := c.table.Get("u@x")
	if res != table.ResultOK {
		t.Fatalf("expected entry persisted with negative caching on")
	}
	e, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Entry{Status: StatusTodo, Probed: 100, Updated: 0, Text: "Address verification in progress"}
	if e != want {
		t.Fatalf("stored entry = %+v, want %+v", e, want)
	}
}

// Scenario 1 variant: negative caching off means no entry persists.
func TestScenarioColdQueryNegativeCacheOff(t *testing.T) {
	now := int64(100)
	sub := &fakeSubmitter{}
	cfg := Config{
		PositiveExpire: time.Hour, PositiveRefresh: time.Hour,
		NegativeExpire: time.Hour, NegativeRefresh: time.Hour,
		NegativeCache: false, ProbeTTL: 1000 * time.Second,
	}
	c := newTestCache(t, cfg, sub, &now)

	status, _ := c.Query("u@x")
	if status != StatusTodo {
		t.Fatalf("status = %v, want TODO", status)
	}
	if _, res := c.table.Get("u@x"); res != table.ResultNoKey {
		t.Fatalf("expected no entry persisted with negative caching off")
	}
}

// Scenario 2: probe result applied.
func TestScenarioProbeResultApplied(t *testing.T) {
	now := int64(100)
	sub := &fakeSubmitter{}
	cfg := Config{
		PositiveExpire: time.Hour, PositiveRefresh: time.Hour,
		NegativeExpire: time.Hour, NegativeRefresh: time.Hour,
		NegativeCache: true, ProbeTTL: 1000 * time.Second,
	}
	c := newTestCache(t, cfg, sub, &now)
	c.Query("u@x")

	now = 110
	result := c.Update("u@x", StatusOK, "250 ok")
	if result != UpdateApplied {
		t.Fatalf("Update result = %v, want applied", result)
	}

	raw, _ := c.table.Get("u@x")
	e, _ := Parse(raw)
	want := Entry{Status: StatusOK, Probed: 0, Updated: 110, Text: "250 ok"}
	if e != want {
		t.Fatalf("stored entry = %+v, want %+v", e, want)
	}
}

// Scenario 3: sticky OK, protective update rule.
func TestScenarioStickyOK(t *testing.T) {
	now := int64(100)
	sub := &fakeSubmitter{}
	cfg := Config{
		PositiveExpire: time.Hour, PositiveRefresh: time.Hour,
		NegativeExpire: time.Hour, NegativeRefresh: time.Hour,
		NegativeCache: true, ProbeTTL: 1000 * time.Second,
	}
	c := newTestCache(t, cfg, sub, &now)
	c.Query("u@x")
	now = 110
	c.Update("u@x", StatusOK, "250 ok")

	now = 120
	result := c.Update("u@x", StatusDefer, "451 try later")
	if result != UpdateProtected {
		t.Fatalf("Update result = %v, want protected", result)
	}

	raw, _ := c.table.Get("u@x")
	e, _ := Parse(raw)
	want := Entry{Status: StatusOK, Probed: 0, Updated: 110, Text: "250 ok"}
	if e != want {
		t.Fatalf("entry changed by protected update: got %+v, want %+v", e, want)
	}
}

// Scenario 4: positive refresh.
func TestScenarioPositiveRefresh(t *testing.T) {
	now := int64(100)
	sub := &fakeSubmitter{}
	cfg := Config{
		PositiveExpire: 100000 * time.Second, PositiveRefresh: 3600 * time.Second,
		NegativeExpire: time.Hour, NegativeRefresh: time.Hour,
		NegativeCache: true, ProbeTTL: 1000 * time.Second,
	}
	c := newTestCache(t, cfg, sub, &now)
	c.Query("u@x")
	now = 110
	c.Update("u@x", StatusOK, "250 ok")

	now = 4000
	status, text := c.Query("u@x")
	if status != StatusOK || text != "250 ok" {
		t.Fatalf("Query = (%v, %q), want (OK, \"250 ok\")", status, text)
	}
	if len(sub.calls) != 2 {
		t.Fatalf("submitter called %d times, want 2 (cold + refresh)", len(sub.calls))
	}

	raw, _ := c.table.Get("u@x")
	e, _ := Parse(raw)
	want := Entry{Status: StatusOK, Probed: 4000, Updated: 110, Text: "250 ok"}
	if e != want {
		t.Fatalf("stored entry = %+v, want %+v", e, want)
	}
}

// Property 3 / law 5: a second QUERY within PROBE_TTL does not re-probe.
func TestRefreshBoundNoSecondProbeWithinTTL(t *testing.T) {
	now := int64(100)
	sub := &fakeSubmitter{}
	cfg := Config{
		PositiveExpire: time.Hour, PositiveRefresh: time.Hour,
		NegativeExpire: time.Hour, NegativeRefresh: time.Hour,
		NegativeCache: true, ProbeTTL: 1000 * time.Second,
	}
	c := newTestCache(t, cfg, sub, &now)

	status1, _ := c.Query("u@x")
	now = 150
	status2, _ := c.Query("u@x")

	if status1 != StatusTodo || status2 != StatusTodo {
		t.Fatalf("statuses = (%v, %v), want (TODO, TODO)", status1, status2)
	}
	if len(sub.calls) != 1 {
		t.Fatalf("submitter called %d times within PROBE_TTL, want 1", len(sub.calls))
	}
}

// Law 1 (protective update idempotence): any sequence of non-OK updates
// against a stored OK entry leaves it unchanged.
func TestProtectiveUpdateIdempotence(t *testing.T) {
	now := int64(0)
	sub := &fakeSubmitter{}
	cfg := Config{
		PositiveExpire: time.Hour, PositiveRefresh: time.Hour,
		NegativeExpire: time.Hour, NegativeRefresh: time.Hour,
		NegativeCache: true, ProbeTTL: 1000 * time.Second,
	}
	c := newTestCache(t, cfg, sub, &now)
	c.Update("u@x", StatusOK, "250 ok")

	for i, s := range []Status{StatusDefer, StatusBounce, StatusDefer} {
		now = int64(i + 1)
		if r := c.Update("u@x", s, "failure"); r != UpdateProtected {
			t.Fatalf("Update #%d result = %v, want protected", i, r)
		}
	}

	raw, _ := c.table.Get("u@x")
	e, _ := Parse(raw)
	want := Entry{Status: StatusOK, Probed: 0, Updated: 0, Text: "250 ok"}
	if e != want {
		t.Fatalf("entry = %+v, want %+v", e, want)
	}
}

func TestUpdateRejectsTodo(t *testing.T) {
	now := int64(0)
	c := newTestCache(t, Config{ProbeTTL: time.Second}, &fakeSubmitter{}, &now)
	if r := c.Update("u@x", StatusTodo, "n/a"); r != UpdateBad {
		t.Fatalf("Update(TODO) = %v, want bad", r)
	}
}

func TestSubmitFailureYieldsNoWriteback(t *testing.T) {
	now := int64(100)
	sub := &fakeSubmitter{fail: true}
	cfg := Config{
		PositiveExpire: time.Hour, PositiveRefresh: time.Hour,
		NegativeExpire: time.Hour, NegativeRefresh: time.Hour,
		NegativeCache: true, ProbeTTL: 1000 * time.Second,
	}
	c := newTestCache(t, cfg, sub, &now)
	c.Query("u@x")

	if _, res := c.table.Get("u@x"); res != table.ResultNoKey {
		t.Fatalf("expected no write-back when probe submission fails")
	}
}
