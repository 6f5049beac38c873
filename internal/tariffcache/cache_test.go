package tariffcache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func testPlan(t *testing.T) *tariff.RateStructure {
	t.Helper()
	upper := mustDec(t, "500")
	peak := mustDec(t, "1.5")
	return &tariff.RateStructure{
		PlanID:        "res-basic",
		Currency:      "USD",
		EffectiveFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		Version:       1,
		Tiers: []tariff.Tier{
			{LowerKWh: decimal.Zero, UpperKWh: &upper, RatePerKWh: mustDec(t, "3.00")},
			{LowerKWh: upper, RatePerKWh: mustDec(t, "5.00")},
		},
		TOUWindows: []tariff.TOUWindow{
			{Label: "peak", StartHour: 17, EndHour: 21, Multiplier: &peak, Priority: 1},
		},
		SeasonalMultipliers: map[time.Month]decimal.Decimal{
			time.July: mustDec(t, "1.2"),
		},
	}
}

func TestCachedPricingMatchesDirect(t *testing.T) {
	rs := testPlan(t)
	c := New(64, zerolog.Nop())

	timestamps := []time.Time{
		time.Date(2025, time.March, 3, 8, 15, 0, 0, time.UTC),
		time.Date(2025, time.March, 3, 18, 0, 0, 0, time.UTC),
		time.Date(2025, time.July, 12, 18, 45, 0, 0, time.UTC),
		time.Date(2025, time.July, 12, 2, 0, 0, 0, time.UTC),
	}

	direct := &tariff.PeriodState{}
	cached := &tariff.PeriodState{}
	for _, ts := range timestamps {
		ev := tariff.ConsumptionEvent{Timestamp: ts, QuantityKWh: mustDec(t, "180")}

		want, err := tariff.Price(rs, ev, direct)
		if err != nil {
			t.Fatalf("direct Price: %v", err)
		}
		got, err := c.Price(rs, ev, cached)
		if err != nil {
			t.Fatalf("cached Price: %v", err)
		}
		if !want.EnergyCost.Equal(got.EnergyCost) {
			t.Errorf("%s: cached cost %s, direct cost %s", ts.Format(time.RFC3339), got.EnergyCost, want.EnergyCost)
		}
		if want.WindowLabel != got.WindowLabel {
			t.Errorf("%s: cached window %q, direct window %q", ts.Format(time.RFC3339), got.WindowLabel, want.WindowLabel)
		}
	}
	if !direct.CumulativeKWh.Equal(cached.CumulativeKWh) {
		t.Errorf("period states diverged: %s vs %s", direct.CumulativeKWh, cached.CumulativeKWh)
	}
}

func TestResolveHitsSameBucket(t *testing.T) {
	rs := testPlan(t)
	c := New(64, zerolog.Nop())

	// Same (month, weekday, hour) bucket, different minutes.
	a := time.Date(2025, time.March, 3, 18, 5, 0, 0, time.UTC)
	b := time.Date(2025, time.March, 3, 18, 55, 0, 0, time.UTC)

	c.Resolve(rs, a)
	c.Resolve(rs, b)

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", st)
	}
	if st.Entries != 1 {
		t.Errorf("entries = %d, want 1", st.Entries)
	}
}

func TestVersionBumpInvalidates(t *testing.T) {
	rs := testPlan(t)
	c := New(64, zerolog.Nop())
	ts := time.Date(2025, time.March, 3, 18, 0, 0, 0, time.UTC)

	before := c.Resolve(rs, ts)
	if before.WindowLabel != "peak" {
		t.Fatalf("window = %q, want peak", before.WindowLabel)
	}

	// A republished structure carries a new version and different windows.
	updated := testPlan(t)
	updated.Version = 2
	updated.TOUWindows = nil

	after := c.Resolve(updated, ts)
	if after.WindowIndex != -1 {
		t.Errorf("new version served the old window %q", after.WindowLabel)
	}
	if c.Len() != 2 {
		t.Errorf("cache holds %d entries, want 2 (old version strands, not overwritten)", c.Len())
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	rs := testPlan(t)
	c := New(2, zerolog.Nop())

	hours := []int{8, 9, 10}
	for _, h := range hours {
		c.Resolve(rs, time.Date(2025, time.March, 3, h, 0, 0, 0, time.UTC))
	}
	if c.Len() != 2 {
		t.Fatalf("cache holds %d entries, want capacity 2", c.Len())
	}
	if ev := c.Stats().Evictions; ev != 1 {
		t.Errorf("evictions = %d, want 1", ev)
	}

	// The 8 o'clock bucket was the oldest; resolving it again is a miss.
	missesBefore := c.Stats().Misses
	c.Resolve(rs, time.Date(2025, time.March, 3, 8, 30, 0, 0, time.UTC))
	if got := c.Stats().Misses; got != missesBefore+1 {
		t.Errorf("misses = %d, want %d", got, missesBefore+1)
	}
}

func TestConcurrentMissesCollapse(t *testing.T) {
	rs := testPlan(t)
	c := New(64, zerolog.Nop())

	var calls atomic.Int64
	orig := resolveBucketFn
	resolveBucketFn = func(rs *tariff.RateStructure, ts time.Time) tariff.BucketRate {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return orig(rs, ts)
	}
	defer func() { resolveBucketFn = orig }()

	ts := time.Date(2025, time.July, 12, 18, 0, 0, 0, time.UTC)
	const workers = 16

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]tariff.BucketRate, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = c.Resolve(rs, ts)
		}(i)
	}
	close(start)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("resolution ran %d times for one bucket, want 1", got)
	}
	for i, br := range results {
		if br.WindowLabel != "peak" {
			t.Errorf("worker %d got window %q, want peak", i, br.WindowLabel)
		}
		if !br.SeasonalMultiplier.Equal(mustDec(t, "1.2")) {
			t.Errorf("worker %d got seasonal %s, want 1.2", i, br.SeasonalMultiplier)
		}
	}
}

func TestFlush(t *testing.T) {
	rs := testPlan(t)
	c := New(64, zerolog.Nop())

	c.Resolve(rs, time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC))
	c.Resolve(rs, time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))
	if c.Len() != 2 {
		t.Fatalf("entries = %d, want 2", c.Len())
	}

	c.Flush()
	if c.Len() != 0 {
		t.Errorf("entries after flush = %d, want 0", c.Len())
	}
	if st := c.Stats(); st.Misses != 2 {
		t.Errorf("flush reset the counters: %+v", st)
	}
}
