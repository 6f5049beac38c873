package tariffcache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/metrics"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

const DefaultCapacity = 4096

// key identifies one memoizable bucket resolution. Version and content
// signature both participate so an entry can never serve a structure other
// than the exact one it was computed from; publishing a new version changes
// the key and strands the old entries until the LRU sweeps them out.
type key struct {
	planID    string
	version   uint64
	signature string
	month     time.Month
	weekday   time.Weekday
	hour      int
}

func (k key) String() string {
	return fmt.Sprintf("%s|%d|%s|%d|%d|%d", k.planID, k.version, k.signature, k.month, k.weekday, k.hour)
}

type entry struct {
	k key
	v tariff.BucketRate
}

var resolveBucketFn = tariff.ResolveBucket

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
}

// Cache memoizes bucket rate resolutions behind a bounded LRU. Only the
// bucket-dependent part of pricing is ever cached; tier arithmetic depends
// on cumulative usage and is recomputed for every event. Concurrent misses
// on the same bucket collapse into a single resolution.
type Cache struct {
	capacity int

	mu        sync.Mutex
	ll        *list.List
	items     map[key]*list.Element
	hits      uint64
	misses    uint64
	evictions uint64

	group singleflight.Group

	log zerolog.Logger
}

func New(capacity int, logger zerolog.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[key]*list.Element),
		log:      logger.With().Str("component", "tariffcache").Logger(),
	}
}

// Resolve returns the bucket rate for the event timestamp under the given
// structure, consulting the cache first. The result is always equal to
// what tariff.ResolveBucket would compute directly.
func (c *Cache) Resolve(rs *tariff.RateStructure, ts time.Time) tariff.BucketRate {
	k := key{
		planID:    rs.PlanID,
		version:   rs.Version,
		signature: rs.Signature(),
		month:     ts.Month(),
		weekday:   ts.Weekday(),
		hour:      ts.Hour(),
	}

	if v, ok := c.lookup(k); ok {
		c.count(&c.hits)
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return v
	}
	c.count(&c.misses)
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	v, _, shared := c.group.Do(k.String(), func() (any, error) {
		// A flight that completed between our miss and this call may
		// already have filled the entry.
		if v, ok := c.lookup(k); ok {
			return v, nil
		}
		br := resolveBucketFn(rs, ts)
		c.add(k, br)
		return br, nil
	})
	if shared {
		metrics.CacheSharedResolvesTotal.Inc()
	}
	return v.(tariff.BucketRate)
}

// Price prices a consumption event through the cache. It is the memoized
// equivalent of tariff.Price and advances the period state the same way.
func (c *Cache) Price(rs *tariff.RateStructure, ev tariff.ConsumptionEvent, st *tariff.PeriodState) (tariff.PriceBreakdown, error) {
	return tariff.PriceWithBucket(rs, ev, st, c.Resolve(rs, ev.Timestamp))
}

func (c *Cache) count(counter *uint64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

func (c *Cache) lookup(k key) (tariff.BucketRate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[k]
	if !ok {
		return tariff.BucketRate{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).v, true
}

func (c *Cache) add(k key, v tariff.BucketRate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[k]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*entry).v = v
		return
	}
	c.items[k] = c.ll.PushFront(&entry{k: k, v: v})
	for c.ll.Len() > c.capacity {
		c.evictOldestLocked()
	}
	metrics.CacheEntries.Set(float64(c.ll.Len()))
}

func (c *Cache) evictOldestLocked() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).k)
	c.evictions++
	metrics.CacheEvictionsTotal.Inc()
}

// Flush drops every entry. Stats counters survive a flush.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[key]*list.Element)
	metrics.CacheEntries.Set(0)
	c.log.Debug().Msg("tariff cache flushed")
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   c.ll.Len(),
		Capacity:  c.capacity,
	}
}
