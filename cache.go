package ledgerxgo

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AggregateCache owns the two running-total maps derived from the ledger:
// total amount per user and total amount per transaction type. Each map is
// built lazily from a full scan on first read and adjusted incrementally on
// every committed write. A map is never partially rebuilt; it is either
// complete as of the last observed commit, or absent.
//
// The two maps are independent synchronization domains; contention on one
// never blocks the other.
type AggregateCache struct {
	repo Repository
	log  *zerolog.Logger

	byUser totalsSlot[snowflake.ID]
	byType totalsSlot[string]
}

func NewAggregateCache(repo Repository, log *zerolog.Logger) *AggregateCache {
	return &AggregateCache{
		repo: repo,
		log:  log,
	}
}

// TotalsByUser returns a snapshot of per-user totals, scanning the ledger
// first if the map is cold.
func (c *AggregateCache) TotalsByUser() (map[snowflake.ID]decimal.Decimal, error) {
	return c.byUser.getOrBuild(func() (map[snowflake.ID]decimal.Decimal, error) {
		txns, err := c.repo.AllTransactions()
		if err != nil {
			return nil, err
		}
		totals := make(map[snowflake.ID]decimal.Decimal)
		for _, t := range txns {
			totals[t.UserID] = totals[t.UserID].Add(t.Amount)
		}
		cacheRebuilds.WithLabelValues("by_user").Inc()
		c.log.Info().
			Str("aggregate", "by_user").
			Int("records", len(txns)).
			Int("keys", len(totals)).
			Msg("aggregate map rebuilt")
		return totals, nil
	})
}

// TotalsByType returns a snapshot of per-type totals keyed by the type's
// canonical string form.
func (c *AggregateCache) TotalsByType() (map[string]decimal.Decimal, error) {
	return c.byType.getOrBuild(func() (map[string]decimal.Decimal, error) {
		txns, err := c.repo.AllTransactions()
		if err != nil {
			return nil, err
		}
		totals := make(map[string]decimal.Decimal)
		for _, t := range txns {
			totals[t.Type.String()] = totals[t.Type.String()].Add(t.Amount)
		}
		cacheRebuilds.WithLabelValues("by_type").Inc()
		c.log.Info().
			Str("aggregate", "by_type").
			Int("records", len(txns)).
			Int("keys", len(totals)).
			Msg("aggregate map rebuilt")
		return totals, nil
	})
}

// AddUserDelta folds one committed amount into the per-user map. A cold map
// is left untouched; the next read rebuilds from the ledger, which already
// contains the committed row.
func (c *AggregateCache) AddUserDelta(id snowflake.ID, amount decimal.Decimal) {
	if c.byUser.addDelta(id, amount) {
		cacheDeltas.WithLabelValues("by_user").Inc()
	}
}

func (c *AggregateCache) AddTypeDelta(typ string, amount decimal.Decimal) {
	if c.byType.addDelta(typ, amount) {
		cacheDeltas.WithLabelValues("by_type").Inc()
	}
}

// Invalidate drops both maps back to cold so the next read rescans the
// ledger. The cache never calls this itself; see cmd/server for the optional
// refresh ticker.
func (c *AggregateCache) Invalidate() {
	c.byUser.invalidate()
	c.byType.invalidate()
}

// totalsSlot guards one aggregate map. nil means cold. Holding the mutex
// across the rebuild scan is deliberate: it is the only I/O ever done under
// a cache lock and it is what bounds concurrent rebuilds to one per slot.
type totalsSlot[K comparable] struct {
	mu sync.Mutex
	m  map[K]decimal.Decimal
}

func (s *totalsSlot[K]) getOrBuild(build func() (map[K]decimal.Decimal, error)) (map[K]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.m == nil {
		m, err := build()
		if err != nil {
			return nil, err
		}
		s.m = m
	}

	// Readers get a snapshot so later deltas cannot race their iteration.
	snap := make(map[K]decimal.Decimal, len(s.m))
	for k, v := range s.m {
		snap[k] = v
	}
	return snap, nil
}

func (s *totalsSlot[K]) addDelta(key K, amount decimal.Decimal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.m == nil {
		return false
	}
	s.m[key] = s.m[key].Add(amount)
	return true
}

func (s *totalsSlot[K]) invalidate() {
	s.mu.Lock()
	s.m = nil
	s.mu.Unlock()
}
