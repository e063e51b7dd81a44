package cart

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultMemoEntries = 1024

// Memo caches snapshots by a fingerprint of the aggregation inputs. Any change
// to either item collection or the rules yields a new fingerprint.
type Memo struct {
	mu      sync.Mutex
	max     int
	entries map[uint64]Snapshot
	hits    uint64
	misses  uint64
}

func NewMemo(maxEntries int) *Memo {
	if maxEntries <= 0 {
		maxEntries = defaultMemoEntries
	}
	return &Memo{max: maxEntries, entries: make(map[uint64]Snapshot, maxEntries)}
}

// Aggregate returns the memoized snapshot for the inputs, computing it on a miss.
func (m *Memo) Aggregate(items []Item, custom []CustomItem, rules Rules) Snapshot {
	if m == nil {
		return Aggregate(items, custom, rules)
	}
	key := Fingerprint(items, custom, rules)

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap, ok := m.entries[key]; ok {
		m.hits++
		return snap
	}
	m.misses++
	snap := Aggregate(items, custom, rules)
	if len(m.entries) >= m.max {
		clear(m.entries)
	}
	m.entries[key] = snap
	return snap
}

// Stats returns hit and miss counts.
func (m *Memo) Stats() (hits, misses uint64) {
	if m == nil {
		return 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

// Fingerprint hashes every input that affects the snapshot.
func Fingerprint(items []Item, custom []CustomItem, rules Rules) uint64 {
	d := xxhash.New()
	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = d.WriteString(p)
			_, _ = d.WriteString("\x1f")
		}
		_, _ = d.WriteString("\x1e")
	}
	write("rules", rules.FreeShippingThreshold.String(), rules.FlatShippingFee.String(), rules.TaxRate.String(), rules.Currency)
	for _, item := range items {
		write("item", item.ID.String(), item.UnitPrice.String(), strconv.Itoa(item.Quantity))
	}
	for _, item := range custom {
		write("custom", item.ID.String(), item.UnitPrice.String(), strconv.Itoa(item.Quantity))
	}
	return d.Sum64()
}
