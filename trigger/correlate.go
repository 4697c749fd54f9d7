package trigger

import "sort"

// ringEntry is one observed frame in the rolling time window.
type ringEntry struct {
	ts   float64
	id   uint32
	data []byte
}

// BitKey addresses one bit of one byte of one arbitration id.
type BitKey struct {
	ID   uint32
	Byte int
	Bit  int
}

// Counters are the per-run frequency tables: how often an id appeared
// around an event, and how often a specific bit rose around an event. They
// only ever grow during a run and start fresh with the next one.
type Counters struct {
	IDHits  map[uint32]int
	BitHits map[BitKey]int
}

func NewCounters() *Counters {
	return &Counters{
		IDHits:  make(map[uint32]int),
		BitHits: make(map[BitKey]int),
	}
}

// Pre/post event correlation windows.
const (
	ringWindowSeconds = 5.0
	preWindowSeconds  = 0.300
	postWindowSeconds = 0.050
)

// recordEvent correlates the ring buffer contents with an event at tEvent.
//
// For every id, the "before" snapshot is its last frame strictly before the
// pre-window. Every frame inside [tEvent-pre, tEvent+post] marks its id as
// seen (counted once per event); when a before snapshot of equal length
// exists, each 0-to-1 bit transition against it increments that bit's
// counter.
func recordEvent(ring []ringEntry, tEvent float64, c *Counters) {
	tStart := tEvent - preWindowSeconds
	tEnd := tEvent + postWindowSeconds

	before := make(map[uint32][]byte)
	for _, e := range ring {
		if e.ts < tStart {
			before[e.id] = e.data
		}
	}

	seen := make(map[uint32]bool)
	for _, e := range ring {
		if e.ts < tStart || e.ts > tEnd {
			continue
		}
		seen[e.id] = true
		prev, ok := before[e.id]
		if !ok || len(prev) != len(e.data) {
			continue
		}
		for idx := range e.data {
			changed := prev[idx] ^ e.data[idx]
			if changed == 0 {
				continue
			}
			for bit := 0; bit < 8; bit++ {
				mask := byte(1) << bit
				if prev[idx]&mask == 0 && e.data[idx]&mask != 0 {
					c.BitHits[BitKey{ID: e.id, Byte: idx, Bit: bit}]++
				}
			}
		}
	}
	for id := range seen {
		c.IDHits[id]++
	}
}

type idCount struct {
	ID    uint32
	Count int
}

type bitCount struct {
	Key   BitKey
	Count int
}

// topIDs returns up to n ids by descending hit count; n < 0 means all.
func (c *Counters) topIDs(n int) []idCount {
	out := make([]idCount, 0, len(c.IDHits))
	for id, cnt := range c.IDHits {
		out = append(out, idCount{ID: id, Count: cnt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// topBits returns up to n bit candidates by descending hit count.
func (c *Counters) topBits(n int) []bitCount {
	out := make([]bitCount, 0, len(c.BitHits))
	for key, cnt := range c.BitHits {
		out = append(out, bitCount{Key: key, Count: cnt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		a, b := out[i].Key, out[j].Key
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Byte != b.Byte {
			return a.Byte < b.Byte
		}
		return a.Bit < b.Bit
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
