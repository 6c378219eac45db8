package mosaic

import (
	"github.com/segmentio/ksuid"
)

// DedupStatus is the outcome of deduplicating a candidate tile list.
type DedupStatus int

const (
	// NothingToDo means every candidate is already cached.
	NothingToDo DedupStatus = iota
	// CreateTiles means a new batch was enqueued.
	CreateTiles
	// NoCreateButPrevOnGoing means every missing tile is already being
	// rendered by an outstanding batch.
	NoCreateButPrevOnGoing
)

func (s DedupStatus) String() string {
	switch s {
	case NothingToDo:
		return "nothing_to_do"
	case CreateTiles:
		return "create_tiles"
	case NoCreateButPrevOnGoing:
		return "prev_ongoing"
	default:
		return "unknown"
	}
}

func (s DedupStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PendingBatch is one unit of render work owned by the scheduler.
type PendingBatch struct {
	ID     string
	Tiles  []TileID
	Reused []HandleID
	Scale  int
	Flush  bool

	slots []HandleID
	done  chan struct{}
	// wanted holds tiles a synchronous request waits on. They are
	// committed visible even when the batch is a prefetch. Guarded by
	// the pool lock.
	wanted map[TileID]struct{}
}

// Done is closed once the batch has been rendered or abandoned.
func (b *PendingBatch) Done() <-chan struct{} {
	return b.done
}

// visibleOnCommit reports whether t enters the cache marked visible.
func (b *PendingBatch) visibleOnCommit(t TileID) bool {
	return !b.Flush || contains(b.wanted, t)
}

func (b *PendingBatch) want(t TileID) {
	if b.wanted == nil {
		b.wanted = make(map[TileID]struct{})
	}
	b.wanted[t] = struct{}{}
}

// ledger tracks outstanding batches. Guarded by the pool lock together with
// the tile cache so check-and-enqueue is a single critical section.
type ledger struct {
	inflight map[tileKey]*PendingBatch
	batches  int
}

func newLedger() *ledger {
	return &ledger{inflight: make(map[tileKey]*PendingBatch)}
}

func (l *ledger) outstanding(scale int, t TileID) (*PendingBatch, bool) {
	b, ok := l.inflight[tileKey{scale, t}]
	return b, ok
}

func (l *ledger) add(b *PendingBatch) {
	for _, t := range b.Tiles {
		l.inflight[tileKey{b.Scale, t}] = b
	}
	l.batches++
}

func (l *ledger) remove(b *PendingBatch) {
	for _, t := range b.Tiles {
		k := tileKey{b.Scale, t}
		if l.inflight[k] == b {
			delete(l.inflight, k)
		}
	}
	l.batches--
}

type plan struct {
	status DedupStatus
	batch  *PendingBatch
	// hits are the candidates already cached at the scale
	hits []TileID
	// waitOn lists earlier batches that render some of the candidates
	waitOn []*PendingBatch
	// evicted counts handles reclaimed for the batch
	evicted int
}

// createNewTileList partitions candidates against the cache and the ledger
// and, when genuinely new tiles remain, evicts room for them and registers
// a batch. The caller must hold the pool lock and submit plan.batch.
func createNewTileList(c *tileCache, l *ledger, scale int, candidates []TileID, flush bool) plan {
	var p plan

	seen := make(map[TileID]struct{}, len(candidates))
	missing := make([]TileID, 0, len(candidates))
	for _, t := range candidates {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := c.lookup(scale, t); ok {
			p.hits = append(p.hits, t)
			continue
		}
		missing = append(missing, t)
	}
	if len(missing) == 0 {
		p.status = NothingToDo
		return p
	}

	fresh := missing[:0]
	waiting := make(map[*PendingBatch]struct{})
	for _, t := range missing {
		if b, ok := l.outstanding(scale, t); ok {
			if !flush {
				b.want(t)
			}
			if _, dup := waiting[b]; !dup {
				waiting[b] = struct{}{}
				p.waitOn = append(p.waitOn, b)
			}
			continue
		}
		fresh = append(fresh, t)
	}
	if len(fresh) == 0 {
		p.status = NoCreateButPrevOnGoing
		return p
	}

	toEvict := max(0, c.Len()+len(fresh)-c.capacity)
	reused := c.evict(toEvict, scale, seen)
	p.evicted = len(reused)
	slots := c.reserve(len(fresh), reused)

	b := &PendingBatch{
		ID:    ksuid.New().String(),
		Tiles: fresh,
		Scale: scale,
		Flush: flush,
		slots: slots,
		done:  make(chan struct{}),
	}
	if len(reused) > len(fresh) {
		reused = reused[:len(fresh)]
	}
	b.Reused = reused
	l.add(b)

	p.status = CreateTiles
	p.batch = b
	return p
}
