package mosaic

import (
	"image"

	"golang.org/x/image/draw"
)

// HandleID is the stable slot index of a tile handle inside the cache.
type HandleID int32

const noHandle HandleID = -1

type slotState uint8

const (
	slotFree slotState = iota
	slotReserved
	slotReady
)

type tileKey struct {
	scale int
	tile  TileID
}

type slot struct {
	state   slotState
	key     tileKey
	visible bool
	surface *image.RGBA
	// insertion order list of ready slots, oldest at the head
	prev, next HandleID
}

// TileHandle is a snapshot of one rendered tile held by the cache.
type TileHandle struct {
	ID      HandleID `json:"id"`
	Tile    TileID   `json:"tile"`
	Scale   int      `json:"scale"`
	Visible bool     `json:"visible"`
}

// tileCache is an arena of tile slots. It is not safe for concurrent use;
// the engine guards it with the pool lock.
type tileCache struct {
	capacity int
	tileW    int
	tileH    int

	slots    []slot
	free     []HandleID
	head     HandleID
	tail     HandleID
	index    map[tileKey]HandleID
	reserved int
}

func newTileCache(capacity, tileW, tileH int) *tileCache {
	return &tileCache{
		capacity: capacity,
		tileW:    tileW,
		tileH:    tileH,
		slots:    make([]slot, 0, capacity),
		head:     noHandle,
		tail:     noHandle,
		index:    make(map[tileKey]HandleID, capacity),
	}
}

// Len counts ready and reserved slots.
func (c *tileCache) Len() int {
	return len(c.index) + c.reserved
}

func (c *tileCache) lookup(scale int, tile TileID) (HandleID, bool) {
	id, ok := c.index[tileKey{scale, tile}]
	return id, ok
}

func (c *tileCache) handle(id HandleID) TileHandle {
	s := &c.slots[id]
	return TileHandle{ID: id, Tile: s.key.tile, Scale: s.key.scale, Visible: s.visible}
}

// handles returns the ready handles from oldest to newest.
func (c *tileCache) handles() []TileHandle {
	out := make([]TileHandle, 0, len(c.index))
	for id := c.head; id != noHandle; id = c.slots[id].next {
		out = append(out, c.handle(id))
	}
	return out
}

// evict unlinks up to n ready slots, oldest first, that are neither
// visible nor listed in keep for scale. The slots come back reserved so
// the caller can hand them to a new batch together with their surfaces.
func (c *tileCache) evict(n, scale int, keep map[TileID]struct{}) []HandleID {
	if n <= 0 {
		return nil
	}
	evicted := make([]HandleID, 0, n)
	for id := c.head; id != noHandle && len(evicted) < n; {
		s := &c.slots[id]
		next := s.next
		if !s.visible && !(s.key.scale == scale && contains(keep, s.key.tile)) {
			c.unlink(id)
			delete(c.index, s.key)
			s.state = slotReserved
			s.visible = false
			c.reserved++
			evicted = append(evicted, id)
		}
		id = next
	}
	return evicted
}

func contains(keep map[TileID]struct{}, t TileID) bool {
	_, ok := keep[t]
	return ok
}

// reserve returns n reserved slots, taking the already reserved reuse
// slots first, then the free list, then growing the arena.
func (c *tileCache) reserve(n int, reuse []HandleID) []HandleID {
	ids := make([]HandleID, 0, n)
	for _, id := range reuse {
		if len(ids) == n {
			// more evicted than needed, give the rest back
			c.releaseSlot(id)
			continue
		}
		ids = append(ids, id)
	}
	for len(ids) < n {
		var id HandleID
		if k := len(c.free); k > 0 {
			id = c.free[k-1]
			c.free = c.free[:k-1]
		} else {
			c.slots = append(c.slots, slot{prev: noHandle, next: noHandle})
			id = HandleID(len(c.slots) - 1) //nolint:gosec
		}
		c.slots[id].state = slotReserved
		c.reserved++
		ids = append(ids, id)
	}
	return ids
}

// surface returns the pixel surface owned by a reserved slot, allocating it
// on first use. Only the batch holding the reservation may write to it.
func (c *tileCache) surface(id HandleID) *image.RGBA {
	s := &c.slots[id]
	if s.surface == nil {
		s.surface = image.NewRGBA(image.Rect(0, 0, c.tileW, c.tileH))
	}
	return s.surface
}

// commit turns a reserved slot into a ready handle at the tail of the list.
func (c *tileCache) commit(id HandleID, key tileKey, visible bool) {
	s := &c.slots[id]
	if s.state != slotReserved {
		return
	}
	c.reserved--
	if prev, ok := c.index[key]; ok {
		// lost a race with an earlier batch for the same tile
		c.slots[prev].visible = c.slots[prev].visible || visible
		s.state = slotFree
		c.free = append(c.free, id)
		return
	}
	s.state = slotReady
	s.key = key
	s.visible = visible
	c.index[key] = id
	c.link(id)
}

// releaseSlot gives a reserved slot back to the free list. The surface is
// kept for the next reservation.
func (c *tileCache) releaseSlot(id HandleID) {
	s := &c.slots[id]
	if s.state != slotReserved {
		return
	}
	s.state = slotFree
	c.reserved--
	c.free = append(c.free, id)
}

// trim drops the oldest non-visible handles until the cache is back within
// capacity. It returns how many were dropped.
func (c *tileCache) trim() int {
	dropped := 0
	for id := c.head; id != noHandle && c.Len() > c.capacity; {
		s := &c.slots[id]
		next := s.next
		if !s.visible {
			c.unlink(id)
			delete(c.index, s.key)
			s.state = slotFree
			c.free = append(c.free, id)
			dropped++
		}
		id = next
	}
	return dropped
}

// clearVisible resets the visible flag of every ready handle except those
// the transition in protect still needs.
func (c *tileCache) clearVisible(protect TransitionState) {
	for id := c.head; id != noHandle; id = c.slots[id].next {
		s := &c.slots[id]
		s.visible = protect.protects(s.key.scale, s.key.tile)
	}
}

func (c *tileCache) markVisible(scale int, tiles []TileID) {
	for _, t := range tiles {
		if id, ok := c.index[tileKey{scale, t}]; ok {
			c.slots[id].visible = true
		}
	}
}

// copySurface copies the pixels of a ready handle into a pooled buffer.
func (c *tileCache) copySurface(id HandleID) *image.RGBA {
	src := c.slots[id].surface
	dst := GetRGBA(c.tileW, c.tileH)
	if src != nil {
		draw.Copy(dst, image.Point{}, src, src.Bounds(), draw.Src, nil)
	}
	return dst
}

func (c *tileCache) link(id HandleID) {
	s := &c.slots[id]
	s.prev = c.tail
	s.next = noHandle
	if c.tail != noHandle {
		c.slots[c.tail].next = id
	} else {
		c.head = id
	}
	c.tail = id
}

func (c *tileCache) unlink(id HandleID) {
	s := &c.slots[id]
	if s.prev != noHandle {
		c.slots[s.prev].next = s.next
	} else {
		c.head = s.next
	}
	if s.next != noHandle {
		c.slots[s.next].prev = s.prev
	} else {
		c.tail = s.prev
	}
	s.prev, s.next = noHandle, noHandle
}

// fill writes src into dst, rescaling when the renderer produced a buffer
// of a different size.
func fill(dst *image.RGBA, src image.Image) {
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Copy(dst, image.Point{}, src, src.Bounds(), draw.Src, nil)
		return
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
}
