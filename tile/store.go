package tile

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/paleoseis/seismo/internal/parallel"
)

// Default configuration values.
const (
	// DefaultTileSize is the tile edge length in pixels.
	DefaultTileSize = 256

	// DefaultMemoryBudget bounds resident tile pixels (256 MiB).
	DefaultMemoryBudget = 256 << 20
)

// ErrBudget is returned by Pin when the requested tile set cannot fit the
// memory budget. Callers recover by re-planning at a coarser level.
var ErrBudget = errors.New("tile: pin request exceeds memory budget")

// Config configures a Store. Zero values select defaults.
type Config struct {
	// TileSize is the tile edge length in pixels.
	TileSize int

	// MemoryBudget bounds total resident tile bytes.
	MemoryBudget int64

	// Workers is the number of background decode goroutines.
	// 0 selects GOMAXPROCS.
	Workers int

	// Logger receives decode diagnostics. Nil discards them.
	Logger *slog.Logger

	// OnReady, if set, is called (off the caller's goroutine) whenever a
	// tile reaches a terminal state, so the owner can re-composite.
	OnReady func(Key)
}

// Store caches decoded tiles for one raster under an LRU byte budget.
//
// Fetch never blocks: it returns what is resident and schedules background
// decodes for what is not. Invalidation is ordered against in-flight decodes
// by epoch stamping — a decode begun before an invalidate of its area never
// installs after it.
type Store struct {
	src  Source
	pyr  Pyramid
	pool *parallel.Pool
	log  *slog.Logger

	onReady func(Key)

	mu        sync.Mutex
	tiles     map[Key]*entry
	lru       lruList
	pinned    map[Key]int
	usedBytes int64
	budget    int64
	epoch     uint64
	closed    bool

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	dropped   atomic.Uint64
}

// NewStore creates a store over the given pixel source.
func NewStore(src Source, cfg Config) *Store {
	if cfg.TileSize <= 0 {
		cfg.TileSize = DefaultTileSize
	}
	if cfg.MemoryBudget <= 0 {
		cfg.MemoryBudget = DefaultMemoryBudget
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	w, h := src.Size()
	return &Store{
		src:     src,
		pyr:     NewPyramid(w, h, cfg.TileSize),
		pool:    parallel.NewPool(cfg.Workers),
		log:     cfg.Logger,
		onReady: cfg.OnReady,
		tiles:   make(map[Key]*entry),
		pinned:  make(map[Key]int),
		budget:  cfg.MemoryBudget,
	}
}

// Pyramid returns the level geometry for this store's raster.
func (s *Store) Pyramid() Pyramid { return s.pyr }

// Fetch returns the tile's pixels if resident. On a miss it schedules a
// background decode and returns StatePending immediately; completion is
// signaled through the OnReady callback. A permanently failed tile reports
// StateFailed and is never retried.
func (s *Store) Fetch(key Key) (*image.RGBA, State) {
	if !s.pyr.Contains(key) {
		return nil, StateFailed
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, StateFailed
	}

	if e, ok := s.tiles[key]; ok {
		switch e.state {
		case StateReady:
			s.lru.MoveToFront(e.node)
			s.mu.Unlock()
			s.hits.Add(1)
			return e.pix, StateReady
		case StateFailed:
			s.mu.Unlock()
			return nil, StateFailed
		default:
			s.mu.Unlock()
			return nil, StatePending
		}
	}

	e := &entry{key: key, state: StatePending, jobEpoch: s.epoch}
	s.tiles[key] = e
	jobEpoch := s.epoch
	s.mu.Unlock()

	s.misses.Add(1)
	s.pool.Submit(func() { s.decode(key, jobEpoch) })
	return nil, StatePending
}

// Peek returns the tile's pixels if resident without scheduling a decode.
// The compositor uses it to borrow coarser tiles as interim placeholders
// without cascading decode work.
func (s *Store) Peek(key Key) (*image.RGBA, State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tiles[key]
	if !ok {
		return nil, StatePending
	}
	if e.state == StateReady {
		s.lru.MoveToFront(e.node)
		return e.pix, StateReady
	}
	return nil, e.state
}

// decode produces the tile's pixels off the interactive thread: from the
// four finer-level children when they are all resident, otherwise by a
// reduced-scale decode through the source.
func (s *Store) decode(key Key, jobEpoch uint64) {
	var pix *image.RGBA
	var err error

	if children := s.residentChildren(key); children != nil {
		pix = s.pyr.downsampleChildren(key, children)
	} else {
		rect := s.pyr.LogicalRect(key)
		pix, err = s.src.DecodeRegion(rect, 1<<key.Level)
	}

	if err != nil {
		s.decodeFailed(key, jobEpoch, err)
		return
	}
	s.install(key, jobEpoch, pix)
}

// residentChildren returns the pixels of all children of key if every one
// is resident, else nil.
func (s *Store) residentChildren(key Key) map[Key]*image.RGBA {
	childKeys := s.pyr.Children(key)
	if len(childKeys) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	children := make(map[Key]*image.RGBA, len(childKeys))
	for _, ck := range childKeys {
		e, ok := s.tiles[ck]
		if !ok || e.state != StateReady {
			return nil
		}
		children[ck] = e.pix
	}
	return children
}

func (s *Store) install(key Key, jobEpoch uint64, pix *image.RGBA) {
	s.mu.Lock()
	e, ok := s.tiles[key]
	if !ok || e.jobEpoch != jobEpoch || s.closed {
		s.mu.Unlock()
		s.dropped.Add(1)
		s.log.Debug("stale decode dropped", "level", key.Level, "row", key.Row, "col", key.Col)
		return
	}

	e.state = StateReady
	e.pix = pix
	e.bytes = int64(len(pix.Pix))
	e.node = s.lru.PushFront(key)
	s.usedBytes += e.bytes
	s.evictLocked()
	s.mu.Unlock()

	s.notify(key)
}

func (s *Store) decodeFailed(key Key, jobEpoch uint64, err error) {
	s.mu.Lock()
	e, ok := s.tiles[key]
	if !ok || e.jobEpoch != jobEpoch || s.closed {
		s.mu.Unlock()
		s.dropped.Add(1)
		return
	}

	var t transienter
	if errors.As(err, &t) && t.IsTransient() && !e.retried {
		e.retried = true
		s.mu.Unlock()
		s.log.Warn("transient decode failure, retrying once",
			"level", key.Level, "row", key.Row, "col", key.Col, "err", err)
		s.pool.Submit(func() { s.decode(key, jobEpoch) })
		return
	}

	e.state = StateFailed
	s.mu.Unlock()

	s.log.Error("tile decode failed",
		"level", key.Level, "row", key.Row, "col", key.Col, "err", err)
	s.notify(key)
}

func (s *Store) notify(key Key) {
	if s.onReady != nil {
		s.onReady(key)
	}
}

// Invalidate discards every tile, resident or in flight, whose logical
// rectangle intersects rect. In-flight decodes for the area run to
// completion but their results are dropped.
func (s *Store) Invalidate(rect image.Rectangle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	for key, e := range s.tiles {
		if !s.pyr.LogicalRect(key).Overlaps(rect) {
			continue
		}
		if e.state == StateReady {
			s.lru.Remove(e.node)
			s.usedBytes -= e.bytes
		}
		delete(s.tiles, key)
	}
}

// InvalidateAll discards every tile.
func (s *Store) InvalidateAll() {
	w, h := s.src.Size()
	s.Invalidate(image.Rect(0, 0, w, h))
}

// SetMemoryBudget adjusts the byte budget, evicting immediately if the
// current residency exceeds it.
func (s *Store) SetMemoryBudget(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget = bytes
	s.evictLocked()
}

// Pin marks the given tiles ineligible for eviction for the duration of a
// composite operation and returns the release function. Pin fails with
// ErrBudget when the tiles could not all be resident within the budget;
// the caller then re-plans at a coarser level instead of failing the frame.
func (s *Store) Pin(keys []Key) (release func(), err error) {
	var estimate int64
	for _, key := range keys {
		w, h := s.pyr.PixelDims(key)
		estimate += int64(w) * int64(h) * 4
	}

	s.mu.Lock()
	if estimate > s.budget {
		s.mu.Unlock()
		return nil, ErrBudget
	}
	for _, key := range keys {
		s.pinned[key]++
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			for _, key := range keys {
				if s.pinned[key] <= 1 {
					delete(s.pinned, key)
				} else {
					s.pinned[key]--
				}
			}
			s.evictLocked()
			s.mu.Unlock()
		})
	}, nil
}

// evictLocked drops least-recently-used unpinned tiles until residency fits
// the budget. Caller holds the mutex.
func (s *Store) evictLocked() {
	if s.usedBytes <= s.budget {
		return
	}
	for n := s.lru.tailNode(); n != nil && s.usedBytes > s.budget; {
		prev := n.prev
		if s.pinned[n.key] == 0 {
			if e, ok := s.tiles[n.key]; ok {
				s.lru.Remove(e.node)
				s.usedBytes -= e.bytes
				delete(s.tiles, n.key)
				s.evictions.Add(1)
			}
		}
		n = prev
	}
}

// Stats reports cache counters.
type Stats struct {
	Tiles     int
	UsedBytes int64
	Budget    int64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Dropped   uint64
}

// Stats returns a snapshot of cache counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	tiles := len(s.tiles)
	used := s.usedBytes
	budget := s.budget
	s.mu.Unlock()

	return Stats{
		Tiles:     tiles,
		UsedBytes: used,
		Budget:    budget,
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Dropped:   s.dropped.Load(),
	}
}

// Close stops the decode workers, waits for in-flight jobs, and drops all
// cached tiles. Results of jobs completing during shutdown are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.pool.Close()

	s.mu.Lock()
	s.tiles = make(map[Key]*entry)
	s.lru = lruList{}
	s.usedBytes = 0
	s.mu.Unlock()
}
