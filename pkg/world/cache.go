package world

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adamdray/gaia-mud/pkg/g"
)

// Write-back defaults: dirty entries flush every interval and also whenever
// the dirty set passes the threshold.
const (
	DefaultFlushInterval  = 60 * time.Second
	DefaultDirtyThreshold = 200
)

// entry holds one cached object. Reads are lock-free against the snapshot
// pointer; mutations take mu around read-modify-write and swap in a clone.
type entry struct {
	mu   sync.Mutex
	snap atomic.Pointer[Object]
}

// Cache is the in-memory write-through object cache. The cached copy is the
// authoritative value for in-process reads; writes update the cache
// synchronously and are flushed to the store by the write-back worker.
type Cache struct {
	store Store

	mu      sync.RWMutex
	entries map[string]*entry

	dirtyMu sync.Mutex
	dirty   map[string]bool

	flushInterval  time.Duration
	dirtyThreshold int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	kick     chan struct{}
}

// NewCache creates a cache over the given store. Zero interval/threshold
// select the defaults.
func NewCache(store Store, flushInterval time.Duration, dirtyThreshold int) *Cache {
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	if dirtyThreshold <= 0 {
		dirtyThreshold = DefaultDirtyThreshold
	}
	return &Cache{
		store:          store,
		entries:        make(map[string]*entry),
		dirty:          make(map[string]bool),
		flushInterval:  flushInterval,
		dirtyThreshold: dirtyThreshold,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
		kick:           make(chan struct{}, 1),
	}
}

// Get returns the cached object, fetching and installing from the store on a
// miss. The returned object is a live snapshot; callers must not mutate it.
func (c *Cache) Get(id string) (*Object, error) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		if obj := e.snap.Load(); obj != nil {
			return obj, nil
		}
	}

	obj, err := c.store.Fetch(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	e, ok = c.entries[id]
	if !ok {
		e = &entry{}
		c.entries[id] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if cur := e.snap.Load(); cur != nil {
		// Lost the install race; the resident copy wins.
		return cur, nil
	}
	e.snap.Store(obj)
	return obj, nil
}

// Contains reports whether the ID resolves in cache or store.
func (c *Cache) Contains(id string) bool {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if ok && e.snap.Load() != nil {
		return true
	}
	_, err := c.Get(id)
	return err == nil
}

// Create installs a brand-new object. A colliding ID fails with ErrExists.
func (c *Cache) Create(obj *Object) error {
	if obj.ID == "" {
		return fmt.Errorf("world: object has no ID")
	}
	if obj.ID != RootObjectID && len(obj.ParentIDs) == 0 {
		return fmt.Errorf("world: object %s has no parents", obj.ID)
	}
	if err := c.checkAcyclic(obj); err != nil {
		return err
	}
	if c.Contains(obj.ID) {
		return fmt.Errorf("%w: %s", ErrExists, obj.ID)
	}

	now := time.Now().UTC()
	cp := obj.Clone()
	if cp.Attributes == nil {
		cp.Attributes = make(map[string]g.Value)
	}
	cp.Created = now
	cp.Updated = now

	c.mu.Lock()
	e, ok := c.entries[cp.ID]
	if !ok {
		e = &entry{}
		c.entries[cp.ID] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	if e.snap.Load() != nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrExists, cp.ID)
	}
	e.snap.Store(cp)
	e.mu.Unlock()

	c.markDirty(cp.ID)
	return nil
}

// Put updates the cache unconditionally and marks the object dirty.
func (c *Cache) Put(obj *Object) error {
	if obj.ID == "" {
		return fmt.Errorf("world: object has no ID")
	}
	if obj.ID != RootObjectID && len(obj.ParentIDs) == 0 {
		return fmt.Errorf("world: object %s has no parents", obj.ID)
	}
	if err := c.checkAcyclic(obj); err != nil {
		return err
	}

	c.mu.Lock()
	e, ok := c.entries[obj.ID]
	if !ok {
		e = &entry{}
		c.entries[obj.ID] = e
	}
	c.mu.Unlock()

	cp := obj.Clone()
	cp.Updated = time.Now().UTC()

	e.mu.Lock()
	if prev := e.snap.Load(); prev != nil && cp.Rev == "" {
		cp.Rev = prev.Rev
	}
	e.snap.Store(cp)
	e.mu.Unlock()

	c.markDirty(cp.ID)
	return nil
}

// Mutate applies fn to a clone of the object under its per-object lock and
// swaps the result in. Two mutations of the same object serialize here.
func (c *Cache) Mutate(id string, fn func(*Object) error) error {
	if _, err := c.Get(id); err != nil {
		return err
	}
	c.mu.RLock()
	e := c.entries[id]
	c.mu.RUnlock()
	if e == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.snap.Load()
	if cur == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := cur.Clone()
	if err := fn(cp); err != nil {
		return err
	}
	cp.Updated = time.Now().UTC()
	e.snap.Store(cp)
	c.markDirty(id)
	return nil
}

// SetAttribute writes one attribute on the object itself (never a parent),
// serialized per (object) by the entry lock.
func (c *Cache) SetAttribute(id, name string, v g.Value) error {
	return c.Mutate(id, func(o *Object) error {
		if o.Attributes == nil {
			o.Attributes = make(map[string]g.Value)
		}
		o.Attributes[name] = v
		return nil
	})
}

// Delete removes from cache and store.
func (c *Cache) Delete(id string) error {
	var rev string
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		if obj := e.snap.Load(); obj != nil {
			rev = obj.Rev
		}
		delete(c.entries, id)
	}
	c.mu.Unlock()

	c.dirtyMu.Lock()
	delete(c.dirty, id)
	c.dirtyMu.Unlock()

	err := c.store.DeleteByID(id, rev)
	if err == ErrConflict {
		// Optimistic-revision handling: refetch for the fresh revision and
		// retry once.
		if obj, ferr := c.store.Fetch(id); ferr == nil {
			err = c.store.DeleteByID(id, obj.Rev)
		}
	}
	if err == ErrNotFound {
		return nil
	}
	return err
}

// GetAttribute resolves an attribute across the inheritance graph:
// breadth-first from the object, parents enqueued in listed order, first
// definition wins. The visited set makes diamonds converge. Absence (false)
// is distinct from a stored null.
func (c *Cache) GetAttribute(id, name string) (g.Value, bool, error) {
	visited := map[string]bool{}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		obj, err := c.Get(cur)
		if err != nil {
			if cur == id {
				return nil, false, err
			}
			// A dangling parent link does not poison resolution.
			continue
		}
		if v, ok := obj.GetOwn(name); ok {
			return v, true, nil
		}
		queue = append(queue, obj.ParentIDs...)
	}
	return nil, false, nil
}

// InheritanceClosure returns the BFS order of the object's inheritance
// graph, the object itself first.
func (c *Cache) InheritanceClosure(id string) ([]string, error) {
	var order []string
	visited := map[string]bool{}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		obj, err := c.Get(cur)
		if err != nil {
			if cur == id {
				return nil, err
			}
			continue
		}
		order = append(order, cur)
		queue = append(queue, obj.ParentIDs...)
	}
	return order, nil
}

// checkAcyclic rejects writes that would close a parent cycle.
func (c *Cache) checkAcyclic(obj *Object) error {
	visited := map[string]bool{}
	queue := append([]string(nil), obj.ParentIDs...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == obj.ID {
			return fmt.Errorf("world: parent cycle through %s", obj.ID)
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		parent, err := c.Get(cur)
		if err != nil {
			continue
		}
		queue = append(queue, parent.ParentIDs...)
	}
	return nil
}

// CachedIDs returns a snapshot of resident object IDs (used by the tick
// scheduler's sweep).
func (c *Cache) CachedIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id, e := range c.entries {
		if e.snap.Load() != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Evict drops an object from the cache without touching the store (used for
// session-scoped transient objects).
func (c *Cache) Evict(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
	c.dirtyMu.Lock()
	delete(c.dirty, id)
	c.dirtyMu.Unlock()
}

// MarkTransient marks an object ID as cache-only: it is never written back.
// It does not install the object; Create does that.
func (c *Cache) MarkTransient(id string) {
	c.dirtyMu.Lock()
	c.dirty[id] = false // present key with false = never flush
	c.dirtyMu.Unlock()
}

func (c *Cache) markDirty(id string) {
	c.dirtyMu.Lock()
	if flush, seen := c.dirty[id]; seen && !flush {
		// Transient object: stays cache-only.
		c.dirtyMu.Unlock()
		return
	}
	c.dirty[id] = true
	n := 0
	for _, flush := range c.dirty {
		if flush {
			n++
		}
	}
	c.dirtyMu.Unlock()

	if n >= c.dirtyThreshold {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// DirtyCount returns the number of entries awaiting write-back.
func (c *Cache) DirtyCount() int {
	c.dirtyMu.Lock()
	defer c.dirtyMu.Unlock()
	n := 0
	for _, flush := range c.dirty {
		if flush {
			n++
		}
	}
	return n
}

// StartWriteBack launches the periodic write-back worker.
func (c *Cache) StartWriteBack() {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Flush()
			case <-c.kick:
				c.Flush()
			case <-c.stop:
				c.Flush()
				return
			}
		}
	}()
}

// StopWriteBack flushes once more and stops the worker.
func (c *Cache) StopWriteBack() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// Flush writes every dirty entry to the store. A revision conflict refetches
// and retries once; a second conflict is logged and surfaced via the return.
func (c *Cache) Flush() error {
	c.dirtyMu.Lock()
	ids := make([]string, 0, len(c.dirty))
	for id, flush := range c.dirty {
		if flush {
			ids = append(ids, id)
			delete(c.dirty, id)
		}
	}
	c.dirtyMu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := c.flushOne(id); err != nil {
			log.Printf("world: write-back of %s failed: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
			// Keep the entry dirty so the next cycle retries it.
			c.dirtyMu.Lock()
			c.dirty[id] = true
			c.dirtyMu.Unlock()
		}
	}
	return firstErr
}

func (c *Cache) flushOne(id string) error {
	c.mu.RLock()
	e := c.entries[id]
	c.mu.RUnlock()
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	obj := e.snap.Load()
	if obj == nil {
		return nil
	}

	rev, err := c.store.Store(obj, obj.Rev)
	if err == ErrConflict {
		// Refetch for the fresh revision and merge: the cached copy is
		// authoritative for content, the store wins on revision.
		fresh, ferr := c.store.Fetch(id)
		if ferr != nil {
			return fmt.Errorf("%w: refetch after conflict: %v", ErrConflict, ferr)
		}
		retry := obj.Clone()
		retry.Rev = fresh.Rev
		rev, err = c.store.Store(retry, retry.Rev)
		if err != nil {
			return fmt.Errorf("%w: write-back of %s after retry", ErrConflict, id)
		}
		obj = retry
	} else if err != nil {
		return err
	}

	cp := obj.Clone()
	cp.Rev = rev
	e.snap.Store(cp)
	return nil
}
