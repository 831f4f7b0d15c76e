package settings

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// ContactKey is the store key holding the contact settings document.
const ContactKey = "studio:contact-settings"

// Store persists settings documents. Get reports present=false with a
// nil error when no value exists for the key.
type Store interface {
	Get(ctx context.Context, key string) (value string, present bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Subscriber receives the full settings value after every successful
// update. Delivery is synchronous: Update does not return until every
// subscriber has run.
type Subscriber func(ContactSettings)

// Bus is the in-process broadcast signal shared by every cache instance
// and observer. A write through any cache reaches all listeners without
// a store read.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]Subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]Subscriber)}
}

// Subscribe registers fn and returns a function that removes the
// subscription. The release must be called when the owner goes away.
func (b *Bus) Subscribe(fn Subscriber) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Bus) publish(s ContactSettings) {
	b.mu.Lock()
	subs := make([]Subscriber, 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	// Deliver outside the lock so a listener may subscribe or release.
	for _, fn := range subs {
		fn(s)
	}
}

// Cache holds the merged contact settings in memory and keeps the store
// as the durable copy. Multiple caches may share one Store and one Bus;
// an update through any of them is pushed to the others over the bus.
// All methods are safe for concurrent use.
type Cache struct {
	store  Store
	bus    *Bus
	logger *slog.Logger

	mu      sync.Mutex
	current ContactSettings
	ready   bool
	release func()
}

func NewCache(store Store, bus *Bus, logger *slog.Logger) *Cache {
	return &Cache{store: store, bus: bus, logger: logger}
}

// Load reads the stored document, merges it over the defaults, marks the
// cache ready and attaches it to the bus. A missing or unreadable
// document is replaced with the defaults; store problems during Load
// never keep the cache from coming up, they only cost the stored
// overrides. Calling Load again re-reads the store.
func (c *Cache) Load(ctx context.Context) {
	merged := Defaults()
	repopulate := false

	raw, present, err := c.store.Get(ctx, ContactKey)
	switch {
	case err != nil:
		c.logger.Error("contact settings read failed, serving defaults", "err", err)
	case !present:
		repopulate = true
	default:
		var stored ContactSettings
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			c.logger.Warn("stored contact settings unreadable, restoring defaults", "err", err)
			repopulate = true
		} else {
			merged = Merge(Defaults(), stored)
		}
	}

	if repopulate {
		buf, err := json.Marshal(merged)
		if err == nil {
			err = c.store.Set(ctx, ContactKey, string(buf))
		}
		if err != nil {
			c.logger.Error("contact settings repopulation failed", "err", err)
		}
	}

	c.mu.Lock()
	c.current = merged
	c.ready = true
	if c.release == nil {
		c.release = c.bus.Subscribe(c.absorb)
	}
	c.mu.Unlock()
}

// absorb adopts a value broadcast by a sibling cache.
func (c *Cache) absorb(s ContactSettings) {
	c.mu.Lock()
	if c.ready {
		c.current = s
	}
	c.mu.Unlock()
}

// Close detaches the cache from the bus.
func (c *Cache) Close() {
	c.mu.Lock()
	release := c.release
	c.release = nil
	c.mu.Unlock()
	if release != nil {
		release()
	}
}

// Current returns the in-memory settings. Before Load completes it
// returns the zero value.
func (c *Cache) Current() ContactSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Ready reports whether Load has completed at least once.
func (c *Cache) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Update applies the patch, persists the result and broadcasts it. It
// reports false when the cache is not ready yet or the store write
// fails; in both cases the in-memory value is unchanged and nothing is
// broadcast. Concurrent updates are last-write-wins.
func (c *Cache) Update(ctx context.Context, p Patch) bool {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return false
	}
	next := Apply(c.current, p)
	c.mu.Unlock()

	buf, err := json.Marshal(next)
	if err != nil {
		c.logger.Error("contact settings marshal failed", "err", err)
		return false
	}
	if err := c.store.Set(ctx, ContactKey, string(buf)); err != nil {
		c.logger.Error("contact settings write failed", "err", err)
		return false
	}

	c.mu.Lock()
	c.current = next
	c.mu.Unlock()

	c.bus.publish(next)
	return true
}

// Subscribe registers fn on the shared bus and returns a release handle.
func (c *Cache) Subscribe(fn Subscriber) func() {
	return c.bus.Subscribe(fn)
}
