package memmap

// Cache is a per-caller locality record: the last (range, target) used by
// that specific caller. It is mutated only by the caller holding it and is
// never shared between goroutines — each CPU or peripheral obtains its own
// via AddressSpace.NewCache.
type Cache struct {
	valid bool
	rng   Range
	tgt   *target
}

// NewCache returns a fresh, empty per-caller cache for this address space.
func (as *AddressSpace) NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) lookup(addr uint32) (*target, Range, bool) {
	if c.valid && c.rng.Contains(addr) {
		return c.tgt, c.rng, true
	}
	return nil, Range{}, false
}

func (c *Cache) update(rng Range, tgt *target) {
	c.valid = true
	c.rng = rng
	c.tgt = tgt
}
