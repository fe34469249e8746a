// Package memmap implements fluxemu's paged address-mapping table: O(1)
// address dispatch via page-indexed slots, insertion-order precedence for
// overlapping ranges, and a per-caller locality cache. It generalizes the
// three-region bank switch used by simpler bus implementations in this
// corpus into an arbitrary number of builder-registered ranges.
package memmap

import (
	"errors"
	"fmt"
	"sync"

	"fluxemu/internal/timeval"
)

// PageSize is the size in bytes of one dispatch page.
const PageSize = 4096

// ErrUnmapped is returned when an address has no mapping. Reads still yield
// a default value of 0 (open-bus emulation); writes are simply dropped.
var ErrUnmapped = errors.New("memmap: address unmapped")

// Range is an inclusive [Low, High] address range.
type Range struct {
	Low, High uint32
}

// Contains reports whether addr falls within the range.
func (r Range) Contains(addr uint32) bool {
	return addr >= r.Low && addr <= r.High
}

// Overlaps reports whether r and o share at least one address.
func (r Range) Overlaps(o Range) bool {
	return r.Low <= o.High && o.Low <= r.High
}

// MMIORead handles a memory-mapped read at addr at virtual time now.
type MMIORead func(addr uint32, now timeval.Period) byte

// MMIOWrite handles a memory-mapped write at addr at virtual time now.
type MMIOWrite func(addr uint32, now timeval.Period, value byte)

// target is the resolved destination of an address-space entry. Exactly one
// of the concrete kinds below is stored per entry.
type target struct {
	kind     targetKind
	buf      *Buffer
	base     uint32 // RAM/ROM: addr-base indexes into buf
	mmioRead MMIORead
	mmioWrite MMIOWrite
}

type targetKind int

const (
	kindRAM targetKind = iota
	kindROM
	kindMMIORead
	kindMMIOWrite
	kindMMIOReadWrite
)

func (t *target) readByte(addr uint32, now timeval.Period) (byte, bool) {
	switch t.kind {
	case kindRAM, kindROM:
		return t.buf.ReadAt(int(addr - t.base)), true
	case kindMMIORead, kindMMIOReadWrite:
		return t.mmioRead(addr, now), true
	default:
		return 0, false
	}
}

func (t *target) writeByte(addr uint32, now timeval.Period, value byte) bool {
	switch t.kind {
	case kindRAM:
		t.buf.WriteAt(int(addr-t.base), value)
		return true
	case kindROM:
		// ROM ignores writes silently but the write is still "handled":
		// there is no open-bus fallthrough for a mapped ROM range.
		return true
	case kindMMIOWrite, kindMMIOReadWrite:
		t.mmioWrite(addr, now, value)
		return true
	default:
		return false
	}
}

// entry pairs a Range with its resolved target.
type entry struct {
	rng Range
	tgt *target
}

// slot is one page's dispatch state: empty, a single entry, or several
// overlapping entries consulted in insertion order.
type slot struct {
	entries []entry
}

// AddressSpace is an immutable-width, paged address-mapping table.
type AddressSpace struct {
	mu        sync.RWMutex
	widthBits uint
	pages     []slot
}

// New builds an empty address space spanning 2^widthBits addresses.
func New(widthBits uint) *AddressSpace {
	pageCount := (uint64(1) << widthBits) / PageSize
	return &AddressSpace{
		widthBits: widthBits,
		pages:     make([]slot, pageCount),
	}
}

// WidthBits reports the address space's configured width.
func (as *AddressSpace) WidthBits() uint {
	return as.widthBits
}

func pageIndex(addr uint32) uint32 {
	return addr / PageSize
}

// addEntry appends an entry to every page the range spans, preserving
// insertion order within each page's slot.
func (as *AddressSpace) addEntry(rng Range, tgt *target) error {
	if rng.Low > rng.High {
		return fmt.Errorf("memmap: invalid range [%#x..%#x]", rng.Low, rng.High)
	}
	as.mu.Lock()
	defer as.mu.Unlock()

	first, last := pageIndex(rng.Low), pageIndex(rng.High)
	if int(last) >= len(as.pages) {
		return fmt.Errorf("memmap: range [%#x..%#x] exceeds address space width", rng.Low, rng.High)
	}
	for p := first; p <= last; p++ {
		as.pages[p].entries = append(as.pages[p].entries, entry{rng: rng, tgt: tgt})
	}
	return nil
}

// MapRAM maps rng onto buf as read/write storage, addr-base indexing into buf.
func (as *AddressSpace) MapRAM(rng Range, buf *Buffer) error {
	return as.addEntry(rng, &target{kind: kindRAM, buf: buf, base: rng.Low})
}

// MapROM maps rng onto buf as read-only storage; writes are silently dropped.
func (as *AddressSpace) MapROM(rng Range, buf *Buffer) error {
	return as.addEntry(rng, &target{kind: kindROM, buf: buf, base: rng.Low})
}

// MapMMIO maps rng onto handler functions. Either read or write may be nil,
// in which case that direction is treated as unmapped for this entry.
func (as *AddressSpace) MapMMIO(rng Range, read MMIORead, write MMIOWrite) error {
	kind := kindMMIOReadWrite
	switch {
	case read != nil && write == nil:
		kind = kindMMIORead
	case read == nil && write != nil:
		kind = kindMMIOWrite
	case read == nil && write == nil:
		return fmt.Errorf("memmap: MapMMIO requires at least one of read/write")
	}
	return as.addEntry(rng, &target{kind: kind, mmioRead: read, mmioWrite: write})
}

// Unmap removes every entry overlapping rng from the pages it spans.
func (as *AddressSpace) Unmap(rng Range) {
	as.mu.Lock()
	defer as.mu.Unlock()

	first, last := pageIndex(rng.Low), pageIndex(rng.High)
	if int(last) >= len(as.pages) {
		last = uint32(len(as.pages) - 1)
	}
	for p := first; p <= last; p++ {
		kept := as.pages[p].entries[:0]
		for _, e := range as.pages[p].entries {
			if !e.rng.Overlaps(rng) {
				kept = append(kept, e)
			}
		}
		as.pages[p].entries = kept
	}
}

// resolve finds the first entry (in insertion order) whose range contains
// addr, consulting cache first.
func (as *AddressSpace) resolve(addr uint32, cache *Cache) (*target, Range, bool) {
	if cache != nil {
		if tgt, rng, ok := cache.lookup(addr); ok {
			return tgt, rng, true
		}
	}

	as.mu.RLock()
	defer as.mu.RUnlock()

	p := pageIndex(addr)
	if int(p) >= len(as.pages) {
		return nil, Range{}, false
	}
	for _, e := range as.pages[p].entries {
		if e.rng.Contains(addr) {
			// Only cache a page's sole entry, clipped to that page, so a
			// cache hit never bypasses an earlier-inserted overlapping entry.
			if cache != nil && len(as.pages[p].entries) == 1 {
				clipped := e.rng
				if pageLow := p * PageSize; clipped.Low < pageLow {
					clipped.Low = pageLow
				}
				if pageHigh := p*PageSize + PageSize - 1; clipped.High > pageHigh {
					clipped.High = pageHigh
				}
				cache.update(clipped, e.tgt)
			}
			return e.tgt, e.rng, true
		}
	}
	return nil, Range{}, false
}

func (as *AddressSpace) readByte(addr uint32, now timeval.Period, cache *Cache) (byte, error) {
	tgt, _, ok := as.resolve(addr, cache)
	if !ok {
		return 0, fmt.Errorf("%w: addr %#x", ErrUnmapped, addr)
	}
	v, supported := tgt.readByte(addr, now)
	if !supported {
		return 0, fmt.Errorf("%w: addr %#x is write-only", ErrUnmapped, addr)
	}
	return v, nil
}

func (as *AddressSpace) writeByte(addr uint32, now timeval.Period, cache *Cache, value byte) error {
	tgt, _, ok := as.resolve(addr, cache)
	if !ok {
		return fmt.Errorf("%w: addr %#x", ErrUnmapped, addr)
	}
	if !tgt.writeByte(addr, now, value) {
		return fmt.Errorf("%w: addr %#x is read-only", ErrUnmapped, addr)
	}
	return nil
}

// Unsigned is the set of integer widths ReadLE/WriteLE support.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

func byteWidth[T Unsigned]() int {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32:
		return 4
	case uint64:
		return 8
	default:
		panic("memmap: unsupported width")
	}
}

// ReadLE reads sizeof(T) little-endian bytes starting at addr, crossing
// page boundaries transparently. If any byte is unmapped the returned value
// still has 0 substituted for that byte and a wrapped ErrUnmapped is
// returned, matching the CPU's open-bus-on-error contract.
func ReadLE[T Unsigned](as *AddressSpace, addr uint32, now timeval.Period, cache *Cache) (T, error) {
	n := byteWidth[T]()
	var result uint64
	var firstErr error
	for i := 0; i < n; i++ {
		b, err := as.readByte(addr+uint32(i), now, cache)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		result |= uint64(b) << (8 * i)
	}
	return T(result), firstErr
}

// WriteLE writes sizeof(T) little-endian bytes of value starting at addr.
func WriteLE[T Unsigned](as *AddressSpace, addr uint32, now timeval.Period, cache *Cache, value T) error {
	n := byteWidth[T]()
	v := uint64(value)
	var firstErr error
	for i := 0; i < n; i++ {
		b := byte(v >> (8 * i))
		if err := as.writeByte(addr+uint32(i), now, cache, b); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OverlapEntry describes one page-local entry returned by OverlappingMappings.
type OverlapEntry struct {
	PageIndex  int
	EntryIndex int
	Range      Range
}

// OverlappingMappings yields every entry whose range intersects rng, in
// (page index, entry index) order. It exists for builder-time conflict
// detection and introspection tooling, never on the hot read/write path.
func (as *AddressSpace) OverlappingMappings(rng Range) []OverlapEntry {
	as.mu.RLock()
	defer as.mu.RUnlock()

	var out []OverlapEntry
	first, last := pageIndex(rng.Low), pageIndex(rng.High)
	if int(last) >= len(as.pages) {
		last = uint32(len(as.pages) - 1)
	}
	for p := first; p <= last; p++ {
		for i, e := range as.pages[p].entries {
			if e.rng.Overlaps(rng) {
				out = append(out, OverlapEntry{PageIndex: int(p), EntryIndex: i, Range: e.rng})
			}
		}
	}
	return out
}
