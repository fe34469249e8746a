package memmap

import (
	"errors"
	"testing"

	"fluxemu/internal/timeval"

	"github.com/stretchr/testify/require"
)

func TestRAMRoundTrip(t *testing.T) {
	as := New(16)
	buf := NewBuffer(make([]byte, 0x10000), true)
	require.NoError(t, as.MapRAM(Range{0x0000, 0xFFFF}, buf))

	for _, addr := range []uint32{0x0000, 0x1234, 0xFFFE} {
		require.NoError(t, WriteLE[uint16](as, addr, timeval.Zero, nil, 0xBEEF))
		got, err := ReadLE[uint16](as, addr, timeval.Zero, nil)
		require.NoError(t, err)
		require.Equal(t, uint16(0xBEEF), got)
	}
}

func TestReadWithCacheEqualsWithout(t *testing.T) {
	as := New(16)
	buf := NewBuffer(make([]byte, 0x10000), true)
	require.NoError(t, as.MapRAM(Range{0x0000, 0x7FFF}, buf))
	require.NoError(t, as.MapRAM(Range{0x8000, 0xFFFF}, NewBuffer(make([]byte, 0x8000), true)))

	require.NoError(t, WriteLE[uint32](as, 0x4000, timeval.Zero, nil, 0xDEADBEEF))

	cache := as.NewCache()
	for _, addr := range []uint32{0x4000, 0x4001, 0x3FFE, 0x8000} {
		withoutCache, errNoCache := ReadLE[uint8](as, addr, timeval.Zero, nil)
		withCache, errCache := ReadLE[uint8](as, addr, timeval.Zero, cache)
		require.Equal(t, errNoCache, errCache)
		require.Equal(t, withoutCache, withCache)
	}
}

func TestROMIgnoresWrites(t *testing.T) {
	as := New(16)
	data := make([]byte, 0x100)
	data[0] = 0x42
	require.NoError(t, as.MapROM(Range{0x0000, 0x00FF}, NewBuffer(data, false)))

	require.NoError(t, WriteLE[uint8](as, 0x0000, timeval.Zero, nil, 0x99))
	got, err := ReadLE[uint8](as, 0x0000, timeval.Zero, nil)
	require.NoError(t, err)
	require.Equal(t, uint8(0x42), got, "ROM write must be a silent no-op")
}

func TestUnmappedReadYieldsZeroAndError(t *testing.T) {
	as := New(16)
	got, err := ReadLE[uint8](as, 0x1234, timeval.Zero, nil)
	require.Equal(t, uint8(0), got)
	require.True(t, errors.Is(err, ErrUnmapped))
}

func TestOverlappingMappingsInsertionOrder(t *testing.T) {
	as := New(16)
	bufA := NewBuffer(make([]byte, 0x100), true)
	bufB := NewBuffer(make([]byte, 0x100), true)
	require.NoError(t, as.MapRAM(Range{0x0000, 0x00FF}, bufA))
	require.NoError(t, as.MapRAM(Range{0x0080, 0x017F}, bufB))

	// Overlap region 0x80-0xFF should dispatch to the first-inserted entry (bufA).
	require.NoError(t, WriteLE[uint8](as, 0x0090, timeval.Zero, nil, 0x7)) // goes to bufA
	got, err := ReadLE[uint8](as, 0x0090, timeval.Zero, nil)
	require.NoError(t, err)
	require.Equal(t, uint8(0x7), got)
	require.Equal(t, byte(0), bufB.ReadAt(0x10), "second entry must not have received the write")

	overlaps := as.OverlappingMappings(Range{0x0000, 0x017F})
	require.Len(t, overlaps, 2) // bufA and bufB both live on page 0 and both overlap the query range
}

func TestMMIOReadWrite(t *testing.T) {
	as := New(16)
	var lastWritten byte
	reg := byte(0)
	require.NoError(t, as.MapMMIO(Range{0xF000, 0xF000},
		func(addr uint32, now timeval.Period) byte { return reg },
		func(addr uint32, now timeval.Period, value byte) { reg = value; lastWritten = value }))

	require.NoError(t, WriteLE[uint8](as, 0xF000, timeval.Zero, nil, 0x55))
	require.Equal(t, byte(0x55), lastWritten)

	got, err := ReadLE[uint8](as, 0xF000, timeval.Zero, nil)
	require.NoError(t, err)
	require.Equal(t, uint8(0x55), got)
}

func TestMapRejectsOutOfRange(t *testing.T) {
	as := New(8) // 256 addresses
	err := as.MapRAM(Range{0x0000, 0x1FF}, NewBuffer(make([]byte, 0x200), true))
	require.Error(t, err)
}
