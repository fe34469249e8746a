package memmap

import "sync"

// Buffer is a reference-counted byte array shared between an AddressSpace
// mapping and whatever component owns the backing storage (RAM) or
// read-only image (ROM). Writable buffers are protected by an internal
// mutex; the address space never holds the lock across a read/write, only
// for the duration of the access.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	writable bool
}

// NewBuffer wraps data as a Buffer. If writable is false, writes through
// the address space are silently ignored (ROM semantics).
func NewBuffer(data []byte, writable bool) *Buffer {
	return &Buffer{data: data, writable: writable}
}

// Len reports the buffer's size in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// ReadAt reads a single byte at offset.
func (b *Buffer) ReadAt(offset int) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data[offset]
}

// WriteAt writes a single byte at offset. A no-op on read-only buffers.
func (b *Buffer) WriteAt(offset int, value byte) {
	if !b.writable {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[offset] = value
}

// Snapshot copies the buffer's current contents, for use by a component's
// StoreSnapshot implementation.
func (b *Buffer) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Restore overwrites the buffer's contents from a prior Snapshot.
func (b *Buffer) Restore(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.data, data)
}

// BufferPath names a registered buffer within an address space, returned by
// Machine's builder so that its MemoryMapBufferRead/MemoryMapBufferWrite
// calls can reference previously registered storage.
type BufferPath struct {
	Space int
	Name  string
}
