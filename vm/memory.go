package vm

// ---------------------------------------------------------------------------
// Memory: bounded, byte-addressable flat memory
// All addresses are absolute 64-bit values relative to nothing; the region
// covers [base, base+size). Accesses are validated over the full width
// before any byte is touched, so a faulting store never partially writes.
// Unaligned multi-byte accesses are tolerated and decomposed byte-by-byte,
// little-endian.
// ---------------------------------------------------------------------------

// Memory is a contiguous, fixed-size byte buffer with a configured base
// address. It is owned exclusively by the VM.
type Memory struct {
	base uint64
	data []byte
}

// NewMemory creates a memory region of size bytes based at base.
func NewMemory(base, size uint64) *Memory {
	return &Memory{
		base: base,
		data: make([]byte, size),
	}
}

// Base returns the configured base address.
func (m *Memory) Base() uint64 {
	return m.base
}

// Size returns the region size in bytes.
func (m *Memory) Size() uint64 {
	return uint64(len(m.data))
}

// Contains reports whether addr lies within the configured region.
func (m *Memory) Contains(addr uint64) bool {
	return addr >= m.base && addr-m.base < uint64(len(m.data))
}

// check validates that [addr, addr+width) lies entirely within the region.
// The subtraction is guarded so wrapped addresses below base fault rather
// than aliasing high memory.
func (m *Memory) check(addr uint64, width int, write bool) error {
	off := addr - m.base
	if addr < m.base || off >= uint64(len(m.data)) || uint64(len(m.data))-off < uint64(width) {
		return &MemoryFault{Addr: addr, Width: width, Write: write}
	}
	return nil
}

// Read8 loads one byte from addr.
func (m *Memory) Read8(addr uint64) (uint8, error) {
	if err := m.check(addr, 1, false); err != nil {
		return 0, err
	}
	return m.data[addr-m.base], nil
}

// Read16 loads a little-endian 16-bit value from addr.
func (m *Memory) Read16(addr uint64) (uint16, error) {
	v, err := m.read(addr, 2)
	return uint16(v), err
}

// Read32 loads a little-endian 32-bit value from addr.
func (m *Memory) Read32(addr uint64) (uint32, error) {
	v, err := m.read(addr, 4)
	return uint32(v), err
}

// Read64 loads a little-endian 64-bit value from addr.
func (m *Memory) Read64(addr uint64) (uint64, error) {
	return m.read(addr, 8)
}

// Write8 stores one byte at addr.
func (m *Memory) Write8(addr uint64, v uint8) error {
	if err := m.check(addr, 1, true); err != nil {
		return err
	}
	m.data[addr-m.base] = v
	return nil
}

// Write16 stores a little-endian 16-bit value at addr.
func (m *Memory) Write16(addr uint64, v uint16) error {
	return m.write(addr, 2, uint64(v))
}

// Write32 stores a little-endian 32-bit value at addr.
func (m *Memory) Write32(addr uint64, v uint32) error {
	return m.write(addr, 4, uint64(v))
}

// Write64 stores a little-endian 64-bit value at addr.
func (m *Memory) Write64(addr uint64, v uint64) error {
	return m.write(addr, 8, v)
}

// read assembles a little-endian value byte-by-byte so unaligned accesses
// behave identically to aligned ones.
func (m *Memory) read(addr uint64, width int) (uint64, error) {
	if err := m.check(addr, width, false); err != nil {
		return 0, err
	}
	off := addr - m.base
	var v uint64
	for i := 0; i < width; i++ {
		v |= uint64(m.data[off+uint64(i)]) << (8 * i)
	}
	return v, nil
}

// write decomposes a little-endian value byte-by-byte. The range was
// checked up front, so a fault never leaves a partial store behind.
func (m *Memory) write(addr uint64, width int, v uint64) error {
	if err := m.check(addr, width, true); err != nil {
		return err
	}
	off := addr - m.base
	for i := 0; i < width; i++ {
		m.data[off+uint64(i)] = byte(v >> (8 * i))
	}
	return nil
}

// LoadImage copies a raw byte image into memory starting at addr.
func (m *Memory) LoadImage(addr uint64, image []byte) error {
	if len(image) == 0 {
		return nil
	}
	if err := m.check(addr, len(image), true); err != nil {
		return err
	}
	copy(m.data[addr-m.base:], image)
	return nil
}

// CopyTo copies the full memory contents into dst, which must have
// capacity for the whole region. Returns the number of bytes copied.
func (m *Memory) CopyTo(dst []byte) int {
	return copy(dst[:len(m.data)], m.data)
}

// CopyFrom overwrites the full memory contents from src, which must be
// exactly the region size. The caller validates the length.
func (m *Memory) CopyFrom(src []byte) {
	copy(m.data, src[:len(m.data)])
}
