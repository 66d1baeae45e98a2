// Package memory implements the address-space side of the PPU: the bus that
// routes CPU-visible loads and stores into video RAM, OAM and the LCD
// registers, latches interrupt requests and runs OAM DMA.
package memory

import (
	"io"

	"github.com/richardwooding/dotmatrix/internal/ppu"
	"github.com/sirupsen/logrus"
)

// PPU is the interface the bus needs from the Picture Processing Unit.
// Offsets passed to the VRAM and OAM methods are relative to the start of
// each region.
type PPU interface {
	ReadVRAM(addr uint16) (uint8, error)
	WriteVRAM(addr uint16, value uint8) error
	ReadOAM(addr uint16) (uint8, error)
	WriteOAM(addr uint16, value uint8) error
	ReadRegister(addr uint16) (uint8, error)
	WriteRegister(addr uint16, value uint8) error
}

const (
	// AddrIF is the interrupt flag register.
	AddrIF = 0xFF0F
	// AddrDMA starts an OAM DMA transfer.
	AddrDMA = 0xFF46
	// AddrIE is the interrupt enable register.
	AddrIE = 0xFFFF

	dmaLength = 160
)

// Bus represents the Game Boy memory bus as seen by the PPU.
type Bus struct {
	ppu PPU

	// Work RAM (8 KiB)
	wram [0x2000]uint8 // C000-DFFF: Work RAM

	// I/O Registers not owned by the PPU (128 bytes)
	io [0x80]uint8 // FF00-FF7F: I/O Registers

	// High RAM (127 bytes)
	hram [0x7F]uint8 // FF80-FFFE: High RAM

	// Interrupt Enable Register (1 byte)
	ie uint8 // FFFF: Interrupt Enable

	// DMA state
	dmaActive bool   // DMA transfer in progress
	dmaSource uint16 // DMA source address (XX00)
	dmaCycles uint16 // Remaining DMA cycles (160 total)

	// Decode error policy
	log        logrus.FieldLogger
	strict     bool
	err        error
	errorCount int
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report decode errors.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Bus) {
		b.log = l
	}
}

// WithStrict makes the bus keep the first decode error for Err.
func WithStrict(strict bool) Option {
	return func(b *Bus) {
		b.strict = strict
	}
}

// NewBus creates a new memory bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		b.log = l
	}
	return b
}

// SetPPU sets the PPU for the memory bus.
func (b *Bus) SetPPU(p PPU) {
	b.ppu = p
}

// RequestInterrupt latches an interrupt request in IF. It matches the
// callback signature ppu.New expects.
func (b *Bus) RequestInterrupt(i ppu.Interrupt) {
	b.io[AddrIF-0xFF00] |= 1 << i
}

// PendingInterrupts returns IF masked by IE.
func (b *Bus) PendingInterrupts() uint8 {
	return b.io[AddrIF-0xFF00] & b.ie & 0x1F
}

// Read reads a byte from the memory bus.
func (b *Bus) Read(addr uint16) uint8 {
	// During DMA transfer, only HRAM (0xFF80-0xFFFE) is accessible to CPU
	if b.dmaActive && (addr < 0xFF80 || addr == AddrIE) {
		return 0xFF
	}
	return b.read(addr)
}

func (b *Bus) read(addr uint16) uint8 {
	switch {
	// ROM and cartridge RAM are not part of this bus
	case addr < 0x8000:
		return 0xFF

	// VRAM (8000-9FFF)
	case addr < 0xA000:
		if b.ppu == nil {
			return 0xFF
		}
		v, err := b.ppu.ReadVRAM(addr - 0x8000)
		b.check(err, addr, v)
		return v

	case addr < 0xC000:
		return 0xFF

	// Work RAM (C000-DFFF)
	case addr < 0xE000:
		return b.wram[addr-0xC000]

	// Echo RAM (E000-FDFF) - Mirror of C000-DDFF
	case addr < 0xFE00:
		return b.wram[addr-0xE000]

	// OAM (FE00-FE9F)
	case addr < 0xFEA0:
		if b.ppu == nil {
			return 0xFF
		}
		v, err := b.ppu.ReadOAM(addr - 0xFE00)
		b.check(err, addr, v)
		return v

	// Not Usable (FEA0-FEFF)
	case addr < 0xFF00:
		return 0xFF

	// I/O Registers (FF00-FF7F)
	case addr < 0xFF80:
		return b.readIO(addr)

	// High RAM (FF80-FFFE)
	case addr < AddrIE:
		return b.hram[addr-0xFF80]

	default:
		return b.ie
	}
}

// Write writes a byte to the memory bus.
func (b *Bus) Write(addr uint16, value uint8) {
	switch {
	case addr < 0x8000:
		// No cartridge: MBC writes are dropped

	// VRAM (8000-9FFF)
	case addr < 0xA000:
		if b.ppu != nil {
			b.check(b.ppu.WriteVRAM(addr-0x8000, value), addr, value)
		}

	case addr < 0xC000:

	// Work RAM (C000-DFFF)
	case addr < 0xE000:
		b.wram[addr-0xC000] = value

	// Echo RAM (E000-FDFF)
	case addr < 0xFE00:
		b.wram[addr-0xE000] = value

	// OAM (FE00-FE9F)
	case addr < 0xFEA0:
		if b.ppu != nil {
			b.check(b.ppu.WriteOAM(addr-0xFE00, value), addr, value)
		}

	// Not Usable (FEA0-FEFF)
	case addr < 0xFF00:

	// I/O Registers (FF00-FF7F)
	case addr < 0xFF80:
		b.writeIO(addr, value)

	// High RAM (FF80-FFFE)
	case addr < AddrIE:
		b.hram[addr-0xFF80] = value

	default:
		b.ie = value
	}
}

// isPPURegister reports whether addr is one of the LCD registers the PPU
// decodes.
func isPPURegister(addr uint16) bool {
	switch addr {
	case ppu.AddrLCDC, ppu.AddrSTAT, ppu.AddrSCY, ppu.AddrSCX,
		ppu.AddrLY, ppu.AddrLYC, ppu.AddrWY, ppu.AddrWX:
		return true
	}
	return false
}

// readIO reads from I/O registers.
func (b *Bus) readIO(addr uint16) uint8 {
	offset := addr - 0xFF00

	switch {
	case addr == AddrIF:
		// Upper three bits read as 1
		return b.io[offset] | 0xE0
	case isPPURegister(addr):
		if b.ppu == nil {
			return 0xFF
		}
		v, err := b.ppu.ReadRegister(addr)
		b.check(err, addr, v)
		return v
	default:
		// Palettes (FF47-FF49), DMA and the rest are stored raw
		return b.io[offset]
	}
}

// writeIO writes to I/O registers.
func (b *Bus) writeIO(addr uint16, value uint8) {
	offset := addr - 0xFF00

	switch {
	case addr == AddrIF:
		b.io[offset] = value & 0x1F
	case isPPURegister(addr):
		if b.ppu != nil {
			b.check(b.ppu.WriteRegister(addr, value), addr, value)
		}
	case addr == AddrDMA:
		// Sources above 0xDF would copy from OAM or I/O
		if value <= 0xDF {
			b.dmaActive = true
			b.dmaSource = uint16(value) << 8 // Source address is XX00
			b.dmaCycles = dmaLength
		}
		b.io[offset] = value
	default:
		b.io[offset] = value
	}
}

// check applies the decode error policy: log and continue, and in strict
// mode remember the first error.
func (b *Bus) check(err error, addr uint16, value uint8) {
	if err == nil {
		return
	}
	b.errorCount++
	b.log.WithFields(logrus.Fields{
		"addr":  addr,
		"value": value,
	}).WithError(err).Warn("PPU decode error")
	if b.strict && b.err == nil {
		b.err = err
	}
}

// Err returns the first decode error seen in strict mode.
func (b *Bus) Err() error {
	return b.err
}

// DecodeErrors returns how many decode errors the bus has absorbed.
func (b *Bus) DecodeErrors() int {
	return b.errorCount
}

// DMAActive reports whether an OAM DMA transfer is in progress.
func (b *Bus) DMAActive() bool {
	return b.dmaActive
}

// StepDMA advances the DMA transfer by one M-cycle.
// Returns true if DMA is still active, false if transfer is complete or inactive.
func (b *Bus) StepDMA() bool {
	if !b.dmaActive {
		return false
	}

	byteOffset := dmaLength - b.dmaCycles
	value := b.read(b.dmaSource + byteOffset)

	if b.ppu != nil {
		b.check(b.ppu.WriteOAM(byteOffset, value), 0xFE00+byteOffset, value)
	}

	b.dmaCycles--
	if b.dmaCycles == 0 {
		b.dmaActive = false
		return false
	}
	return true
}

// Reset clears all RAM while keeping the PPU attached.
func (b *Bus) Reset() {
	clear(b.wram[:])
	clear(b.io[:])
	clear(b.hram[:])
	b.ie = 0

	b.dmaActive = false
	b.dmaSource = 0
	b.dmaCycles = 0

	b.err = nil
	b.errorCount = 0
}
