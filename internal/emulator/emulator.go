// Package emulator provides the main emulator runner that ties together
// the memory bus and the PPU and drives them from write traces.
package emulator

import (
	"errors"
	"fmt"
	"io"

	"github.com/richardwooding/dotmatrix/internal/memory"
	"github.com/richardwooding/dotmatrix/internal/ppu"
	"github.com/richardwooding/dotmatrix/internal/trace"
	"github.com/sirupsen/logrus"
)

// CyclesPerMCycle is the number of dots in one machine cycle. OAM DMA copies
// one byte per machine cycle.
const CyclesPerMCycle = 4

var (
	// ErrNoFrame indicates no V-Blank was reached, usually because the LCD
	// is off.
	ErrNoFrame = errors.New("no frame produced")
)

// Emulator represents a Game Boy video subsystem instance.
type Emulator struct {
	PPU    *ppu.PPU
	Memory *memory.Bus

	log logrus.FieldLogger

	frames    int // V-Blank interrupts seen since reset
	dmaCycles int // cycles not yet spent on DMA
}

type config struct {
	log    logrus.FieldLogger
	strict bool
}

// Option configures an Emulator.
type Option func(*config)

// WithLogger sets the logger shared by the emulator, bus and PPU.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithStrict makes trace execution stop at the first PPU decode error.
func WithStrict(strict bool) Option {
	return func(c *config) {
		c.strict = strict
	}
}

// New creates a new emulator instance with the LCD in its power-on state.
func New(opts ...Option) *Emulator {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.log = l
	}

	e := &Emulator{log: cfg.log}

	e.Memory = memory.NewBus(
		memory.WithLogger(cfg.log.WithField("component", "bus")),
		memory.WithStrict(cfg.strict),
	)
	e.PPU = ppu.New(e.requestInterrupt, ppu.WithLogger(cfg.log.WithField("component", "ppu")))
	e.Memory.SetPPU(e.PPU)

	return e
}

func (e *Emulator) requestInterrupt(i ppu.Interrupt) {
	if i == ppu.InterruptVBlank {
		e.frames++
	}
	e.Memory.RequestInterrupt(i)
}

// Step advances the PPU and any running OAM DMA by the given number of
// cycles.
func (e *Emulator) Step(cycles int) {
	if cycles <= 0 {
		return
	}

	if e.Memory.DMAActive() {
		e.dmaCycles += cycles
		for e.dmaCycles >= CyclesPerMCycle && e.Memory.StepDMA() {
			e.dmaCycles -= CyclesPerMCycle
		}
		if !e.Memory.DMAActive() {
			e.dmaCycles = 0
		}
	}

	e.PPU.Step(cycles)
}

// RunFrame steps the emulator one machine cycle at a time until the next
// V-Blank interrupt. It gives up after two frames worth of cycles.
func (e *Emulator) RunFrame() error {
	if !e.PPU.Enabled() {
		return fmt.Errorf("%w: LCD is off", ErrNoFrame)
	}

	start := e.frames
	for budget := 2 * ppu.DotsPerFrame; e.frames == start; budget -= CyclesPerMCycle {
		if budget <= 0 {
			return fmt.Errorf("%w: no V-Blank within %d cycles", ErrNoFrame, 2*ppu.DotsPerFrame)
		}
		e.Step(CyclesPerMCycle)
	}
	return nil
}

// Exec executes one trace operation.
func (e *Emulator) Exec(op trace.Op) error {
	switch op.Kind {
	case trace.KindWrite:
		e.Memory.Write(op.Addr, op.Value)
	case trace.KindStep:
		e.Step(op.Cycles)
	case trace.KindFrame:
		for range op.Frames {
			if err := e.RunFrame(); err != nil {
				return fmt.Errorf("line %d: %w", op.Line, err)
			}
		}
	default:
		return fmt.Errorf("line %d: unknown operation %v", op.Line, op.Kind)
	}

	if err := e.Memory.Err(); err != nil {
		return fmt.Errorf("line %d: %w", op.Line, err)
	}
	return nil
}

// Run executes a whole trace.
func (e *Emulator) Run(ops []trace.Op) error {
	for _, op := range ops {
		if err := e.Exec(op); err != nil {
			return err
		}
	}

	e.log.WithFields(logrus.Fields{
		"ops":           len(ops),
		"frames":        e.frames,
		"decode_errors": e.Memory.DecodeErrors(),
	}).Debug("trace finished")
	return nil
}

// Frames returns the number of V-Blank interrupts raised since reset.
func (e *Emulator) Frames() int {
	return e.frames
}

// Framebuffer returns the PPU screen buffer.
func (e *Emulator) Framebuffer() *ppu.Framebuffer {
	return e.PPU.Framebuffer()
}

// Reset resets the emulator to its initial state.
func (e *Emulator) Reset() {
	e.Memory.Reset()
	e.PPU.Reset()
	e.frames = 0
	e.dmaCycles = 0
}
