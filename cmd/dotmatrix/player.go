package main

import (
	"context"
	"time"

	"github.com/richardwooding/dotmatrix/internal/emulator"
	"github.com/richardwooding/dotmatrix/internal/stream"
	"github.com/richardwooding/dotmatrix/internal/trace"
)

// frameInterval is the DMG frame period (70224 dots at 4.194304 MHz).
const frameInterval = 16742706 * time.Nanosecond

// player replays a trace one frame at a time.
type player struct {
	emu  *emulator.Emulator
	ops  []trace.Op
	next int
}

func newPlayer(emu *emulator.Emulator, ops []trace.Op) *player {
	return &player{emu: emu, ops: ops}
}

// done reports whether every trace operation has been executed.
func (p *player) done() bool {
	return p.next >= len(p.ops)
}

// advance executes trace operations until at least one more frame has been
// produced. Once the trace is exhausted it keeps running frames, so the last
// scene stays live. With the LCD off and nothing left to execute it does
// nothing.
func (p *player) advance() error {
	start := p.emu.Frames()
	for !p.done() && p.emu.Frames() == start {
		if err := p.emu.Exec(p.ops[p.next]); err != nil {
			return err
		}
		p.next++
	}

	if p.emu.Frames() != start || !p.emu.PPU.Enabled() {
		return nil
	}
	return p.emu.RunFrame()
}

// stream advances one frame per frame period and hands each frame to hub
// until ctx is done.
func (p *player) stream(ctx context.Context, hub *stream.Hub) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.advance(); err != nil {
				return err
			}
			hub.Broadcast(p.emu.Framebuffer())
		}
	}
}
