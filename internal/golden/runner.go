// Package golden runs write traces and checks the resulting frame against an
// expected hash.
package golden

import (
	"fmt"
	"strings"

	"github.com/richardwooding/dotmatrix/internal/emulator"
	"github.com/richardwooding/dotmatrix/internal/frame"
	"github.com/richardwooding/dotmatrix/internal/trace"
)

// Result represents the result of running a golden trace.
type Result struct {
	Hash   string
	Frames int
	Passed bool
	Failed bool
	Error  error
}

// Run executes the trace at path, runs frames more frames and compares the
// frame hash with expect. An empty expect only records the hash.
func Run(path string, frames int, expect string, opts ...emulator.Option) *Result {
	result := &Result{}

	ops, err := trace.Open(path)
	if err != nil {
		result.Error = err
		return result
	}

	emu := emulator.New(opts...)
	if err := emu.Run(ops); err != nil {
		result.Error = fmt.Errorf("failed to run trace: %w", err)
		return result
	}

	for range frames {
		if err := emu.RunFrame(); err != nil {
			result.Error = err
			return result
		}
	}

	result.Frames = emu.Frames()
	result.Hash = frame.HashString(emu.Framebuffer())

	if expect != "" {
		result.Passed = strings.EqualFold(result.Hash, strings.TrimPrefix(strings.ToLower(expect), "0x"))
		result.Failed = !result.Passed
	}

	return result
}

// String returns a human-readable representation of the result.
func (r *Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("ERROR: %v", r.Error)
	}

	if r.Passed {
		return "PASSED " + r.Hash
	}

	if r.Failed {
		return "FAILED " + r.Hash
	}

	return "UNCHECKED " + r.Hash
}

// IsSuccess returns true if the frame matched the expected hash.
func (r *Result) IsSuccess() bool {
	return r.Passed && !r.Failed && r.Error == nil
}
