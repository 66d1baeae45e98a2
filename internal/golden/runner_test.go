package golden

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richardwooding/dotmatrix/internal/emulator"
	"github.com/richardwooding/dotmatrix/internal/frame"
	"github.com/richardwooding/dotmatrix/internal/trace"
)

const checkerboard = `
bytes 8010 FF FF 00 00 FF FF 00 00 FF FF 00 00 FF FF 00 00
fill 9800 400 01
frame
`

func writeTrace(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.trace")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// expectedHash renders body directly through the emulator.
func expectedHash(t *testing.T, body string, frames int) string {
	t.Helper()
	ops, err := trace.ParseString(body)
	if err != nil {
		t.Fatal(err)
	}
	emu := emulator.New()
	if err := emu.Run(ops); err != nil {
		t.Fatal(err)
	}
	for range frames {
		if err := emu.RunFrame(); err != nil {
			t.Fatal(err)
		}
	}
	return frame.HashString(emu.Framebuffer())
}

func TestRunRecordsHash(t *testing.T) {
	path := writeTrace(t, checkerboard)

	result := Run(path, 0, "")
	if result.Error != nil {
		t.Fatalf("Run() error: %v", result.Error)
	}
	if want := expectedHash(t, checkerboard, 0); result.Hash != want {
		t.Errorf("Hash = %s, want %s", result.Hash, want)
	}
	if result.Frames != 1 {
		t.Errorf("Frames = %d, want 1", result.Frames)
	}
	if result.Passed || result.Failed || result.IsSuccess() {
		t.Error("result without expectation should be neither passed nor failed")
	}
	if !strings.HasPrefix(result.String(), "UNCHECKED ") {
		t.Errorf("String() = %q", result.String())
	}
}

func TestRunPassAndFail(t *testing.T) {
	path := writeTrace(t, checkerboard)
	want := expectedHash(t, checkerboard, 2)

	tests := []struct {
		name   string
		expect string
		pass   bool
		prefix string
	}{
		{"exact", want, true, "PASSED"},
		{"upper case with prefix", "0x" + strings.ToUpper(want), true, "PASSED"},
		{"upper case prefix", "0X" + strings.ToUpper(want), true, "PASSED"},
		{"mismatch", "0000000000000000", false, "FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Run(path, 2, tt.expect)
			if result.IsSuccess() != tt.pass {
				t.Errorf("IsSuccess() = %v, want %v (%s)", result.IsSuccess(), tt.pass, result)
			}
			if result.Failed == tt.pass {
				t.Errorf("Failed = %v", result.Failed)
			}
			if !strings.HasPrefix(result.String(), tt.prefix) {
				t.Errorf("String() = %q, want prefix %q", result.String(), tt.prefix)
			}
			if result.Frames != 3 {
				t.Errorf("Frames = %d, want 3", result.Frames)
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		result := Run(filepath.Join(t.TempDir(), "nope.trace"), 0, "")
		if result.Error == nil || result.IsSuccess() {
			t.Errorf("result = %s, want error", result)
		}
	})

	t.Run("syntax", func(t *testing.T) {
		result := Run(writeTrace(t, "poke 1 2"), 0, "")
		if !errors.Is(result.Error, trace.ErrSyntax) {
			t.Errorf("Error = %v, want ErrSyntax", result.Error)
		}
	})

	t.Run("LCD off", func(t *testing.T) {
		result := Run(writeTrace(t, "write FF40 00"), 1, "")
		if !errors.Is(result.Error, emulator.ErrNoFrame) {
			t.Errorf("Error = %v, want ErrNoFrame", result.Error)
		}
		if !strings.HasPrefix(result.String(), "ERROR: ") {
			t.Errorf("String() = %q", result.String())
		}
	})
}
