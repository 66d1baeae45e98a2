// Package trace parses write traces: small line-oriented scripts of bus
// stores and elapsed-cycle counts that drive the emulator in place of a CPU.
//
// A trace looks like this:
//
//	# clear the first background tile and turn the LCD on
//	fill 8000 10 00
//	bytes 8010 FF 00 FF 00
//	write FF40 91
//	step 456
//	frame 2
//
// Addresses, bytes and fill counts are hexadecimal with an optional 0x or $
// prefix. Step cycles and frame counts are decimal. Files ending in .zst are
// zstd compressed.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("trace syntax error")

// Kind is the type of a trace operation.
type Kind uint8

const (
	// KindWrite stores Value at Addr.
	KindWrite Kind = iota
	// KindStep advances the emulator by Cycles.
	KindStep
	// KindFrame runs until Frames more V-Blank interrupts were raised.
	KindFrame
)

func (k Kind) String() string {
	switch k {
	case KindWrite:
		return "write"
	case KindStep:
		return "step"
	case KindFrame:
		return "frame"
	default:
		return "Kind(?)"
	}
}

// Op is one operation of a trace. fill and bytes directives expand into one
// write per byte.
type Op struct {
	Kind   Kind
	Addr   uint16
	Value  uint8
	Cycles int
	Frames int

	// Line is the 1-based source line the operation came from.
	Line int
}

// String formats the operation in trace syntax.
func (o Op) String() string {
	switch o.Kind {
	case KindWrite:
		return fmt.Sprintf("write %04X %02X", o.Addr, o.Value)
	case KindStep:
		return fmt.Sprintf("step %d", o.Cycles)
	case KindFrame:
		return fmt.Sprintf("frame %d", o.Frames)
	default:
		return o.Kind.String()
	}
}

// maxLineSize bounds a single trace line. A bytes directive covering the
// whole address space fits.
const maxLineSize = 1 << 20

// Parse reads a trace from r.
func Parse(r io.Reader) ([]Op, error) {
	var ops []Op
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		var err error
		ops, err = parseDirective(ops, strings.ToLower(fields[0]), fields[1:], line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrSyntax, line, err)
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: line %d: %w", ErrSyntax, line+1, err)
		}
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	return ops, nil
}

// ParseString parses a trace held in memory.
func ParseString(s string) ([]Op, error) {
	return Parse(strings.NewReader(s))
}

// Open reads and parses the trace file at path, decompressing it first when
// the name ends in .zst.
func Open(path string) ([]Op, error) {
	// #nosec G304 - path is provided by the user via CLI argument
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".zst") {
		return Parse(f)
	}

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}
	defer zr.Close()
	return Parse(zr)
}

// Compress writes the zstd-compressed form of the trace read from r to w.
func Compress(w io.Writer, r io.Reader) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return fmt.Errorf("failed to compress trace: %w", err)
	}
	return zw.Close()
}

func parseDirective(ops []Op, name string, args []string, line int) ([]Op, error) {
	switch name {
	case "write", "w":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s takes ADDR VALUE", name)
		}
		addr, err := parseAddr(args[0])
		if err != nil {
			return nil, err
		}
		v, err := parseByte(args[1])
		if err != nil {
			return nil, err
		}
		return append(ops, Op{Kind: KindWrite, Addr: addr, Value: v, Line: line}), nil

	case "fill":
		if len(args) != 3 {
			return nil, errors.New("fill takes ADDR COUNT VALUE")
		}
		addr, err := parseAddr(args[0])
		if err != nil {
			return nil, err
		}
		count, err := parseHex(args[1], 17)
		if err != nil {
			return nil, err
		}
		v, err := parseByte(args[2])
		if err != nil {
			return nil, err
		}
		if int(addr)+int(count) > 0x10000 {
			return nil, fmt.Errorf("fill of %d bytes at %04X runs past FFFF", count, addr)
		}
		for i := range int(count) { //nolint:gosec // count <= 0x10000-addr
			ops = append(ops, Op{Kind: KindWrite, Addr: addr + uint16(i), Value: v, Line: line}) //nolint:gosec // bounded above
		}
		return ops, nil

	case "bytes":
		if len(args) < 2 {
			return nil, errors.New("bytes takes ADDR B0 [B1 ...]")
		}
		addr, err := parseAddr(args[0])
		if err != nil {
			return nil, err
		}
		if int(addr)+len(args)-1 > 0x10000 {
			return nil, fmt.Errorf("%d bytes at %04X run past FFFF", len(args)-1, addr)
		}
		for i, s := range args[1:] {
			v, err := parseByte(s)
			if err != nil {
				return nil, err
			}
			ops = append(ops, Op{Kind: KindWrite, Addr: addr + uint16(i), Value: v, Line: line}) //nolint:gosec // bounded above
		}
		return ops, nil

	case "step", "s":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes CYCLES", name)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid cycle count %q", args[0])
		}
		return append(ops, Op{Kind: KindStep, Cycles: n, Line: line}), nil

	case "frame":
		n := 1
		switch len(args) {
		case 0:
		case 1:
			var err error
			n, err = strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid frame count %q", args[0])
			}
		default:
			return nil, errors.New("frame takes at most one count")
		}
		return append(ops, Op{Kind: KindFrame, Frames: n, Line: line}), nil

	default:
		return nil, fmt.Errorf("unknown directive %q", name)
	}
}

func parseHex(s string, bits int) (uint64, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "0x"), "$")
	v, err := strconv.ParseUint(digits, 16, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseAddr(s string) (uint16, error) {
	v, err := parseHex(s, 16)
	return uint16(v), err //nolint:gosec // parsed with 16 bits
}

func parseByte(s string) (uint8, error) {
	v, err := parseHex(s, 8)
	return uint8(v), err //nolint:gosec // parsed with 8 bits
}
