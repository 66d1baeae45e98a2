// Package main provides the dotmatrix CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/richardwooding/dotmatrix/internal/emulator"
	"github.com/richardwooding/dotmatrix/internal/frame"
	"github.com/richardwooding/dotmatrix/internal/golden"
	"github.com/richardwooding/dotmatrix/internal/ppu"
	"github.com/richardwooding/dotmatrix/internal/stream"
	"github.com/richardwooding/dotmatrix/internal/trace"
	"github.com/sirupsen/logrus"
)

var (
	// ErrCheckFailed indicates a golden check did not match.
	ErrCheckFailed = errors.New("check failed")

	// ErrInvalidScale indicates the scale factor is out of valid range.
	ErrInvalidScale = errors.New("scale must be between 1 and 10")
)

// Globals are the flags shared by every command.
type Globals struct {
	Config    kong.ConfigFlag `help:"Load flag defaults from a JSON file."`
	LogLevel  string          `help:"Log level (trace, debug, info, warn, error)." default:"warn" enum:"trace,debug,info,warn,error"`
	LogFormat string          `help:"Log format (text, json)." default:"text" enum:"text,json"`
	Strict    bool            `help:"Stop at the first PPU decode error."`
}

// CLI represents the command-line interface structure.
type CLI struct {
	Globals

	Render   RenderCmd   `cmd:"" help:"Run a trace and write the final frame as an image."`
	Hash     HashCmd     `cmd:"" help:"Run a trace and print the frame hash."`
	Check    CheckCmd    `cmd:"" help:"Run a trace and compare the frame hash with an expected value."`
	Tiles    TilesCmd    `cmd:"" help:"Run a trace and write the tile cache as an image."`
	View     ViewCmd     `cmd:"" help:"Play a trace in a window."`
	Serve    ServeCmd    `cmd:"" help:"Play a trace and stream frames over websocket."`
	Compress CompressCmd `cmd:"" help:"Compress a trace with zstd."`
}

// newLogger builds the logger described by the global flags.
func (g *Globals) newLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(g.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	if g.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.Formatter = &logrus.TextFormatter{
			DisableTimestamp: true,
			DisableQuote:     true,
		}
	}
	return l, nil
}

func (g *Globals) newEmulator(log logrus.FieldLogger) *emulator.Emulator {
	return emulator.New(emulator.WithLogger(log), emulator.WithStrict(g.Strict))
}

// runTrace loads the trace at path, executes it and runs frames more frames.
func (g *Globals) runTrace(log logrus.FieldLogger, path string, frames int) (*emulator.Emulator, error) {
	ops, err := trace.Open(path)
	if err != nil {
		return nil, err
	}

	emu := g.newEmulator(log)
	if err := emu.Run(ops); err != nil {
		return nil, fmt.Errorf("failed to run trace: %w", err)
	}
	for range frames {
		if err := emu.RunFrame(); err != nil {
			return nil, err
		}
	}
	return emu, nil
}

func validateScale(scale int) error {
	if scale < 1 || scale > 10 {
		return fmt.Errorf("%w: got %d", ErrInvalidScale, scale)
	}
	return nil
}

func writeImageFile(path, format string, scale int, encode func(f *os.File) error) (err error) {
	// #nosec G304 - path is provided by the user via CLI argument
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := encode(f); err != nil {
		return fmt.Errorf("failed to write %s image (scale %d): %w", format, scale, err)
	}
	return nil
}

// RenderCmd runs a trace and writes the final frame.
type RenderCmd struct {
	Trace  string `arg:"" type:"existingfile" help:"Path to trace file."`
	Output string `short:"o" default:"frame.png" help:"Output image path."`
	Format string `default:"png" enum:"png,bmp" help:"Image format (png, bmp)."`
	Scale  int    `help:"Scale factor (1-10)." default:"1"`
	Frames int    `help:"Extra frames to run after the trace." default:"0"`
}

// Run executes the render command.
func (c *RenderCmd) Run(g *Globals, log *logrus.Logger) error {
	if err := validateScale(c.Scale); err != nil {
		return err
	}

	emu, err := g.runTrace(log, c.Trace, c.Frames)
	if err != nil {
		return err
	}

	img := frame.Image(emu.Framebuffer())
	if err := writeImageFile(c.Output, c.Format, c.Scale, func(f *os.File) error {
		return frame.Encode(f, img, c.Format, c.Scale)
	}); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"output": c.Output,
		"frames": emu.Frames(),
		"hash":   frame.HashString(emu.Framebuffer()),
	}).Info("frame written")
	return nil
}

// HashCmd prints the hash of the final frame.
type HashCmd struct {
	Trace  string `arg:"" type:"existingfile" help:"Path to trace file."`
	Frames int    `help:"Extra frames to run after the trace." default:"0"`
}

// Run executes the hash command.
func (c *HashCmd) Run(g *Globals, log *logrus.Logger) error {
	emu, err := g.runTrace(log, c.Trace, c.Frames)
	if err != nil {
		return err
	}
	fmt.Println(frame.HashString(emu.Framebuffer()))
	return nil
}

// CheckCmd compares the final frame with an expected hash.
type CheckCmd struct {
	Trace  string `arg:"" type:"existingfile" help:"Path to trace file."`
	Expect string `arg:"" help:"Expected frame hash (16 hex digits)."`
	Frames int    `help:"Extra frames to run after the trace." default:"0"`
}

// Run executes the check command.
func (c *CheckCmd) Run(g *Globals, log *logrus.Logger) error {
	fmt.Printf("Checking trace: %s\n", c.Trace)

	result := golden.Run(c.Trace, c.Frames, c.Expect,
		emulator.WithLogger(log), emulator.WithStrict(g.Strict))

	fmt.Printf("Result: %s\n", result.String())

	if !result.IsSuccess() {
		return ErrCheckFailed
	}
	return nil
}

// TilesCmd writes the tile cache as a 16x24 tile sheet.
type TilesCmd struct {
	Trace  string `arg:"" type:"existingfile" help:"Path to trace file."`
	Output string `short:"o" default:"tiles.png" help:"Output image path."`
	Format string `default:"png" enum:"png,bmp" help:"Image format (png, bmp)."`
	Scale  int    `help:"Scale factor (1-10)." default:"2"`
}

// Run executes the tiles command.
func (c *TilesCmd) Run(g *Globals, log *logrus.Logger) error {
	if err := validateScale(c.Scale); err != nil {
		return err
	}

	emu, err := g.runTrace(log, c.Trace, 0)
	if err != nil {
		return err
	}

	sheet, err := frame.TileSheet(emu.PPU)
	if err != nil {
		return err
	}
	return writeImageFile(c.Output, c.Format, c.Scale, func(f *os.File) error {
		return frame.Encode(f, sheet, c.Format, c.Scale)
	})
}

// ViewCmd plays a trace in a window.
type ViewCmd struct {
	Trace string `arg:"" type:"existingfile" help:"Path to trace file."`
	Scale int    `help:"Display scale factor (1-10)." default:"3"`
}

// Run executes the view command.
func (c *ViewCmd) Run(g *Globals, log *logrus.Logger) error {
	if err := validateScale(c.Scale); err != nil {
		return err
	}

	ops, err := trace.Open(c.Trace)
	if err != nil {
		return err
	}

	display := NewDisplay(newPlayer(g.newEmulator(log), ops))

	// Configure Ebiten window
	ebiten.SetWindowTitle("dotmatrix - " + c.Trace)
	ebiten.SetWindowSize(ppu.ScreenWidth*c.Scale, ppu.ScreenHeight*c.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(60) // Close to the DMG's ~59.73 Hz frame rate

	if err := ebiten.RunGame(display); err != nil {
		return fmt.Errorf("viewer error: %w", err)
	}
	return nil
}

// ServeCmd streams a trace to websocket clients.
type ServeCmd struct {
	Trace string `arg:"" type:"existingfile" help:"Path to trace file."`
	Addr  string `default:":8090" help:"Listen address."`
}

// Run executes the serve command.
func (c *ServeCmd) Run(g *Globals, log *logrus.Logger) error {
	ops, err := trace.Open(c.Trace)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hub := stream.NewHub(stream.WithLogger(log.WithField("component", "stream")))
	p := newPlayer(g.newEmulator(log), ops)

	errc := make(chan error, 1)
	go func() {
		errc <- p.stream(ctx, hub)
	}()

	err = hub.Run(ctx, c.Addr)
	stop()
	if perr := <-errc; err == nil {
		err = perr
	}
	return err
}

// CompressCmd writes a zstd-compressed copy of a trace.
type CompressCmd struct {
	Trace  string `arg:"" type:"existingfile" help:"Path to trace file."`
	Output string `short:"o" help:"Output path (default: TRACE.zst)."`
}

// Run executes the compress command.
func (c *CompressCmd) Run() (err error) {
	out := c.Output
	if out == "" {
		out = c.Trace + ".zst"
	}

	// #nosec G304 - paths are provided by the user via CLI argument
	in, err := os.Open(c.Trace)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	defer in.Close()

	// #nosec G304
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return trace.Compress(f, in)
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("dotmatrix"),
		kong.Description("A trace-driven Game Boy (DMG) PPU emulator."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON),
	)

	log, err := cli.newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = ctx.Run(&cli.Globals, log)
	if err != nil {
		log.WithError(err).Debug("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
