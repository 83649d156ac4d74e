package sensors

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os/exec"
	"strings"
	"sync"
)

// Camera grabs one still frame per call.
type Camera interface {
	// Capture returns an encoded JPEG frame, or an error when the grab fails.
	Capture(ctx context.Context) ([]byte, error)

	// Available reports whether the camera can be used at all. The motion
	// pipeline checks this once at startup and never begins looping if the
	// camera is absent.
	Available() bool
}

// CLICamera shells out to the platform still-capture tool (rpicam-jpeg on
// current Raspberry Pi OS) and reads the frame from stdout.
type CLICamera struct {
	command string
	args    []string
}

// NewCLICamera builds a camera around the given capture command and its
// space-separated flags.
func NewCLICamera(command, flags string) *CLICamera {
	return &CLICamera{command: command, args: strings.Fields(flags)}
}

// Available reports whether the capture command exists on PATH.
func (c *CLICamera) Available() bool {
	_, err := exec.LookPath(c.command)
	return err == nil
}

// Capture invokes the capture command once and returns its stdout.
func (c *CLICamera) Capture(ctx context.Context) ([]byte, error) {
	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %v (%s)", c.command, err, strings.TrimSpace(stderr.String()))
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("%s produced no frame data", c.command)
	}
	return out.Bytes(), nil
}

// SimCamera synthesizes JPEG frames for dev mode. With jitter enabled each
// frame's base color shifts, which is enough to trip the change detector and
// exercise the whole motion path without hardware.
type SimCamera struct {
	mu     sync.Mutex
	jitter bool
	frame  int
}

// NewSimCamera creates a simulator. jitter controls whether consecutive
// frames differ.
func NewSimCamera(jitter bool) *SimCamera {
	return &SimCamera{jitter: jitter}
}

// Available always reports true for the simulator.
func (c *SimCamera) Available() bool { return true }

// Capture returns the next synthetic frame.
func (c *SimCamera) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.frame++
	level := uint8(40)
	if c.jitter {
		level = uint8(40 + (c.frame%8)*25)
	}
	c.mu.Unlock()
	return EncodeSolidJPEG(320, 240, color.RGBA{R: level, G: level, B: level, A: 255})
}

// EncodeSolidJPEG renders a single-color JPEG frame. Exported because the
// motion detector tests build their fixtures the same way.
func EncodeSolidJPEG(width, height int, c color.RGBA) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encoding synthetic frame: %w", err)
	}
	return buf.Bytes(), nil
}
