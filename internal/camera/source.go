package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrEmptyCapture is returned when the sensor produced no bytes.
var ErrEmptyCapture = errors.New("capture produced no image data")

// CommandSource captures by running an external still-capture program that
// writes the JPEG to stdout (libcamera-still, raspistill, fswebcam...).
type CommandSource struct {
	name string
	args []string
	now  func() time.Time
}

// NewCommandSource builds a source from argv; argv[0] is the program.
func NewCommandSource(argv []string) (*CommandSource, error) {
	if len(argv) == 0 {
		return nil, errors.New("capture command is empty")
	}
	return &CommandSource{name: argv[0], args: argv[1:], now: time.Now}, nil
}

// Capture runs the command once. Stderr is kept so a failing camera stack
// shows its own diagnostics in the returned error.
func (s *CommandSource) Capture(ctx context.Context) (Image, error) {
	cmd := exec.CommandContext(ctx, s.name, s.args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return Image{}, fmt.Errorf("capture command %s: %w: %s", s.name, err, msg)
		}
		return Image{}, fmt.Errorf("capture command %s: %w", s.name, err)
	}
	if stdout.Len() == 0 {
		return Image{}, ErrEmptyCapture
	}

	log.Debug().
		Str("command", s.name).
		Int("bytes", stdout.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Image captured")

	return Image{Data: stdout.Bytes(), CapturedAt: s.now()}, nil
}

// FileSource re-reads a file on every capture. Replacing the file between
// captures simulates a scene change without camera hardware.
type FileSource struct {
	path string
	now  func() time.Time
}

// NewFileSource returns a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, now: time.Now}
}

// Capture reads the file.
func (s *FileSource) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Image{}, fmt.Errorf("read capture file: %w", err)
	}
	if len(data) == 0 {
		return Image{}, ErrEmptyCapture
	}
	return Image{Data: data, CapturedAt: s.now()}, nil
}
