// Package transcode wraps the external transcoding capability. Each call
// spawns one independent ffmpeg process; the only terminal observable states
// are success (output fully written) and failure (child process exited with
// an error). Cleanup of a partially written output is the caller's job.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Engine is the port for the transcoding capability. The caller must
// validate targetHeight before invoking Transcode; the adapter performs no
// bounds checking of its own.
type Engine interface {
	// Transcode scales the video at inputPath to targetHeight, preserving
	// aspect ratio with even pixel dimensions, and writes it to outputPath.
	Transcode(ctx context.Context, inputPath, outputPath string, targetHeight int) error
}

// Compile-time check that FFmpegEngine implements Engine.
var _ Engine = (*FFmpegEngine)(nil)

// FFmpegEngine implements Engine using the ffmpeg CLI.
type FFmpegEngine struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	logger     *slog.Logger
}

// NewFFmpegEngine creates a new FFmpegEngine.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegEngine(ffmpegPath string, logger *slog.Logger) *FFmpegEngine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegEngine{ffmpegPath: ffmpegPath, logger: logger}
}

// scaleFilter builds the ffmpeg scale expression for targetHeight.
// Width is derived from the input aspect ratio and truncated to an even
// integer, which common encoders require for chroma subsampling.
func scaleFilter(targetHeight int) string {
	return fmt.Sprintf("scale=trunc(oh*a/2)*2:%d", targetHeight)
}

// Transcode runs one ffmpeg process scaling the input to targetHeight.
// Cancelling the context kills the child process. On failure the returned
// error is an *FFmpegError carrying the engine's stderr output.
func (e *FFmpegEngine) Transcode(ctx context.Context, inputPath, outputPath string, targetHeight int) error {
	args := []string{
		"-y",            // Overwrite output file without asking
		"-i", inputPath, // Input file
		"-vf", scaleFilter(targetHeight), // Scale to target height, even width
		outputPath, // Output file
	}

	start := time.Now()
	e.logger.Info("transcode started",
		slog.String("input", inputPath),
		slog.String("output", outputPath),
		slog.Int("target_height", targetHeight),
	)

	if err := e.runFFmpeg(ctx, args); err != nil {
		e.logger.Error("transcode failed",
			slog.String("input", inputPath),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.logger.Info("transcode finished",
		slog.String("output", outputPath),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (e *FFmpegEngine) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
