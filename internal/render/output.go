package render

import (
	"errors"
	"fmt"
	"image/gif"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for output extensions other than
// .png, .gif and .mp4.
var ErrUnsupportedFormat = errors.New("unsupported output format: use .png, .gif or .mp4")

// ErrEncoderUnavailable is returned for .mp4 output, which needs an external
// video encoder. Callers should treat it as a warning.
var ErrEncoderUnavailable = errors.New("mp4 output needs an external encoder such as ffmpeg; write a .gif and convert it")

// Format is an output kind selected by file extension.
type Format int

const (
	FormatUnknown Format = iota
	FormatPNG
	FormatGIF
	FormatMP4
)

// FormatFor returns the output format for path's extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG
	case ".gif":
		return FormatGIF
	case ".mp4":
		return FormatMP4
	default:
		return FormatUnknown
	}
}

// Encode renders series in the format selected by format and writes it to w.
// PNG shows every trajectory; animations show only the first one.
func Encode(w io.Writer, format Format, plot Plot, series []Series, opts AnimationOptions) error {
	switch format {
	case FormatPNG:
		img, err := RenderStatic(plot, series)
		if err != nil {
			return err
		}
		return png.Encode(w, img)

	case FormatGIF:
		if err := checkSeries(series); err != nil {
			return err
		}
		if len(series) > 1 {
			slog.Warn("Animation supports a single optimizer, using the first",
				"optimizer", series[0].Name,
				"requested", len(series),
			)
		}
		anim, err := RenderAnimation(plot, series[0], opts)
		if err != nil {
			return err
		}
		return gif.EncodeAll(w, anim)

	case FormatMP4:
		return ErrEncoderUnavailable

	default:
		return ErrUnsupportedFormat
	}
}

// WriteFile renders to path, creating its directory. The format is chosen
// from the extension; nothing is created for unsupported formats.
func WriteFile(path string, plot Plot, series []Series, opts AnimationOptions) error {
	format := FormatFor(path)
	switch format {
	case FormatUnknown:
		return fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	case FormatMP4:
		return fmt.Errorf("%s: %w", path, ErrEncoderUnavailable)
	}

	return writeAtomic(path, func(w io.Writer) error {
		return Encode(w, format, plot, series, opts)
	})
}

// WriteComparison renders a side-by-side animation to a .gif path.
func WriteComparison(path string, plot Plot, series []Series, opts AnimationOptions) error {
	switch FormatFor(path) {
	case FormatGIF:
	case FormatMP4:
		return fmt.Errorf("%s: %w", path, ErrEncoderUnavailable)
	default:
		return fmt.Errorf("%s: comparison output must be .gif: %w", path, ErrUnsupportedFormat)
	}

	return writeAtomic(path, func(w io.Writer) error {
		anim, err := RenderComparison(plot, series, opts)
		if err != nil {
			return err
		}
		return gif.EncodeAll(w, anim)
	})
}

// writeAtomic writes through a temp file and renames it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close output: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename output: %w", err)
	}

	slog.Debug("Wrote output", "path", path)
	return nil
}
