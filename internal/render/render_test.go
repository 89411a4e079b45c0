package render

import (
	"bytes"
	"errors"
	"image"
	"image/gif"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/cwbudde/descentviz/internal/optim"
)

func quadraticPlot(t *testing.T) Plot {
	t.Helper()
	fn, err := objective.Lookup("quadratic")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	return Plot{Function: fn, Title: "Optimizers on 'quadratic'\nLR=0.1, Iterations=10"}
}

func straightPath(n int) []optim.Vector {
	points := make([]optim.Vector, n)
	for i := range points {
		points[i] = optim.Vector{5 - float64(i)*0.5, 5 - float64(i)*0.5}
	}
	return points
}

func countIndex(img *image.Paletted, idx uint8) int {
	n := 0
	for _, p := range img.Pix {
		if p == idx {
			n++
		}
	}
	return n
}

func TestLevelIndex(t *testing.T) {
	tests := []struct {
		value float64
		want  uint8
	}{
		{0, idxLevels},
		{1, idxLevels},
		{10, idxLevels + 6},
		{1e5, idxLevels + numLevels - 1},
		{1e9, idxLevels + numLevels - 1},
	}
	for _, tt := range tests {
		if got := levelIndex(tt.value); got != tt.want {
			t.Errorf("levelIndex(%g) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestPaletteFitsGIF(t *testing.T) {
	if len(palette) > 256 {
		t.Fatalf("Palette has %d colors, GIF allows 256", len(palette))
	}
	if int(idxLevels)+numLevels != len(palette) {
		t.Errorf("Expected %d palette entries, got %d", int(idxLevels)+numLevels, len(palette))
	}
}

func TestFrameIndices(t *testing.T) {
	tests := []struct {
		name      string
		n, max    int
		wantLen   int
		wantFirst int
		wantLast  int
	}{
		{"uncapped", 11, 0, 11, 0, 10},
		{"below cap", 11, 200, 11, 0, 10},
		{"sampled", 601, 100, 100, 0, 600},
		{"single frame cap", 50, 1, 1, 49, 49},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := frameIndices(tt.n, tt.max)
			if len(idx) != tt.wantLen {
				t.Fatalf("Expected %d frames, got %d", tt.wantLen, len(idx))
			}
			if idx[0] != tt.wantFirst || idx[len(idx)-1] != tt.wantLast {
				t.Errorf("Expected frames %d..%d, got %d..%d", tt.wantFirst, tt.wantLast, idx[0], idx[len(idx)-1])
			}
		})
	}

	if frameIndices(0, 10) != nil {
		t.Error("Expected no frames for empty trajectory")
	}
}

func TestClipSegment(t *testing.T) {
	r := image.Rect(0, 0, 100, 100)

	ax, ay, bx, by, ok := clipSegment(10, 10, 50, 50, r)
	if !ok || ax != 10 || ay != 10 || bx != 50 || by != 50 {
		t.Errorf("Inside segment changed: (%g,%g)-(%g,%g) ok=%v", ax, ay, bx, by, ok)
	}

	if _, _, _, _, ok := clipSegment(-50, -50, -10, -10, r); ok {
		t.Error("Expected segment outside to be rejected")
	}

	_, _, bx, by, ok = clipSegment(50, 50, 1e12, 50, r)
	if !ok || math.Abs(bx-99) > 1e-6 || by != 50 {
		t.Errorf("Expected clip at x=99, got (%g,%g) ok=%v", bx, by, ok)
	}

	if _, _, _, _, ok := clipSegment(0, 0, math.Inf(1), 0, r); ok {
		t.Error("Expected non-finite segment to be rejected")
	}
}

func TestRenderStatic(t *testing.T) {
	plot := quadraticPlot(t)
	series := []Series{
		{Name: "sgd", Points: straightPath(10)},
		{Name: "adam", Points: []optim.Vector{{5, 5}, {4.9, 4.9}, {-50, 80}}},
	}

	img, err := RenderStatic(plot, series)
	if err != nil {
		t.Fatalf("RenderStatic failed: %v", err)
	}

	if img.Bounds().Dx() != DefaultWidth || img.Bounds().Dy() != DefaultHeight {
		t.Errorf("Expected %dx%d image, got %v", DefaultWidth, DefaultHeight, img.Bounds())
	}

	l := newLayout(plot.Function, img.Rect, titleLines(plot.Title), true)
	x, y := l.toPixel(optim.Vector{5, 5})
	if got := img.ColorIndexAt(int(x), int(y)); got != idxRed {
		t.Errorf("Expected red start marker at (%d,%d), got index %d", int(x), int(y), got)
	}

	for i := range series {
		if countIndex(img, seriesIndex(i)) == 0 {
			t.Errorf("Series %d colour not drawn", i)
		}
	}
}

func TestRenderStaticValidation(t *testing.T) {
	plot := quadraticPlot(t)

	if _, err := RenderStatic(plot, nil); err == nil {
		t.Error("Expected error for no series")
	}
	if _, err := RenderStatic(plot, []Series{{Name: "sgd"}}); err == nil {
		t.Error("Expected error for empty series")
	}
	if _, err := RenderStatic(Plot{Title: "x"}, []Series{{Name: "sgd", Points: straightPath(2)}}); err == nil {
		t.Error("Expected error for missing function")
	}

	small := plot
	small.Width, small.Height = 100, 100
	if _, err := RenderStatic(small, []Series{{Name: "sgd", Points: straightPath(2)}}); err == nil {
		t.Error("Expected error for undersized plot")
	}
}

func TestRenderAnimation(t *testing.T) {
	plot := quadraticPlot(t)
	plot.Width, plot.Height = 320, 240

	anim, err := RenderAnimation(plot, Series{Name: "sgd", Points: straightPath(11)}, DefaultAnimationOptions())
	if err != nil {
		t.Fatalf("RenderAnimation failed: %v", err)
	}

	if len(anim.Image) != 11 {
		t.Fatalf("Expected 11 frames, got %d", len(anim.Image))
	}
	if len(anim.Delay) != len(anim.Image) || anim.Delay[0] != 7 {
		t.Errorf("Expected delay 7 per frame, got %v", anim.Delay)
	}

	first, last := countIndex(anim.Image[0], idxRed), countIndex(anim.Image[10], idxRed)
	if last <= first {
		t.Errorf("Expected trajectory to grow: first frame %d red pixels, last %d", first, last)
	}
}

func TestRenderAnimationCapsFrames(t *testing.T) {
	plot := quadraticPlot(t)
	plot.Width, plot.Height = 320, 240

	anim, err := RenderAnimation(plot, Series{Name: "sgd", Points: straightPath(50)}, AnimationOptions{FPS: 10, MaxFrames: 8})
	if err != nil {
		t.Fatalf("RenderAnimation failed: %v", err)
	}
	if len(anim.Image) != 8 {
		t.Errorf("Expected 8 frames, got %d", len(anim.Image))
	}
	if anim.Delay[0] != 10 {
		t.Errorf("Expected delay 10, got %d", anim.Delay[0])
	}
}

func TestRenderComparison(t *testing.T) {
	plot := quadraticPlot(t)
	plot.Width = 800

	series := []Series{
		{Name: "sgd", Points: straightPath(6)},
		{Name: "nadam", Points: straightPath(9)},
	}
	anim, err := RenderComparison(plot, series, DefaultAnimationOptions())
	if err != nil {
		t.Fatalf("RenderComparison failed: %v", err)
	}
	if len(anim.Image) != 9 {
		t.Errorf("Expected 9 frames (longest trajectory), got %d", len(anim.Image))
	}

	narrow := plot
	narrow.Width = 300
	if _, err := RenderComparison(narrow, series, DefaultAnimationOptions()); err == nil {
		t.Error("Expected error when panels do not fit")
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]Format{
		"out.png":         FormatPNG,
		"results/OUT.GIF": FormatGIF,
		"a.mp4":           FormatMP4,
		"a.jpeg":          FormatUnknown,
		"noext":           FormatUnknown,
	}
	for path, want := range tests {
		if got := FormatFor(path); got != want {
			t.Errorf("FormatFor(%q) = %d, want %d", path, got, want)
		}
	}
}

func TestWriteFilePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.png")
	err := WriteFile(path, quadraticPlot(t), []Series{{Name: "sgd", Points: straightPath(5)}}, DefaultAnimationOptions())
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("Output is not a valid PNG: %v", err)
	}
}

func TestWriteFileGIF(t *testing.T) {
	plot := quadraticPlot(t)
	plot.Width, plot.Height = 320, 240

	path := filepath.Join(t.TempDir(), "anim.gif")
	series := []Series{
		{Name: "sgd", Points: straightPath(4)},
		{Name: "adam", Points: straightPath(4)},
	}
	if err := WriteFile(path, plot, series, DefaultAnimationOptions()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer f.Close()

	anim, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("Output is not a valid GIF: %v", err)
	}
	if len(anim.Image) != 4 {
		t.Errorf("Expected 4 frames, got %d", len(anim.Image))
	}
}

func TestWriteFileUnsupported(t *testing.T) {
	dir := t.TempDir()
	series := []Series{{Name: "sgd", Points: straightPath(3)}}

	err := WriteFile(filepath.Join(dir, "out.jpg"), quadraticPlot(t), series, DefaultAnimationOptions())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}

	err = WriteFile(filepath.Join(dir, "out.mp4"), quadraticPlot(t), series, DefaultAnimationOptions())
	if !errors.Is(err, ErrEncoderUnavailable) {
		t.Errorf("Expected ErrEncoderUnavailable, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected no files written, found %d", len(entries))
	}
}

func TestWriteComparisonRequiresGIF(t *testing.T) {
	series := []Series{{Name: "sgd", Points: straightPath(3)}}
	err := WriteComparison(filepath.Join(t.TempDir(), "cmp.png"), quadraticPlot(t), series, DefaultAnimationOptions())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestTitle(t *testing.T) {
	got := Title("beale", []string{"sgd", "adam"}, 0.01, 100)
	want := "sgd, adam on beale\nlr=0.01, 100 iterations"
	if got != want {
		t.Errorf("Title = %q, want %q", got, want)
	}
	if titleLines(got) != 2 {
		t.Errorf("titleLines = %d, want 2", titleLines(got))
	}
}
