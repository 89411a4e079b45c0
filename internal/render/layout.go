package render

import (
	"image"
	"strconv"
	"strings"

	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/cwbudde/descentviz/internal/optim"
)

const (
	marginLeft     = 56
	marginRight    = 20
	marginTop      = 16
	marginBottom   = 40
	colorbarWidth  = 16
	colorbarMargin = 64
)

// layout positions one contour panel inside an image.
type layout struct {
	fn    *objective.Function
	panel image.Rectangle
	plot  image.Rectangle
	bar   image.Rectangle // empty when the panel has no colorbar
}

func newLayout(fn *objective.Function, panel image.Rectangle, titleLines int, colorbar bool) layout {
	right := marginRight
	if colorbar {
		right += colorbarMargin
	}
	top := marginTop + titleLines*lineHeight

	l := layout{
		fn:    fn,
		panel: panel,
		plot: image.Rect(
			panel.Min.X+marginLeft,
			panel.Min.Y+top,
			panel.Max.X-right,
			panel.Max.Y-marginBottom,
		),
	}
	if colorbar {
		x := l.plot.Max.X + 16
		l.bar = image.Rect(x, l.plot.Min.Y, x+colorbarWidth, l.plot.Max.Y)
	}
	return l
}

// toPixel maps a point in the function domain to image coordinates.
func (l layout) toPixel(p optim.Vector) (float64, float64) {
	d := l.fn.Domain
	x := float64(l.plot.Min.X) + (p[0]-d.XMin)/(d.XMax-d.XMin)*float64(l.plot.Dx())
	y := float64(l.plot.Max.Y) - (p[1]-d.YMin)/(d.YMax-d.YMin)*float64(l.plot.Dy())
	return x, y
}

// toWorld maps the centre of pixel (px, py) back into the domain.
func (l layout) toWorld(px, py int) optim.Vector {
	d := l.fn.Domain
	fx := (float64(px-l.plot.Min.X) + 0.5) / float64(l.plot.Dx())
	fy := (float64(py-l.plot.Min.Y) + 0.5) / float64(l.plot.Dy())
	return optim.Vector{
		d.XMin + fx*(d.XMax-d.XMin),
		d.YMax - fy*(d.YMax-d.YMin),
	}
}

// drawBackground paints the filled contour plot, axes, labels and title.
func (l layout) drawBackground(img *image.Paletted, title string) {
	fillRect(img, l.panel, idxWhite)

	for py := l.plot.Min.Y; py < l.plot.Max.Y; py++ {
		for px := l.plot.Min.X; px < l.plot.Max.X; px++ {
			img.SetColorIndex(px, py, levelIndex(l.fn.Value(l.toWorld(px, py))))
		}
	}
	strokeRect(img, l.plot.Inset(-1), idxBlack)

	cx := (l.plot.Min.X + l.plot.Max.X) / 2
	for i, line := range strings.Split(title, "\n") {
		centeredText(img, cx, l.panel.Min.Y+4+i*lineHeight, line, idxBlack)
	}

	d := l.fn.Domain
	below := l.plot.Max.Y + 4
	text(img, l.plot.Min.X, below, formatTick(d.XMin), idxBlack)
	xmax := formatTick(d.XMax)
	text(img, l.plot.Max.X-textWidth(xmax), below, xmax, idxBlack)
	centeredText(img, cx, below+lineHeight, "Parameter 1 (x)", idxBlack)

	ymax, ymin := formatTick(d.YMax), formatTick(d.YMin)
	text(img, l.plot.Min.X-6-textWidth(ymax), l.plot.Min.Y, ymax, idxBlack)
	text(img, l.plot.Min.X-6-textWidth(ymin), l.plot.Max.Y-lineHeight, ymin, idxBlack)
	text(img, l.panel.Min.X+4, (l.plot.Min.Y+l.plot.Max.Y)/2, "y", idxBlack)

	if !l.bar.Empty() {
		l.drawColorbar(img)
	}
}

func (l layout) drawColorbar(img *image.Paletted) {
	h := l.bar.Dy()
	for y := l.bar.Min.Y; y < l.bar.Max.Y; y++ {
		band := (l.bar.Max.Y - 1 - y) * numLevels / h
		for x := l.bar.Min.X; x < l.bar.Max.X; x++ {
			img.SetColorIndex(x, y, idxLevels+uint8(band))
		}
	}
	strokeRect(img, l.bar.Inset(-1), idxBlack)
	text(img, l.bar.Max.X+4, l.bar.Min.Y, "1e5", idxBlack)
	text(img, l.bar.Max.X+4, l.bar.Max.Y-lineHeight, "1e0", idxBlack)
	text(img, l.bar.Max.X+4, (l.bar.Min.Y+l.bar.Max.Y)/2, "log", idxBlack)
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// drawPath draws points as a connected line with small markers.
func (l layout) drawPath(img *image.Paletted, points []optim.Vector, idx uint8, width, marker int) {
	for i, p := range points {
		x, y := l.toPixel(p)
		if i > 0 {
			px, py := l.toPixel(points[i-1])
			segment(img, l.plot, px, py, x, y, width, idx)
		}
		if marker > 0 && finite(x, y) && x >= float64(l.plot.Min.X) && x < float64(l.plot.Max.X) &&
			y >= float64(l.plot.Min.Y) && y < float64(l.plot.Max.Y) {
			disc(img, l.plot, int(x), int(y), marker, idx)
		}
	}
}

// drawStart marks the initial point with an 'x'.
func (l layout) drawStart(img *image.Paletted, p optim.Vector, idx uint8) {
	x, y := l.toPixel(p)
	if !finite(x, y) || x < float64(l.plot.Min.X) || x >= float64(l.plot.Max.X) ||
		y < float64(l.plot.Min.Y) || y >= float64(l.plot.Max.Y) {
		return
	}
	cross(img, l.plot, int(x), int(y), 6, idx)
}

// drawLegend lists the series names with their colours in the plot corner.
func (l layout) drawLegend(img *image.Paletted, names []string) {
	if len(names) == 0 {
		return
	}
	w := 0
	for _, n := range names {
		w = max(w, textWidth(n))
	}
	box := image.Rect(l.plot.Min.X+8, l.plot.Min.Y+8, l.plot.Min.X+8+w+28, l.plot.Min.Y+8+len(names)*lineHeight+8)
	fillRect(img, box, idxWhite)
	strokeRect(img, box, idxGrid)

	for i, n := range names {
		y := box.Min.Y + 4 + i*lineHeight
		fillRect(img, image.Rect(box.Min.X+6, y+3, box.Min.X+16, y+11), seriesIndex(i))
		text(img, box.Min.X+22, y, n, idxBlack)
	}
}
