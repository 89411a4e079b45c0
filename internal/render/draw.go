package render

import (
	"image"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var face = basicfont.Face7x13

// lineHeight is the vertical advance between text lines.
const lineHeight = 14

func setPixel(img *image.Paletted, clip image.Rectangle, x, y int, idx uint8) {
	if image.Pt(x, y).In(clip) {
		img.SetColorIndex(x, y, idx)
	}
}

func fillRect(img *image.Paletted, r image.Rectangle, idx uint8) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetColorIndex(x, y, idx)
		}
	}
}

func strokeRect(img *image.Paletted, r image.Rectangle, idx uint8) {
	for x := r.Min.X; x < r.Max.X; x++ {
		setPixel(img, img.Rect, x, r.Min.Y, idx)
		setPixel(img, img.Rect, x, r.Max.Y-1, idx)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		setPixel(img, img.Rect, r.Min.X, y, idx)
		setPixel(img, img.Rect, r.Max.X-1, y, idx)
	}
}

// disc fills a circle of radius r centred on (cx, cy).
func disc(img *image.Paletted, clip image.Rectangle, cx, cy, r int, idx uint8) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				setPixel(img, clip, cx+dx, cy+dy, idx)
			}
		}
	}
}

// cross draws an 'x' marker with arms of length size.
func cross(img *image.Paletted, clip image.Rectangle, cx, cy, size int, idx uint8) {
	for d := -size; d <= size; d++ {
		for w := 0; w < 2; w++ {
			setPixel(img, clip, cx+d+w, cy+d, idx)
			setPixel(img, clip, cx+d+w, cy-d, idx)
		}
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// clipSegment clips the segment to r with the Liang-Barsky algorithm.
func clipSegment(x0, y0, x1, y1 float64, r image.Rectangle) (ax, ay, bx, by float64, ok bool) {
	dx, dy := x1-x0, y1-y0
	if !finite(x0, y0, x1, y1, dx, dy) {
		return 0, 0, 0, 0, false
	}

	xmin, ymin := float64(r.Min.X), float64(r.Min.Y)
	xmax, ymax := float64(r.Max.X-1), float64(r.Max.Y-1)

	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{x0 - xmin, xmax - x0, y0 - ymin, ymax - y0}

	t0, t1 := 0.0, 1.0
	for i := range p {
		if p[i] == 0 {
			if q[i] < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		t := q[i] / p[i]
		if p[i] < 0 {
			if t > t1 {
				return 0, 0, 0, 0, false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return 0, 0, 0, 0, false
			}
			t1 = math.Min(t1, t)
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

// segment rasterizes a clipped line of the given width with Bresenham.
func segment(img *image.Paletted, clip image.Rectangle, x0, y0, x1, y1 float64, width int, idx uint8) {
	ax, ay, bx, by, ok := clipSegment(x0, y0, x1, y1, clip)
	if !ok {
		return
	}

	xa, ya := int(math.Round(ax)), int(math.Round(ay))
	xb, yb := int(math.Round(bx)), int(math.Round(by))

	dx := abs(xb - xa)
	dy := -abs(yb - ya)
	sx, sy := 1, 1
	if xa > xb {
		sx = -1
	}
	if ya > yb {
		sy = -1
	}

	err := dx + dy
	for {
		for w := 0; w < width; w++ {
			setPixel(img, clip, xa+w, ya, idx)
			setPixel(img, clip, xa, ya+w, idx)
		}
		if xa == xb && ya == yb {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			xa += sx
		}
		if e2 <= dx {
			err += dx
			ya += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// textWidth returns the rendered width of the longest line of s.
func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// text draws s with its top-left corner at (x, y).
func text(img *image.Paletted, x, y int, s string, idx uint8) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(palette[idx]),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(s)
}

// centeredText draws s horizontally centred on cx.
func centeredText(img *image.Paletted, cx, y int, s string, idx uint8) {
	text(img, cx-textWidth(s)/2, y, s, idx)
}
