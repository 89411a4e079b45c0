// Package render draws optimizer trajectories over filled contour plots of
// an objective function, as still images or GIF animations.
package render

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/cwbudde/descentviz/internal/optim"
)

// Default image size in pixels.
const (
	DefaultWidth  = 800
	DefaultHeight = 640

	minWidth  = 240
	minHeight = 200
)

// Series is one named trajectory. Points[0] is the initial point.
type Series struct {
	Name   string
	Points []optim.Vector
}

// Plot describes the canvas shared by all renderings.
type Plot struct {
	Function *objective.Function
	Title    string
	// Width and Height default to DefaultWidth x DefaultHeight when zero.
	Width  int
	Height int
}

func (p Plot) bounds() (image.Rectangle, error) {
	if p.Function == nil {
		return image.Rectangle{}, errors.New("plot function is required")
	}
	w, h := p.Width, p.Height
	if w == 0 {
		w = DefaultWidth
	}
	if h == 0 {
		h = DefaultHeight
	}
	if w < minWidth || h < minHeight {
		return image.Rectangle{}, fmt.Errorf("plot size %dx%d below minimum %dx%d", w, h, minWidth, minHeight)
	}
	return image.Rect(0, 0, w, h), nil
}

// Title builds the two-line heading used for run images.
func Title(function string, optimizers []string, lr float64, iterations int) string {
	return fmt.Sprintf("%s on %s\nlr=%g, %d iterations",
		strings.Join(optimizers, ", "), function, lr, iterations)
}

func titleLines(title string) int {
	if title == "" {
		return 0
	}
	return strings.Count(title, "\n") + 1
}

func checkSeries(series []Series) error {
	if len(series) == 0 {
		return errors.New("at least one trajectory is required")
	}
	for _, s := range series {
		if len(s.Points) == 0 {
			return fmt.Errorf("trajectory %q is empty", s.Name)
		}
	}
	return nil
}

// RenderStatic draws every trajectory over the contour plot, each in its own
// colour with a legend, and marks each initial point with a red 'x'.
func RenderStatic(plot Plot, series []Series) (*image.Paletted, error) {
	rect, err := plot.bounds()
	if err != nil {
		return nil, err
	}
	if err := checkSeries(series); err != nil {
		return nil, err
	}

	img := image.NewPaletted(rect, palette)
	l := newLayout(plot.Function, rect, titleLines(plot.Title), true)
	l.drawBackground(img, plot.Title)

	names := make([]string, len(series))
	for i, s := range series {
		names[i] = s.Name
		l.drawPath(img, s.Points, seriesIndex(i), 2, 2)
	}
	for _, s := range series {
		l.drawStart(img, s.Points[0], idxRed)
	}
	l.drawLegend(img, names)

	return img, nil
}
