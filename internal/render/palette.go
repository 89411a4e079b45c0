package render

import (
	"image/color"
	"math"
)

// Fixed palette indices. Every image is paletted so frames share one palette
// and GIF encoding needs no quantization.
const (
	idxWhite uint8 = iota
	idxBlack
	idxRed
	idxGrid
	idxSeries
)

// seriesColors are assigned to trajectories in request order.
var seriesColors = []color.NRGBA{
	{0x1f, 0x77, 0xb4, 0xff},
	{0xff, 0x7f, 0x0e, 0xff},
	{0x2c, 0xa0, 0x2c, 0xff},
	{0xe3, 0x77, 0xc2, 0xff},
	{0x94, 0x67, 0xbd, 0xff},
	{0x8c, 0x56, 0x4b, 0xff},
	{0xd6, 0x27, 0x28, 0xff},
	{0x7f, 0x7f, 0x7f, 0xff},
	{0xbc, 0xbd, 0x22, 0xff},
	{0x17, 0xbe, 0xcf, 0xff},
}

// numLevels is the number of filled bands between the 35 log-spaced
// boundaries 10^0 .. 10^5.
const numLevels = 34

// maxDecade is log10 of the highest contour boundary.
const maxDecade = 5.0

var idxLevels = idxSeries + uint8(len(seriesColors))

// viridisStops are evenly spaced samples of the viridis colormap.
var viridisStops = []color.NRGBA{
	{0x44, 0x01, 0x54, 0xff},
	{0x48, 0x28, 0x78, 0xff},
	{0x3e, 0x4a, 0x89, 0xff},
	{0x31, 0x68, 0x8e, 0xff},
	{0x26, 0x82, 0x8e, 0xff},
	{0x1f, 0x9e, 0x89, 0xff},
	{0x35, 0xb7, 0x79, 0xff},
	{0x6e, 0xce, 0x58, 0xff},
	{0xb5, 0xde, 0x2b, 0xff},
	{0xfd, 0xe7, 0x25, 0xff},
}

// viridis interpolates the colormap at t in [0,1].
func viridis(t float64) color.NRGBA {
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(viridisStops)-1)
	i := int(pos)
	if i >= len(viridisStops)-1 {
		return viridisStops[len(viridisStops)-1]
	}
	f := pos - float64(i)
	a, b := viridisStops[i], viridisStops[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + f*(float64(y)-float64(x))))
	}
	return color.NRGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 0xff}
}

var palette = buildPalette()

func buildPalette() color.Palette {
	p := color.Palette{
		color.NRGBA{0xff, 0xff, 0xff, 0xff},
		color.NRGBA{0x00, 0x00, 0x00, 0xff},
		color.NRGBA{0xff, 0x00, 0x00, 0xff},
		color.NRGBA{0xc8, 0xc8, 0xc8, 0xff},
	}
	for _, c := range seriesColors {
		p = append(p, c)
	}
	for i := 0; i < numLevels; i++ {
		p = append(p, viridis(float64(i)/float64(numLevels-1)))
	}
	return p
}

// seriesIndex returns the palette index for the k-th trajectory.
func seriesIndex(k int) uint8 {
	return idxSeries + uint8(k%len(seriesColors))
}

// levelIndex maps an objective value onto a log-scaled contour band.
// Values at or below 1 fall into the lowest band and values above 1e5
// into the highest.
func levelIndex(v float64) uint8 {
	if math.IsNaN(v) || v <= 1 {
		return idxLevels
	}
	if math.IsInf(v, 1) {
		return idxLevels + numLevels - 1
	}
	band := int(math.Log10(v) / maxDecade * numLevels)
	if band >= numLevels {
		band = numLevels - 1
	}
	return idxLevels + uint8(band)
}
