package render

import (
	"fmt"
	"image"
	"image/gif"
	"math"
	"strings"
)

// AnimationOptions controls frame timing and count.
type AnimationOptions struct {
	FPS int
	// MaxFrames caps the frame count; longer trajectories are sampled evenly
	// and the final position is always shown. Zero means no cap.
	MaxFrames int
}

// DefaultAnimationOptions returns 15 fps capped at 200 frames.
func DefaultAnimationOptions() AnimationOptions {
	return AnimationOptions{FPS: 15, MaxFrames: 200}
}

func (o AnimationOptions) delay() int {
	fps := o.FPS
	if fps <= 0 {
		fps = DefaultAnimationOptions().FPS
	}
	return max(1, int(math.Round(100/float64(fps))))
}

// frameIndices picks which trajectory prefixes become frames.
func frameIndices(n, maxFrames int) []int {
	if n <= 0 {
		return nil
	}
	if maxFrames <= 0 || n <= maxFrames {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	if maxFrames == 1 {
		return []int{n - 1}
	}
	idx := make([]int, maxFrames)
	for k := range idx {
		idx[k] = k * (n - 1) / (maxFrames - 1)
	}
	return idx
}

// RenderAnimation shows the progressive growth of one trajectory: frame i
// holds the first i+1 positions.
func RenderAnimation(plot Plot, s Series, opts AnimationOptions) (*gif.GIF, error) {
	rect, err := plot.bounds()
	if err != nil {
		return nil, err
	}
	if err := checkSeries([]Series{s}); err != nil {
		return nil, err
	}

	bg := image.NewPaletted(rect, palette)
	l := newLayout(plot.Function, rect, titleLines(plot.Title), true)
	l.drawBackground(bg, plot.Title)

	anim := &gif.GIF{}
	for _, i := range frameIndices(len(s.Points), opts.MaxFrames) {
		frame := cloneFrame(bg)
		l.drawStart(frame, s.Points[0], idxWhite)
		l.drawPath(frame, s.Points[:i+1], idxRed, 2, 2)
		text(frame, l.plot.Min.X+6, l.plot.Min.Y+4, fmt.Sprintf("Iteration: %d", i), idxWhite)

		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, opts.delay())
	}
	return anim, nil
}

// RenderComparison animates several trajectories side by side, one panel
// per optimizer, advancing all of them in lockstep.
func RenderComparison(plot Plot, series []Series, opts AnimationOptions) (*gif.GIF, error) {
	rect, err := plot.bounds()
	if err != nil {
		return nil, err
	}
	if err := checkSeries(series); err != nil {
		return nil, err
	}

	header := titleLines(plot.Title)
	panelWidth := rect.Dx() / len(series)
	if panelWidth < minWidth {
		return nil, fmt.Errorf("width %d too small for %d panels", rect.Dx(), len(series))
	}

	bg := image.NewPaletted(rect, palette)
	fillRect(bg, rect, idxWhite)
	if plot.Title != "" {
		for i, line := range strings.Split(plot.Title, "\n") {
			centeredText(bg, rect.Dx()/2, 4+i*lineHeight, line, idxBlack)
		}
	}

	top := header * lineHeight
	layouts := make([]layout, len(series))
	longest := 0
	for i, s := range series {
		panel := image.Rect(i*panelWidth, top, (i+1)*panelWidth, rect.Max.Y)
		layouts[i] = newLayout(plot.Function, panel, 1, false)
		layouts[i].drawBackground(bg, strings.ToUpper(s.Name))
		layouts[i].drawStart(bg, s.Points[0], idxRed)
		longest = max(longest, len(s.Points))
	}

	anim := &gif.GIF{}
	for _, i := range frameIndices(longest, opts.MaxFrames) {
		frame := cloneFrame(bg)
		for k, s := range series {
			end := min(i, len(s.Points)-1)
			layouts[k].drawPath(frame, s.Points[:end+1], seriesIndex(k), 2, 2)
		}
		text(frame, 6, rect.Max.Y-lineHeight-2, fmt.Sprintf("Iteration: %d", i), idxBlack)

		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, opts.delay())
	}
	return anim, nil
}

func cloneFrame(bg *image.Paletted) *image.Paletted {
	frame := image.NewPaletted(bg.Rect, bg.Palette)
	copy(frame.Pix, bg.Pix)
	return frame
}
