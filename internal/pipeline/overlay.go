package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"bird-analysis-service/internal/entity"
)

const boxThickness = 2

var hudColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// drawDetections draws one rectangle plus species label per box, using
// the output-frame coordinates when the frame was scaled.
func drawDetections(img *image.RGBA, boxes []entity.DetectionBox) {
	for _, d := range boxes {
		b := d.Box
		if d.OutBox != nil {
			b = *d.OutBox
		}
		col := SpeciesColor(d.Species)
		drawRect(img, image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2)), col)

		labelY := int(b.Y1) - 4
		if labelY < 12 {
			labelY = int(b.Y1) + 14
		}
		drawText(img, int(b.X1), labelY, fmt.Sprintf("%s %.2f", d.Species, d.Confidence), col)
	}
}

// drawHUD writes the live detection count and the top running species
// into the top-left corner.
func drawHUD(img *image.RGBA, live int, top []entity.SpeciesStat) {
	y := 16
	drawText(img, 8, y, fmt.Sprintf("birds: %d", live), hudColor)
	for i, s := range top {
		y += 16
		drawText(img, 8, y, fmt.Sprintf("%d. %s x%d", i+1, s.Species, s.Count), SpeciesColor(s.Species))
	}
}

func drawRect(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for t := 0; t < boxThickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setPixel(img, x, r.Min.Y+t, col)
			setPixel(img, x, r.Max.Y-1-t, col)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setPixel(img, r.Min.X+t, y, col)
			setPixel(img, r.Max.X-1-t, y, col)
		}
	}
}

func setPixel(img *image.RGBA, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, col)
	}
}

func drawText(img *image.RGBA, x, y int, text string, col color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
