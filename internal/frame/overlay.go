package frame

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/lisa/internal/detector"
)

// Overlay styling, matching MediaPipe's default hand drawing specs.
const (
	LineThickness  = 2
	PointRadius    = 2
	PointThickness = 2
)

var (
	connectionColor  = color.RGBA{R: 224, G: 224, B: 224, A: 0}
	landmarkColor    = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	landmarkBorder   = color.RGBA{R: 224, G: 224, B: 224, A: 0}
	borderRadiusSize = int(math.Max(PointRadius+1, PointRadius*1.2))
)

// ToPixel maps normalized landmark coordinates to a pixel in a width x height
// frame. Points outside [0,1] are not drawable.
func ToPixel(p detector.Point3D, width, height int) (image.Point, bool) {
	if !inUnit(p.X) || !inUnit(p.Y) {
		return image.Point{}, false
	}
	x := int(math.Min(math.Floor(p.X*float64(width)), float64(width-1)))
	y := int(math.Min(math.Floor(p.Y*float64(height)), float64(height-1)))
	return image.Pt(x, y), true
}

func inUnit(v float64) bool {
	const tol = 1e-9
	return v > -tol && v < 1+tol
}

// DrawLandmarks draws the hand skeleton onto img in place.
func DrawLandmarks(img *gocv.Mat, hand detector.HandLandmarks) {
	if img == nil || img.Empty() {
		return
	}

	width, height := img.Cols(), img.Rows()

	var pixels [detector.NumLandmarks]image.Point
	var visible [detector.NumLandmarks]bool
	for i, p := range hand.Points {
		pixels[i], visible[i] = ToPixel(p, width, height)
	}

	for _, c := range detector.HandConnections {
		if visible[c.From] && visible[c.To] {
			gocv.Line(img, pixels[c.From], pixels[c.To], connectionColor, LineThickness)
		}
	}

	for i := range pixels {
		if !visible[i] {
			continue
		}
		gocv.Circle(img, pixels[i], borderRadiusSize, landmarkBorder, PointThickness)
		gocv.Circle(img, pixels[i], PointRadius, landmarkColor, PointThickness)
	}
}
