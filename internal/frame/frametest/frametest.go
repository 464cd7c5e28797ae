// Package frametest builds synthetic encoded frames for tests.
package frametest

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Encode builds a width x height image of matType (CV8UC1, CV8UC3 or
// CV8UC4), paints a filled rectangle so the frame is not uniform, and
// encodes it with ext (".jpg" or ".png").
func Encode(width, height int, matType gocv.MatType, ext gocv.FileExt) ([]byte, error) {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 80, 120, 255), height, width, matType)
	defer mat.Close()

	rect := image.Rect(width/4, height/4, width*3/4, height*3/4)
	gocv.Rectangle(&mat, rect, color.RGBA{R: 200, G: 180, B: 150, A: 255}, -1)

	buf, err := gocv.IMEncode(ext, mat)
	if err != nil {
		return nil, fmt.Errorf("encode synthetic frame: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// JPEG returns a 3-channel JPEG frame.
func JPEG(width, height int) ([]byte, error) {
	return Encode(width, height, gocv.MatTypeCV8UC3, gocv.JPEGFileExt)
}

// PNGWithAlpha returns a 4-channel PNG frame.
func PNGWithAlpha(width, height int) ([]byte, error) {
	return Encode(width, height, gocv.MatTypeCV8UC4, gocv.PNGFileExt)
}

// GrayPNG returns a single-channel PNG frame.
func GrayPNG(width, height int) ([]byte, error) {
	return Encode(width, height, gocv.MatTypeCV8UC1, gocv.PNGFileExt)
}

// DataURI wraps data the way the browser's canvas.toDataURL does.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
