// Package frame converts client payloads to gocv frames and back, and draws
// the landmark overlay returned to the browser.
package frame

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

var (
	// ErrMissingSeparator is returned when a data URI has no comma.
	ErrMissingSeparator = errors.New("data URI has no ',' separator")
	// ErrEmptyPayload is returned when the decoded image has no bytes.
	ErrEmptyPayload = errors.New("empty image payload")
	// ErrUndecodable is returned when the bytes are not a supported raster image.
	ErrUndecodable = errors.New("image could not be decoded")
)

// JPEGDataURIPrefix prefixes annotated frames returned to the client.
const JPEGDataURIPrefix = "data:image/jpeg;base64,"

// ParseDataURI extracts and base64-decodes the payload after the first comma
// of a "data:image/...;base64,<payload>" string.
func ParseDataURI(uri string) ([]byte, error) {
	_, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, ErrMissingSeparator
	}

	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	return data, nil
}

// EncodeDataURI wraps JPEG bytes as a data URI.
func EncodeDataURI(jpeg []byte) string {
	return JPEGDataURIPrefix + base64.StdEncoding.EncodeToString(jpeg)
}

// Decode decodes image bytes into an 8-bit 3-channel BGR Mat.
// BGRA and grayscale inputs are converted; anything else is re-decoded as colour.
// On success the caller is responsible for closing the returned Mat.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, ErrEmptyPayload
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, ErrUndecodable
	}

	switch mat.Type() {
	case gocv.MatTypeCV8UC3:
		return mat, nil
	case gocv.MatTypeCV8UC4:
		return convert(mat, gocv.ColorBGRAToBGR), nil
	case gocv.MatTypeCV8UC1:
		return convert(mat, gocv.ColorGrayToBGR), nil
	}

	// 16-bit or otherwise unusual rasters: let OpenCV reduce them.
	mat.Close()
	color, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if color.Empty() {
		color.Close()
		return gocv.Mat{}, ErrUndecodable
	}
	return color, nil
}

// convert applies code to src, closing src.
func convert(src gocv.Mat, code gocv.ColorConversionCode) gocv.Mat {
	defer src.Close()
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, code)
	return dst
}

// EncodeJPEG encodes img as JPEG and returns a Go-owned copy of the bytes.
func EncodeJPEG(img gocv.Mat) ([]byte, error) {
	if img.Empty() {
		return nil, errors.New("encode jpeg: empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
