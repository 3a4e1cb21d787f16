// Package imageutil converts between the image payload shapes a host may
// hand to a plugin and the gocv.Mat that OpenCV code works on, and provides
// the small drawing helpers plugins use to annotate results.
package imageutil

import (
	"image"
	"image/color"
	"os"
	"reflect"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrEmptyImage is returned when a payload decodes to an image with no pixels.
	ErrEmptyImage = errors.New("image is empty")

	// ErrNilImage is returned for nil pointers and Mats that were never allocated.
	ErrNilImage = errors.New("nil image")
)

// Green is the default annotation color (BGR order is handled by OpenCV).
var Green = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// ToMat converts an image payload into a new gocv.Mat owned by the caller.
// On error the returned Mat is empty and still safe to Close.
//
// Accepted payloads:
//   - gocv.Mat or *gocv.Mat (cloned)
//   - image.Image
//   - []byte holding an encoded image (JPEG, PNG, ...)
//   - string naming an image file on disk
func ToMat(data any) (gocv.Mat, error) {
	var (
		mat gocv.Mat
		err error
	)

	switch v := data.(type) {
	case gocv.Mat:
		if v.Ptr() == nil {
			return gocv.NewMat(), ErrNilImage
		}
		mat = v.Clone()
	case *gocv.Mat:
		if v == nil || v.Ptr() == nil {
			return gocv.NewMat(), ErrNilImage
		}
		mat = v.Clone()
	case image.Image:
		if isNilPointer(v) {
			return gocv.NewMat(), ErrNilImage
		}
		if v.Bounds().Empty() {
			return gocv.NewMat(), ErrEmptyImage
		}
		mat, err = gocv.ImageToMatRGB(v)
		if err != nil {
			return gocv.NewMat(), errors.Wrap(err, "convert image")
		}
	case []byte:
		if len(v) == 0 {
			return gocv.NewMat(), ErrEmptyImage
		}
		mat, err = gocv.IMDecode(v, gocv.IMReadColor)
		if err != nil {
			return gocv.NewMat(), errors.Wrap(err, "decode image")
		}
	case string:
		if _, err := os.Stat(v); err != nil {
			return gocv.NewMat(), errors.Wrapf(err, "read image %s", v)
		}
		mat = gocv.IMRead(v, gocv.IMReadColor)
	default:
		return gocv.NewMat(), errors.Newf("unsupported image payload %T", data)
	}

	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), ErrEmptyImage
	}

	return mat, nil
}

// isNilPointer catches typed nils such as (*image.RGBA)(nil), which satisfy
// image.Image but panic on Bounds.
func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// ToImage converts a Mat back into a Go image.
func ToImage(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, ErrEmptyImage
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "convert mat")
	}
	return img, nil
}

// Grayscale returns a single-channel copy of src.
func Grayscale(src gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if src.Channels() > 1 {
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	} else {
		src.CopyTo(&gray)
	}
	return gray
}

// FitSize returns the largest size with the same aspect ratio as
// (width, height) that fits inside (maxWidth, maxHeight).
func FitSize(width, height, maxWidth, maxHeight int) image.Point {
	if width <= 0 || height <= 0 {
		return image.Point{}
	}

	ratio := min(float64(maxWidth)/float64(width), float64(maxHeight)/float64(height))
	return image.Point{
		X: max(1, int(float64(width)*ratio)),
		Y: max(1, int(float64(height)*ratio)),
	}
}

// Resize scales src to exactly width x height.
func Resize(src gocv.Mat, width, height int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationArea)
	return dst
}

// ResizeKeepRatio scales src to fit inside width x height without distortion.
func ResizeKeepRatio(src gocv.Mat, width, height int) gocv.Mat {
	size := FitSize(src.Cols(), src.Rows(), width, height)
	return Resize(src, size.X, size.Y)
}

// DrawRectangle returns a copy of src with r outlined.
func DrawRectangle(src gocv.Mat, r image.Rectangle, c color.RGBA, thickness int) gocv.Mat {
	dst := src.Clone()
	gocv.Rectangle(&dst, r, c, thickness)
	return dst
}

// DrawRectangles outlines every rectangle on dst in place.
func DrawRectangles(dst *gocv.Mat, rects []image.Rectangle, c color.RGBA, thickness int) {
	for _, r := range rects {
		gocv.Rectangle(dst, r, c, thickness)
	}
}

// DrawText returns a copy of src with text rendered at org.
func DrawText(src gocv.Mat, text string, org image.Point, c color.RGBA, scale float64, thickness int) gocv.Mat {
	dst := src.Clone()
	gocv.PutText(&dst, text, org, gocv.FontHersheySimplex, scale, c, thickness)
	return dst
}

// Encode compresses mat into the format named by ext (".jpg", ".png").
func Encode(mat gocv.Mat, ext string) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.FileExt(ext), mat)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", ext)
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteFile saves mat to path; the format follows the file extension.
func WriteFile(path string, mat gocv.Mat) error {
	if mat.Empty() {
		return ErrEmptyImage
	}
	if ok := gocv.IMWrite(path, mat); !ok {
		return errors.Newf("write image %s", path)
	}
	return nil
}
