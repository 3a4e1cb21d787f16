package facedetector

import (
	"image"
	"sync"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"

	"github.com/edgeaihub/edgeplug/pkg/imageutil"
)

// ErrCascadeNotFound is returned when no cascade file is configured or found.
var ErrCascadeNotFound = errors.New("haar cascade not found")

// CascadeDetector implements Detector with an OpenCV Haar cascade classifier.
type CascadeDetector struct {
	config     Config
	classifier gocv.CascadeClassifier
	mu         sync.Mutex
	closed     bool
}

// NewCascadeDetector loads the cascade named by config.CascadePath, or the
// default cascade if the path is empty.
func NewCascadeDetector(config Config) (*CascadeDetector, error) {
	path := config.CascadePath
	if path == "" {
		path = FindCascade()
	}
	if path == "" {
		return nil, ErrCascadeNotFound
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, errors.Newf("load cascade %s", path)
	}

	return &CascadeDetector{
		config:     config,
		classifier: classifier,
	}, nil
}

// Detect runs the classifier on an equalized grayscale copy of img.
func (d *CascadeDetector) Detect(img gocv.Mat) ([]image.Rectangle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.New("detector is closed")
	}
	if img.Empty() {
		return nil, imageutil.ErrEmptyImage
	}

	gray := imageutil.Grayscale(img)
	defer gray.Close()

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(gray, &equalized)

	minSize := image.Point{X: d.config.MinSize, Y: d.config.MinSize}
	rects := d.classifier.DetectMultiScaleWithParams(
		equalized,
		d.config.ScaleFactor,
		d.config.MinNeighbors,
		0,
		minSize,
		image.Point{},
	)

	return rects, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.classifier.Close()
}
