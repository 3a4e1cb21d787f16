package facedetector

import (
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// Detector finds face regions in an image.
type Detector interface {
	// Detect returns the bounding boxes of the faces found in img.
	// Returns an empty slice if no faces are detected.
	Detect(img gocv.Mat) ([]image.Rectangle, error)

	// Close releases any resources held by the detector.
	Close() error
}

// CascadeFile is the Haar cascade used when Config.CascadePath is empty.
const CascadeFile = "haarcascade_frontalface_default.xml"

// Config holds configuration options for face detection.
type Config struct {
	// CascadePath is the Haar cascade XML file. Empty means search the usual
	// OpenCV install locations for CascadeFile.
	CascadePath string

	// ScaleFactor is how much the image is shrunk at each detection scale (> 1.0).
	ScaleFactor float64

	// MinNeighbors is how many overlapping candidates a region needs to be kept.
	MinNeighbors int

	// MinSize is the smallest face edge, in pixels, that is reported.
	MinSize int

	// BoxThickness is the outline width drawn around each face.
	BoxThickness int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      30,
		BoxThickness: 2,
	}
}

// FindCascade looks for the default frontal face cascade.
// It checks $OPENCV_HAAR_DIR, the common OpenCV install prefixes and
// ~/.edgeplug/haarcascades. Returns an empty string if none is found.
func FindCascade() string {
	var candidates []string

	if dir := os.Getenv("OPENCV_HAAR_DIR"); dir != "" {
		candidates = append(candidates, filepath.Join(dir, CascadeFile))
	}

	candidates = append(candidates,
		"/usr/share/opencv4/haarcascades/"+CascadeFile,
		"/usr/local/share/opencv4/haarcascades/"+CascadeFile,
		"/opt/homebrew/share/opencv4/haarcascades/"+CascadeFile,
		"/usr/share/opencv/haarcascades/"+CascadeFile,
		"/usr/local/share/opencv/haarcascades/"+CascadeFile,
	)

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".edgeplug", "haarcascades", CascadeFile))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
