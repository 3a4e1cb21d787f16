// Package facedetector is the reference edgeplug plugin: it finds faces in
// an image with an OpenCV Haar cascade and returns their bounding boxes
// together with an annotated copy of the image.
package facedetector

import (
	"fmt"
	"image"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/edgeaihub/edgeplug/pkg/imageutil"
	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

// ID is the plugin identifier.
const ID = "face_detector"

// Descriptor is the static declaration of the face detector.
func Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		ID:                   ID,
		Name:                 "Face Detector",
		Version:              "1.0.0",
		Description:          "Detects frontal faces and outlines them on a copy of the image",
		Category:             "computer-vision",
		Author:               "EdgeAIHub",
		Dependencies:         []string{"gocv.io/x/gocv", "opencv>=4"},
		SupportedInputTypes:  []plugin.DataType{plugin.DataTypeImage},
		SupportedOutputTypes: []plugin.DataType{plugin.DataTypeImage, plugin.DataTypeJSON},
	}
}

// Loader builds the Detector used by the plugin.
type Loader func(Config) (Detector, error)

// Option customizes a Plugin.
type Option func(*Plugin)

// WithLoader replaces the cascade loader, mostly for tests.
func WithLoader(l Loader) Option {
	return func(p *Plugin) {
		p.loader = l
	}
}

// WithLogger sets where initialization failures are reported.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Plugin) {
		p.log = l
	}
}

// Plugin implements plugin.Plugin for face detection.
// It is not safe for concurrent use; create one instance per goroutine.
type Plugin struct {
	plugin.Base

	config   Config
	loader   Loader
	log      logrus.FieldLogger
	detector Detector
	initErr  error
}

var (
	_ plugin.Plugin   = (*Plugin)(nil)
	_ plugin.Releaser = (*Plugin)(nil)
)

// New creates an uninitialized face detector plugin.
func New(config Config, opts ...Option) *Plugin {
	p := &Plugin{
		Base:   plugin.NewBase(Descriptor()),
		config: config,
		loader: func(c Config) (Detector, error) {
			return NewCascadeDetector(c)
		},
		log: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.log = p.log.WithField("plugin", ID)
	return p
}

// Initialize loads the detector. It does nothing once a detector is loaded
// and retries the load after a failure.
func (p *Plugin) Initialize() bool {
	if p.detector != nil {
		return true
	}

	d, err := p.loader(p.config)
	if err != nil {
		p.initErr = err
		p.log.WithError(err).Error("Failed to initialize face detector")
		return false
	}

	p.detector = d
	p.initErr = nil
	return true
}

// Initialized reports whether a detector is loaded.
func (p *Plugin) Initialized() bool {
	return p.detector != nil
}

// Process detects faces in an image payload.
//
// On success Output.Data is a Result and the metadata carries face_count,
// processing_time_ms, image_width and image_height. A panic inside OpenCV
// bindings comes back as a processing failure.
func (p *Plugin) Process(in *plugin.Input) (out plugin.Output) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("Face detection panicked")
			out = plugin.ProcessingFailed(errors.Newf("panic: %v", r))
		}
	}()

	if !p.ValidateInput(in) {
		return plugin.UnsupportedInput(p.Descriptor(), in)
	}

	// Recover lazily from a missing or released detector
	if p.detector == nil && !p.Initialize() {
		return plugin.InitializationFailed(p.initErr)
	}

	start := time.Now()

	result, size, err := p.detect(in.Data)
	if err != nil {
		return plugin.ProcessingFailed(err)
	}

	return plugin.Succeed(result, map[string]any{
		"face_count":         len(result.Faces),
		"processing_time_ms": time.Since(start).Milliseconds(),
		"image_width":        size.X,
		"image_height":       size.Y,
	})
}

func (p *Plugin) detect(data any) (*Result, image.Point, error) {
	mat, err := imageutil.ToMat(data)
	defer mat.Close()
	if err != nil {
		return nil, image.Point{}, err
	}

	rects, err := p.detector.Detect(mat)
	if err != nil {
		return nil, image.Point{}, errors.Wrap(err, "detect faces")
	}

	boxed := mat.Clone()
	defer boxed.Close()
	imageutil.DrawRectangles(&boxed, rects, imageutil.Green, p.config.BoxThickness)

	annotated := imageutil.DrawText(boxed, caption(len(rects)), captionOrigin,
		imageutil.Green, captionScale, p.config.BoxThickness)
	defer annotated.Close()

	img, err := imageutil.ToImage(annotated)
	if err != nil {
		return nil, image.Point{}, err
	}

	return &Result{
		Image: img,
		Faces: facesFromRects(rects),
	}, image.Point{X: mat.Cols(), Y: mat.Rows()}, nil
}

const captionScale = 0.6

var captionOrigin = image.Point{X: 8, Y: 22}

// caption is the face count written in the corner of the annotated image.
func caption(n int) string {
	if n == 1 {
		return "1 face"
	}
	return fmt.Sprintf("%d faces", n)
}

// Release closes the detector. The next Process call loads it again.
func (p *Plugin) Release() error {
	if p.detector == nil {
		return nil
	}

	err := p.detector.Close()
	p.detector = nil
	return err
}
