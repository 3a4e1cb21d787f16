package host

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/edgeaihub/edgeplug/internal/capture"
	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

// Stream pacing.
const (
	// IdleFPS is the frame rate while nothing moves.
	IdleFPS = 5
	// ActiveFPS is the frame rate while motion is being seen.
	ActiveFPS = 15
	// IdleTimeout is how long after the last motion the stream drops back to IdleFPS.
	IdleTimeout = 2 * time.Second
)

// StreamResult is handed to the stream handler for every processed frame.
type StreamResult struct {
	// Seq counts frames read from the camera, starting at 1.
	Seq    int
	Motion capture.Motion
	Output plugin.Output
}

// Stream feeds camera frames to a Runner. With a motion detector attached
// it only processes frames while motion is being seen and reads at IdleFPS
// otherwise.
type Stream struct {
	camera capture.Camera
	runner *Runner
	motion *capture.MotionDetector
	log    logrus.FieldLogger
}

// StreamOption customizes a Stream.
type StreamOption func(*Stream)

// WithMotionGate skips frames in which less than threshold percent of the
// pixels changed.
func WithMotionGate(threshold float64) StreamOption {
	return func(s *Stream) {
		s.motion = capture.NewMotionDetector(threshold)
	}
}

func WithStreamLogger(l logrus.FieldLogger) StreamOption {
	return func(s *Stream) {
		s.log = l
	}
}

func NewStream(camera capture.Camera, runner *Runner, opts ...StreamOption) *Stream {
	s := &Stream{
		camera: camera,
		runner: runner,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run opens the camera and processes frames until ctx is done or a finite
// camera runs out of frames. handle is called with each processed frame.
func (s *Stream) Run(ctx context.Context, handle func(StreamResult)) error {
	if err := s.camera.Open(); err != nil {
		return err
	}
	defer s.camera.Close()

	if s.motion != nil {
		defer s.motion.Close()
	}

	// Without a gate every frame counts as active
	active := s.motion == nil
	fps := IdleFPS
	if active {
		fps = ActiveFPS
	}
	s.camera.SetFPS(fps)

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var (
		seq        int
		lastMotion time.Time
	)

	setMode := func(nowActive bool) {
		if nowActive == active {
			return
		}
		active = nowActive
		fps := IdleFPS
		if active {
			fps = ActiveFPS
		}
		s.camera.SetFPS(fps)
		ticker.Reset(time.Second / time.Duration(fps))
		s.log.WithField("fps", fps).Debug("Stream mode changed")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, err := s.camera.ReadFrame()
		if errors.Is(err, capture.ErrNoMoreFrames) {
			return nil
		}
		if err != nil {
			s.log.WithError(err).Warn("Failed to read frame")
			continue
		}
		seq++

		var motion capture.Motion
		if s.motion != nil {
			motion = s.motion.Detect(frame)
			switch {
			case motion.Detected:
				lastMotion = time.Now()
				setMode(true)
			case active && time.Since(lastMotion) > IdleTimeout:
				setMode(false)
			}
		}

		if !active {
			frame.Close()
			continue
		}

		out := s.runner.Run(ctx, plugin.NewInput(plugin.DataTypeImage, frame))
		frame.Close()

		if handle != nil {
			handle(StreamResult{Seq: seq, Motion: motion, Output: out})
		}
	}
}
