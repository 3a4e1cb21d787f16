package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestNewMotionDetector(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      float64
	}{
		{"default", 1.0, 1.0},
		{"high", 5.0, 5.0},
		{"low", 0.5, 0.5},
		{"zero falls back", 0, DefaultMotionThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := NewMotionDetector(tt.threshold)
			defer md.Close()

			if got := md.Threshold(); got != tt.want {
				t.Errorf("Threshold() = %f, want %f", got, tt.want)
			}
			if md.primed {
				t.Error("detector should start without a baseline")
			}
		})
	}
}

func TestMotionDetector_NoMotion(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	if m := md.Detect(&frame1); m.Detected || m.Changed != 0 {
		t.Errorf("first frame should only set the baseline, got %+v", m)
	}
	if m := md.Detect(&frame2); m.Detected {
		t.Errorf("identical frames should not detect motion, got %+v", m)
	}
}

func TestMotionDetector_WithMotion(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	black := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer white.Close()

	md.Detect(&black)
	m := md.Detect(&white)

	if !m.Detected {
		t.Errorf("black to white should detect motion, got %+v", m)
	}
	if m.Changed < 50.0 {
		t.Errorf("Changed = %f, expected > 50%%", m.Changed)
	}
}

func TestMotionDetector_SizeChangeResetsBaseline(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	small := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer small.Close()
	large := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 96, 128, gocv.MatTypeCV8UC3)
	defer large.Close()

	md.Detect(&small)
	if m := md.Detect(&large); m.Detected {
		t.Errorf("resized frame should become the baseline, got %+v", m)
	}
}

func TestMotionDetector_Reset(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	md.Detect(&frame)
	if !md.primed {
		t.Error("detector should have a baseline after the first frame")
	}

	md.Reset()
	if md.primed || !md.prev.Empty() {
		t.Error("Reset should drop the baseline")
	}
}

func TestMotionDetector_SetThreshold(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.SetThreshold(5.0)
	if md.Threshold() != 5.0 {
		t.Errorf("Threshold() = %f, want 5.0", md.Threshold())
	}

	md.SetThreshold(-1.0)
	if md.Threshold() != 5.0 {
		t.Errorf("negative threshold should be ignored, got %f", md.Threshold())
	}
}

func TestMotionDetector_DetectAfterClose(t *testing.T) {
	md := NewMotionDetector(1.0)

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	md.Detect(&frame)
	md.Close()
	md.Close()

	if m := md.Detect(&frame); m.Detected {
		t.Error("first frame after close should not detect motion")
	}
	if m := md.Detect(nil); m.Detected {
		t.Error("nil frame should not detect motion")
	}
}
