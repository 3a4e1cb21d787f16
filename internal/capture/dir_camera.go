package capture

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"
)

var imageExts = []string{".jpg", ".jpeg", ".png", ".bmp"}

// DirCamera plays back the image files of a directory in name order.
// It lets the stream command run against recorded frames when no device
// is attached.
type DirCamera struct {
	dir     string
	files   []string
	index   int
	loop    bool
	fps     int
	mu      sync.Mutex
	running bool
}

func NewDirCamera(dir string, loop bool) *DirCamera {
	return &DirCamera{
		dir:  dir,
		loop: loop,
		fps:  DefaultFPS,
	}
}

// Open lists the directory. It fails if there are no images in it.
func (c *DirCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return errors.Wrapf(err, "open frame directory %s", c.dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(c.dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return errors.Newf("no images in %s", c.dir)
	}

	// ReadDir already sorts by name
	c.files = files
	c.index = 0
	c.running = true
	return nil
}

func (c *DirCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *DirCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if c.index >= len(c.files) {
		if !c.loop {
			return nil, ErrNoMoreFrames
		}
		c.index = 0
	}

	path := c.files[c.index]
	c.index++

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, errors.Newf("decode frame %s", path)
	}
	return &mat, nil
}

func (c *DirCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *DirCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *DirCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
