// Package scenesim provides an in-memory scene.Adapter so the server can
// run without a host application: a handful of perspective cameras, a
// timeline, and a procedurally generated BGRA test frame.
package scenesim

import (
	"fmt"

	"github.com/shycats/vcam/internal/scene"
	"github.com/shycats/vcam/internal/transform"
)

const (
	defaultWidth  = 640
	defaultHeight = 360
)

type camera struct {
	matrix        transform.Matrix
	focalLength   float64
	transformKeys int
	focalKeys     int
}

// Sim is an in-memory scene. It is not safe for concurrent use on its own;
// the server always accesses it through scene.Serialize.
type Sim struct {
	cameras  map[string]*camera
	order    []string
	playback scene.PlaybackState
	fps      float64
	playing  bool
	zUp      bool

	captureWidth  int
	captureHeight int
	frameCounter  uint64
	capturing     bool
	lookThrough   string
	nextCameraID  int
}

// New creates a simulated scene with the given perspective cameras.
func New(cameraNames ...string) *Sim {
	s := &Sim{
		cameras:       make(map[string]*camera),
		playback:      scene.PlaybackState{CurrentFrame: 1, RangeStart: 1, RangeEnd: 250},
		fps:           24,
		captureWidth:  defaultWidth,
		captureHeight: defaultHeight,
	}
	if len(cameraNames) == 0 {
		cameraNames = []string{"persp", "shotCam"}
	}
	for _, name := range cameraNames {
		s.cameras[name] = &camera{matrix: transform.Identity(), focalLength: 35}
		s.order = append(s.order, name)
	}
	return s
}

// SetZUp switches the simulated host to a Z-up axis convention.
func (s *Sim) SetZUp(zUp bool) { s.zUp = zUp }

// DeleteCamera removes a camera, simulating a user deleting it in the host.
func (s *Sim) DeleteCamera(name string) {
	delete(s.cameras, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// SetViewportSize simulates the user resizing the host viewport.
func (s *Sim) SetViewportSize(width, height int) {
	s.captureWidth, s.captureHeight = width, height
}

// Playing reports whether the simulated timeline is running.
func (s *Sim) Playing() bool { return s.playing }

func (s *Sim) Cameras() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Sim) CameraExists(name string) bool {
	_, ok := s.cameras[name]
	return ok
}

func (s *Sim) CameraTransform(name string) transform.Matrix {
	if c, ok := s.cameras[name]; ok {
		return c.matrix
	}
	return transform.Identity()
}

func (s *Sim) SetCameraTransform(name string, m transform.Matrix) {
	if c, ok := s.cameras[name]; ok {
		c.matrix = m
	}
}

func (s *Sim) FocalLength(name string) float64 {
	if c, ok := s.cameras[name]; ok {
		return c.focalLength
	}
	return 0
}

func (s *Sim) SetFocalLength(name string, focalLength float64) {
	if c, ok := s.cameras[name]; ok {
		c.focalLength = focalLength
	}
}

func (s *Sim) SetTransformKeys(name string, matrices []transform.Matrix, frames []float64) {
	if c, ok := s.cameras[name]; ok {
		for i, m := range matrices {
			c.matrix = m
			_ = frames[i]
		}
		c.transformKeys += len(matrices)
	}
}

func (s *Sim) SetFocalLengthKeys(name string, values, frames []float64) {
	if c, ok := s.cameras[name]; ok {
		for i, v := range values {
			c.focalLength = v
			_ = frames[i]
		}
		c.focalKeys += len(values)
	}
}

func (s *Sim) RemoveAllKeys(name string) {
	if c, ok := s.cameras[name]; ok {
		c.transformKeys = 0
		c.focalKeys = 0
	}
}

func (s *Sim) CreateCamera(copyFrom string) string {
	s.nextCameraID++
	name := fmt.Sprintf("camera%d", s.nextCameraID)
	for s.CameraExists(name) {
		s.nextCameraID++
		name = fmt.Sprintf("camera%d", s.nextCameraID)
	}
	newCam := &camera{matrix: transform.Identity(), focalLength: 35}
	if src, ok := s.cameras[copyFrom]; ok {
		newCam.matrix = src.matrix
		newCam.focalLength = src.focalLength
	}
	s.cameras[name] = newCam
	s.order = append(s.order, name)
	return name
}

func (s *Sim) HasKeys(name string) (transformKeys, focalKeys bool) {
	if c, ok := s.cameras[name]; ok {
		return c.transformKeys > 0, c.focalKeys > 0
	}
	return false, false
}

func (s *Sim) PlaybackState() scene.PlaybackState { return s.playback }

func (s *Sim) SetCurrentFrame(frame float64) {
	s.playing = false
	s.playback.CurrentFrame = frame
}

func (s *Sim) SetPlaybackRange(start, end float64) {
	s.playback.RangeStart = start
	s.playback.RangeEnd = end
}

func (s *Sim) PlaybackFPS() float64 { return s.fps }

func (s *Sim) StartPlayback(forward bool) { s.playing = true }

func (s *Sim) StopPlayback() { s.playing = false }

func (s *Sim) TogglePlayback() { s.playing = !s.playing }

func (s *Sim) ViewportSize() (width, height int) {
	return s.captureWidth, s.captureHeight
}

func (s *Sim) SetCaptureResolution(width, height int) {
	s.captureWidth, s.captureHeight = width, height
}

// CaptureFrame renders a BGRA gradient with a moving vertical bar so the
// encoded stream visibly advances.
func (s *Sim) CaptureFrame() []byte {
	w, h := s.captureWidth, s.captureHeight
	buf := make([]byte, w*h*4)
	bar := int(s.frameCounter) % max(w, 1)
	s.frameCounter++
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			buf[i] = byte(x * 255 / max(w, 1))   // B
			buf[i+1] = byte(y * 255 / max(h, 1)) // G
			if x == bar {
				buf[i+2] = 255 // R
			}
			buf[i+3] = 255 // A
		}
	}
	return buf
}

func (s *Sim) CaptureWillStart() { s.capturing = true }

func (s *Sim) CaptureDidEnd() { s.capturing = false }

func (s *Sim) LookThroughCamera(name string) { s.lookThrough = name }

func (s *Sim) HostZUp() bool { return s.zUp }
