package scene

import "github.com/shycats/vcam/internal/transform"

// Serialize wraps an adapter so that every call runs through the executor's
// host-thread gate. The server only ever talks to a serialized adapter.
func Serialize(a Adapter, exec *Executor) Adapter {
	return &serialized{a: a, exec: exec}
}

type serialized struct {
	a    Adapter
	exec *Executor
}

func (s *serialized) Cameras() (out []string) {
	s.exec.Exec(func() { out = s.a.Cameras() })
	return
}

func (s *serialized) CameraExists(name string) (out bool) {
	s.exec.Exec(func() { out = s.a.CameraExists(name) })
	return
}

func (s *serialized) CameraTransform(name string) (out transform.Matrix) {
	s.exec.Exec(func() { out = s.a.CameraTransform(name) })
	return
}

func (s *serialized) SetCameraTransform(name string, m transform.Matrix) {
	s.exec.Exec(func() { s.a.SetCameraTransform(name, m) })
}

func (s *serialized) FocalLength(name string) (out float64) {
	s.exec.Exec(func() { out = s.a.FocalLength(name) })
	return
}

func (s *serialized) SetFocalLength(name string, focalLength float64) {
	s.exec.Exec(func() { s.a.SetFocalLength(name, focalLength) })
}

func (s *serialized) SetTransformKeys(name string, matrices []transform.Matrix, frames []float64) {
	s.exec.Exec(func() { s.a.SetTransformKeys(name, matrices, frames) })
}

func (s *serialized) SetFocalLengthKeys(name string, values, frames []float64) {
	s.exec.Exec(func() { s.a.SetFocalLengthKeys(name, values, frames) })
}

func (s *serialized) RemoveAllKeys(name string) {
	s.exec.Exec(func() { s.a.RemoveAllKeys(name) })
}

func (s *serialized) CreateCamera(copyFrom string) (out string) {
	s.exec.Exec(func() { out = s.a.CreateCamera(copyFrom) })
	return
}

func (s *serialized) HasKeys(name string) (transformKeys, focalKeys bool) {
	s.exec.Exec(func() { transformKeys, focalKeys = s.a.HasKeys(name) })
	return
}

func (s *serialized) PlaybackState() (out PlaybackState) {
	s.exec.Exec(func() { out = s.a.PlaybackState() })
	return
}

func (s *serialized) SetCurrentFrame(frame float64) {
	s.exec.Exec(func() { s.a.SetCurrentFrame(frame) })
}

func (s *serialized) SetPlaybackRange(start, end float64) {
	s.exec.Exec(func() { s.a.SetPlaybackRange(start, end) })
}

func (s *serialized) PlaybackFPS() (out float64) {
	s.exec.Exec(func() { out = s.a.PlaybackFPS() })
	return
}

func (s *serialized) StartPlayback(forward bool) {
	s.exec.Exec(func() { s.a.StartPlayback(forward) })
}

func (s *serialized) StopPlayback() {
	s.exec.Exec(func() { s.a.StopPlayback() })
}

func (s *serialized) TogglePlayback() {
	s.exec.Exec(func() { s.a.TogglePlayback() })
}

func (s *serialized) ViewportSize() (width, height int) {
	s.exec.Exec(func() { width, height = s.a.ViewportSize() })
	return
}

func (s *serialized) SetCaptureResolution(width, height int) {
	s.exec.Exec(func() { s.a.SetCaptureResolution(width, height) })
}

func (s *serialized) CaptureFrame() (out []byte) {
	s.exec.Exec(func() { out = s.a.CaptureFrame() })
	return
}

func (s *serialized) CaptureWillStart() {
	s.exec.Exec(func() { s.a.CaptureWillStart() })
}

func (s *serialized) CaptureDidEnd() {
	s.exec.Exec(func() { s.a.CaptureDidEnd() })
}

func (s *serialized) LookThroughCamera(name string) {
	s.exec.Exec(func() { s.a.LookThroughCamera(name) })
}

func (s *serialized) HostZUp() (out bool) {
	s.exec.Exec(func() { out = s.a.HostZUp() })
	return
}
