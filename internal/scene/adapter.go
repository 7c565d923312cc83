// Package scene defines the capability interface the server consumes to
// query and mutate the host application's scene graph, and the executor
// that serializes those calls onto the host's single UI/scene thread.
package scene

import "github.com/shycats/vcam/internal/transform"

// PlaybackState is the host timeline state.
type PlaybackState struct {
	CurrentFrame float64
	RangeStart   float64
	RangeEnd     float64
}

// Adapter is implemented by the embedding host application. All methods are
// invoked on the host's scene thread when the adapter is wrapped with
// Serialize; implementations do not need their own locking.
type Adapter interface {
	// Camera queries and mutations. Camera identifiers are host names;
	// callers check CameraExists before acting and treat a missing camera
	// as a protocol-level error.
	Cameras() []string
	CameraExists(name string) bool
	CameraTransform(name string) transform.Matrix
	SetCameraTransform(name string, m transform.Matrix)
	FocalLength(name string) float64
	SetFocalLength(name string, focalLength float64)
	SetTransformKeys(name string, matrices []transform.Matrix, frames []float64)
	SetFocalLengthKeys(name string, values, frames []float64)
	RemoveAllKeys(name string)
	// CreateCamera makes a new camera, copying transform and focal length
	// from copyFrom when it names an existing camera, and returns its name.
	CreateCamera(copyFrom string) string
	HasKeys(name string) (transformKeys, focalKeys bool)

	// Timeline.
	PlaybackState() PlaybackState
	SetCurrentFrame(frame float64)
	SetPlaybackRange(start, end float64)
	PlaybackFPS() float64
	StartPlayback(forward bool)
	StopPlayback()
	TogglePlayback()

	// Viewport capture. ViewportSize reports the live viewport dimensions,
	// which may change between frames; the streaming pipeline re-registers
	// a changed resolution via SetCaptureResolution before reading pixels.
	ViewportSize() (width, height int)
	SetCaptureResolution(width, height int)
	CaptureFrame() []byte
	CaptureWillStart()
	CaptureDidEnd()

	// UI feedback.
	LookThroughCamera(name string)

	// HostZUp reports whether the host scene uses a Z-up axis convention.
	// Captured once per client connection.
	HostZUp() bool
}
