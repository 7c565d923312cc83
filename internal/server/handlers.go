package server

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"

	"github.com/shycats/vcam/internal/metrics"
	"github.com/shycats/vcam/internal/protocol"
	"github.com/shycats/vcam/internal/scene"
	"github.com/shycats/vcam/internal/scripts"
	"github.com/shycats/vcam/internal/streaming"
	"github.com/shycats/vcam/internal/transform"
)

// connHandler holds one client session's state: the axis convention
// captured at connect time, the camera list snapshot the client indexes
// into, and the currently selected camera.
type connHandler struct {
	srv    *Server
	sess   *session
	logger *slog.Logger

	adapter  scene.Adapter
	pipeline *streaming.Pipeline
	scripts  *scripts.Runner
	conv     transform.Convention

	cameraList    []string
	currentCamera string
}

func newConnHandler(srv *Server, sess *session, logger *slog.Logger) *connHandler {
	return &connHandler{
		srv:      srv,
		sess:     sess,
		logger:   logger,
		adapter:  srv.adapter,
		pipeline: srv.pipeline,
		scripts:  srv.scripts,
		conv:     transform.NewConvention(srv.adapter.HostZUp()),
	}
}

// sendErr reports a protocol-level failure to the client.
func (h *connHandler) sendErr(op protocol.Opcode, extra ...[]byte) error {
	metrics.CountProtocolError(op.String())
	return h.sess.send(op, extra...)
}

// camera returns the selected camera name, verifying it still exists.
// Cameras can disappear under us when the user deletes them in the host.
func (h *connHandler) camera() (string, bool) {
	if h.currentCamera == "" || !h.adapter.CameraExists(h.currentCamera) {
		return "", false
	}
	return h.currentCamera, true
}

func (h *connHandler) selectCamera(name string) {
	h.currentCamera = name
	h.srv.setCurrentCamera(name)
}

// --- ASK ---

func (h *connHandler) askServerInfo() error {
	payload := protocol.ServerInfoPayload(h.srv.protocolVersion, h.srv.serverInfoName())
	return h.sess.sendWithLen(protocol.AskServerInfo, payload)
}

func (h *connHandler) askSceneStatus() error {
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	ps := h.adapter.PlaybackState()
	flen := h.adapter.FocalLength(cam)
	payload := protocol.SceneStatusPayload(ps.CurrentFrame, ps.RangeStart, ps.RangeEnd, flen)
	return h.sess.send(protocol.AskSceneStatus, payload)
}

func (h *connHandler) askSceneCameras() error {
	names := h.adapter.Cameras()
	h.cameraList = names

	current := protocol.CurrentCameraNone
	for i, name := range names {
		if name == h.currentCamera {
			current = uint16(i)
			break
		}
	}
	return h.sess.sendWithLen(protocol.AskSceneCameras, protocol.CameraListPayload(current, names))
}

func (h *connHandler) askCameraMatrix() error {
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	m := h.conv.FromHost(h.adapter.CameraTransform(cam))
	return h.sess.send(protocol.AskCameraMatrix, protocol.EncodeMatrix(m))
}

// askViewportImg pushes one frame into the encoder pipe. The frame
// itself travels out of band through the FFmpeg stream, so there is no
// echo on success; failures reply ErrNotStreaming.
func (h *connHandler) askViewportImg() error {
	if err := h.pipeline.PushFrame(streaming.TriggerPull); err != nil {
		h.pipeline.Stop("frame write failed")
		return h.sendErr(protocol.ErrNotStreaming)
	}
	return nil
}

func (h *connHandler) askPlayFps() error {
	payload := protocol.AppendFloat64(nil, h.adapter.PlaybackFPS())
	return h.sess.send(protocol.AskPlayFps, payload)
}

func (h *connHandler) askCameraHasKeys() error {
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	transformKeys, focalKeys := h.adapter.HasKeys(cam)
	packed := protocol.PackHasKeys(transformKeys, focalKeys)
	return h.sess.send(protocol.AskCameraHasKeys, []byte{packed})
}

func (h *connHandler) askScriptLabels() error {
	return h.sess.sendWithLen(protocol.AskScriptLabels, protocol.ScriptLabelsPayload(h.scripts.Labels()))
}

// --- SET ---
// The ack has already been written; each handler reads its fixed payload
// before validating so a rejected command never desynchronizes the stream.

func (h *connHandler) setPlaybackRange() error {
	b, err := h.sess.readPayload(16)
	if err != nil {
		return err
	}
	h.adapter.SetPlaybackRange(protocol.Float64At(b, 0), protocol.Float64At(b, 8))
	return nil
}

func (h *connHandler) setCurrentTime() error {
	b, err := h.sess.readPayload(8)
	if err != nil {
		return err
	}
	h.adapter.SetCurrentFrame(protocol.Float64At(b, 0))
	return nil
}

func (h *connHandler) setCurrentCamera() error {
	b, err := h.sess.readPayload(2)
	if err != nil {
		return err
	}
	index := binary.LittleEndian.Uint16(b)
	if index == protocol.CurrentCameraNone || int(index) >= len(h.cameraList) {
		h.logger.Debug("ignoring camera selection", "index", index, "known", len(h.cameraList))
		return nil
	}
	name := h.cameraList[index]
	if !h.adapter.CameraExists(name) {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	h.selectCamera(name)
	h.adapter.LookThroughCamera(name)
	return nil
}

func (h *connHandler) setCameraMatrix() error {
	b, err := h.sess.readPayload(protocol.MatrixSize)
	if err != nil {
		return err
	}
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	m, err := protocol.DecodeMatrix(b)
	if err != nil {
		return err
	}
	h.adapter.SetCameraTransform(cam, h.conv.ToHost(m))
	return nil
}

func (h *connHandler) setCameraMatrixAtTime() error {
	b, err := h.sess.readPayload(protocol.MatrixAtTimeSize)
	if err != nil {
		return err
	}
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	m, err := protocol.DecodeMatrix(b)
	if err != nil {
		return err
	}
	frame := protocol.Float64At(b, protocol.MatrixSize)
	h.adapter.SetTransformKeys(cam, []transform.Matrix{h.conv.ToHost(m)}, []float64{frame})
	return nil
}

func (h *connHandler) setFocalLength() error {
	b, err := h.sess.readPayload(8)
	if err != nil {
		return err
	}
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	h.adapter.SetFocalLength(cam, protocol.Float64At(b, 0))
	return nil
}

func (h *connHandler) setFocalLengthAtTime() error {
	b, err := h.sess.readPayload(16)
	if err != nil {
		return err
	}
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	h.adapter.SetFocalLengthKeys(cam, []float64{protocol.Float64At(b, 0)}, []float64{protocol.Float64At(b, 8)})
	return nil
}

func (h *connHandler) setCameraAll() error {
	b, err := h.sess.readPayload(protocol.CameraAllSize)
	if err != nil {
		return err
	}
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	m, err := protocol.DecodeMatrix(b)
	if err != nil {
		return err
	}
	h.adapter.SetCameraTransform(cam, h.conv.ToHost(m))
	h.adapter.SetFocalLength(cam, protocol.Float64At(b, protocol.MatrixSize))
	return nil
}

func (h *connHandler) setCameraAllAtTime() error {
	b, err := h.sess.readPayload(protocol.CameraAllTimeSize)
	if err != nil {
		return err
	}
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	m, err := protocol.DecodeMatrix(b)
	if err != nil {
		return err
	}
	flen := protocol.Float64At(b, protocol.MatrixSize)
	frame := protocol.Float64At(b, protocol.MatrixSize+8)
	h.adapter.SetTransformKeys(cam, []transform.Matrix{h.conv.ToHost(m)}, []float64{frame})
	h.adapter.SetFocalLengthKeys(cam, []float64{flen}, []float64{frame})
	return nil
}

func (h *connHandler) setCameraMatrixKeys() error {
	countBuf, err := h.sess.readPayload(2)
	if err != nil {
		return err
	}
	count := int(binary.LittleEndian.Uint16(countBuf))
	b, err := h.sess.readPayload(count * protocol.MatrixKeySize)
	if err != nil {
		return err
	}
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	matrices, frames, err := protocol.DecodeMatrixKeyPayload(b, count)
	if err != nil {
		return err
	}
	for i := range matrices {
		matrices[i] = h.conv.ToHost(matrices[i])
	}
	h.adapter.SetTransformKeys(cam, matrices, frames)
	return nil
}

func (h *connHandler) setCameraFlenKeys() error {
	countBuf, err := h.sess.readPayload(2)
	if err != nil {
		return err
	}
	count := int(binary.LittleEndian.Uint16(countBuf))
	b, err := h.sess.readPayload(count * protocol.FlenKeySize)
	if err != nil {
		return err
	}
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	values, frames, err := protocol.DecodeFlenKeyPayload(b, count)
	if err != nil {
		return err
	}
	h.adapter.SetFocalLengthKeys(cam, values, frames)
	return nil
}

// --- DO ---

func (h *connHandler) doStartStreaming() error {
	b, err := h.sess.readPayload(protocol.StreamRequestSize)
	if err != nil {
		return err
	}
	req, err := protocol.DecodeStreamRequest(b)
	if err != nil {
		return err
	}
	if _, ok := h.camera(); !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	if h.pipeline.Active() {
		return nil
	}

	clientIP := h.sess.remoteAddr()
	if host, _, splitErr := net.SplitHostPort(clientIP); splitErr == nil {
		clientIP = host
	}

	startErr := h.pipeline.Start(streaming.Params{
		FPS:         req.FPS,
		BitrateMbit: req.Bitrate,
		Port:        req.Port,
		Opaque:      req.Opaque,
		Autosend:    req.Autosend,
		ClientIP:    clientIP,
		FFmpegBin:   h.srv.opts.FFmpegBin,
	})
	switch {
	case startErr == nil, startErr == streaming.ErrAlreadyStreaming:
		return nil
	default:
		h.logger.Error("encoder launch failed", "error", startErr)
		return h.sendErr(protocol.ErrFFmpeg)
	}
}

func (h *connHandler) doStopStreaming() error {
	h.pipeline.Stop("client request")
	return nil
}

func (h *connHandler) doStartPlayback() error {
	b, err := h.sess.readPayload(1)
	if err != nil {
		return err
	}
	h.adapter.StartPlayback(b[0] != 0)
	return nil
}

func (h *connHandler) doStopPlayback() error {
	h.adapter.StopPlayback()
	return nil
}

func (h *connHandler) doSwitchPlayback() error {
	h.adapter.TogglePlayback()
	return nil
}

func (h *connHandler) doRemoveCameraKeys() error {
	cam, ok := h.camera()
	if !ok {
		return h.sendErr(protocol.ErrMissingCamera)
	}
	h.adapter.RemoveAllKeys(cam)
	return nil
}

func (h *connHandler) doCreateNewCamera() error {
	name := h.adapter.CreateCamera(h.currentCamera)
	h.selectCamera(name)
	h.adapter.LookThroughCamera(name)
	return nil
}

// doExecuteScript is the one command that replies after acting: the echo
// confirms the script succeeded, ErrExecuteScript (with the index) that
// it failed. Error detail stays in the local log.
func (h *connHandler) doExecuteScript() error {
	b, err := h.sess.readPayload(1)
	if err != nil {
		return err
	}
	index := int(b[0])

	if execErr := h.scripts.Execute(context.Background(), index, h.currentCamera); execErr != nil {
		metrics.CountScriptRun("error")
		h.logger.Warn("script execution failed", "index", index, "error", execErr)
		return h.sendErr(protocol.ErrExecuteScript, b)
	}
	metrics.CountScriptRun("ok")
	return h.sess.send(protocol.DoExecuteScript)
}
