package server

import (
	"errors"
	"io"

	"github.com/shycats/vcam/internal/metrics"
	"github.com/shycats/vcam/internal/protocol"
)

// handlerFunc processes one command after any required ack. A returned
// error is a transport failure and ends the session; protocol-level
// failures are reported to the client via ERR opcodes and return nil.
type handlerFunc func(*connHandler) error

var dispatchTable = map[protocol.Opcode]handlerFunc{
	protocol.AskServerInfo:    (*connHandler).askServerInfo,
	protocol.AskSceneStatus:   (*connHandler).askSceneStatus,
	protocol.AskSceneCameras:  (*connHandler).askSceneCameras,
	protocol.AskCameraMatrix:  (*connHandler).askCameraMatrix,
	protocol.AskViewportImg:   (*connHandler).askViewportImg,
	protocol.AskPlayFps:       (*connHandler).askPlayFps,
	protocol.AskCameraHasKeys: (*connHandler).askCameraHasKeys,
	protocol.AskScriptLabels:  (*connHandler).askScriptLabels,

	protocol.SetPlaybackRange:      (*connHandler).setPlaybackRange,
	protocol.SetCurrentTime:        (*connHandler).setCurrentTime,
	protocol.SetCurrentCamera:      (*connHandler).setCurrentCamera,
	protocol.SetCameraMatrix:       (*connHandler).setCameraMatrix,
	protocol.SetCameraMatrixAtTime: (*connHandler).setCameraMatrixAtTime,
	protocol.SetFocalLength:        (*connHandler).setFocalLength,
	protocol.SetFocalLengthAtTime:  (*connHandler).setFocalLengthAtTime,
	protocol.SetCameraAll:          (*connHandler).setCameraAll,
	protocol.SetCameraAllAtTime:    (*connHandler).setCameraAllAtTime,
	protocol.SetCameraMatrixKeys:   (*connHandler).setCameraMatrixKeys,
	protocol.SetCameraFlenKeys:     (*connHandler).setCameraFlenKeys,

	protocol.DoStartStreaming:   (*connHandler).doStartStreaming,
	protocol.DoStopStreaming:    (*connHandler).doStopStreaming,
	protocol.DoStartPlayback:    (*connHandler).doStartPlayback,
	protocol.DoStopPlayback:     (*connHandler).doStopPlayback,
	protocol.DoSwitchPlayback:   (*connHandler).doSwitchPlayback,
	protocol.DoRemoveCameraKeys: (*connHandler).doRemoveCameraKeys,
	protocol.DoCreateNewCamera:  (*connHandler).doCreateNewCamera,
	protocol.DoExecuteScript:    (*connHandler).doExecuteScript,
}

// needsAck reports whether the opcode is echoed back before its payload
// is read. All SET and DO commands ack first, except DoExecuteScript,
// whose reply carries the execution result and so must wait.
func needsAck(op protocol.Opcode) bool {
	switch op.Category() {
	case protocol.CategorySet:
		return true
	case protocol.CategoryDo:
		return op != protocol.DoExecuteScript
	default:
		return false
	}
}

// commandLoop reads and dispatches commands until the peer disconnects
// or a transport write fails.
func (h *connHandler) commandLoop() error {
	for {
		op, err := h.sess.readOpcode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				h.logger.Info("client closed connection")
				return nil
			}
			return err
		}

		fn, ok := dispatchTable[op]
		if !ok {
			// Unknown opcodes are ignored; a newer client may probe
			// commands this server predates.
			h.logger.Debug("ignoring unknown opcode", "opcode", byte(op))
			continue
		}

		h.logger.Debug("command", "opcode", op.String())
		metrics.CountCommand(op.Category().String())

		if needsAck(op) {
			if err := h.sess.send(op); err != nil {
				return err
			}
		}
		if err := fn(h); err != nil {
			return err
		}
	}
}
